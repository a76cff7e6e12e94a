package kkj

import (
	"encoding/xml"
	"fmt"
	"strings"

	"github.com/728jm2pczg-glitch/bid-aggregator/internal/sources"
)

// searchResponse mirrors the API's XML envelope. The root element name
// is not checked; the API has shipped envelopes under more than one
// root tag.
type searchResponse struct {
	Version       string        `xml:"Version"`
	Error         string        `xml:"e"`
	SearchResults searchResults `xml:"SearchResults"`
}

type searchResults struct {
	SearchHits int            `xml:"SearchHits"`
	Results    []searchResult `xml:"SearchResult"`
}

type searchResult struct {
	ResultID            string       `xml:"ResultId"`
	Key                 string       `xml:"Key"`
	ExternalDocumentURI string       `xml:"ExternalDocumentURI"`
	ProjectName         string       `xml:"ProjectName"`
	CftIssueDate        string       `xml:"CftIssueDate"`
	PeriodEndTime       string       `xml:"PeriodEndTime"`
	PrefectureName      string       `xml:"PrefectureName"`
	CityName            string       `xml:"CityName"`
	OrganizationName    string       `xml:"OrganizationName"`
	Category            string       `xml:"Category"`
	ProjectDescription  string       `xml:"ProjectDescription"`
	Attachments         []attachment `xml:"Attachments>Attachment"`
}

type attachment struct {
	Name string `xml:"Name"`
	URI  string `xml:"Uri"`
}

// parsed is the decoded, source-neutral form of one response.
type parsed struct {
	TotalHits int
	Records   []sources.Record
}

// parseResponse decodes a response body. An <e> element in the envelope
// is an API-level failure and is not retryable.
func parseResponse(body []byte) (*parsed, error) {
	var resp searchResponse
	if err := xml.Unmarshal(body, &resp); err != nil {
		return nil, &sources.ParseError{Err: fmt.Errorf("failed to decode search response: %w", err)}
	}

	if msg := strings.TrimSpace(resp.Error); msg != "" {
		return nil, &sources.ProtocolError{Message: msg}
	}

	records := make([]sources.Record, 0, len(resp.SearchResults.Results))
	for _, r := range resp.SearchResults.Results {
		records = append(records, toRecord(r))
	}

	return &parsed{
		TotalHits: resp.SearchResults.SearchHits,
		Records:   records,
	}, nil
}

// toRecord maps one XML result onto the neutral record shape. Key falls
// back to ResultId when the stable key is absent.
func toRecord(r searchResult) sources.Record {
	key := strings.TrimSpace(r.Key)
	if key == "" {
		key = strings.TrimSpace(r.ResultID)
	}

	attachments := make([]sources.Attachment, 0, len(r.Attachments))
	for _, a := range r.Attachments {
		if strings.TrimSpace(a.URI) == "" {
			continue
		}
		attachments = append(attachments, sources.Attachment{
			Name: strings.TrimSpace(a.Name),
			URI:  strings.TrimSpace(a.URI),
		})
	}

	return sources.Record{
		Key:          key,
		URL:          strings.TrimSpace(r.ExternalDocumentURI),
		Title:        strings.TrimSpace(r.ProjectName),
		Organization: strings.TrimSpace(r.OrganizationName),
		PublishedRaw: strings.TrimSpace(r.CftIssueDate),
		DeadlineRaw:  strings.TrimSpace(r.PeriodEndTime),
		Category:     strings.TrimSpace(r.Category),
		Prefecture:   strings.TrimSpace(r.PrefectureName),
		City:         strings.TrimSpace(r.CityName),
		Body:         strings.TrimSpace(r.ProjectDescription),
		Attachments:  attachments,
	}
}
