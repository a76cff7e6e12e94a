// Package kkj implements the structured-API source client for the
// government procurement information portal. The API takes a flat
// key-value parameter set and returns an XML document with a reported
// total-hit count.
package kkj

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/728jm2pczg-glitch/bid-aggregator/internal/logger"
	"github.com/728jm2pczg-glitch/bid-aggregator/internal/models"
	"github.com/728jm2pczg-glitch/bid-aggregator/internal/sources"
)

const (
	// DefaultBaseURL is the default API endpoint.
	DefaultBaseURL = "http://www.kkj.go.jp/api/"
	// DefaultTimeout is the default per-request timeout.
	DefaultTimeout = 30 * time.Second
	// DefaultRequestInterval is the default minimum interval between requests.
	DefaultRequestInterval = 1 * time.Second
	// MaxCount is the hard per-request result cap imposed by the API.
	MaxCount = 1000

	userAgent = "BidAggregator/1.0 (+https://github.com/728jm2pczg-glitch/bid-aggregator)"

	errorBodyPreviewLen = 200
)

// Config holds client configuration.
type Config struct {
	BaseURL         string
	Timeout         time.Duration
	RequestInterval time.Duration
}

// WithDefaults returns a copy with defaults applied to zero values.
func (c Config) WithDefaults() Config {
	if c.BaseURL == "" {
		c.BaseURL = DefaultBaseURL
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.RequestInterval <= 0 {
		c.RequestInterval = DefaultRequestInterval
	}
	return c
}

// Client is the structured-API source client.
type Client struct {
	baseURL    string
	httpClient *http.Client
	gate       *sources.RateGate
	log        logger.Interface
}

// Ensure Client implements the fetch capability.
var _ sources.Client = (*Client)(nil)

// New creates a new KKJ client.
func New(cfg Config, log logger.Interface) *Client {
	cfg = cfg.WithDefaults()
	return &Client{
		baseURL:    cfg.BaseURL,
		httpClient: &http.Client{Timeout: cfg.Timeout},
		gate:       sources.NewRateGate(cfg.RequestInterval),
		log:        log.WithComponent("kkj"),
	}
}

// Source returns the source identifier.
func (c *Client) Source() string { return sources.SourceKKJ }

// BuildParams converts query params into the flat API parameter map.
// Returns sources.ErrMissingAnchor when no anchor field is present.
func BuildParams(p models.QueryParams) (map[string]string, error) {
	if !p.HasAnchor() {
		return nil, sources.ErrMissingAnchor
	}

	params := map[string]string{}
	if p.Query != "" {
		params["Query"] = p.Query
	}
	if p.ProjectName != "" {
		params["Project_Name"] = p.ProjectName
	}
	if p.OrganizationName != "" {
		params["Organization_Name"] = p.OrganizationName
	}
	if p.LGCode != "" {
		params["LG_Code"] = p.LGCode
	}

	count := p.Count
	if count <= 0 || count > MaxCount {
		count = MaxCount
	}
	params["Count"] = strconv.Itoa(count)

	if p.Category != 0 {
		params["Category"] = strconv.Itoa(p.Category)
	}
	if p.ProcedureType != 0 {
		params["Procedure_Type"] = strconv.Itoa(p.ProcedureType)
	}
	if p.Certification != "" {
		params["Certification"] = p.Certification
	}
	if p.CFTIssueDate != "" {
		params["CFT_Issue_Date"] = p.CFTIssueDate
	}
	if p.TenderSubmissionDeadline != "" {
		params["Tender_Submission_Deadline"] = p.TenderSubmissionDeadline
	}
	if p.OpeningTendersEvent != "" {
		params["Opening_Tenders_Event"] = p.OpeningTendersEvent
	}
	if p.PeriodEndTime != "" {
		params["Period_End_Time"] = p.PeriodEndTime
	}

	return params, nil
}

// dateRangeParam renders a from/to pair as the API's range syntax.
// Open-ended ranges keep the separator: "from/", "/to".
func dateRangeParam(from, to string) string {
	switch {
	case from != "" && to != "":
		return from + "/" + to
	case from != "":
		return from + "/"
	case to != "":
		return "/" + to
	default:
		return ""
	}
}

// Fetch executes one query. The date range, when present, is carried
// in the CFT_Issue_Date parameter.
func (c *Client) Fetch(ctx context.Context, q sources.Query) (*sources.FetchResult, error) {
	params := q.Params
	if rangeParam := dateRangeParam(q.From, q.To); rangeParam != "" {
		params.CFTIssueDate = rangeParam
	}
	if q.Limit > 0 && (params.Count <= 0 || q.Limit < params.Count) {
		params.Count = q.Limit
	}

	apiParams, err := BuildParams(params)
	if err != nil {
		return nil, err
	}

	var body []byte
	var status int
	var contentType string

	fetchErr := sources.WithRetry(func() error {
		body, status, contentType, err = c.doRequest(ctx, apiParams)
		return err
	})
	if fetchErr != nil {
		return nil, fetchErr
	}

	response, parseErr := parseResponse(body)
	if parseErr != nil {
		return nil, parseErr
	}

	c.log.Debug("kkj fetch complete",
		"search_hits", response.TotalHits,
		"results", len(response.Records),
	)

	return &sources.FetchResult{
		Records:       response.Records,
		RawBody:       body,
		HTTPStatus:    status,
		ContentType:   contentType,
		TotalHits:     response.TotalHits,
		RequestParams: apiParams,
	}, nil
}

// doRequest performs one HTTP round trip under the rate gate.
func (c *Client) doRequest(ctx context.Context, params map[string]string) ([]byte, int, string, error) {
	if waitErr := c.gate.Wait(ctx); waitErr != nil {
		return nil, 0, "", waitErr
	}

	values := url.Values{}
	for k, v := range params {
		values.Set(k, v)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+values.Encode(), http.NoBody)
	if err != nil {
		return nil, 0, "", fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, "", &sources.TransportError{Err: err}
	}
	defer resp.Body.Close()

	body, readErr := io.ReadAll(resp.Body)
	c.gate.Stamp()
	if readErr != nil {
		return nil, 0, "", &sources.TransportError{Err: readErr}
	}

	if resp.StatusCode >= http.StatusBadRequest {
		preview := string(body)
		if len(preview) > errorBodyPreviewLen {
			preview = preview[:errorBodyPreviewLen]
		}
		return nil, 0, "", &sources.ProtocolError{StatusCode: resp.StatusCode, Message: preview}
	}

	contentType := resp.Header.Get("Content-Type")
	if contentType == "" {
		contentType = "application/xml"
	}
	return body, resp.StatusCode, contentType, nil
}
