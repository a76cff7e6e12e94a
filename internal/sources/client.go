// Package sources defines the fetch capability shared by all source
// clients, along with the rate limiting and retry policy that wrap
// every outbound request.
package sources

import (
	"context"

	"github.com/728jm2pczg-glitch/bid-aggregator/internal/models"
)

// Source identifiers.
const (
	SourceKKJ     = "kkj"
	SourcePPortal = "pportal"
)

// Query is the neutral query shape a client turns into a request.
// From/To bound the publish date; either side may be empty.
type Query struct {
	Params models.QueryParams
	From   string
	To     string
	Limit  int
}

// Attachment is a document attached to a source record.
type Attachment struct {
	Name string
	URI  string
}

// Record is one parsed announcement as reported by a source, before
// normalization. Raw date strings are kept verbatim; the normalizer
// owns parsing them.
type Record struct {
	Key          string
	URL          string
	Title        string
	Organization string
	PublishedRaw string
	DeadlineRaw  string
	Category     string
	Prefecture   string
	City         string
	Body         string
	Attachments  []Attachment
}

// FetchResult is the full outcome of one fetch: parsed records plus
// the raw payload so it can be independently archived, and the
// effective request parameters for fingerprinting.
type FetchResult struct {
	Records       []Record
	RawBody       []byte
	HTTPStatus    int
	ContentType   string
	TotalHits     int
	RequestParams map[string]string
}

// Client is the capability every source variant provides.
type Client interface {
	// Source returns the source identifier.
	Source() string
	// Fetch executes one query against the source.
	Fetch(ctx context.Context, q Query) (*FetchResult, error)
}
