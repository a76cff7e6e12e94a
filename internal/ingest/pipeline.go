// Package ingest wires source clients, the raw-fetch archive, the
// normalizer, and the item store into the ingestion pipeline, and
// plans chunked full ingests over historical date ranges.
package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/728jm2pczg-glitch/bid-aggregator/internal/canonical"
	"github.com/728jm2pczg-glitch/bid-aggregator/internal/database"
	"github.com/728jm2pczg-glitch/bid-aggregator/internal/logger"
	"github.com/728jm2pczg-glitch/bid-aggregator/internal/models"
	"github.com/728jm2pczg-glitch/bid-aggregator/internal/normalizer"
	"github.com/728jm2pczg-glitch/bid-aggregator/internal/sources"
)

// resultCap is the per-request result ceiling shared by the sources.
// A chunk reporting this many hits may be truncated.
const resultCap = 1000

// QueryResult accumulates the outcome of one query execution. Skipped
// counts records lost to per-item failures (normalization or storage);
// ErrorChunks counts whole queries or windows that failed.
type QueryResult struct {
	Source      string
	APIHits     int
	Fetched     int
	New         int
	Updated     int
	Skipped     int
	ErrorChunks int
}

// Add folds a chunk outcome into a running total. API hits take the
// maximum rather than the sum: chunks overlap the same backing corpus
// and summing them would double-count.
func (r *QueryResult) Add(other QueryResult) {
	if other.APIHits > r.APIHits {
		r.APIHits = other.APIHits
	}
	r.Fetched += other.Fetched
	r.New += other.New
	r.Updated += other.Updated
	r.Skipped += other.Skipped
	r.ErrorChunks += other.ErrorChunks
}

// Pipeline executes ingestion queries end to end.
type Pipeline struct {
	clients    map[string]sources.Client
	normalizer *normalizer.Normalizer
	items      *database.ItemRepository
	raws       *database.RawFetchRepository
	log        logger.Interface
	dryRun     bool
}

// NewPipeline creates a Pipeline over the given source clients.
func NewPipeline(
	clients []sources.Client,
	norm *normalizer.Normalizer,
	items *database.ItemRepository,
	raws *database.RawFetchRepository,
	log logger.Interface,
	dryRun bool,
) *Pipeline {
	byName := make(map[string]sources.Client, len(clients))
	for _, c := range clients {
		byName[c.Source()] = c
	}
	return &Pipeline{
		clients:    byName,
		normalizer: norm,
		items:      items,
		raws:       raws,
		log:        log.WithComponent("ingest"),
		dryRun:     dryRun,
	}
}

// RunQuery executes one configured query: fetch, archive the raw
// payload, normalize, and upsert. In dry-run mode nothing is written
// but fetch and normalization still run so counts are real.
func (p *Pipeline) RunQuery(ctx context.Context, q models.QueryConfig) (*QueryResult, error) {
	client, ok := p.clients[q.Source]
	if !ok {
		return nil, fmt.Errorf("unknown source %q for query %q", q.Source, q.Name)
	}

	query := sources.Query{Params: q.Params, Limit: q.Limit}
	if q.DateRange != nil {
		query.From = q.DateRange.From
		query.To = q.DateRange.To
	}

	return p.run(ctx, client, query, q.Name)
}

func (p *Pipeline) run(ctx context.Context, client sources.Client, query sources.Query, name string) (*QueryResult, error) {
	log := p.log.With("query", name, "source", client.Source())

	fetched, err := client.Fetch(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %q: %w", name, err)
	}

	result := &QueryResult{
		Source:  client.Source(),
		APIHits: fetched.TotalHits,
		Fetched: len(fetched.Records),
	}

	if !p.dryRun {
		raw := &models.RawFetch{
			Source:             client.Source(),
			FetchedAt:          time.Now().UTC(),
			RequestFingerprint: canonical.RequestFingerprint(client.Source(), fetched.RequestParams),
			HTTPStatus:         fetched.HTTPStatus,
			ContentType:        fetched.ContentType,
			RawHash:            canonical.RawHash(fetched.RawBody),
			RawPayload:         fetched.RawBody,
		}
		if _, err := p.raws.Save(ctx, raw); err != nil {
			return nil, fmt.Errorf("failed to archive raw fetch: %w", err)
		}
	}

	items, normErrs := p.normalizer.NormalizeBatch(fetched.Records, client.Source())
	result.Skipped = len(normErrs)

	for _, item := range items {
		if p.dryRun {
			result.New++
			continue
		}
		_, isNew, err := p.items.Upsert(ctx, item)
		if err != nil {
			// One bad row never takes down the batch.
			log.Error("failed to store item", "title", item.Title, "error", err)
			result.Skipped++
			continue
		}
		if isNew {
			result.New++
		} else {
			result.Updated++
		}
	}

	log.Info("query complete",
		"api_hits", result.APIHits,
		"fetched", result.Fetched,
		"new", result.New,
		"updated", result.Updated,
		"skipped", result.Skipped,
		"dry_run", p.dryRun,
	)

	return result, nil
}

// RunAll executes every enabled query, isolating failures: a failed
// query is logged and counted, the rest still run.
func (p *Pipeline) RunAll(ctx context.Context, queries []models.QueryConfig) (*QueryResult, error) {
	total := &QueryResult{}
	for _, q := range queries {
		if !q.Enabled {
			p.log.Debug("skipping disabled query", "query", q.Name)
			continue
		}
		result, err := p.RunQuery(ctx, q)
		if err != nil {
			p.log.Error("query failed", "query", q.Name, "error", err)
			total.ErrorChunks++
			continue
		}
		total.Add(*result)
	}
	return total, nil
}

// FullIngest runs one query over a historical date range in windows.
type FullIngest struct {
	pipeline *Pipeline
	log      logger.Interface
}

// NewFullIngest creates a FullIngest over a pipeline.
func NewFullIngest(pipeline *Pipeline, log logger.Interface) *FullIngest {
	return &FullIngest{pipeline: pipeline, log: log.WithComponent("fullingest")}
}

// Run splits [from, to] into windows and runs the query once per
// window. A failed window is recorded and skipped; a window that
// fetches the full result cap gets a truncation warning but is never
// re-split.
func (f *FullIngest) Run(ctx context.Context, q models.QueryConfig, from, to string, daysPerChunk int) (*QueryResult, error) {
	chunks, err := SplitDateRange(from, to, daysPerChunk)
	if err != nil {
		return nil, err
	}

	f.log.Info("full ingest starting",
		"query", q.Name,
		"from", from,
		"to", to,
		"chunks", len(chunks),
	)

	total := &QueryResult{Source: q.Source}
	for i, chunk := range chunks {
		if ctx.Err() != nil {
			return total, ctx.Err()
		}

		chunkQuery := q
		chunkQuery.DateRange = &models.DateRange{From: chunk.From, To: chunk.To}

		result, err := f.pipeline.RunQuery(ctx, chunkQuery)
		if err != nil {
			f.log.Error("chunk failed",
				"query", q.Name,
				"chunk", i+1,
				"from", chunk.From,
				"to", chunk.To,
				"error", err,
			)
			total.ErrorChunks++
			continue
		}

		if result.Fetched >= resultCap {
			f.log.Warn("chunk may be truncated at the result cap",
				"query", q.Name,
				"from", chunk.From,
				"to", chunk.To,
				"fetched", result.Fetched,
			)
		}

		total.Add(*result)
	}

	f.log.Info("full ingest complete",
		"query", q.Name,
		"chunks", len(chunks),
		"error_chunks", total.ErrorChunks,
		"new", total.New,
		"updated", total.Updated,
	)

	return total, nil
}
