package ingest

import (
	"fmt"
	"time"
)

// DefaultDaysPerChunk is the default window size for full ingests.
const DefaultDaysPerChunk = 7

const dateLayout = "2006-01-02"

// Chunk is one date window of a full ingest. Bounds are inclusive.
type Chunk struct {
	From string
	To   string
}

// SplitDateRange slices an inclusive date range into consecutive
// windows of at most daysPerChunk days each. The final window is
// clamped to the range end.
func SplitDateRange(from, to string, daysPerChunk int) ([]Chunk, error) {
	if daysPerChunk <= 0 {
		daysPerChunk = DefaultDaysPerChunk
	}

	start, err := time.Parse(dateLayout, from)
	if err != nil {
		return nil, fmt.Errorf("invalid from date %q: %w", from, err)
	}
	end, err := time.Parse(dateLayout, to)
	if err != nil {
		return nil, fmt.Errorf("invalid to date %q: %w", to, err)
	}
	if end.Before(start) {
		return nil, fmt.Errorf("date range end %s precedes start %s", to, from)
	}

	var chunks []Chunk
	for cursor := start; !cursor.After(end); cursor = cursor.AddDate(0, 0, daysPerChunk) {
		chunkEnd := cursor.AddDate(0, 0, daysPerChunk-1)
		if chunkEnd.After(end) {
			chunkEnd = end
		}
		chunks = append(chunks, Chunk{
			From: cursor.Format(dateLayout),
			To:   chunkEnd.Format(dateLayout),
		})
	}
	return chunks, nil
}

// EstimateChunks returns the chunk count for a range without building
// the slice: ceil(days / daysPerChunk) over the inclusive day count.
func EstimateChunks(from, to string, daysPerChunk int) (int, error) {
	if daysPerChunk <= 0 {
		daysPerChunk = DefaultDaysPerChunk
	}
	start, err := time.Parse(dateLayout, from)
	if err != nil {
		return 0, fmt.Errorf("invalid from date %q: %w", from, err)
	}
	end, err := time.Parse(dateLayout, to)
	if err != nil {
		return 0, fmt.Errorf("invalid to date %q: %w", to, err)
	}
	if end.Before(start) {
		return 0, fmt.Errorf("date range end %s precedes start %s", to, from)
	}
	days := int(end.Sub(start).Hours()/24) + 1
	return (days + daysPerChunk - 1) / daysPerChunk, nil
}
