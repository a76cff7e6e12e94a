package sources

import (
	"context"
	"sync"
	"time"
)

// RateGate enforces a minimum interval between outbound requests,
// measured from the end of the previous request. Each client instance
// owns one gate; the mutex only matters if an instance is ever shared
// across goroutines.
type RateGate struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
}

// NewRateGate creates a gate with the given minimum interval.
func NewRateGate(interval time.Duration) *RateGate {
	return &RateGate{interval: interval}
}

// Wait blocks until the interval since the previous Stamp has elapsed,
// or the context is canceled.
func (g *RateGate) Wait(ctx context.Context) error {
	g.mu.Lock()
	var remaining time.Duration
	if !g.last.IsZero() {
		remaining = g.interval - time.Since(g.last)
	}
	g.mu.Unlock()

	if remaining <= 0 {
		return nil
	}

	timer := time.NewTimer(remaining)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Stamp records the end of a request.
func (g *RateGate) Stamp() {
	g.mu.Lock()
	g.last = time.Now()
	g.mu.Unlock()
}
