// Package rategovernor implements the Rate Governor:
// tick() yields a permit so that steady-state calls produce at most rate+1
// permits per wall-clock second, up to concurrency in flight simultaneously.
// Pacing is delegated to golang.org/x/time/rate.Limiter (the same token
// bucket adred-codev-ws_poc/ws/internal/shared/limits/connection_rate_limiter.go
// uses for connection-attempt throttling); concurrency is a buffered-channel
// semaphore. An epoch counter records the observed issuance rate into a
// stats.Stream every wall-clock second.
package rategovernor

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"github.com/magicblock-labs/redline/internal/stats"
)

// Governor paces and bounds concurrency for one engine's issuance of
// outbound requests.
type Governor struct {
	limiter *rate.Limiter
	sem     chan struct{}

	observed *stats.Stream

	mu         sync.Mutex
	count      uint32
	epochStart time.Time
}

// New constructs a governor targeting ratePerSec permits/second with up to
// concurrency permits outstanding at once. ratePerSec == 0 disables pacing
// (unlimited rate, still bounded by concurrency).
func New(ratePerSec uint32, concurrency int) *Governor {
	limit := rate.Inf
	if ratePerSec > 0 {
		limit = rate.Limit(ratePerSec)
	}
	return &Governor{
		limiter:    rate.NewLimiter(limit, 1),
		sem:        make(chan struct{}, concurrency),
		observed:   stats.NewStream(stats.KindThroughput),
		epochStart: time.Now(),
	}
}

// Permit is held by the caller for the life of one operation; Release
// returns the concurrency slot. It does not release the rate token (tokens
// are not held; rate.Limiter already spaces out Wait's return times).
type Permit struct {
	g *Governor
}

// Tick blocks until both a pacing token and a concurrency slot are
// available, then returns a Permit the caller must Release exactly once.
func (g *Governor) Tick(ctx context.Context) (*Permit, error) {
	if err := g.limiter.Wait(ctx); err != nil {
		return nil, err
	}
	g.recordIssuance()
	select {
	case g.sem <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return &Permit{g: g}, nil
}

// Release frees the concurrency slot held by this permit.
func (p *Permit) Release() {
	<-p.g.sem
}

func (g *Governor) recordIssuance() {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.count++
	now := time.Now()
	if now.Sub(g.epochStart) >= time.Second {
		g.observed.Observe(float64(g.count))
		g.count = 0
		g.epochStart = now
	}
}

// ObservedRate finalizes the per-second issuance-count stream collected
// across the run.
func (g *Governor) ObservedRate() stats.ObservationsStats {
	return g.observed.Finalize(true)
}
