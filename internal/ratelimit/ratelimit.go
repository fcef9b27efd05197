// Package ratelimit serializes outbound request timing against the Zotero API.
//
// The API contract has two parts: a fixed minimum spacing between requests,
// and server-directed cooldown windows delivered via Backoff/Retry-After
// headers. A Gate enforces both.
package ratelimit

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// DefaultInterval is the minimum spacing between consecutive requests.
const DefaultInterval = time.Second

// Gate enforces a minimum inter-request interval plus any server-directed
// backoff window. One Gate guards one client instance; every outbound
// request must pass through Wait before touching the network.
type Gate struct {
	limiter *rate.Limiter

	mu           sync.Mutex
	backoffUntil time.Time
}

// New creates a Gate with the given minimum spacing between requests.
// A non-positive interval selects DefaultInterval.
func New(interval time.Duration) *Gate {
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Gate{limiter: rate.NewLimiter(rate.Every(interval), 1)}
}

// Wait blocks until both the backoff window and the spacing interval permit
// a request, then consumes the spacing slot. Safe for concurrent use: two
// callers can never both observe a clear-to-send state for the same slot.
func (g *Gate) Wait(ctx context.Context) error {
	g.mu.Lock()
	delay := time.Until(g.backoffUntil)
	g.mu.Unlock()

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}

	return g.limiter.Wait(ctx)
}

// Backoff extends the cooldown window to now+d. A shorter window never
// shrinks an existing one.
func (g *Gate) Backoff(d time.Duration) {
	if d <= 0 {
		return
	}
	until := time.Now().Add(d)
	g.mu.Lock()
	if until.After(g.backoffUntil) {
		g.backoffUntil = until
	}
	g.mu.Unlock()
}

// BackoffRemaining reports how much of the current cooldown window is left.
func (g *Gate) BackoffRemaining() time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	if d := time.Until(g.backoffUntil); d > 0 {
		return d
	}
	return 0
}
