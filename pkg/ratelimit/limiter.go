package ratelimit

import (
	"context"
	"math/rand"
	"sync"
	"time"
)

// Limiter gates outbound requests
type Limiter interface {
	// Gate is called before every outbound request. It either records the
	// request and returns immediately, or suspends the caller for a
	// cooldown period when request velocity exceeds the threshold.
	Gate(ctx context.Context) error
	// Reset resets the limiter state
	Reset()
}

// RequestGate is a coarse token-bucket approximation: it tolerates bursts
// of up to maxRequests inside the trailing window, then forces a full
// cooldown (plus jitter) and starts a fresh window. It is deliberately not
// a precise limiter.
type RequestGate struct {
	maxRequests int
	window      time.Duration
	cooldown    time.Duration

	mu          sync.Mutex
	count       int
	windowStart time.Time

	now    func() time.Time
	sleep  func(ctx context.Context, d time.Duration) error
	jitter func() time.Duration
}

// NewRequestGate creates a gate allowing maxRequests per trailing window,
// penalizing excess with the given cooldown.
func NewRequestGate(maxRequests int, window, cooldown time.Duration) *RequestGate {
	return &RequestGate{
		maxRequests: maxRequests,
		window:      window,
		cooldown:    cooldown,
		now:         time.Now,
		sleep:       sleepContext,
		jitter: func() time.Duration {
			return time.Duration(rand.Int63n(int64(time.Second)))
		},
	}
}

// Gate records a request or suspends the caller for a cooldown
func (g *RequestGate) Gate(ctx context.Context) error {
	g.mu.Lock()

	now := g.now()
	if g.windowStart.IsZero() || now.Sub(g.windowStart) > g.window {
		g.count = 0
		g.windowStart = now
	}

	if g.count >= g.maxRequests {
		delay := g.cooldown + g.jitter()
		g.count = 0
		g.windowStart = now.Add(delay)
		g.mu.Unlock()
		return g.sleep(ctx, delay)
	}

	g.count++
	g.mu.Unlock()
	return nil
}

// Reset clears the counter and the trailing window
func (g *RequestGate) Reset() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.count = 0
	g.windowStart = time.Time{}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
