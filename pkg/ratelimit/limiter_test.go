package ratelimit

import (
	"context"
	"testing"
	"time"
)

// testGate returns a gate with a controllable clock and recorded sleeps.
func testGate(maxRequests int, window, cooldown time.Duration) (*RequestGate, *time.Time, *[]time.Duration) {
	now := time.Unix(1000, 0)
	var slept []time.Duration

	g := NewRequestGate(maxRequests, window, cooldown)
	g.now = func() time.Time { return now }
	g.sleep = func(ctx context.Context, d time.Duration) error {
		slept = append(slept, d)
		now = now.Add(d)
		return nil
	}
	g.jitter = func() time.Duration { return 0 }

	return g, &now, &slept
}

func TestGateAllowsBurst(t *testing.T) {
	g, _, slept := testGate(10, time.Minute, time.Minute)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if err := g.Gate(ctx); err != nil {
			t.Fatalf("request %d: unexpected error: %v", i+1, err)
		}
	}

	if len(*slept) != 0 {
		t.Errorf("expected no cooldown within the burst, got %v", *slept)
	}
}

func TestGateForcesCooldown(t *testing.T) {
	g, _, slept := testGate(10, time.Minute, time.Minute)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if err := g.Gate(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	// Request 11 inside the window must suspend for the cooldown
	if err := g.Gate(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(*slept) != 1 {
		t.Fatalf("expected exactly one cooldown, got %d", len(*slept))
	}
	if (*slept)[0] != time.Minute {
		t.Errorf("expected 60s cooldown, got %v", (*slept)[0])
	}

	// The counter resets after a cooldown: another burst passes freely
	for i := 0; i < 10; i++ {
		if err := g.Gate(ctx); err != nil {
			t.Fatalf("post-cooldown request %d: %v", i+1, err)
		}
	}
	if len(*slept) != 1 {
		t.Errorf("expected counter reset after cooldown, got extra sleeps: %v", *slept)
	}
}

func TestGateWindowExpiry(t *testing.T) {
	g, now, slept := testGate(10, time.Minute, time.Minute)
	ctx := context.Background()

	for i := 0; i < 10; i++ {
		if err := g.Gate(ctx); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	// Once the trailing window has passed, the counter starts fresh
	*now = now.Add(61 * time.Second)
	if err := g.Gate(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(*slept) != 0 {
		t.Errorf("expected no cooldown after window expiry, got %v", *slept)
	}
}

func TestGateReset(t *testing.T) {
	g, _, slept := testGate(2, time.Minute, time.Minute)
	ctx := context.Background()

	_ = g.Gate(ctx)
	_ = g.Gate(ctx)
	g.Reset()
	_ = g.Gate(ctx)

	if len(*slept) != 0 {
		t.Errorf("expected reset to clear the counter, got sleeps: %v", *slept)
	}
}

func TestGateCancelledContext(t *testing.T) {
	g := NewRequestGate(1, time.Minute, time.Minute)

	ctx, cancel := context.WithCancel(context.Background())
	if err := g.Gate(ctx); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	cancel()

	if err := g.Gate(ctx); err == nil {
		t.Error("expected context error during cooldown")
	}
}
