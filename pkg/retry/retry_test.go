package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/harhitroot/tgexport/pkg/errors"
	"github.com/harhitroot/tgexport/pkg/logger"
)

func testConfig() *Config {
	return &Config{
		MaxAttempts: 3,
		Backoff:     &ConstantBackoff{Delay: time.Millisecond},
		RetryIf:     DefaultRetryIf,
		Logger:      logger.Nop(),
	}
}

func TestDoSucceedsFirstTry(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		calls++
		return nil
	}, testConfig())

	require.NoError(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoRetriesUntilSuccess(t *testing.T) {
	calls := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		calls++
		if calls < 3 {
			return apperrors.New(apperrors.KindNetwork, "transient")
		}
		return nil
	}, testConfig())

	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoExhaustsAttemptsAndReturnsLastErrorUnchanged(t *testing.T) {
	last := apperrors.New(apperrors.KindNetwork, "still broken")
	calls := 0
	err := Do(context.Background(), func(ctx context.Context) error {
		calls++
		return last
	}, testConfig())

	assert.Equal(t, 3, calls)
	// terminal failure must be the last error itself, not a wrapper
	assert.Equal(t, error(last), err)
}

func TestDoDoesNotRetryNonRetryable(t *testing.T) {
	calls := 0
	fatal := apperrors.New(apperrors.KindFatal, "missing channel")
	err := Do(context.Background(), func(ctx context.Context) error {
		calls++
		return fatal
	}, testConfig())

	assert.Equal(t, 1, calls)
	assert.Equal(t, error(fatal), err)
}

func TestDoDoesNotRetryFloodWait(t *testing.T) {
	calls := 0
	flood := &apperrors.FloodWaitError{Wait: 45 * time.Second}
	err := Do(context.Background(), func(ctx context.Context) error {
		calls++
		return flood
	}, testConfig())

	assert.Equal(t, 1, calls)
	wait, ok := apperrors.FloodWait(err)
	require.True(t, ok)
	assert.Equal(t, 45*time.Second, wait)
}

func TestDoStopsOnCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0

	cfg := testConfig()
	cfg.Backoff = &ConstantBackoff{Delay: time.Hour}

	errc := make(chan error, 1)
	go func() {
		errc <- Do(ctx, func(ctx context.Context) error {
			calls++
			return apperrors.New(apperrors.KindNetwork, "transient")
		}, cfg)
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-errc:
		assert.ErrorIs(t, err, context.Canceled)
		assert.Equal(t, 1, calls)
	case <-time.After(time.Second):
		t.Fatal("retry did not observe context cancellation")
	}
}

func TestDoConsultsGateBeforeEveryAttempt(t *testing.T) {
	gate := &countingGate{}
	cfg := testConfig()
	cfg.Gate = gate

	_ = Do(context.Background(), func(ctx context.Context) error {
		return apperrors.New(apperrors.KindNetwork, "transient")
	}, cfg)

	assert.Equal(t, 3, gate.calls)
}

type countingGate struct{ calls int }

func (g *countingGate) Gate(ctx context.Context) error { g.calls++; return nil }
func (g *countingGate) Reset()                         {}

func TestDoOnRetryCallback(t *testing.T) {
	var attempts []int
	cfg := testConfig()
	cfg.OnRetry = func(attempt int, err error, delay time.Duration) {
		attempts = append(attempts, attempt)
	}

	_ = Do(context.Background(), func(ctx context.Context) error {
		return apperrors.New(apperrors.KindNetwork, "transient")
	}, cfg)

	// Retried after attempts 1 and 2; attempt 3 is terminal
	assert.Equal(t, []int{1, 2}, attempts)
}

func TestExponentialBackoffDoubles(t *testing.T) {
	eb := &ExponentialBackoff{
		BaseDelay:  time.Second,
		Multiplier: 2.0,
	}

	prev := eb.NextDelay(1)
	assert.Equal(t, time.Second, prev)
	for attempt := 2; attempt <= 6; attempt++ {
		d := eb.NextDelay(attempt)
		assert.Equal(t, 2*prev, d, "attempt %d", attempt)
		prev = d
	}
}

func TestExponentialBackoffJitterBounds(t *testing.T) {
	eb := &ExponentialBackoff{
		BaseDelay:  time.Second,
		Multiplier: 2.0,
		Jitter:     time.Second,
	}

	for i := 0; i < 100; i++ {
		d := eb.NextDelay(1)
		assert.GreaterOrEqual(t, d, time.Second)
		assert.Less(t, d, 2*time.Second)
	}
}

func TestExponentialBackoffMaxDelayCap(t *testing.T) {
	eb := &ExponentialBackoff{
		BaseDelay:  time.Second,
		Multiplier: 2.0,
		MaxDelay:   4 * time.Second,
	}

	assert.Equal(t, 4*time.Second, eb.NextDelay(10))
}

func TestDoWithResult(t *testing.T) {
	calls := 0
	got, err := DoWithResult(context.Background(), func(ctx context.Context) (string, error) {
		calls++
		if calls < 2 {
			return "", apperrors.New(apperrors.KindNetwork, "transient")
		}
		return "page", nil
	}, testConfig())

	require.NoError(t, err)
	assert.Equal(t, "page", got)
	assert.Equal(t, 2, calls)
}

func TestDefaultRetryIf(t *testing.T) {
	assert.False(t, DefaultRetryIf(nil))
	assert.False(t, DefaultRetryIf(context.Canceled))
	assert.False(t, DefaultRetryIf(&apperrors.FloodWaitError{Wait: time.Second}))
	assert.False(t, DefaultRetryIf(apperrors.New(apperrors.KindAuth, "unauthorized")))
	assert.True(t, DefaultRetryIf(apperrors.New(apperrors.KindNetwork, "reset")))
	assert.True(t, DefaultRetryIf(errors.New("unclassified")))
}
