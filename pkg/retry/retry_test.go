package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig() Config {
	return Config{
		Enabled:      true,
		MaxAttempts:  3,
		InitialDelay: time.Millisecond,
		MaxDelay:     5 * time.Millisecond,
		Multiplier:   2.0,
	}
}

func TestDoSucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(), func() error {
		calls++
		if calls < 3 {
			return errors.New("transient")
		}
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoGivesUpAfterMaxAttempts(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(), func() error {
		calls++
		return errors.New("still broken")
	})
	require.Error(t, err)
	assert.Equal(t, 4, calls) // initial try + 3 retries
	assert.Contains(t, err.Error(), "max attempts")
}

func TestDoStopsOnPermanentError(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastConfig(), func() error {
		calls++
		return NonRetryable(errors.New("bad stream key"))
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
	assert.Contains(t, err.Error(), "non-retryable")
}

func TestDoRespectsContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := Do(ctx, fastConfig(), func() error {
		return errors.New("never succeeds")
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestDoWithResult(t *testing.T) {
	calls := 0
	got, err := DoWithResult(context.Background(), fastConfig(), func() (string, error) {
		calls++
		if calls == 1 {
			return "", errors.New("not yet")
		}
		return "creds", nil
	})
	require.NoError(t, err)
	assert.Equal(t, "creds", got)
}

func TestDisabledRunsOnce(t *testing.T) {
	cfg := fastConfig()
	cfg.Enabled = false
	calls := 0
	err := Do(context.Background(), cfg, func() error {
		calls++
		return errors.New("nope")
	})
	require.Error(t, err)
	assert.Equal(t, 1, calls)
}
