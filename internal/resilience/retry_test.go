package resilience

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/rotisserie/eris"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastRetry(attempts int) RetryConfig {
	return RetryConfig{
		MaxAttempts:    attempts,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2.0,
	}
}

func TestDoValSucceedsAfterTransientFailures(t *testing.T) {
	calls := 0
	val, err := DoVal(context.Background(), fastRetry(3), func(context.Context) (string, error) {
		calls++
		if calls < 3 {
			return "", NewTransientError(eris.New("busy"), 503)
		}
		return "ok", nil
	})

	require.NoError(t, err)
	assert.Equal(t, "ok", val)
	assert.Equal(t, 3, calls)
}

func TestDoValStopsOnPermanentError(t *testing.T) {
	calls := 0
	_, err := DoVal(context.Background(), fastRetry(5), func(context.Context) (int, error) {
		calls++
		return 0, eris.New("not found")
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoValExhaustsAttempts(t *testing.T) {
	calls := 0
	_, err := DoVal(context.Background(), fastRetry(3), func(context.Context) (int, error) {
		calls++
		return 0, NewTransientError(eris.New("still busy"), 500)
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
	assert.Contains(t, err.Error(), "still busy")
}

func TestDoValContextCancelStopsRetries(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())

	calls := 0
	_, err := DoVal(ctx, fastRetry(10), func(context.Context) (int, error) {
		calls++
		cancel()
		return 0, NewTransientError(eris.New("busy"), 503)
	})

	require.Error(t, err)
	assert.Equal(t, 1, calls)
}

func TestDoValCustomShouldRetry(t *testing.T) {
	cfg := fastRetry(3)
	cfg.ShouldRetry = func(err error) bool { return err.Error() == "again" }

	calls := 0
	_, err := DoVal(context.Background(), cfg, func(context.Context) (int, error) {
		calls++
		return 0, eris.New("again")
	})

	require.Error(t, err)
	assert.Equal(t, 3, calls)
}

func TestDoWrapsDoVal(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastRetry(2), func(context.Context) error {
		calls++
		if calls == 1 {
			return NewTransientError(eris.New("busy"), 429)
		}
		return nil
	})

	require.NoError(t, err)
	assert.Equal(t, 2, calls)
}

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "deadline exceeded" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestIsTransient(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(eris.New("bad request")))
	assert.True(t, IsTransient(NewTransientError(eris.New("backend down"), 502)))
	assert.True(t, IsTransient(eris.Wrap(NewTransientError(eris.New("busy"), 429), "track: lookup")))
	assert.True(t, IsTransient(&net.OpError{Op: "dial", Err: timeoutErr{}}))
	assert.True(t, IsTransient(eris.New("read tcp: connection reset by peer")))
}

func TestIsTransientHTTPStatus(t *testing.T) {
	for _, code := range []int{408, 429, 500, 502, 503, 504} {
		assert.True(t, IsTransientHTTPStatus(code), "%d", code)
	}
	for _, code := range []int{200, 301, 400, 401, 404, 422} {
		assert.False(t, IsTransientHTTPStatus(code), "%d", code)
	}
}

func TestBackoffGrowsAndCaps(t *testing.T) {
	cfg := applyDefaults(RetryConfig{
		InitialBackoff: 100 * time.Millisecond,
		MaxBackoff:     300 * time.Millisecond,
		Multiplier:     2.0,
		JitterFraction: 0,
	})

	assert.Equal(t, 100*time.Millisecond, backoff(0, cfg))
	assert.Equal(t, 200*time.Millisecond, backoff(1, cfg))
	assert.Equal(t, 300*time.Millisecond, backoff(2, cfg))
	assert.Equal(t, 300*time.Millisecond, backoff(5, cfg))
}
