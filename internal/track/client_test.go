package track

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/aliscan/aliscan-cli/internal/resilience"
)

func TestClientTrack(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/trackings/LP001234567CN", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		_, err := w.Write([]byte(`{
			"number": "LP001234567CN",
			"carrier": "Cainiao",
			"status": "En transit",
			"events": [
				{"time": "2026-08-20T10:00:00Z", "location": "Shenzhen, CN", "description": "Colis pris en charge"}
			]
		}`))
		require.NoError(t, err)
	}))
	defer srv.Close()

	c := NewClient("test-key",
		WithBaseURL(srv.URL+"/v1"),
		WithRateLimit(rate.Inf, 1),
	)

	tr, err := c.Track(context.Background(), "LP001234567CN")
	require.NoError(t, err)
	assert.Equal(t, "LP001234567CN", tr.Number)
	assert.Equal(t, "Cainiao", tr.Carrier)
	assert.Equal(t, "En transit", tr.Status)
	require.Len(t, tr.Events, 1)
	assert.Equal(t, "Shenzhen, CN", tr.Events[0].Location)
	assert.False(t, tr.FetchedAt.IsZero())
}

func TestClientTrackNotFound(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := NewClient("test-key", WithBaseURL(srv.URL), WithRateLimit(rate.Inf, 1))

	_, err := c.Track(context.Background(), "LP000000000CN")
	assert.Error(t, err)
}

func TestClientTrackRetriesTransientStatus(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) == 1 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, err := w.Write([]byte(`{"number": "LP001234567CN", "status": "Livré"}`))
		require.NoError(t, err)
	}))
	defer srv.Close()

	c := NewClient("test-key",
		WithBaseURL(srv.URL),
		WithRateLimit(rate.Inf, 1),
		WithRetry(resilience.RetryConfig{
			MaxAttempts:    3,
			InitialBackoff: time.Millisecond,
			MaxBackoff:     5 * time.Millisecond,
		}),
	)

	tr, err := c.Track(context.Background(), "LP001234567CN")
	require.NoError(t, err)
	assert.Equal(t, "Livré", tr.Status)
	assert.Equal(t, int32(2), calls.Load())
}

func TestClientTrackDoesNotRetryNotFound(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.NotFound(w, r)
	}))
	defer srv.Close()

	c := NewClient("test-key",
		WithBaseURL(srv.URL),
		WithRateLimit(rate.Inf, 1),
		WithRetry(resilience.RetryConfig{MaxAttempts: 3, InitialBackoff: time.Millisecond}),
	)

	_, err := c.Track(context.Background(), "LP000000000CN")
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestValidateNumber(t *testing.T) {
	assert.NoError(t, ValidateNumber("LP001234567CN"))
	assert.NoError(t, ValidateNumber("1Z-999-AA10"))
	assert.Error(t, ValidateNumber(""))
	assert.Error(t, ValidateNumber("abc"))
	assert.Error(t, ValidateNumber("LP00!234"))
}

func TestSimulatorDeterministic(t *testing.T) {
	sim := NewSimulator()

	a, err := sim.Track(context.Background(), "LP001234567CN")
	require.NoError(t, err)
	b, err := sim.Track(context.Background(), "LP001234567CN")
	require.NoError(t, err)

	assert.Equal(t, a.Status, b.Status)
	assert.Equal(t, a.Carrier, b.Carrier)
	assert.Len(t, b.Events, len(a.Events))
	assert.Equal(t, "Cainiao", a.Carrier)
	assert.NotEmpty(t, a.Events, "at least the first stage is always present")
}

func TestSimulatorRejectsBadNumbers(t *testing.T) {
	sim := NewSimulator()
	_, err := sim.Track(context.Background(), "x")
	assert.Error(t, err)
}
