// Package track resolves package tracking numbers into normalized tracking
// snapshots. A remote HTTP provider is used when an API key is configured;
// the deterministic simulator covers offline use.
package track

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"golang.org/x/time/rate"

	"github.com/aliscan/aliscan-cli/internal/model"
	"github.com/aliscan/aliscan-cli/internal/resilience"
)

// Client defines tracking lookups.
type Client interface {
	// Track resolves one tracking number into a snapshot.
	Track(ctx context.Context, number string) (*model.Tracking, error)
}

// Option configures the HTTP tracking client.
type Option func(*httpClient)

// WithBaseURL sets a custom base URL (for testing).
func WithBaseURL(u string) Option {
	return func(c *httpClient) {
		c.baseURL = u
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *httpClient) {
		c.http = hc
	}
}

// WithRateLimit overrides the request rate limit.
func WithRateLimit(limit rate.Limit, burst int) Option {
	return func(c *httpClient) {
		c.limiter = rate.NewLimiter(limit, burst)
	}
}

// WithRetry overrides the retry policy for provider calls.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(c *httpClient) {
		c.retry = cfg
	}
}

type httpClient struct {
	apiKey  string
	baseURL string
	http    *http.Client
	limiter *rate.Limiter
	retry   resilience.RetryConfig
	now     func() time.Time
}

// NewClient creates a tracking client against the remote provider. Lookups
// are rate limited to stay inside free-plan quotas, and transient provider
// failures are retried with backoff.
func NewClient(apiKey string, opts ...Option) Client {
	retry := resilience.DefaultRetryConfig()
	retry.OnRetry = resilience.RetryLogger("tracking", "lookup")

	c := &httpClient{
		apiKey:  apiKey,
		baseURL: "https://api.aliscan.dev/v1",
		http: &http.Client{
			Timeout: 15 * time.Second,
		},
		limiter: rate.NewLimiter(rate.Every(2*time.Second), 3),
		retry:   retry,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type apiTracking struct {
	Number  string `json:"number"`
	Carrier string `json:"carrier"`
	Status  string `json:"status"`
	Events  []struct {
		Time        time.Time `json:"time"`
		Location    string    `json:"location"`
		Description string    `json:"description"`
	} `json:"events"`
}

func (c *httpClient) Track(ctx context.Context, number string) (*model.Tracking, error) {
	number = strings.TrimSpace(number)
	if err := ValidateNumber(number); err != nil {
		return nil, err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "track: rate limiter")
	}

	at, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) (apiTracking, error) {
		return c.fetch(ctx, number)
	})
	if err != nil {
		return nil, err
	}

	t := &model.Tracking{
		Number:    number,
		Carrier:   at.Carrier,
		Status:    at.Status,
		FetchedAt: c.now().UTC(),
	}
	for _, ev := range at.Events {
		t.Events = append(t.Events, model.TrackingEvent{
			Time:        ev.Time,
			Location:    ev.Location,
			Description: ev.Description,
		})
	}
	return t, nil
}

// fetch performs one provider round trip. Transient statuses come back as
// resilience.TransientError so the retry loop knows to try again.
func (c *httpClient) fetch(ctx context.Context, number string) (apiTracking, error) {
	var at apiTracking

	reqURL := fmt.Sprintf("%s/trackings/%s", c.baseURL, url.PathEscape(number))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return at, eris.Wrap(err, "track: create request")
	}
	req.Header.Set("Authorization", "Bearer "+c.apiKey)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return at, eris.Wrap(err, "track: request failed")
	}
	defer resp.Body.Close() //nolint:errcheck

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return at, eris.Wrap(err, "track: read response")
	}

	switch {
	case resp.StatusCode == http.StatusOK:
	case resp.StatusCode == http.StatusNotFound:
		return at, eris.Errorf("track: number %s not found", number)
	case resilience.IsTransientHTTPStatus(resp.StatusCode):
		return at, resilience.NewTransientError(
			eris.Errorf("track: provider status %d", resp.StatusCode), resp.StatusCode)
	default:
		return at, eris.Errorf("track: unexpected status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.Unmarshal(body, &at); err != nil {
		return at, eris.Wrap(err, "track: unmarshal response")
	}
	return at, nil
}

// ValidateNumber rejects obviously malformed tracking numbers before any
// network round trip.
func ValidateNumber(number string) error {
	if len(number) < 6 || len(number) > 40 {
		return eris.New("track: tracking number must be 6 to 40 characters")
	}
	for _, r := range number {
		if !(r >= '0' && r <= '9' || r >= 'A' && r <= 'Z' || r >= 'a' && r <= 'z' || r == '-') {
			return eris.Errorf("track: invalid character %q in tracking number", r)
		}
	}
	return nil
}
