package target

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/HashemBader/lccn-harvester/internal/ratelimit"
)

const maxResponseBytes = 8 << 20

// HTTPDoer is an interface for making HTTP requests.
type HTTPDoer interface {
	Do(*http.Request) (*http.Response, error)
}

// restClient carries the plumbing shared by the HTTP-based targets.
type restClient struct {
	baseURL    string
	httpClient HTTPDoer
	limiter    *ratelimit.Limiter
}

func newRESTClient(name, baseURL string, rps float64, timeout time.Duration, opts []Option) restClient {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	rc := restClient{
		baseURL:    baseURL,
		httpClient: &http.Client{Timeout: timeout},
		limiter:    ratelimit.New(name, rps),
	}
	for _, opt := range opts {
		opt(&rc)
	}
	return rc
}

// Option is a functional option for configuring an HTTP target.
type Option func(*restClient)

// WithBaseURL overrides the endpoint URL.
func WithBaseURL(base string) Option {
	return func(rc *restClient) {
		if base != "" {
			rc.baseURL = strings.TrimSuffix(base, "/")
		}
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(c HTTPDoer) Option {
	return func(rc *restClient) {
		if c != nil {
			rc.httpClient = c
		}
	}
}

// WithRateLimiter sets a custom rate limiter.
func WithRateLimiter(l *ratelimit.Limiter) Option {
	return func(rc *restClient) {
		if l != nil {
			rc.limiter = l
		}
	}
}

// get performs one rate-limited GET and returns the body and status
// code. Non-2xx statuses are returned to the caller, not turned into
// errors, because some targets use them as answers (404 = not held).
func (rc *restClient) get(ctx context.Context, url string) ([]byte, int, error) {
	if err := rc.limiter.Wait(ctx); err != nil {
		return nil, 0, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, 0, err
	}

	resp, err := rc.httpClient.Do(req)
	if err != nil {
		return nil, 0, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("reading response from %s: %w", url, err)
	}
	return body, resp.StatusCode, nil
}
