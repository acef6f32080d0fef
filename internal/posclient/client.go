// Package posclient provides the shared HTTP client used by every POS
// provider adapter. It injects credentials, throttles outbound calls and
// retries rate-limited responses with exponential backoff.
package posclient

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"time"

	"github.com/Mizan-AI-Org/Mizan-BE-sub001/internal/model"
	"github.com/Mizan-AI-Org/Mizan-BE-sub001/prometheus"

	"golang.org/x/time/rate"
)

// ErrUnauthorized is returned when the provider rejects our credentials.
// The caller must not retry; the auth failure has already been reported.
var ErrUnauthorized = errors.New("posclient: unauthorized")

// APIError is a non-2xx provider response other than 401 and 429.
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("posclient: provider returned %d: %s", e.Status, truncate(e.Body, 200))
}

// AuthFailureReporter is invoked once per 401 so the connection can be
// flagged for re-authorization. Implemented by the oauth lifecycle.
type AuthFailureReporter interface {
	MarkAuthFailed(ctx context.Context, restaurantID string, provider model.POSProvider, detail string)
}

const (
	maxAttempts    = 5
	baseBackoff    = time.Second
	maxBackoff     = 30 * time.Second
	requestTimeout = 15 * time.Second
)

// Client issues authenticated requests against one provider API on behalf
// of one restaurant.
type Client struct {
	restaurantID string
	provider     model.POSProvider
	baseURL      string
	token        string
	headers      map[string]string
	limiter      *rate.Limiter
	httpClient   *http.Client
	reporter     AuthFailureReporter
	sleep        func(context.Context, time.Duration) error
}

// Options configures a Client.
type Options struct {
	RestaurantID string
	Provider     model.POSProvider
	BaseURL      string
	AccessToken  string
	// Headers are added to every request, e.g. the Square-Version pin.
	Headers map[string]string
	// RatePerSecond caps outbound calls. Zero means the provider default.
	RatePerSecond float64
	Reporter      AuthFailureReporter
	HTTPClient    *http.Client
}

// New builds a Client for one restaurant+provider pair.
func New(opts Options) *Client {
	rps := opts.RatePerSecond
	if rps <= 0 {
		rps = 10
	}
	hc := opts.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: requestTimeout}
	}
	return &Client{
		restaurantID: opts.RestaurantID,
		provider:     opts.Provider,
		baseURL:      opts.BaseURL,
		token:        opts.AccessToken,
		headers:      opts.Headers,
		limiter:      rate.NewLimiter(rate.Limit(rps), int(rps)+1),
		httpClient:   hc,
		reporter:     opts.Reporter,
		sleep:        sleepCtx,
	}
}

// Get issues a GET against path (relative to the base URL) and returns the
// response body.
func (c *Client) Get(ctx context.Context, path string) ([]byte, error) {
	return c.do(ctx, http.MethodGet, path, nil)
}

// Post issues a POST with a JSON body.
func (c *Client) Post(ctx context.Context, path string, body []byte) ([]byte, error) {
	return c.do(ctx, http.MethodPost, path, body)
}

// Put issues a PUT with a JSON body.
func (c *Client) Put(ctx context.Context, path string, body []byte) ([]byte, error) {
	return c.do(ctx, http.MethodPut, path, body)
}

func (c *Client) do(ctx context.Context, method, path string, body []byte) ([]byte, error) {
	var lastErr error
	backoff := baseBackoff

	for attempt := 0; attempt < maxAttempts; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, err
		}

		respBody, status, err := c.roundTrip(ctx, method, path, body)
		if err != nil {
			return nil, err
		}

		switch {
		case status >= 200 && status < 300:
			return respBody, nil

		case status == http.StatusUnauthorized:
			if c.reporter != nil {
				c.reporter.MarkAuthFailed(ctx, c.restaurantID, c.provider, truncate(string(respBody), 200))
			}
			return nil, fmt.Errorf("%w: %s", ErrUnauthorized, truncate(string(respBody), 200))

		case status == http.StatusTooManyRequests:
			prometheus.RecordProviderRetry(string(c.provider))
			lastErr = &APIError{Status: status, Body: string(respBody)}
			if err := c.sleep(ctx, jitter(backoff)); err != nil {
				return nil, err
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}

		default:
			return nil, &APIError{Status: status, Body: string(respBody)}
		}
	}
	return nil, lastErr
}

func (c *Client) roundTrip(ctx context.Context, method, path string, body []byte) ([]byte, int, error) {
	ctx, cancel := context.WithTimeout(ctx, requestTimeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return nil, 0, err
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	req.Header.Set("Content-Type", "application/json")
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("posclient: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	prometheus.RecordProviderRequest(string(c.provider), method, resp.StatusCode, time.Since(start))

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, 10<<20))
	if err != nil {
		return nil, 0, fmt.Errorf("posclient: read response: %w", err)
	}
	return respBody, resp.StatusCode, nil
}

// jitter adds up to 10% of random slack so retry storms spread out.
func jitter(d time.Duration) time.Duration {
	return d + time.Duration(rand.Int63n(int64(d)/10+1))
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}
