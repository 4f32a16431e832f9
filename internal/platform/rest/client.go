// Package rest is the shared HTTP transport for the exchange adapters:
// per-venue request pacing, timeouts and status-code mapping.
package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/alanyoungcy/mmsignal/internal/domain"
)

// Config configures a Client.
type Config struct {
	BaseURL           string
	RequestsPerSecond float64
	Burst             int
	Timeout           time.Duration
	HTTPClient        *http.Client
}

// Client performs paced GET requests against one venue's public API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
}

// New creates a Client. A non-positive RequestsPerSecond disables pacing.
func New(cfg Config) *Client {
	hc := cfg.HTTPClient
	if hc == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 10 * time.Second
		}
		hc = &http.Client{Timeout: timeout}
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst < 1 {
		burst = 1
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: hc,
		limiter:    rate.NewLimiter(limit, burst),
	}
}

// StatusError is a non-2xx response.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.StatusCode, e.Body)
}

// GetJSON waits for a rate-limit token, issues GET baseURL+path?params and
// decodes the JSON body into out. 429 maps to domain.ErrRateLimited and 400/404
// to domain.ErrSymbolNotListed; other non-2xx statuses return a *StatusError.
func (c *Client) GetJSON(ctx context.Context, path string, params url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return fmt.Errorf("rest: wait for rate limit: %w", err)
	}

	u := c.baseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("rest: create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "mmsignal/1.0")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("rest: GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 8<<20))
	if err != nil {
		return fmt.Errorf("rest: read body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		se := &StatusError{StatusCode: resp.StatusCode, Body: truncate(string(body), 256)}
		switch resp.StatusCode {
		case http.StatusTooManyRequests:
			return fmt.Errorf("rest: GET %s: %w (%v)", path, domain.ErrRateLimited, se)
		case http.StatusBadRequest, http.StatusNotFound:
			return fmt.Errorf("rest: GET %s: %w (%v)", path, domain.ErrSymbolNotListed, se)
		}
		return fmt.Errorf("rest: GET %s: %w", path, se)
	}

	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("rest: decode %s: %w", path, err)
	}
	return nil
}

// Close releases idle connections.
func (c *Client) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
