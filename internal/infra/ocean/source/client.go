package source

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"github.com/yanqian/ocean-insight/internal/domain/ocean"
)

const (
	defaultTimeout = 10 * time.Second
	defaultMaxBody = 8 << 20
)

// Config describes one upstream provider.
type Config struct {
	BaseURL           string
	Timeout           time.Duration
	RequestsPerSecond float64
	// Burst defaults to 1.
	Burst int
}

// Client performs rate-limited JSON GETs and classifies every failure as a
// FetchError for its domain.
type Client struct {
	domain     ocean.Domain
	baseURL    string
	httpClient *http.Client
	limiter    *rate.Limiter
	maxBody    int64
}

// NewClient builds a client for one domain's provider. defaultBaseURL is
// used when cfg.BaseURL is blank.
func NewClient(domain ocean.Domain, cfg Config, defaultBaseURL string) *Client {
	base := strings.TrimSpace(cfg.BaseURL)
	if base == "" {
		base = defaultBaseURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	burst := cfg.Burst
	if burst <= 0 {
		burst = 1
	}
	return &Client{
		domain:  domain,
		baseURL: strings.TrimRight(base, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
		},
		limiter: rate.NewLimiter(limit, burst),
		maxBody: defaultMaxBody,
	}
}

// BaseURL returns the provider root without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// GetJSON fetches endpoint and decodes the body into out. The raw body is
// returned so callers can inspect provider error envelopes.
func (c *Client) GetJSON(ctx context.Context, endpoint string, out any) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		// Wait gives up early when the next token lands past the deadline.
		if _, ok := ctx.Deadline(); ok {
			return nil, ocean.NewTimeout(c.domain, fmt.Errorf("rate limit wait: %w", err))
		}
		return nil, c.classify(ctx, "rate limit wait", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, ocean.NewUnavailable(c.domain, "build request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.classify(ctx, "request failed", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		payload, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return payload, ocean.NewUnavailable(c.domain, fmt.Sprintf("status %d", resp.StatusCode), errors.New(strings.TrimSpace(string(payload))))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, c.classify(ctx, "read response", err)
	}
	if int64(len(body)) > c.maxBody {
		return nil, ocean.NewUnavailable(c.domain, "response too large", nil)
	}
	if err := json.Unmarshal(body, out); err != nil {
		return body, ocean.NewUnavailable(c.domain, "malformed payload", err)
	}
	return body, nil
}

func (c *Client) classify(ctx context.Context, reason string, err error) *ocean.FetchError {
	if ctx.Err() != nil || errors.Is(err, context.DeadlineExceeded) {
		return ocean.NewTimeout(c.domain, err)
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return ocean.NewTimeout(c.domain, err)
	}
	return ocean.NewUnavailable(c.domain, reason, err)
}
