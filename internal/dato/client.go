// Package dato is a client for the DatoCMS Content Management API.
package dato

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"iter"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/philippherzig/datocms-mcp/internal/audit"
	"github.com/philippherzig/datocms-mcp/pkg/types"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"golang.org/x/time/rate"
)

const (
	// DefaultBaseURL is the production Content Management API endpoint
	DefaultBaseURL = "https://site-api.datocms.com"
	// APIVersion is sent as X-Api-Version on every request
	APIVersion = "3"

	// MaxItemsPerPage is the largest page the API serves for records
	MaxItemsPerPage = 500
	// MaxUploadsPerPage is the largest page the API serves for uploads
	MaxUploadsPerPage = 50

	defaultTimeout      = 60 * time.Second
	defaultMaxRetries   = 3
	defaultPollInterval = time.Second
	defaultMaxJobPolls  = 300
)

// Client talks to one DatoCMS project environment
type Client struct {
	baseURL      string
	token        string
	environment  string
	profile      string
	http         *http.Client
	limiter      *rate.Limiter
	maxRetries   int
	pollInterval time.Duration
	maxJobPolls  int
	metrics      *Metrics
	logger       *audit.Logger
}

// Option configures a Client
type Option func(*Client)

// WithHTTPClient replaces the HTTP client. Its transport is wrapped for tracing.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.http = hc
	}
}

// WithTimeout sets the per-request timeout
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.http.Timeout = d
		}
	}
}

// WithMaxRetries sets how often a rate-limited request is retried
func WithMaxRetries(n int) Option {
	return func(c *Client) {
		if n >= 0 {
			c.maxRetries = n
		}
	}
}

// WithRateLimit throttles outgoing requests. Zero or less disables throttling.
func WithRateLimit(requestsPerSecond float64) Option {
	return func(c *Client) {
		if requestsPerSecond <= 0 {
			c.limiter = rate.NewLimiter(rate.Inf, 0)
			return
		}
		burst := int(requestsPerSecond)
		if burst < 1 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(requestsPerSecond), burst)
	}
}

// WithMetrics records request counts and latencies
func WithMetrics(m *Metrics) Option {
	return func(c *Client) {
		c.metrics = m
	}
}

// WithPollInterval sets the delay between async job polls
func WithPollInterval(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.pollInterval = d
		}
	}
}

// WithMaxJobPolls caps how often an async job result is polled
func WithMaxJobPolls(n int) Option {
	return func(c *Client) {
		if n > 0 {
			c.maxJobPolls = n
		}
	}
}

// NewClient creates a client from a credential profile
func NewClient(profile *types.Profile, logger *audit.Logger, opts ...Option) (*Client, error) {
	if profile == nil {
		return nil, errors.New("profile cannot be nil")
	}
	token := strings.TrimSpace(profile.APIToken())
	if token == "" {
		return nil, fmt.Errorf("profile %q has no API token", profile.Name)
	}

	baseURL := strings.TrimRight(profile.BaseURL(), "/")
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}

	c := &Client{
		baseURL:      baseURL,
		token:        token,
		environment:  profile.Environment(),
		profile:      profile.Name,
		http:         &http.Client{Timeout: defaultTimeout},
		limiter:      rate.NewLimiter(rate.Inf, 0),
		maxRetries:   defaultMaxRetries,
		pollInterval: defaultPollInterval,
		maxJobPolls:  defaultMaxJobPolls,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(c)
	}

	base := c.http.Transport
	if base == nil {
		base = http.DefaultTransport
	}
	traced := *c.http
	traced.Transport = otelhttp.NewTransport(base)
	c.http = &traced

	return c, nil
}

// Environment returns the sandbox environment the client targets
func (c *Client) Environment() string {
	return c.environment
}

// Profile returns the name of the profile the client was built from
func (c *Client) Profile() string {
	return c.profile
}

func (c *Client) setHeaders(req *http.Request, hasBody bool) {
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Api-Version", APIVersion)
	if hasBody {
		req.Header.Set("Content-Type", "application/vnd.api+json")
	}
	if c.environment != "" {
		req.Header.Set("X-Environment", c.environment)
	}
}

// do sends a request and decodes a 2xx body into out
func (c *Client) do(ctx context.Context, method, path string, query url.Values, body, out any) error {
	_, data, err := c.send(ctx, method, path, query, body)
	if err != nil {
		return err
	}
	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("%s %s: failed to decode response: %w", method, path, err)
	}
	return nil
}

// send issues a request, retrying on 429, and returns the status and raw body
func (c *Client) send(ctx context.Context, method, path string, query url.Values, body any) (int, []byte, error) {
	var payload []byte
	if body != nil {
		var err error
		payload, err = json.Marshal(body)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to encode request body: %w", err)
		}
	}

	target := c.baseURL + path
	if len(query) > 0 {
		target += "?" + query.Encode()
	}
	resource := resourceLabel(path)

	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return 0, nil, err
		}

		var reader io.Reader
		if payload != nil {
			reader = bytes.NewReader(payload)
		}
		req, err := http.NewRequestWithContext(ctx, method, target, reader)
		if err != nil {
			return 0, nil, fmt.Errorf("failed to build request: %w", err)
		}
		c.setHeaders(req, payload != nil)

		started := time.Now()
		resp, err := c.http.Do(req)
		if err != nil {
			c.metrics.observe(method, resource, 0, started)
			return 0, nil, fmt.Errorf("%s %s: %w", method, path, err)
		}
		data, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		c.metrics.observe(method, resource, resp.StatusCode, started)
		if err != nil {
			return resp.StatusCode, nil, fmt.Errorf("%s %s: failed to read response: %w", method, path, err)
		}

		if resp.StatusCode == http.StatusTooManyRequests && attempt < c.maxRetries {
			c.metrics.retried(resource)
			if err := sleep(ctx, retryAfter(resp.Header)); err != nil {
				return 0, nil, err
			}
			continue
		}

		if resp.StatusCode >= 300 {
			return resp.StatusCode, data, newAPIError(method, path, resp.StatusCode, data)
		}
		return resp.StatusCode, data, nil
	}
}

// retryAfter reads the reset hint of a 429 response
func retryAfter(h http.Header) time.Duration {
	for _, name := range []string{"X-RateLimit-Reset", "Retry-After"} {
		if v := h.Get(name); v != "" {
			if secs, err := strconv.ParseFloat(v, 64); err == nil && secs >= 0 {
				return time.Duration(secs * float64(time.Second))
			}
		}
	}
	return time.Second
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// resourceLabel keeps metric cardinality bounded: "/items/123/publish" -> "items"
func resourceLabel(path string) string {
	path = strings.TrimPrefix(path, "/")
	if i := strings.IndexByte(path, '/'); i >= 0 {
		path = path[:i]
	}
	return path
}

// pageFetcher returns one page of records and the total count
type pageFetcher func(ctx context.Context, limit, offset int) ([]map[string]any, int, error)

// paged walks offsets until every record reported by total_count was yielded
func paged(ctx context.Context, pageSize int, fetch pageFetcher) iter.Seq2[map[string]any, error] {
	return func(yield func(map[string]any, error) bool) {
		offset := 0
		for {
			page, total, err := fetch(ctx, pageSize, offset)
			if err != nil {
				yield(nil, err)
				return
			}
			for _, record := range page {
				if !yield(record, nil) {
					return
				}
			}
			offset += len(page)
			if len(page) == 0 || offset >= total {
				return
			}
		}
	}
}

// Collect drains a paged iterator
func Collect(seq iter.Seq2[map[string]any, error]) ([]map[string]any, error) {
	var out []map[string]any
	for record, err := range seq {
		if err != nil {
			return out, err
		}
		out = append(out, record)
	}
	return out, nil
}

func (c *Client) logAccess(resource, action string, details map[string]any) {
	c.logger.LogAccess(resource, action, c.profile, true, details)
}

func (c *Client) logError(operation string, err error) {
	c.logger.LogError("cma", err, map[string]any{
		"operation":   operation,
		"environment": c.environment,
	})
}
