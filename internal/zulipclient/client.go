// Package zulipclient is the HTTPS Zulip REST client: per-identity
// auth, retry/backoff, rate limiting, response normalization, the
// narrow-filter builder, and an in-memory TTL cache.
package zulipclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"

	"github.com/zulipmcp/bridge/internal/identity"
)

// Config tunes the client's pooling, retry, and rate-limit behavior.
type Config struct {
	RequestTimeout      time.Duration
	MaxRetries          int
	RateLimitPerMinute  int
	MaxIdleConnsPerHost int
	MaxConns            int
}

// DefaultConfig mirrors spec.md §4.3/§5's stated defaults.
func DefaultConfig() Config {
	return Config{
		RequestTimeout:      30 * time.Second,
		MaxRetries:          3,
		RateLimitPerMinute:  100,
		MaxIdleConnsPerHost: 10,
		MaxConns:            20,
	}
}

// Client is a single pooled HTTPS client shared across identities.
type Client struct {
	cfg    Config
	site   string
	http   *http.Client
	caches *caches
	logger *slog.Logger

	limiterMu sync.Mutex
	limiters  map[identity.Kind]*rate.Limiter
}

// New builds a Client against site (e.g. https://example.zulipchat.com).
func New(site string, cfg Config, logger *slog.Logger) *Client {
	transport := &http.Transport{
		MaxIdleConnsPerHost: cfg.MaxIdleConnsPerHost,
		MaxConnsPerHost:     cfg.MaxConns,
	}
	return &Client{
		cfg:  cfg,
		site: strings.TrimRight(site, "/"),
		http: &http.Client{
			Transport: transport,
			Timeout:   cfg.RequestTimeout,
		},
		caches:   newCaches(),
		logger:   logger,
		limiters: make(map[identity.Kind]*rate.Limiter),
	}
}

func (c *Client) limiterFor(kind identity.Kind) *rate.Limiter {
	c.limiterMu.Lock()
	defer c.limiterMu.Unlock()
	l, ok := c.limiters[kind]
	if !ok {
		perSecond := rate.Limit(float64(c.cfg.RateLimitPerMinute) / 60.0)
		l = rate.NewLimiter(perSecond, c.cfg.RateLimitPerMinute)
		c.limiters[kind] = l
	}
	return l
}

// Response is the normalized Zulip API envelope.
type Response struct {
	StatusCode int
	Result     string // "success" or "error"
	Msg        string
	Raw        map[string]any
}

// Do issues one Zulip API call under bundle's credentials, applying the
// rate limiter, retry-with-backoff, and response normalization
// described in spec.md §4.3.
func (c *Client) Do(ctx context.Context, bundle *identity.Bundle, method, path string, form url.Values) (*Response, error) {
	if err := c.limiterFor(bundle.Kind).Wait(ctx); err != nil {
		return nil, fmt.Errorf("zulip: rate limiter wait: %w", err)
	}

	var resp *Response
	attempts := 0

	operation := func() error {
		attempts++
		r, retryAfter, err := c.doOnce(ctx, bundle, method, path, form)
		if err != nil {
			if te, ok := err.(*TransientError); ok {
				te.Attempts = attempts
				return te
			}
			return backoff.Permanent(err)
		}
		switch {
		case r.StatusCode == http.StatusUnauthorized || r.StatusCode == http.StatusForbidden:
			return backoff.Permanent(&AuthError{StatusCode: r.StatusCode, Body: r.Msg})
		case r.StatusCode == http.StatusNotFound:
			return backoff.Permanent(&NotFoundError{Resource: path, Body: r.Msg})
		case r.StatusCode == http.StatusTooManyRequests:
			if retryAfter > 0 {
				return &retryAfterError{seconds: retryAfter}
			}
			return &retryAfterError{seconds: 1}
		case r.StatusCode >= 500:
			return &TransientError{StatusCode: r.StatusCode, Attempts: attempts}
		}
		resp = r
		return nil
	}

	bo := backoff.WithMaxRetries(backoff.NewExponentialBackOff(), uint64(maxRetries(c.cfg.MaxRetries)))
	err := backoff.RetryNotify(func() error {
		err := operation()
		if ra, ok := err.(*retryAfterError); ok {
			select {
			case <-time.After(time.Duration(ra.seconds) * time.Second):
			case <-ctx.Done():
				return backoff.Permanent(ctx.Err())
			}
			return ra
		}
		return err
	}, bo, func(err error, d time.Duration) {
		c.logger.Warn("zulip: retrying request", "path", path, "attempt", attempts, "error", err, "backoff", d)
	})

	if err != nil {
		if ra, ok := err.(*retryAfterError); ok {
			return nil, &RateLimitError{RetryAfterSeconds: ra.seconds, Attempts: attempts}
		}
		return nil, err
	}
	return resp, nil
}

type retryAfterError struct{ seconds int }

func (e *retryAfterError) Error() string { return fmt.Sprintf("retry after %ds", e.seconds) }

func maxRetries(n int) int {
	if n <= 0 {
		return 3
	}
	return n
}

func (c *Client) doOnce(ctx context.Context, bundle *identity.Bundle, method, path string, form url.Values) (*Response, int, error) {
	var body io.Reader
	target := c.site + path
	if method == http.MethodGet && form != nil {
		target += "?" + form.Encode()
	} else if form != nil {
		body = bytes.NewBufferString(form.Encode())
	}

	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, 0, fmt.Errorf("zulip: build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	req.SetBasicAuth(bundle.Email, bundle.APIKey)

	httpResp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, &TransientError{Cause: err, Attempts: 1}
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return nil, 0, fmt.Errorf("zulip: read response body: %w", err)
	}

	retryAfter := 0
	if h := httpResp.Header.Get("Retry-After"); h != "" {
		if n, err := strconv.Atoi(h); err == nil {
			retryAfter = n
		}
	}

	var decoded map[string]any
	_ = json.Unmarshal(raw, &decoded) // non-JSON bodies normalize to empty map

	resp := &Response{
		StatusCode: httpResp.StatusCode,
		Raw:        decoded,
	}
	if v, ok := decoded["result"].(string); ok {
		resp.Result = v
	}
	if v, ok := decoded["msg"].(string); ok {
		resp.Msg = v
	}
	return resp, retryAfter, nil
}

// CachedStreams returns a cached streams payload for the given
// identity+filter key, or nil if absent/stale.
func (c *Client) CachedStreams(key string) ([]byte, bool) { return c.caches.streams.Get(key) }

// SetCachedStreams stores a streams payload.
func (c *Client) SetCachedStreams(key string, payload []byte) { c.caches.streams.Set(key, payload) }

// CachedUsers returns a cached users payload for the given identity key.
func (c *Client) CachedUsers(key string) ([]byte, bool) { return c.caches.users.Get(key) }

// SetCachedUsers stores a users payload.
func (c *Client) SetCachedUsers(key string, payload []byte) { c.caches.users.Set(key, payload) }
