// Package api is the single point of outbound HTTP communication with the
// admin backend. It injects the bearer token, probes connectivity, caches
// responses of cacheable calls and lets callers cancel calls by id.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/example/ec-admin-sync/internal/api/middleware"
	"github.com/example/ec-admin-sync/internal/metrics"
	"github.com/example/ec-admin-sync/internal/notification"
)

const (
	DefaultTimeout    = 10 * time.Second
	DefaultHealthPath = "/health"
	defaultUserAgent  = "ec-admin-sync/1.0"
	maxResponseBytes  = 8 << 20
)

// Doer is the part of the client the resource layer depends on
type Doer interface {
	Do(ctx context.Context, req Request, dest any) error
	ClearCache(pathSubstring string) int
}

// Ensure Client implements Doer at compile time.
var _ Doer = (*Client)(nil)

// Request describes one outbound call
type Request struct {
	Method string
	Path   string
	Query  url.Values
	Body   any // JSON-encoded, or sent as-is when it is a *Multipart
	Header http.Header

	Cacheable   bool
	CacheMaxAge time.Duration // DefaultCacheMaxAge when zero

	// RequestID makes the call cancellable through CancelRequest. A new call
	// with the id of a pending one cancels the pending one.
	RequestID string
}

// URL returns the path with its encoded query, which is also the cache key suffix
func (r Request) URL() string {
	if len(r.Query) == 0 {
		return r.Path
	}
	return r.Path + "?" + r.Query.Encode()
}

// Config holds client configuration
type Config struct {
	BaseURL       string
	HealthPath    string
	Timeout       time.Duration
	ProbeInterval time.Duration
	ProbeTimeout  time.Duration
	CacheMaxAge   time.Duration
	UserAgent     string
}

// Client talks to the admin REST backend
type Client struct {
	baseURL     *url.URL
	http        *http.Client
	cache       *responseCache
	pending     *pendingRegistry
	conn        *connectivity
	cacheMaxAge time.Duration

	tokens   middleware.TokenSource
	notifier notification.Notifier
	log      *logrus.Entry
	metrics  *metrics.Collector
	now      func() time.Time
	base     http.RoundTripper
}

// Option customises a Client
type Option func(*Client)

// WithTokenSource sets where the bearer token is read from
func WithTokenSource(ts middleware.TokenSource) Option {
	return func(c *Client) { c.tokens = ts }
}

// WithNotifier sets the sink for user-facing connectivity notifications
func WithNotifier(n notification.Notifier) Option {
	return func(c *Client) { c.notifier = n }
}

func WithLogger(log *logrus.Entry) Option {
	return func(c *Client) { c.log = log }
}

func WithMetrics(m *metrics.Collector) Option {
	return func(c *Client) { c.metrics = m }
}

// WithClock replaces time.Now for cache and probe bookkeeping
func WithClock(now func() time.Time) Option {
	return func(c *Client) { c.now = now }
}

// WithTransport sets the base round tripper beneath the client middleware
func WithTransport(rt http.RoundTripper) Option {
	return func(c *Client) { c.base = rt }
}

// NewClient builds a Client for cfg.BaseURL
func NewClient(cfg Config, opts ...Option) (*Client, error) {
	base, err := parseBaseURL(cfg.BaseURL)
	if err != nil {
		return nil, err
	}

	c := &Client{
		baseURL:  base,
		pending:  newPendingRegistry(),
		notifier: notification.Discard,
		log:      logrus.NewEntry(logrus.StandardLogger()),
		now:      time.Now,
		base:     http.DefaultTransport,
	}
	for _, opt := range opts {
		opt(c)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	c.cacheMaxAge = cfg.CacheMaxAge
	if c.cacheMaxAge <= 0 {
		c.cacheMaxAge = DefaultCacheMaxAge
	}

	var rt http.RoundTripper = c.base
	rt = middleware.Logging(c.log, rt)
	rt = middleware.UserAgent(userAgent, rt)
	if c.tokens != nil {
		rt = middleware.BearerToken(c.tokens, rt)
	}
	c.http = &http.Client{Transport: rt, Timeout: timeout}
	c.cache = newResponseCache(c.now)

	healthPath := cfg.HealthPath
	if healthPath == "" {
		healthPath = DefaultHealthPath
	}
	probeInterval := cfg.ProbeInterval
	if probeInterval <= 0 {
		probeInterval = DefaultProbeInterval
	}
	probeTimeout := cfg.ProbeTimeout
	if probeTimeout <= 0 {
		probeTimeout = DefaultProbeTimeout
	}
	c.conn = &connectivity{
		url:      c.resolve(healthPath),
		interval: probeInterval,
		timeout:  probeTimeout,
		http:     c.http,
		now:      c.now,
		onProbe:  c.metrics.Probe,
	}

	return c, nil
}

// Do performs one call and decodes a JSON response into dest (which may be
// nil). Errors are *ConnectivityError, *TransportError, *ValidationError or
// *CancellationError.
func (c *Client) Do(ctx context.Context, req Request, dest any) error {
	if c == nil {
		return fmt.Errorf("client is nil")
	}
	method := req.Method
	if method == "" {
		method = http.MethodGet
	}
	key := cacheKey(method, req.URL())

	// The handle covers the whole call, connectivity check included
	var pending *pendingRequest
	if req.RequestID != "" {
		var cancel context.CancelFunc
		ctx, cancel = context.WithCancel(ctx)
		pending = c.pending.register(req.RequestID, cancel)
		defer func() {
			c.pending.release(req.RequestID, pending)
			cancel()
		}()
	}

	if req.Cacheable {
		if data, ok := c.cache.get(key); ok {
			c.metrics.CacheHit()
			c.log.WithField("key", key).Debug("cache hit")
			return decode(data, dest)
		}
		c.metrics.CacheMiss()
	}

	if err := c.conn.ensure(ctx); err != nil {
		if pending != nil && pending.cancelled.Load() {
			return &CancellationError{RequestID: req.RequestID}
		}
		if ctx.Err() != nil {
			return err
		}
		c.log.WithError(err).Warn("backend unreachable")
		c.notifier.Notify(notification.Error("Connection", "Unable to reach the server. Check your network connection."))
		return err
	}

	data, err := c.send(ctx, method, req)
	if err != nil {
		if pending != nil && pending.cancelled.Load() {
			return &CancellationError{RequestID: req.RequestID}
		}
		return err
	}

	if req.Cacheable {
		maxAge := req.CacheMaxAge
		if maxAge <= 0 {
			maxAge = c.cacheMaxAge
		}
		c.cache.set(key, data, maxAge)
	}
	return decode(data, dest)
}

func (c *Client) send(ctx context.Context, method string, req Request) ([]byte, error) {
	body, contentType, err := encodeBody(req.Body)
	if err != nil {
		return nil, fmt.Errorf("encode request body: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, method, c.resolve(req.URL()), body)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	for k, vals := range req.Header {
		for _, v := range vals {
			httpReq.Header.Add(k, v)
		}
	}
	httpReq.Header.Set("Accept", "application/json")
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}

	start := c.now()
	resp, err := c.http.Do(httpReq)
	if err != nil {
		c.metrics.ObserveRequest(method, 0, c.now().Sub(start))
		return nil, &TransportError{Method: method, Path: req.Path, Timeout: isTimeout(err), Err: err}
	}
	defer func() { _ = resp.Body.Close() }()
	c.metrics.ObserveRequest(method, resp.StatusCode, c.now().Sub(start))

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &TransportError{Method: method, Path: req.Path, StatusCode: resp.StatusCode, Timeout: isTimeout(err), Err: err}
	}
	if resp.StatusCode >= 400 {
		return nil, parseErrorBody(method, req.Path, resp.StatusCode, data)
	}
	return data, nil
}

// CancelRequest aborts the call registered under id. It reports whether a
// call was registered.
func (c *Client) CancelRequest(id string) bool {
	ok := c.pending.cancel(id)
	if ok {
		c.log.WithField("request_id", id).Debug("request cancelled")
	}
	return ok
}

// CancelAllRequests aborts every registered call
func (c *Client) CancelAllRequests() int {
	return c.pending.cancelAll()
}

// IsPending reports whether a call is registered under id
func (c *Client) IsPending(id string) bool {
	return c.pending.has(id)
}

func (c *Client) PendingCount() int {
	return c.pending.len()
}

// ClearCache removes cached responses whose key contains pathSubstring, or
// all of them when it is empty.
func (c *Client) ClearCache(pathSubstring string) int {
	return c.cache.clear(pathSubstring)
}

func (c *Client) CacheLen() int {
	return c.cache.len()
}

// Connectivity returns the latest probe outcome
func (c *Client) Connectivity() ConnectivityState {
	return c.conn.snapshot()
}

// BaseURL returns the normalized backend URL
func (c *Client) BaseURL() *url.URL {
	u := *c.baseURL
	return &u
}

func (c *Client) resolve(pathAndQuery string) string {
	base := strings.TrimSuffix(c.baseURL.String(), "/")
	if !strings.HasPrefix(pathAndQuery, "/") {
		pathAndQuery = "/" + pathAndQuery
	}
	return base + pathAndQuery
}

func encodeBody(body any) (io.Reader, string, error) {
	switch b := body.(type) {
	case nil:
		return nil, "", nil
	case *Multipart:
		// The multipart writer supplies the boundary; no JSON content type.
		return b.encode()
	case []byte:
		return bytes.NewReader(b), "application/json", nil
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return nil, "", err
		}
		return bytes.NewReader(data), "application/json", nil
	}
}

func decode(data []byte, dest any) error {
	if dest == nil {
		return nil
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

func parseBaseURL(raw string) (*url.URL, error) {
	trimmed := strings.TrimSpace(raw)
	if trimmed == "" {
		return nil, fmt.Errorf("base url is required")
	}
	if !strings.Contains(trimmed, "://") {
		trimmed = "http://" + trimmed
	}
	u, err := url.Parse(trimmed)
	if err != nil {
		return nil, fmt.Errorf("parse base url %q: %w", raw, err)
	}
	u.RawQuery = ""
	u.Fragment = ""
	u.Path = strings.TrimSuffix(u.Path, "/")
	return u, nil
}
