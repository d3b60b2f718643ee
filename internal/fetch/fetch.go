package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Client wraps http.Client with a user agent, per-request timeout, and a
// politeness delay between consecutive requests. Every request is a single
// attempt: a failure is definitive for this run and the caller decides
// whether to skip the item or fall back.
type Client struct {
	HTTPClient *http.Client
	UserAgent  string
	// PerRequestTimeout bounds each request.
	PerRequestTimeout time.Duration
	// Delay is the minimum interval between requests issued through this
	// client. Zero disables throttling.
	Delay time.Duration

	// RedirectMaxHops caps redirect following to avoid loops. Zero means default (5).
	RedirectMaxHops int
	// MaxConcurrent limits concurrent in-flight requests per client instance.
	// Zero means unlimited.
	MaxConcurrent int
	// AcceptContentTypes, when non-empty, restricts responses to content
	// types with one of these prefixes. Nil accepts anything.
	AcceptContentTypes []string

	// internal limiter initialized on first use when MaxConcurrent > 0
	limiter     chan struct{}
	limiterOnce sync.Once

	mu       sync.Mutex
	lastSent time.Time
}

func (c *Client) getHTTPClient() *http.Client {
	if c.HTTPClient != nil {
		// Clone to attach our redirect policy without mutating caller's client
		base := *c.HTTPClient
		base.CheckRedirect = c.checkRedirectFunc()
		return &base
	}
	return &http.Client{Timeout: c.PerRequestTimeout, CheckRedirect: c.checkRedirectFunc()}
}

// Get issues a single GET with context and user-agent and returns the body
// and content type. There is no retry; transient and permanent failures look
// the same to callers.
func (c *Client) Get(ctx context.Context, rawURL string) ([]byte, string, error) {
	status, contentType, body, err := c.do(ctx, http.MethodGet, rawURL)
	if err != nil {
		return nil, "", err
	}
	if status < 200 || status > 299 {
		return nil, "", fmt.Errorf("unexpected status: %d", status)
	}
	if !c.accepts(contentType) {
		return nil, "", fmt.Errorf("unsupported content type: %s", contentType)
	}
	return body, contentType, nil
}

// Probe issues a HEAD request and reports whether the resource exists. Any
// transport error or non-2xx status is a probe failure.
func (c *Client) Probe(ctx context.Context, rawURL string) error {
	status, _, _, err := c.do(ctx, http.MethodHead, rawURL)
	if err != nil {
		return err
	}
	if status < 200 || status > 299 {
		return fmt.Errorf("unexpected status: %d", status)
	}
	return nil
}

func (c *Client) do(ctx context.Context, method, rawURL string) (int, string, []byte, error) {
	// Concurrency gate per client instance
	c.acquire()
	defer c.release()
	c.throttle()

	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return 0, "", nil, fmt.Errorf("new request: %w", err)
	}
	// Reject non-HTTP(S) schemes early
	if req.URL == nil || !isHTTPScheme(req.URL) {
		return 0, "", nil, fmt.Errorf("unsupported URL scheme: %q", rawURL)
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	httpClient := c.getHTTPClient()
	if c.PerRequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(req.Context(), c.PerRequestTimeout)
		defer cancel()
		req = req.WithContext(ctx)
	}

	resp, err := httpClient.Do(req)
	if err != nil {
		return 0, "", nil, err
	}
	defer resp.Body.Close()

	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return resp.StatusCode, "", nil, fmt.Errorf("read body: %w", err)
	}
	return resp.StatusCode, resp.Header.Get("Content-Type"), b, nil
}

// throttle blocks until Delay has elapsed since the previous request.
func (c *Client) throttle() {
	if c.Delay <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if wait := c.Delay - time.Since(c.lastSent); wait > 0 {
		time.Sleep(wait)
	}
	c.lastSent = time.Now()
}

func (c *Client) accepts(contentType string) bool {
	if len(c.AcceptContentTypes) == 0 {
		return true
	}
	ct := strings.ToLower(strings.TrimSpace(contentType))
	if ct == "" {
		return true
	}
	for _, prefix := range c.AcceptContentTypes {
		if strings.HasPrefix(ct, prefix) {
			return true
		}
	}
	return false
}

// HTMLContentTypes is the allowlist for article pages.
var HTMLContentTypes = []string{"text/html", "application/xhtml+xml"}

// FeedContentTypes is the allowlist for feed endpoints. Plain xml and even
// text/html are tolerated because feeds are served with wildly inconsistent
// content types in practice.
var FeedContentTypes = []string{
	"application/rss+xml",
	"application/atom+xml",
	"application/xml",
	"text/xml",
	"text/html",
	"text/plain",
}

func (c *Client) checkRedirectFunc() func(req *http.Request, via []*http.Request) error {
	max := c.RedirectMaxHops
	if max <= 0 {
		max = 5
	}
	return func(req *http.Request, via []*http.Request) error {
		if len(via) >= max {
			return errors.New("too many redirects")
		}
		// Only allow http/https during redirects
		if req.URL == nil || !isHTTPScheme(req.URL) {
			return errors.New("redirect to unsupported scheme")
		}
		return nil
	}
}

func isHTTPScheme(u *url.URL) bool {
	if u == nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return scheme == "http" || scheme == "https"
}

func (c *Client) acquire() {
	if c.MaxConcurrent <= 0 {
		return
	}
	c.limiterOnce.Do(func() {
		c.limiter = make(chan struct{}, c.MaxConcurrent)
	})
	c.limiter <- struct{}{}
}

func (c *Client) release() {
	if c.MaxConcurrent <= 0 || c.limiter == nil {
		return
	}
	select {
	case <-c.limiter:
	default:
		// should not happen, but avoid blocking
	}
}
