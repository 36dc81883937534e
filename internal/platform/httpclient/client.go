package httpclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/windrift/crawlcore/internal/crawler"
)

const (
	// DefaultTimeout is the default HTTP request timeout.
	DefaultTimeout = 10 * time.Second
	// DefaultMaxBodySize is the default maximum response body size.
	DefaultMaxBodySize = 5 * 1024 * 1024
	// DefaultUserAgent is the default User-Agent header.
	DefaultUserAgent = "crawlcore/1.0"
	// DefaultMaxRedirects is the default redirect cap.
	DefaultMaxRedirects = 5
)

// Client is an HTTP-based crawler.Fetcher. It is safe for concurrent use
// by multiple goroutines.
type Client struct {
	httpClient   *http.Client
	userAgent    string
	maxBodySize  int64
	maxRedirects int
	limiter      *rate.Limiter
}

// Config configures a Client.
type Config struct {
	// Timeout is the total per-request timeout (default: 10s).
	Timeout time.Duration
	// UserAgent is sent on every request (default: "crawlcore/1.0").
	UserAgent string
	// MaxBodySize caps the bytes read from a response body (default: 5MiB).
	MaxBodySize int64
	// MaxRedirects caps how many redirects a single fetch will follow
	// (default: 5). Exceeding it surfaces as an HTTP-kind FetchError.
	MaxRedirects int
	// MaxPerHost bounds idle/open connections kept per host; it does not
	// itself enforce concurrency, that is the frontier's job, but it
	// keeps the transport from hoarding sockets to a hot host.
	MaxPerHost int
	// GlobalRateLimitQPS optionally shapes aggregate fetch throughput
	// process-wide, layered above the frontier's per-host spacing.
	GlobalRateLimitQPS float64
	// DNSCache, if set, resolves and caches hostnames with singleflight
	// coalescing instead of letting every dial hit the system resolver.
	DNSCache *crawler.DNSCache
}

// New builds a Client from cfg, applying defaults for anything left zero.
func New(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.UserAgent == "" {
		cfg.UserAgent = DefaultUserAgent
	}
	if cfg.MaxBodySize == 0 {
		cfg.MaxBodySize = DefaultMaxBodySize
	}
	if cfg.MaxRedirects == 0 {
		cfg.MaxRedirects = DefaultMaxRedirects
	}
	if cfg.MaxPerHost == 0 {
		cfg.MaxPerHost = 10
	}

	dialer := &net.Dialer{Timeout: 5 * time.Second}

	transport := &http.Transport{
		MaxConnsPerHost:     cfg.MaxPerHost,
		MaxIdleConnsPerHost: cfg.MaxPerHost,
		DialContext:         dnsCacheDialer(dialer, cfg.DNSCache),
	}

	maxRedirects := cfg.MaxRedirects
	httpClient := &http.Client{
		Transport: transport,
		Timeout:   cfg.Timeout,
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			if len(via) >= maxRedirects {
				return errRedirectLimit{max: maxRedirects}
			}
			return nil
		},
	}

	var limiter *rate.Limiter
	if cfg.GlobalRateLimitQPS > 0 {
		burst := int(cfg.GlobalRateLimitQPS)
		if burst < 1 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.GlobalRateLimitQPS), burst)
	}

	return &Client{
		httpClient:   httpClient,
		userAgent:    cfg.UserAgent,
		maxBodySize:  cfg.MaxBodySize,
		maxRedirects: maxRedirects,
		limiter:      limiter,
	}
}

// dnsCacheDialer wraps dialer so the address is resolved through cache
// first (when cache is non-nil), so repeated fetches to a host coalesce
// their DNS lookups.
func dnsCacheDialer(dialer *net.Dialer, cache *crawler.DNSCache) func(context.Context, string, string) (net.Conn, error) {
	return func(ctx context.Context, network, addr string) (net.Conn, error) {
		if cache == nil {
			return dialer.DialContext(ctx, network, addr)
		}
		host, port, err := net.SplitHostPort(addr)
		if err != nil {
			return dialer.DialContext(ctx, network, addr)
		}
		ips, err := cache.Resolve(ctx, host)
		if err != nil {
			return nil, &crawler.FetchError{Kind: crawler.KindDNS, URL: addr, Err: err}
		}
		var lastErr error
		for _, ip := range ips {
			conn, derr := dialer.DialContext(ctx, network, net.JoinHostPort(ip, port))
			if derr == nil {
				return conn, nil
			}
			lastErr = derr
		}
		if lastErr == nil {
			lastErr = fmt.Errorf("no addresses resolved for %s", host)
		}
		return nil, lastErr
	}
}

// errRedirectLimit is returned from CheckRedirect when the cap is hit.
type errRedirectLimit struct{ max int }

func (e errRedirectLimit) Error() string {
	return fmt.Sprintf("stopped after %d redirects", e.max)
}

// Fetch retrieves rawURL, applying the configured rate limit, timeout,
// redirect cap, and body size cap. Every failure is returned as a
// *crawler.FetchError tagged with the kind a worker needs to log and
// count it by.
func (c *Client) Fetch(ctx context.Context, rawURL string) (*crawler.FetchResult, error) {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, &crawler.FetchError{Kind: crawler.KindCancelled, URL: rawURL, Err: err}
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, &crawler.FetchError{Kind: crawler.KindNet, URL: rawURL, Err: err}
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, c.classifyDoError(ctx, rawURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		io.Copy(io.Discard, io.LimitReader(resp.Body, 4096))
		return nil, &crawler.FetchError{Kind: crawler.KindHTTP, URL: rawURL, StatusCode: resp.StatusCode}
	}

	limited := io.LimitReader(resp.Body, c.maxBodySize+1)
	body, err := io.ReadAll(limited)
	if err != nil {
		return nil, &crawler.FetchError{Kind: crawler.KindNet, URL: rawURL, Err: err}
	}
	if int64(len(body)) > c.maxBodySize {
		return nil, &crawler.FetchError{Kind: crawler.KindHTTP, URL: rawURL, Err: fmt.Errorf("body exceeds %d bytes", c.maxBodySize)}
	}

	finalURL := rawURL
	if resp.Request != nil && resp.Request.URL != nil {
		finalURL = resp.Request.URL.String()
	}

	return &crawler.FetchResult{
		Body:        body,
		FinalURL:    finalURL,
		ContentType: resp.Header.Get("Content-Type"),
	}, nil
}

// classifyDoError recovers the *crawler.FetchError our own dialer or
// redirect check attached, or falls back to a plain net/cancelled error.
func (c *Client) classifyDoError(ctx context.Context, rawURL string, err error) *crawler.FetchError {
	var fe *crawler.FetchError
	if errors.As(err, &fe) {
		return fe
	}
	var rle errRedirectLimit
	if errors.As(err, &rle) {
		return &crawler.FetchError{Kind: crawler.KindHTTP, URL: rawURL, Err: err}
	}
	if ctx.Err() != nil {
		return &crawler.FetchError{Kind: crawler.KindCancelled, URL: rawURL, Err: ctx.Err()}
	}
	return &crawler.FetchError{Kind: crawler.KindNet, URL: rawURL, Err: err}
}
