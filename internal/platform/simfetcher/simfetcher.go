// Package simfetcher provides a synthetic crawler.Fetcher for load-testing
// the frontier and worker pool without making real network calls. It
// fabricates a fixed-shape HTML document after a configurable delay,
// useful for benchmarking scheduling fairness and throughput in isolation
// from real-world network variance.
package simfetcher

import (
	"context"
	"fmt"
	"math/rand"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/windrift/crawlcore/internal/crawler"
)

// Config controls the synthetic page shape and fetch latency.
type Config struct {
	// Delay is the fixed portion of every simulated fetch latency.
	Delay time.Duration
	// Jitter adds a random [0, Jitter) component on top of Delay.
	Jitter time.Duration
	// LinksPerPage bounds how many synthetic outbound links a page has
	// (a random count in [1, LinksPerPage] is generated per fetch).
	LinksPerPage int
	// BodySize pads the synthetic body out to at least this many bytes.
	BodySize int
	// Seed fixes the pseudo-random sequence for reproducible benchmarks.
	Seed int64
}

// Fetcher is a crawler.Fetcher that never touches the network.
type Fetcher struct {
	cfg Config
	mu  sync.Mutex
	rng *rand.Rand
}

// New builds a Fetcher from cfg, applying sane defaults for zero fields.
func New(cfg Config) *Fetcher {
	if cfg.LinksPerPage <= 0 {
		cfg.LinksPerPage = 10
	}
	if cfg.BodySize <= 0 {
		cfg.BodySize = 2048
	}
	if cfg.Seed == 0 {
		cfg.Seed = 1
	}
	return &Fetcher{cfg: cfg, rng: rand.New(rand.NewSource(cfg.Seed))}
}

// Fetch fabricates a FetchResult for rawURL after simulating latency. It
// never makes a network call; ctx cancellation is reported as a
// KindCancelled FetchError, and an unparseable rawURL as a KindNet one.
func (f *Fetcher) Fetch(ctx context.Context, rawURL string) (*crawler.FetchResult, error) {
	delay := f.cfg.Delay
	if f.cfg.Jitter > 0 {
		f.mu.Lock()
		delay += time.Duration(f.rng.Int63n(int64(f.cfg.Jitter)))
		f.mu.Unlock()
	}

	select {
	case <-time.After(delay):
	case <-ctx.Done():
		return nil, &crawler.FetchError{Kind: crawler.KindCancelled, URL: rawURL, Err: ctx.Err()}
	}

	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, &crawler.FetchError{Kind: crawler.KindNet, URL: rawURL, Err: err}
	}

	f.mu.Lock()
	n := f.rng.Intn(f.cfg.LinksPerPage) + 1
	ids := make([]int64, n)
	for i := range ids {
		ids[i] = f.rng.Int63()
	}
	f.mu.Unlock()

	var body strings.Builder
	body.WriteString("<html><body>")
	for i, id := range ids {
		fmt.Fprintf(&body, `<a href="/synthetic/%d/%d">link</a>`, id, i)
	}
	for body.Len() < f.cfg.BodySize {
		body.WriteString(" padding")
	}
	body.WriteString("</body></html>")

	return &crawler.FetchResult{
		Body:        []byte(body.String()),
		FinalURL:    u.String(),
		ContentType: "text/html",
	}, nil
}
