package crawler

import (
	"context"
	"errors"
	"io"
	"sync/atomic"
	"testing"
	"time"

	"go.uber.org/zap"
)

// mockFetcher is a mock implementation of the Fetcher interface for testing.
type mockFetcher struct {
	responses    map[string][]byte
	errors       map[string]error
	contentTypes map[string]string
	finalURLs    map[string]string
}

func (m *mockFetcher) Fetch(ctx context.Context, url string) (*FetchResult, error) {
	if err, ok := m.errors[url]; ok {
		return nil, err
	}
	if body, ok := m.responses[url]; ok {
		finalURL := url
		if fu, ok := m.finalURLs[url]; ok {
			finalURL = fu
		}
		contentType := "text/html"
		if ct, ok := m.contentTypes[url]; ok {
			contentType = ct
		}
		return &FetchResult{Body: body, FinalURL: finalURL, ContentType: contentType}, nil
	}
	return nil, errors.New("url not found in mock")
}

// mockParser is a mock implementation of the Parser interface for testing.
type mockParser struct {
	links []string
	err   error
	fn    func(io.Reader) ([]string, error)
}

func (m *mockParser) ExtractLinks(baseURL string, r io.Reader, contentType string) ([]string, error) {
	if m.fn != nil {
		return m.fn(r)
	}
	if m.err != nil {
		return nil, m.err
	}
	return m.links, nil
}

func newTestDeps(fetcher Fetcher, parser Parser) (WorkerDeps, *Frontier) {
	frontier := NewFrontier(NewExactVisitedSet(), 10, 0, 0)
	var ok, errs int64
	return WorkerDeps{
		Frontier:   frontier,
		Fetcher:    fetcher,
		Parser:     parser,
		NormConfig: NormalizeConfig{MaxURLLength: 2048},
		MaxPages:   0,
		Metrics:    NoopMetrics{},
		Logger:     zap.NewNop(),

		FetchedOK:   &ok,
		FetchErrors: &errs,
	}, frontier
}

func TestProcessLease_SuccessEnqueuesLinks(t *testing.T) {
	fetcher := &mockFetcher{
		responses: map[string][]byte{
			"https://example.com/page": []byte(`<html><body><a href="/link1">Link</a></body></html>`),
		},
	}
	parser := &mockParser{links: []string{"/link1", "/link2"}}

	deps, frontier := newTestDeps(fetcher, parser)
	u, _ := Normalize(nil, "https://example.com/page", deps.NormConfig)
	frontier.Enqueue(u)

	_, lease, ok := frontier.Next(context.Background())
	if !ok {
		t.Fatal("expected a lease")
	}
	processLease(context.Background(), u, lease, deps)

	if got := atomic.LoadInt64(deps.FetchedOK); got != 1 {
		t.Errorf("fetchedOK = %d, want 1", got)
	}
	if frontier.Depth() != 2 {
		t.Errorf("frontier depth = %d, want 2 (link1, link2 enqueued)", frontier.Depth())
	}
}

func TestProcessLease_FetchErrorIncrementsErrorCount(t *testing.T) {
	fetcher := &mockFetcher{errors: map[string]error{
		"https://example.com/page": &FetchError{Kind: KindHTTP, URL: "https://example.com/page", StatusCode: 500},
	}}
	parser := &mockParser{}

	deps, frontier := newTestDeps(fetcher, parser)
	u, _ := Normalize(nil, "https://example.com/page", deps.NormConfig)
	frontier.Enqueue(u)
	_, lease, _ := frontier.Next(context.Background())

	processLease(context.Background(), u, lease, deps)

	if got := atomic.LoadInt64(deps.FetchErrors); got != 1 {
		t.Errorf("fetchErrors = %d, want 1", got)
	}
	if got := atomic.LoadInt64(deps.FetchedOK); got != 0 {
		t.Errorf("fetchedOK = %d, want 0", got)
	}
}

func TestProcessLease_NonHTMLSkipsParsing(t *testing.T) {
	fetcher := &mockFetcher{
		responses:    map[string][]byte{"https://example.com/file.pdf": []byte("%PDF-1.4")},
		contentTypes: map[string]string{"https://example.com/file.pdf": "application/pdf"},
	}
	parser := &mockParser{fn: func(io.Reader) ([]string, error) {
		t.Fatal("parser should not be called for non-HTML content")
		return nil, nil
	}}

	deps, frontier := newTestDeps(fetcher, parser)
	u, _ := Normalize(nil, "https://example.com/file.pdf", deps.NormConfig)
	frontier.Enqueue(u)
	_, lease, _ := frontier.Next(context.Background())

	processLease(context.Background(), u, lease, deps)

	if got := atomic.LoadInt64(deps.FetchedOK); got != 1 {
		t.Errorf("fetchedOK = %d, want 1", got)
	}
}

func TestProcessLease_PanicStillReleasesLease(t *testing.T) {
	fetcher := &mockFetcher{}
	parser := &mockParser{fn: func(io.Reader) ([]string, error) {
		panic("boom")
	}}
	fetcher.responses = map[string][]byte{"https://example.com/page": []byte("<html></html>")}

	deps, frontier := newTestDeps(fetcher, parser)
	u, _ := Normalize(nil, "https://example.com/page", deps.NormConfig)
	frontier.Enqueue(u)
	_, lease, _ := frontier.Next(context.Background())

	func() {
		defer func() { recover() }()
		processLease(context.Background(), u, lease, deps)
	}()

	done := make(chan struct{})
	go func() {
		frontier.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("outstanding work never drained after a panicking worker")
	}
}

func TestIsHTML(t *testing.T) {
	tests := []struct {
		contentType string
		want        bool
	}{
		{"", true},
		{"text/html", true},
		{"text/html; charset=utf-8", true},
		{"TEXT/HTML", true},
		{"application/xhtml+xml", true},
		{"application/pdf", false},
		{"image/png", false},
	}
	for _, tt := range tests {
		if got := isHTML(tt.contentType); got != tt.want {
			t.Errorf("isHTML(%q) = %v, want %v", tt.contentType, got, tt.want)
		}
	}
}
