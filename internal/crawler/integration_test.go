package crawler_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"go.uber.org/zap"

	"github.com/windrift/crawlcore/internal/crawler"
	"github.com/windrift/crawlcore/internal/platform/htmlparser"
	"github.com/windrift/crawlcore/internal/platform/httpclient"
)

// TestIntegration_FullCrawl exercises the whole stack against a real HTTP
// server: the Normalizer, VisitedSet, Frontier admission control, the
// httpclient Fetcher, and the htmlparser Parser, end to end. The site
// graph has a cycle (page1 links back to root), a relative link, a
// redirect, and a non-HTML document, mirroring the scenarios the crawl
// model is meant to handle without special-casing.
func TestIntegration_FullCrawl(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<a href="/page1">p1</a><a href="/page2">p2</a>`))
	})
	mux.HandleFunc("/page1", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<a href="/">home again</a><a href="/redirect">r</a>`))
	})
	mux.HandleFunc("/page2", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<a href="page3.html">relative</a>`))
	})
	mux.HandleFunc("/page3.html", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<a href="/document.pdf">doc</a>`))
	})
	mux.HandleFunc("/redirect", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, "/page1", http.StatusFound)
	})
	mux.HandleFunc("/document.pdf", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.4"))
	})

	server := httptest.NewServer(mux)
	defer server.Close()

	fetcher := httpclient.New(httpclient.Config{
		Timeout:      5 * time.Second,
		UserAgent:    "crawlcore-test/1.0",
		MaxBodySize:  1 << 20,
		MaxRedirects: 5,
		MaxPerHost:   10,
	})

	cfg := crawler.DefaultConfig()
	cfg.NumWorkers = 4
	cfg.MinIntervalPerHost = 0
	cfg.MaxPages = 100

	c := crawler.NewController(cfg, fetcher, htmlparser.New(), nil, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Normalize rejects IP-literal hosts, so the test server is addressed
	// by name rather than by its 127.0.0.1 URL.
	summary, err := c.Crawl(ctx, []string{strings.Replace(server.URL, "127.0.0.1", "localhost", 1) + "/"})
	if err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}

	// root, page1, page2, page3.html, redirect (counted as its own fetch,
	// distinct from its target), document.pdf: six distinct URLs.
	if summary.PagesFetched != 6 {
		t.Errorf("PagesFetched = %d, want 6", summary.PagesFetched)
	}
	if summary.Errors != 0 {
		t.Errorf("Errors = %d, want 0", summary.Errors)
	}
}

func TestIntegration_NonHTMLHasNoOutboundLinks(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF-1.4"))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	fetcher := httpclient.New(httpclient.Config{Timeout: 5 * time.Second})
	cfg := crawler.DefaultConfig()
	cfg.NumWorkers = 2
	cfg.MinIntervalPerHost = 0

	c := crawler.NewController(cfg, fetcher, htmlparser.New(), nil, zap.NewNop())
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	summary, err := c.Crawl(ctx, []string{strings.Replace(server.URL, "127.0.0.1", "localhost", 1) + "/"})
	if err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}
	if summary.PagesFetched != 1 {
		t.Errorf("PagesFetched = %d, want 1", summary.PagesFetched)
	}
}

func TestIntegration_HTTPErrorsAreCountedNotFatal(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<a href="/missing">missing</a><a href="/ok">ok</a>`))
	})
	mux.HandleFunc("/missing", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	mux.HandleFunc("/ok", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`ok`))
	})
	server := httptest.NewServer(mux)
	defer server.Close()

	fetcher := httpclient.New(httpclient.Config{Timeout: 5 * time.Second})
	cfg := crawler.DefaultConfig()
	cfg.NumWorkers = 2
	cfg.MinIntervalPerHost = 0

	c := crawler.NewController(cfg, fetcher, htmlparser.New(), nil, zap.NewNop())
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()

	summary, err := c.Crawl(ctx, []string{strings.Replace(server.URL, "127.0.0.1", "localhost", 1) + "/"})
	if err != nil {
		t.Fatalf("Crawl() error = %v", err)
	}
	if summary.PagesFetched != 2 {
		t.Errorf("PagesFetched = %d, want 2 (/ and /ok)", summary.PagesFetched)
	}
	if summary.Errors != 1 {
		t.Errorf("Errors = %d, want 1 (/missing)", summary.Errors)
	}
}
