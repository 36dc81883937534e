package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"go.uber.org/zap"

	"github.com/windrift/crawlcore/internal/crawler"
	"github.com/windrift/crawlcore/internal/platform/htmlparser"
	"github.com/windrift/crawlcore/internal/platform/httpclient"
)

func main() {
	cfg := crawler.DefaultConfig()

	seedsFlag := flag.String("seeds", "", "comma-separated list of starting URLs (required)")
	workers := flag.Int("workers", cfg.NumWorkers, "number of concurrent workers")
	maxPerHost := flag.Int("max-per-host", cfg.MaxPerHost, "max concurrent fetches per host")
	minIntervalMs := flag.Int("min-interval-ms", int(cfg.MinIntervalPerHost/time.Millisecond), "minimum milliseconds between fetches to the same host")
	maxPages := flag.Int("max-pages", cfg.MaxPages, "maximum pages to fetch (0 = unlimited)")
	requestTimeoutS := flag.Int("request-timeout-s", int(cfg.RequestTimeout/time.Second), "per-request timeout in seconds")
	maxRedirects := flag.Int("max-redirects", cfg.MaxRedirects, "maximum redirects to follow")
	useBloom := flag.Bool("use-bloom", cfg.UseBloom, "use an approximate (Bloom filter) visited set")
	useDNSCache := flag.Bool("use-dns-cache", cfg.UseDNSCache, "cache DNS resolutions with singleflight coalescing")
	globalQPS := flag.Float64("global-qps", cfg.GlobalRateLimitQPS, "process-wide fetch rate limit in requests/sec (0 = unlimited)")
	allowedHosts := flag.String("allowed-hosts", "", "comma-separated host allowlist (empty = unrestricted)")
	userAgent := flag.String("user-agent", cfg.UserAgent, "User-Agent header sent on every fetch")

	flag.Parse()

	if strings.TrimSpace(*seedsFlag) == "" {
		fmt.Fprintln(os.Stderr, "Error: -seeds flag is required")
		flag.Usage()
		os.Exit(1)
	}
	if *workers <= 0 {
		fmt.Fprintln(os.Stderr, "Error: -workers must be greater than 0")
		os.Exit(1)
	}

	cfg.NumWorkers = *workers
	cfg.MaxPerHost = *maxPerHost
	cfg.MinIntervalPerHost = time.Duration(*minIntervalMs) * time.Millisecond
	cfg.MaxPages = *maxPages
	cfg.RequestTimeout = time.Duration(*requestTimeoutS) * time.Second
	cfg.MaxRedirects = *maxRedirects
	cfg.UseBloom = *useBloom
	cfg.UseDNSCache = *useDNSCache
	cfg.GlobalRateLimitQPS = *globalQPS
	cfg.UserAgent = *userAgent
	if strings.TrimSpace(*allowedHosts) != "" {
		cfg.AllowedHosts = strings.Split(*allowedHosts, ",")
	}

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error creating logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	var dnsCache *crawler.DNSCache
	if cfg.UseDNSCache {
		dnsCache = crawler.NewDNSCache(cfg.DNSNegativeTTL)
	}

	fetcher := httpclient.New(httpclient.Config{
		Timeout:            cfg.RequestTimeout,
		UserAgent:          cfg.UserAgent,
		MaxBodySize:        cfg.MaxBodyBytes,
		MaxRedirects:       cfg.MaxRedirects,
		MaxPerHost:         cfg.MaxPerHost,
		GlobalRateLimitQPS: cfg.GlobalRateLimitQPS,
		DNSCache:           dnsCache,
	})

	controller := crawler.NewController(cfg, fetcher, htmlparser.New(), crawler.ZapMetrics{Logger: logger}, logger)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)

	seeds := strings.Split(*seedsFlag, ",")

	type crawlOutcome struct {
		summary crawler.Summary
		err     error
	}
	doneCh := make(chan crawlOutcome, 1)
	go func() {
		summary, err := controller.Crawl(ctx, seeds)
		doneCh <- crawlOutcome{summary: summary, err: err}
	}()

	select {
	case out := <-doneCh:
		reportOutcome(logger, out.summary, out.err)
	case sig := <-sigCh:
		logger.Info("received shutdown signal", zap.String("signal", sig.String()))
		cancel()
		select {
		case out := <-doneCh:
			reportOutcome(logger, out.summary, out.err)
		case <-time.After(cfg.ShutdownGrace + 5*time.Second):
			logger.Error("shutdown grace period exceeded, forcing exit")
			os.Exit(1)
		}
	}
}

func reportOutcome(logger *zap.Logger, summary crawler.Summary, err error) {
	if err != nil {
		logger.Error("crawl failed", zap.Error(err))
		os.Exit(1)
	}
	fmt.Printf("pages fetched: %d\nerrors: %d\ndropped: %d\nduration: %s\nrate: %.2f pages/sec\n",
		summary.PagesFetched, summary.Errors, summary.Dropped, summary.Duration, summary.RatePerSec)
}
