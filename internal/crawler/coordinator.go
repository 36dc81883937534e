package crawler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Controller is the brain of the crawl: it owns the Frontier and
// VisitedSet, seeds the initial work, spawns the worker pool, and
// drives the shutdown protocol. It is the only component that logs a
// crawl-level summary.
type Controller struct {
	cfg      Config
	frontier *Frontier
	visited  VisitedSet
	fetcher  Fetcher
	parser   Parser
	metrics  MetricsSink
	logger   *zap.Logger

	fetchedOK   int64
	fetchErrors int64
}

// Summary reports the outcome of a completed crawl.
type Summary struct {
	PagesFetched int64
	Errors       int64
	Dropped      int64
	Duration     time.Duration
	RatePerSec   float64
}

// NewController wires a Controller from its dependencies. A nil logger or
// metrics sink is replaced with a no-op implementation.
func NewController(cfg Config, fetcher Fetcher, parser Parser, metrics MetricsSink, logger *zap.Logger) *Controller {
	if logger == nil {
		logger = zap.NewNop()
	}
	if metrics == nil {
		metrics = NoopMetrics{}
	}

	var visited VisitedSet
	if cfg.UseBloom {
		visited = NewBloomVisitedSet(cfg.BloomExpectedItems(), cfg.BloomFPR)
	} else {
		visited = NewExactVisitedSet()
	}

	frontier := NewFrontier(visited, cfg.MaxPerHost, cfg.MinIntervalPerHost, cfg.MaxQueuePerHost)

	return &Controller{
		cfg:      cfg,
		frontier: frontier,
		visited:  visited,
		fetcher:  fetcher,
		parser:   parser,
		metrics:  metrics,
		logger:   logger,
	}
}

// Crawl normalizes and enqueues seeds, runs the worker pool to completion
// (budget exhaustion, natural exhaustion, or ctx cancellation), and
// returns a Summary. It blocks until the crawl has fully drained or the
// shutdown grace period has elapsed.
func (c *Controller) Crawl(ctx context.Context, seeds []string) (Summary, error) {
	start := time.Now()

	seeded := 0
	for _, raw := range seeds {
		nu, err := Normalize(nil, raw, c.cfg.NormalizeConfig())
		if err != nil {
			c.logger.Warn("seed rejected", zap.String("url", raw), zap.Error(err))
			continue
		}
		c.frontier.Enqueue(nu)
		seeded++
	}
	if seeded == 0 {
		return Summary{}, fmt.Errorf("crawlcore: no valid seed URLs")
	}

	// Workers run on a context detached from ctx: cancelling ctx closes the
	// frontier first, and in-flight fetches are only cancelled once
	// ShutdownGrace has elapsed.
	workerCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()

	deps := WorkerDeps{
		Frontier:     c.frontier,
		Fetcher:      c.fetcher,
		Parser:       c.parser,
		NormConfig:   c.cfg.NormalizeConfig(),
		MaxPages:     c.cfg.MaxPages,
		AllowedHosts: c.cfg.AllowedHosts,
		Metrics:      c.metrics,
		Logger:       c.logger,

		FetchedOK:   &c.fetchedOK,
		FetchErrors: &c.fetchErrors,
	}

	var workers sync.WaitGroup
	for i := 0; i < c.cfg.NumWorkers; i++ {
		workers.Add(1)
		go func() {
			defer workers.Done()
			RunWorker(workerCtx, deps)
		}()
	}

	// Report frontier depth to the metrics sink on a fixed tick, the same
	// way PageFetched/FetchFailed are reported as they happen rather than
	// only in the final summary.
	depthDone := make(chan struct{})
	defer close(depthDone)
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.metrics.FrontierDepth(c.frontier.Depth())
			case <-depthDone:
				return
			}
		}
	}()

	// Natural exhaustion: once every host's queue and in-flight count
	// reach zero the frontier is still open, so close it ourselves. This
	// mirrors a WaitGroup-driven closer, with outstanding work tracked
	// inside the frontier instead of here. A budget trip or cancellation can
	// leave URLs queued, so outstanding work may never reach zero; Crawl
	// therefore does not wait for this goroutine.
	go func() {
		c.frontier.Wait()
		c.frontier.Close()
	}()

	workersDone := make(chan struct{})
	go func() {
		workers.Wait()
		close(workersDone)
	}()

	select {
	case <-workersDone:
	case <-ctx.Done():
		c.frontier.Close()
		select {
		case <-workersDone:
		case <-time.After(c.cfg.ShutdownGrace):
			cancel()
			<-workersDone
		}
	}

	dur := time.Since(start)
	summary := Summary{
		PagesFetched: atomic.LoadInt64(&c.fetchedOK),
		Errors:       atomic.LoadInt64(&c.fetchErrors),
		Dropped:      c.frontier.Dropped(),
		Duration:     dur,
	}
	if dur.Seconds() > 0 {
		summary.RatePerSec = float64(summary.PagesFetched) / dur.Seconds()
	}

	c.logger.Info("crawl summary",
		zap.Int64("pages_fetched", summary.PagesFetched),
		zap.Int64("errors", summary.Errors),
		zap.Int64("dropped", summary.Dropped),
		zap.Duration("duration", summary.Duration),
		zap.Float64("rate_per_sec", summary.RatePerSec),
	)

	return summary, nil
}
