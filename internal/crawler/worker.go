package crawler

import (
	"bytes"
	"context"
	"errors"
	"net/url"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// WorkerDeps bundles everything a worker goroutine needs. It is a plain
// struct rather than a constructor's worth of positional params because
// Controller spawns NumWorkers of these with identical dependencies.
type WorkerDeps struct {
	Frontier     *Frontier
	Fetcher      Fetcher
	Parser       Parser
	NormConfig   NormalizeConfig
	MaxPages     int
	AllowedHosts []string
	Metrics      MetricsSink
	Logger       *zap.Logger

	FetchedOK   *int64
	FetchErrors *int64
}

// RunWorker pulls leases from the frontier until the page budget is spent,
// the frontier closes, or ctx is cancelled. CRITICAL: every lease obtained
// from Next is released exactly once, even if processing panics, or the
// frontier's outstanding-work count never reaches zero and a controller
// waiting on it hangs forever.
func RunWorker(ctx context.Context, deps WorkerDeps) {
	for {
		if budgetSpent(deps) {
			deps.Frontier.Close()
			return
		}

		u, lease, ok := deps.Frontier.Next(ctx)
		if !ok {
			return
		}

		processLease(ctx, u, lease, deps)

		if budgetSpent(deps) {
			deps.Frontier.Close()
		}
	}
}

func budgetSpent(deps WorkerDeps) bool {
	return deps.MaxPages > 0 && atomic.LoadInt64(deps.FetchedOK) >= int64(deps.MaxPages)
}

// processLease fetches, parses, and enqueues the links of a single leased
// URL. A deferred recover guarantees the lease is always released, so a
// panic mid-page cannot wedge the frontier's termination accounting.
func processLease(ctx context.Context, u NormalizedURL, lease LeaseToken, deps WorkerDeps) {
	start := time.Now()
	defer func() {
		if r := recover(); r != nil {
			deps.Logger.Error("worker panic recovered", zap.Any("panic", r), zap.String("url", u.String()))
			atomic.AddInt64(deps.FetchErrors, 1)
			deps.Metrics.FetchFailed(u.Host(), KindFatal)
		}
		deps.Frontier.Release(lease)
		deps.Metrics.RequestDuration(u.Host(), time.Since(start))
	}()

	rawURL := u.String()
	result, err := deps.Fetcher.Fetch(ctx, rawURL)
	if err != nil {
		atomic.AddInt64(deps.FetchErrors, 1)
		kind := classifyFetchError(err, ctx)
		deps.Logger.Warn("fetch failed", zap.String("url", rawURL), zap.String("kind", string(kind)), zap.Error(err))
		deps.Metrics.FetchFailed(u.Host(), kind)
		return
	}

	atomic.AddInt64(deps.FetchedOK, 1)
	deps.Metrics.PageFetched(u.Host())

	if !isHTML(result.ContentType) {
		return
	}

	links, err := deps.Parser.ExtractLinks(result.FinalURL, bytes.NewReader(result.Body), result.ContentType)
	if err != nil {
		deps.Logger.Debug("parse failed", zap.String("url", result.FinalURL), zap.Error(err))
		return
	}

	base, err := url.Parse(result.FinalURL)
	if err != nil {
		return
	}

	for _, raw := range links {
		nu, err := Normalize(base, raw, deps.NormConfig)
		if err != nil {
			continue
		}
		if !HostAllowed(nu.Hostname, deps.AllowedHosts) {
			continue
		}
		deps.Frontier.Enqueue(nu)
	}
}

// classifyFetchError recovers the ErrorKind a Fetcher tagged its failure
// with, falling back to KindCancelled when ctx explains the failure and
// KindNet otherwise.
func classifyFetchError(err error, ctx context.Context) ErrorKind {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe.Kind
	}
	if ctx.Err() != nil {
		return KindCancelled
	}
	return KindNet
}

// isHTML reports whether a Content-Type header names an HTML document
// family. An empty Content-Type is treated as HTML, matching servers that
// omit the header for plain HTML responses.
func isHTML(contentType string) bool {
	if contentType == "" {
		return true
	}
	ct := strings.ToLower(strings.TrimSpace(strings.SplitN(contentType, ";", 2)[0]))
	return ct == "text/html" || ct == "application/xhtml+xml"
}
