package crawler

import (
	"time"

	"go.uber.org/zap"
)

// ZapMetrics logs every observation at debug level. It is meant for local
// runs and tests; a production deployment would swap in a sink that feeds
// an exporter instead, which is out of scope here.
type ZapMetrics struct {
	Logger *zap.Logger
}

func (m ZapMetrics) PageFetched(host string) {
	m.Logger.Debug("page_fetched", zap.String("host", host))
}

func (m ZapMetrics) FetchFailed(host string, kind ErrorKind) {
	m.Logger.Debug("fetch_failed", zap.String("host", host), zap.String("kind", string(kind)))
}

func (m ZapMetrics) RequestDuration(host string, d time.Duration) {
	m.Logger.Debug("request_duration", zap.String("host", host), zap.Duration("duration", d))
}

func (m ZapMetrics) FrontierDepth(n int) {
	m.Logger.Debug("frontier_depth", zap.Int("depth", n))
}
