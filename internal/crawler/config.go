package crawler

import "time"

// Config carries every tunable of the crawl engine. There is no file or
// environment loader here: configuration loading is treated as an external
// concern, same as command-line parsing.
type Config struct {
	// NumWorkers is the count of concurrent worker goroutines.
	NumWorkers int
	// MaxPerHost is the maximum number of concurrent fetches to a single host.
	MaxPerHost int
	// MinIntervalPerHost is the minimum spacing between successive fetches
	// to the same host. Zero disables spacing.
	MinIntervalPerHost time.Duration
	// MaxPages is the page budget. The crawl begins shutdown once
	// fetched_ok reaches this value. Zero means unbounded.
	MaxPages int
	// RequestTimeout bounds a single fetch end to end.
	RequestTimeout time.Duration
	// MaxRedirects caps the number of redirects a fetch will follow.
	MaxRedirects int
	// MaxBodyBytes caps the response body size a fetch will read.
	MaxBodyBytes int64
	// MaxURLLength rejects normalized URLs longer than this.
	MaxURLLength int
	// UseBloom selects the approximate (Bloom filter) VisitedSet.
	UseBloom bool
	// BloomFPR is the Bloom filter's target false-positive rate.
	BloomFPR float64
	// UseDNSCache enables the caching, singleflight-coalesced resolver.
	UseDNSCache bool
	// DNSNegativeTTL is how long a failed resolution is cached.
	DNSNegativeTTL time.Duration
	// MaxQueuePerHost optionally bounds per-host queue depth (0 = unbounded).
	MaxQueuePerHost int
	// GlobalRateLimitQPS optionally caps aggregate fetch throughput
	// process-wide, layered above per-host spacing (0 = unlimited).
	GlobalRateLimitQPS float64
	// ShutdownGrace bounds how long the controller waits for workers to
	// drain after the frontier is closed before cancelling in-flight fetches.
	ShutdownGrace time.Duration
	// UserAgent is sent on every fetch.
	UserAgent string
	// AllowedHosts optionally restricts discovery to this set of hosts.
	// Empty means unrestricted.
	AllowedHosts []string
}

// DefaultConfig returns the configuration defaults named in the spec.
func DefaultConfig() Config {
	return Config{
		NumWorkers:         20,
		MaxPerHost:         10,
		MinIntervalPerHost: 500 * time.Millisecond,
		MaxPages:           30000,
		RequestTimeout:     10 * time.Second,
		MaxRedirects:       5,
		MaxBodyBytes:       5 * 1024 * 1024,
		MaxURLLength:       2048,
		UseBloom:           false,
		BloomFPR:           0.01,
		UseDNSCache:        true,
		DNSNegativeTTL:     30 * time.Second,
		MaxQueuePerHost:    0,
		GlobalRateLimitQPS: 0,
		ShutdownGrace:      30 * time.Second,
		UserAgent:          "crawlcore/1.0",
	}
}

// NormalizeConfig extracts the Normalizer's slice of Config.
func (c Config) NormalizeConfig() NormalizeConfig {
	return NormalizeConfig{MaxURLLength: c.MaxURLLength}
}

// BloomExpectedItems sizes the Bloom filter from the page budget, inflated
// to account for discovered links exceeding fetched pages.
func (c Config) BloomExpectedItems() uint {
	const inflation = 4
	n := c.MaxPages * inflation
	if n <= 0 {
		n = 4000
	}
	return uint(n)
}
