package crawler

import (
	"context"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/singleflight"
)

// dnsCacheEntry is either a cached address list (Err nil, Expires zero
// means it never expires) or a cached resolution failure (Err set,
// Expires is when the negative result should be retried).
type dnsCacheEntry struct {
	addrs   []string
	err     error
	expires time.Time
}

// DNSCache resolves hostnames to IP addresses with an in-memory cache and
// singleflight coalescing, so N concurrent fetches to a cold host trigger
// exactly one lookup. Positive results are cached for the process
// lifetime; negative results expire after negativeTTL so a transient
// resolver outage cannot wedge a host forever.
type DNSCache struct {
	mu          sync.RWMutex
	entries     map[string]dnsCacheEntry
	negativeTTL time.Duration
	group       singleflight.Group
	resolver    *net.Resolver
}

// NewDNSCache constructs a DNSCache using the default system resolver.
func NewDNSCache(negativeTTL time.Duration) *DNSCache {
	return &DNSCache{
		entries:     make(map[string]dnsCacheEntry),
		negativeTTL: negativeTTL,
		resolver:    net.DefaultResolver,
	}
}

// Resolve returns the IP addresses for host, consulting the cache first.
func (c *DNSCache) Resolve(ctx context.Context, host string) ([]string, error) {
	if addrs, err, ok := c.lookupCached(host); ok {
		return addrs, err
	}

	v, err, _ := c.group.Do(host, func() (interface{}, error) {
		// Re-check under the singleflight key: another caller may have
		// populated the cache while we were waiting to enter Do.
		if addrs, err, ok := c.lookupCached(host); ok {
			return addrs, err
		}

		ips, lookupErr := c.resolver.LookupHost(ctx, host)

		c.mu.Lock()
		if lookupErr != nil {
			c.entries[host] = dnsCacheEntry{err: lookupErr, expires: time.Now().Add(c.negativeTTL)}
		} else {
			c.entries[host] = dnsCacheEntry{addrs: ips}
		}
		c.mu.Unlock()

		return ips, lookupErr
	})
	if err != nil {
		return nil, err
	}
	return v.([]string), nil
}

// lookupCached reports whether a usable (unexpired) cache entry exists and,
// if so, returns its addresses/error.
func (c *DNSCache) lookupCached(host string) (addrs []string, err error, ok bool) {
	c.mu.RLock()
	entry, found := c.entries[host]
	c.mu.RUnlock()
	if !found {
		return nil, nil, false
	}
	if entry.err != nil && time.Now().After(entry.expires) {
		return nil, nil, false
	}
	return entry.addrs, entry.err, true
}
