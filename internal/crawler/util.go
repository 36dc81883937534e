package crawler

import "strings"

// HostAllowed reports whether host may be enqueued given an optional
// allowlist. An empty allowlist permits every host, matching the default
// unrestricted crawl; a non-empty one restricts discovery to exactly
// those hosts, letting a caller bound a crawl to one site or a small set
// of related ones without touching the Frontier or Normalizer.
func HostAllowed(host string, allowlist []string) bool {
	if len(allowlist) == 0 {
		return true
	}
	host = strings.ToLower(host)
	for _, h := range allowlist {
		if strings.ToLower(h) == host {
			return true
		}
	}
	return false
}
