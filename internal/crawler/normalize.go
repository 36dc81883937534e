package crawler

import (
	"net"
	"net/url"
	"strings"
)

// NormalizedURL is the canonical form every frontier operation and the
// VisitedSet key on. Two raw strings that resolve to the same
// NormalizedURL are the same crawl target.
type NormalizedURL struct {
	Scheme   string
	Hostname string // lowercase, no port
	Port     string // empty when it is the scheme default
	Path     string
	Query    string
}

// Host returns the dial target: hostname, plus port when it is not the
// scheme default. It is also the politeness unit keying Frontier host state.
func (u NormalizedURL) Host() string {
	if u.Port == "" {
		return u.Hostname
	}
	return u.Hostname + ":" + u.Port
}

// String renders the canonical URL used for dedup keys, logging, and
// outbound requests.
func (u NormalizedURL) String() string {
	var b strings.Builder
	b.WriteString(u.Scheme)
	b.WriteString("://")
	b.WriteString(u.Host())
	b.WriteString(u.Path)
	if u.Query != "" {
		b.WriteByte('?')
		b.WriteString(u.Query)
	}
	return b.String()
}

// NormalizeConfig is the slice of Config the Normalizer needs.
type NormalizeConfig struct {
	MaxURLLength int
}

// Normalize resolves raw against base (nil when raw is already absolute)
// and reduces it to a NormalizedURL, or returns a *RejectError describing
// why it can never be a crawl target.
func Normalize(base *url.URL, raw string, cfg NormalizeConfig) (NormalizedURL, error) {
	ref, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return NormalizedURL{}, &RejectError{Reason: RejectParse, Raw: raw}
	}

	abs := ref
	if base != nil {
		abs = base.ResolveReference(ref)
	}

	scheme := strings.ToLower(abs.Scheme)
	if scheme != "http" && scheme != "https" {
		return NormalizedURL{}, &RejectError{Reason: RejectBadScheme, Raw: raw}
	}

	host := strings.ToLower(abs.Hostname())
	if host == "" {
		return NormalizedURL{}, &RejectError{Reason: RejectEmptyHost, Raw: raw}
	}
	if net.ParseIP(host) != nil {
		return NormalizedURL{}, &RejectError{Reason: RejectIPLiteral, Raw: raw}
	}

	port := abs.Port()
	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		port = ""
	}

	path := collapseSlashes(abs.EscapedPath())
	if path == "" {
		path = "/"
	}

	out := NormalizedURL{
		Scheme:   scheme,
		Hostname: host,
		Port:     port,
		Path:     path,
		Query:    abs.RawQuery,
	}

	if cfg.MaxURLLength > 0 && len(out.String()) > cfg.MaxURLLength {
		return NormalizedURL{}, &RejectError{Reason: RejectTooLong, Raw: raw}
	}

	return out, nil
}

// collapseSlashes folds runs of "/" into one, leaving an absolute path
// produced by url.ResolveReference stable across otherwise-identical links.
func collapseSlashes(path string) string {
	var b strings.Builder
	prevSlash := false
	for _, r := range path {
		if r == '/' {
			if prevSlash {
				continue
			}
			prevSlash = true
		} else {
			prevSlash = false
		}
		b.WriteRune(r)
	}
	return b.String()
}
