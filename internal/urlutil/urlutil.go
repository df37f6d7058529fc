// Package urlutil canonicalizes URLs into the stable identities used for
// crawl deduplication and node IDs.
package urlutil

import (
	"crypto/sha256"
	"encoding/hex"
	"net/url"
	"strings"
)

// Normalize reduces a URL to its comparable identity: scheme://host/path
// with the query string and fragment discarded and the trailing slash
// stripped (except for the root path). Scheme and host are lowercased and
// default ports removed. The function is idempotent and performs no I/O.
//
// Malformed input is returned unchanged so callers can reject it via the
// domain policy instead of handling a parse error at every call site.
func Normalize(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return raw
	}

	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)

	switch u.Scheme {
	case "http":
		u.Host = strings.TrimSuffix(u.Host, ":80")
	case "https":
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}

	u.Fragment = ""
	u.RawFragment = ""
	u.RawQuery = ""
	u.ForceQuery = false
	u.User = nil

	// Collapsing distinct query strings into one identity is deliberate:
	// it prevents unbounded crawls over paginated or faceted URLs at the
	// cost of merging pages that differ only by parameters.
	u.RawPath = ""
	if p := strings.TrimRight(u.Path, "/"); p != "" {
		u.Path = p
	} else if u.Host != "" {
		u.Path = "/"
	} else {
		u.Path = ""
	}

	return u.String()
}

// StableID derives the permanent node identity for a normalized URL.
func StableID(normalized string) string {
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])[:16]
}

// Host extracts the lowercased hostname, or "" when the URL is unparsable.
func Host(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(u.Hostname())
}
