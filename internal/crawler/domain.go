package crawler

import (
	"strings"

	"github.com/pagescope/sitemapper/internal/urlutil"
)

// DomainPolicy is the authorization boundary that keeps the crawl inside
// the target site. A URL is internal when its host equals an allowed
// domain or is a subdomain of one. It is consulted before enqueue, not
// only before fetch, so out-of-scope links never churn the frontier.
type DomainPolicy struct {
	allowed []string
}

// NewDomainPolicy builds a policy from an allow-list of domains.
func NewDomainPolicy(domains []string) *DomainPolicy {
	allowed := make([]string, 0, len(domains))
	for _, d := range domains {
		d = strings.ToLower(strings.TrimSpace(d))
		d = strings.TrimPrefix(d, ".")
		if d != "" {
			allowed = append(allowed, d)
		}
	}
	return &DomainPolicy{allowed: allowed}
}

// Allows reports whether the URL's host is inside the allowed domain set.
// Empty or unparsable hosts are always rejected.
func (p *DomainPolicy) Allows(rawURL string) bool {
	host := urlutil.Host(rawURL)
	if host == "" {
		return false
	}
	for _, d := range p.allowed {
		if host == d || strings.HasSuffix(host, "."+d) {
			return true
		}
	}
	return false
}
