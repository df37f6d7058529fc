// Package extract parses fetched HTML documents into the page metadata and
// outbound links the crawler records on each node.
package extract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// PageMeta is the head/heading metadata lifted from one document.
type PageMeta struct {
	Title       string
	H1          string
	Description string
	Canonical   string
	NoIndex     bool
}

// Parse extracts metadata and the absolute outbound links from an HTML
// document. Relative hrefs are resolved against finalURL; links that do
// not resolve to an http(s) URL are dropped.
func Parse(html string, finalURL string) (PageMeta, []string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return PageMeta{}, nil, err
	}

	base, err := url.Parse(finalURL)
	if err != nil {
		base = nil
	}

	meta := PageMeta{
		Title:       text(doc, "title"),
		H1:          text(doc, "h1"),
		Description: attr(doc, `meta[name="description"]`, "content"),
	}
	if canonical := attr(doc, `link[rel="canonical"]`, "href"); canonical != "" {
		meta.Canonical = resolve(base, canonical)
	}
	robots := strings.ToLower(attr(doc, `meta[name="robots"]`, "content"))
	meta.NoIndex = strings.Contains(robots, "noindex")

	var links []string
	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href := strings.TrimSpace(sel.AttrOr("href", ""))
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}
		abs := resolve(base, href)
		if abs == "" {
			return
		}
		links = append(links, abs)
	})

	return meta, links, nil
}

func text(doc *goquery.Document, selector string) string {
	return strings.TrimSpace(doc.Find(selector).First().Text())
}

func attr(doc *goquery.Document, selector, name string) string {
	return strings.TrimSpace(doc.Find(selector).First().AttrOr(name, ""))
}

// resolve makes href absolute against base and filters out non-web schemes
// (mailto:, javascript:, tel:, data:).
func resolve(base *url.URL, href string) string {
	ref, err := url.Parse(href)
	if err != nil {
		return ""
	}
	if base != nil {
		ref = base.ResolveReference(ref)
	}
	if ref.Scheme != "http" && ref.Scheme != "https" {
		return ""
	}
	if ref.Host == "" {
		return ""
	}
	return ref.String()
}
