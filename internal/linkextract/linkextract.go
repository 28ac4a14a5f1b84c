// Package linkextract parses a fetched HTML page and returns canonical,
// in-scope absolute URLs reachable from it (spec.md §4.4).
package linkextract

import (
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/emailengineer/email-extractor/internal/urlcanon"
)

var skippedSchemes = []string{"mailto:", "tel:", "javascript:"}

// Extract parses html (fetched from pageURL) and returns the set of
// canonical, in-scope absolute URLs linked from it via <a href> or
// <area href>. baseHost is the domain the crawl is scoped to. Parse
// failures yield an empty, non-nil set.
func Extract(html, pageURL, baseHost string) []string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return []string{}
	}

	base, err := url.Parse(pageURL)
	if err != nil {
		return []string{}
	}

	seen := make(map[string]struct{})

	var out []string

	collect := func(href string) {
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}

		lower := strings.ToLower(href)
		for _, scheme := range skippedSchemes {
			if strings.HasPrefix(lower, scheme) {
				return
			}
		}

		resolved, err := base.Parse(href)
		if err != nil {
			return
		}

		canonical := urlcanon.Canonicalize(resolved.String())
		if !urlcanon.InScope(canonical, baseHost) {
			return
		}

		if _, dup := seen[canonical]; dup {
			return
		}

		seen[canonical] = struct{}{}
		out = append(out, canonical)
	}

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		collect(href)
	})

	doc.Find("area[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		collect(href)
	})

	if out == nil {
		out = []string{}
	}

	return out
}
