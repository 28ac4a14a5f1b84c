// Package emailextract locates email addresses in HTML — direct mailto
// anchors, common de-obfuscation patterns, and the canonical regex form —
// and normalizes them for deduplication (spec.md §4.2).
package emailextract

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// obfuscation holds a de-obfuscation regex and its replacement template,
// applied in order against the page's visible text before the canonical
// email regex runs.
type obfuscation struct {
	pattern     *regexp.Regexp
	replacement string
}

var obfuscations = []obfuscation{
	// user [at] host [dot] tld
	{regexp.MustCompile(`(?i)([A-Za-z0-9._%+-]+)\s*\[at\]\s*([A-Za-z0-9.-]+)\s*\[dot\]\s*([A-Za-z]{2,})`), "$1@$2.$3"},
	// user (at) host (dot) tld
	{regexp.MustCompile(`(?i)([A-Za-z0-9._%+-]+)\s*\(at\)\s*([A-Za-z0-9.-]+)\s*\(dot\)\s*([A-Za-z]{2,})`), "$1@$2.$3"},
	// user [AT] host [DOT] tld, case-sensitive
	{regexp.MustCompile(`([A-Za-z0-9._%+-]+)\s*\[AT\]\s*([A-Za-z0-9.-]+)\s*\[DOT\]\s*([A-Za-z]{2,})`), "$1@$2.$3"},
	// user @ host . tld with arbitrary whitespace
	{regexp.MustCompile(`([A-Za-z0-9._%+-]+)\s*@\s*([A-Za-z0-9.-]+)\s*\.\s*([A-Za-z]{2,})`), "$1@$2.$3"},
	// user (a) host (dot) tld
	{regexp.MustCompile(`(?i)([A-Za-z0-9._%+-]+)\s*\(a\)\s*([A-Za-z0-9.-]+)\s*\(dot\)\s*([A-Za-z]{2,})`), "$1@$2.$3"},
}

// emailPattern is the canonical email regex used after de-obfuscation.
var emailPattern = regexp.MustCompile(`\b[A-Za-z0-9][A-Za-z0-9._%+-]*@[A-Za-z0-9][A-Za-z0-9.-]*\.[A-Za-z]{2,}\b`)

// Candidate is a raw email string as it appeared on the page, paired
// with its normalized form.
type Candidate struct {
	Raw        string
	Normalized string
}

// Extract parses html and returns every syntactically valid email found,
// deduplicated by normalized form. The first raw spelling encountered for
// a given normalized form wins.
func Extract(html string) []Candidate {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	seen := make(map[string]struct{})

	var out []Candidate

	add := func(raw string) {
		normalized, ok := Normalize(raw)
		if !ok {
			return
		}

		if _, dup := seen[normalized]; dup {
			return
		}

		seen[normalized] = struct{}{}

		out = append(out, Candidate{Raw: raw, Normalized: normalized})
	}

	doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		if !strings.HasPrefix(strings.ToLower(href), "mailto:") {
			return
		}

		addr := href[len("mailto:"):]
		if idx := strings.Index(addr, "?"); idx != -1 {
			addr = addr[:idx]
		}

		addr = strings.TrimSpace(addr)
		if addr != "" {
			add(addr)
		}
	})

	text := doc.Text()
	for _, ob := range obfuscations {
		text = ob.pattern.ReplaceAllString(text, ob.replacement)
	}

	for _, raw := range emailPattern.FindAllString(text, -1) {
		add(raw)
	}

	return out
}

// Normalize lowercases and trims a candidate email, strips common
// trailing punctuation and enclosing brackets/quotes, then validates its
// syntax. It reports false if the result is not a syntactically valid
// email address.
func Normalize(raw string) (string, bool) {
	s := strings.ToLower(strings.TrimSpace(raw))
	s = strings.TrimRight(s, ".,;:!?")
	s = strings.Trim(s, "<>()[]{}\"' ")

	if !isValidSyntax(s) {
		return "", false
	}

	return s, true
}

// syntaxPattern mirrors the canonical email regex used for recognition,
// applied here as a full-string syntax check.
var syntaxPattern = regexp.MustCompile(`^[A-Za-z0-9][A-Za-z0-9._%+-]*@[A-Za-z0-9][A-Za-z0-9.-]*\.[A-Za-z]{2,}$`)

func isValidSyntax(s string) bool {
	return syntaxPattern.MatchString(s)
}
