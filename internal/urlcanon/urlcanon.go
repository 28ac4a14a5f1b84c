// Package urlcanon normalizes URLs and decides in-scope link filtering
// for the domain crawler (spec.md §4.1).
package urlcanon

import (
	"net/url"
	"strings"
)

const wwwPrefix = "www."

// excludedExtensions are path suffixes that are never worth fetching.
var excludedExtensions = []string{
	".pdf", ".jpg", ".jpeg", ".png", ".gif", ".css", ".js", ".ico", ".svg",
	".zip", ".mp4", ".mp3", ".avi", ".mov", ".wmv", ".flv", ".webm",
	".doc", ".docx", ".xls", ".xlsx", ".ppt", ".pptx",
	".exe", ".dmg", ".apk", ".deb", ".rpm",
}

// Canonicalize normalizes a raw URL: adds a scheme if missing, lowercases
// and strips the leading www. from the host, drops a trailing slash from
// the path (substituting "/" for an empty path), and discards the query
// and fragment. On parse failure the input is returned unchanged.
func Canonicalize(raw string) string {
	if raw == "" {
		return raw
	}

	withScheme := raw
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		withScheme = "https://" + raw
	}

	parsed, err := url.Parse(withScheme)
	if err != nil {
		return raw
	}

	host := normalizeHost(parsed.Host)

	path := strings.TrimSuffix(parsed.Path, "/")
	if path == "" {
		path = "/"
	}

	out := url.URL{
		Scheme: parsed.Scheme,
		Host:   host,
		Path:   path,
	}

	return out.String()
}

// HostOf returns the lowercased host of url with a leading www. removed,
// or the empty string if url does not parse.
func HostOf(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}

	return normalizeHost(parsed.Host)
}

func normalizeHost(host string) string {
	host = strings.ToLower(host)
	return strings.TrimPrefix(host, wwwPrefix)
}

// InScope reports whether raw parses, has a scheme and host, belongs to
// baseHost (same host or subdomain), and does not point at an excluded
// file extension.
func InScope(raw, baseHost string) bool {
	parsed, err := url.Parse(raw)
	if err != nil {
		return false
	}

	if parsed.Scheme == "" || parsed.Host == "" {
		return false
	}

	host := normalizeHost(parsed.Host)
	base := normalizeHost(baseHost)

	if host != base && !strings.HasSuffix(host, "."+base) {
		return false
	}

	pathLower := strings.ToLower(parsed.Path)
	for _, ext := range excludedExtensions {
		if strings.HasSuffix(pathLower, ext) {
			return false
		}
	}

	return true
}
