package models

import (
	"net/url"
	"regexp"
	"strings"
)

// unknownDomain is the fallback value when a URL cannot be parsed.
const unknownDomain = "unknown"

// wwwPrefix is the subdomain prefix stripped by NormalizeDomain.
const wwwPrefix = "www."

// NormalizeDomain extracts the lower-cased host from a URL, stripping the
// "www." prefix. Discovery duplicate checks and organization dedup grouping
// both key on this value, so they must agree.
func NormalizeDomain(rawURL string) string {
	s := strings.TrimSpace(rawURL)
	if s == "" {
		return unknownDomain
	}
	if !strings.Contains(s, "://") {
		s = "https://" + s
	}
	u, err := url.Parse(s)
	if err != nil || u.Hostname() == "" {
		return unknownDomain
	}
	host := strings.ToLower(u.Hostname())
	return strings.TrimPrefix(host, wwwPrefix)
}

// NormalizeName lower-cases and whitespace-trims a name for dedup grouping.
// Interior runs of whitespace collapse to a single space so "OMSI  Camps"
// and "omsi camps" group together.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

var nonSlugChars = regexp.MustCompile(`[^a-z0-9]+`)

// Slugify derives a URL-safe slug from an organization name.
func Slugify(name string) string {
	slug := nonSlugChars.ReplaceAllString(strings.ToLower(name), "-")
	return strings.Trim(slug, "-")
}
