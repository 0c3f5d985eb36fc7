package common

import (
	"net/url"
	"regexp"
	"strings"
)

var (
	markdownLinkRe = regexp.MustCompile(`\((https?://[^\s)]+)\)`)
	bareLinkRe     = regexp.MustCompile(`https?://[^\s,]+`)
)

// IsHTTPURL reports whether the string is a valid absolute http(s) URL
func IsHTTPURL(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return false
	}
	return (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}

// AbsoluteURL resolves a possibly relative URL against a base URL.
// Returns the input unchanged when it cannot be resolved.
func AbsoluteURL(raw string, base *url.URL) string {
	if raw == "" || base == nil {
		return raw
	}
	ref, err := url.Parse(raw)
	if err != nil {
		if strings.HasPrefix(raw, "/") {
			return base.Scheme + "://" + base.Host + raw
		}
		return raw
	}
	return base.ResolveReference(ref).String()
}

// StripMarkdownURL extracts a bare URL from markdown-link noise like
// "[title](https://example.com/movie/)" or surrounding commas/whitespace.
func StripMarkdownURL(s string) string {
	s = strings.TrimSpace(s)
	if m := markdownLinkRe.FindStringSubmatch(s); len(m) > 1 {
		return m[1]
	}
	if m := bareLinkRe.FindString(s); m != "" {
		return m
	}
	return strings.Trim(s, " \t,")
}

// NormalizeDetailURL canonicalizes a movie detail page URL: resolve against
// base, keep origin + path only (no query or fragment), ensure a trailing
// slash. Returns "" when the candidate cannot be normalized.
func NormalizeDetailURL(raw string, base *url.URL) string {
	candidate := StripMarkdownURL(raw)
	if candidate == "" {
		return ""
	}

	var u *url.URL
	var err error
	if base != nil {
		ref, perr := url.Parse(candidate)
		if perr != nil {
			return ""
		}
		u = base.ResolveReference(ref)
	} else {
		u, err = url.Parse(candidate)
		if err != nil {
			return ""
		}
	}

	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	if u.Host == "" {
		return ""
	}

	path := u.EscapedPath()
	if !strings.HasSuffix(path, "/") {
		path += "/"
	}

	return u.Scheme + "://" + u.Host + path
}
