package urlutil

import (
	"net/url"
	"regexp"
	"strings"
)

// ServiceOrigin returns https://<sub>.<domain>, or https://<domain> when sub is empty.
func ServiceOrigin(sub, domain string) string {
	domain = strings.Trim(strings.TrimSpace(domain), "./")
	sub = strings.Trim(strings.TrimSpace(sub), ".")
	if sub == "" {
		return "https://" + domain
	}
	return "https://" + sub + "." + domain
}

// BuildAbsolute builds an absolute URL from a base origin and a path.
func BuildAbsolute(base, path string) string {
	base = normalizeBaseURL(base)
	if path == "" {
		return base
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if strings.HasPrefix(path, "/") || strings.HasPrefix(path, "#") || strings.HasPrefix(path, "?") {
		return base + path
	}
	return base + "/" + path
}

// Host returns the host[:port] of rawURL, or "" when it does not parse.
func Host(rawURL string) string {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return ""
	}
	return u.Host
}

// HostPattern matches any http(s) URL served from host exactly.
func HostPattern(host string) *regexp.Regexp {
	return regexp.MustCompile(`^https?://` + regexp.QuoteMeta(host) + `(?:[/?#]|$)`)
}

func normalizeBaseURL(base string) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return ""
	}
	return strings.TrimRight(base, "/")
}
