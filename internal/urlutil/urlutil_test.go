package urlutil

import (
	"fmt"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"pgregory.net/rapid"
)

func TestServiceOrigin(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "https://sso.example.com", ServiceOrigin("sso", "example.com"))
	assert.Equal(t, "https://windmill.localhost", ServiceOrigin("windmill", " localhost/ "))
	assert.Equal(t, "https://example.com", ServiceOrigin("", "example.com"))
}

func TestHost(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "llm.example.com", Host("https://llm.example.com/ui/"))
	assert.Equal(t, "127.0.0.1:8080", Host("http://127.0.0.1:8080"))
	assert.Equal(t, "", Host("://bad"))
}

func TestHostPattern_MatchesOnlyThatHost(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		host := fmt.Sprintf("%s.%s",
			rapid.StringMatching(`[a-z]{3,10}`).Draw(rt, "sub"),
			rapid.StringMatching(`[a-z]{2,8}\.[a-z]{2,4}`).Draw(rt, "domain"),
		)
		path := rapid.SampledFrom([]string{"", "/", "/ui/", "?x=1", "#/core"}).Draw(rt, "path")
		re := HostPattern(host)

		if !re.MatchString("https://" + host + path) {
			rt.Fatalf("expected match for %s%s", host, path)
		}
		if re.MatchString("https://" + host + ".evil.test/") {
			rt.Fatalf("matched suffixed host for %s", host)
		}
		if re.MatchString("https://sso.test/if/flow/?next=https://" + host + "/") {
			rt.Fatalf("matched host in query for %s", host)
		}
	})
}

func TestBuildAbsolute_GeneratesExpectedURLs(t *testing.T) {
	rapid.Check(t, func(rt *rapid.T) {
		base := fmt.Sprintf(
			"https://%s.%s",
			rapid.StringMatching(`[a-z]{3,12}`).Draw(rt, "baseHost"),
			rapid.StringMatching(`[a-z]{2,8}`).Draw(rt, "baseTld"),
		)
		if rapid.Bool().Draw(rt, "baseHasSlash") {
			base += "/"
		}

		pathKind := rapid.IntRange(0, 4).Draw(rt, "pathKind")
		var path string
		switch pathKind {
		case 0:
			path = ""
		case 1:
			path = "/" + rapid.StringMatching(`[a-z]{1,12}`).Draw(rt, "relativePath")
		case 2:
			path = "application/o/" + rapid.StringMatching(`[a-z]{1,12}`).Draw(rt, "nestedPath")
		case 3:
			path = fmt.Sprintf(
				"https://%s.%s/callback",
				rapid.StringMatching(`[a-z]{3,10}`).Draw(rt, "absoluteHost"),
				rapid.StringMatching(`[a-z]{2,6}`).Draw(rt, "absoluteTld"),
			)
		case 4:
			path = "#/core/" + rapid.StringMatching(`[a-z]{1,12}`).Draw(rt, "fragment")
		}

		got := BuildAbsolute(base, path)
		var want string
		switch {
		case path == "":
			want = strings.TrimRight(base, "/")
		case strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://"):
			want = path
		case strings.HasPrefix(path, "/") || strings.HasPrefix(path, "#"):
			want = strings.TrimRight(base, "/") + path
		default:
			want = strings.TrimRight(base, "/") + "/" + path
		}

		if got != want {
			rt.Fatalf("BuildAbsolute mismatch: got=%s want=%s", got, want)
		}
		parsed, err := url.Parse(got)
		if err != nil {
			rt.Fatalf("BuildAbsolute returned invalid URL %s: %v", got, err)
		}
		if parsed.Scheme == "" {
			rt.Fatalf("expected absolute URL with scheme, got=%s", got)
		}
	})
}
