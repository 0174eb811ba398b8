package idp

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-jose/go-jose/v3"
	"github.com/oauth2-proxy/mockoidc"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kuitang/ssocheck/internal/config"
	"github.com/kuitang/ssocheck/internal/errs"
)

func TestEndpoints_Layout(t *testing.T) {
	t.Parallel()

	e := NewEndpoints("example.com", "http://apukone-authentik-server:9000/", "windmill")

	assert.Equal(t, "https://sso.example.com/application/o/authorize/", e.AuthorizeURL())
	assert.Equal(t, "http://apukone-authentik-server:9000/application/o/token/", e.TokenURL())
	assert.Equal(t, "http://apukone-authentik-server:9000/application/o/userinfo/", e.UserinfoURL())
	assert.Equal(t, "http://apukone-authentik-server:9000/application/o/windmill/jwks/", e.JWKSURL())
	assert.Equal(t, "https://sso.example.com/application/o/windmill/", e.Issuer())
	assert.Equal(t, "https://sso.example.com/if/admin/", e.AdminURL())
	assert.Equal(t, "https://sso.example.com/if/admin/#/core/applications", e.ApplicationsURL())
	assert.Equal(t, "https://sso.example.com/if/admin/#/core/providers", e.ProvidersURL())
}

func TestFromConfig(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadFrom(map[string]string{"BASE_DOMAIN": "lab.test", "IDP_APP_SLUG": "chat"})
	require.NoError(t, err)

	e := FromConfig(cfg)
	assert.Equal(t, "https://sso.lab.test", e.PublicURL)
	assert.Equal(t, "http://apukone-authentik-server:9000/application/o/chat/jwks/", e.JWKSURL())
}

func startMockOIDC(t *testing.T) *mockoidc.MockOIDC {
	t.Helper()
	m, err := mockoidc.Run()
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Shutdown() })
	return m
}

func TestDiscover_MockProvider(t *testing.T) {
	m := startMockOIDC(t)

	d, err := Discover(context.Background(), nil, m.Issuer())
	require.NoError(t, err)

	assert.Equal(t, m.Issuer(), d.Issuer)
	assert.True(t, strings.HasPrefix(d.Endpoint.AuthURL, m.Issuer()), d.Endpoint.AuthURL)
	assert.True(t, strings.HasPrefix(d.Endpoint.TokenURL, m.Issuer()), d.Endpoint.TokenURL)
	assert.NotEmpty(t, d.UserinfoURL)
	assert.NotEmpty(t, d.JWKSURL)
}

func TestDiscover_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	srv.Close()

	_, err := Discover(context.Background(), nil, srv.URL)
	require.Error(t, err)
	assert.Equal(t, errs.Unavailable, errs.CodeOf(err))
}

func TestPreflight_MockProvider(t *testing.T) {
	m := startMockOIDC(t)

	res, err := Preflight(context.Background(), nil, m.Issuer())
	require.NoError(t, err)
	assert.GreaterOrEqual(t, res.SigningKeys, 1)
	assert.Equal(t, m.Issuer(), res.Discovery.Issuer)
}

func serveJSON(t *testing.T, status int, body any) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		switch b := body.(type) {
		case string:
			_, _ = w.Write([]byte(b))
		default:
			_ = json.NewEncoder(w).Encode(b)
		}
	}))
	t.Cleanup(srv.Close)
	return srv.URL
}

func rsaPublicJWK(t *testing.T, kid, use string) jose.JSONWebKey {
	t.Helper()
	priv, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	return jose.JSONWebKey{Key: &priv.PublicKey, KeyID: kid, Algorithm: "RS256", Use: use}
}

func TestCheckJWKS(t *testing.T) {
	sig := rsaPublicJWK(t, "sig-1", "sig")
	enc := rsaPublicJWK(t, "enc-1", "enc")
	bare := rsaPublicJWK(t, "bare", "")

	tests := []struct {
		name     string
		status   int
		body     any
		wantKeys int
		wantCode errs.Code
	}{
		{name: "signing keys counted", status: http.StatusOK, body: jose.JSONWebKeySet{Keys: []jose.JSONWebKey{sig, enc, bare}}, wantKeys: 2},
		{name: "only encryption keys", status: http.StatusOK, body: jose.JSONWebKeySet{Keys: []jose.JSONWebKey{enc}}, wantCode: errs.FailedPrecondition},
		{name: "empty set", status: http.StatusOK, body: `{"keys":[]}`, wantCode: errs.FailedPrecondition},
		{name: "garbage", status: http.StatusOK, body: `<html>`, wantCode: errs.FailedPrecondition},
		{name: "server error", status: http.StatusBadGateway, body: `{}`, wantCode: errs.Unavailable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			url := serveJSON(t, tt.status, tt.body)
			n, err := CheckJWKS(context.Background(), nil, url)
			if tt.wantCode != "" {
				require.Error(t, err)
				assert.Equal(t, tt.wantCode, errs.CodeOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantKeys, n)
		})
	}
}
