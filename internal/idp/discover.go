package idp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/go-jose/go-jose/v3"
	"golang.org/x/oauth2"

	"github.com/kuitang/ssocheck/internal/errs"
	"github.com/kuitang/ssocheck/internal/obs"
)

const maxJWKSBytes = 1 << 20

// Discovery is what the provider's discovery document advertises.
type Discovery struct {
	Issuer          string
	Endpoint        oauth2.Endpoint
	UserinfoURL     string
	JWKSURL         string
	ScopesSupported []string
}

type discoveryClaims struct {
	UserinfoEndpoint string   `json:"userinfo_endpoint"`
	JWKSURI          string   `json:"jwks_uri"`
	ScopesSupported  []string `json:"scopes_supported"`
}

// Discover fetches issuer's OpenID configuration. client may be nil.
func Discover(ctx context.Context, client *http.Client, issuer string) (*Discovery, error) {
	if client != nil {
		ctx = oidc.ClientContext(ctx, client)
	}
	provider, err := oidc.NewProvider(ctx, issuer)
	if err != nil {
		return nil, errs.Wrap(errs.Unavailable, "oidc discovery", err)
	}

	var claims discoveryClaims
	if err := provider.Claims(&claims); err != nil {
		return nil, errs.Wrap(errs.FailedPrecondition, "parse discovery document", err)
	}

	obs.From(ctx).Debug("idp_discovered", "issuer", issuer, "jwks_uri", claims.JWKSURI)
	return &Discovery{
		Issuer:          issuer,
		Endpoint:        provider.Endpoint(),
		UserinfoURL:     claims.UserinfoEndpoint,
		JWKSURL:         claims.JWKSURI,
		ScopesSupported: claims.ScopesSupported,
	}, nil
}

// CheckJWKS fetches a key set and returns how many usable signing keys it
// holds. A set with none is a FailedPrecondition error.
func CheckJWKS(ctx context.Context, client *http.Client, jwksURL string) (int, error) {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, jwksURL, nil)
	if err != nil {
		return 0, errs.Wrap(errs.InvalidArgument, "build jwks request", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return 0, errs.Wrap(errs.Unavailable, "fetch jwks", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return 0, errs.New(errs.Unavailable, fmt.Sprintf("fetch jwks: status %d", resp.StatusCode))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxJWKSBytes))
	if err != nil {
		return 0, errs.Wrap(errs.Unavailable, "read jwks", err)
	}

	var set jose.JSONWebKeySet
	if err := json.Unmarshal(body, &set); err != nil {
		return 0, errs.Wrap(errs.FailedPrecondition, "parse jwks", err)
	}

	n := 0
	for _, key := range set.Keys {
		if signingKey(key) {
			n++
		}
	}
	if n == 0 {
		return 0, errs.New(errs.FailedPrecondition, "jwks has no signing keys")
	}
	return n, nil
}

func signingKey(key jose.JSONWebKey) bool {
	if key.Use != "" && key.Use != "sig" {
		return false
	}
	return key.Valid() && key.IsPublic()
}
