package idp

import (
	"context"
	"net/http"
	"time"

	"github.com/kuitang/ssocheck/internal/obs"
)

// PreflightResult summarizes a successful preflight.
type PreflightResult struct {
	Discovery   *Discovery
	SigningKeys int
	Elapsed     time.Duration
}

// Preflight runs discovery for issuer and verifies its key set.
func Preflight(ctx context.Context, client *http.Client, issuer string) (*PreflightResult, error) {
	start := time.Now()
	log := obs.From(ctx).With("pkg", "idp")

	d, err := Discover(ctx, client, issuer)
	if err != nil {
		log.Error("idp_preflight_failed", "issuer", issuer, "stage", "discovery", "error", err)
		return nil, err
	}

	n, err := CheckJWKS(ctx, client, d.JWKSURL)
	if err != nil {
		log.Error("idp_preflight_failed", "issuer", issuer, "stage", "jwks", "error", err)
		return nil, err
	}

	res := &PreflightResult{Discovery: d, SigningKeys: n, Elapsed: time.Since(start)}
	log.Info("idp_preflight_ok", "issuer", issuer, "signing_keys", n, "elapsed_ms", res.Elapsed.Milliseconds())
	return res, nil
}
