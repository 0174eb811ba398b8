// Package idp models the identity provider's URL layout and checks that the
// provider is reachable and publishing signing keys before any browser runs.
package idp

import (
	"github.com/kuitang/ssocheck/internal/config"
	"github.com/kuitang/ssocheck/internal/urlutil"
)

// DefaultScopes are requested by every OAuth client the stack configures.
var DefaultScopes = []string{"openid", "email", "profile", "groups"}

// Endpoints is the Authentik URL layout for one deployment. The browser talks
// to the public origin; back-channel calls (token, userinfo, keys) go to the
// internal service URL.
type Endpoints struct {
	PublicURL   string
	InternalURL string
	AppSlug     string
}

// NewEndpoints derives the layout from the base domain.
func NewEndpoints(domain, internalURL, appSlug string) Endpoints {
	return Endpoints{
		PublicURL:   urlutil.ServiceOrigin("sso", domain),
		InternalURL: urlutil.BuildAbsolute(internalURL, ""),
		AppSlug:     appSlug,
	}
}

// FromConfig derives the layout from cfg.
func FromConfig(cfg *config.Config) Endpoints {
	return NewEndpoints(cfg.BaseDomain, cfg.IdPInternalURL, cfg.IdPAppSlug)
}

func (e Endpoints) AuthorizeURL() string {
	return urlutil.BuildAbsolute(e.PublicURL, "/application/o/authorize/")
}

func (e Endpoints) TokenURL() string {
	return urlutil.BuildAbsolute(e.InternalURL, "/application/o/token/")
}

func (e Endpoints) UserinfoURL() string {
	return urlutil.BuildAbsolute(e.InternalURL, "/application/o/userinfo/")
}

func (e Endpoints) JWKSURL() string {
	return urlutil.BuildAbsolute(e.InternalURL, "/application/o/"+e.AppSlug+"/jwks/")
}

// Issuer is the per-application OIDC issuer on the public origin.
func (e Endpoints) Issuer() string {
	return urlutil.BuildAbsolute(e.PublicURL, "/application/o/"+e.AppSlug+"/")
}

// AdminURL is the admin interface entry point.
func (e Endpoints) AdminURL() string {
	return urlutil.BuildAbsolute(e.PublicURL, "/if/admin/")
}

func (e Endpoints) ApplicationsURL() string {
	return e.AdminURL() + "#/core/applications"
}

func (e Endpoints) ProvidersURL() string {
	return e.AdminURL() + "#/core/providers"
}
