// Package oauthfile generates the OAuth client file Windmill reads at startup
// to offer single sign-on through the identity provider.
package oauthfile

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/kuitang/ssocheck/internal/errs"
	"github.com/kuitang/ssocheck/internal/idp"
	"github.com/kuitang/ssocheck/internal/obs"
)

// LoginConfig holds the provider endpoints.
type LoginConfig struct {
	AuthURL     string `json:"auth_url"`
	TokenURL    string `json:"token_url"`
	UserinfoURL string `json:"userinfo_url"`
	JWKSURL     string `json:"jwks_url"`
}

// Client is one provider entry.
type Client struct {
	ID          string      `json:"id"`
	Secret      string      `json:"secret"`
	LoginConfig LoginConfig `json:"login_config"`
	Scopes      []string    `json:"scopes"`
}

// File maps a provider display name to its client entry.
type File map[string]Client

// FromEndpoints uses the fixed Authentik layout.
func FromEndpoints(e idp.Endpoints) LoginConfig {
	return LoginConfig{
		AuthURL:     e.AuthorizeURL(),
		TokenURL:    e.TokenURL(),
		UserinfoURL: e.UserinfoURL(),
		JWKSURL:     e.JWKSURL(),
	}
}

// FromDiscovery uses what the provider advertises.
func FromDiscovery(d *idp.Discovery) LoginConfig {
	return LoginConfig{
		AuthURL:     d.Endpoint.AuthURL,
		TokenURL:    d.Endpoint.TokenURL,
		UserinfoURL: d.UserinfoURL,
		JWKSURL:     d.JWKSURL,
	}
}

// Build assembles a single-provider file. Scopes default to idp.DefaultScopes.
func Build(provider, clientID, clientSecret string, lc LoginConfig, scopes []string) (File, error) {
	var problems []string
	if strings.TrimSpace(provider) == "" {
		problems = append(problems, "provider name is required")
	}
	if strings.TrimSpace(clientID) == "" {
		problems = append(problems, "client id is required")
	}
	if strings.TrimSpace(clientSecret) == "" {
		problems = append(problems, "client secret is required")
	}
	for name, v := range map[string]string{
		"auth_url":     lc.AuthURL,
		"token_url":    lc.TokenURL,
		"userinfo_url": lc.UserinfoURL,
		"jwks_url":     lc.JWKSURL,
	} {
		if v == "" {
			problems = append(problems, name+" is required")
		}
	}
	if len(problems) > 0 {
		slices.Sort(problems)
		return nil, errs.New(errs.InvalidArgument, "oauth client file: "+strings.Join(problems, "; "))
	}

	if len(scopes) == 0 {
		scopes = idp.DefaultScopes
	}
	return File{
		provider: {
			ID:          clientID,
			Secret:      clientSecret,
			LoginConfig: lc,
			Scopes:      append([]string(nil), scopes...),
		},
	}, nil
}

// Render encodes f as JSON indented by two spaces. URLs are not HTML-escaped.
func Render(f File) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(f); err != nil {
		return nil, errs.Wrap(errs.Internal, "encode oauth client file", err)
	}
	return buf.Bytes(), nil
}

// Write renders f to path, creating parent directories. The file is replaced
// atomically and is readable only by its owner.
func Write(ctx context.Context, path string, f File) error {
	data, err := Render(f)
	if err != nil {
		return err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errs.Wrap(errs.FailedPrecondition, "create "+dir, err)
	}

	tmp, err := os.CreateTemp(dir, ".oauth-*.json")
	if err != nil {
		return errs.Wrap(errs.FailedPrecondition, "create temp file", err)
	}
	defer os.Remove(tmp.Name())

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return errs.Wrap(errs.Internal, "write "+tmp.Name(), err)
	}
	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return errs.Wrap(errs.Internal, "chmod "+tmp.Name(), err)
	}
	if err := tmp.Close(); err != nil {
		return errs.Wrap(errs.Internal, "close "+tmp.Name(), err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return errs.Wrap(errs.FailedPrecondition, "replace "+path, err)
	}

	obs.From(ctx).Info("oauth_config_written", "path", path, "providers", len(f))
	return nil
}
