package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/kuitang/ssocheck/internal/errs"
	"github.com/kuitang/ssocheck/internal/idp"
	"github.com/kuitang/ssocheck/internal/oauthfile"
)

func newOAuthConfigCmd(c *cli) *cobra.Command {
	var (
		discover bool
		issuer   string
		out      string
	)
	cmd := &cobra.Command{
		Use:   "oauth-config",
		Short: "Write Windmill's OAuth client file for the identity provider",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := c.cfg.RequireOAuthClient(); err != nil {
				return errs.Wrap(errs.InvalidArgument, "oauth client settings", err)
			}
			if out == "" {
				out = c.cfg.OAuthConfigPath
			}

			endpoints := idp.FromConfig(c.cfg)
			lc := oauthfile.FromEndpoints(endpoints)
			if discover {
				if issuer == "" {
					issuer = endpoints.Issuer()
				}
				d, err := idp.Discover(cmd.Context(), c.httpClient(), issuer)
				if err != nil {
					return err
				}
				lc = oauthfile.FromDiscovery(d)
			}

			return c.writeOAuthFile(cmd.Context(), out, lc)
		},
	}
	cmd.Flags().BoolVar(&discover, "discover", false, "take endpoints from the provider's discovery document instead of the fixed layout")
	cmd.Flags().StringVar(&issuer, "issuer", "", "issuer to discover (default: the configured application's issuer)")
	cmd.Flags().StringVarP(&out, "out", "o", "", "output path (default OAUTH_CONFIG_PATH)")
	return cmd
}

func (c *cli) writeOAuthFile(ctx context.Context, path string, lc oauthfile.LoginConfig) error {
	f, err := oauthfile.Build(c.cfg.OAuthProviderName, c.cfg.OAuthClientID, c.cfg.OAuthClientSecret, lc, nil)
	if err != nil {
		return err
	}
	if err := oauthfile.Write(ctx, path, f); err != nil {
		return err
	}
	fmt.Fprintf(c.stdout, "wrote %s\n", path)
	return nil
}

func (c *cli) httpClient() *http.Client {
	return &http.Client{Timeout: c.cfg.BrowserTimeout}
}
