package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/kuitang/ssocheck/internal/idp"
)

func newPreflightCmd(c *cli) *cobra.Command {
	var issuer string
	cmd := &cobra.Command{
		Use:   "preflight",
		Short: "Check the identity provider's discovery document and signing keys",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if issuer == "" {
				issuer = idp.FromConfig(c.cfg).Issuer()
			}
			res, err := idp.Preflight(cmd.Context(), c.httpClient(), issuer)
			if err != nil {
				return err
			}
			fmt.Fprintf(c.stdout, "issuer:       %s\n", res.Discovery.Issuer)
			fmt.Fprintf(c.stdout, "authorize:    %s\n", res.Discovery.Endpoint.AuthURL)
			fmt.Fprintf(c.stdout, "token:        %s\n", res.Discovery.Endpoint.TokenURL)
			fmt.Fprintf(c.stdout, "jwks:         %s\n", res.Discovery.JWKSURL)
			fmt.Fprintf(c.stdout, "signing keys: %d\n", res.SigningKeys)
			fmt.Fprintf(c.stdout, "elapsed:      %s\n", res.Elapsed.Round(time.Millisecond))
			return nil
		},
	}
	cmd.Flags().StringVar(&issuer, "issuer", "", "issuer to check (default: the configured application's issuer)")
	return cmd
}
