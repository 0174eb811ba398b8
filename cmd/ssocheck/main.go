// Command ssocheck drives real browser logins through the Authentik identity
// provider into Windmill, LiteLLM and OpenWebUI, verifies the provider's
// admin resources, and generates Windmill's OAuth client file.
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/kuitang/ssocheck/internal/config"
	"github.com/kuitang/ssocheck/internal/errs"
	"github.com/kuitang/ssocheck/internal/obs"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ssocheck: %v\n", err)
	}
	os.Exit(errs.ExitCode(err))
}

// cli holds state shared by every subcommand.
type cli struct {
	envFile  string
	parallel int
	install  bool

	stdout io.Writer
	stderr io.Writer
	cfg    *config.Config
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	c := &cli{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:           "ssocheck",
		Short:         "Verify single sign-on through Authentik end to end",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.loadConfig()
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&c.envFile, "env-file", "", "dotenv file merged under the process environment (default .env when present)")
	flags.IntVar(&c.parallel, "parallel", 1, "maximum checks running at once")
	flags.BoolVar(&c.install, "install-browsers", false, "download the Playwright driver and Chromium before starting")

	root.AddCommand(
		newLoginCmd(c),
		newResourcesCmd(c),
		newOAuthConfigCmd(c),
		newPreflightCmd(c),
	)
	return root
}

func (c *cli) loadConfig() error {
	cfg, err := config.Load(c.envFile)
	if err != nil {
		return errs.Wrap(errs.InvalidArgument, "load configuration", err)
	}
	obs.Init(cfg.LogLevel)
	c.cfg = cfg
	return nil
}
