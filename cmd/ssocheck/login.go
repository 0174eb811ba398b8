package main

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/kuitang/ssocheck/internal/artifacts"
	"github.com/kuitang/ssocheck/internal/browser"
	"github.com/kuitang/ssocheck/internal/checks"
	"github.com/kuitang/ssocheck/internal/obs"
	"github.com/kuitang/ssocheck/internal/report"
	"github.com/kuitang/ssocheck/internal/s3client"
)

func newLoginCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:       "login [windmill|litellm|openwebui|all]...",
		Short:     "Log into each application through the identity provider",
		ValidArgs: append(checks.Names(), "all"),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				args = []string{"all"}
			}
			return c.runChecks(cmd.Context(), args)
		},
	}
}

func newResourcesCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "resources",
		Short: "Verify the expected applications and providers exist in the admin interface",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runChecks(cmd.Context(), []string{"resources"})
		},
	}
}

// runChecks runs the named checks in one browser and writes the run report.
func (c *cli) runChecks(ctx context.Context, names []string) error {
	selected, err := checks.Select(names...)
	if err != nil {
		return err
	}

	runID := obs.NewRunID()
	ctx = obs.WithRunID(ctx, runID)
	log := obs.From(ctx).With("pkg", "main")
	c.cfg.PrintStartupSummary(c.stderr)

	rec := artifacts.NewRecorder(filepath.Join(c.cfg.DebugDir, runID), c.uploader(ctx, runID))

	session, err := browser.Start(ctx, browser.Options{
		Headless:    c.cfg.Headless,
		Timeout:     c.cfg.BrowserTimeout,
		LogRequests: c.cfg.LogRequests,
		Install:     c.install,
	})
	if err != nil {
		return err
	}
	defer func() {
		if err := session.Close(); err != nil {
			log.Warn("browser_close_failed", "error", err)
		}
	}()

	started := time.Now()
	runner := checks.NewRunner(session, checks.NewEnv(c.cfg, rec), c.parallel,
		checks.WithStartInterval(c.cfg.CheckStartInterval))
	results := runner.Run(ctx, selected)
	finished := time.Now()

	for _, r := range results {
		if r.Passed() {
			fmt.Fprintf(c.stdout, "PASS  %-10s %s\n", r.Check, r.Duration.Round(time.Millisecond))
		} else {
			fmt.Fprintf(c.stdout, "FAIL  %-10s %s  %v\n", r.Check, r.Duration.Round(time.Millisecond), r.Err)
		}
	}

	rep := report.New(runID, c.cfg.BaseDomain, started, finished, results, rec.Files())
	if path, err := rep.Save(ctx, rec); err != nil {
		log.Warn("report_failed", "error", err)
	} else if path != "" {
		fmt.Fprintf(c.stdout, "report: %s\n", path)
	}
	return checks.FirstError(results)
}

// uploader returns the artifact mirror, or nil when uploads are off or the
// client cannot be built. Uploads never fail a run.
func (c *cli) uploader(ctx context.Context, runID string) artifacts.Uploader {
	if !c.cfg.UploadsEnabled() {
		return nil
	}
	client, err := s3client.New(ctx, s3client.Config{
		Endpoint:        c.cfg.AWSEndpointS3,
		Region:          c.cfg.AWSRegion,
		AccessKeyID:     c.cfg.AWSAccessKeyID,
		SecretAccessKey: c.cfg.AWSSecretAccessKey,
		BucketName:      c.cfg.ArtifactBucket,
		Prefix:          runID,
		UsePathStyle:    c.cfg.AWSEndpointS3 != "",
	})
	if err != nil {
		obs.From(ctx).Warn("artifact_uploads_disabled", "pkg", "main", "error", err)
		return nil
	}
	return client
}
