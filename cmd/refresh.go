package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	collyfetcher "github.com/JakeFAU/iconshelf/internal/fetcher/colly"
	"github.com/JakeFAU/iconshelf/internal/index"
	"github.com/JakeFAU/iconshelf/internal/refresh"
	"github.com/JakeFAU/iconshelf/internal/server"
)

// newRefreshCmd creates the 'refresh' subcommand, which pulls the latest
// published icon bundle and reindexes when it changed.
func newRefreshCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "refresh",
		Short: "Download the latest icon bundle and update the local tree",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			cfg := appInstance.Config
			logger := appInstance.Logger.Named("refresh")

			ctx := cmd.Context()
			if timeout := cfg.Refresh.Timeout(); timeout > 0 {
				var cancel context.CancelFunc
				ctx, cancel = context.WithTimeout(ctx, timeout)
				defer cancel()
			}

			getter, err := collyfetcher.New(collyfetcher.Config{
				UserAgent: cfg.Assets.UserAgent,
				Timeout:   cfg.Refresh.Timeout(),
			}, nil, logger)
			if err != nil {
				return err
			}
			fsys := afero.NewOsFs()
			updater, err := refresh.New(fsys, getter, index.NewBuilder(fsys, server.IndexConfig(cfg), logger), refresh.Config{
				DownloadURL:  cfg.Refresh.DownloadURL,
				TargetDir:    cfg.Refresh.TargetDir,
				WorkDir:      cfg.Refresh.WorkDir,
				MinIconCount: cfg.Refresh.MinIconCount,
				Extension:    cfg.Index.Extension,
			}, logger)
			if err != nil {
				return err
			}
			res, err := updater.Run(ctx)
			if err != nil {
				return fmt.Errorf("refresh icons: %w", err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Changes detected: %t\n", res.ChangesDetected)
			fmt.Fprintf(out, "Icon count: %d -> %d\n", res.CurrentCount, res.NewCount)
			return nil
		},
	}
}
