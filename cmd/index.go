package cmd

import (
	"fmt"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/iconshelf/internal/index"
	"github.com/JakeFAU/iconshelf/internal/server"
)

// newIndexCmd creates the 'index' subcommand, which regenerates the icon
// and category artifacts from the configured source tree.
func newIndexCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "index",
		Short: "Generate the icon and category index files",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			builder := index.NewBuilder(afero.NewOsFs(), server.IndexConfig(appInstance.Config),
				appInstance.Logger.Named("index"))
			idx, err := builder.Run(cmd.Context())
			if err != nil {
				return fmt.Errorf("generate index: %w", err)
			}
			appInstance.Logger.Info("index command finished", zap.Int("icons", len(idx.Icons)))
			fmt.Fprintf(cmd.OutOrStdout(), "Indexed %d icons in %d categories\n",
				len(idx.Icons), len(idx.Categories))
			return nil
		},
	}
}
