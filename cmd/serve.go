package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/iconshelf/internal/server"
)

// newServeCmd creates the 'serve' subcommand, which runs the HTTP browser
// and export API until interrupted.
func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the icon browser and export API",
		RunE: func(cmd *cobra.Command, _ []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			app, err := server.Build(cmd.Context(), appInstance.Config, appInstance.Logger)
			if err != nil {
				return fmt.Errorf("build server: %w", err)
			}
			return app.Run(cmd.Context())
		},
	}
}
