// File: cmd/serve.go
package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/nullwave7/gatescout/internal/config"
	"github.com/nullwave7/gatescout/internal/observability"
	"github.com/nullwave7/gatescout/internal/server"
)

// newServeCmd creates and configures the `serve` command.
func newServeCmd(v *viper.Viper) *cobra.Command {
	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Starts the analysis API server",
		Args:  cobra.NoArgs,
		PreRunE: func(cmd *cobra.Command, args []string) error {
			return v.BindPFlag("server.listen_address", cmd.Flags().Lookup("listen"))
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			logger := observability.GetLogger()

			// Re-unmarshal so the listen flag override lands with the right
			// precedence.
			cfg, err := config.NewConfigFromViper(v)
			if err != nil {
				return fmt.Errorf("failed to apply flag overrides: %w", err)
			}

			srv, err := server.New(ctx, cfg, logger)
			if err != nil {
				return fmt.Errorf("failed to initialize server: %w", err)
			}

			logger.Info("Serving analysis API.", zap.String("listen_address", cfg.Server.ListenAddress))
			return srv.Start(ctx)
		},
	}

	serveCmd.Flags().StringP("listen", "l", "", "Listen address for the HTTP server. (Overrides config/env)")

	return serveCmd
}
