// Package httpd implements the HTTP server command for the read API.
package httpd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/728jm2pczg-glitch/bid-aggregator/cmd/common"
	"github.com/728jm2pczg-glitch/bid-aggregator/internal/api"
)

// Command returns the httpd command for use in the root command.
func Command() *cobra.Command {
	var addr string

	cmd := &cobra.Command{
		Use:   "httpd",
		Short: "Serve the read-only HTTP API",
		Long: `Serves stored items, saved searches, and store statistics over
HTTP. The server runs until interrupted and shuts down gracefully.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := common.DepsFromCommand(cmd)
			if err != nil {
				return fmt.Errorf("failed to initialize dependencies: %w", err)
			}

			app, err := common.NewApp(deps, false)
			if err != nil {
				return err
			}
			defer app.Close()

			listen := addr
			if listen == "" {
				listen = deps.Config.HTTP.Addr
			}

			debug, _ := cmd.Flags().GetBool("debug")
			server := api.NewServer(listen, app.DB, app.Items, app.Searches, deps.Logger, debug)

			deps.Logger.Info("http server starting", "addr", listen)
			if err := server.Run(cmd.Context()); err != nil {
				return fmt.Errorf("http server: %w", err)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")

	return cmd
}
