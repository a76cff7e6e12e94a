// Package retrynotify implements the retry-notify command: re-attempt
// failed notification deliveries still under the attempt ceiling.
package retrynotify

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/728jm2pczg-glitch/bid-aggregator/cmd/common"
)

// Command returns the retry-notify command for use in the root command.
func Command() *cobra.Command {
	var maxAttempts int

	cmd := &cobra.Command{
		Use:   "retry-notify",
		Short: "Retry failed notification deliveries",
		Long: `Walks the failed-notification queue oldest first, rebuilds each
message from the stored run hits, and re-sends it. Deliveries at the
attempt ceiling are left alone.`,
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

			ceiling := maxAttempts
			if ceiling <= 0 {
				ceiling = deps.Config.Notify.MaxAttempts
			}

			result, err := app.Dispatcher.RetryFailed(cmd.Context(), ceiling)
			if err != nil {
				return fmt.Errorf("retry failed: %w", err)
			}

			deps.Logger.Info("notification retry finished",
				"attempted", result.Attempted,
				"succeeded", result.Succeeded,
			)
			return nil
		},
	}

	cmd.Flags().IntVar(&maxAttempts, "max-attempts", 0, "attempt ceiling (default from config)")

	return cmd
}
