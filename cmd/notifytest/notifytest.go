// Package notifytest implements the notify-test command: send a test
// message over a channel to confirm delivery settings.
package notifytest

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/728jm2pczg-glitch/bid-aggregator/cmd/common"
	"github.com/728jm2pczg-glitch/bid-aggregator/internal/notify"
)

// Command returns the notify-test command for use in the root command.
func Command() *cobra.Command {
	var (
		channel   string
		recipient string
	)

	cmd := &cobra.Command{
		Use:   "notify-test",
		Short: "Send a test notification",
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := common.DepsFromCommand(cmd)
			if err != nil {
				return fmt.Errorf("failed to initialize dependencies: %w", err)
			}

			var sender notify.Sender
			for _, s := range common.Senders(deps) {
				if s.Channel() == channel {
					sender = s
					break
				}
			}
			if sender == nil {
				return fmt.Errorf("channel %q is not available (email needs SMTP configured)", channel)
			}

			if err := sender.Send(cmd.Context(), recipient, notify.TestMessage()); err != nil {
				return fmt.Errorf("test delivery failed: %w", err)
			}

			deps.Logger.Info("test notification sent", "channel", channel, "recipient", recipient)
			return nil
		},
	}

	cmd.Flags().StringVar(&channel, "channel", notify.ChannelSlack, "notification channel (slack, email)")
	cmd.Flags().StringVarP(&recipient, "recipient", "r", "", "webhook URL or email address")
	_ = cmd.MarkFlagRequired("recipient")

	return cmd
}
