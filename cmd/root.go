// Package cmd implements the command-line interface for the bid
// aggregator. It provides the root command and subcommands for
// ingestion, saved searches, notifications, and the read API.
package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/728jm2pczg-glitch/bid-aggregator/cmd/db"
	"github.com/728jm2pczg-glitch/bid-aggregator/cmd/fullingest"
	"github.com/728jm2pczg-glitch/bid-aggregator/cmd/httpd"
	"github.com/728jm2pczg-glitch/bid-aggregator/cmd/ingest"
	"github.com/728jm2pczg-glitch/bid-aggregator/cmd/notifytest"
	"github.com/728jm2pczg-glitch/bid-aggregator/cmd/retrynotify"
	"github.com/728jm2pczg-glitch/bid-aggregator/cmd/schedule"
	"github.com/728jm2pczg-glitch/bid-aggregator/cmd/search"
)

var (
	// cfgFile holds the path to the configuration file.
	cfgFile string

	// queriesFile holds the path to the queries definition file.
	queriesFile string

	// debug enables debug mode for all commands.
	debug bool

	// rootCmd represents the root command for the bidagg CLI.
	rootCmd = &cobra.Command{
		Use:   "bidagg",
		Short: "Government procurement announcement aggregator",
		Long: `Collects Japanese government procurement and bid announcements,
normalizes and deduplicates them into a local store, and evaluates
saved searches with Slack and email alerting.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmd.Help()
		},
	}
)

// Execute runs the root command.
func Execute() error {
	// Load .env early so environment variables are available to config
	_ = godotenv.Load()

	// Interrupts cancel the command context for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return rootCmd.ExecuteContext(ctx)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default is ./config.yml)")
	rootCmd.PersistentFlags().StringVar(&queriesFile, "queries", "config/queries.yml", "queries definition file")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "enable debug mode")

	rootCmd.AddCommand(db.Command())
	rootCmd.AddCommand(ingest.Command())
	rootCmd.AddCommand(fullingest.Command())
	rootCmd.AddCommand(search.Command())
	rootCmd.AddCommand(retrynotify.Command())
	rootCmd.AddCommand(notifytest.Command())
	rootCmd.AddCommand(schedule.Command())
	rootCmd.AddCommand(httpd.Command())
}
