// Package db implements the database management commands.
package db

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/728jm2pczg-glitch/bid-aggregator/cmd/common"
	"github.com/728jm2pczg-glitch/bid-aggregator/internal/database"
)

// Command returns the db command group for use in the root command.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "db",
		Short: "Manage the local store",
	}

	cmd.AddCommand(initCommand())
	cmd.AddCommand(statsCommand())

	return cmd
}

func initCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "Create the database and apply the schema",
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := common.DepsFromCommand(cmd)
			if err != nil {
				return fmt.Errorf("failed to initialize dependencies: %w", err)
			}

			db, err := database.Open(database.Config{Path: deps.Config.Database.Path})
			if err != nil {
				return fmt.Errorf("open database: %w", err)
			}
			defer db.Close()

			deps.Logger.Info("database initialized", "path", deps.Config.Database.Path)
			return nil
		},
	}
}

func statsCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show row counts per table",
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

			stats, err := database.Stats(cmd.Context(), app.DB)
			if err != nil {
				return fmt.Errorf("collect stats: %w", err)
			}

			for _, table := range []string{"items", "raw_fetches", "saved_searches", "saved_search_runs", "notifications"} {
				fmt.Printf("%-20s %d\n", table, stats[table])
			}
			return nil
		},
	}
}
