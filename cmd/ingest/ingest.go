// Package ingest implements the ingest command: run the configured
// queries and store what they return.
package ingest

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/728jm2pczg-glitch/bid-aggregator/cmd/common"
	"github.com/728jm2pczg-glitch/bid-aggregator/internal/config"
	"github.com/728jm2pczg-glitch/bid-aggregator/internal/models"
)

// Command returns the ingest command for use in the root command.
func Command() *cobra.Command {
	var (
		source string
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Fetch announcements for the configured queries",
		Long: `Runs every enabled query from the queries file: fetch from the
source, archive the raw payload, normalize, and upsert into the store.
A single request per query; use full-ingest for ranges past the
per-request cap.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := common.DepsFromCommand(cmd)
			if err != nil {
				return fmt.Errorf("failed to initialize dependencies: %w", err)
			}

			queries, err := config.LoadQueries(common.QueriesPath(cmd))
			if err != nil {
				return fmt.Errorf("load queries: %w", err)
			}

			selected := make([]models.QueryConfig, 0, len(queries.Queries))
			for _, q := range queries.Queries {
				if source != "" && q.Source != source {
					continue
				}
				selected = append(selected, q)
			}
			if len(selected) == 0 {
				return fmt.Errorf("no queries match source %q", source)
			}

			app, err := common.NewApp(deps, dryRun)
			if err != nil {
				return err
			}
			defer app.Close()

			if dryRun {
				deps.Logger.Info("dry run, nothing will be written")
			}

			result, err := app.Pipeline.RunAll(cmd.Context(), selected)
			if err != nil {
				return fmt.Errorf("ingest failed: %w", err)
			}

			deps.Logger.Info("ingest finished",
				"fetched", result.Fetched,
				"new", result.New,
				"updated", result.Updated,
				"skipped", result.Skipped,
				"failed_queries", result.ErrorChunks,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&source, "source", "", "only run queries for this source (kkj, pportal)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "fetch and normalize but write nothing")

	return cmd
}
