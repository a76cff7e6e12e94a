// Package fullingest implements the full-ingest command: split a date
// range into chunks and ingest each chunk so ranges past the
// per-request cap still come back complete.
package fullingest

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/728jm2pczg-glitch/bid-aggregator/cmd/common"
	"github.com/728jm2pczg-glitch/bid-aggregator/internal/config"
	"github.com/728jm2pczg-glitch/bid-aggregator/internal/ingest"
	"github.com/728jm2pczg-glitch/bid-aggregator/internal/models"
)

const fullIngestLimit = 1000

// Command returns the full-ingest command for use in the root command.
func Command() *cobra.Command {
	var (
		queryName string
		keyword   string
		fromDate  string
		toDate    string
		days      int
		org       string
		region    string
		dryRun    bool
	)

	cmd := &cobra.Command{
		Use:   "full-ingest",
		Short: "Chunked ingestion over a date range",
		Long: `Splits the date range into windows of --days days and runs one
query per window, so a range whose total exceeds the 1000-result
per-request cap is still collected in full. Either reference a
configured query with --query or give an ad-hoc --keyword.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if fromDate == "" || toDate == "" {
				return fmt.Errorf("--from and --to are required")
			}

			deps, err := common.DepsFromCommand(cmd)
			if err != nil {
				return fmt.Errorf("failed to initialize dependencies: %w", err)
			}

			var query models.QueryConfig
			switch {
			case queryName != "":
				queries, loadErr := config.LoadQueries(common.QueriesPath(cmd))
				if loadErr != nil {
					return fmt.Errorf("load queries: %w", loadErr)
				}
				q, ok := queries.Query(queryName)
				if !ok {
					return fmt.Errorf("query %q is not defined", queryName)
				}
				query = *q
			case keyword != "":
				query = models.QueryConfig{
					Name:   "full-ingest",
					Source: "kkj",
					Params: models.QueryParams{
						Query:            keyword,
						OrganizationName: org,
						LGCode:           region,
						Count:            fullIngestLimit,
					},
					Limit:   fullIngestLimit,
					Enabled: true,
				}
			default:
				return fmt.Errorf("either --query or --keyword is required")
			}

			estimate, err := ingest.EstimateChunks(fromDate, toDate, days)
			if err != nil {
				return fmt.Errorf("invalid date range: %w", err)
			}
			deps.Logger.Info("full ingest planned",
				"from", fromDate, "to", toDate, "days_per_chunk", days, "chunks", estimate)

			app, err := common.NewApp(deps, dryRun)
			if err != nil {
				return err
			}
			defer app.Close()

			if dryRun {
				deps.Logger.Info("dry run, nothing will be written")
			}

			full := ingest.NewFullIngest(app.Pipeline, deps.Logger)
			result, err := full.Run(cmd.Context(), query, fromDate, toDate, days)
			if err != nil {
				return fmt.Errorf("full ingest failed: %w", err)
			}

			deps.Logger.Info("full ingest finished",
				"fetched", result.Fetched,
				"new", result.New,
				"updated", result.Updated,
				"skipped", result.Skipped,
				"failed_chunks", result.ErrorChunks,
			)
			return nil
		},
	}

	cmd.Flags().StringVar(&queryName, "query", "", "run a query from the queries file")
	cmd.Flags().StringVarP(&keyword, "keyword", "k", "", "ad-hoc search keyword")
	cmd.Flags().StringVar(&fromDate, "from", "", "range start (YYYY-MM-DD)")
	cmd.Flags().StringVar(&toDate, "to", "", "range end (YYYY-MM-DD)")
	cmd.Flags().IntVar(&days, "days", ingest.DefaultDaysPerChunk, "days per chunk")
	cmd.Flags().StringVar(&org, "org", "", "organization name filter for ad-hoc queries")
	cmd.Flags().StringVar(&region, "region", "", "prefecture code filter for ad-hoc queries")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "fetch and normalize but write nothing")

	return cmd
}
