// Package search implements the saved-search commands: manage stored
// search definitions and evaluate them against the store.
package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/728jm2pczg-glitch/bid-aggregator/cmd/common"
	"github.com/728jm2pczg-glitch/bid-aggregator/internal/config"
	"github.com/728jm2pczg-glitch/bid-aggregator/internal/database"
	"github.com/728jm2pczg-glitch/bid-aggregator/internal/models"
	"github.com/728jm2pczg-glitch/bid-aggregator/internal/savedsearch"
)

// Command returns the saved-search command group for use in the root
// command.
func Command() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "saved-search",
		Short: "Manage and run saved searches",
	}

	cmd.AddCommand(addCommand())
	cmd.AddCommand(listCommand())
	cmd.AddCommand(runCommand())
	cmd.AddCommand(runAllCommand())
	cmd.AddCommand(deleteCommand())

	return cmd
}

func addCommand() *cobra.Command {
	var (
		name     string
		keyword  string
		fromDate string
		toDate   string
		org      string
		source   string
		orderBy  string
		schedule string
		onlyNew  bool
	)

	cmd := &cobra.Command{
		Use:   "add",
		Short: "Add a saved search",
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

			filters := models.SearchFilters{
				Keyword: keyword,
				From:    fromDate,
				To:      toDate,
				Org:     org,
				Source:  source,
			}
			filtersJSON, err := json.Marshal(filters)
			if err != nil {
				return fmt.Errorf("encode filters: %w", err)
			}

			search := &models.SavedSearch{
				Name:        name,
				FiltersJSON: string(filtersJSON),
				OrderBy:     orderBy,
				OnlyNew:     onlyNew,
				Enabled:     true,
			}
			if schedule != "" {
				search.Schedule = &schedule
			}

			id, err := app.Searches.Create(cmd.Context(), search)
			if err != nil {
				if errors.Is(err, models.ErrAlreadyExists) {
					return fmt.Errorf("saved search %q already exists", name)
				}
				return fmt.Errorf("create saved search: %w", err)
			}

			deps.Logger.Info("saved search created", "name", name, "id", id)
			return nil
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "saved search name")
	cmd.Flags().StringVarP(&keyword, "keyword", "k", "", "keyword filter")
	cmd.Flags().StringVar(&fromDate, "from", "", "published-at range start (YYYY-MM-DD)")
	cmd.Flags().StringVar(&toDate, "to", "", "published-at range end (YYYY-MM-DD)")
	cmd.Flags().StringVar(&org, "org", "", "organization name filter")
	cmd.Flags().StringVar(&source, "source", "", "source filter (kkj, pportal)")
	cmd.Flags().StringVar(&orderBy, "order-by", "newest", "result order (newest, deadline)")
	cmd.Flags().StringVar(&schedule, "schedule", "", "run schedule (daily, hourly)")
	cmd.Flags().BoolVar(&onlyNew, "only-new", true, "only report items not hit before")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func listCommand() *cobra.Command {
	var enabledOnly bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List saved searches",
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

			searches, err := app.Searches.List(cmd.Context(), enabledOnly)
			if err != nil {
				return fmt.Errorf("list saved searches: %w", err)
			}
			if len(searches) == 0 {
				fmt.Println("no saved searches")
				return nil
			}

			for _, s := range searches {
				schedule := "-"
				if s.Schedule != nil {
					schedule = *s.Schedule
				}
				lastRun := "-"
				if s.LastRunAt != nil {
					lastRun = s.LastRunAt.Format("2006-01-02 15:04")
				}
				fmt.Printf("%4d  %-24s  schedule=%-7s only_new=%-5v enabled=%-5v last_run=%s\n",
					s.ID, s.Name, schedule, s.OnlyNew, s.Enabled, lastRun)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&enabledOnly, "enabled-only", false, "only show enabled searches")

	return cmd
}

func runCommand() *cobra.Command {
	var (
		name       string
		doNotify   bool
		channel    string
		recipients []string
		dryRun     bool
	)

	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run one saved search",
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := common.DepsFromCommand(cmd)
			if err != nil {
				return fmt.Errorf("failed to initialize dependencies: %w", err)
			}

			queries, err := config.LoadQueries(common.QueriesPath(cmd))
			if err != nil {
				// The queries file is optional here: flag-driven runs
				// carry their own notify settings.
				queries = &config.QueriesFile{}
				deps.Logger.Debug("queries file not loaded", "error", err)
			}

			app, err := common.NewApp(deps, dryRun)
			if err != nil {
				return err
			}
			defer app.Close()

			if err := SyncDefinitions(cmd.Context(), app.Searches, queries.SavedSearches, deps); err != nil {
				return err
			}

			opts := savedsearch.Options{Notify: doNotify, DryRun: dryRun}
			if len(recipients) > 0 {
				opts.NotifyConfig = &models.NotifyConfig{
					Channel:    channel,
					Recipients: recipients,
					Enabled:    true,
				}
			} else {
				opts.NotifyConfig = queries.NotifyFor(name)
			}
			opts.NotifyConfig = common.NotifyDefaults(opts.NotifyConfig, deps)

			report, err := app.Runner.Run(cmd.Context(), name, opts)
			if err != nil {
				return fmt.Errorf("saved search run failed: %w", err)
			}

			deps.Logger.Info("saved search finished",
				"name", report.Name,
				"total", report.Total,
				"new", report.New,
				"notified", report.Notified,
				"status", report.Status,
			)
			return nil
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "saved search name")
	cmd.Flags().BoolVar(&doNotify, "notify", false, "send notifications for new items")
	cmd.Flags().StringVar(&channel, "channel", "slack", "notification channel (slack, email)")
	cmd.Flags().StringArrayVarP(&recipients, "recipient", "r", nil, "notification recipient (repeatable)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "evaluate but persist and send nothing")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

func runAllCommand() *cobra.Command {
	var (
		doNotify bool
		dryRun   bool
	)

	cmd := &cobra.Command{
		Use:   "run-all",
		Short: "Run every enabled saved search",
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := common.DepsFromCommand(cmd)
			if err != nil {
				return fmt.Errorf("failed to initialize dependencies: %w", err)
			}

			queries, err := config.LoadQueries(common.QueriesPath(cmd))
			if err != nil {
				return fmt.Errorf("load queries: %w", err)
			}

			app, err := common.NewApp(deps, dryRun)
			if err != nil {
				return err
			}
			defer app.Close()

			if err := SyncDefinitions(cmd.Context(), app.Searches, queries.SavedSearches, deps); err != nil {
				return err
			}

			reports, err := app.Runner.RunAll(cmd.Context(), common.NotifyMapDefaults(queries.Notify, deps),
				savedsearch.Options{Notify: doNotify, DryRun: dryRun})
			if err != nil {
				return fmt.Errorf("saved search run failed: %w", err)
			}

			for _, report := range reports {
				deps.Logger.Info("saved search finished",
					"name", report.Name,
					"total", report.Total,
					"new", report.New,
					"notified", report.Notified,
					"status", report.Status,
				)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&doNotify, "notify", false, "send notifications for new items")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "evaluate but persist and send nothing")

	return cmd
}

func deleteCommand() *cobra.Command {
	var name string

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete a saved search",
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

			if err := app.Searches.Delete(cmd.Context(), name); err != nil {
				if errors.Is(err, models.ErrNotFound) {
					return fmt.Errorf("saved search %q does not exist", name)
				}
				return fmt.Errorf("delete saved search: %w", err)
			}

			deps.Logger.Info("saved search deleted", "name", name)
			return nil
		},
	}

	cmd.Flags().StringVarP(&name, "name", "n", "", "saved search name")
	_ = cmd.MarkFlagRequired("name")

	return cmd
}

// SyncDefinitions registers queries-file saved searches that are not
// in the store yet. Existing searches are left untouched so manual
// edits survive.
func SyncDefinitions(
	ctx context.Context,
	searches *database.SavedSearchRepository,
	defs []models.SavedSearchConfig,
	deps common.CommandDeps,
) error {
	for _, def := range defs {
		filtersJSON, err := json.Marshal(def.Filters)
		if err != nil {
			return fmt.Errorf("encode filters for %q: %w", def.Name, err)
		}

		search := &models.SavedSearch{
			Name:        def.Name,
			FiltersJSON: string(filtersJSON),
			OrderBy:     def.OrderBy,
			OnlyNew:     def.OnlyNew,
			Enabled:     def.Enabled,
		}
		if def.QueryRef != "" {
			ref := def.QueryRef
			search.QueryRef = &ref
		}
		if def.Schedule != "" {
			schedule := def.Schedule
			search.Schedule = &schedule
		}

		if _, err := searches.Create(ctx, search); err != nil {
			if errors.Is(err, models.ErrAlreadyExists) {
				continue
			}
			return fmt.Errorf("register saved search %q: %w", def.Name, err)
		}
		deps.Logger.Info("saved search registered", "name", def.Name)
	}
	return nil
}
