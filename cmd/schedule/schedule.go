// Package schedule implements the schedule command: run enabled saved
// searches on their configured cadence until interrupted.
package schedule

import (
	"context"
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/728jm2pczg-glitch/bid-aggregator/cmd/common"
	cmdsearch "github.com/728jm2pczg-glitch/bid-aggregator/cmd/search"
	"github.com/728jm2pczg-glitch/bid-aggregator/internal/config"
	"github.com/728jm2pczg-glitch/bid-aggregator/internal/logger"
	"github.com/728jm2pczg-glitch/bid-aggregator/internal/savedsearch"
)

// cron specs for the named cadences. Daily runs in the morning so
// alerts land at the start of the business day.
const (
	dailySpec  = "0 9 * * *"
	hourlySpec = "@hourly"
)

// Command returns the schedule command for use in the root command.
func Command() *cobra.Command {
	var doNotify bool

	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Run saved searches on their schedules",
		Long: `Registers every enabled saved search that has a schedule (daily,
hourly, or a raw cron spec) and runs them until interrupted.
Definitions from the queries file are registered first.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			deps, err := common.DepsFromCommand(cmd)
			if err != nil {
				return fmt.Errorf("failed to initialize dependencies: %w", err)
			}

			queries, err := config.LoadQueries(common.QueriesPath(cmd))
			if err != nil {
				return fmt.Errorf("load queries: %w", err)
			}

			app, err := common.NewApp(deps, false)
			if err != nil {
				return err
			}
			defer app.Close()

			if err := cmdsearch.SyncDefinitions(cmd.Context(), app.Searches, queries.SavedSearches, deps); err != nil {
				return err
			}

			return runScheduler(cmd.Context(), deps, app, queries, doNotify)
		},
	}

	cmd.Flags().BoolVar(&doNotify, "notify", true, "send notifications for new items")

	return cmd
}

func runScheduler(
	ctx context.Context,
	deps common.CommandDeps,
	app *common.App,
	queries *config.QueriesFile,
	doNotify bool,
) error {
	searches, err := app.Searches.List(ctx, true)
	if err != nil {
		return fmt.Errorf("list saved searches: %w", err)
	}

	scheduler := cron.New(cron.WithLogger(cronLogger{deps.Logger}))

	registered := 0
	for _, s := range searches {
		if s.Schedule == nil || *s.Schedule == "" {
			continue
		}

		name := s.Name
		opts := savedsearch.Options{Notify: doNotify, NotifyConfig: common.NotifyDefaults(queries.NotifyFor(name), deps)}

		_, err := scheduler.AddFunc(cronSpec(*s.Schedule), func() {
			report, runErr := app.Runner.Run(ctx, name, opts)
			if runErr != nil {
				deps.Logger.Error("scheduled run failed", "search", name, "error", runErr)
				return
			}
			deps.Logger.Info("scheduled run finished",
				"search", name, "total", report.Total, "new", report.New, "notified", report.Notified)
		})
		if err != nil {
			return fmt.Errorf("schedule %q for %q: %w", *s.Schedule, name, err)
		}
		registered++
		deps.Logger.Info("saved search scheduled", "search", name, "schedule", *s.Schedule)
	}

	if registered == 0 {
		return fmt.Errorf("no enabled saved search has a schedule")
	}

	scheduler.Start()
	deps.Logger.Info("scheduler started", "searches", registered)

	<-ctx.Done()
	deps.Logger.Info("shutdown signal received")

	// Wait for in-flight runs to return before closing the store.
	<-scheduler.Stop().Done()
	return nil
}

func cronSpec(schedule string) string {
	switch schedule {
	case "daily":
		return dailySpec
	case "hourly":
		return hourlySpec
	default:
		return schedule
	}
}

// cronLogger adapts the application logger to the cron logger contract.
type cronLogger struct {
	log logger.Interface
}

func (l cronLogger) Info(msg string, keysAndValues ...any) {
	l.log.Debug(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...any) {
	l.log.Error(msg, append([]any{"error", err}, keysAndValues...)...)
}
