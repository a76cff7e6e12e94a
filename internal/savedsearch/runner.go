// Package savedsearch re-evaluates persisted searches against the item
// store, diffs the matches against prior runs, and hands new hits to
// the notification dispatcher.
package savedsearch

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/728jm2pczg-glitch/bid-aggregator/internal/database"
	"github.com/728jm2pczg-glitch/bid-aggregator/internal/logger"
	"github.com/728jm2pczg-glitch/bid-aggregator/internal/models"
	"github.com/728jm2pczg-glitch/bid-aggregator/internal/notify"
)

// searchLimit bounds how many stored items one run considers.
const searchLimit = 1000

// Options control one run.
type Options struct {
	Notify       bool
	DryRun       bool
	NotifyConfig *models.NotifyConfig
}

// Report is the outcome of one run.
type Report struct {
	Name         string
	Total        int
	New          int
	Notified     bool
	NotifyStatus *string
	Status       string
	Error        string
}

// Runner executes saved searches.
type Runner struct {
	searches   *database.SavedSearchRepository
	items      *database.ItemRepository
	dispatcher *notify.Dispatcher
	log        logger.Interface
}

// NewRunner creates a Runner. The dispatcher may be nil when
// notification delivery is not wired (dry tooling).
func NewRunner(
	searches *database.SavedSearchRepository,
	items *database.ItemRepository,
	dispatcher *notify.Dispatcher,
	log logger.Interface,
) *Runner {
	return &Runner{
		searches:   searches,
		items:      items,
		dispatcher: dispatcher,
		log:        log.WithComponent("savedsearch"),
	}
}

// Run executes one saved search by name: open a run record, query the
// store, diff against already-seen items when only_new is set, record
// hits, notify, and finalize. Dry runs query and report but persist
// nothing.
func (r *Runner) Run(ctx context.Context, name string, opts Options) (*Report, error) {
	search, err := r.searches.GetByName(ctx, name)
	if err != nil {
		return nil, fmt.Errorf("failed to load saved search %q: %w", name, err)
	}

	var filters models.SearchFilters
	if err := json.Unmarshal([]byte(search.FiltersJSON), &filters); err != nil {
		return nil, fmt.Errorf("failed to decode filters for %q: %w", name, err)
	}

	log := r.log.With("search", name)
	log.Info("running saved search", "only_new", search.OnlyNew, "dry_run", opts.DryRun)

	var runID int64
	if !opts.DryRun {
		snapshot := search.FiltersJSON
		runID, err = r.searches.CreateRun(ctx, search.ID, search.QueryRef, &snapshot)
		if err != nil {
			return nil, err
		}
	}

	report, runErr := r.execute(ctx, search, filters, runID, opts, log)
	if runErr != nil {
		if !opts.DryRun && runID != 0 {
			msg := runErr.Error()
			if finErr := r.searches.FinalizeRun(ctx, runID, database.RunOutcome{
				Status:       models.RunStatusFailed,
				ErrorMessage: &msg,
			}); finErr != nil {
				log.Error("failed to finalize run", "run_id", runID, "error", finErr)
			}
		}
		return &Report{Name: name, Status: models.RunStatusFailed, Error: runErr.Error()}, runErr
	}
	return report, nil
}

func (r *Runner) execute(
	ctx context.Context,
	search *models.SavedSearch,
	filters models.SearchFilters,
	runID int64,
	opts Options,
	log logger.Interface,
) (*Report, error) {
	items, total, err := r.items.Search(ctx, filters, search.OrderBy, searchLimit, 0)
	if err != nil {
		return nil, fmt.Errorf("failed to search items: %w", err)
	}
	log.Info("search complete", "total", total, "fetched", len(items))

	newItems := items
	if search.OnlyNew && !opts.DryRun {
		seen, err := r.searches.PreviousHitItemIDs(ctx, search.ID)
		if err != nil {
			return nil, err
		}
		newItems = make([]models.Item, 0, len(items))
		for _, item := range items {
			if _, ok := seen[item.ID]; !ok {
				newItems = append(newItems, item)
			}
		}
		log.Info("diff complete", "new", len(newItems), "seen", len(seen))
	}

	if !opts.DryRun {
		for _, item := range newItems {
			id := item.ID
			if _, err := r.searches.CreateHit(ctx, runID, &id, item.ContentHash); err != nil {
				return nil, err
			}
		}
	}

	var outcome *notify.Outcome
	if opts.Notify && len(newItems) > 0 && opts.NotifyConfig != nil && opts.NotifyConfig.Enabled && r.dispatcher != nil {
		outcome = r.dispatcher.Send(ctx, search.ID, runID, search.Name, newItems, *opts.NotifyConfig, opts.DryRun)
	}

	report := &Report{
		Name:   search.Name,
		Total:  total,
		New:    len(newItems),
		Status: models.RunStatusOK,
	}

	runOutcome := database.RunOutcome{
		HitCount: len(newItems),
		Status:   models.RunStatusOK,
	}
	if outcome != nil {
		report.Notified = len(outcome.NotifiedChannels) > 0
		runOutcome.NotifiedChannels = outcome.NotifiedChannels
		runOutcome.NotifyError = outcome.ErrorMessage
		if outcome.Status != "" {
			status := outcome.Status
			report.NotifyStatus = &status
			runOutcome.NotifyStatus = &status
		}
	}

	if !opts.DryRun {
		if err := r.searches.FinalizeRun(ctx, runID, runOutcome); err != nil {
			return nil, err
		}
		if err := r.searches.TouchLastRun(ctx, search.ID, time.Now().UTC()); err != nil {
			return nil, err
		}
	}

	return report, nil
}

// RunAll executes every enabled saved search, isolating failures.
// Notification configs are resolved per search name.
func (r *Runner) RunAll(ctx context.Context, notifyConfigs map[string]models.NotifyConfig, opts Options) ([]Report, error) {
	searches, err := r.searches.List(ctx, true)
	if err != nil {
		return nil, err
	}

	reports := make([]Report, 0, len(searches))
	for _, s := range searches {
		runOpts := opts
		if cfg, ok := notifyConfigs[s.Name]; ok {
			runOpts.NotifyConfig = &cfg
		}
		report, err := r.Run(ctx, s.Name, runOpts)
		if err != nil {
			r.log.Error("saved search failed", "search", s.Name, "error", err)
		}
		if report != nil {
			reports = append(reports, *report)
		}
	}
	return reports, nil
}
