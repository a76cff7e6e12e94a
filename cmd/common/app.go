package common

import (
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/728jm2pczg-glitch/bid-aggregator/internal/database"
	"github.com/728jm2pczg-glitch/bid-aggregator/internal/ingest"
	"github.com/728jm2pczg-glitch/bid-aggregator/internal/models"
	"github.com/728jm2pczg-glitch/bid-aggregator/internal/normalizer"
	"github.com/728jm2pczg-glitch/bid-aggregator/internal/notify"
	"github.com/728jm2pczg-glitch/bid-aggregator/internal/savedsearch"
	"github.com/728jm2pczg-glitch/bid-aggregator/internal/sources"
	"github.com/728jm2pczg-glitch/bid-aggregator/internal/sources/kkj"
	"github.com/728jm2pczg-glitch/bid-aggregator/internal/sources/pportal"
)

// App bundles the fully wired services a command works with: the open
// store, its repositories, the ingestion pipeline, the notification
// dispatcher, and the saved-search runner.
type App struct {
	DB *sqlx.DB

	Items         *database.ItemRepository
	RawFetches    *database.RawFetchRepository
	Searches      *database.SavedSearchRepository
	Notifications *database.NotificationRepository

	Pipeline   *ingest.Pipeline
	Dispatcher *notify.Dispatcher
	Runner     *savedsearch.Runner
}

// NewApp opens the store and constructs every service from config.
// Callers own the returned App and must Close it.
func NewApp(deps CommandDeps, dryRun bool) (*App, error) {
	db, err := database.Open(database.Config{Path: deps.Config.Database.Path})
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	items := database.NewItemRepository(db)
	raws := database.NewRawFetchRepository(db)
	searches := database.NewSavedSearchRepository(db)
	notifications := database.NewNotificationRepository(db)

	clients := []sources.Client{
		kkj.New(kkj.Config{
			BaseURL:         deps.Config.KKJ.BaseURL,
			Timeout:         deps.Config.KKJ.Timeout,
			RequestInterval: deps.Config.KKJ.RequestInterval,
		}, deps.Logger),
		pportal.New(pportal.Config{
			BaseURL:           deps.Config.PPortal.BaseURL,
			Timeout:           deps.Config.PPortal.Timeout,
			RequestInterval:   deps.Config.PPortal.RequestInterval,
			ProcurementTypes:  deps.Config.PPortal.ProcurementTypes,
			OrganizationCodes: deps.Config.PPortal.OrganizationCodes,
			Classification:    deps.Config.PPortal.Classification,
		}, deps.Logger),
	}

	pipeline := ingest.NewPipeline(clients, normalizer.New(deps.Logger), items, raws, deps.Logger, dryRun)

	dispatcher := notify.NewDispatcher(Senders(deps), notifications, searches, items, deps.Logger)
	runner := savedsearch.NewRunner(searches, items, dispatcher, deps.Logger)

	return &App{
		DB:            db,
		Items:         items,
		RawFetches:    raws,
		Searches:      searches,
		Notifications: notifications,
		Pipeline:      pipeline,
		Dispatcher:    dispatcher,
		Runner:        runner,
	}, nil
}

// Senders builds the delivery senders available under the current
// config. Slack needs nothing up front; email only joins when SMTP is
// configured.
func Senders(deps CommandDeps) []notify.Sender {
	senders := []notify.Sender{notify.NewSlackSender(deps.Logger)}

	smtp := notify.SMTPConfig{
		Host:     deps.Config.SMTP.Host,
		Port:     deps.Config.SMTP.Port,
		Username: deps.Config.SMTP.Username,
		Password: deps.Config.SMTP.Password,
		From:     deps.Config.SMTP.From,
		StartTLS: deps.Config.SMTP.StartTLS,
	}
	if smtp.Configured() {
		senders = append(senders, notify.NewEmailSender(smtp, deps.Logger))
	}
	return senders
}

// NotifyDefaults fills unset per-search notification limits from the
// application config. The input is not modified.
func NotifyDefaults(cfg *models.NotifyConfig, deps CommandDeps) *models.NotifyConfig {
	if cfg == nil {
		return nil
	}
	out := *cfg
	if out.MaxItems == 0 {
		out.MaxItems = deps.Config.Notify.MaxItems
	}
	return &out
}

// NotifyMapDefaults applies NotifyDefaults to every entry of a
// per-search notification config map.
func NotifyMapDefaults(configs map[string]models.NotifyConfig, deps CommandDeps) map[string]models.NotifyConfig {
	out := make(map[string]models.NotifyConfig, len(configs))
	for name, cfg := range configs {
		out[name] = *NotifyDefaults(&cfg, deps)
	}
	return out
}

// Close releases the store connection.
func (a *App) Close() error {
	return a.DB.Close()
}
