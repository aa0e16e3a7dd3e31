package app

import (
	"context"
	"errors"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"flight-deal-alerts/internal/alerting"
	"flight-deal-alerts/internal/config"
	"flight-deal-alerts/internal/deals"
	"flight-deal-alerts/internal/fetcher"
	"flight-deal-alerts/internal/scheduler"
	"flight-deal-alerts/internal/service"
	"flight-deal-alerts/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger()}
}

func (a *App) newSearcher() fetcher.FlightSearcher {
	if a.Config.Amadeus.UseMock {
		a.Logger.Warn().Msg("amadeus.use_mock enabled; serving canned offers")
		return fetcher.NewMock(a.Config.Budget.Currency, a.Logger)
	}

	return fetcher.NewAmadeus(fetcher.AmadeusOptions{
		BaseURL:      a.Config.Amadeus.BaseURL,
		ClientID:     a.Config.Amadeus.ClientID,
		ClientSecret: a.Config.Amadeus.ClientSecret,
		Timeout:      a.Config.Amadeus.RequestTimeout,
		UserAgent:    a.Config.Amadeus.UserAgent,
		CurrencyCode: a.Config.Budget.Currency,
	}, a.Logger)
}

func (a *App) newNotifier() alerting.Notifier {
	if a.Config.Alerting.WhatsApp.Enabled {
		cfg := a.Config.Alerting.WhatsApp
		return alerting.NewWhatsAppNotifier(cfg.AccountSID, cfg.AuthToken, cfg.FromNumber, cfg.ToNumber, cfg.APIBase, 10*time.Second, a.Logger)
	}
	return nil
}

func (a *App) newScorer(history storage.PriceHistoryStore) *deals.Scorer {
	return deals.NewScorer(deals.ScorerOptions{
		BudgetMax:    decimal.NewFromFloat(a.Config.Budget.MaxPrice),
		BaselineDays: a.Config.Scoring.BaselineDays,
		MinSamples:   a.Config.Scoring.MinSamples,
		DiscountMin:  a.Config.Scoring.DiscountMin,
		DiscountMax:  a.Config.Scoring.DiscountMax,
	}, history, a.Logger)
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, errors.New("database.dsn is not configured")
	}

	pool, err := storage.NewPool(ctx, a.Config.Database)
	if err != nil {
		return nil, nil, err
	}

	if err := storage.EnsureSchema(ctx, pool); err != nil {
		pool.Close()
		return nil, nil, err
	}

	store := storage.NewStore(pool)
	closer := func() {
		store.Close()
	}
	return store, closer, nil
}

func (a *App) newService(store *storage.Store, sched *scheduler.Scheduler) *service.Service {
	return service.New(
		a.Config,
		sched,
		a.newSearcher(),
		store,
		store,
		a.newScorer(store),
		a.newNotifier(),
		a.Logger,
	)
}

// Run executes the long-running monitoring service.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	sched := scheduler.New(scheduler.Options{
		Interval:     a.Config.Scheduler.Interval,
		AlignToStart: a.Config.Scheduler.AlignToStart,
		StartupDelay: a.Config.Scheduler.StartupDelay,
	}, a.Logger)

	svc := a.newService(store, sched)

	a.Logger.Info().Msg("starting flight deal monitor")
	err = svc.Run(ctx)
	if err != nil && !errors.Is(err, context.Canceled) {
		a.Logger.Error().Err(err).Msg("monitor terminated with error")
		return err
	}

	a.Logger.Info().Msg("flight deal monitor stopped")
	return nil
}

// Scan executes exactly one search cycle and returns.
func (a *App) Scan(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	svc := a.newService(store, nil)
	return svc.RunCycle(ctx)
}

// ExportOptions hold parameters for exporting a route's price history.
type ExportOptions struct {
	Route     string
	From      *time.Time
	To        *time.Time
	PNGPath   string
	CSVPath   string
	MaxPoints int
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Limit int
}

// SimulateOptions describe a hand-built offer to evaluate.
type SimulateOptions struct {
	Origin      string
	Destination string
	Price       float64
	DepartureAt time.Time
	Airlines    []string
	Notify      bool
}
