package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"flight-deal-alerts/internal/alerting"
	"flight-deal-alerts/internal/config"
	"flight-deal-alerts/internal/deals"
	"flight-deal-alerts/internal/fetcher"
	"flight-deal-alerts/internal/scheduler"
	"flight-deal-alerts/internal/storage"
)

// Service orchestrates one search cycle: fetch offers, update price history,
// score offers, and dispatch alerts.
type Service struct {
	scheduler *scheduler.Scheduler
	searcher  fetcher.FlightSearcher
	history   storage.PriceHistoryStore
	ledger    storage.NotificationLedger
	scorer    *deals.Scorer
	notifier  alerting.Notifier
	logger    zerolog.Logger

	travel        config.TravelConfig
	currency      string
	dedupeDropPct float64
	alertsOn      bool
	summaryOn     bool
}

// New constructs the monitoring service.
func New(cfg *config.Config, sched *scheduler.Scheduler, searcher fetcher.FlightSearcher, history storage.PriceHistoryStore, ledger storage.NotificationLedger, scorer *deals.Scorer, notifier alerting.Notifier, logger zerolog.Logger) *Service {
	return &Service{
		scheduler:     sched,
		searcher:      searcher,
		history:       history,
		ledger:        ledger,
		scorer:        scorer,
		notifier:      notifier,
		logger:        logger.With().Str("component", "service").Logger(),
		travel:        cfg.Travel,
		currency:      cfg.Budget.Currency,
		dedupeDropPct: cfg.Scoring.DedupeDropPct,
		alertsOn:      cfg.Alerting.Enabled,
		summaryOn:     cfg.Alerting.SummaryIfNoDeals,
	}
}

// Run begins the scheduled cycle loop.
func (s *Service) Run(ctx context.Context) error {
	if s.scheduler == nil {
		return fmt.Errorf("scheduler not configured")
	}
	return s.scheduler.Run(ctx, func(ctx context.Context, _ time.Time) error {
		return s.RunCycle(ctx)
	})
}

// RunCycle executes one complete search cycle. All price samples gathered in
// the cycle are written before the first offer is evaluated, so same-run
// offers contribute to each other's baseline exactly once, up front.
func (s *Service) RunCycle(ctx context.Context) error {
	offers, err := s.collectOffers(ctx)
	if err != nil {
		return err
	}
	if len(offers) == 0 {
		s.logger.Info().Msg("search returned no offers")
		return nil
	}

	routes := s.recordSamples(ctx, offers)

	sort.Slice(offers, func(i, j int) bool {
		return offers[i].Price.LessThan(offers[j].Price)
	})
	best := offers[0]

	notified := 0
	for _, offer := range offers {
		result, err := s.scorer.Evaluate(ctx, offer)
		if err != nil {
			// Baseline unavailable is a storage failure, not a cold start;
			// skip the offer rather than misclassify it.
			s.logger.Error().Err(err).Str("route", offer.Route()).Msg("evaluation failed")
			continue
		}
		if !result.IsDeal {
			continue
		}

		suppressed, err := s.shouldSuppress(ctx, result.DealHash, offer)
		if err != nil {
			s.logger.Error().Err(err).Str("deal_hash", result.DealHash).Msg("ledger lookup failed")
			continue
		}
		if suppressed {
			s.logger.Info().Str("deal_hash", result.DealHash).Str("route", offer.Route()).
				Msg("deal suppressed, already alerted without enough further drop")
			continue
		}

		s.logger.Info().
			Str("route", offer.Route()).
			Str("price", offer.Price.String()).
			Str("confidence", string(result.Confidence)).
			Str("link", offer.DeepLink).
			Msg("deal found")

		if s.alertsOn && s.notifier != nil {
			if err := s.notifier.SendDealAlert(ctx, alerting.DealAlert{Offer: offer, Evaluation: result}); err != nil {
				s.logger.Error().Err(err).Str("route", offer.Route()).Msg("failed to dispatch alert")
				continue
			}
		}

		if err := s.ledger.RecordNotification(ctx, result.DealHash, offer.Price); err != nil {
			s.logger.Error().Err(err).Str("deal_hash", result.DealHash).Msg("failed to record notification")
		}
		notified++
	}

	s.logger.Info().
		Int("offers", len(offers)).
		Int("routes_sampled", routes).
		Int("notified", notified).
		Str("best_route", best.Route()).
		Str("best_price", best.Price.String()).
		Msg("cycle finished")

	if notified == 0 && s.summaryOn && s.alertsOn && s.notifier != nil {
		summary := alerting.RunSummary{RoutesChecked: routes, BestOffer: &best}
		if err := s.notifier.SendSummary(ctx, summary); err != nil {
			s.logger.Error().Err(err).Msg("failed to send run summary")
		}
	}

	return nil
}

func (s *Service) collectOffers(ctx context.Context) ([]deals.Offer, error) {
	airports, err := s.searcher.TopAirports(ctx, s.travel.DestinationCountry, s.travel.DestinationAirports)
	if err != nil {
		return nil, fmt.Errorf("resolve destination airports: %w", err)
	}
	if len(airports) == 0 {
		return nil, fmt.Errorf("no destination airports resolved for %s", s.travel.DestinationCountry)
	}

	monthsAhead := s.travel.MonthsAhead
	if monthsAhead <= 0 {
		monthsAhead = 1
	}
	baseDate := time.Now().AddDate(0, 0, s.travel.DepartureDaysFromNow)

	var offers []deals.Offer
	for _, airport := range airports {
		for month := 0; month < monthsAhead; month++ {
			departureDate := baseDate.AddDate(0, month, 0)

			found, err := s.searcher.SearchOffers(ctx, s.travel.OriginCode, airport, departureDate)
			if err != nil {
				s.logger.Error().Err(err).Str("destination", airport).
					Time("departure", departureDate).Msg("flight search failed")
				continue
			}
			offers = append(offers, found...)
		}
	}

	return offers, nil
}

// recordSamples pre-aggregates the cheapest offer per (route, travel month)
// and appends one history sample for each. A failed write only degrades the
// baseline slightly, so it is logged and the cycle continues.
func (s *Service) recordSamples(ctx context.Context, offers []deals.Offer) int {
	type sampleKey struct {
		route string
		month string
	}

	minima := make(map[sampleKey]deals.Offer)
	for _, offer := range offers {
		key := sampleKey{route: offer.Route(), month: storage.TravelMonth(offer.DepartureAt)}
		current, ok := minima[key]
		if !ok || offer.Price.LessThan(current.Price) {
			minima[key] = offer
		}
	}

	stored := 0
	for key, offer := range minima {
		currency := offer.Currency
		if currency == "" {
			currency = s.currency
		}
		if err := s.history.AddPriceSample(ctx, key.route, offer.DepartureAt, offer.Price, currency); err != nil {
			s.logger.Error().Err(err).Str("route", key.route).Str("month", key.month).
				Msg("failed to store price sample")
			continue
		}
		stored++
	}

	s.logger.Info().Int("samples", stored).Int("routes", len(minima)).Msg("price samples recorded")
	return len(minima)
}

func (s *Service) shouldSuppress(ctx context.Context, dealHash string, offer deals.Offer) (bool, error) {
	last, err := s.ledger.GetLastNotification(ctx, dealHash)
	if err != nil {
		return false, err
	}
	if last == nil {
		return false, nil
	}
	return deals.SuppressRepeat(last.LastPrice, offer.Price, s.dedupeDropPct), nil
}
