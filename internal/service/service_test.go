package service

import (
	"context"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"flight-deal-alerts/internal/alerting"
	"flight-deal-alerts/internal/config"
	"flight-deal-alerts/internal/deals"
	"flight-deal-alerts/internal/storage"
)

type memSample struct {
	route string
	month string
	price decimal.Decimal
}

// memHistory implements the price history operations in memory and records
// the order of writes versus baseline reads.
type memHistory struct {
	samples []memSample
	events  []string
}

func (m *memHistory) AddPriceSample(ctx context.Context, route string, travelDate time.Time, price decimal.Decimal, currency string) error {
	m.events = append(m.events, "add")
	m.samples = append(m.samples, memSample{route: route, month: storage.TravelMonth(travelDate), price: price})
	return nil
}

func (m *memHistory) GetBaselineStats(ctx context.Context, route string, travelDate time.Time, daysBack int) (*decimal.Decimal, int, error) {
	m.events = append(m.events, "baseline")
	month := storage.TravelMonth(travelDate)

	var prices []decimal.Decimal
	for _, sample := range m.samples {
		if sample.route == route && sample.month == month {
			prices = append(prices, sample.price)
		}
	}
	if len(prices) == 0 {
		return nil, 0, nil
	}
	median := storage.Median(prices)
	return &median, len(prices), nil
}

func (m *memHistory) ListRecentSamples(ctx context.Context, limit int) ([]storage.PriceSample, error) {
	return nil, nil
}

func (m *memHistory) ListRouteSamplesBetween(ctx context.Context, route string, from, to time.Time) ([]storage.PriceSample, error) {
	return nil, nil
}

type memLedger struct {
	records map[string]storage.NotificationRecord
}

func newMemLedger() *memLedger {
	return &memLedger{records: make(map[string]storage.NotificationRecord)}
}

func (m *memLedger) GetLastNotification(ctx context.Context, dealHash string) (*storage.NotificationRecord, error) {
	rec, ok := m.records[dealHash]
	if !ok {
		return nil, nil
	}
	return &rec, nil
}

func (m *memLedger) RecordNotification(ctx context.Context, dealHash string, price decimal.Decimal) error {
	m.records[dealHash] = storage.NotificationRecord{DealHash: dealHash, LastPrice: price, LastNotifiedAt: time.Now()}
	return nil
}

func (m *memLedger) ListRecentNotifications(ctx context.Context, limit int) ([]storage.NotificationRecord, error) {
	return nil, nil
}

type stubSearcher struct {
	offers []deals.Offer
}

func (s *stubSearcher) TopAirports(ctx context.Context, countryCode string, limit int) ([]string, error) {
	return []string{"NRT"}, nil
}

func (s *stubSearcher) SearchOffers(ctx context.Context, origin, destination string, departureDate time.Time) ([]deals.Offer, error) {
	return s.offers, nil
}

type recordingNotifier struct {
	alerts    []alerting.DealAlert
	summaries []alerting.RunSummary
}

func (r *recordingNotifier) SendDealAlert(ctx context.Context, alert alerting.DealAlert) error {
	r.alerts = append(r.alerts, alert)
	return nil
}

func (r *recordingNotifier) SendSummary(ctx context.Context, summary alerting.RunSummary) error {
	r.summaries = append(r.summaries, summary)
	return nil
}

func cycleConfig() *config.Config {
	return &config.Config{
		Travel: config.TravelConfig{
			OriginCode:          "MEX",
			DestinationCountry:  "JP",
			DestinationAirports: 1,
			MonthsAhead:         1,
		},
		Budget: config.BudgetConfig{MaxPrice: 2000, Currency: "USD"},
		Scoring: config.ScoringConfig{
			BaselineDays:  30,
			MinSamples:    1,
			DiscountMin:   0.1,
			DiscountMax:   0.4,
			DedupeDropPct: 0.1,
		},
		Alerting: config.AlertingConfig{Enabled: true, SummaryIfNoDeals: true},
	}
}

func cycleOffer(price int64) deals.Offer {
	return deals.Offer{
		Price:       decimal.NewFromInt(price),
		Currency:    "USD",
		Origin:      "MEX",
		Destination: "NRT",
		DepartureAt: time.Date(2026, 11, 12, 9, 30, 0, 0, time.UTC),
		Airlines:    []string{"AM"},
		DeepLink:    "https://example.com/deal",
	}
}

func seedHistory(history *memHistory, route string, travelDate time.Time, prices ...int64) {
	for _, price := range prices {
		history.samples = append(history.samples, memSample{
			route: route,
			month: storage.TravelMonth(travelDate),
			price: decimal.NewFromInt(price),
		})
	}
}

func newCycleService(cfg *config.Config, history *memHistory, ledger *memLedger, searcher *stubSearcher, notifier *recordingNotifier) *Service {
	scorer := deals.NewScorer(deals.ScorerOptions{
		BudgetMax:    decimal.NewFromFloat(cfg.Budget.MaxPrice),
		BaselineDays: cfg.Scoring.BaselineDays,
		MinSamples:   cfg.Scoring.MinSamples,
		DiscountMin:  cfg.Scoring.DiscountMin,
		DiscountMax:  cfg.Scoring.DiscountMax,
	}, history, zerolog.Nop())

	return New(cfg, nil, searcher, history, ledger, scorer, notifier, zerolog.Nop())
}

func TestRunCycleAlertsAndRecords(t *testing.T) {
	cfg := cycleConfig()
	history := &memHistory{}
	ledger := newMemLedger()
	notifier := &recordingNotifier{}

	travelDate := time.Date(2026, 11, 12, 0, 0, 0, 0, time.UTC)
	seedHistory(history, "MEX-NRT", travelDate, 1000, 1000, 1000)

	searcher := &stubSearcher{offers: []deals.Offer{cycleOffer(650), cycleOffer(1500)}}
	svc := newCycleService(cfg, history, ledger, searcher, notifier)

	if err := svc.RunCycle(context.Background()); err != nil {
		t.Fatalf("cycle failed: %v", err)
	}

	if len(notifier.alerts) != 1 {
		t.Fatalf("expected exactly one alert, got %d", len(notifier.alerts))
	}
	alert := notifier.alerts[0]
	if !alert.Offer.Price.Equal(decimal.NewFromInt(650)) {
		t.Fatalf("the in-band offer should alert, got price %s", alert.Offer.Price)
	}

	rec, err := ledger.GetLastNotification(context.Background(), alert.Evaluation.DealHash)
	if err != nil || rec == nil {
		t.Fatalf("ledger should hold a record after the alert: %v", err)
	}
	if !rec.LastPrice.Equal(decimal.NewFromInt(650)) {
		t.Fatalf("ledger should record the alerted price, got %s", rec.LastPrice)
	}

	if len(notifier.summaries) != 0 {
		t.Fatal("no summary should be sent when an alert fired")
	}
}

func TestRunCycleWritesSamplesBeforeEvaluating(t *testing.T) {
	cfg := cycleConfig()
	history := &memHistory{}
	ledger := newMemLedger()
	notifier := &recordingNotifier{}

	searcher := &stubSearcher{offers: []deals.Offer{cycleOffer(650), cycleOffer(1500)}}
	svc := newCycleService(cfg, history, ledger, searcher, notifier)

	if err := svc.RunCycle(context.Background()); err != nil {
		t.Fatalf("cycle failed: %v", err)
	}

	seenBaseline := false
	for _, event := range history.events {
		if event == "baseline" {
			seenBaseline = true
		}
		if event == "add" && seenBaseline {
			t.Fatal("all sample writes must complete before the first baseline read")
		}
	}
	if !seenBaseline {
		t.Fatal("cycle should have evaluated offers")
	}
}

func TestRunCycleSuppressesRepeatAlerts(t *testing.T) {
	cfg := cycleConfig()
	history := &memHistory{}
	ledger := newMemLedger()
	notifier := &recordingNotifier{}

	travelDate := time.Date(2026, 11, 12, 0, 0, 0, 0, time.UTC)
	seedHistory(history, "MEX-NRT", travelDate, 1000, 1000, 1000)

	offer := cycleOffer(650)
	hash := deals.Fingerprint(offer)

	// Already alerted at 700; 650 is not a 10% further drop (threshold 630).
	if err := ledger.RecordNotification(context.Background(), hash, decimal.NewFromInt(700)); err != nil {
		t.Fatal(err)
	}

	searcher := &stubSearcher{offers: []deals.Offer{offer}}
	svc := newCycleService(cfg, history, ledger, searcher, notifier)

	if err := svc.RunCycle(context.Background()); err != nil {
		t.Fatalf("cycle failed: %v", err)
	}

	if len(notifier.alerts) != 0 {
		t.Fatal("repeat deal without a meaningful drop must be suppressed")
	}
	rec, _ := ledger.GetLastNotification(context.Background(), hash)
	if !rec.LastPrice.Equal(decimal.NewFromInt(700)) {
		t.Fatalf("suppressed alerts must not touch the ledger, got %s", rec.LastPrice)
	}
}

func TestRunCycleRealertsOnFurtherDrop(t *testing.T) {
	cfg := cycleConfig()
	history := &memHistory{}
	ledger := newMemLedger()
	notifier := &recordingNotifier{}

	travelDate := time.Date(2026, 11, 12, 0, 0, 0, 0, time.UTC)
	seedHistory(history, "MEX-NRT", travelDate, 1000, 1000, 1000)

	offer := cycleOffer(650)
	hash := deals.Fingerprint(offer)

	// Alerted at 800; 650 undercuts the 720 threshold and re-triggers.
	if err := ledger.RecordNotification(context.Background(), hash, decimal.NewFromInt(800)); err != nil {
		t.Fatal(err)
	}

	searcher := &stubSearcher{offers: []deals.Offer{offer}}
	svc := newCycleService(cfg, history, ledger, searcher, notifier)

	if err := svc.RunCycle(context.Background()); err != nil {
		t.Fatalf("cycle failed: %v", err)
	}

	if len(notifier.alerts) != 1 {
		t.Fatalf("a meaningful further drop must re-alert, got %d alerts", len(notifier.alerts))
	}
	rec, _ := ledger.GetLastNotification(context.Background(), hash)
	if !rec.LastPrice.Equal(decimal.NewFromInt(650)) {
		t.Fatalf("re-alert must ratchet the ledger price down, got %s", rec.LastPrice)
	}
}

func TestRunCycleSendsSummaryWhenNoDeals(t *testing.T) {
	cfg := cycleConfig()
	history := &memHistory{}
	ledger := newMemLedger()
	notifier := &recordingNotifier{}

	// No seeded history: every offer lands in the absolute cold start.
	searcher := &stubSearcher{offers: []deals.Offer{cycleOffer(650)}}
	svc := newCycleService(cfg, history, ledger, searcher, notifier)

	if err := svc.RunCycle(context.Background()); err != nil {
		t.Fatalf("cycle failed: %v", err)
	}

	if len(notifier.alerts) != 0 {
		t.Fatal("no alert should fire without any history")
	}
	if len(notifier.summaries) != 1 {
		t.Fatalf("expected one run summary, got %d", len(notifier.summaries))
	}
	summary := notifier.summaries[0]
	if summary.BestOffer == nil || !summary.BestOffer.Price.Equal(decimal.NewFromInt(650)) {
		t.Fatal("summary should carry the best observed offer")
	}
}
