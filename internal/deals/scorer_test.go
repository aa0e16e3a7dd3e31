package deals

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

type stubBaseline struct {
	median *decimal.Decimal
	count  int
	err    error
}

func (s *stubBaseline) GetBaselineStats(ctx context.Context, route string, travelDate time.Time, daysBack int) (*decimal.Decimal, int, error) {
	return s.median, s.count, s.err
}

func newTestScorer(t *testing.T, source BaselineSource) *Scorer {
	t.Helper()
	return NewScorer(ScorerOptions{
		BudgetMax:    decimal.NewFromInt(2000),
		BaselineDays: 30,
		MinSamples:   5,
		DiscountMin:  0.1,
		DiscountMax:  0.4,
	}, source, zerolog.Nop())
}

func testOffer(price int64) Offer {
	return Offer{
		Price:       decimal.NewFromInt(price),
		Currency:    "USD",
		Origin:      "MEX",
		Destination: "NRT",
		DepartureAt: time.Date(2026, 11, 12, 9, 30, 0, 0, time.UTC),
		Airlines:    []string{"AM", "NH"},
		DeepLink:    "https://example.com/deal",
	}
}

func median(v int64) *decimal.Decimal {
	d := decimal.NewFromInt(v)
	return &d
}

func TestEvaluateBudgetGate(t *testing.T) {
	// The ceiling applies before any baseline is consulted.
	scorer := newTestScorer(t, &stubBaseline{err: errors.New("must not be called")})

	result, err := scorer.Evaluate(context.Background(), testOffer(2500))
	if err != nil {
		t.Fatalf("budget-gated offer should not error: %v", err)
	}
	if result.IsDeal {
		t.Fatal("over-budget offer must never be a deal")
	}
	if result.Confidence != ConfidenceNone {
		t.Fatalf("expected NONE confidence, got %s", result.Confidence)
	}
	if !result.Baseline.IsZero() {
		t.Fatalf("expected zero baseline, got %s", result.Baseline)
	}
}

func TestEvaluateNoHistory(t *testing.T) {
	scorer := newTestScorer(t, &stubBaseline{median: nil, count: 0})

	result, err := scorer.Evaluate(context.Background(), testOffer(100))
	if err != nil {
		t.Fatalf("empty history should not error: %v", err)
	}
	if result.IsDeal {
		t.Fatal("must never alert without at least one sample")
	}
	if result.Confidence != ConfidenceNone {
		t.Fatalf("expected NONE confidence, got %s", result.Confidence)
	}
}

func TestEvaluateStandardBand(t *testing.T) {
	cases := []struct {
		name   string
		price  int64
		isDeal bool
	}{
		{"within band", 650, true},
		{"not cheap enough", 950, false},
		{"too good to be true", 550, false},
		{"lower bound inclusive", 600, true},
		{"upper bound inclusive", 900, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			scorer := newTestScorer(t, &stubBaseline{median: median(1000), count: 8})

			result, err := scorer.Evaluate(context.Background(), testOffer(tc.price))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if result.IsDeal != tc.isDeal {
				t.Fatalf("price %d: expected is_deal=%t, got %t (%s)", tc.price, tc.isDeal, result.IsDeal, result.Reason)
			}
			if result.Confidence != ConfidenceHigh {
				t.Fatalf("expected HIGH confidence, got %s", result.Confidence)
			}
			if !result.Baseline.Equal(decimal.NewFromInt(1000)) {
				t.Fatalf("expected baseline 1000, got %s", result.Baseline)
			}
		})
	}
}

func TestEvaluateColdStartSameBand(t *testing.T) {
	// Below min_samples the discount arithmetic is identical; only the
	// confidence tag changes.
	scorer := newTestScorer(t, &stubBaseline{median: median(1000), count: 2})

	result, err := scorer.Evaluate(context.Background(), testOffer(650))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !result.IsDeal {
		t.Fatal("in-band cold start offer should be a deal")
	}
	if result.Confidence != ConfidenceColdStart {
		t.Fatalf("expected COLD_START confidence, got %s", result.Confidence)
	}

	result, err = scorer.Evaluate(context.Background(), testOffer(950))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if result.IsDeal {
		t.Fatal("out-of-band cold start offer should not be a deal")
	}
	if result.Confidence != ConfidenceColdStart {
		t.Fatalf("cold start rejection keeps the COLD_START tag, got %s", result.Confidence)
	}
}

func TestEvaluateBaselineReadFailure(t *testing.T) {
	scorer := newTestScorer(t, &stubBaseline{err: errors.New("connection refused")})

	if _, err := scorer.Evaluate(context.Background(), testOffer(100)); err == nil {
		t.Fatal("a storage failure must surface as an error, not as a cold start")
	}
}

func TestSuppressRepeat(t *testing.T) {
	last := decimal.NewFromInt(1000)

	if !SuppressRepeat(last, decimal.NewFromInt(950), 0.1) {
		t.Fatal("950 against last 1000 with 10% threshold should be suppressed")
	}
	if SuppressRepeat(last, decimal.NewFromInt(850), 0.1) {
		t.Fatal("850 against last 1000 with 10% threshold should re-alert")
	}
	// Exactly at the threshold re-alerts: 900 is not greater than 900.
	if SuppressRepeat(last, decimal.NewFromInt(900), 0.1) {
		t.Fatal("price exactly at threshold should re-alert")
	}
}
