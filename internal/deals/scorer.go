package deals

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// Confidence qualifies a verdict for downstream consumers.
type Confidence string

const (
	// ConfidenceHigh means the baseline had at least MinSamples observations.
	ConfidenceHigh Confidence = "HIGH"
	// ConfidenceColdStart marks a verdict computed against a baseline with
	// fewer than MinSamples observations.
	ConfidenceColdStart Confidence = "COLD_START"
	// ConfidenceNone means no classification against a baseline happened.
	ConfidenceNone Confidence = "NONE"
)

// EvaluationResult is the structured verdict for a single offer.
type EvaluationResult struct {
	IsDeal     bool
	Confidence Confidence
	Baseline   decimal.Decimal
	Reason     string
	DealHash   string
}

// BaselineSource supplies trailing-window median statistics for a route and
// travel month. A nil median with count 0 means no rows existed; transport
// failures must surface as errors, never as an empty result.
type BaselineSource interface {
	GetBaselineStats(ctx context.Context, route string, travelDate time.Time, daysBack int) (*decimal.Decimal, int, error)
}

// ScorerOptions parameterise the classification rules.
type ScorerOptions struct {
	BudgetMax    decimal.Decimal
	BaselineDays int
	MinSamples   int
	DiscountMin  float64
	DiscountMax  float64
}

// Scorer classifies offers against historical price baselines.
type Scorer struct {
	opts     ScorerOptions
	history  BaselineSource
	logger   zerolog.Logger
	discLow  decimal.Decimal // 1 - DiscountMax
	discHigh decimal.Decimal // 1 - DiscountMin
}

// NewScorer constructs a Scorer around a baseline source.
func NewScorer(opts ScorerOptions, history BaselineSource, logger zerolog.Logger) *Scorer {
	one := decimal.NewFromInt(1)
	return &Scorer{
		opts:     opts,
		history:  history,
		logger:   logger.With().Str("component", "scorer").Logger(),
		discLow:  one.Sub(decimal.NewFromFloat(opts.DiscountMax)),
		discHigh: one.Sub(decimal.NewFromFloat(opts.DiscountMin)),
	}
}

// Evaluate applies the classification rules to one offer, in order: absolute
// budget ceiling, cold start with no data, cold start with a provisional
// baseline, then the standard discount band. The band has an upper bound on
// savings as well as a lower one; fares cheaper than baseline*(1-DiscountMax)
// are likely data errors and classified as non-deals.
//
// A baseline read failure is returned as an error so the caller never
// mistakes a storage outage for an empty history.
func (s *Scorer) Evaluate(ctx context.Context, offer Offer) (EvaluationResult, error) {
	hash := Fingerprint(offer)

	if offer.Price.GreaterThan(s.opts.BudgetMax) {
		return EvaluationResult{
			IsDeal:     false,
			Confidence: ConfidenceNone,
			Baseline:   decimal.Zero,
			Reason:     "price exceeds budget ceiling",
			DealHash:   hash,
		}, nil
	}

	median, count, err := s.history.GetBaselineStats(ctx, offer.Route(), offer.DepartureAt, s.opts.BaselineDays)
	if err != nil {
		return EvaluationResult{}, fmt.Errorf("baseline stats for %s: %w", offer.Route(), err)
	}

	if median == nil {
		return EvaluationResult{
			IsDeal:     false,
			Confidence: ConfidenceNone,
			Baseline:   decimal.Zero,
			Reason:     "no historical data for route and travel month",
			DealHash:   hash,
		}, nil
	}

	baseline := *median
	confidence := ConfidenceHigh
	if count < s.opts.MinSamples {
		confidence = ConfidenceColdStart
	}

	lower := baseline.Mul(s.discLow)
	upper := baseline.Mul(s.discHigh)

	result := EvaluationResult{
		Confidence: confidence,
		Baseline:   baseline,
		DealHash:   hash,
	}

	if offer.Price.GreaterThanOrEqual(lower) && offer.Price.LessThanOrEqual(upper) {
		result.IsDeal = true
		result.Reason = "price within relative-discount band"
		if confidence == ConfidenceColdStart {
			result.Reason = fmt.Sprintf("price within relative-discount band (building baseline, %d samples)", count)
		}
	} else {
		result.IsDeal = false
		result.Reason = "price outside relative-discount band"
	}

	s.logger.Debug().
		Str("route", offer.Route()).
		Str("price", offer.Price.String()).
		Str("baseline", baseline.String()).
		Int("samples", count).
		Bool("is_deal", result.IsDeal).
		Str("confidence", string(result.Confidence)).
		Msg("offer evaluated")

	return result, nil
}

// SuppressRepeat reports whether a re-alert for an already-notified deal
// should be suppressed: the new price must undercut the last alerted price by
// at least dropPct, otherwise the alert is noise. Re-alerts that do fire move
// the throttle floor down, never up.
func SuppressRepeat(lastPrice, currentPrice decimal.Decimal, dropPct float64) bool {
	threshold := lastPrice.Mul(decimal.NewFromInt(1).Sub(decimal.NewFromFloat(dropPct)))
	return currentPrice.GreaterThan(threshold)
}
