package app

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/shopspring/decimal"

	"flight-deal-alerts/internal/alerting"
	"flight-deal-alerts/internal/deals"
)

// SimulateDeal evaluates a hand-built offer against the live price history
// and, when requested, pushes the alert through the configured channel. This
// exercises the full scoring and delivery path without calling the flight
// search provider.
func (a *App) SimulateDeal(ctx context.Context, opts SimulateOptions) error {
	offer := deals.Offer{
		Price:       decimal.NewFromFloat(opts.Price),
		Currency:    a.Config.Budget.Currency,
		Origin:      opts.Origin,
		Destination: opts.Destination,
		DepartureAt: opts.DepartureAt,
		Airlines:    opts.Airlines,
		Segments:    1,
		DeepLink:    "simulated",
	}
	if err := offer.Validate(); err != nil {
		return err
	}

	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	scorer := a.newScorer(store)
	result, err := scorer.Evaluate(ctx, offer)
	if err != nil {
		return err
	}

	fmt.Fprintf(os.Stdout, "route: %s\nis_deal: %t\nconfidence: %s\nbaseline: %s\nreason: %s\ndeal_hash: %s\n",
		offer.Route(), result.IsDeal, result.Confidence, result.Baseline.StringFixed(2), result.Reason, result.DealHash)

	if !opts.Notify {
		return nil
	}
	if !result.IsDeal {
		return errors.New("offer did not classify as a deal; nothing to send")
	}

	notifier := a.newNotifier()
	if notifier == nil {
		return errors.New("no alert channel configured")
	}

	return notifier.SendDealAlert(ctx, alerting.DealAlert{Offer: offer, Evaluation: result})
}
