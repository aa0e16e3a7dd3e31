package app

import (
	"context"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
)

// Show prints recent price samples and ledger entries.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	samples, err := store.ListRecentSamples(ctx, opts.Limit)
	if err != nil {
		return err
	}

	writer := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)

	if len(samples) == 0 {
		fmt.Fprintln(os.Stdout, "no price samples found")
	} else {
		fmt.Fprintln(writer, "Recorded (UTC)\tRoute\tTravel Month\tPrice\tCurrency")
		for _, sample := range samples {
			fmt.Fprintf(
				writer,
				"%s\t%s\t%s\t%s\t%s\n",
				sample.RecordedAt.UTC().Format(time.RFC3339),
				sample.Route,
				sample.TravelMonth,
				formatDecimal(sample.Price, 2),
				sample.Currency,
			)
		}
		writer.Flush()
	}

	records, err := store.ListRecentNotifications(ctx, opts.Limit)
	if err != nil {
		return err
	}

	if len(records) == 0 {
		fmt.Fprintln(os.Stdout, "no notifications recorded")
		return nil
	}

	fmt.Fprintln(os.Stdout)
	fmt.Fprintln(writer, "Notified (UTC)\tDeal Hash\tLast Price")
	for _, rec := range records {
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\n",
			rec.LastNotifiedAt.UTC().Format(time.RFC3339),
			rec.DealHash,
			formatDecimal(rec.LastPrice, 2),
		)
	}

	writer.Flush()
	return nil
}

func formatDecimal(d decimal.Decimal, places int32) string {
	return d.StringFixed(places)
}
