package cli

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"flight-deal-alerts/internal/app"
)

var (
	simulateOrigin    string
	simulateDest      string
	simulatePrice     float64
	simulateDeparture string
	simulateAirlines  []string
	simulateNotify    bool
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-deal",
	Short: "Evaluate a hand-built offer against the stored baseline",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateOrigin == "" || simulateDest == "" {
			return errors.New("--origin and --dest must be provided")
		}
		if simulatePrice <= 0 {
			return errors.New("--price must be greater than 0")
		}

		departureAt := time.Now().AddDate(0, 1, 0)
		if simulateDeparture != "" {
			parsed, err := time.Parse("2006-01-02", simulateDeparture)
			if err != nil {
				return fmt.Errorf("invalid --departure value: %w", err)
			}
			departureAt = parsed
		}

		opts := app.SimulateOptions{
			Origin:      simulateOrigin,
			Destination: simulateDest,
			Price:       simulatePrice,
			DepartureAt: departureAt,
			Airlines:    simulateAirlines,
			Notify:      simulateNotify,
		}

		return getApp().SimulateDeal(cmd.Context(), opts)
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateOrigin, "origin", "", "Origin airport code")
	simulateCmd.Flags().StringVar(&simulateDest, "dest", "", "Destination airport code")
	simulateCmd.Flags().Float64Var(&simulatePrice, "price", 0, "Offer price")
	simulateCmd.Flags().StringVar(&simulateDeparture, "departure", "", "Departure date (YYYY-MM-DD, defaults to one month out)")
	simulateCmd.Flags().StringSliceVar(&simulateAirlines, "airlines", []string{"XX"}, "Operating airline codes")
	simulateCmd.Flags().BoolVar(&simulateNotify, "notify", false, "Send the alert when the offer classifies as a deal")
}
