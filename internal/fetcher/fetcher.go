package fetcher

import (
	"context"
	"time"

	"flight-deal-alerts/internal/deals"
)

// FlightSearcher retrieves destination airports and flight offers from the
// upstream flight-search provider.
type FlightSearcher interface {
	TopAirports(ctx context.Context, countryCode string, limit int) ([]string, error)
	SearchOffers(ctx context.Context, origin, destination string, departureDate time.Time) ([]deals.Offer, error)
}
