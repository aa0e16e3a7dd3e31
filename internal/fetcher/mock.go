package fetcher

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"flight-deal-alerts/internal/deals"
)

var mockAirports = map[string][]string{
	"JP": {"NRT", "HND", "KIX", "ITM"},
	"FR": {"CDG", "ORY", "NCE"},
	"US": {"JFK", "LAX", "ORD", "MIA"},
}

// Mock serves canned airports and offers so the pipeline can run without
// Amadeus credentials.
type Mock struct {
	currency string
	logger   zerolog.Logger
}

// NewMock constructs the mock flight searcher.
func NewMock(currency string, logger zerolog.Logger) *Mock {
	if currency == "" {
		currency = "USD"
	}
	return &Mock{currency: currency, logger: logger.With().Str("component", "mock_fetcher").Logger()}
}

func (m *Mock) TopAirports(ctx context.Context, countryCode string, limit int) ([]string, error) {
	m.logger.Info().Str("country", countryCode).Msg("returning mock airports")
	airports, ok := mockAirports[strings.ToUpper(countryCode)]
	if !ok {
		airports = []string{"AAA", "BBB"}
	}
	if limit > 0 && limit < len(airports) {
		airports = airports[:limit]
	}
	return airports, nil
}

func (m *Mock) SearchOffers(ctx context.Context, origin, destination string, departureDate time.Time) ([]deals.Offer, error) {
	departure := time.Date(departureDate.Year(), departureDate.Month(), departureDate.Day(), 9, 30, 0, 0, time.UTC)

	base := deals.Offer{
		Currency:    m.currency,
		Origin:      strings.ToUpper(origin),
		Destination: strings.ToUpper(destination),
		DepartureAt: departure,
		Segments:    2,
		DeepLink:    googleFlightsLink(origin, destination, departure),
		BackupLink:  skyscannerLink(origin, destination, departure),
	}

	cheap := base
	cheap.Price = decimal.NewFromInt(480)
	cheap.Airlines = []string{"NH"}

	typical := base
	typical.Price = decimal.NewFromInt(760)
	typical.Airlines = []string{"UA", "NH"}
	typical.DepartureAt = departure.Add(5 * time.Hour)
	typical.DeepLink = base.DeepLink + "&alt=1"

	return []deals.Offer{cheap, typical}, nil
}

var _ FlightSearcher = (*Mock)(nil)
