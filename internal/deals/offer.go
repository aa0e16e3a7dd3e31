package deals

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Offer is a normalized flight offer as produced by the search boundary.
// Callers must only hand well-formed offers to the scorer; Validate is the
// filter applied at that boundary.
type Offer struct {
	Price       decimal.Decimal
	Currency    string
	Origin      string
	Destination string
	DepartureAt time.Time
	ReturnAt    *time.Time
	Airlines    []string
	Segments    int
	DeepLink    string
	BackupLink  string
}

// Route returns the canonical "ORIGIN-DEST" key, case-normalized.
func (o Offer) Route() string {
	return strings.ToUpper(strings.TrimSpace(o.Origin)) + "-" + strings.ToUpper(strings.TrimSpace(o.Destination))
}

// Validate rejects offers that cannot be scored: a missing price or
// departure time means the upstream payload was malformed.
func (o Offer) Validate() error {
	if o.Price.Sign() <= 0 {
		return fmt.Errorf("offer %s: price must be positive", o.Route())
	}
	if o.Origin == "" || o.Destination == "" {
		return fmt.Errorf("offer: origin and destination are required")
	}
	if o.DepartureAt.IsZero() {
		return fmt.Errorf("offer %s: departure time is required", o.Route())
	}
	return nil
}

// sortedAirlines returns the operating airline set in deterministic order.
func (o Offer) sortedAirlines() []string {
	airlines := make([]string, 0, len(o.Airlines))
	seen := make(map[string]struct{}, len(o.Airlines))
	for _, a := range o.Airlines {
		code := strings.ToUpper(strings.TrimSpace(a))
		if code == "" {
			continue
		}
		if _, ok := seen[code]; ok {
			continue
		}
		seen[code] = struct{}{}
		airlines = append(airlines, code)
	}
	sort.Strings(airlines)
	return airlines
}
