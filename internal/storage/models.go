package storage

import (
	"time"

	"github.com/shopspring/decimal"
)

// PriceSample is one observed minimum price for a route in a travel month.
// Samples are immutable once written; repeated observations across runs
// append new rows for the same (route, travel_month) pair.
type PriceSample struct {
	ID          int64
	Route       string
	TravelMonth string
	Price       decimal.Decimal
	Currency    string
	RecordedAt  time.Time
}

// NotificationRecord tracks the last price at which a deal identity was
// alerted. One row per deal hash; re-alerts overwrite, never append.
type NotificationRecord struct {
	DealHash       string
	LastPrice      decimal.Decimal
	LastNotifiedAt time.Time
}

// TravelMonth truncates a travel date to its year-month key.
func TravelMonth(t time.Time) string {
	return t.Format("2006-01")
}
