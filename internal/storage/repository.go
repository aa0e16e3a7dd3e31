package storage

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const (
	insertPriceSampleSQL = `INSERT INTO price_samples (
        route,
        travel_month,
        price,
        currency,
        recorded_at
    ) VALUES (
        $1,$2,$3,$4,$5
    );`

	selectBaselinePricesSQL = `SELECT price
    FROM price_samples
    WHERE route = $1
      AND travel_month = $2
      AND recorded_at >= $3
    ORDER BY price;`

	listRecentSamplesSQL = `SELECT
        id,
        route,
        travel_month,
        price,
        currency,
        recorded_at
    FROM price_samples
    ORDER BY recorded_at DESC
    LIMIT $1;`

	listRouteSamplesBetweenSQL = `SELECT
        id,
        route,
        travel_month,
        price,
        currency,
        recorded_at
    FROM price_samples
    WHERE route = $1
      AND recorded_at >= $2
      AND recorded_at < $3
    ORDER BY recorded_at;`

	getNotificationSQL = `SELECT
        deal_hash,
        last_price,
        last_notified_at
    FROM notifications
    WHERE deal_hash = $1;`

	upsertNotificationSQL = `INSERT INTO notifications (
        deal_hash,
        last_price,
        last_notified_at
    ) VALUES (
        $1,$2,$3
    )
    ON CONFLICT (deal_hash) DO UPDATE
    SET last_price       = EXCLUDED.last_price,
        last_notified_at = EXCLUDED.last_notified_at;`

	listRecentNotificationsSQL = `SELECT
        deal_hash,
        last_price,
        last_notified_at
    FROM notifications
    ORDER BY last_notified_at DESC
    LIMIT $1;`
)

// PriceHistoryStore defines operations for the append-only price history.
type PriceHistoryStore interface {
	AddPriceSample(ctx context.Context, route string, travelDate time.Time, price decimal.Decimal, currency string) error
	GetBaselineStats(ctx context.Context, route string, travelDate time.Time, daysBack int) (*decimal.Decimal, int, error)
	ListRecentSamples(ctx context.Context, limit int) ([]PriceSample, error)
	ListRouteSamplesBetween(ctx context.Context, route string, from, to time.Time) ([]PriceSample, error)
}

// NotificationLedger defines operations for alert deduplication state.
type NotificationLedger interface {
	GetLastNotification(ctx context.Context, dealHash string) (*NotificationRecord, error)
	RecordNotification(ctx context.Context, dealHash string, price decimal.Decimal) error
	ListRecentNotifications(ctx context.Context, limit int) ([]NotificationRecord, error)
}

// Store aggregates access to price history and the notification ledger. Both
// live in the same database but are logically independent tables.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// AddPriceSample appends one observed price for the route's travel month.
// Rows are never updated or deleted here.
func (s *Store) AddPriceSample(ctx context.Context, route string, travelDate time.Time, price decimal.Decimal, currency string) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	_, execErr := pool.Exec(ctx, insertPriceSampleSQL,
		route,
		TravelMonth(travelDate),
		price.String(),
		currency,
		time.Now().UTC(),
	)
	if execErr != nil {
		return fmt.Errorf("insert price sample: %w", execErr)
	}
	return nil
}

// GetBaselineStats returns the median price and sample count for the route's
// travel month over the trailing daysBack window. A nil median with count 0
// means no matching rows; a failed query returns an error instead, so the
// caller can tell an empty history from an unavailable one.
func (s *Store) GetBaselineStats(ctx context.Context, route string, travelDate time.Time, daysBack int) (*decimal.Decimal, int, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, 0, err
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -daysBack)

	rows, queryErr := pool.Query(ctx, selectBaselinePricesSQL, route, TravelMonth(travelDate), cutoff)
	if queryErr != nil {
		return nil, 0, fmt.Errorf("select baseline prices: %w", queryErr)
	}
	defer rows.Close()

	prices := make([]decimal.Decimal, 0)
	for rows.Next() {
		var priceStr string
		if scanErr := rows.Scan(&priceStr); scanErr != nil {
			return nil, 0, fmt.Errorf("scan baseline price: %w", scanErr)
		}
		price, convErr := decimal.NewFromString(priceStr)
		if convErr != nil {
			return nil, 0, fmt.Errorf("parse baseline price: %w", convErr)
		}
		prices = append(prices, price)
	}
	if rows.Err() != nil {
		return nil, 0, fmt.Errorf("iterate baseline prices: %w", rows.Err())
	}

	if len(prices) == 0 {
		return nil, 0, nil
	}

	median := Median(prices)
	return &median, len(prices), nil
}

// Median computes the standard median: the middle value for odd counts, the
// mean of the two middle values for even counts. The input is not mutated.
func Median(prices []decimal.Decimal) decimal.Decimal {
	sorted := make([]decimal.Decimal, len(prices))
	copy(sorted, prices)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].LessThan(sorted[j])
	})

	n := len(sorted)
	if n%2 == 1 {
		return sorted[n/2]
	}
	mid := n / 2
	return sorted[mid-1].Add(sorted[mid]).Div(decimal.NewFromInt(2))
}

// ListRecentSamples returns the newest samples across all routes.
func (s *Store) ListRecentSamples(ctx context.Context, limit int) ([]PriceSample, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentSamplesSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent samples: %w", queryErr)
	}
	defer rows.Close()

	return collectSamples(rows, limit)
}

// ListRouteSamplesBetween returns a route's samples within a recording window.
func (s *Store) ListRouteSamplesBetween(ctx context.Context, route string, from, to time.Time) ([]PriceSample, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRouteSamplesBetweenSQL, route, from, to)
	if queryErr != nil {
		return nil, fmt.Errorf("list route samples: %w", queryErr)
	}
	defer rows.Close()

	return collectSamples(rows, 0)
}

func collectSamples(rows pgx.Rows, sizeHint int) ([]PriceSample, error) {
	samples := make([]PriceSample, 0, sizeHint)
	for rows.Next() {
		var (
			sample   PriceSample
			priceStr string
		)
		if err := rows.Scan(
			&sample.ID,
			&sample.Route,
			&sample.TravelMonth,
			&priceStr,
			&sample.Currency,
			&sample.RecordedAt,
		); err != nil {
			return nil, fmt.Errorf("scan price sample: %w", err)
		}

		price, convErr := decimal.NewFromString(priceStr)
		if convErr != nil {
			return nil, fmt.Errorf("parse sample price: %w", convErr)
		}
		sample.Price = price
		samples = append(samples, sample)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return samples, nil
}

// GetLastNotification looks up the ledger row for a deal hash. A missing row
// returns (nil, nil).
func (s *Store) GetLastNotification(ctx context.Context, dealHash string) (*NotificationRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	var (
		rec      NotificationRecord
		priceStr string
	)
	scanErr := pool.QueryRow(ctx, getNotificationSQL, dealHash).Scan(
		&rec.DealHash,
		&priceStr,
		&rec.LastNotifiedAt,
	)
	if errors.Is(scanErr, pgx.ErrNoRows) {
		return nil, nil
	}
	if scanErr != nil {
		return nil, fmt.Errorf("get notification: %w", scanErr)
	}

	price, convErr := decimal.NewFromString(priceStr)
	if convErr != nil {
		return nil, fmt.Errorf("parse notification price: %w", convErr)
	}
	rec.LastPrice = price
	return &rec, nil
}

// RecordNotification upserts the ledger row for a deal hash: created on the
// first alert, overwritten with the new price and timestamp on re-alerts. The
// primary key keeps this at one row per hash.
func (s *Store) RecordNotification(ctx context.Context, dealHash string, price decimal.Decimal) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	if _, execErr := pool.Exec(ctx, upsertNotificationSQL, dealHash, price.String(), time.Now().UTC()); execErr != nil {
		return fmt.Errorf("record notification: %w", execErr)
	}
	return nil
}

// ListRecentNotifications returns the newest ledger rows.
func (s *Store) ListRecentNotifications(ctx context.Context, limit int) ([]NotificationRecord, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentNotificationsSQL, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list notifications: %w", queryErr)
	}
	defer rows.Close()

	records := make([]NotificationRecord, 0, limit)
	for rows.Next() {
		var (
			rec      NotificationRecord
			priceStr string
		)
		if err := rows.Scan(&rec.DealHash, &priceStr, &rec.LastNotifiedAt); err != nil {
			return nil, fmt.Errorf("scan notification: %w", err)
		}
		price, convErr := decimal.NewFromString(priceStr)
		if convErr != nil {
			return nil, fmt.Errorf("parse notification price: %w", convErr)
		}
		rec.LastPrice = price
		records = append(records, rec)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return records, nil
}

var _ PriceHistoryStore = (*Store)(nil)
var _ NotificationLedger = (*Store)(nil)
