package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/flightbooking/internal/domain"
	"github.com/Domenick1991/flightbooking/internal/pricing"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PGInventoryStore mutates a flight's seat counters with a single
// conditional UPDATE per operation, so concurrent reservations on the
// same flight serialize on the row and can never jointly oversell it.
type PGInventoryStore struct {
	db *pgxpool.Pool
}

func NewInventoryStore(db *pgxpool.Pool) *PGInventoryStore {
	return &PGInventoryStore{db: db}
}

// demandFactorCase mirrors pricing.DemandFactorFor for in-database
// recomputation from the post-change seat share.
const demandFactorCase = `CASE
	WHEN %[1]s::float / total_seats <= 0.05 THEN 1.6
	WHEN %[1]s::float / total_seats <= 0.10 THEN 1.4
	WHEN %[1]s::float / total_seats <= 0.20 THEN 1.2
	ELSE 1.0
END`

func (s *PGInventoryStore) Reserve(ctx context.Context, flightID int64, n int) (*InventorySnapshot, error) {
	if n <= 0 {
		return nil, fmt.Errorf("reserve count must be positive: %w", domain.ErrValidation)
	}

	query := fmt.Sprintf(`UPDATE flights
		SET seats_remaining = seats_remaining - $2,
		    demand_factor = %s,
		    updated_at = now()
		WHERE id = $1 AND seats_remaining >= $2
		RETURNING total_seats, seats_remaining, demand_factor, base_price, departure_time`,
		fmt.Sprintf(demandFactorCase, "(seats_remaining - $2)"))

	return s.apply(ctx, flightID, query, flightID, n)
}

func (s *PGInventoryStore) Release(ctx context.Context, flightID int64, n int) (*InventorySnapshot, error) {
	if n < 0 {
		return nil, fmt.Errorf("release count must not be negative: %w", domain.ErrValidation)
	}
	if n == 0 {
		f, err := s.snapshot(ctx, flightID)
		return f, err
	}

	query := fmt.Sprintf(`UPDATE flights
		SET seats_remaining = LEAST(seats_remaining + $2, total_seats),
		    demand_factor = %s,
		    updated_at = now()
		WHERE id = $1
		RETURNING total_seats, seats_remaining, demand_factor, base_price, departure_time`,
		fmt.Sprintf(demandFactorCase, "LEAST(seats_remaining + $2, total_seats)"))

	return s.apply(ctx, flightID, query, flightID, n)
}

// apply runs the counter update and the history append in one
// transaction so readers never observe one without the other.
func (s *PGInventoryStore) apply(ctx context.Context, flightID int64, query string, args ...any) (*InventorySnapshot, error) {
	tx, err := s.db.BeginTx(ctx, pgx.TxOptions{})
	if err != nil {
		return nil, mapContention(err)
	}
	defer tx.Rollback(ctx)

	var (
		snap      InventorySnapshot
		basePrice float64
		departure time.Time
	)
	snap.FlightID = flightID
	err = tx.QueryRow(ctx, query, args...).
		Scan(&snap.TotalSeats, &snap.SeatsRemaining, &snap.DemandFactor, &basePrice, &departure)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			// Either the flight does not exist or the capacity guard
			// rejected the decrement; disambiguate for the caller.
			if _, snapErr := s.snapshot(ctx, flightID); snapErr != nil {
				return nil, snapErr
			}
			return nil, fmt.Errorf("flight %d: %w", flightID, domain.ErrCapacity)
		}
		return nil, mapContention(err)
	}

	now := time.Now()
	recorded := pricing.Quote(basePrice, snap.SeatsRemaining, snap.TotalSeats, snap.DemandFactor, departure, now)
	_, err = tx.Exec(ctx, `INSERT INTO price_history (flight_id, recorded_price, demand_factor, seats_remaining, recorded_at)
		VALUES ($1, $2, $3, $4, $5)`, flightID, recorded, snap.DemandFactor, snap.SeatsRemaining, now)
	if err != nil {
		return nil, mapContention(err)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, mapContention(err)
	}
	return &snap, nil
}

func (s *PGInventoryStore) snapshot(ctx context.Context, flightID int64) (*InventorySnapshot, error) {
	var snap InventorySnapshot
	snap.FlightID = flightID
	err := s.db.QueryRow(ctx, `SELECT total_seats, seats_remaining, demand_factor FROM flights WHERE id = $1`, flightID).
		Scan(&snap.TotalSeats, &snap.SeatsRemaining, &snap.DemandFactor)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("flight %d: %w", flightID, domain.ErrNotFound)
		}
		return nil, err
	}
	return &snap, nil
}

func (s *PGInventoryStore) History(ctx context.Context, flightID int64, limit int) ([]domain.PriceHistoryEntry, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := s.db.Query(ctx, `SELECT id, flight_id, recorded_price, demand_factor, seats_remaining, recorded_at
		FROM price_history WHERE flight_id = $1 ORDER BY recorded_at DESC LIMIT $2`, flightID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var entries []domain.PriceHistoryEntry
	for rows.Next() {
		var e domain.PriceHistoryEntry
		if err := rows.Scan(&e.ID, &e.FlightID, &e.RecordedPrice, &e.DemandFactor, &e.SeatsRemaining, &e.RecordedAt); err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

var _ InventoryStore = (*PGInventoryStore)(nil)
