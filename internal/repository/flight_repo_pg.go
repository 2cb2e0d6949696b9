package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Domenick1991/flightbooking/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

const flightColumns = `id, flight_number, airline, from_airport, to_airport, departure_time, arrival_time, base_price, total_seats, seats_remaining, demand_factor, status, created_at, updated_at`

type PGFlightRepository struct {
	db *pgxpool.Pool
}

func NewFlightRepository(db *pgxpool.Pool) *PGFlightRepository {
	return &PGFlightRepository{db: db}
}

func scanFlight(row pgx.Row) (*domain.Flight, error) {
	var f domain.Flight
	if err := row.Scan(&f.ID, &f.FlightNumber, &f.Airline, &f.FromAirport, &f.ToAirport, &f.DepartureTime, &f.ArrivalTime, &f.BasePrice, &f.TotalSeats, &f.SeatsRemaining, &f.DemandFactor, &f.Status, &f.CreatedAt, &f.UpdatedAt); err != nil {
		return nil, err
	}
	return &f, nil
}

func (r *PGFlightRepository) Search(ctx context.Context, q FlightQuery, now time.Time) ([]domain.Flight, error) {
	query := `SELECT ` + flightColumns + ` FROM flights WHERE status = 'SCHEDULED' AND seats_remaining > 0 AND departure_time > $1`
	args := []any{now}

	if q.Origin != "" {
		args = append(args, strings.ToUpper(q.Origin))
		query += fmt.Sprintf(" AND from_airport = $%d", len(args))
	}
	if q.Destination != "" {
		args = append(args, strings.ToUpper(q.Destination))
		query += fmt.Sprintf(" AND to_airport = $%d", len(args))
	}
	if !q.Date.IsZero() {
		args = append(args, q.Date)
		query += fmt.Sprintf(" AND departure_time::date = $%d::date", len(args))
	}
	query += " ORDER BY departure_time"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	flights := make([]domain.Flight, 0)
	for rows.Next() {
		f, err := scanFlight(rows)
		if err != nil {
			return nil, err
		}
		flights = append(flights, *f)
	}
	return flights, rows.Err()
}

func (r *PGFlightRepository) GetByID(ctx context.Context, id int64) (*domain.Flight, error) {
	row := r.db.QueryRow(ctx, `SELECT `+flightColumns+` FROM flights WHERE id = $1`, id)
	f, err := scanFlight(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("flight %d: %w", id, domain.ErrNotFound)
		}
		return nil, err
	}
	return f, nil
}

func (r *PGFlightRepository) Create(ctx context.Context, f *domain.Flight) error {
	err := r.db.QueryRow(ctx, `INSERT INTO flights (flight_number, airline, from_airport, to_airport, departure_time, arrival_time, base_price, total_seats, seats_remaining, demand_factor, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $8, 1.0, 'SCHEDULED')
		RETURNING id, seats_remaining, demand_factor, status, created_at, updated_at`,
		f.FlightNumber, f.Airline, f.FromAirport, f.ToAirport, f.DepartureTime, f.ArrivalTime, f.BasePrice, f.TotalSeats).
		Scan(&f.ID, &f.SeatsRemaining, &f.DemandFactor, &f.Status, &f.CreatedAt, &f.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("flight number %s: %w", f.FlightNumber, domain.ErrConflict)
		}
		return err
	}
	return nil
}

func (r *PGFlightRepository) ApplyUpdate(ctx context.Context, id int64, upd domain.FlightUpdate) error {
	if upd.Empty() {
		return fmt.Errorf("no fields to update: %w", domain.ErrValidation)
	}

	set := make([]string, 0, 6)
	args := []any{id}
	add := func(col string, v any) {
		args = append(args, v)
		set = append(set, fmt.Sprintf("%s = $%d", col, len(args)))
	}

	if upd.Airline != nil {
		add("airline", *upd.Airline)
	}
	if upd.DepartureTime != nil {
		add("departure_time", *upd.DepartureTime)
	}
	if upd.ArrivalTime != nil {
		add("arrival_time", *upd.ArrivalTime)
	}
	if upd.BasePrice != nil {
		add("base_price", *upd.BasePrice)
	}
	if upd.TotalSeats != nil {
		add("total_seats", *upd.TotalSeats)
	}
	if upd.Status != nil {
		add("status", string(*upd.Status))
	}

	query := fmt.Sprintf(`UPDATE flights SET %s, updated_at = now() WHERE id = $1`, strings.Join(set, ", "))
	res, err := r.db.Exec(ctx, query, args...)
	if err != nil {
		if isCheckViolation(err) {
			return fmt.Errorf("update violates flight constraints: %w", domain.ErrValidation)
		}
		return err
	}
	if res.RowsAffected() == 0 {
		return fmt.Errorf("flight %d: %w", id, domain.ErrNotFound)
	}
	return nil
}

func (r *PGFlightRepository) ListScheduledIDs(ctx context.Context) ([]int64, error) {
	rows, err := r.db.Query(ctx, `SELECT id FROM flights WHERE status = 'SCHEDULED'`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (r *PGFlightRepository) SetDemandFactor(ctx context.Context, id int64, factor float64) error {
	_, err := r.db.Exec(ctx, `UPDATE flights SET demand_factor = $2, updated_at = now() WHERE id = $1`, id, factor)
	return err
}

func (r *PGFlightRepository) CountScheduled(ctx context.Context) (int, error) {
	var n int
	err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM flights WHERE status = 'SCHEDULED'`).Scan(&n)
	return n, err
}

var _ FlightRepository = (*PGFlightRepository)(nil)
