package repository

import (
	"context"
	"fmt"

	"github.com/Domenick1991/flightbooking/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PGSeatMapRepository struct {
	db *pgxpool.Pool
}

func NewSeatMapRepository(db *pgxpool.Pool) *PGSeatMapRepository {
	return &PGSeatMapRepository{db: db}
}

const seatColumns = `id, booking_id, flight_id, seat_number, seat_category, full_name, date_of_birth, passport_number, category`

func scanSeat(row pgx.Row) (*domain.SeatAssignment, error) {
	var a domain.SeatAssignment
	if err := row.Scan(&a.ID, &a.BookingID, &a.FlightID, &a.SeatNumber, &a.SeatCategory, &a.FullName, &a.DateOfBirth, &a.PassportNumber, &a.Category); err != nil {
		return nil, err
	}
	return &a, nil
}

// Assign claims a (flight, seat) pair for a booking. The unique index
// on (flight_id, seat_number) arbitrates concurrent claims; the loser
// gets domain.ErrConflict.
func (r *PGSeatMapRepository) Assign(ctx context.Context, a *domain.SeatAssignment) error {
	err := r.db.QueryRow(ctx, `INSERT INTO seat_assignments (booking_id, flight_id, seat_number, seat_category, full_name, date_of_birth, passport_number, category)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		a.BookingID, a.FlightID, a.SeatNumber, a.SeatCategory, a.FullName, a.DateOfBirth, a.PassportNumber, a.Category).
		Scan(&a.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("seat %s on flight %d is taken: %w", a.SeatNumber, a.FlightID, domain.ErrConflict)
		}
		return mapContention(err)
	}
	return nil
}

func (r *PGSeatMapRepository) ReleaseAll(ctx context.Context, bookingID int64) (int, error) {
	res, err := r.db.Exec(ctx, `DELETE FROM seat_assignments WHERE booking_id = $1`, bookingID)
	if err != nil {
		return 0, mapContention(err)
	}
	return int(res.RowsAffected()), nil
}

func (r *PGSeatMapRepository) ListByFlight(ctx context.Context, flightID int64) ([]domain.SeatAssignment, error) {
	return r.list(ctx, `SELECT `+seatColumns+` FROM seat_assignments WHERE flight_id = $1 ORDER BY seat_number`, flightID)
}

func (r *PGSeatMapRepository) ListByBooking(ctx context.Context, bookingID int64) ([]domain.SeatAssignment, error) {
	return r.list(ctx, `SELECT `+seatColumns+` FROM seat_assignments WHERE booking_id = $1 ORDER BY id`, bookingID)
}

func (r *PGSeatMapRepository) list(ctx context.Context, query string, arg any) ([]domain.SeatAssignment, error) {
	rows, err := r.db.Query(ctx, query, arg)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	seats := make([]domain.SeatAssignment, 0)
	for rows.Next() {
		a, err := scanSeat(rows)
		if err != nil {
			return nil, err
		}
		seats = append(seats, *a)
	}
	return seats, rows.Err()
}

var _ SeatMapRepository = (*PGSeatMapRepository)(nil)
