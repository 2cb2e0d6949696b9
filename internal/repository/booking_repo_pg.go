package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Domenick1991/flightbooking/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PGBookingRepository struct {
	db *pgxpool.Pool
}

func NewBookingRepository(db *pgxpool.Pool) *PGBookingRepository {
	return &PGBookingRepository{db: db}
}

const bookingColumns = `id, user_id, flight_id, pnr, price_paid, status, COALESCE(payment_reference, ''), contact_email, contact_phone, booking_date, cancellation_date, refund_amount`

func scanBooking(row pgx.Row) (*domain.Booking, error) {
	var b domain.Booking
	if err := row.Scan(&b.ID, &b.UserID, &b.FlightID, &b.PNR, &b.PricePaid, &b.Status, &b.PaymentReference, &b.ContactEmail, &b.ContactPhone, &b.BookingDate, &b.CancellationDate, &b.RefundAmount); err != nil {
		return nil, err
	}
	return &b, nil
}

func (r *PGBookingRepository) Create(ctx context.Context, b *domain.Booking) error {
	err := r.db.QueryRow(ctx, `INSERT INTO bookings (user_id, flight_id, pnr, price_paid, status, contact_email, contact_phone, booking_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING id`,
		b.UserID, b.FlightID, b.PNR, b.PricePaid, b.Status, b.ContactEmail, b.ContactPhone, b.BookingDate).
		Scan(&b.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("pnr %s: %w", b.PNR, domain.ErrConflict)
		}
		return mapContention(err)
	}
	return nil
}

func (r *PGBookingRepository) GetByPNR(ctx context.Context, pnr string) (*domain.Booking, error) {
	row := r.db.QueryRow(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE pnr = $1`, pnr)
	b, err := scanBooking(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("booking %s: %w", pnr, domain.ErrNotFound)
		}
		return nil, err
	}
	return b, nil
}

func (r *PGBookingRepository) ListByUser(ctx context.Context, userID int64) ([]domain.Booking, error) {
	return r.list(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE user_id = $1 ORDER BY booking_date DESC`, userID)
}

func (r *PGBookingRepository) List(ctx context.Context, status domain.BookingStatus, limit int) ([]domain.Booking, error) {
	if limit <= 0 {
		limit = 100
	}
	if status == "" {
		return r.list(ctx, `SELECT `+bookingColumns+` FROM bookings ORDER BY booking_date DESC LIMIT $1`, limit)
	}
	return r.list(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE status = $1 ORDER BY booking_date DESC LIMIT $2`, status, limit)
}

func (r *PGBookingRepository) ListStalePending(ctx context.Context, cutoff time.Time) ([]domain.Booking, error) {
	return r.list(ctx, `SELECT `+bookingColumns+` FROM bookings WHERE status = 'PENDING' AND booking_date < $1 ORDER BY booking_date`, cutoff)
}

func (r *PGBookingRepository) list(ctx context.Context, query string, args ...any) ([]domain.Booking, error) {
	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	bookings := make([]domain.Booking, 0)
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		bookings = append(bookings, *b)
	}
	return bookings, rows.Err()
}

func (r *PGBookingRepository) Confirm(ctx context.Context, id int64, paymentRef string) (bool, error) {
	res, err := r.db.Exec(ctx, `UPDATE bookings SET status = 'CONFIRMED', payment_reference = $2
		WHERE id = $1 AND status = 'PENDING'`, id, paymentRef)
	if err != nil {
		return false, mapContention(err)
	}
	return res.RowsAffected() > 0, nil
}

func (r *PGBookingRepository) CancelConfirmed(ctx context.Context, id int64, refund float64, at time.Time) (bool, error) {
	res, err := r.db.Exec(ctx, `UPDATE bookings SET status = 'CANCELLED', refund_amount = $2, cancellation_date = $3
		WHERE id = $1 AND status = 'CONFIRMED'`, id, refund, at)
	if err != nil {
		return false, mapContention(err)
	}
	return res.RowsAffected() > 0, nil
}

func (r *PGBookingRepository) CancelPending(ctx context.Context, id int64, at time.Time) (bool, error) {
	res, err := r.db.Exec(ctx, `UPDATE bookings SET status = 'CANCELLED', cancellation_date = $2
		WHERE id = $1 AND status = 'PENDING'`, id, at)
	if err != nil {
		return false, mapContention(err)
	}
	return res.RowsAffected() > 0, nil
}

// Delete removes the booking row; seat assignments and payments go with
// it via ON DELETE CASCADE.
func (r *PGBookingRepository) Delete(ctx context.Context, id int64) error {
	_, err := r.db.Exec(ctx, `DELETE FROM bookings WHERE id = $1`, id)
	return mapContention(err)
}

func (r *PGBookingRepository) Stats(ctx context.Context) (*BookingStats, error) {
	var stats BookingStats
	err := r.db.QueryRow(ctx, `SELECT COUNT(*), COALESCE(SUM(price_paid), 0)
		FROM bookings WHERE status = 'CONFIRMED'`).
		Scan(&stats.ConfirmedBookings, &stats.TotalRevenue)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

var _ BookingRepository = (*PGBookingRepository)(nil)
