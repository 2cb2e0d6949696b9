package repository

import (
	"context"
	"errors"
	"fmt"

	"github.com/Domenick1991/flightbooking/internal/domain"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

type PGPaymentRepository struct {
	db *pgxpool.Pool
}

func NewPaymentRepository(db *pgxpool.Pool) *PGPaymentRepository {
	return &PGPaymentRepository{db: db}
}

func (r *PGPaymentRepository) Create(ctx context.Context, p *domain.Payment) error {
	err := r.db.QueryRow(ctx, `INSERT INTO payments (booking_id, reference, method, amount, status, paid_at)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		p.BookingID, p.Reference, p.Method, p.Amount, p.Status, p.PaidAt).
		Scan(&p.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("payment reference %s: %w", p.Reference, domain.ErrConflict)
		}
		return mapContention(err)
	}
	return nil
}

func (r *PGPaymentRepository) GetByBooking(ctx context.Context, bookingID int64) (*domain.Payment, error) {
	var p domain.Payment
	err := r.db.QueryRow(ctx, `SELECT id, booking_id, reference, method, amount, status, paid_at
		FROM payments WHERE booking_id = $1 ORDER BY paid_at DESC LIMIT 1`, bookingID).
		Scan(&p.ID, &p.BookingID, &p.Reference, &p.Method, &p.Amount, &p.Status, &p.PaidAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("payment for booking %d: %w", bookingID, domain.ErrNotFound)
		}
		return nil, err
	}
	return &p, nil
}

func (r *PGPaymentRepository) MarkRefunded(ctx context.Context, bookingID int64) error {
	_, err := r.db.Exec(ctx, `UPDATE payments SET status = 'REFUNDED' WHERE booking_id = $1 AND status = 'SUCCESS'`, bookingID)
	return mapContention(err)
}

var _ PaymentRepository = (*PGPaymentRepository)(nil)

type PGCancellationArchive struct {
	db *pgxpool.Pool
}

func NewCancellationArchive(db *pgxpool.Pool) *PGCancellationArchive {
	return &PGCancellationArchive{db: db}
}

func (r *PGCancellationArchive) Add(ctx context.Context, rec *domain.CancellationRecord) error {
	err := r.db.QueryRow(ctx, `INSERT INTO cancelled_bookings (pnr, user_id, flight_id, price_paid, refund_amount, reason, cancelled_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`,
		rec.PNR, rec.UserID, rec.FlightID, rec.PricePaid, rec.RefundAmount, rec.Reason, rec.CancelledAt).
		Scan(&rec.ID)
	return mapContention(err)
}

var _ CancellationArchive = (*PGCancellationArchive)(nil)
