// Package repository defines the storage ports of the booking engine
// and their PostgreSQL implementations. An in-memory implementation
// backs the service tests.
package repository

import (
	"context"
	"time"

	"github.com/Domenick1991/flightbooking/internal/domain"
)

// Sort orders for the public flight search.
const (
	SortByDeparture = "departure"
	SortByPrice     = "price"
)

// FlightQuery filters the public flight search. Zero values mean "no
// filter"; an empty Sort means SortByDeparture. Price ordering is
// applied by the service layer, after dynamic prices are computed.
type FlightQuery struct {
	Origin      string
	Destination string
	Date        time.Time
	Sort        string
}

type FlightRepository interface {
	Search(ctx context.Context, q FlightQuery, now time.Time) ([]domain.Flight, error)
	GetByID(ctx context.Context, id int64) (*domain.Flight, error)
	Create(ctx context.Context, flight *domain.Flight) error
	// ApplyUpdate patches the permitted fields only; it never touches
	// seats_remaining or demand_factor.
	ApplyUpdate(ctx context.Context, id int64, upd domain.FlightUpdate) error
	ListScheduledIDs(ctx context.Context) ([]int64, error)
	SetDemandFactor(ctx context.Context, id int64, factor float64) error
	CountScheduled(ctx context.Context) (int, error)
}

// InventorySnapshot is the flight counter state returned by inventory
// operations, taken after the change was applied.
type InventorySnapshot struct {
	FlightID       int64
	TotalSeats     int
	SeatsRemaining int
	DemandFactor   float64
}

// InventoryStore is the sole mutator of a flight's seat counters. Both
// operations are atomic with respect to concurrent callers on the same
// flight, recompute the demand factor from the new remaining share and
// append a price-history entry.
type InventoryStore interface {
	// Reserve decrements seats_remaining by n. Fails with
	// domain.ErrCapacity when fewer than n seats remain.
	Reserve(ctx context.Context, flightID int64, n int) (*InventorySnapshot, error)
	// Release increments seats_remaining by n, clamped to total_seats.
	// n == 0 is a no-op.
	Release(ctx context.Context, flightID int64, n int) (*InventorySnapshot, error)
	History(ctx context.Context, flightID int64, limit int) ([]domain.PriceHistoryEntry, error)
}

// SeatMapRepository owns seat-number assignments. A live (flight, seat)
// pair is unique; ReleaseAll returns how many assignments it removed so
// the caller can release the matching inventory in lock-step.
type SeatMapRepository interface {
	Assign(ctx context.Context, a *domain.SeatAssignment) error
	ReleaseAll(ctx context.Context, bookingID int64) (int, error)
	ListByFlight(ctx context.Context, flightID int64) ([]domain.SeatAssignment, error)
	ListByBooking(ctx context.Context, bookingID int64) ([]domain.SeatAssignment, error)
}

type BookingStats struct {
	ConfirmedBookings int
	TotalRevenue      float64
}

type BookingRepository interface {
	Create(ctx context.Context, b *domain.Booking) error
	GetByPNR(ctx context.Context, pnr string) (*domain.Booking, error)
	ListByUser(ctx context.Context, userID int64) ([]domain.Booking, error)
	List(ctx context.Context, status domain.BookingStatus, limit int) ([]domain.Booking, error)
	// ListStalePending returns PENDING bookings created before cutoff,
	// for the expiry sweep.
	ListStalePending(ctx context.Context, cutoff time.Time) ([]domain.Booking, error)
	// Confirm transitions PENDING -> CONFIRMED and stores the payment
	// reference. Returns false when the booking is no longer PENDING.
	Confirm(ctx context.Context, id int64, paymentRef string) (bool, error)
	// CancelConfirmed transitions CONFIRMED -> CANCELLED with the
	// refund amount. Returns false when the booking is not CONFIRMED
	// at the moment of the update.
	CancelConfirmed(ctx context.Context, id int64, refund float64, at time.Time) (bool, error)
	// CancelPending transitions PENDING -> CANCELLED. Returns false
	// when the booking is no longer PENDING; the reaper treats that as
	// a no-op, never an error.
	CancelPending(ctx context.Context, id int64, at time.Time) (bool, error)
	// Delete removes a booking and its dependent rows; used to unwind
	// an aborted checkout attempt.
	Delete(ctx context.Context, id int64) error
	Stats(ctx context.Context) (*BookingStats, error)
}

type PaymentRepository interface {
	Create(ctx context.Context, p *domain.Payment) error
	GetByBooking(ctx context.Context, bookingID int64) (*domain.Payment, error)
	MarkRefunded(ctx context.Context, bookingID int64) error
}

type CancellationArchive interface {
	Add(ctx context.Context, rec *domain.CancellationRecord) error
}
