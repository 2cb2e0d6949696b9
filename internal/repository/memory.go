package repository

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/Domenick1991/flightbooking/internal/domain"
	"github.com/Domenick1991/flightbooking/internal/pricing"
)

// MemoryStore is an in-memory implementation of every storage port,
// used by service and worker tests. All methods are safe for concurrent
// use; a single mutex stands in for the row-level atomicity the
// PostgreSQL implementations get from conditional UPDATEs.
//
// The Create-bearing ports share a method name, so they are exposed
// through the FlightRepo, BookingRepo and PaymentRepo accessors.
type MemoryStore struct {
	mu sync.Mutex

	Now func() time.Time

	flights  map[int64]*domain.Flight
	bookings map[int64]*domain.Booking
	seats    map[int64]*domain.SeatAssignment
	payments map[int64]*domain.Payment
	history  map[int64][]domain.PriceHistoryEntry
	archive  []domain.CancellationRecord

	nextFlightID  int64
	nextBookingID int64
	nextSeatID    int64
	nextPaymentID int64
	nextHistoryID int64
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		Now:      time.Now,
		flights:  make(map[int64]*domain.Flight),
		bookings: make(map[int64]*domain.Booking),
		seats:    make(map[int64]*domain.SeatAssignment),
		payments: make(map[int64]*domain.Payment),
		history:  make(map[int64][]domain.PriceHistoryEntry),
	}
}

var (
	_ InventoryStore      = (*MemoryStore)(nil)
	_ SeatMapRepository   = (*MemoryStore)(nil)
	_ CancellationArchive = (*MemoryStore)(nil)
	_ FlightRepository    = memoryFlightRepo{}
	_ BookingRepository   = memoryBookingRepo{}
	_ PaymentRepository   = memoryPaymentRepo{}
)

func (m *MemoryStore) FlightRepo() FlightRepository   { return memoryFlightRepo{m} }
func (m *MemoryStore) BookingRepo() BookingRepository { return memoryBookingRepo{m} }
func (m *MemoryStore) PaymentRepo() PaymentRepository { return memoryPaymentRepo{m} }

type memoryFlightRepo struct{ *MemoryStore }
type memoryBookingRepo struct{ *MemoryStore }
type memoryPaymentRepo struct{ *MemoryStore }

func (r memoryFlightRepo) Create(_ context.Context, f *domain.Flight) error {
	return r.createFlight(f)
}

func (r memoryBookingRepo) Create(_ context.Context, b *domain.Booking) error {
	return r.createBooking(b)
}

func (r memoryPaymentRepo) Create(_ context.Context, p *domain.Payment) error {
	return r.createPayment(p)
}

// --- FlightRepository ---

func (m *MemoryStore) Search(_ context.Context, q FlightQuery, now time.Time) ([]domain.Flight, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.Flight, 0)
	for _, f := range m.flights {
		if f.Status != domain.FlightStatusScheduled || f.SeatsRemaining <= 0 || !f.DepartureTime.After(now) {
			continue
		}
		if q.Origin != "" && f.FromAirport != strings.ToUpper(q.Origin) {
			continue
		}
		if q.Destination != "" && f.ToAirport != strings.ToUpper(q.Destination) {
			continue
		}
		if !q.Date.IsZero() {
			y1, m1, d1 := q.Date.Date()
			y2, m2, d2 := f.DepartureTime.Date()
			if y1 != y2 || m1 != m2 || d1 != d2 {
				continue
			}
		}
		out = append(out, *f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].DepartureTime.Before(out[j].DepartureTime) })
	return out, nil
}

func (m *MemoryStore) GetByID(_ context.Context, id int64) (*domain.Flight, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.flights[id]
	if !ok {
		return nil, fmt.Errorf("flight %d: %w", id, domain.ErrNotFound)
	}
	cp := *f
	return &cp, nil
}

func (m *MemoryStore) createFlight(f *domain.Flight) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.flights {
		if existing.FlightNumber == f.FlightNumber {
			return fmt.Errorf("flight number %s: %w", f.FlightNumber, domain.ErrConflict)
		}
	}
	m.nextFlightID++
	f.ID = m.nextFlightID
	f.SeatsRemaining = f.TotalSeats
	f.DemandFactor = 1.0
	f.Status = domain.FlightStatusScheduled
	now := m.Now()
	f.CreatedAt = now
	f.UpdatedAt = now
	cp := *f
	m.flights[f.ID] = &cp
	return nil
}

func (m *MemoryStore) ApplyUpdate(_ context.Context, id int64, upd domain.FlightUpdate) error {
	if upd.Empty() {
		return fmt.Errorf("no fields to update: %w", domain.ErrValidation)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.flights[id]
	if !ok {
		return fmt.Errorf("flight %d: %w", id, domain.ErrNotFound)
	}
	if upd.Airline != nil {
		f.Airline = *upd.Airline
	}
	if upd.DepartureTime != nil {
		f.DepartureTime = *upd.DepartureTime
	}
	if upd.ArrivalTime != nil {
		f.ArrivalTime = *upd.ArrivalTime
	}
	if upd.BasePrice != nil {
		f.BasePrice = *upd.BasePrice
	}
	if upd.TotalSeats != nil {
		f.TotalSeats = *upd.TotalSeats
	}
	if upd.Status != nil {
		f.Status = *upd.Status
	}
	f.UpdatedAt = m.Now()
	return nil
}

func (m *MemoryStore) ListScheduledIDs(_ context.Context) ([]int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var ids []int64
	for id, f := range m.flights {
		if f.Status == domain.FlightStatusScheduled {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids, nil
}

func (m *MemoryStore) SetDemandFactor(_ context.Context, id int64, factor float64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if f, ok := m.flights[id]; ok {
		f.DemandFactor = factor
		f.UpdatedAt = m.Now()
	}
	return nil
}

func (m *MemoryStore) CountScheduled(_ context.Context) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, f := range m.flights {
		if f.Status == domain.FlightStatusScheduled {
			n++
		}
	}
	return n, nil
}

// --- InventoryStore ---

func (m *MemoryStore) Reserve(_ context.Context, flightID int64, n int) (*InventorySnapshot, error) {
	if n <= 0 {
		return nil, fmt.Errorf("reserve count must be positive: %w", domain.ErrValidation)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.flights[flightID]
	if !ok {
		return nil, fmt.Errorf("flight %d: %w", flightID, domain.ErrNotFound)
	}
	if f.SeatsRemaining < n {
		return nil, fmt.Errorf("flight %d: %w", flightID, domain.ErrCapacity)
	}
	f.SeatsRemaining -= n
	return m.afterInventoryChange(f), nil
}

func (m *MemoryStore) Release(_ context.Context, flightID int64, n int) (*InventorySnapshot, error) {
	if n < 0 {
		return nil, fmt.Errorf("release count must not be negative: %w", domain.ErrValidation)
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	f, ok := m.flights[flightID]
	if !ok {
		return nil, fmt.Errorf("flight %d: %w", flightID, domain.ErrNotFound)
	}
	if n == 0 {
		return &InventorySnapshot{FlightID: f.ID, TotalSeats: f.TotalSeats, SeatsRemaining: f.SeatsRemaining, DemandFactor: f.DemandFactor}, nil
	}
	f.SeatsRemaining += n
	if f.SeatsRemaining > f.TotalSeats {
		f.SeatsRemaining = f.TotalSeats
	}
	return m.afterInventoryChange(f), nil
}

// afterInventoryChange recomputes the demand factor and appends a
// price-history entry. Callers hold m.mu.
func (m *MemoryStore) afterInventoryChange(f *domain.Flight) *InventorySnapshot {
	now := m.Now()
	f.DemandFactor = pricing.DemandFactorFor(f.SeatsRemaining, f.TotalSeats)
	f.UpdatedAt = now

	m.nextHistoryID++
	m.history[f.ID] = append(m.history[f.ID], domain.PriceHistoryEntry{
		ID:             m.nextHistoryID,
		FlightID:       f.ID,
		RecordedPrice:  pricing.Quote(f.BasePrice, f.SeatsRemaining, f.TotalSeats, f.DemandFactor, f.DepartureTime, now),
		DemandFactor:   f.DemandFactor,
		SeatsRemaining: f.SeatsRemaining,
		RecordedAt:     now,
	})
	return &InventorySnapshot{FlightID: f.ID, TotalSeats: f.TotalSeats, SeatsRemaining: f.SeatsRemaining, DemandFactor: f.DemandFactor}
}

func (m *MemoryStore) History(_ context.Context, flightID int64, limit int) ([]domain.PriceHistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries := m.history[flightID]
	out := make([]domain.PriceHistoryEntry, 0, len(entries))
	for i := len(entries) - 1; i >= 0; i-- {
		out = append(out, entries[i])
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}

// --- SeatMapRepository ---

func (m *MemoryStore) Assign(_ context.Context, a *domain.SeatAssignment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.seats {
		if existing.FlightID == a.FlightID && existing.SeatNumber == a.SeatNumber {
			return fmt.Errorf("seat %s on flight %d is taken: %w", a.SeatNumber, a.FlightID, domain.ErrConflict)
		}
	}
	m.nextSeatID++
	a.ID = m.nextSeatID
	cp := *a
	m.seats[a.ID] = &cp
	return nil
}

func (m *MemoryStore) ReleaseAll(_ context.Context, bookingID int64) (int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for id, a := range m.seats {
		if a.BookingID == bookingID {
			delete(m.seats, id)
			n++
		}
	}
	return n, nil
}

func (m *MemoryStore) ListByFlight(_ context.Context, flightID int64) ([]domain.SeatAssignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.SeatAssignment, 0)
	for _, a := range m.seats {
		if a.FlightID == flightID {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SeatNumber < out[j].SeatNumber })
	return out, nil
}

func (m *MemoryStore) ListByBooking(_ context.Context, bookingID int64) ([]domain.SeatAssignment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.SeatAssignment, 0)
	for _, a := range m.seats {
		if a.BookingID == bookingID {
			out = append(out, *a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// --- BookingRepository ---

func (m *MemoryStore) createBooking(b *domain.Booking) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, existing := range m.bookings {
		if existing.PNR == b.PNR {
			return fmt.Errorf("pnr %s: %w", b.PNR, domain.ErrConflict)
		}
	}
	m.nextBookingID++
	b.ID = m.nextBookingID
	cp := *b
	m.bookings[b.ID] = &cp
	return nil
}

func (m *MemoryStore) GetByPNR(_ context.Context, pnr string) (*domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, b := range m.bookings {
		if b.PNR == pnr {
			cp := *b
			return &cp, nil
		}
	}
	return nil, fmt.Errorf("booking %s: %w", pnr, domain.ErrNotFound)
}

func (m *MemoryStore) ListByUser(_ context.Context, userID int64) ([]domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.Booking, 0)
	for _, b := range m.bookings {
		if b.UserID == userID {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BookingDate.After(out[j].BookingDate) })
	return out, nil
}

func (m *MemoryStore) List(_ context.Context, status domain.BookingStatus, limit int) ([]domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.Booking, 0)
	for _, b := range m.bookings {
		if status != "" && b.Status != status {
			continue
		}
		out = append(out, *b)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BookingDate.After(out[j].BookingDate) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) ListStalePending(_ context.Context, cutoff time.Time) ([]domain.Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.Booking, 0)
	for _, b := range m.bookings {
		if b.Status == domain.BookingStatusPending && b.BookingDate.Before(cutoff) {
			out = append(out, *b)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].BookingDate.Before(out[j].BookingDate) })
	return out, nil
}

func (m *MemoryStore) Confirm(_ context.Context, id int64, paymentRef string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bookings[id]
	if !ok || b.Status != domain.BookingStatusPending {
		return false, nil
	}
	b.Status = domain.BookingStatusConfirmed
	b.PaymentReference = paymentRef
	return true, nil
}

func (m *MemoryStore) CancelConfirmed(_ context.Context, id int64, refund float64, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bookings[id]
	if !ok || b.Status != domain.BookingStatusConfirmed {
		return false, nil
	}
	b.Status = domain.BookingStatusCancelled
	b.RefundAmount = &refund
	t := at
	b.CancellationDate = &t
	return true, nil
}

func (m *MemoryStore) CancelPending(_ context.Context, id int64, at time.Time) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	b, ok := m.bookings[id]
	if !ok || b.Status != domain.BookingStatusPending {
		return false, nil
	}
	b.Status = domain.BookingStatusCancelled
	t := at
	b.CancellationDate = &t
	return true, nil
}

func (m *MemoryStore) Delete(_ context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.bookings, id)
	for seatID, a := range m.seats {
		if a.BookingID == id {
			delete(m.seats, seatID)
		}
	}
	for payID, p := range m.payments {
		if p.BookingID == id {
			delete(m.payments, payID)
		}
	}
	return nil
}

func (m *MemoryStore) Stats(_ context.Context) (*BookingStats, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var stats BookingStats
	for _, b := range m.bookings {
		if b.Status == domain.BookingStatusConfirmed {
			stats.ConfirmedBookings++
			stats.TotalRevenue = pricing.Round2(stats.TotalRevenue + b.PricePaid)
		}
	}
	return &stats, nil
}

// --- PaymentRepository ---

func (m *MemoryStore) createPayment(p *domain.Payment) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextPaymentID++
	p.ID = m.nextPaymentID
	cp := *p
	m.payments[p.ID] = &cp
	return nil
}

func (m *MemoryStore) GetByBooking(_ context.Context, bookingID int64) (*domain.Payment, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var latest *domain.Payment
	for _, p := range m.payments {
		if p.BookingID != bookingID {
			continue
		}
		if latest == nil || p.PaidAt.After(latest.PaidAt) || (p.PaidAt.Equal(latest.PaidAt) && p.ID > latest.ID) {
			latest = p
		}
	}
	if latest == nil {
		return nil, fmt.Errorf("payment for booking %d: %w", bookingID, domain.ErrNotFound)
	}
	cp := *latest
	return &cp, nil
}

func (m *MemoryStore) MarkRefunded(_ context.Context, bookingID int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	for _, p := range m.payments {
		if p.BookingID == bookingID && p.Status == domain.PaymentStatusSuccess {
			p.Status = domain.PaymentStatusRefunded
		}
	}
	return nil
}

// --- CancellationArchive ---

func (m *MemoryStore) Add(_ context.Context, rec *domain.CancellationRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec.ID = int64(len(m.archive) + 1)
	m.archive = append(m.archive, *rec)
	return nil
}

// ArchivedCancellations returns a copy of the archive, for tests.
func (m *MemoryStore) ArchivedCancellations() []domain.CancellationRecord {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]domain.CancellationRecord, len(m.archive))
	copy(out, m.archive)
	return out
}
