// Package booking orchestrates checkout as a compensating-action
// sequence: booking row, seat assignments, inventory reservation and
// payment either all commit or are all unwound.
package booking

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/Domenick1991/flightbooking/internal/domain"
	"github.com/Domenick1991/flightbooking/internal/kafka"
	"github.com/Domenick1991/flightbooking/internal/payment"
	"github.com/Domenick1991/flightbooking/internal/pricing"
	"github.com/Domenick1991/flightbooking/internal/repository"
)

type BookingUseCase interface {
	Checkout(ctx context.Context, principal domain.Principal, input CheckoutInput) (*CheckoutResult, error)
	GetByPNR(ctx context.Context, principal domain.Principal, pnr string) (*BookingDetail, error)
	History(ctx context.Context, principal domain.Principal, userID int64) ([]domain.Booking, error)
	ListBookings(ctx context.Context, principal domain.Principal, status domain.BookingStatus, limit int) ([]domain.Booking, error)
	Stats(ctx context.Context, principal domain.Principal) (*AdminStats, error)
	ExpirePending(ctx context.Context) (int, error)
}

// SeatLocker is the advisory-lock slice of the Redis wrapper. A nil
// locker disables the fast path; the database stays authoritative.
type SeatLocker interface {
	AcquireSeatLock(ctx context.Context, flightID int64, seat string, ttl time.Duration) (bool, error)
	ReleaseSeatLock(ctx context.Context, flightID int64, seat string) error
}

// Producer is the publishing slice of the Kafka wrapper. Events are
// fire-and-forget with bounded redelivery attempts inside the wrapper.
type Producer interface {
	PublishWithRetry(ctx context.Context, topic, key string, value interface{}, maxRetries int) error
}

type PassengerInput struct {
	FullName       string                   `json:"full_name"`
	DateOfBirth    string                   `json:"date_of_birth"`
	PassportNumber string                   `json:"passport_number"`
	SeatNumber     string                   `json:"seat_number"`
	SeatCategory   domain.SeatCategory      `json:"seat_category"`
	Category       domain.PassengerCategory `json:"category"`
}

type CheckoutInput struct {
	FlightID      int64                `json:"flight_id"`
	Passengers    []PassengerInput     `json:"passengers"`
	ContactEmail  string               `json:"contact_email"`
	ContactPhone  string               `json:"contact_phone"`
	PaymentMethod domain.PaymentMethod `json:"payment_method"`
}

type CheckoutResult struct {
	PNR              string    `json:"pnr"`
	BookingID        int64     `json:"booking_id"`
	Status           string    `json:"status"`
	PricePerSeat     float64   `json:"price_per_seat"`
	TotalPaid        float64   `json:"total_paid"`
	PaymentReference string    `json:"payment_reference"`
	BookingDate      time.Time `json:"booking_date"`
}

type BookingDetail struct {
	Booking domain.Booking          `json:"booking"`
	Seats   []domain.SeatAssignment `json:"seats"`
	Payment *domain.Payment         `json:"payment,omitempty"`
}

type AdminStats struct {
	ConfirmedBookings int     `json:"confirmed_bookings"`
	TotalRevenue      float64 `json:"total_revenue"`
	ScheduledFlights  int     `json:"scheduled_flights"`
}

const (
	maxPassengers  = 9
	publishRetries = 3
)

var seatNumberPattern = regexp.MustCompile(`^\d{1,2}[A-F]$`)

type BookingService struct {
	flights   repository.FlightRepository
	inventory repository.InventoryStore
	seats     repository.SeatMapRepository
	bookings  repository.BookingRepository
	payments  repository.PaymentRepository
	gateway   payment.Gateway
	locker    SeatLocker
	producer  Producer
	log       *zap.Logger

	bookingTopic       string
	notificationsTopic string
	pendingGrace       time.Duration
	maxRetries         int
	retryBackoff       time.Duration

	now func() time.Time
}

type Config struct {
	BookingTopic       string
	NotificationsTopic string
	PendingGrace       time.Duration
	MaxRetries         int
	RetryBackoff       time.Duration
}

func NewBookingService(
	flights repository.FlightRepository,
	inventory repository.InventoryStore,
	seats repository.SeatMapRepository,
	bookings repository.BookingRepository,
	payments repository.PaymentRepository,
	gateway payment.Gateway,
	locker SeatLocker,
	producer Producer,
	log *zap.Logger,
	cfg Config,
) *BookingService {
	if cfg.MaxRetries <= 0 {
		cfg.MaxRetries = 3
	}
	if cfg.RetryBackoff <= 0 {
		cfg.RetryBackoff = 50 * time.Millisecond
	}
	if cfg.PendingGrace <= 0 {
		cfg.PendingGrace = 15 * time.Minute
	}
	return &BookingService{
		flights:            flights,
		inventory:          inventory,
		seats:              seats,
		bookings:           bookings,
		payments:           payments,
		gateway:            gateway,
		locker:             locker,
		producer:           producer,
		log:                log,
		bookingTopic:       cfg.BookingTopic,
		notificationsTopic: cfg.NotificationsTopic,
		pendingGrace:       cfg.PendingGrace,
		maxRetries:         cfg.MaxRetries,
		retryBackoff:       cfg.RetryBackoff,
		now:                time.Now,
	}
}

// Checkout runs the whole booking attempt. On transient store
// contention the entire attempt is retried with exponential backoff;
// every other failure unwinds whatever the attempt had created and is
// surfaced as-is.
func (s *BookingService) Checkout(ctx context.Context, principal domain.Principal, input CheckoutInput) (*CheckoutResult, error) {
	if err := validateCheckout(&input); err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := s.retryBackoff * (1 << (attempt - 1))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
			}
		}

		result, err := s.attempt(ctx, principal, input)
		if err == nil {
			return result, nil
		}
		if !errors.Is(err, domain.ErrTransient) {
			return nil, err
		}
		lastErr = err
		s.log.Warn("checkout attempt hit contention, retrying",
			zap.Int64("flight_id", input.FlightID),
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}
	return nil, lastErr
}

func validateCheckout(input *CheckoutInput) error {
	if len(input.Passengers) == 0 || len(input.Passengers) > maxPassengers {
		return fmt.Errorf("passenger count must be between 1 and %d: %w", maxPassengers, domain.ErrValidation)
	}
	input.ContactEmail = strings.TrimSpace(input.ContactEmail)
	input.ContactPhone = strings.TrimSpace(input.ContactPhone)
	if !strings.Contains(input.ContactEmail, "@") {
		return fmt.Errorf("contact email %q: %w", input.ContactEmail, domain.ErrValidation)
	}
	if input.ContactPhone == "" {
		return fmt.Errorf("contact phone is required: %w", domain.ErrValidation)
	}
	if !input.PaymentMethod.Valid() {
		return fmt.Errorf("payment method %q: %w", input.PaymentMethod, domain.ErrValidation)
	}

	seen := make(map[string]bool, len(input.Passengers))
	for i := range input.Passengers {
		p := &input.Passengers[i]
		p.FullName = strings.TrimSpace(p.FullName)
		p.SeatNumber = strings.ToUpper(strings.TrimSpace(p.SeatNumber))
		if p.FullName == "" {
			return fmt.Errorf("passenger %d: full name is required: %w", i+1, domain.ErrValidation)
		}
		if !seatNumberPattern.MatchString(p.SeatNumber) {
			return fmt.Errorf("passenger %d: seat number %q: %w", i+1, p.SeatNumber, domain.ErrValidation)
		}
		if seen[p.SeatNumber] {
			return fmt.Errorf("seat %s requested twice: %w", p.SeatNumber, domain.ErrValidation)
		}
		seen[p.SeatNumber] = true
		switch p.SeatCategory {
		case domain.SeatWindow, domain.SeatAisle, domain.SeatMiddle:
		default:
			return fmt.Errorf("passenger %d: seat category %q: %w", i+1, p.SeatCategory, domain.ErrValidation)
		}
		if p.Category == "" {
			p.Category = domain.PassengerAdult
		}
		switch p.Category {
		case domain.PassengerAdult, domain.PassengerChild, domain.PassengerInfant:
		default:
			return fmt.Errorf("passenger %d: passenger category %q: %w", i+1, p.Category, domain.ErrValidation)
		}
	}
	return nil
}

// attempt is one full pass of the checkout saga.
func (s *BookingService) attempt(ctx context.Context, principal domain.Principal, input CheckoutInput) (result *CheckoutResult, err error) {
	now := s.now()
	n := len(input.Passengers)

	flight, err := s.flights.GetByID(ctx, input.FlightID)
	if err != nil {
		return nil, err
	}
	if flight.Status != domain.FlightStatusScheduled {
		return nil, fmt.Errorf("flight %s is %s: %w", flight.FlightNumber, flight.Status, domain.ErrInvalidState)
	}
	if !flight.DepartureTime.After(now) {
		return nil, fmt.Errorf("flight %s has departed: %w", flight.FlightNumber, domain.ErrInvalidState)
	}
	if n > flight.SeatsRemaining {
		return nil, fmt.Errorf("%d seats requested, %d remaining: %w", n, flight.SeatsRemaining, domain.ErrCapacity)
	}

	// Price from the pre-reservation snapshot: the customer pays what
	// they saw, not post-reservation scarcity.
	unit := pricing.Quote(flight.BasePrice, flight.SeatsRemaining, flight.TotalSeats, flight.DemandFactor, flight.DepartureTime, now)
	total := pricing.MulRound2(unit, n)

	booking := &domain.Booking{
		UserID:       principal.UserID,
		FlightID:     flight.ID,
		PNR:          NewPNR(),
		PricePaid:    total,
		Status:       domain.BookingStatusPending,
		ContactEmail: input.ContactEmail,
		ContactPhone: input.ContactPhone,
		BookingDate:  now,
	}
	if err := s.bookings.Create(ctx, booking); err != nil {
		return nil, err
	}

	var (
		locked   []string
		reserved bool
	)
	defer func() {
		if err != nil {
			s.unwind(booking, flight.ID, n, reserved, locked)
		}
	}()

	for _, p := range input.Passengers {
		if s.locker != nil {
			ok, lockErr := s.locker.AcquireSeatLock(ctx, flight.ID, p.SeatNumber, s.pendingGrace)
			if lockErr != nil {
				s.log.Warn("seat lock unavailable, falling through to database", zap.Error(lockErr))
			} else if !ok {
				return nil, fmt.Errorf("seat %s on flight %d is taken: %w", p.SeatNumber, flight.ID, domain.ErrConflict)
			} else {
				locked = append(locked, p.SeatNumber)
			}
		}
		assignment := &domain.SeatAssignment{
			BookingID:      booking.ID,
			FlightID:       flight.ID,
			SeatNumber:     p.SeatNumber,
			SeatCategory:   p.SeatCategory,
			FullName:       p.FullName,
			DateOfBirth:    p.DateOfBirth,
			PassportNumber: p.PassportNumber,
			Category:       p.Category,
		}
		if err := s.seats.Assign(ctx, assignment); err != nil {
			return nil, err
		}
	}

	if _, err := s.inventory.Reserve(ctx, flight.ID, n); err != nil {
		return nil, err
	}
	reserved = true

	reference, err := s.gateway.Charge(ctx, total, input.PaymentMethod)
	if err != nil {
		return nil, err
	}

	pay := &domain.Payment{
		BookingID: booking.ID,
		Reference: reference,
		Method:    input.PaymentMethod,
		Amount:    total,
		Status:    domain.PaymentStatusSuccess,
		PaidAt:    s.now(),
	}
	if err := s.payments.Create(ctx, pay); err != nil {
		s.refundBestEffort(reference, total)
		return nil, err
	}

	ok, err := s.bookings.Confirm(ctx, booking.ID, reference)
	if err != nil {
		s.refundBestEffort(reference, total)
		return nil, err
	}
	if !ok {
		// The reaper expired the booking mid-attempt. Its seats and
		// inventory are already reclaimed; only the charge is ours to
		// undo.
		if err := s.payments.MarkRefunded(ctx, booking.ID); err != nil {
			s.log.Error("marking payment of expired booking refunded failed", zap.String("pnr", booking.PNR), zap.Error(err))
		}
		s.refundBestEffort(reference, total)
		return nil, fmt.Errorf("booking %s was expired during checkout: %w", booking.PNR, domain.ErrConflict)
	}

	s.releaseLocks(flight.ID, locked)

	seatNumbers := make([]string, 0, n)
	for _, p := range input.Passengers {
		seatNumbers = append(seatNumbers, p.SeatNumber)
	}
	s.publish(ctx, kafka.BookingEvent{
		Type:         kafka.EventBookingConfirmed,
		PNR:          booking.PNR,
		UserID:       booking.UserID,
		FlightID:     flight.ID,
		FlightNumber: flight.FlightNumber,
		Seats:        seatNumbers,
		Amount:       total,
		Email:        booking.ContactEmail,
		OccurredAt:   s.now(),
	})

	s.log.Info("booking confirmed",
		zap.String("pnr", booking.PNR),
		zap.Int64("flight_id", flight.ID),
		zap.Int("passengers", n),
		zap.Float64("total", total))

	return &CheckoutResult{
		PNR:              booking.PNR,
		BookingID:        booking.ID,
		Status:           string(domain.BookingStatusConfirmed),
		PricePerSeat:     unit,
		TotalPaid:        total,
		PaymentReference: reference,
		BookingDate:      booking.BookingDate,
	}, nil
}

// unwind erases everything the failed attempt created. It runs on a
// background context so cancellation of the request cannot leak a
// half-built booking. Inventory is released by the count ReleaseAll
// actually removed, never by the requested size, so an overlap with
// the reaper can never increment the same reservation twice.
func (s *BookingService) unwind(booking *domain.Booking, flightID int64, n int, reserved bool, locked []string) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	defer s.releaseLocks(flightID, locked)

	count, relErr := s.seats.ReleaseAll(ctx, booking.ID)
	if relErr != nil {
		s.log.Error("unwind: releasing seat assignments failed", zap.String("pnr", booking.PNR), zap.Error(relErr))
	}
	if reserved {
		if relErr == nil && count == 0 {
			// The reaper expired the booking mid-attempt and already
			// reclaimed its seats and inventory; the CANCELLED row and
			// its expired event stand.
			return
		}
		if _, err := s.inventory.Release(ctx, flightID, count); err != nil {
			s.log.Error("unwind: releasing inventory failed", zap.String("pnr", booking.PNR), zap.Error(err))
		}
	} else if count > 0 && count != n {
		s.log.Warn("unwind: partial seat assignments released", zap.String("pnr", booking.PNR), zap.Int("count", count))
	}
	if err := s.bookings.Delete(ctx, booking.ID); err != nil {
		s.log.Error("unwind: deleting booking failed", zap.String("pnr", booking.PNR), zap.Error(err))
	}
}

func (s *BookingService) releaseLocks(flightID int64, seats []string) {
	if s.locker == nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, seat := range seats {
		if err := s.locker.ReleaseSeatLock(ctx, flightID, seat); err != nil {
			s.log.Warn("seat lock release failed", zap.Int64("flight_id", flightID), zap.String("seat", seat), zap.Error(err))
		}
	}
}

func (s *BookingService) refundBestEffort(reference string, amount float64) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := s.gateway.Refund(ctx, reference, amount); err != nil {
		s.log.Error("refund of aborted charge failed", zap.String("reference", reference), zap.Error(err))
	}
}

func (s *BookingService) GetByPNR(ctx context.Context, principal domain.Principal, pnr string) (*BookingDetail, error) {
	booking, err := s.bookings.GetByPNR(ctx, strings.ToUpper(strings.TrimSpace(pnr)))
	if err != nil {
		return nil, err
	}
	if !principal.MayAccess(booking.UserID) {
		return nil, fmt.Errorf("booking %s belongs to another user: %w", booking.PNR, domain.ErrForbidden)
	}

	seats, err := s.seats.ListByBooking(ctx, booking.ID)
	if err != nil {
		return nil, err
	}
	detail := &BookingDetail{Booking: *booking, Seats: seats}
	if pay, err := s.payments.GetByBooking(ctx, booking.ID); err == nil {
		detail.Payment = pay
	} else if !errors.Is(err, domain.ErrNotFound) {
		return nil, err
	}
	return detail, nil
}

func (s *BookingService) History(ctx context.Context, principal domain.Principal, userID int64) ([]domain.Booking, error) {
	if !principal.MayAccess(userID) {
		return nil, fmt.Errorf("booking history belongs to another user: %w", domain.ErrForbidden)
	}
	return s.bookings.ListByUser(ctx, userID)
}

func (s *BookingService) ListBookings(ctx context.Context, principal domain.Principal, status domain.BookingStatus, limit int) ([]domain.Booking, error) {
	if !principal.IsAdmin() {
		return nil, fmt.Errorf("booking listing requires admin role: %w", domain.ErrForbidden)
	}
	switch status {
	case "", domain.BookingStatusPending, domain.BookingStatusConfirmed, domain.BookingStatusCancelled, domain.BookingStatusRefunded:
	default:
		return nil, fmt.Errorf("booking status %q: %w", status, domain.ErrValidation)
	}
	return s.bookings.List(ctx, status, limit)
}

func (s *BookingService) Stats(ctx context.Context, principal domain.Principal) (*AdminStats, error) {
	if !principal.IsAdmin() {
		return nil, fmt.Errorf("stats require admin role: %w", domain.ErrForbidden)
	}
	bookingStats, err := s.bookings.Stats(ctx)
	if err != nil {
		return nil, err
	}
	scheduled, err := s.flights.CountScheduled(ctx)
	if err != nil {
		return nil, err
	}
	return &AdminStats{
		ConfirmedBookings: bookingStats.ConfirmedBookings,
		TotalRevenue:      bookingStats.TotalRevenue,
		ScheduledFlights:  scheduled,
	}, nil
}

// ExpirePending sweeps PENDING bookings older than the grace window and
// reclaims their seats and inventory. Each booking is its own failure
// unit; one bad booking never aborts the sweep. Returns how many
// bookings were expired.
func (s *BookingService) ExpirePending(ctx context.Context) (int, error) {
	now := s.now()
	stale, err := s.bookings.ListStalePending(ctx, now.Add(-s.pendingGrace))
	if err != nil {
		return 0, err
	}

	expired := 0
	for _, b := range stale {
		// Re-validated at the moment of mutation: a booking confirmed
		// since the scan loses its PENDING status and is skipped.
		ok, err := s.bookings.CancelPending(ctx, b.ID, now)
		if err != nil {
			s.log.Error("expiry: cancelling booking failed", zap.String("pnr", b.PNR), zap.Error(err))
			continue
		}
		if !ok {
			continue
		}

		count, err := s.seats.ReleaseAll(ctx, b.ID)
		if err != nil {
			s.log.Error("expiry: releasing seats failed", zap.String("pnr", b.PNR), zap.Error(err))
			continue
		}
		if _, err := s.inventory.Release(ctx, b.FlightID, count); err != nil {
			s.log.Error("expiry: releasing inventory failed", zap.String("pnr", b.PNR), zap.Error(err))
			continue
		}

		s.publish(ctx, kafka.BookingEvent{
			Type:       kafka.EventBookingExpired,
			PNR:        b.PNR,
			UserID:     b.UserID,
			FlightID:   b.FlightID,
			Amount:     b.PricePaid,
			Email:      b.ContactEmail,
			OccurredAt: now,
		})
		expired++
	}
	return expired, nil
}

func (s *BookingService) publish(ctx context.Context, event kafka.BookingEvent) {
	if s.producer == nil || s.bookingTopic == "" {
		return
	}
	if err := s.producer.PublishWithRetry(ctx, s.bookingTopic, event.PNR, event, publishRetries); err != nil {
		s.log.Warn("publishing booking event failed", zap.String("pnr", event.PNR), zap.String("type", event.Type), zap.Error(err))
	}
	if s.notificationsTopic != "" {
		if err := s.producer.PublishWithRetry(ctx, s.notificationsTopic, event.PNR, event, publishRetries); err != nil {
			s.log.Warn("publishing notification failed", zap.String("pnr", event.PNR), zap.Error(err))
		}
	}
}

// NewPNR builds a reservation code such as "PNR9F86D081".
func NewPNR() string {
	u := uuid.New()
	return "PNR" + strings.ToUpper(hex.EncodeToString(u[:4]))
}

var _ BookingUseCase = (*BookingService)(nil)
