// Package cancellation refunds confirmed bookings and reclaims their
// seats and inventory.
package cancellation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Domenick1991/flightbooking/internal/domain"
	"github.com/Domenick1991/flightbooking/internal/kafka"
	"github.com/Domenick1991/flightbooking/internal/payment"
	"github.com/Domenick1991/flightbooking/internal/pricing"
	"github.com/Domenick1991/flightbooking/internal/repository"
)

type CancellationUseCase interface {
	Cancel(ctx context.Context, principal domain.Principal, pnr, reason string) (*Receipt, error)
}

type Producer interface {
	PublishWithRetry(ctx context.Context, topic, key string, value interface{}, maxRetries int) error
}

const publishRetries = 3

// Receipt is what the document generator renders for the customer.
type Receipt struct {
	PNR          string    `json:"pnr"`
	PricePaid    float64   `json:"price_paid"`
	RefundAmount float64   `json:"refund_amount"`
	RefundPolicy string    `json:"refund_policy"`
	CancelledAt  time.Time `json:"cancelled_at"`
}

type CancellationService struct {
	flights   repository.FlightRepository
	inventory repository.InventoryStore
	seats     repository.SeatMapRepository
	bookings  repository.BookingRepository
	payments  repository.PaymentRepository
	archive   repository.CancellationArchive
	gateway   payment.Gateway
	producer  Producer
	log       *zap.Logger

	bookingTopic       string
	notificationsTopic string

	now func() time.Time
}

func NewCancellationService(
	flights repository.FlightRepository,
	inventory repository.InventoryStore,
	seats repository.SeatMapRepository,
	bookings repository.BookingRepository,
	payments repository.PaymentRepository,
	archive repository.CancellationArchive,
	gateway payment.Gateway,
	producer Producer,
	log *zap.Logger,
	bookingTopic, notificationsTopic string,
) *CancellationService {
	return &CancellationService{
		flights:            flights,
		inventory:          inventory,
		seats:              seats,
		bookings:           bookings,
		payments:           payments,
		archive:            archive,
		gateway:            gateway,
		producer:           producer,
		log:                log,
		bookingTopic:       bookingTopic,
		notificationsTopic: notificationsTopic,
		now:                time.Now,
	}
}

// Cancel refunds a CONFIRMED booking. The refund tier applies to
// price_paid, the money actually charged, never a recomputed price.
func (s *CancellationService) Cancel(ctx context.Context, principal domain.Principal, pnr, reason string) (*Receipt, error) {
	booking, err := s.bookings.GetByPNR(ctx, strings.ToUpper(strings.TrimSpace(pnr)))
	if err != nil {
		return nil, err
	}
	if !principal.MayAccess(booking.UserID) {
		return nil, fmt.Errorf("booking %s belongs to another user: %w", booking.PNR, domain.ErrForbidden)
	}
	if booking.Status != domain.BookingStatusConfirmed {
		return nil, fmt.Errorf("booking %s is %s, only CONFIRMED bookings can be cancelled: %w", booking.PNR, booking.Status, domain.ErrInvalidState)
	}

	flight, err := s.flights.GetByID(ctx, booking.FlightID)
	if err != nil {
		return nil, err
	}

	now := s.now()
	refund, tier := pricing.Refund(booking.PricePaid, flight.DepartureTime, now)

	// The conditional transition arbitrates concurrent cancellations:
	// only the winner proceeds with the release path.
	ok, err := s.bookings.CancelConfirmed(ctx, booking.ID, refund, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("booking %s was cancelled concurrently: %w", booking.PNR, domain.ErrInvalidState)
	}

	if err := s.archive.Add(ctx, &domain.CancellationRecord{
		PNR:          booking.PNR,
		UserID:       booking.UserID,
		FlightID:     booking.FlightID,
		PricePaid:    booking.PricePaid,
		RefundAmount: refund,
		Reason:       reason,
		CancelledAt:  now,
	}); err != nil {
		s.log.Error("archiving cancellation failed", zap.String("pnr", booking.PNR), zap.Error(err))
	}

	if err := s.payments.MarkRefunded(ctx, booking.ID); err != nil {
		s.log.Error("marking payment refunded failed", zap.String("pnr", booking.PNR), zap.Error(err))
	}
	if booking.PaymentReference != "" && refund > 0 {
		if err := s.gateway.Refund(ctx, booking.PaymentReference, refund); err != nil {
			s.log.Error("gateway refund failed", zap.String("pnr", booking.PNR), zap.Error(err))
		}
	}

	// Seats first, then inventory by the released count. If the seats
	// were already reclaimed the count is zero and the release is a
	// no-op, so an overlap with the reaper never double-increments.
	count, err := s.seats.ReleaseAll(ctx, booking.ID)
	if err != nil {
		s.log.Error("releasing seats failed", zap.String("pnr", booking.PNR), zap.Error(err))
	} else if _, err := s.inventory.Release(ctx, booking.FlightID, count); err != nil {
		s.log.Error("releasing inventory failed", zap.String("pnr", booking.PNR), zap.Error(err))
	}

	s.publish(ctx, kafka.BookingEvent{
		Type:         kafka.EventBookingCancelled,
		PNR:          booking.PNR,
		UserID:       booking.UserID,
		FlightID:     booking.FlightID,
		FlightNumber: flight.FlightNumber,
		Amount:       booking.PricePaid,
		RefundAmount: refund,
		Email:        booking.ContactEmail,
		OccurredAt:   now,
	})

	s.log.Info("booking cancelled",
		zap.String("pnr", booking.PNR),
		zap.Float64("refund", refund),
		zap.String("policy", tier.Policy))

	return &Receipt{
		PNR:          booking.PNR,
		PricePaid:    booking.PricePaid,
		RefundAmount: refund,
		RefundPolicy: tier.Policy,
		CancelledAt:  now,
	}, nil
}

func (s *CancellationService) publish(ctx context.Context, event kafka.BookingEvent) {
	if s.producer == nil || s.bookingTopic == "" {
		return
	}
	if err := s.producer.PublishWithRetry(ctx, s.bookingTopic, event.PNR, event, publishRetries); err != nil {
		s.log.Warn("publishing cancellation event failed", zap.String("pnr", event.PNR), zap.Error(err))
	}
	if s.notificationsTopic != "" {
		if err := s.producer.PublishWithRetry(ctx, s.notificationsTopic, event.PNR, event, publishRetries); err != nil {
			s.log.Warn("publishing notification failed", zap.String("pnr", event.PNR), zap.Error(err))
		}
	}
}

var _ CancellationUseCase = (*CancellationService)(nil)
