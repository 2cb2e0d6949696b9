// Package email delivers booking notifications. The current sender
// only logs; swapping in an SMTP or provider client is a drop-in.
package email

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/Domenick1991/flightbooking/internal/kafka"
)

type Sender struct {
	log *zap.Logger
}

func NewSender(log *zap.Logger) *Sender {
	return &Sender{log: log}
}

func (s *Sender) Send(_ context.Context, event kafka.BookingEvent) error {
	subject := ""
	switch event.Type {
	case kafka.EventBookingConfirmed:
		subject = fmt.Sprintf("Booking %s confirmed for flight %s", event.PNR, event.FlightNumber)
	case kafka.EventBookingCancelled:
		subject = fmt.Sprintf("Booking %s cancelled, refund %.2f", event.PNR, event.RefundAmount)
	case kafka.EventBookingExpired:
		subject = fmt.Sprintf("Booking %s expired before payment", event.PNR)
	default:
		subject = fmt.Sprintf("Booking %s update", event.PNR)
	}

	s.log.Info("sending booking email",
		zap.String("to", event.Email),
		zap.String("subject", subject),
		zap.String("pnr", event.PNR),
		zap.String("type", event.Type),
	)
	return nil
}
