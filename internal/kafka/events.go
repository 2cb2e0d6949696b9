package kafka

import "time"

// Booking event types published to the booking-events topic.
const (
	EventBookingConfirmed = "booking.confirmed"
	EventBookingCancelled = "booking.cancelled"
	EventBookingExpired   = "booking.expired"
)

// BookingEvent is the payload published on every booking lifecycle
// transition. The PNR is the partition key so events of one booking
// stay ordered.
type BookingEvent struct {
	Type         string    `json:"type"`
	PNR          string    `json:"pnr"`
	UserID       int64     `json:"user_id"`
	FlightID     int64     `json:"flight_id"`
	FlightNumber string    `json:"flight_number"`
	Seats        []string  `json:"seats,omitempty"`
	Amount       float64   `json:"amount"`
	RefundAmount float64   `json:"refund_amount,omitempty"`
	Email        string    `json:"email"`
	OccurredAt   time.Time `json:"occurred_at"`
}
