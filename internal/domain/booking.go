package domain

import "time"

type BookingStatus string

const (
	BookingStatusPending   BookingStatus = "PENDING"
	BookingStatusConfirmed BookingStatus = "CONFIRMED"
	BookingStatusCancelled BookingStatus = "CANCELLED"
	BookingStatusRefunded  BookingStatus = "REFUNDED"
)

type Booking struct {
	ID               int64
	UserID           int64
	FlightID         int64
	PNR              string
	PricePaid        float64
	Status           BookingStatus
	PaymentReference string
	ContactEmail     string
	ContactPhone     string
	BookingDate      time.Time
	CancellationDate *time.Time
	RefundAmount     *float64
}

type SeatCategory string

const (
	SeatWindow SeatCategory = "WINDOW"
	SeatAisle  SeatCategory = "AISLE"
	SeatMiddle SeatCategory = "MIDDLE"
)

type PassengerCategory string

const (
	PassengerAdult  PassengerCategory = "ADULT"
	PassengerChild  PassengerCategory = "CHILD"
	PassengerInfant PassengerCategory = "INFANT"
)

// SeatAssignment ties one passenger of a booking to a seat on a flight.
// At most one live assignment may exist per (flight, seat number);
// assignments of cancelled bookings are removed and do not block reuse.
type SeatAssignment struct {
	ID             int64
	BookingID      int64
	FlightID       int64
	SeatNumber     string
	SeatCategory   SeatCategory
	FullName       string
	DateOfBirth    string
	PassportNumber string
	Category       PassengerCategory
}

// CancellationRecord is the archive row written when a confirmed
// booking is cancelled.
type CancellationRecord struct {
	ID           int64
	PNR          string
	UserID       int64
	FlightID     int64
	PricePaid    float64
	RefundAmount float64
	Reason       string
	CancelledAt  time.Time
}
