package domain

import "time"

type FlightStatus string

const (
	FlightStatusScheduled FlightStatus = "SCHEDULED"
	FlightStatusBoarding  FlightStatus = "BOARDING"
	FlightStatusDeparted  FlightStatus = "DEPARTED"
	FlightStatusArrived   FlightStatus = "ARRIVED"
	FlightStatusCancelled FlightStatus = "CANCELLED"
)

func (s FlightStatus) Valid() bool {
	switch s {
	case FlightStatusScheduled, FlightStatusBoarding, FlightStatusDeparted, FlightStatusArrived, FlightStatusCancelled:
		return true
	}
	return false
}

// Flight carries the per-flight seat counters. SeatsRemaining and
// DemandFactor are mutated only through the inventory store; everything
// else reading them sees either the pre- or post-operation state.
type Flight struct {
	ID             int64
	FlightNumber   string
	Airline        string
	FromAirport    string
	ToAirport      string
	DepartureTime  time.Time
	ArrivalTime    time.Time
	BasePrice      float64
	TotalSeats     int
	SeatsRemaining int
	DemandFactor   float64
	Status         FlightStatus
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// FlightUpdate enumerates the fields an administrator may patch. Nil
// means "leave unchanged".
type FlightUpdate struct {
	Airline       *string
	DepartureTime *time.Time
	ArrivalTime   *time.Time
	BasePrice     *float64
	TotalSeats    *int
	Status        *FlightStatus
}

func (u FlightUpdate) Empty() bool {
	return u.Airline == nil && u.DepartureTime == nil && u.ArrivalTime == nil &&
		u.BasePrice == nil && u.TotalSeats == nil && u.Status == nil
}

// PriceHistoryEntry is an append-only audit record written every time
// the inventory for a flight changes.
type PriceHistoryEntry struct {
	ID             int64
	FlightID       int64
	RecordedPrice  float64
	DemandFactor   float64
	SeatsRemaining int
	RecordedAt     time.Time
}
