// Package ticket renders downloadable booking documents. Plain-text
// artifacts stand in for the PDF layout of a production system.
package ticket

import (
	"fmt"
	"strings"
	"time"
)

type TicketPassenger struct {
	FullName   string
	SeatNumber string
	Category   string
}

// TicketPayload is assembled by the API layer after checkout or lookup
// returns a CONFIRMED booking.
type TicketPayload struct {
	PNR              string
	FlightNumber     string
	Airline          string
	FromAirport      string
	ToAirport        string
	DepartureTime    time.Time
	ArrivalTime      time.Time
	Passengers       []TicketPassenger
	TotalPaid        float64
	PaymentReference string
}

// ReceiptPayload is assembled after a cancellation completes.
type ReceiptPayload struct {
	PNR          string
	FlightNumber string
	PricePaid    float64
	RefundAmount float64
	RefundPolicy string
	CancelledAt  time.Time
}

type Generator struct{}

func NewGenerator() *Generator {
	return &Generator{}
}

const line = "========================================"

func (g *Generator) Ticket(p TicketPayload) []byte {
	var b strings.Builder
	b.WriteString(line + "\n")
	b.WriteString("           E-TICKET\n")
	b.WriteString(line + "\n")
	fmt.Fprintf(&b, "PNR:        %s\n", p.PNR)
	fmt.Fprintf(&b, "Flight:     %s (%s)\n", p.FlightNumber, p.Airline)
	fmt.Fprintf(&b, "Route:      %s -> %s\n", p.FromAirport, p.ToAirport)
	fmt.Fprintf(&b, "Departure:  %s\n", p.DepartureTime.Format("02 Jan 2006 15:04 MST"))
	fmt.Fprintf(&b, "Arrival:    %s\n", p.ArrivalTime.Format("02 Jan 2006 15:04 MST"))
	b.WriteString("\nPassengers:\n")
	for i, pax := range p.Passengers {
		fmt.Fprintf(&b, "  %d. %-30s seat %-4s %s\n", i+1, pax.FullName, pax.SeatNumber, pax.Category)
	}
	fmt.Fprintf(&b, "\nTotal paid: %.2f\n", p.TotalPaid)
	fmt.Fprintf(&b, "Payment:    %s\n", p.PaymentReference)
	b.WriteString(line + "\n")
	return []byte(b.String())
}

func (g *Generator) Receipt(p ReceiptPayload) []byte {
	var b strings.Builder
	b.WriteString(line + "\n")
	b.WriteString("      CANCELLATION RECEIPT\n")
	b.WriteString(line + "\n")
	fmt.Fprintf(&b, "PNR:           %s\n", p.PNR)
	fmt.Fprintf(&b, "Flight:        %s\n", p.FlightNumber)
	fmt.Fprintf(&b, "Cancelled at:  %s\n", p.CancelledAt.Format("02 Jan 2006 15:04 MST"))
	fmt.Fprintf(&b, "Price paid:    %.2f\n", p.PricePaid)
	fmt.Fprintf(&b, "Policy:        %s\n", p.RefundPolicy)
	fmt.Fprintf(&b, "Refund:        %.2f\n", p.RefundAmount)
	b.WriteString(line + "\n")
	return []byte(b.String())
}
