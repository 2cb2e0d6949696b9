package api

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/Domenick1991/flightbooking/internal/domain"
	"github.com/Domenick1991/flightbooking/internal/pricing"
	"github.com/Domenick1991/flightbooking/internal/service/booking"
	"github.com/Domenick1991/flightbooking/internal/service/cancellation"
	"github.com/Domenick1991/flightbooking/internal/service/flights"
	"github.com/Domenick1991/flightbooking/internal/ticket"
)

type BookingHandler struct {
	bookings      booking.BookingUseCase
	cancellations cancellation.CancellationUseCase
	flights       flights.FlightUseCase
	documents     *ticket.Generator
}

func NewBookingHandler(
	bookings booking.BookingUseCase,
	cancellations cancellation.CancellationUseCase,
	flightSvc flights.FlightUseCase,
	documents *ticket.Generator,
) *BookingHandler {
	return &BookingHandler{
		bookings:      bookings,
		cancellations: cancellations,
		flights:       flightSvc,
		documents:     documents,
	}
}

func (h *BookingHandler) Register(authorized, admin *gin.RouterGroup) {
	authorized.POST("/", h.checkout)
	authorized.GET("/", h.history)
	authorized.GET("/:pnr", h.get)
	authorized.DELETE("/:pnr", h.cancel)
	authorized.GET("/:pnr/ticket", h.ticket)
	authorized.GET("/:pnr/receipt", h.receipt)

	admin.GET("/bookings", h.adminList)
	admin.GET("/stats", h.adminStats)
}

func (h *BookingHandler) checkout(c *gin.Context) {
	var input booking.CheckoutInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	result, err := h.bookings.Checkout(c.Request.Context(), principalFrom(c), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, result)
}

func (h *BookingHandler) get(c *gin.Context) {
	detail, err := h.bookings.GetByPNR(c.Request.Context(), principalFrom(c), c.Param("pnr"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *BookingHandler) history(c *gin.Context) {
	principal := principalFrom(c)
	userID := principal.UserID
	if raw := c.Query("user_id"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "invalid user_id"})
			return
		}
		userID = parsed
	}

	bookings, err := h.bookings.History(c.Request.Context(), principal, userID)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, bookings)
}

type cancelRequest struct {
	Reason string `json:"reason"`
}

func (h *BookingHandler) cancel(c *gin.Context) {
	var req cancelRequest
	_ = c.ShouldBindJSON(&req)

	receipt, err := h.cancellations.Cancel(c.Request.Context(), principalFrom(c), c.Param("pnr"), req.Reason)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, receipt)
}

func (h *BookingHandler) ticket(c *gin.Context) {
	detail, err := h.bookings.GetByPNR(c.Request.Context(), principalFrom(c), c.Param("pnr"))
	if err != nil {
		respondError(c, err)
		return
	}
	if detail.Booking.Status != domain.BookingStatusConfirmed {
		respondError(c, fmt.Errorf("ticket requires a CONFIRMED booking: %w", domain.ErrInvalidState))
		return
	}

	offer, err := h.flights.GetByID(c.Request.Context(), detail.Booking.FlightID)
	if err != nil {
		respondError(c, err)
		return
	}

	payload := ticket.TicketPayload{
		PNR:              detail.Booking.PNR,
		FlightNumber:     offer.FlightNumber,
		Airline:          offer.Airline,
		FromAirport:      offer.FromAirport,
		ToAirport:        offer.ToAirport,
		DepartureTime:    offer.DepartureTime,
		ArrivalTime:      offer.ArrivalTime,
		TotalPaid:        detail.Booking.PricePaid,
		PaymentReference: detail.Booking.PaymentReference,
	}
	for _, seat := range detail.Seats {
		payload.Passengers = append(payload.Passengers, ticket.TicketPassenger{
			FullName:   seat.FullName,
			SeatNumber: seat.SeatNumber,
			Category:   string(seat.Category),
		})
	}

	serveDocument(c, fmt.Sprintf("ticket_%s.txt", detail.Booking.PNR), h.documents.Ticket(payload))
}

func (h *BookingHandler) receipt(c *gin.Context) {
	detail, err := h.bookings.GetByPNR(c.Request.Context(), principalFrom(c), c.Param("pnr"))
	if err != nil {
		respondError(c, err)
		return
	}
	b := detail.Booking
	if b.Status != domain.BookingStatusCancelled || b.CancellationDate == nil || b.RefundAmount == nil {
		respondError(c, fmt.Errorf("receipt requires a CANCELLED booking: %w", domain.ErrInvalidState))
		return
	}

	offer, err := h.flights.GetByID(c.Request.Context(), b.FlightID)
	if err != nil {
		respondError(c, err)
		return
	}
	_, tier := pricing.Refund(b.PricePaid, offer.DepartureTime, *b.CancellationDate)

	serveDocument(c, fmt.Sprintf("receipt_%s.txt", b.PNR), h.documents.Receipt(ticket.ReceiptPayload{
		PNR:          b.PNR,
		FlightNumber: offer.FlightNumber,
		PricePaid:    b.PricePaid,
		RefundAmount: *b.RefundAmount,
		RefundPolicy: tier.Policy,
		CancelledAt:  *b.CancellationDate,
	}))
}

func serveDocument(c *gin.Context, filename string, body []byte) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "text/plain; charset=utf-8", body)
}

func (h *BookingHandler) adminList(c *gin.Context) {
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "100"))
	status := domain.BookingStatus(c.Query("status"))

	bookings, err := h.bookings.ListBookings(c.Request.Context(), principalFrom(c), status, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, bookings)
}

func (h *BookingHandler) adminStats(c *gin.Context) {
	stats, err := h.bookings.Stats(c.Request.Context(), principalFrom(c))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}
