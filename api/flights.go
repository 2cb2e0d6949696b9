package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/Domenick1991/flightbooking/internal/domain"
	"github.com/Domenick1991/flightbooking/internal/repository"
	"github.com/Domenick1991/flightbooking/internal/service/flights"
)

type FlightHandler struct {
	service flights.FlightUseCase
}

func NewFlightHandler(service flights.FlightUseCase) *FlightHandler {
	return &FlightHandler{service: service}
}

func (h *FlightHandler) Register(public, admin *gin.RouterGroup) {
	public.GET("/", h.search)
	public.GET("/:id", h.get)
	public.GET("/:id/seatmap", h.seatMap)
	public.GET("/:id/history", h.history)

	admin.POST("/", h.create)
	admin.PATCH("/:id", h.update)
}

func (h *FlightHandler) search(c *gin.Context) {
	query := repository.FlightQuery{
		Origin:      c.Query("from"),
		Destination: c.Query("to"),
		Sort:        c.DefaultQuery("sort", repository.SortByDeparture),
	}
	if query.Sort != repository.SortByDeparture && query.Sort != repository.SortByPrice {
		c.JSON(http.StatusBadRequest, gin.H{"error": "sort must be departure or price"})
		return
	}
	if raw := c.Query("date"); raw != "" {
		date, err := time.Parse("2006-01-02", raw)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "date must be YYYY-MM-DD"})
			return
		}
		query.Date = date
	}

	offers, err := h.service.Search(c.Request.Context(), query)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, offers)
}

func (h *FlightHandler) get(c *gin.Context) {
	id, ok := flightID(c)
	if !ok {
		return
	}
	offer, err := h.service.GetByID(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, offer)
}

func (h *FlightHandler) seatMap(c *gin.Context) {
	id, ok := flightID(c)
	if !ok {
		return
	}
	view, err := h.service.SeatMap(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *FlightHandler) history(c *gin.Context) {
	id, ok := flightID(c)
	if !ok {
		return
	}
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	entries, err := h.service.PriceHistory(c.Request.Context(), id, limit)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, entries)
}

func (h *FlightHandler) create(c *gin.Context) {
	var input flights.CreateFlightInput
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	flight, err := h.service.Create(c.Request.Context(), principalFrom(c), input)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, flight)
}

type updateFlightRequest struct {
	Airline       *string    `json:"airline"`
	DepartureTime *time.Time `json:"departure_time"`
	ArrivalTime   *time.Time `json:"arrival_time"`
	BasePrice     *float64   `json:"base_price"`
	TotalSeats    *int       `json:"total_seats"`
	Status        *string    `json:"status"`
}

func (h *FlightHandler) update(c *gin.Context) {
	id, ok := flightID(c)
	if !ok {
		return
	}
	var req updateFlightRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	upd := domain.FlightUpdate{
		Airline:       req.Airline,
		DepartureTime: req.DepartureTime,
		ArrivalTime:   req.ArrivalTime,
		BasePrice:     req.BasePrice,
		TotalSeats:    req.TotalSeats,
	}
	if req.Status != nil {
		status := domain.FlightStatus(*req.Status)
		upd.Status = &status
	}

	flight, err := h.service.Update(c.Request.Context(), principalFrom(c), id, upd)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, flight)
}

func flightID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid flight id"})
		return 0, false
	}
	return id, true
}
