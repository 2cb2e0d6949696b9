// Package flights implements flight search, administration and the
// demand-factor refresh.
package flights

import (
	"context"
	"fmt"
	"math/rand"
	"regexp"
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/Domenick1991/flightbooking/internal/domain"
	"github.com/Domenick1991/flightbooking/internal/pricing"
	"github.com/Domenick1991/flightbooking/internal/repository"
)

type FlightUseCase interface {
	Search(ctx context.Context, q repository.FlightQuery) ([]FlightOffer, error)
	GetByID(ctx context.Context, id int64) (*FlightOffer, error)
	SeatMap(ctx context.Context, flightID int64) (*SeatMapView, error)
	PriceHistory(ctx context.Context, flightID int64, limit int) ([]domain.PriceHistoryEntry, error)
	Create(ctx context.Context, principal domain.Principal, input CreateFlightInput) (*domain.Flight, error)
	Update(ctx context.Context, principal domain.Principal, id int64, upd domain.FlightUpdate) (*domain.Flight, error)
	RefreshDemand(ctx context.Context) (int, error)
}

// Cache is the slice of the Redis wrapper the service needs.
type Cache interface {
	GetSearch(ctx context.Context, key string, out interface{}) (bool, error)
	SetSearch(ctx context.Context, key string, value interface{}) error
	InvalidateSearches(ctx context.Context) error
}

// FlightOffer is a flight together with its current dynamic price for
// one seat.
type FlightOffer struct {
	domain.Flight
	CurrentPrice float64 `json:"current_price"`
}

type OccupiedSeat struct {
	SeatNumber   string              `json:"seat_number"`
	SeatCategory domain.SeatCategory `json:"seat_category"`
}

type SeatMapView struct {
	FlightID       int64          `json:"flight_id"`
	TotalSeats     int            `json:"total_seats"`
	SeatsRemaining int            `json:"seats_remaining"`
	Occupied       []OccupiedSeat `json:"occupied"`
}

type CreateFlightInput struct {
	FlightNumber  string    `json:"flight_number"`
	Airline       string    `json:"airline"`
	FromAirport   string    `json:"from_airport"`
	ToAirport     string    `json:"to_airport"`
	DepartureTime time.Time `json:"departure_time"`
	ArrivalTime   time.Time `json:"arrival_time"`
	BasePrice     float64   `json:"base_price"`
	TotalSeats    int       `json:"total_seats"`
}

var (
	flightNumberPattern = regexp.MustCompile(`^[A-Z0-9]{2}\d{1,4}$`)
	airportPattern      = regexp.MustCompile(`^[A-Z]{3}$`)
)

type FlightService struct {
	flights   repository.FlightRepository
	inventory repository.InventoryStore
	seats     repository.SeatMapRepository
	cache     Cache
	log       *zap.Logger

	now  func() time.Time
	rand func() float64
}

func NewFlightService(
	flights repository.FlightRepository,
	inventory repository.InventoryStore,
	seats repository.SeatMapRepository,
	cache Cache,
	log *zap.Logger,
) *FlightService {
	return &FlightService{
		flights:   flights,
		inventory: inventory,
		seats:     seats,
		cache:     cache,
		log:       log,
		now:       time.Now,
		rand:      rand.Float64,
	}
}

func (s *FlightService) Search(ctx context.Context, q repository.FlightQuery) ([]FlightOffer, error) {
	key := searchCacheKey(q)
	if s.cache != nil {
		var cached []FlightOffer
		if hit, err := s.cache.GetSearch(ctx, key, &cached); err == nil && hit {
			return cached, nil
		}
	}

	now := s.now()
	flights, err := s.flights.Search(ctx, q, now)
	if err != nil {
		return nil, err
	}

	offers := make([]FlightOffer, 0, len(flights))
	for _, f := range flights {
		offers = append(offers, FlightOffer{
			Flight:       f,
			CurrentPrice: pricing.Quote(f.BasePrice, f.SeatsRemaining, f.TotalSeats, f.DemandFactor, f.DepartureTime, now),
		})
	}
	if q.Sort == repository.SortByPrice {
		sort.SliceStable(offers, func(i, j int) bool { return offers[i].CurrentPrice < offers[j].CurrentPrice })
	}

	if s.cache != nil {
		if err := s.cache.SetSearch(ctx, key, offers); err != nil {
			s.log.Warn("flight search cache write failed", zap.Error(err))
		}
	}
	return offers, nil
}

func (s *FlightService) GetByID(ctx context.Context, id int64) (*FlightOffer, error) {
	f, err := s.flights.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	now := s.now()
	return &FlightOffer{
		Flight:       *f,
		CurrentPrice: pricing.Quote(f.BasePrice, f.SeatsRemaining, f.TotalSeats, f.DemandFactor, f.DepartureTime, now),
	}, nil
}

func (s *FlightService) SeatMap(ctx context.Context, flightID int64) (*SeatMapView, error) {
	f, err := s.flights.GetByID(ctx, flightID)
	if err != nil {
		return nil, err
	}
	assignments, err := s.seats.ListByFlight(ctx, flightID)
	if err != nil {
		return nil, err
	}

	view := &SeatMapView{
		FlightID:       f.ID,
		TotalSeats:     f.TotalSeats,
		SeatsRemaining: f.SeatsRemaining,
		Occupied:       make([]OccupiedSeat, 0, len(assignments)),
	}
	for _, a := range assignments {
		view.Occupied = append(view.Occupied, OccupiedSeat{SeatNumber: a.SeatNumber, SeatCategory: a.SeatCategory})
	}
	return view, nil
}

func (s *FlightService) PriceHistory(ctx context.Context, flightID int64, limit int) ([]domain.PriceHistoryEntry, error) {
	if _, err := s.flights.GetByID(ctx, flightID); err != nil {
		return nil, err
	}
	return s.inventory.History(ctx, flightID, limit)
}

func (s *FlightService) Create(ctx context.Context, principal domain.Principal, input CreateFlightInput) (*domain.Flight, error) {
	if !principal.IsAdmin() {
		return nil, fmt.Errorf("flight administration requires admin role: %w", domain.ErrForbidden)
	}
	if err := s.validateCreate(&input); err != nil {
		return nil, err
	}

	f := &domain.Flight{
		FlightNumber:  input.FlightNumber,
		Airline:       input.Airline,
		FromAirport:   input.FromAirport,
		ToAirport:     input.ToAirport,
		DepartureTime: input.DepartureTime,
		ArrivalTime:   input.ArrivalTime,
		BasePrice:     input.BasePrice,
		TotalSeats:    input.TotalSeats,
	}
	if err := s.flights.Create(ctx, f); err != nil {
		return nil, err
	}
	s.invalidateCache(ctx)
	s.log.Info("flight created", zap.Int64("flight_id", f.ID), zap.String("flight_number", f.FlightNumber))
	return f, nil
}

func (s *FlightService) validateCreate(input *CreateFlightInput) error {
	input.FlightNumber = strings.ToUpper(strings.TrimSpace(input.FlightNumber))
	input.FromAirport = strings.ToUpper(strings.TrimSpace(input.FromAirport))
	input.ToAirport = strings.ToUpper(strings.TrimSpace(input.ToAirport))
	input.Airline = strings.TrimSpace(input.Airline)

	switch {
	case !flightNumberPattern.MatchString(input.FlightNumber):
		return fmt.Errorf("flight number %q: %w", input.FlightNumber, domain.ErrValidation)
	case input.Airline == "":
		return fmt.Errorf("airline is required: %w", domain.ErrValidation)
	case !airportPattern.MatchString(input.FromAirport):
		return fmt.Errorf("origin airport %q: %w", input.FromAirport, domain.ErrValidation)
	case !airportPattern.MatchString(input.ToAirport):
		return fmt.Errorf("destination airport %q: %w", input.ToAirport, domain.ErrValidation)
	case input.FromAirport == input.ToAirport:
		return fmt.Errorf("origin and destination must differ: %w", domain.ErrValidation)
	case !input.ArrivalTime.After(input.DepartureTime):
		return fmt.Errorf("arrival must be after departure: %w", domain.ErrValidation)
	case !input.DepartureTime.After(s.now()):
		return fmt.Errorf("departure must be in the future: %w", domain.ErrValidation)
	case input.BasePrice <= 0:
		return fmt.Errorf("base price must be positive: %w", domain.ErrValidation)
	case input.TotalSeats <= 0 || input.TotalSeats > 500:
		return fmt.Errorf("total seats must be between 1 and 500: %w", domain.ErrValidation)
	}
	return nil
}

func (s *FlightService) Update(ctx context.Context, principal domain.Principal, id int64, upd domain.FlightUpdate) (*domain.Flight, error) {
	if !principal.IsAdmin() {
		return nil, fmt.Errorf("flight administration requires admin role: %w", domain.ErrForbidden)
	}
	if upd.Empty() {
		return nil, fmt.Errorf("no fields to update: %w", domain.ErrValidation)
	}
	if upd.BasePrice != nil && *upd.BasePrice <= 0 {
		return nil, fmt.Errorf("base price must be positive: %w", domain.ErrValidation)
	}
	if upd.TotalSeats != nil && *upd.TotalSeats <= 0 {
		return nil, fmt.Errorf("total seats must be positive: %w", domain.ErrValidation)
	}
	if upd.Status != nil && !upd.Status.Valid() {
		return nil, fmt.Errorf("flight status %q: %w", *upd.Status, domain.ErrValidation)
	}
	if upd.DepartureTime != nil && upd.ArrivalTime != nil && !upd.ArrivalTime.After(*upd.DepartureTime) {
		return nil, fmt.Errorf("arrival must be after departure: %w", domain.ErrValidation)
	}

	if err := s.flights.ApplyUpdate(ctx, id, upd); err != nil {
		return nil, err
	}
	s.invalidateCache(ctx)
	s.log.Info("flight updated", zap.Int64("flight_id", id))
	return s.flights.GetByID(ctx, id)
}

// RefreshDemand assigns every scheduled flight a fresh random demand
// factor in [0.95, 1.15], rounded to 2 decimals. The draw does not
// depend on the current factor. Returns how many flights were touched.
func (s *FlightService) RefreshDemand(ctx context.Context) (int, error) {
	ids, err := s.flights.ListScheduledIDs(ctx)
	if err != nil {
		return 0, err
	}

	touched := 0
	for _, id := range ids {
		factor := pricing.Round2(0.95 + s.rand()*0.20)
		if err := s.flights.SetDemandFactor(ctx, id, factor); err != nil {
			s.log.Warn("demand refresh failed for flight", zap.Int64("flight_id", id), zap.Error(err))
			continue
		}
		touched++
	}
	if touched > 0 {
		s.invalidateCache(ctx)
	}
	return touched, nil
}

func (s *FlightService) invalidateCache(ctx context.Context) {
	if s.cache == nil {
		return
	}
	if err := s.cache.InvalidateSearches(ctx); err != nil {
		s.log.Warn("flight search cache invalidation failed", zap.Error(err))
	}
}

func searchCacheKey(q repository.FlightQuery) string {
	date := ""
	if !q.Date.IsZero() {
		date = q.Date.Format("2006-01-02")
	}
	return fmt.Sprintf("%s|%s|%s|%s", strings.ToUpper(q.Origin), strings.ToUpper(q.Destination), date, q.Sort)
}

var _ FlightUseCase = (*FlightService)(nil)
