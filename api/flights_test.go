package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/Domenick1991/flightbooking/internal/domain"
	"github.com/Domenick1991/flightbooking/internal/repository"
	"github.com/Domenick1991/flightbooking/internal/service/booking"
	"github.com/Domenick1991/flightbooking/internal/service/cancellation"
	"github.com/Domenick1991/flightbooking/internal/service/flights"
	"github.com/Domenick1991/flightbooking/internal/ticket"
)

type mockFlightService struct{ mock.Mock }

func (m *mockFlightService) Search(ctx context.Context, q repository.FlightQuery) ([]flights.FlightOffer, error) {
	args := m.Called(ctx, q)
	if offers := args.Get(0); offers != nil {
		return offers.([]flights.FlightOffer), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockFlightService) GetByID(ctx context.Context, id int64) (*flights.FlightOffer, error) {
	args := m.Called(ctx, id)
	if offer := args.Get(0); offer != nil {
		return offer.(*flights.FlightOffer), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockFlightService) SeatMap(ctx context.Context, flightID int64) (*flights.SeatMapView, error) {
	args := m.Called(ctx, flightID)
	if view := args.Get(0); view != nil {
		return view.(*flights.SeatMapView), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockFlightService) PriceHistory(ctx context.Context, flightID int64, limit int) ([]domain.PriceHistoryEntry, error) {
	args := m.Called(ctx, flightID, limit)
	if entries := args.Get(0); entries != nil {
		return entries.([]domain.PriceHistoryEntry), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockFlightService) Create(ctx context.Context, principal domain.Principal, input flights.CreateFlightInput) (*domain.Flight, error) {
	args := m.Called(ctx, principal, input)
	if f := args.Get(0); f != nil {
		return f.(*domain.Flight), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockFlightService) Update(ctx context.Context, principal domain.Principal, id int64, upd domain.FlightUpdate) (*domain.Flight, error) {
	args := m.Called(ctx, principal, id, upd)
	if f := args.Get(0); f != nil {
		return f.(*domain.Flight), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockFlightService) RefreshDemand(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

// stubVerifier maps bearer tokens directly to principals.
type stubVerifier struct{ principals map[string]domain.Principal }

func (v stubVerifier) Verify(token string) (*domain.Principal, error) {
	p, ok := v.principals[token]
	if !ok {
		return nil, fmt.Errorf("unknown token: %w", domain.ErrForbidden)
	}
	return &p, nil
}

type apiFixture struct {
	router        *gin.Engine
	flights       *mockFlightService
	bookings      *mockBookingService
	cancellations *mockCancellationService
}

func newAPIFixture(t *testing.T) *apiFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	f := &apiFixture{
		flights:       &mockFlightService{},
		bookings:      &mockBookingService{},
		cancellations: &mockCancellationService{},
	}
	verifier := stubVerifier{principals: map[string]domain.Principal{
		"customer-token": {UserID: 7, Role: domain.RoleCustomer},
		"admin-token":    {UserID: 1, Role: domain.RoleAdmin},
	}}
	f.router = NewRouter(
		NewFlightHandler(f.flights),
		NewBookingHandler(f.bookings, f.cancellations, f.flights, ticket.NewGenerator()),
		verifier,
		zap.NewNop(),
	)
	return f
}

func (f *apiFixture) do(method, path, token string, body interface{}) *httptest.ResponseRecorder {
	var reader *bytes.Reader
	if body != nil {
		raw, _ := json.Marshal(body)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func sampleOffer() *flights.FlightOffer {
	return &flights.FlightOffer{
		Flight: domain.Flight{
			ID:             1,
			FlightNumber:   "AI202",
			Airline:        "Air India",
			FromAirport:    "DEL",
			ToAirport:      "BOM",
			DepartureTime:  time.Date(2026, 9, 1, 10, 0, 0, 0, time.UTC),
			ArrivalTime:    time.Date(2026, 9, 1, 12, 15, 0, 0, time.UTC),
			BasePrice:      100,
			TotalSeats:     180,
			SeatsRemaining: 120,
			DemandFactor:   1.0,
			Status:         domain.FlightStatusScheduled,
		},
		CurrentPrice: 105,
	}
}

func TestSearchFlights(t *testing.T) {
	f := newAPIFixture(t)
	f.flights.On("Search", mock.Anything, repository.FlightQuery{Origin: "DEL", Destination: "BOM", Sort: repository.SortByDeparture}).
		Return([]flights.FlightOffer{*sampleOffer()}, nil)

	rec := f.do(http.MethodGet, "/flights/?from=DEL&to=BOM", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var offers []flights.FlightOffer
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &offers))
	require.Len(t, offers, 1)
	assert.Equal(t, "AI202", offers[0].FlightNumber)
	assert.Equal(t, 105.0, offers[0].CurrentPrice)
	f.flights.AssertExpectations(t)
}

func TestSearchFlightsRejectsBadDate(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(http.MethodGet, "/flights/?date=01-09-2026", "", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	f.flights.AssertNotCalled(t, "Search", mock.Anything, mock.Anything)
}

func TestGetFlightNotFound(t *testing.T) {
	f := newAPIFixture(t)
	f.flights.On("GetByID", mock.Anything, int64(99)).
		Return(nil, fmt.Errorf("flight 99: %w", domain.ErrNotFound))

	rec := f.do(http.MethodGet, "/flights/99", "", nil)

	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGetFlightInvalidID(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(http.MethodGet, "/flights/abc", "", nil)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestSeatMapEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	f.flights.On("SeatMap", mock.Anything, int64(1)).Return(&flights.SeatMapView{
		FlightID:       1,
		TotalSeats:     180,
		SeatsRemaining: 179,
		Occupied:       []flights.OccupiedSeat{{SeatNumber: "12A", SeatCategory: domain.SeatWindow}},
	}, nil)

	rec := f.do(http.MethodGet, "/flights/1/seatmap", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var view flights.SeatMapView
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &view))
	assert.Equal(t, 179, view.SeatsRemaining)
	require.Len(t, view.Occupied, 1)
	assert.Equal(t, "12A", view.Occupied[0].SeatNumber)
}

func TestPriceHistoryEndpoint(t *testing.T) {
	f := newAPIFixture(t)
	f.flights.On("PriceHistory", mock.Anything, int64(1), 50).
		Return([]domain.PriceHistoryEntry{{FlightID: 1, RecordedPrice: 110, SeatsRemaining: 119}}, nil)

	rec := f.do(http.MethodGet, "/flights/1/history", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	f.flights.AssertExpectations(t)
}

func TestCreateFlightRequiresAdmin(t *testing.T) {
	f := newAPIFixture(t)
	input := flights.CreateFlightInput{FlightNumber: "AI202"}

	rec := f.do(http.MethodPost, "/admin/flights/", "", input)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = f.do(http.MethodPost, "/admin/flights/", "customer-token", input)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	f.flights.AssertNotCalled(t, "Create", mock.Anything, mock.Anything, mock.Anything)
}

func TestCreateFlight(t *testing.T) {
	f := newAPIFixture(t)
	offer := sampleOffer()
	f.flights.On("Create", mock.Anything, domain.Principal{UserID: 1, Role: domain.RoleAdmin}, mock.Anything).
		Return(&offer.Flight, nil)

	rec := f.do(http.MethodPost, "/admin/flights/", "admin-token", flights.CreateFlightInput{
		FlightNumber:  "AI202",
		Airline:       "Air India",
		FromAirport:   "DEL",
		ToAirport:     "BOM",
		DepartureTime: offer.DepartureTime,
		ArrivalTime:   offer.ArrivalTime,
		BasePrice:     100,
		TotalSeats:    180,
	})

	assert.Equal(t, http.StatusCreated, rec.Code)
	f.flights.AssertExpectations(t)
}

func TestUpdateFlightPartialPatch(t *testing.T) {
	f := newAPIFixture(t)
	offer := sampleOffer()
	f.flights.On("Update", mock.Anything, mock.Anything, int64(1),
		mock.MatchedBy(func(upd domain.FlightUpdate) bool {
			return upd.BasePrice != nil && *upd.BasePrice == 150 &&
				upd.Airline == nil && upd.Status != nil && *upd.Status == domain.FlightStatusCancelled
		})).Return(&offer.Flight, nil)

	rec := f.do(http.MethodPatch, "/admin/flights/1", "admin-token",
		map[string]interface{}{"base_price": 150, "status": "CANCELLED"})

	assert.Equal(t, http.StatusOK, rec.Code)
	f.flights.AssertExpectations(t)
}

func TestHealthz(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(http.MethodGet, "/healthz", "", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
}

var (
	_ flights.FlightUseCase            = (*mockFlightService)(nil)
	_ booking.BookingUseCase           = (*mockBookingService)(nil)
	_ cancellation.CancellationUseCase = (*mockCancellationService)(nil)
)
