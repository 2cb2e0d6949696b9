package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/Domenick1991/flightbooking/internal/domain"
	"github.com/Domenick1991/flightbooking/internal/service/booking"
	"github.com/Domenick1991/flightbooking/internal/service/cancellation"
)

type mockBookingService struct{ mock.Mock }

func (m *mockBookingService) Checkout(ctx context.Context, principal domain.Principal, input booking.CheckoutInput) (*booking.CheckoutResult, error) {
	args := m.Called(ctx, principal, input)
	if res := args.Get(0); res != nil {
		return res.(*booking.CheckoutResult), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockBookingService) GetByPNR(ctx context.Context, principal domain.Principal, pnr string) (*booking.BookingDetail, error) {
	args := m.Called(ctx, principal, pnr)
	if detail := args.Get(0); detail != nil {
		return detail.(*booking.BookingDetail), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockBookingService) History(ctx context.Context, principal domain.Principal, userID int64) ([]domain.Booking, error) {
	args := m.Called(ctx, principal, userID)
	if bookings := args.Get(0); bookings != nil {
		return bookings.([]domain.Booking), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockBookingService) ListBookings(ctx context.Context, principal domain.Principal, status domain.BookingStatus, limit int) ([]domain.Booking, error) {
	args := m.Called(ctx, principal, status, limit)
	if bookings := args.Get(0); bookings != nil {
		return bookings.([]domain.Booking), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockBookingService) Stats(ctx context.Context, principal domain.Principal) (*booking.AdminStats, error) {
	args := m.Called(ctx, principal)
	if stats := args.Get(0); stats != nil {
		return stats.(*booking.AdminStats), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockBookingService) ExpirePending(ctx context.Context) (int, error) {
	args := m.Called(ctx)
	return args.Int(0), args.Error(1)
}

type mockCancellationService struct{ mock.Mock }

func (m *mockCancellationService) Cancel(ctx context.Context, principal domain.Principal, pnr, reason string) (*cancellation.Receipt, error) {
	args := m.Called(ctx, principal, pnr, reason)
	if receipt := args.Get(0); receipt != nil {
		return receipt.(*cancellation.Receipt), args.Error(1)
	}
	return nil, args.Error(1)
}

func sampleCheckoutInput() booking.CheckoutInput {
	return booking.CheckoutInput{
		FlightID: 1,
		Passengers: []booking.PassengerInput{{
			FullName:     "Asha Rao",
			SeatNumber:   "12A",
			SeatCategory: domain.SeatWindow,
			Category:     domain.PassengerAdult,
		}},
		ContactEmail:  "asha@example.com",
		PaymentMethod: domain.PaymentMethodCard,
	}
}

func TestCheckoutReturnsCreated(t *testing.T) {
	f := newAPIFixture(t)
	f.bookings.On("Checkout", mock.Anything, domain.Principal{UserID: 7, Role: domain.RoleCustomer}, mock.Anything).
		Return(&booking.CheckoutResult{
			PNR:       "PNRA1B2C3D4",
			BookingID: 10,
			Status:    string(domain.BookingStatusConfirmed),
			TotalPaid: 105,
		}, nil)

	rec := f.do(http.MethodPost, "/bookings/", "customer-token", sampleCheckoutInput())

	require.Equal(t, http.StatusCreated, rec.Code)
	var result booking.CheckoutResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "PNRA1B2C3D4", result.PNR)
	f.bookings.AssertExpectations(t)
}

func TestCheckoutRequiresAuth(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(http.MethodPost, "/bookings/", "", sampleCheckoutInput())

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	f.bookings.AssertNotCalled(t, "Checkout", mock.Anything, mock.Anything, mock.Anything)
}

func TestCheckoutErrorMapping(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		body   string
	}{
		{"validation", fmt.Errorf("1 passengers: %w", domain.ErrValidation), http.StatusBadRequest, "passengers"},
		{"capacity", fmt.Errorf("2 seats left: %w", domain.ErrCapacity), http.StatusConflict, "seats left"},
		{"seat taken", fmt.Errorf("seat 12A taken: %w", domain.ErrConflict), http.StatusConflict, "12A"},
		{"declined", fmt.Errorf("card declined: %w", domain.ErrPaymentDeclined), http.StatusPaymentRequired, "declined"},
		{"transient", fmt.Errorf("deadlock: %w", domain.ErrTransient), http.StatusServiceUnavailable, "deadlock"},
		{"unknown", errors.New("pool exhausted"), http.StatusInternalServerError, "internal error"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			f := newAPIFixture(t)
			f.bookings.On("Checkout", mock.Anything, mock.Anything, mock.Anything).Return(nil, tc.err)

			rec := f.do(http.MethodPost, "/bookings/", "customer-token", sampleCheckoutInput())

			assert.Equal(t, tc.status, rec.Code)
			assert.Contains(t, rec.Body.String(), tc.body)
		})
	}
}

func TestInternalErrorsAreNotLeaked(t *testing.T) {
	f := newAPIFixture(t)
	f.bookings.On("Checkout", mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("dial tcp 10.0.0.5:5432: connection refused"))

	rec := f.do(http.MethodPost, "/bookings/", "customer-token", sampleCheckoutInput())

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "10.0.0.5")
}

func TestHistoryDefaultsToCaller(t *testing.T) {
	f := newAPIFixture(t)
	f.bookings.On("History", mock.Anything, mock.Anything, int64(7)).Return([]domain.Booking{}, nil)

	rec := f.do(http.MethodGet, "/bookings/", "customer-token", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	f.bookings.AssertExpectations(t)
}

func TestHistoryHonoursUserIDQuery(t *testing.T) {
	f := newAPIFixture(t)
	f.bookings.On("History", mock.Anything, mock.Anything, int64(42)).
		Return(nil, fmt.Errorf("not your bookings: %w", domain.ErrForbidden))

	rec := f.do(http.MethodGet, "/bookings/?user_id=42", "customer-token", nil)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	f.bookings.AssertExpectations(t)
}

func TestCancelReturnsReceipt(t *testing.T) {
	f := newAPIFixture(t)
	f.cancellations.On("Cancel", mock.Anything, mock.Anything, "PNRA1B2C3D4", "change of plans").
		Return(&cancellation.Receipt{
			PNR:          "PNRA1B2C3D4",
			PricePaid:    200,
			RefundAmount: 160,
			RefundPolicy: "48-72 hours before departure",
		}, nil)

	rec := f.do(http.MethodDelete, "/bookings/PNRA1B2C3D4", "customer-token",
		map[string]string{"reason": "change of plans"})

	require.Equal(t, http.StatusOK, rec.Code)
	var receipt cancellation.Receipt
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &receipt))
	assert.Equal(t, 160.0, receipt.RefundAmount)
	f.cancellations.AssertExpectations(t)
}

func confirmedDetail() *booking.BookingDetail {
	return &booking.BookingDetail{
		Booking: domain.Booking{
			ID:               10,
			UserID:           7,
			FlightID:         1,
			PNR:              "PNRA1B2C3D4",
			PricePaid:        105,
			Status:           domain.BookingStatusConfirmed,
			PaymentReference: "PAY_0011223344556677",
		},
		Seats: []domain.SeatAssignment{{
			BookingID:  10,
			FlightID:   1,
			SeatNumber: "12A",
			FullName:   "Asha Rao",
			Category:   domain.PassengerAdult,
		}},
	}
}

func TestTicketDownload(t *testing.T) {
	f := newAPIFixture(t)
	f.bookings.On("GetByPNR", mock.Anything, mock.Anything, "PNRA1B2C3D4").Return(confirmedDetail(), nil)
	f.flights.On("GetByID", mock.Anything, int64(1)).Return(sampleOffer(), nil)

	rec := f.do(http.MethodGet, "/bookings/PNRA1B2C3D4/ticket", "customer-token", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Disposition"), "ticket_PNRA1B2C3D4.txt")
	body := rec.Body.String()
	assert.Contains(t, body, "E-TICKET")
	assert.Contains(t, body, "PNRA1B2C3D4")
	assert.Contains(t, body, "DEL -> BOM")
	assert.Contains(t, body, "Asha Rao")
}

func TestTicketRequiresConfirmedBooking(t *testing.T) {
	f := newAPIFixture(t)
	detail := confirmedDetail()
	detail.Booking.Status = domain.BookingStatusPending
	f.bookings.On("GetByPNR", mock.Anything, mock.Anything, "PNRA1B2C3D4").Return(detail, nil)

	rec := f.do(http.MethodGet, "/bookings/PNRA1B2C3D4/ticket", "customer-token", nil)

	assert.Equal(t, http.StatusConflict, rec.Code)
	f.flights.AssertNotCalled(t, "GetByID", mock.Anything, mock.Anything)
}

func TestReceiptDownload(t *testing.T) {
	f := newAPIFixture(t)
	offer := sampleOffer()
	cancelledAt := offer.DepartureTime.Add(-60 * time.Hour)
	refund := 84.0
	detail := confirmedDetail()
	detail.Booking.Status = domain.BookingStatusCancelled
	detail.Booking.CancellationDate = &cancelledAt
	detail.Booking.RefundAmount = &refund
	f.bookings.On("GetByPNR", mock.Anything, mock.Anything, "PNRA1B2C3D4").Return(detail, nil)
	f.flights.On("GetByID", mock.Anything, int64(1)).Return(offer, nil)

	rec := f.do(http.MethodGet, "/bookings/PNRA1B2C3D4/receipt", "customer-token", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	body := rec.Body.String()
	assert.Contains(t, body, "CANCELLATION RECEIPT")
	assert.Contains(t, body, "48-72 hours before departure")
	assert.Contains(t, body, "84.00")
}

func TestReceiptRequiresCancelledBooking(t *testing.T) {
	f := newAPIFixture(t)
	f.bookings.On("GetByPNR", mock.Anything, mock.Anything, "PNRA1B2C3D4").Return(confirmedDetail(), nil)

	rec := f.do(http.MethodGet, "/bookings/PNRA1B2C3D4/receipt", "customer-token", nil)

	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestAdminStats(t *testing.T) {
	f := newAPIFixture(t)
	f.bookings.On("Stats", mock.Anything, domain.Principal{UserID: 1, Role: domain.RoleAdmin}).
		Return(&booking.AdminStats{ConfirmedBookings: 3, TotalRevenue: 615.5}, nil)

	rec := f.do(http.MethodGet, "/admin/stats", "admin-token", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	var stats booking.AdminStats
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &stats))
	assert.Equal(t, 615.5, stats.TotalRevenue)
}

func TestAdminEndpointsForbiddenForCustomers(t *testing.T) {
	f := newAPIFixture(t)

	rec := f.do(http.MethodGet, "/admin/stats", "customer-token", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = f.do(http.MethodGet, "/admin/bookings", "customer-token", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	f.bookings.AssertNotCalled(t, "Stats", mock.Anything, mock.Anything)
}

func TestAdminListPassesFilters(t *testing.T) {
	f := newAPIFixture(t)
	f.bookings.On("ListBookings", mock.Anything, mock.Anything, domain.BookingStatusPending, 20).
		Return([]domain.Booking{}, nil)

	rec := f.do(http.MethodGet, "/admin/bookings?status=PENDING&limit=20", "admin-token", nil)

	assert.Equal(t, http.StatusOK, rec.Code)
	f.bookings.AssertExpectations(t)
}
