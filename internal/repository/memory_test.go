package repository

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Domenick1991/flightbooking/internal/domain"
)

func fixedClock(t time.Time) func() time.Time {
	return func() time.Time { return t }
}

func seedFlight(t *testing.T, store *MemoryStore, number string, totalSeats int) *domain.Flight {
	t.Helper()
	f := &domain.Flight{
		FlightNumber:  number,
		Airline:       "IndiGo",
		FromAirport:   "DEL",
		ToAirport:     "BOM",
		DepartureTime: time.Now().Add(96 * time.Hour),
		ArrivalTime:   time.Now().Add(98 * time.Hour),
		BasePrice:     100,
		TotalSeats:    totalSeats,
	}
	require.NoError(t, store.FlightRepo().Create(context.Background(), f))
	return f
}

func TestReserveNeverOversells(t *testing.T) {
	store := NewMemoryStore()
	f := seedFlight(t, store, "AI101", 10)

	const workers = 50
	var wg sync.WaitGroup
	var mu sync.Mutex
	succeeded := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := store.Reserve(context.Background(), f.ID, 1)
			if err == nil {
				mu.Lock()
				succeeded++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, domain.ErrCapacity)
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, succeeded)

	got, err := store.GetByID(context.Background(), f.ID)
	require.NoError(t, err)
	assert.Equal(t, 0, got.SeatsRemaining)
	assert.Equal(t, 1.6, got.DemandFactor)
}

func TestReserveRejectsOversizedGroup(t *testing.T) {
	store := NewMemoryStore()
	f := seedFlight(t, store, "AI102", 3)

	_, err := store.Reserve(context.Background(), f.ID, 4)
	assert.ErrorIs(t, err, domain.ErrCapacity)

	got, err := store.GetByID(context.Background(), f.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, got.SeatsRemaining)
}

func TestReleaseClampsAtTotal(t *testing.T) {
	store := NewMemoryStore()
	f := seedFlight(t, store, "AI103", 5)

	_, err := store.Reserve(context.Background(), f.ID, 2)
	require.NoError(t, err)

	snap, err := store.Release(context.Background(), f.ID, 10)
	require.NoError(t, err)
	assert.Equal(t, 5, snap.SeatsRemaining)
	assert.Equal(t, 1.0, snap.DemandFactor)
}

func TestReleaseZeroIsNoOp(t *testing.T) {
	store := NewMemoryStore()
	f := seedFlight(t, store, "AI104", 5)

	_, err := store.Reserve(context.Background(), f.ID, 2)
	require.NoError(t, err)

	before, err := store.History(context.Background(), f.ID, 0)
	require.NoError(t, err)

	snap, err := store.Release(context.Background(), f.ID, 0)
	require.NoError(t, err)
	assert.Equal(t, 3, snap.SeatsRemaining)

	after, err := store.History(context.Background(), f.ID, 0)
	require.NoError(t, err)
	assert.Len(t, after, len(before), "no history entry for a zero release")
}

func TestInventoryChangeAppendsHistory(t *testing.T) {
	store := NewMemoryStore()
	f := seedFlight(t, store, "AI105", 10)

	_, err := store.Reserve(context.Background(), f.ID, 1)
	require.NoError(t, err)
	_, err = store.Release(context.Background(), f.ID, 1)
	require.NoError(t, err)

	entries, err := store.History(context.Background(), f.ID, 10)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	// Newest first.
	assert.Equal(t, 10, entries[0].SeatsRemaining)
	assert.Equal(t, 9, entries[1].SeatsRemaining)
	assert.Greater(t, entries[0].RecordedPrice, 0.0)
}

func TestSeatAssignmentUniquePerFlight(t *testing.T) {
	store := NewMemoryStore()
	f := seedFlight(t, store, "AI106", 10)

	const workers = 20
	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(bookingID int64) {
			defer wg.Done()
			err := store.Assign(context.Background(), &domain.SeatAssignment{
				BookingID:    bookingID,
				FlightID:     f.ID,
				SeatNumber:   "12A",
				SeatCategory: domain.SeatWindow,
				FullName:     "Asha Verma",
				Category:     domain.PassengerAdult,
			})
			if err == nil {
				mu.Lock()
				winners++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, domain.ErrConflict)
		}(int64(i + 1))
	}
	wg.Wait()

	assert.Equal(t, 1, winners)
}

func TestSeatReuseAfterRelease(t *testing.T) {
	store := NewMemoryStore()
	f := seedFlight(t, store, "AI107", 10)

	assignment := &domain.SeatAssignment{
		BookingID: 1, FlightID: f.ID, SeatNumber: "1A",
		SeatCategory: domain.SeatWindow, FullName: "Ravi Iyer", Category: domain.PassengerAdult,
	}
	require.NoError(t, store.Assign(context.Background(), assignment))

	n, err := store.ReleaseAll(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	// Released seat is claimable again.
	again := &domain.SeatAssignment{
		BookingID: 2, FlightID: f.ID, SeatNumber: "1A",
		SeatCategory: domain.SeatWindow, FullName: "Meera Nair", Category: domain.PassengerAdult,
	}
	assert.NoError(t, store.Assign(context.Background(), again))

	// Second release finds nothing.
	n, err = store.ReleaseAll(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 0, n)
}

func TestBookingTransitionsAreConditional(t *testing.T) {
	store := NewMemoryStore()
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	store.Now = fixedClock(now)

	b := &domain.Booking{
		UserID: 7, FlightID: 1, PNR: "PNRAB12CD34", PricePaid: 210,
		Status: domain.BookingStatusPending, ContactEmail: "a@b.c", ContactPhone: "+911234567890",
		BookingDate: now,
	}
	require.NoError(t, store.BookingRepo().Create(context.Background(), b))

	ok, err := store.Confirm(context.Background(), b.ID, "PAY_ABC")
	require.NoError(t, err)
	assert.True(t, ok)

	// Already confirmed: both re-confirm and expire are no-ops.
	ok, err = store.Confirm(context.Background(), b.ID, "PAY_DEF")
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = store.CancelPending(context.Background(), b.ID, now)
	require.NoError(t, err)
	assert.False(t, ok)

	ok, err = store.CancelConfirmed(context.Background(), b.ID, 168, now)
	require.NoError(t, err)
	assert.True(t, ok)

	got, err := store.GetByPNR(context.Background(), b.PNR)
	require.NoError(t, err)
	assert.Equal(t, domain.BookingStatusCancelled, got.Status)
	require.NotNil(t, got.RefundAmount)
	assert.Equal(t, 168.0, *got.RefundAmount)

	// Cancelled booking cannot be cancelled again.
	ok, err = store.CancelConfirmed(context.Background(), b.ID, 168, now)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestConfirmRacesCancelPending(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now()

	for i := 0; i < 50; i++ {
		b := &domain.Booking{
			UserID: 1, FlightID: 1, PNR: "PNRRACE" + itoa(i),
			Status: domain.BookingStatusPending, ContactEmail: "a@b.c", ContactPhone: "1", BookingDate: now,
		}
		require.NoError(t, store.BookingRepo().Create(context.Background(), b))

		var wg sync.WaitGroup
		var confirmed, expired bool
		wg.Add(2)
		go func() {
			defer wg.Done()
			ok, err := store.Confirm(context.Background(), b.ID, "PAY_X")
			require.NoError(t, err)
			confirmed = ok
		}()
		go func() {
			defer wg.Done()
			ok, err := store.CancelPending(context.Background(), b.ID, now)
			require.NoError(t, err)
			expired = ok
		}()
		wg.Wait()

		assert.NotEqual(t, confirmed, expired, "exactly one transition must win")
	}
}

func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	var buf []byte
	for n > 0 {
		buf = append([]byte{byte('0' + n%10)}, buf...)
		n /= 10
	}
	return string(buf)
}

func TestListStalePendingHonoursCutoff(t *testing.T) {
	store := NewMemoryStore()
	base := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)

	old := &domain.Booking{UserID: 1, FlightID: 1, PNR: "PNROLD00001", Status: domain.BookingStatusPending, ContactEmail: "a@b.c", ContactPhone: "1", BookingDate: base.Add(-20 * time.Minute)}
	fresh := &domain.Booking{UserID: 1, FlightID: 1, PNR: "PNRNEW00001", Status: domain.BookingStatusPending, ContactEmail: "a@b.c", ContactPhone: "1", BookingDate: base.Add(-5 * time.Minute)}
	require.NoError(t, store.BookingRepo().Create(context.Background(), old))
	require.NoError(t, store.BookingRepo().Create(context.Background(), fresh))

	stale, err := store.ListStalePending(context.Background(), base.Add(-15*time.Minute))
	require.NoError(t, err)
	require.Len(t, stale, 1)
	assert.Equal(t, "PNROLD00001", stale[0].PNR)
}

func TestDeleteCascades(t *testing.T) {
	store := NewMemoryStore()
	f := seedFlight(t, store, "AI108", 10)

	b := &domain.Booking{UserID: 1, FlightID: f.ID, PNR: "PNRDEL00001", Status: domain.BookingStatusPending, ContactEmail: "a@b.c", ContactPhone: "1", BookingDate: time.Now()}
	require.NoError(t, store.BookingRepo().Create(context.Background(), b))
	require.NoError(t, store.Assign(context.Background(), &domain.SeatAssignment{BookingID: b.ID, FlightID: f.ID, SeatNumber: "2B", SeatCategory: domain.SeatMiddle, FullName: "X", Category: domain.PassengerAdult}))
	require.NoError(t, store.PaymentRepo().Create(context.Background(), &domain.Payment{BookingID: b.ID, Reference: "PAY_1", Method: domain.PaymentMethodCard, Amount: 100, Status: domain.PaymentStatusFailed, PaidAt: time.Now()}))

	require.NoError(t, store.Delete(context.Background(), b.ID))

	_, err := store.GetByPNR(context.Background(), b.PNR)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	seats, err := store.ListByBooking(context.Background(), b.ID)
	require.NoError(t, err)
	assert.Empty(t, seats)

	_, err = store.GetByBooking(context.Background(), b.ID)
	assert.True(t, errors.Is(err, domain.ErrNotFound))
}

func TestStatsCountsConfirmedOnly(t *testing.T) {
	store := NewMemoryStore()
	now := time.Now()

	mk := func(pnr string, status domain.BookingStatus, price float64) {
		b := &domain.Booking{UserID: 1, FlightID: 1, PNR: pnr, PricePaid: price, Status: status, ContactEmail: "a@b.c", ContactPhone: "1", BookingDate: now}
		require.NoError(t, store.BookingRepo().Create(context.Background(), b))
	}
	mk("PNRSTAT0001", domain.BookingStatusConfirmed, 100.50)
	mk("PNRSTAT0002", domain.BookingStatusConfirmed, 200.25)
	mk("PNRSTAT0003", domain.BookingStatusPending, 999)
	mk("PNRSTAT0004", domain.BookingStatusCancelled, 999)

	stats, err := store.Stats(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 2, stats.ConfirmedBookings)
	assert.Equal(t, 300.75, stats.TotalRevenue)
}
