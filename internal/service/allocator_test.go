package service

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/iliyamo/ticket-gate/internal/model"
	"github.com/iliyamo/ticket-gate/internal/repository"
)

func seatedAllocFixture(seatCount int) (*fakeBookings, *fakeSeats) {
	bookings := &fakeBookings{bookings: map[uint64]model.Booking{
		100: {ID: 100, EventID: 7, Quantity: 4, PaymentStatus: model.PaymentPaid},
		101: {ID: 101, EventID: 7, Quantity: 4, PaymentStatus: model.PaymentPaid},
	}}
	seats := &fakeSeats{}
	for i := 1; i <= seatCount; i++ {
		section := "FLOOR"
		if i%2 == 0 {
			section = "BALCONY"
		}
		seats.seats = append(seats.seats, model.Seat{
			ID: uint64(i), EventID: 7, Section: section,
			SeatNumber: uint32(i), Status: model.SeatAvailable,
		})
	}
	return bookings, seats
}

func TestAllocateSeatsReservesRequestedQuantity(t *testing.T) {
	bookings, seats := seatedAllocFixture(6)
	a := NewAllocator(bookings, seats)

	got, err := a.AllocateSeats(context.Background(), 100, 7, 3, "")
	if err != nil {
		t.Fatalf("AllocateSeats: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("allocated %d seats, want 3", len(got))
	}
	for _, s := range got {
		if s.Status != model.SeatBooked || s.BookingID == nil || *s.BookingID != 100 {
			t.Errorf("seat %d not booked for the booking: %+v", s.ID, s)
		}
	}
}

func TestAllocateSeatsPrefersSection(t *testing.T) {
	bookings, seats := seatedAllocFixture(6)
	a := NewAllocator(bookings, seats)

	got, err := a.AllocateSeats(context.Background(), 100, 7, 2, "BALCONY")
	if err != nil {
		t.Fatalf("AllocateSeats: %v", err)
	}
	for _, s := range got {
		if s.Section != "BALCONY" {
			t.Errorf("seat %d section = %s, want BALCONY", s.ID, s.Section)
		}
	}
}

func TestAllocateSeatsFallsBackAcrossSections(t *testing.T) {
	bookings, seats := seatedAllocFixture(6) // 3 per section
	a := NewAllocator(bookings, seats)

	got, err := a.AllocateSeats(context.Background(), 100, 7, 4, "BALCONY")
	if err != nil {
		t.Fatalf("AllocateSeats: %v", err)
	}
	balcony := 0
	for _, s := range got {
		if s.Section == "BALCONY" {
			balcony++
		}
	}
	// All three balcony seats first, then one from elsewhere.
	if balcony != 3 || len(got) != 4 {
		t.Fatalf("got %d seats (%d balcony), want 4 with 3 balcony", len(got), balcony)
	}
}

func TestAllocateSeatsInsufficientInventory(t *testing.T) {
	bookings, seats := seatedAllocFixture(1)
	a := NewAllocator(bookings, seats)

	_, err := a.AllocateSeats(context.Background(), 100, 7, 2, "")
	var ise *repository.InsufficientSeatsError
	if !errors.As(err, &ise) {
		t.Fatalf("expected InsufficientSeatsError, got %v", err)
	}
	if ise.Requested != 2 || ise.Available != 1 {
		t.Fatalf("shortfall = %+v, want requested 2 available 1", ise)
	}
	// Nothing may be held after a failed allocation.
	for _, s := range seats.seats {
		if s.Status != model.SeatAvailable || s.BookingID != nil {
			t.Fatalf("seat %d mutated by failed allocation: %+v", s.ID, s)
		}
	}
}

func TestAllocateSeatsConcurrentBookingsNeverOverlap(t *testing.T) {
	bookings, seats := seatedAllocFixture(2)
	a := NewAllocator(bookings, seats)

	var wg sync.WaitGroup
	results := make([][]model.Seat, 2)
	errs := make([]error, 2)
	for i, bid := range []uint64{100, 101} {
		wg.Add(1)
		go func(i int, bid uint64) {
			defer wg.Done()
			results[i], errs[i] = a.AllocateSeats(context.Background(), bid, 7, 2, "")
		}(i, bid)
	}
	wg.Wait()

	// Two seats, two requests for both: one booking wins the pair, the
	// other sees an empty pool.
	var winner []model.Seat
	var ise *repository.InsufficientSeatsError
	switch {
	case errs[0] == nil && errors.As(errs[1], &ise):
		winner = results[0]
	case errs[1] == nil && errors.As(errs[0], &ise):
		winner = results[1]
	default:
		t.Fatalf("expected one success and one shortfall, got %v / %v", errs[0], errs[1])
	}
	if len(winner) != 2 {
		t.Fatalf("winner holds %d seats, want 2", len(winner))
	}
	if ise.Requested != 2 || ise.Available != 0 {
		t.Fatalf("loser shortfall = %+v, want requested 2 available 0", ise)
	}
	seen := map[uint64]bool{}
	for _, s := range winner {
		if seen[s.ID] {
			t.Fatalf("seat %d allocated twice", s.ID)
		}
		seen[s.ID] = true
	}
}

func TestAllocateSeatsRejectsWrongEvent(t *testing.T) {
	bookings, seats := seatedAllocFixture(4)
	a := NewAllocator(bookings, seats)

	if _, err := a.AllocateSeats(context.Background(), 100, 8, 1, ""); !errors.Is(err, repository.ErrConflict) {
		t.Fatalf("expected ErrConflict for mismatched event, got %v", err)
	}
}

func TestAllocateSeatsRejectsOverBookingQuantity(t *testing.T) {
	bookings, seats := seatedAllocFixture(8)
	a := NewAllocator(bookings, seats)

	if _, err := a.AllocateSeats(context.Background(), 100, 7, 5, ""); err == nil {
		t.Fatal("expected error when requesting more seats than the booking covers")
	}
}

func TestAllocateSeatsRejectsNonPositiveQuantity(t *testing.T) {
	bookings, seats := seatedAllocFixture(4)
	a := NewAllocator(bookings, seats)

	if _, err := a.AllocateSeats(context.Background(), 100, 7, 0, ""); err == nil {
		t.Fatal("expected error for zero quantity")
	}
}

func TestReleaseReturnsSeatsToPool(t *testing.T) {
	bookings, seats := seatedAllocFixture(4)
	a := NewAllocator(bookings, seats)

	if _, err := a.AllocateSeats(context.Background(), 100, 7, 3, ""); err != nil {
		t.Fatalf("AllocateSeats: %v", err)
	}
	n, err := a.Release(context.Background(), 100)
	if err != nil {
		t.Fatalf("Release: %v", err)
	}
	if n != 3 {
		t.Fatalf("released %d seats, want 3", n)
	}
	for _, s := range seats.seats {
		if s.Status != model.SeatAvailable || s.BookingID != nil {
			t.Fatalf("seat %d still held after release: %+v", s.ID, s)
		}
	}
}
