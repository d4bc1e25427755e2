package service

import (
	"context"
	"fmt"

	"github.com/iliyamo/ticket-gate/internal/model"
	"github.com/iliyamo/ticket-gate/internal/repository"
)

// Allocator reserves seat inventory for bookings.  The atomicity
// guarantees live in the seat store; this layer validates the request
// against the booking before touching inventory.
type Allocator struct {
	Bookings BookingStore
	Seats    SeatStore
}

// NewAllocator constructs an Allocator.
func NewAllocator(bookings BookingStore, seats SeatStore) *Allocator {
	if bookings == nil || seats == nil {
		panic("nil store passed to NewAllocator")
	}
	return &Allocator{Bookings: bookings, Seats: seats}
}

// AllocateSeats reserves qty seats for the booking, preferring the
// given section when non-empty.  The booking must exist and belong to
// the event.  On shortfall the underlying store aborts with
// *repository.InsufficientSeatsError and zero side effects.
func (a *Allocator) AllocateSeats(ctx context.Context, bookingID, eventID uint64, qty int, preferredSection string) ([]model.Seat, error) {
	if qty <= 0 {
		return nil, fmt.Errorf("quantity must be positive, got %d", qty)
	}
	booking, err := a.Bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	if booking.EventID != eventID {
		return nil, repository.ErrConflict
	}
	if int(booking.Quantity) < qty {
		return nil, fmt.Errorf("booking %d covers %d admissions, cannot allocate %d seats",
			bookingID, booking.Quantity, qty)
	}
	return a.Seats.Allocate(ctx, bookingID, eventID, qty, preferredSection)
}

// Release returns all seats held by the booking to the pool.  It is
// the compensating action for booking cancellation and for issuance
// failures after seats were reserved.
func (a *Allocator) Release(ctx context.Context, bookingID uint64) (int, error) {
	return a.Seats.ReleaseByBooking(ctx, bookingID)
}
