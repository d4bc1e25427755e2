// Package service implements the ticket issuance, seat allocation and
// check-in validation flows on top of the repository layer.  Services
// depend on narrow store interfaces rather than concrete repositories
// so the state-machine logic can be exercised against in-memory fakes.
package service

import (
	"context"
	"time"

	"github.com/iliyamo/ticket-gate/internal/model"
)

// EventStore reads events.
type EventStore interface {
	GetByID(ctx context.Context, id uint64) (*model.Event, error)
}

// BookingStore reads bookings.
type BookingStore interface {
	GetByID(ctx context.Context, id uint64) (*model.Booking, error)
}

// SeatStore allocates and releases seat inventory.  Allocate must be
// atomic: concurrent calls never hand out overlapping seats, and a
// shortfall leaves no seat touched.
type SeatStore interface {
	Allocate(ctx context.Context, bookingID, eventID uint64, qty int, preferredSection string) ([]model.Seat, error)
	ReleaseByBooking(ctx context.Context, bookingID uint64) (int, error)
	ListByBooking(ctx context.Context, bookingID uint64) ([]model.Seat, error)
}

// TicketStore persists tickets and owns the check-in transition.
// Create enforces uniqueness of (booking_id, unit_index) and reports a
// taken slot as ErrDuplicateUnit.  CheckIn returns false without error
// when the VALID -> USED swap lost to a concurrent scan.
type TicketStore interface {
	Create(ctx context.Context, t *model.Ticket) error
	SetCredential(ctx context.Context, ticketID uint64, cred string) error
	GetByID(ctx context.Context, id uint64) (*model.Ticket, error)
	GetByNumber(ctx context.Context, number string) (*model.Ticket, error)
	GetByBookingUnit(ctx context.Context, bookingID uint64, unit uint32) (*model.Ticket, error)
	ListByBooking(ctx context.Context, bookingID uint64) ([]model.Ticket, error)
	CheckIn(ctx context.Context, ticketID, staffID uint64, at time.Time) (bool, error)
	RecordRepeatScan(ctx context.Context, ticketID uint64, at time.Time) error
}

// ScanStore appends to the audit trail.
type ScanStore interface {
	Append(ctx context.Context, rec *model.ScanRecord) error
}
