package model

import "time"

// Seat status values.  A seat is owned by at most one booking at any
// time; BOOKED implies BookingID is non-nil.  BLOCKED seats are taken
// out of sale by the admin system and never allocated.
const (
	SeatAvailable = "AVAILABLE"
	SeatReserved  = "RESERVED"
	SeatBooked    = "BOOKED"
	SeatBlocked   = "BLOCKED"
)

// Seat describes a single inventory unit for a seated event.  Seats
// are created at event setup and only their status and booking link
// change afterwards.
//
// Fields:
//
//	ID         – primary key identifier.
//	EventID    – event the seat belongs to.
//	Section    – named section of the venue (e.g. FLOOR, BALCONY).
//	RowLabel   – letter or string designating the row.
//	SeatNumber – position of the seat, unique per event.
//	Status     – one of AVAILABLE, RESERVED, BOOKED, BLOCKED.
//	BookingID  – booking that owns the seat (nil unless booked).
//	CreatedAt  – creation timestamp.
//	UpdatedAt  – last update timestamp.
type Seat struct {
	ID         uint64    // seats.id
	EventID    uint64    // seats.event_id
	Section    string    // seats.section
	RowLabel   string    // seats.row_label
	SeatNumber uint32    // seats.seat_number
	Status     string    // seats.status
	BookingID  *uint64   // seats.booking_id (nullable)
	CreatedAt  time.Time // seats.created_at
	UpdatedAt  time.Time // seats.updated_at
}
