// Package repository defines the data access layer over MySQL together
// with the error types shared across repositories.  Sentinel values let
// handlers distinguish failure scenarios: ErrTicketNotFound becomes a
// 404, a lost seat race becomes ErrConflict, and so on.
package repository

import (
	"errors"
	"fmt"
)

// ErrConflict is returned when a conditional update affected fewer
// rows than expected, i.e. a concurrent writer got there first.  The
// transaction must be rolled back when this surfaces.
var ErrConflict = errors.New("conflict")

// ErrEventNotFound is returned when an event lookup yields no rows.
var ErrEventNotFound = errors.New("event not found")

// ErrBookingNotFound is returned when a booking lookup yields no rows.
var ErrBookingNotFound = errors.New("booking not found")

// ErrTicketNotFound is returned when a ticket lookup yields no rows.
var ErrTicketNotFound = errors.New("ticket not found")

// ErrStaffNotFound is returned when a staff user lookup yields no rows.
var ErrStaffNotFound = errors.New("staff user not found")

// ErrDuplicateTicketNumber is returned when a ticket insert hits the
// unique index on ticket_number.  The issuer retries once with a fresh
// number before giving up.
var ErrDuplicateTicketNumber = errors.New("ticket number already exists")

// ErrDuplicateUnit is returned when a ticket insert hits the unique
// index on (booking_id, unit_index): a concurrent issuance already
// created the ticket for that slot.  The issuer adopts the existing
// row instead of minting a second one.
var ErrDuplicateUnit = errors.New("booking unit already issued")

// InsufficientSeatsError aborts a seat allocation that cannot be
// satisfied.  Available counts only the seats still free at the moment
// of the attempt, so a caller losing a race for the last seats sees
// the pool it actually had.
type InsufficientSeatsError struct {
	Requested int
	Available int
}

func (e *InsufficientSeatsError) Error() string {
	return fmt.Sprintf("insufficient seats: requested %d, available %d", e.Requested, e.Available)
}
