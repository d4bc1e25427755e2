package model

import "time"

// Payment status values owned by the external payment subsystem.
// Tickets are only issued for PAID bookings.
const (
	PaymentPending  = "PENDING"
	PaymentPaid     = "PAID"
	PaymentRefunded = "REFUNDED"
)

// Booking records a confirmed purchase of one or more admissions for
// an event.  The row is created by the payment subsystem once payment
// is confirmed and is immutable here except for fields that subsystem
// owns.  A booking owns zero or more seats and, once issued, exactly
// Quantity tickets.
//
// Fields:
//
//	ID            – primary key identifier.
//	EventID       – event the booking is for.
//	Quantity      – number of admissions purchased.
//	PaymentStatus – state reported by the payment subsystem.
//	CreatedAt     – creation timestamp.
//	UpdatedAt     – last update timestamp.
type Booking struct {
	ID            uint64    // bookings.id
	EventID       uint64    // bookings.event_id
	Quantity      uint32    // bookings.quantity
	PaymentStatus string    // bookings.payment_status
	CreatedAt     time.Time // bookings.created_at
	UpdatedAt     time.Time // bookings.updated_at
}
