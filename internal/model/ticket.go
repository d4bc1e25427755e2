package model

import "time"

// Ticket status values.  VALID -> USED is the only transition produced
// by a successful scan; CANCELLED is terminal and set only through an
// external administrative action.
const (
	TicketValid     = "VALID"
	TicketUsed      = "USED"
	TicketCancelled = "CANCELLED"
)

// Ticket is a single admission credential issued for a booking.  The
// Credential column holds the opaque codec output embedded in the QR
// code; TicketNumber is the human-readable fallback form printed next
// to it.  Scan bookkeeping fields are mutated only by the check-in
// validator.
//
// Fields:
//
//	ID             – primary key identifier.
//	BookingID      – booking the ticket belongs to.
//	UnitIndex      – zero-based position of the ticket within its
//	                 booking; unique per booking, claimed at insert so
//	                 concurrent issuers cannot mint the same unit twice.
//	EventID        – event the ticket admits to.
//	TicketNumber   – unique human-readable number (e.g. "SUM42-K7PQ2X").
//	Credential     – opaque encrypted credential string.
//	Status         – one of VALID, USED, CANCELLED.
//	SeatID         – allocated seat, nil for unseated events.
//	ScanCount      – total scan attempts, including duplicates.
//	FirstScannedAt – time of the first (admitting) scan.
//	LastScannedAt  – time of the most recent scan attempt.
//	CheckedInBy    – staff user that performed the admitting scan.
//	CreatedAt      – creation timestamp.
//	UpdatedAt      – last update timestamp.
type Ticket struct {
	ID             uint64     // tickets.id
	BookingID      uint64     // tickets.booking_id
	UnitIndex      uint32     // tickets.unit_index
	EventID        uint64     // tickets.event_id
	TicketNumber   string     // tickets.ticket_number
	Credential     string     // tickets.credential
	Status         string     // tickets.status
	SeatID         *uint64    // tickets.seat_id (nullable)
	ScanCount      uint32     // tickets.scan_count
	FirstScannedAt *time.Time // tickets.first_scanned_at (nullable)
	LastScannedAt  *time.Time // tickets.last_scanned_at (nullable)
	CheckedInBy    *uint64    // tickets.checked_in_by (nullable)
	CreatedAt      time.Time  // tickets.created_at
	UpdatedAt      time.Time  // tickets.updated_at
}
