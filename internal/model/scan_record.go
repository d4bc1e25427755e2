package model

import "time"

// Scan result values.  One record is appended per scan attempt
// regardless of outcome, so the audit trail also covers attempts that
// never resolved to a ticket.
const (
	ScanSuccess     = "success"
	ScanInvalid     = "invalid"
	ScanAlreadyUsed = "already_used"
	ScanWrongEvent  = "wrong_event"
	ScanCancelled   = "cancelled"
)

// ScanRecord is one row of the append-only scan audit trail.
//
// Fields:
//
//	ID         – primary key identifier.
//	Ref        – public reference (UUID) for cross-system correlation.
//	TicketID   – scanned ticket, nil when the credential never resolved.
//	EventID    – event the scan was performed against.
//	ScannedBy  – staff user operating the scanner.
//	Result     – one of the Scan* constants above.
//	DeviceInfo – free-form scanner device description, if reported.
//	CreatedAt  – when the attempt happened.
type ScanRecord struct {
	ID         uint64    // scan_records.id
	Ref        string    // scan_records.ref
	TicketID   *uint64   // scan_records.ticket_id (nullable)
	EventID    uint64    // scan_records.event_id
	ScannedBy  uint64    // scan_records.scanned_by
	Result     string    // scan_records.result
	DeviceInfo *string   // scan_records.device_info (nullable)
	CreatedAt  time.Time // scan_records.created_at
}
