package repository

import (
	"context"
	"database/sql"

	"github.com/google/uuid"

	"github.com/iliyamo/ticket-gate/internal/model"
)

// ScanRepo appends to and reads the scan audit trail.  The table is
// append-only: rows are never updated or deleted by this service.
type ScanRepo struct {
	db *sql.DB
}

// NewScanRepo constructs a ScanRepo with the given DB handle.
func NewScanRepo(db *sql.DB) *ScanRepo { return &ScanRepo{db: db} }

// Append inserts one audit row for a scan attempt.  A public reference
// UUID is assigned when the caller did not set one.  The generated ID
// and reference are populated on the record.
func (r *ScanRepo) Append(ctx context.Context, rec *model.ScanRecord) error {
	if rec.Ref == "" {
		rec.Ref = uuid.NewString()
	}
	const q = `INSERT INTO scan_records (ref, ticket_id, event_id, scanned_by, result, device_info)
               VALUES (?, ?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q, rec.Ref, rec.TicketID, rec.EventID, rec.ScannedBy, rec.Result, rec.DeviceInfo)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	rec.ID = uint64(id)
	return nil
}

// ListByEvent returns the most recent scan attempts for an event,
// newest first, capped at limit.
func (r *ScanRepo) ListByEvent(ctx context.Context, eventID uint64, limit int) ([]model.ScanRecord, error) {
	if limit <= 0 || limit > 500 {
		limit = 100
	}
	const q = `SELECT id, ref, ticket_id, event_id, scanned_by, result, device_info, created_at
               FROM scan_records
               WHERE event_id = ?
               ORDER BY id DESC
               LIMIT ?`
	rows, err := r.db.QueryContext(ctx, q, eventID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	records := make([]model.ScanRecord, 0)
	for rows.Next() {
		var rec model.ScanRecord
		var ticketID sql.NullInt64
		var deviceInfo sql.NullString
		if err := rows.Scan(&rec.ID, &rec.Ref, &ticketID, &rec.EventID, &rec.ScannedBy, &rec.Result, &deviceInfo, &rec.CreatedAt); err != nil {
			return nil, err
		}
		if ticketID.Valid {
			v := uint64(ticketID.Int64)
			rec.TicketID = &v
		}
		if deviceInfo.Valid {
			v := deviceInfo.String
			rec.DeviceInfo = &v
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return records, nil
}

// AttendanceReport is a derived read model recomputed from tickets and
// scan_records on demand.  Nothing on the scan write path maintains
// these aggregates, so a failure here can never abort an admission.
type AttendanceReport struct {
	EventID       uint64 `json:"event_id"`
	TicketsIssued int    `json:"tickets_issued"`
	CheckedIn     int    `json:"checked_in"`
	ScanAttempts  int    `json:"scan_attempts"`
	Rejected      int    `json:"rejected"`
	Invalid       int    `json:"invalid"`
	AlreadyUsed   int    `json:"already_used"`
	WrongEvent    int    `json:"wrong_event"`
	Cancelled     int    `json:"cancelled"`
}

// Attendance recomputes the attendance counts for an event.
func (r *ScanRepo) Attendance(ctx context.Context, eventID uint64) (*AttendanceReport, error) {
	rep := &AttendanceReport{EventID: eventID}
	const ticketQ = `SELECT COUNT(*), COALESCE(SUM(status = 'USED'), 0)
                     FROM tickets WHERE event_id = ?`
	if err := r.db.QueryRowContext(ctx, ticketQ, eventID).Scan(&rep.TicketsIssued, &rep.CheckedIn); err != nil {
		return nil, err
	}
	const scanQ = `SELECT result, COUNT(*) FROM scan_records WHERE event_id = ? GROUP BY result`
	rows, err := r.db.QueryContext(ctx, scanQ, eventID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var result string
		var n int
		if err := rows.Scan(&result, &n); err != nil {
			return nil, err
		}
		rep.ScanAttempts += n
		switch result {
		case model.ScanInvalid:
			rep.Invalid = n
		case model.ScanAlreadyUsed:
			rep.AlreadyUsed = n
		case model.ScanWrongEvent:
			rep.WrongEvent = n
		case model.ScanCancelled:
			rep.Cancelled = n
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	rep.Rejected = rep.Invalid + rep.AlreadyUsed + rep.WrongEvent + rep.Cancelled
	return rep, nil
}
