package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/iliyamo/ticket-gate/internal/model"
)

// TicketRepo persists tickets and performs the check-in state
// transition.  The transition is a compare-and-swap on the status
// column: under concurrent scans of the same credential exactly one
// caller observes the flip.
type TicketRepo struct {
	db *sql.DB
}

// NewTicketRepo constructs a TicketRepo with the given DB handle.
func NewTicketRepo(db *sql.DB) *TicketRepo { return &TicketRepo{db: db} }

const ticketColumns = `id, booking_id, unit_index, event_id, ticket_number, credential, status, seat_id,
                       scan_count, first_scanned_at, last_scanned_at, checked_in_by, created_at, updated_at`

// Create inserts a ticket row and populates the generated ID.  Two
// unique indexes guard the insert: ticket_number collisions are
// reported as ErrDuplicateTicketNumber so the issuer can retry with a
// fresh number, and uq_booking_unit on (booking_id, unit_index) stops
// concurrent issuances from minting the same booking slot twice; the
// loser gets ErrDuplicateUnit and re-reads the winner's row.  The key
// name in the driver's 1062 message tells the two apart.
func (r *TicketRepo) Create(ctx context.Context, t *model.Ticket) error {
	const q = `INSERT INTO tickets (booking_id, unit_index, event_id, ticket_number, credential, status, seat_id, scan_count)
               VALUES (?, ?, ?, ?, ?, ?, ?, 0)`
	res, err := r.db.ExecContext(ctx, q, t.BookingID, t.UnitIndex, t.EventID, t.TicketNumber, t.Credential, t.Status, t.SeatID)
	if err != nil {
		msg := strings.ToLower(err.Error())
		if strings.Contains(msg, "1062") {
			if strings.Contains(msg, "uq_booking_unit") {
				return ErrDuplicateUnit
			}
			return ErrDuplicateTicketNumber
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	t.ID = uint64(id)
	return nil
}

// SetCredential stores the sealed credential for a ticket.  The
// credential embeds the ticket id, so it can only be produced after
// the insert; this also serves credential rotation, which re-seals the
// payload without touching number, status or counters.
func (r *TicketRepo) SetCredential(ctx context.Context, ticketID uint64, cred string) error {
	const q = `UPDATE tickets SET credential = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`
	_, err := r.db.ExecContext(ctx, q, cred, ticketID)
	return err
}

// GetByID retrieves a ticket by its id.
func (r *TicketRepo) GetByID(ctx context.Context, id uint64) (*model.Ticket, error) {
	return r.getOne(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE id = ?`, id)
}

// GetByNumber retrieves a ticket by its human-readable number.  This
// is the lookup used by the legacy plain-number scan path.
func (r *TicketRepo) GetByNumber(ctx context.Context, number string) (*model.Ticket, error) {
	return r.getOne(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE ticket_number = ?`, number)
}

// GetByBookingUnit retrieves the ticket holding a unit slot of a
// booking.  The issuer uses it to adopt the winner's row after losing
// the uq_booking_unit insert race.
func (r *TicketRepo) GetByBookingUnit(ctx context.Context, bookingID uint64, unit uint32) (*model.Ticket, error) {
	return r.getOne(ctx, `SELECT `+ticketColumns+` FROM tickets WHERE booking_id = ? AND unit_index = ?`, bookingID, unit)
}

func (r *TicketRepo) getOne(ctx context.Context, query string, args ...interface{}) (*model.Ticket, error) {
	var t model.Ticket
	var seatID, checkedInBy sql.NullInt64
	var firstScanned, lastScanned sql.NullTime
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&t.ID, &t.BookingID, &t.UnitIndex, &t.EventID, &t.TicketNumber, &t.Credential, &t.Status, &seatID,
		&t.ScanCount, &firstScanned, &lastScanned, &checkedInBy, &t.CreatedAt, &t.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrTicketNotFound
		}
		return nil, err
	}
	if seatID.Valid {
		v := uint64(seatID.Int64)
		t.SeatID = &v
	}
	if checkedInBy.Valid {
		v := uint64(checkedInBy.Int64)
		t.CheckedInBy = &v
	}
	if firstScanned.Valid {
		v := firstScanned.Time
		t.FirstScannedAt = &v
	}
	if lastScanned.Valid {
		v := lastScanned.Time
		t.LastScannedAt = &v
	}
	return &t, nil
}

// ListByBooking returns all tickets issued for a booking in unit
// order.  An empty slice means the booking has not been issued yet.
func (r *TicketRepo) ListByBooking(ctx context.Context, bookingID uint64) ([]model.Ticket, error) {
	const q = `SELECT ` + ticketColumns + ` FROM tickets WHERE booking_id = ? ORDER BY unit_index ASC`
	rows, err := r.db.QueryContext(ctx, q, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	tickets := make([]model.Ticket, 0)
	for rows.Next() {
		var t model.Ticket
		var seatID, checkedInBy sql.NullInt64
		var firstScanned, lastScanned sql.NullTime
		if err := rows.Scan(
			&t.ID, &t.BookingID, &t.UnitIndex, &t.EventID, &t.TicketNumber, &t.Credential, &t.Status, &seatID,
			&t.ScanCount, &firstScanned, &lastScanned, &checkedInBy, &t.CreatedAt, &t.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if seatID.Valid {
			v := uint64(seatID.Int64)
			t.SeatID = &v
		}
		if checkedInBy.Valid {
			v := uint64(checkedInBy.Int64)
			t.CheckedInBy = &v
		}
		if firstScanned.Valid {
			v := firstScanned.Time
			t.FirstScannedAt = &v
		}
		if lastScanned.Valid {
			v := lastScanned.Time
			t.LastScannedAt = &v
		}
		tickets = append(tickets, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return tickets, nil
}

// CheckIn attempts the VALID -> USED transition.  The status guard in
// the WHERE clause is the compare-and-swap: when a concurrent scan
// already flipped the row, zero rows are affected and false is
// returned so the caller reports already_used.
func (r *TicketRepo) CheckIn(ctx context.Context, ticketID, staffID uint64, at time.Time) (bool, error) {
	const q = `UPDATE tickets
               SET status = 'USED', scan_count = 1, first_scanned_at = ?, last_scanned_at = ?,
                   checked_in_by = ?, updated_at = CURRENT_TIMESTAMP
               WHERE id = ? AND status = 'VALID'`
	res, err := r.db.ExecContext(ctx, q, at.UTC(), at.UTC(), staffID, ticketID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// RecordRepeatScan bumps the scan counter for a duplicate attempt.
// Duplicate scans are tracked, not discarded, so reporting can see how
// often a shared or photographed code was presented.
func (r *TicketRepo) RecordRepeatScan(ctx context.Context, ticketID uint64, at time.Time) error {
	const q = `UPDATE tickets
               SET scan_count = scan_count + 1, last_scanned_at = ?, updated_at = CURRENT_TIMESTAMP
               WHERE id = ?`
	_, err := r.db.ExecContext(ctx, q, at.UTC(), ticketID)
	return err
}
