package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/iliyamo/ticket-gate/internal/model"
)

// SeatRepo provides seat inventory access, most importantly the atomic
// allocation path.  Two concurrent allocations for the same event must
// never select overlapping seats, so candidate rows are locked with
// SELECT ... FOR UPDATE and the final status flip is a conditional
// UPDATE whose affected-row count is verified before commit.
type SeatRepo struct {
	db *sql.DB
}

// NewSeatRepo constructs a SeatRepo with the given DB handle.
func NewSeatRepo(db *sql.DB) *SeatRepo { return &SeatRepo{db: db} }

// Allocate reserves qty seats for a booking in a single transaction.
// Seats are picked from the preferred section first (when given),
// ordered by seat_number ascending; if the section cannot satisfy the
// request the remainder comes from the full pool within the same
// transaction.  A shortfall aborts with InsufficientSeatsError and no
// side effects.
func (r *SeatRepo) Allocate(ctx context.Context, bookingID, eventID uint64, qty int, preferredSection string) ([]model.Seat, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	seats, err := r.AllocateTx(ctx, tx, bookingID, eventID, qty, preferredSection)
	if err != nil {
		return nil, err
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return seats, nil
}

// AllocateTx performs the allocation within an existing transaction.
// The caller must commit or roll back.
func (r *SeatRepo) AllocateTx(ctx context.Context, tx *sql.Tx, bookingID, eventID uint64, qty int, preferredSection string) ([]model.Seat, error) {
	selected, err := r.selectAvailableTx(ctx, tx, eventID, qty, preferredSection, nil)
	if err != nil {
		return nil, err
	}
	if len(selected) < qty && preferredSection != "" {
		// Preferred section came up short: top up from the full pool,
		// still inside this transaction, skipping rows already locked.
		exclude := make([]uint64, 0, len(selected))
		for _, s := range selected {
			exclude = append(exclude, s.ID)
		}
		more, err := r.selectAvailableTx(ctx, tx, eventID, qty-len(selected), "", exclude)
		if err != nil {
			return nil, err
		}
		selected = append(selected, more...)
	}
	if len(selected) < qty {
		return nil, &InsufficientSeatsError{Requested: qty, Available: len(selected)}
	}

	ids := make([]interface{}, 0, len(selected))
	placeholders := make([]string, 0, len(selected))
	for _, s := range selected {
		ids = append(ids, s.ID)
		placeholders = append(placeholders, "?")
	}
	// Conditional flip: the status guard makes the update a no-op for
	// any row another transaction booked in between.  Row count must
	// match or the whole allocation is void.
	query := `UPDATE seats
              SET status = 'BOOKED', booking_id = ?, updated_at = CURRENT_TIMESTAMP
              WHERE id IN (` + strings.Join(placeholders, ",") + `) AND status = 'AVAILABLE'`
	args := append([]interface{}{bookingID}, ids...)
	res, err := tx.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return nil, err
	}
	if int(n) != qty {
		return nil, ErrConflict
	}
	for i := range selected {
		bid := bookingID
		selected[i].Status = model.SeatBooked
		selected[i].BookingID = &bid
	}
	return selected, nil
}

// selectAvailableTx locks up to limit available seats for the event.
// The ascending seat_number order keeps allocations deterministic and
// gives every transaction the same lock order, which avoids deadlocks
// between concurrent allocators.
func (r *SeatRepo) selectAvailableTx(ctx context.Context, tx *sql.Tx, eventID uint64, limit int, section string, excludeIDs []uint64) ([]model.Seat, error) {
	if limit <= 0 {
		return nil, nil
	}
	query := `SELECT id, event_id, section, row_label, seat_number, status, booking_id
              FROM seats
              WHERE event_id = ? AND status = 'AVAILABLE'`
	args := []interface{}{eventID}
	if section != "" {
		query += ` AND section = ?`
		args = append(args, section)
	}
	if len(excludeIDs) > 0 {
		ph := make([]string, len(excludeIDs))
		for i, id := range excludeIDs {
			ph[i] = "?"
			args = append(args, id)
		}
		query += ` AND id NOT IN (` + strings.Join(ph, ",") + `)`
	}
	query += ` ORDER BY seat_number ASC LIMIT ? FOR UPDATE`
	args = append(args, limit)

	rows, err := tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var seats []model.Seat
	for rows.Next() {
		var s model.Seat
		var bookingID sql.NullInt64
		if err := rows.Scan(&s.ID, &s.EventID, &s.Section, &s.RowLabel, &s.SeatNumber, &s.Status, &bookingID); err != nil {
			return nil, err
		}
		if bookingID.Valid {
			bid := uint64(bookingID.Int64)
			s.BookingID = &bid
		}
		seats = append(seats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return seats, nil
}

// ReleaseByBooking returns all seats owned by a booking to AVAILABLE
// and clears the booking link.  Used as the compensating action when a
// booking is cancelled or issuance cannot complete.
func (r *SeatRepo) ReleaseByBooking(ctx context.Context, bookingID uint64) (int, error) {
	const q = `UPDATE seats
               SET status = 'AVAILABLE', booking_id = NULL, updated_at = CURRENT_TIMESTAMP
               WHERE booking_id = ? AND status = 'BOOKED'`
	res, err := r.db.ExecContext(ctx, q, bookingID)
	if err != nil {
		return 0, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, err
	}
	return int(n), nil
}

// ListByBooking returns the seats allocated to a booking ordered by
// seat_number, matching the order they were selected in.  The issuer
// relies on this ordering to pair ticket i with seat i.
func (r *SeatRepo) ListByBooking(ctx context.Context, bookingID uint64) ([]model.Seat, error) {
	const q = `SELECT id, event_id, section, row_label, seat_number, status, booking_id
               FROM seats
               WHERE booking_id = ?
               ORDER BY seat_number ASC`
	rows, err := r.db.QueryContext(ctx, q, bookingID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var seats []model.Seat
	for rows.Next() {
		var s model.Seat
		var bid sql.NullInt64
		if err := rows.Scan(&s.ID, &s.EventID, &s.Section, &s.RowLabel, &s.SeatNumber, &s.Status, &bid); err != nil {
			return nil, err
		}
		if bid.Valid {
			b := uint64(bid.Int64)
			s.BookingID = &b
		}
		seats = append(seats, s)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return seats, nil
}

// CountAvailable returns the number of seats still open for an event.
func (r *SeatRepo) CountAvailable(ctx context.Context, eventID uint64) (int, error) {
	const q = `SELECT COUNT(*) FROM seats WHERE event_id = ? AND status = 'AVAILABLE'`
	var n int
	if err := r.db.QueryRowContext(ctx, q, eventID).Scan(&n); err != nil {
		return 0, err
	}
	return n, nil
}
