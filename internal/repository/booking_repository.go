package repository

import (
	"context"
	"database/sql"
	"errors"

	"github.com/iliyamo/ticket-gate/internal/model"
)

// BookingRepo reads booking rows.  Bookings are created by the payment
// subsystem once payment is confirmed; this service only reads them to
// drive seat allocation and ticket issuance.
type BookingRepo struct {
	db *sql.DB
}

// NewBookingRepo constructs a BookingRepo with the given DB handle.
func NewBookingRepo(db *sql.DB) *BookingRepo { return &BookingRepo{db: db} }

// GetByID retrieves a booking by its id.
func (r *BookingRepo) GetByID(ctx context.Context, id uint64) (*model.Booking, error) {
	const q = `SELECT id, event_id, quantity, payment_status, created_at, updated_at
               FROM bookings WHERE id = ?`
	var b model.Booking
	err := r.db.QueryRowContext(ctx, q, id).Scan(
		&b.ID, &b.EventID, &b.Quantity, &b.PaymentStatus, &b.CreatedAt, &b.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrBookingNotFound
		}
		return nil, err
	}
	return &b, nil
}
