package handler

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ticket-gate/internal/model"
	"github.com/iliyamo/ticket-gate/internal/repository"
	"github.com/iliyamo/ticket-gate/internal/service"
)

// TicketHandler exposes ticket issuance and listing per booking.
type TicketHandler struct {
	Issuer   *service.Issuer
	Bookings *repository.BookingRepo
	Tickets  *repository.TicketRepo
}

func NewTicketHandler(issuer *service.Issuer, bookings *repository.BookingRepo, tickets *repository.TicketRepo) *TicketHandler {
	if issuer == nil || bookings == nil || tickets == nil {
		panic("nil dependency passed to NewTicketHandler")
	}
	return &TicketHandler{Issuer: issuer, Bookings: bookings, Tickets: tickets}
}

// ticketView is the wire shape of a ticket.  The raw credential is
// included: the caller is the trusted organizer backend that renders
// the QR codes.
type ticketView struct {
	ID           uint64     `json:"id"`
	BookingID    uint64     `json:"booking_id"`
	EventID      uint64     `json:"event_id"`
	TicketNumber string     `json:"ticket_number"`
	Credential   string     `json:"credential"`
	Status       string     `json:"status"`
	SeatID       *uint64    `json:"seat_id,omitempty"`
	ScanCount    uint32     `json:"scan_count"`
	FirstScanned *time.Time `json:"first_scanned_at,omitempty"`
	LastScanned  *time.Time `json:"last_scanned_at,omitempty"`
}

func toTicketView(t *model.Ticket) ticketView {
	return ticketView{
		ID:           t.ID,
		BookingID:    t.BookingID,
		EventID:      t.EventID,
		TicketNumber: t.TicketNumber,
		Credential:   t.Credential,
		Status:       t.Status,
		SeatID:       t.SeatID,
		ScanCount:    t.ScanCount,
		FirstScanned: t.FirstScannedAt,
		LastScanned:  t.LastScannedAt,
	}
}

func toTicketViews(ts []model.Ticket) []ticketView {
	out := make([]ticketView, 0, len(ts))
	for i := range ts {
		out = append(out, toTicketView(&ts[i]))
	}
	return out
}

// Issue creates the booking's tickets.  The call is idempotent:
// repeating it returns the already-issued tickets unchanged.  Only
// PAID bookings are issuable.
func (h *TicketHandler) Issue(c echo.Context) error {
	bookingID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 15*time.Second)
	defer cancel()

	booking, err := h.Bookings.GetByID(ctx, bookingID)
	if err != nil {
		if err == repository.ErrBookingNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	if booking.PaymentStatus != model.PaymentPaid {
		return c.JSON(http.StatusConflict, echo.Map{
			"error":          "booking is not paid",
			"payment_status": booking.PaymentStatus,
		})
	}

	res, err := h.Issuer.Issue(ctx, bookingID)
	if err != nil {
		var pe *service.PartialIssueError
		if errors.As(err, &pe) && res != nil {
			// Degraded success: report what was issued and which units
			// were not.  A retry creates only the missing units.
			return c.JSON(http.StatusMultiStatus, echo.Map{
				"tickets":        toTicketViews(res.Tickets),
				"failed_indices": pe.Failed,
				"error":          "some tickets could not be issued",
			})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "issue failed"})
	}

	status := http.StatusCreated
	if res.AlreadyIssued {
		status = http.StatusOK
	}
	return c.JSON(status, echo.Map{
		"tickets":        toTicketViews(res.Tickets),
		"already_issued": res.AlreadyIssued,
	})
}

// List returns the booking's issued tickets in creation order.
func (h *TicketHandler) List(c echo.Context) error {
	bookingID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if _, err := h.Bookings.GetByID(ctx, bookingID); err != nil {
		if err == repository.ErrBookingNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	tickets, err := h.Tickets.ListByBooking(ctx, bookingID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"tickets": toTicketViews(tickets)})
}
