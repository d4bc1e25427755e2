package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ticket-gate/internal/model"
	"github.com/iliyamo/ticket-gate/internal/repository"
	"github.com/iliyamo/ticket-gate/internal/service"
)

// SeatHandler exposes seat allocation and release for bookings of
// seated events.
type SeatHandler struct {
	Allocator *service.Allocator
}

func NewSeatHandler(allocator *service.Allocator) *SeatHandler {
	if allocator == nil {
		panic("nil allocator passed to NewSeatHandler")
	}
	return &SeatHandler{Allocator: allocator}
}

type allocateReq struct {
	EventID          uint64 `json:"event_id"`
	Quantity         int    `json:"quantity"`
	PreferredSection string `json:"preferred_section"`
}

type seatView struct {
	ID         uint64 `json:"id"`
	Section    string `json:"section"`
	RowLabel   string `json:"row_label"`
	SeatNumber uint32 `json:"seat_number"`
}

func toSeatViews(seats []model.Seat) []seatView {
	out := make([]seatView, 0, len(seats))
	for _, s := range seats {
		out = append(out, seatView{ID: s.ID, Section: s.Section, RowLabel: s.RowLabel, SeatNumber: s.SeatNumber})
	}
	return out
}

// Allocate reserves seats for the booking.  A shortfall allocates
// nothing and reports how many seats were actually available.
func (h *SeatHandler) Allocate(c echo.Context) error {
	bookingID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}
	var req allocateReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	if req.EventID == 0 || req.Quantity <= 0 {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "event_id and positive quantity required"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	seats, err := h.Allocator.AllocateSeats(ctx, bookingID, req.EventID, req.Quantity, strings.TrimSpace(req.PreferredSection))
	if err != nil {
		var ise *repository.InsufficientSeatsError
		switch {
		case errors.As(err, &ise):
			return c.JSON(http.StatusConflict, echo.Map{
				"error":     "insufficient seats",
				"requested": ise.Requested,
				"available": ise.Available,
			})
		case errors.Is(err, repository.ErrBookingNotFound):
			return c.JSON(http.StatusNotFound, echo.Map{"error": "booking not found"})
		case errors.Is(err, repository.ErrConflict):
			return c.JSON(http.StatusConflict, echo.Map{"error": "booking does not belong to event"})
		default:
			return c.JSON(http.StatusInternalServerError, echo.Map{"error": "allocation failed"})
		}
	}
	return c.JSON(http.StatusCreated, echo.Map{"seats": toSeatViews(seats)})
}

// Release returns the booking's seats to the pool, the compensation
// path for cancellations and abandoned bookings.
func (h *SeatHandler) Release(c echo.Context) error {
	bookingID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid booking id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	n, err := h.Allocator.Release(ctx, bookingID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "release failed"})
	}
	return c.JSON(http.StatusOK, echo.Map{"released": n})
}
