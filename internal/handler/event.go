package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ticket-gate/internal/repository"
)

// EventHandler serves event summaries for the scanner UI, which shows
// the event name and seating mode before staff start scanning.
type EventHandler struct {
	Events *repository.EventRepo
	Seats  *repository.SeatRepo
}

func NewEventHandler(events *repository.EventRepo, seats *repository.SeatRepo) *EventHandler {
	if events == nil || seats == nil {
		panic("nil repository passed to NewEventHandler")
	}
	return &EventHandler{Events: events, Seats: seats}
}

// Get returns one event, including the remaining seat inventory for
// seated events.
func (h *EventHandler) Get(c echo.Context) error {
	id, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	ev, err := h.Events.GetByID(ctx, id)
	if err != nil {
		if err == repository.ErrEventNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	resp := echo.Map{
		"id":        ev.ID,
		"name":      ev.Name,
		"capacity":  ev.Capacity,
		"seated":    ev.Seated,
		"starts_at": ev.StartsAt,
	}
	if ev.Seated {
		if n, err := h.Seats.CountAvailable(ctx, id); err == nil {
			resp["seats_available"] = n
		}
	}
	return c.JSON(http.StatusOK, resp)
}
