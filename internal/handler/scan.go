package handler

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/iliyamo/ticket-gate/internal/repository"
	"github.com/iliyamo/ticket-gate/internal/service"
)

// ScanHandler exposes the check-in endpoint plus the audit and
// attendance reads built on top of the scan trail.
type ScanHandler struct {
	Validator *service.Validator
	Scans     *repository.ScanRepo
	Events    *repository.EventRepo
}

func NewScanHandler(validator *service.Validator, scans *repository.ScanRepo, events *repository.EventRepo) *ScanHandler {
	if validator == nil || scans == nil || events == nil {
		panic("nil dependency passed to NewScanHandler")
	}
	return &ScanHandler{Validator: validator, Scans: scans, Events: events}
}

type scanReq struct {
	Credential string `json:"credential"`
	DeviceInfo string `json:"device_info"`
}

// Scan validates a presented credential against the event.  Rejections
// are normal responses, not HTTP errors: the scanner renders the
// result field either way.  Only storage failures return 500.
func (h *ScanHandler) Scan(c echo.Context) error {
	eventID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	var req scanReq
	if err := c.Bind(&req); err != nil {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid body"})
	}
	req.Credential = strings.TrimSpace(req.Credential)
	if req.Credential == "" {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "credential required"})
	}
	sid, err := staffID(c)
	if err != nil {
		return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	out, err := h.Validator.Validate(ctx, req.Credential, eventID, sid, strings.TrimSpace(req.DeviceInfo))
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "scan failed"})
	}

	resp := echo.Map{
		"result": out.Result,
		"ref":    out.Ref,
	}
	if out.Ticket != nil {
		resp["ticket"] = echo.Map{
			"id":            out.Ticket.ID,
			"ticket_number": out.Ticket.TicketNumber,
			"status":        out.Ticket.Status,
			"seat_id":       out.Ticket.SeatID,
		}
		resp["scan_count"] = out.ScanCount
		if out.FirstScannedAt != nil {
			resp["first_scanned_at"] = out.FirstScannedAt
		}
	}
	return c.JSON(http.StatusOK, resp)
}

type scanRecordView struct {
	Ref        string    `json:"ref"`
	TicketID   *uint64   `json:"ticket_id,omitempty"`
	Result     string    `json:"result"`
	ScannedBy  uint64    `json:"scanned_by"`
	DeviceInfo *string   `json:"device_info,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// ListScans returns the event's recent scan attempts, newest first.
// The optional ?limit= parameter is clamped by the repository.
func (h *ScanHandler) ListScans(c echo.Context) error {
	eventID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}
	limit := 0
	if s := c.QueryParam("limit"); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			limit = n
		}
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
	defer cancel()

	if _, err := h.Events.GetByID(ctx, eventID); err != nil {
		if err == repository.ErrEventNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	records, err := h.Scans.ListByEvent(ctx, eventID, limit)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	views := make([]scanRecordView, 0, len(records))
	for _, r := range records {
		views = append(views, scanRecordView{
			Ref:        r.Ref,
			TicketID:   r.TicketID,
			Result:     r.Result,
			ScannedBy:  r.ScannedBy,
			DeviceInfo: r.DeviceInfo,
			CreatedAt:  r.CreatedAt,
		})
	}
	return c.JSON(http.StatusOK, echo.Map{"scans": views})
}

// Attendance recomputes and returns the event's attendance counts.
// The numbers are derived from tickets and scan_records on demand;
// a short-TTL response cache in front of this route absorbs the
// refresh traffic from organizer dashboards.
func (h *ScanHandler) Attendance(c echo.Context) error {
	eventID, ok := pathID(c, "id")
	if !ok {
		return c.JSON(http.StatusBadRequest, echo.Map{"error": "invalid event id"})
	}

	ctx, cancel := context.WithTimeout(c.Request().Context(), 10*time.Second)
	defer cancel()

	if _, err := h.Events.GetByID(ctx, eventID); err != nil {
		if err == repository.ErrEventNotFound {
			return c.JSON(http.StatusNotFound, echo.Map{"error": "event not found"})
		}
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	report, err := h.Scans.Attendance(ctx, eventID)
	if err != nil {
		return c.JSON(http.StatusInternalServerError, echo.Map{"error": "query failed"})
	}
	return c.JSON(http.StatusOK, report)
}
