package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/ticket-gate/internal/model"
	"github.com/iliyamo/ticket-gate/internal/queue"
	"github.com/iliyamo/ticket-gate/internal/repository"
)

// In-memory stores mirroring the repository contracts, including the
// conditional-update semantics the correctness properties rely on.

type fakeEvents struct {
	events map[uint64]model.Event
}

func (f *fakeEvents) GetByID(_ context.Context, id uint64) (*model.Event, error) {
	e, ok := f.events[id]
	if !ok {
		return nil, repository.ErrEventNotFound
	}
	return &e, nil
}

type fakeBookings struct {
	bookings map[uint64]model.Booking
}

func (f *fakeBookings) GetByID(_ context.Context, id uint64) (*model.Booking, error) {
	b, ok := f.bookings[id]
	if !ok {
		return nil, repository.ErrBookingNotFound
	}
	return &b, nil
}

type fakeSeats struct {
	mu    sync.Mutex
	seats []model.Seat
}

func (f *fakeSeats) Allocate(_ context.Context, bookingID, eventID uint64, qty int, preferredSection string) ([]model.Seat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	pick := func(section string, limit int, taken map[uint64]bool) []int {
		var idx []int
		for i, s := range f.seats {
			if len(idx) == limit {
				break
			}
			if s.EventID != eventID || s.Status != model.SeatAvailable || taken[s.ID] {
				continue
			}
			if section != "" && s.Section != section {
				continue
			}
			idx = append(idx, i)
		}
		return idx
	}
	sort.Slice(f.seats, func(i, j int) bool { return f.seats[i].SeatNumber < f.seats[j].SeatNumber })
	taken := make(map[uint64]bool)
	selected := pick(preferredSection, qty, taken)
	for _, i := range selected {
		taken[f.seats[i].ID] = true
	}
	if len(selected) < qty && preferredSection != "" {
		selected = append(selected, pick("", qty-len(selected), taken)...)
	}
	if len(selected) < qty {
		return nil, &repository.InsufficientSeatsError{Requested: qty, Available: len(selected)}
	}
	out := make([]model.Seat, 0, qty)
	for _, i := range selected {
		bid := bookingID
		f.seats[i].Status = model.SeatBooked
		f.seats[i].BookingID = &bid
		out = append(out, f.seats[i])
	}
	return out, nil
}

func (f *fakeSeats) ReleaseByBooking(_ context.Context, bookingID uint64) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for i := range f.seats {
		if f.seats[i].BookingID != nil && *f.seats[i].BookingID == bookingID {
			f.seats[i].Status = model.SeatAvailable
			f.seats[i].BookingID = nil
			n++
		}
	}
	return n, nil
}

func (f *fakeSeats) ListByBooking(_ context.Context, bookingID uint64) ([]model.Seat, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Seat
	for _, s := range f.seats {
		if s.BookingID != nil && *s.BookingID == bookingID {
			out = append(out, s)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].SeatNumber < out[j].SeatNumber })
	return out, nil
}

type unitKey struct {
	bookingID uint64
	unit      uint32
}

type fakeTickets struct {
	mu       sync.Mutex
	nextID   uint64
	byID     map[uint64]*model.Ticket
	byNumber map[string]uint64
	byUnit   map[unitKey]uint64

	// failDuplicateOnce makes the next Create report a number
	// collision; failCreatesAfter fails every Create once that many
	// tickets exist; failSealsAfter fails every SetCredential once
	// that many tickets carry a credential.
	failDuplicateOnce bool
	failCreatesAfter  int
	failSealsAfter    int
}

func newFakeTickets() *fakeTickets {
	return &fakeTickets{
		byID:             map[uint64]*model.Ticket{},
		byNumber:         map[string]uint64{},
		byUnit:           map[unitKey]uint64{},
		failCreatesAfter: -1,
		failSealsAfter:   -1,
	}
}

func (f *fakeTickets) Create(_ context.Context, t *model.Ticket) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failDuplicateOnce {
		f.failDuplicateOnce = false
		return repository.ErrDuplicateTicketNumber
	}
	if f.failCreatesAfter >= 0 && len(f.byID) >= f.failCreatesAfter {
		return fmt.Errorf("storage unavailable")
	}
	if _, exists := f.byUnit[unitKey{t.BookingID, t.UnitIndex}]; exists {
		return repository.ErrDuplicateUnit
	}
	if _, exists := f.byNumber[t.TicketNumber]; exists {
		return repository.ErrDuplicateTicketNumber
	}
	f.nextID++
	t.ID = f.nextID
	cp := *t
	f.byID[t.ID] = &cp
	f.byNumber[t.TicketNumber] = t.ID
	f.byUnit[unitKey{t.BookingID, t.UnitIndex}] = t.ID
	return nil
}

func (f *fakeTickets) SetCredential(_ context.Context, ticketID uint64, cred string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSealsAfter >= 0 {
		sealed := 0
		for _, t := range f.byID {
			if t.Credential != "" {
				sealed++
			}
		}
		if sealed >= f.failSealsAfter {
			return fmt.Errorf("storage unavailable")
		}
	}
	t, ok := f.byID[ticketID]
	if !ok {
		return repository.ErrTicketNotFound
	}
	t.Credential = cred
	return nil
}

func (f *fakeTickets) GetByID(_ context.Context, id uint64) (*model.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.byID[id]
	if !ok {
		return nil, repository.ErrTicketNotFound
	}
	cp := *t
	return &cp, nil
}

func (f *fakeTickets) GetByNumber(_ context.Context, number string) (*model.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.byNumber[number]
	if !ok {
		return nil, repository.ErrTicketNotFound
	}
	cp := *f.byID[id]
	return &cp, nil
}

func (f *fakeTickets) GetByBookingUnit(_ context.Context, bookingID uint64, unit uint32) (*model.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.byUnit[unitKey{bookingID, unit}]
	if !ok {
		return nil, repository.ErrTicketNotFound
	}
	cp := *f.byID[id]
	return &cp, nil
}

func (f *fakeTickets) ListByBooking(_ context.Context, bookingID uint64) ([]model.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]model.Ticket, 0)
	for id := uint64(1); id <= f.nextID; id++ {
		if t, ok := f.byID[id]; ok && t.BookingID == bookingID {
			out = append(out, *t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].UnitIndex < out[j].UnitIndex })
	return out, nil
}

func (f *fakeTickets) CheckIn(_ context.Context, ticketID, staffID uint64, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.byID[ticketID]
	if !ok || t.Status != model.TicketValid {
		return false, nil
	}
	ts := at
	t.Status = model.TicketUsed
	t.ScanCount = 1
	t.FirstScannedAt = &ts
	t.LastScannedAt = &ts
	t.CheckedInBy = &staffID
	return true, nil
}

func (f *fakeTickets) RecordRepeatScan(_ context.Context, ticketID uint64, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	t, ok := f.byID[ticketID]
	if !ok {
		return repository.ErrTicketNotFound
	}
	ts := at
	t.ScanCount++
	t.LastScannedAt = &ts
	return nil
}

type fakeScans struct {
	mu      sync.Mutex
	records []model.ScanRecord
}

func (f *fakeScans) Append(_ context.Context, rec *model.ScanRecord) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	rec.ID = uint64(len(f.records) + 1)
	if rec.Ref == "" {
		rec.Ref = fmt.Sprintf("ref-%d", rec.ID)
	}
	f.records = append(f.records, *rec)
	return nil
}

func (f *fakeScans) byResult(result string) []model.ScanRecord {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.ScanRecord
	for _, r := range f.records {
		if r.Result == result {
			out = append(out, r)
		}
	}
	return out
}

type fakePublisher struct {
	mu     sync.Mutex
	events []queue.TicketScannedEvent
}

func (f *fakePublisher) PublishTicketScanned(_ context.Context, ev queue.TicketScannedEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, ev)
	return nil
}
