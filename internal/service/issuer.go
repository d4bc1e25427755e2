package service

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/iliyamo/ticket-gate/internal/credential"
	"github.com/iliyamo/ticket-gate/internal/model"
	"github.com/iliyamo/ticket-gate/internal/repository"
)

// suffixAlphabet is the character set for ticket-number suffixes.
// Ambiguous glyphs (0/O, 1/I/L) are excluded because gate staff
// sometimes have to type the number in by hand.
const suffixAlphabet = "23456789ABCDEFGHJKMNPQRSTVWXYZ"

const suffixLength = 6

// PartialIssueError signals degraded success: some tickets were
// persisted, the listed indices were not.  The issued tickets are
// still returned alongside this error; the caller decides whether to
// retry issuance (idempotent) or surface the failure.
type PartialIssueError struct {
	Failed []int
	Err    error
}

func (e *PartialIssueError) Error() string {
	return fmt.Sprintf("issued with %d failed units %v: %v", len(e.Failed), e.Failed, e.Err)
}

func (e *PartialIssueError) Unwrap() error { return e.Err }

// IssueResult carries the outcome of an issuance call.
type IssueResult struct {
	Tickets       []model.Ticket
	AlreadyIssued bool
}

// Issuer converts a paid booking into exactly Quantity tickets,
// idempotently.  The payment precondition is checked by the caller;
// the issuer only guards against double issuance and number
// collisions.
type Issuer struct {
	Events   EventStore
	Bookings BookingStore
	Seats    SeatStore
	Tickets  TicketStore
	Codec    *credential.Codec

	// Now is overridable for tests; defaults to time.Now.
	Now func() time.Time
}

// NewIssuer constructs an Issuer.
func NewIssuer(events EventStore, bookings BookingStore, seats SeatStore, tickets TicketStore, codec *credential.Codec) *Issuer {
	if events == nil || bookings == nil || seats == nil || tickets == nil || codec == nil {
		panic("nil dependency passed to NewIssuer")
	}
	return &Issuer{Events: events, Bookings: bookings, Seats: seats, Tickets: tickets, Codec: codec, Now: time.Now}
}

// Issue creates the booking's tickets.  When the full set already
// exists it is returned unchanged: no new rows, same numbers, untouched
// status and scan counters.  Each ticket occupies a unit slot 0..n-1
// guarded by a unique key, so concurrent calls for the same booking
// never mint a slot twice: the loser of an insert race adopts the
// winner's row.  A short set left behind by an earlier partial failure
// is topped up, and a row whose credential was never sealed (a crash
// between insert and seal) is re-sealed on the next call.  A
// persistence failure on a unit retries once with a fresh number
// (covering uniqueness collisions) and otherwise lands in
// PartialIssueError.Failed — the result is never a silently short
// ticket count.
func (i *Issuer) Issue(ctx context.Context, bookingID uint64) (*IssueResult, error) {
	booking, err := i.Bookings.GetByID(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	existing, err := i.Tickets.ListByBooking(ctx, bookingID)
	if err != nil {
		return nil, err
	}
	quantity := int(booking.Quantity)
	byUnit := make(map[uint32]int, len(existing))
	sealed := true
	for idx := range existing {
		byUnit[existing[idx].UnitIndex] = idx
		if existing[idx].Credential == "" {
			sealed = false
		}
	}
	if len(existing) >= quantity && sealed {
		return &IssueResult{Tickets: existing, AlreadyIssued: true}, nil
	}
	event, err := i.Events.GetByID(ctx, booking.EventID)
	if err != nil {
		return nil, err
	}
	var seats []model.Seat
	if event.Seated {
		if seats, err = i.Seats.ListByBooking(ctx, bookingID); err != nil {
			return nil, err
		}
	}

	prefix := ticketPrefix(event)
	issuedAt := i.Now().UTC().Unix()
	result := &IssueResult{
		Tickets:       make([]model.Ticket, 0, quantity),
		AlreadyIssued: len(existing) >= quantity,
	}
	var failed []int
	var lastErr error
	for unit := 0; unit < quantity; unit++ {
		var seat *model.Seat
		if unit < len(seats) {
			seat = &seats[unit]
		}
		if idx, ok := byUnit[uint32(unit)]; ok {
			t := existing[idx]
			if t.Credential == "" {
				if err := i.seal(ctx, &t, seat, issuedAt); err != nil {
					failed = append(failed, unit)
					lastErr = err
					continue
				}
			}
			result.Tickets = append(result.Tickets, t)
			continue
		}
		t, err := i.issueOne(ctx, booking, prefix, seat, uint32(unit), issuedAt)
		if err != nil {
			failed = append(failed, unit)
			lastErr = err
			continue
		}
		result.Tickets = append(result.Tickets, *t)
	}
	if len(failed) > 0 {
		return result, &PartialIssueError{Failed: failed, Err: lastErr}
	}
	return result, nil
}

// issueOne generates a number and persists one ticket for a unit slot.
// A ticket-number collision gets exactly one retry with a freshly
// generated number.  Losing the unit slot to a concurrent issuance is
// not a failure: the winner's row is fetched and returned instead.
func (i *Issuer) issueOne(ctx context.Context, booking *model.Booking, prefix string, seat *model.Seat, unit uint32, issuedAt int64) (*model.Ticket, error) {
	for attempt := 0; attempt < 2; attempt++ {
		number, err := newTicketNumber(prefix)
		if err != nil {
			return nil, err
		}
		t := &model.Ticket{
			BookingID:    booking.ID,
			UnitIndex:    unit,
			EventID:      booking.EventID,
			TicketNumber: number,
			Status:       model.TicketValid,
		}
		if seat != nil {
			sid := seat.ID
			t.SeatID = &sid
		}
		if err := i.Tickets.Create(ctx, t); err != nil {
			if errors.Is(err, repository.ErrDuplicateTicketNumber) && attempt == 0 {
				continue
			}
			if errors.Is(err, repository.ErrDuplicateUnit) {
				return i.adopt(ctx, booking.ID, unit, seat, issuedAt)
			}
			return nil, err
		}
		if err := i.seal(ctx, t, seat, issuedAt); err != nil {
			return nil, err
		}
		return t, nil
	}
	return nil, repository.ErrDuplicateTicketNumber
}

// adopt re-reads the ticket a concurrent issuance created for the unit
// slot.  The winner may not have sealed its credential yet; sealing it
// here too is harmless, either write yields a decodable credential for
// the same ticket.
func (i *Issuer) adopt(ctx context.Context, bookingID uint64, unit uint32, seat *model.Seat, issuedAt int64) (*model.Ticket, error) {
	t, err := i.Tickets.GetByBookingUnit(ctx, bookingID, unit)
	if err != nil {
		return nil, err
	}
	if t.Credential == "" {
		if err := i.seal(ctx, t, seat, issuedAt); err != nil {
			return nil, err
		}
	}
	return t, nil
}

// seal encodes the credential for a persisted ticket and stores it.
// The credential embeds the ticket id for fast lookup, which is why
// the row exists before it is sealed.
func (i *Issuer) seal(ctx context.Context, t *model.Ticket, seat *model.Seat, issuedAt int64) error {
	payload := credential.TicketPayload{
		TicketID:     t.ID,
		EventID:      t.EventID,
		BookingID:    t.BookingID,
		TicketNumber: t.TicketNumber,
		IssuedAt:     issuedAt,
	}
	if seat != nil {
		payload.Section = seat.Section
		payload.RowLabel = seat.RowLabel
		payload.SeatNumber = seat.SeatNumber
	}
	cred, err := i.Codec.Encode(payload)
	if err != nil {
		return err
	}
	if err := i.Tickets.SetCredential(ctx, t.ID, cred); err != nil {
		return err
	}
	t.Credential = cred
	return nil
}

// ticketPrefix derives the human-readable number prefix from the
// event: up to three leading letters of the name plus the event id,
// e.g. "Summer Fest" (id 42) -> "SUM42".  The result always matches
// the legacy fallback pattern so printed numbers stay scannable.
func ticketPrefix(event *model.Event) string {
	var b strings.Builder
	for _, r := range strings.ToUpper(event.Name) {
		if r >= 'A' && r <= 'Z' {
			b.WriteRune(r)
			if b.Len() == 3 {
				break
			}
		}
	}
	if b.Len() == 0 {
		b.WriteString("EV")
	}
	prefix := fmt.Sprintf("%s%d", b.String(), event.ID)
	if len(prefix) > 8 {
		prefix = prefix[:8]
	}
	return prefix
}

// newTicketNumber joins the prefix with a random suffix drawn from the
// unambiguous alphabet.
func newTicketNumber(prefix string) (string, error) {
	buf := make([]byte, suffixLength)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	for i, c := range buf {
		buf[i] = suffixAlphabet[int(c)%len(suffixAlphabet)]
	}
	number := prefix + "-" + string(buf)
	if !credential.IsTicketNumber(number) {
		return "", fmt.Errorf("generated ticket number %q is malformed", number)
	}
	return number, nil
}
