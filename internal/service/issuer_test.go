package service

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/iliyamo/ticket-gate/internal/credential"
	"github.com/iliyamo/ticket-gate/internal/model"
)

func testCodec(t *testing.T) *credential.Codec {
	t.Helper()
	c, err := credential.NewCodec("issuer-test-secret")
	if err != nil {
		t.Fatalf("NewCodec: %v", err)
	}
	return c
}

func testIssuer(t *testing.T, events *fakeEvents, bookings *fakeBookings, seats *fakeSeats, tickets *fakeTickets) *Issuer {
	t.Helper()
	iss := NewIssuer(events, bookings, seats, tickets, testCodec(t))
	iss.Now = func() time.Time { return time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC) }
	return iss
}

func unseatedFixture(quantity uint32) (*fakeEvents, *fakeBookings, *fakeSeats, *fakeTickets) {
	events := &fakeEvents{events: map[uint64]model.Event{
		7: {ID: 7, Name: "Summer Fest", Capacity: 500, Seated: false},
	}}
	bookings := &fakeBookings{bookings: map[uint64]model.Booking{
		100: {ID: 100, EventID: 7, Quantity: quantity, PaymentStatus: model.PaymentPaid},
	}}
	return events, bookings, &fakeSeats{}, newFakeTickets()
}

func TestIssueCreatesQuantityTickets(t *testing.T) {
	events, bookings, seats, tickets := unseatedFixture(3)
	iss := testIssuer(t, events, bookings, seats, tickets)

	res, err := iss.Issue(context.Background(), 100)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if res.AlreadyIssued {
		t.Fatal("fresh issuance flagged as already issued")
	}
	if len(res.Tickets) != 3 {
		t.Fatalf("got %d tickets, want 3", len(res.Tickets))
	}
	numbers := make(map[string]bool)
	for _, tk := range res.Tickets {
		if tk.Status != model.TicketValid {
			t.Errorf("ticket %s status = %s, want VALID", tk.TicketNumber, tk.Status)
		}
		if tk.ScanCount != 0 {
			t.Errorf("ticket %s scan count = %d, want 0", tk.TicketNumber, tk.ScanCount)
		}
		if !strings.HasPrefix(tk.TicketNumber, "SUM7-") {
			t.Errorf("ticket number %q missing event-derived prefix", tk.TicketNumber)
		}
		if !credential.IsTicketNumber(tk.TicketNumber) {
			t.Errorf("ticket number %q does not match the fallback pattern", tk.TicketNumber)
		}
		numbers[tk.TicketNumber] = true
	}
	if len(numbers) != 3 {
		t.Fatalf("ticket numbers are not distinct: %v", numbers)
	}
}

func TestIssueCredentialRoundTrips(t *testing.T) {
	events, bookings, seats, tickets := unseatedFixture(1)
	iss := testIssuer(t, events, bookings, seats, tickets)

	res, err := iss.Issue(context.Background(), 100)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	tk := res.Tickets[0]
	dec, err := iss.Codec.Decode(tk.Credential)
	if err != nil {
		t.Fatalf("decoding issued credential: %v", err)
	}
	p := dec.Payload
	if p == nil {
		t.Fatal("issued credential decoded through the legacy path")
	}
	if p.TicketID != tk.ID || p.EventID != 7 || p.BookingID != 100 || p.TicketNumber != tk.TicketNumber {
		t.Fatalf("payload %+v does not match ticket %+v", p, tk)
	}
	// The stored row must carry the same credential the caller got.
	stored, err := tickets.GetByID(context.Background(), tk.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if stored.Credential != tk.Credential {
		t.Fatal("persisted credential differs from returned credential")
	}
}

func TestIssueIsIdempotent(t *testing.T) {
	events, bookings, seats, tickets := unseatedFixture(3)
	iss := testIssuer(t, events, bookings, seats, tickets)

	first, err := iss.Issue(context.Background(), 100)
	if err != nil {
		t.Fatalf("first Issue: %v", err)
	}
	second, err := iss.Issue(context.Background(), 100)
	if err != nil {
		t.Fatalf("second Issue: %v", err)
	}
	if !second.AlreadyIssued {
		t.Fatal("second issuance not flagged as already issued")
	}
	if len(second.Tickets) != len(first.Tickets) {
		t.Fatalf("second issuance returned %d tickets, want %d", len(second.Tickets), len(first.Tickets))
	}
	for i := range first.Tickets {
		if first.Tickets[i].TicketNumber != second.Tickets[i].TicketNumber {
			t.Errorf("ticket %d number changed: %q -> %q", i, first.Tickets[i].TicketNumber, second.Tickets[i].TicketNumber)
		}
	}
	if got := len(tickets.byID); got != 3 {
		t.Fatalf("store holds %d tickets after double issuance, want 3", got)
	}
}

func TestIssuePairsSeatsInOrder(t *testing.T) {
	events := &fakeEvents{events: map[uint64]model.Event{
		9: {ID: 9, Name: "Opera Night", Seated: true},
	}}
	bookings := &fakeBookings{bookings: map[uint64]model.Booking{
		200: {ID: 200, EventID: 9, Quantity: 2, PaymentStatus: model.PaymentPaid},
	}}
	bid := uint64(200)
	seats := &fakeSeats{seats: []model.Seat{
		{ID: 11, EventID: 9, Section: "FLOOR", SeatNumber: 5, Status: model.SeatBooked, BookingID: &bid},
		{ID: 12, EventID: 9, Section: "FLOOR", SeatNumber: 3, Status: model.SeatBooked, BookingID: &bid},
	}}
	iss := testIssuer(t, events, bookings, seats, newFakeTickets())

	res, err := iss.Issue(context.Background(), 200)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if len(res.Tickets) != 2 {
		t.Fatalf("got %d tickets, want 2", len(res.Tickets))
	}
	// Seats pair in ascending seat-number order: seat 3 first.
	if res.Tickets[0].SeatID == nil || *res.Tickets[0].SeatID != 12 {
		t.Errorf("ticket 0 seat = %v, want 12", res.Tickets[0].SeatID)
	}
	if res.Tickets[1].SeatID == nil || *res.Tickets[1].SeatID != 11 {
		t.Errorf("ticket 1 seat = %v, want 11", res.Tickets[1].SeatID)
	}
	dec, err := iss.Codec.Decode(res.Tickets[0].Credential)
	if err != nil {
		t.Fatalf("Decode: %v", err)
	}
	if dec.Payload.SeatNumber != 3 || dec.Payload.Section != "FLOOR" {
		t.Errorf("payload seat info = %+v, want seat 3 FLOOR", dec.Payload)
	}
}

func TestIssueRetriesNumberCollisionOnce(t *testing.T) {
	events, bookings, seats, tickets := unseatedFixture(2)
	tickets.failDuplicateOnce = true
	iss := testIssuer(t, events, bookings, seats, tickets)

	res, err := iss.Issue(context.Background(), 100)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if len(res.Tickets) != 2 {
		t.Fatalf("got %d tickets, want 2", len(res.Tickets))
	}
}

func TestIssueSurfacesPartialFailure(t *testing.T) {
	events, bookings, seats, tickets := unseatedFixture(3)
	tickets.failCreatesAfter = 2 // third insert and later fail hard
	iss := testIssuer(t, events, bookings, seats, tickets)

	res, err := iss.Issue(context.Background(), 100)
	var pe *PartialIssueError
	if !errors.As(err, &pe) {
		t.Fatalf("expected PartialIssueError, got %v", err)
	}
	if len(pe.Failed) != 1 || pe.Failed[0] != 2 {
		t.Fatalf("failed indices = %v, want [2]", pe.Failed)
	}
	if res == nil || len(res.Tickets) != 2 {
		t.Fatalf("partial result should carry the 2 issued tickets, got %+v", res)
	}
}

func TestIssueTopsUpAfterPartialFailure(t *testing.T) {
	events, bookings, seats, tickets := unseatedFixture(3)
	tickets.failCreatesAfter = 2
	iss := testIssuer(t, events, bookings, seats, tickets)

	if _, err := iss.Issue(context.Background(), 100); err == nil {
		t.Fatal("expected partial failure on first issuance")
	}
	tickets.failCreatesAfter = -1

	res, err := iss.Issue(context.Background(), 100)
	if err != nil {
		t.Fatalf("retry Issue: %v", err)
	}
	if res.AlreadyIssued {
		t.Fatal("top-up issuance flagged as already issued")
	}
	if len(res.Tickets) != 3 {
		t.Fatalf("retry returned %d tickets, want 3", len(res.Tickets))
	}
	if got := len(tickets.byID); got != 3 {
		t.Fatalf("store holds %d tickets after top-up, want 3", got)
	}

	again, err := iss.Issue(context.Background(), 100)
	if err != nil {
		t.Fatalf("third Issue: %v", err)
	}
	if !again.AlreadyIssued || len(again.Tickets) != 3 {
		t.Fatalf("full set should be idempotent, got %+v", again)
	}
}

func TestIssueConcurrentCallsMintExactlyQuantity(t *testing.T) {
	events, bookings, seats, tickets := unseatedFixture(3)
	iss := testIssuer(t, events, bookings, seats, tickets)

	const callers = 8
	results := make([]*IssueResult, callers)
	errs := make([]error, callers)
	var wg sync.WaitGroup
	for c := 0; c < callers; c++ {
		wg.Add(1)
		go func(c int) {
			defer wg.Done()
			results[c], errs[c] = iss.Issue(context.Background(), 100)
		}(c)
	}
	wg.Wait()

	// The unit-slot unique key makes racing issuers converge on one
	// set: whoever loses an insert adopts the winner's row.
	if got := len(tickets.byID); got != 3 {
		t.Fatalf("store holds %d tickets after %d concurrent issuances, want 3", got, callers)
	}
	want := map[uint32]uint64{}
	for _, tk := range tickets.byID {
		want[tk.UnitIndex] = tk.ID
	}
	for c := 0; c < callers; c++ {
		if errs[c] != nil {
			t.Fatalf("caller %d: %v", c, errs[c])
		}
		if len(results[c].Tickets) != 3 {
			t.Fatalf("caller %d got %d tickets, want 3", c, len(results[c].Tickets))
		}
		for _, tk := range results[c].Tickets {
			if want[tk.UnitIndex] != tk.ID {
				t.Fatalf("caller %d unit %d got ticket %d, persisted row is %d", c, tk.UnitIndex, tk.ID, want[tk.UnitIndex])
			}
			if tk.Credential == "" {
				t.Fatalf("caller %d unit %d returned an unsealed ticket", c, tk.UnitIndex)
			}
		}
	}
}

func TestIssueResealsTicketLeftWithoutCredential(t *testing.T) {
	events, bookings, seats, tickets := unseatedFixture(2)
	tickets.failSealsAfter = 1 // second seal and later fail hard
	iss := testIssuer(t, events, bookings, seats, tickets)

	_, err := iss.Issue(context.Background(), 100)
	var pe *PartialIssueError
	if !errors.As(err, &pe) {
		t.Fatalf("expected PartialIssueError, got %v", err)
	}
	if len(pe.Failed) != 1 || pe.Failed[0] != 1 {
		t.Fatalf("failed indices = %v, want [1]", pe.Failed)
	}
	tickets.failSealsAfter = -1

	// The row for unit 1 persisted without a credential; the retry
	// must seal it rather than hand it back QR-less or mint a spare.
	res, err := iss.Issue(context.Background(), 100)
	if err != nil {
		t.Fatalf("retry Issue: %v", err)
	}
	if len(res.Tickets) != 2 {
		t.Fatalf("retry returned %d tickets, want 2", len(res.Tickets))
	}
	if got := len(tickets.byID); got != 2 {
		t.Fatalf("store holds %d tickets after retry, want 2", got)
	}
	for _, tk := range res.Tickets {
		if tk.Credential == "" {
			t.Fatalf("ticket %s still unsealed after retry", tk.TicketNumber)
		}
		dec, err := iss.Codec.Decode(tk.Credential)
		if err != nil {
			t.Fatalf("decoding credential of %s: %v", tk.TicketNumber, err)
		}
		if dec.Payload == nil || dec.Payload.TicketID != tk.ID {
			t.Fatalf("credential of %s does not resolve to its ticket", tk.TicketNumber)
		}
		stored, err := tickets.GetByID(context.Background(), tk.ID)
		if err != nil {
			t.Fatalf("GetByID: %v", err)
		}
		if stored.Credential != tk.Credential {
			t.Fatalf("persisted credential of %s differs from returned one", tk.TicketNumber)
		}
	}
}

func TestIssueUnknownBooking(t *testing.T) {
	events, bookings, seats, tickets := unseatedFixture(1)
	iss := testIssuer(t, events, bookings, seats, tickets)
	if _, err := iss.Issue(context.Background(), 999); err == nil {
		t.Fatal("expected error for unknown booking")
	}
}

func TestTicketPrefixDerivation(t *testing.T) {
	cases := []struct {
		name string
		id   uint64
		want string
	}{
		{"Summer Fest", 42, "SUM42"},
		{"opera", 3, "OPE3"},
		{"2049 !!", 8, "EV8"},
		{"Grand International Gala", 123456, "GRA12345"},
	}
	for _, tc := range cases {
		got := ticketPrefix(&model.Event{ID: tc.id, Name: tc.name})
		if got != tc.want {
			t.Errorf("ticketPrefix(%q, %d) = %q, want %q", tc.name, tc.id, got, tc.want)
		}
	}
}
