package service

import (
	"context"
	"errors"
	"log"
	"time"

	"github.com/iliyamo/ticket-gate/internal/credential"
	"github.com/iliyamo/ticket-gate/internal/model"
	"github.com/iliyamo/ticket-gate/internal/queue"
	"github.com/iliyamo/ticket-gate/internal/repository"
)

// ScanEventPublisher pushes scan outcomes onto the message broker for
// downstream consumers (audit trail, dashboards).  Publishing is
// best-effort: a broker outage must never block an admission.
type ScanEventPublisher interface {
	PublishTicketScanned(ctx context.Context, ev queue.TicketScannedEvent) error
}

// ScanOutcome is the business result of a scan attempt.  Invalid
// credentials and duplicate scans are outcomes, not errors — only
// storage failures surface as errors from Validate.
type ScanOutcome struct {
	Result string
	// Ref is the audit-trail reference for this attempt.
	Ref string
	// Ticket is set for every outcome that resolved to a ticket.
	Ticket *model.Ticket
	// FirstScannedAt and ScanCount report the state before this
	// attempt for already_used outcomes, so staff can see when the
	// credential was first admitted.
	FirstScannedAt *time.Time
	ScanCount      uint32
}

// Validator runs the check-in state machine.  All correctness under
// concurrent scans comes from the ticket store's conditional update:
// the validator holds no locks of its own.
type Validator struct {
	Tickets   TicketStore
	Scans     ScanStore
	Codec     *credential.Codec
	Publisher ScanEventPublisher // optional; nil disables events

	// Now is overridable for tests; defaults to time.Now.
	Now func() time.Time
}

// NewValidator constructs a Validator.
func NewValidator(tickets TicketStore, scans ScanStore, codec *credential.Codec, pub ScanEventPublisher) *Validator {
	if tickets == nil || scans == nil || codec == nil {
		panic("nil dependency passed to NewValidator")
	}
	return &Validator{Tickets: tickets, Scans: scans, Codec: codec, Publisher: pub, Now: time.Now}
}

// Validate decodes a presented credential, resolves the ticket and
// performs the atomic VALID -> USED transition.  Every attempt is
// recorded in the audit trail, including ones that never resolve to a
// ticket.  Under concurrent scans of the same credential exactly one
// call returns success; the losers observe already_used.
func (v *Validator) Validate(ctx context.Context, cred string, eventID, scannedBy uint64, deviceInfo string) (*ScanOutcome, error) {
	record := &model.ScanRecord{EventID: eventID, ScannedBy: scannedBy}
	if deviceInfo != "" {
		record.DeviceInfo = &deviceInfo
	}

	decoded, err := v.Codec.Decode(cred)
	if err != nil {
		var de *credential.DecodeError
		if errors.As(err, &de) {
			return v.finish(ctx, record, model.ScanInvalid, nil)
		}
		return nil, err
	}

	ticket, err := v.resolve(ctx, decoded)
	if err != nil {
		if errors.Is(err, repository.ErrTicketNotFound) {
			return v.finish(ctx, record, model.ScanInvalid, nil)
		}
		return nil, err
	}
	record.TicketID = &ticket.ID

	if ticket.EventID != eventID {
		return v.finish(ctx, record, model.ScanWrongEvent, ticket)
	}
	switch ticket.Status {
	case model.TicketCancelled:
		return v.finish(ctx, record, model.ScanCancelled, ticket)
	case model.TicketUsed:
		return v.duplicate(ctx, record, ticket)
	}

	now := v.Now().UTC()
	ok, err := v.Tickets.CheckIn(ctx, ticket.ID, scannedBy, now)
	if err != nil {
		return nil, err
	}
	if !ok {
		// Lost the swap to a concurrent scan; re-read so the outcome
		// reports the winner's admission time.
		fresh, err := v.Tickets.GetByID(ctx, ticket.ID)
		if err != nil {
			return nil, err
		}
		return v.duplicate(ctx, record, fresh)
	}

	ticket.Status = model.TicketUsed
	ticket.ScanCount = 1
	ticket.FirstScannedAt = &now
	ticket.LastScannedAt = &now
	ticket.CheckedInBy = &scannedBy
	return v.finish(ctx, record, model.ScanSuccess, ticket)
}

// resolve maps a decoded credential onto a ticket row.  The encrypted
// payload is looked up by id with a number fallback; a legacy plain
// number goes straight to the number index.
func (v *Validator) resolve(ctx context.Context, decoded *credential.Decoded) (*model.Ticket, error) {
	if decoded.Payload != nil {
		ticket, err := v.Tickets.GetByID(ctx, decoded.Payload.TicketID)
		if errors.Is(err, repository.ErrTicketNotFound) && decoded.Payload.TicketNumber != "" {
			return v.Tickets.GetByNumber(ctx, decoded.Payload.TicketNumber)
		}
		return ticket, err
	}
	return v.Tickets.GetByNumber(ctx, decoded.TicketNumber)
}

// duplicate records a repeat attempt: the counter is bumped for
// forensics, but the reported first-scan state stays as it was so
// staff see the original admission.
func (v *Validator) duplicate(ctx context.Context, record *model.ScanRecord, ticket *model.Ticket) (*ScanOutcome, error) {
	if err := v.Tickets.RecordRepeatScan(ctx, ticket.ID, v.Now().UTC()); err != nil {
		return nil, err
	}
	return v.finish(ctx, record, model.ScanAlreadyUsed, ticket)
}

// finish appends the audit row, publishes the scan event and shapes
// the outcome.  An audit append failure is a hard failure: the trail
// must hold one row per attempt, no exceptions.
func (v *Validator) finish(ctx context.Context, record *model.ScanRecord, result string, ticket *model.Ticket) (*ScanOutcome, error) {
	record.Result = result
	if err := v.Scans.Append(ctx, record); err != nil {
		return nil, err
	}
	out := &ScanOutcome{Result: result, Ref: record.Ref, Ticket: ticket}
	if ticket != nil {
		out.FirstScannedAt = ticket.FirstScannedAt
		out.ScanCount = ticket.ScanCount
	}
	v.publish(ctx, record, ticket)
	return out, nil
}

func (v *Validator) publish(ctx context.Context, record *model.ScanRecord, ticket *model.Ticket) {
	if v.Publisher == nil {
		return
	}
	ev := queue.TicketScannedEvent{
		Ref:       record.Ref,
		EventID:   record.EventID,
		Result:    record.Result,
		ScannedBy: record.ScannedBy,
		ScannedAt: v.Now().UTC().Format(time.RFC3339),
	}
	if ticket != nil {
		ev.TicketID = ticket.ID
		ev.TicketNumber = ticket.TicketNumber
	}
	if record.DeviceInfo != nil {
		ev.DeviceInfo = *record.DeviceInfo
	}
	if err := v.Publisher.PublishTicketScanned(ctx, ev); err != nil {
		log.Printf("scan event publish failed: %v", err)
	}
}
