// Package queue defines message payloads exchanged over the message
// broker plus the publisher and background consumer for them.
package queue

// TicketScannedEvent is published for every scan attempt, successful
// or not.  It carries enough information for downstream consumers to
// log, notify or feed dashboards without querying the primary
// database.
type TicketScannedEvent struct {
	Ref          string `json:"ref"`
	TicketID     uint64 `json:"ticket_id,omitempty"`
	TicketNumber string `json:"ticket_number,omitempty"`
	EventID      uint64 `json:"event_id"`
	Result       string `json:"result"`
	ScannedBy    uint64 `json:"scanned_by"`
	DeviceInfo   string `json:"device_info,omitempty"`
	ScannedAt    string `json:"scanned_at"`
}
