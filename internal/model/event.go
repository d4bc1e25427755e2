package model

import "time"

// Event represents a scheduled event that tickets are issued for.
// Events are created and managed by an external admin system; this
// service treats them as a read-only dependency.  The Seated flag
// controls whether tickets are paired with allocated seats.
//
// Fields:
//
//	ID        – primary key identifier.
//	Name      – display name of the event.
//	Capacity  – maximum number of admissions.
//	Seated    – true when the event uses seat allocation.
//	StartsAt  – when the event begins.
//	CreatedAt – creation timestamp.
//	UpdatedAt – last update timestamp.
type Event struct {
	ID        uint64    // events.id
	Name      string    // events.name
	Capacity  uint32    // events.capacity
	Seated    bool      // events.seated
	StartsAt  time.Time // events.starts_at
	CreatedAt time.Time // events.created_at
	UpdatedAt time.Time // events.updated_at
}
