package repository

import "context"

// Store is the durable store behind the engine. InTx runs fn in one atomic
// unit of work with serializable semantics: either every write made through
// tx becomes visible, or none does. A transaction that lost a race against a
// concurrent one fails with a Conflict error and is not retried.
type Store interface {
	InTx(ctx context.Context, fn func(tx Tx) error) error
	Close()
}

// Tx groups the per-table stores available inside a transaction.
type Tx interface {
	Events() EventStore
	Venues() VenueStore
	Resources() ResourceStore
	Approvals() ApprovalStore
	Notifications() NotificationStore
}

// EventStore persists events and their requested resources.
type EventStore interface {
	// Create inserts e in its current stage together with e.Resources and
	// fills ID, Version and timestamps.
	Create(ctx context.Context, e *Event) error
	// Get returns the event with its requested resources or NotFound.
	Get(ctx context.Context, id string) (*Event, error)
	// Transition moves the event from one stage to another only if it is
	// still in from; otherwise it fails with Conflict.
	Transition(ctx context.Context, id string, from, to Stage, rejectionReason string) error
	// ActiveBookings lists the venue's events whose stage holds the slot.
	ActiveBookings(ctx context.Context, venueID string) ([]Booking, error)
	List(ctx context.Context, filter EventFilter) ([]*Event, error)
	CountByStage(ctx context.Context) (map[Stage]int, error)
}

// VenueStore persists venues.
type VenueStore interface {
	Create(ctx context.Context, v *Venue) error
	Get(ctx context.Context, id string) (*Venue, error)
	List(ctx context.Context) ([]*Venue, error)
}

// ResourceStore persists resources, their availability and reservations.
type ResourceStore interface {
	Create(ctx context.Context, r *Resource) error
	Get(ctx context.Context, id string) (*Resource, error)
	List(ctx context.Context) ([]*Resource, error)
	// TryDecrement subtracts qty from available only when available >= qty,
	// checked in the same atomic step. It returns the availability after the
	// attempt and whether it succeeded.
	TryDecrement(ctx context.Context, id string, qty int) (available int, ok bool, err error)
	// Increment adds qty back, never past total.
	Increment(ctx context.Context, id string, qty int) error
	AddReservations(ctx context.Context, eventID string, items []ResourceQuantity) error
	Reservations(ctx context.Context, eventID string) ([]ResourceQuantity, error)
	// DeleteReservations removes and returns the event's reservation rows.
	DeleteReservations(ctx context.Context, eventID string) ([]ResourceQuantity, error)
}

// ApprovalStore is the append-only audit trail.
type ApprovalStore interface {
	Append(ctx context.Context, rec *ApprovalRecord) error
	Trail(ctx context.Context, eventID string) ([]*ApprovalRecord, error)
}

// NotificationStore is the notification outbox.
type NotificationStore interface {
	Create(ctx context.Context, n *Notification) error
	List(ctx context.Context, recipient string, unreadOnly bool) ([]*Notification, error)
	MarkRead(ctx context.Context, id, recipient string) error
}
