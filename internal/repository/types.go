package repository

import "time"

// ── Stages and roles ─────────────────────────────────────────────────────────

// Stage is a step in an event's approval lifecycle.
type Stage string

const (
	StagePendingHOD  Stage = "pending_hod"
	StagePendingDean Stage = "pending_dean"
	StagePendingHead Stage = "pending_head"
	StageApproved    Stage = "approved"
	StageCompleted   Stage = "completed"
	StageRejected    Stage = "rejected"
)

// AllStages lists every stage in lifecycle order.
var AllStages = []Stage{
	StagePendingHOD, StagePendingDean, StagePendingHead,
	StageApproved, StageCompleted, StageRejected,
}

// IsPending reports whether the stage awaits an approver.
func (s Stage) IsPending() bool {
	return s == StagePendingHOD || s == StagePendingDean || s == StagePendingHead
}

// IsActive reports whether an event in this stage holds its venue slot.
func (s Stage) IsActive() bool {
	return s.IsPending() || s == StageApproved
}

// IsTerminal reports whether no further transition is allowed.
func (s Stage) IsTerminal() bool {
	return s == StageCompleted || s == StageRejected
}

// Valid reports whether s is a known stage.
func (s Stage) Valid() bool {
	for _, st := range AllStages {
		if s == st {
			return true
		}
	}
	return false
}

// Role is the capability a caller acts with, as asserted by the identity layer.
type Role string

const (
	RoleHOD         Role = "hod"
	RoleDean        Role = "dean"
	RoleHead        Role = "head"
	RoleCoordinator Role = "coordinator"
	RoleAdmin       Role = "admin"
)

var roleLabels = map[Role]string{
	RoleCoordinator: "Event Coordinator",
	RoleHOD:         "Head of Department",
	RoleDean:        "Dean",
	RoleHead:        "Institutional Head",
	RoleAdmin:       "Admin / ITC",
}

// Label is the human-readable role name.
func (r Role) Label() string {
	if l, ok := roleLabels[r]; ok {
		return l
	}
	return string(r)
}

// Decision is what an approval record captured.
type Decision string

const (
	DecisionSubmit   Decision = "submit"
	DecisionAdvance  Decision = "advance"
	DecisionReject   Decision = "reject"
	DecisionComplete Decision = "complete"
)

// ── Time ─────────────────────────────────────────────────────────────────────

// Interval is a half-open time range [Start, End).
type Interval struct {
	Start time.Time `json:"start"`
	End   time.Time `json:"end"`
}

// Valid reports whether End is strictly after Start.
func (i Interval) Valid() bool {
	return i.End.After(i.Start)
}

// Overlaps reports whether the two intervals share an instant. Touching
// endpoints do not overlap.
func (i Interval) Overlaps(o Interval) bool {
	return i.Start.Before(o.End) && o.Start.Before(i.End)
}

// ── Records ──────────────────────────────────────────────────────────────────

// ResourceQuantity pairs a resource with a whole-unit quantity.
type ResourceQuantity struct {
	ResourceID string `json:"resource_id"`
	Quantity   int    `json:"quantity"`
}

// Event is an event request moving through approval.
type Event struct {
	ID              string             `json:"id"`
	Title           string             `json:"title"`
	Description     string             `json:"description"`
	OrganizerID     string             `json:"organizer_id"`
	VenueID         string             `json:"venue_id"`
	Interval        Interval           `json:"interval"`
	AttendeeCount   int                `json:"attendee_count"`
	Stage           Stage              `json:"stage"`
	RejectionReason string             `json:"rejection_reason,omitempty"`
	Resources       []ResourceQuantity `json:"resources"`
	Version         int                `json:"version"`
	CreatedAt       time.Time          `json:"created_at"`
	UpdatedAt       time.Time          `json:"updated_at"`
}

// Venue is a bookable location.
type Venue struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Capacity  int       `json:"capacity"`
	Location  string    `json:"location"`
	CreatedAt time.Time `json:"created_at"`
}

// Booking is an active event's claim on a venue slot.
type Booking struct {
	EventID  string   `json:"event_id"`
	VenueID  string   `json:"venue_id"`
	Interval Interval `json:"interval"`
	Stage    Stage    `json:"stage"`
}

// Resource is countable equipment. Total is fixed after creation.
type Resource struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Total     int       `json:"total"`
	Available int       `json:"available"`
	CreatedAt time.Time `json:"created_at"`
}

// ApprovalRecord is one immutable entry in an event's audit trail.
type ApprovalRecord struct {
	ID         string    `json:"id"`
	EventID    string    `json:"event_id"`
	FromStage  Stage     `json:"from_stage"`
	ToStage    Stage     `json:"to_stage"`
	ActorRole  Role      `json:"actor_role"`
	Decision   Decision  `json:"decision"`
	Comment    string    `json:"comment,omitempty"`
	RecordedAt time.Time `json:"recorded_at"`
}

// Notification is an outbox row for the approver or organizer who needs to act
// or be told about a transition.
type Notification struct {
	ID        string    `json:"id"`
	Recipient string    `json:"recipient"`
	EventID   string    `json:"event_id,omitempty"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"created_at"`
}

// EventSnapshot is the read model returned to callers.
type EventSnapshot struct {
	Event    *Event             `json:"event"`
	Trail    []*ApprovalRecord  `json:"trail"`
	Reserved []ResourceQuantity `json:"reserved"`
}

// EventFilter narrows event listings. Zero values match everything.
type EventFilter struct {
	Stage       Stage
	OrganizerID string
	VenueID     string
	Limit       int
	Offset      int
}
