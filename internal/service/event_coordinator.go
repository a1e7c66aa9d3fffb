package service

import (
	"context"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/pesio-ai/be-event-approvals/internal/errors"
	"github.com/pesio-ai/be-event-approvals/internal/logger"
	"github.com/pesio-ai/be-event-approvals/internal/metrics"
	"github.com/pesio-ai/be-event-approvals/internal/repository"
)

// SnapshotCache is the read-through cache for GetEvent.
type SnapshotCache interface {
	Get(ctx context.Context, eventID string) (*repository.EventSnapshot, bool, error)
	Set(ctx context.Context, snap *repository.EventSnapshot) error
	Invalidate(ctx context.Context, eventID string) error
}

// EventCoordinator is the entry point for callers. Each public mutating call
// is one store transaction: the state machine, detector, ledger and outbox
// writes either all commit or all roll back.
type EventCoordinator struct {
	store    repository.Store
	machine  *ApprovalStateMachine
	notifier *Notifier
	cache    SnapshotCache
	metrics  *metrics.Metrics
	log      *logger.Logger
}

// NewEventCoordinator creates a new EventCoordinator. cache and m may be nil.
func NewEventCoordinator(
	store repository.Store,
	cache SnapshotCache,
	m *metrics.Metrics,
	log *logger.Logger,
) *EventCoordinator {
	return &EventCoordinator{
		store:    store,
		machine:  NewApprovalStateMachine(NewVenueConflictDetector(), NewResourceLedger()),
		notifier: NewNotifier(),
		cache:    cache,
		metrics:  m,
		log:      log.Component("event_coordinator"),
	}
}

// SubmitRequest is a new event request from an organizer.
type SubmitRequest struct {
	Title         string
	Description   string
	OrganizerID   string
	VenueID       string
	Start         time.Time
	End           time.Time
	AttendeeCount int
	Resources     []repository.ResourceQuantity
}

// ── Mutations ─────────────────────────────────────────────────────────────────

// Submit creates the event in pending_hod and returns its id.
func (c *EventCoordinator) Submit(ctx context.Context, req *SubmitRequest) (string, error) {
	e := &repository.Event{
		Title:         strings.TrimSpace(req.Title),
		Description:   strings.TrimSpace(req.Description),
		OrganizerID:   req.OrganizerID,
		VenueID:       req.VenueID,
		Interval:      repository.Interval{Start: req.Start, End: req.End},
		AttendeeCount: req.AttendeeCount,
		Resources:     req.Resources,
	}

	tr, err := c.run(ctx, "submit", func(tx repository.Tx) (*Transition, error) {
		return c.machine.Submit(ctx, tx, e)
	})
	if err != nil {
		return "", err
	}
	return tr.Event.ID, nil
}

// Advance approves the event's current stage on behalf of role.
func (c *EventCoordinator) Advance(ctx context.Context, eventID string, role repository.Role) error {
	return c.AdvanceWithComment(ctx, eventID, role, "")
}

// AdvanceWithComment is Advance with a note kept in the approval trail.
func (c *EventCoordinator) AdvanceWithComment(ctx context.Context, eventID string, role repository.Role, comment string) error {
	_, err := c.run(ctx, "advance", func(tx repository.Tx) (*Transition, error) {
		return c.machine.Advance(ctx, tx, eventID, role, strings.TrimSpace(comment))
	})
	return err
}

// Reject ends a pending event.
func (c *EventCoordinator) Reject(ctx context.Context, eventID string, role repository.Role, reason string) error {
	_, err := c.run(ctx, "reject", func(tx repository.Tx) (*Transition, error) {
		return c.machine.Reject(ctx, tx, eventID, role, reason)
	})
	return err
}

// Complete closes an approved event and returns its resources.
func (c *EventCoordinator) Complete(ctx context.Context, eventID string) error {
	_, err := c.run(ctx, "complete", func(tx repository.Tx) (*Transition, error) {
		return c.machine.Complete(ctx, tx, eventID, repository.RoleCoordinator, nil)
	})
	return err
}

// CompleteAs is Complete on behalf of a caller. A coordinator may only
// complete events it organizes; admin may complete any event.
func (c *EventCoordinator) CompleteAs(ctx context.Context, eventID string, role repository.Role, actorID string) error {
	_, err := c.run(ctx, "complete", func(tx repository.Tx) (*Transition, error) {
		return c.machine.Complete(ctx, tx, eventID, role, func(e *repository.Event) error {
			switch {
			case role == repository.RoleAdmin:
				return nil
			case role == repository.RoleCoordinator && actorID != "" && actorID == e.OrganizerID:
				return nil
			default:
				return errNotOrganizer(e.ID, role, actorID)
			}
		})
	})
	return err
}

func (c *EventCoordinator) run(
	ctx context.Context,
	op string,
	fn func(tx repository.Tx) (*Transition, error),
) (*Transition, error) {
	started := time.Now()

	var tr *Transition
	err := c.store.InTx(ctx, func(tx repository.Tx) error {
		var err error
		tr, err = fn(tx)
		if err != nil {
			return err
		}
		return c.notifier.Notify(ctx, tx.Notifications(), tr)
	})
	if err != nil {
		code := errors.CodeOf(err)
		c.metrics.ObserveOperation(op, started, string(code))

		ev := c.log.Warn()
		if code == errors.ErrCodeInternal {
			ev = c.log.Error()
		}
		ev.Err(err).
			Str("operation", op).
			Str("code", string(code)).
			Msg("Event operation failed")
		return nil, err
	}

	c.metrics.ObserveOperation(op, started, "")
	c.committed(ctx, op, tr)
	return tr, nil
}

// committed does the post-commit bookkeeping. Nothing here can undo the
// transition, so failures are only logged.
func (c *EventCoordinator) committed(ctx context.Context, op string, tr *Transition) {
	c.metrics.Transition(string(tr.From), string(tr.To))
	for _, rq := range tr.Reserved {
		c.metrics.Reserved(rq.ResourceID, rq.Quantity)
	}
	for _, rq := range tr.Released {
		c.metrics.Released(rq.ResourceID, rq.Quantity)
	}

	c.log.Info().
		Str("operation", op).
		Str("event_id", tr.Event.ID).
		Str("from", string(tr.From)).
		Str("to", string(tr.To)).
		Str("actor_role", string(tr.Record.ActorRole)).
		Func(func(e *zerolog.Event) {
			if len(tr.Reserved) > 0 {
				e.Int("resources_reserved", len(tr.Reserved))
			}
			if len(tr.Released) > 0 {
				e.Int("resources_released", len(tr.Released))
			}
		}).
		Msg("Event transitioned")

	if c.cache == nil {
		return
	}
	if err := c.cache.Invalidate(ctx, tr.Event.ID); err != nil {
		c.log.Warn().Err(err).Str("event_id", tr.Event.ID).Msg("Failed to invalidate snapshot cache")
	}
}

// ── Queries ───────────────────────────────────────────────────────────────────

// GetEvent returns the event with its approval trail and current
// reservations.
func (c *EventCoordinator) GetEvent(ctx context.Context, eventID string) (*repository.EventSnapshot, error) {
	if c.cache != nil {
		snap, ok, err := c.cache.Get(ctx, eventID)
		switch {
		case err != nil:
			c.log.Warn().Err(err).Str("event_id", eventID).Msg("Snapshot cache read failed")
		case ok:
			c.metrics.CacheHit()
			return snap, nil
		default:
			c.metrics.CacheMiss()
		}
	}

	snap := &repository.EventSnapshot{}
	err := c.store.InTx(ctx, func(tx repository.Tx) error {
		e, err := tx.Events().Get(ctx, eventID)
		if err != nil {
			return err
		}
		trail, err := tx.Approvals().Trail(ctx, eventID)
		if err != nil {
			return err
		}
		reserved, err := tx.Resources().Reservations(ctx, eventID)
		if err != nil {
			return err
		}
		snap.Event, snap.Trail, snap.Reserved = e, trail, reserved
		return nil
	})
	if err != nil {
		return nil, err
	}

	if c.cache != nil {
		if err := c.cache.Set(ctx, snap); err != nil {
			c.log.Warn().Err(err).Str("event_id", eventID).Msg("Snapshot cache write failed")
		}
	}
	return snap, nil
}

// ListEvents returns events matching filter, newest first.
func (c *EventCoordinator) ListEvents(ctx context.Context, filter repository.EventFilter) ([]*repository.Event, error) {
	if filter.Stage != "" && !filter.Stage.Valid() {
		return nil, errors.InvalidInput("stage", "unknown stage")
	}

	var events []*repository.Event
	err := c.store.InTx(ctx, func(tx repository.Tx) error {
		var err error
		events, err = tx.Events().List(ctx, filter)
		return err
	})
	return events, err
}

// PendingFor is the approver's queue: events waiting in the stage role
// approves.
func (c *EventCoordinator) PendingFor(ctx context.Context, role repository.Role) ([]*repository.Event, error) {
	stage, ok := stageOf(role)
	if !ok {
		return nil, errors.InvalidInput("role", "role approves no stage")
	}
	return c.ListEvents(ctx, repository.EventFilter{Stage: stage})
}

// Stats counts events per stage, including stages with none.
func (c *EventCoordinator) Stats(ctx context.Context) (map[repository.Stage]int, error) {
	var counts map[repository.Stage]int
	err := c.store.InTx(ctx, func(tx repository.Tx) error {
		var err error
		counts, err = tx.Events().CountByStage(ctx)
		return err
	})
	if err != nil {
		return nil, err
	}

	out := make(map[repository.Stage]int, len(repository.AllStages))
	for _, s := range repository.AllStages {
		out[s] = counts[s]
	}
	return out, nil
}

// Notifications lists the recipient's notifications, newest first.
func (c *EventCoordinator) Notifications(ctx context.Context, recipient string, unreadOnly bool) ([]*repository.Notification, error) {
	if recipient == "" {
		return nil, errors.InvalidInput("recipient", "recipient is required")
	}

	var out []*repository.Notification
	err := c.store.InTx(ctx, func(tx repository.Tx) error {
		var err error
		out, err = tx.Notifications().List(ctx, recipient, unreadOnly)
		return err
	})
	return out, err
}

// MarkNotificationRead flags one of the recipient's notifications as read.
func (c *EventCoordinator) MarkNotificationRead(ctx context.Context, id, recipient string) error {
	return c.store.InTx(ctx, func(tx repository.Tx) error {
		return tx.Notifications().MarkRead(ctx, id, recipient)
	})
}
