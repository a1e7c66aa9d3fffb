package service

import (
	"context"
	"strings"

	"github.com/pesio-ai/be-event-approvals/internal/errors"
	"github.com/pesio-ai/be-event-approvals/internal/repository"
)

// ApprovalStateMachine is the only writer of event stages and of the
// approval trail. Every method runs inside the caller's transaction and
// appends exactly one approval record on success.
type ApprovalStateMachine struct {
	detector *VenueConflictDetector
	ledger   *ResourceLedger
}

// NewApprovalStateMachine creates a new ApprovalStateMachine.
func NewApprovalStateMachine(detector *VenueConflictDetector, ledger *ResourceLedger) *ApprovalStateMachine {
	return &ApprovalStateMachine{detector: detector, ledger: ledger}
}

// Transition is the outcome of one successful state machine call.
type Transition struct {
	Event    *repository.Event
	From     repository.Stage
	To       repository.Stage
	Record   *repository.ApprovalRecord
	Reserved []repository.ResourceQuantity
	Released []repository.ResourceQuantity
}

// ── Submit ────────────────────────────────────────────────────────────────────

// Submit validates the request and creates the event in pending_hod. Nothing
// is reserved yet.
func (m *ApprovalStateMachine) Submit(ctx context.Context, tx repository.Tx, e *repository.Event) (*Transition, error) {
	if strings.TrimSpace(e.OrganizerID) == "" {
		return nil, errors.InvalidInput("organizer_id", "organizer is required")
	}
	if strings.TrimSpace(e.VenueID) == "" {
		return nil, errors.InvalidInput("venue_id", "venue is required")
	}
	if !e.Interval.Valid() {
		return nil, errors.InvalidInput("interval", "end must be after start")
	}

	if _, err := m.detector.CheckCapacity(ctx, tx.Venues(), e.VenueID, e.AttendeeCount); err != nil {
		return nil, err
	}

	items, err := normalize(e.Resources)
	if err != nil {
		return nil, err
	}
	for _, item := range items {
		res, err := tx.Resources().Get(ctx, item.ResourceID)
		if err != nil {
			return nil, err
		}
		// Nothing is reserved until approval, but a request above the
		// resource's total can never be satisfied.
		if item.Quantity > res.Total {
			return nil, errInsufficientQuantity(res.ID, item.Quantity, res.Total)
		}
	}

	if err := m.detector.CheckAvailability(ctx, tx.Events(), e.VenueID, e.Interval, ""); err != nil {
		return nil, err
	}

	e.Stage = repository.StagePendingHOD
	e.RejectionReason = ""
	e.Resources = items
	if err := tx.Events().Create(ctx, e); err != nil {
		return nil, err
	}

	rec := &repository.ApprovalRecord{
		EventID:   e.ID,
		ToStage:   repository.StagePendingHOD,
		ActorRole: repository.RoleCoordinator,
		Decision:  repository.DecisionSubmit,
	}
	if err := tx.Approvals().Append(ctx, rec); err != nil {
		return nil, err
	}

	return &Transition{Event: e, To: repository.StagePendingHOD, Record: rec}, nil
}

// ── Advance ───────────────────────────────────────────────────────────────────

// Advance moves the event one stage forward on behalf of role. Leaving
// pending_head re-checks the venue and reserves the requested resources; if
// either fails the event stays where it was.
func (m *ApprovalStateMachine) Advance(
	ctx context.Context,
	tx repository.Tx,
	eventID string,
	role repository.Role,
	comment string,
) (*Transition, error) {
	e, err := tx.Events().Get(ctx, eventID)
	if err != nil {
		return nil, err
	}

	if err := checkApprover(e, role, "advance"); err != nil {
		return nil, err
	}

	from := e.Stage
	to := flow[from].next

	var reserved []repository.ResourceQuantity
	if to == repository.StageApproved {
		if err := m.detector.CheckAvailability(ctx, tx.Events(), e.VenueID, e.Interval, e.ID); err != nil {
			return nil, err
		}
		if err := m.ledger.Reserve(ctx, tx.Resources(), e.ID, e.Resources); err != nil {
			return nil, err
		}
		reserved = e.Resources
	}

	if err := tx.Events().Transition(ctx, e.ID, from, to, ""); err != nil {
		return nil, err
	}
	e.Stage = to

	rec := &repository.ApprovalRecord{
		EventID:   e.ID,
		FromStage: from,
		ToStage:   to,
		ActorRole: role,
		Decision:  repository.DecisionAdvance,
		Comment:   comment,
	}
	if err := tx.Approvals().Append(ctx, rec); err != nil {
		return nil, err
	}

	return &Transition{Event: e, From: from, To: to, Record: rec, Reserved: reserved}, nil
}

// ── Reject ────────────────────────────────────────────────────────────────────

// Reject ends the event from a pending stage. Only the current stage's
// approver may reject. Whatever the event holds is released.
func (m *ApprovalStateMachine) Reject(
	ctx context.Context,
	tx repository.Tx,
	eventID string,
	role repository.Role,
	reason string,
) (*Transition, error) {
	e, err := tx.Events().Get(ctx, eventID)
	if err != nil {
		return nil, err
	}

	if err := checkApprover(e, role, "reject"); err != nil {
		return nil, err
	}
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return nil, errors.InvalidInput("reason", "rejection reason is required")
	}

	from := e.Stage
	if err := tx.Events().Transition(ctx, e.ID, from, repository.StageRejected, reason); err != nil {
		return nil, err
	}
	e.Stage = repository.StageRejected
	e.RejectionReason = reason

	released, err := m.ledger.Release(ctx, tx.Resources(), e.ID)
	if err != nil {
		return nil, err
	}

	rec := &repository.ApprovalRecord{
		EventID:   e.ID,
		FromStage: from,
		ToStage:   repository.StageRejected,
		ActorRole: role,
		Decision:  repository.DecisionReject,
		Comment:   reason,
	}
	if err := tx.Approvals().Append(ctx, rec); err != nil {
		return nil, err
	}

	return &Transition{Event: e, From: from, To: repository.StageRejected, Record: rec, Released: released}, nil
}

// ── Complete ──────────────────────────────────────────────────────────────────

// Complete closes an approved event and returns its resources. authorize,
// when set, vets the caller against the loaded event before anything moves.
func (m *ApprovalStateMachine) Complete(
	ctx context.Context,
	tx repository.Tx,
	eventID string,
	role repository.Role,
	authorize func(*repository.Event) error,
) (*Transition, error) {
	e, err := tx.Events().Get(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if authorize != nil {
		if err := authorize(e); err != nil {
			return nil, err
		}
	}
	if e.Stage != repository.StageApproved {
		return nil, errInvalidTransition(e.ID, e.Stage, "complete")
	}

	if err := tx.Events().Transition(ctx, e.ID, repository.StageApproved, repository.StageCompleted, ""); err != nil {
		return nil, err
	}
	e.Stage = repository.StageCompleted

	released, err := m.ledger.Release(ctx, tx.Resources(), e.ID)
	if err != nil {
		return nil, err
	}

	rec := &repository.ApprovalRecord{
		EventID:   e.ID,
		FromStage: repository.StageApproved,
		ToStage:   repository.StageCompleted,
		ActorRole: role,
		Decision:  repository.DecisionComplete,
	}
	if err := tx.Approvals().Append(ctx, rec); err != nil {
		return nil, err
	}

	return &Transition{Event: e, From: repository.StageApproved, To: repository.StageCompleted, Record: rec, Released: released}, nil
}

// ── Authorization helper ──────────────────────────────────────────────────────

// checkApprover validates role against the event's current stage. An
// approver whose stage the event already left gets InvalidTransition, so the
// losers of a race on the same stage see the stage has moved on.
func checkApprover(e *repository.Event, role repository.Role, action string) error {
	if !e.Stage.IsPending() {
		return errInvalidTransition(e.ID, e.Stage, action)
	}
	if approverFor(e.Stage) == role {
		return nil
	}
	if own, ok := stageOf(role); ok && position(own) < position(e.Stage) {
		return errInvalidTransition(e.ID, e.Stage, action)
	}
	return errWrongApprover(e.ID, e.Stage, role)
}
