package service

import (
	"fmt"

	"github.com/pesio-ai/be-event-approvals/internal/errors"
	"github.com/pesio-ai/be-event-approvals/internal/repository"
)

func errInvalidTransition(eventID string, stage repository.Stage, action string) *errors.Error {
	return errors.New(errors.ErrCodeInvalidTransition,
		fmt.Sprintf("cannot %s event %s in stage %s", action, eventID, stage)).
		WithDetail("event_id", eventID).
		WithDetail("stage", string(stage))
}

func errWrongApprover(eventID string, stage repository.Stage, role repository.Role) *errors.Error {
	return errors.New(errors.ErrCodeWrongApprover,
		fmt.Sprintf("role %q may not act on event %s in stage %s", role, eventID, stage)).
		WithDetail("event_id", eventID).
		WithDetail("stage", string(stage)).
		WithDetail("actor_role", string(role)).
		WithDetail("expected_role", string(approverFor(stage)))
}

func errVenueConflict(venueID, conflictingEventID string) *errors.Error {
	return errors.New(errors.ErrCodeVenueConflict,
		fmt.Sprintf("venue %s is already booked by event %s for an overlapping interval", venueID, conflictingEventID)).
		WithDetail("venue_id", venueID).
		WithDetail("conflicting_event_id", conflictingEventID)
}

func errCapacityExceeded(venueID string, requested, capacity int) *errors.Error {
	return errors.New(errors.ErrCodeCapacityExceeded,
		fmt.Sprintf("venue %s holds %d attendees, %d requested", venueID, capacity, requested)).
		WithDetail("venue_id", venueID).
		WithDetail("requested", requested).
		WithDetail("capacity", capacity)
}

func errNotOrganizer(eventID string, role repository.Role, actorID string) *errors.Error {
	return errors.New(errors.ErrCodeForbidden, fmt.Sprintf("only the organizer of event %s may complete it", eventID)).
		WithDetail("event_id", eventID).
		WithDetail("role", string(role)).
		WithDetail("actor_id", actorID)
}

func errInsufficientQuantity(resourceID string, requested, available int) *errors.Error {
	return errors.New(errors.ErrCodeInsufficientQuantity,
		fmt.Sprintf("resource %s has %d available, %d requested", resourceID, available, requested)).
		WithDetail("resource_id", resourceID).
		WithDetail("requested", requested).
		WithDetail("available", available)
}
