package service

import (
	"context"
	"fmt"

	"github.com/pesio-ai/be-event-approvals/internal/repository"
)

// Notifier queues notification rows for transitions. Rows are written in the
// same transaction as the transition so a rolled-back transition leaves no
// notification behind; delivery is someone else's job.
//
// Recipients are approver role names for "needs your approval" messages and
// the organizer id for outcome messages.
type Notifier struct{}

// NewNotifier creates a new Notifier.
func NewNotifier() *Notifier {
	return &Notifier{}
}

// Notify writes the notification a transition calls for, if any.
func (n *Notifier) Notify(ctx context.Context, store repository.NotificationStore, tr *Transition) error {
	recipient, message := n.compose(tr)
	if recipient == "" {
		return nil
	}
	return store.Create(ctx, &repository.Notification{
		Recipient: recipient,
		EventID:   tr.Event.ID,
		Message:   message,
	})
}

func (n *Notifier) compose(tr *Transition) (recipient, message string) {
	e := tr.Event
	switch tr.To {
	case repository.StagePendingHOD:
		return string(repository.RoleHOD), fmt.Sprintf("New event %s requires your approval.", describe(e))
	case repository.StagePendingDean, repository.StagePendingHead:
		return string(approverFor(tr.To)), fmt.Sprintf("Event %s requires your approval.", describe(e))
	case repository.StageApproved:
		return e.OrganizerID, fmt.Sprintf("Your event %s has been fully approved!", describe(e))
	case repository.StageRejected:
		return e.OrganizerID, fmt.Sprintf("Your event %s was rejected by %s. Reason: %s",
			describe(e), tr.Record.ActorRole.Label(), e.RejectionReason)
	}
	return "", ""
}

func describe(e *repository.Event) string {
	if e.Title != "" {
		return fmt.Sprintf("'%s'", e.Title)
	}
	return e.ID
}
