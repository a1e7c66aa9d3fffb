package service

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/pesio-ai/be-event-approvals/internal/repository"
)

func TestNotifier_Compose(t *testing.T) {
	e := &repository.Event{ID: "e1", Title: "Hackathon", OrganizerID: "coord-7", RejectionReason: "no budget"}
	n := NewNotifier()

	tests := []struct {
		to            repository.Stage
		role          repository.Role
		wantRecipient string
		wantMessage   string
	}{
		{repository.StagePendingHOD, repository.RoleCoordinator, "hod", "New event 'Hackathon' requires your approval."},
		{repository.StagePendingDean, repository.RoleHOD, "dean", "Event 'Hackathon' requires your approval."},
		{repository.StagePendingHead, repository.RoleDean, "head", "Event 'Hackathon' requires your approval."},
		{repository.StageApproved, repository.RoleHead, "coord-7", "Your event 'Hackathon' has been fully approved!"},
		{repository.StageRejected, repository.RoleHOD, "coord-7", "Your event 'Hackathon' was rejected by Head of Department. Reason: no budget"},
		{repository.StageCompleted, repository.RoleCoordinator, "", ""},
	}

	for _, tt := range tests {
		t.Run(string(tt.to), func(t *testing.T) {
			recipient, message := n.compose(&Transition{
				Event:  e,
				To:     tt.to,
				Record: &repository.ApprovalRecord{ActorRole: tt.role},
			})
			assert.Equal(t, tt.wantRecipient, recipient)
			assert.Equal(t, tt.wantMessage, message)
		})
	}
}
