package service

import "github.com/pesio-ai/be-event-approvals/internal/repository"

// flow is the static stage → (approver, next stage) table. Stages missing
// from it accept no advance.
var flow = map[repository.Stage]struct {
	approver repository.Role
	next     repository.Stage
}{
	repository.StagePendingHOD:  {repository.RoleHOD, repository.StagePendingDean},
	repository.StagePendingDean: {repository.RoleDean, repository.StagePendingHead},
	repository.StagePendingHead: {repository.RoleHead, repository.StageApproved},
}

// approverFor returns the role that acts on stage, or "" for stages nobody
// approves.
func approverFor(stage repository.Stage) repository.Role {
	return flow[stage].approver
}

// stageOf returns the pending stage the role approves.
func stageOf(role repository.Role) (repository.Stage, bool) {
	for stage, step := range flow {
		if step.approver == role {
			return stage, true
		}
	}
	return "", false
}

// position orders the pending stages; non-pending stages sort after them.
func position(stage repository.Stage) int {
	switch stage {
	case repository.StagePendingHOD:
		return 0
	case repository.StagePendingDean:
		return 1
	case repository.StagePendingHead:
		return 2
	}
	return 3
}
