package handler

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/pesio-ai/be-event-approvals/internal/errors"
	"github.com/pesio-ai/be-event-approvals/internal/logger"
	"github.com/pesio-ai/be-event-approvals/internal/repository"
	"github.com/pesio-ai/be-event-approvals/internal/service"
)

func actorCtx(t *testing.T, role repository.Role, id string) context.Context {
	t.Helper()
	ctx := metadata.NewIncomingContext(context.Background(), metadata.Pairs(ActorRoleKey, string(role), ActorIDKey, id))
	var out context.Context
	_, err := ActorInterceptor(ctx, nil, &grpc.UnaryServerInfo{}, func(ctx context.Context, _ any) (any, error) {
		out = ctx
		return nil, nil
	})
	require.NoError(t, err)
	return out
}

func TestActorInterceptor(t *testing.T) {
	a := actorFrom(actorCtx(t, repository.RoleDean, "dean-1"))
	assert.Equal(t, repository.RoleDean, a.role)
	assert.Equal(t, "dean-1", a.id)

	assert.Equal(t, actor{}, actorFrom(context.Background()))
}

func TestToStatus(t *testing.T) {
	tests := []struct {
		err  error
		want codes.Code
	}{
		{errors.NotFound("event", "e1"), codes.NotFound},
		{errors.InvalidInput("reason", "required"), codes.InvalidArgument},
		{errors.Conflict("lost race"), codes.Aborted},
		{errors.New(errors.ErrCodeWrongApprover, "wrong"), codes.PermissionDenied},
		{errors.New(errors.ErrCodeForbidden, "not yours"), codes.PermissionDenied},
		{errors.New(errors.ErrCodeInvalidTransition, "bad"), codes.FailedPrecondition},
		{errors.New(errors.ErrCodeInsufficientQuantity, "short"), codes.ResourceExhausted},
		{assert.AnError, codes.Internal},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, status.Code(toStatus(tt.err)), tt.err.Error())
	}

	st := status.Convert(toStatus(errors.New(errors.ErrCodeVenueConflict, "venue taken").
		WithDetail("conflicting_event_id", "e9")))
	assert.Equal(t, "venue taken", st.Message())
	require.Len(t, st.Details(), 1)
	info, ok := st.Details()[0].(*errdetails.ErrorInfo)
	require.True(t, ok)
	assert.Equal(t, "VENUE_CONFLICT", info.GetReason())
	assert.Equal(t, ErrorDomain, info.GetDomain())
	assert.Equal(t, "e9", info.GetMetadata()["conflicting_event_id"])

	assert.Equal(t, "internal server error", status.Convert(toStatus(assert.AnError)).Message())
}

func TestGRPCHandler_RolesAndValidation(t *testing.T) {
	store := repository.NewMemoryStore()
	h := NewGRPCHandler(service.NewEventCoordinator(store, nil, nil, logger.Nop()), logger.Nop())
	catalog := service.NewCatalogService(store, logger.Nop())
	venue, err := catalog.CreateVenue(context.Background(), "Seminar Hall", 100, "")
	require.NoError(t, err)

	in, err := structpb.NewStruct(map[string]any{
		"title":          "Talk",
		"venue_id":       venue.ID,
		"start":          "2026-03-02T10:00:00Z",
		"end":            "2026-03-02T11:00:00Z",
		"attendee_count": 40,
	})
	require.NoError(t, err)

	_, err = h.Submit(context.Background(), in)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))
	_, err = h.Submit(actorCtx(t, repository.RoleHOD, "hod-1"), in)
	assert.Equal(t, codes.PermissionDenied, status.Code(err))
	_, err = h.Submit(actorCtx(t, repository.RoleCoordinator, ""), in)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	out, err := h.Submit(actorCtx(t, repository.RoleCoordinator, "coord-1"), in)
	require.NoError(t, err)
	id := out.GetFields()["id"].GetStringValue()
	require.NotEmpty(t, id)

	_, err = h.Advance(actorCtx(t, repository.RoleHOD, ""), &structpb.Struct{})
	assert.Equal(t, codes.InvalidArgument, status.Code(err))

	req, err := structpb.NewStruct(map[string]any{"id": id})
	require.NoError(t, err)
	_, err = h.Complete(actorCtx(t, repository.RoleHead, ""), req)
	assert.Equal(t, codes.PermissionDenied, status.Code(err))

	_, err = h.Advance(actorCtx(t, repository.RoleHOD, ""), req)
	require.NoError(t, err)

	snap, err := h.GetEvent(context.Background(), req)
	require.NoError(t, err)
	event := snap.GetFields()["event"].GetStructValue()
	assert.Equal(t, "pending_dean", event.GetFields()["stage"].GetStringValue())
	assert.Equal(t, float64(40), event.GetFields()["attendee_count"].GetNumberValue())
}

func TestGRPCHandler_CompleteRequiresOrganizer(t *testing.T) {
	store := repository.NewMemoryStore()
	h := NewGRPCHandler(service.NewEventCoordinator(store, nil, nil, logger.Nop()), logger.Nop())
	catalog := service.NewCatalogService(store, logger.Nop())
	venue, err := catalog.CreateVenue(context.Background(), "Seminar Hall", 100, "")
	require.NoError(t, err)

	in, err := structpb.NewStruct(map[string]any{
		"title":          "Talk",
		"venue_id":       venue.ID,
		"start":          "2026-03-02T10:00:00Z",
		"end":            "2026-03-02T11:00:00Z",
		"attendee_count": 40,
	})
	require.NoError(t, err)
	out, err := h.Submit(actorCtx(t, repository.RoleCoordinator, "coord-1"), in)
	require.NoError(t, err)
	req, err := structpb.NewStruct(map[string]any{"id": out.GetFields()["id"].GetStringValue()})
	require.NoError(t, err)
	for _, role := range []repository.Role{repository.RoleHOD, repository.RoleDean, repository.RoleHead} {
		_, err = h.Advance(actorCtx(t, role, ""), req)
		require.NoError(t, err)
	}

	_, err = h.Complete(actorCtx(t, repository.RoleCoordinator, ""), req)
	assert.Equal(t, codes.Unauthenticated, status.Code(err))

	_, err = h.Complete(actorCtx(t, repository.RoleCoordinator, "coord-2"), req)
	st := status.Convert(err)
	assert.Equal(t, codes.PermissionDenied, st.Code())
	require.Len(t, st.Details(), 1)
	info, ok := st.Details()[0].(*errdetails.ErrorInfo)
	require.True(t, ok)
	assert.Equal(t, "FORBIDDEN", info.GetReason())
	assert.Equal(t, "coord-2", info.GetMetadata()["actor_id"])

	snap, err := h.GetEvent(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "approved", snap.GetFields()["event"].GetStructValue().GetFields()["stage"].GetStringValue())

	_, err = h.Complete(actorCtx(t, repository.RoleAdmin, "admin-1"), req)
	require.NoError(t, err)
	snap, err = h.GetEvent(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, "completed", snap.GetFields()["event"].GetStructValue().GetFields()["stage"].GetStringValue())
}
