package handler

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/pesio-ai/be-event-approvals/internal/errors"
	"github.com/pesio-ai/be-event-approvals/internal/logger"
	"github.com/pesio-ai/be-event-approvals/internal/repository"
	"github.com/pesio-ai/be-event-approvals/internal/service"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "eventapprovals.v1.EventApprovals"

// Metadata keys carrying the caller's identity.
const (
	ActorRoleKey = "x-actor-role"
	ActorIDKey   = "x-actor-id"
)

// ErrorDomain tags the ErrorInfo detail attached to failed calls.
const ErrorDomain = "eventapprovals"

// EventApprovalsServer is the gRPC surface of the engine.
type EventApprovalsServer interface {
	Submit(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Advance(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	Reject(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	Complete(context.Context, *structpb.Struct) (*emptypb.Empty, error)
	GetEvent(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// EventApprovalsServiceDesc describes the service for grpc.Server.RegisterService.
var EventApprovalsServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*EventApprovalsServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "Submit", Handler: unary("Submit", EventApprovalsServer.Submit)},
		{MethodName: "Advance", Handler: unary("Advance", EventApprovalsServer.Advance)},
		{MethodName: "Reject", Handler: unary("Reject", EventApprovalsServer.Reject)},
		{MethodName: "Complete", Handler: unary("Complete", EventApprovalsServer.Complete)},
		{MethodName: "GetEvent", Handler: unary("GetEvent", EventApprovalsServer.GetEvent)},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "eventapprovals/v1/event_approvals.proto",
}

func unary[Resp any](
	method string,
	call func(EventApprovalsServer, context.Context, *structpb.Struct) (Resp, error),
) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(EventApprovalsServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: "/" + ServiceName + "/" + method,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(EventApprovalsServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// RegisterEventApprovalsServer registers srv on s.
func RegisterEventApprovalsServer(s grpc.ServiceRegistrar, srv EventApprovalsServer) {
	s.RegisterService(&EventApprovalsServiceDesc, srv)
}

// ── Actor identity ───────────────────────────────────────────────────────────

type actor struct {
	role repository.Role
	id   string
}

type actorKey struct{}

// ActorInterceptor lifts the caller's identity out of incoming metadata.
func ActorInterceptor(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
	var a actor
	if md, ok := metadata.FromIncomingContext(ctx); ok {
		if v := md.Get(ActorRoleKey); len(v) > 0 {
			a.role = repository.Role(v[0])
		}
		if v := md.Get(ActorIDKey); len(v) > 0 {
			a.id = v[0]
		}
	}
	return handler(context.WithValue(ctx, actorKey{}, a), req)
}

func actorFrom(ctx context.Context) actor {
	a, _ := ctx.Value(actorKey{}).(actor)
	return a
}

// ── Handler ──────────────────────────────────────────────────────────────────

// GRPCHandler implements EventApprovalsServer over the coordinator.
type GRPCHandler struct {
	coord *service.EventCoordinator
	log   *logger.Logger
}

// NewGRPCHandler creates a new gRPC handler
func NewGRPCHandler(coord *service.EventCoordinator, log *logger.Logger) *GRPCHandler {
	return &GRPCHandler{
		coord: coord,
		log:   log.Component("grpc_handler"),
	}
}

// Submit creates an event request. The organizer is the calling actor.
func (h *GRPCHandler) Submit(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	a := actorFrom(ctx)
	h.log.Info().Str("actor_role", string(a.role)).Msg("gRPC Submit called")

	if err := requireActor(a, repository.RoleCoordinator, repository.RoleAdmin); err != nil {
		return nil, err
	}
	if a.id == "" {
		return nil, toStatus(errors.New(errors.ErrCodeUnauthorized, "actor id is required"))
	}

	var req submitEventRequest
	if err := decodeStruct(in, &req); err != nil {
		return nil, toStatus(err)
	}

	id, err := h.coord.Submit(ctx, &service.SubmitRequest{
		Title:         req.Title,
		Description:   req.Description,
		OrganizerID:   a.id,
		VenueID:       req.VenueID,
		Start:         req.Start,
		End:           req.End,
		AttendeeCount: req.AttendeeCount,
		Resources:     req.Resources,
	})
	if err != nil {
		return nil, toStatus(err)
	}

	return structpb.NewStruct(map[string]any{
		"id":    id,
		"stage": string(repository.StagePendingHOD),
	})
}

// Advance approves the event's current stage as the calling role.
func (h *GRPCHandler) Advance(ctx context.Context, in *structpb.Struct) (*emptypb.Empty, error) {
	a := actorFrom(ctx)
	id := stringField(in, "id")
	h.log.Info().Str("event_id", id).Str("actor_role", string(a.role)).Msg("gRPC Advance called")

	if err := requireActor(a); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, toStatus(errors.InvalidInput("id", "event id is required"))
	}
	if err := h.coord.AdvanceWithComment(ctx, id, a.role, stringField(in, "comment")); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

// Reject ends the event with a reason as the calling role.
func (h *GRPCHandler) Reject(ctx context.Context, in *structpb.Struct) (*emptypb.Empty, error) {
	a := actorFrom(ctx)
	id := stringField(in, "id")
	h.log.Info().Str("event_id", id).Str("actor_role", string(a.role)).Msg("gRPC Reject called")

	if err := requireActor(a); err != nil {
		return nil, err
	}
	if id == "" {
		return nil, toStatus(errors.InvalidInput("id", "event id is required"))
	}
	if err := h.coord.Reject(ctx, id, a.role, stringField(in, "reason")); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

// Complete closes an approved event.
func (h *GRPCHandler) Complete(ctx context.Context, in *structpb.Struct) (*emptypb.Empty, error) {
	a := actorFrom(ctx)
	id := stringField(in, "id")
	h.log.Info().Str("event_id", id).Str("actor_role", string(a.role)).Msg("gRPC Complete called")

	if err := requireActor(a, repository.RoleCoordinator, repository.RoleAdmin); err != nil {
		return nil, err
	}
	if a.role == repository.RoleCoordinator && a.id == "" {
		return nil, toStatus(errors.New(errors.ErrCodeUnauthorized, "actor id is required"))
	}
	if id == "" {
		return nil, toStatus(errors.InvalidInput("id", "event id is required"))
	}
	if err := h.coord.CompleteAs(ctx, id, a.role, a.id); err != nil {
		return nil, toStatus(err)
	}
	return &emptypb.Empty{}, nil
}

// GetEvent returns the event snapshot as a Struct.
func (h *GRPCHandler) GetEvent(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	id := stringField(in, "id")
	if id == "" {
		return nil, toStatus(errors.InvalidInput("id", "event id is required"))
	}

	snap, err := h.coord.GetEvent(ctx, id)
	if err != nil {
		return nil, toStatus(err)
	}
	out, err := encodeStruct(snap)
	if err != nil {
		return nil, toStatus(err)
	}
	return out, nil
}

// ── Conversion ───────────────────────────────────────────────────────────────

func stringField(in *structpb.Struct, name string) string {
	if in == nil {
		return ""
	}
	return in.GetFields()[name].GetStringValue()
}

// decodeStruct maps a Struct onto the JSON-tagged dst.
func decodeStruct(in *structpb.Struct, dst any) error {
	data, err := protojson.Marshal(in)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInvalidInput, "invalid request")
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return errors.Wrap(err, errors.ErrCodeInvalidInput, "invalid request")
	}
	return nil
}

// encodeStruct renders v through its JSON tags as a Struct.
func encodeStruct(v any) (*structpb.Struct, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to encode response")
	}
	out := &structpb.Struct{}
	if err := protojson.Unmarshal(data, out); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to encode response")
	}
	return out, nil
}

// ── Errors ───────────────────────────────────────────────────────────────────

func requireActor(a actor, allowed ...repository.Role) error {
	if _, err := parseRole(string(a.role)); err != nil {
		return toStatus(err)
	}
	if len(allowed) == 0 {
		return nil
	}
	for _, r := range allowed {
		if a.role == r {
			return nil
		}
	}
	return status.Errorf(codes.PermissionDenied, "%s may not perform this action", a.role.Label())
}

// toStatus converts a coded error into a gRPC status carrying the code and
// details as an ErrorInfo.
func toStatus(err error) error {
	if err == nil {
		return nil
	}
	code := errors.CodeOf(err)
	if code == errors.ErrCodeInternal {
		return status.Error(codes.Internal, "internal server error")
	}

	st := status.New(grpcCode(code), messageOf(err, code))
	info := &errdetails.ErrorInfo{
		Reason: string(code),
		Domain: ErrorDomain,
	}
	if details := errors.DetailsOf(err, code); len(details) > 0 {
		info.Metadata = make(map[string]string, len(details))
		for k, v := range details {
			info.Metadata[k] = fmt.Sprint(v)
		}
	}
	if withInfo, derr := st.WithDetails(info); derr == nil {
		st = withInfo
	}
	return st.Err()
}

func grpcCode(code errors.Code) codes.Code {
	switch code {
	case errors.ErrCodeNotFound:
		return codes.NotFound
	case errors.ErrCodeInvalidInput:
		return codes.InvalidArgument
	case errors.ErrCodeAlreadyExists:
		return codes.AlreadyExists
	case errors.ErrCodeConflict:
		return codes.Aborted
	case errors.ErrCodeUnauthorized:
		return codes.Unauthenticated
	case errors.ErrCodeWrongApprover, errors.ErrCodeForbidden:
		return codes.PermissionDenied
	case errors.ErrCodeInvalidTransition, errors.ErrCodeVenueConflict, errors.ErrCodeCapacityExceeded:
		return codes.FailedPrecondition
	case errors.ErrCodeInsufficientQuantity:
		return codes.ResourceExhausted
	default:
		return codes.Internal
	}
}
