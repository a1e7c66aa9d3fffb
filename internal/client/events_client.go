// Package client is the gRPC client for the event approvals service, used by
// eventsctl and by other services that drive approvals.
package client

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"google.golang.org/genproto/googleapis/rpc/errdetails"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/pesio-ai/be-event-approvals/internal/errors"
	"github.com/pesio-ai/be-event-approvals/internal/repository"
)

const (
	serviceName  = "eventapprovals.v1.EventApprovals"
	actorRoleKey = "x-actor-role"
	actorIDKey   = "x-actor-id"
	errorDomain  = "eventapprovals"
)

// EventsClient is a gRPC client for the event approvals service
type EventsClient struct {
	conn *grpc.ClientConn
}

// NewEventsClient creates a new client. Extra dial options are appended to
// the defaults (insecure transport, metadata forwarding).
func NewEventsClient(addr string, opts ...grpc.DialOption) (*EventsClient, error) {
	opts = append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(forwardMetadata),
	}, opts...)

	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create gRPC connection: %w", err)
	}
	return &EventsClient{conn: conn}, nil
}

// Close closes the gRPC connection
func (c *EventsClient) Close() error {
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

// SubmitInput is a new event request.
type SubmitInput struct {
	Title         string
	Description   string
	VenueID       string
	Start         time.Time
	End           time.Time
	AttendeeCount int
	Resources     []repository.ResourceQuantity
}

// Submit files an event as organizerID and returns the new event's id.
func (c *EventsClient) Submit(ctx context.Context, organizerID string, in *SubmitInput) (string, error) {
	resources := make([]any, 0, len(in.Resources))
	for _, rq := range in.Resources {
		resources = append(resources, map[string]any{
			"resource_id": rq.ResourceID,
			"quantity":    rq.Quantity,
		})
	}
	req, err := structpb.NewStruct(map[string]any{
		"title":          in.Title,
		"description":    in.Description,
		"venue_id":       in.VenueID,
		"start":          in.Start.Format(time.RFC3339Nano),
		"end":            in.End.Format(time.RFC3339Nano),
		"attendee_count": in.AttendeeCount,
		"resources":      resources,
	})
	if err != nil {
		return "", errors.Wrap(err, errors.ErrCodeInvalidInput, "invalid submit request")
	}

	out := &structpb.Struct{}
	ctx = withActor(ctx, string(repository.RoleCoordinator), organizerID)
	if err := c.conn.Invoke(ctx, method("Submit"), req, out); err != nil {
		return "", fromStatus(err)
	}
	return out.GetFields()["id"].GetStringValue(), nil
}

// Advance approves the event's current stage as role.
func (c *EventsClient) Advance(ctx context.Context, role repository.Role, eventID, comment string) error {
	return c.decide(ctx, "Advance", string(role), "", map[string]any{"id": eventID, "comment": comment})
}

// Reject ends the event as role.
func (c *EventsClient) Reject(ctx context.Context, role repository.Role, eventID, reason string) error {
	return c.decide(ctx, "Reject", string(role), "", map[string]any{"id": eventID, "reason": reason})
}

// Complete closes an approved event as the coordinator actorID.
func (c *EventsClient) Complete(ctx context.Context, actorID, eventID string) error {
	return c.decide(ctx, "Complete", string(repository.RoleCoordinator), actorID, map[string]any{"id": eventID})
}

func (c *EventsClient) decide(ctx context.Context, name, role, actorID string, fields map[string]any) error {
	req, err := structpb.NewStruct(fields)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInvalidInput, "invalid request")
	}
	if err := c.conn.Invoke(withActor(ctx, role, actorID), method(name), req, &emptypb.Empty{}); err != nil {
		return fromStatus(err)
	}
	return nil
}

// GetEvent retrieves the event with its trail and reservations.
func (c *EventsClient) GetEvent(ctx context.Context, eventID string) (*repository.EventSnapshot, error) {
	req, err := structpb.NewStruct(map[string]any{"id": eventID})
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInvalidInput, "invalid request")
	}
	out := &structpb.Struct{}
	if err := c.conn.Invoke(ctx, method("GetEvent"), req, out); err != nil {
		return nil, fromStatus(err)
	}

	data, err := protojson.Marshal(out)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to decode event")
	}
	snap := &repository.EventSnapshot{}
	if err := json.Unmarshal(data, snap); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to decode event")
	}
	return snap, nil
}

func method(name string) string {
	return "/" + serviceName + "/" + name
}

// fromStatus turns a gRPC status back into a coded error using the
// ErrorInfo detail the server attaches.
func fromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return errors.Wrap(err, errors.ErrCodeInternal, "rpc failed")
	}
	for _, d := range st.Details() {
		info, ok := d.(*errdetails.ErrorInfo)
		if !ok || info.GetDomain() != errorDomain {
			continue
		}
		e := errors.New(errors.Code(info.GetReason()), st.Message())
		for k, v := range info.GetMetadata() {
			e = e.WithDetail(k, v)
		}
		return e
	}
	return errors.Wrap(err, errors.ErrCodeInternal, st.Message())
}
