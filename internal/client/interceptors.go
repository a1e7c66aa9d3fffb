package client

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/metadata"
)

// forwardMetadata is a gRPC unary client interceptor that propagates
// incoming request metadata (including the actor headers) to outgoing calls.
// Values already on the outgoing context are sent first.
func forwardMetadata(ctx context.Context, method string, req, reply interface{}, cc *grpc.ClientConn, invoker grpc.UnaryInvoker, opts ...grpc.CallOption) error {
	if in, ok := metadata.FromIncomingContext(ctx); ok {
		out, _ := metadata.FromOutgoingContext(ctx)
		ctx = metadata.NewOutgoingContext(ctx, metadata.Join(out, in))
	}
	return invoker(ctx, method, req, reply, cc, opts...)
}

// withActor stamps the acting role and id onto the outgoing metadata.
func withActor(ctx context.Context, role, id string) context.Context {
	kv := []string{actorRoleKey, role}
	if id != "" {
		kv = append(kv, actorIDKey, id)
	}
	return metadata.AppendToOutgoingContext(ctx, kv...)
}
