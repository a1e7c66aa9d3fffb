package main

import (
	"bytes"
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/test/bufconn"

	"github.com/pesio-ai/be-event-approvals/internal/client"
	"github.com/pesio-ai/be-event-approvals/internal/database"
	"github.com/pesio-ai/be-event-approvals/internal/errors"
	"github.com/pesio-ai/be-event-approvals/internal/handler"
	"github.com/pesio-ai/be-event-approvals/internal/logger"
	"github.com/pesio-ai/be-event-approvals/internal/repository"
	"github.com/pesio-ai/be-event-approvals/internal/service"
)

type harness struct {
	env   *env
	store *repository.MemoryStore
	coord *service.EventCoordinator
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	store := repository.NewMemoryStore()
	coord := service.NewEventCoordinator(store, nil, nil, logger.Nop())

	lis := bufconn.Listen(1 << 20)
	srv := grpc.NewServer(grpc.UnaryInterceptor(handler.ActorInterceptor))
	handler.RegisterEventApprovalsServer(srv, handler.NewGRPCHandler(coord, logger.Nop()))
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	return &harness{
		store: store,
		coord: coord,
		env: &env{
			openDB: func(context.Context) (*database.DB, error) {
				return nil, errors.New(errors.ErrCodeInternal, "no database in tests")
			},
			openStore: func(context.Context) (repository.Store, error) { return store, nil },
			dial: func(string) (*client.EventsClient, error) {
				return client.NewEventsClient("passthrough:///bufnet",
					grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
						return lis.DialContext(ctx)
					}))
			},
			log: logger.Nop(),
		},
	}
}

func (h *harness) run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	root := newRootCmd(h.env)
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	err := root.Execute()
	return out.String(), err
}

func TestEventsctl_SeedAndList(t *testing.T) {
	h := newHarness(t)

	out, err := h.run(t, "seed")
	require.NoError(t, err)
	assert.Contains(t, out, "Seeded 7 catalog entries")

	out, err = h.run(t, "venues")
	require.NoError(t, err)
	assert.Contains(t, out, "Main Auditorium")
	assert.Contains(t, out, "CAPACITY")

	out, err = h.run(t, "resources", "add", "--name", "Podium", "--total", "2")
	require.NoError(t, err)
	assert.Contains(t, out, "Created resource Podium")

	out, err = h.run(t, "resources")
	require.NoError(t, err)
	assert.Contains(t, out, "Podium")

	_, err = h.run(t, "venues", "add", "--name", "Rooftop")
	assert.Error(t, err, "capacity is required")
}

func TestEventsctl_DecisionsOverGRPC(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	catalog := service.NewCatalogService(h.store, logger.Nop())
	venue, err := catalog.CreateVenue(ctx, "Seminar Hall", 100, "")
	require.NoError(t, err)
	start := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
	id, err := h.coord.Submit(ctx, &service.SubmitRequest{
		Title: "Guest Lecture", OrganizerID: "coord-1", VenueID: venue.ID,
		Start: start, End: start.Add(time.Hour), AttendeeCount: 60,
	})
	require.NoError(t, err)

	out, err := h.run(t, "pending", "--role", "hod")
	require.NoError(t, err)
	assert.Contains(t, out, "Guest Lecture")

	out, err = h.run(t, "advance", id, "--role", "hod", "--comment", "fine")
	require.NoError(t, err)
	assert.Contains(t, out, "is now pending_dean")

	_, err = h.run(t, "advance", id, "--role", "head")
	assert.Equal(t, errors.ErrCodeWrongApprover, errors.CodeOf(err))

	out, err = h.run(t, "reject", id, "--role", "dean", "--reason", "double booked speaker")
	require.NoError(t, err)
	assert.Contains(t, out, "is now rejected")

	out, err = h.run(t, "event", id)
	require.NoError(t, err)
	assert.Contains(t, out, "Rejected:  double booked speaker")
	assert.Contains(t, out, "Head of Department")

	out, err = h.run(t, "stats")
	require.NoError(t, err)
	assert.Contains(t, out, "rejected")

	_, err = h.run(t, "complete", id)
	assert.ErrorContains(t, err, `required flag(s) "actor" not set`)

	_, err = h.run(t, "complete", id, "--actor", "coord-2")
	assert.Equal(t, errors.ErrCodeForbidden, errors.CodeOf(err))

	_, err = h.run(t, "complete", id, "--actor", "coord-1")
	assert.Equal(t, errors.ErrCodeInvalidTransition, errors.CodeOf(err))
}

func TestEventsctl_MigrateReportsConnectionErrors(t *testing.T) {
	h := newHarness(t)

	_, err := h.run(t, "migrate")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to database")
}
