package repository

import (
	"context"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pesio-ai/be-event-approvals/internal/database"
	"github.com/pesio-ai/be-event-approvals/internal/errors"
)

func newMock(t *testing.T) pgxmock.PgxPoolIface {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return mock
}

func TestResourceRepository_TryDecrement(t *testing.T) {
	mock := newMock(t)
	repo := NewResourceRepository(mock)

	mock.ExpectQuery("UPDATE resources").
		WithArgs("r1", 2).
		WillReturnRows(pgxmock.NewRows([]string{"available_quantity"}).AddRow(0))

	available, ok, err := repo.TryDecrement(context.Background(), "r1", 2)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, 0, available)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResourceRepository_TryDecrementInsufficient(t *testing.T) {
	mock := newMock(t)
	repo := NewResourceRepository(mock)
	now := time.Now()

	mock.ExpectQuery("UPDATE resources").
		WithArgs("r1", 3).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("SELECT id::text, name, total_quantity, available_quantity").
		WithArgs("r1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "name", "total_quantity", "available_quantity", "created_at"}).
			AddRow("r1", "Projector", 5, 2, now))

	available, ok, err := repo.TryDecrement(context.Background(), "r1", 3)
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, 2, available)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResourceRepository_TryDecrementUnknown(t *testing.T) {
	mock := newMock(t)
	repo := NewResourceRepository(mock)

	mock.ExpectQuery("UPDATE resources").
		WithArgs("r9", 1).
		WillReturnError(pgx.ErrNoRows)
	mock.ExpectQuery("SELECT id::text, name").
		WithArgs("r9").
		WillReturnError(pgx.ErrNoRows)

	_, _, err := repo.TryDecrement(context.Background(), "r9", 1)
	assert.Equal(t, errors.ErrCodeNotFound, errors.CodeOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestResourceRepository_DeleteReservations(t *testing.T) {
	mock := newMock(t)
	repo := NewResourceRepository(mock)

	mock.ExpectQuery("DELETE FROM resource_reservations").
		WithArgs("e1").
		WillReturnRows(pgxmock.NewRows([]string{"resource_id", "quantity"}).
			AddRow("r1", 2).
			AddRow("r2", 1))

	held, err := repo.DeleteReservations(context.Background(), "e1")
	require.NoError(t, err)
	assert.Equal(t, []ResourceQuantity{{ResourceID: "r1", Quantity: 2}, {ResourceID: "r2", Quantity: 1}}, held)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestVenueRepository_CreateDuplicate(t *testing.T) {
	mock := newMock(t)
	repo := NewVenueRepository(mock)

	mock.ExpectQuery("INSERT INTO venues").
		WithArgs("Seminar Hall 1", 100, "Block B").
		WillReturnError(&pgconn.PgError{Code: database.SQLStateUniqueViolation})

	err := repo.Create(context.Background(), &Venue{Name: "Seminar Hall 1", Capacity: 100, Location: "Block B"})
	assert.Equal(t, errors.ErrCodeAlreadyExists, errors.CodeOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepository_TransitionLostRace(t *testing.T) {
	mock := newMock(t)
	repo := NewEventRepository(mock)

	mock.ExpectQuery("UPDATE events").
		WithArgs("e1", "pending_hod", "pending_dean", "").
		WillReturnError(pgx.ErrNoRows)

	err := repo.Transition(context.Background(), "e1", StagePendingHOD, StagePendingDean, "")
	assert.Equal(t, errors.ErrCodeConflict, errors.CodeOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepository_CreateExclusionViolation(t *testing.T) {
	mock := newMock(t)
	repo := NewEventRepository(mock)
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery("INSERT INTO events").
		WithArgs("Talk", "", "org-1", "v1", start, start.Add(time.Hour), 40, "pending_hod").
		WillReturnError(&pgconn.PgError{Code: database.SQLStateExclusionViolation, ConstraintName: "events_no_venue_overlap"})

	err := repo.Create(context.Background(), &Event{
		Title:         "Talk",
		OrganizerID:   "org-1",
		VenueID:       "v1",
		Interval:      Interval{Start: start, End: start.Add(time.Hour)},
		AttendeeCount: 40,
		Stage:         StagePendingHOD,
	})
	assert.Equal(t, errors.ErrCodeVenueConflict, errors.CodeOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEventRepository_ActiveBookings(t *testing.T) {
	mock := newMock(t)
	repo := NewEventRepository(mock)
	start := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	mock.ExpectQuery("SELECT id::text, venue_id::text, starts_at, ends_at, stage").
		WithArgs("v1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "venue_id", "starts_at", "ends_at", "stage"}).
			AddRow("e1", "v1", start, start.Add(time.Hour), "approved"))

	bookings, err := repo.ActiveBookings(context.Background(), "v1")
	require.NoError(t, err)
	require.Len(t, bookings, 1)
	assert.Equal(t, StageApproved, bookings[0].Stage)
	assert.Equal(t, start.Add(time.Hour), bookings[0].Interval.End)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApprovalAuditRepository_Trail(t *testing.T) {
	mock := newMock(t)
	repo := NewApprovalAuditRepository(mock)
	at := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

	mock.ExpectQuery("FROM approval_records").
		WithArgs("e1").
		WillReturnRows(pgxmock.NewRows([]string{"id", "event_id", "from_stage", "to_stage", "actor_role", "decision", "comment", "recorded_at"}).
			AddRow("a1", "e1", "", "pending_hod", "coordinator", "submit", "", at).
			AddRow("a2", "e1", "pending_hod", "rejected", "hod", "reject", "clash with exams", at.Add(time.Minute)))

	trail, err := repo.Trail(context.Background(), "e1")
	require.NoError(t, err)
	require.Len(t, trail, 2)
	assert.Equal(t, DecisionReject, trail[1].Decision)
	assert.Equal(t, RoleHOD, trail[1].ActorRole)
	assert.Equal(t, "clash with exams", trail[1].Comment)
	assert.NoError(t, mock.ExpectationsWereMet())
}
