package repository

import (
	"context"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"

	"github.com/pesio-ai/be-event-approvals/internal/database"
	"github.com/pesio-ai/be-event-approvals/internal/errors"
)

// EventRepository handles event rows and their requested resources.
type EventRepository struct {
	db database.Querier
}

// NewEventRepository creates a new EventRepository over a pool or transaction.
func NewEventRepository(db database.Querier) *EventRepository {
	return &EventRepository{db: db}
}

const eventColumns = `
	id::text, title, description, organizer_id, venue_id::text,
	starts_at, ends_at, attendee_count, stage, rejection_reason,
	version, created_at, updated_at`

const activeStagesSQL = `('pending_hod', 'pending_dean', 'pending_head', 'approved')`

// Create inserts the event and its requested resources.
func (r *EventRepository) Create(ctx context.Context, e *Event) error {
	query := `
		INSERT INTO events
		    (title, description, organizer_id, venue_id,
		     starts_at, ends_at, attendee_count, stage)
		VALUES ($1, $2, $3, $4,
		        $5, $6, $7, $8)
		RETURNING id::text, version, created_at, updated_at
	`

	err := r.db.QueryRow(ctx, query,
		e.Title,
		e.Description,
		e.OrganizerID,
		e.VenueID,
		e.Interval.Start,
		e.Interval.End,
		e.AttendeeCount,
		string(e.Stage),
	).Scan(&e.ID, &e.Version, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return mapEventWriteError(err, "failed to create event")
	}

	lineQuery := `
		INSERT INTO event_resources (event_id, resource_id, quantity)
		VALUES ($1, $2, $3)
	`
	for _, rq := range e.Resources {
		if _, err := r.db.Exec(ctx, lineQuery, e.ID, rq.ResourceID, rq.Quantity); err != nil {
			return mapEventWriteError(err, "failed to record requested resource")
		}
	}

	return nil
}

// Get retrieves an event with its requested resources.
func (r *EventRepository) Get(ctx context.Context, id string) (*Event, error) {
	query := `SELECT ` + eventColumns + ` FROM events WHERE id = $1`

	e, err := scanEvent(r.db.QueryRow(ctx, query, id))
	if err != nil {
		if isMissingRow(err) {
			return nil, errors.NotFound("event", id)
		}
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get event")
	}

	linesQuery := `
		SELECT resource_id::text, quantity
		FROM event_resources
		WHERE event_id = $1
		ORDER BY resource_id
	`
	rows, err := r.db.Query(ctx, linesQuery, id)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get requested resources")
	}
	defer rows.Close()

	e.Resources, err = scanQuantities(rows)
	if err != nil {
		return nil, err
	}
	return e, nil
}

// Transition performs the conditional stage update.
func (r *EventRepository) Transition(ctx context.Context, id string, from, to Stage, rejectionReason string) error {
	query := `
		UPDATE events
		SET stage            = $3,
		    rejection_reason = $4,
		    version          = version + 1,
		    updated_at       = NOW()
		WHERE id = $1
		  AND stage = $2
		RETURNING version
	`

	var version int
	err := r.db.QueryRow(ctx, query, id, string(from), string(to), rejectionReason).Scan(&version)
	if err == pgx.ErrNoRows {
		return errors.Conflict(fmt.Sprintf("event %s is no longer in stage %s", id, from)).
			WithDetail("event_id", id).
			WithDetail("expected_stage", string(from))
	}
	if err != nil {
		return mapEventWriteError(err, "failed to transition event")
	}
	return nil
}

// ActiveBookings lists events holding a slot at the venue.
func (r *EventRepository) ActiveBookings(ctx context.Context, venueID string) ([]Booking, error) {
	query := `
		SELECT id::text, venue_id::text, starts_at, ends_at, stage
		FROM events
		WHERE venue_id = $1
		  AND stage IN ` + activeStagesSQL + `
		ORDER BY starts_at ASC
	`

	rows, err := r.db.Query(ctx, query, venueID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list venue bookings")
	}
	defer rows.Close()

	var bookings []Booking
	for rows.Next() {
		var b Booking
		var stage string
		if err := rows.Scan(&b.EventID, &b.VenueID, &b.Interval.Start, &b.Interval.End, &stage); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan booking")
		}
		b.Stage = Stage(stage)
		bookings = append(bookings, b)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to iterate bookings")
	}
	return bookings, nil
}

// List returns events matching the filter, newest first. Requested resources
// are not loaded.
func (r *EventRepository) List(ctx context.Context, filter EventFilter) ([]*Event, error) {
	var (
		where []string
		args  []any
	)
	if filter.Stage != "" {
		args = append(args, string(filter.Stage))
		where = append(where, fmt.Sprintf("stage = $%d", len(args)))
	}
	if filter.OrganizerID != "" {
		args = append(args, filter.OrganizerID)
		where = append(where, fmt.Sprintf("organizer_id = $%d", len(args)))
	}
	if filter.VenueID != "" {
		args = append(args, filter.VenueID)
		where = append(where, fmt.Sprintf("venue_id = $%d", len(args)))
	}

	query := `SELECT ` + eventColumns + ` FROM events`
	if len(where) > 0 {
		query += ` WHERE ` + strings.Join(where, " AND ")
	}
	query += ` ORDER BY created_at DESC, id`
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += fmt.Sprintf(" LIMIT $%d", len(args))
	}
	if filter.Offset > 0 {
		args = append(args, filter.Offset)
		query += fmt.Sprintf(" OFFSET $%d", len(args))
	}

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list events")
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan event")
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to iterate events")
	}
	return events, nil
}

// CountByStage returns the number of events per stage.
func (r *EventRepository) CountByStage(ctx context.Context) (map[Stage]int, error) {
	rows, err := r.db.Query(ctx, `SELECT stage, COUNT(*) FROM events GROUP BY stage`)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to count events")
	}
	defer rows.Close()

	counts := make(map[Stage]int, len(AllStages))
	for rows.Next() {
		var (
			stage string
			n     int
		)
		if err := rows.Scan(&stage, &n); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan stage count")
		}
		counts[Stage(stage)] = n
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to iterate stage counts")
	}
	return counts, nil
}

// ── scan helpers ──────────────────────────────────────────────────────────────

type rowScanner interface {
	Scan(dest ...any) error
}

func scanEvent(row rowScanner) (*Event, error) {
	e := &Event{}
	var stage string
	err := row.Scan(
		&e.ID,
		&e.Title,
		&e.Description,
		&e.OrganizerID,
		&e.VenueID,
		&e.Interval.Start,
		&e.Interval.End,
		&e.AttendeeCount,
		&stage,
		&e.RejectionReason,
		&e.Version,
		&e.CreatedAt,
		&e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.Stage = Stage(stage)
	return e, nil
}

func scanQuantities(rows pgx.Rows) ([]ResourceQuantity, error) {
	var out []ResourceQuantity
	for rows.Next() {
		var rq ResourceQuantity
		if err := rows.Scan(&rq.ResourceID, &rq.Quantity); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan resource quantity")
		}
		out = append(out, rq)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to iterate resource quantities")
	}
	return out, nil
}

// isMissingRow treats malformed ids like unknown ones.
func isMissingRow(err error) bool {
	return err == pgx.ErrNoRows || database.SQLState(err) == database.SQLStateInvalidText
}

func mapEventWriteError(err error, message string) error {
	switch database.SQLState(err) {
	case database.SQLStateExclusionViolation:
		return errors.Wrap(err, errors.ErrCodeVenueConflict, "venue is already booked for an overlapping interval")
	case database.SQLStateForeignKeyViolation:
		return errors.Wrap(err, errors.ErrCodeNotFound, "referenced venue or resource does not exist")
	case database.SQLStateInvalidText:
		return errors.Wrap(err, errors.ErrCodeNotFound, "malformed venue or resource id")
	}
	return errors.Wrap(err, errors.ErrCodeInternal, message)
}
