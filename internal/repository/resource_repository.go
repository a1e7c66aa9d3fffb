package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/pesio-ai/be-event-approvals/internal/database"
	"github.com/pesio-ai/be-event-approvals/internal/errors"
)

// ResourceRepository handles resource rows, availability and reservations.
// Availability only changes through TryDecrement and Increment, each a single
// conditional UPDATE.
type ResourceRepository struct {
	db database.Querier
}

// NewResourceRepository creates a new ResourceRepository.
func NewResourceRepository(db database.Querier) *ResourceRepository {
	return &ResourceRepository{db: db}
}

// Create inserts a resource with everything available.
func (r *ResourceRepository) Create(ctx context.Context, res *Resource) error {
	query := `
		INSERT INTO resources (name, total_quantity, available_quantity)
		VALUES ($1, $2, $2)
		RETURNING id::text, available_quantity, created_at
	`

	err := r.db.QueryRow(ctx, query, res.Name, res.Total).Scan(&res.ID, &res.Available, &res.CreatedAt)
	if err != nil {
		if database.SQLState(err) == database.SQLStateUniqueViolation {
			return errors.AlreadyExists("resource", res.Name)
		}
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to create resource")
	}
	return nil
}

// Get retrieves a resource by id.
func (r *ResourceRepository) Get(ctx context.Context, id string) (*Resource, error) {
	query := `
		SELECT id::text, name, total_quantity, available_quantity, created_at
		FROM resources
		WHERE id = $1
	`

	res := &Resource{}
	err := r.db.QueryRow(ctx, query, id).Scan(&res.ID, &res.Name, &res.Total, &res.Available, &res.CreatedAt)
	if err != nil {
		if isMissingRow(err) {
			return nil, errors.NotFound("resource", id)
		}
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get resource")
	}
	return res, nil
}

// List returns all resources ordered by name.
func (r *ResourceRepository) List(ctx context.Context) ([]*Resource, error) {
	query := `
		SELECT id::text, name, total_quantity, available_quantity, created_at
		FROM resources
		ORDER BY name ASC
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list resources")
	}
	defer rows.Close()

	var resources []*Resource
	for rows.Next() {
		res := &Resource{}
		if err := rows.Scan(&res.ID, &res.Name, &res.Total, &res.Available, &res.CreatedAt); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan resource")
		}
		resources = append(resources, res)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to iterate resources")
	}
	return resources, nil
}

// TryDecrement takes qty units when at least qty are available.
func (r *ResourceRepository) TryDecrement(ctx context.Context, id string, qty int) (int, bool, error) {
	query := `
		UPDATE resources
		SET available_quantity = available_quantity - $2
		WHERE id = $1
		  AND available_quantity >= $2
		RETURNING available_quantity
	`

	var available int
	err := r.db.QueryRow(ctx, query, id, qty).Scan(&available)
	if err == nil {
		return available, true, nil
	}
	if !isMissingRow(err) {
		return 0, false, errors.Wrap(err, errors.ErrCodeInternal, "failed to decrement availability")
	}

	current, err := r.Get(ctx, id)
	if err != nil {
		return 0, false, err
	}
	return current.Available, false, nil
}

// Increment returns qty units. Exceeding total means the ledger lost track of
// a reservation and is reported as an internal error.
func (r *ResourceRepository) Increment(ctx context.Context, id string, qty int) error {
	query := `
		UPDATE resources
		SET available_quantity = available_quantity + $2
		WHERE id = $1
		  AND available_quantity + $2 <= total_quantity
		RETURNING available_quantity
	`

	var available int
	err := r.db.QueryRow(ctx, query, id, qty).Scan(&available)
	if err == nil {
		return nil
	}
	if err != pgx.ErrNoRows {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to increment availability")
	}

	if _, err := r.Get(ctx, id); err != nil {
		return err
	}
	return errors.New(errors.ErrCodeInternal,
		fmt.Sprintf("releasing %d units of resource %s would exceed its total", qty, id))
}

// AddReservations records what an event holds. Repeated rows for the same
// resource accumulate.
func (r *ResourceRepository) AddReservations(ctx context.Context, eventID string, items []ResourceQuantity) error {
	query := `
		INSERT INTO resource_reservations (event_id, resource_id, quantity)
		VALUES ($1, $2, $3)
		ON CONFLICT (event_id, resource_id)
		DO UPDATE SET quantity = resource_reservations.quantity + EXCLUDED.quantity
	`

	for _, item := range items {
		if _, err := r.db.Exec(ctx, query, eventID, item.ResourceID, item.Quantity); err != nil {
			return errors.Wrap(err, errors.ErrCodeInternal, "failed to record reservation")
		}
	}
	return nil
}

// Reservations returns what the event currently holds.
func (r *ResourceRepository) Reservations(ctx context.Context, eventID string) ([]ResourceQuantity, error) {
	query := `
		SELECT resource_id::text, quantity
		FROM resource_reservations
		WHERE event_id = $1
		ORDER BY resource_id
	`

	rows, err := r.db.Query(ctx, query, eventID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get reservations")
	}
	defer rows.Close()

	return scanQuantities(rows)
}

// DeleteReservations removes the event's reservation rows and returns them.
func (r *ResourceRepository) DeleteReservations(ctx context.Context, eventID string) ([]ResourceQuantity, error) {
	query := `
		DELETE FROM resource_reservations
		WHERE event_id = $1
		RETURNING resource_id::text, quantity
	`

	rows, err := r.db.Query(ctx, query, eventID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to delete reservations")
	}
	defer rows.Close()

	return scanQuantities(rows)
}
