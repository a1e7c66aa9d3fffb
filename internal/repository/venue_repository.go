package repository

import (
	"context"

	"github.com/pesio-ai/be-event-approvals/internal/database"
	"github.com/pesio-ai/be-event-approvals/internal/errors"
)

// VenueRepository handles venue rows.
type VenueRepository struct {
	db database.Querier
}

// NewVenueRepository creates a new VenueRepository.
func NewVenueRepository(db database.Querier) *VenueRepository {
	return &VenueRepository{db: db}
}

// Create inserts a venue. Names are unique.
func (r *VenueRepository) Create(ctx context.Context, v *Venue) error {
	query := `
		INSERT INTO venues (name, capacity, location)
		VALUES ($1, $2, $3)
		RETURNING id::text, created_at
	`

	err := r.db.QueryRow(ctx, query, v.Name, v.Capacity, v.Location).Scan(&v.ID, &v.CreatedAt)
	if err != nil {
		if database.SQLState(err) == database.SQLStateUniqueViolation {
			return errors.AlreadyExists("venue", v.Name)
		}
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to create venue")
	}
	return nil
}

// Get retrieves a venue by id.
func (r *VenueRepository) Get(ctx context.Context, id string) (*Venue, error) {
	query := `
		SELECT id::text, name, capacity, location, created_at
		FROM venues
		WHERE id = $1
	`

	v := &Venue{}
	err := r.db.QueryRow(ctx, query, id).Scan(&v.ID, &v.Name, &v.Capacity, &v.Location, &v.CreatedAt)
	if err != nil {
		if isMissingRow(err) {
			return nil, errors.NotFound("venue", id)
		}
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get venue")
	}
	return v, nil
}

// List returns all venues ordered by name.
func (r *VenueRepository) List(ctx context.Context) ([]*Venue, error) {
	query := `
		SELECT id::text, name, capacity, location, created_at
		FROM venues
		ORDER BY name ASC
	`

	rows, err := r.db.Query(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list venues")
	}
	defer rows.Close()

	var venues []*Venue
	for rows.Next() {
		v := &Venue{}
		if err := rows.Scan(&v.ID, &v.Name, &v.Capacity, &v.Location, &v.CreatedAt); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan venue")
		}
		venues = append(venues, v)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to iterate venues")
	}
	return venues, nil
}
