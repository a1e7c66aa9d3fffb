package service

import (
	"context"
	"strings"

	"github.com/pesio-ai/be-event-approvals/internal/errors"
	"github.com/pesio-ai/be-event-approvals/internal/logger"
	"github.com/pesio-ai/be-event-approvals/internal/repository"
)

// CatalogService manages venues and resources.
type CatalogService struct {
	store repository.Store
	log   *logger.Logger
}

// NewCatalogService creates a new CatalogService.
func NewCatalogService(store repository.Store, log *logger.Logger) *CatalogService {
	return &CatalogService{store: store, log: log.Component("catalog")}
}

// DefaultVenues and DefaultResources are the catalog a fresh installation
// starts with.
var (
	DefaultVenues = []repository.Venue{
		{Name: "Main Auditorium", Capacity: 500, Location: "Block A, Ground Floor"},
		{Name: "Seminar Hall 1", Capacity: 100, Location: "Block B, First Floor"},
		{Name: "Conference Room", Capacity: 30, Location: "Block C, Second Floor"},
	}
	DefaultResources = []repository.Resource{
		{Name: "Projector", Total: 5},
		{Name: "Microphone", Total: 10},
		{Name: "Laptop", Total: 8},
		{Name: "Whiteboard", Total: 15},
	}
)

// CreateVenue adds a venue. Names are unique.
func (s *CatalogService) CreateVenue(ctx context.Context, name string, capacity int, location string) (*repository.Venue, error) {
	v := &repository.Venue{
		Name:     strings.TrimSpace(name),
		Capacity: capacity,
		Location: strings.TrimSpace(location),
	}
	if v.Name == "" {
		return nil, errors.InvalidInput("name", "venue name is required")
	}
	if v.Capacity < 0 {
		return nil, errors.InvalidInput("capacity", "must not be negative")
	}

	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		return tx.Venues().Create(ctx, v)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("venue_id", v.ID).Str("name", v.Name).Int("capacity", v.Capacity).Msg("Venue created")
	return v, nil
}

// ListVenues returns all venues ordered by name.
func (s *CatalogService) ListVenues(ctx context.Context) ([]*repository.Venue, error) {
	var out []*repository.Venue
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		var err error
		out, err = tx.Venues().List(ctx)
		return err
	})
	return out, err
}

// CreateResource adds a resource with its whole total available. The total
// cannot change afterwards.
func (s *CatalogService) CreateResource(ctx context.Context, name string, total int) (*repository.Resource, error) {
	r := &repository.Resource{Name: strings.TrimSpace(name), Total: total}
	if r.Name == "" {
		return nil, errors.InvalidInput("name", "resource name is required")
	}
	if r.Total < 0 {
		return nil, errors.InvalidInput("total", "must not be negative")
	}

	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		return tx.Resources().Create(ctx, r)
	})
	if err != nil {
		return nil, err
	}

	s.log.Info().Str("resource_id", r.ID).Str("name", r.Name).Int("total", r.Total).Msg("Resource created")
	return r, nil
}

// ListResources returns all resources with current availability.
func (s *CatalogService) ListResources(ctx context.Context) ([]*repository.Resource, error) {
	var out []*repository.Resource
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		var err error
		out, err = tx.Resources().List(ctx)
		return err
	})
	return out, err
}

// SeedDefaults creates the default venues and resources that do not exist
// yet, matching by name. It returns how many rows it created.
func (s *CatalogService) SeedDefaults(ctx context.Context) (int, error) {
	created := 0
	err := s.store.InTx(ctx, func(tx repository.Tx) error {
		created = 0

		venues, err := tx.Venues().List(ctx)
		if err != nil {
			return err
		}
		haveVenue := make(map[string]bool, len(venues))
		for _, v := range venues {
			haveVenue[v.Name] = true
		}
		for _, def := range DefaultVenues {
			if haveVenue[def.Name] {
				continue
			}
			v := def
			if err := tx.Venues().Create(ctx, &v); err != nil {
				return err
			}
			created++
		}

		resources, err := tx.Resources().List(ctx)
		if err != nil {
			return err
		}
		haveResource := make(map[string]bool, len(resources))
		for _, r := range resources {
			haveResource[r.Name] = true
		}
		for _, def := range DefaultResources {
			if haveResource[def.Name] {
				continue
			}
			r := def
			if err := tx.Resources().Create(ctx, &r); err != nil {
				return err
			}
			created++
		}
		return nil
	})
	if err != nil {
		return 0, err
	}

	if created > 0 {
		s.log.Info().Int("created", created).Msg("Default catalog seeded")
	}
	return created, nil
}
