package service

import (
	"context"
	"sort"

	"github.com/pesio-ai/be-event-approvals/internal/errors"
	"github.com/pesio-ai/be-event-approvals/internal/repository"
)

// ResourceLedger is the only writer of resource availability. Every change
// is a conditional update through the ResourceStore.
type ResourceLedger struct{}

// NewResourceLedger creates a new ResourceLedger.
func NewResourceLedger() *ResourceLedger {
	return &ResourceLedger{}
}

// Reserve takes every requested quantity for the event or nothing. On the
// first resource that is short it fails with InsufficientQuantity; the
// decrements already made are undone when the enclosing transaction rolls
// back.
func (l *ResourceLedger) Reserve(
	ctx context.Context,
	resources repository.ResourceStore,
	eventID string,
	items []repository.ResourceQuantity,
) error {
	items, err := normalize(items)
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return nil
	}

	for _, item := range items {
		available, ok, err := resources.TryDecrement(ctx, item.ResourceID, item.Quantity)
		if err != nil {
			return err
		}
		if !ok {
			return errInsufficientQuantity(item.ResourceID, item.Quantity, available)
		}
	}

	return resources.AddReservations(ctx, eventID, items)
}

// Release returns whatever the event holds. Releasing an event that holds
// nothing is a no-op. It reports what was returned.
func (l *ResourceLedger) Release(
	ctx context.Context,
	resources repository.ResourceStore,
	eventID string,
) ([]repository.ResourceQuantity, error) {
	held, err := resources.DeleteReservations(ctx, eventID)
	if err != nil {
		return nil, err
	}

	for _, item := range held {
		if err := resources.Increment(ctx, item.ResourceID, item.Quantity); err != nil {
			return nil, err
		}
	}
	return held, nil
}

// normalize validates a request set and orders it by resource id so
// concurrent reservations touch rows in the same order.
func normalize(items []repository.ResourceQuantity) ([]repository.ResourceQuantity, error) {
	seen := make(map[string]bool, len(items))
	out := make([]repository.ResourceQuantity, 0, len(items))
	for _, item := range items {
		if item.ResourceID == "" {
			return nil, errors.InvalidInput("resources", "resource id is required")
		}
		if item.Quantity <= 0 {
			return nil, errors.InvalidInput("resources", "quantity must be positive").
				WithDetail("resource_id", item.ResourceID)
		}
		if seen[item.ResourceID] {
			return nil, errors.InvalidInput("resources", "resource requested more than once").
				WithDetail("resource_id", item.ResourceID)
		}
		seen[item.ResourceID] = true
		out = append(out, item)
	}

	sort.Slice(out, func(i, j int) bool { return out[i].ResourceID < out[j].ResourceID })
	return out, nil
}
