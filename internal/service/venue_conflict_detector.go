package service

import (
	"context"

	"github.com/pesio-ai/be-event-approvals/internal/errors"
	"github.com/pesio-ai/be-event-approvals/internal/repository"
)

// VenueConflictDetector answers whether a venue is free for an interval. It
// only reads bookings.
type VenueConflictDetector struct{}

// NewVenueConflictDetector creates a new VenueConflictDetector.
func NewVenueConflictDetector() *VenueConflictDetector {
	return &VenueConflictDetector{}
}

// CheckAvailability fails with VenueConflict naming the first active booking
// at the venue that overlaps interval. excludingEventID lets an event be
// re-checked against everyone but itself.
func (d *VenueConflictDetector) CheckAvailability(
	ctx context.Context,
	events repository.EventStore,
	venueID string,
	interval repository.Interval,
	excludingEventID string,
) error {
	if !interval.Valid() {
		return errors.InvalidInput("interval", "end must be after start")
	}

	bookings, err := events.ActiveBookings(ctx, venueID)
	if err != nil {
		return err
	}
	if b := firstOverlap(bookings, interval, excludingEventID); b != nil {
		return errVenueConflict(venueID, b.EventID)
	}
	return nil
}

// CheckCapacity loads the venue and fails with CapacityExceeded when it
// cannot hold attendees.
func (d *VenueConflictDetector) CheckCapacity(
	ctx context.Context,
	venues repository.VenueStore,
	venueID string,
	attendees int,
) (*repository.Venue, error) {
	if attendees < 0 {
		return nil, errors.InvalidInput("attendee_count", "must not be negative")
	}

	venue, err := venues.Get(ctx, venueID)
	if err != nil {
		return nil, err
	}
	if attendees > venue.Capacity {
		return nil, errCapacityExceeded(venueID, attendees, venue.Capacity)
	}
	return venue, nil
}

func firstOverlap(bookings []repository.Booking, interval repository.Interval, excludingEventID string) *repository.Booking {
	for i := range bookings {
		b := &bookings[i]
		if b.EventID == excludingEventID && excludingEventID != "" {
			continue
		}
		if !b.Stage.IsActive() {
			continue
		}
		if b.Interval.Overlaps(interval) {
			return b
		}
	}
	return nil
}
