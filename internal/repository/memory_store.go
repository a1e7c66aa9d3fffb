package repository

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/pesio-ai/be-event-approvals/internal/errors"
)

// MemoryStore is an in-process Store. Transactions read committed state
// lazily, buffer their writes and, at commit, check that every version they
// observed is still current. A transaction that read something a concurrent
// commit has since changed fails with Conflict and none of its writes apply.
// This holds for read-only transactions as well, so a successful InTx never
// hands back a mix of pre- and post-commit state.
type MemoryStore struct {
	mu sync.Mutex

	versions      map[string]uint64
	events        map[string]*Event
	venues        map[string]*Venue
	resources     map[string]*Resource
	reservations  map[string]map[string]int
	approvals     map[string][]*ApprovalRecord
	notifications map[string]*Notification

	now func() time.Time
}

// NewMemoryStore creates an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		versions:      make(map[string]uint64),
		events:        make(map[string]*Event),
		venues:        make(map[string]*Venue),
		resources:     make(map[string]*Resource),
		reservations:  make(map[string]map[string]int),
		approvals:     make(map[string][]*ApprovalRecord),
		notifications: make(map[string]*Notification),
		now:           time.Now,
	}
}

// InTx implements Store.
func (s *MemoryStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to begin transaction")
	}

	t := newMemTx(s)
	if err := fn(t); err != nil {
		return err
	}
	return s.commit(t)
}

// Close is a no-op.
func (s *MemoryStore) Close() {}

func (s *MemoryStore) commit(t *memTx) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Read-only transactions are validated too: one that observed state
	// from both sides of a concurrent commit must not return it.
	for key, seen := range t.reads {
		if s.versions[key] != seen {
			return errors.Conflict("concurrent modification, transaction aborted").
				WithDetail("key", key)
		}
	}
	if len(t.bumps) == 0 {
		return nil
	}

	for id := range t.dirtyEvents {
		s.events[id] = cloneEvent(t.events[id])
	}
	for id := range t.dirtyVenues {
		v := *t.venues[id]
		s.venues[id] = &v
	}
	for id := range t.dirtyResources {
		r := *t.resources[id]
		s.resources[id] = &r
	}
	for eventID := range t.dirtyReservations {
		held := t.reservations[eventID]
		if len(held) == 0 {
			delete(s.reservations, eventID)
			continue
		}
		s.reservations[eventID] = cloneHeld(held)
	}
	for _, rec := range t.appended {
		r := *rec
		s.approvals[rec.EventID] = append(s.approvals[rec.EventID], &r)
	}
	for id := range t.dirtyNotifications {
		n := *t.notifications[id]
		s.notifications[id] = &n
	}

	for key := range t.bumps {
		s.versions[key]++
	}
	return nil
}

func eventKey(id string) string            { return "event:" + id }
func venueBookingsKey(venue string) string { return "venue-bookings:" + venue }
func venueKey(id string) string            { return "venue:" + id }
func resourceKey(id string) string         { return "resource:" + id }
func reservationsKey(event string) string  { return "reservations:" + event }
func notificationKey(id string) string     { return "notification:" + id }

const (
	allEventsKey    = "events:all"
	allVenuesKey    = "venues:all"
	allResourcesKey = "resources:all"
)

// memTx caches what it read (nil for a confirmed miss) so repeated reads
// inside one transaction agree with each other and with its own writes.
type memTx struct {
	s *MemoryStore

	reads map[string]uint64
	bumps map[string]bool

	events             map[string]*Event
	dirtyEvents        map[string]bool
	venues             map[string]*Venue
	dirtyVenues        map[string]bool
	resources          map[string]*Resource
	dirtyResources     map[string]bool
	reservations       map[string]map[string]int
	dirtyReservations  map[string]bool
	appended           []*ApprovalRecord
	notifications      map[string]*Notification
	dirtyNotifications map[string]bool
}

func newMemTx(s *MemoryStore) *memTx {
	return &memTx{
		s:                  s,
		reads:              make(map[string]uint64),
		bumps:              make(map[string]bool),
		events:             make(map[string]*Event),
		dirtyEvents:        make(map[string]bool),
		venues:             make(map[string]*Venue),
		dirtyVenues:        make(map[string]bool),
		resources:          make(map[string]*Resource),
		dirtyResources:     make(map[string]bool),
		reservations:       make(map[string]map[string]int),
		dirtyReservations:  make(map[string]bool),
		notifications:      make(map[string]*Notification),
		dirtyNotifications: make(map[string]bool),
	}
}

func (t *memTx) Events() EventStore               { return memEvents{t} }
func (t *memTx) Venues() VenueStore               { return memVenues{t} }
func (t *memTx) Resources() ResourceStore         { return memResources{t} }
func (t *memTx) Approvals() ApprovalStore         { return memApprovals{t} }
func (t *memTx) Notifications() NotificationStore { return memNotifications{t} }

// observe records the committed version of key the first time it is read.
// Callers hold s.mu.
func (t *memTx) observe(key string) {
	if _, ok := t.reads[key]; !ok {
		t.reads[key] = t.s.versions[key]
	}
}

func (t *memTx) touch(keys ...string) {
	for _, k := range keys {
		t.bumps[k] = true
	}
}

func (t *memTx) event(id string) *Event {
	if e, ok := t.events[id]; ok {
		return e
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	t.observe(eventKey(id))
	var e *Event
	if committed, ok := t.s.events[id]; ok {
		e = cloneEvent(committed)
	}
	t.events[id] = e
	return e
}

func (t *memTx) venue(id string) *Venue {
	if v, ok := t.venues[id]; ok {
		return v
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	t.observe(venueKey(id))
	var v *Venue
	if committed, ok := t.s.venues[id]; ok {
		c := *committed
		v = &c
	}
	t.venues[id] = v
	return v
}

func (t *memTx) resource(id string) *Resource {
	if r, ok := t.resources[id]; ok {
		return r
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	t.observe(resourceKey(id))
	var r *Resource
	if committed, ok := t.s.resources[id]; ok {
		c := *committed
		r = &c
	}
	t.resources[id] = r
	return r
}

func (t *memTx) held(eventID string) map[string]int {
	if h, ok := t.reservations[eventID]; ok {
		return h
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	t.observe(reservationsKey(eventID))
	h := cloneHeld(t.s.reservations[eventID])
	t.reservations[eventID] = h
	return h
}

func (t *memTx) notification(id string) *Notification {
	if n, ok := t.notifications[id]; ok {
		return n
	}
	t.s.mu.Lock()
	defer t.s.mu.Unlock()
	t.observe(notificationKey(id))
	var n *Notification
	if committed, ok := t.s.notifications[id]; ok {
		c := *committed
		n = &c
	}
	t.notifications[id] = n
	return n
}

// ── events ───────────────────────────────────────────────────────────────────

type memEvents struct{ t *memTx }

func (m memEvents) Create(ctx context.Context, e *Event) error {
	if m.t.venue(e.VenueID) == nil {
		return errors.NotFound("venue", e.VenueID)
	}
	for _, rq := range e.Resources {
		if m.t.resource(rq.ResourceID) == nil {
			return errors.NotFound("resource", rq.ResourceID)
		}
	}
	if e.Stage.IsActive() {
		bookings, err := m.ActiveBookings(ctx, e.VenueID)
		if err != nil {
			return err
		}
		for _, b := range bookings {
			if b.Interval.Overlaps(e.Interval) {
				return errors.New(errors.ErrCodeVenueConflict, "venue is already booked for an overlapping interval").
					WithDetail("conflicting_event_id", b.EventID)
			}
		}
	}

	now := m.t.s.now()
	e.ID = uuid.NewString()
	e.Version = 1
	e.CreatedAt = now
	e.UpdatedAt = now

	m.t.events[e.ID] = cloneEvent(e)
	m.t.dirtyEvents[e.ID] = true
	m.t.touch(eventKey(e.ID), venueBookingsKey(e.VenueID), allEventsKey)
	return nil
}

func (m memEvents) Get(_ context.Context, id string) (*Event, error) {
	e := m.t.event(id)
	if e == nil {
		return nil, errors.NotFound("event", id)
	}
	return cloneEvent(e), nil
}

func (m memEvents) Transition(_ context.Context, id string, from, to Stage, rejectionReason string) error {
	e := m.t.event(id)
	if e == nil {
		return errors.NotFound("event", id)
	}
	if e.Stage != from {
		return errors.Conflict(fmt.Sprintf("event %s is no longer in stage %s", id, from)).
			WithDetail("event_id", id).
			WithDetail("expected_stage", string(from))
	}

	e.Stage = to
	e.RejectionReason = rejectionReason
	e.Version++
	e.UpdatedAt = m.t.s.now()

	m.t.dirtyEvents[id] = true
	m.t.touch(eventKey(id), venueBookingsKey(e.VenueID), allEventsKey)
	return nil
}

func (m memEvents) ActiveBookings(_ context.Context, venueID string) ([]Booking, error) {
	t := m.t

	t.s.mu.Lock()
	t.observe(venueBookingsKey(venueID))
	var bookings []Booking
	for id, e := range t.s.events {
		if _, mine := t.events[id]; mine {
			continue
		}
		if e.VenueID == venueID && e.Stage.IsActive() {
			bookings = append(bookings, bookingOf(e))
		}
	}
	t.s.mu.Unlock()

	for _, e := range t.events {
		if e != nil && e.VenueID == venueID && e.Stage.IsActive() {
			bookings = append(bookings, bookingOf(e))
		}
	}

	sort.Slice(bookings, func(i, j int) bool {
		if bookings[i].Interval.Start.Equal(bookings[j].Interval.Start) {
			return bookings[i].EventID < bookings[j].EventID
		}
		return bookings[i].Interval.Start.Before(bookings[j].Interval.Start)
	})
	return bookings, nil
}

func (m memEvents) List(_ context.Context, filter EventFilter) ([]*Event, error) {
	var out []*Event
	for _, e := range m.t.allEvents() {
		if filter.Stage != "" && e.Stage != filter.Stage {
			continue
		}
		if filter.OrganizerID != "" && e.OrganizerID != filter.OrganizerID {
			continue
		}
		if filter.VenueID != "" && e.VenueID != filter.VenueID {
			continue
		}
		out = append(out, e)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})

	if filter.Offset > 0 {
		if filter.Offset >= len(out) {
			return nil, nil
		}
		out = out[filter.Offset:]
	}
	if filter.Limit > 0 && filter.Limit < len(out) {
		out = out[:filter.Limit]
	}
	return out, nil
}

func (m memEvents) CountByStage(_ context.Context) (map[Stage]int, error) {
	counts := make(map[Stage]int, len(AllStages))
	for _, e := range m.t.allEvents() {
		counts[e.Stage]++
	}
	return counts, nil
}

// allEvents merges committed events with the transaction's own view.
func (t *memTx) allEvents() []*Event {
	t.s.mu.Lock()
	t.observe(allEventsKey)
	var out []*Event
	for id, e := range t.s.events {
		if _, mine := t.events[id]; mine {
			continue
		}
		out = append(out, cloneEvent(e))
	}
	t.s.mu.Unlock()

	for _, e := range t.events {
		if e != nil {
			out = append(out, cloneEvent(e))
		}
	}
	return out
}

// ── venues ───────────────────────────────────────────────────────────────────

type memVenues struct{ t *memTx }

func (m memVenues) Create(ctx context.Context, v *Venue) error {
	existing, err := m.List(ctx)
	if err != nil {
		return err
	}
	for _, other := range existing {
		if other.Name == v.Name {
			return errors.AlreadyExists("venue", v.Name)
		}
	}

	v.ID = uuid.NewString()
	v.CreatedAt = m.t.s.now()

	c := *v
	m.t.venues[v.ID] = &c
	m.t.dirtyVenues[v.ID] = true
	m.t.touch(venueKey(v.ID), allVenuesKey)
	return nil
}

func (m memVenues) Get(_ context.Context, id string) (*Venue, error) {
	v := m.t.venue(id)
	if v == nil {
		return nil, errors.NotFound("venue", id)
	}
	c := *v
	return &c, nil
}

func (m memVenues) List(_ context.Context) ([]*Venue, error) {
	t := m.t

	t.s.mu.Lock()
	t.observe(allVenuesKey)
	var out []*Venue
	for id, v := range t.s.venues {
		if _, mine := t.venues[id]; mine {
			continue
		}
		c := *v
		out = append(out, &c)
	}
	t.s.mu.Unlock()

	for _, v := range t.venues {
		if v != nil {
			c := *v
			out = append(out, &c)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// ── resources ────────────────────────────────────────────────────────────────

type memResources struct{ t *memTx }

func (m memResources) Create(ctx context.Context, r *Resource) error {
	existing, err := m.List(ctx)
	if err != nil {
		return err
	}
	for _, other := range existing {
		if other.Name == r.Name {
			return errors.AlreadyExists("resource", r.Name)
		}
	}

	r.ID = uuid.NewString()
	r.Available = r.Total
	r.CreatedAt = m.t.s.now()

	c := *r
	m.t.resources[r.ID] = &c
	m.t.dirtyResources[r.ID] = true
	m.t.touch(resourceKey(r.ID), allResourcesKey)
	return nil
}

func (m memResources) Get(_ context.Context, id string) (*Resource, error) {
	r := m.t.resource(id)
	if r == nil {
		return nil, errors.NotFound("resource", id)
	}
	c := *r
	return &c, nil
}

func (m memResources) List(_ context.Context) ([]*Resource, error) {
	t := m.t

	t.s.mu.Lock()
	t.observe(allResourcesKey)
	var out []*Resource
	for id, r := range t.s.resources {
		if _, mine := t.resources[id]; mine {
			continue
		}
		c := *r
		out = append(out, &c)
	}
	t.s.mu.Unlock()

	for _, r := range t.resources {
		if r != nil {
			c := *r
			out = append(out, &c)
		}
	}

	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (m memResources) TryDecrement(_ context.Context, id string, qty int) (int, bool, error) {
	r := m.t.resource(id)
	if r == nil {
		return 0, false, errors.NotFound("resource", id)
	}
	if r.Available < qty {
		return r.Available, false, nil
	}

	r.Available -= qty
	m.t.dirtyResources[id] = true
	m.t.touch(resourceKey(id))
	return r.Available, true, nil
}

func (m memResources) Increment(_ context.Context, id string, qty int) error {
	r := m.t.resource(id)
	if r == nil {
		return errors.NotFound("resource", id)
	}
	if r.Available+qty > r.Total {
		return errors.New(errors.ErrCodeInternal,
			fmt.Sprintf("releasing %d units of resource %s would exceed its total", qty, id))
	}

	r.Available += qty
	m.t.dirtyResources[id] = true
	m.t.touch(resourceKey(id))
	return nil
}

func (m memResources) AddReservations(_ context.Context, eventID string, items []ResourceQuantity) error {
	held := m.t.held(eventID)
	for _, item := range items {
		held[item.ResourceID] += item.Quantity
	}
	m.t.dirtyReservations[eventID] = true
	m.t.touch(reservationsKey(eventID))
	return nil
}

func (m memResources) Reservations(_ context.Context, eventID string) ([]ResourceQuantity, error) {
	return sortedHeld(m.t.held(eventID)), nil
}

func (m memResources) DeleteReservations(_ context.Context, eventID string) ([]ResourceQuantity, error) {
	held := m.t.held(eventID)
	if len(held) == 0 {
		return nil, nil
	}

	out := sortedHeld(held)
	m.t.reservations[eventID] = map[string]int{}
	m.t.dirtyReservations[eventID] = true
	m.t.touch(reservationsKey(eventID))
	return out, nil
}

// ── approvals ────────────────────────────────────────────────────────────────

type memApprovals struct{ t *memTx }

func (m memApprovals) Append(_ context.Context, rec *ApprovalRecord) error {
	if m.t.event(rec.EventID) == nil {
		return errors.NotFound("event", rec.EventID)
	}

	rec.ID = uuid.NewString()
	rec.RecordedAt = m.t.s.now()

	c := *rec
	m.t.appended = append(m.t.appended, &c)
	m.t.touch("trail:" + rec.EventID)
	return nil
}

func (m memApprovals) Trail(_ context.Context, eventID string) ([]*ApprovalRecord, error) {
	t := m.t

	t.s.mu.Lock()
	t.observe("trail:" + eventID)
	var out []*ApprovalRecord
	for _, rec := range t.s.approvals[eventID] {
		c := *rec
		out = append(out, &c)
	}
	t.s.mu.Unlock()

	for _, rec := range t.appended {
		if rec.EventID == eventID {
			c := *rec
			out = append(out, &c)
		}
	}
	return out, nil
}

// ── notifications ────────────────────────────────────────────────────────────

type memNotifications struct{ t *memTx }

func (m memNotifications) Create(_ context.Context, n *Notification) error {
	n.ID = uuid.NewString()
	n.Read = false
	n.CreatedAt = m.t.s.now()

	c := *n
	m.t.notifications[n.ID] = &c
	m.t.dirtyNotifications[n.ID] = true
	m.t.touch(notificationKey(n.ID))
	return nil
}

func (m memNotifications) List(_ context.Context, recipient string, unreadOnly bool) ([]*Notification, error) {
	t := m.t
	keep := func(n *Notification) bool {
		return n.Recipient == recipient && (!unreadOnly || !n.Read)
	}

	t.s.mu.Lock()
	var out []*Notification
	for id, n := range t.s.notifications {
		if _, mine := t.notifications[id]; mine {
			continue
		}
		if keep(n) {
			c := *n
			out = append(out, &c)
		}
	}
	t.s.mu.Unlock()

	for _, n := range t.notifications {
		if n != nil && keep(n) {
			c := *n
			out = append(out, &c)
		}
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	return out, nil
}

func (m memNotifications) MarkRead(_ context.Context, id, recipient string) error {
	n := m.t.notification(id)
	if n == nil || n.Recipient != recipient {
		return errors.NotFound("notification", id)
	}
	if n.Read {
		return nil
	}

	n.Read = true
	m.t.dirtyNotifications[id] = true
	m.t.touch(notificationKey(id))
	return nil
}

// ── helpers ──────────────────────────────────────────────────────────────────

func bookingOf(e *Event) Booking {
	return Booking{EventID: e.ID, VenueID: e.VenueID, Interval: e.Interval, Stage: e.Stage}
}

func cloneEvent(e *Event) *Event {
	c := *e
	if e.Resources != nil {
		c.Resources = append([]ResourceQuantity(nil), e.Resources...)
	}
	return &c
}

func cloneHeld(h map[string]int) map[string]int {
	out := make(map[string]int, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}

func sortedHeld(h map[string]int) []ResourceQuantity {
	if len(h) == 0 {
		return nil
	}
	out := make([]ResourceQuantity, 0, len(h))
	for id, qty := range h {
		out = append(out, ResourceQuantity{ResourceID: id, Quantity: qty})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ResourceID < out[j].ResourceID })
	return out
}

var (
	_ Store = (*MemoryStore)(nil)
	_ Tx    = (*memTx)(nil)
)
