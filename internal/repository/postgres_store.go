package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/pesio-ai/be-event-approvals/internal/database"
)

// PostgresStore runs every unit of work in a SERIALIZABLE transaction.
type PostgresStore struct {
	db *database.DB
}

// NewPostgresStore creates a store over an open database.
func NewPostgresStore(db *database.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// InTx implements Store.
func (s *PostgresStore) InTx(ctx context.Context, fn func(tx Tx) error) error {
	return s.db.InSerializableTransaction(ctx, func(tx pgx.Tx) error {
		return fn(newPGTx(tx))
	})
}

// Close releases the pool.
func (s *PostgresStore) Close() {
	s.db.Close()
}

// DB exposes the underlying database for migrations and health checks.
func (s *PostgresStore) DB() *database.DB {
	return s.db
}

type pgTx struct {
	events        *EventRepository
	venues        *VenueRepository
	resources     *ResourceRepository
	approvals     *ApprovalAuditRepository
	notifications *NotificationRepository
}

func newPGTx(q database.Querier) *pgTx {
	return &pgTx{
		events:        NewEventRepository(q),
		venues:        NewVenueRepository(q),
		resources:     NewResourceRepository(q),
		approvals:     NewApprovalAuditRepository(q),
		notifications: NewNotificationRepository(q),
	}
}

func (t *pgTx) Events() EventStore               { return t.events }
func (t *pgTx) Venues() VenueStore               { return t.venues }
func (t *pgTx) Resources() ResourceStore         { return t.resources }
func (t *pgTx) Approvals() ApprovalStore         { return t.approvals }
func (t *pgTx) Notifications() NotificationStore { return t.notifications }

var (
	_ Store = (*PostgresStore)(nil)
	_ Tx    = (*pgTx)(nil)
)
