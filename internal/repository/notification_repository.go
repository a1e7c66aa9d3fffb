package repository

import (
	"context"

	"github.com/pesio-ai/be-event-approvals/internal/database"
	"github.com/pesio-ai/be-event-approvals/internal/errors"
)

// NotificationRepository is the notification outbox table.
type NotificationRepository struct {
	db database.Querier
}

// NewNotificationRepository creates a new NotificationRepository.
func NewNotificationRepository(db database.Querier) *NotificationRepository {
	return &NotificationRepository{db: db}
}

// Create queues a notification.
func (r *NotificationRepository) Create(ctx context.Context, n *Notification) error {
	query := `
		INSERT INTO notifications (recipient, event_id, message)
		VALUES ($1, NULLIF($2, '')::uuid, $3)
		RETURNING id::text, is_read, created_at
	`

	err := r.db.QueryRow(ctx, query, n.Recipient, n.EventID, n.Message).Scan(&n.ID, &n.Read, &n.CreatedAt)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to create notification")
	}
	return nil
}

// List returns the recipient's notifications, newest first.
func (r *NotificationRepository) List(ctx context.Context, recipient string, unreadOnly bool) ([]*Notification, error) {
	query := `
		SELECT id::text, recipient, COALESCE(event_id::text, ''), message, is_read, created_at
		FROM notifications
		WHERE recipient = $1
		  AND ($2 = FALSE OR is_read = FALSE)
		ORDER BY created_at DESC, id
	`

	rows, err := r.db.Query(ctx, query, recipient, unreadOnly)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to list notifications")
	}
	defer rows.Close()

	var out []*Notification
	for rows.Next() {
		n := &Notification{}
		if err := rows.Scan(&n.ID, &n.Recipient, &n.EventID, &n.Message, &n.Read, &n.CreatedAt); err != nil {
			return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan notification")
		}
		out = append(out, n)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to iterate notifications")
	}
	return out, nil
}

// MarkRead flags one of the recipient's notifications as read.
func (r *NotificationRepository) MarkRead(ctx context.Context, id, recipient string) error {
	query := `
		UPDATE notifications
		SET is_read = TRUE
		WHERE id = $1 AND recipient = $2
	`

	tag, err := r.db.Exec(ctx, query, id, recipient)
	if err != nil {
		if isMissingRow(err) {
			return errors.NotFound("notification", id)
		}
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to mark notification read")
	}
	if tag.RowsAffected() == 0 {
		return errors.NotFound("notification", id)
	}
	return nil
}
