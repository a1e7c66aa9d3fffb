package repository

import (
	"context"

	"github.com/jackc/pgx/v5"

	"github.com/pesio-ai/be-event-approvals/internal/database"
	"github.com/pesio-ai/be-event-approvals/internal/errors"
)

// ApprovalAuditRepository appends and reads immutable approval records.
type ApprovalAuditRepository struct {
	db database.Querier
}

// NewApprovalAuditRepository creates a new ApprovalAuditRepository.
func NewApprovalAuditRepository(db database.Querier) *ApprovalAuditRepository {
	return &ApprovalAuditRepository{db: db}
}

// Append inserts one record. The table has an update/delete-prevention trigger
// so this is the only mutation exposed.
func (r *ApprovalAuditRepository) Append(ctx context.Context, rec *ApprovalRecord) error {
	query := `
		INSERT INTO approval_records
		    (event_id, from_stage, to_stage,
		     actor_role, decision, comment)
		VALUES ($1, $2, $3,
		        $4, $5, $6)
		RETURNING id::text, recorded_at
	`

	err := r.db.QueryRow(ctx, query,
		rec.EventID,
		string(rec.FromStage),
		string(rec.ToStage),
		string(rec.ActorRole),
		string(rec.Decision),
		rec.Comment,
	).Scan(&rec.ID, &rec.RecordedAt)
	if err != nil {
		return errors.Wrap(err, errors.ErrCodeInternal, "failed to append approval record")
	}
	return nil
}

// Trail returns the event's records oldest-first.
func (r *ApprovalAuditRepository) Trail(ctx context.Context, eventID string) ([]*ApprovalRecord, error) {
	query := `
		SELECT id::text, event_id::text, from_stage, to_stage,
		       actor_role, decision, comment, recorded_at
		FROM approval_records
		WHERE event_id = $1
		ORDER BY recorded_at ASC, id ASC
	`

	rows, err := r.db.Query(ctx, query, eventID)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to get approval trail")
	}
	defer rows.Close()

	return r.scanRows(rows)
}

// ── scan helpers ──────────────────────────────────────────────────────────────

func (r *ApprovalAuditRepository) scanRows(rows pgx.Rows) ([]*ApprovalRecord, error) {
	var records []*ApprovalRecord
	for rows.Next() {
		rec, err := r.scanRecord(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to iterate approval trail")
	}
	return records, nil
}

func (r *ApprovalAuditRepository) scanRecord(sc rowScanner) (*ApprovalRecord, error) {
	rec := &ApprovalRecord{}
	var from, to, role, decision string

	err := sc.Scan(
		&rec.ID,
		&rec.EventID,
		&from,
		&to,
		&role,
		&decision,
		&rec.Comment,
		&rec.RecordedAt,
	)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrCodeInternal, "failed to scan approval record")
	}

	rec.FromStage = Stage(from)
	rec.ToStage = Stage(to)
	rec.ActorRole = Role(role)
	rec.Decision = Decision(decision)
	return rec, nil
}
