package database

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pesio-ai/be-event-approvals/internal/errors"
)

func newMockDB(t *testing.T) (*DB, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	t.Cleanup(mock.Close)
	return NewWithPool(mock), mock
}

func TestInSerializableTransaction_Commits(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.Serializable})
	mock.ExpectExec("UPDATE resources").
		WithArgs("r1", 2).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectCommit()

	err := db.InSerializableTransaction(context.Background(), func(tx pgx.Tx) error {
		_, err := tx.Exec(context.Background(), "UPDATE resources SET available_quantity = available_quantity - $2 WHERE id = $1", "r1", 2)
		return err
	})

	require.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInSerializableTransaction_RollsBackOnError(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.Serializable})
	mock.ExpectRollback()

	domainErr := errors.New(errors.ErrCodeVenueConflict, "overlap")
	err := db.InSerializableTransaction(context.Background(), func(tx pgx.Tx) error {
		return domainErr
	})

	assert.Same(t, domainErr, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInSerializableTransaction_SerializationFailureIsConflict(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBeginTx(pgx.TxOptions{IsoLevel: pgx.Serializable})
	mock.ExpectCommit().WillReturnError(&pgconn.PgError{Code: SQLStateSerializationFailure})

	err := db.InSerializableTransaction(context.Background(), func(tx pgx.Tx) error {
		return nil
	})

	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeConflict, errors.CodeOf(err))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInTransaction_BeginFailure(t *testing.T) {
	db, mock := newMockDB(t)

	mock.ExpectBeginTx(pgx.TxOptions{}).WillReturnError(stderrors.New("pool exhausted"))

	err := db.InTransaction(context.Background(), func(tx pgx.Tx) error {
		t.Fatal("fn must not run")
		return nil
	})

	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInternal, errors.CodeOf(err))
}

func TestTranslateError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want errors.Code
	}{
		{"serialization", &pgconn.PgError{Code: SQLStateSerializationFailure}, errors.ErrCodeConflict},
		{"deadlock", &pgconn.PgError{Code: SQLStateDeadlockDetected}, errors.ErrCodeConflict},
		{"unique passes through", &pgconn.PgError{Code: SQLStateUniqueViolation}, errors.ErrCodeInternal},
		{"domain passes through", errors.NotFound("event", "e1"), errors.ErrCodeNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, errors.CodeOf(TranslateError(tt.err)))
		})
	}
}

func TestSQLStateAndConstraint(t *testing.T) {
	err := errors.Wrap(&pgconn.PgError{Code: SQLStateExclusionViolation, ConstraintName: "events_no_venue_overlap"},
		errors.ErrCodeInternal, "insert failed")

	assert.Equal(t, SQLStateExclusionViolation, SQLState(err))
	assert.Equal(t, "events_no_venue_overlap", ConstraintName(err))
	assert.Empty(t, SQLState(stderrors.New("plain")))
}
