package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pesio-ai/be-event-approvals/internal/errors"
	"github.com/pesio-ai/be-event-approvals/internal/repository"
)

func TestResourceLedger_ReserveIsAllOrNothing(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	v := env.venue(t, "Venue V", 100)
	laptop := env.resource(t, "Laptop", 8)
	board := env.resource(t, "Whiteboard", 1)
	id := env.submit(t, v.ID, at(10, 0), at(11, 0))

	ledger := NewResourceLedger()
	err := env.store.InTx(ctx, func(tx repository.Tx) error {
		return ledger.Reserve(ctx, tx.Resources(), id, []repository.ResourceQuantity{
			qty(laptop.ID, 4),
			qty(board.ID, 2),
		})
	})
	require.Error(t, err)
	assert.Equal(t, errors.ErrCodeInsufficientQuantity, errors.CodeOf(err))

	assert.Equal(t, 8, env.available(t, laptop.ID))
	assert.Equal(t, 1, env.available(t, board.ID))
}

func TestResourceLedger_ReleaseIsIdempotent(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	v := env.venue(t, "Venue V", 100)
	laptop := env.resource(t, "Laptop", 8)
	id := env.submit(t, v.ID, at(10, 0), at(11, 0))

	ledger := NewResourceLedger()
	require.NoError(t, env.store.InTx(ctx, func(tx repository.Tx) error {
		return ledger.Reserve(ctx, tx.Resources(), id, []repository.ResourceQuantity{qty(laptop.ID, 5)})
	}))
	assert.Equal(t, 3, env.available(t, laptop.ID))

	var released []repository.ResourceQuantity
	require.NoError(t, env.store.InTx(ctx, func(tx repository.Tx) error {
		var err error
		released, err = ledger.Release(ctx, tx.Resources(), id)
		return err
	}))
	assert.Equal(t, []repository.ResourceQuantity{qty(laptop.ID, 5)}, released)
	assert.Equal(t, 8, env.available(t, laptop.ID))

	require.NoError(t, env.store.InTx(ctx, func(tx repository.Tx) error {
		var err error
		released, err = ledger.Release(ctx, tx.Resources(), id)
		return err
	}))
	assert.Empty(t, released)
	assert.Equal(t, 8, env.available(t, laptop.ID))
}

func TestResourceLedger_ReserveEmptySet(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	err := env.store.InTx(ctx, func(tx repository.Tx) error {
		return NewResourceLedger().Reserve(ctx, tx.Resources(), "e1", nil)
	})
	assert.NoError(t, err)
}

func TestNormalize(t *testing.T) {
	items, err := normalize([]repository.ResourceQuantity{qty("b", 1), qty("a", 2)})
	require.NoError(t, err)
	assert.Equal(t, []repository.ResourceQuantity{qty("a", 2), qty("b", 1)}, items)

	_, err = normalize([]repository.ResourceQuantity{qty("a", -1)})
	assert.Equal(t, errors.ErrCodeInvalidInput, errors.CodeOf(err))

	_, err = normalize([]repository.ResourceQuantity{qty("", 1)})
	assert.Equal(t, errors.ErrCodeInvalidInput, errors.CodeOf(err))
}
