package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pesio-ai/be-event-approvals/internal/errors"
	"github.com/pesio-ai/be-event-approvals/internal/logger"
	"github.com/pesio-ai/be-event-approvals/internal/repository"
)

func TestCatalogService_SeedDefaultsIsIdempotent(t *testing.T) {
	store := repository.NewMemoryStore()
	svc := NewCatalogService(store, logger.Nop())
	ctx := context.Background()

	created, err := svc.SeedDefaults(ctx)
	require.NoError(t, err)
	assert.Equal(t, len(DefaultVenues)+len(DefaultResources), created)

	created, err = svc.SeedDefaults(ctx)
	require.NoError(t, err)
	assert.Zero(t, created)

	venues, err := svc.ListVenues(ctx)
	require.NoError(t, err)
	require.Len(t, venues, 3)
	assert.Equal(t, "Conference Room", venues[0].Name)
	assert.Equal(t, 30, venues[0].Capacity)

	resources, err := svc.ListResources(ctx)
	require.NoError(t, err)
	require.Len(t, resources, 4)
	for _, r := range resources {
		assert.Equal(t, r.Total, r.Available)
	}
}

func TestCatalogService_CreateValidation(t *testing.T) {
	svc := NewCatalogService(repository.NewMemoryStore(), logger.Nop())
	ctx := context.Background()

	_, err := svc.CreateVenue(ctx, "  ", 10, "")
	assert.Equal(t, errors.ErrCodeInvalidInput, errors.CodeOf(err))
	_, err = svc.CreateVenue(ctx, "Lab", -1, "")
	assert.Equal(t, errors.ErrCodeInvalidInput, errors.CodeOf(err))
	_, err = svc.CreateResource(ctx, "Speaker", -3)
	assert.Equal(t, errors.ErrCodeInvalidInput, errors.CodeOf(err))

	_, err = svc.CreateResource(ctx, "Speaker", 3)
	require.NoError(t, err)
	_, err = svc.CreateResource(ctx, "Speaker", 4)
	assert.Equal(t, errors.ErrCodeAlreadyExists, errors.CodeOf(err))
}
