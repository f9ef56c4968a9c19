package sqlite

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openrace/fieldsync/internal/hub/storage"
	"github.com/openrace/fieldsync/internal/models"
)

func TestSaveReference_AndGet(t *testing.T) {
	store := setupTestStorage(t)
	ctx := context.Background()

	entity := testReference("comp-1", models.TypeCompetition, "", "Nationals")
	require.NoError(t, store.SaveReference(ctx, entity))

	got, err := store.GetReference(ctx, "comp-1")
	require.NoError(t, err)
	assert.Equal(t, entity.UID, got.UID)
	assert.Equal(t, entity.Type, got.Type)
	assert.Equal(t, entity.Name, got.Name)
	assert.Equal(t, entity.OriginDevice, got.OriginDevice)
}

func TestGetReference_NotFound(t *testing.T) {
	store := setupTestStorage(t)

	_, err := store.GetReference(context.Background(), "no-such-uid")
	assert.ErrorIs(t, err, storage.ErrEntityNotFound)
}

func TestReplaceReference(t *testing.T) {
	store := setupTestStorage(t)
	ctx := context.Background()

	entity := testReference("comp-1", models.TypeCompetition, "", "Nationals")
	require.NoError(t, store.SaveReference(ctx, entity))

	entity.Name = "Nationals 2025"
	require.NoError(t, store.ReplaceReference(ctx, entity))

	got, err := store.GetReference(ctx, "comp-1")
	require.NoError(t, err)
	assert.Equal(t, "Nationals 2025", got.Name)
}

func TestListReferencesByParent(t *testing.T) {
	store := setupTestStorage(t)
	ctx := context.Background()

	require.NoError(t, store.SaveReference(ctx, testReference("comp-1", models.TypeCompetition, "", "Nationals")))
	require.NoError(t, store.SaveReference(ctx, testReference("stage-1", models.TypeStage, "comp-1", "Heats")))
	require.NoError(t, store.SaveReference(ctx, testReference("stage-2", models.TypeStage, "comp-1", "Finals")))
	require.NoError(t, store.SaveReference(ctx, testReference("loc-1", models.TypeLocation, "comp-1", "Gate 7")))

	stages, err := store.ListReferencesByParent(ctx, models.TypeStage, "comp-1")
	require.NoError(t, err)
	require.Len(t, stages, 2)
	for _, s := range stages {
		assert.Equal(t, models.TypeStage, s.Type)
		assert.Equal(t, "comp-1", s.ParentUID)
	}

	locations, err := store.ListReferencesByParent(ctx, models.TypeLocation, "comp-1")
	require.NoError(t, err)
	require.Len(t, locations, 1)

	none, err := store.ListReferencesByParent(ctx, models.TypeStage, "comp-2")
	require.NoError(t, err)
	assert.Empty(t, none)
}
