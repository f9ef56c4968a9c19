package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/openrace/fieldsync/internal/models"
)

// setupTestStorage creates an in-memory SQLite storage with migrations
// applied.
func setupTestStorage(t *testing.T) *Storage {
	t.Helper()

	store, err := New(context.Background(), ":memory:")
	require.NoError(t, err)

	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})

	return store
}

func testReference(uid string, typ models.EntityType, parentUID, name string) *models.ReferenceEntity {
	now := time.Now().Truncate(time.Second)
	return &models.ReferenceEntity{
		UID:          uid,
		Type:         typ,
		ParentUID:    parentUID,
		Name:         name,
		OriginDevice: "device-1",
		CreatedAt:    now,
		UpdatedAt:    now,
	}
}

func testStoredCase(uid, raceUID, locationUID, bib string) *models.Case {
	now := time.Now().Truncate(time.Second)
	return &models.Case{
		UID:          uid,
		RaceUID:      raceUID,
		LocationUID:  locationUID,
		Bib:          bib,
		Description:  "test incident",
		OccurredAt:   now,
		CreatedAt:    now,
		UpdatedAt:    now,
		OriginDevice: "device-1",
	}
}

// seedCaseGraph inserts the reference chain a case needs:
// competition -> stage -> race plus a location.
func seedCaseGraph(t *testing.T, store *Storage) {
	t.Helper()
	ctx := context.Background()

	require.NoError(t, store.SaveReference(ctx, testReference("comp-1", models.TypeCompetition, "", "Nationals")))
	require.NoError(t, store.SaveReference(ctx, testReference("stage-1", models.TypeStage, "comp-1", "Semifinals")))
	require.NoError(t, store.SaveReference(ctx, testReference("race-1", models.TypeRace, "stage-1", "Heat 3")))
	require.NoError(t, store.SaveReference(ctx, testReference("loc-1", models.TypeLocation, "comp-1", "Gate 7")))
}
