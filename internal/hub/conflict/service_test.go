package conflict

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openrace/fieldsync/internal/fingerprint"
	"github.com/openrace/fieldsync/internal/hub/dedup"
	"github.com/openrace/fieldsync/internal/hub/storage"
	"github.com/openrace/fieldsync/internal/hub/storage/sqlite"
	"github.com/openrace/fieldsync/internal/identity"
	"github.com/openrace/fieldsync/internal/models"
)

// setupConflict builds a real case conflict through storage and the dedup
// engine: device 1 creates a decided case, device 2 submits a disagreeing
// decision for the same UID.
func setupConflict(t *testing.T) (*Service, *sqlite.Storage, *models.Case, *models.Case, int64) {
	t.Helper()
	ctx := context.Background()

	store, err := sqlite.New(ctx, ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	fp := fingerprint.NewGenerator(30 * time.Second)
	engine := dedup.NewEngine(store, store, store, fp, logger)
	svc := NewService(store, store, store, fp, logger)

	compUID := identity.NewUID()
	stageUID := identity.NewUID()
	raceUID := identity.NewUID()
	locUID := identity.NewUID()
	now := time.Now().Truncate(time.Second)
	for _, ent := range []*models.ReferenceEntity{
		{UID: compUID, Type: models.TypeCompetition, Name: "Nationals", CreatedAt: now, UpdatedAt: now, OriginDevice: "d1"},
		{UID: stageUID, Type: models.TypeStage, ParentUID: compUID, Name: "Finals", CreatedAt: now, UpdatedAt: now, OriginDevice: "d1"},
		{UID: raceUID, Type: models.TypeRace, ParentUID: stageUID, Name: "Heat 1", CreatedAt: now, UpdatedAt: now, OriginDevice: "d1"},
		{UID: locUID, Type: models.TypeLocation, ParentUID: compUID, Name: "Gate 7", CreatedAt: now, UpdatedAt: now, OriginDevice: "d1"},
	} {
		res, err := engine.ProcessReference(ctx, "d1", ent)
		require.NoError(t, err)
		require.Equal(t, models.OutcomeCreated, res.Outcome)
	}

	hubSide := &models.Case{
		UID:         identity.NewUID(),
		RaceUID:     raceUID,
		LocationUID: locUID,
		Bib:         "42",
		Description: "gate contact",
		Decision:    models.DecisionPenalty,
		DecidedBy:   "judge a",
		OccurredAt:  now,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	res, err := engine.ProcessCase(ctx, "d1", hubSide)
	require.NoError(t, err)
	require.Equal(t, models.OutcomeCreated, res.Outcome)

	incoming := *hubSide
	incoming.Decision = models.DecisionDisqualified
	incoming.DecidedBy = "judge b"
	res, err = engine.ProcessCase(ctx, "d2", &incoming)
	require.NoError(t, err)
	require.Equal(t, models.OutcomeConflict, res.Outcome)

	return svc, store, hubSide, &incoming, res.ConflictID
}

func TestResolve_HubWins(t *testing.T) {
	svc, store, hubSide, _, id := setupConflict(t)
	ctx := context.Background()

	resolved, err := svc.Resolve(ctx, id, models.ResolutionHubWins, "operator", nil)
	require.NoError(t, err)
	assert.Equal(t, models.ResolutionHubWins, resolved.Resolution)
	assert.Equal(t, "operator", resolved.Resolver)
	require.NotNil(t, resolved.ResolvedAt)

	// The hub state is untouched.
	got, err := store.GetCase(ctx, hubSide.UID)
	require.NoError(t, err)
	assert.Equal(t, models.DecisionPenalty, got.Decision)
	assert.Equal(t, "judge a", got.DecidedBy)
}

func TestResolve_DeviceWins(t *testing.T) {
	svc, store, hubSide, incoming, id := setupConflict(t)
	ctx := context.Background()

	resolved, err := svc.Resolve(ctx, id, models.ResolutionDeviceWins, "operator", nil)
	require.NoError(t, err)
	assert.Equal(t, models.ResolutionDeviceWins, resolved.Resolution)

	// The incoming snapshot replaced the hub state.
	got, err := store.GetCase(ctx, hubSide.UID)
	require.NoError(t, err)
	assert.Equal(t, incoming.Decision, got.Decision)
	assert.Equal(t, incoming.DecidedBy, got.DecidedBy)
}

func TestResolve_Manual(t *testing.T) {
	svc, store, hubSide, _, id := setupConflict(t)
	ctx := context.Background()

	edited := *hubSide
	edited.Decision = models.DecisionWarning
	edited.DecidedBy = "jury"
	payload, err := json.Marshal(&edited)
	require.NoError(t, err)

	resolved, err := svc.Resolve(ctx, id, models.ResolutionManual, "jury", payload)
	require.NoError(t, err)
	assert.Equal(t, models.ResolutionManual, resolved.Resolution)

	got, err := store.GetCase(ctx, hubSide.UID)
	require.NoError(t, err)
	assert.Equal(t, models.DecisionWarning, got.Decision)
	assert.Equal(t, "jury", got.DecidedBy)
}

func TestResolve_ManualRequiresPayload(t *testing.T) {
	svc, _, _, _, id := setupConflict(t)

	_, err := svc.Resolve(context.Background(), id, models.ResolutionManual, "operator", nil)
	assert.Error(t, err)
}

func TestResolve_ManualRejectsUIDSwap(t *testing.T) {
	svc, _, hubSide, _, id := setupConflict(t)

	// The payload must describe the conflicted entity, not some other one.
	edited := *hubSide
	edited.UID = identity.NewUID()
	payload, err := json.Marshal(&edited)
	require.NoError(t, err)

	_, err = svc.Resolve(context.Background(), id, models.ResolutionManual, "operator", payload)
	assert.Error(t, err)
}

func TestResolve_Terminal(t *testing.T) {
	svc, _, _, _, id := setupConflict(t)
	ctx := context.Background()

	_, err := svc.Resolve(ctx, id, models.ResolutionHubWins, "operator", nil)
	require.NoError(t, err)

	// A second resolution attempt of any kind is rejected.
	_, err = svc.Resolve(ctx, id, models.ResolutionDeviceWins, "operator-2", nil)
	assert.ErrorIs(t, err, storage.ErrConflictResolved)
}

func TestResolve_Validation(t *testing.T) {
	svc, _, _, _, id := setupConflict(t)
	ctx := context.Background()

	_, err := svc.Resolve(ctx, id, "split-the-difference", "operator", nil)
	assert.Error(t, err)

	_, err = svc.Resolve(ctx, id, models.ResolutionPending, "operator", nil)
	assert.Error(t, err)

	_, err = svc.Resolve(ctx, id, models.ResolutionHubWins, "", nil)
	assert.Error(t, err)

	_, err = svc.Resolve(ctx, 99999, models.ResolutionHubWins, "operator", nil)
	assert.ErrorIs(t, err, storage.ErrConflictNotFound)
}

func TestList_FilterByResolution(t *testing.T) {
	svc, _, _, _, id := setupConflict(t)
	ctx := context.Background()

	pending, err := svc.List(ctx, models.ResolutionPending)
	require.NoError(t, err)
	require.Len(t, pending, 1)
	assert.Equal(t, id, pending[0].ID)

	_, err = svc.Resolve(ctx, id, models.ResolutionHubWins, "operator", nil)
	require.NoError(t, err)

	pending, err = svc.List(ctx, models.ResolutionPending)
	require.NoError(t, err)
	assert.Empty(t, pending)

	all, err := svc.List(ctx, "")
	require.NoError(t, err)
	assert.Len(t, all, 1)
}
