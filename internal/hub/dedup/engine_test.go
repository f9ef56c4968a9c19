package dedup

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openrace/fieldsync/internal/fingerprint"
	"github.com/openrace/fieldsync/internal/hub/storage/sqlite"
	"github.com/openrace/fieldsync/internal/identity"
	"github.com/openrace/fieldsync/internal/models"
)

func setupEngine(t *testing.T) (*Engine, *sqlite.Storage) {
	t.Helper()

	store, err := sqlite.New(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	engine := NewEngine(store, store, store, fingerprint.NewGenerator(30*time.Second), logger)
	return engine, store
}

// seedGraph creates competition -> stage -> race plus a location through the
// engine itself and returns the race and location UIDs.
func seedGraph(t *testing.T, e *Engine) (raceUID, locationUID string) {
	t.Helper()
	ctx := context.Background()

	compUID := identity.NewUID()
	stageUID := identity.NewUID()
	raceUID = identity.NewUID()
	locationUID = identity.NewUID()

	entities := []*models.ReferenceEntity{
		{UID: compUID, Type: models.TypeCompetition, Name: "Nationals"},
		{UID: stageUID, Type: models.TypeStage, ParentUID: compUID, Name: "Semifinals"},
		{UID: raceUID, Type: models.TypeRace, ParentUID: stageUID, Name: "Heat 3"},
		{UID: locationUID, Type: models.TypeLocation, ParentUID: compUID, Name: "Gate 7"},
	}
	for _, ent := range entities {
		stampReference(ent)
		res, err := e.ProcessReference(ctx, "seed-device", ent)
		require.NoError(t, err)
		require.Equal(t, models.OutcomeCreated, res.Outcome, "seeding %s: %s", ent.Type, res.Err)
	}
	return raceUID, locationUID
}

func stampReference(ent *models.ReferenceEntity) {
	now := time.Now().Truncate(time.Second)
	ent.CreatedAt = now
	ent.UpdatedAt = now
	if ent.OriginDevice == "" {
		ent.OriginDevice = "seed-device"
	}
}

func newCase(raceUID, locationUID, bib string, occurredAt time.Time) *models.Case {
	now := time.Now().Truncate(time.Second)
	return &models.Case{
		UID:         identity.NewUID(),
		RaceUID:     raceUID,
		LocationUID: locationUID,
		Bib:         bib,
		Description: "incident at the gate",
		OccurredAt:  occurredAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

func TestProcessReference_CreateThenReplay(t *testing.T) {
	engine, _ := setupEngine(t)
	ctx := context.Background()

	ent := &models.ReferenceEntity{UID: identity.NewUID(), Type: models.TypeCompetition, Name: "Nationals"}
	stampReference(ent)

	res, err := engine.ProcessReference(ctx, "device-1", ent)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeCreated, res.Outcome)

	// Replaying the identical record any number of times stays a no-op.
	for i := 0; i < 3; i++ {
		res, err = engine.ProcessReference(ctx, "device-1", ent)
		require.NoError(t, err)
		assert.Equal(t, models.OutcomeAlreadySynced, res.Outcome)
	}
}

func TestProcessReference_DependencyMissing(t *testing.T) {
	engine, _ := setupEngine(t)
	ctx := context.Background()

	stage := &models.ReferenceEntity{
		UID:       identity.NewUID(),
		Type:      models.TypeStage,
		ParentUID: identity.NewUID(), // never synced
		Name:      "Semifinals",
	}
	stampReference(stage)

	res, err := engine.ProcessReference(ctx, "device-1", stage)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeDependencyMissing, res.Outcome)
}

func TestProcessReference_IdentityConflict(t *testing.T) {
	engine, store := setupEngine(t)
	ctx := context.Background()

	ent := &models.ReferenceEntity{UID: identity.NewUID(), Type: models.TypeCompetition, Name: "Nationals"}
	stampReference(ent)
	res, err := engine.ProcessReference(ctx, "device-1", ent)
	require.NoError(t, err)
	require.Equal(t, models.OutcomeCreated, res.Outcome)

	changed := *ent
	changed.Name = "Regionals"

	res, err = engine.ProcessReference(ctx, "device-2", &changed)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeConflict, res.Outcome)
	require.NotZero(t, res.ConflictID)

	// The same disagreement resubmitted maps onto the same conflict row.
	again, err := engine.ProcessReference(ctx, "device-2", &changed)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeConflict, again.Outcome)
	assert.Equal(t, res.ConflictID, again.ConflictID)

	conflicts, err := store.ListConflicts(ctx, models.ResolutionPending)
	require.NoError(t, err)
	assert.Len(t, conflicts, 1)
	assert.Equal(t, models.ConflictIdentityMismatch, conflicts[0].Kind)
}

func TestProcessReference_ResolvedConflictReplayConverges(t *testing.T) {
	engine, store := setupEngine(t)
	ctx := context.Background()

	ent := &models.ReferenceEntity{UID: identity.NewUID(), Type: models.TypeCompetition, Name: "Nationals"}
	stampReference(ent)
	_, err := engine.ProcessReference(ctx, "device-1", ent)
	require.NoError(t, err)

	changed := *ent
	changed.Name = "Regionals"
	res, err := engine.ProcessReference(ctx, "device-2", &changed)
	require.NoError(t, err)
	require.Equal(t, models.OutcomeConflict, res.Outcome)

	require.NoError(t, store.MarkResolved(ctx, res.ConflictID, models.ResolutionHubWins, "operator"))

	// After adjudication the device's resubmission of the stale snapshot is
	// acknowledged so its queue entry converges instead of ping-ponging.
	after, err := engine.ProcessReference(ctx, "device-2", &changed)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeAlreadySynced, after.Outcome)
}

func TestProcessReference_Malformed(t *testing.T) {
	engine, _ := setupEngine(t)
	ctx := context.Background()

	compUID := identity.NewUID()
	comp := &models.ReferenceEntity{UID: compUID, Type: models.TypeCompetition, Name: "Nationals"}
	stampReference(comp)
	_, err := engine.ProcessReference(ctx, "device-1", comp)
	require.NoError(t, err)

	tests := []struct {
		name string
		ent  *models.ReferenceEntity
	}{
		{"local numeric id", &models.ReferenceEntity{UID: "17", Type: models.TypeCompetition, Name: "X"}},
		{"operational type", &models.ReferenceEntity{UID: identity.NewUID(), Type: models.TypeCase, Name: "X"}},
		{"unknown type", &models.ReferenceEntity{UID: identity.NewUID(), Type: "penalty", Name: "X"}},
		{"empty name", &models.ReferenceEntity{UID: identity.NewUID(), Type: models.TypeCompetition, Name: ""}},
		{"root with parent", &models.ReferenceEntity{UID: identity.NewUID(), Type: models.TypeCompetition, ParentUID: compUID, Name: "X"}},
		// A race's parent must be a stage; pointing it at the competition
		// will never resolve, so it is rejected rather than retried.
		{"wrong parent type", &models.ReferenceEntity{UID: identity.NewUID(), Type: models.TypeRace, ParentUID: compUID, Name: "X"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			stampReference(tt.ent)
			res, err := engine.ProcessReference(ctx, "device-1", tt.ent)
			require.NoError(t, err)
			assert.Equal(t, models.OutcomeMalformed, res.Outcome)
			assert.NotEmpty(t, res.Err)
		})
	}
}

func TestProcessCase_TwoDevicesSameIncident(t *testing.T) {
	engine, _ := setupEngine(t)
	ctx := context.Background()
	raceUID, locationUID := seedGraph(t, engine)

	// Two judges record the same incident: bib 42 at the same location,
	// observed at 10:32:10 and 10:32:25. Same 30-second bucket.
	first := newCase(raceUID, locationUID, "42", time.Date(2025, 6, 14, 10, 32, 10, 0, time.UTC))
	second := newCase(raceUID, locationUID, "42", time.Date(2025, 6, 14, 10, 32, 25, 0, time.UTC))

	res, err := engine.ProcessCase(ctx, "device-1", first)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeCreated, res.Outcome)

	res, err = engine.ProcessCase(ctx, "device-2", second)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeMerged, res.Outcome)
	assert.Equal(t, first.UID, res.SurvivingUID)

	// The losing device replays its submission after a lost ack: same
	// answer, same survivor.
	res, err = engine.ProcessCase(ctx, "device-2", second)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeMerged, res.Outcome)
	assert.Equal(t, first.UID, res.SurvivingUID)
}

func TestProcessCase_BucketEdge(t *testing.T) {
	engine, _ := setupEngine(t)
	ctx := context.Background()
	raceUID, locationUID := seedGraph(t, engine)

	// Two seconds apart but straddling a bucket boundary: two distinct
	// cases by design.
	first := newCase(raceUID, locationUID, "42", time.Date(2025, 6, 14, 10, 32, 29, 0, time.UTC))
	second := newCase(raceUID, locationUID, "42", time.Date(2025, 6, 14, 10, 32, 31, 0, time.UTC))

	res, err := engine.ProcessCase(ctx, "device-1", first)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeCreated, res.Outcome)

	res, err = engine.ProcessCase(ctx, "device-2", second)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeCreated, res.Outcome)
}

func TestProcessCase_IdempotentReplay(t *testing.T) {
	engine, _ := setupEngine(t)
	ctx := context.Background()
	raceUID, locationUID := seedGraph(t, engine)

	c := newCase(raceUID, locationUID, "42", time.Now().Truncate(time.Second))

	res, err := engine.ProcessCase(ctx, "device-1", c)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeCreated, res.Outcome)

	for i := 0; i < 5; i++ {
		res, err = engine.ProcessCase(ctx, "device-1", c)
		require.NoError(t, err)
		assert.Equal(t, models.OutcomeAlreadySynced, res.Outcome)
	}
}

func TestProcessCase_DependencyMissing(t *testing.T) {
	engine, _ := setupEngine(t)
	ctx := context.Background()

	c := newCase(identity.NewUID(), identity.NewUID(), "42", time.Now())

	res, err := engine.ProcessCase(ctx, "device-1", c)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeDependencyMissing, res.Outcome)
}

func TestProcessCase_DecisionMismatch(t *testing.T) {
	engine, store := setupEngine(t)
	ctx := context.Background()
	raceUID, locationUID := seedGraph(t, engine)

	c := newCase(raceUID, locationUID, "42", time.Now().Truncate(time.Second))
	c.Decision = models.DecisionPenalty
	c.DecidedBy = "judge a"

	res, err := engine.ProcessCase(ctx, "device-1", c)
	require.NoError(t, err)
	require.Equal(t, models.OutcomeCreated, res.Outcome)

	disputed := *c
	disputed.Decision = models.DecisionDisqualified
	disputed.DecidedBy = "judge b"

	res, err = engine.ProcessCase(ctx, "device-2", &disputed)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeConflict, res.Outcome)

	conflicts, err := store.ListConflicts(ctx, models.ResolutionPending)
	require.NoError(t, err)
	require.Len(t, conflicts, 1)
	assert.Equal(t, models.ConflictDecisionMismatch, conflicts[0].Kind)
}

func TestProcessCase_Malformed(t *testing.T) {
	engine, _ := setupEngine(t)
	ctx := context.Background()
	raceUID, locationUID := seedGraph(t, engine)

	tests := []struct {
		name   string
		mutate func(*models.Case)
	}{
		{"bad uid", func(c *models.Case) { c.UID = "17" }},
		{"bad bib", func(c *models.Case) { c.Bib = "not-a-bib" }},
		{"empty bib", func(c *models.Case) { c.Bib = "" }},
		{"zero occurred at", func(c *models.Case) { c.OccurredAt = time.Time{} }},
		{"bogus decision", func(c *models.Case) { c.Decision = "dsq" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newCase(raceUID, locationUID, "42", time.Now())
			tt.mutate(c)
			res, err := engine.ProcessCase(ctx, "device-1", c)
			require.NoError(t, err)
			assert.Equal(t, models.OutcomeMalformed, res.Outcome)
		})
	}
}

func TestProcessReport_FollowsMergedCase(t *testing.T) {
	engine, store := setupEngine(t)
	ctx := context.Background()
	raceUID, locationUID := seedGraph(t, engine)

	first := newCase(raceUID, locationUID, "42", time.Date(2025, 6, 14, 10, 32, 10, 0, time.UTC))
	second := newCase(raceUID, locationUID, "42", time.Date(2025, 6, 14, 10, 32, 25, 0, time.UTC))

	_, err := engine.ProcessCase(ctx, "device-1", first)
	require.NoError(t, err)
	res, err := engine.ProcessCase(ctx, "device-2", second)
	require.NoError(t, err)
	require.Equal(t, models.OutcomeMerged, res.Outcome)

	// Device 2 still references its own (merged-away) case UID.
	now := time.Now().Truncate(time.Second)
	report := &models.Report{
		UID:        identity.NewUID(),
		CaseUID:    second.UID,
		Author:     "judge 3",
		Body:       "athlete missed gate 7",
		ObservedAt: now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	res, err = engine.ProcessReport(ctx, "device-2", report)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeCreated, res.Outcome)

	// The report landed on the survivor.
	reports, err := store.ListReportsByCase(ctx, first.UID)
	require.NoError(t, err)
	require.Len(t, reports, 1)
	assert.Equal(t, report.UID, reports[0].UID)

	// Replay after re-parenting still reads as the same content.
	replay := *report
	replay.CaseUID = second.UID
	res, err = engine.ProcessReport(ctx, "device-2", &replay)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeAlreadySynced, res.Outcome)
}

func TestProcessReport_DependencyMissing(t *testing.T) {
	engine, _ := setupEngine(t)
	ctx := context.Background()

	now := time.Now()
	report := &models.Report{
		UID:        identity.NewUID(),
		CaseUID:    identity.NewUID(),
		Author:     "judge 3",
		Body:       "text",
		ObservedAt: now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	res, err := engine.ProcessReport(ctx, "device-1", report)
	require.NoError(t, err)
	assert.Equal(t, models.OutcomeDependencyMissing, res.Outcome)
}

func TestProcessCase_ConcurrentSameFingerprint(t *testing.T) {
	engine, _ := setupEngine(t)
	ctx := context.Background()
	raceUID, locationUID := seedGraph(t, engine)

	occurredAt := time.Date(2025, 6, 14, 10, 32, 10, 0, time.UTC)

	const devices = 8
	results := make([]Result, devices)
	errs := make([]error, devices)
	var wg sync.WaitGroup
	for i := 0; i < devices; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			c := newCase(raceUID, locationUID, "42", occurredAt.Add(time.Duration(i)*time.Second))
			results[i], errs[i] = engine.ProcessCase(ctx, "device-x", c)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "submission %d", i)
	}

	created, merged := 0, 0
	survivors := make(map[string]bool)
	for _, res := range results {
		switch res.Outcome {
		case models.OutcomeCreated:
			created++
		case models.OutcomeMerged:
			merged++
			survivors[res.SurvivingUID] = true
		default:
			t.Fatalf("unexpected outcome %s", res.Outcome)
		}
	}

	// Exactly one case survives; everyone else is folded into it.
	assert.Equal(t, 1, created)
	assert.Equal(t, devices-1, merged)
	assert.Len(t, survivors, 1)
}
