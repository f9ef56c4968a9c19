// Package dedup implements the hub-side three-layer deduplication algorithm
// applied to every incoming record before it is committed:
//
//  1. Identity match: same UID, equivalent content is a safe no-op; same
//     UID, different content is a conflict, never a silent overwrite.
//  2. Fingerprint match (cases only): a live case with the same
//     time-bucketed fingerprint absorbs the incoming one automatically.
//  3. New or irreconcilable: dependency-checked create, or a
//     decision-mismatch conflict.
//
// Replaying the exact same submission any number of times converges to
// exactly one stored entity; that equivalence check is what makes
// at-least-once delivery safe under lost acknowledgments.
package dedup

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/openrace/fieldsync/internal/fingerprint"
	"github.com/openrace/fieldsync/internal/hub/storage"
	"github.com/openrace/fieldsync/internal/identity"
	"github.com/openrace/fieldsync/internal/models"
	"github.com/openrace/fieldsync/internal/validation"
)

// maxMergeChain bounds survivor-chain resolution. Chains longer than two
// would take repeated merges of merges; ten is far beyond anything a real
// event produces.
const maxMergeChain = 10

// Result is the engine's answer for one record.
type Result struct {
	Outcome      models.Outcome
	SurvivingUID string // set when Outcome is merged
	ConflictID   int64  // set when Outcome is conflict
	Err          string // set when Outcome is malformed
}

// Engine applies the three-layer algorithm on top of hub storage.
type Engine struct {
	refs      storage.ReferenceStorage
	cases     storage.CaseStorage
	conflicts storage.ConflictStorage
	logger    *slog.Logger
	fp        fingerprint.Generator
	locks     uidLocks
}

// NewEngine creates a deduplication engine.
func NewEngine(refs storage.ReferenceStorage, cases storage.CaseStorage, conflicts storage.ConflictStorage, fp fingerprint.Generator, logger *slog.Logger) *Engine {
	return &Engine{
		refs:      refs,
		cases:     cases,
		conflicts: conflicts,
		fp:        fp,
		logger:    logger,
	}
}

// malformed builds a terminal rejection; the record must not be retried.
func malformed(format string, args ...any) Result {
	return Result{Outcome: models.OutcomeMalformed, Err: fmt.Sprintf(format, args...)}
}

// ProcessReference runs layers 1 and 3 for a reference-data entity.
// Reference data has no fingerprint layer: it is created exactly once, by
// exactly one replica, so a same-UID resubmission is either a replay or a
// conflict.
func (e *Engine) ProcessReference(ctx context.Context, deviceID string, ent *models.ReferenceEntity) (Result, error) {
	if !identity.Validate(ent.UID) {
		return malformed("invalid uid %q", ent.UID), nil
	}
	if !ent.Type.Valid() || ent.Type.Operational() {
		return malformed("invalid reference type %q", ent.Type), nil
	}
	if err := validation.ValidateName(ent.Name); err != nil {
		return malformed("invalid name: %v", err), nil
	}
	parentType, needsParent := ent.Type.ParentType()
	if needsParent && !identity.Validate(ent.ParentUID) {
		return malformed("invalid parent uid %q", ent.ParentUID), nil
	}
	if !needsParent && ent.ParentUID != "" {
		return malformed("%s cannot have a parent", ent.Type), nil
	}

	defer e.locks.lock(ent.UID).Unlock()

	// Layer 1: identity match.
	existing, err := e.refs.GetReference(ctx, ent.UID)
	if err != nil && !errors.Is(err, storage.ErrEntityNotFound) {
		return Result{}, fmt.Errorf("identity lookup failed: %w", err)
	}
	if existing != nil {
		if existing.ContentHash() == ent.ContentHash() {
			return Result{Outcome: models.OutcomeAlreadySynced}, nil
		}
		return e.raiseConflict(ctx, deviceID, ent.Type, ent.UID, models.ConflictIdentityMismatch, existing, ent)
	}

	// Layer 3: dependency check, then create.
	if needsParent {
		parent, err := e.refs.GetReference(ctx, ent.ParentUID)
		if err != nil {
			if errors.Is(err, storage.ErrEntityNotFound) {
				return Result{Outcome: models.OutcomeDependencyMissing}, nil
			}
			return Result{}, fmt.Errorf("parent lookup failed: %w", err)
		}
		if parent.Type != parentType {
			// Wrong-typed parent will never resolve; reject, don't retry.
			return malformed("parent %s is a %s, expected %s", ent.ParentUID, parent.Type, parentType), nil
		}
	}

	if err := e.refs.SaveReference(ctx, ent); err != nil {
		return Result{}, fmt.Errorf("failed to create reference entity: %w", err)
	}

	e.logger.Debug("reference entity created", "type", ent.Type, "uid", ent.UID, "device_id", deviceID)
	return Result{Outcome: models.OutcomeCreated}, nil
}

// ProcessCase runs all three layers for an incident case.
func (e *Engine) ProcessCase(ctx context.Context, deviceID string, c *models.Case) (Result, error) {
	if !identity.Validate(c.UID) {
		return malformed("invalid uid %q", c.UID), nil
	}
	if !identity.Validate(c.RaceUID) {
		return malformed("invalid race uid %q", c.RaceUID), nil
	}
	if !identity.Validate(c.LocationUID) {
		return malformed("invalid location uid %q", c.LocationUID), nil
	}
	if err := validation.ValidateBib(c.Bib); err != nil {
		return malformed("invalid bib: %v", err), nil
	}
	if c.OccurredAt.IsZero() {
		return malformed("missing occurred_at"), nil
	}
	if !validDecision(c.Decision) {
		return malformed("invalid decision %q", c.Decision), nil
	}

	defer e.locks.lock(c.UID).Unlock()

	// Layer 1: identity match.
	existing, err := e.cases.GetCase(ctx, c.UID)
	if err != nil && !errors.Is(err, storage.ErrEntityNotFound) {
		return Result{}, fmt.Errorf("identity lookup failed: %w", err)
	}
	if existing != nil {
		if existing.MergedInto != "" {
			// Replay of a case already folded away: keep answering with
			// the surviving UID so the device can re-point at it.
			survivor, err := e.resolveSurvivor(ctx, existing.MergedInto)
			if err != nil {
				return Result{}, err
			}
			return Result{Outcome: models.OutcomeMerged, SurvivingUID: survivor}, nil
		}
		if existing.ContentHash() == c.ContentHash() {
			return Result{Outcome: models.OutcomeAlreadySynced}, nil
		}
		kind := models.ConflictIdentityMismatch
		if existing.Decided() && c.Decided() && existing.Decision != c.Decision {
			kind = models.ConflictDecisionMismatch
		}
		return e.raiseConflict(ctx, deviceID, models.TypeCase, c.UID, kind, existing, c)
	}

	// Layer 2: fingerprint match.
	fp := e.fp.Case(c.RaceUID, c.LocationUID, c.Bib, c.OccurredAt)
	survivor, err := e.cases.GetLiveCaseByFingerprint(ctx, fp)
	if err != nil && !errors.Is(err, storage.ErrEntityNotFound) {
		return Result{}, fmt.Errorf("fingerprint lookup failed: %w", err)
	}
	if survivor != nil {
		return e.mergeCase(ctx, deviceID, survivor.UID, c, fp)
	}

	// Layer 3: dependency check, then create.
	if res, ok, err := e.checkCaseDependencies(ctx, c); err != nil || !ok {
		return res, err
	}

	if err := e.cases.CreateCase(ctx, c, fp); err != nil {
		if errors.Is(err, storage.ErrFingerprintTaken) {
			// A concurrent submission from another device won the create
			// race; fold this one into it.
			survivor, err := e.cases.GetLiveCaseByFingerprint(ctx, fp)
			if err != nil {
				return Result{}, fmt.Errorf("post-race fingerprint lookup failed: %w", err)
			}
			return e.mergeCase(ctx, deviceID, survivor.UID, c, fp)
		}
		return Result{}, fmt.Errorf("failed to create case: %w", err)
	}

	e.logger.Debug("case created", "uid", c.UID, "bib", c.Bib, "device_id", deviceID)
	return Result{Outcome: models.OutcomeCreated}, nil
}

// ProcessReport runs layers 1 and 3 for an observation report. Reports are
// append-only children: no fingerprint, no merge; a report whose case was
// merged away is re-parented onto the survivor at arrival.
func (e *Engine) ProcessReport(ctx context.Context, deviceID string, r *models.Report) (Result, error) {
	if !identity.Validate(r.UID) {
		return malformed("invalid uid %q", r.UID), nil
	}
	if !identity.Validate(r.CaseUID) {
		return malformed("invalid case uid %q", r.CaseUID), nil
	}
	if r.ObservedAt.IsZero() {
		return malformed("missing observed_at"), nil
	}

	defer e.locks.lock(r.UID).Unlock()

	// Layer 1: identity match.
	existing, err := e.cases.GetReport(ctx, r.UID)
	if err != nil && !errors.Is(err, storage.ErrEntityNotFound) {
		return Result{}, fmt.Errorf("identity lookup failed: %w", err)
	}
	if existing != nil {
		if existing.ContentHash() == r.ContentHash() {
			return Result{Outcome: models.OutcomeAlreadySynced}, nil
		}
		return e.raiseConflict(ctx, deviceID, models.TypeReport, r.UID, models.ConflictIdentityMismatch, existing, r)
	}

	// Layer 3: dependency check, then create.
	parent, err := e.cases.GetCase(ctx, r.CaseUID)
	if err != nil {
		if errors.Is(err, storage.ErrEntityNotFound) {
			return Result{Outcome: models.OutcomeDependencyMissing}, nil
		}
		return Result{}, fmt.Errorf("case lookup failed: %w", err)
	}
	if parent.MergedInto != "" {
		survivor, err := e.resolveSurvivor(ctx, parent.MergedInto)
		if err != nil {
			return Result{}, err
		}
		r.CaseUID = survivor
	}

	if err := e.cases.CreateReport(ctx, r); err != nil {
		return Result{}, fmt.Errorf("failed to create report: %w", err)
	}

	e.logger.Debug("report created", "uid", r.UID, "case_uid", r.CaseUID, "device_id", deviceID)
	return Result{Outcome: models.OutcomeCreated}, nil
}

// checkCaseDependencies verifies that the referenced race and location have
// synced. Returns ok=false with the result to hand back when they have not.
func (e *Engine) checkCaseDependencies(ctx context.Context, c *models.Case) (Result, bool, error) {
	race, err := e.refs.GetReference(ctx, c.RaceUID)
	if err != nil {
		if errors.Is(err, storage.ErrEntityNotFound) {
			return Result{Outcome: models.OutcomeDependencyMissing}, false, nil
		}
		return Result{}, false, fmt.Errorf("race lookup failed: %w", err)
	}
	if race.Type != models.TypeRace {
		return malformed("race uid %s resolves to a %s", c.RaceUID, race.Type), false, nil
	}

	location, err := e.refs.GetReference(ctx, c.LocationUID)
	if err != nil {
		if errors.Is(err, storage.ErrEntityNotFound) {
			return Result{Outcome: models.OutcomeDependencyMissing}, false, nil
		}
		return Result{}, false, fmt.Errorf("location lookup failed: %w", err)
	}
	if location.Type != models.TypeLocation {
		return malformed("location uid %s resolves to a %s", c.LocationUID, location.Type), false, nil
	}

	return Result{}, true, nil
}

// mergeCase folds the incoming case into the survivor. This path requires no
// operator attention but is auditable through the merge log.
func (e *Engine) mergeCase(ctx context.Context, deviceID, survivorUID string, incoming *models.Case, fp string) (Result, error) {
	moved, err := e.cases.MergeCase(ctx, survivorUID, incoming, fp, deviceID)
	if err != nil {
		return Result{}, fmt.Errorf("failed to merge case: %w", err)
	}

	e.logger.Info("case auto-merged",
		"surviving_uid", survivorUID,
		"merged_uid", incoming.UID,
		"reports_moved", moved,
		"device_id", deviceID)

	return Result{Outcome: models.OutcomeMerged, SurvivingUID: survivorUID}, nil
}

// resolveSurvivor follows merged-into links to the live case.
func (e *Engine) resolveSurvivor(ctx context.Context, uid string) (string, error) {
	for range maxMergeChain {
		c, err := e.cases.GetCase(ctx, uid)
		if err != nil {
			return "", fmt.Errorf("survivor lookup failed: %w", err)
		}
		if c.MergedInto == "" {
			return c.UID, nil
		}
		uid = c.MergedInto
	}
	return "", fmt.Errorf("merge chain longer than %d starting at %s", maxMergeChain, uid)
}

// raiseConflict persists the disagreement (once per snapshot pair) and
// reports it. When the exact same snapshot pair was already adjudicated by
// an operator, the resubmission is acknowledged as already-synced so the
// device's queue entry can finally converge.
func (e *Engine) raiseConflict(ctx context.Context, deviceID string, entityType models.EntityType, entityUID string, kind models.ConflictKind, hubSide, incoming any) (Result, error) {
	hubSnapshot, err := json.Marshal(hubSide)
	if err != nil {
		return Result{}, fmt.Errorf("failed to marshal hub snapshot: %w", err)
	}
	incomingSnapshot, err := json.Marshal(incoming)
	if err != nil {
		return Result{}, fmt.Errorf("failed to marshal incoming snapshot: %w", err)
	}

	conflict, err := e.conflicts.RaiseConflict(ctx, &models.Conflict{
		EntityType:       entityType,
		EntityUID:        entityUID,
		DeviceID:         deviceID,
		Kind:             kind,
		HubSnapshot:      hubSnapshot,
		IncomingSnapshot: incomingSnapshot,
		SnapshotHash:     models.SnapshotHash(hubSnapshot, incomingSnapshot),
		Resolution:       models.ResolutionPending,
		CreatedAt:        time.Now(),
	})
	if err != nil {
		return Result{}, fmt.Errorf("failed to raise conflict: %w", err)
	}

	if conflict.Resolved() {
		return Result{Outcome: models.OutcomeAlreadySynced}, nil
	}

	e.logger.Warn("conflict raised",
		"entity_type", entityType,
		"entity_uid", entityUID,
		"kind", kind,
		"conflict_id", conflict.ID,
		"device_id", deviceID)

	return Result{Outcome: models.OutcomeConflict, ConflictID: conflict.ID}, nil
}

// validDecision reports whether d is one of the recordable decisions.
func validDecision(d string) bool {
	switch d {
	case models.DecisionNone, models.DecisionPenalty, models.DecisionWarning,
		models.DecisionNoAction, models.DecisionDisqualified:
		return true
	}
	return false
}
