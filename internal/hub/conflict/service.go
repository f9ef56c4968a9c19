// Package conflict implements the operator-facing resolution workflow over
// the conflict store. The engine raises; only an explicit resolution action
// closes. A conflict resolves exactly once: pending is the only non-terminal
// state and there is no way back to it.
package conflict

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/openrace/fieldsync/internal/hub/storage"
	"github.com/openrace/fieldsync/internal/models"
)

// Service applies operator resolutions to persisted conflicts.
type Service struct {
	conflicts storage.ConflictStorage
	refs      storage.ReferenceStorage
	cases     storage.CaseStorage
	logger    *slog.Logger
	fp        caseFingerprinter
}

// caseFingerprinter recomputes a case fingerprint after its fields change.
type caseFingerprinter interface {
	Case(raceUID, locationUID, bib string, occurredAt time.Time) string
}

// NewService creates a conflict resolution service.
func NewService(conflicts storage.ConflictStorage, refs storage.ReferenceStorage, cases storage.CaseStorage, fp caseFingerprinter, logger *slog.Logger) *Service {
	return &Service{
		conflicts: conflicts,
		refs:      refs,
		cases:     cases,
		fp:        fp,
		logger:    logger,
	}
}

// List returns conflicts filtered by resolution state; empty lists all.
func (s *Service) List(ctx context.Context, resolution models.Resolution) ([]*models.Conflict, error) {
	return s.conflicts.ListConflicts(ctx, resolution)
}

// Get returns one conflict by id.
func (s *Service) Get(ctx context.Context, id int64) (*models.Conflict, error) {
	return s.conflicts.GetConflict(ctx, id)
}

// Resolve applies exactly one terminal resolution:
//
//   - hub-wins: the hub's state stands, nothing is written;
//   - device-wins: the incoming snapshot replaces the hub state;
//   - manual: the operator-edited payload replaces the hub state.
//
// Once the resolution is recorded, a resubmission of the adjudicated
// snapshot pair is acknowledged as already-synced by the dedup engine, which
// lets the originating queue entry reach synced on its next pass.
func (s *Service) Resolve(ctx context.Context, id int64, resolution models.Resolution, resolver string, manual json.RawMessage) (*models.Conflict, error) {
	if !resolution.Valid() {
		return nil, fmt.Errorf("invalid resolution %q", resolution)
	}
	if resolver == "" {
		return nil, fmt.Errorf("resolver is required")
	}

	c, err := s.conflicts.GetConflict(ctx, id)
	if err != nil {
		return nil, err
	}
	if c.Resolved() {
		return nil, storage.ErrConflictResolved
	}

	var replacement json.RawMessage
	switch resolution {
	case models.ResolutionHubWins:
		// Keep the hub's existing state; no write.
	case models.ResolutionDeviceWins:
		replacement = c.IncomingSnapshot
	case models.ResolutionManual:
		if len(manual) == 0 {
			return nil, fmt.Errorf("manual resolution requires a payload")
		}
		replacement = manual
	}

	if replacement != nil {
		if err := s.applySnapshot(ctx, c, replacement); err != nil {
			return nil, fmt.Errorf("failed to apply resolution: %w", err)
		}
	}

	if err := s.conflicts.MarkResolved(ctx, id, resolution, resolver); err != nil {
		return nil, err
	}

	s.logger.Info("conflict resolved",
		"conflict_id", id,
		"entity_type", c.EntityType,
		"entity_uid", c.EntityUID,
		"resolution", resolution,
		"resolver", resolver)

	return s.conflicts.GetConflict(ctx, id)
}

// applySnapshot overwrites the conflicted entity with the winning snapshot,
// stamped with the resolution time.
func (s *Service) applySnapshot(ctx context.Context, c *models.Conflict, snapshot json.RawMessage) error {
	now := time.Now()

	switch c.EntityType {
	case models.TypeCase:
		var winner models.Case
		if err := json.Unmarshal(snapshot, &winner); err != nil {
			return fmt.Errorf("failed to unmarshal case snapshot: %w", err)
		}
		if winner.UID != c.EntityUID {
			return fmt.Errorf("snapshot uid %q does not match conflict entity %q", winner.UID, c.EntityUID)
		}
		winner.UpdatedAt = now
		fp := s.fp.Case(winner.RaceUID, winner.LocationUID, winner.Bib, winner.OccurredAt)
		return s.cases.ReplaceCase(ctx, &winner, fp)

	case models.TypeReport:
		var winner models.Report
		if err := json.Unmarshal(snapshot, &winner); err != nil {
			return fmt.Errorf("failed to unmarshal report snapshot: %w", err)
		}
		if winner.UID != c.EntityUID {
			return fmt.Errorf("snapshot uid %q does not match conflict entity %q", winner.UID, c.EntityUID)
		}
		winner.UpdatedAt = now
		return s.cases.ReplaceReport(ctx, &winner)

	default:
		var winner models.ReferenceEntity
		if err := json.Unmarshal(snapshot, &winner); err != nil {
			return fmt.Errorf("failed to unmarshal reference snapshot: %w", err)
		}
		if winner.UID != c.EntityUID {
			return fmt.Errorf("snapshot uid %q does not match conflict entity %q", winner.UID, c.EntityUID)
		}
		if !winner.Type.Valid() || winner.Type.Operational() {
			return fmt.Errorf("snapshot has invalid reference type %q", winner.Type)
		}
		winner.UpdatedAt = now
		return s.refs.ReplaceReference(ctx, &winner)
	}
}
