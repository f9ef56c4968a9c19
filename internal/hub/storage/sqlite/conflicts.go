package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/openrace/fieldsync/internal/hub/storage"
	"github.com/openrace/fieldsync/internal/models"
)

// RaiseConflict persists a pending conflict exactly once per distinct
// (entity UID, device, snapshot pair). Re-raising the same disagreement
// returns the existing record instead of accumulating a duplicate.
func (s *Storage) RaiseConflict(ctx context.Context, c *models.Conflict) (*models.Conflict, error) {
	query := `
		INSERT INTO conflicts (
			entity_type, entity_uid, device_id, kind,
			hub_snapshot, incoming_snapshot, snapshot_hash,
			resolution, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	result, err := s.db.ExecContext(ctx, query,
		string(c.EntityType),
		c.EntityUID,
		c.DeviceID,
		string(c.Kind),
		[]byte(c.HubSnapshot),
		[]byte(c.IncomingSnapshot),
		c.SnapshotHash,
		string(models.ResolutionPending),
		c.CreatedAt.Unix(),
	)

	if err != nil {
		if isUniqueViolation(err) {
			// The same disagreement was already raised; hand back the
			// existing record.
			return s.FindConflict(ctx, c.EntityUID, c.DeviceID, c.SnapshotHash)
		}
		return nil, fmt.Errorf("failed to insert conflict: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return nil, fmt.Errorf("failed to get conflict id: %w", err)
	}

	raised := *c
	raised.ID = id
	raised.Resolution = models.ResolutionPending

	return &raised, nil
}

// GetConflict retrieves a conflict by id
// Returns ErrConflictNotFound if no conflict with the id exists
func (s *Storage) GetConflict(ctx context.Context, id int64) (*models.Conflict, error) {
	return s.getConflict(ctx, "id = ?", id)
}

// FindConflict retrieves the conflict for a specific snapshot pair,
// regardless of resolution state
func (s *Storage) FindConflict(ctx context.Context, entityUID, deviceID, snapshotHash string) (*models.Conflict, error) {
	return s.getConflict(ctx, "entity_uid = ? AND device_id = ? AND snapshot_hash = ?", entityUID, deviceID, snapshotHash)
}

func (s *Storage) getConflict(ctx context.Context, where string, args ...any) (*models.Conflict, error) {
	query := `
		SELECT id, entity_type, entity_uid, device_id, kind,
		       hub_snapshot, incoming_snapshot, snapshot_hash,
		       resolution, resolver, resolved_at, created_at
		FROM conflicts
		WHERE ` + where

	c := &models.Conflict{}
	var resolvedAt sql.NullInt64
	var createdAt int64

	err := s.db.QueryRowContext(ctx, query, args...).Scan(
		&c.ID,
		&c.EntityType,
		&c.EntityUID,
		&c.DeviceID,
		&c.Kind,
		(*[]byte)(&c.HubSnapshot),
		(*[]byte)(&c.IncomingSnapshot),
		&c.SnapshotHash,
		&c.Resolution,
		&c.Resolver,
		&resolvedAt,
		&createdAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrConflictNotFound
		}
		return nil, fmt.Errorf("failed to get conflict: %w", err)
	}

	c.CreatedAt = unixToTime(createdAt)
	if resolvedAt.Valid {
		t := unixToTime(resolvedAt.Int64)
		c.ResolvedAt = &t
	}

	return c, nil
}

// ListConflicts retrieves conflicts filtered by resolution state.
// An empty resolution lists everything.
func (s *Storage) ListConflicts(ctx context.Context, resolution models.Resolution) ([]*models.Conflict, error) {
	query := `
		SELECT id, entity_type, entity_uid, device_id, kind,
		       hub_snapshot, incoming_snapshot, snapshot_hash,
		       resolution, resolver, resolved_at, created_at
		FROM conflicts
	`
	var args []any
	if resolution != "" {
		query += ` WHERE resolution = ?`
		args = append(args, string(resolution))
	}
	query += ` ORDER BY created_at ASC, id ASC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query conflicts: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			err = cerr
		}
	}()

	var conflicts []*models.Conflict

	for rows.Next() {
		c := &models.Conflict{}
		var resolvedAt sql.NullInt64
		var createdAt int64

		err := rows.Scan(
			&c.ID,
			&c.EntityType,
			&c.EntityUID,
			&c.DeviceID,
			&c.Kind,
			(*[]byte)(&c.HubSnapshot),
			(*[]byte)(&c.IncomingSnapshot),
			&c.SnapshotHash,
			&c.Resolution,
			&c.Resolver,
			&resolvedAt,
			&createdAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan conflict: %w", err)
		}

		c.CreatedAt = unixToTime(createdAt)
		if resolvedAt.Valid {
			t := unixToTime(resolvedAt.Int64)
			c.ResolvedAt = &t
		}

		conflicts = append(conflicts, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return conflicts, nil
}

// MarkResolved transitions a pending conflict to a terminal resolution.
// Returns ErrConflictResolved if it is already terminal, ErrConflictNotFound
// if the conflict does not exist.
func (s *Storage) MarkResolved(ctx context.Context, id int64, resolution models.Resolution, resolver string) error {
	query := `
		UPDATE conflicts
		SET resolution = ?, resolver = ?, resolved_at = ?
		WHERE id = ? AND resolution = ?
	`

	result, err := s.db.ExecContext(ctx, query,
		string(resolution),
		resolver,
		time.Now().Unix(),
		id,
		string(models.ResolutionPending),
	)
	if err != nil {
		return fmt.Errorf("failed to resolve conflict: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		// Either the conflict does not exist or it is already terminal.
		if _, gerr := s.GetConflict(ctx, id); gerr != nil {
			return gerr
		}
		return storage.ErrConflictResolved
	}

	return nil
}

// ListMerges retrieves the auto-merge audit log, newest first
func (s *Storage) ListMerges(ctx context.Context) ([]*storage.MergeEvent, error) {
	query := `
		SELECT id, surviving_uid, merged_uid, device_id, reports_moved, created_at
		FROM merge_log
		ORDER BY created_at DESC, id DESC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query merge log: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			err = cerr
		}
	}()

	var events []*storage.MergeEvent

	for rows.Next() {
		e := &storage.MergeEvent{}
		if err := rows.Scan(&e.ID, &e.SurvivingUID, &e.MergedUID, &e.DeviceID, &e.ReportsMoved, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan merge event: %w", err)
		}
		events = append(events, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return events, nil
}
