package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/openrace/fieldsync/internal/hub/storage"
	"github.com/openrace/fieldsync/internal/models"
)

// SaveReference inserts a reference entity. Reference data is created
// exactly once; there is no update path outside conflict resolution.
func (s *Storage) SaveReference(ctx context.Context, entity *models.ReferenceEntity) error {
	query := `
		INSERT INTO ref_entities (
			uid, type, parent_uid, name, content_hash,
			origin_device, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		entity.UID,
		string(entity.Type),
		entity.ParentUID,
		entity.Name,
		entity.ContentHash(),
		entity.OriginDevice,
		entity.CreatedAt.Unix(),
		entity.UpdatedAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to insert reference entity: %w", err)
	}

	return nil
}

// GetReference retrieves a reference entity by UID
// Returns ErrEntityNotFound if no entity with the UID exists
func (s *Storage) GetReference(ctx context.Context, uid string) (*models.ReferenceEntity, error) {
	query := `
		SELECT uid, type, parent_uid, name, origin_device, created_at, updated_at
		FROM ref_entities
		WHERE uid = ?
	`

	entity := &models.ReferenceEntity{}
	var createdAt, updatedAt int64

	err := s.db.QueryRowContext(ctx, query, uid).Scan(
		&entity.UID,
		&entity.Type,
		&entity.ParentUID,
		&entity.Name,
		&entity.OriginDevice,
		&createdAt,
		&updatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrEntityNotFound
		}
		return nil, fmt.Errorf("failed to get reference entity: %w", err)
	}

	entity.CreatedAt = unixToTime(createdAt)
	entity.UpdatedAt = unixToTime(updatedAt)

	return entity, nil
}

// ReplaceReference overwrites every domain field of an existing reference
// entity. Used only by conflict resolution.
func (s *Storage) ReplaceReference(ctx context.Context, entity *models.ReferenceEntity) error {
	query := `
		UPDATE ref_entities
		SET type = ?, parent_uid = ?, name = ?, content_hash = ?, updated_at = ?
		WHERE uid = ?
	`

	result, err := s.db.ExecContext(ctx, query,
		string(entity.Type),
		entity.ParentUID,
		entity.Name,
		entity.ContentHash(),
		entity.UpdatedAt.Unix(),
		entity.UID,
	)
	if err != nil {
		return fmt.Errorf("failed to replace reference entity: %w", err)
	}

	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rows == 0 {
		return storage.ErrEntityNotFound
	}

	return nil
}

// ListReferencesByParent retrieves all reference entities of one type under
// a parent UID, ordered by creation time
func (s *Storage) ListReferencesByParent(ctx context.Context, entityType models.EntityType, parentUID string) ([]*models.ReferenceEntity, error) {
	query := `
		SELECT uid, type, parent_uid, name, origin_device, created_at, updated_at
		FROM ref_entities
		WHERE type = ? AND parent_uid = ?
		ORDER BY created_at ASC, uid ASC
	`

	rows, err := s.db.QueryContext(ctx, query, string(entityType), parentUID)
	if err != nil {
		return nil, fmt.Errorf("failed to query reference entities: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			err = cerr
		}
	}()

	var entities []*models.ReferenceEntity

	for rows.Next() {
		entity := &models.ReferenceEntity{}
		var createdAt, updatedAt int64

		err := rows.Scan(
			&entity.UID,
			&entity.Type,
			&entity.ParentUID,
			&entity.Name,
			&entity.OriginDevice,
			&createdAt,
			&updatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan reference entity: %w", err)
		}

		entity.CreatedAt = unixToTime(createdAt)
		entity.UpdatedAt = unixToTime(updatedAt)

		entities = append(entities, entity)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return entities, nil
}
