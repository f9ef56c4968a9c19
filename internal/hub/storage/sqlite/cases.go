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

// CreateCase inserts a new case with its fingerprint. Returns
// ErrFingerprintTaken when a live case with the same fingerprint already
// exists: the partial unique index idx_cases_live_fingerprint catches
// concurrent creates of the same event.
func (s *Storage) CreateCase(ctx context.Context, c *models.Case, fingerprint string) error {
	query := `
		INSERT INTO cases (
			uid, race_uid, location_uid, bib, description,
			decision, decided_by, occurred_at, fingerprint, content_hash,
			merged_into, origin_device, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, NULL, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		c.UID,
		c.RaceUID,
		c.LocationUID,
		c.Bib,
		c.Description,
		c.Decision,
		c.DecidedBy,
		c.OccurredAt.Unix(),
		fingerprint,
		c.ContentHash(),
		c.OriginDevice,
		c.CreatedAt.Unix(),
		c.UpdatedAt.Unix(),
	)

	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrFingerprintTaken
		}
		return fmt.Errorf("failed to insert case: %w", err)
	}

	return nil
}

// GetCase retrieves a case by UID, merged or live
// Returns ErrEntityNotFound if no case with the UID exists
func (s *Storage) GetCase(ctx context.Context, uid string) (*models.Case, error) {
	return s.getCase(ctx, "uid = ?", uid)
}

// GetLiveCaseByFingerprint retrieves the live (non-merged) case with the
// given fingerprint. Returns ErrEntityNotFound when there is none.
func (s *Storage) GetLiveCaseByFingerprint(ctx context.Context, fingerprint string) (*models.Case, error) {
	return s.getCase(ctx, "fingerprint = ? AND merged_into IS NULL", fingerprint)
}

func (s *Storage) getCase(ctx context.Context, where string, arg any) (*models.Case, error) {
	query := `
		SELECT uid, race_uid, location_uid, bib, description,
		       decision, decided_by, occurred_at, merged_into,
		       origin_device, created_at, updated_at
		FROM cases
		WHERE ` + where

	c := &models.Case{}
	var occurredAt, createdAt, updatedAt int64
	var mergedInto sql.NullString

	err := s.db.QueryRowContext(ctx, query, arg).Scan(
		&c.UID,
		&c.RaceUID,
		&c.LocationUID,
		&c.Bib,
		&c.Description,
		&c.Decision,
		&c.DecidedBy,
		&occurredAt,
		&mergedInto,
		&c.OriginDevice,
		&createdAt,
		&updatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrEntityNotFound
		}
		return nil, fmt.Errorf("failed to get case: %w", err)
	}

	c.OccurredAt = unixToTime(occurredAt)
	c.CreatedAt = unixToTime(createdAt)
	c.UpdatedAt = unixToTime(updatedAt)
	if mergedInto.Valid {
		c.MergedInto = mergedInto.String
	}

	return c, nil
}

// MergeCase records merged as folded into survivorUID. The merged case is
// kept as a tombstone row pointing at the survivor so that replays of the
// same submission keep answering "merged" with the surviving UID. The whole
// merge is one transaction: a crash leaves either no trace of the incoming
// shell or the merge fully recorded.
func (s *Storage) MergeCase(ctx context.Context, survivorUID string, merged *models.Case, fingerprint, deviceID string) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin merge transaction: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	now := time.Now().Unix()

	// The incoming shell usually does not exist as a row yet; upsert so a
	// previously stored case can be tombstoned the same way.
	_, err = tx.ExecContext(ctx, `
		INSERT INTO cases (
			uid, race_uid, location_uid, bib, description,
			decision, decided_by, occurred_at, fingerprint, content_hash,
			merged_into, origin_device, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (uid) DO UPDATE SET merged_into = excluded.merged_into, updated_at = excluded.updated_at
	`,
		merged.UID,
		merged.RaceUID,
		merged.LocationUID,
		merged.Bib,
		merged.Description,
		merged.Decision,
		merged.DecidedBy,
		merged.OccurredAt.Unix(),
		fingerprint,
		merged.ContentHash(),
		survivorUID,
		merged.OriginDevice,
		merged.CreatedAt.Unix(),
		now,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to tombstone merged case: %w", err)
	}

	moved, err := tx.ExecContext(ctx,
		`UPDATE reports SET case_uid = ?, updated_at = ? WHERE case_uid = ?`,
		survivorUID, now, merged.UID,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to re-parent reports: %w", err)
	}
	reportsMoved, err := moved.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO merge_log (surviving_uid, merged_uid, device_id, reports_moved, created_at)
		 VALUES (?, ?, ?, ?, ?)`,
		survivorUID, merged.UID, deviceID, reportsMoved, now,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to append merge log: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit merge: %w", err)
	}

	return int(reportsMoved), nil
}

// ReplaceCase overwrites every domain field of an existing case and
// refreshes its fingerprint. Used only by conflict resolution.
func (s *Storage) ReplaceCase(ctx context.Context, c *models.Case, fingerprint string) error {
	query := `
		UPDATE cases
		SET race_uid = ?, location_uid = ?, bib = ?, description = ?,
		    decision = ?, decided_by = ?, occurred_at = ?, fingerprint = ?,
		    content_hash = ?, updated_at = ?
		WHERE uid = ?
	`

	result, err := s.db.ExecContext(ctx, query,
		c.RaceUID,
		c.LocationUID,
		c.Bib,
		c.Description,
		c.Decision,
		c.DecidedBy,
		c.OccurredAt.Unix(),
		fingerprint,
		c.ContentHash(),
		c.UpdatedAt.Unix(),
		c.UID,
	)
	if err != nil {
		return fmt.Errorf("failed to replace case: %w", err)
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

// CreateReport inserts a new report under an existing case
func (s *Storage) CreateReport(ctx context.Context, r *models.Report) error {
	query := `
		INSERT INTO reports (
			uid, case_uid, author, body, observed_at,
			content_hash, origin_device, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		r.UID,
		r.CaseUID,
		r.Author,
		r.Body,
		r.ObservedAt.Unix(),
		r.ContentHash(),
		r.OriginDevice,
		r.CreatedAt.Unix(),
		r.UpdatedAt.Unix(),
	)

	if err != nil {
		return fmt.Errorf("failed to insert report: %w", err)
	}

	return nil
}

// GetReport retrieves a report by UID
// Returns ErrEntityNotFound if no report with the UID exists
func (s *Storage) GetReport(ctx context.Context, uid string) (*models.Report, error) {
	query := `
		SELECT uid, case_uid, author, body, observed_at,
		       origin_device, created_at, updated_at
		FROM reports
		WHERE uid = ?
	`

	r := &models.Report{}
	var observedAt, createdAt, updatedAt int64

	err := s.db.QueryRowContext(ctx, query, uid).Scan(
		&r.UID,
		&r.CaseUID,
		&r.Author,
		&r.Body,
		&observedAt,
		&r.OriginDevice,
		&createdAt,
		&updatedAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrEntityNotFound
		}
		return nil, fmt.Errorf("failed to get report: %w", err)
	}

	r.ObservedAt = unixToTime(observedAt)
	r.CreatedAt = unixToTime(createdAt)
	r.UpdatedAt = unixToTime(updatedAt)

	return r, nil
}

// ReplaceReport overwrites every domain field of an existing report.
// Used only by conflict resolution.
func (s *Storage) ReplaceReport(ctx context.Context, r *models.Report) error {
	query := `
		UPDATE reports
		SET case_uid = ?, author = ?, body = ?, observed_at = ?,
		    content_hash = ?, updated_at = ?
		WHERE uid = ?
	`

	result, err := s.db.ExecContext(ctx, query,
		r.CaseUID,
		r.Author,
		r.Body,
		r.ObservedAt.Unix(),
		r.ContentHash(),
		r.UpdatedAt.Unix(),
		r.UID,
	)
	if err != nil {
		return fmt.Errorf("failed to replace report: %w", err)
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

// ListReportsByCase retrieves all reports attached to a case, ordered by
// observation time
func (s *Storage) ListReportsByCase(ctx context.Context, caseUID string) ([]*models.Report, error) {
	query := `
		SELECT uid, case_uid, author, body, observed_at,
		       origin_device, created_at, updated_at
		FROM reports
		WHERE case_uid = ?
		ORDER BY observed_at ASC, uid ASC
	`

	rows, err := s.db.QueryContext(ctx, query, caseUID)
	if err != nil {
		return nil, fmt.Errorf("failed to query reports: %w", err)
	}
	defer func() {
		if cerr := rows.Close(); cerr != nil {
			err = cerr
		}
	}()

	var reports []*models.Report

	for rows.Next() {
		r := &models.Report{}
		var observedAt, createdAt, updatedAt int64

		err := rows.Scan(
			&r.UID,
			&r.CaseUID,
			&r.Author,
			&r.Body,
			&observedAt,
			&r.OriginDevice,
			&createdAt,
			&updatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}

		r.ObservedAt = unixToTime(observedAt)
		r.CreatedAt = unixToTime(createdAt)
		r.UpdatedAt = unixToTime(updatedAt)

		reports = append(reports, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows iteration error: %w", err)
	}

	return reports, nil
}
