package storage

import (
	"context"

	"github.com/openrace/fieldsync/internal/models"
)

// DeviceStorage defines the hub-side device registry.
type DeviceStorage interface {
	// CreateDevice registers a new device.
	// Returns ErrDeviceExists if the name is already taken.
	CreateDevice(ctx context.Context, device *models.Device) error

	// GetDevice retrieves a device by id.
	// Returns ErrDeviceNotFound if the device is not registered.
	GetDevice(ctx context.Context, id string) (*models.Device, error)

	// GetDeviceByName retrieves a device by its unique name.
	// Returns ErrDeviceNotFound if the device is not registered.
	GetDeviceByName(ctx context.Context, name string) (*models.Device, error)
}

// ReferenceStorage defines persistence for reference-data entities.
type ReferenceStorage interface {
	// SaveReference inserts a reference entity. Reference data is created
	// exactly once; there is no update path outside conflict resolution.
	SaveReference(ctx context.Context, entity *models.ReferenceEntity) error

	// GetReference retrieves a reference entity by UID.
	// Returns ErrEntityNotFound if no entity with the UID exists.
	GetReference(ctx context.Context, uid string) (*models.ReferenceEntity, error)

	// ReplaceReference overwrites every domain field of an existing
	// reference entity. Used only by conflict resolution.
	ReplaceReference(ctx context.Context, entity *models.ReferenceEntity) error

	// ListReferencesByParent retrieves all reference entities of one type
	// under a parent UID, ordered by creation time.
	ListReferencesByParent(ctx context.Context, entityType models.EntityType, parentUID string) ([]*models.ReferenceEntity, error)
}

// CaseStorage defines persistence for operational data: cases and reports.
type CaseStorage interface {
	// CreateCase inserts a new case with its fingerprint. Returns
	// ErrFingerprintTaken when a live (non-merged) case with the same
	// fingerprint already exists; the caller re-resolves and merges.
	CreateCase(ctx context.Context, c *models.Case, fingerprint string) error

	// GetCase retrieves a case by UID, merged or live.
	// Returns ErrEntityNotFound if no case with the UID exists.
	GetCase(ctx context.Context, uid string) (*models.Case, error)

	// GetLiveCaseByFingerprint retrieves the live case with the given
	// fingerprint. Returns ErrEntityNotFound when there is none.
	GetLiveCaseByFingerprint(ctx context.Context, fingerprint string) (*models.Case, error)

	// MergeCase records merged as folded into survivorUID: the merged
	// case is stored (or updated) as a tombstone pointing at the
	// survivor, any reports already attached to it are re-parented, and a
	// merge-log row is appended. Returns the number of reports moved.
	MergeCase(ctx context.Context, survivorUID string, merged *models.Case, fingerprint, deviceID string) (int, error)

	// ReplaceCase overwrites every domain field of an existing case and
	// refreshes its fingerprint. Used only by conflict resolution.
	ReplaceCase(ctx context.Context, c *models.Case, fingerprint string) error

	// CreateReport inserts a new report under an existing case.
	CreateReport(ctx context.Context, r *models.Report) error

	// GetReport retrieves a report by UID.
	// Returns ErrEntityNotFound if no report with the UID exists.
	GetReport(ctx context.Context, uid string) (*models.Report, error)

	// ReplaceReport overwrites every domain field of an existing report.
	// Used only by conflict resolution.
	ReplaceReport(ctx context.Context, r *models.Report) error

	// ListReportsByCase retrieves all reports attached to a case, ordered
	// by observation time.
	ListReportsByCase(ctx context.Context, caseUID string) ([]*models.Report, error)
}

// ConflictStorage defines persistence for the conflict store.
type ConflictStorage interface {
	// RaiseConflict persists a pending conflict exactly once per distinct
	// (entity UID, device, snapshot pair). Re-raising the same
	// disagreement returns the existing record instead of accumulating a
	// duplicate.
	RaiseConflict(ctx context.Context, c *models.Conflict) (*models.Conflict, error)

	// GetConflict retrieves a conflict by id.
	// Returns ErrConflictNotFound if no conflict with the id exists.
	GetConflict(ctx context.Context, id int64) (*models.Conflict, error)

	// FindConflict retrieves the conflict for a specific snapshot pair,
	// regardless of resolution state. Returns ErrConflictNotFound when
	// there is none.
	FindConflict(ctx context.Context, entityUID, deviceID, snapshotHash string) (*models.Conflict, error)

	// ListConflicts retrieves conflicts filtered by resolution state.
	// An empty resolution lists everything.
	ListConflicts(ctx context.Context, resolution models.Resolution) ([]*models.Conflict, error)

	// MarkResolved transitions a pending conflict to a terminal
	// resolution. Returns ErrConflictResolved if it is already terminal.
	MarkResolved(ctx context.Context, id int64, resolution models.Resolution, resolver string) error
}

// MergeLogStorage records auto-merges for auditability.
type MergeLogStorage interface {
	// ListMerges retrieves the merge audit log, newest first.
	ListMerges(ctx context.Context) ([]*MergeEvent, error)
}

// MergeEvent is one row of the auto-merge audit log.
type MergeEvent struct {
	CreatedAt    int64  `json:"created_at"`
	SurvivingUID string `json:"surviving_uid"`
	MergedUID    string `json:"merged_uid"`
	DeviceID     string `json:"device_id"`
	ReportsMoved int    `json:"reports_moved"`
	ID           int64  `json:"id"`
}
