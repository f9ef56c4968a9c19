package storage

import (
	"context"

	"github.com/openrace/fieldsync/pkg/api"
)

// RecordStorage defines the interface for the local mirror of entity data.
// Reference data arrives via download from the hub; operational data (cases
// and reports) is created on the device and uploaded through the sync queue.
// Records are kept in wire form so download and upload need no conversion.
type RecordStorage interface {
	// SaveReference stores a reference-entity record keyed by UID
	SaveReference(ctx context.Context, record api.Record) error

	// GetReference retrieves a reference-entity record by UID.
	// Returns ErrRecordNotFound if no record exists.
	GetReference(ctx context.Context, uid string) (api.Record, error)

	// ListReferencesByType returns all stored reference records of one type
	ListReferencesByType(ctx context.Context, entityType string) ([]api.Record, error)

	// SaveCase stores a case record keyed by UID
	SaveCase(ctx context.Context, record api.Record) error

	// GetCase retrieves a case record by UID.
	// Returns ErrRecordNotFound if no record exists.
	GetCase(ctx context.Context, uid string) (api.Record, error)

	// ListCases returns all locally stored case records
	ListCases(ctx context.Context) ([]api.Record, error)

	// SaveReport stores a report record keyed by UID
	SaveReport(ctx context.Context, record api.Record) error

	// ListReportsByCase returns all report records attached to a case
	ListReportsByCase(ctx context.Context, caseUID string) ([]api.Record, error)

	// ClearOperational removes cases and reports, keeping reference data and
	// any record whose UID is in keep. Used when preparing the device for
	// the next event without losing unsynced work.
	ClearOperational(ctx context.Context, keep []string) error
}
