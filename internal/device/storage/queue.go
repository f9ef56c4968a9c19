package storage

import (
	"context"

	"github.com/openrace/fieldsync/internal/models"
)

// QueueStorage defines the interface for the durable sync queue.
// Entries survive process restarts; the queue service layers ordering,
// retry bookkeeping and state transitions on top of this raw store.
type QueueStorage interface {
	// PutEntry stores a queue entry keyed by record UID, replacing any
	// existing entry with the same UID
	PutEntry(ctx context.Context, entry *models.QueueEntry) error

	// GetEntry retrieves a queue entry by record UID.
	// Returns ErrEntryNotFound if no entry exists.
	GetEntry(ctx context.Context, uid string) (*models.QueueEntry, error)

	// ListEntries returns all queue entries in unspecified order
	ListEntries(ctx context.Context) ([]*models.QueueEntry, error)

	// DeleteEntry removes a queue entry.
	// Returns ErrEntryNotFound if no entry exists.
	DeleteEntry(ctx context.Context, uid string) error
}
