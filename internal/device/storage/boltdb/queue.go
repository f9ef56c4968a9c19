package boltdb

import (
	"context"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/openrace/fieldsync/internal/device/storage"
	"github.com/openrace/fieldsync/internal/models"
)

// PutEntry stores a queue entry keyed by record UID
func (s *Storage) PutEntry(ctx context.Context, entry *models.QueueEntry) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketQueue)
		if bucket == nil {
			return fmt.Errorf("queue bucket not found")
		}

		data, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("failed to marshal queue entry: %w", err)
		}

		if err := bucket.Put([]byte(entry.UID), data); err != nil {
			return fmt.Errorf("failed to save queue entry: %w", err)
		}

		return nil
	})
}

// GetEntry retrieves a queue entry by record UID
func (s *Storage) GetEntry(ctx context.Context, uid string) (*models.QueueEntry, error) {
	var entry *models.QueueEntry

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketQueue)
		if bucket == nil {
			return fmt.Errorf("queue bucket not found")
		}

		data := bucket.Get([]byte(uid))
		if data == nil {
			return storage.ErrEntryNotFound
		}

		entry = &models.QueueEntry{}
		if err := json.Unmarshal(data, entry); err != nil {
			return fmt.Errorf("failed to unmarshal queue entry: %w", err)
		}

		return nil
	})

	if err != nil {
		return nil, err
	}

	return entry, nil
}

// ListEntries returns all queue entries in unspecified order
func (s *Storage) ListEntries(ctx context.Context) ([]*models.QueueEntry, error) {
	var entries []*models.QueueEntry

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketQueue)
		if bucket == nil {
			return fmt.Errorf("queue bucket not found")
		}

		return bucket.ForEach(func(k, v []byte) error {
			entry := &models.QueueEntry{}
			if err := json.Unmarshal(v, entry); err != nil {
				return fmt.Errorf("failed to unmarshal queue entry %s: %w", k, err)
			}
			entries = append(entries, entry)
			return nil
		})
	})

	if err != nil {
		return nil, err
	}

	return entries, nil
}

// DeleteEntry removes a queue entry by record UID
func (s *Storage) DeleteEntry(ctx context.Context, uid string) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketQueue)
		if bucket == nil {
			return fmt.Errorf("queue bucket not found")
		}

		if bucket.Get([]byte(uid)) == nil {
			return storage.ErrEntryNotFound
		}

		if err := bucket.Delete([]byte(uid)); err != nil {
			return fmt.Errorf("failed to delete queue entry: %w", err)
		}

		return nil
	})
}
