package boltdb

import (
	"context"
	"encoding/json"
	"fmt"

	"go.etcd.io/bbolt"

	"github.com/openrace/fieldsync/internal/device/storage"
	"github.com/openrace/fieldsync/pkg/api"
)

// SaveReference stores a reference-entity record keyed by UID
func (s *Storage) SaveReference(ctx context.Context, record api.Record) error {
	return s.putRecord(bucketRefs, record)
}

// GetReference retrieves a reference-entity record by UID
func (s *Storage) GetReference(ctx context.Context, uid string) (api.Record, error) {
	return s.getRecord(bucketRefs, uid)
}

// ListReferencesByType returns all stored reference records of one type
func (s *Storage) ListReferencesByType(ctx context.Context, entityType string) ([]api.Record, error) {
	return s.listRecords(bucketRefs, func(r api.Record) bool {
		return r.Type == entityType
	})
}

// SaveCase stores a case record keyed by UID
func (s *Storage) SaveCase(ctx context.Context, record api.Record) error {
	return s.putRecord(bucketCases, record)
}

// GetCase retrieves a case record by UID
func (s *Storage) GetCase(ctx context.Context, uid string) (api.Record, error) {
	return s.getRecord(bucketCases, uid)
}

// ListCases returns all locally stored case records
func (s *Storage) ListCases(ctx context.Context) ([]api.Record, error) {
	return s.listRecords(bucketCases, nil)
}

// SaveReport stores a report record keyed by UID
func (s *Storage) SaveReport(ctx context.Context, record api.Record) error {
	return s.putRecord(bucketReports, record)
}

// ListReportsByCase returns all report records attached to a case
func (s *Storage) ListReportsByCase(ctx context.Context, caseUID string) ([]api.Record, error) {
	return s.listRecords(bucketReports, func(r api.Record) bool {
		return r.CaseUID == caseUID
	})
}

// ClearOperational removes cases and reports, keeping reference data and
// the records named in keep
func (s *Storage) ClearOperational(ctx context.Context, keep []string) error {
	keepSet := make(map[string]struct{}, len(keep))
	for _, uid := range keep {
		keepSet[uid] = struct{}{}
	}

	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketCases, bucketReports} {
			bucket := tx.Bucket(name)
			if bucket == nil {
				return fmt.Errorf("%s bucket not found", name)
			}

			cursor := bucket.Cursor()
			for k, _ := cursor.First(); k != nil; k, _ = cursor.Next() {
				if _, ok := keepSet[string(k)]; ok {
					continue
				}
				if err := cursor.Delete(); err != nil {
					return fmt.Errorf("failed to delete record %s: %w", k, err)
				}
			}
		}
		return nil
	})
}

func (s *Storage) putRecord(bucketName []byte, record api.Record) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketName)
		if bucket == nil {
			return fmt.Errorf("%s bucket not found", bucketName)
		}

		data, err := json.Marshal(record)
		if err != nil {
			return fmt.Errorf("failed to marshal record: %w", err)
		}

		if err := bucket.Put([]byte(record.UID), data); err != nil {
			return fmt.Errorf("failed to save record: %w", err)
		}

		return nil
	})
}

func (s *Storage) getRecord(bucketName []byte, uid string) (api.Record, error) {
	var record api.Record

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketName)
		if bucket == nil {
			return fmt.Errorf("%s bucket not found", bucketName)
		}

		data := bucket.Get([]byte(uid))
		if data == nil {
			return storage.ErrRecordNotFound
		}

		if err := json.Unmarshal(data, &record); err != nil {
			return fmt.Errorf("failed to unmarshal record: %w", err)
		}

		return nil
	})

	if err != nil {
		return api.Record{}, err
	}

	return record, nil
}

func (s *Storage) listRecords(bucketName []byte, keep func(api.Record) bool) ([]api.Record, error) {
	var records []api.Record

	err := s.db.View(func(tx *bbolt.Tx) error {
		bucket := tx.Bucket(bucketName)
		if bucket == nil {
			return fmt.Errorf("%s bucket not found", bucketName)
		}

		return bucket.ForEach(func(k, v []byte) error {
			var record api.Record
			if err := json.Unmarshal(v, &record); err != nil {
				return fmt.Errorf("failed to unmarshal record %s: %w", k, err)
			}
			if keep == nil || keep(record) {
				records = append(records, record)
			}
			return nil
		})
	})

	if err != nil {
		return nil, err
	}

	return records, nil
}
