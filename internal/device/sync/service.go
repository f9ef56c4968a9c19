// Package sync implements the device-side sync orchestrator. A drain pass
// transmits the eligible queue entries to the hub in dependency order, one
// batch per entity type, and folds the hub's per-record outcomes back into
// the queue and the local record mirror.
package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/openrace/fieldsync/internal/device/storage"
	"github.com/openrace/fieldsync/internal/models"
	"github.com/openrace/fieldsync/pkg/api"
)

// DefaultBatchTimeout bounds one upload round trip so a dead link cannot
// hang a drain pass.
const DefaultBatchTimeout = 60 * time.Second

// UploadClient is the part of the hub API the orchestrator needs.
type UploadClient interface {
	Upload(ctx context.Context, entityType string, req api.UploadRequest) (*api.UploadResponse, error)
}

// Queue is the sync queue contract the orchestrator drives.
type Queue interface {
	Drainable(ctx context.Context) ([]*models.QueueEntry, error)
	Mark(ctx context.Context, uid string, result api.RecordResult) error
	MarkTransient(ctx context.Context, uid string, cause error) error
}

// Result summarizes one drain pass.
type Result struct {
	Synced            int // created or already-synced
	Merged            int
	Conflicts         int
	DependencyMissing int
	Rejected          int // malformed
	Transient         int // transport failures, will be retried
}

// Total returns the number of entries the pass attempted to transmit.
func (r *Result) Total() int {
	return r.Synced + r.Merged + r.Conflicts + r.DependencyMissing + r.Rejected + r.Transient
}

// Orchestrator drains the sync queue against the hub.
type Orchestrator struct {
	client       UploadClient
	queue        Queue
	records      storage.RecordStorage
	logger       *slog.Logger
	batchTimeout time.Duration
}

// NewOrchestrator creates a sync orchestrator. records may be nil when no
// local mirror should be updated on merge outcomes.
func NewOrchestrator(client UploadClient, queue Queue, records storage.RecordStorage, logger *slog.Logger) *Orchestrator {
	return &Orchestrator{
		client:       client,
		queue:        queue,
		records:      records,
		logger:       logger,
		batchTimeout: DefaultBatchTimeout,
	}
}

// Drain runs one sync pass: group the eligible entries by entity type, walk
// the types in dependency order and upload one batch per type. Every entry
// is marked individually as soon as its batch answer arrives, so a crash or
// link loss mid-pass loses no progress; the next pass picks up the remaining
// entries. A transport failure aborts the pass, since batches for dependent
// types would only produce dependency-missing answers.
func (o *Orchestrator) Drain(ctx context.Context) (*Result, error) {
	entries, err := o.queue.Drainable(ctx)
	if err != nil {
		return nil, fmt.Errorf("collect drainable entries: %w", err)
	}

	result := &Result{}
	if len(entries) == 0 {
		return result, nil
	}

	groups := make(map[models.EntityType][]*models.QueueEntry)
	for _, entry := range entries {
		groups[entry.Type] = append(groups[entry.Type], entry)
	}

	for _, entityType := range models.SyncOrder {
		batch := groups[entityType]
		if len(batch) == 0 {
			continue
		}

		if err := o.drainBatch(ctx, entityType, batch, result); err != nil {
			return result, err
		}
	}

	o.logger.Info("drain pass complete",
		"synced", result.Synced,
		"merged", result.Merged,
		"conflicts", result.Conflicts,
		"dependency_missing", result.DependencyMissing,
		"rejected", result.Rejected,
	)

	return result, nil
}

func (o *Orchestrator) drainBatch(ctx context.Context, entityType models.EntityType, batch []*models.QueueEntry, result *Result) error {
	req := api.UploadRequest{Records: make([]api.Record, 0, len(batch))}
	for _, entry := range batch {
		var record api.Record
		if err := json.Unmarshal(entry.Payload, &record); err != nil {
			return fmt.Errorf("decode payload of %s: %w", entry.UID, err)
		}
		req.Records = append(req.Records, record)
	}

	reqCtx, cancel := context.WithTimeout(ctx, o.batchTimeout)
	resp, err := o.client.Upload(reqCtx, string(entityType), req)
	cancel()

	if err != nil {
		// The hub may have committed the batch before the answer was lost.
		// Replaying is safe: the hub answers already-synced for records it
		// has seen.
		for _, entry := range batch {
			if markErr := o.queue.MarkTransient(ctx, entry.UID, err); markErr != nil {
				o.logger.Error("failed to record transient failure", "uid", entry.UID, "error", markErr)
			}
		}
		result.Transient += len(batch)
		return fmt.Errorf("upload %s batch: %w", entityType, err)
	}

	if len(resp.Results) != len(req.Records) {
		return fmt.Errorf("upload %s batch: got %d results for %d records", entityType, len(resp.Results), len(req.Records))
	}

	for _, res := range resp.Results {
		if err := o.queue.Mark(ctx, res.UID, res); err != nil {
			return fmt.Errorf("apply outcome for %s: %w", res.UID, err)
		}
		o.applyOutcome(ctx, entityType, res, result)
	}

	return nil
}

func (o *Orchestrator) applyOutcome(ctx context.Context, entityType models.EntityType, res api.RecordResult, result *Result) {
	switch models.Outcome(res.Outcome) {
	case models.OutcomeCreated, models.OutcomeAlreadySynced:
		result.Synced++
	case models.OutcomeMerged:
		result.Merged++
		o.repointMergedCase(ctx, entityType, res)
	case models.OutcomeConflict:
		result.Conflicts++
		o.logger.Warn("hub raised a conflict", "uid", res.UID, "conflict_id", res.ConflictID)
	case models.OutcomeDependencyMissing:
		result.DependencyMissing++
	case models.OutcomeMalformed:
		result.Rejected++
		o.logger.Warn("hub rejected record as malformed", "uid", res.UID, "error", res.Error)
	}
}

// repointMergedCase records the surviving UID on the local case so later
// reports are attached to the case the hub actually kept.
func (o *Orchestrator) repointMergedCase(ctx context.Context, entityType models.EntityType, res api.RecordResult) {
	if o.records == nil || entityType != models.TypeCase || res.SurvivingUID == "" {
		return
	}

	record, err := o.records.GetCase(ctx, res.UID)
	if err != nil {
		o.logger.Error("failed to load merged case", "uid", res.UID, "error", err)
		return
	}

	record.MergedInto = res.SurvivingUID
	if err := o.records.SaveCase(ctx, record); err != nil {
		o.logger.Error("failed to update merged case", "uid", res.UID, "error", err)
		return
	}

	o.logger.Info("local case merged into hub survivor", "uid", res.UID, "surviving_uid", res.SurvivingUID)
}
