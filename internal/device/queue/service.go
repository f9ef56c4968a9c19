// Package queue implements the device-side durable sync queue. It layers
// ordering, retry bookkeeping and state transitions on top of the raw
// queue storage; the orchestrator drains it and reports per-record outcomes
// back through Mark.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/openrace/fieldsync/internal/device/storage"
	"github.com/openrace/fieldsync/internal/models"
	"github.com/openrace/fieldsync/pkg/api"
)

// DefaultMaxAttempts is the retry budget before an entry is parked as failed.
const DefaultMaxAttempts = 5

// DefaultSchedule is the backoff applied after each transient failure. The
// attempt count indexes into it; past the end the last interval repeats.
var DefaultSchedule = []time.Duration{
	1 * time.Minute,
	5 * time.Minute,
	15 * time.Minute,
	1 * time.Hour,
	6 * time.Hour,
}

// Config tunes the retry behaviour of the queue.
type Config struct {
	MaxAttempts int
	Schedule    []time.Duration
}

// ParseSchedule parses a comma-separated list of durations into a backoff
// schedule, e.g. "1m,5m,15m,1h,6h". An empty string yields nil so callers
// fall back to DefaultSchedule.
func ParseSchedule(s string) ([]time.Duration, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}

	parts := strings.Split(s, ",")
	schedule := make([]time.Duration, 0, len(parts))
	for _, part := range parts {
		d, err := time.ParseDuration(strings.TrimSpace(part))
		if err != nil {
			return nil, fmt.Errorf("invalid schedule interval %q: %w", part, err)
		}
		if d <= 0 {
			return nil, fmt.Errorf("schedule interval %q must be positive", part)
		}
		schedule = append(schedule, d)
	}
	return schedule, nil
}

// Service is the sync queue business layer.
type Service struct {
	now         func() time.Time
	store       storage.QueueStorage
	logger      *slog.Logger
	schedule    []time.Duration
	maxAttempts int
}

// NewService creates a queue service. Zero config fields fall back to the
// defaults.
func NewService(store storage.QueueStorage, logger *slog.Logger, cfg Config) *Service {
	if cfg.MaxAttempts <= 0 {
		cfg.MaxAttempts = DefaultMaxAttempts
	}
	if len(cfg.Schedule) == 0 {
		cfg.Schedule = DefaultSchedule
	}

	return &Service{
		now:         time.Now,
		store:       store,
		logger:      logger,
		schedule:    cfg.Schedule,
		maxAttempts: cfg.MaxAttempts,
	}
}

// Enqueue adds a record to the queue, keyed by its UID. Enqueueing a UID
// that is already queued replaces the payload and resets the entry to a
// fresh pending state, so an edit before sync is transmitted once with the
// latest content.
func (s *Service) Enqueue(ctx context.Context, record api.Record) error {
	entityType := models.EntityType(record.Type)
	if !entityType.Valid() {
		return fmt.Errorf("enqueue %s: unknown entity type %q", record.UID, record.Type)
	}

	payload, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("enqueue %s: marshal payload: %w", record.UID, err)
	}

	now := s.now()
	entry := &models.QueueEntry{
		UID:         record.UID,
		Type:        entityType,
		Status:      models.StatusPending,
		Payload:     payload,
		EnqueuedAt:  now,
		NextAttempt: now,
		UpdatedAt:   now,
	}

	existing, err := s.store.GetEntry(ctx, record.UID)
	switch {
	case err == nil:
		// Keep the original position in the drain order.
		entry.EnqueuedAt = existing.EnqueuedAt
	case errors.Is(err, storage.ErrEntryNotFound):
	default:
		return fmt.Errorf("enqueue %s: %w", record.UID, err)
	}

	if err := s.store.PutEntry(ctx, entry); err != nil {
		return fmt.Errorf("enqueue %s: %w", record.UID, err)
	}

	s.logger.Debug("record enqueued", "uid", record.UID, "type", record.Type)
	return nil
}

// Drainable returns the entries eligible for transmission right now:
// pending entries, plus failed entries whose attempt count is still under
// the budget, whose backoff window has elapsed. The slice is ordered by
// (dependency rank, enqueued-at, uid) so parents always precede children.
func (s *Service) Drainable(ctx context.Context) ([]*models.QueueEntry, error) {
	all, err := s.store.ListEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("list queue entries: %w", err)
	}

	now := s.now()
	var eligible []*models.QueueEntry
	for _, entry := range all {
		retryable := entry.Status == models.StatusPending ||
			(entry.Status == models.StatusFailed && entry.Attempts < s.maxAttempts)
		if retryable && !entry.NextAttempt.After(now) {
			eligible = append(eligible, entry)
		}
	}

	sort.Slice(eligible, func(i, j int) bool {
		ri, rj := eligible[i].Type.Rank(), eligible[j].Type.Rank()
		if ri != rj {
			return ri < rj
		}
		if !eligible[i].EnqueuedAt.Equal(eligible[j].EnqueuedAt) {
			return eligible[i].EnqueuedAt.Before(eligible[j].EnqueuedAt)
		}
		return eligible[i].UID < eligible[j].UID
	})

	return eligible, nil
}

// Mark applies the hub's per-record outcome to a queue entry. Marking a UID
// that is not queued is a programming error and returns ErrEntryNotFound.
func (s *Service) Mark(ctx context.Context, uid string, result api.RecordResult) error {
	entry, err := s.store.GetEntry(ctx, uid)
	if err != nil {
		return fmt.Errorf("mark %s: %w", uid, err)
	}

	now := s.now()
	entry.UpdatedAt = now

	switch models.Outcome(result.Outcome) {
	case models.OutcomeCreated, models.OutcomeAlreadySynced:
		entry.Status = models.StatusSynced
		entry.LastError = ""
	case models.OutcomeMerged:
		entry.Status = models.StatusSynced
		entry.LastError = ""
		entry.Note = result.SurvivingUID
	case models.OutcomeConflict:
		entry.Status = models.StatusConflict
		entry.LastError = ""
		entry.Note = fmt.Sprintf("conflict #%d", result.ConflictID)
	case models.OutcomeDependencyMissing:
		// Not a failure of this record; retried on the next pass without
		// consuming retry budget.
		entry.Status = models.StatusPending
		entry.LastError = "dependency missing"
		entry.NextAttempt = now
	case models.OutcomeMalformed:
		entry.Status = models.StatusFailed
		entry.Attempts = s.maxAttempts
		entry.LastError = result.Error
	default:
		return fmt.Errorf("mark %s: unknown outcome %q", uid, result.Outcome)
	}

	if err := s.store.PutEntry(ctx, entry); err != nil {
		return fmt.Errorf("mark %s: %w", uid, err)
	}

	s.logger.Debug("queue entry marked", "uid", uid, "outcome", result.Outcome, "status", entry.Status)
	return nil
}

// MarkTransient records a transport-level failure for an entry: the attempt
// counter is incremented and the next attempt pushed out along the backoff
// schedule. Once the budget is exhausted the entry stays failed and is no
// longer drainable.
func (s *Service) MarkTransient(ctx context.Context, uid string, cause error) error {
	entry, err := s.store.GetEntry(ctx, uid)
	if err != nil {
		return fmt.Errorf("mark transient %s: %w", uid, err)
	}

	now := s.now()
	entry.Attempts++
	entry.Status = models.StatusFailed
	entry.LastError = cause.Error()
	entry.NextAttempt = now.Add(s.backoff(entry.Attempts))
	entry.UpdatedAt = now

	if err := s.store.PutEntry(ctx, entry); err != nil {
		return fmt.Errorf("mark transient %s: %w", uid, err)
	}

	if entry.Attempts >= s.maxAttempts {
		s.logger.Warn("queue entry exhausted retry budget", "uid", uid, "attempts", entry.Attempts)
	}
	return nil
}

// Requeue puts a conflicted or failed entry back into pending state with a
// fresh retry budget. Used after an operator resolves the underlying problem.
func (s *Service) Requeue(ctx context.Context, uid string) error {
	entry, err := s.store.GetEntry(ctx, uid)
	if err != nil {
		return fmt.Errorf("requeue %s: %w", uid, err)
	}

	if entry.Status == models.StatusSynced {
		return fmt.Errorf("requeue %s: entry already synced", uid)
	}

	now := s.now()
	entry.Status = models.StatusPending
	entry.Attempts = 0
	entry.LastError = ""
	entry.NextAttempt = now
	entry.UpdatedAt = now

	if err := s.store.PutEntry(ctx, entry); err != nil {
		return fmt.Errorf("requeue %s: %w", uid, err)
	}

	s.logger.Info("queue entry requeued", "uid", uid)
	return nil
}

// Get returns one queue entry by record UID.
func (s *Service) Get(ctx context.Context, uid string) (*models.QueueEntry, error) {
	return s.store.GetEntry(ctx, uid)
}

// List returns all queue entries ordered by (rank, enqueued-at, uid).
func (s *Service) List(ctx context.Context) ([]*models.QueueEntry, error) {
	all, err := s.store.ListEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("list queue entries: %w", err)
	}

	sort.Slice(all, func(i, j int) bool {
		ri, rj := all[i].Type.Rank(), all[j].Type.Rank()
		if ri != rj {
			return ri < rj
		}
		if !all[i].EnqueuedAt.Equal(all[j].EnqueuedAt) {
			return all[i].EnqueuedAt.Before(all[j].EnqueuedAt)
		}
		return all[i].UID < all[j].UID
	})

	return all, nil
}

// Stats returns the number of entries per status.
func (s *Service) Stats(ctx context.Context) (map[models.SyncStatus]int, error) {
	all, err := s.store.ListEntries(ctx)
	if err != nil {
		return nil, fmt.Errorf("list queue entries: %w", err)
	}

	stats := make(map[models.SyncStatus]int, 4)
	for _, entry := range all {
		stats[entry.Status]++
	}
	return stats, nil
}

// ClearSynced deletes all entries the hub has confirmed. Conflicted and
// failed entries are kept so the operator can still inspect them.
func (s *Service) ClearSynced(ctx context.Context) (int, error) {
	all, err := s.store.ListEntries(ctx)
	if err != nil {
		return 0, fmt.Errorf("list queue entries: %w", err)
	}

	removed := 0
	for _, entry := range all {
		if entry.Status != models.StatusSynced {
			continue
		}
		if err := s.store.DeleteEntry(ctx, entry.UID); err != nil {
			return removed, fmt.Errorf("delete queue entry %s: %w", entry.UID, err)
		}
		removed++
	}

	return removed, nil
}

func (s *Service) backoff(attempts int) time.Duration {
	idx := attempts - 1
	if idx < 0 {
		idx = 0
	}
	if idx >= len(s.schedule) {
		idx = len(s.schedule) - 1
	}
	return s.schedule[idx]
}
