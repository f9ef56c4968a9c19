package models

import (
	"encoding/json"
	"time"
)

// SyncStatus is the lifecycle state of a sync queue entry.
type SyncStatus string

const (
	// StatusPending entry is waiting to be transmitted (or retransmitted
	// after a dependency-missing response).
	StatusPending SyncStatus = "pending"
	// StatusSynced the hub confirmed idempotent acceptance.
	StatusSynced SyncStatus = "synced"
	// StatusConflict the hub reported a disagreement; excluded from
	// automatic retry until an operator resolves it.
	StatusConflict SyncStatus = "conflict"
	// StatusFailed the retry budget is exhausted or the record was
	// rejected as malformed; requires manual intervention.
	StatusFailed SyncStatus = "failed"
)

// QueueEntry is one record in the device-side outbound sync queue. The queue
// is an explicit ordered set keyed by (dependency rank, enqueued-at); draining
// order is a tested contract, not an accident of storage iteration.
type QueueEntry struct {
	EnqueuedAt  time.Time       `json:"enqueued_at"`
	NextAttempt time.Time       `json:"next_attempt"` // earliest time a retry may run
	UpdatedAt   time.Time       `json:"updated_at"`
	UID         string          `json:"uid"`
	Type        EntityType      `json:"type"`
	Status      SyncStatus      `json:"status"`
	LastError   string          `json:"last_error,omitempty"`
	Note        string          `json:"note,omitempty"` // e.g. surviving case UID after a merge
	Payload     json.RawMessage `json:"payload"`        // serialized api.Record
	Attempts    int             `json:"attempts"`
}

// Terminal reports whether the entry has reached a state the orchestrator
// will not change on its own.
func (e *QueueEntry) Terminal() bool {
	return e.Status == StatusSynced || e.Status == StatusConflict || e.Status == StatusFailed
}
