package models

import (
	"encoding/json"
	"time"
)

// ConflictKind classifies why the deduplication engine refused to decide.
type ConflictKind string

const (
	// ConflictIdentityMismatch same UID, different content.
	ConflictIdentityMismatch ConflictKind = "identity-mismatch"
	// ConflictDecisionMismatch same UID, both sides decided, decisions
	// disagree.
	ConflictDecisionMismatch ConflictKind = "decision-mismatch"
)

// Resolution is the state of a conflict record. Pending is the only
// non-terminal state; there is no transition back to pending.
type Resolution string

const (
	ResolutionPending    Resolution = "pending"
	ResolutionHubWins    Resolution = "hub-wins"
	ResolutionDeviceWins Resolution = "device-wins"
	ResolutionManual     Resolution = "manual"
)

// Valid reports whether r is a resolution an operator may apply.
func (r Resolution) Valid() bool {
	return r == ResolutionHubWins || r == ResolutionDeviceWins || r == ResolutionManual
}

// Conflict is a persisted disagreement between the hub and one device,
// awaiting operator adjudication. Exactly one record exists per distinct
// (entity UID, source device, snapshot pair).
type Conflict struct {
	CreatedAt        time.Time       `json:"created_at"`
	ResolvedAt       *time.Time      `json:"resolved_at,omitempty"`
	EntityType       EntityType      `json:"entity_type"`
	EntityUID        string          `json:"entity_uid"`
	DeviceID         string          `json:"device_id"` // source replica
	Kind             ConflictKind    `json:"kind"`
	HubSnapshot      json.RawMessage `json:"hub_snapshot"`
	IncomingSnapshot json.RawMessage `json:"incoming_snapshot"`
	SnapshotHash     string          `json:"snapshot_hash"` // hash of the snapshot pair, dedup key
	Resolution       Resolution      `json:"resolution"`
	Resolver         string          `json:"resolver,omitempty"`
	ID               int64           `json:"id"`
}

// Resolved reports whether the conflict has reached a terminal resolution.
func (c *Conflict) Resolved() bool {
	return c.Resolution != ResolutionPending
}

// SnapshotHash derives the dedup key for a hub/incoming snapshot pair.
func SnapshotHash(hubSnapshot, incomingSnapshot []byte) string {
	return contentHash(string(hubSnapshot), string(incomingSnapshot))
}
