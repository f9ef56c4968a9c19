package api

import (
	"encoding/json"
	"time"
)

// ConflictRecord is the wire form of one persisted conflict awaiting (or
// after) operator adjudication. Snapshots are the raw entity JSON of both
// sides so an operator UI can render a field-level diff.
type ConflictRecord struct {
	CreatedAt        time.Time       `json:"created_at"`
	ResolvedAt       *time.Time      `json:"resolved_at,omitempty"`
	EntityType       string          `json:"entity_type"`
	EntityUID        string          `json:"entity_uid"`
	DeviceID         string          `json:"device_id"`
	Kind             string          `json:"kind"`
	HubSnapshot      json.RawMessage `json:"hub_snapshot"`
	IncomingSnapshot json.RawMessage `json:"incoming_snapshot"`
	Resolution       string          `json:"resolution"`
	Resolver         string          `json:"resolver,omitempty"`
	ID               int64           `json:"id"`
}

// ConflictListResponse answers GET /api/v1/conflicts.
type ConflictListResponse struct {
	Conflicts []ConflictRecord `json:"conflicts"`
}

// ResolveConflictRequest applies one terminal resolution to a conflict.
// Payload is required for manual resolutions only: it is the operator-edited
// entity that replaces the hub state.
type ResolveConflictRequest struct {
	Resolution string  `json:"resolution"` // hub-wins | device-wins | manual
	Resolver   string  `json:"resolver"`
	Payload    *Record `json:"payload,omitempty"`
}

// ResolveConflictResponse confirms the applied resolution. EntityUID lets
// the resolving device put its own queue entry for that record back into
// rotation.
type ResolveConflictResponse struct {
	ConflictID int64  `json:"conflict_id"`
	EntityUID  string `json:"entity_uid"`
	Resolution string `json:"resolution"`
}
