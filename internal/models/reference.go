package models

import "time"

// ReferenceEntity represents one reference-data record: a competition, stage,
// race, location, athlete or entry. Reference data is created exactly once,
// by exactly one replica, and copied outward; the hub never merges it.
type ReferenceEntity struct {
	CreatedAt    time.Time  `json:"created_at"`
	UpdatedAt    time.Time  `json:"updated_at"`
	UID          string     `json:"uid"`        // replica-independent identifier
	Type         EntityType `json:"type"`       // one of the reference types
	ParentUID    string     `json:"parent_uid"` // UID of the parent entity, empty for competitions
	Name         string     `json:"name"`
	OriginDevice string     `json:"origin_device"` // device that first created the entity
}

// ContentHash returns the canonical content hash of the entity. Volatile
// fields (timestamps, origin device) are excluded so that a resubmission of
// the same record hashes identically.
func (e *ReferenceEntity) ContentHash() string {
	return contentHash(e.UID, string(e.Type), e.ParentUID, e.Name)
}
