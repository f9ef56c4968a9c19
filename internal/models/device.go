package models

import "time"

// Device is one registered field replica. Every sync request is attributed
// to a device; unregistered devices are rejected before the deduplication
// engine runs.
type Device struct {
	RegisteredAt time.Time `json:"registered_at"`
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	KeyHash      string    `json:"-"` // bcrypt hash of the device key, never serialized
}
