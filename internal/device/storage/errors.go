package storage

import "errors"

// Common device storage errors
var (
	// ErrSessionNotFound indicates that no device session exists
	ErrSessionNotFound = errors.New("device session not found")

	// ErrEntryNotFound indicates that a queue entry was not found
	ErrEntryNotFound = errors.New("queue entry not found")

	// ErrRecordNotFound indicates that a local record was not found
	ErrRecordNotFound = errors.New("record not found")

	// ErrStorageClosed indicates that storage is closed
	ErrStorageClosed = errors.New("storage is closed")
)
