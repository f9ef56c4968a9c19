package storage

import "errors"

// Common storage errors
var (
	// ErrDeviceNotFound indicates that the device is not registered
	ErrDeviceNotFound = errors.New("device not found")

	// ErrDeviceExists indicates that a device with this name already exists
	ErrDeviceExists = errors.New("device already exists")

	// ErrEntityNotFound indicates that no entity with the given UID exists
	ErrEntityNotFound = errors.New("entity not found")

	// ErrFingerprintTaken indicates that a live case with the same
	// fingerprint already exists (partial unique index violation)
	ErrFingerprintTaken = errors.New("fingerprint already taken by a live case")

	// ErrConflictNotFound indicates that no conflict with the given id exists
	ErrConflictNotFound = errors.New("conflict not found")

	// ErrConflictResolved indicates an attempt to re-resolve a terminal conflict
	ErrConflictResolved = errors.New("conflict already resolved")
)
