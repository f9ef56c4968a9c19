// Package identity stamps syncable entities with replica-independent
// identifiers. Generation is purely local: a disconnected device can keep
// creating entities indefinitely without coordinating with the hub or any
// other replica.
package identity

import "github.com/google/uuid"

// NewUID returns a freshly generated, collision-resistant identifier.
// The identifier is immutable once assigned to an entity and is the only
// admissible cross-replica reference.
func NewUID() string {
	return uuid.NewString()
}

// Validate reports whether s is a well-formed replica-independent
// identifier. Local numeric ids must never appear on the wire; handlers use
// this to reject them early.
func Validate(s string) bool {
	_, err := uuid.Parse(s)
	return err == nil
}
