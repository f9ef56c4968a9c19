package models

// Outcome is the hub's per-record answer to an uploaded entity.
type Outcome string

const (
	// OutcomeCreated the record was accepted as a new entity.
	OutcomeCreated Outcome = "created"
	// OutcomeAlreadySynced an equivalent record with the same UID already
	// exists; the submission was a no-op. This is what makes at-least-once
	// delivery safe.
	OutcomeAlreadySynced Outcome = "already-synced"
	// OutcomeMerged the record described an event the hub already knows
	// under a different UID; it was folded into the surviving case.
	OutcomeMerged Outcome = "merged"
	// OutcomeConflict the hub refuses to pick a side; a conflict record
	// was raised for operator review.
	OutcomeConflict Outcome = "conflict"
	// OutcomeDependencyMissing a referenced parent has not synced yet; the
	// record should stay pending and be retried once the parent arrives.
	OutcomeDependencyMissing Outcome = "dependency-missing"
	// OutcomeMalformed the record can never be accepted (missing required
	// fields); it must not be retried.
	OutcomeMalformed Outcome = "malformed"
)
