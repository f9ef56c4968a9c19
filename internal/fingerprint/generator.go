// Package fingerprint derives content-based, time-bucketed fingerprints for
// operational-data entities. Two cases describing the same real-world
// incident, captured on different devices a few seconds apart, produce the
// same fingerprint and can be auto-merged without operator attention.
package fingerprint

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// DefaultBucket is the default time-bucket width. Widening the bucket
// increases auto-merge recall at the cost of merging genuinely distinct
// near-simultaneous incidents; it is the single tunable governing that
// trade-off.
const DefaultBucket = 30 * time.Second

// Generator computes case fingerprints with a fixed bucket width.
type Generator struct {
	bucket time.Duration
}

// NewGenerator returns a Generator with the given bucket width. Widths of
// zero or less fall back to DefaultBucket; the bucket math works on whole
// Unix seconds, so sub-second widths are raised to one second.
func NewGenerator(bucket time.Duration) Generator {
	if bucket <= 0 {
		bucket = DefaultBucket
	}
	if bucket < time.Second {
		bucket = time.Second
	}
	return Generator{bucket: bucket}
}

// Bucket returns the configured bucket width.
func (g Generator) Bucket() time.Duration {
	return g.bucket
}

// Case derives the fingerprint for an incident case from its referenced
// race and location, its participant number, and the incident timestamp
// rounded down to the bucket. Timestamps exactly one bucket width apart land
// in adjacent buckets and never match.
func (g Generator) Case(raceUID, locationUID, bib string, occurredAt time.Time) string {
	bucket := occurredAt.Unix() / int64(g.bucket/time.Second)
	sum := sha256.Sum256([]byte(strings.Join([]string{
		raceUID,
		locationUID,
		bib,
		strconv.FormatInt(bucket, 10),
	}, "\x1f")))
	return hex.EncodeToString(sum[:])
}
