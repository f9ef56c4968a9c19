package models

import (
	"strconv"
	"time"
)

// Decision values a case can carry. An empty decision means the case is
// still open.
const (
	DecisionNone         = ""
	DecisionPenalty      = "penalty"
	DecisionWarning      = "warning"
	DecisionNoAction     = "no-action"
	DecisionDisqualified = "disqualified"
)

// Case is the unit of deduplication: one incident observed during a race.
// Two devices may create a case for the same real-world incident
// independently; the hub reconciles them by identity first, then by
// fingerprint.
type Case struct {
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	OccurredAt   time.Time `json:"occurred_at"` // when the incident happened on the water/track
	UID          string    `json:"uid"`
	RaceUID      string    `json:"race_uid"`
	LocationUID  string    `json:"location_uid"`
	Bib          string    `json:"bib"` // participant number, the fingerprint discriminator
	Description  string    `json:"description"`
	Decision     string    `json:"decision"`
	DecidedBy    string    `json:"decided_by"`
	OriginDevice string    `json:"origin_device"`
	MergedInto   string    `json:"merged_into,omitempty"` // UID of the surviving case after an auto-merge
}

// Decided reports whether the case carries a recorded decision.
func (c *Case) Decided() bool {
	return c.Decision != DecisionNone
}

// ContentHash returns the canonical content hash of the case, excluding
// volatile fields. Identical resubmissions hash identically regardless of
// when they were (re)transmitted.
func (c *Case) ContentHash() string {
	return contentHash(
		c.UID,
		c.RaceUID,
		c.LocationUID,
		c.Bib,
		c.Description,
		c.Decision,
		c.DecidedBy,
		strconv.FormatInt(c.OccurredAt.Unix(), 10),
	)
}

// Report is an append-only observation attached to a case. Reports are never
// deduplicated on content; they follow their case and are re-parented when
// their case is merged away.
type Report struct {
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	ObservedAt   time.Time `json:"observed_at"`
	UID          string    `json:"uid"`
	CaseUID      string    `json:"case_uid"`
	Author       string    `json:"author"`
	Body         string    `json:"body"`
	OriginDevice string    `json:"origin_device"`
}

// ContentHash returns the canonical content hash of the report. The case UID
// is excluded: re-parenting after an auto-merge must not turn a replay of the
// original submission into a conflict.
func (r *Report) ContentHash() string {
	return contentHash(
		r.UID,
		r.Author,
		r.Body,
		strconv.FormatInt(r.ObservedAt.Unix(), 10),
	)
}
