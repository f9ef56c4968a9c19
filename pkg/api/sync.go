package api

import "time"

// Record is the wire form of one syncable entity. It is a flat union over
// every entity type; unused fields are omitted. All cross-entity references
// carry replica-independent identifiers, never local numeric ids.
type Record struct {
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	OccurredAt time.Time `json:"occurred_at,omitzero"` // cases
	ObservedAt time.Time `json:"observed_at,omitzero"` // reports
	UID        string    `json:"uid"`
	Type       string    `json:"type"`

	// Reference entities (competition, stage, race, location, athlete, entry).
	ParentUID string `json:"parent_uid,omitempty"`
	Name      string `json:"name,omitempty"`

	// Cases.
	RaceUID     string `json:"race_uid,omitempty"`
	LocationUID string `json:"location_uid,omitempty"`
	Bib         string `json:"bib,omitempty"`
	Description string `json:"description,omitempty"`
	Decision    string `json:"decision,omitempty"`
	DecidedBy   string `json:"decided_by,omitempty"`
	MergedInto  string `json:"merged_into,omitempty"` // set locally once the hub folds the case into a survivor

	// Reports.
	CaseUID    string `json:"case_uid,omitempty"`
	Author     string `json:"author,omitempty"`
	Body       string `json:"body,omitempty"`
}

// UploadRequest carries one batch of records of a single entity type.
// POST /api/v1/sync/{type}.
type UploadRequest struct {
	Records []Record `json:"records"`
}

// RecordResult is the hub's answer for one uploaded record. Results is a
// parallel array: Results[i] answers Records[i].
type RecordResult struct {
	UID          string `json:"uid"`
	Outcome      string `json:"outcome"`                 // created | already-synced | merged | conflict | dependency-missing | malformed
	SurvivingUID string `json:"surviving_uid,omitempty"` // set on merged
	ConflictID   int64  `json:"conflict_id,omitempty"`   // set on conflict
	Error        string `json:"error,omitempty"`         // set on malformed
}

// UploadResponse is the hub's answer to an UploadRequest.
type UploadResponse struct {
	Results []RecordResult `json:"results"`
}
