package api

// MergeRecord is the wire form of one auto-merge audit entry: which case
// survived, which was folded into it, and how many reports moved.
type MergeRecord struct {
	SurvivingUID string `json:"surviving_uid"`
	MergedUID    string `json:"merged_uid"`
	DeviceID     string `json:"device_id"`
	ReportsMoved int    `json:"reports_moved"`
	CreatedAt    int64  `json:"created_at"`
	ID           int64  `json:"id"`
}

// MergeListResponse answers GET /api/v1/merges, newest first.
type MergeListResponse struct {
	Merges []MergeRecord `json:"merges"`
}
