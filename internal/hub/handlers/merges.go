package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/openrace/fieldsync/internal/hub/storage"
	"github.com/openrace/fieldsync/pkg/api"
)

// MergeLogHandler exposes the auto-merge audit trail so operators can see
// which cases were folded together without their attention.
type MergeLogHandler struct {
	logger  *slog.Logger
	storage storage.MergeLogStorage
}

// NewMergeLogHandler creates a new merge log handler
func NewMergeLogHandler(logger *slog.Logger, storage storage.MergeLogStorage) *MergeLogHandler {
	return &MergeLogHandler{
		logger:  logger,
		storage: storage,
	}
}

// HandleList handles GET /api/v1/merges
func (h *MergeLogHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	events, err := h.storage.ListMerges(r.Context())
	if err != nil {
		h.logger.Error("failed to list merges", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := api.MergeListResponse{Merges: make([]api.MergeRecord, 0, len(events))}
	for _, event := range events {
		resp.Merges = append(resp.Merges, api.MergeRecord{
			ID:           event.ID,
			SurvivingUID: event.SurvivingUID,
			MergedUID:    event.MergedUID,
			DeviceID:     event.DeviceID,
			ReportsMoved: event.ReportsMoved,
			CreatedAt:    event.CreatedAt,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("failed to encode merge list", "error", err)
	}
}
