package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/openrace/fieldsync/internal/hub/storage"
	"github.com/openrace/fieldsync/internal/models"
	"github.com/openrace/fieldsync/pkg/api"
)

// DownloadHandler serves the pre-event reference-data bundle
type DownloadHandler struct {
	logger *slog.Logger
	refs   storage.ReferenceStorage
}

// NewDownloadHandler creates a new download handler
func NewDownloadHandler(logger *slog.Logger, refs storage.ReferenceStorage) *DownloadHandler {
	return &DownloadHandler{
		logger: logger,
		refs:   refs,
	}
}

// HandleDownload handles GET /api/v1/download/{competition_uid}
// Returns the full reference graph for one competition, every slice ordered
// so parents precede children. Devices consume this once before going to
// the field.
func (h *DownloadHandler) HandleDownload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	competitionUID := r.PathValue("competition_uid")

	competition, err := h.refs.GetReference(ctx, competitionUID)
	if err != nil {
		if errors.Is(err, storage.ErrEntityNotFound) {
			writeError(w, http.StatusNotFound, "competition not found")
			return
		}
		h.logger.Error("failed to get competition", "error", err, "uid", competitionUID)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	if competition.Type != models.TypeCompetition {
		writeError(w, http.StatusNotFound, "competition not found")
		return
	}

	resp := api.DownloadResponse{Competition: recordFromReference(competition)}

	stages, err := h.refs.ListReferencesByParent(ctx, models.TypeStage, competitionUID)
	if err != nil {
		h.logger.Error("failed to list stages", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	for _, stage := range stages {
		resp.Stages = append(resp.Stages, recordFromReference(stage))

		races, err := h.refs.ListReferencesByParent(ctx, models.TypeRace, stage.UID)
		if err != nil {
			h.logger.Error("failed to list races", "error", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
		for _, race := range races {
			resp.Races = append(resp.Races, recordFromReference(race))

			entries, err := h.refs.ListReferencesByParent(ctx, models.TypeEntry, race.UID)
			if err != nil {
				h.logger.Error("failed to list entries", "error", err)
				writeError(w, http.StatusInternalServerError, "internal server error")
				return
			}
			for _, entry := range entries {
				resp.Entries = append(resp.Entries, recordFromReference(entry))
			}
		}
	}

	locations, err := h.refs.ListReferencesByParent(ctx, models.TypeLocation, competitionUID)
	if err != nil {
		h.logger.Error("failed to list locations", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	for _, location := range locations {
		resp.Locations = append(resp.Locations, recordFromReference(location))
	}

	athletes, err := h.refs.ListReferencesByParent(ctx, models.TypeAthlete, competitionUID)
	if err != nil {
		h.logger.Error("failed to list athletes", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	for _, athlete := range athletes {
		resp.Athletes = append(resp.Athletes, recordFromReference(athlete))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("failed to encode download response", "error", err)
	}

	h.logger.Info("reference bundle served",
		"competition_uid", competitionUID,
		"stages", len(resp.Stages),
		"races", len(resp.Races),
		"locations", len(resp.Locations),
		"athletes", len(resp.Athletes),
		"entries", len(resp.Entries))
}
