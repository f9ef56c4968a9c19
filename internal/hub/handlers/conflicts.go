package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/openrace/fieldsync/internal/hub/conflict"
	"github.com/openrace/fieldsync/internal/hub/storage"
	"github.com/openrace/fieldsync/internal/models"
	"github.com/openrace/fieldsync/pkg/api"
)

// ConflictHandler exposes the operator queue: list open disagreements and
// apply terminal resolutions.
type ConflictHandler struct {
	logger  *slog.Logger
	service *conflict.Service
}

// NewConflictHandler creates a new conflict handler
func NewConflictHandler(logger *slog.Logger, service *conflict.Service) *ConflictHandler {
	return &ConflictHandler{
		logger:  logger,
		service: service,
	}
}

// HandleList handles GET /api/v1/conflicts?resolution=pending
func (h *ConflictHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	resolution := models.Resolution(r.URL.Query().Get("resolution"))
	if resolution != "" && resolution != models.ResolutionPending && !resolution.Valid() {
		writeError(w, http.StatusBadRequest, "invalid resolution filter")
		return
	}

	conflicts, err := h.service.List(r.Context(), resolution)
	if err != nil {
		h.logger.Error("failed to list conflicts", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	resp := api.ConflictListResponse{Conflicts: make([]api.ConflictRecord, 0, len(conflicts))}
	for _, c := range conflicts {
		resp.Conflicts = append(resp.Conflicts, conflictToAPI(c))
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		h.logger.Error("failed to encode conflict list", "error", err)
	}
}

// HandleResolve handles POST /api/v1/conflicts/{id}/resolve
func (h *ConflictHandler) HandleResolve(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.PathValue("id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid conflict id")
		return
	}

	var req api.ResolveConflictRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode resolve request", "error", err)
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// The wire Record and the stored snapshot share field names, so the
	// operator-edited payload can be passed through as-is.
	var manual json.RawMessage
	if req.Payload != nil {
		manual, err = json.Marshal(req.Payload)
		if err != nil {
			h.logger.Error("failed to marshal manual payload", "error", err)
			writeError(w, http.StatusInternalServerError, "internal server error")
			return
		}
	}

	resolved, err := h.service.Resolve(r.Context(), id, models.Resolution(req.Resolution), req.Resolver, manual)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrConflictNotFound):
			writeError(w, http.StatusNotFound, "conflict not found")
		case errors.Is(err, storage.ErrConflictResolved):
			writeError(w, http.StatusConflict, "conflict already resolved")
		default:
			h.logger.Warn("failed to resolve conflict", "error", err, "conflict_id", id)
			writeError(w, http.StatusBadRequest, err.Error())
		}
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(api.ResolveConflictResponse{
		ConflictID: resolved.ID,
		EntityUID:  resolved.EntityUID,
		Resolution: string(resolved.Resolution),
	}); err != nil {
		h.logger.Error("failed to encode resolve response", "error", err)
	}
}

// conflictToAPI converts a stored conflict to its wire form
func conflictToAPI(c *models.Conflict) api.ConflictRecord {
	return api.ConflictRecord{
		ID:               c.ID,
		EntityType:       string(c.EntityType),
		EntityUID:        c.EntityUID,
		DeviceID:         c.DeviceID,
		Kind:             string(c.Kind),
		HubSnapshot:      c.HubSnapshot,
		IncomingSnapshot: c.IncomingSnapshot,
		Resolution:       string(c.Resolution),
		Resolver:         c.Resolver,
		ResolvedAt:       c.ResolvedAt,
		CreatedAt:        c.CreatedAt,
	}
}
