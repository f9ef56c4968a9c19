package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/openrace/fieldsync/internal/hub/dedup"
	"github.com/openrace/fieldsync/internal/models"
	"github.com/openrace/fieldsync/pkg/api"
)

// maxBatchRecords caps one upload request.
const maxBatchRecords = 1000

// Deduplicator is the slice of the dedup engine the sync handler needs.
type Deduplicator interface {
	ProcessReference(ctx context.Context, deviceID string, ent *models.ReferenceEntity) (dedup.Result, error)
	ProcessCase(ctx context.Context, deviceID string, c *models.Case) (dedup.Result, error)
	ProcessReport(ctx context.Context, deviceID string, r *models.Report) (dedup.Result, error)
}

// SyncHandler handles per-type upload batches
type SyncHandler struct {
	logger *slog.Logger
	engine Deduplicator
}

// NewSyncHandler creates a new sync handler
func NewSyncHandler(logger *slog.Logger, engine Deduplicator) *SyncHandler {
	return &SyncHandler{
		logger: logger,
		engine: engine,
	}
}

// HandleUpload handles POST /api/v1/sync/{type}. The response enumerates one
// outcome per record, parallel to the request array; a record is never
// silently dropped. Individual failures do not fail the batch: records
// acknowledged before a crash stay acknowledged, which is what makes a
// mid-batch restart resume instead of re-processing.
func (h *SyncHandler) HandleUpload(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	deviceID, ok := GetDeviceID(ctx)
	if !ok {
		h.logger.Error("device id not found in context")
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	entityType := models.EntityType(r.PathValue("type"))
	if !entityType.Valid() {
		http.Error(w, "unknown entity type", http.StatusNotFound)
		return
	}

	var req api.UploadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode upload request", "error", err)
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Records) > maxBatchRecords {
		http.Error(w, "batch too large", http.StatusRequestEntityTooLarge)
		return
	}

	h.logger.Info("upload batch received",
		"device_id", deviceID,
		"type", entityType,
		"records", len(req.Records))

	results := make([]api.RecordResult, 0, len(req.Records))

	for _, rec := range req.Records {
		var (
			res dedup.Result
			err error
		)

		switch entityType {
		case models.TypeCase:
			res, err = h.engine.ProcessCase(ctx, deviceID, caseFromRecord(rec, deviceID))
		case models.TypeReport:
			res, err = h.engine.ProcessReport(ctx, deviceID, reportFromRecord(rec, deviceID))
		default:
			ent := referenceFromRecord(rec, deviceID)
			ent.Type = entityType // the URL, not the payload, names the batch type
			res, err = h.engine.ProcessReference(ctx, deviceID, ent)
		}

		if err != nil {
			h.logger.Error("failed to process record",
				"error", err,
				"uid", rec.UID,
				"type", entityType,
				"device_id", deviceID)
			http.Error(w, "Internal server error", http.StatusInternalServerError)
			return
		}

		results = append(results, api.RecordResult{
			UID:          rec.UID,
			Outcome:      string(res.Outcome),
			SurvivingUID: res.SurvivingUID,
			ConflictID:   res.ConflictID,
			Error:        res.Err,
		})
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(api.UploadResponse{Results: results}); err != nil {
		h.logger.Error("failed to encode upload response", "error", err)
	}

	h.logger.Info("upload batch processed",
		"device_id", deviceID,
		"type", entityType,
		"records", len(results))
}
