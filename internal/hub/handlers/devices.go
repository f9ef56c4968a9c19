package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/openrace/fieldsync/internal/hub/storage"
	"github.com/openrace/fieldsync/internal/identity"
	"github.com/openrace/fieldsync/internal/models"
	"github.com/openrace/fieldsync/internal/validation"
	"github.com/openrace/fieldsync/pkg/api"
)

// DeviceHandler handles device registration and login
type DeviceHandler struct {
	logger  *slog.Logger
	storage storage.DeviceStorage
	jwtCfg  JWTConfig
}

// NewDeviceHandler creates a new device handler
func NewDeviceHandler(logger *slog.Logger, storage storage.DeviceStorage, jwtCfg JWTConfig) *DeviceHandler {
	return &DeviceHandler{
		logger:  logger,
		storage: storage,
		jwtCfg:  jwtCfg,
	}
}

// HandleRegister handles POST /api/v1/devices/register
// Registers a new field device; only the bcrypt hash of the key is stored.
func (h *DeviceHandler) HandleRegister(w http.ResponseWriter, r *http.Request) {
	var req api.RegisterDeviceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode register request", "error", err)
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := validation.ValidateDeviceName(req.Name); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := validation.ValidateDeviceKey(req.Key); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	// Cheap name check before the bcrypt work; CreateDevice still catches
	// a concurrent registration of the same name.
	if _, err := h.storage.GetDeviceByName(r.Context(), req.Name); err == nil {
		writeError(w, http.StatusConflict, "device name already registered")
		return
	} else if !errors.Is(err, storage.ErrDeviceNotFound) {
		h.logger.Error("failed to check device name", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	keyHash, err := bcrypt.GenerateFromPassword([]byte(req.Key), bcrypt.DefaultCost)
	if err != nil {
		h.logger.Error("failed to hash device key", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	device := &models.Device{
		ID:           identity.NewUID(),
		Name:         req.Name,
		KeyHash:      string(keyHash),
		RegisteredAt: time.Now(),
	}

	if err := h.storage.CreateDevice(r.Context(), device); err != nil {
		if errors.Is(err, storage.ErrDeviceExists) {
			writeError(w, http.StatusConflict, "device name already registered")
			return
		}
		h.logger.Error("failed to create device", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("device registered", "device_id", device.ID, "name", device.Name)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusCreated)
	if err := json.NewEncoder(w).Encode(api.RegisterDeviceResponse{
		DeviceID: device.ID,
		Message:  "device registered",
	}); err != nil {
		h.logger.Error("failed to encode register response", "error", err)
	}
}

// HandleLogin handles POST /api/v1/devices/login
// Exchanges a device id and key for an access token.
func (h *DeviceHandler) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var req api.LoginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("failed to decode login request", "error", err)
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	device, err := h.storage.GetDevice(r.Context(), req.DeviceID)
	if err != nil {
		if errors.Is(err, storage.ErrDeviceNotFound) {
			writeError(w, http.StatusUnauthorized, "unknown device or bad key")
			return
		}
		h.logger.Error("failed to get device", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	if err := bcrypt.CompareHashAndPassword([]byte(device.KeyHash), []byte(req.Key)); err != nil {
		h.logger.Warn("device login with bad key", "device_id", req.DeviceID)
		writeError(w, http.StatusUnauthorized, "unknown device or bad key")
		return
	}

	token, expiresIn, err := GenerateAccessToken(h.jwtCfg, device.ID, device.Name)
	if err != nil {
		h.logger.Error("failed to generate access token", "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	h.logger.Info("device logged in", "device_id", device.ID, "name", device.Name)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if err := json.NewEncoder(w).Encode(api.TokenResponse{
		AccessToken: token,
		ExpiresIn:   expiresIn,
	}); err != nil {
		h.logger.Error("failed to encode login response", "error", err)
	}
}

// writeError writes a JSON error body with the given status
func writeError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: msg})
}
