package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openrace/fieldsync/internal/hub/storage/sqlite"
	"github.com/openrace/fieldsync/pkg/api"
)

func setupDeviceHandler(t *testing.T) (*DeviceHandler, *sqlite.Storage) {
	t.Helper()

	store, err := sqlite.New(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return NewDeviceHandler(logger, store, testJWTConfig()), store
}

func postJSON(t *testing.T, handler http.HandlerFunc, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	data, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, path, bytes.NewReader(data))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler(rec, req)
	return rec
}

func TestHandleRegister(t *testing.T) {
	handler, store := setupDeviceHandler(t)

	rec := postJSON(t, handler.HandleRegister, "/api/v1/devices/register", api.RegisterDeviceRequest{
		Name: "start-tower",
		Key:  "a-long-device-key",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var resp api.RegisterDeviceResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.NotEmpty(t, resp.DeviceID)

	// Only the hash is stored, never the key itself.
	device, err := store.GetDevice(context.Background(), resp.DeviceID)
	require.NoError(t, err)
	assert.NotEqual(t, "a-long-device-key", device.KeyHash)
	assert.NotEmpty(t, device.KeyHash)
}

func TestHandleRegister_Validation(t *testing.T) {
	handler, _ := setupDeviceHandler(t)

	tests := []struct {
		name string
		req  api.RegisterDeviceRequest
	}{
		{"empty name", api.RegisterDeviceRequest{Name: "", Key: "a-long-device-key"}},
		{"bad name", api.RegisterDeviceRequest{Name: "has spaces!", Key: "a-long-device-key"}},
		{"short key", api.RegisterDeviceRequest{Name: "start-tower", Key: "short"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := postJSON(t, handler.HandleRegister, "/api/v1/devices/register", tt.req)
			assert.Equal(t, http.StatusBadRequest, rec.Code)
		})
	}
}

func TestHandleRegister_DuplicateName(t *testing.T) {
	handler, _ := setupDeviceHandler(t)

	req := api.RegisterDeviceRequest{Name: "start-tower", Key: "a-long-device-key"}
	rec := postJSON(t, handler.HandleRegister, "/api/v1/devices/register", req)
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = postJSON(t, handler.HandleRegister, "/api/v1/devices/register", req)
	assert.Equal(t, http.StatusConflict, rec.Code)
}

func TestHandleLogin(t *testing.T) {
	handler, _ := setupDeviceHandler(t)

	rec := postJSON(t, handler.HandleRegister, "/api/v1/devices/register", api.RegisterDeviceRequest{
		Name: "start-tower",
		Key:  "a-long-device-key",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var regResp api.RegisterDeviceResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&regResp))

	rec = postJSON(t, handler.HandleLogin, "/api/v1/devices/login", api.LoginRequest{
		DeviceID: regResp.DeviceID,
		Key:      "a-long-device-key",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	var tokenResp api.TokenResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&tokenResp))
	require.NotEmpty(t, tokenResp.AccessToken)
	assert.Positive(t, tokenResp.ExpiresIn)

	claims, err := ValidateAccessToken(testJWTConfig(), tokenResp.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, regResp.DeviceID, claims.DeviceID)
	assert.Equal(t, "start-tower", claims.DeviceName)
}

func TestHandleLogin_BadCredentials(t *testing.T) {
	handler, _ := setupDeviceHandler(t)

	rec := postJSON(t, handler.HandleRegister, "/api/v1/devices/register", api.RegisterDeviceRequest{
		Name: "start-tower",
		Key:  "a-long-device-key",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	var regResp api.RegisterDeviceResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&regResp))

	// Wrong key.
	rec = postJSON(t, handler.HandleLogin, "/api/v1/devices/login", api.LoginRequest{
		DeviceID: regResp.DeviceID,
		Key:      "wrong-device-key",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	// Unknown device.
	rec = postJSON(t, handler.HandleLogin, "/api/v1/devices/login", api.LoginRequest{
		DeviceID: "no-such-device",
		Key:      "a-long-device-key",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
