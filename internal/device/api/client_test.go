package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openrace/fieldsync/pkg/api"
)

func TestClient_UploadSendsBearerToken(t *testing.T) {
	var gotPath, gotAuth, gotContentType string
	var gotReq api.UploadRequest

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		gotContentType = r.Header.Get("Content-Type")
		require.NoError(t, json.NewDecoder(r.Body).Decode(&gotReq))

		resp := api.UploadResponse{Results: []api.RecordResult{
			{UID: "case-1", Outcome: "created"},
		}}
		require.NoError(t, json.NewEncoder(w).Encode(resp))
	}))
	defer server.Close()

	client := NewClient(server.URL)
	client.SetToken("test-token")

	resp, err := client.Upload(context.Background(), "case", api.UploadRequest{
		Records: []api.Record{{UID: "case-1", Type: "case"}},
	})
	require.NoError(t, err)

	assert.Equal(t, "/api/v1/sync/case", gotPath)
	assert.Equal(t, "Bearer test-token", gotAuth)
	assert.Equal(t, "application/json", gotContentType)
	require.Len(t, gotReq.Records, 1)
	assert.Equal(t, "case-1", gotReq.Records[0].UID)
	require.Len(t, resp.Results, 1)
	assert.Equal(t, "created", resp.Results[0].Outcome)
}

func TestClient_RegisterAndLogin(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/devices/register":
			w.WriteHeader(http.StatusCreated)
			_ = json.NewEncoder(w).Encode(api.RegisterDeviceResponse{DeviceID: "device-1", Message: "registered"})
		case "/api/v1/devices/login":
			// Login must not carry a stale token.
			assert.Empty(t, r.Header.Get("Authorization"))
			_ = json.NewEncoder(w).Encode(api.TokenResponse{AccessToken: "jwt", ExpiresIn: 3600})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL)
	ctx := context.Background()

	reg, err := client.Register(ctx, api.RegisterDeviceRequest{Name: "start-tower", Key: "secret-key-123"})
	require.NoError(t, err)
	assert.Equal(t, "device-1", reg.DeviceID)

	token, err := client.Login(ctx, api.LoginRequest{DeviceID: "device-1", Key: "secret-key-123"})
	require.NoError(t, err)
	assert.Equal(t, "jwt", token.AccessToken)
	assert.EqualValues(t, 3600, token.ExpiresIn)
}

func TestClient_DecodesErrorResponse(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_ = json.NewEncoder(w).Encode(api.ErrorResponse{Error: "invalid credentials"})
	}))
	defer server.Close()

	client := NewClient(server.URL)
	_, err := client.Login(context.Background(), api.LoginRequest{DeviceID: "device-1", Key: "wrong"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "invalid credentials")
	assert.Contains(t, err.Error(), "401")
}

func TestClient_HealthAndDownload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/v1/health":
			w.WriteHeader(http.StatusOK)
		case "/api/v1/download/comp-1":
			_ = json.NewEncoder(w).Encode(api.DownloadResponse{
				Competition: api.Record{UID: "comp-1", Type: "competition", Name: "Nationals"},
				Races:       []api.Record{{UID: "race-1", Type: "race"}},
			})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL)
	ctx := context.Background()

	require.NoError(t, client.Health(ctx))

	bundle, err := client.Download(ctx, "comp-1")
	require.NoError(t, err)
	assert.Equal(t, "Nationals", bundle.Competition.Name)
	assert.Len(t, bundle.Races, 1)
}

func TestClient_HealthUnreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {}))
	server.Close()

	client := NewClient(server.URL)
	require.Error(t, client.Health(context.Background()))
}

func TestClient_ConflictEndpoints(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.Method == http.MethodGet && r.URL.Path == "/api/v1/conflicts":
			assert.Equal(t, "pending", r.URL.Query().Get("resolution"))
			_ = json.NewEncoder(w).Encode(api.ConflictListResponse{
				Conflicts: []api.ConflictRecord{{ID: 7, Kind: "decision-mismatch", Resolution: "pending"}},
			})
		case r.Method == http.MethodPost && r.URL.Path == "/api/v1/conflicts/7/resolve":
			var req api.ResolveConflictRequest
			require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
			assert.Equal(t, "hub-wins", req.Resolution)
			_ = json.NewEncoder(w).Encode(api.ResolveConflictResponse{ConflictID: 7, Resolution: "hub-wins"})
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer server.Close()

	client := NewClient(server.URL)
	ctx := context.Background()

	list, err := client.ListConflicts(ctx, "pending")
	require.NoError(t, err)
	require.Len(t, list.Conflicts, 1)
	assert.EqualValues(t, 7, list.Conflicts[0].ID)

	resolved, err := client.ResolveConflict(ctx, 7, api.ResolveConflictRequest{Resolution: "hub-wins", Resolver: "operator"})
	require.NoError(t, err)
	assert.Equal(t, "hub-wins", resolved.Resolution)
}
