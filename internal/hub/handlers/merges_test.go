package handlers

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/openrace/fieldsync/internal/hub/storage/sqlite"
	"github.com/openrace/fieldsync/internal/identity"
	"github.com/openrace/fieldsync/internal/models"
	"github.com/openrace/fieldsync/pkg/api"
)

func TestHandleListMerges(t *testing.T) {
	store, err := sqlite.New(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})

	ctx := context.Background()
	now := time.Now().Truncate(time.Second)
	occurred := time.Date(2025, 6, 14, 10, 32, 10, 0, time.UTC)

	survivor := &models.Case{
		UID: identity.NewUID(), RaceUID: identity.NewUID(), LocationUID: identity.NewUID(),
		Bib: "42", Description: "missed gate", OccurredAt: occurred,
		OriginDevice: "device-1", CreatedAt: now, UpdatedAt: now,
	}
	require.NoError(t, store.CreateCase(ctx, survivor, "fp-1"))

	merged := &models.Case{
		UID: identity.NewUID(), RaceUID: survivor.RaceUID, LocationUID: survivor.LocationUID,
		Bib: "42", Description: "missed gate", OccurredAt: occurred.Add(10 * time.Second),
		OriginDevice: "device-2", CreatedAt: now, UpdatedAt: now,
	}
	_, err = store.MergeCase(ctx, survivor.UID, merged, "fp-1", "device-2")
	require.NoError(t, err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewMergeLogHandler(logger, store)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/merges", handler.HandleList)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/merges", nil)
	rec := httptest.NewRecorder()
	mux.ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp api.MergeListResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	require.Len(t, resp.Merges, 1)
	assert.Equal(t, survivor.UID, resp.Merges[0].SurvivingUID)
	assert.Equal(t, merged.UID, resp.Merges[0].MergedUID)
	assert.Equal(t, "device-2", resp.Merges[0].DeviceID)
	assert.NotZero(t, resp.Merges[0].CreatedAt)
}

func TestHandleListMerges_Empty(t *testing.T) {
	store, err := sqlite.New(context.Background(), ":memory:")
	require.NoError(t, err)
	t.Cleanup(func() {
		require.NoError(t, store.Close())
	})

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	handler := NewMergeLogHandler(logger, store)

	req := httptest.NewRequest(http.MethodGet, "/api/v1/merges", nil)
	rec := httptest.NewRecorder()
	handler.HandleList(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var resp api.MergeListResponse
	require.NoError(t, json.NewDecoder(rec.Body).Decode(&resp))
	assert.Empty(t, resp.Merges)
}
