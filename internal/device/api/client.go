// Package api implements the device-side HTTP client for the hub API.
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/openrace/fieldsync/pkg/api"
)

// HubClient is the part of the hub API the device services depend on.
type HubClient interface {
	SetToken(token string)
	Register(ctx context.Context, req api.RegisterDeviceRequest) (*api.RegisterDeviceResponse, error)
	Login(ctx context.Context, req api.LoginRequest) (*api.TokenResponse, error)
	Health(ctx context.Context) error
	Download(ctx context.Context, competitionUID string) (*api.DownloadResponse, error)
	Upload(ctx context.Context, entityType string, req api.UploadRequest) (*api.UploadResponse, error)
	ListConflicts(ctx context.Context, resolution string) (*api.ConflictListResponse, error)
	ResolveConflict(ctx context.Context, id int64, req api.ResolveConflictRequest) (*api.ResolveConflictResponse, error)
}

// Client is the HTTP implementation of HubClient.
type Client struct {
	httpClient *http.Client
	baseURL    string
	token      string
}

var _ HubClient = (*Client)(nil)

// NewClient creates a new hub API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// SetToken sets the bearer token attached to authenticated requests.
func (c *Client) SetToken(token string) {
	c.token = token
}

// Register registers a new field device with the hub
func (c *Client) Register(ctx context.Context, req api.RegisterDeviceRequest) (*api.RegisterDeviceResponse, error) {
	var resp api.RegisterDeviceResponse
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/devices/register", req, &resp); err != nil {
		return nil, fmt.Errorf("register request failed: %w", err)
	}
	return &resp, nil
}

// Login authenticates a registered device and returns an access token
func (c *Client) Login(ctx context.Context, req api.LoginRequest) (*api.TokenResponse, error) {
	var resp api.TokenResponse
	if err := c.doRequest(ctx, http.MethodPost, "/api/v1/devices/login", req, &resp); err != nil {
		return nil, fmt.Errorf("login request failed: %w", err)
	}
	return &resp, nil
}

// Health probes hub reachability. Used by the scheduler before a drain pass.
func (c *Client) Health(ctx context.Context) error {
	if err := c.doRequest(ctx, http.MethodGet, "/api/v1/health", nil, nil); err != nil {
		return fmt.Errorf("health request failed: %w", err)
	}
	return nil
}

// Download fetches the reference dataset for one competition
func (c *Client) Download(ctx context.Context, competitionUID string) (*api.DownloadResponse, error) {
	var resp api.DownloadResponse
	path := "/api/v1/download/" + url.PathEscape(competitionUID)
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("download request failed: %w", err)
	}
	return &resp, nil
}

// Upload submits one batch of records of a single entity type
func (c *Client) Upload(ctx context.Context, entityType string, req api.UploadRequest) (*api.UploadResponse, error) {
	var resp api.UploadResponse
	path := "/api/v1/sync/" + url.PathEscape(entityType)
	if err := c.doRequest(ctx, http.MethodPost, path, req, &resp); err != nil {
		return nil, fmt.Errorf("upload request failed: %w", err)
	}
	return &resp, nil
}

// ListConflicts fetches conflicts, optionally filtered by resolution state
func (c *Client) ListConflicts(ctx context.Context, resolution string) (*api.ConflictListResponse, error) {
	path := "/api/v1/conflicts"
	if resolution != "" {
		path += "?resolution=" + url.QueryEscape(resolution)
	}

	var resp api.ConflictListResponse
	if err := c.doRequest(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, fmt.Errorf("list conflicts request failed: %w", err)
	}
	return &resp, nil
}

// ResolveConflict applies one terminal resolution to a conflict
func (c *Client) ResolveConflict(ctx context.Context, id int64, req api.ResolveConflictRequest) (*api.ResolveConflictResponse, error) {
	var resp api.ResolveConflictResponse
	path := fmt.Sprintf("/api/v1/conflicts/%d/resolve", id)
	if err := c.doRequest(ctx, http.MethodPost, path, req, &resp); err != nil {
		return nil, fmt.Errorf("resolve conflict request failed: %w", err)
	}
	return &resp, nil
}

// doRequest performs one HTTP round trip with JSON encoding on both sides
func (c *Client) doRequest(ctx context.Context, method, path string, body, result interface{}) error {
	reqURL := c.baseURL + path

	var bodyReader io.Reader
	if body != nil {
		jsonData, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to marshal request body: %w", err)
		}
		bodyReader = bytes.NewReader(jsonData)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, bodyReader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp api.ErrorResponse
		if err := json.Unmarshal(respBody, &errResp); err == nil && errResp.Error != "" {
			return fmt.Errorf("server error (%d): %s", resp.StatusCode, errResp.Error)
		}
		return fmt.Errorf("request failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	if result != nil {
		if err := json.Unmarshal(respBody, result); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}

	return nil
}
