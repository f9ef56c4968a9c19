package storage

import (
	"context"
	"time"
)

// SessionStorage defines the interface for persisting the device session.
// The session ties the local database to one registered device identity and
// holds the access token obtained from the hub.
type SessionStorage interface {
	// SaveSession stores the device session, replacing any previous one
	SaveSession(ctx context.Context, session *Session) error

	// GetSession retrieves the stored session.
	// Returns ErrSessionNotFound if the device has never registered.
	GetSession(ctx context.Context) (*Session, error)

	// DeleteSession removes the stored session
	DeleteSession(ctx context.Context) error

	// SaveLastSync records the time of the last successful drain pass
	SaveLastSync(ctx context.Context, t time.Time) error

	// GetLastSync returns the time of the last successful drain pass,
	// or the zero time if the device has never synced.
	GetLastSync(ctx context.Context) (time.Time, error)
}

// Session represents the registered device identity and credentials.
type Session struct {
	DeviceID    string `json:"device_id"`
	DeviceName  string `json:"device_name"`
	ServerURL   string `json:"server_url"`
	AccessToken string `json:"access_token"`
	ExpiresAt   int64  `json:"expires_at"`
}

// TokenValid reports whether the access token exists and has not expired.
func (s *Session) TokenValid(now time.Time) bool {
	return s.AccessToken != "" && now.Unix() < s.ExpiresAt
}
