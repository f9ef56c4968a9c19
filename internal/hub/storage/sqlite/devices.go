package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/openrace/fieldsync/internal/hub/storage"
	"github.com/openrace/fieldsync/internal/models"
)

// CreateDevice registers a new device
// Returns ErrDeviceExists if the name is already taken
func (s *Storage) CreateDevice(ctx context.Context, device *models.Device) error {
	query := `
		INSERT INTO devices (id, name, key_hash, registered_at)
		VALUES (?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		device.ID,
		device.Name,
		device.KeyHash,
		device.RegisteredAt.Unix(),
	)

	if err != nil {
		if isUniqueViolation(err) {
			return storage.ErrDeviceExists
		}
		return fmt.Errorf("failed to insert device: %w", err)
	}

	return nil
}

// GetDevice retrieves a device by id
// Returns ErrDeviceNotFound if the device is not registered
func (s *Storage) GetDevice(ctx context.Context, id string) (*models.Device, error) {
	return s.getDevice(ctx, "id", id)
}

// GetDeviceByName retrieves a device by its unique name
// Returns ErrDeviceNotFound if the device is not registered
func (s *Storage) GetDeviceByName(ctx context.Context, name string) (*models.Device, error) {
	return s.getDevice(ctx, "name", name)
}

func (s *Storage) getDevice(ctx context.Context, column, value string) (*models.Device, error) {
	query := fmt.Sprintf(`
		SELECT id, name, key_hash, registered_at
		FROM devices
		WHERE %s = ?
	`, column)

	device := &models.Device{}
	var registeredAt int64

	err := s.db.QueryRowContext(ctx, query, value).Scan(
		&device.ID,
		&device.Name,
		&device.KeyHash,
		&registeredAt,
	)

	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrDeviceNotFound
		}
		return nil, fmt.Errorf("failed to get device: %w", err)
	}

	device.RegisteredAt = unixToTime(registeredAt)

	return device, nil
}

// isUniqueViolation reports whether err is a sqlite unique constraint
// violation. modernc.org/sqlite does not export a typed error for this, so
// the message is matched.
func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}
