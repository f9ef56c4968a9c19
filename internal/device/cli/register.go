package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/openrace/fieldsync/internal/device/storage"
	"github.com/openrace/fieldsync/internal/validation"
	"github.com/openrace/fieldsync/pkg/api"
)

func (c *Cli) runRegister(ctx context.Context) error {
	c.io.Println("=== Device Registration ===")
	c.io.Println()

	name, err := c.io.ReadInput("Device name: ")
	if err != nil {
		return fmt.Errorf("failed to read device name: %w", err)
	}
	if err := validation.ValidateDeviceName(name); err != nil {
		return err
	}

	key, err := c.io.ReadPassword(fmt.Sprintf("Device key (min %d chars): ", validation.MinDeviceKeyLen))
	if err != nil {
		return fmt.Errorf("failed to read device key: %w", err)
	}
	if err := validation.ValidateDeviceKey(key); err != nil {
		return err
	}

	confirm, err := c.io.ReadPassword("Confirm device key: ")
	if err != nil {
		return fmt.Errorf("failed to read confirmation: %w", err)
	}
	if key != confirm {
		return fmt.Errorf("device keys do not match")
	}

	c.io.Println()
	c.io.Println("Registering device...")

	regResp, err := c.client.Register(ctx, api.RegisterDeviceRequest{Name: name, Key: key})
	if err != nil {
		return err
	}

	tokenResp, err := c.client.Login(ctx, api.LoginRequest{DeviceID: regResp.DeviceID, Key: key})
	if err != nil {
		return fmt.Errorf("registered but initial login failed: %w", err)
	}

	session := &storage.Session{
		DeviceID:    regResp.DeviceID,
		DeviceName:  name,
		AccessToken: tokenResp.AccessToken,
		ExpiresAt:   time.Now().Unix() + tokenResp.ExpiresIn,
	}
	if err := c.sessions.SaveSession(ctx, session); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	c.io.Println()
	c.io.Println("Registration successful.")
	c.io.Printf("Device ID: %s\n", regResp.DeviceID)
	c.io.Printf("Device name: %s\n", name)
	c.io.Println()
	c.io.Println("Run 'fieldsync-device download <competition-uid>' to load reference data.")

	return nil
}
