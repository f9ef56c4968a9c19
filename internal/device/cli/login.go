package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/openrace/fieldsync/internal/device/storage"
	"github.com/openrace/fieldsync/pkg/api"
)

func (c *Cli) runLogin(ctx context.Context) error {
	session, err := c.sessions.GetSession(ctx)
	if err != nil {
		if err == storage.ErrSessionNotFound {
			return fmt.Errorf("device not registered; run 'fieldsync-device register' first")
		}
		return fmt.Errorf("failed to load session: %w", err)
	}

	key, err := c.io.ReadPassword("Device key: ")
	if err != nil {
		return fmt.Errorf("failed to read device key: %w", err)
	}

	tokenResp, err := c.client.Login(ctx, api.LoginRequest{DeviceID: session.DeviceID, Key: key})
	if err != nil {
		return err
	}

	session.AccessToken = tokenResp.AccessToken
	session.ExpiresAt = time.Now().Unix() + tokenResp.ExpiresIn
	if err := c.sessions.SaveSession(ctx, session); err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	c.io.Println("Login successful.")
	c.io.Printf("Token valid until %s\n", time.Unix(session.ExpiresAt, 0).Format(time.RFC3339))

	return nil
}
