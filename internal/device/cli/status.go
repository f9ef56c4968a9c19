package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/openrace/fieldsync/internal/device/storage"
	"github.com/openrace/fieldsync/internal/models"
)

func (c *Cli) runStatus(ctx context.Context) error {
	session, err := c.sessions.GetSession(ctx)
	switch err {
	case nil:
		c.io.Printf("Device:   %s (%s)\n", session.DeviceName, session.DeviceID)
		if session.TokenValid(time.Now()) {
			c.io.Printf("Token:    valid until %s\n", time.Unix(session.ExpiresAt, 0).Format(time.RFC3339))
		} else {
			c.io.Println("Token:    expired; run 'fieldsync-device login'")
		}
	case storage.ErrSessionNotFound:
		c.io.Println("Device:   not registered")
	default:
		return fmt.Errorf("failed to load session: %w", err)
	}

	lastSync, err := c.sessions.GetLastSync(ctx)
	if err != nil {
		return fmt.Errorf("failed to load last sync time: %w", err)
	}
	if lastSync.IsZero() {
		c.io.Println("Last sync: never")
	} else {
		c.io.Printf("Last sync: %s\n", lastSync.Format(time.RFC3339))
	}

	stats, err := c.queue.Stats(ctx)
	if err != nil {
		return err
	}

	c.io.Println()
	c.io.Println("Sync queue:")
	c.io.Printf("  pending:  %d\n", stats[models.StatusPending])
	c.io.Printf("  synced:   %d\n", stats[models.StatusSynced])
	c.io.Printf("  conflict: %d\n", stats[models.StatusConflict])
	c.io.Printf("  failed:   %d\n", stats[models.StatusFailed])

	entries, err := c.queue.List(ctx)
	if err != nil {
		return err
	}

	shown := false
	for _, entry := range entries {
		if entry.Status == models.StatusSynced {
			continue
		}
		if !shown {
			c.io.Println()
			c.io.Println("Unsynced entries:")
			shown = true
		}
		line := fmt.Sprintf("  %-11s %s  %s", entry.Type, entry.UID, entry.Status)
		if entry.Attempts > 0 {
			line += fmt.Sprintf(" (attempts: %d)", entry.Attempts)
		}
		if entry.LastError != "" {
			line += " " + entry.LastError
		}
		if entry.Note != "" {
			line += " " + entry.Note
		}
		c.io.Println(line)
	}

	return nil
}
