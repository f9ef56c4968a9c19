package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/openrace/fieldsync/internal/models"
	"github.com/openrace/fieldsync/pkg/api"
)

// runClear prepares the device for the next event: synced queue entries and
// the local records the hub has confirmed are dropped. Unsynced work stays,
// together with the cases any unsynced report still points at, so a later
// drain or add-report never dangles.
func (c *Cli) runClear(ctx context.Context) error {
	entries, err := c.queue.List(ctx)
	if err != nil {
		return err
	}

	var keep []string
	unsynced := 0
	for _, entry := range entries {
		if entry.Status == models.StatusSynced {
			continue
		}
		unsynced++
		keep = append(keep, entry.UID)

		if entry.Type == models.TypeReport {
			var record api.Record
			if err := json.Unmarshal(entry.Payload, &record); err == nil && record.CaseUID != "" {
				keep = append(keep, record.CaseUID)
			}
		}
	}

	if unsynced > 0 {
		c.io.Printf("Warning: %d queue entries are not synced; they and their local records will be kept.\n", unsynced)
	}

	answer, err := c.io.ReadInput("Remove synced entries and confirmed local cases/reports? [y/N]: ")
	if err != nil {
		return fmt.Errorf("failed to read confirmation: %w", err)
	}
	if !strings.EqualFold(answer, "y") && !strings.EqualFold(answer, "yes") {
		c.io.Println("Aborted.")
		return nil
	}

	removed, err := c.queue.ClearSynced(ctx)
	if err != nil {
		return err
	}

	if err := c.records.ClearOperational(ctx, keep); err != nil {
		return fmt.Errorf("failed to clear operational data: %w", err)
	}

	c.io.Printf("Removed %d synced queue entries and the confirmed local cases and reports.\n", removed)
	return nil
}
