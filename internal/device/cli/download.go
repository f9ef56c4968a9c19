package cli

import (
	"context"
	"fmt"

	"github.com/openrace/fieldsync/internal/identity"
)

func (c *Cli) runDownload(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: fieldsync-device download <competition-uid>")
	}
	competitionUID := args[0]
	if !identity.Validate(competitionUID) {
		return fmt.Errorf("invalid competition uid %q", competitionUID)
	}

	if _, err := c.ensureSession(ctx); err != nil {
		return err
	}

	c.io.Println("Downloading reference data...")

	resp, err := c.client.Download(ctx, competitionUID)
	if err != nil {
		return err
	}

	for _, record := range resp.AllRecords() {
		if err := c.records.SaveReference(ctx, record); err != nil {
			return fmt.Errorf("failed to store %s %s: %w", record.Type, record.UID, err)
		}
	}

	c.io.Println()
	c.io.Printf("Competition: %s\n", resp.Competition.Name)
	c.io.Printf("  stages:    %d\n", len(resp.Stages))
	c.io.Printf("  races:     %d\n", len(resp.Races))
	c.io.Printf("  locations: %d\n", len(resp.Locations))
	c.io.Printf("  athletes:  %d\n", len(resp.Athletes))
	c.io.Printf("  entries:   %d\n", len(resp.Entries))

	return nil
}
