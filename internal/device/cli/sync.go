package cli

import (
	"context"
	"fmt"
	"time"
)

func (c *Cli) runSync(ctx context.Context) error {
	if _, err := c.ensureSession(ctx); err != nil {
		return err
	}

	c.io.Println("Syncing with hub...")

	result, err := c.orchestrator.Drain(ctx)
	if err != nil {
		return fmt.Errorf("sync pass aborted: %w", err)
	}

	if err := c.sessions.SaveLastSync(ctx, time.Now()); err != nil {
		return fmt.Errorf("failed to record sync time: %w", err)
	}

	if result.Total() == 0 {
		c.io.Println("Nothing to sync.")
		return nil
	}

	c.io.Printf("Synced:             %d\n", result.Synced)
	if result.Merged > 0 {
		c.io.Printf("Merged:             %d\n", result.Merged)
	}
	if result.Conflicts > 0 {
		c.io.Printf("Conflicts:          %d (see 'fieldsync-device conflicts')\n", result.Conflicts)
	}
	if result.DependencyMissing > 0 {
		c.io.Printf("Dependency missing: %d (retried next pass)\n", result.DependencyMissing)
	}
	if result.Rejected > 0 {
		c.io.Printf("Rejected:           %d (see 'fieldsync-device status')\n", result.Rejected)
	}

	return nil
}

func (c *Cli) runWatch(ctx context.Context) error {
	if _, err := c.ensureSession(ctx); err != nil {
		return err
	}

	c.io.Println("Watching for hub connectivity. Press Ctrl+C to stop.")

	if err := c.scheduler.Run(ctx); err != nil && err != context.Canceled {
		return err
	}

	c.io.Println("Stopped.")
	return nil
}
