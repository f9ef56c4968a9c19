package cli

import (
	"context"
	"fmt"

	"github.com/openrace/fieldsync/internal/models"
)

func (c *Cli) runRetry(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: fieldsync-device retry <uid> | --failed")
	}

	if args[0] == "--failed" {
		entries, err := c.queue.List(ctx)
		if err != nil {
			return err
		}

		requeued := 0
		for _, entry := range entries {
			if entry.Status != models.StatusFailed && entry.Status != models.StatusConflict {
				continue
			}
			if err := c.queue.Requeue(ctx, entry.UID); err != nil {
				return err
			}
			requeued++
		}

		c.io.Printf("Requeued %d entries.\n", requeued)
		return nil
	}

	if err := c.queue.Requeue(ctx, args[0]); err != nil {
		return err
	}

	c.io.Printf("Requeued %s.\n", args[0])
	return nil
}
