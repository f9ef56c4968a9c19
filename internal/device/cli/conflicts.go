package cli

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strconv"

	"github.com/openrace/fieldsync/internal/device/storage"
	"github.com/openrace/fieldsync/internal/models"
	"github.com/openrace/fieldsync/pkg/api"
)

func (c *Cli) runConflicts(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("conflicts", flag.ContinueOnError)
	all := fs.Bool("all", false, "include resolved conflicts")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if _, err := c.ensureSession(ctx); err != nil {
		return err
	}

	filter := string(models.ResolutionPending)
	if *all {
		filter = ""
	}

	resp, err := c.client.ListConflicts(ctx, filter)
	if err != nil {
		return err
	}

	if len(resp.Conflicts) == 0 {
		c.io.Println("No conflicts.")
		return nil
	}

	for _, conflict := range resp.Conflicts {
		c.io.Printf("#%d  %s %s  %s  device %s  %s\n",
			conflict.ID,
			conflict.EntityType,
			conflict.EntityUID,
			conflict.Kind,
			conflict.DeviceID,
			conflict.Resolution,
		)
	}

	return nil
}

func (c *Cli) runResolve(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("resolve", flag.ContinueOnError)
	resolution := fs.String("resolution", "", "hub-wins | device-wins | manual (required)")
	resolver := fs.String("by", "", "who resolved the conflict (required)")
	payloadPath := fs.String("payload", "", "path to the operator-edited record JSON (manual only)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if fs.NArg() != 1 {
		return fmt.Errorf("usage: fieldsync-device resolve <id> --resolution <r> --by <name>")
	}
	id, err := strconv.ParseInt(fs.Arg(0), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid conflict id %q", fs.Arg(0))
	}

	if *resolution == "" || *resolver == "" {
		return fmt.Errorf("--resolution and --by are required")
	}

	req := api.ResolveConflictRequest{
		Resolution: *resolution,
		Resolver:   *resolver,
	}

	if *payloadPath != "" {
		data, err := os.ReadFile(*payloadPath)
		if err != nil {
			return fmt.Errorf("failed to read payload file: %w", err)
		}
		var record api.Record
		if err := json.Unmarshal(data, &record); err != nil {
			return fmt.Errorf("invalid payload file: %w", err)
		}
		req.Payload = &record
	}

	if _, err := c.ensureSession(ctx); err != nil {
		return err
	}

	resp, err := c.client.ResolveConflict(ctx, id, req)
	if err != nil {
		return err
	}

	c.io.Printf("Conflict #%d resolved: %s\n", resp.ConflictID, resp.Resolution)

	// A resolved record should converge without further operator action: put
	// our queue entry for it back into rotation. The entry is absent when the
	// conflict came from another device.
	if resp.EntityUID != "" {
		switch err := c.queue.Requeue(ctx, resp.EntityUID); {
		case err == nil:
			c.io.Printf("Requeued %s for the next sync pass.\n", resp.EntityUID)
		case errors.Is(err, storage.ErrEntryNotFound):
		default:
			return err
		}
	}

	return nil
}
