package cli

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/openrace/fieldsync/internal/device/storage"
	"github.com/openrace/fieldsync/internal/identity"
	"github.com/openrace/fieldsync/internal/models"
	"github.com/openrace/fieldsync/internal/validation"
	"github.com/openrace/fieldsync/pkg/api"
)

func (c *Cli) runAddCase(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("add-case", flag.ContinueOnError)
	raceUID := fs.String("race", "", "race UID (required)")
	locationUID := fs.String("location", "", "location UID (required)")
	bib := fs.String("bib", "", "participant number (required)")
	desc := fs.String("desc", "", "incident description")
	at := fs.String("at", "", "incident time, RFC 3339 (default: now)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *raceUID == "" || *locationUID == "" {
		return fmt.Errorf("--race and --location are required")
	}
	if err := validation.ValidateBib(*bib); err != nil {
		return err
	}

	occurredAt := time.Now()
	if *at != "" {
		parsed, err := time.Parse(time.RFC3339, *at)
		if err != nil {
			return fmt.Errorf("invalid --at value: %w", err)
		}
		occurredAt = parsed
	}

	// Both references must be present in the local mirror: a case against an
	// unknown race or location would only earn a dependency-missing answer
	// from the hub.
	if err := c.requireReference(ctx, *raceUID, models.TypeRace); err != nil {
		return err
	}
	if err := c.requireReference(ctx, *locationUID, models.TypeLocation); err != nil {
		return err
	}

	now := time.Now()
	record := api.Record{
		UID:         identity.NewUID(),
		Type:        string(models.TypeCase),
		RaceUID:     *raceUID,
		LocationUID: *locationUID,
		Bib:         *bib,
		Description: *desc,
		OccurredAt:  occurredAt,
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	if err := c.records.SaveCase(ctx, record); err != nil {
		return fmt.Errorf("failed to store case: %w", err)
	}
	if err := c.queue.Enqueue(ctx, record); err != nil {
		return fmt.Errorf("failed to enqueue case: %w", err)
	}

	c.io.Printf("Case recorded: %s (bib %s)\n", record.UID, record.Bib)
	return nil
}

func (c *Cli) runAddReport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("add-report", flag.ContinueOnError)
	caseUID := fs.String("case", "", "case UID (required)")
	author := fs.String("author", "", "report author (required)")
	body := fs.String("body", "", "report text (required)")
	at := fs.String("at", "", "observation time, RFC 3339 (default: now)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *caseUID == "" || *author == "" || *body == "" {
		return fmt.Errorf("--case, --author and --body are required")
	}

	observedAt := time.Now()
	if *at != "" {
		parsed, err := time.Parse(time.RFC3339, *at)
		if err != nil {
			return fmt.Errorf("invalid --at value: %w", err)
		}
		observedAt = parsed
	}

	parent, err := c.records.GetCase(ctx, *caseUID)
	if err != nil {
		if err == storage.ErrRecordNotFound {
			return fmt.Errorf("unknown case %s", *caseUID)
		}
		return fmt.Errorf("failed to load case: %w", err)
	}

	// Attach to the surviving case if this one was merged away.
	targetUID := parent.UID
	if parent.MergedInto != "" {
		targetUID = parent.MergedInto
		c.io.Printf("Case was merged; attaching report to %s\n", targetUID)
	}

	now := time.Now()
	record := api.Record{
		UID:        identity.NewUID(),
		Type:       string(models.TypeReport),
		CaseUID:    targetUID,
		Author:     *author,
		Body:       *body,
		ObservedAt: observedAt,
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	if err := c.records.SaveReport(ctx, record); err != nil {
		return fmt.Errorf("failed to store report: %w", err)
	}
	if err := c.queue.Enqueue(ctx, record); err != nil {
		return fmt.Errorf("failed to enqueue report: %w", err)
	}

	c.io.Printf("Report recorded: %s\n", record.UID)
	return nil
}

// requireReference checks the local mirror for a reference entity of the
// expected type.
func (c *Cli) requireReference(ctx context.Context, uid string, want models.EntityType) error {
	record, err := c.records.GetReference(ctx, uid)
	if err != nil {
		if err == storage.ErrRecordNotFound {
			return fmt.Errorf("unknown %s %s; run 'fieldsync-device download' first", want, uid)
		}
		return fmt.Errorf("failed to load %s: %w", want, err)
	}
	if record.Type != string(want) {
		return fmt.Errorf("%s is a %s, not a %s", uid, record.Type, want)
	}
	return nil
}
