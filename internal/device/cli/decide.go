package cli

import (
	"context"
	"flag"
	"fmt"
	"time"

	"github.com/openrace/fieldsync/internal/device/storage"
	"github.com/openrace/fieldsync/internal/models"
)

func (c *Cli) runDecide(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("decide", flag.ContinueOnError)
	caseUID := fs.String("case", "", "case UID (required)")
	decision := fs.String("decision", "", "penalty | warning | no-action | disqualified (required)")
	decidedBy := fs.String("by", "", "who made the decision (required)")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if *caseUID == "" || *decidedBy == "" {
		return fmt.Errorf("--case and --by are required")
	}

	switch *decision {
	case models.DecisionPenalty, models.DecisionWarning, models.DecisionNoAction, models.DecisionDisqualified:
	default:
		return fmt.Errorf("invalid decision %q; expected penalty, warning, no-action or disqualified", *decision)
	}

	record, err := c.records.GetCase(ctx, *caseUID)
	if err != nil {
		if err == storage.ErrRecordNotFound {
			return fmt.Errorf("unknown case %s", *caseUID)
		}
		return fmt.Errorf("failed to load case: %w", err)
	}

	if record.MergedInto != "" {
		return fmt.Errorf("case %s was merged into %s; decide on the surviving case", *caseUID, record.MergedInto)
	}

	record.Decision = *decision
	record.DecidedBy = *decidedBy
	record.UpdatedAt = time.Now()

	if err := c.records.SaveCase(ctx, record); err != nil {
		return fmt.Errorf("failed to store case: %w", err)
	}
	// Re-enqueueing replaces the queued payload, so the decision travels with
	// the case even if the original enqueue has not been transmitted yet.
	if err := c.queue.Enqueue(ctx, record); err != nil {
		return fmt.Errorf("failed to enqueue case: %w", err)
	}

	c.io.Printf("Decision recorded on %s: %s (by %s)\n", record.UID, record.Decision, record.DecidedBy)
	return nil
}
