// Package cli implements the field-device command line interface.
package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/openrace/fieldsync/internal/device/api"
	"github.com/openrace/fieldsync/internal/device/iocli"
	"github.com/openrace/fieldsync/internal/device/queue"
	"github.com/openrace/fieldsync/internal/device/scheduler"
	"github.com/openrace/fieldsync/internal/device/storage"
	devsync "github.com/openrace/fieldsync/internal/device/sync"
)

type Cli struct {
	client       api.HubClient
	sessions     storage.SessionStorage
	records      storage.RecordStorage
	queue        *queue.Service
	orchestrator *devsync.Orchestrator
	scheduler    *scheduler.Scheduler
	io           iocli.IO
}

func New(
	client api.HubClient,
	sessions storage.SessionStorage,
	records storage.RecordStorage,
	queueSvc *queue.Service,
	orchestrator *devsync.Orchestrator,
	sched *scheduler.Scheduler,
	io iocli.IO,
) *Cli {
	return &Cli{
		client:       client,
		sessions:     sessions,
		records:      records,
		queue:        queueSvc,
		orchestrator: orchestrator,
		scheduler:    sched,
		io:           io,
	}
}

// Run dispatches one CLI command.
func (c *Cli) Run(ctx context.Context, command string, args []string) error {
	switch command {
	case "register":
		return c.runRegister(ctx)
	case "login":
		return c.runLogin(ctx)
	case "download":
		return c.runDownload(ctx, args)
	case "add-case":
		return c.runAddCase(ctx, args)
	case "add-report":
		return c.runAddReport(ctx, args)
	case "decide":
		return c.runDecide(ctx, args)
	case "status":
		return c.runStatus(ctx)
	case "sync":
		return c.runSync(ctx)
	case "watch":
		return c.runWatch(ctx)
	case "retry":
		return c.runRetry(ctx, args)
	case "conflicts":
		return c.runConflicts(ctx, args)
	case "resolve":
		return c.runResolve(ctx, args)
	case "clear":
		return c.runClear(ctx)
	default:
		PrintUsage()
		return fmt.Errorf("unknown command: %s", command)
	}
}

// ensureSession loads the stored session and arms the API client with a
// valid token. Commands that talk to the hub call this first.
func (c *Cli) ensureSession(ctx context.Context) (*storage.Session, error) {
	session, err := c.sessions.GetSession(ctx)
	if err != nil {
		if err == storage.ErrSessionNotFound {
			return nil, fmt.Errorf("device not registered; run 'fieldsync-device register' first")
		}
		return nil, fmt.Errorf("failed to load session: %w", err)
	}

	if !session.TokenValid(time.Now()) {
		return nil, fmt.Errorf("access token missing or expired; run 'fieldsync-device login'")
	}

	c.client.SetToken(session.AccessToken)
	return session, nil
}

func PrintUsage() {
	fmt.Println("FieldSync Device")
	fmt.Println()
	fmt.Println("Usage:")
	fmt.Println("  fieldsync-device [OPTIONS] COMMAND")
	fmt.Println()
	fmt.Println("Options:")
	fmt.Println("  --version        Show version information")
	fmt.Println("  --server URL     Hub URL (default: http://localhost:8080)")
	fmt.Println("  --db PATH        Path to local database (default: fieldsync-device.db)")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  register                 Register this device with the hub")
	fmt.Println("  login                    Obtain a fresh access token")
	fmt.Println("  download <competition>   Download reference data for a competition")
	fmt.Println("  add-case                 Record an incident case")
	fmt.Println("  add-report               Attach a report to a case")
	fmt.Println("  decide                   Record a decision on a case")
	fmt.Println("  status                   Show session and sync queue status")
	fmt.Println("  sync                     Run one sync pass against the hub")
	fmt.Println("  watch                    Sync automatically whenever the hub is reachable")
	fmt.Println("  retry <uid>|--failed     Put conflicted or failed entries back in the queue")
	fmt.Println("  conflicts                List conflicts recorded by the hub")
	fmt.Println("  resolve <id>             Apply a resolution to a conflict")
	fmt.Println("  clear                    Drop synced queue entries and local operational data")
	fmt.Println()
	fmt.Println("Examples:")
	fmt.Println("  fieldsync-device register")
	fmt.Println("  fieldsync-device download 7e6f0a9c-4a1b-4d2e-9f3c-1b2a3c4d5e6f")
	fmt.Println("  fieldsync-device add-case --race <uid> --location <uid> --bib 42 --desc 'cut the course'")
	fmt.Println("  fieldsync-device decide --case <uid> --decision disqualified --by 'chief referee'")
	fmt.Println("  fieldsync-device sync")
	fmt.Println("  fieldsync-device --server https://hub.example.com watch")
}
