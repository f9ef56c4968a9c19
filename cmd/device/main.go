package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/openrace/fieldsync/internal/device/api"
	"github.com/openrace/fieldsync/internal/device/cli"
	"github.com/openrace/fieldsync/internal/device/iocli"
	"github.com/openrace/fieldsync/internal/device/queue"
	"github.com/openrace/fieldsync/internal/device/scheduler"
	"github.com/openrace/fieldsync/internal/device/storage/boltdb"
	devsync "github.com/openrace/fieldsync/internal/device/sync"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	serverURL := flag.String("server", "http://localhost:8080", "Hub URL")
	dbPath := flag.String("db", "fieldsync-device.db", "Path to local database")
	tick := flag.Duration("tick", scheduler.DefaultTick, "Connectivity check interval for watch mode")
	maxAttempts := flag.Int("max-attempts", queue.DefaultMaxAttempts, "Transient-failure retry budget per queue entry")
	scheduleSpec := flag.String("schedule", "", "Retry backoff intervals, comma-separated (default 1m,5m,15m,1h,6h)")
	verbose := flag.Bool("v", false, "Verbose logging")

	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	args := flag.Args()
	if len(args) == 0 {
		cli.PrintUsage()
		os.Exit(1)
	}
	command := args[0]

	logLevel := slog.LevelWarn
	if *verbose {
		logLevel = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))

	// Watch mode runs until interrupted; every other command is one-shot.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	boltStorage, err := boltdb.New(ctx, *dbPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open database: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		if err := boltStorage.Close(); err != nil {
			logger.Error("failed to close database", "error", err)
		}
	}()

	schedule, err := queue.ParseSchedule(*scheduleSpec)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Invalid -schedule: %v\n", err)
		os.Exit(1)
	}

	apiClient := api.NewClient(*serverURL)
	queueSvc := queue.NewService(boltStorage, logger, queue.Config{
		MaxAttempts: *maxAttempts,
		Schedule:    schedule,
	})
	orchestrator := devsync.NewOrchestrator(apiClient, queueSvc, boltStorage, logger)
	sched := scheduler.New(apiClient, orchestrator, logger, scheduler.Config{Tick: *tick})

	app := cli.New(apiClient, boltStorage, boltStorage, queueSvc, orchestrator, sched, iocli.NewStdio())

	if err := app.Run(ctx, command, args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func printVersion() {
	fmt.Printf("FieldSync Device\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
