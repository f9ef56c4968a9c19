package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/openrace/fieldsync/internal/fingerprint"
	"github.com/openrace/fieldsync/internal/hub/conflict"
	"github.com/openrace/fieldsync/internal/hub/dedup"
	"github.com/openrace/fieldsync/internal/hub/handlers"
	"github.com/openrace/fieldsync/internal/hub/middleware"
	"github.com/openrace/fieldsync/internal/hub/storage/sqlite"
)

var (
	// Version information set via ldflags during build
	Version   = "dev"
	BuildDate = "unknown"
	GitCommit = "unknown"
)

func main() {
	showVersion := flag.Bool("version", false, "Show version information")
	addr := flag.String("addr", ":8080", "Listen address")
	dbPath := flag.String("db", "fieldsync-hub.db", "Path to the SQLite database")
	jwtSecret := flag.String("jwt-secret", "", "JWT signing secret (required)")
	tokenTTL := flag.Duration("token-ttl", 12*time.Hour, "Device access token lifetime")
	bucket := flag.Duration("bucket", fingerprint.DefaultBucket, "Fingerprint time-bucket width")

	flag.Parse()

	if *showVersion {
		printVersion()
		os.Exit(0)
	}

	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))

	if *jwtSecret == "" {
		logger.Error("missing required -jwt-secret")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	store, err := sqlite.New(ctx, *dbPath)
	if err != nil {
		logger.Error("failed to open storage", "error", err, "db", *dbPath)
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(); err != nil {
			logger.Error("failed to close storage", "error", err)
		}
	}()

	jwtCfg := handlers.JWTConfig{
		Secret:         []byte(*jwtSecret),
		AccessTokenTTL: *tokenTTL,
	}

	fp := fingerprint.NewGenerator(*bucket)
	engine := dedup.NewEngine(store, store, store, fp, logger)
	conflictSvc := conflict.NewService(store, store, store, fp, logger)

	deviceHandler := handlers.NewDeviceHandler(logger, store, jwtCfg)
	syncHandler := handlers.NewSyncHandler(logger, engine)
	downloadHandler := handlers.NewDownloadHandler(logger, store)
	conflictHandler := handlers.NewConflictHandler(logger, conflictSvc)
	mergeHandler := handlers.NewMergeLogHandler(logger, store)
	healthHandler := handlers.NewHealthHandler(logger, Version)

	authed := middleware.AuthMiddleware(logger, jwtCfg, store)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/health", healthHandler.Health)
	mux.HandleFunc("POST /api/v1/devices/register", deviceHandler.HandleRegister)
	mux.HandleFunc("POST /api/v1/devices/login", deviceHandler.HandleLogin)
	mux.Handle("GET /api/v1/download/{competition_uid}", authed(http.HandlerFunc(downloadHandler.HandleDownload)))
	mux.Handle("POST /api/v1/sync/{type}", authed(http.HandlerFunc(syncHandler.HandleUpload)))
	mux.Handle("GET /api/v1/conflicts", authed(http.HandlerFunc(conflictHandler.HandleList)))
	mux.Handle("POST /api/v1/conflicts/{id}/resolve", authed(http.HandlerFunc(conflictHandler.HandleResolve)))
	mux.Handle("GET /api/v1/merges", authed(http.HandlerFunc(mergeHandler.HandleList)))

	handler := middleware.RecoveryMiddleware(logger)(
		middleware.LoggingWithSkip(logger, []string{"/api/v1/health"})(mux),
	)

	server := &http.Server{
		Addr:              *addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      60 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logger.Error("server shutdown failed", "error", err)
		}
	}()

	logger.Info("hub listening", "addr", *addr, "version", Version)

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server failed", "error", err)
		os.Exit(1)
	}

	logger.Info("hub stopped")
}

func printVersion() {
	fmt.Printf("FieldSync Hub\n")
	fmt.Printf("Version:    %s\n", Version)
	fmt.Printf("Build Date: %s\n", BuildDate)
	fmt.Printf("Git Commit: %s\n", GitCommit)
}
