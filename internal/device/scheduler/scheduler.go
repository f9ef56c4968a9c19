// Package scheduler runs the periodic connectivity probe and triggers drain
// passes while the hub is reachable. Field devices spend most of a race day
// offline; the scheduler turns reconnection into an automatic sync.
package scheduler

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/sethvargo/go-retry"

	devsync "github.com/openrace/fieldsync/internal/device/sync"
)

const (
	// DefaultTick is the interval between connectivity checks.
	DefaultTick = 30 * time.Second

	// DefaultProbeTimeout bounds the whole health probe including retries.
	DefaultProbeTimeout = 5 * time.Second
)

// Pinger probes hub reachability.
type Pinger interface {
	Health(ctx context.Context) error
}

// Drainer runs one sync pass.
type Drainer interface {
	Drain(ctx context.Context) (*devsync.Result, error)
}

// Config tunes the scheduler.
type Config struct {
	Tick         time.Duration
	ProbeTimeout time.Duration
}

// Scheduler periodically probes the hub and drains the queue when online.
type Scheduler struct {
	pinger  Pinger
	drainer Drainer
	logger  *slog.Logger
	cfg     Config
	running atomic.Bool
}

// New creates a scheduler. Zero config fields fall back to the defaults.
func New(pinger Pinger, drainer Drainer, logger *slog.Logger, cfg Config) *Scheduler {
	if cfg.Tick <= 0 {
		cfg.Tick = DefaultTick
	}
	if cfg.ProbeTimeout <= 0 {
		cfg.ProbeTimeout = DefaultProbeTimeout
	}

	return &Scheduler{
		pinger:  pinger,
		drainer: drainer,
		logger:  logger,
		cfg:     cfg,
	}
}

// Run blocks, probing the hub every tick and draining when reachable, until
// the context is cancelled. An immediate pass runs on startup so a device
// switched on within coverage syncs without waiting a full tick.
func (s *Scheduler) Run(ctx context.Context) error {
	ticker := time.NewTicker(s.cfg.Tick)
	defer ticker.Stop()

	s.RunOnce(ctx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			s.RunOnce(ctx)
		}
	}
}

// RunOnce performs a single probe-and-drain cycle. Overlapping cycles are
// collapsed: if a previous drain is still in flight the call is a no-op.
func (s *Scheduler) RunOnce(ctx context.Context) {
	if !s.running.CompareAndSwap(false, true) {
		s.logger.Debug("drain already in flight, skipping tick")
		return
	}
	defer s.running.Store(false)

	if !s.online(ctx) {
		s.logger.Debug("hub unreachable, staying offline")
		return
	}

	result, err := s.drainer.Drain(ctx)
	if err != nil {
		s.logger.Warn("drain pass aborted", "error", err)
		return
	}

	if result.Total() > 0 {
		s.logger.Info("scheduled drain finished", "attempted", result.Total(), "synced", result.Synced+result.Merged)
	}
}

// online probes the health endpoint with a short retry so one dropped packet
// does not count as a full offline tick.
func (s *Scheduler) online(ctx context.Context) bool {
	probeCtx, cancel := context.WithTimeout(ctx, s.cfg.ProbeTimeout)
	defer cancel()

	backoff := retry.WithMaxRetries(2, retry.NewExponential(500*time.Millisecond))
	err := retry.Do(probeCtx, backoff, func(ctx context.Context) error {
		if err := s.pinger.Health(ctx); err != nil {
			return retry.RetryableError(err)
		}
		return nil
	})

	return err == nil
}
