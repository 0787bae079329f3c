package core

// scheduler.go runs the background sweep for abandoned upload attempts.
//
// An attempt left in pending or processing past the upload timeout belongs
// to a run that crashed or was killed mid-flight. The sweep marks it failed
// so status history never shows a run as in progress forever.

import (
	"context"
	"log/slog"
	"time"
)

// AbandonedReason is the error recorded on swept attempts.
const AbandonedReason = "abandoned: processing exceeded timeout"

// SweepConfig configures the abandoned-attempt sweeper.
type SweepConfig struct {
	Interval time.Duration // how often to sweep (default: 1m)
	MaxAge   time.Duration // attempts older than this are abandoned (default: 5m)
}

// Sweeper fails attempts stuck in a non-terminal state.
type Sweeper struct {
	store AttemptStore
	cfg   SweepConfig
	now   func() time.Time
}

// NewSweeper creates a Sweeper over store.
func NewSweeper(store AttemptStore, cfg SweepConfig) *Sweeper {
	if cfg.Interval <= 0 {
		cfg.Interval = time.Minute
	}
	if cfg.MaxAge <= 0 {
		cfg.MaxAge = 5 * time.Minute
	}
	return &Sweeper{store: store, cfg: cfg, now: time.Now}
}

// Run sweeps immediately and then every Interval until ctx is cancelled.
// It always returns nil so it can run inside an errgroup.
func (s *Sweeper) Run(ctx context.Context) error {
	slog.Info("upload sweeper started", "interval", s.cfg.Interval, "max_age", s.cfg.MaxAge)

	s.SweepOnce(ctx)

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			slog.Info("upload sweeper stopped")
			return nil
		case <-ticker.C:
			s.SweepOnce(ctx)
		}
	}
}

// SweepOnce fails every attempt older than MaxAge and returns how many it
// changed. Errors are logged, not returned.
func (s *Sweeper) SweepOnce(ctx context.Context) int64 {
	start := time.Now()
	cutoff := s.now().Add(-s.cfg.MaxAge)

	n, err := s.store.FailStaleAttempts(ctx, cutoff, AbandonedReason)
	if err != nil {
		if ctx.Err() == nil {
			slog.Error("upload sweep failed", "error", err)
		}
		return 0
	}
	if n > 0 {
		slog.Warn("marked abandoned uploads as failed",
			"count", n,
			"cutoff", cutoff,
			"duration_ms", time.Since(start).Milliseconds(),
		)
	}
	return n
}
