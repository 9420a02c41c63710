package reconcile

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/driftwatchhq/driftwatch/internal/logger"
	"github.com/driftwatchhq/driftwatch/internal/metrics"
	"github.com/driftwatchhq/driftwatch/internal/storage"
)

// Summary aggregates one run over the active watch set.
type Summary struct {
	Successful int `json:"successful"`
	Failed     int `json:"failed"`
	Skipped    int `json:"skipped"`
	Total      int `json:"total"`
}

// SchedulerConfig bounds a run.
type SchedulerConfig struct {
	// Concurrency is the fan-out width (default: 5). Bounded so a large
	// watch set cannot trample the per-organization rate budgets.
	Concurrency int
	// RunTimeout is the overall deadline for one run (default: 5m).
	RunTimeout time.Duration
	// Interval drives the internal ticker; zero disables it and leaves
	// triggering to the external job runner.
	Interval time.Duration
}

// setDefaults applies default scheduler values.
func (c *SchedulerConfig) setDefaults() {
	if c.Concurrency <= 0 {
		c.Concurrency = 5
	}
	if c.RunTimeout <= 0 {
		c.RunTimeout = 5 * time.Minute
	}
}

// Scheduler fans reconciliation out over all active watches.
type Scheduler struct {
	reconciler *Reconciler
	watches    storage.WatchRepository
	cfg        SchedulerConfig
	log        *logger.Logger
}

// NewScheduler creates a scheduler.
func NewScheduler(reconciler *Reconciler, watches storage.WatchRepository, cfg SchedulerConfig, log *logger.Logger) *Scheduler {
	cfg.setDefaults()
	return &Scheduler{
		reconciler: reconciler,
		watches:    watches,
		cfg:        cfg,
		log:        log.With("component", "scheduler"),
	}
}

// RunAll reconciles every active watch with bounded concurrency and a
// settle-all join: one watch's failure never short-circuits the batch.
// Tasks always return nil to the group; failure is counted, not raised.
func (s *Scheduler) RunAll(ctx context.Context) (Summary, error) {
	ctx, cancel := context.WithTimeout(ctx, s.cfg.RunTimeout)
	defer cancel()

	watches, err := s.watches.ListActive(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("list active watches: %w", err)
	}

	start := time.Now()
	var successful, failed, skipped atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)

	for _, watch := range watches {
		watch := watch
		g.Go(func() error {
			switch s.reconciler.CheckWatch(gctx, watch) {
			case OutcomeHealthy, OutcomeDrift:
				successful.Add(1)
			case OutcomeSkipped:
				skipped.Add(1)
			default:
				failed.Add(1)
			}
			return nil
		})
	}
	// Tasks never return errors, so Wait only settles the group.
	_ = g.Wait()

	metrics.ReconcileRunsTotal.Inc()

	summary := Summary{
		Successful: int(successful.Load()),
		Failed:     int(failed.Load()),
		Skipped:    int(skipped.Load()),
		Total:      len(watches),
	}
	s.log.Info("reconciliation run complete",
		"total", summary.Total, "successful", summary.Successful,
		"failed", summary.Failed, "skipped", summary.Skipped,
		"duration", time.Since(start))
	return summary, nil
}

// Start drives RunAll on the configured interval until ctx is canceled.
// No-op if the interval is zero.
func (s *Scheduler) Start(ctx context.Context) {
	if s.cfg.Interval <= 0 {
		return
	}

	s.log.Info("internal scheduler started", "interval", s.cfg.Interval)
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("internal scheduler stopped")
			return
		case <-ticker.C:
			if _, err := s.RunAll(ctx); err != nil {
				s.log.Error("scheduled run failed", "error", err)
			}
		}
	}
}
