// Package reconciler provides the adapter that runs the polling reconciler
// loop.
package reconciler

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/boudydegeer/product-analysis-sub000/config"
	"github.com/boudydegeer/product-analysis-sub000/internal/core"
	"github.com/boudydegeer/product-analysis-sub000/internal/data"
	"github.com/boudydegeer/product-analysis-sub000/internal/service"
)

// Runner drives periodic reconciliation passes. It constructs the reconciler
// service and runs one pass per tick until the context is cancelled.
type Runner struct {
	reconciler *service.ReconcilerService
	interval   time.Duration
	timeSource data.TimeProvider
	logger     *slog.Logger
}

// RunnerOptions holds the dependencies for creating a Runner.
type RunnerOptions struct {
	DB           *sql.DB
	Config       config.ReconcilerConfig
	Logger       *slog.Logger
	RunnerClient core.AnalysisRunner

	// Optional dependency injection for testing/decoupling
	Items core.WorkItemRepository
	Cache core.StatusCache
	Time  data.TimeProvider
}

// NewRunner creates a new reconciler runner with the given options.
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if err := validateRunnerOptions(&opts); err != nil {
		return nil, err
	}

	items := opts.Items
	if items == nil {
		items = data.NewWorkItemRepo(opts.DB, data.RepoConfig{Logger: opts.Logger, TimeProvider: opts.Time})
	}

	svc, err := service.NewReconcilerService(service.ReconcilerServiceOptions{
		Items:  items,
		Runner: opts.RunnerClient,
		Cache:  opts.Cache,
		Config: opts.Config,
		Logger: opts.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("wire reconciler service: %w", err)
	}

	return &Runner{
		reconciler: svc,
		interval:   opts.Config.Interval,
		timeSource: opts.Time,
		logger:     opts.Logger,
	}, nil
}

func validateRunnerOptions(opts *RunnerOptions) error {
	if opts.DB == nil && opts.Items == nil {
		return errors.New("database connection is required")
	}
	if opts.RunnerClient == nil {
		return errors.New("analysis runner client is required")
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.Time == nil {
		opts.Time = &data.RealTimeProvider{}
	}
	opts.Config.Sanitize()
	return nil
}

// Run starts the reconciler loop and runs until the context is cancelled.
// Ticks never overlap: a pass that outlives the interval simply delays the
// next one.
func (r *Runner) Run(ctx context.Context) error {
	r.logger.InfoContext(ctx, "starting reconciler runner", "interval", r.interval)

	// Jitter spreads the first pass out when multiple instances start together.
	r.waitWithJitter(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	r.runPass(ctx)

	for {
		select {
		case <-ctx.Done():
			r.logger.InfoContext(ctx, "reconciler runner stopping", "reason", ctx.Err())
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C:
			r.runPass(ctx)
		}
	}
}

func (r *Runner) runPass(ctx context.Context) {
	start := r.timeSource.Now()
	examined, err := r.reconciler.ReconcileAll(ctx, start)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		// Continue running despite errors
		r.logger.ErrorContext(ctx, "reconciliation pass failed", "error", err)
		return
	}
	if examined > 0 {
		r.logger.InfoContext(ctx, "reconciliation pass finished",
			"examined", examined,
			"duration", time.Since(start),
		)
	}
}

// waitWithJitter adds a random delay up to 10% of the interval.
func (r *Runner) waitWithJitter(ctx context.Context) {
	maxJitter := int64(r.interval / 10)
	if maxJitter <= 0 {
		return
	}

	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		// If crypto/rand fails, skip jitter rather than failing startup
		r.logger.WarnContext(ctx, "failed to generate jitter, skipping", "error", err)
		return
	}

	jitterNanos := binary.BigEndian.Uint64(buf[:]) % uint64(maxJitter)
	jitter := time.Duration(int64(jitterNanos)) // #nosec G115 - bounded by maxJitter which is int64

	select {
	case <-time.After(jitter):
	case <-ctx.Done():
	}
}
