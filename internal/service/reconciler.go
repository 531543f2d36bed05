package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/boudydegeer/product-analysis-sub000/config"
	"github.com/boudydegeer/product-analysis-sub000/internal/core"
	"github.com/boudydegeer/product-analysis-sub000/internal/domain/model"
)

// ReconcilerServiceOptions groups dependencies for ReconcilerService.
type ReconcilerServiceOptions struct {
	Items  core.WorkItemRepository // Required: work item repository
	Runner core.AnalysisRunner     // Required: external runner capability
	Cache  core.StatusCache        // Optional: status read cache to invalidate
	Config config.ReconcilerConfig // Required: polling windows and limits
	Logger *slog.Logger            // Optional: structured logger
}

// ReconcilerService is the polling delivery path. Each pass it selects the
// in-flight items whose webhook has not settled them, asks the external
// runner for their current state, and settles the finished ones through the
// same terminal gate the webhook path uses. Losing the gate to a concurrent
// webhook is a silent no-op.
type ReconcilerService struct {
	items  core.WorkItemRepository
	runner core.AnalysisRunner
	cache  core.StatusCache
	cfg    config.ReconcilerConfig
	logger *slog.Logger
}

// NewReconcilerService constructs a new ReconcilerService.
func NewReconcilerService(opts ReconcilerServiceOptions) (*ReconcilerService, error) {
	if opts.Items == nil {
		return nil, errors.New("WorkItemRepository is required")
	}
	if opts.Runner == nil {
		return nil, errors.New("AnalysisRunner is required")
	}
	opts.Config.Sanitize()

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &ReconcilerService{
		items:  opts.Items,
		runner: opts.Runner,
		cache:  opts.Cache,
		cfg:    opts.Config,
		logger: logger.With("component", "reconciler_service"),
	}, nil
}

// ReconcileAll runs one polling pass and returns how many items it examined.
// A failure against one item never stops the pass; the item is retried on a
// later tick. How many of the examined items actually settled is reported in
// the pass log.
func (s *ReconcilerService) ReconcileAll(ctx context.Context, now time.Time) (int, error) {
	items, err := s.items.ListPollable(ctx, core.ListPollableParams{
		Now:          now,
		PollTimeout:  s.cfg.PollTimeout,
		WebhookGrace: s.cfg.WebhookGrace,
		Limit:        s.cfg.BatchSize,
	})
	if err != nil {
		return 0, fmt.Errorf("list pollable work items: %w", err)
	}

	s.warnStuck(ctx, now)

	if len(items) == 0 {
		return 0, nil
	}

	var settled atomic.Int64
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.cfg.Concurrency)
	for _, item := range items {
		g.Go(func() error {
			claimed, itemErr := s.reconcileItem(gctx, item, now)
			if itemErr != nil {
				s.logger.WarnContext(gctx, "reconcile failed, will retry next pass",
					"work_item_id", item.ID,
					"error", itemErr,
				)
				return nil
			}
			if claimed {
				settled.Add(1)
			}
			return nil
		})
	}
	if waitErr := g.Wait(); waitErr != nil {
		return len(items), waitErr
	}

	if n := settled.Load(); n > 0 {
		s.logger.InfoContext(ctx, "reconciliation pass settled items",
			"examined", len(items),
			"settled", n,
		)
	}
	return len(items), nil
}

// reconcileItem polls one work item. The poll marker advances before the
// runner is contacted so a slow or failing runner still pushes the item to
// the back of the next selection.
func (s *ReconcilerService) reconcileItem(ctx context.Context, item *model.WorkItem, now time.Time) (bool, error) {
	if err := s.items.MarkPolled(ctx, item.ID, now); err != nil {
		return false, fmt.Errorf("mark polled: %w", err)
	}
	if item.ExternalJobID == nil {
		return false, nil
	}

	status, err := s.runner.GetStatus(ctx, *item.ExternalJobID)
	if err != nil {
		return false, fmt.Errorf("runner status: %w", err)
	}

	switch {
	case status.StillRunning():
		return false, nil
	case status.TerminalFailure():
		payload, marshalErr := json.Marshal(map[string]string{
			"error": fmt.Sprintf("analysis %s", status),
		})
		if marshalErr != nil {
			return false, fmt.Errorf("encode failure payload: %w", marshalErr)
		}
		return s.settle(ctx, item.ID, model.StatusFailed, payload, now)
	case status == model.RunnerStatusCompleted:
		return s.settleCompleted(ctx, item, now)
	default:
		return false, fmt.Errorf("%w: %q", model.ErrUnknownRunnerStatus, status)
	}
}

// settleCompleted fetches the artifact for a finished job and settles the
// item with the outcome the artifact reports. An artifact that carries an
// error field settles the item as failed even though the job completed.
func (s *ReconcilerService) settleCompleted(ctx context.Context, item *model.WorkItem, now time.Time) (bool, error) {
	raw, err := s.runner.FetchArtifact(ctx, *item.ExternalJobID)
	if err != nil {
		return false, fmt.Errorf("fetch artifact: %w", err)
	}

	callback, err := model.ParseAnalysisCallback(raw)
	if err != nil {
		return false, fmt.Errorf("parse artifact: %w", err)
	}

	return s.settle(ctx, item.ID, callback.Outcome(), callback.Raw, now)
}

func (s *ReconcilerService) settle(ctx context.Context, id string, status model.WorkItemStatus, payload json.RawMessage, now time.Time) (bool, error) {
	claimed, err := s.items.CompleteTerminal(ctx, core.CompleteTerminalParams{
		ID:      id,
		Status:  status,
		Payload: payload,
		Via:     model.DeliveryPolling,
		Now:     now,
	})
	if err != nil {
		return false, fmt.Errorf("complete terminal: %w", err)
	}
	if !claimed {
		// The webhook path got there first.
		s.logger.DebugContext(ctx, "work item already settled", "work_item_id", id)
		return false, nil
	}

	s.invalidateStatus(ctx, id)
	s.logger.InfoContext(ctx, "work item settled via polling",
		"work_item_id", id,
		"status", status,
	)
	return true, nil
}

func (s *ReconcilerService) invalidateStatus(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}
	if _, err := s.cache.Delete(ctx, StatusCacheKey(id)); err != nil {
		s.logger.WarnContext(ctx, "status cache invalidation failed", "work_item_id", id, "error", err)
	}
}

// warnStuck reports items that outlived the absolute poll timeout without a
// terminal outcome. They stay analyzing; resolution is an operator decision.
func (s *ReconcilerService) warnStuck(ctx context.Context, now time.Time) {
	count, err := s.items.CountStuck(ctx, now.Add(-s.cfg.PollTimeout))
	if err != nil {
		s.logger.WarnContext(ctx, "stuck item count failed", "error", err)
		return
	}
	if count > 0 {
		s.logger.WarnContext(ctx, "work items exceeded poll timeout without outcome",
			"count", count,
			"poll_timeout", s.cfg.PollTimeout,
		)
	}
}
