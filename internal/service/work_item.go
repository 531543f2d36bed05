package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/boudydegeer/product-analysis-sub000/internal/core"
	"github.com/boudydegeer/product-analysis-sub000/internal/data"
	"github.com/boudydegeer/product-analysis-sub000/internal/data/cryptoutil"
	"github.com/boudydegeer/product-analysis-sub000/internal/domain/model"
	apperrors "github.com/boudydegeer/product-analysis-sub000/internal/errors"
)

// WorkItemServiceOptions groups dependencies for WorkItemService.
type WorkItemServiceOptions struct {
	Items       core.WorkItemRepository     // Required: work item repository
	Results     core.ResultRecordRepository // Required: result record repository
	Runner      core.AnalysisRunner         // Required: external runner capability
	CallbackURL string                      // Optional: webhook URL registered at trigger time
	Cache       core.StatusCache            // Optional: status read cache
	StatusTTL   time.Duration               // Optional: cache TTL, defaults to 5s
	Logger      *slog.Logger                // Optional: structured logger
}

// WorkItemService provides the work item lifecycle operations that surround
// the delivery coordinator: registration, triggering the external analysis,
// and reading status and results.
type WorkItemService struct {
	items       core.WorkItemRepository
	results     core.ResultRecordRepository
	runner      core.AnalysisRunner
	callbackURL string
	cache       core.StatusCache
	statusTTL   time.Duration
	logger      *slog.Logger
}

// NewWorkItemService constructs a new WorkItemService.
func NewWorkItemService(opts WorkItemServiceOptions) (*WorkItemService, error) {
	if opts.Items == nil {
		return nil, errors.New("WorkItemRepository is required")
	}
	if opts.Results == nil {
		return nil, errors.New("ResultRecordRepository is required")
	}
	if opts.Runner == nil {
		return nil, errors.New("AnalysisRunner is required")
	}

	ttl := opts.StatusTTL
	if ttl <= 0 {
		ttl = 5 * time.Second
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "work_item_service")
	}

	return &WorkItemService{
		items:       opts.Items,
		results:     opts.Results,
		runner:      opts.Runner,
		callbackURL: opts.CallbackURL,
		cache:       opts.Cache,
		statusTTL:   ttl,
		logger:      logger,
	}, nil
}

// Create registers a new work item in pending state.
func (s *WorkItemService) Create(ctx context.Context, req *model.CreateWorkItemRequest) (*model.WorkItem, error) {
	item, err := s.items.Create(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("create work item: %w", err)
	}

	if s.logger != nil {
		s.logger.DebugContext(ctx, "work item created", "id", item.ID)
	}
	return item, nil
}

// Trigger starts the external analysis for a pending item: it generates the
// per-item callback secret, submits the job to the runner (handing over the
// callback URL when one is configured) and attaches the returned job id while
// moving the item to analyzing.
func (s *WorkItemService) Trigger(ctx context.Context, id string) (*model.WorkItem, error) {
	item, err := s.items.GetByID(ctx, id)
	if errors.Is(err, data.ErrWorkItemNotFound) {
		return nil, apperrors.NotFoundf("work item %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("load work item: %w", err)
	}
	if item.Status != model.StatusPending {
		return nil, apperrors.Conflict("work item already triggered")
	}

	secret, err := cryptoutil.NewCallbackSecret()
	if err != nil {
		return nil, fmt.Errorf("generate callback secret: %w", err)
	}

	externalJobID, err := s.runner.Trigger(ctx, core.TriggerJobParams{
		WorkItemID:  item.ID,
		JobSpec:     item.JobSpec,
		CallbackURL: s.callbackURL,
		Secret:      secret,
	})
	if err != nil {
		return nil, fmt.Errorf("trigger analysis job: %w", err)
	}

	ok, err := s.items.MarkTriggered(ctx, model.TriggerParams{
		ID:            item.ID,
		ExternalJobID: externalJobID,
		Secret:        secret,
	})
	if err != nil {
		return nil, fmt.Errorf("mark triggered: %w", err)
	}
	if !ok {
		return nil, apperrors.Conflict("work item already triggered")
	}

	if s.logger != nil {
		s.logger.InfoContext(ctx, "analysis triggered",
			"work_item_id", item.ID,
			"external_job_id", externalJobID,
			"polling_only", s.callbackURL == "",
		)
	}
	return s.items.GetByID(ctx, item.ID)
}

// GetStatus returns the status view for an item, served from the short-TTL
// cache when one is configured.
func (s *WorkItemService) GetStatus(ctx context.Context, id string) (*model.WorkItemStatusResponse, error) {
	if cached := s.cachedStatus(ctx, id); cached != nil {
		return cached, nil
	}

	item, err := s.items.GetByID(ctx, id)
	if errors.Is(err, data.ErrWorkItemNotFound) {
		return nil, apperrors.NotFoundf("work item %s not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("load work item: %w", err)
	}

	view := item.StatusView()
	s.storeStatus(ctx, id, view)
	return view, nil
}

// GetResult returns the persisted result record for an item.
func (s *WorkItemService) GetResult(ctx context.Context, id string) (*model.ResultRecord, error) {
	record, err := s.results.GetByWorkItemID(ctx, id)
	if errors.Is(err, data.ErrResultNotFound) {
		return nil, apperrors.NotFoundf("no result for work item %s", id)
	}
	if err != nil {
		return nil, fmt.Errorf("load result record: %w", err)
	}
	return record, nil
}

func (s *WorkItemService) cachedStatus(ctx context.Context, id string) *model.WorkItemStatusResponse {
	if s.cache == nil {
		return nil
	}
	raw, err := s.cache.Get(ctx, StatusCacheKey(id))
	if err != nil {
		if s.logger != nil {
			s.logger.WarnContext(ctx, "status cache read failed", "work_item_id", id, "error", err)
		}
		return nil
	}
	if raw == nil {
		return nil
	}
	var view model.WorkItemStatusResponse
	if unmarshalErr := json.Unmarshal(raw, &view); unmarshalErr != nil {
		return nil
	}
	return &view
}

func (s *WorkItemService) storeStatus(ctx context.Context, id string, view *model.WorkItemStatusResponse) {
	if s.cache == nil || view == nil {
		return
	}
	// Terminal statuses are immutable but still short-lived in cache; a plain
	// TTL keeps the invalidation story trivial.
	raw, err := json.Marshal(view)
	if err != nil {
		return
	}
	if setErr := s.cache.Set(ctx, StatusCacheKey(id), raw, s.statusTTL); setErr != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "status cache write failed", "work_item_id", id, "error", setErr)
	}
}
