package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/boudydegeer/product-analysis-sub000/internal/core"
	"github.com/boudydegeer/product-analysis-sub000/internal/data"
	"github.com/boudydegeer/product-analysis-sub000/internal/data/cryptoutil"
	"github.com/boudydegeer/product-analysis-sub000/internal/domain/model"
	apperrors "github.com/boudydegeer/product-analysis-sub000/internal/errors"
)

// WebhookServiceOptions groups dependencies for WebhookService.
type WebhookServiceOptions struct {
	Items  core.WorkItemRepository // Required: work item repository
	Cache  core.StatusCache        // Optional: status cache to invalidate on transition
	Logger *slog.Logger            // Optional: structured logger
}

// WebhookService accepts the inbound push notification from the external
// runner, verifies it against the item's callback secret and performs the
// terminal state transition under the coordination gate.
type WebhookService struct {
	items  core.WorkItemRepository
	cache  core.StatusCache
	logger *slog.Logger
}

// NewWebhookService constructs a new WebhookService.
func NewWebhookService(opts WebhookServiceOptions) (*WebhookService, error) {
	if opts.Items == nil {
		return nil, errors.New("WorkItemRepository is required")
	}

	var logger *slog.Logger
	if opts.Logger != nil {
		logger = opts.Logger.With("component", "webhook_service")
	}

	return &WebhookService{
		items:  opts.Items,
		cache:  opts.Cache,
		logger: logger,
	}, nil
}

// ReceiveParams carries one inbound webhook delivery: the raw body exactly as
// signed, plus the two required headers.
type ReceiveParams struct {
	RawBody    []byte
	Signature  string
	WorkItemID string
}

// ReceiveResult reports the outcome of an accepted delivery.
type ReceiveResult struct {
	Status    model.WorkItemStatus
	Duplicate bool
}

// Receive validates and applies one webhook delivery. Rejections surface as
// typed AppErrors (validation, not_found, unauthenticated, internal) and leave
// no state behind; an already-terminal item is accepted as a duplicate no-op.
func (s *WebhookService) Receive(ctx context.Context, params ReceiveParams) (*ReceiveResult, error) {
	if params.Signature == "" {
		return nil, apperrors.Validation("signature header is required")
	}
	if params.WorkItemID == "" {
		return nil, apperrors.Validation("work item id header is required")
	}

	item, err := s.items.GetByID(ctx, params.WorkItemID)
	if errors.Is(err, data.ErrWorkItemNotFound) {
		return nil, apperrors.NotFoundf("work item %s not found", params.WorkItemID)
	}
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "load work item")
	}

	if !item.HasSecret() {
		return nil, apperrors.Wrap(model.ErrNoSecret, apperrors.ErrCodeUnauthenticated, "callback rejected")
	}
	if !cryptoutil.Verify(params.RawBody, params.Signature, *item.Secret) {
		return nil, apperrors.Unauthenticated("signature verification failed")
	}

	callback, err := model.ParseAnalysisCallback(params.RawBody)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeValidation, "malformed callback payload")
	}

	// Re-delivery of a webhook to a resolved item is expected; accept it
	// without touching state.
	if item.Status.Terminal() {
		return &ReceiveResult{Status: item.Status, Duplicate: true}, nil
	}

	outcome := callback.Outcome()
	claimed, err := s.items.CompleteTerminal(ctx, core.CompleteTerminalParams{
		ID:      item.ID,
		Status:  outcome,
		Payload: callback.Raw,
		Via:     model.DeliveryWebhook,
	})
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "persist terminal transition")
	}
	if !claimed {
		// Lost the race against the polling path (or a concurrent delivery).
		// The item is terminal either way; report the stored outcome.
		return s.duplicateResult(ctx, item.ID)
	}

	s.invalidateStatus(ctx, item.ID)

	if s.logger != nil {
		s.logger.InfoContext(ctx, "webhook accepted",
			"work_item_id", item.ID,
			"status", outcome,
		)
	}
	return &ReceiveResult{Status: outcome}, nil
}

// duplicateResult reloads the item after a lost claim to report its settled status.
func (s *WebhookService) duplicateResult(ctx context.Context, id string) (*ReceiveResult, error) {
	item, err := s.items.GetByID(ctx, id)
	if err != nil {
		return nil, apperrors.Wrap(err, apperrors.ErrCodeInternal, "reload work item")
	}
	return &ReceiveResult{Status: item.Status, Duplicate: true}, nil
}

func (s *WebhookService) invalidateStatus(ctx context.Context, id string) {
	if s.cache == nil {
		return
	}
	if _, err := s.cache.Delete(ctx, StatusCacheKey(id)); err != nil && s.logger != nil {
		s.logger.WarnContext(ctx, "invalidate status cache failed", "work_item_id", id, "error", err)
	}
}

// StatusCacheKey builds the cache key for a work item's status view.
func StatusCacheKey(id string) string {
	return fmt.Sprintf("work_item:status:%s", id)
}
