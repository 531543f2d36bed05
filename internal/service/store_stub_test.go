package service

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/boudydegeer/product-analysis-sub000/internal/core"
	"github.com/boudydegeer/product-analysis-sub000/internal/data"
	"github.com/boudydegeer/product-analysis-sub000/internal/domain/model"
)

// memoryStore is an in-memory WorkItemRepository and ResultRecordRepository
// with the same conditional-update semantics as the Postgres implementation.
// A single mutex stands in for the database's row-level atomicity.
type memoryStore struct {
	mu      sync.Mutex
	items   map[string]*model.WorkItem
	results map[string]*model.ResultRecord

	completeTerminalErr error
	markPolledErr       error
	listPollableErr     error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		items:   make(map[string]*model.WorkItem),
		results: make(map[string]*model.ResultRecord),
	}
}

func (s *memoryStore) put(item *model.WorkItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *item
	s.items[item.ID] = &cp
}

func (s *memoryStore) Create(_ context.Context, req *model.CreateWorkItemRequest) (*model.WorkItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	id := req.ID
	if id == "" {
		id = uuid.NewString()
	}
	now := time.Now().UTC()
	item := &model.WorkItem{
		ID:        id,
		Status:    model.StatusPending,
		JobSpec:   req.JobSpec,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.items[id] = item
	cp := *item
	return &cp, nil
}

func (s *memoryStore) GetByID(_ context.Context, id string) (*model.WorkItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return nil, data.ErrWorkItemNotFound
	}
	cp := *item
	return &cp, nil
}

func (s *memoryStore) MarkTriggered(_ context.Context, params model.TriggerParams) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[params.ID]
	if !ok || item.Status != model.StatusPending {
		return false, nil
	}
	jobID := params.ExternalJobID
	secret := params.Secret
	item.Status = model.StatusAnalyzing
	item.ExternalJobID = &jobID
	item.Secret = &secret
	item.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (s *memoryStore) CompleteTerminal(_ context.Context, params core.CompleteTerminalParams) (bool, error) {
	if s.completeTerminalErr != nil {
		return false, s.completeTerminalErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[params.ID]
	if !ok || item.Status != model.StatusAnalyzing {
		return false, nil
	}

	now := params.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}

	item.Status = params.Status
	item.UpdatedAt = now
	if params.Via == model.DeliveryWebhook && item.WebhookReceivedAt == nil {
		at := now
		item.WebhookReceivedAt = &at
	}
	s.results[params.ID] = &model.ResultRecord{
		ID:          uuid.NewString(),
		WorkItemID:  params.ID,
		Payload:     params.Payload,
		CompletedAt: now,
	}
	return true, nil
}

func (s *memoryStore) MarkPolled(_ context.Context, id string, at time.Time) error {
	if s.markPolledErr != nil {
		return s.markPolledErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	item, ok := s.items[id]
	if !ok {
		return data.ErrWorkItemNotFound
	}
	if item.LastPolledAt == nil || item.LastPolledAt.Before(at) {
		cp := at
		item.LastPolledAt = &cp
	}
	return nil
}

func (s *memoryStore) ListPollable(_ context.Context, params core.ListPollableParams) ([]*model.WorkItem, error) {
	if s.listPollableErr != nil {
		return nil, s.listPollableErr
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var out []*model.WorkItem
	for _, item := range s.items {
		if !s.pollable(item, params) {
			continue
		}
		cp := *item
		out = append(out, &cp)
		if params.Limit > 0 && len(out) >= params.Limit {
			break
		}
	}
	return out, nil
}

// pollable mirrors the SQL selection: analyzing, triggered, inside the poll
// timeout, and no webhook receipt newer than the grace window.
func (s *memoryStore) pollable(item *model.WorkItem, params core.ListPollableParams) bool {
	if item.Status != model.StatusAnalyzing || item.ExternalJobID == nil {
		return false
	}
	if item.CreatedAt.Before(params.Now.Add(-params.PollTimeout)) {
		return false
	}
	if item.WebhookReceivedAt != nil && item.WebhookReceivedAt.After(params.Now.Add(-params.WebhookGrace)) {
		return false
	}
	return true
}

func (s *memoryStore) CountStuck(_ context.Context, olderThan time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	count := 0
	for _, item := range s.items {
		if item.Status == model.StatusAnalyzing && item.CreatedAt.Before(olderThan) {
			count++
		}
	}
	return count, nil
}

func (s *memoryStore) GetByWorkItemID(_ context.Context, workItemID string) (*model.ResultRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	record, ok := s.results[workItemID]
	if !ok {
		return nil, data.ErrResultNotFound
	}
	cp := *record
	return &cp, nil
}

// fakeCache is a map-backed StatusCache recording deletes.
type fakeCache struct {
	mu      sync.Mutex
	entries map[string][]byte
	deletes []string
}

func newFakeCache() *fakeCache {
	return &fakeCache{entries: make(map[string][]byte)}
}

func (c *fakeCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.entries[key], nil
}

func (c *fakeCache) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = value
	return nil
}

func (c *fakeCache) Delete(_ context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	delete(c.entries, key)
	c.deletes = append(c.deletes, key)
	return ok, nil
}
