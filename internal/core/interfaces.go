package core

import (
	"context"
	"encoding/json"
	"time"

	"github.com/boudydegeer/product-analysis-sub000/internal/domain/model"
)

// This file contains repository and capability interface definitions (ports in
// hexagonal architecture). Service implementations depend on these contracts,
// not on concrete implementations.

// WorkItemRepository defines the interface for work item data operations.
type WorkItemRepository interface {
	Create(ctx context.Context, req *model.CreateWorkItemRequest) (*model.WorkItem, error)
	GetByID(ctx context.Context, id string) (*model.WorkItem, error)

	// MarkTriggered moves a pending item to analyzing, attaching the external
	// job id and callback secret. Returns false when the item was not pending.
	MarkTriggered(ctx context.Context, params model.TriggerParams) (bool, error)

	// CompleteTerminal is the coordination gate: a single conditional state
	// transition that succeeds for exactly one caller per item. When claimed
	// it writes the terminal status, the webhook receipt timestamp (webhook
	// path only) and one ResultRecord atomically. Losing the race is not an
	// error; claimed is false and nothing is written.
	CompleteTerminal(ctx context.Context, params CompleteTerminalParams) (bool, error)

	// MarkPolled records a polling attempt. It is exempt from the gate;
	// last_polled_at only moves forward.
	MarkPolled(ctx context.Context, id string, at time.Time) error

	// ListPollable returns analyzing items eligible for a polling attempt.
	ListPollable(ctx context.Context, params ListPollableParams) ([]*model.WorkItem, error)

	// CountStuck counts analyzing items older than the polling timeout. Used
	// only to surface permanently unresolved items in logs.
	CountStuck(ctx context.Context, olderThan time.Time) (int, error)
}

// CompleteTerminalParams groups parameters for WorkItemRepository.CompleteTerminal.
type CompleteTerminalParams struct {
	ID      string
	Status  model.WorkItemStatus // StatusCompleted or StatusFailed
	Payload json.RawMessage      // stored verbatim as the ResultRecord payload
	Via     model.DeliveryPath
	Now     time.Time
}

// ListPollableParams groups the selection-query inputs for ListPollable.
type ListPollableParams struct {
	Now          time.Time
	PollTimeout  time.Duration // absolute horizon measured from created_at
	WebhookGrace time.Duration // skip items with a recent webhook receipt
	Limit        int
}

// ResultRecordRepository defines the interface for persisted analysis results.
type ResultRecordRepository interface {
	GetByWorkItemID(ctx context.Context, workItemID string) (*model.ResultRecord, error)
}

// AnalysisRunner is the external job runner capability consumed by the
// coordinator: trigger a job, query its status, fetch its artifact. Transport
// details are an adapter concern.
type AnalysisRunner interface {
	Trigger(ctx context.Context, params TriggerJobParams) (externalJobID string, err error)
	GetStatus(ctx context.Context, externalJobID string) (model.RunnerJobStatus, error)
	FetchArtifact(ctx context.Context, externalJobID string) (json.RawMessage, error)
}

// TriggerJobParams groups inputs for AnalysisRunner.Trigger. CallbackURL may
// be empty, in which case the runner never pushes a webhook and the item
// resolves through polling alone.
type TriggerJobParams struct {
	WorkItemID  string
	JobSpec     json.RawMessage
	CallbackURL string
	Secret      string
}

// StatusCache is an optional short-TTL cache in front of the read-heavy
// status endpoint. Get returns nil bytes on a miss.
type StatusCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Delete(ctx context.Context, key string) (bool, error)
}
