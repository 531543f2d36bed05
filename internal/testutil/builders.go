// Package testutil provides testing utilities and helpers for the delivery coordinator.
package testutil

import (
	"encoding/json"
	"time"

	"github.com/boudydegeer/product-analysis-sub000/internal/domain/model"
)

// WorkItemRequestBuilder provides a fluent interface for building CreateWorkItemRequest objects for testing.
type WorkItemRequestBuilder struct {
	req *model.CreateWorkItemRequest
}

// NewWorkItemRequest creates a new WorkItemRequestBuilder with sensible defaults.
func NewWorkItemRequest() *WorkItemRequestBuilder {
	return &WorkItemRequestBuilder{
		req: &model.CreateWorkItemRequest{
			JobSpec: json.RawMessage(`{"target": "https://example.com"}`),
		},
	}
}

// WithID sets an explicit work item id.
func (b *WorkItemRequestBuilder) WithID(id string) *WorkItemRequestBuilder {
	b.req.ID = id
	return b
}

// WithJobSpec sets the job spec payload.
func (b *WorkItemRequestBuilder) WithJobSpec(spec json.RawMessage) *WorkItemRequestBuilder {
	b.req.JobSpec = spec
	return b
}

// WithJobSpecString sets the job spec payload from a string.
func (b *WorkItemRequestBuilder) WithJobSpecString(spec string) *WorkItemRequestBuilder {
	b.req.JobSpec = json.RawMessage(spec)
	return b
}

// Build returns the built CreateWorkItemRequest.
func (b *WorkItemRequestBuilder) Build() *model.CreateWorkItemRequest {
	return b.req
}

// WorkItemBuilder provides a fluent interface for building WorkItem objects for testing.
type WorkItemBuilder struct {
	item *model.WorkItem
}

// NewWorkItem creates a new WorkItemBuilder with sensible defaults for an
// in-flight item.
func NewWorkItem(id string) *WorkItemBuilder {
	now := time.Now().UTC().Truncate(time.Microsecond)
	jobID := "job-" + id
	secret := "test-secret-" + id
	return &WorkItemBuilder{
		item: &model.WorkItem{
			ID:            id,
			Status:        model.StatusAnalyzing,
			ExternalJobID: &jobID,
			Secret:        &secret,
			JobSpec:       json.RawMessage(`{"target": "https://example.com"}`),
			CreatedAt:     now,
			UpdatedAt:     now,
		},
	}
}

// WithStatus sets the work item status.
func (b *WorkItemBuilder) WithStatus(status model.WorkItemStatus) *WorkItemBuilder {
	b.item.Status = status
	return b
}

// WithSecret sets the callback secret.
func (b *WorkItemBuilder) WithSecret(secret string) *WorkItemBuilder {
	b.item.Secret = &secret
	return b
}

// WithoutSecret clears the callback secret and external job id, matching a
// pending item that was never triggered.
func (b *WorkItemBuilder) WithoutSecret() *WorkItemBuilder {
	b.item.Secret = nil
	b.item.ExternalJobID = nil
	b.item.Status = model.StatusPending
	return b
}

// WithExternalJobID sets the external job id.
func (b *WorkItemBuilder) WithExternalJobID(jobID string) *WorkItemBuilder {
	b.item.ExternalJobID = &jobID
	return b
}

// WithCreatedAt sets the creation timestamp.
func (b *WorkItemBuilder) WithCreatedAt(at time.Time) *WorkItemBuilder {
	b.item.CreatedAt = at
	b.item.UpdatedAt = at
	return b
}

// WithWebhookReceivedAt sets the webhook receipt timestamp.
func (b *WorkItemBuilder) WithWebhookReceivedAt(at time.Time) *WorkItemBuilder {
	b.item.WebhookReceivedAt = &at
	return b
}

// WithLastPolledAt sets the poll marker.
func (b *WorkItemBuilder) WithLastPolledAt(at time.Time) *WorkItemBuilder {
	b.item.LastPolledAt = &at
	return b
}

// Build returns the built WorkItem.
func (b *WorkItemBuilder) Build() *model.WorkItem {
	return b.item
}
