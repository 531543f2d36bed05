// Package model defines the core data types and structures used throughout the analysis coordination system.
package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// WorkItemStatus represents the current lifecycle state of a work item.
type WorkItemStatus string

const (
	// StatusPending indicates a work item that has been created but not yet triggered.
	StatusPending WorkItemStatus = "pending"
	// StatusAnalyzing indicates an item whose analysis job is running with the external runner.
	StatusAnalyzing WorkItemStatus = "analyzing"
	// StatusCompleted indicates the analysis finished and a result was recorded.
	StatusCompleted WorkItemStatus = "completed"
	// StatusFailed indicates the analysis ended with a reported error.
	StatusFailed WorkItemStatus = "failed"
)

// Valid returns true if the WorkItemStatus is valid.
func (s WorkItemStatus) Valid() bool {
	return s == StatusPending || s == StatusAnalyzing || s == StatusCompleted || s == StatusFailed
}

// Terminal returns true for statuses that permit no further transitions.
func (s WorkItemStatus) Terminal() bool {
	return s == StatusCompleted || s == StatusFailed
}

// UnmarshalText implements encoding.TextUnmarshaler for WorkItemStatus to allow env parsing.
func (s *WorkItemStatus) UnmarshalText(text []byte) error {
	v := WorkItemStatus(strings.ToLower(strings.TrimSpace(string(text))))
	if v.Valid() {
		*s = v
		return nil
	}
	return fmt.Errorf("invalid WorkItemStatus: %q", v)
}

// ErrNoSecret is returned when an item has no callback secret configured.
var ErrNoSecret = errors.New("work item has no callback secret")

// WorkItem tracks one triggered analysis job from creation to its terminal outcome.
// Secret is never serialized into API responses.
type WorkItem struct {
	ID                string          `json:"id"                            db:"id"`
	Status            WorkItemStatus  `json:"status"                        db:"status"`
	ExternalJobID     *string         `json:"external_job_id,omitempty"     db:"external_job_id"`
	Secret            *string         `json:"-"                             db:"secret"`
	JobSpec           json.RawMessage `json:"job_spec,omitempty"            db:"job_spec"`
	CreatedAt         time.Time       `json:"created_at"                    db:"created_at"`
	UpdatedAt         time.Time       `json:"updated_at"                    db:"updated_at"`
	WebhookReceivedAt *time.Time      `json:"webhook_received_at,omitempty" db:"webhook_received_at"`
	LastPolledAt      *time.Time      `json:"last_polled_at,omitempty"      db:"last_polled_at"`
}

// HasSecret reports whether a non-empty callback secret is configured.
func (w *WorkItem) HasSecret() bool {
	return w.Secret != nil && *w.Secret != ""
}

// CreateWorkItemRequest represents a request to register a new work item.
// ID is optional; when empty a UUID is generated.
type CreateWorkItemRequest struct {
	ID      string          `json:"id,omitempty"`
	JobSpec json.RawMessage `json:"job_spec"`
}

// Validate validates the CreateWorkItemRequest fields.
func (r *CreateWorkItemRequest) Validate() error {
	if r.ID != "" {
		if _, err := uuid.Parse(r.ID); err != nil {
			return errors.New("id must be a valid UUID")
		}
	}
	if len(r.JobSpec) == 0 {
		return errors.New("job_spec is required")
	}
	if !json.Valid(r.JobSpec) {
		return errors.New("job_spec must be valid JSON")
	}
	return nil
}

// TriggerParams carries the attributes attached when an item moves from
// pending to analyzing.
type TriggerParams struct {
	ID            string
	ExternalJobID string
	Secret        string
}

// WorkItemStatusResponse is the read model returned by the status endpoint.
type WorkItemStatusResponse struct {
	ID            string         `json:"id"`
	Status        WorkItemStatus `json:"status"`
	ExternalJobID *string        `json:"external_job_id,omitempty"`
	CreatedAt     time.Time      `json:"created_at"`
	LastPolledAt  *time.Time     `json:"last_polled_at,omitempty"`
}

// StatusView projects a WorkItem into its external read model, dropping the secret.
func (w *WorkItem) StatusView() *WorkItemStatusResponse {
	return &WorkItemStatusResponse{
		ID:            w.ID,
		Status:        w.Status,
		ExternalJobID: w.ExternalJobID,
		CreatedAt:     w.CreatedAt,
		LastPolledAt:  w.LastPolledAt,
	}
}
