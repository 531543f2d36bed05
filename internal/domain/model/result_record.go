package model

import (
	"encoding/json"
	"time"
)

// ResultRecord is the persisted outcome of a completed or failed analysis job.
// Records are immutable once written; corrections require a new work item.
type ResultRecord struct {
	ID          string          `json:"id"           db:"id"`
	WorkItemID  string          `json:"work_item_id" db:"work_item_id"`
	Payload     json.RawMessage `json:"payload"      db:"payload"`
	CompletedAt time.Time       `json:"completed_at" db:"completed_at"`
}

// DeliveryPath identifies which delivery path produced a terminal transition.
type DeliveryPath string

const (
	// DeliveryWebhook marks a transition driven by the inbound callback.
	DeliveryWebhook DeliveryPath = "webhook"
	// DeliveryPolling marks a transition driven by the polling reconciler.
	DeliveryPolling DeliveryPath = "polling"
)
