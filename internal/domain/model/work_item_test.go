package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestWorkItemStatus(t *testing.T) {
	t.Run("valid statuses", func(t *testing.T) {
		for _, s := range []WorkItemStatus{StatusPending, StatusAnalyzing, StatusCompleted, StatusFailed} {
			assert.True(t, s.Valid(), s)
		}
		assert.False(t, WorkItemStatus("running").Valid())
		assert.False(t, WorkItemStatus("").Valid())
	})

	t.Run("terminal statuses", func(t *testing.T) {
		assert.False(t, StatusPending.Terminal())
		assert.False(t, StatusAnalyzing.Terminal())
		assert.True(t, StatusCompleted.Terminal())
		assert.True(t, StatusFailed.Terminal())
	})

	t.Run("unmarshal rejects unknown values", func(t *testing.T) {
		var s WorkItemStatus
		require.NoError(t, s.UnmarshalText([]byte("analyzing")))
		assert.Equal(t, StatusAnalyzing, s)
		assert.Error(t, s.UnmarshalText([]byte("bogus")))
	})
}

func TestCreateWorkItemRequestValidate(t *testing.T) {
	t.Run("job spec is required", func(t *testing.T) {
		req := &CreateWorkItemRequest{}
		assert.Error(t, req.Validate())
	})

	t.Run("job spec must be valid json", func(t *testing.T) {
		req := &CreateWorkItemRequest{JobSpec: json.RawMessage(`{"broken":`)}
		assert.Error(t, req.Validate())
	})

	t.Run("explicit id must be a uuid", func(t *testing.T) {
		req := &CreateWorkItemRequest{ID: "not-a-uuid", JobSpec: json.RawMessage(`{}`)}
		assert.Error(t, req.Validate())

		req.ID = "b3aef1b2-7096-4ee1-95a3-8a6d312bb5e3"
		assert.NoError(t, req.Validate())
	})
}

func TestStatusView(t *testing.T) {
	secret := "super-secret"
	jobID := "job-1"
	receivedAt := time.Now().UTC()
	item := &WorkItem{
		ID:                "item-1",
		Status:            StatusCompleted,
		ExternalJobID:     &jobID,
		Secret:            &secret,
		WebhookReceivedAt: &receivedAt,
	}

	view := item.StatusView()
	raw, err := json.Marshal(view)
	require.NoError(t, err)
	assert.NotContains(t, string(raw), secret)
	assert.Equal(t, StatusCompleted, view.Status)
}

func TestHasSecret(t *testing.T) {
	item := &WorkItem{}
	assert.False(t, item.HasSecret())

	empty := ""
	item.Secret = &empty
	assert.False(t, item.HasSecret())

	secret := "x"
	item.Secret = &secret
	assert.True(t, item.HasSecret())
}
