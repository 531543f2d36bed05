package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAnalysisCallback(t *testing.T) {
	t.Run("preserves the raw bytes", func(t *testing.T) {
		raw := []byte(`{"workItemId":"item-1","verdict":"clean","extras":{"a":1}}`)
		cb, err := ParseAnalysisCallback(raw)
		require.NoError(t, err)
		assert.Equal(t, "item-1", cb.WorkItemID)
		assert.Equal(t, string(raw), string(cb.Raw))
	})

	t.Run("rejects malformed json", func(t *testing.T) {
		_, err := ParseAnalysisCallback([]byte(`{"workItemId":`))
		assert.Error(t, err)
	})
}

func TestCallbackOutcome(t *testing.T) {
	t.Run("no error means completed", func(t *testing.T) {
		cb, err := ParseAnalysisCallback([]byte(`{"workItemId":"item-1"}`))
		require.NoError(t, err)
		assert.False(t, cb.ReportsError())
		assert.Equal(t, StatusCompleted, cb.Outcome())
	})

	t.Run("error field means failed", func(t *testing.T) {
		cb, err := ParseAnalysisCallback([]byte(`{"workItemId":"item-1","error":"timeout"}`))
		require.NoError(t, err)
		assert.True(t, cb.ReportsError())
		assert.Equal(t, StatusFailed, cb.Outcome())
	})

	t.Run("blank error string means completed", func(t *testing.T) {
		cb, err := ParseAnalysisCallback([]byte(`{"workItemId":"item-1","error":"  "}`))
		require.NoError(t, err)
		assert.Equal(t, StatusCompleted, cb.Outcome())
	})
}

func TestRunnerJobStatus(t *testing.T) {
	assert.True(t, RunnerStatusQueued.StillRunning())
	assert.True(t, RunnerStatusInProgress.StillRunning())
	assert.False(t, RunnerStatusCompleted.StillRunning())

	assert.True(t, RunnerStatusFailed.TerminalFailure())
	assert.True(t, RunnerStatusCancelled.TerminalFailure())
	assert.True(t, RunnerStatusTimedOut.TerminalFailure())
	assert.False(t, RunnerStatusCompleted.TerminalFailure())

	assert.True(t, RunnerStatusCompleted.Valid())
	assert.False(t, RunnerJobStatus("exploded").Valid())
}
