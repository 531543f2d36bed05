package model

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// AnalysisCallback is the payload delivered by the external runner, either via
// the signed webhook or fetched as an artifact during polling. Only the error
// indicator is interpreted here; everything else is carried through verbatim
// into the ResultRecord payload.
type AnalysisCallback struct {
	WorkItemID string            `json:"workItemId"`
	Error      *string           `json:"error,omitempty"`
	Metadata   *CallbackMetadata `json:"metadata,omitempty"`

	// Raw holds the exact bytes the payload was decoded from, preserved so
	// the stored result is byte-for-byte what the runner delivered.
	Raw json.RawMessage `json:"-"`
}

// CallbackMetadata carries optional runner-side bookkeeping fields.
type CallbackMetadata struct {
	JobID       string     `json:"jobId,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// ParseAnalysisCallback decodes raw callback bytes. The full body is retained
// in Raw regardless of which fields the runner populated.
func ParseAnalysisCallback(raw []byte) (*AnalysisCallback, error) {
	var cb AnalysisCallback
	if err := json.Unmarshal(raw, &cb); err != nil {
		return nil, fmt.Errorf("decode callback payload: %w", err)
	}
	cb.Raw = append(json.RawMessage(nil), raw...)
	return &cb, nil
}

// ReportsError returns true when the runner flagged the job as failed.
func (c *AnalysisCallback) ReportsError() bool {
	return c.Error != nil && strings.TrimSpace(*c.Error) != ""
}

// Outcome maps the presence of the error indicator to a terminal status.
func (c *AnalysisCallback) Outcome() WorkItemStatus {
	if c.ReportsError() {
		return StatusFailed
	}
	return StatusCompleted
}

// RunnerJobStatus is the remote job state reported by the external runner's
// status query.
type RunnerJobStatus string

const (
	// RunnerStatusQueued indicates the job is accepted but not started.
	RunnerStatusQueued RunnerJobStatus = "queued"
	// RunnerStatusInProgress indicates the job is running.
	RunnerStatusInProgress RunnerJobStatus = "in_progress"
	// RunnerStatusCompleted indicates the job finished and an artifact is available.
	RunnerStatusCompleted RunnerJobStatus = "completed"
	// RunnerStatusFailed indicates the runner reports the job failed.
	RunnerStatusFailed RunnerJobStatus = "failed"
	// RunnerStatusCancelled indicates the job was cancelled on the runner side.
	RunnerStatusCancelled RunnerJobStatus = "cancelled"
	// RunnerStatusTimedOut indicates the runner gave up on the job.
	RunnerStatusTimedOut RunnerJobStatus = "timed_out"
)

// ErrUnknownRunnerStatus is returned when the runner reports a status outside
// the documented set.
var ErrUnknownRunnerStatus = errors.New("unknown runner job status")

// Valid returns true if the RunnerJobStatus is one of the documented states.
func (s RunnerJobStatus) Valid() bool {
	switch s {
	case RunnerStatusQueued, RunnerStatusInProgress, RunnerStatusCompleted,
		RunnerStatusFailed, RunnerStatusCancelled, RunnerStatusTimedOut:
		return true
	}
	return false
}

// StillRunning returns true while the remote job has not reached an outcome.
func (s RunnerJobStatus) StillRunning() bool {
	return s == RunnerStatusQueued || s == RunnerStatusInProgress
}

// TerminalFailure returns true for runner states that resolve the item as
// failed without an artifact fetch.
func (s RunnerJobStatus) TerminalFailure() bool {
	return s == RunnerStatusFailed || s == RunnerStatusCancelled || s == RunnerStatusTimedOut
}
