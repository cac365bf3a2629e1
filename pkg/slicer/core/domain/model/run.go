package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lamina3d/lamina/pkg/slicer/support/util/exception"
)

// RunStatus represents the state of one pipeline run.
type RunStatus string

const (
	RunStatusStarting  RunStatus = "STARTING"
	RunStatusStarted   RunStatus = "STARTED"
	RunStatusCompleted RunStatus = "COMPLETED"
	RunStatusFailed    RunStatus = "FAILED"
	// RunStatusStopped marks a run that unwound after a cooperative
	// cancellation; the job state stays valid and a retry may follow.
	RunStatusStopped RunStatus = "STOPPED"
)

// String returns the string representation of the RunStatus.
func (s RunStatus) String() string { return string(s) }

// IsFinished checks if the RunStatus represents a finished state.
func (s RunStatus) IsFinished() bool {
	switch s {
	case RunStatusCompleted, RunStatusFailed, RunStatusStopped:
		return true
	default:
		return false
	}
}

// FailureList holds a list of error messages.
type FailureList []string

// Value implements the `driver.Valuer` interface, converting FailureList to a
// JSON string for the run-history store.
func (fl FailureList) Value() (driver.Value, error) {
	if fl == nil {
		return "[]", nil
	}
	data, err := json.Marshal(fl)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

// Scan implements the `sql.Scanner` interface, converting a JSON string to a
// FailureList.
func (fl *FailureList) Scan(value interface{}) error {
	if value == nil {
		*fl = make(FailureList, 0)
		return nil
	}
	var b []byte
	switch v := value.(type) {
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("unsupported Scan type for FailureList: %T", value)
	}
	if len(b) == 0 {
		*fl = make(FailureList, 0)
		return nil
	}
	if err := json.Unmarshal(b, fl); err != nil {
		return fmt.Errorf("failed to unmarshal FailureList JSON: %w", err)
	}
	return nil
}

// RunExecution is a record of one background pipeline run, persisted through
// the RunRepository.
type RunExecution struct {
	ID           string
	PipelineName string
	StartTime    time.Time
	EndTime      *time.Time
	Status       RunStatus
	Failures     FailureList
	// Canceled marks runs that ended through the cancellation token.
	Canceled    bool
	CreateTime  time.Time
	LastUpdated time.Time
	Version     int
}

// NewRunExecution creates a RunExecution in the STARTING state.
func NewRunExecution(pipelineName string) *RunExecution {
	now := time.Now()
	return &RunExecution{
		ID:           uuid.New().String(),
		PipelineName: pipelineName,
		StartTime:    now,
		Status:       RunStatusStarting,
		Failures:     make(FailureList, 0),
		CreateTime:   now,
		LastUpdated:  now,
	}
}

// MarkAsStarted transitions the run to STARTED.
func (r *RunExecution) MarkAsStarted() {
	r.Status = RunStatusStarted
	r.LastUpdated = time.Now()
}

// MarkAsCompleted transitions the run to COMPLETED and stamps the end time.
func (r *RunExecution) MarkAsCompleted() {
	now := time.Now()
	r.Status = RunStatusCompleted
	r.EndTime = &now
	r.LastUpdated = now
}

// MarkAsFailed transitions the run to a terminal state for the given error:
// STOPPED for cooperative cancellations, FAILED otherwise. The error message
// is appended to the failure list.
func (r *RunExecution) MarkAsFailed(err error) {
	now := time.Now()
	if exception.IsCanceled(err) {
		r.Status = RunStatusStopped
		r.Canceled = true
	} else {
		r.Status = RunStatusFailed
	}
	if err != nil {
		r.Failures = append(r.Failures, err.Error())
	}
	r.EndTime = &now
	r.LastUpdated = now
}
