// Package repository defines the persistence interface for pipeline run
// history. Implementations live under infrastructure/repository.
package repository

import (
	"context"
	"errors"

	"github.com/lamina3d/lamina/pkg/slicer/core/domain/model"
)

// ErrRunNotFound is returned when a run execution is not found.
var ErrRunNotFound = errors.New("run execution not found")

// RunRepository stores and retrieves pipeline run executions.
type RunRepository interface {
	// SaveRun persists a new run execution.
	SaveRun(ctx context.Context, run *model.RunExecution) error
	// UpdateRun persists state changes of an existing run execution.
	UpdateRun(ctx context.Context, run *model.RunExecution) error
	// FindRunByID retrieves a run execution by its ID.
	FindRunByID(ctx context.Context, id string) (*model.RunExecution, error)
	// FindRecentRuns returns up to limit run executions, most recent first.
	FindRecentRuns(ctx context.Context, pipelineName string, limit int) ([]*model.RunExecution, error)
	// Close releases resources held by the repository.
	Close() error
}
