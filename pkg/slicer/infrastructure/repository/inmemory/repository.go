// Package inmemory provides an in-memory implementation of the RunRepository
// interface. It stores run executions in a map, suitable for testing and for
// deployments where run history persistence is not required.
package inmemory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/lamina3d/lamina/pkg/slicer/core/domain/model"
	"github.com/lamina3d/lamina/pkg/slicer/core/domain/repository"
)

// InMemoryRunRepository is an in-memory implementation of the RunRepository
// interface.
type InMemoryRunRepository struct {
	runs map[string]*model.RunExecution
	mu   sync.RWMutex // Mutex to protect concurrent access to the map.
}

// NewInMemoryRunRepository creates and initializes a new instance of
// InMemoryRunRepository.
func NewInMemoryRunRepository() *InMemoryRunRepository {
	return &InMemoryRunRepository{
		runs: make(map[string]*model.RunExecution),
	}
}

// SaveRun persists a new RunExecution.
// It returns an error if a RunExecution with the same ID already exists.
func (r *InMemoryRunRepository) SaveRun(ctx context.Context, run *model.RunExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.runs[run.ID]; exists {
		return fmt.Errorf("RunExecution with ID %s already exists", run.ID)
	}
	cloned := *run
	r.runs[run.ID] = &cloned
	return nil
}

// UpdateRun updates an existing RunExecution.
// It returns an error if the RunExecution with the given ID is not found.
func (r *InMemoryRunRepository) UpdateRun(ctx context.Context, run *model.RunExecution) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.runs[run.ID]; !exists {
		return fmt.Errorf("RunExecution with ID %s not found for update", run.ID)
	}
	cloned := *run
	r.runs[run.ID] = &cloned
	return nil
}

// FindRunByID finds a RunExecution by its ID.
// It returns repository.ErrRunNotFound if the run does not exist.
func (r *InMemoryRunRepository) FindRunByID(ctx context.Context, id string) (*model.RunExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	run, ok := r.runs[id]
	if !ok {
		return nil, repository.ErrRunNotFound
	}
	// Deep copy to prevent external modification of internal state
	cloned := *run
	return &cloned, nil
}

// FindRecentRuns returns up to limit RunExecutions for the given pipeline,
// sorted by CreateTime in descending order (latest first).
func (r *InMemoryRunRepository) FindRecentRuns(ctx context.Context, pipelineName string, limit int) ([]*model.RunExecution, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var runs []*model.RunExecution
	for _, run := range r.runs {
		if run.PipelineName == pipelineName {
			cloned := *run
			runs = append(runs, &cloned)
		}
	}
	sort.Slice(runs, func(i, j int) bool {
		return runs[j].CreateTime.Before(runs[i].CreateTime)
	})
	if limit > 0 && len(runs) > limit {
		runs = runs[:limit]
	}
	return runs, nil
}

// Close releases resources used by the repository.
// As an in-memory repository, it holds no external resources, so this method
// always returns nil.
func (r *InMemoryRunRepository) Close() error {
	return nil
}

var _ repository.RunRepository = (*InMemoryRunRepository)(nil)
