// Package state implements the step-dependency graph: per-entity and
// job-level status tracking for the fixed set of pipeline steps, with the
// export cascade rule. All reads and writes are serialized by one guard so no
// step transition is ever observable half-completed.
package state

import (
	"sync"

	"github.com/google/uuid"

	"github.com/lamina3d/lamina/pkg/slicer/core/domain/model"
	"github.com/lamina3d/lamina/pkg/slicer/support/util/logger"
)

// Graph tracks StepStatus per (entity-or-job, step). The zero value is not
// usable; construct with NewGraph. Status entries are created lazily in the
// Invalidated state and reset by invalidation, never deleted.
type Graph struct {
	mu       sync.Mutex
	job      map[model.JobStep]model.StepStatus
	entities map[uuid.UUID]map[model.EntityStep]model.StepStatus
}

// NewGraph creates a Graph tracking the given entities.
func NewGraph(entityIDs ...uuid.UUID) *Graph {
	g := &Graph{
		job:      make(map[model.JobStep]model.StepStatus),
		entities: make(map[uuid.UUID]map[model.EntityStep]model.StepStatus),
	}
	for _, id := range entityIDs {
		g.entities[id] = make(map[model.EntityStep]model.StepStatus)
	}
	return g
}

// AddEntity registers an entity after construction. Its steps start
// Invalidated.
func (g *Graph) AddEntity(id uuid.UUID) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if _, ok := g.entities[id]; !ok {
		g.entities[id] = make(map[model.EntityStep]model.StepStatus)
	}
}

// InvalidateJobStep flips a job step back to Invalidated and reports whether
// anything changed. Invalidating any step other than the export step also
// invalidates the export step: export depends transitively on everything.
func (g *Graph) InvalidateJobStep(step model.JobStep) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	changed := g.invalidateJobLocked(step)
	if step != model.StepGCodeExport {
		changed = g.invalidateJobLocked(model.StepGCodeExport) || changed
	}
	return changed
}

// InvalidateEntityStep flips one entity's step back to Invalidated. Sibling
// entities are untouched, but the export step is invalidated because it
// consumes every entity's geometry.
func (g *Graph) InvalidateEntityStep(id uuid.UUID, step model.EntityStep) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	steps, ok := g.entities[id]
	if !ok {
		return false
	}
	changed := false
	if steps[step] != model.StatusInvalidated {
		logger.Debugf("StepGraph: invalidating entity %s step %s", id, step)
		steps[step] = model.StatusInvalidated
		changed = true
	}
	if changed {
		changed = g.invalidateJobLocked(model.StepGCodeExport) || changed
	}
	return changed
}

// InvalidateAll resets every job step and every entity's steps. This is the
// conservative fallback for configuration keys with unmodeled effects.
func (g *Graph) InvalidateAll() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	changed := false
	for _, step := range model.JobSteps {
		changed = g.invalidateJobLocked(step) || changed
	}
	for _, steps := range g.entities {
		for _, step := range model.EntitySteps {
			if steps[step] != model.StatusInvalidated {
				steps[step] = model.StatusInvalidated
				changed = true
			}
		}
	}
	if changed {
		logger.Debugf("StepGraph: all steps invalidated")
	}
	return changed
}

// invalidateJobLocked resets one job step. Callers hold the guard.
func (g *Graph) invalidateJobLocked(step model.JobStep) bool {
	if g.job[step] == model.StatusInvalidated {
		return false
	}
	logger.Debugf("StepGraph: invalidating job step %s", step)
	g.job[step] = model.StatusInvalidated
	return true
}

// IsJobStepDone reports whether a job step is Done.
func (g *Graph) IsJobStepDone(step model.JobStep) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.job[step] == model.StatusDone
}

// IsEntityStepDone reports whether a step is Done on every tracked entity.
// An empty graph is never done.
func (g *Graph) IsEntityStepDone(step model.EntityStep) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if len(g.entities) == 0 {
		return false
	}
	for _, steps := range g.entities {
		if steps[step] != model.StatusDone {
			return false
		}
	}
	return true
}

// IsEntityStepDoneFor reports whether one entity finished a step.
func (g *Graph) IsEntityStepDoneFor(id uuid.UUID, step model.EntityStep) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	steps, ok := g.entities[id]
	return ok && steps[step] == model.StatusDone
}

// SetJobStarted transitions a job step from Invalidated to Started. It
// returns false when the step is already Started or Done, enforcing
// at-most-one concurrent run per step.
func (g *Graph) SetJobStarted(step model.JobStep) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.job[step] != model.StatusInvalidated {
		return false
	}
	g.job[step] = model.StatusStarted
	return true
}

// SetJobDone marks a job step Done. Only the worker that won SetJobStarted
// may call it.
func (g *Graph) SetJobDone(step model.JobStep) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.job[step] = model.StatusDone
}

// SetEntityStarted transitions an entity step to Started under the same
// single-writer gate as SetJobStarted.
func (g *Graph) SetEntityStarted(id uuid.UUID, step model.EntityStep) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	steps, ok := g.entities[id]
	if !ok || steps[step] != model.StatusInvalidated {
		return false
	}
	steps[step] = model.StatusStarted
	return true
}

// SetEntityDone marks an entity step Done.
func (g *Graph) SetEntityDone(id uuid.UUID, step model.EntityStep) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if steps, ok := g.entities[id]; ok {
		steps[step] = model.StatusDone
	}
}

// JobStepStatus returns the current status of a job step.
func (g *Graph) JobStepStatus(step model.JobStep) model.StepStatus {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.job[step]
}

// EntityCount returns the number of tracked entities.
func (g *Graph) EntityCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.entities)
}
