// Package pipeline drives the computation stages of a job in fixed
// dependency order: per-entity geometry steps, purge tower planning, skirt
// and first-layer geometry, export. Each stage is a no-op when its step is
// already Done, and cooperative cancellation between sub-phases leaves
// aborted steps not-Done so a retry reruns them.
package pipeline

import (
	"context"
	"sync"
	"time"

	"github.com/lamina3d/lamina/pkg/slicer/core/cancel"
	"github.com/lamina3d/lamina/pkg/slicer/core/domain/model"
	"github.com/lamina3d/lamina/pkg/slicer/core/metrics"
	"github.com/lamina3d/lamina/pkg/slicer/core/state"
	"github.com/lamina3d/lamina/pkg/slicer/engine/export"
	"github.com/lamina3d/lamina/pkg/slicer/engine/skirt"
	"github.com/lamina3d/lamina/pkg/slicer/engine/wipetower"
	"github.com/lamina3d/lamina/pkg/slicer/support/util/exception"
	"github.com/lamina3d/lamina/pkg/slicer/support/util/logger"
)

// Executor walks the not-done steps of one job. It is driven by a single
// background worker; the foreground actor may concurrently invalidate steps
// or query status through the shared Graph and raise the shared Token.
type Executor struct {
	job      *model.Job
	graph    *state.Graph
	token    *cancel.Token
	stages   map[model.EntityStep]EntityStage
	absorber wipetower.WipingAbsorber
	exporter *export.Exporter
	recorder metrics.MetricRecorder
	tracer   metrics.Tracer

	// mu guards the stage results below; they are rebuilt from empty every
	// time their owning step reruns.
	mu         sync.Mutex
	layerTools []model.LayerTools
	plan       *wipetower.Plan
	geom       *model.FirstLayerGeometry
}

// ExecutorParams collects the Executor dependencies. EntityStages, Absorber,
// Recorder and Tracer are optional.
type ExecutorParams struct {
	Job          *model.Job
	Graph        *state.Graph
	Token        *cancel.Token
	EntityStages []EntityStage
	Absorber     wipetower.WipingAbsorber
	Exporter     *export.Exporter
	Recorder     metrics.MetricRecorder
	Tracer       metrics.Tracer
}

// NewExecutor creates an Executor. Missing optional collaborators fall back
// to no-ops.
func NewExecutor(p ExecutorParams) *Executor {
	stages := make(map[model.EntityStep]EntityStage, len(p.EntityStages))
	for _, stage := range p.EntityStages {
		stages[stage.Step()] = stage
	}
	recorder := p.Recorder
	if recorder == nil {
		recorder = metrics.NewNoOpMetricRecorder()
	}
	tracer := p.Tracer
	if tracer == nil {
		tracer = metrics.NewNoOpTracer()
	}
	return &Executor{
		job:      p.Job,
		graph:    p.Graph,
		token:    p.Token,
		stages:   stages,
		absorber: p.Absorber,
		exporter: p.Exporter,
		recorder: recorder,
		tracer:   tracer,
	}
}

// Process runs every not-done stage in dependency order. On cancellation or
// failure the current stage's step stays not-Done and its partial results
// are discarded, so the next attempt recomputes it.
func (e *Executor) Process(ctx context.Context, runID string) error {
	logger.Infof("pipeline: starting processing for run %s", runID)

	for _, step := range model.EntitySteps {
		if err := e.processEntityStep(ctx, step); err != nil {
			return err
		}
	}

	if err := e.runJobStage(ctx, model.StepWipeTower, e.makeWipeTower); err != nil {
		return err
	}

	if err := e.runJobStage(ctx, model.StepSkirtBrim, e.makeSkirtBrim); err != nil {
		return err
	}

	if err := e.runJobStage(ctx, model.StepGCodeExport, func(context.Context) error {
		e.mu.Lock()
		geom, plan := e.geom, e.plan
		e.mu.Unlock()
		return e.exporter.Export(e.token, e.job, geom, plan, runID)
	}); err != nil {
		return err
	}

	logger.Infof("pipeline: processing finished for run %s", runID)
	return nil
}

// processEntityStep runs one entity step across all entities that have not
// computed it yet.
func (e *Executor) processEntityStep(ctx context.Context, step model.EntityStep) error {
	stage, ok := e.stages[step]
	for _, entity := range e.job.Entities {
		if err := e.token.Check(); err != nil {
			return err
		}
		if e.graph.IsEntityStepDoneFor(entity.ID, step) {
			continue
		}
		if !e.graph.SetEntityStarted(entity.ID, step) {
			return exception.NewSliceErrorf("pipeline", "entity step %s is already running for %s", step, entity.Name)
		}
		if ok {
			e.recorder.RecordStageStart(ctx, step.String())
			if err := stage.Run(e.token, entity); err != nil {
				// Reset the aborted step so the next attempt reruns it; its
				// partial geometry must not be trusted.
				e.graph.InvalidateEntityStep(entity.ID, step)
				e.recorder.RecordStepInvalidation(ctx, step.String())
				e.recorder.RecordStageEnd(ctx, step.String(), outcomeOf(err))
				e.tracer.RecordError(ctx, "pipeline", err)
				return err
			}
			e.recorder.RecordStageEnd(ctx, step.String(), "done")
		}
		// Without a registered stage the entity's precomputed geometry
		// stands as the step result.
		e.graph.SetEntityDone(entity.ID, step)
	}
	return nil
}

// runJobStage wraps one job-level stage with the started/done gate, metrics
// and tracing.
func (e *Executor) runJobStage(ctx context.Context, step model.JobStep, fn func(context.Context) error) error {
	if e.graph.IsJobStepDone(step) {
		return nil
	}
	if !e.graph.SetJobStarted(step) {
		return exception.NewSliceErrorf("pipeline", "step %s is already running", step)
	}
	e.recorder.RecordStageStart(ctx, step.String())
	stageCtx, end := e.tracer.StartStageSpan(ctx, step.String())
	start := time.Now()
	err := fn(stageCtx)
	end()
	e.recorder.RecordDuration(stageCtx, step.String(), time.Since(start), map[string]string{
		"outcome": outcomeOfNil(err),
	})
	if err != nil {
		// Reset the aborted step so a retry reruns it from scratch.
		e.graph.InvalidateJobStep(step)
		e.recorder.RecordStepInvalidation(stageCtx, step.String())
		e.recorder.RecordStageEnd(stageCtx, step.String(), outcomeOf(err))
		if !exception.IsCanceled(err) {
			e.tracer.RecordError(stageCtx, "pipeline", err)
		}
		return err
	}
	e.graph.SetJobDone(step)
	e.recorder.RecordStageEnd(stageCtx, step.String(), "done")
	return nil
}

// makeWipeTower rebuilds the layer ordering and, when a tower is printed,
// the purge plan. Partial results are cleared at entry.
func (e *Executor) makeWipeTower(ctx context.Context) error {
	e.mu.Lock()
	e.layerTools = nil
	e.plan = nil
	e.mu.Unlock()

	tools := BuildLayerTools(e.job)

	if e.job.HasWipeTower() {
		plan, err := wipetower.NewPlanner(e.job.Config, e.absorber).Plan(e.token, tools)
		if err != nil {
			return err
		}
		for _, ev := range plan.Events {
			e.recorder.RecordPurgeVolume(ctx, ev.Volume)
		}
		e.tracer.RecordEvent(ctx, "purge_plan_ready", map[string]interface{}{
			"tool_changes": plan.ToolChanges,
			"total_volume": plan.TotalPurgeVolume(),
		})
		e.mu.Lock()
		e.plan = plan
		e.mu.Unlock()
	} else if !e.job.Config.CompleteObjects {
		if len(allExtruders(tools)) == 0 {
			return exception.NewSliceError("pipeline",
				"The print is empty. The model is not printable with current print settings.", nil)
		}
	}

	e.mu.Lock()
	e.layerTools = tools
	e.mu.Unlock()
	return nil
}

// makeSkirtBrim rebuilds the first-layer geometry around the objects and the
// purge tower.
func (e *Executor) makeSkirtBrim(ctx context.Context) error {
	e.mu.Lock()
	e.geom = nil
	plan := e.plan
	e.mu.Unlock()

	corners := wipetower.FirstLayerCorners(e.job.Config, plan)
	geom, err := skirt.NewBuilder(e.job, corners).Build(e.token)
	if err != nil {
		return err
	}
	e.recorder.RecordSkirtLoops(ctx, len(geom.Skirt))

	e.mu.Lock()
	e.geom = geom
	e.mu.Unlock()
	return nil
}

// FirstLayerGeometry returns the result of the skirt stage, nil until it
// completes.
func (e *Executor) FirstLayerGeometry() *model.FirstLayerGeometry {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.geom
}

// PurgePlan returns the result of the purge tower stage, nil until it
// completes or when no tower is printed.
func (e *Executor) PurgePlan() *wipetower.Plan {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.plan
}

// LayerTools returns the derived layer ordering, nil until the tower stage
// completes.
func (e *Executor) LayerTools() []model.LayerTools {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.layerTools
}

func outcomeOf(err error) string {
	if exception.IsCanceled(err) {
		return "canceled"
	}
	return "failed"
}

func outcomeOfNil(err error) string {
	if err == nil {
		return "done"
	}
	return outcomeOf(err)
}

// allExtruders returns the extruders referenced by the layer ordering.
func allExtruders(tools []model.LayerTools) []int {
	var out []int
	for _, lt := range tools {
		out = appendUnique(out, lt.Extruders...)
	}
	return out
}
