package pipeline

import (
	"context"

	model "github.com/lamina3d/lamina/pkg/slicer/core/domain/model"
	repository "github.com/lamina3d/lamina/pkg/slicer/core/domain/repository"
	metrics "github.com/lamina3d/lamina/pkg/slicer/core/metrics"
	logger "github.com/lamina3d/lamina/pkg/slicer/support/util/logger"
)

// Runner wraps one Executor.Process call with the RunExecution lifecycle:
// the run record is persisted before and after processing, and run-level
// metrics and spans bracket the whole attempt.
type Runner struct {
	runRepository repository.RunRepository
	recorder      metrics.MetricRecorder
	tracer        metrics.Tracer
}

// NewRunner creates a Runner. Recorder and tracer fall back to no-ops when
// nil.
func NewRunner(repo repository.RunRepository, recorder metrics.MetricRecorder, tracer metrics.Tracer) *Runner {
	if recorder == nil {
		recorder = metrics.NewNoOpMetricRecorder()
	}
	if tracer == nil {
		tracer = metrics.NewNoOpTracer()
	}
	return &Runner{
		runRepository: repo,
		recorder:      recorder,
		tracer:        tracer,
	}
}

// Run executes the pipeline once and returns the finished run record. The
// record always reaches a terminal status: COMPLETED, FAILED, or STOPPED for
// cooperative cancellations.
func (r *Runner) Run(ctx context.Context, pipelineName string, executor *Executor) (*model.RunExecution, error) {
	run := model.NewRunExecution(pipelineName)
	if err := r.runRepository.SaveRun(ctx, run); err != nil {
		logger.Errorf("Runner: failed to save run (ID: %s): %v", run.ID, err)
		return nil, err
	}

	run.MarkAsStarted()
	if err := r.runRepository.UpdateRun(ctx, run); err != nil {
		logger.Errorf("Runner: failed to update run (ID: %s) status to STARTED: %v", run.ID, err)
		// Not fatal; the terminal-status update below will retry the write.
	}

	r.recorder.RecordRunStart(ctx, run)
	runCtx, endSpan := r.tracer.StartRunSpan(ctx, run)

	err := executor.Process(runCtx, run.ID)

	if err != nil {
		run.MarkAsFailed(err)
		r.tracer.RecordError(runCtx, "pipeline", err)
	} else if !run.Status.IsFinished() {
		run.MarkAsCompleted()
	}
	endSpan()
	r.recorder.RecordRunEnd(ctx, run)

	if updateErr := r.runRepository.UpdateRun(ctx, run); updateErr != nil {
		logger.Errorf("Runner: failed to update final run (ID: %s) state: %v", run.ID, updateErr)
		// Persistence failures do not override the pipeline outcome.
	}

	logger.Infof("Runner: run %s finished with status %s", run.ID, run.Status)
	return run, err
}
