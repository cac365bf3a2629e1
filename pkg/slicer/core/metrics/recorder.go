package metrics

import (
	"context"
	"time"

	model "github.com/lamina3d/lamina/pkg/slicer/core/domain/model"
)

// MetricRecorder is an abstract interface for recording metrics related to
// pipeline execution.
//
// This interface provides a standardized way to record metrics for run,
// stage and step-level events. This facilitates integration with different
// metrics backends (e.g., Prometheus, OpenTelemetry Metrics).
type MetricRecorder interface {
	// RecordRunStart records the start of a RunExecution.
	//
	// ctx: The context for the operation.
	// execution: Details of the started RunExecution.
	RecordRunStart(ctx context.Context, execution *model.RunExecution)

	// RecordRunEnd records the end of a RunExecution.
	//
	// ctx: The context for the operation.
	// execution: Details of the ended RunExecution.
	RecordRunEnd(ctx context.Context, execution *model.RunExecution)

	// RecordStageStart records the start of one pipeline stage.
	//
	// ctx: The context for the operation.
	// stageName: The name of the started stage.
	RecordStageStart(ctx context.Context, stageName string)

	// RecordStageEnd records the end of one pipeline stage together with its
	// outcome ("done", "failed" or "canceled").
	//
	// ctx: The context for the operation.
	// stageName: The name of the ended stage.
	// outcome: The terminal outcome of the stage.
	RecordStageEnd(ctx context.Context, stageName string, outcome string)

	// RecordStepInvalidation records that a cached step result was discarded.
	//
	// ctx: The context for the operation.
	// stepName: The name of the invalidated step.
	RecordStepInvalidation(ctx context.Context, stepName string)

	// RecordPurgeVolume records the volume of one scheduled purge event.
	//
	// ctx: The context for the operation.
	// volume: The purge volume in cubic millimeters.
	RecordPurgeVolume(ctx context.Context, volume float64)

	// RecordSkirtLoops records the number of generated skirt loops.
	//
	// ctx: The context for the operation.
	// count: The number of loops in the finished first-layer geometry.
	RecordSkirtLoops(ctx context.Context, count int)

	// RecordDuration records the execution time of a specific operation.
	//
	// ctx: The context for the operation.
	// name: The name of the duration to record (e.g., "hull_computation", "export_write").
	// duration: The length of the duration to record.
	// tags: A map of additional tags or attributes to associate with the duration.
	RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string)
}
