package metrics

import (
	"context"

	model "github.com/lamina3d/lamina/pkg/slicer/core/domain/model"
)

// Tracer is an abstract interface for distributed tracing.
// This interface provides functionality to integrate with tracing systems
// like OpenTelemetry, enabling visualization of run and stage execution
// flows.
type Tracer interface {
	// StartRunSpan starts a Span for a RunExecution.
	//
	// ctx: The parent context.
	// execution: The RunExecution to be traced.
	//
	// Returns: A context with the new Span set, and a function to end the
	//          Span. It is recommended to call the returned function in a
	//          defer statement.
	StartRunSpan(ctx context.Context, execution *model.RunExecution) (context.Context, func())

	// StartStageSpan starts a Span for one pipeline stage.
	//
	// ctx: The parent context (typically a context with a run Span).
	// stageName: The name of the stage to be traced.
	//
	// Returns: A context with the new Span set, and a function to end the
	//          Span.
	StartStageSpan(ctx context.Context, stageName string) (context.Context, func())

	// RecordError records an error in the current Span.
	//
	// ctx: The context with the current Span.
	// module: The name of the module or component where the error occurred.
	// err: The error to record.
	RecordError(ctx context.Context, module string, err error)

	// RecordEvent records an event in the current Span.
	//
	// ctx: The context with the current Span.
	// name: The name of the event (e.g., "skirt_hull_cached", "purge_scheduled").
	// attributes: Additional attributes to associate with the event.
	RecordEvent(ctx context.Context, name string, attributes map[string]interface{})
}
