package metrics

import (
	"context"
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	model "github.com/lamina3d/lamina/pkg/slicer/core/domain/model"
	metrics "github.com/lamina3d/lamina/pkg/slicer/core/metrics"
)

// OpenTelemetryTracer is an implementation of metrics.Tracer using
// OpenTelemetry. Span export is configured by the host process through the
// global otel TracerProvider; without one the spans are no-ops.
type OpenTelemetryTracer struct {
	tracer trace.Tracer
}

// NewOpenTelemetryTracer creates a new instance of OpenTelemetryTracer.
func NewOpenTelemetryTracer() metrics.Tracer {
	return &OpenTelemetryTracer{
		tracer: otel.Tracer("github.com/lamina3d/lamina/pkg/slicer"),
	}
}

// StartRunSpan starts a new span for a RunExecution.
func (t *OpenTelemetryTracer) StartRunSpan(ctx context.Context, execution *model.RunExecution) (context.Context, func()) {
	ctx, span := t.tracer.Start(ctx, "pipeline.run",
		trace.WithAttributes(
			attribute.String("lamina.run.id", execution.ID),
			attribute.String("lamina.pipeline.name", execution.PipelineName),
		))
	return ctx, func() {
		span.SetAttributes(attribute.String("lamina.run.status", execution.Status.String()))
		span.End()
	}
}

// StartStageSpan starts a new span for one pipeline stage.
func (t *OpenTelemetryTracer) StartStageSpan(ctx context.Context, stageName string) (context.Context, func()) {
	ctx, span := t.tracer.Start(ctx, "pipeline.stage",
		trace.WithAttributes(attribute.String("lamina.stage.name", stageName)))
	return ctx, func() { span.End() }
}

// RecordError records an error in the current span.
func (t *OpenTelemetryTracer) RecordError(ctx context.Context, module string, err error) {
	span := trace.SpanFromContext(ctx)
	span.RecordError(err, trace.WithAttributes(attribute.String("lamina.module", module)))
	span.SetStatus(codes.Error, err.Error())
}

// RecordEvent records an event in the current span.
func (t *OpenTelemetryTracer) RecordEvent(ctx context.Context, name string, attributes map[string]interface{}) {
	attrs := make([]attribute.KeyValue, 0, len(attributes))
	for k, v := range attributes {
		switch val := v.(type) {
		case string:
			attrs = append(attrs, attribute.String(k, val))
		case bool:
			attrs = append(attrs, attribute.Bool(k, val))
		case int:
			attrs = append(attrs, attribute.Int(k, val))
		case int64:
			attrs = append(attrs, attribute.Int64(k, val))
		case float64:
			attrs = append(attrs, attribute.Float64(k, val))
		default:
			attrs = append(attrs, attribute.String(k, fmt.Sprintf("%v", val)))
		}
	}
	trace.SpanFromContext(ctx).AddEvent(name, trace.WithAttributes(attrs...))
}

var _ metrics.Tracer = (*OpenTelemetryTracer)(nil)
