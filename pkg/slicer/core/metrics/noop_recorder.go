package metrics

import (
	"context"
	"time"

	model "github.com/lamina3d/lamina/pkg/slicer/core/domain/model"
)

// NoOpMetricRecorder is an implementation of MetricRecorder that does nothing.
// It is used when metrics are disabled or during testing.
type NoOpMetricRecorder struct{}

// NewNoOpMetricRecorder creates a new instance of NoOpMetricRecorder.
func NewNoOpMetricRecorder() MetricRecorder {
	return &NoOpMetricRecorder{}
}

// RecordRunStart does nothing.
func (r *NoOpMetricRecorder) RecordRunStart(ctx context.Context, execution *model.RunExecution) {}

// RecordRunEnd does nothing.
func (r *NoOpMetricRecorder) RecordRunEnd(ctx context.Context, execution *model.RunExecution) {}

// RecordStageStart does nothing.
func (r *NoOpMetricRecorder) RecordStageStart(ctx context.Context, stageName string) {}

// RecordStageEnd does nothing.
func (r *NoOpMetricRecorder) RecordStageEnd(ctx context.Context, stageName string, outcome string) {}

// RecordStepInvalidation does nothing.
func (r *NoOpMetricRecorder) RecordStepInvalidation(ctx context.Context, stepName string) {}

// RecordPurgeVolume does nothing.
func (r *NoOpMetricRecorder) RecordPurgeVolume(ctx context.Context, volume float64) {}

// RecordSkirtLoops does nothing.
func (r *NoOpMetricRecorder) RecordSkirtLoops(ctx context.Context, count int) {}

// RecordDuration does nothing.
func (r *NoOpMetricRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string) {
}

var _ MetricRecorder = (*NoOpMetricRecorder)(nil)

// --- NoOpTracer ---

// NoOpTracer is an implementation of Tracer that does nothing.
type NoOpTracer struct{}

// NewNoOpTracer creates a new instance of NoOpTracer.
func NewNoOpTracer() Tracer {
	return &NoOpTracer{}
}

// StartRunSpan returns the context unchanged.
func (t *NoOpTracer) StartRunSpan(ctx context.Context, execution *model.RunExecution) (context.Context, func()) {
	return ctx, func() {}
}

// StartStageSpan returns the context unchanged.
func (t *NoOpTracer) StartStageSpan(ctx context.Context, stageName string) (context.Context, func()) {
	return ctx, func() {}
}

// RecordError does nothing.
func (t *NoOpTracer) RecordError(ctx context.Context, module string, err error) {}

// RecordEvent does nothing.
func (t *NoOpTracer) RecordEvent(ctx context.Context, name string, attributes map[string]interface{}) {
}

var _ Tracer = (*NoOpTracer)(nil)
