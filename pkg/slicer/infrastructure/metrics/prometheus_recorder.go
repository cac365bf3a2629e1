package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"

	model "github.com/lamina3d/lamina/pkg/slicer/core/domain/model"
	metrics "github.com/lamina3d/lamina/pkg/slicer/core/metrics"
	logger "github.com/lamina3d/lamina/pkg/slicer/support/util/logger"
)

// PrometheusRecorder is a Prometheus implementation of the
// metrics.MetricRecorder interface.
type PrometheusRecorder struct {
	registry *prometheus.Registry

	// Run metrics
	runDurationSeconds *prometheus.HistogramVec
	runStatusCounter   *prometheus.CounterVec

	// Stage metrics
	stageStatusCounter *prometheus.CounterVec

	// Step and geometry metrics
	stepInvalidationCounter *prometheus.CounterVec
	purgeVolume             prometheus.Histogram
	skirtLoops              prometheus.Histogram

	// Generic durations
	operationDurationSeconds *prometheus.HistogramVec
}

// NewPrometheusRecorder creates a new instance of PrometheusRecorder.
func NewPrometheusRecorder() metrics.MetricRecorder {
	registry := prometheus.NewRegistry()

	// Register Go standard metrics and process/OS metrics.
	registry.MustRegister(collectors.NewGoCollector())
	registry.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	r := &PrometheusRecorder{
		registry: registry,
		runDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lamina_run_duration_seconds",
			Help:    "Duration of pipeline runs.",
			Buckets: prometheus.DefBuckets,
		}, []string{"pipeline_name", "status"}),
		runStatusCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lamina_run_status_total",
			Help: "Total number of pipeline runs by status.",
		}, []string{"pipeline_name", "status"}),
		stageStatusCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lamina_stage_status_total",
			Help: "Total number of stage executions by outcome.",
		}, []string{"stage_name", "outcome"}),
		stepInvalidationCounter: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "lamina_step_invalidation_total",
			Help: "Total number of discarded cached step results.",
		}, []string{"step_name"}),
		purgeVolume: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "lamina_purge_volume_mm3",
			Help:    "Volume of scheduled purge events.",
			Buckets: prometheus.ExponentialBuckets(5, 2, 8),
		}),
		skirtLoops: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "lamina_skirt_loops",
			Help:    "Number of generated skirt loops per run.",
			Buckets: prometheus.LinearBuckets(0, 5, 10),
		}),
		operationDurationSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "lamina_operation_duration_seconds",
			Help:    "Duration of named internal operations.",
			Buckets: prometheus.DefBuckets,
		}, []string{"name"}),
	}

	// Register all metrics with the registry.
	registry.MustRegister(r.runDurationSeconds)
	registry.MustRegister(r.runStatusCounter)
	registry.MustRegister(r.stageStatusCounter)
	registry.MustRegister(r.stepInvalidationCounter)
	registry.MustRegister(r.purgeVolume)
	registry.MustRegister(r.skirtLoops)
	registry.MustRegister(r.operationDurationSeconds)

	return r
}

// GetRegistry returns the Prometheus registry.
func (r *PrometheusRecorder) GetRegistry() *prometheus.Registry {
	return r.registry
}

// RecordRunStart records the start of a RunExecution.
func (r *PrometheusRecorder) RecordRunStart(ctx context.Context, execution *model.RunExecution) {
	r.runStatusCounter.WithLabelValues(execution.PipelineName, execution.Status.String()).Inc()
	logger.Debugf("Metrics: run '%s' started.", execution.ID)
}

// RecordRunEnd records the end of a RunExecution.
func (r *PrometheusRecorder) RecordRunEnd(ctx context.Context, execution *model.RunExecution) {
	r.runStatusCounter.WithLabelValues(execution.PipelineName, execution.Status.String()).Inc()
	if execution.EndTime == nil {
		return
	}
	duration := execution.EndTime.Sub(execution.StartTime).Seconds()
	r.runDurationSeconds.WithLabelValues(
		execution.PipelineName,
		execution.Status.String(),
	).Observe(duration)
	logger.Debugf("Metrics: run '%s' ended. Duration: %.3fs", execution.ID, duration)
}

// RecordStageStart records the start of one pipeline stage.
func (r *PrometheusRecorder) RecordStageStart(ctx context.Context, stageName string) {
	r.stageStatusCounter.WithLabelValues(stageName, "started").Inc()
}

// RecordStageEnd records the end of one pipeline stage.
func (r *PrometheusRecorder) RecordStageEnd(ctx context.Context, stageName string, outcome string) {
	r.stageStatusCounter.WithLabelValues(stageName, outcome).Inc()
}

// RecordStepInvalidation records that a cached step result was discarded.
func (r *PrometheusRecorder) RecordStepInvalidation(ctx context.Context, stepName string) {
	r.stepInvalidationCounter.WithLabelValues(stepName).Inc()
}

// RecordPurgeVolume records the volume of one scheduled purge event.
func (r *PrometheusRecorder) RecordPurgeVolume(ctx context.Context, volume float64) {
	r.purgeVolume.Observe(volume)
}

// RecordSkirtLoops records the number of generated skirt loops.
func (r *PrometheusRecorder) RecordSkirtLoops(ctx context.Context, count int) {
	r.skirtLoops.Observe(float64(count))
}

// RecordDuration records the execution time of a specific operation.
// Tags beyond the operation name are not exported as labels to keep the
// metric cardinality bounded.
func (r *PrometheusRecorder) RecordDuration(ctx context.Context, name string, duration time.Duration, tags map[string]string) {
	r.operationDurationSeconds.WithLabelValues(name).Observe(duration.Seconds())
}

var _ metrics.MetricRecorder = (*PrometheusRecorder)(nil)
