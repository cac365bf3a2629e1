package metrics

import (
	"go.uber.org/fx"
)

// Module is an Fx module that wires the no-op recorder and tracer. Include it
// only when no real implementation module (e.g. the Prometheus/OpenTelemetry
// one under infrastructure/metrics) is part of the application graph.
var Module = fx.Options(
	fx.Provide(NewNoOpMetricRecorder),
	fx.Provide(NewNoOpTracer),
)
