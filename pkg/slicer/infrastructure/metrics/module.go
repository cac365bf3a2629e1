package metrics

import (
	"go.uber.org/fx"
)

// Module is an Fx module that provides PrometheusRecorder and
// OpenTelemetryTracer in place of the core NoOp fallbacks. The constructors
// already return the core metrics interfaces.
var Module = fx.Options(
	fx.Provide(NewPrometheusRecorder),
	fx.Provide(NewOpenTelemetryTracer),
)
