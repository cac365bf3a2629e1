package pipeline

import (
	"go.uber.org/fx"
)

// Module is an Fx module that provides the pipeline runner.
// Executors are built per job through NewExecutor rather than injected,
// since a fresh step graph and cancellation token accompany every job.
var Module = fx.Options(
	fx.Provide(NewRunner),
)
