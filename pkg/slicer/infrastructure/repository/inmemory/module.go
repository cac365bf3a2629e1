package inmemory

import (
	"go.uber.org/fx"

	repository "github.com/lamina3d/lamina/pkg/slicer/core/domain/repository"
)

// Module is an Fx module that provides InMemoryRunRepository as a
// repository.RunRepository interface.
var Module = fx.Options(
	fx.Provide(
		fx.Annotate(
			NewInMemoryRunRepository,
			fx.As(new(repository.RunRepository)),
		),
	),
)
