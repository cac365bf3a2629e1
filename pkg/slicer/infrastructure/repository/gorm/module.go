package gorm

import (
	"go.uber.org/fx"

	repository "github.com/lamina3d/lamina/pkg/slicer/core/domain/repository"
)

// Module is an Fx module that provides GormRunRepository as a
// repository.RunRepository interface. The application must import the driver
// subpackage matching its configured database type.
var Module = fx.Options(
	fx.Provide(
		fx.Annotate(
			NewGormRunRepository,
			fx.As(new(repository.RunRepository)),
		),
	),
)
