package pipeline

import (
	"github.com/lamina3d/lamina/pkg/slicer/core/cancel"
	"github.com/lamina3d/lamina/pkg/slicer/core/domain/model"
)

// EntityStage computes one entity-level step. Implementations live outside
// this core (slicing, perimeter generation, infill, supports); the executor
// only schedules them and tracks their status. A stage must poll the token
// at its own safe points and return the cancellation error when it is
// raised.
type EntityStage interface {
	// Step names the entity step this stage computes.
	Step() model.EntityStep
	// Run computes the step for one entity.
	Run(tok *cancel.Token, entity *model.Entity) error
}
