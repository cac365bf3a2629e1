package model

// JobStep is a job-level unit of pipeline work with cacheable status.
type JobStep string

const (
	// StepWipeTower plans multi-extruder purge events across layers.
	StepWipeTower JobStep = "WIPE_TOWER"
	// StepSkirtBrim builds skirt loops and the first-layer boundary.
	StepSkirtBrim JobStep = "SKIRT_BRIM"
	// StepGCodeExport is the final export step. Every other step feeds it, so
	// invalidating anything else invalidates it too.
	StepGCodeExport JobStep = "GCODE_EXPORT"
)

// JobSteps lists all job-level steps in dependency order.
var JobSteps = []JobStep{StepWipeTower, StepSkirtBrim, StepGCodeExport}

// String returns the string representation of the JobStep.
func (s JobStep) String() string { return string(s) }

// EntityStep is an entity-level unit of pipeline work. The geometry
// generation behind each of these is delegated to opaque stage callables;
// only their status matters to this core.
type EntityStep string

const (
	StepSlice                    EntityStep = "SLICE"
	StepPerimeters               EntityStep = "PERIMETERS"
	StepInfill                   EntityStep = "INFILL"
	StepSupportMaterial          EntityStep = "SUPPORT_MATERIAL"
	StepEstimateCurledExtrusions EntityStep = "ESTIMATE_CURLED_EXTRUSIONS"
)

// EntitySteps lists all entity-level steps in dependency order.
var EntitySteps = []EntityStep{
	StepSlice,
	StepPerimeters,
	StepInfill,
	StepSupportMaterial,
	StepEstimateCurledExtrusions,
}

// String returns the string representation of the EntityStep.
func (s EntityStep) String() string { return string(s) }

// StepStatus is the cache state of one (entity-or-job, step) pair.
type StepStatus int

const (
	// StatusInvalidated marks a step whose cached result is stale or absent.
	StatusInvalidated StepStatus = iota
	// StatusStarted marks a step currently being computed by the worker.
	StatusStarted
	// StatusDone marks a step whose result is consistent with the
	// configuration snapshot that produced it.
	StatusDone
)

// String returns a readable form for logs.
func (s StepStatus) String() string {
	switch s {
	case StatusStarted:
		return "STARTED"
	case StatusDone:
		return "DONE"
	default:
		return "INVALIDATED"
	}
}
