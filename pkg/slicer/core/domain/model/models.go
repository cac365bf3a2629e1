// Package model defines the domain objects of the lamina slicing pipeline:
// the job with its entities and placed instances, per-layer geometry inputs,
// the first-layer outputs (skirt loops, purge events) and the run-history
// records persisted by the repository layer.
package model

import (
	"sort"

	"github.com/google/uuid"

	"github.com/lamina3d/lamina/pkg/slicer/core/config"
	"github.com/lamina3d/lamina/pkg/slicer/support/geometry"
)

// Instance is a placement of an Entity's footprint within the job: a shift of
// the footprint plus a rotation about Z relative to the footprint's reference
// orientation.
type Instance struct {
	Shift     geometry.Point
	RotationZ float64 // radians
}

// LayerSlice is one computed layer of an entity: its print height and the
// outer contours of the sliced geometry at that height.
type LayerSlice struct {
	PrintZ   float64
	Contours []geometry.Polygon
}

// SlicingParams are the layering parameters derived for one entity.
type SlicingParams struct {
	FirstLayerHeight float64
	LayerHeight      float64
	RaftLayers       int
	// Gap distances between object and support, both directions.
	GapObjectSupport float64
	GapSupportObject float64
}

// RegionConfig holds the per-region overrides checked by the validator.
// A zero extrusion width means "auto" and is always valid.
type RegionConfig struct {
	PerimeterExtrusionWidth         float64 `yaml:"perimeter_extrusion_width"`
	ExternalPerimeterExtrusionWidth float64 `yaml:"external_perimeter_extrusion_width"`
	InfillExtrusionWidth            float64 `yaml:"infill_extrusion_width"`
	SolidInfillExtrusionWidth       float64 `yaml:"solid_infill_extrusion_width"`
	TopInfillExtrusionWidth         float64 `yaml:"top_infill_extrusion_width"`
	// 0-based extruder assignments.
	PerimeterExtruder int `yaml:"perimeter_extruder"`
	InfillExtruder    int `yaml:"infill_extruder"`
}

// Region is one material region of an entity.
type Region struct {
	Config RegionConfig
}

// EntityConfig holds the per-entity overrides consumed by this core.
// Extruder fields use the configuration convention: 0 means "current tool",
// positive values are 1-based extruder numbers.
type EntityConfig struct {
	LayerHeight                      float64             `yaml:"layer_height"`
	ExtrusionWidth                   float64             `yaml:"extrusion_width"`
	SupportMaterial                  bool                `yaml:"support_material"`
	SupportMaterialExtruder          int                 `yaml:"support_material_extruder"`
	SupportMaterialInterfaceExtruder int                 `yaml:"support_material_interface_extruder"`
	SupportMaterialContactDistance   float64             `yaml:"support_material_contact_distance"`
	SupportMaterialSynchronizeLayers bool                `yaml:"support_material_synchronize_layers"`
	SupportMaterialStyle             config.SupportStyle `yaml:"support_material_style"`
	SupportMaterialExtrusionWidth    float64             `yaml:"support_material_extrusion_width"`
	RaftLayers                       int                 `yaml:"raft_layers"`
	BrimWidth                        float64             `yaml:"brim_width"`
}

// Entity is one printable object within a job. Its internal geometry is
// produced by out-of-scope stage callables; this core consumes the computed
// layers, the 2D footprint and the placements.
type Entity struct {
	ID     uuid.UUID
	Name   string
	Config EntityConfig

	Regions []*Region

	// Footprint is the 2D convex hull of the entity at its reference
	// orientation, centered the same way Instance shifts expect.
	Footprint geometry.Polygon

	// Layers and SupportLayers are ordered by PrintZ ascending.
	Layers        []LayerSlice
	SupportLayers []LayerSlice

	Instances []Instance

	Slicing SlicingParams

	// LayerHeightProfile is the custom variable-layer-height table as
	// alternating (z, height) samples; empty when no custom layering is used.
	LayerHeightProfile []float64

	// SupportEnforcers marks that the model carries painted support
	// enforcers even if support generation is disabled.
	SupportEnforcers bool
}

// NewEntity creates an Entity with a fresh ID.
func NewEntity(name string) *Entity {
	return &Entity{ID: uuid.New(), Name: name}
}

// Height returns the entity's total print height.
func (e *Entity) Height() float64 {
	if len(e.Layers) == 0 {
		return 0
	}
	return e.Layers[len(e.Layers)-1].PrintZ
}

// LayerCount returns the number of computed object layers.
func (e *Entity) LayerCount() int { return len(e.Layers) }

// HasCustomLayering reports whether a variable layer-height table applies.
func (e *Entity) HasCustomLayering() bool { return len(e.LayerHeightProfile) > 0 }

// HasSupportMaterial reports whether support generation is enabled.
func (e *Entity) HasSupportMaterial() bool { return e.Config.SupportMaterial }

// HasRaft reports whether the entity prints on a raft.
func (e *Entity) HasRaft() bool { return e.Config.RaftLayers > 0 }

// HasBrim reports whether the entity requests a brim.
func (e *Entity) HasBrim() bool { return e.Config.BrimWidth > 0 }

// Job owns the ordered collection of entities plus one shared configuration
// snapshot. Entities are created at configuration-apply time and destroyed
// together with the job.
type Job struct {
	ID       uuid.UUID
	Entities []*Entity
	Config   *config.PrintConfig
}

// NewJob creates an empty job bound to a configuration snapshot.
func NewJob(cfg *config.PrintConfig) *Job {
	return &Job{ID: uuid.New(), Config: cfg}
}

// TotalInstances returns the number of placed copies across all entities.
func (j *Job) TotalInstances() int {
	n := 0
	for _, e := range j.Entities {
		n += len(e.Instances)
	}
	return n
}

// ObjectExtruders returns the sorted 0-based indices of extruders printing
// object regions.
func (j *Job) ObjectExtruders() []int {
	set := map[int]struct{}{}
	for _, e := range j.Entities {
		for _, r := range e.Regions {
			set[r.Config.PerimeterExtruder] = struct{}{}
			set[r.Config.InfillExtruder] = struct{}{}
		}
	}
	return sortedKeys(set)
}

// SupportExtruders returns the sorted 0-based indices of extruders printing
// support material. An extruder value of 0 in the entity configuration means
// "current tool"; in that case all object extruders are included, as any of
// them may end up printing the supports.
func (j *Job) SupportExtruders() []int {
	set := map[int]struct{}{}
	usesCurrent := false
	numExtruders := len(j.Config.NozzleDiameter)
	for _, e := range j.Entities {
		if !e.HasSupportMaterial() {
			continue
		}
		for _, cfgExtruder := range []int{e.Config.SupportMaterialExtruder, e.Config.SupportMaterialInterfaceExtruder} {
			if cfgExtruder == 0 {
				usesCurrent = true
				continue
			}
			i := cfgExtruder - 1
			if i >= numExtruders {
				i = 0
			}
			set[i] = struct{}{}
		}
	}
	if usesCurrent {
		for _, i := range j.ObjectExtruders() {
			set[i] = struct{}{}
		}
	}
	return sortedKeys(set)
}

// Extruders returns the sorted 0-based indices of all used extruders.
func (j *Job) Extruders() []int {
	set := map[int]struct{}{}
	for _, i := range j.ObjectExtruders() {
		set[i] = struct{}{}
	}
	for _, i := range j.SupportExtruders() {
		set[i] = struct{}{}
	}
	return sortedKeys(set)
}

// SupportUsesCurrentExtruder reports whether any entity defers its support or
// support-interface extruder to the current tool.
func (j *Job) SupportUsesCurrentExtruder() bool {
	for _, e := range j.Entities {
		if e.HasSupportMaterial() &&
			(e.Config.SupportMaterialExtruder == 0 || e.Config.SupportMaterialInterfaceExtruder == 0) {
			return true
		}
	}
	return false
}

// HasSupportMaterial reports whether any entity generates supports.
func (j *Job) HasSupportMaterial() bool {
	for _, e := range j.Entities {
		if e.HasSupportMaterial() {
			return true
		}
	}
	return false
}

// HasBrim reports whether any entity requests a brim.
func (j *Job) HasBrim() bool {
	for _, e := range j.Entities {
		if e.HasBrim() {
			return true
		}
	}
	return false
}

// HasCustomLayering reports whether any entity uses a variable layer-height
// table.
func (j *Job) HasCustomLayering() bool {
	for _, e := range j.Entities {
		if e.HasCustomLayering() {
			return true
		}
	}
	return false
}

// HasWipeTower reports whether a purge tower will be printed.
func (j *Job) HasWipeTower() bool {
	return !j.Config.SpiralVase && j.Config.WipeTower && len(j.Config.NozzleDiameter) > 1
}

// HasInfiniteSkirt reports whether the skirt must follow the full print
// height (draft shield mode).
func (j *Job) HasInfiniteSkirt() bool {
	return j.Config.DraftShield == config.DraftShieldEnabled && j.Config.Skirts > 0
}

// HasSkirt reports whether any skirt is requested.
func (j *Job) HasSkirt() bool {
	return (j.Config.SkirtHeight > 0 && j.Config.Skirts > 0) || j.HasInfiniteSkirt()
}

func sortedKeys(set map[int]struct{}) []int {
	out := make([]int, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Ints(out)
	return out
}

// LayerTools is a per-print-height record of extruder usage, produced by the
// external tool-ordering collaborator and consumed read-only here.
type LayerTools struct {
	PrintZ float64
	// LayerHeight is the tower slice height at this level.
	LayerHeight float64
	// Extruders lists the extruders used on this layer in usage order.
	Extruders []int
	HasWipeTower bool
	HasObject    bool
	HasSupport   bool
	// WipeTowerPartitions is the number of tower partitions required at this
	// layer; zero means the tower is finished below this level.
	WipeTowerPartitions int
}

// SkirtLoop is one closed skirt loop tagged with the extruder printing it and
// the filament length it consumes.
type SkirtLoop struct {
	Ring           geometry.Polygon
	Extruder       int
	ExtrudedLength float64
}

// PurgeEvent is a scheduled tool change at a given print height.
type PurgeEvent struct {
	PrintZ       float64
	FromExtruder int
	ToExtruder   int
	// Volume is the purge volume printed on the tower, never below the
	// configured forced-purge floor.
	Volume float64
}

// FirstLayerGeometry is the output of the skirt/brim step shared with the
// export stage and the UI layer.
type FirstLayerGeometry struct {
	Skirt []SkirtLoop
	// SkirtHull is the outward boundary of the outermost skirt loop.
	SkirtHull geometry.Polygon
	// Boundary is the job-wide first-layer convex hull: object footprints,
	// skirt hull and purge-tower footprint re-convex-hulled together.
	Boundary geometry.Polygon
}
