// Package invalidate maps changed configuration keys to the pipeline steps
// whose results they affect. The table is total by construction: a key that
// appears in no set falls through to the conservative invalidate-everything
// path, so a new configuration option can never silently leave stale results
// standing.
package invalidate

import (
	"context"
	"sort"

	"github.com/google/uuid"

	"github.com/lamina3d/lamina/pkg/slicer/core/domain/model"
	"github.com/lamina3d/lamina/pkg/slicer/core/metrics"
	"github.com/lamina3d/lamina/pkg/slicer/core/state"
	"github.com/lamina3d/lamina/pkg/slicer/support/util/logger"
)

// Outcome is the classification of one batch of changed keys.
type Outcome struct {
	// JobSteps and EntitySteps are sorted and deduplicated.
	JobSteps    []model.JobStep
	EntitySteps []model.EntityStep
	// Unknown lists keys with no modeled effect; when non-empty the whole
	// graph must be invalidated.
	Unknown []string
}

// InvalidateAll reports whether the batch contained a key with no modeled
// effect.
func (o Outcome) InvalidateAll() bool { return len(o.Unknown) > 0 }

type effect struct {
	job    []model.JobStep
	entity []model.EntityStep
}

// gcodeOnly are keys consumed exclusively during export: changing them never
// touches geometry.
var gcodeOnly = map[string]struct{}{
	"avoid_crossing_perimeters":          {},
	"avoid_crossing_perimeters_max_detour": {},
	"bed_shape":                          {},
	"bed_temperature":                    {},
	"before_layer_gcode":                 {},
	"between_objects_gcode":              {},
	"bridge_acceleration":                {},
	"bridge_fan_speed":                   {},
	"colorprint_heights":                 {},
	"complete_objects":                   {},
	"cooling":                            {},
	"default_acceleration":               {},
	"deretract_speed":                    {},
	"disable_fan_first_layers":           {},
	"duplicate_distance":                 {},
	"end_gcode":                          {},
	"end_filament_gcode":                 {},
	"external_perimeter_acceleration":    {},
	"extrusion_axis":                     {},
	"extruder_clearance_height":          {},
	"extruder_clearance_radius":          {},
	"extruder_colour":                    {},
	"extruder_offset":                    {},
	"extrusion_multiplier":               {},
	"fan_always_on":                      {},
	"fan_below_layer_time":               {},
	"filament_colour":                    {},
	"first_layer_acceleration":           {},
	"first_layer_bed_temperature":        {},
	"first_layer_speed":                  {},
	"first_layer_temperature":            {},
	"gcode_comments":                     {},
	"gcode_label_objects":                {},
	"infill_acceleration":                {},
	"layer_gcode":                        {},
	"max_fan_speed":                      {},
	"max_print_speed":                    {},
	"max_volumetric_speed":               {},
	"min_fan_speed":                      {},
	"min_print_speed":                    {},
	"notes":                              {},
	"only_retract_when_crossing_perimeters": {},
	"output_filename_format":             {},
	"perimeter_acceleration":             {},
	"post_process":                       {},
	"retract_before_travel":              {},
	"retract_before_wipe":                {},
	"retract_layer_change":               {},
	"retract_length":                     {},
	"retract_length_toolchange":          {},
	"retract_lift":                       {},
	"retract_lift_above":                 {},
	"retract_lift_below":                 {},
	"retract_restart_extra":              {},
	"retract_restart_extra_toolchange":   {},
	"retract_speed":                      {},
	"slowdown_below_layer_time":          {},
	"standby_temperature_delta":          {},
	"start_gcode":                        {},
	"start_filament_gcode":               {},
	"temperature":                        {},
	"threads":                            {},
	"toolchange_gcode":                   {},
	"travel_speed":                       {},
	"travel_speed_z":                     {},
	"use_firmware_retraction":            {},
	"use_relative_e_distances":           {},
	"use_volumetric_e":                   {},
	"variable_layer_height":              {},
	"wipe":                               {},
}

// effects names the non-export consequences of a key. The export step itself
// never appears here: the graph's cascade rule re-invalidates it for free.
var effects = map[string]effect{
	// Skirt geometry depends on these directly.
	"skirts":                {job: []model.JobStep{model.StepSkirtBrim}},
	"skirt_height":          {job: []model.JobStep{model.StepSkirtBrim}},
	"draft_shield":          {job: []model.JobStep{model.StepSkirtBrim}},
	"skirt_distance":        {job: []model.JobStep{model.StepSkirtBrim}},
	"min_skirt_length":      {job: []model.JobStep{model.StepSkirtBrim}},
	"ooze_prevention":       {job: []model.JobStep{model.StepSkirtBrim}},
	"wipe_tower_x":          {job: []model.JobStep{model.StepSkirtBrim}},
	"wipe_tower_y":          {job: []model.JobStep{model.StepSkirtBrim}},
	"wipe_tower_rotation_angle": {job: []model.JobStep{model.StepSkirtBrim}},

	// Geometry roots: changing the slice invalidates the per-entity chain.
	"first_layer_height": {entity: []model.EntityStep{model.StepSlice}},
	"nozzle_diameter":    {entity: []model.EntityStep{model.StepSlice}},
	"resolution":         {entity: []model.EntityStep{model.StepSlice}},
	"spiral_vase":        {entity: []model.EntityStep{model.StepSlice}},

	"first_layer_extrusion_width": {
		job:    []model.JobStep{model.StepSkirtBrim},
		entity: []model.EntityStep{model.StepPerimeters, model.StepInfill, model.StepSupportMaterial},
	},
	"min_layer_height": {
		job:    []model.JobStep{model.StepSkirtBrim},
		entity: []model.EntityStep{model.StepPerimeters, model.StepInfill, model.StepSupportMaterial},
	},
	"max_layer_height": {
		job:    []model.JobStep{model.StepSkirtBrim},
		entity: []model.EntityStep{model.StepPerimeters, model.StepInfill, model.StepSupportMaterial},
	},
	"gcode_resolution": {
		job:    []model.JobStep{model.StepSkirtBrim},
		entity: []model.EntityStep{model.StepPerimeters, model.StepInfill, model.StepSupportMaterial},
	},

	"avoid_crossing_curled_overhangs": {entity: []model.EntityStep{model.StepEstimateCurledExtrusions}},

	"filament_soluble": {
		job:    []model.JobStep{model.StepWipeTower},
		entity: []model.EntityStep{model.StepSupportMaterial},
	},
}

// wipeTowerKeys invalidate the purge plan, and with it the skirt that wraps
// the tower footprint.
var wipeTowerKeys = []string{
	"filament_cooling_final_speed",
	"filament_cooling_initial_speed",
	"filament_cooling_moves",
	"filament_diameter",
	"filament_load_time",
	"filament_loading_speed",
	"filament_loading_speed_start",
	"filament_max_volumetric_speed",
	"filament_minimal_purge_on_wipe_tower",
	"filament_ramming_parameters",
	"filament_toolchange_delay",
	"filament_type",
	"filament_unload_time",
	"filament_unloading_speed",
	"filament_unloading_speed_start",
	"gcode_flavor",
	"high_current_on_filament_swap",
	"infill_first",
	"parking_pos_retraction",
	"single_extruder_multi_material",
	"single_extruder_multi_material_priming",
	"wipe_tower",
	"wipe_tower_bridging",
	"wipe_tower_brim_width",
	"wipe_tower_no_sparse_layers",
	"wipe_tower_width",
	"wiping_volumes_extruders",
	"wiping_volumes_matrix",
	"z_offset",
}

func init() {
	for _, key := range wipeTowerKeys {
		effects[key] = effect{job: []model.JobStep{model.StepWipeTower, model.StepSkirtBrim}}
	}
}

// Classify resolves a batch of changed keys to the steps they invalidate.
// The result is order-independent: classifying the same keys in any order
// yields the same outcome.
func Classify(keys []string) Outcome {
	jobSet := map[model.JobStep]struct{}{}
	entitySet := map[model.EntityStep]struct{}{}
	var unknown []string
	seen := map[string]struct{}{}

	for _, key := range keys {
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}

		if _, ok := gcodeOnly[key]; ok {
			jobSet[model.StepGCodeExport] = struct{}{}
			continue
		}
		eff, ok := effects[key]
		if !ok {
			unknown = append(unknown, key)
			continue
		}
		for _, s := range eff.job {
			jobSet[s] = struct{}{}
		}
		for _, s := range eff.entity {
			entitySet[s] = struct{}{}
		}
		// Non-export effects imply a stale export.
		jobSet[model.StepGCodeExport] = struct{}{}
	}

	out := Outcome{Unknown: unknown}
	for s := range jobSet {
		out.JobSteps = append(out.JobSteps, s)
	}
	for s := range entitySet {
		out.EntitySteps = append(out.EntitySteps, s)
	}
	sort.Slice(out.JobSteps, func(i, j int) bool { return out.JobSteps[i] < out.JobSteps[j] })
	sort.Slice(out.EntitySteps, func(i, j int) bool { return out.EntitySteps[i] < out.EntitySteps[j] })
	sort.Strings(out.Unknown)
	return out
}

// Apply invalidates the classified steps on the graph and reports whether
// any status changed. Entity steps are reset on every listed entity. Unknown
// keys collapse to InvalidateAll. Each discarded step is counted through the
// recorder; nil falls back to the no-op recorder.
func Apply(ctx context.Context, g *state.Graph, entityIDs []uuid.UUID, outcome Outcome, rec metrics.MetricRecorder) bool {
	if rec == nil {
		rec = metrics.NewNoOpMetricRecorder()
	}
	if outcome.InvalidateAll() {
		logger.Warnf("invalidate: keys %v have no modeled effect, resetting all steps", outcome.Unknown)
		changed := g.InvalidateAll()
		if changed {
			for _, s := range model.JobSteps {
				rec.RecordStepInvalidation(ctx, s.String())
			}
			for _, s := range model.EntitySteps {
				rec.RecordStepInvalidation(ctx, s.String())
			}
		}
		return changed
	}
	changed := false
	for _, s := range outcome.JobSteps {
		if g.InvalidateJobStep(s) {
			rec.RecordStepInvalidation(ctx, s.String())
			changed = true
		}
	}
	for _, id := range entityIDs {
		for _, s := range outcome.EntitySteps {
			if g.InvalidateEntityStep(id, s) {
				rec.RecordStepInvalidation(ctx, s.String())
				changed = true
			}
		}
	}
	return changed
}
