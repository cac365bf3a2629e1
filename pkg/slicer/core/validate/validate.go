// Package validate performs the pre-flight configuration and geometry check
// of a job. Validate is a pure function over the job snapshot: it inspects
// configuration and already-computed geometry, raises nothing, and is safe to
// call from the foreground actor at any time before export.
package validate

import (
	"fmt"
	"math"
	"regexp"

	"github.com/lamina3d/lamina/pkg/slicer/core/config"
	"github.com/lamina3d/lamina/pkg/slicer/core/domain/model"
	"github.com/lamina3d/lamina/pkg/slicer/support/geometry"
)

// epsilon is the scale-independent tolerance used for all geometric and
// configuration comparisons, matching the resolution of placement math.
const epsilon = 1e-4

// Matches "G92 E0" with various forms of writing the zero and with an
// optional trailing comment, anywhere in a multi-line snippet.
var g92e0 = regexp.MustCompile(`(?m)^[ \t]*[gG]92[ \t]*[eE](0(\.0*)?|\.0+)[ \t]*(;.*)?$`)

// Result carries the outcome of a validation pass. Message is empty when the
// job is printable; Warnings are advisory and never block printing.
type Result struct {
	Message    string
	Warnings   []string
	Collisions []geometry.Polygon
}

// OK reports whether the job passed validation.
func (r Result) OK() bool { return r.Message == "" }

// Validate runs the ordered fail-fast checks and returns the first blocking
// problem, if any. Advisory warnings are collected even on success.
func Validate(job *model.Job) Result {
	return run(job, false)
}

// ValidateDiagnostic is Validate with the horizontal clearance check running
// to completion, recording every colliding hull in Result.Collisions.
func ValidateDiagnostic(job *model.Job) Result {
	return run(job, true)
}

func run(job *model.Job, diagnostic bool) Result {
	var res Result

	extruders := job.Extruders()

	if len(job.Entities) == 0 {
		res.Message = "All objects are outside of the print volume."
		return res
	}
	if len(extruders) == 0 {
		res.Message = "The supplied settings will cause an empty print."
		return res
	}

	cfg := job.Config

	if cfg.CompleteObjects {
		var collisions *[]geometry.Polygon
		if diagnostic {
			collisions = &res.Collisions
		}
		if !horizontalClearanceValid(job, collisions) {
			res.Message = "Some objects are too close; your extruder will collide with them."
			return res
		}
		if !verticalClearanceValid(job) {
			res.Message = "Some objects are too tall and cannot be printed without extruder collisions."
			return res
		}
	}

	if cfg.AvoidCrossingPerimeters && cfg.AvoidCrossingCurledOverhangs {
		res.Message = "Avoid crossing perimeters option and avoid crossing curled overhangs option cannot be both enabled together."
		return res
	}

	if cfg.SpiralVase {
		if job.TotalInstances() > 1 && !cfg.CompleteObjects {
			res.Message = "Only a single object may be printed at a time in Spiral Vase mode. " +
				"Either remove all but the last object, or enable sequential mode by \"complete_objects\"."
			return res
		}
		if len(job.Entities[0].Regions) > 1 {
			res.Message = "The Spiral Vase option can only be used when printing single material objects."
			return res
		}
	}

	if msg := checkMaxPrintHeight(job); msg != "" {
		res.Message = msg
		return res
	}

	for _, entity := range job.Entities {
		if entity.HasSupportMaterial() &&
			entity.Config.SupportMaterialStyle == config.SupportStyleOrganic &&
			entity.HasCustomLayering() {
			res.Message = "Variable layer height is not supported with Organic supports."
			return res
		}
	}

	if job.HasWipeTower() {
		if msg := checkWipeTower(job, extruders); msg != "" {
			res.Message = msg
			return res
		}
	}

	minNozzle, maxNozzle := nozzleDiameterRange(cfg, extruders)

	for _, entity := range job.Entities {
		if msg := checkEntity(job, entity, minNozzle, maxNozzle, &res.Warnings); msg != "" {
			res.Message = msg
			return res
		}
	}

	if msg := checkLayerGCodeHooks(cfg); msg != "" {
		res.Message = msg
		return res
	}

	return res
}

// checkMaxPrintHeight verifies no entity's layer stack exceeds the build
// height. The midpoint of the last two slicing planes tells whether the
// object body itself is out of bounds or only the final layer pokes above.
func checkMaxPrintHeight(job *model.Job) string {
	limit := job.Config.MaxPrintHeight + epsilon
	for _, entity := range job.Entities {
		n := len(entity.Layers)
		if n == 0 {
			continue
		}
		last := entity.Layers[n-1].PrintZ
		if last <= limit {
			continue
		}
		if n >= 2 && 0.5*(entity.Layers[n-2].PrintZ+last) > limit {
			return fmt.Sprintf("The object %s exceeds the maximum build volume height.", entity.Name)
		}
		return fmt.Sprintf("While the object %s itself fits the build volume, its last layer exceeds the maximum build volume height.", entity.Name) +
			" You might want to reduce the size of your model or change current print settings and retry."
	}
	return ""
}

// checkWipeTower validates the purge-tower preconditions.
func checkWipeTower(job *model.Job, extruders []int) string {
	cfg := job.Config

	// Nozzles must match within epsilon, filaments within 10 %.
	firstNozzle := cfg.NozzleDiameterAt(extruders[0])
	firstFilament := cfg.FilamentDiameterAt(extruders[0])
	for _, e := range extruders {
		nozzle := cfg.NozzleDiameterAt(e)
		filament := cfg.FilamentDiameterAt(e)
		if math.Abs(nozzle-firstNozzle) > epsilon ||
			math.Abs((filament-firstFilament)/firstFilament) > 0.1 {
			return "The wipe tower is only supported if all extruders have the same nozzle diameter " +
				"and use filaments of the same diameter."
		}
	}

	if !cfg.GCodeFlavor.SupportsWipeTower() {
		return "The Wipe Tower is currently only supported for the Marlin, Klipper, RepRap/Sprinter, RepRapFirmware and Repetier G-code flavors."
	}
	if !cfg.UseRelativeEDistances {
		return "The Wipe Tower is currently only supported with the relative extruder addressing (use_relative_e_distances=1)."
	}
	if cfg.OozePrevention && cfg.SingleExtruderMultiMaterial {
		return "Ooze prevention is only supported with the wipe tower when 'single_extruder_multi_material' is off."
	}
	if cfg.UseVolumetricE {
		return "The Wipe Tower currently does not support volumetric E (use_volumetric_e=0)."
	}
	if cfg.CompleteObjects && len(extruders) > 1 {
		return "The Wipe Tower is currently not supported for multimaterial sequential prints."
	}

	if len(job.Entities) > 1 {
		first := job.Entities[0].Slicing
		tallestIdx := 0
		for i := 1; i < len(job.Entities); i++ {
			sp := job.Entities[i].Slicing
			if math.Abs(sp.FirstLayerHeight-first.FirstLayerHeight) > epsilon ||
				math.Abs(sp.LayerHeight-first.LayerHeight) > epsilon {
				return "The Wipe Tower is only supported for multiple objects if they have equal layer heights"
			}
			if sp.RaftLayers != first.RaftLayers {
				return "The Wipe Tower is only supported for multiple objects if they are printed over an equal number of raft layers"
			}
			if sp.GapObjectSupport != first.GapObjectSupport || sp.GapSupportObject != first.GapSupportObject {
				return "The Wipe Tower is only supported for multiple objects if they are printed with the same support_material_contact_distance"
			}
			if job.HasCustomLayering() && profileTopZ(job.Entities[i]) > profileTopZ(job.Entities[tallestIdx]) {
				tallestIdx = i
			}
		}

		if job.HasCustomLayering() {
			if msg := checkLayerProfiles(job.Entities, tallestIdx); msg != "" {
				return msg
			}
		}
	}

	return ""
}

// profileTopZ is the last z sample of an entity's custom layering table.
func profileTopZ(e *model.Entity) float64 {
	if len(e.LayerHeightProfile) < 2 {
		return 0
	}
	return e.LayerHeightProfile[len(e.LayerHeightProfile)-2]
}

// checkLayerProfiles verifies every entity's custom layer table agrees with
// the tallest entity's, point by point up to the shorter entity's height.
// Layers closer than epsilon get merged downstream, so the comparison is
// twice as strict to never conflate two distinct layers.
func checkLayerProfiles(entities []*model.Entity, tallestIdx int) string {
	const eps = 0.5 * epsilon
	tallest := entities[tallestIdx].LayerHeightProfile
	for idx, entity := range entities {
		if idx == tallestIdx {
			continue
		}
		profile := entity.LayerHeightProfile
		if len(profile) < 2 {
			continue
		}
		topZ := profile[len(profile)-2]
		for i := 0; i < len(profile) && i < len(tallest); i++ {
			if i%2 == 0 && tallest[i] > topZ {
				break
			}
			if math.Abs(profile[i]-tallest[i]) > eps {
				return "The Wipe tower is only supported if all objects have the same variable layer height"
			}
		}
	}
	return ""
}

func nozzleDiameterRange(cfg *config.PrintConfig, extruders []int) (min, max float64) {
	min = math.MaxFloat64
	for _, e := range extruders {
		d := cfg.NozzleDiameterAt(e)
		if d < min {
			min = d
		}
		if d > max {
			max = d
		}
	}
	return min, max
}

// checkEntity runs the per-entity checks: support extruder consistency,
// layer heights against nozzle diameters, and extrusion-width sanity.
func checkEntity(job *model.Job, entity *model.Entity, minNozzle, maxNozzle float64, warnings *[]string) string {
	cfg := job.Config
	ecfg := entity.Config

	if entity.HasSupportMaterial() {
		if (ecfg.SupportMaterialExtruder == 0 || ecfg.SupportMaterialInterfaceExtruder == 0) &&
			maxNozzle-minNozzle > epsilon {
			return "Printing with multiple extruders of differing nozzle diameters. " +
				"If support is to be printed with the current extruder (support_material_extruder == 0 or support_material_interface_extruder == 0), " +
				"all nozzles have to be of the same diameter."
		}
		if job.HasWipeTower() && ecfg.SupportMaterialStyle != config.SupportStyleOrganic {
			if ecfg.SupportMaterialContactDistance == 0 {
				// Soluble interface.
				if !ecfg.SupportMaterialSynchronizeLayers {
					return "For the Wipe Tower to work with the soluble supports, the support layers need to be synchronized with the object layers."
				}
			} else if ecfg.SupportMaterialExtruder != 0 || ecfg.SupportMaterialInterfaceExtruder != 0 {
				return "The Wipe Tower currently supports the non-soluble supports only if they are printed with the current extruder without triggering a tool change. " +
					"(both support_material_extruder and support_material_interface_extruder need to be set to 0)."
			}
		}
	}

	if !entity.HasSupportMaterial() && entity.SupportEnforcers && warnings != nil {
		*warnings = append(*warnings, "Consider enabling supports.")
	}

	// First layer height against the nozzle actually used on the first
	// layer: with a raft only the support extruder touches it.
	firstLayerNozzle := minNozzle
	if entity.HasRaft() {
		firstLayerExtruder := ecfg.SupportMaterialExtruder - 1
		if ecfg.RaftLayers == 1 {
			firstLayerExtruder = ecfg.SupportMaterialInterfaceExtruder - 1
		}
		if firstLayerExtruder >= 0 {
			firstLayerNozzle = cfg.NozzleDiameterAt(firstLayerExtruder)
		}
	}
	if cfg.FirstLayerHeight > firstLayerNozzle {
		return "First layer height can't be greater than nozzle diameter"
	}

	layerHeight := ecfg.LayerHeight
	if layerHeight > minNozzle {
		return "Layer height can't be greater than nozzle diameter"
	}

	if msg := checkExtrusionWidth("extrusion_width", ecfg.ExtrusionWidth, layerHeight, maxNozzle); msg != "" {
		return msg
	}
	if entity.HasSupportMaterial() || entity.HasRaft() {
		if msg := checkExtrusionWidth("support_material_extrusion_width", ecfg.SupportMaterialExtrusionWidth, layerHeight, maxNozzle); msg != "" {
			return msg
		}
	}
	for _, region := range entity.Regions {
		widths := []struct {
			key   string
			value float64
		}{
			{"perimeter_extrusion_width", region.Config.PerimeterExtrusionWidth},
			{"external_perimeter_extrusion_width", region.Config.ExternalPerimeterExtrusionWidth},
			{"infill_extrusion_width", region.Config.InfillExtrusionWidth},
			{"solid_infill_extrusion_width", region.Config.SolidInfillExtrusionWidth},
			{"top_infill_extrusion_width", region.Config.TopInfillExtrusionWidth},
		}
		for _, w := range widths {
			if msg := checkExtrusionWidth(w.key, w.value, layerHeight, maxNozzle); msg != "" {
				return msg
			}
		}
	}

	return ""
}

// checkExtrusionWidth validates one width option. Zero means auto and is
// always valid; otherwise the width must exceed the layer height and stay
// under three nozzle diameters.
func checkExtrusionWidth(key string, width, layerHeight, maxNozzle float64) string {
	if width == 0 {
		return ""
	}
	if width <= layerHeight {
		return fmt.Sprintf("%s=%v mm is too low to be printable at a layer height %v mm", key, width, layerHeight)
	}
	if width >= maxNozzle*3 {
		return fmt.Sprintf("Excessive %s=%v mm to be printable with a nozzle diameter %v mm", key, width, maxNozzle)
	}
	return ""
}

// checkLayerGCodeHooks verifies the per-layer custom G-code against the
// extruder addressing mode. Relative addressing on Marlin needs a G92 E0
// reset each layer; absolute addressing must never see one.
func checkLayerGCodeHooks(cfg *config.PrintConfig) string {
	beforeResets := g92e0.MatchString(cfg.BeforeLayerGCode)
	layerResets := g92e0.MatchString(cfg.LayerGCode)
	if cfg.UseRelativeEDistances {
		if (cfg.GCodeFlavor == config.FlavorMarlinLegacy || cfg.GCodeFlavor == config.FlavorMarlinFirmware) &&
			!beforeResets && !layerResets {
			return "Relative extruder addressing requires resetting the extruder position at each layer to prevent loss of floating point accuracy. Add \"G92 E0\" to layer_gcode."
		}
	} else if beforeResets {
		return "\"G92 E0\" was found in before_layer_gcode, which is incompatible with absolute extruder addressing."
	} else if layerResets {
		return "\"G92 E0\" was found in layer_gcode, which is incompatible with absolute extruder addressing."
	}
	return ""
}
