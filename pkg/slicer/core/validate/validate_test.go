package validate

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lamina3d/lamina/pkg/slicer/core/config"
	"github.com/lamina3d/lamina/pkg/slicer/core/domain/model"
	"github.com/lamina3d/lamina/pkg/slicer/support/geometry"
)

func testConfig() *config.PrintConfig {
	cfg := config.NewConfig().Lamina.Print
	return &cfg
}

func square(half float64) geometry.Polygon {
	return geometry.Polygon{
		{X: -half, Y: -half}, {X: half, Y: -half},
		{X: half, Y: half}, {X: -half, Y: half},
	}
}

func simpleEntity(name string) *model.Entity {
	e := model.NewEntity(name)
	e.Config.LayerHeight = 0.2
	e.Regions = []*model.Region{{}}
	e.Footprint = square(0.5)
	e.Layers = []model.LayerSlice{{PrintZ: 0.2}, {PrintZ: 0.4}}
	e.Instances = []model.Instance{{}}
	e.Slicing = model.SlicingParams{FirstLayerHeight: 0.2, LayerHeight: 0.2}
	return e
}

func simpleJob() *model.Job {
	job := model.NewJob(testConfig())
	job.Entities = append(job.Entities, simpleEntity("cube"))
	return job
}

func TestValidate_HappyPath(t *testing.T) {
	res := Validate(simpleJob())
	assert.True(t, res.OK())
	assert.Empty(t, res.Warnings)
}

func TestValidate_EmptyJob(t *testing.T) {
	res := Validate(model.NewJob(testConfig()))
	assert.Equal(t, "All objects are outside of the print volume.", res.Message)
}

func TestValidate_NoExtruders(t *testing.T) {
	job := model.NewJob(testConfig())
	e := simpleEntity("cube")
	e.Regions = nil
	job.Entities = append(job.Entities, e)
	res := Validate(job)
	assert.Equal(t, "The supplied settings will cause an empty print.", res.Message)
}

func TestValidate_SequentialHorizontalClearance(t *testing.T) {
	// Clearance radius 20 inflates each footprint by ~10; two half-unit
	// squares clear each other just above 21 apart.
	makeJob := func(distance float64) *model.Job {
		job := simpleJob()
		job.Config.CompleteObjects = true
		job.Entities[0].Instances = []model.Instance{
			{},
			{Shift: geometry.Pt(distance, 0)},
		}
		return job
	}

	res := Validate(makeJob(20.5))
	assert.Equal(t, "Some objects are too close; your extruder will collide with them.", res.Message)

	res = Validate(makeJob(21.5))
	assert.True(t, res.OK())
}

func TestValidateDiagnostic_RecordsCollidingHulls(t *testing.T) {
	job := simpleJob()
	job.Config.CompleteObjects = true
	job.Entities[0].Instances = []model.Instance{
		{},
		{Shift: geometry.Pt(5, 0)},
	}
	res := ValidateDiagnostic(job)
	assert.False(t, res.OK())
	assert.Len(t, res.Collisions, 2)
}

func TestValidate_SequentialVerticalClearance(t *testing.T) {
	job := model.NewJob(testConfig())
	job.Config.CompleteObjects = true

	tall := simpleEntity("tower")
	tall.Layers = []model.LayerSlice{{PrintZ: 15}, {PrintZ: 30}}
	short := simpleEntity("tile")
	short.Instances[0].Shift = geometry.Pt(100, 0)

	// Tall object printed first: the gantry would hit it on the way to the
	// last one.
	job.Entities = []*model.Entity{tall, short}
	res := Validate(job)
	assert.Equal(t, "Some objects are too tall and cannot be printed without extruder collisions.", res.Message)

	// Tall object printed last is fine.
	job.Entities = []*model.Entity{short, tall}
	assert.True(t, Validate(job).OK())
}

func TestValidate_ConflictingAvoidCrossing(t *testing.T) {
	job := simpleJob()
	job.Config.AvoidCrossingPerimeters = true
	job.Config.AvoidCrossingCurledOverhangs = true
	res := Validate(job)
	assert.Contains(t, res.Message, "cannot be both enabled together")
}

func TestValidate_SpiralVaseCopies(t *testing.T) {
	job := simpleJob()
	job.Config.SpiralVase = true
	job.Entities[0].Instances = append(job.Entities[0].Instances, model.Instance{Shift: geometry.Pt(50, 0)})
	res := Validate(job)
	assert.Contains(t, res.Message, "Only a single object may be printed at a time in Spiral Vase mode.")
}

func TestValidate_SpiralVaseRegions(t *testing.T) {
	job := simpleJob()
	job.Config.SpiralVase = true
	job.Entities[0].Regions = append(job.Entities[0].Regions, &model.Region{})
	res := Validate(job)
	assert.Equal(t, "The Spiral Vase option can only be used when printing single material objects.", res.Message)
}

func TestValidate_MaxPrintHeight(t *testing.T) {
	job := simpleJob()
	job.Entities[0].Layers = []model.LayerSlice{{PrintZ: 209.8}, {PrintZ: 210}}
	res := Validate(job)
	assert.Equal(t, "The object cube exceeds the maximum build volume height.", res.Message)

	job.Entities[0].Layers = []model.LayerSlice{{PrintZ: 199.9}, {PrintZ: 200.05}}
	res = Validate(job)
	assert.Contains(t, res.Message, "While the object cube itself fits the build volume, its last layer exceeds")
	assert.Contains(t, res.Message, "You might want to reduce the size of your model")
}

func TestValidate_OrganicSupportsVariableLayers(t *testing.T) {
	job := simpleJob()
	e := job.Entities[0]
	e.Config.SupportMaterial = true
	e.Config.SupportMaterialStyle = config.SupportStyleOrganic
	e.LayerHeightProfile = []float64{0, 0.2, 10, 0.3}
	res := Validate(job)
	assert.Equal(t, "Variable layer height is not supported with Organic supports.", res.Message)
}

// wipeTowerJob builds a two-extruder job that passes every wipe tower
// precondition.
func wipeTowerJob() *model.Job {
	cfg := testConfig()
	cfg.NozzleDiameter = []float64{0.4, 0.4}
	cfg.FilamentDiameter = []float64{1.75, 1.75}
	cfg.WipeTower = true
	cfg.UseRelativeEDistances = true
	cfg.LayerGCode = "G92 E0"
	job := model.NewJob(cfg)
	e := simpleEntity("duo")
	e.Regions = []*model.Region{
		{Config: model.RegionConfig{PerimeterExtruder: 0, InfillExtruder: 1}},
	}
	job.Entities = append(job.Entities, e)
	return job
}

func TestValidate_WipeTowerHappyPath(t *testing.T) {
	assert.True(t, Validate(wipeTowerJob()).OK())
}

func TestValidate_WipeTowerNozzleMismatch(t *testing.T) {
	job := wipeTowerJob()
	job.Config.NozzleDiameter = []float64{0.4, 0.6}
	res := Validate(job)
	assert.Contains(t, res.Message, "same nozzle diameter")
}

func TestValidate_WipeTowerFilamentTolerance(t *testing.T) {
	job := wipeTowerJob()
	// 10 % tolerance: 1.75 vs 1.9 is within it, 1.75 vs 2.0 is not.
	job.Config.FilamentDiameter = []float64{1.75, 1.9}
	assert.True(t, Validate(job).OK())

	job.Config.FilamentDiameter = []float64{1.75, 2.0}
	res := Validate(job)
	assert.Contains(t, res.Message, "filaments of the same diameter")
}

func TestValidate_WipeTowerFlavor(t *testing.T) {
	job := wipeTowerJob()
	job.Config.GCodeFlavor = config.FlavorSmoothie
	res := Validate(job)
	assert.Contains(t, res.Message, "only supported for the Marlin, Klipper, RepRap/Sprinter, RepRapFirmware and Repetier")
}

func TestValidate_WipeTowerRelativeE(t *testing.T) {
	job := wipeTowerJob()
	job.Config.UseRelativeEDistances = false
	res := Validate(job)
	assert.Contains(t, res.Message, "use_relative_e_distances=1")
}

func TestValidate_WipeTowerOozePrevention(t *testing.T) {
	job := wipeTowerJob()
	job.Config.OozePrevention = true
	job.Config.SingleExtruderMultiMaterial = true
	res := Validate(job)
	assert.Contains(t, res.Message, "Ooze prevention")
}

func TestValidate_WipeTowerVolumetricE(t *testing.T) {
	job := wipeTowerJob()
	job.Config.UseVolumetricE = true
	res := Validate(job)
	assert.Contains(t, res.Message, "volumetric E")
}

func TestValidate_WipeTowerSequentialMultimaterial(t *testing.T) {
	job := wipeTowerJob()
	job.Config.CompleteObjects = true
	res := Validate(job)
	assert.Contains(t, res.Message, "not supported for multimaterial sequential prints")
}

func TestValidate_WipeTowerUnequalLayerHeights(t *testing.T) {
	job := wipeTowerJob()
	second := simpleEntity("other")
	second.Regions = job.Entities[0].Regions
	second.Slicing.LayerHeight = 0.3
	second.Instances[0].Shift = geometry.Pt(100, 0)
	job.Entities = append(job.Entities, second)
	res := Validate(job)
	assert.Contains(t, res.Message, "equal layer heights")
}

func TestValidate_WipeTowerUnequalRaftLayers(t *testing.T) {
	job := wipeTowerJob()
	second := simpleEntity("other")
	second.Regions = job.Entities[0].Regions
	second.Slicing.RaftLayers = 2
	job.Entities = append(job.Entities, second)
	res := Validate(job)
	assert.Contains(t, res.Message, "equal number of raft layers")
}

func TestValidate_WipeTowerProfileMismatch(t *testing.T) {
	job := wipeTowerJob()
	job.Entities[0].LayerHeightProfile = []float64{0, 0.2, 10, 0.2}
	second := simpleEntity("other")
	second.Regions = job.Entities[0].Regions
	second.LayerHeightProfile = []float64{0, 0.2, 10, 0.3}
	job.Entities = append(job.Entities, second)
	res := Validate(job)
	assert.Contains(t, res.Message, "same variable layer height")
}

func TestValidate_SupportCurrentToolNozzleMismatch(t *testing.T) {
	cfg := testConfig()
	cfg.NozzleDiameter = []float64{0.4, 0.6}
	cfg.FilamentDiameter = []float64{1.75, 1.75}
	job := model.NewJob(cfg)
	e := simpleEntity("supported")
	e.Config.SupportMaterial = true
	e.Regions = []*model.Region{
		{Config: model.RegionConfig{PerimeterExtruder: 0, InfillExtruder: 1}},
	}
	job.Entities = append(job.Entities, e)
	res := Validate(job)
	assert.Contains(t, res.Message, "all nozzles have to be of the same diameter")
}

func TestValidate_WipeTowerSolubleSupportsNeedSync(t *testing.T) {
	job := wipeTowerJob()
	e := job.Entities[0]
	e.Config.SupportMaterial = true
	e.Config.SupportMaterialContactDistance = 0
	e.Config.SupportMaterialSynchronizeLayers = false
	res := Validate(job)
	assert.Contains(t, res.Message, "support layers need to be synchronized")
}

func TestValidate_WipeTowerNonSolubleSupportsNeedCurrentTool(t *testing.T) {
	job := wipeTowerJob()
	e := job.Entities[0]
	e.Config.SupportMaterial = true
	e.Config.SupportMaterialContactDistance = 0.2
	e.Config.SupportMaterialExtruder = 2
	res := Validate(job)
	assert.Contains(t, res.Message, "need to be set to 0")
}

func TestValidate_FirstLayerHeightVsNozzle(t *testing.T) {
	job := simpleJob()
	job.Config.FirstLayerHeight = 0.5
	res := Validate(job)
	assert.Equal(t, "First layer height can't be greater than nozzle diameter", res.Message)
}

func TestValidate_LayerHeightVsNozzle(t *testing.T) {
	job := simpleJob()
	job.Entities[0].Config.LayerHeight = 0.5
	res := Validate(job)
	assert.Equal(t, "Layer height can't be greater than nozzle diameter", res.Message)
}

func TestValidate_ExtrusionWidth(t *testing.T) {
	job := simpleJob()
	job.Entities[0].Config.ExtrusionWidth = 0.1 // below layer height 0.2
	res := Validate(job)
	assert.Contains(t, res.Message, "extrusion_width=0.1 mm is too low")

	job.Entities[0].Config.ExtrusionWidth = 1.5 // over 3x nozzle 0.4
	res = Validate(job)
	assert.Contains(t, res.Message, "Excessive extrusion_width=1.5 mm")

	job.Entities[0].Config.ExtrusionWidth = 0 // auto
	assert.True(t, Validate(job).OK())
}

func TestValidate_RegionExtrusionWidth(t *testing.T) {
	job := simpleJob()
	job.Entities[0].Regions[0].Config.InfillExtrusionWidth = 2.0
	res := Validate(job)
	assert.Contains(t, res.Message, "Excessive infill_extrusion_width=2 mm")
}

func TestValidate_G92Required(t *testing.T) {
	job := simpleJob()
	job.Config.UseRelativeEDistances = true
	res := Validate(job)
	assert.Contains(t, res.Message, `Add "G92 E0" to layer_gcode`)

	for _, snippet := range []string{"G92 E0", "g92 e0.0 ; reset", "  G92 E.0"} {
		job.Config.LayerGCode = "M117 hi\n" + snippet
		res = Validate(job)
		assert.True(t, res.OK(), "snippet %q should satisfy the reset requirement", snippet)
	}
}

func TestValidate_G92ForbiddenWithAbsoluteE(t *testing.T) {
	job := simpleJob()
	job.Config.BeforeLayerGCode = "G92 E0"
	res := Validate(job)
	assert.True(t, strings.HasPrefix(res.Message, `"G92 E0" was found in before_layer_gcode`))

	job.Config.BeforeLayerGCode = ""
	job.Config.LayerGCode = "G92 E0"
	res = Validate(job)
	assert.True(t, strings.HasPrefix(res.Message, `"G92 E0" was found in layer_gcode`))
}

func TestValidate_SupportEnforcerWarning(t *testing.T) {
	job := simpleJob()
	job.Entities[0].SupportEnforcers = true
	res := Validate(job)
	require.True(t, res.OK())
	assert.Equal(t, []string{"Consider enabling supports."}, res.Warnings)
}
