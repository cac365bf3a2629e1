package invalidate

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"

	"github.com/lamina3d/lamina/pkg/slicer/core/domain/model"
	"github.com/lamina3d/lamina/pkg/slicer/core/metrics"
	"github.com/lamina3d/lamina/pkg/slicer/core/state"
)

func TestClassify_GCodeOnlyKeys(t *testing.T) {
	out := Classify([]string{"bed_temperature", "travel_speed", "extruder_clearance_radius"})
	assert.Equal(t, []model.JobStep{model.StepGCodeExport}, out.JobSteps)
	assert.Empty(t, out.EntitySteps)
	assert.False(t, out.InvalidateAll())
}

func TestClassify_SkirtKeys(t *testing.T) {
	out := Classify([]string{"skirts", "draft_shield", "wipe_tower_x"})
	assert.Equal(t, []model.JobStep{model.StepGCodeExport, model.StepSkirtBrim}, out.JobSteps)
	assert.Empty(t, out.EntitySteps)
}

func TestClassify_WipeTowerKeysAlsoHitSkirt(t *testing.T) {
	out := Classify([]string{"wiping_volumes_matrix"})
	assert.Equal(t,
		[]model.JobStep{model.StepGCodeExport, model.StepSkirtBrim, model.StepWipeTower},
		out.JobSteps)
}

func TestClassify_SliceRootKeys(t *testing.T) {
	out := Classify([]string{"nozzle_diameter"})
	assert.Equal(t, []model.JobStep{model.StepGCodeExport}, out.JobSteps)
	assert.Equal(t, []model.EntityStep{model.StepSlice}, out.EntitySteps)
}

func TestClassify_LayerBoundsKeys(t *testing.T) {
	out := Classify([]string{"min_layer_height"})
	assert.Equal(t, []model.JobStep{model.StepGCodeExport, model.StepSkirtBrim}, out.JobSteps)
	assert.Equal(t,
		[]model.EntityStep{model.StepInfill, model.StepPerimeters, model.StepSupportMaterial},
		out.EntitySteps)
}

func TestClassify_SolubleFilament(t *testing.T) {
	out := Classify([]string{"filament_soluble"})
	assert.Contains(t, out.JobSteps, model.StepWipeTower)
	assert.Contains(t, out.EntitySteps, model.StepSupportMaterial)
}

func TestClassify_CurledOverhangs(t *testing.T) {
	out := Classify([]string{"avoid_crossing_curled_overhangs"})
	assert.Equal(t, []model.EntityStep{model.StepEstimateCurledExtrusions}, out.EntitySteps)
}

func TestClassify_UnknownKey(t *testing.T) {
	out := Classify([]string{"some_future_option"})
	assert.True(t, out.InvalidateAll())
	assert.Equal(t, []string{"some_future_option"}, out.Unknown)
}

func TestClassify_OrderIndependent(t *testing.T) {
	a := Classify([]string{"skirts", "nozzle_diameter", "bed_temperature"})
	b := Classify([]string{"bed_temperature", "skirts", "nozzle_diameter"})
	assert.Equal(t, a, b)
}

func TestClassify_Deduplicates(t *testing.T) {
	a := Classify([]string{"skirts", "skirts", "skirts"})
	b := Classify([]string{"skirts"})
	assert.Equal(t, b, a)
}

func TestApply_EntityScoped(t *testing.T) {
	a, b := uuid.New(), uuid.New()
	g := state.NewGraph(a, b)
	for _, id := range []uuid.UUID{a, b} {
		g.SetEntityStarted(id, model.StepSlice)
		g.SetEntityDone(id, model.StepSlice)
	}

	out := Classify([]string{"nozzle_diameter"})
	changed := Apply(context.Background(), g, []uuid.UUID{a}, out, nil)
	assert.True(t, changed)
	assert.False(t, g.IsEntityStepDoneFor(a, model.StepSlice))
	assert.True(t, g.IsEntityStepDoneFor(b, model.StepSlice), "unlisted entity keeps its result")
}

func TestApply_UnknownResetsEverything(t *testing.T) {
	id := uuid.New()
	g := state.NewGraph(id)
	g.SetJobStarted(model.StepSkirtBrim)
	g.SetJobDone(model.StepSkirtBrim)
	g.SetEntityStarted(id, model.StepInfill)
	g.SetEntityDone(id, model.StepInfill)

	changed := Apply(context.Background(), g, []uuid.UUID{id}, Classify([]string{"mystery"}), nil)
	assert.True(t, changed)
	assert.False(t, g.IsJobStepDone(model.StepSkirtBrim))
	assert.False(t, g.IsEntityStepDoneFor(id, model.StepInfill))
}

// countingRecorder tracks step invalidations on top of the no-op recorder.
type countingRecorder struct {
	metrics.MetricRecorder
	invalidated []string
}

func (r *countingRecorder) RecordStepInvalidation(ctx context.Context, stepName string) {
	r.invalidated = append(r.invalidated, stepName)
}

func TestApply_CountsInvalidations(t *testing.T) {
	id := uuid.New()
	g := state.NewGraph(id)
	g.SetJobStarted(model.StepSkirtBrim)
	g.SetJobDone(model.StepSkirtBrim)
	g.SetJobStarted(model.StepGCodeExport)
	g.SetJobDone(model.StepGCodeExport)

	rec := &countingRecorder{MetricRecorder: metrics.NewNoOpMetricRecorder()}
	out := Classify([]string{"skirts"})
	assert.True(t, Apply(context.Background(), g, []uuid.UUID{id}, out, rec))
	assert.Contains(t, rec.invalidated, model.StepSkirtBrim.String())
	assert.Contains(t, rec.invalidated, model.StepGCodeExport.String())

	// A second application changes nothing and counts nothing.
	rec.invalidated = nil
	assert.False(t, Apply(context.Background(), g, []uuid.UUID{id}, out, rec))
	assert.Empty(t, rec.invalidated)
}
