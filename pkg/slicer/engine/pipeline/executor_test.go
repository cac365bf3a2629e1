package pipeline

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lamina3d/lamina/pkg/slicer/core/cancel"
	"github.com/lamina3d/lamina/pkg/slicer/core/config"
	"github.com/lamina3d/lamina/pkg/slicer/core/domain/model"
	"github.com/lamina3d/lamina/pkg/slicer/core/invalidate"
	"github.com/lamina3d/lamina/pkg/slicer/core/metrics"
	"github.com/lamina3d/lamina/pkg/slicer/core/state"
	"github.com/lamina3d/lamina/pkg/slicer/engine/export"
	"github.com/lamina3d/lamina/pkg/slicer/support/geometry"
	"github.com/lamina3d/lamina/pkg/slicer/support/util/exception"
)

func pipelineConfig() *config.PrintConfig {
	cfg := config.NewConfig().Lamina.Print
	return &cfg
}

func footprint(half float64) geometry.Polygon {
	return geometry.Polygon{
		{X: -half, Y: -half}, {X: half, Y: -half},
		{X: half, Y: half}, {X: -half, Y: half},
	}
}

func pipelineJob(cfg *config.PrintConfig) *model.Job {
	job := model.NewJob(cfg)
	e := model.NewEntity("cube")
	e.Config.LayerHeight = 0.2
	e.Regions = []*model.Region{{}}
	e.Footprint = footprint(10)
	e.Layers = []model.LayerSlice{
		{PrintZ: 0.2, Contours: []geometry.Polygon{footprint(10)}},
		{PrintZ: 0.4, Contours: []geometry.Polygon{footprint(10)}},
	}
	e.Instances = []model.Instance{{}}
	job.Entities = append(job.Entities, e)
	return job
}

func entityIDs(job *model.Job) []uuid.UUID {
	ids := make([]uuid.UUID, 0, len(job.Entities))
	for _, e := range job.Entities {
		ids = append(ids, e.ID)
	}
	return ids
}

// countingStage counts Run invocations per entity.
type countingStage struct {
	step model.EntityStep
	runs int
}

func (s *countingStage) Step() model.EntityStep { return s.step }

func (s *countingStage) Run(tok *cancel.Token, entity *model.Entity) error {
	if err := tok.Check(); err != nil {
		return err
	}
	s.runs++
	return nil
}

// cancelingStage raises the token on its first invocation and unwinds;
// later invocations run normally.
type cancelingStage struct {
	step  model.EntityStep
	fired bool
	runs  int
}

func (s *cancelingStage) Step() model.EntityStep { return s.step }

func (s *cancelingStage) Run(tok *cancel.Token, entity *model.Entity) error {
	s.runs++
	if !s.fired {
		s.fired = true
		tok.Raise()
	}
	return tok.Check()
}

func newTestExecutor(t *testing.T, job *model.Job, stages ...EntityStage) (*Executor, *state.Graph) {
	t.Helper()
	graph := state.NewGraph(entityIDs(job)...)
	exporter := export.NewExporter(&config.ExportConfig{OutputDir: t.TempDir()})
	exec := NewExecutor(ExecutorParams{
		Job:          job,
		Graph:        graph,
		Token:        cancel.NewToken(),
		EntityStages: stages,
		Exporter:     exporter,
	})
	return exec, graph
}

func TestProcess_RunsAllSteps(t *testing.T) {
	job := pipelineJob(pipelineConfig())
	slice := &countingStage{step: model.StepSlice}
	perims := &countingStage{step: model.StepPerimeters}
	exec, graph := newTestExecutor(t, job, slice, perims)

	require.NoError(t, exec.Process(context.Background(), "run1"))

	assert.Equal(t, 1, slice.runs)
	assert.Equal(t, 1, perims.runs)
	for _, step := range model.JobSteps {
		assert.True(t, graph.IsJobStepDone(step), "job step %s", step)
	}
	for _, step := range model.EntitySteps {
		assert.True(t, graph.IsEntityStepDone(step), "entity step %s", step)
	}
	require.NotNil(t, exec.FirstLayerGeometry())
	assert.NotEmpty(t, exec.FirstLayerGeometry().Skirt)
	assert.Nil(t, exec.PurgePlan(), "single extruder prints no tower")
	assert.NotEmpty(t, exec.LayerTools())
}

func TestProcess_WritesSummary(t *testing.T) {
	job := pipelineJob(pipelineConfig())
	dir := t.TempDir()
	graph := state.NewGraph(entityIDs(job)...)
	exec := NewExecutor(ExecutorParams{
		Job:      job,
		Graph:    graph,
		Token:    cancel.NewToken(),
		Exporter: export.NewExporter(&config.ExportConfig{OutputDir: dir}),
	})

	require.NoError(t, exec.Process(context.Background(), "run2"))
	_, err := os.Stat(filepath.Join(dir, "toolpaths_run2.txt"))
	assert.NoError(t, err)
}

func TestProcess_SecondPassRerunsNothing(t *testing.T) {
	job := pipelineJob(pipelineConfig())
	slice := &countingStage{step: model.StepSlice}
	exec, _ := newTestExecutor(t, job, slice)

	require.NoError(t, exec.Process(context.Background(), "run3"))
	require.NoError(t, exec.Process(context.Background(), "run3"))
	assert.Equal(t, 1, slice.runs, "done steps are not recomputed")
}

func TestProcess_WipeTowerPlan(t *testing.T) {
	cfg := pipelineConfig()
	cfg.NozzleDiameter = []float64{0.4, 0.4}
	cfg.FilamentDiameter = []float64{1.75, 1.75}
	cfg.WipeTower = true
	cfg.WipingVolumesMatrix = [][]float64{{0, 60}, {80, 0}}
	cfg.FilamentMinimalPurgeOnWipeTower = []float64{15, 15}
	job := pipelineJob(cfg)
	job.Entities[0].Regions = []*model.Region{
		{Config: model.RegionConfig{PerimeterExtruder: 0, InfillExtruder: 1}},
	}
	exec, graph := newTestExecutor(t, job)

	require.NoError(t, exec.Process(context.Background(), "run4"))

	plan := exec.PurgePlan()
	require.NotNil(t, plan)
	assert.Greater(t, plan.ToolChanges, 0)
	assert.Greater(t, plan.TotalPurgeVolume(), 0.0)
	assert.True(t, graph.IsJobStepDone(model.StepWipeTower))

	tools := exec.LayerTools()
	require.NotEmpty(t, tools)
	assert.Greater(t, tools[0].WipeTowerPartitions, 0, "tool changes remain above the first layer")
	// The skirt wraps the tower footprint.
	assert.NotEmpty(t, exec.FirstLayerGeometry().Skirt)
}

func TestProcess_EmptyPrint(t *testing.T) {
	job := model.NewJob(pipelineConfig())
	exec, graph := newTestExecutor(t, job)

	err := exec.Process(context.Background(), "run5")
	require.Error(t, err)
	assert.Equal(t,
		"The print is empty. The model is not printable with current print settings.",
		exception.ExtractErrorMessage(err))
	assert.False(t, graph.IsJobStepDone(model.StepWipeTower))
	assert.False(t, graph.IsJobStepDone(model.StepGCodeExport))
}

func TestProcess_CanceledStageLeavesStepNotDone(t *testing.T) {
	job := pipelineJob(pipelineConfig())
	exec, graph := newTestExecutor(t, job, &cancelingStage{step: model.StepSlice})

	err := exec.Process(context.Background(), "run6")
	require.Error(t, err)
	assert.True(t, exception.IsCanceled(err))
	assert.False(t, graph.IsEntityStepDone(model.StepSlice))
	assert.False(t, graph.IsJobStepDone(model.StepSkirtBrim))
	assert.Nil(t, exec.FirstLayerGeometry())
}

func TestProcess_RetryAfterCancelCompletes(t *testing.T) {
	job := pipelineJob(pipelineConfig())
	slice := &cancelingStage{step: model.StepSlice}
	exec, graph := newTestExecutor(t, job, slice)

	err := exec.Process(context.Background(), "run9")
	require.Error(t, err)
	require.True(t, exception.IsCanceled(err))
	assert.False(t, graph.IsEntityStepDone(model.StepSlice))

	exec.token.Reset()
	require.NoError(t, exec.Process(context.Background(), "run9"))

	assert.Equal(t, 2, slice.runs, "the aborted step reruns from scratch")
	for _, step := range model.JobSteps {
		assert.True(t, graph.IsJobStepDone(step), "job step %s", step)
	}
	assert.True(t, graph.IsEntityStepDone(model.StepSlice))
	assert.NotNil(t, exec.FirstLayerGeometry())
}

// cancelingAbsorber raises the token from inside the purge planning loop,
// once.
type cancelingAbsorber struct {
	tok   *cancel.Token
	fired bool
}

func (a *cancelingAbsorber) MarkWipingExtrusions(layer model.LayerTools, from, to int, requested float64) float64 {
	if !a.fired {
		a.fired = true
		a.tok.Raise()
	}
	return requested
}

func TestProcess_RetryAfterCanceledJobStage(t *testing.T) {
	cfg := pipelineConfig()
	cfg.NozzleDiameter = []float64{0.4, 0.4}
	cfg.FilamentDiameter = []float64{1.75, 1.75}
	cfg.WipeTower = true
	cfg.WipingVolumesMatrix = [][]float64{{0, 60}, {80, 0}}
	cfg.FilamentMinimalPurgeOnWipeTower = []float64{15, 15}
	job := pipelineJob(cfg)
	job.Entities[0].Regions = []*model.Region{
		{Config: model.RegionConfig{PerimeterExtruder: 0, InfillExtruder: 1}},
	}

	tok := cancel.NewToken()
	graph := state.NewGraph(entityIDs(job)...)
	exec := NewExecutor(ExecutorParams{
		Job:      job,
		Graph:    graph,
		Token:    tok,
		Absorber: &cancelingAbsorber{tok: tok},
		Exporter: export.NewExporter(&config.ExportConfig{OutputDir: t.TempDir()}),
	})

	err := exec.Process(context.Background(), "run10")
	require.Error(t, err)
	require.True(t, exception.IsCanceled(err))
	assert.Equal(t, model.StatusInvalidated, graph.JobStepStatus(model.StepWipeTower),
		"the aborted tower stage is reset for the next attempt")

	tok.Reset()
	require.NoError(t, exec.Process(context.Background(), "run10"))
	assert.True(t, graph.IsJobStepDone(model.StepWipeTower))
	assert.True(t, graph.IsJobStepDone(model.StepGCodeExport))
	require.NotNil(t, exec.PurgePlan())
}

func TestProcess_InvalidationRerunsOnlyExport(t *testing.T) {
	job := pipelineJob(pipelineConfig())
	slice := &countingStage{step: model.StepSlice}
	exec, graph := newTestExecutor(t, job, slice)

	require.NoError(t, exec.Process(context.Background(), "run7"))

	outcome := invalidate.Classify([]string{"bed_temperature"})
	assert.True(t, invalidate.Apply(context.Background(), graph, entityIDs(job), outcome, nil))
	assert.False(t, graph.IsJobStepDone(model.StepGCodeExport))
	assert.True(t, graph.IsJobStepDone(model.StepSkirtBrim))

	require.NoError(t, exec.Process(context.Background(), "run7"))
	assert.Equal(t, 1, slice.runs, "geometry steps stay cached")
	assert.True(t, graph.IsJobStepDone(model.StepGCodeExport))
}

// capturingRecorder collects the slicer-specific measurements on top of the
// no-op recorder.
type capturingRecorder struct {
	metrics.MetricRecorder
	purgeVolumes []float64
	skirtLoops   []int
	durations    []string
}

func (r *capturingRecorder) RecordPurgeVolume(ctx context.Context, volume float64) {
	r.purgeVolumes = append(r.purgeVolumes, volume)
}

func (r *capturingRecorder) RecordSkirtLoops(ctx context.Context, count int) {
	r.skirtLoops = append(r.skirtLoops, count)
}

func (r *capturingRecorder) RecordDuration(ctx context.Context, name string, d time.Duration, tags map[string]string) {
	r.durations = append(r.durations, name)
}

func TestProcess_RecordsStageMetrics(t *testing.T) {
	cfg := pipelineConfig()
	cfg.NozzleDiameter = []float64{0.4, 0.4}
	cfg.FilamentDiameter = []float64{1.75, 1.75}
	cfg.WipeTower = true
	cfg.WipingVolumesMatrix = [][]float64{{0, 60}, {80, 0}}
	cfg.FilamentMinimalPurgeOnWipeTower = []float64{15, 15}
	job := pipelineJob(cfg)
	job.Entities[0].Regions = []*model.Region{
		{Config: model.RegionConfig{PerimeterExtruder: 0, InfillExtruder: 1}},
	}

	rec := &capturingRecorder{MetricRecorder: metrics.NewNoOpMetricRecorder()}
	graph := state.NewGraph(entityIDs(job)...)
	exec := NewExecutor(ExecutorParams{
		Job:      job,
		Graph:    graph,
		Token:    cancel.NewToken(),
		Exporter: export.NewExporter(&config.ExportConfig{OutputDir: t.TempDir()}),
		Recorder: rec,
	})

	require.NoError(t, exec.Process(context.Background(), "run11"))

	require.NotEmpty(t, rec.purgeVolumes, "every scheduled purge is measured")
	for _, v := range rec.purgeVolumes {
		assert.GreaterOrEqual(t, v, 15.0, "volumes never drop below the purge floor")
	}
	require.Len(t, rec.skirtLoops, 1)
	assert.Greater(t, rec.skirtLoops[0], 0)
	assert.Contains(t, rec.durations, model.StepWipeTower.String())
	assert.Contains(t, rec.durations, model.StepGCodeExport.String())
}

func TestProcess_StepAlreadyStarted(t *testing.T) {
	job := pipelineJob(pipelineConfig())
	exec, graph := newTestExecutor(t, job)

	require.True(t, graph.SetJobStarted(model.StepWipeTower))
	err := exec.Process(context.Background(), "run8")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "already running")
}
