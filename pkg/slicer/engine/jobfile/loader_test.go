package jobfile

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lamina3d/lamina/pkg/slicer/core/config"
)

func loaderConfig() *config.PrintConfig {
	cfg := config.NewConfig().Lamina.Print
	return &cfg
}

const sampleJob = `
entities:
  - name: cube
    height: 1.0
    footprint: [[-10, -10], [10, -10], [10, 10], [-10, 10]]
    properties:
      layer_height: "0.2"
      support_material: "true"
    regions:
      - properties:
          perimeter_extruder: "0"
          infill_extruder: "1"
    instances:
      - shift: [5, 5]
        rotation_z: 90
      - shift: [-40, 0]
`

func TestParse_Sample(t *testing.T) {
	job, err := Parse([]byte(sampleJob), loaderConfig())
	require.NoError(t, err)
	require.Len(t, job.Entities, 1)

	e := job.Entities[0]
	assert.Equal(t, "cube", e.Name)
	assert.InDelta(t, 0.2, e.Config.LayerHeight, 1e-9)
	assert.True(t, e.Config.SupportMaterial)
	require.Len(t, e.Regions, 1)
	assert.Equal(t, 1, e.Regions[0].Config.InfillExtruder)
	assert.Len(t, e.Footprint, 4)

	// First layer at first_layer_height, then uniform steps up to the height.
	require.Len(t, e.Layers, 5)
	assert.InDelta(t, 0.2, e.Layers[0].PrintZ, 1e-9)
	assert.InDelta(t, 1.0, e.Layers[4].PrintZ, 1e-9)

	require.Len(t, e.Instances, 2)
	assert.InDelta(t, 5, e.Instances[0].Shift.X, 1e-9)
	assert.InDelta(t, 1.5707963, e.Instances[0].RotationZ, 1e-6, "degrees become radians")
}

func TestParse_DefaultsWithoutOverrides(t *testing.T) {
	const minimal = `
entities:
  - name: plate
    height: 0.6
    footprint: [[0, 0], [20, 0], [20, 20]]
`
	job, err := Parse([]byte(minimal), loaderConfig())
	require.NoError(t, err)

	e := job.Entities[0]
	assert.InDelta(t, 0.2, e.Config.LayerHeight, 1e-9, "half the nozzle diameter")
	require.Len(t, e.Regions, 1)
	require.Len(t, e.Instances, 1)
	assert.Zero(t, e.Instances[0].Shift.X)
}

func TestParse_Invalid(t *testing.T) {
	cases := map[string]string{
		"no entities": `entities: []`,
		"missing name": `
entities:
  - height: 1
    footprint: [[0,0],[1,0],[1,1]]`,
		"thin footprint": `
entities:
  - name: line
    height: 1
    footprint: [[0,0],[1,0]]`,
		"flat height": `
entities:
  - name: flat
    height: 0
    footprint: [[0,0],[1,0],[1,1]]`,
	}
	for name, doc := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Parse([]byte(doc), loaderConfig())
			assert.Error(t, err)
		})
	}
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("does-not-exist.yaml", loaderConfig())
	assert.Error(t, err)
}
