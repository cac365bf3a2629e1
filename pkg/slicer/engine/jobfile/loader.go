// Package jobfile loads a YAML job description into a model.Job: entity
// footprints, region and entity overrides, instance placements. Layer stacks
// are synthesized from the declared entity height; real slicing geometry is
// supplied by the external stage callables at run time.
package jobfile

import (
	"math"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/lamina3d/lamina/pkg/slicer/core/config"
	"github.com/lamina3d/lamina/pkg/slicer/core/domain/model"
	"github.com/lamina3d/lamina/pkg/slicer/support/geometry"
	"github.com/lamina3d/lamina/pkg/slicer/support/util/configbinder"
	"github.com/lamina3d/lamina/pkg/slicer/support/util/exception"
)

const moduleName = "jobfile"

// Description is the YAML shape of a job file.
type Description struct {
	Entities []EntityDescription `yaml:"entities"`
}

// EntityDescription declares one printable entity.
type EntityDescription struct {
	Name   string  `yaml:"name"`
	Height float64 `yaml:"height"`
	// Footprint lists the 2D outline as [x, y] pairs.
	Footprint [][2]float64 `yaml:"footprint"`
	// Properties are entity configuration overrides keyed by their
	// configuration-key names (e.g. "layer_height", "support_material").
	Properties map[string]string     `yaml:"properties"`
	Regions    []RegionDescription   `yaml:"regions"`
	Instances  []InstanceDescription `yaml:"instances"`
}

// RegionDescription declares one material region of an entity.
type RegionDescription struct {
	Properties map[string]string `yaml:"properties"`
}

// InstanceDescription places one copy of an entity.
type InstanceDescription struct {
	Shift [2]float64 `yaml:"shift"`
	// RotationZ is given in degrees.
	RotationZ float64 `yaml:"rotation_z"`
}

// Load reads and parses a job file from disk.
func Load(path string, cfg *config.PrintConfig) (*model.Job, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, exception.NewSliceErrorf(moduleName, "failed to read job file %s", path, err)
	}
	return Parse(data, cfg)
}

// Parse builds a model.Job from a YAML job description bound to the given
// configuration snapshot.
func Parse(data []byte, cfg *config.PrintConfig) (*model.Job, error) {
	var desc Description
	if err := yaml.Unmarshal(data, &desc); err != nil {
		return nil, exception.NewSliceError(moduleName, "failed to parse job description", err)
	}
	if len(desc.Entities) == 0 {
		return nil, exception.NewSliceError(moduleName, "job description declares no entities", nil)
	}

	job := model.NewJob(cfg)
	for i := range desc.Entities {
		entity, err := buildEntity(&desc.Entities[i], cfg)
		if err != nil {
			return nil, err
		}
		job.Entities = append(job.Entities, entity)
	}
	return job, nil
}

func buildEntity(desc *EntityDescription, cfg *config.PrintConfig) (*model.Entity, error) {
	if desc.Name == "" {
		return nil, exception.NewSliceError(moduleName, "entity is missing a name", nil)
	}
	if len(desc.Footprint) < 3 {
		return nil, exception.NewSliceErrorf(moduleName, "entity %s: footprint needs at least 3 points", desc.Name)
	}
	if desc.Height <= 0 {
		return nil, exception.NewSliceErrorf(moduleName, "entity %s: height must be positive", desc.Name)
	}

	entity := model.NewEntity(desc.Name)
	if err := configbinder.BindProperties(desc.Properties, &entity.Config); err != nil {
		return nil, exception.NewSliceErrorf(moduleName, "entity %s: invalid properties", desc.Name, err)
	}

	outline := make(geometry.Polygon, len(desc.Footprint))
	for i, pt := range desc.Footprint {
		outline[i] = geometry.Pt(pt[0], pt[1])
	}
	entity.Footprint = geometry.ConvexHull(outline)

	layerHeight := entity.Config.LayerHeight
	if layerHeight <= 0 {
		layerHeight = defaultLayerHeight(cfg)
		entity.Config.LayerHeight = layerHeight
	}
	firstLayerHeight := cfg.FirstLayerHeight
	if firstLayerHeight <= 0 {
		firstLayerHeight = layerHeight
	}
	entity.Slicing = model.SlicingParams{
		FirstLayerHeight: firstLayerHeight,
		LayerHeight:      layerHeight,
		RaftLayers:       entity.Config.RaftLayers,
	}
	entity.Layers = synthesizeLayers(desc.Height, firstLayerHeight, layerHeight, entity.Footprint)

	if len(desc.Regions) == 0 {
		entity.Regions = []*model.Region{{}}
	} else {
		for i := range desc.Regions {
			region := &model.Region{}
			if err := configbinder.BindProperties(desc.Regions[i].Properties, &region.Config); err != nil {
				return nil, exception.NewSliceErrorf(moduleName, "entity %s: invalid region properties", desc.Name, err)
			}
			entity.Regions = append(entity.Regions, region)
		}
	}

	if len(desc.Instances) == 0 {
		entity.Instances = []model.Instance{{}}
	} else {
		for _, inst := range desc.Instances {
			entity.Instances = append(entity.Instances, model.Instance{
				Shift:     geometry.Pt(inst.Shift[0], inst.Shift[1]),
				RotationZ: inst.RotationZ * math.Pi / 180,
			})
		}
	}
	return entity, nil
}

// synthesizeLayers builds a uniform layer stack for the declared height. The
// contour of every layer is the footprint outline; external slicing stages
// replace these with real cross-sections when present.
func synthesizeLayers(height, firstLayerHeight, layerHeight float64, outline geometry.Polygon) []model.LayerSlice {
	var layers []model.LayerSlice
	z := firstLayerHeight
	for z < height+layerHeight/2 {
		layers = append(layers, model.LayerSlice{
			PrintZ:   z,
			Contours: []geometry.Polygon{outline},
		})
		z += layerHeight
	}
	return layers
}

func defaultLayerHeight(cfg *config.PrintConfig) float64 {
	if d := cfg.NozzleDiameterAt(0); d > 0 {
		return d / 2
	}
	return 0.2
}
