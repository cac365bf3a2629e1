package pipeline

import (
	"math"
	"sort"

	"github.com/lamina3d/lamina/pkg/slicer/core/domain/model"
)

// layerMergeEpsilon merges slicing planes closer than this into one layer.
const layerMergeEpsilon = 1e-4

// BuildLayerTools derives the per-layer tool usage from the job's computed
// geometry: which extruders print on each z plane, in usage order, and how
// much purge tower structure remains above each layer.
func BuildLayerTools(job *model.Job) []model.LayerTools {
	type layerUse struct {
		hasObject  bool
		hasSupport bool
		extruders  []int
	}

	// Collect distinct print z planes.
	uses := map[float64]*layerUse{}
	var zs []float64
	at := func(z float64) *layerUse {
		for _, existing := range zs {
			if math.Abs(existing-z) < layerMergeEpsilon {
				return uses[existing]
			}
		}
		zs = append(zs, z)
		uses[z] = &layerUse{}
		return uses[z]
	}

	for _, entity := range job.Entities {
		objectExtruders := entityObjectExtruders(entity)
		for _, layer := range entity.Layers {
			use := at(layer.PrintZ)
			use.hasObject = true
			use.extruders = appendUnique(use.extruders, objectExtruders...)
		}
		supportExtruders := entitySupportExtruders(job, entity)
		for _, layer := range entity.SupportLayers {
			use := at(layer.PrintZ)
			use.hasSupport = true
			use.extruders = appendUnique(use.extruders, supportExtruders...)
		}
	}

	sort.Float64s(zs)

	hasTower := job.HasWipeTower()
	tools := make([]model.LayerTools, len(zs))
	prevZ := 0.0
	for i, z := range zs {
		use := uses[z]
		tools[i] = model.LayerTools{
			PrintZ:       z,
			LayerHeight:  z - prevZ,
			Extruders:    use.extruders,
			HasObject:    use.hasObject,
			HasSupport:   use.hasSupport,
			HasWipeTower: hasTower,
		}
		prevZ = z
	}

	// Tower partitions: the number of tool changes happening at this layer
	// or above. Planning stops once no partitions remain.
	if hasTower {
		changes := make([]int, len(tools))
		current := -1
		for i, lt := range tools {
			for _, e := range lt.Extruders {
				if current >= 0 && e != current {
					changes[i]++
				}
				current = e
			}
		}
		remaining := 0
		for i := len(tools) - 1; i >= 0; i-- {
			remaining += changes[i]
			tools[i].WipeTowerPartitions = remaining
		}
	}

	return tools
}

// entityObjectExtruders lists the entity's region extruders in usage order:
// perimeters before infill, region by region.
func entityObjectExtruders(entity *model.Entity) []int {
	var out []int
	for _, region := range entity.Regions {
		out = appendUnique(out, region.Config.PerimeterExtruder, region.Config.InfillExtruder)
	}
	return out
}

// entitySupportExtruders resolves the entity's support extruders; the
// "current tool" convention (configured 0) maps to the entity's own object
// extruders.
func entitySupportExtruders(job *model.Job, entity *model.Entity) []int {
	if !entity.HasSupportMaterial() {
		return nil
	}
	var out []int
	numExtruders := len(job.Config.NozzleDiameter)
	for _, cfgExtruder := range []int{entity.Config.SupportMaterialExtruder, entity.Config.SupportMaterialInterfaceExtruder} {
		if cfgExtruder == 0 {
			out = appendUnique(out, entityObjectExtruders(entity)...)
			continue
		}
		i := cfgExtruder - 1
		if i >= numExtruders {
			i = 0
		}
		out = appendUnique(out, i)
	}
	return out
}

func appendUnique(dst []int, values ...int) []int {
	for _, v := range values {
		found := false
		for _, existing := range dst {
			if existing == v {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, v)
		}
	}
	return dst
}
