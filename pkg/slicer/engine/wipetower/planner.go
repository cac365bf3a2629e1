// Package wipetower plans the multi-extruder purge tower: one PurgeEvent per
// tool change, sized from the purge-volume matrix, reduced by whatever wiping
// the object's own extrusions can absorb.
package wipetower

import (
	"math"

	"github.com/lamina3d/lamina/pkg/slicer/core/cancel"
	"github.com/lamina3d/lamina/pkg/slicer/core/config"
	"github.com/lamina3d/lamina/pkg/slicer/core/domain/model"
	"github.com/lamina3d/lamina/pkg/slicer/support/geometry"
	"github.com/lamina3d/lamina/pkg/slicer/support/util/logger"
)

// defaultPurgeVolume is used when the purge-volume matrix has no entry for a
// tool-change pair.
const defaultPurgeVolume = 140.0

// WipingAbsorber lets object and infill extrusions serve double duty as
// purge. MarkWipingExtrusions marks up to requested cubic millimeters of the
// layer's extrusions as wiping moves and returns the volume still left for
// the tower.
type WipingAbsorber interface {
	MarkWipingExtrusions(layer model.LayerTools, fromExtruder, toExtruder int, requested float64) float64
}

// Plan is the finished purge tower schedule.
type Plan struct {
	// Events are the scheduled purges in layer order, final purge included.
	Events []model.PurgeEvent
	// Depth is the tower footprint depth derived from the largest per-layer
	// purge volume.
	Depth float64
	// BrimWidth is the first-layer brim around the tower.
	BrimWidth float64
	// ToolChanges counts the regular (non-final) purge events.
	ToolChanges int
}

// TotalPurgeVolume sums all scheduled purge volumes.
func (p *Plan) TotalPurgeVolume() float64 {
	total := 0.0
	for _, ev := range p.Events {
		total += ev.Volume
	}
	return total
}

// Planner schedules purge events over the layer sequence.
type Planner struct {
	cfg      *config.PrintConfig
	absorber WipingAbsorber
}

// NewPlanner creates a Planner. The absorber may be nil, in which case no
// purge volume is absorbed by object extrusions.
func NewPlanner(cfg *config.PrintConfig, absorber WipingAbsorber) *Planner {
	return &Planner{cfg: cfg, absorber: absorber}
}

// Plan walks the layer sequence and emits one PurgeEvent per tool change.
// The token is checked once per layer. An empty extruder sequence is not an
// error here; the pipeline rejects empty jobs before planning.
func (p *Planner) Plan(tok *cancel.Token, layers []model.LayerTools) (*Plan, error) {
	plan := &Plan{BrimWidth: p.cfg.WipeTowerBrimWidth}
	if len(layers) == 0 {
		return plan, nil
	}

	all := allExtruders(layers)
	if len(all) == 0 {
		return plan, nil
	}

	// Priming at the start of the print leaves the last primed extruder
	// loaded.
	current := all[len(all)-1]

	maxLayerVolume := 0.0
	lastTowerLayer := -1

	for i, layer := range layers {
		if err := tok.Check(); err != nil {
			return nil, err
		}
		if !layer.HasWipeTower {
			continue
		}
		lastTowerLayer = i
		layerVolume := 0.0
		for _, extruder := range layer.Extruders {
			// The very first layer re-primes the already loaded extruder,
			// so its purge is scheduled even without a tool change.
			reprime := i == 0 && extruder == current
			if extruder == current && !reprime {
				continue
			}
			volume := p.matrixVolume(current, extruder) - p.cfg.MinimalPurgeAt(extruder)
			if volume < 0 {
				volume = 0
			}
			if p.absorber != nil {
				volume = p.absorber.MarkWipingExtrusions(layer, current, extruder, volume)
				if volume < 0 {
					volume = 0
				}
			}
			// The forced floor always lands on the tower.
			volume += p.cfg.MinimalPurgeAt(extruder)

			plan.Events = append(plan.Events, model.PurgeEvent{
				PrintZ:       layer.PrintZ,
				FromExtruder: current,
				ToExtruder:   extruder,
				Volume:       volume,
			})
			layerVolume += volume
			current = extruder
		}
		if layerVolume > maxLayerVolume {
			maxLayerVolume = layerVolume
		}
		if i+1 < len(layers) && layers[i+1].WipeTowerPartitions == 0 {
			break
		}
	}

	plan.ToolChanges = len(plan.Events)
	plan.Depth = p.depthFor(maxLayerVolume)

	if lastTowerLayer >= 0 {
		p.scheduleFinalPurge(plan, layers, lastTowerLayer, current)
	}

	logger.Debugf("wipetower: %d tool changes, depth %.2f, total purge %.1f mm3",
		plan.ToolChanges, plan.Depth, plan.TotalPurgeVolume())
	return plan, nil
}

// scheduleFinalPurge flushes the last loaded filament. If the tower reached
// the topmost print layer there is no room left on it, so the purge moves
// one layer above; otherwise it lands on the last tower layer.
func (p *Planner) scheduleFinalPurge(plan *Plan, layers []model.LayerTools, lastTowerLayer, current int) {
	last := layers[lastTowerLayer]
	z := last.PrintZ
	if lastTowerLayer == len(layers)-1 && last.WipeTowerPartitions > 0 {
		z += last.LayerHeight
	}
	plan.Events = append(plan.Events, model.PurgeEvent{
		PrintZ:       z,
		FromExtruder: current,
		ToExtruder:   -1,
		Volume:       p.cfg.MinimalPurgeAt(current),
	})
}

// matrixVolume looks up the purge volume for one tool change, with a
// fallback for sparse matrices.
func (p *Planner) matrixVolume(from, to int) float64 {
	m := p.cfg.WipingVolumesMatrix
	if from >= 0 && from < len(m) && to >= 0 && to < len(m[from]) {
		return m[from][to]
	}
	return defaultPurgeVolume
}

// depthFor sizes the tower footprint so the largest per-layer purge fits in
// one layer of tower at the configured width.
func (p *Planner) depthFor(maxLayerVolume float64) float64 {
	if maxLayerVolume == 0 || p.cfg.WipeTowerWidth == 0 {
		return 0
	}
	layerHeight := p.cfg.FirstLayerHeight
	if layerHeight == 0 {
		layerHeight = 0.2
	}
	return maxLayerVolume / (layerHeight * p.cfg.WipeTowerWidth)
}

// allExtruders returns the extruders in order of first use across layers.
func allExtruders(layers []model.LayerTools) []int {
	seen := map[int]struct{}{}
	var out []int
	for _, layer := range layers {
		for _, e := range layer.Extruders {
			if _, ok := seen[e]; !ok {
				seen[e] = struct{}{}
				out = append(out, e)
			}
		}
	}
	return out
}

// FirstLayerCorners returns the tower's first-layer footprint corners, brim
// included, rotated and translated to the configured tower placement.
func FirstLayerCorners(cfg *config.PrintConfig, plan *Plan) []geometry.Point {
	if plan == nil || plan.ToolChanges == 0 {
		return nil
	}
	width := cfg.WipeTowerWidth + 2*plan.BrimWidth
	depth := plan.Depth + 2*plan.BrimWidth
	origin := geometry.Pt(-plan.BrimWidth, -plan.BrimWidth)
	corners := []geometry.Point{
		origin,
		{X: origin.X + width, Y: origin.Y},
		{X: origin.X + width, Y: origin.Y + depth},
		{X: origin.X, Y: origin.Y + depth},
	}
	angle := cfg.WipeTowerRotationAngle * math.Pi / 180
	shift := geometry.Pt(cfg.WipeTowerX, cfg.WipeTowerY)
	for i, pt := range corners {
		corners[i] = pt.Rotate(angle).Add(shift)
	}
	return corners
}
