// Package skirt builds the first-layer perimeter geometry: the skirt loops
// wrapped around everything printed on the first layers, and the cached
// first-layer boundary hull reused by the draft shield and collision
// avoidance.
package skirt

import (
	"math"

	"github.com/lamina3d/lamina/pkg/slicer/core/cancel"
	"github.com/lamina3d/lamina/pkg/slicer/core/config"
	"github.com/lamina3d/lamina/pkg/slicer/core/domain/model"
	"github.com/lamina3d/lamina/pkg/slicer/support/flow"
	"github.com/lamina3d/lamina/pkg/slicer/support/geometry"
	"github.com/lamina3d/lamina/pkg/slicer/support/util/logger"
)

const (
	// offsetArcTolerance bounds the chord error of rounded offset joins.
	offsetArcTolerance = 0.1
	// simplifyTolerance collapses near-collinear vertices after each offset.
	simplifyTolerance = 0.05
	// maxLoopIterations caps the min_skirt_length extension so a huge
	// configured minimum cannot spin the loop generator forever.
	maxLoopIterations = 1000
)

// Builder computes the first-layer geometry of a job.
type Builder struct {
	job *model.Job
	// towerCorners are the purge tower's first-layer footprint corners,
	// empty when no tower is printed.
	towerCorners []geometry.Point
}

// NewBuilder creates a Builder for the job. The tower corners come from the
// purge-tower plan and may be nil.
func NewBuilder(job *model.Job, towerCorners []geometry.Point) *Builder {
	return &Builder{job: job, towerCorners: towerCorners}
}

// Build collects first-layer points, hulls them and generates the skirt
// loops. Fewer than three candidate points produce an empty geometry, not an
// error. The token is checked between sub-phases; a raised token aborts with
// the cancellation error and the partial result must be discarded.
func (b *Builder) Build(tok *cancel.Token) (*model.FirstLayerGeometry, error) {
	geom := &model.FirstLayerGeometry{}

	points := b.collectPoints()
	if err := tok.Check(); err != nil {
		return nil, err
	}

	hull := geometry.ConvexHull(points)
	if hull == nil {
		logger.Infof("skirt: fewer than three first-layer points, skipping skirt")
		b.finalizeBoundary(geom, nil)
		return geom, nil
	}

	if err := b.buildLoops(tok, geom, hull); err != nil {
		return nil, err
	}

	b.finalizeBoundary(geom, geom.SkirtHull)
	return geom, nil
}

// skirtHeightZ is the print height the skirt must reach: the top of the
// configured number of skirt layers, or the full object height for a draft
// shield.
func (b *Builder) skirtHeightZ() float64 {
	z := 0.0
	for _, entity := range b.job.Entities {
		n := entity.LayerCount()
		if n == 0 {
			continue
		}
		layers := n
		if !b.job.HasInfiniteSkirt() && b.job.Config.SkirtHeight < layers {
			layers = b.job.Config.SkirtHeight
		}
		if layers < 1 {
			continue
		}
		if pz := entity.Layers[layers-1].PrintZ; pz > z {
			z = pz
		}
	}
	return z
}

// collectPoints gathers every candidate 2D point below the skirt height:
// layer contours and support contours replicated per instance, the purge
// tower corners, and the brim outlines unless a draft shield will stand in
// for them.
func (b *Builder) collectPoints() []geometry.Point {
	heightZ := b.skirtHeightZ()

	var points []geometry.Point
	for _, entity := range b.job.Entities {
		var entityPoints []geometry.Point
		for _, layer := range entity.Layers {
			if layer.PrintZ > heightZ {
				break
			}
			for _, contour := range layer.Contours {
				entityPoints = append(entityPoints, contour...)
			}
		}
		for _, layer := range entity.SupportLayers {
			if layer.PrintZ > heightZ {
				break
			}
			for _, contour := range layer.Contours {
				entityPoints = append(entityPoints, contour...)
			}
		}
		for _, inst := range entity.Instances {
			rotate := math.Abs(inst.RotationZ) > 1e-9
			for _, pt := range entityPoints {
				if rotate {
					pt = pt.Rotate(inst.RotationZ)
				}
				points = append(points, pt.Add(inst.Shift))
			}
		}
	}

	points = append(points, b.towerCorners...)

	if b.job.Config.DraftShield == config.DraftShieldDisabled {
		points = append(points, b.brimPoints()...)
	}

	return points
}

// brimPoints approximates each instance's brim outline by offsetting the
// entity footprint hull outward by its brim width.
func (b *Builder) brimPoints() []geometry.Point {
	var points []geometry.Point
	for _, entity := range b.job.Entities {
		brim := entity.Config.BrimWidth
		if brim <= 0 {
			brim = b.job.Config.BrimWidth
		}
		if brim <= 0 || len(entity.Footprint) == 0 {
			continue
		}
		hull := geometry.ConvexHull(entity.Footprint)
		if hull == nil {
			continue
		}
		outline := geometry.OffsetConvexRound(hull, brim, offsetArcTolerance)
		for _, inst := range entity.Instances {
			rotated := outline
			if math.Abs(inst.RotationZ) > 1e-9 {
				rotated = outline.Rotate(inst.RotationZ)
			}
			points = append(points, rotated.Translate(inst.Shift)...)
		}
	}
	return points
}

// buildLoops offsets the hull outward once per loop, accounting extruded
// length per extruder so every extruder reaches the configured minimum
// before the generator moves on.
func (b *Builder) buildLoops(tok *cancel.Token, geom *model.FirstLayerGeometry, hull geometry.Polygon) error {
	cfg := b.job.Config

	skirtFlow := b.skirtFlow()
	spacing := skirtFlow.Spacing()

	extruders := b.job.Extruders()
	ePerMM := make([]float64, len(extruders))
	for i, e := range extruders {
		ePerMM[i] = skirtFlow.EPerMM(cfg.FilamentDiameterAt(e))
	}

	loops := cfg.Skirts
	if b.job.HasInfiniteSkirt() && loops == 0 {
		loops = 1
	}

	// The innermost loop starts one skirt distance from the hull, measured
	// between centerlines.
	distance := cfg.SkirtDistance - spacing/2

	extrudedLength := make([]float64, len(extruders))
	extruderIdx := 0
	iterations := 0
	for i := loops; i > 0; i-- {
		if err := tok.Check(); err != nil {
			return err
		}
		iterations++
		if iterations > maxLoopIterations {
			logger.Warnf("skirt: loop cap reached after %d iterations, min_skirt_length not reached", maxLoopIterations)
			break
		}

		distance += spacing
		loop := geometry.OffsetConvexRound(hull, distance, offsetArcTolerance).Simplify(simplifyTolerance)
		if loop == nil {
			break
		}

		length := loop.Perimeter()
		geom.Skirt = append(geom.Skirt, model.SkirtLoop{
			Ring:           loop,
			Extruder:       extruders[extruderIdx],
			ExtrudedLength: length * ePerMM[extruderIdx],
		})

		if cfg.MinSkirtLength > 0 {
			extrudedLength[extruderIdx] += length * ePerMM[extruderIdx]
			if extrudedLength[extruderIdx] < cfg.MinSkirtLength {
				// Not enough extruded with this extruder yet, add a loop.
				if i == 1 {
					i++
				}
			} else if extruderIdx+1 < len(extruders) {
				// This extruder met its minimum; keep looping so the next
				// one can meet its own.
				extruderIdx++
				if i == 1 {
					i++
				}
			}
		}
	}

	// Loops were generated inside out; print the outermost first.
	for i, j := 0, len(geom.Skirt)-1; i < j; i, j = i+1, j-1 {
		geom.Skirt[i], geom.Skirt[j] = geom.Skirt[j], geom.Skirt[i]
	}

	if len(geom.Skirt) > 0 {
		geom.SkirtHull = geometry.OffsetConvexRound(hull, distance+spacing/2, offsetArcTolerance)
	}
	return nil
}

// skirtFlow resolves the flow used for every skirt loop. Loops on different
// layers must stay aligned, so one flow serves all of them.
func (b *Builder) skirtFlow() flow.Flow {
	cfg := b.job.Config
	width := cfg.FirstLayerExtrusionWidth
	if width == 0 && len(b.job.Entities) > 0 {
		for _, region := range b.job.Entities[0].Regions {
			if region.Config.PerimeterExtrusionWidth > 0 {
				width = region.Config.PerimeterExtrusionWidth
				break
			}
		}
		if width == 0 {
			width = b.job.Entities[0].Config.ExtrusionWidth
		}
	}
	return flow.New(width, cfg.NozzleDiameterAt(0), cfg.FirstLayerHeight)
}

// finalizeBoundary records the global first-layer boundary: object
// footprints, skirt hull and tower corners re-hulled together.
func (b *Builder) finalizeBoundary(geom *model.FirstLayerGeometry, skirtHull geometry.Polygon) {
	var points []geometry.Point
	for _, entity := range b.job.Entities {
		for _, inst := range entity.Instances {
			fp := entity.Footprint
			if math.Abs(inst.RotationZ) > 1e-9 {
				fp = fp.Rotate(inst.RotationZ)
			}
			points = append(points, fp.Translate(inst.Shift)...)
		}
	}
	points = append(points, skirtHull...)
	points = append(points, b.towerCorners...)
	geom.Boundary = geometry.ConvexHull(points)
}
