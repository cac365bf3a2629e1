package validate

import (
	"math"

	"github.com/google/uuid"

	"github.com/lamina3d/lamina/pkg/slicer/core/domain/model"
	"github.com/lamina3d/lamina/pkg/slicer/support/geometry"
)

// bedEpsilon shrinks the clearance offset a tiny bit so that objects placed
// by an arranger at exactly the clearance distance do not trigger a false
// collision.
const bedEpsilon = 3 * epsilon

// offsetArcTolerance bounds the chord error of the rounded clearance joins.
const offsetArcTolerance = 0.1

// horizontalClearanceValid checks that no two instances' clearance-expanded
// convex hulls overlap when printing one object at a time. When collisions is
// non-nil the check runs to completion and records every offending hull
// instead of failing fast.
func horizontalClearanceValid(job *model.Job, collisions *[]geometry.Polygon) bool {
	if collisions != nil {
		*collisions = (*collisions)[:0]
	}

	delta := 0.5*job.Config.ExtruderClearanceRadius - bedEpsilon
	hullCache := make(map[uuid.UUID]geometry.Polygon, len(job.Entities))
	refRotation := make(map[uuid.UUID]float64, len(job.Entities))

	var placed []geometry.Polygon
	intersecting := map[int]struct{}{}

	for _, entity := range job.Entities {
		if len(entity.Instances) == 0 || len(entity.Footprint) == 0 {
			continue
		}
		ref, cached := hullCache[entity.ID]
		if !cached {
			refRotation[entity.ID] = entity.Instances[0].RotationZ
			base := entity.Footprint.Rotate(refRotation[entity.ID])
			hull := geometry.ConvexHull(base)
			if hull == nil {
				continue
			}
			ref = geometry.OffsetConvexRound(hull, delta, offsetArcTolerance)
			hullCache[entity.ID] = ref
		}
		for _, inst := range entity.Instances {
			hull := ref
			if diff := inst.RotationZ - refRotation[entity.ID]; math.Abs(diff) > epsilon {
				hull = hull.Rotate(diff)
			}
			hull = hull.Translate(inst.Shift)
			for i, other := range placed {
				if geometry.IntersectsConvex(other, hull) {
					if collisions == nil {
						return false
					}
					intersecting[i] = struct{}{}
					intersecting[len(placed)] = struct{}{}
				}
			}
			placed = append(placed, hull)
		}
	}

	if len(intersecting) == 0 {
		return true
	}
	for i, hull := range placed {
		if _, ok := intersecting[i]; ok {
			*collisions = append(*collisions, hull)
		}
	}
	return false
}

// verticalClearanceValid checks that, excluding the instance printed last,
// no instance is taller than the extruder clearance height. The gantry
// passes over every finished object on its way to the final one.
func verticalClearanceValid(job *model.Job) bool {
	type placedInstance struct {
		height float64
	}
	var ordered []placedInstance
	for _, entity := range job.Entities {
		h := entity.Height()
		for range entity.Instances {
			ordered = append(ordered, placedInstance{height: h})
		}
	}
	if len(ordered) <= 1 {
		return true
	}
	ordered = ordered[:len(ordered)-1]
	tallest := 0.0
	for _, inst := range ordered {
		if inst.height > tallest {
			tallest = inst.height
		}
	}
	return tallest <= job.Config.ExtruderClearanceHeight
}
