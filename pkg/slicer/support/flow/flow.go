// Package flow holds the extrusion cross-section math shared by the skirt
// builder. An extrusion is modeled as a rectangle with two semicircular
// caps, the usual slicer approximation.
package flow

import "math"

// autoWidthFactor derives a default extrusion width from the nozzle diameter
// when the configuration leaves the width at zero ("auto").
const autoWidthFactor = 1.125

// Flow describes one extrusion line: its width and layer height in mm.
type Flow struct {
	Width  float64
	Height float64
}

// New builds a Flow from a configured width, falling back to an
// auto-generated width when the configured value is zero.
func New(configWidth, nozzleDiameter, layerHeight float64) Flow {
	width := configWidth
	if width == 0 {
		width = autoWidthFactor * nozzleDiameter
	}
	return Flow{Width: width, Height: layerHeight}
}

// Spacing is the centerline distance between adjacent lines so they touch
// without overlapping: the rounded caps tuck into each other.
func (f Flow) Spacing() float64 {
	return f.Width - f.Height*(1-math.Pi/4)
}

// MM3PerMM is the extruded volume per mm of travel.
func (f Flow) MM3PerMM() float64 {
	return f.Height * (f.Width - f.Height*(1-math.Pi/4))
}

// EPerMM converts the volumetric rate to filament length per mm of travel
// for the given filament diameter.
func (f Flow) EPerMM(filamentDiameter float64) float64 {
	area := math.Pi * filamentDiameter * filamentDiameter / 4
	if area == 0 {
		return 0
	}
	return f.MM3PerMM() / area
}
