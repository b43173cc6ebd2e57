package core

import (
	"image"
	"math"
)

// sizeEpsilon absorbs float error in W0*s^k so exact products
// such as 100*0.5^2 never floor to one below.
const sizeEpsilon = 1e-9

// Step describes one iteration of the nesting loop.
type Step struct {
	Iteration int
	Size      image.Point
	Angle     float64
}

// SizeAt returns the scaled size for iteration k, always derived from the
// pristine dimensions so that rounding never compounds.
func SizeAt(w0, h0 int, shrink float64, k int) image.Point {
	f := math.Pow(shrink, float64(k))
	return image.Pt(
		int(math.Floor(float64(w0)*f+sizeEpsilon)),
		int(math.Floor(float64(h0)*f+sizeEpsilon)),
	)
}

// AngleAt returns the cumulative rotation for iteration k wrapped into [0, 360).
func AngleAt(step float64, k int) float64 {
	return WrapAngle(float64(k) * step)
}

// WrapAngle normalises degrees into [0, 360).
func WrapAngle(deg float64) float64 {
	a := math.Mod(deg, 360)
	if a < 0 {
		a += 360
	}
	if a >= 360 || a == 0 {
		return 0
	}
	return a
}

// Fits reports whether a scaled copy of size is large enough to composite.
func Fits(size image.Point, minDimension int) bool {
	return size.X >= minDimension && size.Y >= minDimension
}

// Plan computes the iteration schedule for a w0×h0 source without touching
// pixels. The first entry is iteration 0 (the unmodified source). The second
// return value tells whether the schedule was cut short by geometry.
func Plan(w0, h0 int, opts Options) ([]Step, Termination) {
	opts = opts.withDefaults()
	steps := []Step{{Iteration: 0, Size: image.Pt(w0, h0), Angle: 0}}
	for k := 1; k < opts.MaxIterations; k++ {
		size := SizeAt(w0, h0, opts.ShrinkFactor, k)
		if !Fits(size, opts.MinDimension) {
			return steps, TerminationGeometry
		}
		steps = append(steps, Step{Iteration: k, Size: size, Angle: AngleAt(opts.RotationStep, k)})
	}
	return steps, TerminationMaxIterations
}
