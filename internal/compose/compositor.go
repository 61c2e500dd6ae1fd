// Package compose warps a replacement image into a frame and blends it in.
package compose

import (
	"image"
	"image/color"

	"gocv.io/x/gocv"
)

// DefaultAlpha is the blend factor applied to the warped replacement.
const DefaultAlpha = 0.7

// Composite warps replacement into target's coordinate space with the
// homography h and alpha-blends it over target, restricted to the warped
// footprint. The caller owns the returned frame. A degenerate homography
// returns an untouched copy of target: compositing failures degrade
// quality, never correctness.
func Composite(target, replacement, h gocv.Mat, alpha float64) gocv.Mat {
	out := target.Clone()
	if h.Empty() || h.Rows() != 3 || h.Cols() != 3 || replacement.Empty() {
		return out
	}
	if alpha < 0 {
		alpha = 0
	}
	if alpha > 1 {
		alpha = 1
	}

	// Warping onto a copy of the target with a transparent border keeps
	// target pixels outside the footprint, so one AddWeighted pass blends
	// inside the footprint and leaves the rest bit-identical.
	warped := target.Clone()
	defer warped.Close()
	gocv.WarpPerspectiveWithParams(replacement, &warped, h,
		image.Pt(target.Cols(), target.Rows()),
		gocv.InterpolationLinear, gocv.BorderTransparent, color.RGBA{})

	gocv.AddWeighted(target, 1-alpha, warped, alpha, 0, &out)
	return out
}
