package geometry

import (
	"math"

	apperr "github.com/menta2k/ad-creative/pkg/errors"
	"github.com/menta2k/ad-creative/pkg/types"
)

// minVisible is how many pixels of the image must stay on the canvas
const minVisible = 1.0

// ComputePlacement centers the scaled image over the target, pans it by the
// offset and measures the uncovered margin on each side.
//
// Offsets outside [-50, 50] are rejected, not clamped. The resulting draw
// position is clamped so the image keeps at least one pixel on the canvas.
func ComputePlacement(scaled types.Size, target types.Dims, offset types.Offset, th Threshold) (types.Placement, error) {
	if err := checkDims("target", target.Width, target.Height); err != nil {
		return types.Placement{}, err
	}
	if !(scaled.W > 0) || !(scaled.H > 0) || math.IsInf(scaled.W, 0) || math.IsInf(scaled.H, 0) {
		return types.Placement{}, apperr.New(apperr.ErrCodeInvalidDimensions, "scaled size must be positive, got %gx%g", scaled.W, scaled.H)
	}
	if !offset.Valid() {
		return types.Placement{}, apperr.New(apperr.ErrCodeInvalidOffset, "offset (%g, %g) outside [-%g, %g]", offset.X, offset.Y, types.MaxOffset, types.MaxOffset)
	}

	tw, th64 := float64(target.Width), float64(target.Height)

	x := (tw-scaled.W)/2 + offset.X/100*tw
	y := (th64-scaled.H)/2 + offset.Y/100*th64

	x = clamp(x, minVisible-scaled.W, tw-minVisible)
	y = clamp(y, minVisible-scaled.H, th64-minVisible)

	m := types.Margins{
		Left:   math.Max(0, x),
		Right:  math.Max(0, tw-(x+scaled.W)),
		Top:    math.Max(0, y),
		Bottom: math.Max(0, th64-(y+scaled.H)),
	}

	ex := th.Epsilon(target.Width)
	ey := th.Epsilon(target.Height)

	fit := types.FitContain
	if scaled.W >= tw && scaled.H >= th64 {
		fit = types.FitCover
	}

	return types.Placement{
		Target:        target,
		Scaled:        scaled,
		Draw:          types.RectF{X: x, Y: y, W: scaled.W, H: scaled.H},
		Margins:       m,
		NeedsOutpaint: m.Left > ex || m.Right > ex || m.Top > ey || m.Bottom > ey,
		Fit:           fit,
	}, nil
}

// Plan scales the source according to the policy and places it.
func Plan(src, target types.Dims, offset types.Offset, policy FitPolicy, th Threshold) (types.Placement, error) {
	scaled, _, err := ChooseScale(src, target, policy)
	if err != nil {
		return types.Placement{}, err
	}
	return ComputePlacement(scaled, target, offset, th)
}
