// Package geometry resolves how a source image is scaled and placed inside a
// target ad-unit canvas.
//
// Two uniform scalings are available. ScaleToCover fills the whole canvas and
// crops the overflow; ScaleToContain matches one axis exactly and leaves gaps
// on the other. A FitPolicy chooses between them: cover is preferred, but when
// cover-fit would throw away most of the source (a square photo squeezed into
// a 728x90 leaderboard) the contained placement is used and the gaps are left
// for outpainting.
//
// ComputePlacement then pans the scaled image by an Offset and measures the
// uncovered margins. All functions are pure: identical inputs always produce
// bit-identical outputs.
package geometry

import (
	"math"

	apperr "github.com/menta2k/ad-creative/pkg/errors"
	"github.com/menta2k/ad-creative/pkg/types"
)

// FitPolicy decides between cover and contain scaling.
//
// Cover-fit is used unless it would keep less than MinRetained of the source
// area visible, in which case the image is contained instead. MinRetained 0
// always covers; 1 contains whenever the aspect ratios differ.
type FitPolicy struct {
	MinRetained float64
}

var (
	// AlwaysCover never leaves margins at zero offset
	AlwaysCover = FitPolicy{MinRetained: 0}
	// DefaultFit contains the image once cover would crop away more than half of it
	DefaultFit = FitPolicy{MinRetained: 0.5}
)

// Threshold is the per-axis margin tolerance below which a gap is treated as
// rounding noise rather than something to outpaint.
type Threshold struct {
	Pixels   float64
	Fraction float64
}

// DefaultThreshold ignores gaps up to 2px or 1% of the axis, whichever is larger
var DefaultThreshold = Threshold{Pixels: 2, Fraction: 0.01}

// Epsilon returns the tolerance for an axis of the given length
func (t Threshold) Epsilon(dim int) float64 {
	return math.Max(t.Pixels, t.Fraction*float64(dim))
}

func checkDims(kind string, w, h int) error {
	if w <= 0 || h <= 0 {
		return apperr.New(apperr.ErrCodeInvalidDimensions, "%s dimensions must be positive, got %dx%d", kind, w, h)
	}
	return nil
}

// ScaleToCover returns the source scaled uniformly so it covers the target.
// The axis that determines the scale is snapped exactly to the target size,
// so a centered placement produces margins of exactly zero.
func ScaleToCover(srcW, srcH, dstW, dstH int) (types.Size, error) {
	if err := checkDims("source", srcW, srcH); err != nil {
		return types.Size{}, err
	}
	if err := checkDims("target", dstW, dstH); err != nil {
		return types.Size{}, err
	}

	sx := float64(dstW) / float64(srcW)
	sy := float64(dstH) / float64(srcH)

	if sx >= sy {
		h := float64(srcH) * sx
		if h < float64(dstH) {
			h = float64(dstH)
		}
		return types.Size{W: float64(dstW), H: h}, nil
	}
	w := float64(srcW) * sy
	if w < float64(dstW) {
		w = float64(dstW)
	}
	return types.Size{W: w, H: float64(dstH)}, nil
}

// ScaleToContain returns the source scaled uniformly so it fits inside the
// target, touching it exactly on one axis.
func ScaleToContain(srcW, srcH, dstW, dstH int) (types.Size, error) {
	if err := checkDims("source", srcW, srcH); err != nil {
		return types.Size{}, err
	}
	if err := checkDims("target", dstW, dstH); err != nil {
		return types.Size{}, err
	}

	sx := float64(dstW) / float64(srcW)
	sy := float64(dstH) / float64(srcH)

	if sx <= sy {
		h := float64(srcH) * sx
		if h > float64(dstH) {
			h = float64(dstH)
		}
		return types.Size{W: float64(dstW), H: h}, nil
	}
	w := float64(srcW) * sy
	if w > float64(dstW) {
		w = float64(dstW)
	}
	return types.Size{W: w, H: float64(dstH)}, nil
}

// Retained is the fraction of the source area that stays visible under
// cover-fit. It is 1 when the aspect ratios match.
func Retained(src, dst types.Dims) float64 {
	if !src.Valid() || !dst.Valid() {
		return 0
	}
	sx := float64(dst.Width) / float64(src.Width)
	sy := float64(dst.Height) / float64(src.Height)
	return math.Min(sx, sy) / math.Max(sx, sy)
}

// ChooseScale applies the fit policy and returns the scaled size with the
// mode that produced it.
func ChooseScale(src, dst types.Dims, policy FitPolicy) (types.Size, types.FitMode, error) {
	if Retained(src, dst) < policy.MinRetained {
		s, err := ScaleToContain(src.Width, src.Height, dst.Width, dst.Height)
		return s, types.FitContain, err
	}
	s, err := ScaleToCover(src.Width, src.Height, dst.Width, dst.Height)
	return s, types.FitCover, err
}

// CoverRange returns, per axis, the largest offset (in percent) that keeps a
// scaled image covering the canvas. Axes without overflow report 0.
func CoverRange(scaled types.Size, target types.Dims) types.Offset {
	rx := (scaled.W - float64(target.Width)) / 2 / float64(target.Width) * 100
	ry := (scaled.H - float64(target.Height)) / 2 / float64(target.Height) * 100
	return types.Offset{
		X: clamp(rx, 0, types.MaxOffset),
		Y: clamp(ry, 0, types.MaxOffset),
	}
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
