package outpaint

import (
	"image"
	"image/color"
	"math"

	"github.com/disintegration/imaging"

	"github.com/menta2k/ad-creative/pkg/types"
)

// edgeStrip is the width of the source band sampled for each margin.
const edgeStrip = 6

// Extend fills every margin of the placement from the source edges and
// draws the sharp source on top. The result is fully opaque and exactly
// p.Target in size.
func Extend(src image.Image, p types.Placement) *image.NRGBA {
	tw, th := p.Target.Width, p.Target.Height
	canvas := image.Rect(0, 0, tw, th)
	sigma := blurSigma(tw, th)

	// Blurred cover-fit base. Only the corners stay visible when both axes
	// have margins.
	base := imaging.Fill(src, tw, th, imaging.Center, imaging.Linear)
	base = imaging.Blur(base, sigma)

	r := p.DrawRect()
	covered := r.Intersect(canvas)
	if covered.Empty() {
		return flatten(base)
	}

	scaled := imaging.Resize(src, max(1, r.Dx()), max(1, r.Dy()), imaging.Lanczos)
	// covered area in scaled-image coordinates
	vis := covered.Sub(r.Min)

	if covered.Min.X > 0 {
		w := min(edgeStrip, vis.Dx())
		strip := imaging.Crop(scaled, image.Rect(vis.Min.X, vis.Min.Y, vis.Min.X+w, vis.Max.Y))
		base = pasteStretched(base, strip, image.Rect(0, covered.Min.Y, covered.Min.X, covered.Max.Y), sigma)
	}
	if covered.Max.X < tw {
		w := min(edgeStrip, vis.Dx())
		strip := imaging.Crop(scaled, image.Rect(vis.Max.X-w, vis.Min.Y, vis.Max.X, vis.Max.Y))
		base = pasteStretched(base, strip, image.Rect(covered.Max.X, covered.Min.Y, tw, covered.Max.Y), sigma)
	}
	if covered.Min.Y > 0 {
		h := min(edgeStrip, vis.Dy())
		strip := imaging.Crop(scaled, image.Rect(vis.Min.X, vis.Min.Y, vis.Max.X, vis.Min.Y+h))
		base = pasteStretched(base, strip, image.Rect(covered.Min.X, 0, covered.Max.X, covered.Min.Y), sigma)
	}
	if covered.Max.Y < th {
		h := min(edgeStrip, vis.Dy())
		strip := imaging.Crop(scaled, image.Rect(vis.Min.X, vis.Max.Y-h, vis.Max.X, vis.Max.Y))
		base = pasteStretched(base, strip, image.Rect(covered.Min.X, covered.Max.Y, covered.Max.X, th), sigma)
	}

	base = imaging.Overlay(base, scaled, r.Min, 1.0)
	return flatten(base)
}

// pasteStretched stretches the strip across dst and blurs it. Stretching a
// thin band smears it along the margin axis; the blur softens the seam.
func pasteStretched(base *image.NRGBA, strip image.Image, dst image.Rectangle, sigma float64) *image.NRGBA {
	if dst.Empty() || strip.Bounds().Empty() {
		return base
	}
	band := imaging.Resize(strip, dst.Dx(), dst.Dy(), imaging.Linear)
	band = imaging.Blur(band, sigma/2)
	return imaging.Paste(base, band, dst.Min)
}

func blurSigma(w, h int) float64 {
	return math.Max(3, float64(max(w, h))/40)
}

// flatten composites img over opaque white so no transparent pixel remains.
func flatten(img image.Image) *image.NRGBA {
	b := img.Bounds()
	bg := imaging.New(b.Dx(), b.Dy(), color.White)
	out := imaging.Overlay(bg, img, image.Pt(0, 0), 1.0)
	for i := 3; i < len(out.Pix); i += 4 {
		out.Pix[i] = 0xff
	}
	return out
}
