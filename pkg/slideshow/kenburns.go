package slideshow

import (
	"image"
	"math"
	"math/rand"

	"golang.org/x/image/draw"
	"golang.org/x/image/math/f64"
)

// Motion is the pan-and-zoom path of one image. Zoom is relative to the
// cover-fit scale and never below 1, so the frame is always covered. Pan
// is in [-1, 1] of the overflow available at the current zoom.
type Motion struct {
	StartZoom, EndZoom float64
	StartPanX, EndPanX float64
	StartPanY, EndPanY float64
}

// RandomMotion draws a motion from r. Half of the motions zoom in, the
// other half zoom out.
func RandomMotion(r *rand.Rand, maxZoom float64) Motion {
	maxZoom = math.Max(1, maxZoom)
	near := 1 + (maxZoom-1)*(0.6+0.4*r.Float64())
	m := Motion{StartZoom: 1, EndZoom: near}
	if r.Intn(2) == 1 {
		m.StartZoom, m.EndZoom = m.EndZoom, m.StartZoom
	}
	m.StartPanX = r.Float64()*2 - 1
	m.EndPanX = r.Float64()*2 - 1
	m.StartPanY = r.Float64()*2 - 1
	m.EndPanY = r.Float64()*2 - 1
	return m
}

// At returns the zoom and pan at progress p in [0, 1], eased in and out.
func (m Motion) At(p float64) (zoom, panX, panY float64) {
	t := ease(math.Max(0, math.Min(1, p)))
	return lerp(m.StartZoom, m.EndZoom, t), lerp(m.StartPanX, m.EndPanX, t), lerp(m.StartPanY, m.EndPanY, t)
}

// Transform returns the source-to-destination affine transform of src on
// a w x h frame at progress p.
func (m Motion) Transform(src image.Rectangle, w, h int, p float64) f64.Aff3 {
	zoom, panX, panY := m.At(p)
	sw, sh := float64(src.Dx()), float64(src.Dy())
	fw, fh := float64(w), float64(h)

	s := math.Max(fw/sw, fh/sh) * math.Max(1, zoom)
	// visible half extents in source pixels
	hx, hy := fw/(2*s), fh/(2*s)
	cx := float64(src.Min.X) + sw/2 + panX*math.Max(0, sw/2-hx)
	cy := float64(src.Min.Y) + sh/2 + panY*math.Max(0, sh/2-hy)

	return f64.Aff3{
		s, 0, fw/2 - s*cx,
		0, s, fh/2 - s*cy,
	}
}

// drawMotion renders src into dst at progress p.
func drawMotion(dst *image.RGBA, src image.Image, m Motion, p float64, interp draw.Interpolator) {
	b := dst.Bounds()
	aff := m.Transform(src.Bounds(), b.Dx(), b.Dy(), p)
	interp.Transform(dst, aff, src, src.Bounds(), draw.Src, nil)
}

func ease(t float64) float64 {
	return t * t * (3 - 2*t)
}

func lerp(a, b, t float64) float64 {
	return a + (b-a)*t
}
