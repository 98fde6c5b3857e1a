// Package compositor draws overlay layers onto a filled ad canvas.
//
// Layers are drawn in a fixed z-order: background, scrim, text, watermark,
// QR code. Text that would land in a dead zone of the format is refused and
// reported as a warning; the composite itself never fails on layout.
package compositor

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"sort"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/disintegration/imaging"
	"github.com/fogleman/gg"
	qrcode "github.com/skip2/go-qrcode"

	apperr "github.com/menta2k/ad-creative/pkg/errors"
	"github.com/menta2k/ad-creative/pkg/metrics"
	"github.com/menta2k/ad-creative/pkg/types"
)

// Warning codes
const (
	WarnDeadZone     = "TEXT_IN_DEAD_ZONE"
	WarnTextOverflow = "TEXT_OVERFLOW"
	WarnQRTooSmall   = "QR_TOO_SMALL"
	WarnLayer        = "LAYER_SKIPPED"
)

// minQRSide is the smallest QR code, in pixels, still scannable on screen.
const minQRSide = 48

// Output is a composited canvas with the layout it used.
type Output struct {
	Image    *image.NRGBA
	Warnings []types.Warning
	Placed   []Placed
}

// Compositor renders layers. The zero value is not usable; call New.
type Compositor struct {
	logger  *log.Logger
	metrics *metrics.Metrics
}

// Option configures a Compositor.
type Option func(*Compositor)

func WithLogger(l *log.Logger) Option       { return func(c *Compositor) { c.logger = l } }
func WithMetrics(m *metrics.Metrics) Option { return func(c *Compositor) { c.metrics = m } }

// New creates a compositor.
func New(opts ...Option) *Compositor {
	c := &Compositor{logger: log.Default()}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Composite draws overlays above background. The background must already
// have the format's dimensions.
func (c *Compositor) Composite(background image.Image, format types.TargetFormat, overlays []Layer) (Output, error) {
	if background == nil {
		return Output{}, apperr.New(apperr.ErrCodeInvalidDimensions, "background is nil")
	}
	if b := background.Bounds(); b.Dx() != format.Dims.Width || b.Dy() != format.Dims.Height {
		return Output{}, apperr.New(apperr.ErrCodeInvalidDimensions, "background is %dx%d, format %s is %s", b.Dx(), b.Dy(), format.ID, format.Dims)
	}
	dc := gg.NewContext(format.Dims.Width, format.Dims.Height)
	dc.DrawImage(background, -background.Bounds().Min.X, -background.Bounds().Min.Y)
	return c.render(dc, format, overlays, true)
}

// RenderOverlay draws only the overlays on a transparent canvas of the
// format's size. Text without an explicit color is drawn white.
func (c *Compositor) RenderOverlay(format types.TargetFormat, overlays []Layer) (Output, error) {
	if !format.Dims.Valid() {
		return Output{}, apperr.New(apperr.ErrCodeInvalidDimensions, "format %s has invalid size %s", format.ID, format.Dims)
	}
	dc := gg.NewContext(format.Dims.Width, format.Dims.Height)
	return c.render(dc, format, overlays, false)
}

// Composite uses a default compositor.
func Composite(background image.Image, format types.TargetFormat, overlays []Layer) (Output, error) {
	return New().Composite(background, format, overlays)
}

func (c *Compositor) render(dc *gg.Context, format types.TargetFormat, overlays []Layer, sampleBackground bool) (Output, error) {
	if err := loadFonts(); err != nil {
		return Output{}, err
	}
	out := Output{}
	warn := func(code, msg string, args ...any) {
		w := types.Warning{Code: code, Message: fmt.Sprintf(msg, args...), Format: format.ID}
		out.Warnings = append(out.Warnings, w)
		c.metrics.Warning(code)
		c.logger.Warn("composite", "format", format.ID, "code", code, "msg", w.Message)
	}

	layers := make([]Layer, 0, len(overlays))
	for _, l := range overlays {
		if l != nil {
			layers = append(layers, l)
		}
	}
	sort.SliceStable(layers, func(i, j int) bool { return layers[i].Kind() < layers[j].Kind() })

	var texts []Text
	for _, l := range layers {
		switch l := l.(type) {
		case Scrim:
			drawScrim(dc, l)
			out.Placed = append(out.Placed, Placed{Kind: KindScrim, Box: types.Rect{W: dc.Width(), H: dc.Height()}})
		case Text:
			if strings.TrimSpace(l.Content) != "" {
				texts = append(texts, l)
			}
		}
	}

	// Text is laid out per anchor position after every scrim is down, so
	// automatic colors see the darkened background.
	var bg image.Image
	if sampleBackground {
		bg = dc.Image()
	}
	for _, group := range groupByPosition(texts) {
		blocks, fits := layoutGroup(dc, group, format.SafeArea(), format.Dims)
		if !fits {
			warn(WarnTextOverflow, "text at %s does not fit the safe area at minimum size", group[0].Position)
		}
		for _, b := range blocks {
			box := rectOf(b.box)
			if z, hit := deadZoneHit(box, format.DeadZones); hit {
				warn(WarnDeadZone, "%s %q refused: box %+v intersects dead zone %+v", b.layer.Role, b.layer.Content, box, z)
				continue
			}
			drawBlock(dc, b, bg)
			out.Placed = append(out.Placed, Placed{Kind: KindText, Role: b.layer.Role, Box: box})
		}
	}

	for _, l := range layers {
		switch l := l.(type) {
		case Watermark:
			box, ok := drawWatermark(dc, l, format)
			if !ok {
				warn(WarnLayer, "watermark has no image")
				continue
			}
			out.Placed = append(out.Placed, Placed{Kind: KindWatermark, Box: box})
		}
	}
	for _, l := range layers {
		switch l := l.(type) {
		case QRCode:
			box, err := drawQR(dc, l, format)
			if err != nil {
				warn(WarnQRTooSmall, "%v", err)
				continue
			}
			out.Placed = append(out.Placed, Placed{Kind: KindQR, Box: box})
		}
	}

	out.Image = imaging.Clone(dc.Image())
	return out, nil
}

func groupByPosition(texts []Text) [][]Text {
	var order []types.Position
	groups := map[types.Position][]Text{}
	for _, t := range texts {
		if t.Position == "" {
			t.Position = types.BottomLeft
		}
		if _, ok := groups[t.Position]; !ok {
			order = append(order, t.Position)
		}
		groups[t.Position] = append(groups[t.Position], t)
	}
	out := make([][]Text, 0, len(order))
	for _, p := range order {
		out = append(out, groups[p])
	}
	return out
}

func deadZoneHit(box types.Rect, zones []types.Rect) (types.Rect, bool) {
	for _, z := range zones {
		if box.Intersects(z) {
			return z, true
		}
	}
	return types.Rect{}, false
}

func rectOf(r image.Rectangle) types.Rect {
	return types.Rect{X: r.Min.X, Y: r.Min.Y, W: r.Dx(), H: r.Dy()}
}

func drawScrim(dc *gg.Context, s Scrim) {
	w, h := float64(dc.Width()), float64(dc.Height())
	col := s.Color
	if col == nil {
		col = color.Black
	}
	opacity := s.Opacity
	if opacity <= 0 {
		opacity = 0.6
	}
	coverage := s.Coverage
	if coverage <= 0 || coverage > 1 {
		coverage = 0.5
	}
	r, g, b, _ := col.RGBA()
	solid := color.NRGBA{R: uint8(r >> 8), G: uint8(g >> 8), B: uint8(b >> 8), A: uint8(math.Round(opacity * 255))}
	transparent := color.NRGBA{R: solid.R, G: solid.G, B: solid.B}

	var x0, y0, x1, y1, rx, ry, rw, rh float64
	switch s.Edge {
	case EdgeTop:
		x0, y0, x1, y1 = 0, h*coverage, 0, 0
		rx, ry, rw, rh = 0, 0, w, h*coverage
	case EdgeLeft:
		x0, y0, x1, y1 = w*coverage, 0, 0, 0
		rx, ry, rw, rh = 0, 0, w*coverage, h
	case EdgeRight:
		x0, y0, x1, y1 = w*(1-coverage), 0, w, 0
		rx, ry, rw, rh = w*(1-coverage), 0, w*coverage, h
	case EdgeFull:
		dc.SetColor(solid)
		dc.DrawRectangle(0, 0, w, h)
		dc.Fill()
		return
	default:
		x0, y0, x1, y1 = 0, h*(1-coverage), 0, h
		rx, ry, rw, rh = 0, h*(1-coverage), w, h*coverage
	}
	grad := gg.NewLinearGradient(x0, y0, x1, y1)
	grad.AddColorStop(0, transparent)
	grad.AddColorStop(1, solid)
	dc.SetFillStyle(grad)
	dc.DrawRectangle(rx, ry, rw, rh)
	dc.Fill()
}

// anchorIn places a w x h box inside the safe area at pos.
func anchorIn(format types.TargetFormat, pos types.Position, w, h int) image.Point {
	safe := format.SafeArea()
	ax, ay := pos.Anchor()
	return image.Pt(
		safe.Min.X+int(math.Round(ax*float64(safe.Dx()-w))),
		safe.Min.Y+int(math.Round(ay*float64(safe.Dy()-h))),
	)
}

func drawWatermark(dc *gg.Context, wm Watermark, format types.TargetFormat) (types.Rect, bool) {
	if wm.Image == nil || wm.Image.Bounds().Empty() {
		return types.Rect{}, false
	}
	scale := wm.Scale
	if scale <= 0 {
		scale = 0.15
	}
	opacity := wm.Opacity
	if opacity <= 0 || opacity > 1 {
		opacity = 0.85
	}
	pos := wm.Position
	if pos == "" {
		pos = types.TopRight
	}

	w := max(1, int(float64(format.Dims.Width)*scale))
	logo := imaging.Resize(wm.Image, w, 0, imaging.Lanczos)
	if maxH := format.SafeArea().Dy(); logo.Bounds().Dy() > maxH && maxH > 0 {
		logo = imaging.Resize(wm.Image, 0, maxH, imaging.Lanczos)
	}
	// fade the logo by scaling its alpha
	faded := imaging.New(logo.Bounds().Dx(), logo.Bounds().Dy(), color.Transparent)
	faded = imaging.Overlay(faded, logo, image.Pt(0, 0), opacity)

	at := anchorIn(format, pos, faded.Bounds().Dx(), faded.Bounds().Dy())
	dc.DrawImage(faded, at.X, at.Y)
	return types.Rect{X: at.X, Y: at.Y, W: faded.Bounds().Dx(), H: faded.Bounds().Dy()}, true
}

func drawQR(dc *gg.Context, q QRCode, format types.TargetFormat) (types.Rect, error) {
	size := q.Size
	if size <= 0 {
		size = 0.3
	}
	side := int(float64(min(format.Dims.Width, format.Dims.Height)) * size)
	if safe := format.SafeArea(); side > min(safe.Dx(), safe.Dy()) {
		side = min(safe.Dx(), safe.Dy())
	}
	if side < minQRSide {
		return types.Rect{}, fmt.Errorf("QR code would be %dpx, below the %dpx minimum", side, minQRSide)
	}

	code, err := qrcode.New(q.Content, qrcode.Medium)
	if err != nil {
		return types.Rect{}, fmt.Errorf("encode QR code: %w", err)
	}
	if q.Foreground != nil {
		code.ForegroundColor = q.Foreground
	}
	if q.Background != nil {
		code.BackgroundColor = q.Background
	}
	img := code.Image(side)

	pos := q.Position
	if pos == "" {
		pos = types.BottomRight
	}
	at := anchorIn(format, pos, img.Bounds().Dx(), img.Bounds().Dy())
	dc.DrawImage(img, at.X, at.Y)
	return types.Rect{X: at.X, Y: at.Y, W: img.Bounds().Dx(), H: img.Bounds().Dy()}, nil
}
