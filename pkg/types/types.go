package types

import (
	"fmt"
	"image"
	"math"
)

// Dims is an integer pixel size
type Dims struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Valid reports whether both sides are positive
func (d Dims) Valid() bool {
	return d.Width > 0 && d.Height > 0
}

// AspectRatio returns width / height
func (d Dims) AspectRatio() float64 {
	if d.Height == 0 {
		return 0
	}
	return float64(d.Width) / float64(d.Height)
}

func (d Dims) String() string {
	return fmt.Sprintf("%dx%d", d.Width, d.Height)
}

// Size is a fractional size produced by scaling
type Size struct {
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// Round returns the size rounded to whole pixels, never below 1x1
func (s Size) Round() Dims {
	w := int(math.Round(s.W))
	h := int(math.Round(s.H))
	if w < 1 {
		w = 1
	}
	if h < 1 {
		h = 1
	}
	return Dims{Width: w, Height: h}
}

// Offset pans the scaled image inside the canvas, in percent of the canvas
// dimensions. Both axes are valid in [-50, 50].
type Offset struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// MaxOffset is the largest pan allowed on either axis
const MaxOffset = 50.0

// Valid reports whether both axes lie in [-MaxOffset, MaxOffset]
func (o Offset) Valid() bool {
	return !math.IsNaN(o.X) && !math.IsNaN(o.Y) &&
		o.X >= -MaxOffset && o.X <= MaxOffset &&
		o.Y >= -MaxOffset && o.Y <= MaxOffset
}

// Margins are the uncovered gaps on each side of the canvas, in pixels
type Margins struct {
	Top    float64 `json:"top"`
	Bottom float64 `json:"bottom"`
	Left   float64 `json:"left"`
	Right  float64 `json:"right"`
}

// Max returns the largest of the four margins
func (m Margins) Max() float64 {
	return math.Max(math.Max(m.Top, m.Bottom), math.Max(m.Left, m.Right))
}

// RectF is a rectangle with fractional coordinates
type RectF struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
	W float64 `json:"w"`
	H float64 `json:"h"`
}

// FitMode records which scaling produced a placement
type FitMode string

const (
	FitCover   FitMode = "cover"
	FitContain FitMode = "contain"
)

// Placement is where the scaled source lands inside the target canvas.
// It is derived from geometry and offset and never persisted.
type Placement struct {
	Target        Dims    `json:"target"`
	Scaled        Size    `json:"scaled"`
	Draw          RectF   `json:"draw"`
	Margins       Margins `json:"margins"`
	NeedsOutpaint bool    `json:"needs_outpaint"`
	Fit           FitMode `json:"fit"`
}

// DrawRect returns the draw rectangle snapped to whole pixels. Each side is
// at least one pixel so a sliver of a source never vanishes.
func (p Placement) DrawRect() image.Rectangle {
	x0 := int(math.Round(p.Draw.X))
	y0 := int(math.Round(p.Draw.Y))
	w := max(1, int(math.Round(p.Draw.W)))
	h := max(1, int(math.Round(p.Draw.H)))
	return image.Rect(x0, y0, x0+w, y0+h)
}

// Covered returns the part of the canvas covered by the source image
func (p Placement) Covered() image.Rectangle {
	return p.DrawRect().Intersect(image.Rect(0, 0, p.Target.Width, p.Target.Height))
}

// Rect is a pixel rectangle in canvas coordinates
type Rect struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// ToImage converts to an image.Rectangle
func (r Rect) ToImage() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.W, r.Y+r.H)
}

// Intersects reports whether the two rectangles overlap
func (r Rect) Intersects(o Rect) bool {
	return r.ToImage().Overlaps(o.ToImage())
}

// Insets are margins inside a canvas where no content may be placed
type Insets struct {
	Top    int `json:"top"`
	Bottom int `json:"bottom"`
	Left   int `json:"left"`
	Right  int `json:"right"`
}

// Platform names an advertising platform
type Platform string

const (
	PlatformGoogleAds Platform = "google-ads"
	PlatformSklik     Platform = "sklik"
)

// TargetFormat is one ad unit from the static catalog
type TargetFormat struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Platform    Platform `json:"platform"`
	Dims        Dims     `json:"dims"`
	MaxFileSize int64    `json:"max_file_size"`
	SafeInsets  Insets   `json:"safe_insets"`
	DeadZones   []Rect   `json:"dead_zones,omitempty"`
}

// SafeArea returns the canvas area inside the safe insets
func (f TargetFormat) SafeArea() image.Rectangle {
	return image.Rect(
		f.SafeInsets.Left,
		f.SafeInsets.Top,
		f.Dims.Width-f.SafeInsets.Right,
		f.Dims.Height-f.SafeInsets.Bottom,
	)
}

// Position anchors an overlay inside the canvas
type Position string

const (
	TopLeft      Position = "top-left"
	TopCenter    Position = "top-center"
	TopRight     Position = "top-right"
	CenterLeft   Position = "center-left"
	Center       Position = "center"
	CenterRight  Position = "center-right"
	BottomLeft   Position = "bottom-left"
	BottomCenter Position = "bottom-center"
	BottomRight  Position = "bottom-right"
)

// Anchor returns the normalized anchor point of the position
func (p Position) Anchor() (ax, ay float64) {
	switch p {
	case TopLeft:
		return 0, 0
	case TopCenter:
		return 0.5, 0
	case TopRight:
		return 1, 0
	case CenterLeft:
		return 0, 0.5
	case CenterRight:
		return 1, 0.5
	case BottomLeft:
		return 0, 1
	case BottomCenter:
		return 0.5, 1
	case BottomRight:
		return 1, 1
	default:
		return 0.5, 0.5
	}
}

// ParsePosition accepts the kebab-case names above
func ParsePosition(s string) (Position, error) {
	switch p := Position(s); p {
	case TopLeft, TopCenter, TopRight, CenterLeft, Center, CenterRight, BottomLeft, BottomCenter, BottomRight:
		return p, nil
	}
	return "", fmt.Errorf("unknown position %q", s)
}

// Warning is a non-blocking issue found while compositing or reviewing a
// creative.
type Warning struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	// Format is the ID of the target format, if known.
	Format string `json:"format,omitempty"`
}

func (w Warning) String() string {
	if w.Format != "" {
		return fmt.Sprintf("[%s] %s: %s", w.Format, w.Code, w.Message)
	}
	return fmt.Sprintf("%s: %s", w.Code, w.Message)
}
