package compositor

import (
	"image"
	"image/color"

	"github.com/menta2k/ad-creative/pkg/types"
)

// Kind fixes the z-order of a layer. Layers are always drawn in ascending
// Kind, whatever order the caller passes them in.
type Kind int

const (
	KindScrim Kind = iota + 1
	KindText
	KindWatermark
	KindQR
)

func (k Kind) String() string {
	switch k {
	case KindScrim:
		return "scrim"
	case KindText:
		return "text"
	case KindWatermark:
		return "watermark"
	case KindQR:
		return "qr"
	}
	return "unknown"
}

// Layer is anything drawn above the background.
type Layer interface {
	Kind() Kind
}

// Edge is the side of the canvas a scrim darkens.
type Edge string

const (
	EdgeTop    Edge = "top"
	EdgeBottom Edge = "bottom"
	EdgeLeft   Edge = "left"
	EdgeRight  Edge = "right"
	EdgeFull   Edge = "full"
)

// Scrim is a gradient from transparent to Color toward Edge.
type Scrim struct {
	Edge  Edge
	Color color.Color
	// Opacity of the darkest stop, 0..1.
	Opacity float64
	// Coverage is the fraction of the canvas the gradient spans.
	Coverage float64
}

// Role selects the typographic scale of a text layer.
type Role string

const (
	RoleHeadline    Role = "headline"
	RoleSubheadline Role = "subheadline"
	RoleCTA         Role = "cta"
)

// Text is a headline, subheadline or call-to-action. Text layers sharing a
// Position are stacked in role order.
type Text struct {
	Role     Role
	Content  string
	Position types.Position
	// Color defaults to black or white, whichever contrasts with the
	// background behind the text.
	Color color.Color
	// Background fills the CTA button. Ignored for other roles.
	Background color.Color
}

// Watermark is a logo drawn at Position.
type Watermark struct {
	Image    image.Image
	Position types.Position
	// Width as a fraction of the canvas width.
	Scale   float64
	Opacity float64
}

// QRCode encodes Content as a QR code drawn at Position.
type QRCode struct {
	Content  string
	Position types.Position
	// Size as a fraction of the shorter canvas side.
	Size       float64
	Foreground color.Color
	Background color.Color
}

func (Scrim) Kind() Kind     { return KindScrim }
func (Text) Kind() Kind      { return KindText }
func (Watermark) Kind() Kind { return KindWatermark }
func (QRCode) Kind() Kind    { return KindQR }

// Placed records where a layer ended up on the canvas.
type Placed struct {
	Kind Kind       `json:"kind"`
	Role Role       `json:"role,omitempty"`
	Box  types.Rect `json:"box"`
}
