package compositor

import (
	"image"
	"image/color"
	"math"
	"sort"
	"strings"

	"github.com/fogleman/gg"

	"github.com/menta2k/ad-creative/pkg/types"
	"github.com/menta2k/ad-creative/pkg/vision"
)

const (
	lineSpacing = 1.2
	minFontSize = 6.0
	shrinkSteps = 8
)

var roleOrder = map[Role]int{RoleHeadline: 0, RoleSubheadline: 1, RoleCTA: 2}

// textBlock is one laid-out text layer.
type textBlock struct {
	layer Text
	size  float64
	lines []string
	box   image.Rectangle
	padX  float64
	padY  float64
}

// layoutGroup stacks the text layers sharing one position inside safe,
// shrinking every font uniformly until the stack fits.
func layoutGroup(dc *gg.Context, texts []Text, safe image.Rectangle, d types.Dims) ([]textBlock, bool) {
	sort.SliceStable(texts, func(i, j int) bool { return roleOrder[texts[i].Role] < roleOrder[texts[j].Role] })

	var blocks []textBlock
	var totalW, totalH float64
	fits := false
	factor := 1.0
	for step := 0; step < shrinkSteps; step++ {
		blocks, totalW, totalH = measureGroup(dc, texts, float64(safe.Dx()), d, factor)
		if totalW <= float64(safe.Dx()) && totalH <= float64(safe.Dy()) {
			fits = true
			break
		}
		factor *= 0.85
	}

	ax, ay := texts[0].Position.Anchor()
	x0 := float64(safe.Min.X) + ax*(float64(safe.Dx())-totalW)
	y := float64(safe.Min.Y) + ay*(float64(safe.Dy())-totalH)
	for i := range blocks {
		b := &blocks[i]
		w := float64(b.box.Dx())
		x := x0 + ax*(totalW-w)
		b.box = b.box.Add(image.Pt(int(math.Round(x)), int(math.Round(y))))
		y += float64(b.box.Dy()) + b.size*0.35
	}
	return blocks, fits
}

// measureGroup wraps every layer and returns blocks with boxes at the
// origin plus the size of the whole stack.
func measureGroup(dc *gg.Context, texts []Text, maxW float64, d types.Dims, factor float64) ([]textBlock, float64, float64) {
	blocks := make([]textBlock, 0, len(texts))
	var totalW, totalH float64
	for i, t := range texts {
		size := math.Max(minFontSize, FontSize(t.Role, d)*factor)
		dc.SetFontFace(face(t.Role, size))

		b := textBlock{layer: t, size: size}
		if t.Role == RoleCTA {
			b.padX, b.padY = size*0.8, size*0.45
		}
		inner := maxW - 2*b.padX
		b.lines = wrap(dc, t.Content, inner, maxLines(t.Role))

		var w float64
		for _, l := range b.lines {
			lw, _ := dc.MeasureString(l)
			w = math.Max(w, lw)
		}
		w += 2 * b.padX
		h := float64(len(b.lines))*size*lineSpacing + 2*b.padY
		b.box = image.Rect(0, 0, int(math.Ceil(w)), int(math.Ceil(h)))
		blocks = append(blocks, b)

		totalW = math.Max(totalW, w)
		totalH += h
		if i > 0 {
			totalH += size * 0.35
		}
	}
	return blocks, totalW, totalH
}

func maxLines(r Role) int {
	if s, ok := scales[r]; ok {
		return s.MaxLines
	}
	return 2
}

// wrap word-wraps s to width and truncates to n lines with an ellipsis.
func wrap(dc *gg.Context, s string, width float64, n int) []string {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return nil
	}
	lines := dc.WordWrap(s, width)
	if len(lines) <= n {
		return lines
	}
	lines = lines[:n]
	last := strings.TrimSpace(lines[n-1])
	for {
		candidate := last + "…"
		if w, _ := dc.MeasureString(candidate); w <= width || last == "" {
			lines[n-1] = candidate
			return lines
		}
		r := []rune(last)
		last = strings.TrimSpace(string(r[:len(r)-1]))
	}
}

// drawBlock renders one laid-out text layer. bg is sampled for automatic
// text color; nil means a dark background.
func drawBlock(dc *gg.Context, b textBlock, bg image.Image) {
	dc.SetFontFace(face(b.layer.Role, b.size))
	box := b.box
	ax, _ := b.layer.Position.Anchor()

	textColor := b.layer.Color
	if b.layer.Role == RoleCTA {
		fill := b.layer.Background
		if fill == nil {
			fill = DefaultAccent
		}
		dc.SetColor(fill)
		dc.DrawRoundedRectangle(float64(box.Min.X), float64(box.Min.Y), float64(box.Dx()), float64(box.Dy()), float64(box.Dy())*0.25)
		dc.Fill()
		if textColor == nil {
			textColor = contrasting(vision.Luminance(fill))
		}
		// button labels are always centered
		ax = 0.5
	} else if textColor == nil {
		lum := 0.0
		if bg != nil {
			lum = vision.MeanLuminance(bg, box)
		}
		textColor = contrasting(lum)
	}

	dc.SetColor(textColor)
	lineH := b.size * lineSpacing
	innerW := float64(box.Dx()) - 2*b.padX
	for i, line := range b.lines {
		lw, _ := dc.MeasureString(line)
		x := float64(box.Min.X) + b.padX + ax*(innerW-lw)
		cy := float64(box.Min.Y) + b.padY + (float64(i)+0.5)*lineH
		dc.DrawStringAnchored(line, x, cy, 0, 0.35)
	}
}

// DefaultAccent fills CTA buttons without an explicit background.
var DefaultAccent color.Color = color.NRGBA{R: 0xff, G: 0x6a, B: 0x00, A: 0xff}

func contrasting(lum float64) color.Color {
	if lum > 0.55 {
		return color.NRGBA{R: 0x11, G: 0x11, B: 0x11, A: 0xff}
	}
	return color.White
}
