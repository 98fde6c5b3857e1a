package compositor

import (
	"image"
	"image/color"
	"strings"
	"testing"

	"github.com/fogleman/gg"

	apperr "github.com/menta2k/ad-creative/pkg/errors"
	"github.com/menta2k/ad-creative/pkg/types"
)

func createTestImage(w, h int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

func testFormat(w, h int) types.TargetFormat {
	return types.TargetFormat{
		ID:         "test",
		Dims:       types.Dims{Width: w, Height: h},
		SafeInsets: types.Insets{Top: 4, Bottom: 4, Left: 4, Right: 4},
	}
}

func TestFontSize(t *testing.T) {
	tests := []struct {
		name string
		role Role
		dims types.Dims
		want float64
	}{
		{"wide leaderboard hits max", RoleHeadline, types.Dims{Width: 1920, Height: 1080}, 72},
		{"micro banner keeps ratio", RoleHeadline, types.Dims{Width: 150, Height: 150}, 11.25},
		{"mobile banner capped by height", RoleHeadline, types.Dims{Width: 320, Height: 50}, 14},
		{"tiny canvas floors at min", RoleHeadline, types.Dims{Width: 60, Height: 20}, 10},
		{"cta", RoleCTA, types.Dims{Width: 300, Height: 250}, 12},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FontSize(tt.role, tt.dims); got < tt.want-1e-9 || got > tt.want+1e-9 {
				t.Errorf("FontSize = %f, want %f", got, tt.want)
			}
		})
	}
}

func TestFontSizeMonotonicInWidth(t *testing.T) {
	prev := 0.0
	for w := 50; w <= 3000; w += 50 {
		s := FontSize(RoleHeadline, types.Dims{Width: w, Height: 1000})
		if s < prev {
			t.Fatalf("font size shrank from %f to %f at width %d", prev, s, w)
		}
		prev = s
	}
}

func TestCompositeZOrder(t *testing.T) {
	bg := createTestImage(300, 250, color.NRGBA{200, 50, 50, 255})
	logo := createTestImage(40, 20, color.NRGBA{0, 0, 255, 255})

	// deliberately reversed
	overlays := []Layer{
		QRCode{Content: "https://example.com", Position: types.BottomRight, Size: 0.3},
		Watermark{Image: logo, Position: types.TopRight},
		Text{Role: RoleCTA, Content: "Shop now", Position: types.BottomLeft},
		Text{Role: RoleHeadline, Content: "Summer sale", Position: types.BottomLeft},
		Scrim{Edge: EdgeBottom},
	}

	out, err := New().Composite(bg, testFormat(300, 250), overlays)
	if err != nil {
		t.Fatalf("Composite failed: %v", err)
	}
	if len(out.Warnings) != 0 {
		t.Errorf("unexpected warnings: %v", out.Warnings)
	}
	if len(out.Placed) != 5 {
		t.Fatalf("expected 5 placed layers, got %+v", out.Placed)
	}
	for i := 1; i < len(out.Placed); i++ {
		if out.Placed[i].Kind < out.Placed[i-1].Kind {
			t.Errorf("layer %d (%s) drawn after %s", i, out.Placed[i].Kind, out.Placed[i-1].Kind)
		}
	}
	// headline stacks above the CTA
	if out.Placed[1].Role != RoleHeadline || out.Placed[2].Role != RoleCTA {
		t.Errorf("text order = %s, %s", out.Placed[1].Role, out.Placed[2].Role)
	}
	if out.Placed[1].Box.Y >= out.Placed[2].Box.Y {
		t.Error("headline should sit above the CTA")
	}
	if out.Image.Bounds() != bg.Bounds() {
		t.Errorf("output bounds %v", out.Image.Bounds())
	}
}

func TestCompositeRefusesDeadZone(t *testing.T) {
	f := types.TargetFormat{
		ID:         "branding",
		Dims:       types.Dims{Width: 2000, Height: 1400},
		SafeInsets: types.Insets{Top: 20, Left: 20, Right: 20},
		DeadZones:  []types.Rect{{X: 317, Y: 226, W: 1366, H: 1174}},
	}
	bg := createTestImage(2000, 1400, color.White)

	out, err := New().Composite(bg, f, []Layer{
		Text{Role: RoleHeadline, Content: "Middle of the page", Position: types.Center},
		Text{Role: RoleHeadline, Content: "Corner", Position: types.TopLeft},
	})
	if err != nil {
		t.Fatalf("dead zone must not fail the composite: %v", err)
	}

	var dead int
	for _, w := range out.Warnings {
		if w.Code == WarnDeadZone {
			dead++
			if w.Format != "branding" {
				t.Errorf("warning missing format: %+v", w)
			}
		}
	}
	if dead != 1 {
		t.Errorf("expected one dead zone warning, got %v", out.Warnings)
	}
	if len(out.Placed) != 1 || out.Placed[0].Box.X != 20 {
		t.Errorf("only the corner headline should be placed: %+v", out.Placed)
	}
	for _, p := range out.Placed {
		for _, z := range f.DeadZones {
			if p.Box.Intersects(z) {
				t.Errorf("placed %+v inside dead zone", p)
			}
		}
	}
}

func TestCompositeBackgroundMismatch(t *testing.T) {
	_, err := New().Composite(createTestImage(100, 100, color.White), testFormat(300, 250), nil)
	if !apperr.Is(err, apperr.ErrCodeInvalidDimensions) {
		t.Errorf("expected INVALID_DIMENSIONS, got %v", err)
	}
	_, err = New().Composite(nil, testFormat(300, 250), nil)
	if !apperr.Is(err, apperr.ErrCodeInvalidDimensions) {
		t.Errorf("expected INVALID_DIMENSIONS for nil background, got %v", err)
	}
}

func TestCompositeLeavesBackgroundUntouched(t *testing.T) {
	bg := createTestImage(300, 250, color.NRGBA{10, 20, 30, 255})
	before := bg.NRGBAAt(150, 240)

	if _, err := Composite(bg, testFormat(300, 250), []Layer{Scrim{Edge: EdgeFull, Opacity: 1, Color: color.White}}); err != nil {
		t.Fatal(err)
	}
	if bg.NRGBAAt(150, 240) != before {
		t.Error("Composite modified the background")
	}
}

func TestScrimDarkensEdge(t *testing.T) {
	bg := createTestImage(300, 250, color.White)
	out, err := Composite(bg, testFormat(300, 250), []Layer{Scrim{Edge: EdgeBottom, Opacity: 0.8, Coverage: 0.5}})
	if err != nil {
		t.Fatal(err)
	}
	top := out.Image.NRGBAAt(150, 5)
	bottom := out.Image.NRGBAAt(150, 248)
	if top.R != 255 {
		t.Errorf("top half should be untouched, got %v", top)
	}
	if bottom.R > 100 {
		t.Errorf("bottom edge should be dark, got %v", bottom)
	}
}

func TestRenderOverlayTransparent(t *testing.T) {
	out, err := New().RenderOverlay(testFormat(640, 360), []Layer{
		Text{Role: RoleHeadline, Content: "Hello", Position: types.TopLeft},
	})
	if err != nil {
		t.Fatal(err)
	}
	if a := out.Image.NRGBAAt(600, 340).A; a != 0 {
		t.Errorf("empty area alpha = %d, want 0", a)
	}
	var ink bool
	box := out.Placed[0].Box.ToImage()
	for y := box.Min.Y; y < box.Max.Y && !ink; y++ {
		for x := box.Min.X; x < box.Max.X; x++ {
			if c := out.Image.NRGBAAt(x, y); c.A > 0 && c.R > 200 {
				ink = true
				break
			}
		}
	}
	if !ink {
		t.Error("expected white text pixels inside the headline box")
	}

	if _, err := New().RenderOverlay(types.TargetFormat{}, nil); !apperr.Is(err, apperr.ErrCodeInvalidDimensions) {
		t.Errorf("expected INVALID_DIMENSIONS, got %v", err)
	}
}

func TestQRCodeTooSmall(t *testing.T) {
	bg := createTestImage(320, 50, color.White)
	out, err := Composite(bg, testFormat(320, 50), []Layer{QRCode{Content: "https://example.com"}})
	if err != nil {
		t.Fatal(err)
	}
	if len(out.Warnings) != 1 || out.Warnings[0].Code != WarnQRTooSmall {
		t.Errorf("expected QR_TOO_SMALL, got %v", out.Warnings)
	}
	if len(out.Placed) != 0 {
		t.Errorf("QR should not be placed: %+v", out.Placed)
	}
}

func TestQRCodeColors(t *testing.T) {
	bg := createTestImage(400, 400, color.White)
	fg := color.NRGBA{0, 0, 200, 255}
	out, err := Composite(bg, testFormat(400, 400), []Layer{
		QRCode{Content: "https://example.com", Position: types.TopLeft, Size: 0.5, Foreground: fg, Background: color.White},
	})
	if err != nil {
		t.Fatal(err)
	}
	box := out.Placed[0].Box.ToImage()
	found := false
	for y := box.Min.Y; y < box.Max.Y && !found; y++ {
		for x := box.Min.X; x < box.Max.X; x++ {
			if out.Image.NRGBAAt(x, y) == fg {
				found = true
				break
			}
		}
	}
	if !found {
		t.Error("QR foreground color not drawn")
	}
}

func TestWrapTruncates(t *testing.T) {
	if err := loadFonts(); err != nil {
		t.Fatal(err)
	}
	dc := gg.NewContext(10, 10)
	dc.SetFontFace(face(RoleHeadline, 14))

	long := strings.Repeat("incredible offer ", 20)
	lines := wrap(dc, long, 120, 2)
	if len(lines) != 2 {
		t.Fatalf("expected 2 lines, got %d", len(lines))
	}
	if !strings.HasSuffix(lines[1], "…") {
		t.Errorf("last line should end with an ellipsis: %q", lines[1])
	}
	if w, _ := dc.MeasureString(lines[1]); w > 120 {
		t.Errorf("truncated line is %fpx wide", w)
	}
	if wrap(dc, "   ", 120, 2) != nil {
		t.Error("blank text should produce no lines")
	}
}

func TestContrasting(t *testing.T) {
	if c := contrasting(0.9); c == color.White {
		t.Error("light background needs dark text")
	}
	if c := contrasting(0.1); c != color.White {
		t.Error("dark background needs white text")
	}
}

func BenchmarkComposite(b *testing.B) {
	bg := createTestImage(728, 90, color.NRGBA{40, 40, 40, 255})
	f := testFormat(728, 90)
	overlays := []Layer{
		Scrim{Edge: EdgeLeft},
		Text{Role: RoleHeadline, Content: "Summer sale", Position: types.CenterLeft},
		Text{Role: RoleCTA, Content: "Shop now", Position: types.CenterRight},
	}
	c := New()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Composite(bg, f, overlays)
	}
}
