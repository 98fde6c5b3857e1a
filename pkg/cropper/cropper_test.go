package cropper

import (
	"image"
	"image/color"
	"math"
	"testing"

	"github.com/menta2k/ad-creative/pkg/geometry"
	"github.com/menta2k/ad-creative/pkg/types"
)

// createTestImage creates a dark image with a bright subject centered at
// fraction cx of the width
func createTestImage(width, height int, cx float64) image.Image {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	sx := int(cx * float64(width))
	half := height / 5

	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			if x > sx-half && x < sx+half && y > height/2-half && y < height/2+half {
				img.Set(x, y, color.RGBA{255, 255, 255, 255})
			} else {
				img.Set(x, y, color.RGBA{64, 64, 64, 255})
			}
		}
	}
	return img
}

func TestNew(t *testing.T) {
	c := New()
	if c.config.Strength != 1 {
		t.Errorf("Expected strength 1, got %f", c.config.Strength)
	}
	if c.config.Policy != geometry.DefaultFit {
		t.Errorf("unexpected policy %+v", c.config.Policy)
	}
}

func TestSuggestOffsetStaysInCoverRange(t *testing.T) {
	target := types.Dims{Width: 300, Height: 300}
	scaled, _ := geometry.ScaleToCover(1920, 1080, 300, 300)
	rng := geometry.CoverRange(scaled, target)

	for _, fx := range []float64{0, 0.1, 0.5, 0.9, 1} {
		o := SuggestOffset(fx, 0.5, scaled, target, 1)
		if math.Abs(o.X) > rng.X+1e-9 || o.Y != 0 {
			t.Errorf("fx=%f: offset %+v outside range %+v", fx, o, rng)
		}
		p, err := geometry.ComputePlacement(scaled, target, o, geometry.DefaultThreshold)
		if err != nil {
			t.Fatal(err)
		}
		if p.NeedsOutpaint {
			t.Errorf("fx=%f: suggested offset opened margins %+v", fx, p.Margins)
		}
	}

	if o := SuggestOffset(0.5, 0.5, scaled, target, 1); o != (types.Offset{}) {
		t.Errorf("centered focus should not pan, got %+v", o)
	}
	if o := SuggestOffset(0.1, 0.5, scaled, target, 0); o != (types.Offset{}) {
		t.Errorf("zero strength should not pan, got %+v", o)
	}
}

func TestSuggestPansTowardSubject(t *testing.T) {
	c := New()
	target := types.Dims{Width: 300, Height: 300}

	left, err := c.Suggest(createTestImage(1200, 600, 0.2), target)
	if err != nil {
		t.Fatalf("Suggest failed: %v", err)
	}
	if left.X <= 0 {
		t.Errorf("subject on the left should pan right, got %+v", left)
	}

	right, err := c.Suggest(createTestImage(1200, 600, 0.8), target)
	if err != nil {
		t.Fatal(err)
	}
	if right.X >= 0 {
		t.Errorf("subject on the right should pan left, got %+v", right)
	}
}

func TestPlan(t *testing.T) {
	c := New()
	img := createTestImage(1200, 600, 0.3)
	target := types.Dims{Width: 250, Height: 250}
	p, offset, err := c.Plan(img, target)
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	if p.NeedsOutpaint {
		t.Errorf("smart crop of a cover fit should not need outpainting: %+v", p.Margins)
	}
	if offset.X <= 0 {
		t.Errorf("subject left of center should pan right, got %+v", offset)
	}
	centered, err := geometry.Plan(types.Dims{Width: 1200, Height: 600}, target, types.Offset{}, geometry.DefaultFit, geometry.DefaultThreshold)
	if err != nil {
		t.Fatal(err)
	}
	if p.Draw.X <= centered.Draw.X {
		t.Errorf("smart placement %v should sit right of the centered one %v", p.Draw, centered.Draw)
	}

	if _, _, err := c.Plan(createTestImage(100, 100, 0.5), types.Dims{}); err == nil {
		t.Error("expected error for empty target")
	}
}

func BenchmarkSuggest(b *testing.B) {
	c := New()
	img := createTestImage(1920, 1080, 0.3)
	target := types.Dims{Width: 300, Height: 250}

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		c.Suggest(img, target)
	}
}
