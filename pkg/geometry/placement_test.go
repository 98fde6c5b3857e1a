package geometry

import (
	"math/rand"
	"reflect"
	"testing"

	apperr "github.com/menta2k/ad-creative/pkg/errors"
	"github.com/menta2k/ad-creative/pkg/types"
)

func TestPlanLandscapeIntoSquare(t *testing.T) {
	p, err := Plan(types.Dims{Width: 1920, Height: 1080}, types.Dims{Width: 300, Height: 300}, types.Offset{}, DefaultFit, DefaultThreshold)
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	if p.NeedsOutpaint {
		t.Errorf("16:9 over a square crop should not need outpainting, margins %+v", p.Margins)
	}
	if p.Margins != (types.Margins{}) {
		t.Errorf("expected zero margins, got %+v", p.Margins)
	}
	if p.Fit != types.FitCover {
		t.Errorf("expected cover fit, got %s", p.Fit)
	}
}

func TestPlanSquareIntoLeaderboard(t *testing.T) {
	p, err := Plan(types.Dims{Width: 500, Height: 500}, types.Dims{Width: 728, Height: 90}, types.Offset{}, DefaultFit, DefaultThreshold)
	if err != nil {
		t.Fatalf("Plan failed: %v", err)
	}
	if !p.NeedsOutpaint {
		t.Fatal("square into 728x90 should need outpainting")
	}
	if p.Margins.Left <= 0 || p.Margins.Right <= 0 {
		t.Errorf("expected horizontal gaps, got %+v", p.Margins)
	}
	if p.Margins.Top != 0 || p.Margins.Bottom != 0 {
		t.Errorf("expected no vertical gaps, got %+v", p.Margins)
	}
	if p.Margins.Left != p.Margins.Right {
		t.Errorf("centered placement should be symmetric, got %+v", p.Margins)
	}
}

func TestComputePlacementMarginsNonNegative(t *testing.T) {
	r := rand.New(rand.NewSource(3))

	for i := 0; i < 3000; i++ {
		sw, sh, tw, th := randomDims(r)
		offset := types.Offset{X: r.Float64()*100 - 50, Y: r.Float64()*100 - 50}
		target := types.Dims{Width: tw, Height: th}

		for _, policy := range []FitPolicy{AlwaysCover, DefaultFit} {
			p, err := Plan(types.Dims{Width: sw, Height: sh}, target, offset, policy, DefaultThreshold)
			if err != nil {
				t.Fatalf("Plan failed: %v", err)
			}
			m := p.Margins
			if m.Top < 0 || m.Bottom < 0 || m.Left < 0 || m.Right < 0 {
				t.Fatalf("negative margin %+v", m)
			}
			if p.Draw.X >= float64(tw) || p.Draw.X+p.Draw.W <= 0 || p.Draw.Y >= float64(th) || p.Draw.Y+p.Draw.H <= 0 {
				t.Fatalf("image detached from canvas: %+v", p.Draw)
			}
		}
	}
}

func TestComputePlacementZeroOffsetCover(t *testing.T) {
	r := rand.New(rand.NewSource(5))

	for i := 0; i < 3000; i++ {
		sw, sh, tw, th := randomDims(r)
		s, err := ScaleToCover(sw, sh, tw, th)
		if err != nil {
			t.Fatal(err)
		}
		p, err := ComputePlacement(s, types.Dims{Width: tw, Height: th}, types.Offset{}, DefaultThreshold)
		if err != nil {
			t.Fatal(err)
		}
		m := p.Margins
		if m.Top != 0 && m.Bottom != 0 && m.Left != 0 && m.Right != 0 {
			t.Fatalf("%dx%d -> %dx%d: no exact zero margin in %+v", sw, sh, tw, th, m)
		}
		if p.NeedsOutpaint {
			t.Fatalf("%dx%d -> %dx%d: centered cover should not need outpainting: %+v", sw, sh, tw, th, m)
		}
	}
}

func TestComputePlacementIdempotent(t *testing.T) {
	s, _ := ScaleToCover(1234, 987, 336, 280)
	target := types.Dims{Width: 336, Height: 280}
	offset := types.Offset{X: 12.5, Y: -33.3}

	a, err := ComputePlacement(s, target, offset, DefaultThreshold)
	if err != nil {
		t.Fatal(err)
	}
	b, err := ComputePlacement(s, target, offset, DefaultThreshold)
	if err != nil {
		t.Fatal(err)
	}
	if !reflect.DeepEqual(a, b) {
		t.Errorf("placements differ:\n%+v\n%+v", a, b)
	}
}

func TestComputePlacementRejectsOffset(t *testing.T) {
	s, _ := ScaleToCover(100, 100, 100, 100)
	target := types.Dims{Width: 100, Height: 100}

	for _, o := range []types.Offset{{X: 50.01}, {Y: -51}, {X: 80, Y: 80}} {
		_, err := ComputePlacement(s, target, o, DefaultThreshold)
		if !apperr.Is(err, apperr.ErrCodeInvalidOffset) {
			t.Errorf("offset %+v: expected INVALID_OFFSET, got %v", o, err)
		}
	}

	for _, o := range []types.Offset{{X: 50}, {Y: -50}, {X: -50, Y: 50}} {
		if _, err := ComputePlacement(s, target, o, DefaultThreshold); err != nil {
			t.Errorf("offset %+v should be accepted: %v", o, err)
		}
	}
}

func TestComputePlacementPanOpensMargin(t *testing.T) {
	s, _ := ScaleToCover(1920, 1080, 300, 300)
	p, err := ComputePlacement(s, types.Dims{Width: 300, Height: 300}, types.Offset{Y: 20}, DefaultThreshold)
	if err != nil {
		t.Fatal(err)
	}
	if p.Margins.Top < 59.999 || p.Margins.Top > 60.001 {
		t.Errorf("expected 60px top margin, got %f", p.Margins.Top)
	}
	if !p.NeedsOutpaint {
		t.Error("panning down 20% should need outpainting")
	}
}

func TestThresholdIgnoresRounding(t *testing.T) {
	target := types.Dims{Width: 300, Height: 250}
	// 1.5px short on the width: below the 3px (1%) horizontal tolerance
	p, err := ComputePlacement(types.Size{W: 298.5, H: 260}, target, types.Offset{}, DefaultThreshold)
	if err != nil {
		t.Fatal(err)
	}
	if p.Margins.Left == 0 {
		t.Fatal("expected sub-pixel margins")
	}
	if p.NeedsOutpaint {
		t.Errorf("sub-threshold margins should not need outpainting: %+v", p.Margins)
	}

	strict := Threshold{}
	p, _ = ComputePlacement(types.Size{W: 298.5, H: 260}, target, types.Offset{}, strict)
	if !p.NeedsOutpaint {
		t.Error("zero threshold should flag any positive margin")
	}
}

func TestComputePlacementInvalidScaled(t *testing.T) {
	_, err := ComputePlacement(types.Size{W: 0, H: 10}, types.Dims{Width: 10, Height: 10}, types.Offset{}, DefaultThreshold)
	if !apperr.Is(err, apperr.ErrCodeInvalidDimensions) {
		t.Errorf("expected INVALID_DIMENSIONS, got %v", err)
	}
	_, err = ComputePlacement(types.Size{W: 10, H: 10}, types.Dims{}, types.Offset{}, DefaultThreshold)
	if !apperr.Is(err, apperr.ErrCodeInvalidDimensions) {
		t.Errorf("expected INVALID_DIMENSIONS, got %v", err)
	}
}
