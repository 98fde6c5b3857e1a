package geometry

import (
	"math"
	"math/rand"
	"testing"

	apperr "github.com/menta2k/ad-creative/pkg/errors"
	"github.com/menta2k/ad-creative/pkg/types"
)

func randomDims(r *rand.Rand) (int, int, int, int) {
	return 1 + r.Intn(4000), 1 + r.Intn(4000), 1 + r.Intn(2500), 1 + r.Intn(2500)
}

func TestScaleToCoverProperties(t *testing.T) {
	r := rand.New(rand.NewSource(7))

	for i := 0; i < 5000; i++ {
		sw, sh, tw, th := randomDims(r)
		s, err := ScaleToCover(sw, sh, tw, th)
		if err != nil {
			t.Fatalf("ScaleToCover(%d,%d,%d,%d) failed: %v", sw, sh, tw, th, err)
		}

		want := float64(sw) / float64(sh)
		got := s.W / s.H
		if math.Abs(got-want)/want > 1e-9 {
			t.Fatalf("aspect changed for %dx%d -> %dx%d: got %f want %f", sw, sh, tw, th, got, want)
		}
		if s.W < float64(tw) || s.H < float64(th) {
			t.Fatalf("%dx%d -> %dx%d does not cover: %fx%f", sw, sh, tw, th, s.W, s.H)
		}
	}
}

func TestScaleToContainProperties(t *testing.T) {
	r := rand.New(rand.NewSource(11))

	for i := 0; i < 5000; i++ {
		sw, sh, tw, th := randomDims(r)
		s, err := ScaleToContain(sw, sh, tw, th)
		if err != nil {
			t.Fatalf("ScaleToContain failed: %v", err)
		}
		if s.W > float64(tw) || s.H > float64(th) {
			t.Fatalf("%dx%d -> %dx%d overflows: %fx%f", sw, sh, tw, th, s.W, s.H)
		}
		if s.W != float64(tw) && s.H != float64(th) {
			t.Fatalf("%dx%d -> %dx%d touches neither axis: %fx%f", sw, sh, tw, th, s.W, s.H)
		}
	}
}

func TestScaleInvalidDimensions(t *testing.T) {
	cases := [][4]int{
		{0, 100, 100, 100},
		{100, 0, 100, 100},
		{100, 100, 0, 100},
		{100, 100, 100, -5},
	}
	for _, c := range cases {
		if _, err := ScaleToCover(c[0], c[1], c[2], c[3]); !apperr.Is(err, apperr.ErrCodeInvalidDimensions) {
			t.Errorf("ScaleToCover%v: expected INVALID_DIMENSIONS, got %v", c, err)
		}
		if _, err := ScaleToContain(c[0], c[1], c[2], c[3]); !apperr.Is(err, apperr.ErrCodeInvalidDimensions) {
			t.Errorf("ScaleToContain%v: expected INVALID_DIMENSIONS, got %v", c, err)
		}
	}
}

func TestRetained(t *testing.T) {
	tests := []struct {
		src, dst types.Dims
		want     float64
	}{
		{types.Dims{Width: 100, Height: 100}, types.Dims{Width: 300, Height: 300}, 1},
		{types.Dims{Width: 1920, Height: 1080}, types.Dims{Width: 300, Height: 300}, 0.5625},
		{types.Dims{Width: 200, Height: 100}, types.Dims{Width: 100, Height: 100}, 0.5},
		{types.Dims{}, types.Dims{Width: 1, Height: 1}, 0},
	}
	for _, tt := range tests {
		if got := Retained(tt.src, tt.dst); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Retained(%v, %v) = %f, want %f", tt.src, tt.dst, got, tt.want)
		}
	}
}

func TestChooseScale(t *testing.T) {
	_, mode, err := ChooseScale(types.Dims{Width: 1920, Height: 1080}, types.Dims{Width: 300, Height: 300}, DefaultFit)
	if err != nil {
		t.Fatal(err)
	}
	if mode != types.FitCover {
		t.Errorf("16:9 into square should cover, got %s", mode)
	}

	s, mode, err := ChooseScale(types.Dims{Width: 500, Height: 500}, types.Dims{Width: 728, Height: 90}, DefaultFit)
	if err != nil {
		t.Fatal(err)
	}
	if mode != types.FitContain {
		t.Errorf("square into leaderboard should contain, got %s", mode)
	}
	if s.W != 90 || s.H != 90 {
		t.Errorf("expected 90x90, got %fx%f", s.W, s.H)
	}

	_, mode, _ = ChooseScale(types.Dims{Width: 500, Height: 500}, types.Dims{Width: 728, Height: 90}, AlwaysCover)
	if mode != types.FitCover {
		t.Errorf("AlwaysCover should cover, got %s", mode)
	}
}

func TestCoverRange(t *testing.T) {
	s, _ := ScaleToCover(1920, 1080, 300, 300)
	rng := CoverRange(s, types.Dims{Width: 300, Height: 300})

	if rng.Y != 0 {
		t.Errorf("no vertical overflow expected, got %f", rng.Y)
	}
	want := (s.W - 300) / 2 / 300 * 100
	if math.Abs(rng.X-want) > 1e-9 {
		t.Errorf("CoverRange.X = %f, want %f", rng.X, want)
	}
}
