package compositor

import (
	"fmt"
	"math"
	"sync"

	"github.com/golang/freetype/truetype"
	"golang.org/x/image/font"
	"golang.org/x/image/font/gofont/gobold"
	"golang.org/x/image/font/gofont/goregular"

	"github.com/menta2k/ad-creative/pkg/types"
)

// scale is the font sizing rule of one role: Ratio of the canvas width,
// clamped to [Min, Max] and capped at HeightCap of the canvas height.
type scale struct {
	Ratio     float64
	Min, Max  float64
	HeightCap float64
	Bold      bool
	MaxLines  int
}

var scales = map[Role]scale{
	RoleHeadline:    {Ratio: 0.075, Min: 10, Max: 72, HeightCap: 0.28, Bold: true, MaxLines: 2},
	RoleSubheadline: {Ratio: 0.045, Min: 8, Max: 40, HeightCap: 0.18, MaxLines: 2},
	RoleCTA:         {Ratio: 0.04, Min: 8, Max: 32, HeightCap: 0.2, Bold: true, MaxLines: 1},
}

// FontSize returns the point size for role on a canvas of the given size.
// The height cap keeps leaderboards readable without overflowing, but a
// size never drops below the role minimum.
func FontSize(role Role, d types.Dims) float64 {
	s, ok := scales[role]
	if !ok {
		s = scales[RoleSubheadline]
	}
	size := math.Max(s.Min, math.Min(s.Max, float64(d.Width)*s.Ratio))
	return math.Min(size, math.Max(s.Min, float64(d.Height)*s.HeightCap))
}

var (
	fontsOnce sync.Once
	regular   *truetype.Font
	bold      *truetype.Font
	fontsErr  error
)

func loadFonts() error {
	fontsOnce.Do(func() {
		if regular, fontsErr = truetype.Parse(goregular.TTF); fontsErr != nil {
			fontsErr = fmt.Errorf("parse regular font: %w", fontsErr)
			return
		}
		if bold, fontsErr = truetype.Parse(gobold.TTF); fontsErr != nil {
			fontsErr = fmt.Errorf("parse bold font: %w", fontsErr)
		}
	})
	return fontsErr
}

func face(role Role, size float64) font.Face {
	f := regular
	if scales[role].Bold {
		f = bold
	}
	return truetype.NewFace(f, &truetype.Options{Size: size, Hinting: font.HintingFull})
}
