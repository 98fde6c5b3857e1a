// Package catalog is the static list of ad-unit formats the engine renders.
package catalog

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	apperr "github.com/menta2k/ad-creative/pkg/errors"
	"github.com/menta2k/ad-creative/pkg/types"
)

const kb = 1024

// Built-in formats, keyed by ID.
var formats = map[string]types.TargetFormat{}

func add(id, name string, platform types.Platform, w, h int, maxKB int64, insets types.Insets, dead ...types.Rect) {
	formats[id] = types.TargetFormat{
		ID:          id,
		Name:        name,
		Platform:    platform,
		Dims:        types.Dims{Width: w, Height: h},
		MaxFileSize: maxKB * kb,
		SafeInsets:  insets,
		DeadZones:   dead,
	}
}

func init() {
	g := types.PlatformGoogleAds
	none := types.Insets{}
	small := types.Insets{Top: 4, Bottom: 4, Left: 4, Right: 4}
	wide := types.Insets{Top: 12, Bottom: 12, Left: 12, Right: 12}

	add("gads-300x250", "Medium Rectangle", g, 300, 250, 150, small)
	add("gads-336x280", "Large Rectangle", g, 336, 280, 150, small)
	add("gads-728x90", "Leaderboard", g, 728, 90, 150, small)
	add("gads-970x90", "Large Leaderboard", g, 970, 90, 150, small)
	add("gads-970x250", "Billboard", g, 970, 250, 150, small)
	add("gads-300x600", "Half Page", g, 300, 600, 150, small)
	add("gads-300x1050", "Portrait", g, 300, 1050, 150, small)
	add("gads-160x600", "Wide Skyscraper", g, 160, 600, 150, small)
	add("gads-120x600", "Skyscraper", g, 120, 600, 150, none)
	add("gads-320x50", "Mobile Banner", g, 320, 50, 150, none)
	add("gads-320x100", "Large Mobile Banner", g, 320, 100, 150, small)
	add("gads-468x60", "Banner", g, 468, 60, 150, none)
	add("gads-250x250", "Square", g, 250, 250, 150, small)
	add("gads-200x200", "Small Square", g, 200, 200, 150, small)
	add("gads-1200x628", "Responsive Landscape", g, 1200, 628, 5120, wide)
	add("gads-1200x1200", "Responsive Square", g, 1200, 1200, 5120, wide)

	s := types.PlatformSklik
	add("sklik-300x300", "Square", s, 300, 300, 250, small)
	add("sklik-300x250", "Rectangle", s, 300, 250, 250, small)
	add("sklik-300x600", "Half Page", s, 300, 600, 250, small)
	add("sklik-480x300", "Wide Rectangle", s, 480, 300, 250, small)
	add("sklik-480x480", "Large Square", s, 480, 480, 250, small)
	add("sklik-728x90", "Leaderboard", s, 728, 90, 250, small)
	add("sklik-970x310", "Wallpaper", s, 970, 310, 250, small)
	add("sklik-160x600", "Skyscraper", s, 160, 600, 250, small)
	add("sklik-320x100", "Mobile Banner", s, 320, 100, 250, none)
	// The page body covers the middle of a branding background.
	add("sklik-2000x1400", "Branding", s, 2000, 1400, 500, types.Insets{Top: 20, Left: 20, Right: 20},
		types.Rect{X: 317, Y: 226, W: 1366, H: 1174})
}

// Get returns the format with the given ID.
func Get(id string) (types.TargetFormat, error) {
	f, ok := formats[strings.ToLower(strings.TrimSpace(id))]
	if !ok {
		return types.TargetFormat{}, apperr.New(apperr.ErrCodeInvalidFormat, "unknown format %q", id)
	}
	return f, nil
}

// All returns every format sorted by platform, then area descending.
func All() []types.TargetFormat {
	out := make([]types.TargetFormat, 0, len(formats))
	for _, f := range formats {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Platform != out[j].Platform {
			return out[i].Platform < out[j].Platform
		}
		ai := out[i].Dims.Width * out[i].Dims.Height
		aj := out[j].Dims.Width * out[j].Dims.Height
		if ai != aj {
			return ai > aj
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// ByPlatform returns the formats of one platform, in All() order.
func ByPlatform(p types.Platform) []types.TargetFormat {
	var out []types.TargetFormat
	for _, f := range All() {
		if f.Platform == p {
			out = append(out, f)
		}
	}
	return out
}

// ParseDims parses "WxH" (e.g. "728x90").
func ParseDims(s string) (types.Dims, error) {
	w, h, ok := strings.Cut(strings.ToLower(strings.TrimSpace(s)), "x")
	if !ok {
		return types.Dims{}, apperr.New(apperr.ErrCodeInvalidDimensions, "expected WxH, got %q", s)
	}
	wi, err := strconv.Atoi(w)
	if err != nil {
		return types.Dims{}, apperr.Wrap(apperr.ErrCodeInvalidDimensions, err, "width in %q", s)
	}
	hi, err := strconv.Atoi(h)
	if err != nil {
		return types.Dims{}, apperr.Wrap(apperr.ErrCodeInvalidDimensions, err, "height in %q", s)
	}
	d := types.Dims{Width: wi, Height: hi}
	if !d.Valid() {
		return types.Dims{}, apperr.New(apperr.ErrCodeInvalidDimensions, "dimensions must be positive, got %q", s)
	}
	return d, nil
}

// Resolve accepts either a catalog ID or a bare "WxH" size. Bare sizes
// become a custom format without a file-size limit.
func Resolve(s string) (types.TargetFormat, error) {
	if f, err := Get(s); err == nil {
		return f, nil
	}
	d, err := ParseDims(s)
	if err != nil {
		return types.TargetFormat{}, apperr.New(apperr.ErrCodeInvalidFormat, "%q is neither a known format nor WxH", s)
	}
	return types.TargetFormat{
		ID:   fmt.Sprintf("custom-%s", d),
		Name: "Custom",
		Dims: d,
	}, nil
}
