package cropper

import (
	"fmt"
	"image"
	"math"

	"github.com/menta2k/ad-creative/pkg/geometry"
	"github.com/menta2k/ad-creative/pkg/types"
	"github.com/menta2k/ad-creative/pkg/vision"
)

// SmartCropper picks the pan offset that keeps the subject of an image on
// the canvas.
type SmartCropper struct {
	detector *vision.SubjectDetector
	config   CropConfig
}

// CropConfig holds configuration for smart cropping
type CropConfig struct {
	Policy    geometry.FitPolicy
	Threshold geometry.Threshold
	// Strength scales the suggested pan; 0 keeps the image centered.
	Strength float64
}

// DefaultConfig returns the cropper defaults.
func DefaultConfig() CropConfig {
	return CropConfig{
		Policy:    geometry.DefaultFit,
		Threshold: geometry.DefaultThreshold,
		Strength:  1,
	}
}

// New creates a new SmartCropper with default configuration
func New() *SmartCropper {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates a new SmartCropper with custom configuration
func NewWithConfig(config CropConfig) *SmartCropper {
	return &SmartCropper{detector: vision.New(), config: config}
}

// SuggestOffset returns the pan that brings the point (fx, fy), given as
// fractions of the image, closest to the canvas center without exposing
// any margin the centered placement did not already have.
func SuggestOffset(fx, fy float64, scaled types.Size, target types.Dims, strength float64) types.Offset {
	rng := geometry.CoverRange(scaled, target)
	x := (0.5 - fx) * scaled.W / float64(target.Width) * 100 * strength
	y := (0.5 - fy) * scaled.H / float64(target.Height) * 100 * strength
	return types.Offset{
		X: math.Max(-rng.X, math.Min(rng.X, x)),
		Y: math.Max(-rng.Y, math.Min(rng.Y, y)),
	}
}

// Suggest detects the subject of img and returns the offset for target.
func (c *SmartCropper) Suggest(img image.Image, target types.Dims) (types.Offset, error) {
	b := img.Bounds()
	scaled, _, err := geometry.ChooseScale(types.Dims{Width: b.Dx(), Height: b.Dy()}, target, c.config.Policy)
	if err != nil {
		return types.Offset{}, err
	}
	fx, fy := c.detector.Focus(img)
	return SuggestOffset(fx, fy, scaled, target, c.config.Strength), nil
}

// Plan suggests an offset and computes the placement for it.
func (c *SmartCropper) Plan(img image.Image, target types.Dims) (types.Placement, types.Offset, error) {
	offset, err := c.Suggest(img, target)
	if err != nil {
		return types.Placement{}, types.Offset{}, fmt.Errorf("failed to suggest offset: %w", err)
	}
	b := img.Bounds()
	pl, err := geometry.Plan(types.Dims{Width: b.Dx(), Height: b.Dy()}, target, offset, c.config.Policy, c.config.Threshold)
	return pl, offset, err
}
