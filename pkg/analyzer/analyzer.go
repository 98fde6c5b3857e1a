package analyzer

import (
	"bytes"
	"fmt"
	"image"
	"image/color"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"os"
	"strings"

	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	apperr "github.com/menta2k/ad-creative/pkg/errors"
	"github.com/menta2k/ad-creative/pkg/geometry"
	"github.com/menta2k/ad-creative/pkg/processing"
	"github.com/menta2k/ad-creative/pkg/types"
	"github.com/menta2k/ad-creative/pkg/vision"
)

// SourceAnalyzer checks source images before they are fitted to formats
type SourceAnalyzer struct {
	config   Config
	detector *vision.SubjectDetector
}

// Config holds configuration for the source analyzer
type Config struct {
	SupportedFormats []string
	// MinImageSize is the smallest accepted side in pixels
	MinImageSize int
	Policy       geometry.FitPolicy
	Threshold    geometry.Threshold
}

// DefaultConfig accepts the formats a browser upload would produce
func DefaultConfig() Config {
	return Config{
		SupportedFormats: []string{"jpeg", "png", "webp", "gif"},
		MinImageSize:     100,
		Policy:           geometry.DefaultFit,
		Threshold:        geometry.DefaultThreshold,
	}
}

// New creates a new SourceAnalyzer with default configuration
func New() *SourceAnalyzer {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates a new SourceAnalyzer with custom configuration
func NewWithConfig(config Config) *SourceAnalyzer {
	return &SourceAnalyzer{config: config, detector: vision.New()}
}

// LoadImage loads an image from file
func (a *SourceAnalyzer) LoadImage(path string) (image.Image, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open image file: %w", err)
	}
	defer file.Close()
	return a.LoadImageFromReader(file)
}

// LoadImageFromReader decodes an image and rejects formats outside
// SupportedFormats with INVALID_FORMAT. EXIF orientation is applied.
func (a *SourceAnalyzer) LoadImageFromReader(reader io.Reader) (image.Image, error) {
	data, err := io.ReadAll(reader)
	if err != nil {
		return nil, fmt.Errorf("failed to read image: %w", err)
	}

	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		// extended and animated WebP only decode through libwebp
		img, werr := processing.Decode(data)
		if werr != nil {
			return nil, apperr.Wrap(apperr.ErrCodeInvalidFormat, err, "failed to decode image")
		}
		if !a.isFormatSupported("webp") {
			return nil, apperr.New(apperr.ErrCodeInvalidFormat, "unsupported image format: webp")
		}
		return img, nil
	}
	if !a.isFormatSupported(format) {
		return nil, apperr.New(apperr.ErrCodeInvalidFormat, "unsupported image format: %s", format)
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrCodeInvalidFormat, err, "failed to decode %s image", format)
	}
	return img, nil
}

// ImageInfo contains basic image metadata
type ImageInfo struct {
	Width       int     `json:"width"`
	Height      int     `json:"height"`
	AspectRatio float64 `json:"aspect_ratio"`
	Area        int     `json:"area"`
	// FocusX and FocusY locate the most salient region, normalized
	FocusX  float64       `json:"focus_x"`
	FocusY  float64       `json:"focus_y"`
	Palette []color.NRGBA `json:"palette"`
}

// GetImageInfo returns size, focus point and dominant colors of an image
func (a *SourceAnalyzer) GetImageInfo(img image.Image) ImageInfo {
	bounds := img.Bounds()
	width, height := bounds.Dx(), bounds.Dy()
	fx, fy := a.detector.Focus(img)

	info := ImageInfo{
		Width:   width,
		Height:  height,
		Area:    width * height,
		FocusX:  fx,
		FocusY:  fy,
		Palette: vision.Palette(img, 5),
	}
	if height > 0 {
		info.AspectRatio = float64(width) / float64(height)
	}
	return info
}

func (a *SourceAnalyzer) isFormatSupported(format string) bool {
	for _, supported := range a.config.SupportedFormats {
		if strings.EqualFold(format, supported) {
			return true
		}
	}
	return false
}

// ValidateImage checks if an image meets minimum requirements
func (a *SourceAnalyzer) ValidateImage(img image.Image) error {
	if img == nil {
		return apperr.New(apperr.ErrCodeInvalidDimensions, "no image")
	}
	bounds := img.Bounds()
	if bounds.Dx() < a.config.MinImageSize || bounds.Dy() < a.config.MinImageSize {
		return apperr.New(apperr.ErrCodeInvalidDimensions, "image too small: %dx%d (minimum: %d)",
			bounds.Dx(), bounds.Dy(), a.config.MinImageSize)
	}
	return nil
}

// FormatFit describes how a source fits one format at a centered offset
type FormatFit struct {
	Format    types.TargetFormat `json:"format"`
	Placement types.Placement    `json:"placement"`
	// Retained is the fraction of the source left visible by cover-fit
	Retained float64 `json:"retained"`
	// Upscale is the magnification of the source; above 1 it loses detail
	Upscale float64 `json:"upscale"`
}

// Assess plans every format for img
func (a *SourceAnalyzer) Assess(img image.Image, formats []types.TargetFormat) ([]FormatFit, error) {
	if err := a.ValidateImage(img); err != nil {
		return nil, err
	}
	src := types.Dims{Width: img.Bounds().Dx(), Height: img.Bounds().Dy()}
	out := make([]FormatFit, 0, len(formats))
	for _, f := range formats {
		pl, err := geometry.Plan(src, f.Dims, types.Offset{}, a.config.Policy, a.config.Threshold)
		if err != nil {
			return nil, fmt.Errorf("format %s: %w", f.ID, err)
		}
		out = append(out, FormatFit{
			Format:    f,
			Placement: pl,
			Retained:  geometry.Retained(src, f.Dims),
			Upscale:   pl.Scaled.W / float64(src.Width),
		})
	}
	return out, nil
}
