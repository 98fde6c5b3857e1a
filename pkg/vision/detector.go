package vision

import (
	"image"
	"image/color"
	"math"
	"sort"

	"github.com/disintegration/imaging"
)

// SubjectDetector finds salient regions using edge strength and brightness
// on a downsampled copy of the image.
type SubjectDetector struct {
	config DetectionConfig
}

// DetectionConfig holds configuration for subject detection
type DetectionConfig struct {
	// Longest side of the analysis copy. Larger is slower and barely better.
	AnalysisSize    int
	EdgeThreshold   float64
	ContrastWeight  float64
	ColorWeight     float64
	MinSubjectRatio float64
	MaxRegions      int
}

// DefaultConfig returns the detector defaults.
func DefaultConfig() DetectionConfig {
	return DetectionConfig{
		AnalysisSize:    192,
		EdgeThreshold:   0.01,
		ContrastWeight:  0.7,
		ColorWeight:     0.3,
		MinSubjectRatio: 0.02,
		MaxRegions:      10,
	}
}

// New creates a new SubjectDetector with default configuration
func New() *SubjectDetector {
	return &SubjectDetector{config: DefaultConfig()}
}

// NewWithConfig creates a new SubjectDetector with custom configuration
func NewWithConfig(config DetectionConfig) *SubjectDetector {
	if config.AnalysisSize <= 0 {
		config.AnalysisSize = DefaultConfig().AnalysisSize
	}
	if config.MaxRegions <= 0 {
		config.MaxRegions = DefaultConfig().MaxRegions
	}
	return &SubjectDetector{config: config}
}

// Region is a scored rectangle in source image coordinates
type Region struct {
	X      int
	Y      int
	Width  int
	Height int
	Score  float64
}

// Center returns the center point of the region
func (r Region) Center() (int, int) {
	return r.X + r.Width/2, r.Y + r.Height/2
}

// Area returns the area of the region
func (r Region) Area() int {
	return r.Width * r.Height
}

// Rect converts the region to an image.Rectangle
func (r Region) Rect() image.Rectangle {
	return image.Rect(r.X, r.Y, r.X+r.Width, r.Y+r.Height)
}

type saliencyMap struct {
	w, h int
	v    []float64
}

func (m *saliencyMap) at(x, y int) float64 { return m.v[y*m.w+x] }

// DetectSubjects returns the highest scoring regions, best first.
func (d *SubjectDetector) DetectSubjects(img image.Image) []Region {
	b := img.Bounds()
	if b.Empty() {
		return nil
	}
	small := imaging.Fit(img, d.config.AnalysisSize, d.config.AnalysisSize, imaging.Box)
	sm := d.saliency(small)

	regions := d.slidingWindows(sm)
	sort.SliceStable(regions, func(i, j int) bool { return regions[i].Score > regions[j].Score })
	if len(regions) > d.config.MaxRegions {
		regions = regions[:d.config.MaxRegions]
	}

	// back to source coordinates
	sx := float64(b.Dx()) / float64(sm.w)
	sy := float64(b.Dy()) / float64(sm.h)
	for i := range regions {
		r := &regions[i]
		r.X = b.Min.X + int(float64(r.X)*sx)
		r.Y = b.Min.Y + int(float64(r.Y)*sy)
		r.Width = max(1, int(float64(r.Width)*sx))
		r.Height = max(1, int(float64(r.Height)*sy))
	}
	return regions
}

// Focus returns the score-weighted center of the detected subjects as
// fractions of the image size. Images without a clear subject focus on
// the middle.
func (d *SubjectDetector) Focus(img image.Image) (fx, fy float64) {
	b := img.Bounds()
	regions := d.DetectSubjects(img)
	var sum, cx, cy float64
	for _, r := range regions {
		x, y := r.Center()
		cx += r.Score * float64(x-b.Min.X)
		cy += r.Score * float64(y-b.Min.Y)
		sum += r.Score
	}
	if sum == 0 {
		return 0.5, 0.5
	}
	return clamp01(cx / sum / float64(b.Dx())), clamp01(cy / sum / float64(b.Dy()))
}

func (d *SubjectDetector) saliency(img *image.NRGBA) *saliencyMap {
	w, h := img.Bounds().Dx(), img.Bounds().Dy()
	sm := &saliencyMap{w: w, h: h, v: make([]float64, w*h)}
	lum := make([]float64, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			lum[y*w+x] = Luminance(img.NRGBAAt(x, y))
		}
	}
	for y := 1; y < h-1; y++ {
		for x := 1; x < w-1; x++ {
			// Sobel on luminance
			gx := -lum[(y-1)*w+x-1] - 2*lum[y*w+x-1] - lum[(y+1)*w+x-1] +
				lum[(y-1)*w+x+1] + 2*lum[y*w+x+1] + lum[(y+1)*w+x+1]
			gy := -lum[(y-1)*w+x-1] - 2*lum[(y-1)*w+x] - lum[(y-1)*w+x+1] +
				lum[(y+1)*w+x-1] + 2*lum[(y+1)*w+x] + lum[(y+1)*w+x+1]
			edge := math.Min(1, math.Hypot(gx, gy)/4)
			sm.v[y*w+x] = d.config.ContrastWeight*edge + d.config.ColorWeight*lum[y*w+x]
		}
	}
	return sm
}

func (d *SubjectDetector) slidingWindows(sm *saliencyMap) []Region {
	// summed-area table so each window costs O(1)
	integral := make([]float64, (sm.w+1)*(sm.h+1))
	for y := 0; y < sm.h; y++ {
		var row float64
		for x := 0; x < sm.w; x++ {
			row += sm.at(x, y)
			integral[(y+1)*(sm.w+1)+x+1] = integral[y*(sm.w+1)+x+1] + row
		}
	}
	sum := func(x0, y0, x1, y1 int) float64 {
		s := sm.w + 1
		return integral[y1*s+x1] - integral[y0*s+x1] - integral[y1*s+x0] + integral[y0*s+x0]
	}

	minArea := float64(sm.w*sm.h) * d.config.MinSubjectRatio
	short := min(sm.w, sm.h)
	var regions []Region
	for _, div := range []int{6, 4, 3, 2} {
		size := short / div
		if size < 4 || float64(size*size) < minArea {
			continue
		}
		step := max(1, size/4)
		for y := 0; y+size <= sm.h; y += step {
			for x := 0; x+size <= sm.w; x += step {
				score := sum(x, y, x+size, y+size) / float64(size*size)
				if score > d.config.EdgeThreshold {
					regions = append(regions, Region{X: x, Y: y, Width: size, Height: size, Score: score})
				}
			}
		}
	}
	return regions
}

// Palette returns up to n dominant colors of the image, most frequent
// first. Colors are quantized to 4 bits per channel.
func Palette(img image.Image, n int) []color.NRGBA {
	small := imaging.Fit(img, 96, 96, imaging.Box)
	counts := make(map[uint32]int)
	for i := 0; i < len(small.Pix); i += 4 {
		if small.Pix[i+3] < 128 {
			continue
		}
		key := uint32(small.Pix[i]&0xf0)<<16 | uint32(small.Pix[i+1]&0xf0)<<8 | uint32(small.Pix[i+2]&0xf0)
		counts[key]++
	}

	keys := make([]uint32, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if counts[keys[i]] != counts[keys[j]] {
			return counts[keys[i]] > counts[keys[j]]
		}
		return keys[i] < keys[j]
	})
	if len(keys) > n {
		keys = keys[:n]
	}

	out := make([]color.NRGBA, len(keys))
	for i, k := range keys {
		// center of the quantization bucket
		out[i] = color.NRGBA{uint8(k>>16) | 0x08, uint8(k>>8) | 0x08, uint8(k) | 0x08, 255}
	}
	return out
}

// Luminance is the Rec. 709 luma of c in [0, 1].
func Luminance(c color.Color) float64 {
	r, g, b, _ := c.RGBA()
	return (0.2126*float64(r) + 0.7152*float64(g) + 0.0722*float64(b)) / 0xffff
}

// MeanLuminance averages Luminance over the part of rect inside img.
func MeanLuminance(img image.Image, rect image.Rectangle) float64 {
	rect = rect.Intersect(img.Bounds())
	if rect.Empty() {
		return 0
	}
	step := max(1, min(rect.Dx(), rect.Dy())/32)
	var sum float64
	var n int
	for y := rect.Min.Y; y < rect.Max.Y; y += step {
		for x := rect.Min.X; x < rect.Max.X; x += step {
			sum += Luminance(img.At(x, y))
			n++
		}
	}
	return sum / float64(n)
}

func clamp01(v float64) float64 {
	return math.Max(0, math.Min(1, v))
}
