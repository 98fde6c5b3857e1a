package processing

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"io"
	"math"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/chai2010/webp"
	"github.com/disintegration/imaging"
	_ "golang.org/x/image/webp"

	apperr "github.com/menta2k/ad-creative/pkg/errors"
	"github.com/menta2k/ad-creative/pkg/types"
)

// Format is an output encoding
type Format string

const (
	JPEG Format = "jpg"
	PNG  Format = "png"
	WebP Format = "webp"
)

// ParseFormat accepts a format name or a file name with an extension
func ParseFormat(s string) (Format, error) {
	s = strings.ToLower(strings.TrimPrefix(filepath.Ext("x."+strings.TrimPrefix(s, ".")), "."))
	switch s {
	case "jpg", "jpeg":
		return JPEG, nil
	case "png":
		return PNG, nil
	case "webp":
		return WebP, nil
	}
	return "", apperr.New(apperr.ErrCodeInvalidConfig, "unsupported output format %q", s)
}

// MaxDownload caps remote source images.
const MaxDownload = 40 << 20

// Processor downloads source images and saves creatives
type Processor struct {
	client *http.Client
}

// NewProcessor creates a new image processor
func NewProcessor() *Processor {
	return &Processor{client: &http.Client{Timeout: 30 * time.Second}}
}

// Download fetches the raw bytes of a remote image
func (p *Processor) Download(ctx context.Context, imageURL string) ([]byte, error) {
	parsedURL, err := url.Parse(imageURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsedURL.Scheme != "http" && parsedURL.Scheme != "https" {
		return nil, fmt.Errorf("unsupported URL scheme: %s (only http and https are supported)", parsedURL.Scheme)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, imageURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("User-Agent", "ad-creative/1.0")

	resp, err := p.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download image: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to download image: %s", resp.Status)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "image/") {
		return nil, fmt.Errorf("URL does not point to an image (Content-Type: %s)", ct)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxDownload+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read image data: %w", err)
	}
	if len(data) > MaxDownload {
		return nil, fmt.Errorf("image is larger than %d MB", MaxDownload>>20)
	}
	return data, nil
}

// Decode decodes registered formats and falls back to the libwebp decoder.
func Decode(data []byte) (image.Image, error) {
	if img, _, err := image.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}
	if img, err := webp.Decode(bytes.NewReader(data)); err == nil {
		return img, nil
	}
	return nil, fmt.Errorf("image: unknown or unsupported format")
}

// Encode encodes img. Quality is ignored for PNG.
func Encode(img image.Image, format Format, quality int) ([]byte, error) {
	var buf bytes.Buffer
	var err error
	switch format {
	case PNG:
		enc := png.Encoder{CompressionLevel: png.BestCompression}
		err = enc.Encode(&buf, img)
	case WebP:
		err = webp.Encode(&buf, img, &webp.Options{Quality: float32(quality)})
	case JPEG, "":
		err = jpeg.Encode(&buf, img, &jpeg.Options{Quality: quality})
	default:
		return nil, apperr.New(apperr.ErrCodeInvalidConfig, "unsupported output format %q", format)
	}
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", format, err)
	}
	return buf.Bytes(), nil
}

// Budget is the result of EncodeWithinBudget
type Budget struct {
	Data    []byte
	Quality int
	// Fits is false when even the lowest quality is over the limit; Data
	// then holds the smallest encoding found.
	Fits bool
}

// EncodeWithinBudget steps the quality down from start until the file fits
// maxBytes. PNG has no quality knob and is encoded once. A maxBytes of 0
// means no limit.
func EncodeWithinBudget(img image.Image, format Format, start int, maxBytes int64) (Budget, error) {
	if start <= 0 || start > 100 {
		start = 90
	}
	const floor, step = 40, 10

	var best Budget
	for q := start; ; q -= step {
		q = max(q, floor)
		data, err := Encode(img, format, q)
		if err != nil {
			return Budget{}, err
		}
		if best.Data == nil || len(data) < len(best.Data) {
			best = Budget{Data: data, Quality: q}
		}
		if maxBytes <= 0 || int64(len(data)) <= maxBytes {
			return Budget{Data: data, Quality: q, Fits: true}, nil
		}
		if format == PNG || q == floor {
			return best, nil
		}
	}
}

// SaveImage saves an image to a file with the specified format and quality
func (p *Processor) SaveImage(img image.Image, path string, format Format, quality int) error {
	data, err := Encode(img, format, quality)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// CreateDebugOverlay draws the layout of a creative over it: the source
// placement, the safe area and the dead zones of the format.
func CreateDebugOverlay(img image.Image, pl types.Placement, format types.TargetFormat) *image.NRGBA {
	nrgba := imaging.Clone(img)
	w, h := nrgba.Bounds().Dx(), nrgba.Bounds().Dy()

	gold := color.NRGBA{255, 204, 0, 255} // placement
	blue := color.NRGBA{0, 170, 255, 255} // safe area
	red := color.NRGBA{255, 0, 0, 255}    // dead zones
	stroke := int(math.Max(1, 0.004*float64(min(w, h))))

	drawBox(nrgba, pl.DrawRect(), gold, stroke)
	if format.Dims.Valid() {
		drawBox(nrgba, format.SafeArea(), blue, stroke)
	}
	for _, z := range format.DeadZones {
		drawBox(nrgba, z.ToImage(), red, stroke)
		r := z.ToImage()
		drawLine(nrgba, r.Min, r.Max, red)
		drawLine(nrgba, image.Pt(r.Min.X, r.Max.Y-1), image.Pt(r.Max.X-1, r.Min.Y), red)
	}
	return nrgba
}

func drawBox(img *image.NRGBA, r image.Rectangle, c color.NRGBA, stroke int) {
	r = r.Intersect(img.Bounds())
	if r.Empty() {
		return
	}
	for s := 0; s < stroke; s++ {
		drawHLine(img, r.Min.Y+s, r.Min.X, r.Max.X, c)
		drawHLine(img, r.Max.Y-1-s, r.Min.X, r.Max.X, c)
		drawVLine(img, r.Min.X+s, r.Min.Y, r.Max.Y, c)
		drawVLine(img, r.Max.X-1-s, r.Min.Y, r.Max.Y, c)
	}
}

func drawHLine(img *image.NRGBA, y, x0, x1 int, c color.NRGBA) {
	for x := max(0, x0); x < min(x1, img.Bounds().Dx()); x++ {
		img.SetNRGBA(x, y, c)
	}
}

func drawVLine(img *image.NRGBA, x, y0, y1 int, c color.NRGBA) {
	for y := max(0, y0); y < min(y1, img.Bounds().Dy()); y++ {
		img.SetNRGBA(x, y, c)
	}
}

// drawLine draws a one pixel line from a to b.
func drawLine(img *image.NRGBA, a, b image.Point, c color.NRGBA) {
	n := max(abs(b.X-a.X), abs(b.Y-a.Y))
	for i := 0; i <= n; i++ {
		t := 0.0
		if n > 0 {
			t = float64(i) / float64(n)
		}
		img.SetNRGBA(a.X+int(math.Round(t*float64(b.X-a.X))), a.Y+int(math.Round(t*float64(b.Y-a.Y))), c)
	}
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
