// Package adcreative fits a source image to ad formats, fills the empty
// margins and draws the ad copy on top.
//
// Basic usage:
//
//	engine := adcreative.New()
//	img, err := engine.LoadImage(ctx, "photo.jpg")
//	if err != nil {
//		log.Fatal(err)
//	}
//	creatives, err := engine.Render(ctx, adcreative.Request{
//		Source:  img,
//		Formats: catalog.ByPlatform(types.PlatformGoogleAds),
//		Overlays: []compositor.Layer{
//			compositor.Text{Role: compositor.RoleHeadline, Content: "Summer sale", Position: types.TopCenter},
//		},
//	})
//	if err != nil {
//		log.Fatal(err)
//	}
//	manifest, err := engine.Export("out", "", "photo.jpg", creatives)
//
// The engine combines the packages under pkg/:
//
//  1. Geometry (pkg/geometry) plans where the source lands on each canvas
//  2. Outpaint (pkg/outpaint) fills the margins remotely or by blur-extend
//  3. Compositor (pkg/compositor) draws scrims, text, logos and QR codes
//  4. Review (pkg/review) checks file size, dimensions and dead zones
//  5. Slideshow (pkg/slideshow) animates several images into one banner
package adcreative

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/menta2k/ad-creative/pkg/analyzer"
	"github.com/menta2k/ad-creative/pkg/cache"
	"github.com/menta2k/ad-creative/pkg/compositor"
	"github.com/menta2k/ad-creative/pkg/cropper"
	apperr "github.com/menta2k/ad-creative/pkg/errors"
	"github.com/menta2k/ad-creative/pkg/export"
	"github.com/menta2k/ad-creative/pkg/geometry"
	"github.com/menta2k/ad-creative/pkg/metrics"
	"github.com/menta2k/ad-creative/pkg/outpaint"
	"github.com/menta2k/ad-creative/pkg/processing"
	"github.com/menta2k/ad-creative/pkg/review"
	"github.com/menta2k/ad-creative/pkg/slideshow"
	"github.com/menta2k/ad-creative/pkg/types"
)

// Version of the ad creative library
const Version = "1.0.0"

// Config controls an Engine.
type Config struct {
	Outpaint outpaint.Config
	Output   processing.Format
	// Quality is the starting encoder quality; it is lowered until the
	// file fits the format limit.
	Quality int
	// SmartOffset pans toward the detected subject when a request has no
	// offset.
	SmartOffset bool
	// Debug attaches a layout overlay to every creative.
	Debug bool
}

// DefaultConfig returns JPEG output at quality 90 with subject panning.
func DefaultConfig() Config {
	return Config{
		Outpaint:    outpaint.DefaultConfig(),
		Output:      processing.JPEG,
		Quality:     90,
		SmartOffset: true,
	}
}

// Engine renders creatives.
type Engine struct {
	config     Config
	analyzer   *analyzer.SourceAnalyzer
	cropper    *cropper.SmartCropper
	outpainter *outpaint.Provider
	compositor *compositor.Compositor
	processor  *processing.Processor

	inpainter outpaint.Inpainter
	cache     cache.Cache
	logger    *log.Logger
	metrics   *metrics.Metrics
}

// Option configures an Engine.
type Option func(*Engine)

// WithInpainter enables the remote outpaint path.
func WithInpainter(i outpaint.Inpainter) Option { return func(e *Engine) { e.inpainter = i } }

func WithCache(c cache.Cache) Option        { return func(e *Engine) { e.cache = c } }
func WithLogger(l *log.Logger) Option       { return func(e *Engine) { e.logger = l } }
func WithMetrics(m *metrics.Metrics) Option { return func(e *Engine) { e.metrics = m } }

// New creates an engine with the default configuration. Without
// WithInpainter every margin is filled locally.
func New(opts ...Option) *Engine {
	return NewWithConfig(DefaultConfig(), opts...)
}

// NewWithConfig creates an engine with custom configuration
func NewWithConfig(config Config, opts ...Option) *Engine {
	if config.Output == "" {
		config.Output = processing.JPEG
	}
	e := &Engine{
		config:    config,
		processor: processing.NewProcessor(),
		cache:     cache.NewNullCache(),
		logger:    log.Default(),
	}
	for _, opt := range opts {
		opt(e)
	}

	ac := analyzer.DefaultConfig()
	ac.Policy, ac.Threshold = config.Outpaint.Policy, config.Outpaint.Threshold
	e.analyzer = analyzer.NewWithConfig(ac)

	cc := cropper.DefaultConfig()
	cc.Policy, cc.Threshold = config.Outpaint.Policy, config.Outpaint.Threshold
	e.cropper = cropper.NewWithConfig(cc)

	e.outpainter = outpaint.New(e.inpainter, config.Outpaint,
		outpaint.WithCache(e.cache), outpaint.WithLogger(e.logger), outpaint.WithMetrics(e.metrics))
	e.compositor = compositor.New(compositor.WithLogger(e.logger), compositor.WithMetrics(e.metrics))
	return e
}

// Request is one source image rendered to several formats.
type Request struct {
	Source  image.Image
	Formats []types.TargetFormat
	// Offset applies to every format. Nil centers the source, or follows
	// the subject when SmartOffset is on.
	Offset   *types.Offset
	Overlays []compositor.Layer
}

// Creative is one rendered format.
type Creative struct {
	Format    types.TargetFormat
	Image     *image.NRGBA
	Encoded   []byte
	Encoding  processing.Format
	Quality   int
	Source    types.Dims
	Placement types.Placement
	Fill      outpaint.Fill
	Warnings  []types.Warning
	Findings  []review.Finding
	// Debug is set when the engine runs with Debug.
	Debug *image.NRGBA
}

// Blocked reports whether a finding keeps the creative from export.
func (c Creative) Blocked() bool {
	for _, f := range c.Findings {
		if f.Blocking {
			return true
		}
	}
	return false
}

func (c Creative) review() review.Creative {
	return review.Creative{
		Format:    c.Format,
		Image:     c.Image,
		Encoded:   c.Encoded,
		Source:    c.Source,
		Placement: c.Placement,
		Fill:      c.Fill,
		Warnings:  c.Warnings,
	}
}

// LoadImage reads a file path or an http(s) URL. Sources outside the
// supported formats fail with INVALID_FORMAT.
func (e *Engine) LoadImage(ctx context.Context, source string) (image.Image, error) {
	var img image.Image
	var err error
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		var data []byte
		if data, err = e.processor.Download(ctx, source); err == nil {
			img, err = e.analyzer.LoadImageFromReader(bytes.NewReader(data))
		}
	} else {
		img, err = e.analyzer.LoadImage(source)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load image: %w", err)
	}
	return img, nil
}

// Describe returns the size, focus point and palette of img.
func (e *Engine) Describe(img image.Image) analyzer.ImageInfo {
	return e.analyzer.GetImageInfo(img)
}

// Assess reports how img fits each format before anything is rendered.
func (e *Engine) Assess(img image.Image, formats []types.TargetFormat) ([]analyzer.FormatFit, error) {
	return e.analyzer.Assess(img, formats)
}

// Render produces one creative per format, in request order. It fails only
// on invalid input or cancellation; remote and layout problems end up in
// the Fill, Warnings and Findings of each creative.
func (e *Engine) Render(ctx context.Context, req Request) ([]Creative, error) {
	if err := e.analyzer.ValidateImage(req.Source); err != nil {
		return nil, err
	}
	if len(req.Formats) == 0 {
		return nil, apperr.New(apperr.ErrCodeInvalidConfig, "no target formats")
	}
	if req.Offset != nil && !req.Offset.Valid() {
		return nil, apperr.New(apperr.ErrCodeInvalidOffset, "offset %+v is outside [-%g, %g]", *req.Offset, types.MaxOffset, types.MaxOffset)
	}

	out := make([]Creative, 0, len(req.Formats))
	for _, f := range req.Formats {
		if err := ctx.Err(); err != nil {
			return out, err
		}
		c, err := e.render(ctx, req, f)
		if err != nil {
			return out, fmt.Errorf("format %s: %w", f.ID, err)
		}
		out = append(out, c)
	}
	return out, nil
}

func (e *Engine) render(ctx context.Context, req Request, f types.TargetFormat) (Creative, error) {
	b := req.Source.Bounds()
	src := types.Dims{Width: b.Dx(), Height: b.Dy()}

	pl, offset, err := e.place(req, src, f)
	if err != nil {
		return Creative{}, err
	}

	filled := e.outpainter.OutpaintPlacement(ctx, req.Source, pl)
	comp, err := e.compositor.Composite(filled.Image, f, req.Overlays)
	if err != nil {
		return Creative{}, err
	}
	budget, err := processing.EncodeWithinBudget(comp.Image, e.config.Output, e.config.Quality, f.MaxFileSize)
	if err != nil {
		return Creative{}, apperr.Wrap(apperr.ErrCodeEncoderFailure, err, "encode %s", f.ID)
	}

	c := Creative{
		Format:    f,
		Image:     comp.Image,
		Encoded:   budget.Data,
		Encoding:  e.config.Output,
		Quality:   budget.Quality,
		Source:    src,
		Placement: pl,
		Fill:      filled.Fill,
		Warnings:  comp.Warnings,
	}
	c.Findings = review.Review(c.review())
	if e.config.Debug {
		c.Debug = processing.CreateDebugOverlay(comp.Image, pl, f)
	}

	e.logger.Debug("creative rendered",
		"format", f.ID, "fill", filled.Fill.Path(), "fit", pl.Fit,
		"offset", fmt.Sprintf("%.1f,%.1f", offset.X, offset.Y),
		"bytes", len(budget.Data), "quality", budget.Quality, "findings", len(c.Findings))
	return c, nil
}

// place uses the request offset, the subject-following offset of the
// cropper, or a centered offset, in that order.
func (e *Engine) place(req Request, src types.Dims, f types.TargetFormat) (types.Placement, types.Offset, error) {
	if req.Offset == nil && e.config.SmartOffset {
		return e.cropper.Plan(req.Source, f.Dims)
	}
	var offset types.Offset
	if req.Offset != nil {
		offset = *req.Offset
	}
	pl, err := geometry.Plan(src, f.Dims, offset, e.config.Outpaint.Policy, e.config.Outpaint.Threshold)
	return pl, offset, err
}

// Export writes creatives and their manifest to dir. A blocking finding on
// any creative fails the whole batch with EXPORT_BLOCKED and writes
// nothing.
func (e *Engine) Export(dir, jobID, source string, creatives []Creative) (export.Manifest, error) {
	reviews := make([]review.Creative, len(creatives))
	for i, c := range creatives {
		reviews[i] = c.review()
	}
	if err := review.ConfirmExport(reviews); err != nil {
		return export.Manifest{}, err
	}

	assets := make([]export.Asset, len(creatives))
	for i, c := range creatives {
		assets[i] = export.Asset{
			Format:   c.Format,
			Data:     c.Encoded,
			Ext:      string(c.Encoding),
			Fill:     c.Fill.Path(),
			Quality:  c.Quality,
			Findings: c.Findings,
		}
	}
	m, err := export.Write(dir, jobID, source, assets)
	if err != nil {
		return export.Manifest{}, err
	}
	e.logger.Info("creatives exported", "dir", dir, "job", m.JobID, "files", len(m.Entries))
	return m, nil
}

// Slideshow renders images into an animated banner with the engine's
// compositor, logger and metrics. opts are applied after those.
func (e *Engine) Slideshow(ctx context.Context, config slideshow.Config, enc slideshow.FrameEncoder, images []image.Image, opts ...slideshow.Option) (slideshow.Stats, error) {
	r, err := slideshow.New(config, enc, append([]slideshow.Option{
		slideshow.WithLogger(e.logger),
		slideshow.WithMetrics(e.metrics),
		slideshow.WithCompositor(e.compositor),
	}, opts...)...)
	if err != nil {
		return slideshow.Stats{}, err
	}
	return r.Render(ctx, images)
}

// GetVersion returns the library version
func GetVersion() string {
	return Version
}
