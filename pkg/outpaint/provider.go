// Package outpaint fills the uncovered margins of a placed image, either
// with a remote inpainting model or locally by extending the source edges.
//
// Outpaint never fails on remote problems: missing credentials, oversized
// canvases, timeouts and API errors all end in the local fallback and are
// reported through the Extended fill. Only invalid geometry is an error.
package outpaint

import (
	"bytes"
	"context"
	"image"
	"image/png"
	"time"

	"github.com/charmbracelet/log"
	"github.com/disintegration/imaging"

	"github.com/menta2k/ad-creative/pkg/cache"
	apperr "github.com/menta2k/ad-creative/pkg/errors"
	"github.com/menta2k/ad-creative/pkg/geometry"
	"github.com/menta2k/ad-creative/pkg/metrics"
	"github.com/menta2k/ad-creative/pkg/types"
)

// DefaultPrompt asks the model to continue the scene into the transparent area.
const DefaultPrompt = "Extend the background of this image seamlessly into the empty area. " +
	"Match lighting, texture and perspective. Do not add text, logos or new subjects."

// Config controls the remote path and its retries.
type Config struct {
	Attempts     int
	InitialDelay time.Duration
	Timeout      time.Duration
	// Square sizes the inpainting API accepts, ascending.
	Sizes      []int
	MaxPayload int64
	Prompt     string
	Policy     geometry.FitPolicy
	Threshold  geometry.Threshold
	CacheTTL   time.Duration
}

// DefaultConfig returns the settings used by the CLI.
func DefaultConfig() Config {
	return Config{
		Attempts:     3,
		InitialDelay: 500 * time.Millisecond,
		Timeout:      60 * time.Second,
		Sizes:        []int{256, 512, 1024},
		MaxPayload:   4 << 20,
		Prompt:       DefaultPrompt,
		Policy:       geometry.DefaultFit,
		Threshold:    geometry.DefaultThreshold,
		CacheTTL:     7 * 24 * time.Hour,
	}
}

// Provider produces outpainted canvases.
type Provider struct {
	inpainter Inpainter
	config    Config
	cache     cache.Cache
	metrics   *metrics.Metrics
	logger    *log.Logger
}

// Option configures a Provider.
type Option func(*Provider)

func WithCache(c cache.Cache) Option { return func(p *Provider) { p.cache = c } }

func WithMetrics(m *metrics.Metrics) Option { return func(p *Provider) { p.metrics = m } }

func WithLogger(l *log.Logger) Option { return func(p *Provider) { p.logger = l } }

// New creates a provider. A nil inpainter means no credentials: every
// fill that needs outpainting takes the local path.
func New(inpainter Inpainter, config Config, opts ...Option) *Provider {
	p := &Provider{
		inpainter: inpainter,
		config:    config,
		cache:     cache.NewNullCache(),
		logger:    log.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Outpaint places src on a target canvas at offset and fills the margins.
func (p *Provider) Outpaint(ctx context.Context, src image.Image, target types.Dims, offset types.Offset) (Result, error) {
	if src == nil || src.Bounds().Empty() {
		return Result{}, apperr.New(apperr.ErrCodeInvalidDimensions, "source image is empty")
	}
	b := src.Bounds()
	pl, err := geometry.Plan(types.Dims{Width: b.Dx(), Height: b.Dy()}, target, offset, p.config.Policy, p.config.Threshold)
	if err != nil {
		return Result{}, err
	}
	return p.OutpaintPlacement(ctx, src, pl), nil
}

// OutpaintPlacement fills an already computed placement.
func (p *Provider) OutpaintPlacement(ctx context.Context, src image.Image, pl types.Placement) Result {
	var res Result
	switch {
	case !pl.NeedsOutpaint:
		// sub-threshold margins still get an opaque edge fill
		res = Result{Image: Extend(src, pl), Fill: Covered{}}
	case p.inpainter == nil:
		res = p.fallback(src, pl, apperr.New(apperr.ErrCodeMissingCredentials, "no inpainting credentials configured"))
	default:
		img, gen, err := p.remote(ctx, src, pl)
		if err != nil {
			res = p.fallback(src, pl, err)
		} else {
			res = Result{Image: img, Fill: gen}
		}
	}

	res.Placement = pl
	res.Success = true
	p.metrics.Fill(res.Fill.Path())
	return res
}

func (p *Provider) fallback(src image.Image, pl types.Placement, cause error) Result {
	reason := apperr.GetCode(cause)
	if reason == "" {
		reason = apperr.ErrCodeRemoteFatal
	}
	p.logger.Warn("outpaint falling back to edge extension", "target", pl.Target, "reason", reason, "err", cause)
	p.metrics.Fallback(string(reason))
	return Result{Image: Extend(src, pl), Fill: Extended{Reason: reason, Cause: cause}}
}

func (p *Provider) remote(ctx context.Context, src image.Image, pl types.Placement) (*image.NRGBA, Generated, error) {
	canvas := maskCanvas(src, pl)
	side, err := squareSize(pl.Target.Width, pl.Target.Height, p.config.Sizes)
	if err != nil {
		return nil, Generated{}, err
	}
	sq, at := letterbox(canvas, side)
	payload, err := encodePayload(sq, p.config.MaxPayload)
	if err != nil {
		return nil, Generated{}, err
	}

	prompt := p.config.Prompt
	if prompt == "" {
		prompt = DefaultPrompt
	}
	key := cache.Key("fill", payload, prompt)
	if data, hit, _ := p.cache.Get(ctx, key); hit {
		if img, err := png.Decode(bytes.NewReader(data)); err == nil {
			p.logger.Debug("outpaint cache hit", "target", pl.Target)
			return p.assemble(src, pl, canvas, img), Generated{Cached: true}, nil
		}
	}

	req := InpaintRequest{Image: payload, Mask: payload, Size: side, Prompt: prompt}
	var out image.Image
	attempts, err := retry(ctx, p.config.Attempts, p.config.InitialDelay, p.config.Timeout, func(actx context.Context) error {
		start := time.Now()
		img, err := p.inpainter.Inpaint(actx, req)
		err = classify(err)
		switch {
		case err == nil:
			p.metrics.RemoteAttempt("ok", time.Since(start))
			out = img
		case apperr.Transient(err):
			p.metrics.RemoteAttempt("transient", time.Since(start))
			p.logger.Debug("inpaint attempt failed", "size", side, "err", err)
		default:
			p.metrics.RemoteAttempt("fatal", time.Since(start))
		}
		return err
	})
	if err != nil {
		return nil, Generated{}, err
	}
	if out == nil || out.Bounds().Empty() {
		return nil, Generated{}, apperr.New(apperr.ErrCodeRemoteFatal, "inpainter returned no image")
	}

	fill := cropBack(out, side, at)
	var buf bytes.Buffer
	if err := png.Encode(&buf, fill); err == nil {
		if err := p.cache.Set(ctx, key, buf.Bytes(), p.config.CacheTTL); err != nil {
			p.logger.Debug("outpaint cache write failed", "err", err)
		}
	}
	return p.assemble(src, pl, canvas, fill), Generated{Attempts: attempts}, nil
}

// assemble layers the local fill, the generated fill and the sharp source.
// The local fill underneath keeps the result opaque when the model returns
// partially transparent pixels.
func (p *Provider) assemble(src image.Image, pl types.Placement, canvas *image.NRGBA, fill image.Image) *image.NRGBA {
	base := Extend(src, pl)
	base = imaging.Overlay(base, fill, image.Pt(0, 0), 1.0)
	base = imaging.Overlay(base, canvas, image.Pt(0, 0), 1.0)
	return flatten(base)
}
