// Package slideshow renders a sequence of images into an animated banner
// with Ken-Burns motion, crossfades and a static text overlay.
//
// A Renderer runs a single job. Frames are produced one at a time on the
// calling goroutine and streamed to a FrameEncoder; Stop and context
// cancellation are checked before every frame.
package slideshow

import (
	"context"
	"fmt"
	"image"
	"image/draw"
	"math"
	"math/rand"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	xdraw "golang.org/x/image/draw"

	"github.com/menta2k/ad-creative/pkg/compositor"
	apperr "github.com/menta2k/ad-creative/pkg/errors"
	"github.com/menta2k/ad-creative/pkg/metrics"
	"github.com/menta2k/ad-creative/pkg/types"
)

// State is the lifecycle of a Renderer.
type State int32

const (
	Idle State = iota
	Recording
	Stopped
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Stopped:
		return "stopped"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int32(s))
}

// Config describes one slideshow.
type Config struct {
	Format   types.TargetFormat
	FPS      int
	Duration time.Duration
	// Fade is the length of the fade-in, each crossfade and the fade-out.
	Fade time.Duration
	// MaxZoom bounds the Ken-Burns zoom relative to cover-fit.
	MaxZoom float64
	// Seed drives the per-image motion. Equal seeds give identical frames.
	Seed     int64
	Overlays []compositor.Layer
}

// DefaultConfig returns a 30 fps, 9 second slideshow for format.
func DefaultConfig(format types.TargetFormat) Config {
	return Config{
		Format:   format,
		FPS:      30,
		Duration: 9 * time.Second,
		Fade:     500 * time.Millisecond,
		MaxZoom:  1.15,
		Seed:     1,
	}
}

// Stats summarizes a finished render.
type Stats struct {
	Schedule Schedule
	Frames   int
	// PerImage counts the frames each image was the primary image of.
	PerImage []int
	Elapsed  time.Duration
}

// Renderer renders one slideshow job.
type Renderer struct {
	config  Config
	encoder FrameEncoder
	comp    *compositor.Compositor
	interp  xdraw.Interpolator
	logger  *log.Logger
	metrics *metrics.Metrics

	state atomic.Int32
	stop  atomic.Bool
}

// Option configures a Renderer.
type Option func(*Renderer)

func WithLogger(l *log.Logger) Option                { return func(r *Renderer) { r.logger = l } }
func WithMetrics(m *metrics.Metrics) Option          { return func(r *Renderer) { r.metrics = m } }
func WithCompositor(c *compositor.Compositor) Option { return func(r *Renderer) { r.comp = c } }
func WithInterpolator(i xdraw.Interpolator) Option   { return func(r *Renderer) { r.interp = i } }

// New validates config and returns an idle renderer.
func New(config Config, encoder FrameEncoder, opts ...Option) (*Renderer, error) {
	if !config.Format.Dims.Valid() {
		return nil, apperr.New(apperr.ErrCodeInvalidDimensions, "slideshow canvas must be positive, got %s", config.Format.Dims)
	}
	if encoder == nil {
		return nil, apperr.New(apperr.ErrCodeInvalidConfig, "slideshow needs an encoder")
	}
	if config.FPS <= 0 || config.Duration <= 0 {
		return nil, apperr.New(apperr.ErrCodeInvalidConfig, "fps and duration must be positive")
	}
	if config.Fade < 0 {
		return nil, apperr.New(apperr.ErrCodeInvalidConfig, "fade must not be negative")
	}
	r := &Renderer{
		config:  config,
		encoder: encoder,
		interp:  xdraw.ApproxBiLinear,
		logger:  log.Default(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.comp == nil {
		r.comp = compositor.New(compositor.WithLogger(r.logger), compositor.WithMetrics(r.metrics))
	}
	return r, nil
}

// State returns the current lifecycle state.
func (r *Renderer) State() State {
	return State(r.state.Load())
}

// Stop asks a running render to finish after the current frame. The
// encoder is still closed, so the output holds every frame written.
func (r *Renderer) Stop() {
	r.stop.Store(true)
}

// Render draws every frame of the slideshow and closes the encoder.
func (r *Renderer) Render(ctx context.Context, images []image.Image) (Stats, error) {
	if !r.state.CompareAndSwap(int32(Idle), int32(Recording)) {
		return Stats{}, fmt.Errorf("renderer is %s, not idle", r.State())
	}
	stats, err := r.render(ctx, images)
	switch {
	case err != nil:
		r.state.Store(int32(Failed))
	default:
		r.state.Store(int32(Stopped))
	}
	r.metrics.Render(r.State().String())
	r.metrics.Frames(stats.Frames)
	return stats, err
}

func (r *Renderer) render(ctx context.Context, images []image.Image) (Stats, error) {
	start := time.Now()
	for i, img := range images {
		if img == nil || img.Bounds().Empty() {
			return Stats{}, apperr.New(apperr.ErrCodeInvalidDimensions, "slideshow image %d is empty", i)
		}
	}
	sched, err := NewSchedule(len(images), r.config.Duration, r.config.FPS)
	if err != nil {
		return Stats{}, err
	}

	// Motions are drawn up front so the output depends only on the seed.
	rng := rand.New(rand.NewSource(r.config.Seed))
	motions := make([]Motion, len(images))
	for i := range motions {
		motions[i] = RandomMotion(rng, r.config.MaxZoom)
	}

	var overlay *image.NRGBA
	if len(r.config.Overlays) > 0 {
		out, err := r.comp.RenderOverlay(r.config.Format, r.config.Overlays)
		if err != nil {
			return Stats{}, fmt.Errorf("render overlay: %w", err)
		}
		overlay = out.Image
	}

	w, h := r.config.Format.Dims.Width, r.config.Format.Dims.Height
	fade := r.fadeFrames(sched)
	r.logger.Info("slideshow started", "images", len(images), "frames", sched.TotalFrames, "per_image", sched.FramesPerImage, "fade", fade, "seed", r.config.Seed)

	if err := r.encoder.Start(w, h, r.config.FPS); err != nil {
		return Stats{}, apperr.Wrap(apperr.ErrCodeEncoderFailure, err, "start encoder")
	}

	frame := image.NewRGBA(image.Rect(0, 0, w, h))
	next := image.NewRGBA(frame.Bounds())
	stats := Stats{Schedule: sched, PerImage: make([]int, len(images))}

	for i := 0; i < sched.TotalFrames; i++ {
		if err := ctx.Err(); err != nil {
			_ = r.encoder.Close()
			stats.Elapsed = time.Since(start)
			return stats, err
		}
		if r.stop.Load() {
			r.logger.Info("slideshow stopped", "frame", i, "of", sched.TotalFrames)
			break
		}

		idx, local, progress := sched.Locate(i)
		n := sched.FramesFor(idx)
		drawMotion(frame, images[idx], motions[idx], progress, r.interp)

		// crossfade into the next image over the last frames of this one
		if idx < len(images)-1 && local >= n-fade {
			k := local - (n - fade) + 1
			drawMotion(next, images[idx+1], motions[idx+1], 0, r.interp)
			blend(frame, next, float64(k)/float64(fade+1))
		}
		if i < fade {
			dim(frame, float64(i+1)/float64(fade+1))
		}
		if rem := sched.TotalFrames - 1 - i; rem < fade {
			dim(frame, float64(rem+1)/float64(fade+1))
		}
		if overlay != nil {
			draw.Draw(frame, frame.Bounds(), overlay, image.Point{}, draw.Over)
		}

		if err := r.encoder.WriteFrame(frame); err != nil {
			_ = r.encoder.Close()
			stats.Elapsed = time.Since(start)
			return stats, apperr.Wrap(apperr.ErrCodeEncoderFailure, err, "write frame %d", i)
		}
		stats.Frames++
		stats.PerImage[idx]++
	}

	if err := r.encoder.Close(); err != nil {
		stats.Elapsed = time.Since(start)
		return stats, apperr.Wrap(apperr.ErrCodeEncoderFailure, err, "close encoder")
	}
	stats.Elapsed = time.Since(start)
	r.logger.Info("slideshow finished", "frames", stats.Frames, "elapsed", stats.Elapsed)
	return stats, nil
}

// fadeFrames converts the fade duration to frames, at most half of the
// frames of one image.
func (r *Renderer) fadeFrames(s Schedule) int {
	f := int(math.Round(r.config.Fade.Seconds() * float64(r.config.FPS)))
	return max(0, min(f, s.FramesPerImage/2))
}

// blend mixes src into dst with weight t of src.
func blend(dst, src *image.RGBA, t float64) {
	a := uint32(math.Round(t * 256))
	for i := range dst.Pix {
		dst.Pix[i] = uint8((uint32(dst.Pix[i])*(256-a) + uint32(src.Pix[i])*a) >> 8)
	}
}

// dim fades dst toward black, keeping alpha.
func dim(dst *image.RGBA, t float64) {
	a := uint32(math.Round(t * 256))
	for i := 0; i < len(dst.Pix); i += 4 {
		dst.Pix[i] = uint8(uint32(dst.Pix[i]) * a >> 8)
		dst.Pix[i+1] = uint8(uint32(dst.Pix[i+1]) * a >> 8)
		dst.Pix[i+2] = uint8(uint32(dst.Pix[i+2]) * a >> 8)
	}
}
