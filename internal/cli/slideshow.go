package cli

import (
	"fmt"
	"image"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	xdraw "golang.org/x/image/draw"

	"github.com/menta2k/ad-creative/internal/utils"
	"github.com/menta2k/ad-creative/pkg/catalog"
	apperr "github.com/menta2k/ad-creative/pkg/errors"
	"github.com/menta2k/ad-creative/pkg/slideshow"
)

type slideshowOpts struct {
	format   string
	out      string
	fps      int
	duration time.Duration
	fade     time.Duration
	maxZoom  float64
	seed     int64
	interp   string
	dryRun   bool
	overlay  overlayOpts
}

func (c *CLI) slideshowCommand() *cobra.Command {
	var opts slideshowOpts

	cmd := &cobra.Command{
		Use:   "slideshow [image|dir|url]...",
		Short: "Animate images into an MP4 or GIF banner",
		Long: `Slideshow gives every image an equal share of the frames, moves it with a
slow Ken-Burns pan and zoom and crossfades into the next one. The overlays
are drawn on every frame.

The output type follows the file extension: .mp4 needs ffmpeg on PATH,
.gif is encoded in process.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runSlideshow(cmd, args, opts)
		},
	}

	cmd.Flags().StringVarP(&opts.format, "format", "f", "gads-300x250", "format ID or WxH size")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "slideshow.mp4", "output file (.mp4 or .gif)")
	cmd.Flags().IntVar(&opts.fps, "fps", 0, "frames per second (default from config)")
	cmd.Flags().DurationVar(&opts.duration, "duration", 0, "total length (default from config)")
	cmd.Flags().DurationVar(&opts.fade, "fade", -1, "fade length (default from config)")
	cmd.Flags().Float64Var(&opts.maxZoom, "max-zoom", 0, "largest Ken-Burns zoom (default from config)")
	cmd.Flags().Int64Var(&opts.seed, "seed", 0, "motion seed (default from config)")
	cmd.Flags().StringVar(&opts.interp, "interpolation", "bilinear", "frame scaling: nearest, bilinear or catmullrom")
	cmd.Flags().BoolVar(&opts.dryRun, "dry-run", false, "render without encoding and print the frame digest")
	opts.overlay.register(cmd)
	return cmd
}

func (c *CLI) slideshowConfig(opts slideshowOpts) (slideshow.Config, error) {
	format, err := catalog.Resolve(opts.format)
	if err != nil {
		return slideshow.Config{}, err
	}
	sc := c.Config.Slideshow
	cfg := slideshow.DefaultConfig(format)
	cfg.FPS, cfg.Duration, cfg.Fade, cfg.MaxZoom, cfg.Seed = sc.FPS, sc.Duration, sc.Fade, sc.MaxZoom, sc.Seed
	if opts.fps > 0 {
		cfg.FPS = opts.fps
	}
	if opts.duration > 0 {
		cfg.Duration = opts.duration
	}
	if opts.fade >= 0 {
		cfg.Fade = opts.fade
	}
	if opts.maxZoom > 0 {
		cfg.MaxZoom = opts.maxZoom
	}
	if opts.seed != 0 {
		cfg.Seed = opts.seed
	}
	return cfg, nil
}

func (c *CLI) runSlideshow(cmd *cobra.Command, args []string, opts slideshowOpts) error {
	ctx := cmd.Context()
	w := cmd.OutOrStdout()

	cfg, err := c.slideshowConfig(opts)
	if err != nil {
		return err
	}
	interp, err := parseInterpolator(opts.interp)
	if err != nil {
		return err
	}
	sources, err := utils.ExpandImageArgs(args)
	if err != nil {
		return err
	}
	engine, err := c.newEngine(engineOpts{noCache: true})
	if err != nil {
		return err
	}
	images := make([]image.Image, 0, len(sources))
	for _, src := range sources {
		img, err := engine.LoadImage(ctx, src)
		if err != nil {
			return fmt.Errorf("%s: %w", src, err)
		}
		images = append(images, img)
	}
	if cfg.Overlays, err = c.layers(ctx, opts.overlay, engine.LoadImage); err != nil {
		return err
	}

	var enc slideshow.FrameEncoder
	var counter *slideshow.FrameCounter
	var file *os.File
	switch ext := strings.ToLower(filepath.Ext(opts.out)); {
	case opts.dryRun:
		counter = &slideshow.FrameCounter{}
		enc = counter
	case ext == ".gif":
		if file, err = os.Create(opts.out); err != nil {
			return fmt.Errorf("create %s: %w", opts.out, err)
		}
		defer file.Close()
		enc = slideshow.NewGIFEncoder(file, cfg.FPS, c.Config.Slideshow.GIFMaxFPS)
	case ext == ".mp4" || ext == ".mov" || ext == ".webm":
		enc = &slideshow.FFmpegEncoder{Output: opts.out, Binary: c.Config.Slideshow.FFmpeg}
	default:
		return apperr.New(apperr.ErrCodeInvalidConfig, "unsupported slideshow output %q (use .mp4 or .gif)", opts.out)
	}

	stats, err := engine.Slideshow(ctx, cfg, enc, images, slideshow.WithInterpolator(interp))
	if err != nil {
		return err
	}
	if file != nil {
		if err := file.Close(); err != nil {
			return fmt.Errorf("close %s: %w", opts.out, err)
		}
	}

	printSuccess(w, "%d frames at %d fps, %d per image", stats.Frames, cfg.FPS, stats.Schedule.FramesPerImage)
	printKeyValue(w, "format", fmt.Sprintf("%s (%s)", cfg.Format.ID, cfg.Format.Dims))
	printKeyValue(w, "elapsed", stats.Elapsed.Round(time.Millisecond).String())
	if counter != nil {
		printKeyValue(w, "digest", fmt.Sprintf("%016x", counter.Digest))
		return nil
	}
	printFile(w, opts.out)
	return nil
}

func parseInterpolator(name string) (xdraw.Interpolator, error) {
	switch strings.ToLower(name) {
	case "nearest":
		return xdraw.NearestNeighbor, nil
	case "", "bilinear":
		return xdraw.ApproxBiLinear, nil
	case "catmullrom":
		return xdraw.CatmullRom, nil
	}
	return nil, apperr.New(apperr.ErrCodeInvalidConfig, "unknown interpolation %q (nearest, bilinear, catmullrom)", name)
}
