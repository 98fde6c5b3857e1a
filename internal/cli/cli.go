// Package cli implements the ad-creative command-line interface.
//
// # Commands
//
//   - formats: list the ad formats of the catalog
//   - plan: show how a source fits each format before rendering
//   - render: fit, outpaint, composite and export creatives
//   - slideshow: animate several images into an MP4 or GIF banner
//   - copy: write headline, subheadline and CTA with a language model
//   - generate: create a source image from a prompt and render it
//
// # Logging
//
// All commands support --verbose (-v) for debug-level logging. The logger
// travels through the command context.
//
// # Configuration
//
// Settings come from defaults, then the --config file (or config.yaml in
// the user config dir), then ADCREATIVE_* environment variables. Command
// flags override all of them.
package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/spf13/cobra"

	adcreative "github.com/menta2k/ad-creative"
	"github.com/menta2k/ad-creative/internal/config"
	"github.com/menta2k/ad-creative/pkg/cache"
	"github.com/menta2k/ad-creative/pkg/catalog"
	"github.com/menta2k/ad-creative/pkg/client"
	apperr "github.com/menta2k/ad-creative/pkg/errors"
	"github.com/menta2k/ad-creative/pkg/geometry"
	"github.com/menta2k/ad-creative/pkg/metrics"
	"github.com/menta2k/ad-creative/pkg/ollama"
	"github.com/menta2k/ad-creative/pkg/openai"
	"github.com/menta2k/ad-creative/pkg/outpaint"
	"github.com/menta2k/ad-creative/pkg/processing"
	"github.com/menta2k/ad-creative/pkg/types"
)

const appName = "ad-creative"

// Log levels exported for use in main.go.
const (
	LogDebug = log.DebugLevel
	LogInfo  = log.InfoLevel
)

// CLI holds shared state for all commands.
type CLI struct {
	Logger  *log.Logger
	Metrics *metrics.Metrics
	Config  *config.Config

	configPath  string
	metricsFile string
}

// New creates a CLI logging to w.
func New(w io.Writer, level log.Level) *CLI {
	return &CLI{
		Logger:  newLogger(w, level),
		Metrics: metrics.New(),
		Config:  config.Default(),
	}
}

// SetLogLevel updates the logger's level.
func (c *CLI) SetLogLevel(level log.Level) {
	c.Logger.SetLevel(level)
}

// RootCommand creates the root cobra command with all subcommands registered.
func (c *CLI) RootCommand() *cobra.Command {
	root := &cobra.Command{
		Use:           appName,
		Short:         "Fit images to ad formats, outpaint the margins and add copy",
		Long:          `ad-creative turns one source image into banners for every ad format of Google Ads and Sklik, filling empty margins with generated or extended background and drawing the ad copy on top.`,
		Version:       adcreative.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(c.configPath)
			if err != nil {
				return err
			}
			c.Config = cfg
			cmd.SetContext(withLogger(cmd.Context(), c.Logger))
			return nil
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return c.writeMetrics()
		},
	}

	root.PersistentFlags().StringVar(&c.configPath, "config", "", "config file (default "+config.GetConfigPath()+")")
	root.PersistentFlags().StringVar(&c.metricsFile, "metrics-file", "", "write Prometheus metrics to this textfile when done")

	root.AddCommand(c.formatsCommand())
	root.AddCommand(c.planCommand())
	root.AddCommand(c.renderCommand())
	root.AddCommand(c.slideshowCommand())
	root.AddCommand(c.copyCommand())
	root.AddCommand(c.generateCommand())

	return root
}

func (c *CLI) writeMetrics() error {
	if c.metricsFile == "" {
		return nil
	}
	if err := c.Metrics.WriteTextfile(c.metricsFile); err != nil {
		return fmt.Errorf("write metrics: %w", err)
	}
	c.Logger.Debug("metrics written", "file", c.metricsFile)
	return nil
}

// engineOpts are the render flags that override the config file.
type engineOpts struct {
	outputFormat string
	quality      int
	debug        bool
	noCache      bool
	noSmart      bool
}

func (o *engineOpts) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.outputFormat, "output-format", "", "jpg, png or webp (default from config)")
	cmd.Flags().IntVarP(&o.quality, "quality", "q", 0, "starting encoder quality, lowered until the file fits (default from config)")
	cmd.Flags().BoolVar(&o.debug, "debug", false, "also write layout overlays")
	cmd.Flags().BoolVar(&o.noCache, "no-cache", false, "do not read or write the outpaint cache")
	cmd.Flags().BoolVar(&o.noSmart, "center", false, "center the source instead of following the subject")
}

// newEngine builds the render engine from the config and flags. Without an
// OpenAI key every margin is blur-extended.
func (c *CLI) newEngine(o engineOpts) (*adcreative.Engine, error) {
	cfg := c.Config

	ec := adcreative.DefaultConfig()
	ec.Outpaint = outpaintConfig(cfg.Outpaint)
	ec.Quality = cfg.Output.Quality
	if o.quality > 0 {
		ec.Quality = o.quality
	}
	format := cfg.Output.Format
	if o.outputFormat != "" {
		format = o.outputFormat
	}
	f, err := processing.ParseFormat(format)
	if err != nil {
		return nil, err
	}
	ec.Output = f
	ec.Debug = cfg.Output.Debug || o.debug
	ec.SmartOffset = !o.noSmart

	opts := []adcreative.Option{
		adcreative.WithLogger(c.Logger),
		adcreative.WithMetrics(c.Metrics),
		adcreative.WithCache(c.newCache(o.noCache)),
	}
	if inp := c.newInpainter(); inp != nil {
		opts = append(opts, adcreative.WithInpainter(inp))
	}
	return adcreative.NewWithConfig(ec, opts...), nil
}

func outpaintConfig(oc config.OutpaintConfig) outpaint.Config {
	out := outpaint.DefaultConfig()
	out.Attempts = oc.Attempts
	out.InitialDelay = oc.InitialDelay
	out.Timeout = oc.Timeout
	out.CacheTTL = oc.CacheTTL
	out.Policy = geometry.FitPolicy{MinRetained: oc.MinRetained}
	if oc.Prompt != "" {
		out.Prompt = oc.Prompt
	}
	return out
}

func (c *CLI) newCache(noCache bool) cache.Cache {
	if noCache || c.Config.Outpaint.NoCache || c.Config.Outpaint.CacheDir == "" {
		return cache.NewNullCache()
	}
	fc, err := cache.NewFileCache(c.Config.Outpaint.CacheDir)
	if err != nil {
		c.Logger.Warn("outpaint cache disabled", "dir", c.Config.Outpaint.CacheDir, "err", err)
		return cache.NewNullCache()
	}
	return fc
}

func (c *CLI) openAIClient() (*openai.Client, error) {
	oc := c.Config.OpenAI
	return openai.NewClient(openai.Config{
		APIKey:     oc.APIKey,
		BaseURL:    oc.BaseURL,
		ChatModel:  oc.ChatModel,
		ImageModel: oc.ImageModel,
		EditModel:  oc.EditModel,
		Timeout:    oc.Timeout,
	})
}

// newInpainter returns nil when no key is configured.
func (c *CLI) newInpainter() outpaint.Inpainter {
	oc, err := c.openAIClient()
	if err != nil {
		c.Logger.Warn("no OpenAI key, margins will be blur-extended", "env", config.EnvPrefix+"_OPENAI_API_KEY")
		return nil
	}
	return oc
}

// textClient returns the copy backend and its model. A nil client makes
// the copywriter use fallback copy.
func (c *CLI) textClient(backend string) (client.TextClient, string, error) {
	if backend == "" {
		backend = c.Config.Copy.Backend
	}
	switch backend {
	case "openai":
		oc, err := c.openAIClient()
		if err != nil {
			c.Logger.Warn("no OpenAI key, using fallback copy")
			return nil, "", nil
		}
		return oc, c.Config.OpenAI.ChatModel, nil
	case "ollama":
		oc, err := ollama.NewClient(c.Config.Ollama.URL, c.Config.Ollama.Timeout)
		if err != nil {
			return nil, "", err
		}
		return oc, c.Config.Ollama.Model, nil
	case "none":
		return nil, "", nil
	}
	return nil, "", apperr.New(apperr.ErrCodeInvalidConfig, "unknown copy backend %q (openai, ollama, none)", backend)
}

// resolveFormats turns IDs, WxH sizes and a platform name into formats.
// With neither it returns the whole catalog.
func resolveFormats(ids []string, platform string) ([]types.TargetFormat, error) {
	var out []types.TargetFormat
	if platform != "" {
		fs := catalog.ByPlatform(types.Platform(platform))
		if len(fs) == 0 {
			return nil, apperr.New(apperr.ErrCodeInvalidFormat, "unknown platform %q", platform)
		}
		out = append(out, fs...)
	}
	for _, id := range ids {
		for _, part := range strings.Split(id, ",") {
			if part = strings.TrimSpace(part); part == "" {
				continue
			}
			f, err := catalog.Resolve(part)
			if err != nil {
				return nil, err
			}
			out = append(out, f)
		}
	}
	if len(out) == 0 {
		return catalog.All(), nil
	}
	return out, nil
}

// parseOffset parses "x,y" in percent of the canvas.
func parseOffset(s string) (*types.Offset, error) {
	if s == "" {
		return nil, nil
	}
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return nil, apperr.New(apperr.ErrCodeInvalidOffset, "offset must be x,y, got %q", s)
	}
	x, errX := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	y, errY := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if errX != nil || errY != nil {
		return nil, apperr.New(apperr.ErrCodeInvalidOffset, "offset must be numeric, got %q", s)
	}
	o := types.Offset{X: x, Y: y}
	if !o.Valid() {
		return nil, apperr.New(apperr.ErrCodeInvalidOffset, "offset %q is outside [-%g, %g]", s, types.MaxOffset, types.MaxOffset)
	}
	return &o, nil
}
