package cli

import (
	"context"
	"fmt"
	"image"
	"image/color"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	adcreative "github.com/menta2k/ad-creative"
	"github.com/menta2k/ad-creative/internal/utils"
	"github.com/menta2k/ad-creative/pkg/compositor"
	"github.com/menta2k/ad-creative/pkg/copywriter"
	apperr "github.com/menta2k/ad-creative/pkg/errors"
	"github.com/menta2k/ad-creative/pkg/processing"
	"github.com/menta2k/ad-creative/pkg/types"
)

// overlayOpts are the flags that build the overlay layers.
type overlayOpts struct {
	headline    string
	subheadline string
	cta         string
	position    string

	scrim        string
	scrimOpacity float64

	logo         string
	logoPosition string
	logoScale    float64

	qr         string
	qrPosition string

	// product asks the copy backend for copy when no headline is given.
	product  string
	audience string
	keywords []string
	backend  string
}

func (o *overlayOpts) register(cmd *cobra.Command) {
	f := cmd.Flags()
	f.StringVar(&o.headline, "headline", "", "headline text")
	f.StringVar(&o.subheadline, "subheadline", "", "subheadline text")
	f.StringVar(&o.cta, "cta", "", "call-to-action button text")
	f.StringVar(&o.position, "position", string(types.BottomLeft), "text position")
	f.StringVar(&o.scrim, "scrim", "", "darken toward an edge: top, bottom, left, right or full")
	f.Float64Var(&o.scrimOpacity, "scrim-opacity", 0.6, "scrim opacity at its darkest")
	f.StringVar(&o.logo, "logo", "", "logo image file or URL")
	f.StringVar(&o.logoPosition, "logo-position", string(types.TopRight), "logo position")
	f.Float64Var(&o.logoScale, "logo-scale", 0.2, "logo width as a fraction of the canvas")
	f.StringVar(&o.qr, "qr", "", "encode this URL as a QR code")
	f.StringVar(&o.qrPosition, "qr-position", string(types.BottomRight), "QR code position")
	f.StringVar(&o.product, "product", "", "generate copy for this product when --headline is empty")
	f.StringVar(&o.audience, "audience", "", "audience for generated copy")
	f.StringSliceVar(&o.keywords, "keywords", nil, "keywords for generated copy")
	f.StringVar(&o.backend, "copy-backend", "", "openai, ollama or none (default from config)")
}

// layers builds the overlay stack in draw order.
func (c *CLI) layers(ctx context.Context, o overlayOpts, load func(context.Context, string) (image.Image, error)) ([]compositor.Layer, error) {
	var out []compositor.Layer

	if o.scrim != "" {
		out = append(out, compositor.Scrim{
			Edge:     compositor.Edge(o.scrim),
			Color:    color.Black,
			Opacity:  o.scrimOpacity,
			Coverage: 0.5,
		})
	}

	pos, err := types.ParsePosition(o.position)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrCodeInvalidConfig, err, "--position")
	}
	ad := copywriter.Copy{Headline: o.headline, Subheadline: o.subheadline, CTA: o.cta}
	if ad.Headline == "" && o.product != "" {
		if ad, err = c.writeCopy(ctx, o.backend, copywriter.Brief{
			Product:  o.product,
			Audience: o.audience,
			Keywords: o.keywords,
		}); err != nil {
			return nil, err
		}
	}
	out = append(out, ad.Layers(pos)...)

	if o.logo != "" {
		logo, err := load(ctx, o.logo)
		if err != nil {
			return nil, fmt.Errorf("logo: %w", err)
		}
		lp, err := types.ParsePosition(o.logoPosition)
		if err != nil {
			return nil, apperr.Wrap(apperr.ErrCodeInvalidConfig, err, "--logo-position")
		}
		out = append(out, compositor.Watermark{Image: logo, Position: lp, Scale: o.logoScale, Opacity: 1})
	}
	if o.qr != "" {
		qp, err := types.ParsePosition(o.qrPosition)
		if err != nil {
			return nil, apperr.Wrap(apperr.ErrCodeInvalidConfig, err, "--qr-position")
		}
		out = append(out, compositor.QRCode{Content: o.qr, Position: qp, Size: 0.25})
	}
	return out, nil
}

func (c *CLI) writeCopy(ctx context.Context, backend string, brief copywriter.Brief) (copywriter.Copy, error) {
	tc, model, err := c.textClient(backend)
	if err != nil {
		return copywriter.Copy{}, err
	}
	if brief.Tone == "" {
		brief.Tone = c.Config.Copy.Tone
	}
	if brief.Language == "" {
		brief.Language = c.Config.Copy.Language
	}
	w := copywriter.New(tc, model,
		copywriter.WithLogger(c.Logger),
		copywriter.WithLimits(copywriter.Limits{
			Headline:    c.Config.Copy.HeadlineMax,
			Subheadline: c.Config.Copy.SubheadlineMax,
			CTA:         c.Config.Copy.CTAMax,
		}))
	return w.Write(ctx, brief)
}

// renderOpts holds the flags of the render command.
type renderOpts struct {
	formats  []string
	platform string
	offset   string
	out      string
	engine   engineOpts
	overlay  overlayOpts
}

func (c *CLI) renderCommand() *cobra.Command {
	var opts renderOpts

	cmd := &cobra.Command{
		Use:   "render [image|dir|url]...",
		Short: "Render creatives for every format and export them",
		Long: `Render fits each source image to the selected formats, fills empty margins,
draws the overlays and exports one file per format with a manifest.json.

Exports are refused when any creative is over its file-size limit, has the
wrong dimensions or has text inside a dead zone.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return c.runRender(cmd, args, opts)
		},
	}

	cmd.Flags().StringSliceVarP(&opts.formats, "format", "f", nil, "format IDs or WxH sizes (default all)")
	cmd.Flags().StringVarP(&opts.platform, "platform", "p", "", "all formats of this platform")
	cmd.Flags().StringVar(&opts.offset, "offset", "", "pan as x,y percent of the canvas, -50..50")
	cmd.Flags().StringVarP(&opts.out, "out", "o", "", "output directory (default from config)")
	opts.engine.register(cmd)
	opts.overlay.register(cmd)
	return cmd
}

func (c *CLI) runRender(cmd *cobra.Command, args []string, opts renderOpts) error {
	ctx := cmd.Context()
	logger := loggerFromContext(ctx)

	sources, err := utils.ExpandImageArgs(args)
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		return apperr.New(apperr.ErrCodeInvalidConfig, "no images found in %s", strings.Join(args, ", "))
	}
	formats, err := resolveFormats(opts.formats, opts.platform)
	if err != nil {
		return err
	}
	offset, err := parseOffset(opts.offset)
	if err != nil {
		return err
	}
	engine, err := c.newEngine(opts.engine)
	if err != nil {
		return err
	}
	layers, err := c.layers(ctx, opts.overlay, engine.LoadImage)
	if err != nil {
		return err
	}
	outDir := opts.out
	if outDir == "" {
		outDir = c.Config.Output.Dir
	}

	var failed int
	for _, src := range sources {
		if err := ctx.Err(); err != nil {
			return err
		}
		img, err := engine.LoadImage(ctx, src)
		if err != nil {
			printError(cmd.ErrOrStderr(), "%s: %v", src, err)
			failed++
			continue
		}
		dir := filepath.Join(outDir, sourceName(src))
		if err := c.renderOne(cmd, engine, src, img, adcreative.Request{
			Source:   img,
			Formats:  formats,
			Offset:   offset,
			Overlays: layers,
		}, dir); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			printError(cmd.ErrOrStderr(), "%s: %v", src, err)
			failed++
		}
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d sources failed", failed, len(sources))
	}
	logger.Debug("render finished", "sources", len(sources), "formats", len(formats))
	return nil
}

// renderOne renders and exports one source into dir.
func (c *CLI) renderOne(cmd *cobra.Command, engine *adcreative.Engine, name string, img image.Image, req adcreative.Request, dir string) error {
	w := cmd.OutOrStdout()
	prog := newProgress(loggerFromContext(cmd.Context()))

	creatives, err := engine.Render(cmd.Context(), req)
	if err != nil {
		return err
	}

	b := img.Bounds()
	printInfo(w, "%s %s", StyleTitle.Render(name), StyleDim.Render(fmt.Sprintf("%dx%d", b.Dx(), b.Dy())))
	for _, cr := range creatives {
		line := fmt.Sprintf("%-18s %-9s q%-3d %s", cr.Format.ID, cr.Fill.Path(), cr.Quality, utils.FormatFileSize(int64(len(cr.Encoded))))
		if cr.Blocked() {
			printError(w, "%s", line)
		} else {
			printSuccess(w, "%s", line)
		}
		printFindings(w, cr.Findings)
	}

	jobID := uuid.NewString()
	m, err := engine.Export(dir, jobID, name, creatives)
	if err != nil {
		return err
	}
	for _, e := range m.Entries {
		printFile(w, filepath.Join(dir, e.File))
	}

	proc := processing.NewProcessor()
	for _, cr := range creatives {
		if cr.Debug == nil {
			continue
		}
		path := filepath.Join(dir, utils.SanitizeFilename(cr.Format.ID)+"-debug.png")
		if err := proc.SaveImage(cr.Debug, path, processing.PNG, 0); err != nil {
			return fmt.Errorf("save debug overlay: %w", err)
		}
		printFile(w, path)
	}
	prog.done("source rendered", "source", name, "job", jobID, "files", len(m.Entries))
	return nil
}

// sourceName is the output directory name of a file path or URL.
func sourceName(src string) string {
	base := filepath.Base(strings.TrimRight(src, "/"))
	base = strings.TrimSuffix(base, filepath.Ext(base))
	if i := strings.IndexAny(base, "?#"); i >= 0 {
		base = base[:i]
	}
	if base == "" || base == "." {
		return "source"
	}
	return utils.SanitizeFilename(base)
}
