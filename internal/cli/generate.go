package cli

import (
	"fmt"
	"path/filepath"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	adcreative "github.com/menta2k/ad-creative"
	"github.com/menta2k/ad-creative/pkg/openai"
	"github.com/menta2k/ad-creative/pkg/processing"
)

type generateOpts struct {
	prompt string
	hd     bool
	render renderOpts
}

func (c *CLI) generateCommand() *cobra.Command {
	var opts generateOpts

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a source image from a prompt and render it",
		Long: `Generate asks the image model for a source picture in the aspect ratio
closest to the first format, saves it next to the creatives and renders
every selected format from it.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			formats, err := resolveFormats(opts.render.formats, opts.render.platform)
			if err != nil {
				return err
			}
			offset, err := parseOffset(opts.render.offset)
			if err != nil {
				return err
			}
			oc, err := c.openAIClient()
			if err != nil {
				return err
			}
			engine, err := c.newEngine(opts.render.engine)
			if err != nil {
				return err
			}
			layers, err := c.layers(ctx, opts.render.overlay, engine.LoadImage)
			if err != nil {
				return err
			}

			quality := openai.Standard
			if opts.hd {
				quality = openai.HD
			}
			prog := newProgress(loggerFromContext(ctx))
			img, err := oc.GenerateImage(ctx, opts.prompt, formats[0].Dims, quality)
			if err != nil {
				return err
			}
			prog.done("source generated", "size", fmt.Sprintf("%dx%d", img.Bounds().Dx(), img.Bounds().Dy()))

			outDir := opts.render.out
			if outDir == "" {
				outDir = c.Config.Output.Dir
			}
			name := "generated-" + uuid.NewString()[:8]
			dir := filepath.Join(outDir, name)
			if err := c.renderOne(cmd, engine, name, img, adcreative.Request{
				Source:   img,
				Formats:  formats,
				Offset:   offset,
				Overlays: layers,
			}, dir); err != nil {
				return err
			}

			path := filepath.Join(dir, "source.png")
			if err := processing.NewProcessor().SaveImage(img, path, processing.PNG, 0); err != nil {
				return fmt.Errorf("save source: %w", err)
			}
			printFile(cmd.OutOrStdout(), path)
			return nil
		},
	}

	cmd.Flags().StringVar(&opts.prompt, "prompt", "", "what the picture should show")
	cmd.Flags().BoolVar(&opts.hd, "hd", false, "request the HD quality tier")
	cmd.Flags().StringSliceVarP(&opts.render.formats, "format", "f", nil, "format IDs or WxH sizes (default all)")
	cmd.Flags().StringVarP(&opts.render.platform, "platform", "p", "", "all formats of this platform")
	cmd.Flags().StringVar(&opts.render.offset, "offset", "", "pan as x,y percent of the canvas, -50..50")
	cmd.Flags().StringVarP(&opts.render.out, "out", "o", "", "output directory (default from config)")
	opts.render.engine.register(cmd)
	opts.render.overlay.register(cmd)
	_ = cmd.MarkFlagRequired("prompt")
	return cmd
}
