package cli

import (
	"encoding/json"
	"fmt"
	"image/color"
	"strings"

	"github.com/spf13/cobra"

	"github.com/menta2k/ad-creative/pkg/analyzer"
	"github.com/menta2k/ad-creative/pkg/review"
)

func (c *CLI) planCommand() *cobra.Command {
	var formatIDs []string
	var platform string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "plan [image]",
		Short: "Show how an image fits each format at a centered offset",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			formats, err := resolveFormats(formatIDs, platform)
			if err != nil {
				return err
			}
			engine, err := c.newEngine(engineOpts{noCache: true})
			if err != nil {
				return err
			}
			img, err := engine.LoadImage(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fits, err := engine.Assess(img, formats)
			if err != nil {
				return err
			}

			info := engine.Describe(img)

			w := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(struct {
					Source  analyzer.ImageInfo   `json:"source"`
					Formats []analyzer.FormatFit `json:"formats"`
				}{info, fits})
			}

			printKeyValue(w, "source", fmt.Sprintf("%dx%d (%.2f:1)", info.Width, info.Height, info.AspectRatio))
			printKeyValue(w, "focus", fmt.Sprintf("%.0f%%, %.0f%%", info.FocusX*100, info.FocusY*100))
			printKeyValue(w, "palette", hexColors(info.Palette))
			fmt.Fprintln(w, StyleTitle.Render(fmt.Sprintf("%-18s %10s %-8s %9s %8s  %s", "FORMAT", "SIZE", "FIT", "RETAINED", "UPSCALE", "OUTPAINT")))
			for _, f := range fits {
				m := f.Placement.Margins
				outpaint := "-"
				if f.Placement.NeedsOutpaint {
					outpaint = fmt.Sprintf("t%.0f r%.0f b%.0f l%.0f", m.Top, m.Right, m.Bottom, m.Left)
				}
				line := fmt.Sprintf("%-18s %10s %-8s %8.0f%% %7.2fx  %s",
					f.Format.ID, f.Format.Dims, f.Placement.Fit, f.Retained*100, f.Upscale, outpaint)
				if f.Upscale > review.MaxUpscale {
					line = StyleWarning.Render(line)
				}
				fmt.Fprintln(w, line)
			}
			return nil
		},
	}

	cmd.Flags().StringSliceVarP(&formatIDs, "format", "f", nil, "format IDs or WxH sizes (default all)")
	cmd.Flags().StringVarP(&platform, "platform", "p", "", "all formats of this platform")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}

func hexColors(cs []color.NRGBA) string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = fmt.Sprintf("#%02x%02x%02x", c.R, c.G, c.B)
	}
	return strings.Join(out, " ")
}
