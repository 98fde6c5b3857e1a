package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/menta2k/ad-creative/internal/utils"
)

func (c *CLI) formatsCommand() *cobra.Command {
	var platform string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "formats",
		Short: "List the ad formats of the catalog",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			formats, err := resolveFormats(nil, platform)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(formats)
			}

			fmt.Fprintln(w, StyleTitle.Render(fmt.Sprintf("%-18s %-22s %-11s %10s %s", "ID", "NAME", "PLATFORM", "SIZE", "MAX FILE")))
			for _, f := range formats {
				limit := "unlimited"
				if f.MaxFileSize > 0 {
					limit = utils.FormatFileSize(f.MaxFileSize)
				}
				line := fmt.Sprintf("%-18s %-22s %-11s %10s %s", f.ID, f.Name, f.Platform, f.Dims, limit)
				if len(f.DeadZones) > 0 {
					line += StyleDim.Render(fmt.Sprintf("  (%d dead zone)", len(f.DeadZones)))
				}
				fmt.Fprintln(w, line)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&platform, "platform", "p", "", "only formats of this platform (google-ads, sklik)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	return cmd
}
