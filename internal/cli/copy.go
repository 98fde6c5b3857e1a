package cli

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/menta2k/ad-creative/pkg/copywriter"
)

func (c *CLI) copyCommand() *cobra.Command {
	var brief copywriter.Brief
	var backend string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "copy",
		Short: "Write a headline, subheadline and CTA for a product",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ad, err := c.writeCopy(cmd.Context(), backend, brief)
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			if asJSON {
				enc := json.NewEncoder(w)
				enc.SetIndent("", "  ")
				return enc.Encode(struct {
					copywriter.Copy
					Fallback bool `json:"fallback"`
				}{ad, ad.Fallback})
			}
			printKeyValue(w, "headline", ad.Headline)
			printKeyValue(w, "subheadline", ad.Subheadline)
			printKeyValue(w, "cta", ad.CTA)
			if ad.Fallback {
				printWarning(w, "model unavailable, this is fallback copy")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&brief.Product, "product", "", "product or offer to advertise")
	cmd.Flags().StringVar(&brief.Audience, "audience", "", "target audience")
	cmd.Flags().StringVar(&brief.Tone, "tone", "", "tone of voice (default from config)")
	cmd.Flags().StringVar(&brief.Language, "language", "", "copy language (default from config)")
	cmd.Flags().StringSliceVar(&brief.Keywords, "keywords", nil, "keywords to work in")
	cmd.Flags().StringVar(&backend, "backend", "", "openai, ollama or none (default from config)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON")
	_ = cmd.MarkFlagRequired("product")
	return cmd
}
