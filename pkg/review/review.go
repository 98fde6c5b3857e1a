// Package review checks finished creatives before they leave the tool.
//
// Review reports every issue as a finding and never fails. ConfirmExport
// is the hard gate run once at export time: any blocking finding stops
// the export of the whole batch.
package review

import (
	"fmt"
	"image"
	"strings"

	"github.com/menta2k/ad-creative/pkg/compositor"
	apperr "github.com/menta2k/ad-creative/pkg/errors"
	"github.com/menta2k/ad-creative/pkg/outpaint"
	"github.com/menta2k/ad-creative/pkg/types"
)

// Finding codes
const (
	FileTooLarge      = "FILE_TOO_LARGE"
	DimensionMismatch = "DIMENSION_MISMATCH"
	FallbackFill      = "FALLBACK_FILL"
	SourceUpscaled    = "SOURCE_UPSCALED"
)

// MaxUpscale is the largest source magnification that is not reported.
const MaxUpscale = 2.0

// Creative is one rendered asset and what is known about how it was made.
type Creative struct {
	Format types.TargetFormat
	Image  image.Image
	// Encoded is the file that will be exported.
	Encoded []byte
	// Source is the size of the original image, if known.
	Source    types.Dims
	Placement types.Placement
	Fill      outpaint.Fill
	// Warnings are the compositor warnings of this creative.
	Warnings []types.Warning
}

// Finding is a review result. Blocking findings stop ConfirmExport.
type Finding struct {
	types.Warning
	Blocking bool `json:"blocking"`
}

// Review lists the issues of c.
func Review(c Creative) []Finding {
	var out []Finding
	add := func(code string, blocking bool, format string, args ...any) {
		out = append(out, Finding{
			Warning:  types.Warning{Code: code, Message: fmt.Sprintf(format, args...), Format: c.Format.ID},
			Blocking: blocking,
		})
	}

	if c.Image != nil {
		if b := c.Image.Bounds(); b.Dx() != c.Format.Dims.Width || b.Dy() != c.Format.Dims.Height {
			add(DimensionMismatch, true, "image is %dx%d, format needs %s", b.Dx(), b.Dy(), c.Format.Dims)
		}
	}
	if limit := c.Format.MaxFileSize; limit > 0 && int64(len(c.Encoded)) > limit {
		add(FileTooLarge, true, "file is %s, limit is %s", kb(int64(len(c.Encoded))), kb(limit))
	}
	for _, w := range c.Warnings {
		f := Finding{Warning: w, Blocking: w.Code == compositor.WarnDeadZone}
		if f.Format == "" {
			f.Format = c.Format.ID
		}
		out = append(out, f)
	}
	if e, ok := c.Fill.(outpaint.Extended); ok {
		add(FallbackFill, false, "empty margins were blur-extended (%s)", e.Reason)
	}
	if c.Source.Valid() && c.Placement.Scaled.W > 0 {
		if up := c.Placement.Scaled.W / float64(c.Source.Width); up > MaxUpscale {
			add(SourceUpscaled, false, "source is magnified %.1fx and may look soft", up)
		}
	}
	return out
}

// ConfirmExport fails with EXPORT_BLOCKED when any creative has a
// blocking finding.
func ConfirmExport(creatives []Creative) error {
	var blocked []string
	for _, c := range creatives {
		for _, f := range Review(c) {
			if f.Blocking {
				blocked = append(blocked, f.String())
			}
		}
	}
	if len(blocked) > 0 {
		return apperr.New(apperr.ErrCodeExportBlocked, "%d blocking issue(s): %s", len(blocked), strings.Join(blocked, "; "))
	}
	return nil
}

func kb(n int64) string {
	return fmt.Sprintf("%.1f KB", float64(n)/1024)
}
