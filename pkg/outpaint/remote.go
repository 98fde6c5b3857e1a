package outpaint

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/draw"
	"image/png"
	"net"

	"github.com/disintegration/imaging"

	apperr "github.com/menta2k/ad-creative/pkg/errors"
	"github.com/menta2k/ad-creative/pkg/types"
)

// InpaintRequest is one call to a remote inpainting model. Image and Mask
// carry the same PNG: transparent pixels mark the region to regenerate.
type InpaintRequest struct {
	Image  []byte
	Mask   []byte
	Size   int
	Prompt string
}

// Inpainter regenerates the transparent region of a square canvas.
// Implementations should return REMOTE_TRANSIENT or REMOTE_FATAL coded
// errors; anything else is classified by the provider.
type Inpainter interface {
	Inpaint(ctx context.Context, req InpaintRequest) (image.Image, error)
}

// maskCanvas draws the scaled source at its placement on a transparent
// canvas of the target size.
func maskCanvas(src image.Image, p types.Placement) *image.NRGBA {
	r := p.DrawRect()
	scaled := imaging.Resize(src, max(1, r.Dx()), max(1, r.Dy()), imaging.Lanczos)
	canvas := image.NewNRGBA(image.Rect(0, 0, p.Target.Width, p.Target.Height))
	draw.Draw(canvas, r, scaled, image.Point{}, draw.Src)
	return canvas
}

// squareSize picks the smallest accepted side that holds w x h without
// scaling. sizes must be ascending.
func squareSize(w, h int, sizes []int) (int, error) {
	need := max(w, h)
	for _, s := range sizes {
		if s >= need {
			return s, nil
		}
	}
	largest := 0
	if len(sizes) > 0 {
		largest = sizes[len(sizes)-1]
	}
	return 0, apperr.New(apperr.ErrCodeUnsupportedDimensions, "%dx%d does not fit the largest accepted square %d", w, h, largest)
}

// letterbox centers img on a transparent side x side square and returns the
// square and the rectangle img occupies in it.
func letterbox(img *image.NRGBA, side int) (*image.NRGBA, image.Rectangle) {
	b := img.Bounds()
	off := image.Pt((side-b.Dx())/2, (side-b.Dy())/2)
	sq := image.NewNRGBA(image.Rect(0, 0, side, side))
	at := b.Sub(b.Min).Add(off)
	draw.Draw(sq, at, img, b.Min, draw.Src)
	return sq, at
}

// encodePayload PNG-encodes the letterboxed canvas and enforces the upload
// limit.
func encodePayload(sq *image.NRGBA, maxBytes int64) ([]byte, error) {
	var buf bytes.Buffer
	enc := png.Encoder{CompressionLevel: png.BestCompression}
	if err := enc.Encode(&buf, sq); err != nil {
		return nil, apperr.Wrap(apperr.ErrCodeUnsupportedDimensions, err, "encode inpaint payload")
	}
	if maxBytes > 0 && int64(buf.Len()) > maxBytes {
		return nil, apperr.New(apperr.ErrCodeUnsupportedDimensions, "payload %d bytes exceeds limit %d", buf.Len(), maxBytes)
	}
	return buf.Bytes(), nil
}

// cropBack maps the model output back to the target canvas. Outputs of a
// different size than requested are rescaled first.
func cropBack(out image.Image, side int, at image.Rectangle) *image.NRGBA {
	if b := out.Bounds(); b.Dx() != side || b.Dy() != side {
		out = imaging.Resize(out, side, side, imaging.Lanczos)
	}
	return imaging.Crop(out, at)
}

// classify maps an unclassified remote error onto the transient/fatal codes.
func classify(err error) error {
	if err == nil || apperr.GetCode(err) != "" {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return apperr.Wrap(apperr.ErrCodeRemoteTransient, err, "inpaint timed out")
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return apperr.Wrap(apperr.ErrCodeRemoteTransient, err, "inpaint network error")
	}
	return apperr.Wrap(apperr.ErrCodeRemoteFatal, err, "inpaint failed")
}
