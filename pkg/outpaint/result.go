package outpaint

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/png"

	apperr "github.com/menta2k/ad-creative/pkg/errors"
	"github.com/menta2k/ad-creative/pkg/types"
)

// Fill records how the uncovered part of the canvas was produced. It is
// one of Covered, Generated or Extended.
type Fill interface {
	fill()
	// Path is the metric label of the branch.
	Path() string
}

// Covered means the scaled source already fills the canvas.
type Covered struct{}

// Generated means the margins were painted by the remote inpainter.
type Generated struct {
	Attempts int
	Cached   bool
}

// Extended means the margins were filled locally by stretching and blurring
// the source edges. Reason is the code that caused the fallback.
type Extended struct {
	Reason apperr.Code
	Cause  error
}

func (Covered) fill()   {}
func (Generated) fill() {}
func (Extended) fill()  {}

func (Covered) Path() string   { return "covered" }
func (Generated) Path() string { return "generated" }
func (Extended) Path() string  { return "extended" }

// Result is an opaque canvas of exactly the target dimensions.
type Result struct {
	Image     *image.NRGBA
	Placement types.Placement
	Fill      Fill
	// Success is always true for a returned Result; failures of the remote
	// path surface as an Extended fill instead.
	Success bool
}

// UsedFallback reports whether the local blur-extend path produced the result.
func (r Result) UsedFallback() bool {
	_, ok := r.Fill.(Extended)
	return ok
}

// Err returns the error that forced the fallback, if any.
func (r Result) Err() error {
	if e, ok := r.Fill.(Extended); ok {
		if e.Cause != nil {
			return e.Cause
		}
		return apperr.New(e.Reason, "fallback fill")
	}
	return nil
}

// PNG encodes the result image.
func (r Result) PNG() ([]byte, error) {
	var buf bytes.Buffer
	if err := png.Encode(&buf, r.Image); err != nil {
		return nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return buf.Bytes(), nil
}

// DataURL returns the result as a base64 PNG data URL.
func (r Result) DataURL() (string, error) {
	b, err := r.PNG()
	if err != nil {
		return "", err
	}
	return "data:image/png;base64," + base64.StdEncoding.EncodeToString(b), nil
}
