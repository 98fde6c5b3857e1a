package processing

import (
	"bytes"
	"context"
	"image"
	"image/color"
	"image/png"
	"math/rand"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	apperr "github.com/menta2k/ad-creative/pkg/errors"
	"github.com/menta2k/ad-creative/pkg/types"
)

func createTestImage(w, h int, c color.Color) *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	return img
}

// noisyImage compresses badly, which makes quality steps visible in size.
func noisyImage(w, h int) *image.NRGBA {
	r := rand.New(rand.NewSource(1))
	img := image.NewNRGBA(image.Rect(0, 0, w, h))
	r.Read(img.Pix)
	for i := 3; i < len(img.Pix); i += 4 {
		img.Pix[i] = 255
	}
	return img
}

func TestParseFormat(t *testing.T) {
	tests := map[string]Format{"jpg": JPEG, "JPEG": JPEG, "out.png": PNG, ".webp": WebP, "banner.final.webp": WebP}
	for in, want := range tests {
		got, err := ParseFormat(in)
		if err != nil || got != want {
			t.Errorf("ParseFormat(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := ParseFormat("gif"); !apperr.Is(err, apperr.ErrCodeInvalidConfig) {
		t.Errorf("expected INVALID_CONFIG, got %v", err)
	}
}

func TestEncodeDecode(t *testing.T) {
	img := createTestImage(64, 48, color.NRGBA{200, 100, 50, 255})
	for _, f := range []Format{JPEG, PNG, WebP} {
		data, err := Encode(img, f, 85)
		if err != nil {
			t.Fatalf("Encode %s: %v", f, err)
		}
		out, err := Decode(data)
		if err != nil {
			t.Fatalf("Decode %s: %v", f, err)
		}
		if out.Bounds().Dx() != 64 || out.Bounds().Dy() != 48 {
			t.Errorf("%s: bounds %v", f, out.Bounds())
		}
	}
	if _, err := Decode([]byte("not an image")); err == nil {
		t.Error("expected error for garbage")
	}
}

func TestEncodeWithinBudget(t *testing.T) {
	img := noisyImage(200, 200)
	full, err := Encode(img, JPEG, 90)
	if err != nil {
		t.Fatal(err)
	}

	b, err := EncodeWithinBudget(img, JPEG, 90, int64(len(full))-1)
	if err != nil {
		t.Fatal(err)
	}
	if !b.Fits || b.Quality >= 90 || int64(len(b.Data)) >= int64(len(full)) {
		t.Errorf("expected a lower quality that fits, got quality %d fits %v", b.Quality, b.Fits)
	}

	b, err = EncodeWithinBudget(img, JPEG, 90, 100)
	if err != nil {
		t.Fatal(err)
	}
	if b.Fits || b.Quality != 40 || len(b.Data) == 0 {
		t.Errorf("impossible budget: quality %d fits %v", b.Quality, b.Fits)
	}

	b, err = EncodeWithinBudget(img, PNG, 0, 0)
	if err != nil || !b.Fits {
		t.Errorf("no limit must always fit: %v %v", b.Fits, err)
	}
}

func TestDownload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/img.png":
			w.Header().Set("Content-Type", "image/png")
			_ = png.Encode(w, createTestImage(10, 20, color.White))
		case "/page":
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("<html></html>"))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	p := NewProcessor()
	data, err := p.Download(context.Background(), srv.URL+"/img.png")
	if err != nil {
		t.Fatalf("download: %v", err)
	}
	img, err := Decode(data)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if img.Bounds().Dy() != 20 {
		t.Errorf("bounds %v", img.Bounds())
	}
	for _, path := range []string{"/page", "/missing"} {
		if _, err := p.Download(context.Background(), srv.URL+path); err == nil {
			t.Errorf("%s: expected error", path)
		}
	}
	if _, err := p.Download(context.Background(), "ftp://example.com/a.png"); err == nil {
		t.Error("expected scheme error")
	}
}

func TestSaveImage(t *testing.T) {
	dir := t.TempDir()
	p := NewProcessor()
	img := createTestImage(30, 30, color.NRGBA{0, 0, 255, 255})
	for _, name := range []string{"a.jpg", "a.png", "a.webp"} {
		f, _ := ParseFormat(name)
		path := filepath.Join(dir, name)
		if err := p.SaveImage(img, path, f, 90); err != nil {
			t.Fatalf("save %s: %v", name, err)
		}
		data, err := os.ReadFile(path)
		if err != nil {
			t.Fatal(err)
		}
		got, err := Decode(data)
		if err != nil {
			t.Fatalf("load %s: %v", name, err)
		}
		if got.Bounds().Dx() != 30 {
			t.Errorf("%s: bounds %v", name, got.Bounds())
		}
	}
	if _, err := Decode([]byte("nope")); err == nil {
		t.Error("expected decode error")
	}
}

func TestCreateDebugOverlay(t *testing.T) {
	img := createTestImage(200, 100, color.Black)
	format := types.TargetFormat{
		Dims:       types.Dims{Width: 200, Height: 100},
		SafeInsets: types.Insets{Top: 10, Bottom: 10, Left: 10, Right: 10},
		DeadZones:  []types.Rect{{X: 80, Y: 30, W: 40, H: 40}},
	}
	pl := types.Placement{Target: format.Dims, Draw: types.RectF{X: 50, Y: 0, W: 100, H: 100}}

	out := CreateDebugOverlay(img, pl, format)
	if c := out.NRGBAAt(50, 50); c.R != 255 || c.G != 204 {
		t.Errorf("placement edge = %v", c)
	}
	if c := out.NRGBAAt(10, 50); c.B != 255 {
		t.Errorf("safe area edge = %v", c)
	}
	if c := out.NRGBAAt(80, 40); c.R != 255 || c.G != 0 {
		t.Errorf("dead zone edge = %v", c)
	}
	if c := out.NRGBAAt(100, 50); c.R != 255 {
		t.Errorf("dead zone cross = %v", c)
	}
	if c := img.NRGBAAt(50, 50); c.R != 0 {
		t.Error("source image was modified")
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, out); err != nil {
		t.Fatal(err)
	}
}
