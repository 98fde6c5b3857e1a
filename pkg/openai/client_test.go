package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/charmbracelet/log"

	apperr "github.com/menta2k/ad-creative/pkg/errors"
	"github.com/menta2k/ad-creative/pkg/outpaint"
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

func pngB64(t *testing.T, img image.Image) string {
	t.Helper()
	var buf bytes.Buffer
	if err := png.Encode(&buf, img); err != nil {
		t.Fatal(err)
	}
	return base64.StdEncoding.EncodeToString(buf.Bytes())
}

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c, err := NewClient(Config{APIKey: "test-key", BaseURL: srv.URL + "/v1", Timeout: 5 * time.Second})
	if err != nil {
		t.Fatal(err)
	}
	return c
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func TestNewClientRequiresKey(t *testing.T) {
	if _, err := NewClient(Config{}); !apperr.Is(err, apperr.ErrCodeMissingCredentials) {
		t.Errorf("expected MISSING_CREDENTIALS, got %v", err)
	}
}

func TestComplete(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/chat/completions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-key" {
			t.Errorf("authorization = %q", got)
		}
		var body struct {
			Model    string `json:"model"`
			Messages []struct {
				Content string `json:"content"`
			} `json:"messages"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Model != "gpt-4o-mini" || len(body.Messages) != 1 || body.Messages[0].Content != "write a headline" {
			t.Errorf("unexpected request %+v", body)
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"id":     "cmpl-1",
			"object": "chat.completion",
			"choices": []map[string]any{{
				"index":         0,
				"message":       map[string]string{"role": "assistant", "content": "Summer sale"},
				"finish_reason": "stop",
			}},
		})
	}))

	got, err := c.Complete(context.Background(), "", "write a headline")
	if err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	if got != "Summer sale" {
		t.Errorf("got %q", got)
	}
}

func TestInpaint(t *testing.T) {
	fill := createTestImage(256, 256, color.NRGBA{0, 200, 0, 255})
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/images/edits" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(10 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		if r.FormValue("size") != "256x256" || r.FormValue("prompt") != "extend" {
			t.Errorf("size=%q prompt=%q", r.FormValue("size"), r.FormValue("prompt"))
		}
		for _, field := range []string{"image", "mask"} {
			f, hdr, err := r.FormFile(field)
			if err != nil {
				t.Errorf("missing %s: %v", field, err)
				continue
			}
			f.Close()
			if len(hdr.Filename) < 4 || hdr.Filename[len(hdr.Filename)-4:] != ".png" {
				t.Errorf("%s file name %q lacks .png", field, hdr.Filename)
			}
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"created": 1,
			"data":    []map[string]string{{"b64_json": pngB64(t, fill)}},
		})
	}))

	var payload bytes.Buffer
	_ = png.Encode(&payload, createTestImage(256, 256, color.Transparent))
	img, err := c.Inpaint(context.Background(), outpaint.InpaintRequest{
		Image: payload.Bytes(), Mask: payload.Bytes(), Size: 256, Prompt: "extend",
	})
	if err != nil {
		t.Fatalf("Inpaint failed: %v", err)
	}
	if img.Bounds().Dx() != 256 {
		t.Errorf("result is %v", img.Bounds())
	}
}

func TestInpaintURLResponse(t *testing.T) {
	fill := createTestImage(64, 64, color.NRGBA{0, 0, 200, 255})
	var srvURL string
	mux := http.NewServeMux()
	mux.HandleFunc("/v1/images/edits", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"data": []map[string]string{{"url": srvURL + "/files/out.png"}}})
	})
	mux.HandleFunc("/files/out.png", func(w http.ResponseWriter, r *http.Request) {
		_ = png.Encode(w, fill)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	srvURL = srv.URL

	c, err := NewClient(Config{APIKey: "k", BaseURL: srv.URL + "/v1"})
	if err != nil {
		t.Fatal(err)
	}
	img, err := c.Inpaint(context.Background(), outpaint.InpaintRequest{Image: []byte("x"), Mask: []byte("x"), Size: 256})
	if err != nil {
		t.Fatalf("Inpaint failed: %v", err)
	}
	if img.Bounds().Dx() != 64 {
		t.Errorf("result is %v", img.Bounds())
	}
}

func TestErrorClassification(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   apperr.Code
	}{
		{"rate limit", http.StatusTooManyRequests, `{"error":{"message":"slow down","type":"requests"}}`, apperr.ErrCodeRemoteTransient},
		{"server error", http.StatusBadGateway, `upstream down`, apperr.ErrCodeRemoteTransient},
		{"unauthorized", http.StatusUnauthorized, `{"error":{"message":"bad key","type":"invalid_request_error"}}`, apperr.ErrCodeRemoteFatal},
		{"bad request", http.StatusBadRequest, `{"error":{"message":"mask size","type":"invalid_request_error"}}`, apperr.ErrCodeRemoteFatal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			_, err := c.Inpaint(context.Background(), outpaint.InpaintRequest{Image: []byte("x"), Mask: []byte("x"), Size: 512})
			if got := apperr.GetCode(err); got != tt.want {
				t.Errorf("code = %s, want %s (%v)", got, tt.want, err)
			}
		})
	}
}

func TestUnreachableIsTransient(t *testing.T) {
	c, err := NewClient(Config{APIKey: "k", BaseURL: "http://127.0.0.1:1/v1", Timeout: time.Second})
	if err != nil {
		t.Fatal(err)
	}
	_, err = c.Complete(context.Background(), "", "hi")
	if !apperr.Is(err, apperr.ErrCodeRemoteTransient) {
		t.Errorf("expected REMOTE_TRANSIENT, got %v", err)
	}
}

func TestGenerateImage(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var body struct {
			Size    string `json:"size"`
			Quality string `json:"quality"`
			Model   string `json:"model"`
		}
		_ = json.NewDecoder(r.Body).Decode(&body)
		if body.Size != "1792x1024" || body.Quality != "hd" || body.Model != "dall-e-3" {
			t.Errorf("unexpected request %+v", body)
		}
		writeJSON(w, http.StatusOK, map[string]any{
			"data": []map[string]string{{"b64_json": pngB64(t, createTestImage(32, 18, color.White))}},
		})
	}))
	img, err := c.GenerateImage(context.Background(), "a beach", types.Dims{Width: 1920, Height: 1080}, HD)
	if err != nil {
		t.Fatalf("GenerateImage failed: %v", err)
	}
	if img.Bounds().Dx() != 32 {
		t.Errorf("bounds %v", img.Bounds())
	}

	if _, err := c.GenerateImage(context.Background(), "  ", types.Dims{}, ""); !apperr.Is(err, apperr.ErrCodeInvalidConfig) {
		t.Errorf("expected INVALID_CONFIG for empty prompt, got %v", err)
	}
}

func TestGenerationSize(t *testing.T) {
	tests := []struct {
		dims types.Dims
		want string
	}{
		{types.Dims{Width: 728, Height: 90}, "1792x1024"},
		{types.Dims{Width: 300, Height: 600}, "1024x1792"},
		{types.Dims{Width: 300, Height: 250}, "1024x1024"},
		{types.Dims{}, "1024x1024"},
	}
	for _, tt := range tests {
		if got := generationSize(tt.dims); got != tt.want {
			t.Errorf("generationSize(%s) = %s, want %s", tt.dims, got, tt.want)
		}
	}
}

// The provider should use the remote fill end to end and fall back when the
// endpoint keeps failing.
func TestOutpaintThroughClient(t *testing.T) {
	var calls atomic.Int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		_ = r.ParseMultipartForm(10 << 20)
		writeJSON(w, http.StatusOK, map[string]any{
			"data": []map[string]string{{"b64_json": pngB64(t, createTestImage(1024, 1024, color.NRGBA{0, 200, 0, 255}))}},
		})
	}))
	logger := log.New(&bytes.Buffer{})

	p := outpaint.New(c, outpaint.DefaultConfig(), outpaint.WithLogger(logger))
	res, err := p.Outpaint(context.Background(), createTestImage(500, 500, color.NRGBA{200, 0, 0, 255}), types.Dims{Width: 728, Height: 90}, types.Offset{})
	if err != nil {
		t.Fatal(err)
	}
	if res.UsedFallback() {
		t.Fatalf("expected generated fill, got %+v", res.Fill)
	}
	if g, ok := res.Fill.(outpaint.Generated); !ok || g.Attempts != 1 {
		t.Errorf("fill = %+v", res.Fill)
	}
	if calls.Load() != 1 {
		t.Errorf("calls = %d", calls.Load())
	}
	if got := res.Image.NRGBAAt(2, 45); got.G < 150 {
		t.Errorf("left margin should hold the generated fill, got %v", got)
	}
}
