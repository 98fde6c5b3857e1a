package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	apperr "github.com/menta2k/ad-creative/pkg/errors"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"backend", func(c *Config) { c.Copy.Backend = "gpt" }},
		{"attempts", func(c *Config) { c.Outpaint.Attempts = 0 }},
		{"min retained", func(c *Config) { c.Outpaint.MinRetained = 1.5 }},
		{"fps", func(c *Config) { c.Slideshow.FPS = 0 }},
		{"zoom", func(c *Config) { c.Slideshow.MaxZoom = 0.9 }},
		{"output format", func(c *Config) { c.Output.Format = "gif" }},
		{"quality", func(c *Config) { c.Output.Quality = 101 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Default()
			tt.modify(c)
			if err := c.Validate(); !apperr.Is(err, apperr.ErrCodeInvalidConfig) {
				t.Errorf("expected INVALID_CONFIG, got %v", err)
			}
		})
	}
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	yaml := `
copy:
  backend: ollama
slideshow:
  fps: 24
  duration: 6s
output:
  format: webp
`
	if err := os.WriteFile(path, []byte(yaml), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load failed: %v", err)
	}
	if cfg.Copy.Backend != "ollama" || cfg.Slideshow.FPS != 24 || cfg.Slideshow.Duration != 6*time.Second {
		t.Errorf("file values not applied: %+v", cfg)
	}
	if cfg.Output.Format != "webp" || cfg.Output.Quality != 90 {
		t.Errorf("output = %+v", cfg.Output)
	}
	if cfg.Outpaint.Attempts != 3 {
		t.Errorf("defaults lost: attempts = %d", cfg.Outpaint.Attempts)
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	t.Setenv("ADCREATIVE_OUTPUT_QUALITY", "70")
	t.Setenv("ADCREATIVE_SLIDESHOW_FADE", "250ms")
	t.Setenv("OPENAI_API_KEY", "sk-test")

	path := filepath.Join(t.TempDir(), "config.json")
	if err := os.WriteFile(path, []byte(`{"output":{"quality":50}}`), 0o644); err != nil {
		t.Fatal(err)
	}
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Output.Quality != 70 {
		t.Errorf("env should win over file, quality = %d", cfg.Output.Quality)
	}
	if cfg.Slideshow.Fade != 250*time.Millisecond {
		t.Errorf("fade = %s", cfg.Slideshow.Fade)
	}
	if cfg.OpenAI.APIKey != "sk-test" {
		t.Errorf("api key = %q", cfg.OpenAI.APIKey)
	}
}

func TestLoadInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte("output:\n  quality: 0\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := Load(path); !apperr.Is(err, apperr.ErrCodeInvalidConfig) {
		t.Errorf("expected INVALID_CONFIG, got %v", err)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing explicit file")
	}
}

func TestSaveToFileOmitsKey(t *testing.T) {
	c := Default()
	c.OpenAI.APIKey = "sk-secret"
	c.Slideshow.FPS = 12
	path := filepath.Join(t.TempDir(), "nested", "config.json")
	if err := c.SaveToFile(path); err != nil {
		t.Fatal(err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(raw), "sk-secret") {
		t.Error("api key written to disk")
	}

	back, err := LoadFromFile(path)
	if err != nil {
		t.Fatalf("reload: %v", err)
	}
	if back.Slideshow.FPS != 12 || back.Slideshow.Duration != 9*time.Second {
		t.Errorf("roundtrip lost values: %+v", back.Slideshow)
	}
}
