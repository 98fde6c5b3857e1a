package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"

	apperr "github.com/menta2k/ad-creative/pkg/errors"
)

// EnvPrefix prefixes every environment override, e.g. ADCREATIVE_OUTPUT_DIR.
const EnvPrefix = "ADCREATIVE"

// Config holds the application configuration
type Config struct {
	OpenAI    OpenAIConfig    `mapstructure:"openai" json:"openai"`
	Ollama    OllamaConfig    `mapstructure:"ollama" json:"ollama"`
	Copy      CopyConfig      `mapstructure:"copy" json:"copy"`
	Outpaint  OutpaintConfig  `mapstructure:"outpaint" json:"outpaint"`
	Slideshow SlideshowConfig `mapstructure:"slideshow" json:"slideshow"`
	Output    OutputConfig    `mapstructure:"output" json:"output"`
}

// OpenAIConfig holds credentials and models for the OpenAI API.
// The key is never written back to disk.
type OpenAIConfig struct {
	APIKey     string        `mapstructure:"api_key" json:"-"`
	BaseURL    string        `mapstructure:"base_url" json:"base_url"`
	ChatModel  string        `mapstructure:"chat_model" json:"chat_model"`
	ImageModel string        `mapstructure:"image_model" json:"image_model"`
	EditModel  string        `mapstructure:"edit_model" json:"edit_model"`
	Timeout    time.Duration `mapstructure:"timeout" json:"timeout"`
}

// OllamaConfig points at a local ollama server
type OllamaConfig struct {
	URL     string        `mapstructure:"url" json:"url"`
	Model   string        `mapstructure:"model" json:"model"`
	Timeout time.Duration `mapstructure:"timeout" json:"timeout"`
}

// CopyConfig selects the copy backend and its limits
type CopyConfig struct {
	// Backend is openai, ollama or none
	Backend        string `mapstructure:"backend" json:"backend"`
	Language       string `mapstructure:"language" json:"language"`
	Tone           string `mapstructure:"tone" json:"tone"`
	HeadlineMax    int    `mapstructure:"headline_max" json:"headline_max"`
	SubheadlineMax int    `mapstructure:"subheadline_max" json:"subheadline_max"`
	CTAMax         int    `mapstructure:"cta_max" json:"cta_max"`
}

// OutpaintConfig tunes the remote fill and its cache
type OutpaintConfig struct {
	Attempts     int           `mapstructure:"attempts" json:"attempts"`
	InitialDelay time.Duration `mapstructure:"initial_delay" json:"initial_delay"`
	Timeout      time.Duration `mapstructure:"timeout" json:"timeout"`
	Prompt       string        `mapstructure:"prompt" json:"prompt"`
	// MinRetained switches to contain-fit below this cover-fit area share
	MinRetained float64       `mapstructure:"min_retained" json:"min_retained"`
	CacheDir    string        `mapstructure:"cache_dir" json:"cache_dir"`
	CacheTTL    time.Duration `mapstructure:"cache_ttl" json:"cache_ttl"`
	NoCache     bool          `mapstructure:"no_cache" json:"no_cache"`
}

// SlideshowConfig holds video defaults
type SlideshowConfig struct {
	FPS       int           `mapstructure:"fps" json:"fps"`
	Duration  time.Duration `mapstructure:"duration" json:"duration"`
	Fade      time.Duration `mapstructure:"fade" json:"fade"`
	MaxZoom   float64       `mapstructure:"max_zoom" json:"max_zoom"`
	Seed      int64         `mapstructure:"seed" json:"seed"`
	FFmpeg    string        `mapstructure:"ffmpeg" json:"ffmpeg"`
	GIFMaxFPS int           `mapstructure:"gif_max_fps" json:"gif_max_fps"`
}

// OutputConfig holds configuration for output generation
type OutputConfig struct {
	Dir     string `mapstructure:"dir" json:"dir"`
	Format  string `mapstructure:"format" json:"format"`
	Quality int    `mapstructure:"quality" json:"quality"`
	Debug   bool   `mapstructure:"debug" json:"debug"`
}

// Default returns a configuration with default values
func Default() *Config {
	return &Config{
		OpenAI: OpenAIConfig{
			ChatModel:  "gpt-4o-mini",
			ImageModel: "dall-e-3",
			EditModel:  "dall-e-2",
			Timeout:    2 * time.Minute,
		},
		Ollama: OllamaConfig{
			URL:     "http://localhost:11434",
			Model:   "llama3.2",
			Timeout: 2 * time.Minute,
		},
		Copy: CopyConfig{
			Backend:        "openai",
			Language:       "English",
			Tone:           "friendly",
			HeadlineMax:    30,
			SubheadlineMax: 90,
			CTAMax:         15,
		},
		Outpaint: OutpaintConfig{
			Attempts:     3,
			InitialDelay: 500 * time.Millisecond,
			Timeout:      60 * time.Second,
			MinRetained:  0.5,
			CacheDir:     defaultCacheDir(),
			CacheTTL:     7 * 24 * time.Hour,
		},
		Slideshow: SlideshowConfig{
			FPS:       30,
			Duration:  9 * time.Second,
			Fade:      500 * time.Millisecond,
			MaxZoom:   1.15,
			Seed:      1,
			FFmpeg:    "ffmpeg",
			GIFMaxFPS: 15,
		},
		Output: OutputConfig{
			Dir:     "./output",
			Format:  "png",
			Quality: 90,
		},
	}
}

// Load reads defaults, then the config file, then ADCREATIVE_* environment
// variables. An empty path looks for config.{yaml,json,toml} in the user
// config dir and the working directory and tolerates its absence.
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v, Default())

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	if err := v.BindEnv("openai.api_key", EnvPrefix+"_OPENAI_API_KEY", "OPENAI_API_KEY"); err != nil {
		return nil, fmt.Errorf("bind env: %w", err)
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	} else {
		v.SetConfigName("config")
		v.AddConfigPath(GetConfigDir())
		v.AddConfigPath(".")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadFromFile loads configuration from a file
func LoadFromFile(filename string) (*Config, error) {
	return Load(filename)
}

// setDefaults registers every key, which AutomaticEnv needs to see
// environment overrides during Unmarshal.
func setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("openai.api_key", "")
	v.SetDefault("openai.base_url", d.OpenAI.BaseURL)
	v.SetDefault("openai.chat_model", d.OpenAI.ChatModel)
	v.SetDefault("openai.image_model", d.OpenAI.ImageModel)
	v.SetDefault("openai.edit_model", d.OpenAI.EditModel)
	v.SetDefault("openai.timeout", d.OpenAI.Timeout)

	v.SetDefault("ollama.url", d.Ollama.URL)
	v.SetDefault("ollama.model", d.Ollama.Model)
	v.SetDefault("ollama.timeout", d.Ollama.Timeout)

	v.SetDefault("copy.backend", d.Copy.Backend)
	v.SetDefault("copy.language", d.Copy.Language)
	v.SetDefault("copy.tone", d.Copy.Tone)
	v.SetDefault("copy.headline_max", d.Copy.HeadlineMax)
	v.SetDefault("copy.subheadline_max", d.Copy.SubheadlineMax)
	v.SetDefault("copy.cta_max", d.Copy.CTAMax)

	v.SetDefault("outpaint.attempts", d.Outpaint.Attempts)
	v.SetDefault("outpaint.initial_delay", d.Outpaint.InitialDelay)
	v.SetDefault("outpaint.timeout", d.Outpaint.Timeout)
	v.SetDefault("outpaint.prompt", d.Outpaint.Prompt)
	v.SetDefault("outpaint.min_retained", d.Outpaint.MinRetained)
	v.SetDefault("outpaint.cache_dir", d.Outpaint.CacheDir)
	v.SetDefault("outpaint.cache_ttl", d.Outpaint.CacheTTL)
	v.SetDefault("outpaint.no_cache", d.Outpaint.NoCache)

	v.SetDefault("slideshow.fps", d.Slideshow.FPS)
	v.SetDefault("slideshow.duration", d.Slideshow.Duration)
	v.SetDefault("slideshow.fade", d.Slideshow.Fade)
	v.SetDefault("slideshow.max_zoom", d.Slideshow.MaxZoom)
	v.SetDefault("slideshow.seed", d.Slideshow.Seed)
	v.SetDefault("slideshow.ffmpeg", d.Slideshow.FFmpeg)
	v.SetDefault("slideshow.gif_max_fps", d.Slideshow.GIFMaxFPS)

	v.SetDefault("output.dir", d.Output.Dir)
	v.SetDefault("output.format", d.Output.Format)
	v.SetDefault("output.quality", d.Output.Quality)
	v.SetDefault("output.debug", d.Output.Debug)
}

// SaveToFile saves configuration to a JSON file
func (c *Config) SaveToFile(filename string) error {
	if err := os.MkdirAll(filepath.Dir(filename), 0o755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(filename, data, 0o644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}
	return nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	invalid := func(format string, args ...any) error {
		return apperr.New(apperr.ErrCodeInvalidConfig, format, args...)
	}
	switch c.Copy.Backend {
	case "openai", "ollama", "none":
	default:
		return invalid("copy.backend must be openai, ollama or none, got %q", c.Copy.Backend)
	}
	if c.Copy.HeadlineMax < 1 || c.Copy.SubheadlineMax < 1 || c.Copy.CTAMax < 1 {
		return invalid("copy limits must be positive")
	}
	if c.Outpaint.Attempts < 1 {
		return invalid("outpaint.attempts must be at least 1")
	}
	if c.Outpaint.Timeout <= 0 || c.Outpaint.InitialDelay < 0 {
		return invalid("outpaint.timeout must be positive and outpaint.initial_delay not negative")
	}
	if c.Outpaint.MinRetained < 0 || c.Outpaint.MinRetained > 1 {
		return invalid("outpaint.min_retained must be between 0 and 1")
	}
	if c.Slideshow.FPS < 1 || c.Slideshow.FPS > 120 {
		return invalid("slideshow.fps must be between 1 and 120")
	}
	if c.Slideshow.Duration <= 0 || c.Slideshow.Fade < 0 {
		return invalid("slideshow.duration must be positive and slideshow.fade not negative")
	}
	if c.Slideshow.MaxZoom < 1 || c.Slideshow.MaxZoom > 2 {
		return invalid("slideshow.max_zoom must be between 1 and 2")
	}
	switch strings.ToLower(c.Output.Format) {
	case "png", "jpg", "jpeg", "webp":
	default:
		return invalid("output.format must be png, jpg or webp, got %q", c.Output.Format)
	}
	if c.Output.Quality < 1 || c.Output.Quality > 100 {
		return invalid("output.quality must be between 1 and 100")
	}
	return nil
}

// GetConfigDir returns the default configuration directory
func GetConfigDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "."
	}
	return filepath.Join(dir, "ad-creative")
}

// GetConfigPath returns the default configuration file path
func GetConfigPath() string {
	return filepath.Join(GetConfigDir(), "config.json")
}

func defaultCacheDir() string {
	if dir := os.Getenv("XDG_CACHE_HOME"); dir != "" {
		return filepath.Join(dir, "ad-creative")
	}
	dir, err := os.UserCacheDir()
	if err != nil {
		return filepath.Join(os.TempDir(), "ad-creative-cache")
	}
	return filepath.Join(dir, "ad-creative")
}
