// Package openai talks to OpenAI-compatible endpoints for ad copy, image
// generation and inpainting edits.
package openai

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net"
	"net/http"
	"os"
	"strings"
	"time"

	goopenai "github.com/sashabaranov/go-openai"
	_ "golang.org/x/image/webp"

	apperr "github.com/menta2k/ad-creative/pkg/errors"
	"github.com/menta2k/ad-creative/pkg/outpaint"
	"github.com/menta2k/ad-creative/pkg/types"
)

// Quality is the image generation tier.
type Quality string

const (
	Standard Quality = Quality(goopenai.CreateImageQualityStandard)
	HD       Quality = Quality(goopenai.CreateImageQualityHD)
)

// Config configures a Client.
type Config struct {
	APIKey string
	// BaseURL defaults to the public OpenAI API.
	BaseURL    string
	ChatModel  string
	ImageModel string
	// EditModel must support masked edits.
	EditModel string
	Timeout   time.Duration
}

// DefaultConfig returns the models the CLI uses out of the box.
func DefaultConfig(apiKey string) Config {
	return Config{
		APIKey:     apiKey,
		ChatModel:  "gpt-4o-mini",
		ImageModel: "dall-e-3",
		EditModel:  "dall-e-2",
		Timeout:    2 * time.Minute,
	}
}

// Client wraps the go-openai client.
type Client struct {
	api    *goopenai.Client
	http   *http.Client
	config Config
}

// NewClient fails with MISSING_CREDENTIALS when no API key is set.
func NewClient(cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, apperr.New(apperr.ErrCodeMissingCredentials, "openai api key is not set")
	}
	def := DefaultConfig(cfg.APIKey)
	if cfg.ChatModel == "" {
		cfg.ChatModel = def.ChatModel
	}
	if cfg.ImageModel == "" {
		cfg.ImageModel = def.ImageModel
	}
	if cfg.EditModel == "" {
		cfg.EditModel = def.EditModel
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}

	httpClient := &http.Client{Timeout: cfg.Timeout}
	apiConfig := goopenai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		apiConfig.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	}
	apiConfig.HTTPClient = httpClient

	return &Client{
		api:    goopenai.NewClientWithConfig(apiConfig),
		http:   httpClient,
		config: cfg,
	}, nil
}

// Complete sends prompt as a single user message.
func (c *Client) Complete(ctx context.Context, model, prompt string) (string, error) {
	if model == "" {
		model = c.config.ChatModel
	}
	resp, err := c.api.CreateChatCompletion(ctx, goopenai.ChatCompletionRequest{
		Model: model,
		Messages: []goopenai.ChatCompletionMessage{
			{Role: goopenai.ChatMessageRoleUser, Content: prompt},
		},
		Temperature: 0.8,
	})
	if err != nil {
		return "", classify(err)
	}
	if len(resp.Choices) == 0 {
		return "", apperr.New(apperr.ErrCodeRemoteFatal, "no choices in response")
	}
	return resp.Choices[0].Message.Content, nil
}

// GenerateImage creates a source image from prompt. The size is the
// generation size closest to the aspect ratio of want; callers fit it to
// their formats afterwards.
func (c *Client) GenerateImage(ctx context.Context, prompt string, want types.Dims, quality Quality) (image.Image, error) {
	if strings.TrimSpace(prompt) == "" {
		return nil, apperr.New(apperr.ErrCodeInvalidConfig, "image prompt is empty")
	}
	if quality == "" {
		quality = Standard
	}
	resp, err := c.api.CreateImage(ctx, goopenai.ImageRequest{
		Prompt:         prompt,
		Model:          c.config.ImageModel,
		N:              1,
		Size:           generationSize(want),
		Quality:        string(quality),
		ResponseFormat: goopenai.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		return nil, classify(err)
	}
	return c.decodeResponse(ctx, resp)
}

// Inpaint sends the masked canvas to the image edit endpoint. The canvas
// alpha marks the region to regenerate, so image and mask are the same
// PNG.
func (c *Client) Inpaint(ctx context.Context, req outpaint.InpaintRequest) (image.Image, error) {
	imgFile, err := tempPNG("inpaint-image-*.png", req.Image)
	if err != nil {
		return nil, err
	}
	defer cleanup(imgFile)
	maskFile, err := tempPNG("inpaint-mask-*.png", req.Mask)
	if err != nil {
		return nil, err
	}
	defer cleanup(maskFile)

	resp, err := c.api.CreateEditImage(ctx, goopenai.ImageEditRequest{
		Image:          imgFile,
		Mask:           maskFile,
		Prompt:         req.Prompt,
		Model:          c.config.EditModel,
		N:              1,
		Size:           fmt.Sprintf("%dx%d", req.Size, req.Size),
		ResponseFormat: goopenai.CreateImageResponseFormatB64JSON,
	})
	if err != nil {
		return nil, classify(err)
	}
	return c.decodeResponse(ctx, resp)
}

func (c *Client) decodeResponse(ctx context.Context, resp goopenai.ImageResponse) (image.Image, error) {
	if len(resp.Data) == 0 {
		return nil, apperr.New(apperr.ErrCodeRemoteFatal, "image response has no data")
	}
	d := resp.Data[0]
	var raw []byte
	switch {
	case d.B64JSON != "":
		b, err := base64.StdEncoding.DecodeString(d.B64JSON)
		if err != nil {
			return nil, apperr.Wrap(apperr.ErrCodeRemoteFatal, err, "decode b64_json")
		}
		raw = b
	case d.URL != "":
		b, err := c.download(ctx, d.URL)
		if err != nil {
			return nil, err
		}
		raw = b
	default:
		return nil, apperr.New(apperr.ErrCodeRemoteFatal, "image response has neither url nor b64_json")
	}
	img, _, err := image.Decode(bytes.NewReader(raw))
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrCodeRemoteFatal, err, "decode generated image")
	}
	return img, nil
}

func (c *Client) download(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, apperr.Wrap(apperr.ErrCodeRemoteFatal, err, "image url")
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, classify(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, statusError(resp.StatusCode, fmt.Errorf("download %s: %s", url, resp.Status))
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, classify(err)
	}
	return b, nil
}

// generationSize picks the square, landscape or portrait generation size.
func generationSize(want types.Dims) string {
	if !want.Valid() {
		return goopenai.CreateImageSize1024x1024
	}
	switch ar := want.AspectRatio(); {
	case ar >= 1.4:
		return goopenai.CreateImageSize1792x1024
	case ar <= 1/1.4:
		return goopenai.CreateImageSize1024x1792
	default:
		return goopenai.CreateImageSize1024x1024
	}
}

// classify maps API failures onto the outpaint error codes. Rate limits,
// server errors and network failures are worth retrying; everything else
// is not.
func classify(err error) error {
	var apiErr *goopenai.APIError
	var reqErr *goopenai.RequestError
	switch {
	case errors.As(err, &apiErr):
		return statusError(apiErr.HTTPStatusCode, err)
	case errors.As(err, &reqErr):
		return statusError(reqErr.HTTPStatusCode, err)
	case errors.Is(err, context.DeadlineExceeded):
		return apperr.Wrap(apperr.ErrCodeRemoteTransient, err, "openai request timed out")
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return apperr.Wrap(apperr.ErrCodeRemoteTransient, err, "openai unreachable")
	}
	return apperr.Wrap(apperr.ErrCodeRemoteFatal, err, "openai request failed")
}

func statusError(status int, err error) error {
	if status == http.StatusTooManyRequests || status >= 500 {
		return apperr.Wrap(apperr.ErrCodeRemoteTransient, err, "openai status %d", status)
	}
	return apperr.Wrap(apperr.ErrCodeRemoteFatal, err, "openai status %d", status)
}

// tempPNG stores data in a named temp file; the multipart upload takes the
// file name, and the API checks the .png extension.
func tempPNG(pattern string, data []byte) (*os.File, error) {
	f, err := os.CreateTemp("", pattern)
	if err != nil {
		return nil, fmt.Errorf("create temp file: %w", err)
	}
	if _, err := f.Write(data); err != nil {
		cleanup(f)
		return nil, fmt.Errorf("write temp file: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		cleanup(f)
		return nil, fmt.Errorf("rewind temp file: %w", err)
	}
	return f, nil
}

func cleanup(f *os.File) {
	_ = f.Close()
	_ = os.Remove(f.Name())
}

var _ outpaint.Inpainter = (*Client)(nil)
