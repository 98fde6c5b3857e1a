package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/ollama/ollama/api"
)

// DefaultURL is where a local ollama listens.
const DefaultURL = "http://localhost:11434"

// Client wraps the Ollama API client
type Client struct {
	client  *api.Client
	timeout time.Duration
	// JSON asks the model for a JSON object.
	JSON bool
}

// NewClient creates a new Ollama client. Only the scheme and host of
// ollamaURL are used, so a pasted endpoint like /api/chat still works.
func NewClient(ollamaURL string, timeout time.Duration) (*Client, error) {
	if ollamaURL == "" {
		ollamaURL = DefaultURL
	}
	parsed, err := url.Parse(ollamaURL)
	if err != nil {
		return nil, fmt.Errorf("invalid URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("invalid URL %q: need scheme and host", ollamaURL)
	}
	if timeout <= 0 {
		timeout = 2 * time.Minute
	}
	base := &url.URL{Scheme: parsed.Scheme, Host: parsed.Host}
	return &Client{client: api.NewClient(base, http.DefaultClient), timeout: timeout}, nil
}

// Complete runs a single-turn chat without streaming.
func (c *Client) Complete(ctx context.Context, model, prompt string) (string, error) {
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	stream := false
	req := &api.ChatRequest{
		Model:    model,
		Messages: []api.Message{{Role: "user", Content: prompt}},
		Stream:   &stream,
		Options:  options(model),
	}
	if c.JSON {
		req.Format = json.RawMessage(`"json"`)
	}

	var content strings.Builder
	err := c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		content.WriteString(resp.Message.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("ollama chat: %w", err)
	}
	if content.Len() == 0 {
		return "", fmt.Errorf("empty response from ollama")
	}
	return content.String(), nil
}

// options tunes sampling for short marketing copy. Small models ramble at
// high temperature.
func options(model string) map[string]any {
	opts := map[string]any{
		"temperature": 0.8,
		"top_p":       0.9,
		"num_predict": 256,
	}
	m := strings.ToLower(model)
	if strings.Contains(m, ":1b") || strings.Contains(m, ":2b") || strings.Contains(m, "tiny") {
		opts["temperature"] = 0.6
	}
	return opts
}
