// Package copywriter asks a language model for ad copy and keeps the
// answer within the length limits of the ad platforms.
package copywriter

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/charmbracelet/log"

	"github.com/menta2k/ad-creative/pkg/client"
	"github.com/menta2k/ad-creative/pkg/compositor"
	apperr "github.com/menta2k/ad-creative/pkg/errors"
	"github.com/menta2k/ad-creative/pkg/types"
)

// Prompt is filled with the brief. The model must answer with one JSON
// object.
const Prompt = `You write display ad copy.

Product: %s
Audience: %s
Tone: %s
Language: %s
Keywords: %s

Return JSON only:
{"headline": "string", "subheadline": "string", "cta": "string"}

HARD RULES
- headline: at most %d characters, no trailing period.
- subheadline: at most %d characters, one sentence.
- cta: at most %d characters, an imperative verb phrase.
- Do not invent prices, discounts or claims not in the brief.
- JSON only. No markdown, no code fences, no comments, no trailing commas.`

// Limits are maximum lengths in characters.
type Limits struct {
	Headline    int
	Subheadline int
	CTA         int
}

// DefaultLimits follow the responsive display ad limits.
func DefaultLimits() Limits {
	return Limits{Headline: 30, Subheadline: 90, CTA: 15}
}

// Brief describes what to advertise.
type Brief struct {
	Product  string
	Audience string
	Tone     string
	Language string
	Keywords []string
}

// Copy is one set of ad texts.
type Copy struct {
	Headline    string `json:"headline"`
	Subheadline string `json:"subheadline"`
	CTA         string `json:"cta"`
	// Fallback is set when the model could not be used.
	Fallback bool `json:"-"`
}

// Layers turns the copy into text layers stacked at pos.
func (c Copy) Layers(pos types.Position) []compositor.Layer {
	var out []compositor.Layer
	for _, t := range []struct {
		role compositor.Role
		text string
	}{
		{compositor.RoleHeadline, c.Headline},
		{compositor.RoleSubheadline, c.Subheadline},
		{compositor.RoleCTA, c.CTA},
	} {
		if strings.TrimSpace(t.text) == "" {
			continue
		}
		out = append(out, compositor.Text{Role: t.role, Content: t.text, Position: pos})
	}
	return out
}

// Writer generates copy with a TextClient.
type Writer struct {
	client client.TextClient
	model  string
	limits Limits
	logger *log.Logger
}

// Option configures a Writer.
type Option func(*Writer)

func WithLimits(l Limits) Option      { return func(w *Writer) { w.limits = l } }
func WithLogger(l *log.Logger) Option { return func(w *Writer) { w.logger = l } }

// New creates a writer. A nil client always produces fallback copy.
func New(c client.TextClient, model string, opts ...Option) *Writer {
	w := &Writer{client: c, model: model, limits: DefaultLimits(), logger: log.Default()}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Write returns copy for brief. Model failures and unusable answers fall
// back to generic copy; only an empty brief is an error.
func (w *Writer) Write(ctx context.Context, brief Brief) (Copy, error) {
	brief.Product = strings.TrimSpace(brief.Product)
	if brief.Product == "" {
		return Copy{}, apperr.New(apperr.ErrCodeInvalidConfig, "brief needs a product")
	}
	if w.client == nil {
		return w.fallback(brief), nil
	}

	raw, err := w.client.Complete(ctx, w.model, w.prompt(brief))
	if err != nil {
		if ctx.Err() != nil {
			return Copy{}, ctx.Err()
		}
		w.logger.Warn("copy generation failed, using fallback", "model", w.model, "err", err)
		return w.fallback(brief), nil
	}
	c, ok := parseCopy(raw)
	if !ok {
		w.logger.Warn("model returned unusable copy, using fallback", "model", w.model, "raw", truncate(raw, 120))
		return w.fallback(brief), nil
	}
	return w.enforce(c, brief), nil
}

func (w *Writer) prompt(b Brief) string {
	or := func(s, def string) string {
		if s = strings.TrimSpace(s); s == "" {
			return def
		}
		return s
	}
	keywords := strings.Join(normalizeKeywords(b.Keywords), ", ")
	return fmt.Sprintf(Prompt,
		b.Product, or(b.Audience, "general"), or(b.Tone, "friendly"), or(b.Language, "English"), or(keywords, "none"),
		w.limits.Headline, w.limits.Subheadline, w.limits.CTA)
}

// enforce trims every field to its limit and fills empty fields.
func (w *Writer) enforce(c Copy, b Brief) Copy {
	fb := w.fallback(b)
	c.Headline = strings.TrimRight(clean(c.Headline), ".")
	c.Subheadline = clean(c.Subheadline)
	c.CTA = clean(c.CTA)
	if c.Headline == "" {
		c.Headline = fb.Headline
	}
	if c.CTA == "" {
		c.CTA = fb.CTA
	}
	c.Headline = truncate(c.Headline, w.limits.Headline)
	c.Subheadline = truncate(c.Subheadline, w.limits.Subheadline)
	c.CTA = truncate(c.CTA, w.limits.CTA)
	return c
}

func (w *Writer) fallback(b Brief) Copy {
	return Copy{
		Headline: truncate(clean(b.Product), w.limits.Headline),
		CTA:      truncate("Learn more", w.limits.CTA),
		Fallback: true,
	}
}

func parseCopy(raw string) (Copy, bool) {
	raw = sanitizeModelJSON(raw)
	if !strings.HasPrefix(raw, "{") {
		return Copy{}, false
	}
	var c Copy
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		return Copy{}, false
	}
	if clean(c.Headline) == "" && clean(c.Subheadline) == "" && clean(c.CTA) == "" {
		return Copy{}, false
	}
	return c, true
}

var (
	reBlock    = regexp.MustCompile(`(?s)/\*.*?\*/`)
	reLine     = regexp.MustCompile(`(?m)^\s*//.*$`)
	reTrailing = regexp.MustCompile(`,(\s*[}\]])`)
)

// sanitizeModelJSON removes code fences, comments, and trailing commas from JSON response
func sanitizeModelJSON(raw string) string {
	raw = strings.TrimSpace(raw)

	if strings.HasPrefix(raw, "```") {
		if i := strings.Index(raw, "\n"); i >= 0 {
			raw = raw[i+1:]
		}
		if j := strings.LastIndex(raw, "```"); j >= 0 {
			raw = raw[:j]
		}
	}
	raw = strings.Trim(strings.TrimSpace(raw), "`")

	raw = reBlock.ReplaceAllString(raw, "")
	raw = reLine.ReplaceAllString(raw, "")
	raw = reTrailing.ReplaceAllString(raw, "$1")

	// Keep only the outermost {...}
	if start := strings.Index(raw, "{"); start >= 0 {
		if end := strings.LastIndex(raw, "}"); end > start {
			raw = raw[start : end+1]
		}
	}
	return strings.TrimSpace(raw)
}

// clean collapses whitespace and strips wrapping quotes.
func clean(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	return strings.Trim(s, `"'“”`)
}

// truncate cuts s to n runes at a word boundary where possible and marks
// the cut with an ellipsis.
func truncate(s string, n int) string {
	if n <= 0 || utf8.RuneCountInString(s) <= n {
		return s
	}
	all := []rune(s)
	r := all[:n-1]
	if !unicode.IsSpace(all[n-1]) {
		if i := lastSpace(r); i > len(r)/2 {
			r = r[:i]
		}
	}
	return strings.TrimRightFunc(string(r), func(c rune) bool {
		return unicode.IsSpace(c) || unicode.IsPunct(c)
	}) + "…"
}

func lastSpace(r []rune) int {
	for i := len(r) - 1; i >= 0; i-- {
		if unicode.IsSpace(r[i]) {
			return i
		}
	}
	return -1
}

// normalizeKeywords lowercases, trims and dedupes keywords.
func normalizeKeywords(in []string) []string {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(in))
	for _, k := range in {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			continue
		}
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	return out
}
