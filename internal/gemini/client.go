// Package gemini is the thin client for the external generative service used
// by both the analysis and the diagram steps.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"google.golang.org/genai"

	"github.com/kalambet/electroschematic/internal/imagecodec"
)

// ErrMissingAPIKey is returned by New when no credential is configured.
var ErrMissingAPIKey = errors.New("missing Gemini API key")

// Config holds connection settings for the Gemini API.
type Config struct {
	APIKey string
	// BaseURL overrides the public endpoint (proxies, tests).
	BaseURL    string
	HTTPClient *http.Client
}

// Client sends generateContent requests to Gemini.
type Client struct {
	models *genai.Models
}

// New creates a Client. It fails fast when the API key is absent so a
// misconfiguration surfaces at startup instead of on the first upload.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, ErrMissingAPIKey
	}

	cc := &genai.ClientConfig{
		APIKey:     cfg.APIKey,
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: cfg.HTTPClient,
	}
	if cfg.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	c, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("creating genai client: %w", err)
	}
	return &Client{models: c.Models}, nil
}

// GenerateContent issues one generateContent call against model.
func (c *Client) GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	start := time.Now()
	resp, err := c.models.GenerateContent(ctx, model, contents, config)
	if err != nil {
		slog.Warn("gemini request failed", "model", model, "error", err)
		return nil, fmt.Errorf("gemini %s: %w", model, err)
	}
	slog.Debug("gemini request complete", "model", model, "duration_ms", time.Since(start).Milliseconds())
	return resp, nil
}

// ImagePart converts an encoded image into an inline-data request part.
func ImagePart(img imagecodec.Image) (*genai.Part, error) {
	raw, err := img.Bytes()
	if err != nil {
		return nil, err
	}
	return &genai.Part{InlineData: &genai.Blob{MIMEType: img.MIMEType, Data: raw}}, nil
}

// UserContent wraps parts as a single user turn.
func UserContent(parts ...*genai.Part) []*genai.Content {
	return []*genai.Content{{Role: genai.RoleUser, Parts: parts}}
}

// ResponseText concatenates the text parts of the first candidate, skipping
// thought summaries. It returns "" when the response carries no text.
func ResponseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	cand := resp.Candidates[0]
	if cand == nil || cand.Content == nil {
		return ""
	}
	var sb strings.Builder
	for _, p := range cand.Content.Parts {
		if p == nil || p.Thought {
			continue
		}
		sb.WriteString(p.Text)
	}
	return sb.String()
}

// FirstInlineImage returns the first inline image payload in the response,
// scanning candidates and their parts in order.
func FirstInlineImage(resp *genai.GenerateContentResponse) (*genai.Blob, bool) {
	if resp == nil {
		return nil, false
	}
	for _, cand := range resp.Candidates {
		if cand == nil || cand.Content == nil {
			continue
		}
		for _, p := range cand.Content.Parts {
			if p == nil || p.InlineData == nil || len(p.InlineData.Data) == 0 {
				continue
			}
			if p.InlineData.MIMEType != "" && !strings.HasPrefix(p.InlineData.MIMEType, "image/") {
				continue
			}
			return p.InlineData, true
		}
	}
	return nil, false
}
