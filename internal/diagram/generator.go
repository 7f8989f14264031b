// Package diagram renders a labelled textbook-style illustration of an
// analysed device with an image-capable model.
package diagram

import (
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/genai"

	"github.com/kalambet/electroschematic/internal/gemini"
	"github.com/kalambet/electroschematic/internal/imagecodec"
	"github.com/kalambet/electroschematic/internal/schematic"
)

// DefaultModel is the image model used when none is configured.
const DefaultModel = "gemini-2.5-flash-image"

// ContentGenerator is the subset of the Gemini client the Generator needs.
type ContentGenerator interface {
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, config *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

// Generator produces schematic diagrams.
type Generator struct {
	client ContentGenerator
	model  string
}

// NewGenerator creates a Generator. An empty model selects DefaultModel.
func NewGenerator(client ContentGenerator, model string) *Generator {
	if model == "" {
		model = DefaultModel
	}
	return &Generator{client: client, model: model}
}

// Generate sends the original photo plus the rendered prompt and returns the
// first inline image of the reply as base64. A reply without image data is
// schematic.ErrGeneration.
func (g *Generator) Generate(ctx context.Context, original imagecodec.Image, a schematic.AnalysisResult) (string, error) {
	part, err := gemini.ImagePart(original)
	if err != nil {
		return "", fmt.Errorf("%w: %w", schematic.ErrGeneration, err)
	}

	resp, err := g.client.GenerateContent(ctx, g.model,
		gemini.UserContent(part, genai.NewPartFromText(BuildPrompt(a))), nil)
	if err != nil {
		return "", fmt.Errorf("%w: %w", schematic.ErrGeneration, err)
	}

	blob, ok := gemini.FirstInlineImage(resp)
	if !ok {
		slog.Warn("image model returned no inline image", "model", g.model, "text", gemini.ResponseText(resp))
		return "", fmt.Errorf("%w: no image generated", schematic.ErrGeneration)
	}
	return imagecodec.Encode(blob.Data), nil
}
