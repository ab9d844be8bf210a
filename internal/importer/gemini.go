package importer

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GeminiExtractor sends the document to a Gemini model. Binary sources are
// attached inline; sheet rows are sent as text.
type GeminiExtractor struct {
	client *genai.Client
	model  string
}

// NewGeminiExtractor builds a client from the standard GOOGLE_API_KEY or
// Vertex AI environment.
func NewGeminiExtractor(ctx context.Context, model string) (*GeminiExtractor, error) {
	return newGeminiExtractor(ctx, model, &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
}

func newGeminiExtractor(ctx context.Context, model string, cc *genai.ClientConfig) (*GeminiExtractor, error) {
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	return &GeminiExtractor{client: client, model: model}, nil
}

func (g *GeminiExtractor) Extract(ctx context.Context, doc Document, hints Hints) ([]Row, error) {
	resp, err := g.client.Models.GenerateContent(ctx, g.model, geminiContents(doc, hints), nil)
	if err != nil {
		return nil, fmt.Errorf("generate content: %w", err)
	}
	text := resp.Text()
	if text == "" {
		return nil, ErrEmptyResponse
	}
	return decodeRows(text)
}

func geminiContents(doc Document, hints Hints) []*genai.Content {
	parts := []*genai.Part{{Text: buildPrompt(hints, true)}}
	if len(doc.Rows) > 0 {
		parts = append(parts, &genai.Part{Text: "Document " + doc.Name + ":\n" + renderRows(doc.Rows)})
	} else {
		mime := doc.MIMEType
		if mime == "" {
			mime = "application/octet-stream"
		}
		parts = append(parts, &genai.Part{InlineData: &genai.Blob{MIMEType: mime, Data: doc.Data}})
	}
	return []*genai.Content{{Role: "user", Parts: parts}}
}
