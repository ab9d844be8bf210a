package importer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/sashabaranov/go-openai"

	"taxledger/internal/core"
)

// OpenAIExtractor talks to any OpenAI-compatible chat completion API and
// asks for output matching transactionsSchema. Chat models only read text,
// so binary spreadsheets must be fetched as sheet rows or CSV.
type OpenAIExtractor struct {
	client *openai.Client
	model  string
}

func NewOpenAIExtractor(apiKey, baseURL, model string) *OpenAIExtractor {
	config := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		config.BaseURL = baseURL
	}
	return &OpenAIExtractor{
		client: openai.NewClientWithConfig(config),
		model:  model,
	}
}

var transactionsSchema = json.RawMessage(`{
	"type": "object",
	"properties": {
		"transactions": {
			"type": "array",
			"items": {
				"type": "object",
				"properties": {
					"date": {"type": "string"},
					"description": {"type": "string"},
					"amount": {"type": "number"},
					"currency": {"type": "string"},
					"type": {"type": "string", "enum": ["income", "expense"]},
					"category": {"type": "string"}
				},
				"required": ["date", "description", "amount", "currency", "type", "category"],
				"additionalProperties": false
			}
		}
	},
	"required": ["transactions"],
	"additionalProperties": false
}`)

func (o *OpenAIExtractor) Extract(ctx context.Context, doc Document, hints Hints) ([]Row, error) {
	body, err := documentText(doc)
	if err != nil {
		return nil, err
	}

	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.model,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: buildPrompt(hints, false),
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: "Document " + doc.Name + ":\n" + body,
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONSchema,
			JSONSchema: &openai.ChatCompletionResponseFormatJSONSchema{
				Name:   "transactions",
				Schema: transactionsSchema,
				Strict: true,
			},
		},
		Temperature: 0,
	})
	if err != nil {
		return nil, fmt.Errorf("chat completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return nil, errors.New("no choices in model response")
	}
	return decodeRows(resp.Choices[0].Message.Content)
}

func documentText(doc Document) (string, error) {
	if len(doc.Rows) > 0 {
		return renderRows(doc.Rows), nil
	}
	isText := strings.HasPrefix(doc.MIMEType, "text/") || doc.MIMEType == "application/csv"
	if !isText || !utf8.Valid(doc.Data) {
		return "", core.NewValidationError("fileRef",
			fmt.Sprintf("%s content cannot be read by the openai extractor, use CSV or a sheets:// source", doc.MIMEType))
	}
	return string(doc.Data), nil
}
