package importer

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"google.golang.org/genai"
)

func newFakeGemini(t *testing.T, answer string, gotBody *string) *GeminiExtractor {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "models/gemini-test:generateContent") {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("x-goog-api-key") != "test-key" {
			t.Errorf("api key header = %q", r.Header.Get("x-goog-api-key"))
		}
		b, _ := io.ReadAll(r.Body)
		if gotBody != nil {
			*gotBody = string(b)
		}
		resp := map[string]any{
			"candidates": []map[string]any{{
				"content": map[string]any{
					"role":  "model",
					"parts": []map[string]any{{"text": answer}},
				},
				"finishReason": "STOP",
			}},
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(resp)
	}))
	t.Cleanup(srv.Close)

	ext, err := newGeminiExtractor(context.Background(), "gemini-test", &genai.ClientConfig{
		APIKey:     "test-key",
		Backend:    genai.BackendGeminiAPI,
		HTTPClient: srv.Client(),
		HTTPOptions: genai.HTTPOptions{
			BaseURL:    srv.URL + "/",
			APIVersion: "v1",
		},
	})
	if err != nil {
		t.Fatalf("newGeminiExtractor() error = %v", err)
	}
	return ext
}

func TestGeminiExtractor(t *testing.T) {
	var body string
	answer := "```json\n[{\"date\":\"2024-05-03\",\"description\":\"Train ticket\",\"amount\":-42.5,\"currency\":\"GBP\",\"type\":\"expense\",\"category\":\"Travel\"}]\n```"
	ext := newFakeGemini(t, answer, &body)

	pdf := []byte("%PDF-1.7 statement")
	rows, err := ext.Extract(context.Background(), Document{
		Name: "may.pdf", MIMEType: "application/pdf", Data: pdf,
	}, Hints{BaseCurrency: "GBP"})
	if err != nil {
		t.Fatalf("Extract() error = %v", err)
	}
	if len(rows) != 1 || rows[0].Description != "Train ticket" || rows[0].Category != "Travel" {
		t.Fatalf("Extract() = %+v", rows)
	}
	if !rows[0].Amount.Equal(decimal.RequireFromString("-42.5")) {
		t.Errorf("amount = %s, want -42.5", rows[0].Amount)
	}

	if !strings.Contains(body, "inlineData") || !strings.Contains(body, "application/pdf") {
		t.Errorf("request did not attach the document inline: %s", body)
	}
	if !strings.Contains(body, base64.StdEncoding.EncodeToString(pdf)) {
		t.Errorf("request does not carry the document bytes: %s", body)
	}
}

func TestGeminiExtractorEmptyAnswer(t *testing.T) {
	ext := newFakeGemini(t, "", nil)
	_, err := ext.Extract(context.Background(), Document{Name: "a.csv", Rows: [][]string{{"2024-05-01", "x", "1"}}}, Hints{})
	if !errors.Is(err, ErrEmptyResponse) {
		t.Fatalf("Extract() error = %v, want ErrEmptyResponse", err)
	}
}

func TestGeminiContents(t *testing.T) {
	tests := []struct {
		name     string
		doc      Document
		wantText string
		wantMIME string
	}{
		{
			name:     "sheet rows are sent as text",
			doc:      Document{Name: "Sheet1", Rows: [][]string{{"Date", "Amount"}, {"2024-05-01", "10"}}},
			wantText: "2024-05-01 | 10",
		},
		{
			name:     "binary without type",
			doc:      Document{Name: "blob", Data: []byte{1, 2, 3}},
			wantMIME: "application/octet-stream",
		},
		{
			name:     "spreadsheet bytes",
			doc:      Document{Name: "q1.xlsx", MIMEType: mimeByExt[".xlsx"], Data: []byte{0x50, 0x4b}},
			wantMIME: mimeByExt[".xlsx"],
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			contents := geminiContents(tt.doc, Hints{BaseCurrency: "GBP"})
			if len(contents) != 1 || len(contents[0].Parts) != 2 {
				t.Fatalf("contents = %+v", contents)
			}
			doc := contents[0].Parts[1]
			if tt.wantText != "" && (doc.InlineData != nil || !strings.Contains(doc.Text, tt.wantText)) {
				t.Errorf("text part = %q, want it to contain %q", doc.Text, tt.wantText)
			}
			if tt.wantMIME != "" && (doc.InlineData == nil || doc.InlineData.MIMEType != tt.wantMIME) {
				t.Errorf("inline part = %+v, want MIME %s", doc.InlineData, tt.wantMIME)
			}
		})
	}
}
