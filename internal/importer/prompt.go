package importer

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// ErrEmptyResponse is returned when a model answers with no text.
var ErrEmptyResponse = errors.New("empty response from model")

const instructions = "You are a bookkeeping assistant for a UK small business.\n\n" +
	"Task:\n" +
	"- Read every transaction in the attached document.\n" +
	"- Output STRICT JSON only (no comments, no trailing commas, no extra text).\n\n" +
	"Each transaction must have these fields:\n" +
	"- \"date\": string, ISO format \"YYYY-MM-DD\"\n" +
	"- \"description\": string\n" +
	"- \"amount\": number, always positive\n" +
	"- \"currency\": string, ISO 4217 code (e.g. \"GBP\")\n" +
	"- \"type\": \"income\" for money in, \"expense\" for money out\n" +
	"- \"category\": string, one of the categories below or \"\" when none fits\n"

const rules = "Rules:\n" +
	"- If the document has separate \"paid in\" / \"paid out\" columns, use them to set \"type\".\n" +
	"- Skip opening and closing balances, totals and header rows.\n" +
	"- If no currency is shown, use the default currency.\n\n" +
	"Return ONLY valid raw JSON.\n" +
	"Do NOT wrap the response in code fences.\n"

// buildPrompt renders the model instructions for one import.
func buildPrompt(hints Hints, arrayOutput bool) string {
	var b strings.Builder
	b.WriteString(instructions)
	b.WriteString("\n")
	if hints.BaseCurrency != "" {
		fmt.Fprintf(&b, "Default currency: %s\n\n", hints.BaseCurrency)
	}
	b.WriteString(categoriesPrompt(hints))
	b.WriteString("\n")
	b.WriteString(rules)
	if arrayOutput {
		b.WriteString("Output must be a JSON array and begin with \"[\" and end with \"]\".\n")
	} else {
		b.WriteString("Output must be an object with a single \"transactions\" array.\n")
	}
	return b.String()
}

func categoriesPrompt(hints Hints) string {
	if len(hints.Categories) == 0 {
		return "Categories: none defined, always use \"\".\n"
	}
	var b strings.Builder
	b.WriteString("Categories:\n")
	for _, c := range hints.Categories {
		fmt.Fprintf(&b, "- %s (%s)\n", c.Name, c.Type)
	}
	return b.String()
}

// renderRows writes sheet rows as pipe-separated text lines.
func renderRows(rows [][]string) string {
	var b strings.Builder
	for _, row := range rows {
		b.WriteString(strings.Join(row, " | "))
		b.WriteString("\n")
	}
	return b.String()
}

// decodeRows parses a model answer. Both a bare array and an object with
// a "transactions" array are accepted.
func decodeRows(raw string) ([]Row, error) {
	clean := cleanModelJSON(raw)
	if clean == "" {
		return nil, ErrEmptyResponse
	}
	if strings.HasPrefix(clean, "{") {
		var wrapped struct {
			Transactions []Row `json:"transactions"`
		}
		if err := json.Unmarshal([]byte(clean), &wrapped); err != nil {
			return nil, fmt.Errorf("unmarshal model output: %w", err)
		}
		return wrapped.Transactions, nil
	}
	var rows []Row
	if err := json.Unmarshal([]byte(clean), &rows); err != nil {
		return nil, fmt.Errorf("unmarshal model output: %w", err)
	}
	return rows, nil
}

// cleanModelJSON strips Markdown fences and any text around the JSON value.
func cleanModelJSON(raw string) string {
	s := strings.TrimSpace(raw)

	if strings.HasPrefix(s, "```") {
		idx := strings.Index(s, "\n")
		if idx == -1 {
			return s
		}
		s = strings.TrimSpace(s[idx+1:])
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	start, end := strings.IndexAny(s, "[{"), -1
	if start != -1 {
		if s[start] == '[' {
			end = strings.LastIndex(s, "]")
		} else {
			end = strings.LastIndex(s, "}")
		}
	}
	if start != -1 && end > start {
		s = strings.TrimSpace(s[start : end+1])
	}
	return s
}
