package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"taxledger/internal/core"
)

// maxBodyBytes caps JSON request bodies.
const maxBodyBytes = 1 << 20

// decodeJSON reads one JSON object from the body into dst. Malformed or
// oversized bodies are validation errors. Unknown fields are ignored.
func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var maxErr *http.MaxBytesError
		var typeErr *json.UnmarshalTypeError
		switch {
		case errors.Is(err, io.EOF):
			return core.NewValidationError("body", "request body is empty")
		case errors.As(err, &maxErr):
			return core.NewValidationError("body", fmt.Sprintf("request body exceeds %d bytes", maxBodyBytes))
		case errors.As(err, &typeErr) && typeErr.Field != "":
			return core.NewValidationError(typeErr.Field, "has the wrong type")
		default:
			return core.NewValidationError("body", "malformed JSON: "+err.Error())
		}
	}
	if dec.More() {
		return core.NewValidationError("body", "must contain a single JSON object")
	}
	return nil
}

// pathID parses a positive integer path parameter.
func pathID(r *http.Request, name string) (int64, error) {
	raw := r.PathValue(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, core.NewValidationError(name, fmt.Sprintf("invalid id %q", raw))
	}
	return id, nil
}

// parseTransactionFilter reads startDate, endDate, type and currency from
// the query string. Every malformed parameter is reported at once.
func parseTransactionFilter(q url.Values) (core.TransactionFilter, error) {
	var (
		filter core.TransactionFilter
		verr   core.ValidationError
	)
	for _, p := range []struct {
		key string
		dst **core.Date
	}{
		{"startDate", &filter.StartDate},
		{"endDate", &filter.EndDate},
	} {
		v := strings.TrimSpace(q.Get(p.key))
		if v == "" {
			continue
		}
		d, err := core.ParseDate(v)
		if err != nil {
			verr.Add(p.key, "must be a date in YYYY-MM-DD format")
			continue
		}
		*p.dst = &d
	}
	if v := strings.TrimSpace(q.Get("type")); v != "" {
		filter.Type = core.TransactionType(strings.ToLower(v))
	}
	filter.Currency = strings.TrimSpace(q.Get("currency"))
	return filter, verr.OrNil()
}

// sanitizeInput removes control characters except tab and newlines, then
// trims whitespace.
func sanitizeInput(s string) string {
	s = strings.TrimSpace(s)
	return strings.Map(func(r rune) rune {
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, s)
}
