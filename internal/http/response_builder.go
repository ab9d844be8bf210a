// Package http exposes the ledger as a JSON REST API.
//
// This file holds the response side: a small builder for JSON responses
// and the single place where domain errors become status codes.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"taxledger/internal/core"
	"taxledger/internal/log"
)

// JSONResponseBuilder provides a fluent API for building JSON responses.
type JSONResponseBuilder struct {
	statusCode int
	headers    map[string]string
	payload    any
}

// NewJSONResponse creates a response builder with default 200 status.
func NewJSONResponse() *JSONResponseBuilder {
	return &JSONResponseBuilder{
		statusCode: http.StatusOK,
		headers:    make(map[string]string),
	}
}

func (b *JSONResponseBuilder) Status(code int) *JSONResponseBuilder {
	b.statusCode = code
	return b
}

func (b *JSONResponseBuilder) Header(name, value string) *JSONResponseBuilder {
	b.headers[name] = value
	return b
}

// Data sets the value encoded as the response body.
func (b *JSONResponseBuilder) Data(v any) *JSONResponseBuilder {
	b.payload = v
	return b
}

// Write sends the response. A nil payload writes no body.
func (b *JSONResponseBuilder) Write(w http.ResponseWriter) {
	for name, value := range b.headers {
		w.Header().Set(name, value)
	}
	if b.payload == nil {
		w.WriteHeader(b.statusCode)
		return
	}
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(b.statusCode)
	_ = json.NewEncoder(w).Encode(b.payload)
}

// ErrorBody is the shape of every error response.
type ErrorBody struct {
	Message string            `json:"message"`
	Errors  []core.FieldError `json:"errors,omitempty"`
}

// ErrorResponse creates an error response with the given message.
func ErrorResponse(statusCode int, message string) *JSONResponseBuilder {
	return NewJSONResponse().Status(statusCode).Data(ErrorBody{Message: message})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	NewJSONResponse().Status(status).Data(v).Write(w)
}

// writeError maps err onto a status code. Validation problems are listed
// field by field; storage details are logged, not returned.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	logger := log.FromContext(r.Context()).WithComponent(log.ComponentHTTP)

	var verr *core.ValidationError
	switch {
	case errors.As(err, &verr):
		NewJSONResponse().Status(http.StatusBadRequest).
			Data(ErrorBody{Message: verr.Error(), Errors: verr.Problems}).Write(w)
	case errors.Is(err, core.ErrValidation):
		ErrorResponse(http.StatusBadRequest, err.Error()).Write(w)
	case errors.Is(err, core.ErrNotFound):
		ErrorResponse(http.StatusNotFound, err.Error()).Write(w)
	case errors.Is(err, core.ErrConflict):
		ErrorResponse(http.StatusConflict, err.Error()).Write(w)
	case errors.Is(err, core.ErrConversion):
		logger.ErrorContext(r.Context(), "Conversion failed", log.FieldError, err)
		ErrorResponse(http.StatusInternalServerError, err.Error()).Write(w)
	case errors.Is(err, context.DeadlineExceeded):
		logger.ErrorContext(r.Context(), "Request timed out", log.FieldError, err)
		ErrorResponse(http.StatusGatewayTimeout, "The operation timed out").Write(w)
	case errors.Is(err, core.ErrStorage):
		logger.ErrorContext(r.Context(), "Storage failure", log.FieldError, err)
		ErrorResponse(http.StatusInternalServerError, "A storage error occurred").Write(w)
	default:
		logger.ErrorContext(r.Context(), "Request failed", log.FieldError, err)
		ErrorResponse(http.StatusInternalServerError, "An unknown error occurred").Write(w)
	}
}
