// Package api is the HTTP surface: a chi router split into /api/* (public)
// and /admin/* (local-only) route groups, request-id/trace-id
// instrumentation, CORS gated on environment, and a flat {error, code}
// JSON error envelope.
package api

import (
	"net/http"

	"github.com/goccy/go-json"

	"github.com/tmoreau/marginalia/internal/logging"
)

// errorBody is the error envelope: `{ "error": string, "code": int }`,
// where code always matches the HTTP status.
type errorBody struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}

// ResponseWriter wraps http.ResponseWriter with the JSON envelope and a
// small set of status-coded convenience methods.
type ResponseWriter struct {
	w http.ResponseWriter
	r *http.Request
}

// NewResponseWriter builds a ResponseWriter for one request.
func NewResponseWriter(w http.ResponseWriter, r *http.Request) *ResponseWriter {
	return &ResponseWriter{w: w, r: r}
}

// JSON writes a 200 response with the given payload.
func (rw *ResponseWriter) JSON(data any) {
	rw.writeJSON(http.StatusOK, data)
}

// Binary writes raw bytes with the given content type, bypassing the JSON
// envelope entirely (used for /api/images/:id).
func (rw *ResponseWriter) Binary(contentType string, data []byte) {
	rw.w.Header().Set("Content-Type", contentType)
	rw.w.WriteHeader(http.StatusOK)
	if _, err := rw.w.Write(data); err != nil {
		logging.Ctx(rw.r.Context()).Warn().Err(err).Msg("failed to write binary response body")
	}
}

func (rw *ResponseWriter) Error(statusCode int, message string) {
	rw.writeJSON(statusCode, errorBody{Error: message, Code: statusCode})
}

func (rw *ResponseWriter) BadRequest(message string) { rw.Error(http.StatusBadRequest, message) }
func (rw *ResponseWriter) NotFound(message string)   { rw.Error(http.StatusNotFound, message) }
func (rw *ResponseWriter) InternalError(message string) {
	rw.Error(http.StatusInternalServerError, message)
}
func (rw *ResponseWriter) ServiceUnavailable(message string) {
	rw.Error(http.StatusServiceUnavailable, message)
}
func (rw *ResponseWriter) Forbidden(message string) { rw.Error(http.StatusForbidden, message) }

func (rw *ResponseWriter) writeJSON(statusCode int, data any) {
	rw.w.Header().Set("Content-Type", "application/json; charset=utf-8")
	rw.w.WriteHeader(statusCode)
	if err := json.NewEncoder(rw.w).Encode(data); err != nil {
		logging.Ctx(rw.r.Context()).Error().Err(err).Msg("failed to encode JSON response")
	}
}
