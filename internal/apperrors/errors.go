package apperrors

import (
	"encoding/json"
	"net/http"

	"github.com/aliuyar1234/nr01desk/internal/metrics"
	"github.com/rs/zerolog/log"
)

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error information. Fields is set for validation
// failures and maps form field names to messages.
type ErrorDetail struct {
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	RequestID string            `json:"request_id"`
	Fields    map[string]string `json:"fields,omitempty"`
}

// SuccessResponse is the JSON success envelope.
type SuccessResponse struct {
	RequestID string      `json:"request_id"`
	Data      interface{} `json:"data"`
}

func writeJSON(w http.ResponseWriter, r *http.Request, statusCode int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		log.Debug().Err(err).Str("request_id", GetRequestID(r.Context())).Msg("Failed to encode response")
	}
}

// WriteError writes an error response in the standard envelope format
func WriteError(w http.ResponseWriter, r *http.Request, statusCode int, code, message string) {
	writeJSON(w, r, statusCode, ErrorResponse{
		Error: ErrorDetail{
			Code:      code,
			Message:   message,
			RequestID: GetRequestID(r.Context()),
		},
	})
}

// WriteValidationError writes a 400 with per-field messages.
func WriteValidationError(w http.ResponseWriter, r *http.Request, message string, fields map[string]string) {
	writeJSON(w, r, http.StatusBadRequest, ErrorResponse{
		Error: ErrorDetail{
			Code:      "validation_failed",
			Message:   message,
			RequestID: GetRequestID(r.Context()),
			Fields:    fields,
		},
	})
}

// WriteSuccess writes a success response in the standard envelope format
func WriteSuccess(w http.ResponseWriter, r *http.Request, statusCode int, data interface{}) {
	writeJSON(w, r, statusCode, SuccessResponse{
		RequestID: GetRequestID(r.Context()),
		Data:      data,
	})
}

func WriteServiceUnavailable(w http.ResponseWriter, r *http.Request, message string) {
	WriteError(w, r, http.StatusServiceUnavailable, "service_unavailable", message)
}

func WriteInternalError(w http.ResponseWriter, r *http.Request, message string) {
	metrics.RecordError("http", "error")
	WriteError(w, r, http.StatusInternalServerError, "internal_error", message)
}

func WriteBadRequest(w http.ResponseWriter, r *http.Request, message string) {
	WriteError(w, r, http.StatusBadRequest, "bad_request", message)
}

func WriteUnauthorized(w http.ResponseWriter, r *http.Request, message string) {
	WriteError(w, r, http.StatusUnauthorized, "unauthorized", message)
}

func WriteForbidden(w http.ResponseWriter, r *http.Request, message string) {
	WriteError(w, r, http.StatusForbidden, "forbidden", message)
}

func WriteNotFound(w http.ResponseWriter, r *http.Request, message string) {
	WriteError(w, r, http.StatusNotFound, "not_found", message)
}

func WriteConflict(w http.ResponseWriter, r *http.Request, message string) {
	WriteError(w, r, http.StatusConflict, "conflict", message)
}

func WriteTooManyRequests(w http.ResponseWriter, r *http.Request, message string) {
	WriteError(w, r, http.StatusTooManyRequests, "too_many_requests", message)
}

func WritePayloadTooLarge(w http.ResponseWriter, r *http.Request, message string) {
	WriteError(w, r, http.StatusRequestEntityTooLarge, "payload_too_large", message)
}

// WriteBadGateway reports a failure of an upstream dependency such as the mail relay.
func WriteBadGateway(w http.ResponseWriter, r *http.Request, message string) {
	WriteError(w, r, http.StatusBadGateway, "upstream_failed", message)
}
