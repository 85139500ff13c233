package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/rs/zerolog/log"

	"github.com/reveriehq/reverie/pkg/journal"
	"github.com/reveriehq/reverie/pkg/pipeline"
	"github.com/reveriehq/reverie/pkg/queue"
)

// ErrorResponse represents a standard JSON error response.
// Used consistently across all API endpoints for error responses.
//
// Example:
//
//	{
//	  "error": "Conflict",
//	  "message": "resource journal-1 already has job a1b2 in flight"
//	}
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message,omitempty"`
}

// WriteError writes a standard JSON error response to the client.
// It maps domain errors onto HTTP status codes:
//   - journal.NotFoundError / queue.ErrNotFound → 404 Not Found
//   - queue.ErrJobInFlight / pipeline.ErrAlreadyProcessed → 409 Conflict
//   - queue.ErrStopped → 503 Service Unavailable
//   - anything else → 500 Internal Server Error
//
// It also logs the error with structured logging for observability.
func WriteError(w http.ResponseWriter, r *http.Request, err error) {
	var statusCode int
	var errorType string

	var notFoundErr *journal.NotFoundError
	switch {
	case errors.As(err, &notFoundErr), errors.Is(err, queue.ErrNotFound):
		statusCode = http.StatusNotFound
		errorType = "Not Found"
	case errors.Is(err, queue.ErrJobInFlight), errors.Is(err, pipeline.ErrAlreadyProcessed):
		statusCode = http.StatusConflict
		errorType = "Conflict"
	case errors.Is(err, queue.ErrStopped):
		statusCode = http.StatusServiceUnavailable
		errorType = "Service Unavailable"
	default:
		statusCode = http.StatusInternalServerError
		errorType = "Internal Server Error"
	}

	logEvent := log.Error().
		Str("component", "api").
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Int("status", statusCode).
		Err(err)

	if statusCode == http.StatusInternalServerError {
		logEvent.Msg("Request failed")
	} else {
		logEvent.Msg("Request rejected")
	}

	WriteJSONError(w, statusCode, errorType, err.Error())
}

// WriteJSONError writes a custom JSON error response with a specific status code.
// Use this when you need fine-grained control over the error response.
//
// Example:
//
//	WriteJSONError(w, http.StatusBadRequest, "Invalid Input", "user_id is required")
func WriteJSONError(w http.ResponseWriter, statusCode int, errorType, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	response := ErrorResponse{
		Error:   errorType,
		Message: message,
	}

	if err := json.NewEncoder(w).Encode(response); err != nil {
		log.Error().
			Str("component", "api").
			Err(err).
			Msg("Failed to encode error response")
	}
}

// WriteJSON writes a JSON response to the client.
// Use this for successful API responses.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Error().
			Str("component", "api").
			Err(err).
			Msg("Failed to encode JSON response")
	}
}
