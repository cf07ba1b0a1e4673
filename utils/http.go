package utils

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/garagehq/workshop-platform/services"
)

// ErrorResponse represents a structured error response. Tags holds the
// machine-checkable flags collaborating UIs branch on (timeout, status,
// retryAfter); they are flattened to the top level of the JSON body.
type ErrorResponse struct {
	Error   string                 `json:"error"`
	Message string                 `json:"message,omitempty"`
	Tags    map[string]interface{} `json:"-"`
}

// MarshalJSON flattens Tags next to error/message
func (e ErrorResponse) MarshalJSON() ([]byte, error) {
	body := make(map[string]interface{}, len(e.Tags)+2)
	for k, v := range e.Tags {
		body[k] = v
	}
	body["error"] = e.Error
	if e.Message != "" {
		body["message"] = e.Message
	}
	return json.Marshal(body)
}

// SuccessResponse represents a generic success response
type SuccessResponse struct {
	Data    interface{} `json:"data,omitempty"`
	Message string      `json:"message,omitempty"`
}

// WriteJSON writes a JSON response with the given status code
func WriteJSON(w http.ResponseWriter, status int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if data == nil {
		return nil
	}

	return json.NewEncoder(w).Encode(data)
}

// WriteOK writes a 200 OK response with optional data
func WriteOK(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusOK, SuccessResponse{Data: data})
}

// WriteCreated writes a 201 Created response with optional data
func WriteCreated(w http.ResponseWriter, data interface{}) error {
	return WriteJSON(w, http.StatusCreated, SuccessResponse{Data: data})
}

// WriteNoContent writes a 204 No Content response
func WriteNoContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}

// StatusForError maps a domain error type to its HTTP status code
func StatusForError(err error) int {
	switch services.GetErrorType(err) {
	case services.ErrorTypeBadRequest, services.ErrorTypeValidation:
		return http.StatusBadRequest
	case services.ErrorTypeNotFound:
		return http.StatusNotFound
	case services.ErrorTypeUnauthorized:
		return http.StatusUnauthorized
	case services.ErrorTypeForbidden:
		return http.StatusForbidden
	case services.ErrorTypeUnavailable:
		return http.StatusServiceUnavailable
	case services.ErrorTypeRateLimit:
		return http.StatusTooManyRequests
	case services.ErrorTypeConflict:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// WriteDomainError writes the response for a pipeline or service error,
// carrying the error's tags in the body. Non-domain errors become a
// generic 500 so internals never leak.
func WriteDomainError(w http.ResponseWriter, err error) error {
	var domainErr *services.DomainError
	if !errors.As(err, &domainErr) {
		return WriteJSON(w, http.StatusInternalServerError, ErrorResponse{
			Error:   "internal_error",
			Message: "internal server error",
		})
	}
	return WriteJSON(w, StatusForError(domainErr), ErrorResponse{
		Error:   string(domainErr.Type),
		Message: domainErr.Message,
		Tags:    domainErr.Details,
	})
}

// SetRateLimitHeaders surfaces remaining quota and window reset on every
// response that passed the limiter
func SetRateLimitHeaders(w http.ResponseWriter, remaining int, resetUnix int64) {
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetUnix, 10))
}
