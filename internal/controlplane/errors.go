package controlplane

import (
	"errors"
	"net/http"

	"github.com/fentz26/pomo/internal/engine"
	"github.com/fentz26/pomo/internal/notify"
)

// Sentinel errors for control plane operations.
var (
	ErrUnknownEvent    = errors.New("unknown event")
	ErrInvalidSettings = errors.New("invalid settings")
	ErrInvalidRange    = errors.New("invalid time range")
)

// APIError is the JSON error body returned by the API.
type APIError struct {
	Status  int         `json:"-"`
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func (e *APIError) Error() string {
	return e.Message
}

// NewAPIError creates an APIError.
func NewAPIError(status int, code, message string) *APIError {
	return &APIError{
		Status:  status,
		Code:    code,
		Message: message,
	}
}

// BadRequest creates a 400 APIError.
func BadRequest(code, message string) *APIError {
	return NewAPIError(http.StatusBadRequest, code, message)
}

// NotFound creates a 404 APIError.
func NotFound(code, message string) *APIError {
	return NewAPIError(http.StatusNotFound, code, message)
}

// Internal creates a 500 APIError.
func Internal(message string) *APIError {
	if message == "" {
		message = "internal server error"
	}
	return NewAPIError(http.StatusInternalServerError, "internal_error", message)
}

// toAPIError maps service errors to API errors.
func toAPIError(err error) *APIError {
	switch {
	case errors.Is(err, ErrUnknownEvent), errors.Is(err, engine.ErrNotIntent):
		return BadRequest("invalid_event", err.Error())
	case errors.Is(err, ErrInvalidSettings):
		return BadRequest("invalid_settings", err.Error())
	case errors.Is(err, ErrInvalidRange):
		return BadRequest("invalid_range", err.Error())
	case errors.Is(err, notify.ErrNoPending):
		return NotFound("no_pending_notice", err.Error())
	case errors.Is(err, engine.ErrNoResolver):
		return NewAPIError(http.StatusConflict, "notice_not_resolvable", err.Error())
	case errors.Is(err, engine.ErrStopped):
		return NewAPIError(http.StatusServiceUnavailable, "engine_stopped", err.Error())
	}
	return Internal(err.Error())
}
