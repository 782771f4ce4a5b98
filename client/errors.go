package client

import (
	"encoding/json"
	"errors"
	"fmt"
)

// ErrorType defines the category of client error.
type ErrorType string

const (
	ConnectionError    ErrorType = "connection"
	StatusError        ErrorType = "status"
	EmptyResponseError ErrorType = "empty_response"
	DecodeError        ErrorType = "decode"
	ValidationError    ErrorType = "validation"
)

// Error is the single structured shape every failure is normalized into
// before it crosses the client boundary. No raw transport error or raw
// response ever reaches callers.
type Error struct {
	// Status is the final HTTP status, or 0 for transport-level failures.
	Status int
	// Message is human-readable.
	Message string
	// Data carries the raw response payload when one exists.
	Data any
	// CorrelationID ties the failure back to the originating call.
	CorrelationID string

	kind ErrorType
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.CorrelationID != "" {
		return fmt.Sprintf("%s error: %s (status: %d, correlation: %s)", e.kind, e.Message, e.Status, e.CorrelationID)
	}
	return fmt.Sprintf("%s error: %s (status: %d)", e.kind, e.Message, e.Status)
}

// Type returns the error category.
func (e *Error) Type() ErrorType {
	return e.kind
}

// NewConnectionError creates a status-0 error for transport failures.
func NewConnectionError(message, correlationID string) *Error {
	if message == "" {
		message = "could not connect to the server"
	}
	return &Error{Status: 0, Message: message, CorrelationID: correlationID, kind: ConnectionError}
}

// NewStatusError creates an error from a final HTTP status.
func NewStatusError(status int, message string, data any, correlationID string) *Error {
	return &Error{Status: status, Message: message, Data: data, CorrelationID: correlationID, kind: StatusError}
}

// NewEmptyResponseError flags a success status whose body carried no usable
// payload.
func NewEmptyResponseError(status int, correlationID string) *Error {
	return &Error{
		Status:        status,
		Message:       "no valid response received from the server",
		CorrelationID: correlationID,
		kind:          EmptyResponseError,
	}
}

// NewDecodeError flags a response body that could not be decoded.
func NewDecodeError(status int, data any, correlationID string, cause error) *Error {
	return &Error{
		Status:        status,
		Message:       fmt.Sprintf("failed to decode response body: %v", cause),
		Data:          data,
		CorrelationID: correlationID,
		kind:          DecodeError,
	}
}

// NewValidationError flags a request rejected before dispatch.
func NewValidationError(message string) *Error {
	return &Error{Message: message, kind: ValidationError}
}

// AsError extracts the structured error from err.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// IsErrorType checks if err is a structured error of the given category.
func IsErrorType(err error, t ErrorType) bool {
	if e, ok := AsError(err); ok {
		return e.Type() == t
	}
	return false
}

// IsStatus checks if err is a structured error with the given HTTP status.
func IsStatus(err error, status int) bool {
	if e, ok := AsError(err); ok {
		return e.Status == status
	}
	return false
}

// apiError is the wire shape of the server's error payloads.
type apiError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Err     string `json:"error"`
}

// errorFromResponse normalizes a terminal non-success response. The message
// comes from the body when the server sent one.
func errorFromResponse(resp *Response) *Error {
	message := fmt.Sprintf("request failed with status %d", resp.StatusCode)
	var data any
	if len(resp.Body) > 0 {
		data = string(resp.Body)
		var payload apiError
		if err := json.Unmarshal(resp.Body, &payload); err == nil {
			switch {
			case payload.Message != "":
				message = payload.Message
			case payload.Err != "":
				message = payload.Err
			}
		}
	}
	return NewStatusError(resp.StatusCode, message, data, resp.CorrelationID)
}
