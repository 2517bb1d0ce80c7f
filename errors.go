package clamd

import (
	"errors"
	"fmt"
)

// Error codes for machine-readable error classification.
const (
	CodeConnection      = "connection_error"
	CodeTimeout         = "timeout"
	CodeValidation      = "validation_error"
	CodeService         = "service_error"
	CodeMaxStreamSize   = "max_stream_size_exceeded"
	CodeUnknownResponse = "unknown_response"
)

// Error is the base error type for all SDK errors.
type Error struct {
	// Code is a machine-readable error code.
	Code string
	// Message is a human-readable error description.
	Message string
	// Limit is the configured stream size limit for CodeMaxStreamSize errors.
	Limit int64
	// Response is the raw daemon reply for CodeUnknownResponse and CodeService errors.
	Response string
	// Cause is the underlying error, if any.
	Cause error
}

// Error returns the human-readable error message.
func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause for use with errors.Is and errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// NewConnectionError creates an error indicating a connection failure.
func NewConnectionError(msg string, cause error) *Error {
	return &Error{
		Code:    CodeConnection,
		Message: msg,
		Cause:   cause,
	}
}

// NewTimeoutError creates an error indicating a timeout or cancellation.
func NewTimeoutError(msg string, cause error) *Error {
	return &Error{
		Code:    CodeTimeout,
		Message: msg,
		Cause:   cause,
	}
}

// NewValidationError creates an error indicating invalid input.
func NewValidationError(msg string, cause error) *Error {
	return &Error{
		Code:    CodeValidation,
		Message: msg,
		Cause:   cause,
	}
}

// NewServiceError creates an error indicating the daemon rejected a command.
func NewServiceError(msg string, response string) *Error {
	return &Error{
		Code:     CodeService,
		Message:  msg,
		Response: response,
	}
}

// NewMaxStreamSizeError creates an error indicating that an INSTREAM upload
// went past the configured maximum stream size.
func NewMaxStreamSizeError(limit int64) *Error {
	return &Error{
		Code:    CodeMaxStreamSize,
		Message: fmt.Sprintf("the maximum stream size of %d bytes has been exceeded", limit),
		Limit:   limit,
	}
}

// NewUnknownResponseError creates an error for a reply that could not be classified.
func NewUnknownResponseError(response string) *Error {
	return &Error{
		Code:     CodeUnknownResponse,
		Message:  fmt.Sprintf("unable to parse the server response: %q", response),
		Response: response,
	}
}

func hasCode(err error, code string) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// IsConnectionError reports whether err is or wraps a connection error.
func IsConnectionError(err error) bool {
	return hasCode(err, CodeConnection)
}

// IsTimeoutError reports whether err is or wraps a timeout error.
func IsTimeoutError(err error) bool {
	return hasCode(err, CodeTimeout)
}

// IsValidationError reports whether err is or wraps a validation error.
func IsValidationError(err error) bool {
	return hasCode(err, CodeValidation)
}

// IsServiceError reports whether err is or wraps a service error.
func IsServiceError(err error) bool {
	return hasCode(err, CodeService)
}

// IsMaxStreamSizeError reports whether err is or wraps a max stream size error.
func IsMaxStreamSizeError(err error) bool {
	return hasCode(err, CodeMaxStreamSize)
}

// IsUnknownResponseError reports whether err is or wraps an unknown response error.
func IsUnknownResponseError(err error) bool {
	return hasCode(err, CodeUnknownResponse)
}
