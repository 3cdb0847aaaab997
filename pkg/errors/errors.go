package errors

import (
	"errors"
	"fmt"
)

// ErrorType represents the failure classes the pipeline distinguishes
type ErrorType string

const (
	// ErrorTypeInteraction covers missing controls, navigation timeouts and
	// other browser interaction failures. They end the current cycle or workflow.
	ErrorTypeInteraction ErrorType = "interaction"
	// ErrorTypeMalformed covers unparseable references. They are skipped per item.
	ErrorTypeMalformed ErrorType = "malformed"
	// ErrorTypeTransport covers non-200 responses and network errors.
	ErrorTypeTransport ErrorType = "transport"
	// ErrorTypeStructural covers programmer-visible errors such as an
	// uninitialized collaborator. These propagate.
	ErrorTypeStructural ErrorType = "structural"
	ErrorTypeUnknown    ErrorType = "unknown"
)

// Error represents a classified pipeline error
type Error struct {
	Type    ErrorType
	Message string
	Code    int
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	if e.Code != 0 {
		return fmt.Sprintf("%s error (code %d): %s", e.Type, e.Code, msg)
	}
	return fmt.Sprintf("%s error: %s", e.Type, msg)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// New creates an error of the given type
func New(errorType ErrorType, message string) *Error {
	return &Error{Type: errorType, Message: message}
}

// Wrap classifies err under the given type
func Wrap(errorType ErrorType, err error, message string) *Error {
	return &Error{Type: errorType, Message: message, Err: err}
}

// Interaction wraps a browser interaction failure
func Interaction(err error, message string) *Error {
	return Wrap(ErrorTypeInteraction, err, message)
}

// Malformed reports a reference that could not be parsed
func Malformed(message string) *Error {
	return New(ErrorTypeMalformed, message)
}

// Transport reports a fetch failure. Code is the HTTP status, or 0 for
// network errors.
func Transport(code int, err error, message string) *Error {
	return &Error{Type: ErrorTypeTransport, Message: message, Code: code, Err: err}
}

// Structural reports an error no caller can recover from
func Structural(message string) *Error {
	return New(ErrorTypeStructural, message)
}

// TypeOf returns the type of the first classified error in err's chain
func TypeOf(err error) ErrorType {
	var e *Error
	if errors.As(err, &e) {
		return e.Type
	}
	return ErrorTypeUnknown
}

// IsType reports whether err is classified as errorType
func IsType(err error, errorType ErrorType) bool {
	return err != nil && TypeOf(err) == errorType
}

// StatusCode returns the HTTP status carried by a transport error, or 0
func StatusCode(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return 0
}

// Propagates reports whether an error must be returned to the caller rather
// than absorbed as a degraded result.
func Propagates(err error) bool {
	return IsType(err, ErrorTypeStructural)
}
