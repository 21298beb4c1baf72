package models

import "fmt"

type ErrorType string

const (
	// ErrorTypeValidation covers missing/unsupported input; surfaced
	// immediately, no model calls made.
	ErrorTypeValidation ErrorType = "validation"
	// ErrorTypeExternal covers an unavailable collaborator (inference,
	// redis, retrieval).
	ErrorTypeExternal ErrorType = "external"
	ErrorTypeInternal ErrorType = "internal"
	ErrorTypeTimeout  ErrorType = "timeout"
)

type AppError struct {
	Type     ErrorType              `json:"type"`
	Code     string                 `json:"code"`
	Message  string                 `json:"message"`
	Cause    error                  `json:"-"`
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s [%s]: %s: %v", e.Type, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s [%s]: %s", e.Type, e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Cause
}

func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

func (e *AppError) WithMetadata(key string, value interface{}) *AppError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

func NewValidationError(code, message string) *AppError {
	return &AppError{Type: ErrorTypeValidation, Code: code, Message: message}
}

func NewExternalError(code, message string) *AppError {
	return &AppError{Type: ErrorTypeExternal, Code: code, Message: message}
}

func NewInternalError(code, message string) *AppError {
	return &AppError{Type: ErrorTypeInternal, Code: code, Message: message}
}

func NewTimeoutError(code, message string) *AppError {
	return &AppError{Type: ErrorTypeTimeout, Code: code, Message: message}
}

func WrapExternalError(service string, err error) *AppError {
	return NewExternalError(service+"_UNAVAILABLE",
		fmt.Sprintf("%s call failed", service)).WithCause(err)
}

var ErrSessionNotFound = &AppError{
	Type:    ErrorTypeValidation,
	Code:    "SESSION_NOT_FOUND",
	Message: "session does not exist or has expired",
}

// IsValidation reports whether err is a validation-class AppError, used by
// the HTTP layer to pick a 4xx over a 5xx.
func IsValidation(err error) bool {
	appErr, ok := err.(*AppError)
	return ok && appErr.Type == ErrorTypeValidation
}
