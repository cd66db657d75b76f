package services

import (
	"errors"
	"fmt"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeValidation     ErrorType = "validation"
	ErrorTypeAuthentication ErrorType = "authentication"
	ErrorTypeForbidden      ErrorType = "forbidden"
	ErrorTypeNotFound       ErrorType = "not_found"
	ErrorTypeDownstream     ErrorType = "downstream"
	ErrorTypeInternal       ErrorType = "internal"
)

// DomainError represents a structured error with additional context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type
}

// Retryable reports whether the caller may retry the same request later
func (e *DomainError) Retryable() bool {
	return e.Type == ErrorTypeDownstream
}

// WithDetail adds a detail to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

// Domain error variables. Compare with errors.Is, which matches on type only.

var (
	// Validation Errors
	ErrInvalidInput     = NewDomainError(ErrorTypeValidation, "invalid input", nil)
	ErrAppIDMismatch    = NewDomainError(ErrorTypeValidation, "app_id does not match the configured source app", nil)
	ErrInvalidTimestamp = NewDomainError(ErrorTypeValidation, "timestamp is not a valid ISO-8601 instant", nil)
	ErrInvalidPayload   = NewDomainError(ErrorTypeValidation, "payload does not match its event type", nil)

	// Authentication Errors
	ErrInvalidSignature = NewDomainError(ErrorTypeAuthentication, "invalid webhook signature", nil)
	ErrInvalidToken     = NewDomainError(ErrorTypeAuthentication, "invalid privacy token", nil)

	// Permission Errors
	ErrPIICollectionDisabled = NewDomainError(ErrorTypeForbidden, "PII collection is disabled", nil)
	ErrConsentRequired       = NewDomainError(ErrorTypeForbidden, "guest has not given consent", nil)
	ErrTokenPurposeMismatch  = NewDomainError(ErrorTypeForbidden, "token was not issued for this operation", nil)

	// Not Found Errors
	ErrGuestNotFound = NewDomainError(ErrorTypeNotFound, "guest not found", nil)

	// Downstream Errors
	ErrStorageUnavailable = NewDomainError(ErrorTypeDownstream, "event storage unavailable", nil)
	ErrStorageTimeout     = NewDomainError(ErrorTypeDownstream, "event storage timed out", nil)

	// Internal Errors
	ErrInternal          = NewDomainError(ErrorTypeInternal, "internal server error", nil)
	ErrTransactionFailed = NewDomainError(ErrorTypeInternal, "transaction failed", nil)
)

// Error type checking helper functions

func isType(err error, errType ErrorType) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type == errType
	}
	return false
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return isType(err, ErrorTypeValidation)
}

// IsAuthenticationError checks if an error is an authentication error
func IsAuthenticationError(err error) bool {
	return isType(err, ErrorTypeAuthentication)
}

// IsForbiddenError checks if an error is a forbidden error
func IsForbiddenError(err error) bool {
	return isType(err, ErrorTypeForbidden)
}

// IsNotFoundError checks if an error is a not found error
func IsNotFoundError(err error) bool {
	return isType(err, ErrorTypeNotFound)
}

// IsDownstreamError checks if an error is a retryable downstream failure
func IsDownstreamError(err error) bool {
	return isType(err, ErrorTypeDownstream)
}

// IsInternalError checks if an error is an internal error
func IsInternalError(err error) bool {
	return isType(err, ErrorTypeInternal)
}

// GetErrorType returns the ErrorType of a domain error, or empty string if not a domain error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

// GetErrorDetails returns the details map of a domain error, or nil if not a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

// WrapError wraps an error with additional context
func WrapError(errType ErrorType, message string, err error) error {
	return NewDomainError(errType, message, err)
}

// WrapInternal wraps an error as an internal error
func WrapInternal(message string, err error) error {
	return NewDomainError(ErrorTypeInternal, message, err)
}

// WrapDownstream wraps an error as a retryable downstream failure
func WrapDownstream(message string, err error) error {
	return NewDomainError(ErrorTypeDownstream, message, err)
}
