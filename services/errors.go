package services

import (
	"errors"
	"fmt"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeBadRequest   ErrorType = "bad_request"
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeUnauthorized ErrorType = "unauthorized"
	ErrorTypeForbidden    ErrorType = "forbidden"
	ErrorTypeUnavailable  ErrorType = "unavailable"
	ErrorTypeRateLimit    ErrorType = "rate_limit"
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeConflict     ErrorType = "conflict"
	ErrorTypeInternal     ErrorType = "internal"
)

// DomainError represents a structured error with additional context.
// Details carry the machine-checkable tags collaborating UIs branch on
// (timeout, status, retryAfter).
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

// WithDetail adds a detail to a copy of the error, leaving the sentinel
// untouched
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	details := make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	return &DomainError{Type: e.Type, Message: e.Message, Err: e.Err, Details: details}
}

// WithMessage returns a copy of the error carrying an operator-supplied
// message, e.g. the suspension note shown for an inactive tenant.
func (e *DomainError) WithMessage(message string) *DomainError {
	return &DomainError{Type: e.Type, Message: message, Err: e.Err, Details: e.Details}
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
	}
}

// Pipeline rejection sentinels. Each stage resolves exactly one of these
// and terminates the request; there is no aggregation.
var (
	ErrMissingSlug    = NewDomainError(ErrorTypeBadRequest, "tenant identifier missing from route", nil)
	ErrTenantNotFound = NewDomainError(ErrorTypeNotFound, "tenant not found", nil)
	ErrTenantInactive = NewDomainError(ErrorTypeForbidden, "tenant is inactive", nil).WithDetail("status", "inactive")
	ErrMaintenance    = NewDomainError(ErrorTypeUnavailable, "platform is in maintenance mode", nil).WithDetail("status", "maintenance")

	ErrMissingCredential = NewDomainError(ErrorTypeUnauthorized, "authentication required", nil)
	ErrInvalidCredential = NewDomainError(ErrorTypeUnauthorized, "invalid credential", nil)
	ErrSessionTimeout    = NewDomainError(ErrorTypeUnauthorized, "session expired", nil).WithDetail("timeout", true)

	ErrCrossTenant    = NewDomainError(ErrorTypeForbidden, "credential not valid for this tenant", nil)
	ErrMissingRole    = NewDomainError(ErrorTypeForbidden, "insufficient role", nil)
	ErrMissingPerm    = NewDomainError(ErrorTypeForbidden, "insufficient permissions", nil)
	ErrModuleDisabled = NewDomainError(ErrorTypeForbidden, "module not enabled for tenant", nil).WithDetail("status", "module_disabled")

	ErrRateLimited = NewDomainError(ErrorTypeRateLimit, "rate limit exceeded", nil)
)

// Provisioning errors
var (
	ErrSlugTaken      = NewDomainError(ErrorTypeConflict, "tenant slug already exists", nil)
	ErrInvalidInput   = NewDomainError(ErrorTypeValidation, "invalid input", nil)
	ErrSettingUnknown = NewDomainError(ErrorTypeValidation, "unknown setting key", nil)
)

// IsNotFoundError checks if an error is a not found error
func IsNotFoundError(err error) bool {
	return GetErrorType(err) == ErrorTypeNotFound
}

// IsUnauthorizedError checks if an error is an unauthorized error
func IsUnauthorizedError(err error) bool {
	return GetErrorType(err) == ErrorTypeUnauthorized
}

// IsForbiddenError checks if an error is a forbidden error
func IsForbiddenError(err error) bool {
	return GetErrorType(err) == ErrorTypeForbidden
}

// IsRateLimitError checks if an error is a rate limit error
func IsRateLimitError(err error) bool {
	return GetErrorType(err) == ErrorTypeRateLimit
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return GetErrorType(err) == ErrorTypeValidation
}

// IsConflictError checks if an error is a conflict error
func IsConflictError(err error) bool {
	return GetErrorType(err) == ErrorTypeConflict
}

// GetErrorType returns the ErrorType of a domain error, or empty string if
// not a domain error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

// GetErrorDetails returns the details map of a domain error, or nil if not
// a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

// WrapInternal wraps an error as an internal error
func WrapInternal(message string, err error) error {
	return NewDomainError(ErrorTypeInternal, message, err)
}
