package errors

import (
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"
)

// ErrorType represents the type of error
type ErrorType string

const (
	// Request errors
	ErrorTypeValidation   ErrorType = "VALIDATION"
	ErrorTypeNotFound     ErrorType = "NOT_FOUND"
	ErrorTypeConflict     ErrorType = "CONFLICT"
	ErrorTypeUnauthorized ErrorType = "UNAUTHORIZED"
	ErrorTypeForbidden    ErrorType = "FORBIDDEN"

	// Application errors
	ErrorTypeInternal    ErrorType = "INTERNAL"
	ErrorTypeUnavailable ErrorType = "UNAVAILABLE"

	// Thought graph errors
	ErrorTypeResolution  ErrorType = "RESOLUTION"
	ErrorTypePolicy      ErrorType = "POLICY"
	ErrorTypePersistence ErrorType = "PERSISTENCE"
	ErrorTypeRemote      ErrorType = "REMOTE"
	ErrorTypeIntegrity   ErrorType = "INTEGRITY"
)

// AppError represents an application-specific error
type AppError struct {
	Type       ErrorType              `json:"type"`
	Message    string                 `json:"message"`
	Code       string                 `json:"code,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Cause      error                  `json:"-"`
	StackTrace string                 `json:"-"`
	HTTPStatus int                    `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Type, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the underlying error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithCode adds an error code
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// WithDetails adds error details
func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	e.Details = details
	return e
}

// WithCause wraps an underlying error
func (e *AppError) WithCause(err error) *AppError {
	e.Cause = err
	return e
}

func newError(errType ErrorType, status int, message string) *AppError {
	return &AppError{
		Type:       errType,
		Message:    message,
		HTTPStatus: status,
		StackTrace: captureStackTrace(),
	}
}

// captureStackTrace records the callers of the exported constructor
func captureStackTrace() string {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(4, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])

	var b strings.Builder
	for {
		frame, more := frames.Next()
		fmt.Fprintf(&b, "%s:%d %s\n", frame.File, frame.Line, frame.Function)
		if !more {
			break
		}
	}
	return b.String()
}

// NewValidationError creates a validation error
func NewValidationError(message string) *AppError {
	return newError(ErrorTypeValidation, http.StatusBadRequest, message)
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string) *AppError {
	return newError(ErrorTypeNotFound, http.StatusNotFound, fmt.Sprintf("%s not found", resource))
}

// NewConflictError creates a conflict error
func NewConflictError(message string) *AppError {
	return newError(ErrorTypeConflict, http.StatusConflict, message)
}

// NewUnauthorizedError creates an unauthorized error
func NewUnauthorizedError(message string) *AppError {
	if message == "" {
		message = "unauthorized"
	}
	return newError(ErrorTypeUnauthorized, http.StatusUnauthorized, message)
}

// NewForbiddenError creates a forbidden error
func NewForbiddenError(message string) *AppError {
	if message == "" {
		message = "forbidden"
	}
	return newError(ErrorTypeForbidden, http.StatusForbidden, message)
}

// NewInternalError creates an internal error
func NewInternalError(message string) *AppError {
	return newError(ErrorTypeInternal, http.StatusInternalServerError, message)
}

// NewUnavailableError creates a service unavailable error
func NewUnavailableError(service string) *AppError {
	return newError(ErrorTypeUnavailable, http.StatusServiceUnavailable, fmt.Sprintf("service '%s' is unavailable", service))
}

// NewResolutionError creates an error for a path or context that cannot be resolved
func NewResolutionError(path string) *AppError {
	return newError(ErrorTypeResolution, http.StatusNotFound, fmt.Sprintf("path '%s' could not be resolved", path))
}

// NewPolicyError creates an error for an edit blocked by a meta attribute
func NewPolicyError(message string) *AppError {
	return newError(ErrorTypePolicy, http.StatusUnprocessableEntity, message)
}

// NewPersistenceError creates a local store error
func NewPersistenceError(operation string, err error) *AppError {
	e := newError(ErrorTypePersistence, http.StatusInternalServerError, fmt.Sprintf("local store operation '%s' failed", operation))
	e.Cause = err
	return e
}

// NewRemoteError creates a remote store error
func NewRemoteError(operation string, err error) *AppError {
	e := newError(ErrorTypeRemote, http.StatusBadGateway, fmt.Sprintf("remote store operation '%s' failed", operation))
	e.Cause = err
	return e
}

// NewIntegrityError creates an error for an entity with a missing or invalid key
func NewIntegrityError(message string) *AppError {
	return newError(ErrorTypeIntegrity, http.StatusInternalServerError, message)
}

// IsAppError checks if an error is an AppError
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// GetAppError extracts AppError from an error chain. A DomainError is converted: validation
// failures become 400s and broken graph rules 422s.
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		converted := NewValidationError(domainErr.Message).WithCode(domainErr.Code).WithDetails(domainErr.Details)
		if domainErr.Type == DomainBusinessRuleError {
			converted.Type = ErrorTypePolicy
			converted.HTTPStatus = http.StatusUnprocessableEntity
		}
		return converted
	}
	var validationErrs *ValidationErrors
	if errors.As(err, &validationErrs) {
		details := map[string]interface{}{"fields": validationErrs.ToMap()}
		return NewValidationError(validationErrs.Error()).WithDetails(details)
	}
	return nil
}

// IsType checks if an error is of a specific type
func IsType(err error, errType ErrorType) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Type == errType
}

// IsValidation checks if an error is a validation error
func IsValidation(err error) bool {
	return IsType(err, ErrorTypeValidation)
}

// IsResolution checks if an error is a resolution error
func IsResolution(err error) bool {
	return IsType(err, ErrorTypeResolution)
}

// IsPolicy checks if an error is a policy rejection
func IsPolicy(err error) bool {
	return IsType(err, ErrorTypePolicy)
}

// IsPersistence checks if an error is a local store error
func IsPersistence(err error) bool {
	return IsType(err, ErrorTypePersistence)
}

// IsRemote checks if an error is a remote store error
func IsRemote(err error) bool {
	return IsType(err, ErrorTypeRemote)
}

// IsIntegrity checks if an error is an integrity error
func IsIntegrity(err error) bool {
	return IsType(err, ErrorTypeIntegrity)
}
