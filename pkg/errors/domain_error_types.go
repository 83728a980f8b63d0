package errors

import (
	"fmt"
	"strings"
)

// DomainErrorType represents the category of domain error
type DomainErrorType string

const (
	// DomainValidationError indicates input validation failure
	DomainValidationError DomainErrorType = "VALIDATION_ERROR"

	// DomainBusinessRuleError indicates a graph invariant would be violated
	DomainBusinessRuleError DomainErrorType = "BUSINESS_RULE_ERROR"
)

// DomainError represents a domain-specific error with rich context
type DomainError struct {
	Type    DomainErrorType        `json:"type"`
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// NewDomainError creates a new domain error
func NewDomainError(errorType DomainErrorType, code string, message string) *DomainError {
	return &DomainError{
		Type:    errorType,
		Code:    code,
		Message: message,
		Details: make(map[string]interface{}),
	}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("[%s:%s] %s: %v", e.Type, e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("[%s:%s] %s", e.Type, e.Code, e.Message)
}

// WithCause adds a cause to the error
func (e *DomainError) WithCause(cause error) *DomainError {
	e.Cause = cause
	return e
}

// WithDetail adds a detail to the error
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	e.Details[key] = value
	return e
}

// Is matches on type and code so callers can compare against the constructors below
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type && e.Code == t.Code
}

// Unwrap returns the underlying cause
func (e *DomainError) Unwrap() error {
	return e.Cause
}

// Thought errors. These are constructors rather than shared values so details never leak
// between callers.

// ErrValueTooLong reports a thought value over the configured limit
func ErrValueTooLong(actual, max int) *DomainError {
	return NewDomainError(DomainValidationError, "VALUE_TOO_LONG", "Thought value exceeds maximum length").
		WithDetail("field", "value").
		WithDetail("actual_length", actual).
		WithDetail("max_length", max)
}

// ErrInvalidRank reports a NaN or infinite rank
func ErrInvalidRank(rank float64) *DomainError {
	return NewDomainError(DomainValidationError, "INVALID_RANK", "Rank must be a finite number").
		WithDetail("field", "rank").
		WithDetail("rank", fmt.Sprint(rank))
}

// ErrReservedValue reports use of a reserved token as a thought value
func ErrReservedValue(value string) *DomainError {
	return NewDomainError(DomainValidationError, "RESERVED_VALUE", "Thought value is a reserved token").
		WithDetail("field", "value").
		WithDetail("value", value)
}

// ErrMoveIntoSelf reports a move whose destination lies inside the moved subtree
func ErrMoveIntoSelf(value string) *DomainError {
	return NewDomainError(DomainBusinessRuleError, "MOVE_INTO_SELF", "A thought cannot be moved into its own subtree").
		WithDetail("value", value)
}

// ValidationErrors aggregates multiple validation errors
type ValidationErrors struct {
	Errors []*DomainError `json:"errors"`
}

// NewValidationErrors creates a new validation errors collection
func NewValidationErrors() *ValidationErrors {
	return &ValidationErrors{
		Errors: make([]*DomainError, 0),
	}
}

// Add adds a validation error
func (v *ValidationErrors) Add(field string, message string) {
	err := NewDomainError(DomainValidationError, "FIELD_VALIDATION_ERROR", message).
		WithDetail("field", field)
	v.Errors = append(v.Errors, err)
}

// AddError adds a pre-existing domain error
func (v *ValidationErrors) AddError(err *DomainError) {
	v.Errors = append(v.Errors, err)
}

// HasErrors returns true if there are validation errors
func (v *ValidationErrors) HasErrors() bool {
	return len(v.Errors) > 0
}

// Error implements the error interface
func (v *ValidationErrors) Error() string {
	if len(v.Errors) == 0 {
		return ""
	}

	messages := make([]string, len(v.Errors))
	for i, err := range v.Errors {
		messages[i] = err.Message
	}
	return fmt.Sprintf("Validation failed: %s", strings.Join(messages, "; "))
}

// ToMap converts validation errors to a map for JSON serialization
func (v *ValidationErrors) ToMap() map[string][]string {
	result := make(map[string][]string)

	for _, err := range v.Errors {
		field, ok := err.Details["field"].(string)
		if !ok {
			field = "general"
		}
		result[field] = append(result[field], err.Message)
	}

	return result
}
