package shared

import "errors"

// Error kinds surfaced by the budget engine
const (
	CodeValidation      = "VALIDATION_ERROR"
	CodeInvalidState    = "INVALID_STATE"
	CodeConflict        = "CONFLICT"
	CodeSchema          = "SCHEMA_ERROR"
	CodeNotFound        = "NOT_FOUND"
	CodeConcurrency     = "CONCURRENCY_CONFLICT"
	CodeLockUnavailable = "LOCK_UNAVAILABLE"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is reports whether target is a DomainError with the same code,
// so errors.Is(err, ErrNotFound) matches any not-found error.
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// NewValidationError reports malformed or out-of-range input
func NewValidationError(message string) *DomainError {
	return NewDomainError(CodeValidation, message)
}

// NewInvalidStateError reports an operation outside its legal lifecycle state
func NewInvalidStateError(message string) *DomainError {
	return NewDomainError(CodeInvalidState, message)
}

// NewConflictError reports a uniqueness violation
func NewConflictError(message string) *DomainError {
	return NewDomainError(CodeConflict, message)
}

// NewSchemaError reports a malformed execution tree template
func NewSchemaError(message string) *DomainError {
	return NewDomainError(CodeSchema, message)
}

// NewNotFoundError reports a missing resource
func NewNotFoundError(message string) *DomainError {
	return NewDomainError(CodeNotFound, message)
}

// ErrorCode extracts the domain error code from err, or "" if err carries none
func ErrorCode(err error) string {
	var de *DomainError
	if errors.As(err, &de) {
		return de.Code
	}
	return ""
}

// IsKind reports whether err (or anything it wraps) is a DomainError with the given code
func IsKind(err error, code string) bool {
	return ErrorCode(err) == code
}

// Common domain errors
var (
	ErrNotFound            = NewDomainError(CodeNotFound, "Resource not found")
	ErrAlreadyExists       = NewDomainError(CodeConflict, "Resource already exists")
	ErrInvalidInput        = NewDomainError(CodeValidation, "Invalid input provided")
	ErrConcurrencyConflict = NewDomainError(CodeConcurrency, "Resource was modified by another process")
	ErrInvalidState        = NewDomainError(CodeInvalidState, "Operation not allowed in current state")
	ErrLockUnavailable     = NewDomainError(CodeLockUnavailable, "Aggregate is locked by another operation")
)
