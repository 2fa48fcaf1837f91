package dto

import (
	"net/http"

	"github.com/healthbudget/backend/internal/domain/shared"
)

// Error codes owned by the HTTP layer. Domain codes pass through unchanged.
const (
	ErrCodeInternal        = "INTERNAL_ERROR"
	ErrCodeRequestTooLarge = "REQUEST_TOO_LARGE"
	ErrCodeRouteNotFound   = "ROUTE_NOT_FOUND"
	ErrCodeMethodNotAllow  = "METHOD_NOT_ALLOWED"
	ErrCodeUnavailable     = "SERVICE_UNAVAILABLE"
)

// ErrorCodeHTTPStatus maps error codes to HTTP status codes
var ErrorCodeHTTPStatus = map[string]int{
	shared.CodeValidation:      http.StatusBadRequest,
	shared.CodeInvalidState:    http.StatusUnprocessableEntity,
	shared.CodeSchema:          http.StatusUnprocessableEntity,
	shared.CodeConflict:        http.StatusConflict,
	shared.CodeNotFound:        http.StatusNotFound,
	shared.CodeConcurrency:     http.StatusConflict,
	shared.CodeLockUnavailable: http.StatusServiceUnavailable,

	ErrCodeInternal:        http.StatusInternalServerError,
	ErrCodeRequestTooLarge: http.StatusRequestEntityTooLarge,
	ErrCodeRouteNotFound:   http.StatusNotFound,
	ErrCodeMethodNotAllow:  http.StatusMethodNotAllowed,
	ErrCodeUnavailable:     http.StatusServiceUnavailable,
}

// GetHTTPStatus returns the HTTP status code for an error code.
// Unknown codes are internal errors.
func GetHTTPStatus(code string) int {
	if status, ok := ErrorCodeHTTPStatus[code]; ok {
		return status
	}
	return http.StatusInternalServerError
}
