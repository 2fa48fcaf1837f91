package dto

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/healthbudget/backend/internal/domain/shared"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		code     string
		expected int
	}{
		{shared.CodeValidation, http.StatusBadRequest},
		{shared.CodeInvalidState, http.StatusUnprocessableEntity},
		{shared.CodeSchema, http.StatusUnprocessableEntity},
		{shared.CodeConflict, http.StatusConflict},
		{shared.CodeNotFound, http.StatusNotFound},
		{shared.CodeConcurrency, http.StatusConflict},
		{shared.CodeLockUnavailable, http.StatusServiceUnavailable},
		{ErrCodeInternal, http.StatusInternalServerError},
		{ErrCodeRequestTooLarge, http.StatusRequestEntityTooLarge},
		// Unknown code should return 500
		{"UNKNOWN_CODE", http.StatusInternalServerError},
		{"", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.expected, GetHTTPStatus(tt.code))
		})
	}
}

func TestNewErrorResponse(t *testing.T) {
	resp := NewErrorResponse(shared.CodeConflict, "plan exists", "req-1")

	body, err := json.Marshal(resp)
	require.NoError(t, err)
	assert.JSONEq(t, `{"success":false,"error":{"code":"CONFLICT","message":"plan exists","request_id":"req-1"}}`, string(body))
}

func TestNewValidationErrorResponse(t *testing.T) {
	resp := NewValidationErrorResponse("Request validation failed", "req-2", []ValidationDetail{
		{Field: "facility_id", Message: "This field is required"},
	})

	assert.False(t, resp.Success)
	assert.Equal(t, shared.CodeValidation, resp.Error.Code)
	require.Len(t, resp.Error.Details, 1)
	assert.Equal(t, "facility_id", resp.Error.Details[0].Field)
}

func TestNewPageResponse(t *testing.T) {
	t.Run("carries paging meta", func(t *testing.T) {
		resp := NewPageResponse(shared.NewPaginated([]string{"a", "b"}, 5, 1, 2))
		assert.True(t, resp.Success)
		assert.Equal(t, &Meta{Total: 5, Page: 1, PageSize: 2, TotalPages: 3}, resp.Meta)
	})

	t.Run("empty page encodes an empty list", func(t *testing.T) {
		body, err := json.Marshal(NewPageResponse(shared.NewPaginated[string](nil, 0, 1, 20)))
		require.NoError(t, err)
		assert.Contains(t, string(body), `"data":[]`)
	})
}
