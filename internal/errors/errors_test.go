package errors

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMapErrorToHTTP(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"password mismatch", ErrPasswordMismatch, http.StatusBadRequest, "PASSWORD_MISMATCH"},
		{"invalid credentials", ErrInvalidCredentials, http.StatusBadRequest, "INVALID_CREDENTIALS"},
		{"wrapped validation", fmt.Errorf("%w: title is required", ErrValidation), http.StatusBadRequest, "VALIDATION_ERROR"},
		{"missing token", ErrMissingToken, http.StatusUnauthorized, "MISSING_TOKEN"},
		{"invalid token", fmt.Errorf("parse: %w", ErrInvalidToken), http.StatusUnauthorized, "INVALID_TOKEN"},
		{"task not found", ErrTaskNotFound, http.StatusNotFound, "TASK_NOT_FOUND"},
		{"user not found", ErrUserNotFound, http.StatusNotFound, "USER_NOT_FOUND"},
		{"duplicate email", ErrDuplicateEmail, http.StatusConflict, "DUPLICATE_EMAIL"},
		{"unknown", errors.New("connection refused"), http.StatusInternalServerError, "INTERNAL_ERROR"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			httpErr := MapErrorToHTTP(tt.err)
			assert.Equal(t, tt.wantStatus, httpErr.StatusCode)
			assert.Equal(t, tt.wantCode, httpErr.Code)
		})
	}
}

func TestMapErrorToHTTP_ValidationKeepsDetail(t *testing.T) {
	err := fmt.Errorf("%w: title is required", ErrValidation)
	assert.Equal(t, "validation failed: title is required", MapErrorToHTTP(err).Message)
}

func TestMapErrorToHTTP_InternalHidesDetail(t *testing.T) {
	resp := MapErrorToHTTP(errors.New("dial tcp 10.0.0.1:3306")).ToErrorResponse()
	assert.Equal(t, ErrorResponse{Error: "internal server error", Code: "INTERNAL_ERROR"}, resp)
}
