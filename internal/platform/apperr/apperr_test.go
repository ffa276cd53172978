// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package apperr_test

import (
	"errors"
	"fmt"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/taskdeck/internal/platform/apperr"
)

/*
TestFromResponse_StatusMapping verifies that every status class maps to its error code.
*/
func TestFromResponse_StatusMapping(t *testing.T) {
	tests := []struct {
		name   string
		status int
		code   string
	}{
		{"unauthorized", http.StatusUnauthorized, apperr.CodeUnauthorized},
		{"forbidden", http.StatusForbidden, apperr.CodeForbidden},
		{"not_found", http.StatusNotFound, apperr.CodeNotFound},
		{"conflict", http.StatusConflict, apperr.CodeConflict},
		{"bad_request", http.StatusBadRequest, apperr.CodeValidation},
		{"unprocessable", http.StatusUnprocessableEntity, apperr.CodeValidation},
		{"teapot", http.StatusTeapot, apperr.CodeRequestFailed},
		{"server", http.StatusBadGateway, apperr.CodeServer},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := apperr.FromResponse(tt.status, nil)
			assert.Equal(t, tt.code, err.Code)
			assert.Equal(t, tt.status, err.HTTPStatus)
			assert.NotEmpty(t, err.Message)
		})
	}
}

/*
TestFromResponse_DetailBody checks the {"detail": "..."} shape.
*/
func TestFromResponse_DetailBody(t *testing.T) {
	err := apperr.FromResponse(http.StatusForbidden, []byte(`{"detail":"Members cannot delete tasks."}`))

	assert.Equal(t, apperr.CodeForbidden, err.Code)
	assert.Equal(t, "Members cannot delete tasks.", err.Message)
	assert.Empty(t, err.Details)
}

/*
TestFromResponse_FieldErrors checks that per-field lists become sorted details.
*/
func TestFromResponse_FieldErrors(t *testing.T) {
	body := []byte(`{"status":["\"DONE\" is not a valid choice."],"priority":["Priority must be between 1 and 5."]}`)
	err := apperr.FromResponse(http.StatusBadRequest, body)

	require.Equal(t, apperr.CodeValidation, err.Code)
	assert.Equal(t, "Validation failed", err.Message)
	require.Len(t, err.Details, 2)
	assert.Equal(t, "priority", err.Details[0].Field)
	assert.Equal(t, "status", err.Details[1].Field)
	assert.Equal(t, `"DONE" is not a valid choice.`, err.Details[1].Message)
}

/*
TestFromResponse_NonFieldErrors checks that non_field_errors join the message.
*/
func TestFromResponse_NonFieldErrors(t *testing.T) {
	err := apperr.FromResponse(http.StatusBadRequest, []byte(`{"non_field_errors":["Invalid username or password."]}`))

	assert.Equal(t, "Invalid username or password.", err.Message)
	assert.Empty(t, err.Details)
}

/*
TestFromResponse_NonJSON keeps the default message when the body is not JSON.
*/
func TestFromResponse_NonJSON(t *testing.T) {
	err := apperr.FromResponse(http.StatusInternalServerError, []byte("<html>oops</html>"))

	assert.Equal(t, apperr.CodeServer, err.Code)
	assert.Equal(t, "The task service failed", err.Message)
}

/*
TestHelpers verifies the chain helpers work through wrapping.
*/
func TestHelpers(t *testing.T) {
	cause := errors.New("dial tcp: refused")
	wrapped := fmt.Errorf("tasks_list_failed: %w", apperr.Network(cause))

	assert.True(t, apperr.IsAppError(wrapped))
	assert.True(t, apperr.IsCode(wrapped, apperr.CodeNetwork))
	assert.False(t, apperr.IsUnauthorized(wrapped))
	assert.ErrorIs(t, wrapped, cause)

	assert.True(t, apperr.IsUnauthorized(apperr.Unauthorized("expired")))
	assert.Nil(t, apperr.As(errors.New("plain")))
	assert.Equal(t, apperr.CodePolicyDenied, apperr.As(apperr.PolicyDenied("no")).Code)
}
