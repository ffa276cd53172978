// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package apperr defines the centralized error handling framework for the Taskdeck client.

It provides a rich error type that bridges the gap between raw HTTP responses from the
task service and the error classes the rest of the client reasons about.

Architecture:

  - AppError: A struct containing machine-readable Code and a human-readable message.
  - Mapping: Explicit mapping from remote HTTP status codes to error classes.
  - Parsing: Django-REST style error bodies are flattened into field-level details.

Every error that leaves the transport layer is an [AppError], so callers can branch on
[AppError.Code] without inspecting status codes themselves.
*/
package apperr

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"sort"
	"strings"
)

// # Error Codes

const (
	CodeUnauthorized  = "UNAUTHORIZED"
	CodeForbidden     = "FORBIDDEN"
	CodePolicyDenied  = "POLICY_DENIED"
	CodeNotFound      = "NOT_FOUND"
	CodeConflict      = "CONFLICT"
	CodeValidation    = "VALIDATION_ERROR"
	CodeRequestFailed = "REQUEST_FAILED"
	CodeServer        = "SERVER_ERROR"
	CodeNetwork       = "NETWORK_ERROR"
	CodeInternal      = "INTERNAL_ERROR"
)

// AppError is the canonical error type for the Taskdeck client.
//
// It carries the remote HTTP status code (zero for client-side failures), a
// machine-readable code, a display-safe message, and an optional slice of
// field-level validation errors.
type AppError struct {
	// Code is a machine-readable error identifier (e.g. "NOT_FOUND", "VALIDATION_ERROR").
	Code string `json:"code"`
	// Message is a human-readable description safe to show to the user.
	Message string `json:"error"`
	// HTTPStatus is the status code returned by the remote service, if any.
	HTTPStatus int `json:"-"`
	// Cause is the underlying error, kept for logging.
	Cause error `json:"-"`
	// Details holds per-field validation errors for VALIDATION_ERROR responses.
	Details []FieldError `json:"details,omitempty"`
}

// FieldError represents a single field-level validation failure.
type FieldError struct {
	// Field is the JSON field name that failed validation.
	Field string `json:"field"`
	// Message is the human-readable description of the failure.
	Message string `json:"message"`
}

// Error implements the error interface. It returns the display-safe message.
func (e *AppError) Error() string { return e.Message }

// Unwrap allows [errors.Is] and [errors.As] to traverse the cause chain.
func (e *AppError) Unwrap() error { return e.Cause }

// # Remote Errors (4xx)

// Unauthorized creates a 401 [AppError]. The transport clears the session before returning it.
func Unauthorized(msg string) *AppError {
	return &AppError{
		Code:       CodeUnauthorized,
		Message:    msg,
		HTTPStatus: http.StatusUnauthorized,
	}
}

// Forbidden creates a 403 [AppError] returned by the remote service.
func Forbidden(msg string) *AppError {
	return &AppError{
		Code:       CodeForbidden,
		Message:    msg,
		HTTPStatus: http.StatusForbidden,
	}
}

// NotFound creates a 404 [AppError] for a named resource.
//
// Example:
//
//	apperr.NotFound("Task") // Returns "Task not found"
func NotFound(resource string) *AppError {
	return &AppError{
		Code:       CodeNotFound,
		Message:    resource + " not found",
		HTTPStatus: http.StatusNotFound,
	}
}

// Conflict creates a 409 [AppError] for duplicate or unique-constraint violations.
func Conflict(msg string) *AppError {
	return &AppError{
		Code:       CodeConflict,
		Message:    msg,
		HTTPStatus: http.StatusConflict,
	}
}

// ValidationError creates a 400 [AppError] with optional per-field details.
//
// It is also used for client-side validation, in which case nothing was sent.
func ValidationError(msg string, details ...FieldError) *AppError {
	return &AppError{
		Code:       CodeValidation,
		Message:    msg,
		HTTPStatus: http.StatusBadRequest,
		Details:    details,
	}
}

// # Client-side Errors

// PolicyDenied creates an [AppError] for an action the access policy refused.
// The request never reaches the network.
func PolicyDenied(reason string) *AppError {
	return &AppError{
		Code:       CodePolicyDenied,
		Message:    reason,
		HTTPStatus: http.StatusForbidden,
	}
}

// Network wraps a transport-level failure (DNS, refused connection, timeout).
func Network(cause error) *AppError {
	return &AppError{
		Code:    CodeNetwork,
		Message: "The task service could not be reached",
		Cause:   cause,
	}
}

// Internal wraps an unexpected client-side failure (encoding, persistence).
func Internal(cause error) *AppError {
	return &AppError{
		Code:    CodeInternal,
		Message: "An unexpected error occurred",
		Cause:   cause,
	}
}

// # Response Mapping

/*
FromResponse converts a non-2xx response into an [AppError].

Description: The task service speaks Django REST Framework, whose error bodies
come in two shapes: {"detail": "..."} for general failures, and
{"field": ["msg", ...], "non_field_errors": [...]} for validation failures.
Both are flattened into Message and Details.

Parameters:
  - status: int (HTTP status code)
  - body: []byte (raw response body, may be empty or non-JSON)

Returns:
  - *AppError: Never nil
*/
func FromResponse(status int, body []byte) *AppError {
	message, details := parseBody(body)

	var appError *AppError
	switch {
	case status == http.StatusUnauthorized:
		appError = Unauthorized(fallback(message, "Authentication required"))
	case status == http.StatusForbidden:
		appError = Forbidden(fallback(message, "You do not have permission to perform this action"))
	case status == http.StatusNotFound:
		appError = &AppError{Code: CodeNotFound, Message: fallback(message, "Not found"), HTTPStatus: status}
	case status == http.StatusConflict:
		appError = Conflict(fallback(message, "Conflict"))
	case status == http.StatusBadRequest || status == http.StatusUnprocessableEntity:
		appError = ValidationError(fallback(message, "Validation failed"), details...)
		appError.HTTPStatus = status
	case status >= 500:
		appError = &AppError{Code: CodeServer, Message: fallback(message, "The task service failed"), HTTPStatus: status}
	default:
		appError = &AppError{Code: CodeRequestFailed, Message: fallback(message, fmt.Sprintf("Request failed with status %d", status)), HTTPStatus: status}
	}

	return appError
}

// parseBody extracts a message and field details from a DRF error body.
func parseBody(body []byte) (string, []FieldError) {
	if len(body) == 0 {
		return "", nil
	}

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(body, &raw); err != nil {
		// A JSON array of messages is also legal for non-field errors.
		var list []string
		if json.Unmarshal(body, &list) == nil && len(list) > 0 {
			return strings.Join(list, " "), nil
		}
		return "", nil
	}

	var message string
	if detail, ok := raw["detail"]; ok {
		message = messagesOf(detail)
		delete(raw, "detail")
	}
	if nonField, ok := raw["non_field_errors"]; ok {
		message = strings.TrimSpace(message + " " + messagesOf(nonField))
		delete(raw, "non_field_errors")
	}

	// Stable ordering keeps error output deterministic.
	fields := make([]string, 0, len(raw))
	for field := range raw {
		fields = append(fields, field)
	}
	sort.Strings(fields)

	details := make([]FieldError, 0, len(fields))
	for _, field := range fields {
		if text := messagesOf(raw[field]); text != "" {
			details = append(details, FieldError{Field: field, Message: text})
		}
	}

	if message == "" && len(details) > 0 {
		message = "Validation failed"
	}
	return message, details
}

// messagesOf renders a DRF error value (string or list of strings) as one line.
func messagesOf(value json.RawMessage) string {
	var single string
	if json.Unmarshal(value, &single) == nil {
		return single
	}
	var list []string
	if json.Unmarshal(value, &list) == nil {
		return strings.Join(list, " ")
	}
	return ""
}

func fallback(message, defaultMessage string) string {
	if message == "" {
		return defaultMessage
	}
	return message
}

// # Helpers

// IsAppError reports whether err (or any error in its chain) is an [*AppError].
func IsAppError(err error) bool {
	var ae *AppError
	return errors.As(err, &ae)
}

// As extracts the [*AppError] from err's chain. It returns nil if not found.
func As(err error) *AppError {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae
	}
	return nil
}

// IsCode reports whether err carries an [*AppError] with the given code.
func IsCode(err error, code string) bool {
	ae := As(err)
	return ae != nil && ae.Code == code
}

// IsUnauthorized reports whether err is an authentication failure.
func IsUnauthorized(err error) bool {
	return IsCode(err, CodeUnauthorized)
}
