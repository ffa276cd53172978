// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Package respond provides HTTP response helpers for the in-memory task service.
//
// # Architecture
//
// The real service is a Django REST Framework application, so bodies are
// written without an envelope: resources and lists are encoded as-is, and
// errors take one of the two DRF shapes that [apperr.FromResponse] parses:
//
//	{"detail": "Not found."}
//	{"title": ["This field is required."], "non_field_errors": ["..."]}
package respond

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/taibuivan/taskdeck/internal/platform/apperr"
	"github.com/taibuivan/taskdeck/internal/platform/ctxutil"
)

// fieldMessage is the generic message [validate.Validator] attaches to field errors.
const fieldMessage = "Validation failed"

// JSON writes a JSON response with the given status code.
func JSON(writer http.ResponseWriter, statusCode int, payload any) {
	writer.Header().Set("Content-Type", "application/json; charset=utf-8")
	writer.WriteHeader(statusCode)
	_ = json.NewEncoder(writer).Encode(payload)
}

// OK writes a 200 OK response with the resource as the body.
func OK(writer http.ResponseWriter, data any) {
	JSON(writer, http.StatusOK, data)
}

// Created writes a 201 Created response with the resource as the body.
func Created(writer http.ResponseWriter, data any) {
	JSON(writer, http.StatusCreated, data)
}

// NoContent writes a 204 No Content response.
func NoContent(writer http.ResponseWriter) {
	writer.WriteHeader(http.StatusNoContent)
}

// Error converts any Go error into a DRF-shaped error response.
func Error(writer http.ResponseWriter, request *http.Request, err error) {
	logger := ctxutil.GetLogger(request.Context())

	var appError *apperr.AppError
	if !errors.As(err, &appError) {
		logger.ErrorContext(request.Context(), "unhandled_error_swallowed",
			slog.String("error", err.Error()),
			slog.String("request_id", ctxutil.GetRequestID(request.Context())),
		)
		appError = apperr.Internal(err)
	}

	status := appError.HTTPStatus
	if status == 0 {
		status = http.StatusInternalServerError
	}

	if status >= 500 {
		logger.ErrorContext(request.Context(), "api_server_error",
			slog.String("code", appError.Code),
			slog.String("request_id", ctxutil.GetRequestID(request.Context())),
			slog.Any("cause", appError.Cause),
		)
	}

	JSON(writer, status, Body(appError))
}

/*
Body renders an [apperr.AppError] as a DRF error body.

Field details become one list per field. A message other than the generic
validation message is kept under "non_field_errors" when details exist, and
under "detail" otherwise.
*/
func Body(appError *apperr.AppError) map[string]any {
	if len(appError.Details) == 0 {
		return map[string]any{"detail": appError.Message}
	}

	body := make(map[string]any, len(appError.Details)+1)
	for _, detail := range appError.Details {
		messages, _ := body[detail.Field].([]string)
		body[detail.Field] = append(messages, detail.Message)
	}
	if appError.Message != "" && appError.Message != fieldMessage {
		body["non_field_errors"] = []string{appError.Message}
	}
	return body
}
