// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package middleware_test

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/taskdeck/internal/model"
	"github.com/taibuivan/taskdeck/internal/platform/constants"
	"github.com/taibuivan/taskdeck/internal/platform/ctxutil"
	"github.com/taibuivan/taskdeck/internal/platform/middleware"
	"github.com/taibuivan/taskdeck/internal/platform/sec"
	"github.com/taibuivan/taskdeck/pkg/uuidv7"
)

type directory map[int64]model.Identity

func (d directory) Principal(userID int64) (*model.Identity, bool) {
	identity, ok := d[userID]
	return &identity, ok
}

func serve(handler http.Handler, request *http.Request) *httptest.ResponseRecorder {
	recorder := httptest.NewRecorder()
	handler.ServeHTTP(recorder, request)
	return recorder
}

func detail(t *testing.T, recorder *httptest.ResponseRecorder) string {
	t.Helper()
	var body map[string]string
	require.NoError(t, json.Unmarshal(recorder.Body.Bytes(), &body))
	return body["detail"]
}

/*
TestRequestID echoes UUIDs and replaces anything else.
*/
func TestRequestID(t *testing.T) {
	var seen string
	handler := middleware.RequestID()(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		seen = ctxutil.GetRequestID(request.Context())
	}))

	sent := uuidv7.New()
	request := httptest.NewRequest(http.MethodGet, "/", nil)
	request.Header.Set(constants.HeaderRequestID, sent)
	recorder := serve(handler, request)
	assert.Equal(t, sent, seen)
	assert.Equal(t, sent, recorder.Header().Get(constants.HeaderRequestID))

	request = httptest.NewRequest(http.MethodGet, "/", nil)
	request.Header.Set(constants.HeaderRequestID, "not a uuid\nforged=1")
	recorder = serve(handler, request)
	assert.True(t, uuidv7.Valid(seen))
	assert.Equal(t, seen, recorder.Header().Get(constants.HeaderRequestID))
}

/*
TestPanicRecovery answers 500 with a DRF-shaped body.
*/
func TestPanicRecovery(t *testing.T) {
	handler := middleware.StructuredLogger(slog.New(slog.DiscardHandler))(
		middleware.PanicRecovery()(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
			panic("boom")
		})),
	)

	recorder := serve(handler, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusInternalServerError, recorder.Code)
	assert.Equal(t, "A server error occurred.", detail(t, recorder))
}

/*
TestAuthenticate covers anonymous, valid, malformed and orphaned tokens.
*/
func TestAuthenticate(t *testing.T) {
	issuer := sec.NewTokenIssuer([]byte("test-signing-key"), "taskdeck-test")
	users := directory{1: {ID: 1, Username: "mia", Role: sec.RoleManager}}

	access, err := issuer.Issue(1, sec.TokenTypeAccess, time.Minute)
	require.NoError(t, err)
	refresh, err := issuer.Issue(1, sec.TokenTypeRefresh, time.Minute)
	require.NoError(t, err)
	orphan, err := issuer.Issue(99, sec.TokenTypeAccess, time.Minute)
	require.NoError(t, err)

	var principal *model.Identity
	handler := middleware.Authenticate(issuer, users)(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		principal = ctxutil.GetPrincipal(request.Context())
	}))

	tests := []struct {
		name     string
		header   string
		status   int
		username string
	}{
		{"anonymous", "", http.StatusOK, ""},
		{"valid", "Bearer " + access, http.StatusOK, "mia"},
		{"lowercase scheme", "bearer " + access, http.StatusOK, "mia"},
		{"missing token", "Bearer", http.StatusUnauthorized, ""},
		{"refresh token", "Bearer " + refresh, http.StatusUnauthorized, ""},
		{"unknown user", "Bearer " + orphan, http.StatusUnauthorized, ""},
		{"garbage", "Bearer abc.def.ghi", http.StatusUnauthorized, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			principal = nil

			request := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				request.Header.Set(constants.HeaderAuthorization, tt.header)
			}

			recorder := serve(handler, request)
			assert.Equal(t, tt.status, recorder.Code)
			if tt.username == "" {
				assert.Nil(t, principal)
			} else {
				require.NotNil(t, principal)
				assert.Equal(t, tt.username, principal.Username)
			}
		})
	}
}

/*
TestRequireRole separates 401 from 403.
*/
func TestRequireRole(t *testing.T) {
	handler := middleware.RequireRole(sec.RoleManager)(http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		writer.WriteHeader(http.StatusNoContent)
	}))

	as := func(identity *model.Identity) *http.Request {
		request := httptest.NewRequest(http.MethodGet, "/", nil)
		if identity != nil {
			request = request.WithContext(ctxutil.WithPrincipal(request.Context(), identity))
		}
		return request
	}

	recorder := serve(handler, as(nil))
	assert.Equal(t, http.StatusUnauthorized, recorder.Code)
	assert.Equal(t, "Authentication credentials were not provided.", detail(t, recorder))

	recorder = serve(handler, as(&model.Identity{ID: 2, Role: sec.RoleMember}))
	assert.Equal(t, http.StatusForbidden, recorder.Code)

	assert.Equal(t, http.StatusNoContent, serve(handler, as(&model.Identity{ID: 1, Role: sec.RoleManager})).Code)
	assert.Equal(t, http.StatusNoContent, serve(handler, as(&model.Identity{ID: 3, Role: sec.RoleAdmin})).Code)

	assert.Equal(t, http.StatusUnauthorized, serve(middleware.RequireAuth(handler), as(nil)).Code)
}
