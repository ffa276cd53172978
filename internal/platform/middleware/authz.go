// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package middleware

import (
	"net/http"
	"strings"

	"github.com/taibuivan/taskdeck/internal/model"
	"github.com/taibuivan/taskdeck/internal/platform/apperr"
	"github.com/taibuivan/taskdeck/internal/platform/ctxutil"
	"github.com/taibuivan/taskdeck/internal/platform/respond"
	"github.com/taibuivan/taskdeck/internal/platform/sec"
)

// TokenVerifier checks a bearer token. [*sec.TokenIssuer] satisfies it.
type TokenVerifier interface {
	Verify(tokenString, tokenType string) (*sec.AccessClaims, error)
}

// Directory resolves the account behind a verified token.
type Directory interface {
	Principal(userID int64) (*model.Identity, bool)
}

// invalidTokenMessage matches the message simplejwt sends for rejected tokens.
const invalidTokenMessage = "Given token not valid for any token type"

// Authenticate extracts and verifies the access token from the Authorization header.
//
// # Flow
//  1. Without an Authorization header the request proceeds as anonymous.
//  2. Otherwise the header must be "Bearer <token>" carrying a valid access token.
//  3. The token's account must still exist.
//  4. The resolved [*model.Identity] is stored in the context.
//
// Any failure in steps 2-3 answers 401.
func Authenticate(verifier TokenVerifier, directory Directory) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			authHeader := request.Header.Get("Authorization")

			// ── 1. Anonymous Access ───────────────────────────────────────────
			if authHeader == "" {
				next.ServeHTTP(writer, request)
				return
			}

			// ── 2. Format Validation ──────────────────────────────────────────
			scheme, token, found := strings.Cut(authHeader, " ")
			if !found || !strings.EqualFold(scheme, "bearer") || token == "" {
				respond.Error(writer, request, apperr.Unauthorized("Authorization header must contain two space-delimited values"))
				return
			}

			// ── 3. Token Verification ─────────────────────────────────────────
			claims, err := verifier.Verify(token, sec.TokenTypeAccess)
			if err != nil {
				respond.Error(writer, request, apperr.Unauthorized(invalidTokenMessage))
				return
			}

			principal, ok := directory.Principal(claims.UserID)
			if !ok {
				respond.Error(writer, request, apperr.Unauthorized("User not found"))
				return
			}

			// ── 4. Context Injection ──────────────────────────────────────────
			ctx := ctxutil.WithPrincipal(request.Context(), principal)
			next.ServeHTTP(writer, request.WithContext(ctx))
		})
	}
}

// RequireAuth blocks requests that are not authenticated.
//
// Must be registered in the router AFTER [Authenticate].
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		if ctxutil.GetPrincipal(request.Context()) == nil {
			respond.Error(writer, request, apperr.Unauthorized("Authentication credentials were not provided."))
			return
		}
		next.ServeHTTP(writer, request)
	})
}

// RequireRole blocks requests whose caller ranks below role. It implies
// [RequireAuth].
func RequireRole(role sec.UserRole) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
			principal := ctxutil.GetPrincipal(request.Context())

			// ── 1. Authentication Check ───────────────────────────────────────
			if principal == nil {
				respond.Error(writer, request, apperr.Unauthorized("Authentication credentials were not provided."))
				return
			}

			// ── 2. Authorization Check ────────────────────────────────────────
			if !principal.Role.AtLeast(role) {
				respond.Error(writer, request, apperr.Forbidden("You do not have permission to perform this action."))
				return
			}

			next.ServeHTTP(writer, request)
		})
	}
}
