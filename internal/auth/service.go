// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package auth implements the client side of the authentication lifecycle.

# Flow

  - Login: POST auth/login/, store both tokens, then fetch users/me/ and cache
    the identity.
  - Register: POST auth/register/; the service always creates a MEMBER.
  - Logout: best-effort revocation of the refresh token, then a local clear
    that happens whatever the revocation outcome.
*/
package auth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/taibuivan/taskdeck/internal/model"
	"github.com/taibuivan/taskdeck/internal/platform/apperr"
	"github.com/taibuivan/taskdeck/internal/platform/constants"
	"github.com/taibuivan/taskdeck/internal/platform/validate"
	"github.com/taibuivan/taskdeck/internal/session"
	"github.com/taibuivan/taskdeck/internal/transport"
)

// SessionStore is the part of the session store the auth flows mutate.
type SessionStore interface {
	AccessToken() string
	RefreshToken() string
	SetTokens(context context.Context, access, refresh string) error
	SetIdentity(context context.Context, identity *model.Identity) error
	ClearWithReason(context context.Context, reason string) (bool, error)
}

// Service implements the authentication use cases.
type Service struct {
	api     transport.API
	session SessionStore
	logger  *slog.Logger
}

// NewService constructs an auth [Service].
func NewService(api transport.API, store SessionStore, logger *slog.Logger) *Service {
	return &Service{
		api:     api,
		session: store,
		logger:  logger.With(slog.String("component", "auth")),
	}
}

// # Login Flow

/*
Login exchanges credentials for tokens and loads the profile.

Parameters:
  - ctx: context.Context
  - credentials: model.Credentials

Returns:
  - *model.Identity: The logged-in user's profile
  - error: VALIDATION_ERROR, UNAUTHORIZED or transport errors
*/
func (service *Service) Login(ctx context.Context, credentials model.Credentials) (*model.Identity, error) {
	v := &validate.Validator{}
	v.Required("username", credentials.Username).Required("password", credentials.Password)
	if err := v.Err(); err != nil {
		return nil, err
	}

	var tokens model.TokenPair
	if err := service.api.Post(ctx, constants.PathLogin, credentials, &tokens); err != nil {
		return nil, err
	}
	if tokens.Access == "" || tokens.Refresh == "" {
		return nil, apperr.Internal(errors.New("auth_login_failed: service returned no tokens"))
	}

	if err := service.session.SetTokens(ctx, tokens.Access, tokens.Refresh); err != nil {
		return nil, fmt.Errorf("auth_login_failed: %w", err)
	}

	identity, err := service.FetchProfile(ctx)
	if err != nil {
		return nil, err
	}

	service.logger.Info("logged in", slog.String("username", identity.Username), slog.String("role", string(identity.Role)))
	return identity, nil
}

// # Registration Flow

// Register creates a MEMBER account and returns it. It does not log in.
func (service *Service) Register(ctx context.Context, registration model.Registration) (*model.Identity, error) {
	v := &validate.Validator{}
	v.Required("username", registration.Username).
		Required("email", registration.Email).
		Email("email", registration.Email).
		Required("password", registration.Password)
	if err := v.Err(); err != nil {
		return nil, err
	}

	var created model.Identity
	if err := service.api.Post(ctx, constants.PathRegister, registration, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

// RegisterAndLogin registers an account and logs into it.
func (service *Service) RegisterAndLogin(ctx context.Context, registration model.Registration) (*model.Identity, error) {
	if _, err := service.Register(ctx, registration); err != nil {
		return nil, err
	}
	return service.Login(ctx, model.Credentials{Username: registration.Username, Password: registration.Password})
}

// # Profile

/*
FetchProfile reloads the identity from users/me/ and caches it.

Without an access token it does nothing and returns (nil, nil).
*/
func (service *Service) FetchProfile(ctx context.Context) (*model.Identity, error) {
	if service.session.AccessToken() == "" {
		return nil, nil
	}

	var identity model.Identity
	if err := service.api.Get(ctx, constants.PathProfile, nil, &identity); err != nil {
		return nil, err
	}

	if err := service.session.SetIdentity(ctx, &identity); err != nil {
		return nil, fmt.Errorf("auth_fetch_profile_failed: %w", err)
	}
	return &identity, nil
}

// # Logout

/*
Logout revokes the refresh token and clears the local session.

A failed revocation is logged and ignored; the local clear always runs.

Returns:
  - error: Only persistence failures of the local clear
*/
func (service *Service) Logout(ctx context.Context) error {
	if refresh := service.session.RefreshToken(); refresh != "" {
		body := map[string]string{"refresh": refresh}
		if err := service.api.Post(ctx, constants.PathLogout, body, nil); err != nil {
			service.logger.Warn("token revocation failed; clearing local session anyway", slog.Any("error", err))
		}
	}

	if _, err := service.session.ClearWithReason(context.WithoutCancel(ctx), session.ReasonLogout); err != nil {
		return fmt.Errorf("auth_logout_failed: %w", err)
	}
	return nil
}
