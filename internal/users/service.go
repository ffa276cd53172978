// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package users implements user listing and management.

Two listing endpoints exist: users/ (admins) and users/options/ (managers and
admins, used to pick an assignee). Each has its own cache entry; every
successful user mutation invalidates the whole users kind.
*/
package users

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/taibuivan/taskdeck/internal/cache"
	"github.com/taibuivan/taskdeck/internal/model"
	"github.com/taibuivan/taskdeck/internal/platform/constants"
	"github.com/taibuivan/taskdeck/internal/platform/sec"
	"github.com/taibuivan/taskdeck/internal/platform/validate"
	"github.com/taibuivan/taskdeck/internal/policy"
	"github.com/taibuivan/taskdeck/internal/transport"
	"github.com/taibuivan/taskdeck/pkg/pointer"
	"github.com/taibuivan/taskdeck/pkg/query"
)

// Source selects the listing endpoint.
type Source string

const (
	// SourceAll lists every account (admins only on the service side).
	SourceAll Source = constants.PathUsers

	// SourceOptions lists assignable users for managers and admins.
	SourceOptions Source = constants.PathUserOptions
)

// Field limits enforced by the service.
const (
	usernameMaxLength = 150
)

// IdentitySource yields the current identity, or nil when anonymous.
type IdentitySource interface {
	Identity() *model.Identity
}

// Service implements the user use cases.
type Service struct {
	api      transport.API
	identity IdentitySource
	cache    *cache.Cache
	logger   *slog.Logger
}

// NewService constructs a users [Service].
func NewService(api transport.API, identity IdentitySource, entities *cache.Cache, logger *slog.Logger) *Service {
	return &Service{
		api:      api,
		identity: identity,
		cache:    entities,
		logger:   logger.With(slog.String("component", "users")),
	}
}

// DefaultSource picks the listing endpoint the current identity can read.
func (service *Service) DefaultSource() Source {
	if identity := service.identity.Identity(); identity != nil && identity.Role == sec.RoleAdmin {
		return SourceAll
	}
	return SourceOptions
}

/*
List returns the users exposed by source.

Parameters:
  - ctx: context.Context
  - source: Source (SourceAll or SourceOptions)

Returns:
  - []model.Identity: Shared with other readers; do not mutate
  - error: POLICY_DENIED or transport errors
*/
func (service *Service) List(ctx context.Context, source Source) ([]model.Identity, error) {
	if err := policy.Check(service.identity.Identity(), policy.ActionUserRead, nil); err != nil {
		return nil, err
	}
	if source != SourceAll && source != SourceOptions {
		return nil, validate.RequiredError("source", fmt.Sprintf("Unknown user listing %q", source))
	}

	key := cache.ListKey(constants.KindUsers, query.New().Set("endpoint", string(source)))
	return cache.Read(ctx, service.cache, key, func(ctx context.Context) ([]model.Identity, error) {
		var users []model.Identity
		if err := service.api.Get(ctx, string(source), nil, &users); err != nil {
			return nil, err
		}
		return users, nil
	})
}

// Create creates a user account.
func (service *Service) Create(ctx context.Context, input model.UserInput) (*model.Identity, error) {
	if err := policy.Check(service.identity.Identity(), policy.ActionUserCreate, nil); err != nil {
		return nil, err
	}

	v := &validate.Validator{}
	v.Required("username", pointer.Val(input.Username)).Required("email", pointer.Val(input.Email))
	if err := validateUser(v, input).Err(); err != nil {
		return nil, err
	}

	var created model.Identity
	if err := service.api.Post(ctx, constants.PathUsers, input, &created); err != nil {
		return nil, err
	}

	service.invalidate()
	return &created, nil
}

// Update partially updates a user account.
func (service *Service) Update(ctx context.Context, id int64, input model.UserInput) (*model.Identity, error) {
	if err := policy.Check(service.identity.Identity(), policy.ActionUserUpdate, nil); err != nil {
		return nil, err
	}

	v := &validate.Validator{}
	v.Custom("non_field_errors", input == (model.UserInput{}), "Nothing to update")
	if input.Username != nil {
		v.Required("username", *input.Username)
	}
	if err := validateUser(v, input).Err(); err != nil {
		return nil, err
	}

	var updated model.Identity
	if err := service.api.Patch(ctx, userPath(id), input, &updated); err != nil {
		return nil, err
	}

	service.invalidate()
	return &updated, nil
}

// Delete removes a user account.
func (service *Service) Delete(ctx context.Context, id int64) error {
	if err := policy.Check(service.identity.Identity(), policy.ActionUserDelete, nil); err != nil {
		return err
	}

	if err := service.api.Delete(ctx, userPath(id)); err != nil {
		return err
	}

	service.invalidate()
	return nil
}

// invalidate marks every users entry STALE. Tasks embed user snapshots, so
// they are refreshed too.
func (service *Service) invalidate() {
	service.cache.Invalidate(cache.MatchKind(constants.KindUsers, constants.KindTasks, constants.KindTask))
}

func validateUser(v *validate.Validator, input model.UserInput) *validate.Validator {
	if input.Username != nil {
		v.MaxLen("username", *input.Username, usernameMaxLength)
	}
	if input.Email != nil {
		v.Email("email", *input.Email)
	}
	if input.Role != nil {
		v.Custom("role", !input.Role.Valid(), "Select a valid role")
	}
	if input.Password != nil {
		v.Required("password", *input.Password)
	}
	return v
}

func userPath(id int64) string {
	return fmt.Sprintf("%s%d/", constants.PathUsers, id)
}
