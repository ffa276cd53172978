// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package tasks implements the task use cases of the client.

Reads go through the entity cache. Mutations follow one sequence:

 1. Consult the access policy (no request is sent on denial).
 2. Validate the payload locally.
 3. Send the request.
 4. After the service acknowledged it, invalidate the task collection and the
    affected task.
*/
package tasks

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/taibuivan/taskdeck/internal/cache"
	"github.com/taibuivan/taskdeck/internal/model"
	"github.com/taibuivan/taskdeck/internal/platform/constants"
	"github.com/taibuivan/taskdeck/internal/platform/validate"
	"github.com/taibuivan/taskdeck/internal/policy"
	"github.com/taibuivan/taskdeck/internal/transport"
	"github.com/taibuivan/taskdeck/pkg/query"
)

// IdentitySource yields the current identity, or nil when anonymous.
type IdentitySource interface {
	Identity() *model.Identity
}

// Service implements task reads and mutations.
type Service struct {
	api      transport.API
	identity IdentitySource
	cache    *cache.Cache
	logger   *slog.Logger
}

// NewService constructs a task [Service].
func NewService(api transport.API, identity IdentitySource, entities *cache.Cache, logger *slog.Logger) *Service {
	return &Service{
		api:      api,
		identity: identity,
		cache:    entities,
		logger:   logger.With(slog.String("component", "tasks")),
	}
}

// # Reads

/*
List returns the tasks matching filter.

Equivalent filters (differing only by empty fields, whitespace or Unicode
composition) share one cache entry.

Parameters:
  - ctx: context.Context
  - filter: model.TaskFilter

Returns:
  - []model.Task: Shared with other readers; do not mutate
  - error: POLICY_DENIED, VALIDATION_ERROR or transport errors
*/
func (service *Service) List(ctx context.Context, filter model.TaskFilter) ([]model.Task, error) {
	if err := policy.Check(service.identity.Identity(), policy.ActionTaskRead, nil); err != nil {
		return nil, err
	}
	if err := validateFilter(filter); err != nil {
		return nil, err
	}

	params := filter.Params()
	return cache.Read(ctx, service.cache, cache.ListKey(constants.KindTasks, params), func(ctx context.Context) ([]model.Task, error) {
		var tasks []model.Task
		if err := service.api.Get(ctx, constants.PathTasks, params.Values(), &tasks); err != nil {
			return nil, err
		}
		return tasks, nil
	})
}

// Get returns a single task.
func (service *Service) Get(ctx context.Context, id int64) (*model.Task, error) {
	if err := policy.Check(service.identity.Identity(), policy.ActionTaskRead, nil); err != nil {
		return nil, err
	}

	task, err := cache.Read(ctx, service.cache, cache.ItemKey(constants.KindTask, id), func(ctx context.Context) (model.Task, error) {
		var task model.Task
		err := service.api.Get(ctx, taskPath(id), nil, &task)
		return task, err
	})
	if err != nil {
		return nil, err
	}
	return &task, nil
}

// # Mutations

/*
Create creates a task. The status defaults to TODO and the priority to 2.

Parameters:
  - ctx: context.Context
  - input: model.TaskInput (title required)

Returns:
  - *model.Task: The created task as returned by the service
  - error: POLICY_DENIED, VALIDATION_ERROR or transport errors
*/
func (service *Service) Create(ctx context.Context, input model.TaskInput) (*model.Task, error) {
	if err := policy.Check(service.identity.Identity(), policy.ActionTaskCreate, nil); err != nil {
		return nil, err
	}

	status, err := InitialStatus(input.Status)
	if err != nil {
		return nil, err
	}
	input.Status = &status

	if input.Priority == nil {
		priority := model.PriorityDefault
		input.Priority = &priority
	}

	if input.Title == nil {
		empty := ""
		input.Title = &empty
	}

	if err := validateInput(input); err != nil {
		return nil, err
	}

	var created model.Task
	if err := service.api.Post(ctx, constants.PathTasks, input, &created); err != nil {
		return nil, err
	}

	service.invalidate(created.ID)
	service.logger.Debug("task created", slog.Int64("task_id", created.ID))
	return &created, nil
}

/*
Update partially updates a task (PATCH). Only the fields present in input
are sent.

Members cannot use Update; they change status through [Service.UpdateStatus].
*/
func (service *Service) Update(ctx context.Context, id int64, input model.TaskInput) (*model.Task, error) {
	return service.write(ctx, id, input, false)
}

// Replace fully updates a task (PUT). The title is required.
func (service *Service) Replace(ctx context.Context, id int64, input model.TaskInput) (*model.Task, error) {
	return service.write(ctx, id, input, true)
}

func (service *Service) write(ctx context.Context, id int64, input model.TaskInput, replace bool) (*model.Task, error) {
	if err := policy.Check(service.identity.Identity(), policy.ActionTaskUpdate, nil); err != nil {
		return nil, err
	}

	if replace && input.Title == nil {
		empty := ""
		input.Title = &empty
	}
	if len(input.Fields()) == 0 {
		return nil, validate.RequiredError("non_field_errors", "Nothing to update")
	}
	if input.Status != nil {
		if err := CheckTransition("", *input.Status); err != nil {
			return nil, err
		}
	}
	if err := validateInput(input); err != nil {
		return nil, err
	}

	var updated model.Task
	var err error
	if replace {
		err = service.api.Put(ctx, taskPath(id), input, &updated)
	} else {
		err = service.api.Patch(ctx, taskPath(id), input, &updated)
	}
	if err != nil {
		return nil, err
	}

	service.invalidate(id)
	return &updated, nil
}

/*
UpdateStatus moves task to another status.

The caller passes the task it is acting on, so the policy can check the
assignee without any request. A denied or invalid transition never reaches
the network.

Parameters:
  - ctx: context.Context
  - task: *model.Task (current state, as last read)
  - to: model.Status

Returns:
  - *model.Task: The updated task
  - error: POLICY_DENIED, VALIDATION_ERROR or transport errors
*/
func (service *Service) UpdateStatus(ctx context.Context, task *model.Task, to model.Status) (*model.Task, error) {
	if task == nil {
		return nil, validate.RequiredError("task", "A task is required")
	}
	if err := policy.Check(service.identity.Identity(), policy.ActionTaskUpdateStatus, task); err != nil {
		return nil, err
	}
	if err := CheckTransition(task.Status, to); err != nil {
		return nil, err
	}

	var updated model.Task
	if err := service.api.Patch(ctx, taskPath(task.ID), model.TaskInput{Status: &to}, &updated); err != nil {
		return nil, err
	}

	service.invalidate(task.ID)
	service.logger.Debug("task status changed",
		slog.Int64("task_id", task.ID),
		slog.String("from", string(task.Status)),
		slog.String("to", string(to)),
	)
	return &updated, nil
}

// Delete removes a task.
func (service *Service) Delete(ctx context.Context, id int64) error {
	if err := policy.Check(service.identity.Identity(), policy.ActionTaskDelete, nil); err != nil {
		return err
	}

	if err := service.api.Delete(ctx, taskPath(id)); err != nil {
		return err
	}

	service.invalidate(id)
	return nil
}

/*
Assign sets or clears the assignee of a task. The status is not touched.

Parameters:
  - ctx: context.Context
  - id: int64
  - userID: *int64 (nil unassigns)

Returns:
  - *model.Task: The updated task
  - error: POLICY_DENIED, VALIDATION_ERROR or transport errors
*/
func (service *Service) Assign(ctx context.Context, id int64, userID *int64) (*model.Task, error) {
	if err := policy.Check(service.identity.Identity(), policy.ActionTaskAssign, nil); err != nil {
		return nil, err
	}
	if userID != nil {
		if err := (&validate.Validator{}).Positive("user_id", *userID).Err(); err != nil {
			return nil, err
		}
	}

	var updated model.Task
	if err := service.api.Post(ctx, taskPath(id)+"assign/", model.AssignInput{UserID: userID}, &updated); err != nil {
		return nil, err
	}

	service.invalidate(id)
	return &updated, nil
}

// # Helpers

// invalidate marks the task collection and the task itself STALE.
func (service *Service) invalidate(id int64) {
	service.cache.Invalidate(cache.Any(
		cache.MatchKind(constants.KindTasks),
		cache.Exact(cache.ItemKey(constants.KindTask, id)),
	))
}

func taskPath(id int64) string {
	return fmt.Sprintf("%s%d/", constants.PathTasks, id)
}

// validateInput checks the fields present in input.
func validateInput(input model.TaskInput) error {
	v := &validate.Validator{}

	if input.Title != nil {
		v.Required("title", *input.Title).MaxLen("title", *input.Title, model.TitleMaxLength)
	}
	if input.Priority != nil {
		v.Range("priority", *input.Priority, model.PriorityMin, model.PriorityMax)
	}
	if input.DueDate != nil && *input.DueDate != "" {
		v.Custom("due_date", !isDate(*input.DueDate), "Must be a date in YYYY-MM-DD format")
	}
	if input.AssignedToID != nil {
		v.Positive("assigned_to_id", *input.AssignedToID)
	}

	return v.Err()
}

// validateFilter checks dates and ordering fields.
func validateFilter(filter model.TaskFilter) error {
	v := &validate.Validator{}

	if filter.Status != "" {
		v.Custom("status", !filter.Status.Valid(), "Select a valid choice")
	}
	if filter.DueBefore != "" {
		v.Custom("due_date__lt", !isDate(filter.DueBefore), "Must be a date in YYYY-MM-DD format")
	}
	if filter.DueAfter != "" {
		v.Custom("due_date__gt", !isDate(filter.DueAfter), "Must be a date in YYYY-MM-DD format")
	}
	for _, field := range query.StringSlice(filter.Ordering) {
		v.OneOf("ordering", strings.TrimPrefix(field, "-"), model.OrderingFields...)
	}

	return v.Err()
}

// dateLayout is the due_date format used by the service.
const dateLayout = "2006-01-02"

func isDate(value string) bool {
	_, err := time.Parse(dateLayout, value)
	return err == nil
}
