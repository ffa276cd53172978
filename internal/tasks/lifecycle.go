// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package tasks

import (
	"fmt"
	"strings"

	"github.com/taibuivan/taskdeck/internal/model"
	"github.com/taibuivan/taskdeck/internal/platform/apperr"
)

// # Task Lifecycle
//
// Every status is reachable from every other one (TODO, IN_PROGRESS, COMPLETED) and none
// is terminal. Only the target is validated. Who may move a task is decided by
// the policy package, not here.

/*
CheckTransition validates moving a task from one status to another.

Every caller that changes a status goes through this function, so a stricter
transition table only needs to change here.

Parameters:
  - from: model.Status (current; may be empty for a new task)
  - to: model.Status (requested)

Returns:
  - error: VALIDATION_ERROR when to is not a legal status
*/
func CheckTransition(from, to model.Status) error {
	if !to.Valid() {
		return apperr.ValidationError("Invalid status", apperr.FieldError{
			Field:   "status",
			Message: fmt.Sprintf("%q is not a valid choice; expected one of %s", to, statusList()),
		})
	}
	return nil
}

// InitialStatus returns the status of a new task: TODO unless the creator
// requested another legal one.
func InitialStatus(requested *model.Status) (model.Status, error) {
	if requested == nil || *requested == "" {
		return model.StatusTodo, nil
	}
	if err := CheckTransition("", *requested); err != nil {
		return "", err
	}
	return *requested, nil
}

// ParseStatus accepts a status in any letter case, with "-" or " " in place of "_".
func ParseStatus(raw string) (model.Status, error) {
	normalized := strings.ToUpper(strings.TrimSpace(raw))
	normalized = strings.NewReplacer("-", "_", " ", "_").Replace(normalized)

	status := model.Status(normalized)
	if err := CheckTransition("", status); err != nil {
		return "", err
	}
	return status, nil
}

func statusList() string {
	names := make([]string, len(model.Statuses))
	for i, status := range model.Statuses {
		names[i] = string(status)
	}
	return strings.Join(names, ", ")
}
