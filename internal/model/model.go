// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package model holds the entities exchanged with the remote task service.

The types mirror the JSON contract of the service and carry no behaviour
beyond small helpers, so every other package can depend on them without
creating import cycles.

# Architecture

  - Entities: Identity, Task.
  - Payloads: Credentials, Registration, TaskInput, UserInput.
  - Filters: TaskFilter, encoded through pkg/query.
*/
package model

import (
	"net/url"
	"strconv"
	"time"

	"github.com/taibuivan/taskdeck/internal/platform/sec"
	"github.com/taibuivan/taskdeck/pkg/query"
)

// # Identity

// Identity is the authenticated user's profile as returned by users/me/.
type Identity struct {
	ID       int64        `json:"id"`
	Username string       `json:"username"`
	Email    string       `json:"email"`
	Role     sec.UserRole `json:"role"`
}

// # Task

// Status is the lifecycle state of a task.
type Status string

const (
	StatusTodo       Status = "TODO"
	StatusInProgress Status = "IN_PROGRESS"
	StatusCompleted  Status = "COMPLETED"
)

// Statuses lists every legal status in display order.
var Statuses = []Status{StatusTodo, StatusInProgress, StatusCompleted}

// Valid reports whether s is one of the legal statuses.
func (s Status) Valid() bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusCompleted:
		return true
	}
	return false
}

// Priority bounds accepted by the service.
const (
	PriorityMin     = 1
	PriorityMax     = 5
	PriorityDefault = 2

	TitleMaxLength = 255
)

// Task is a unit of work. AssignedTo is a weak reference and may be nil;
// CreatedBy never changes after creation.
type Task struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      Status    `json:"status"`
	DueDate     *string   `json:"due_date"` // YYYY-MM-DD
	Priority    int       `json:"priority"`
	AssignedTo  *Identity `json:"assigned_to"`
	CreatedBy   Identity  `json:"created_by"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// AssigneeID returns the id of the assignee, or 0 when unassigned.
func (t *Task) AssigneeID() int64 {
	if t == nil || t.AssignedTo == nil {
		return 0
	}
	return t.AssignedTo.ID
}

// # Payloads

// Credentials is the login request body.
type Credentials struct {
	Username string `json:"username"`
	Password string `json:"password"`
}

// Registration is the public sign-up request body.
type Registration struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// TokenPair is the login response body.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// TaskInput is the create/update payload. Nil fields are omitted, which makes
// the same type usable for POST and PATCH.
type TaskInput struct {
	Title        *string `json:"title,omitempty"`
	Description  *string `json:"description,omitempty"`
	Status       *Status `json:"status,omitempty"`
	DueDate      *string `json:"due_date,omitempty"`
	Priority     *int    `json:"priority,omitempty"`
	AssignedToID *int64  `json:"assigned_to_id,omitempty"`
}

// Fields lists the JSON names of the fields present in the payload.
func (in TaskInput) Fields() []string {
	var fields []string
	if in.Title != nil {
		fields = append(fields, "title")
	}
	if in.Description != nil {
		fields = append(fields, "description")
	}
	if in.Status != nil {
		fields = append(fields, "status")
	}
	if in.DueDate != nil {
		fields = append(fields, "due_date")
	}
	if in.Priority != nil {
		fields = append(fields, "priority")
	}
	if in.AssignedToID != nil {
		fields = append(fields, "assigned_to_id")
	}
	return fields
}

// StatusOnly reports whether the payload carries the status and nothing else.
func (in TaskInput) StatusOnly() bool {
	fields := in.Fields()
	return len(fields) == 1 && fields[0] == "status"
}

// AssignInput is the body of tasks/{id}/assign/. A nil UserID unassigns.
type AssignInput struct {
	UserID *int64 `json:"user_id"`
}

// UserInput is the create/update payload for users/.
type UserInput struct {
	Username *string       `json:"username,omitempty"`
	Email    *string       `json:"email,omitempty"`
	Role     *sec.UserRole `json:"role,omitempty"`
	Password *string       `json:"password,omitempty"`
}

// # Filters

// Ordering fields accepted by tasks/ (optionally prefixed with "-").
var OrderingFields = []string{"created_at", "due_date", "priority"}

// TaskFilter narrows tasks/ listings. Zero values mean "no filter".
type TaskFilter struct {
	Status     Status
	AssignedTo int64
	DueBefore  string // due_date__lt, YYYY-MM-DD
	DueAfter   string // due_date__gt, YYYY-MM-DD
	Search     string
	Ordering   string // comma-separated, e.g. "-priority,due_date"
}

// Params returns the normalized query parameters of the filter.
func (f TaskFilter) Params() *query.Params {
	params := query.New().
		Set("status", string(f.Status)).
		Set("due_date__lt", f.DueBefore).
		Set("due_date__gt", f.DueAfter).
		Set("search", f.Search).
		SetList("ordering", f.Ordering)

	if f.AssignedTo > 0 {
		params.Set("assigned_to", strconv.FormatInt(f.AssignedTo, 10))
	}
	return params
}

// Values is shorthand for Params().Values().
func (f TaskFilter) Values() url.Values {
	return f.Params().Values()
}
