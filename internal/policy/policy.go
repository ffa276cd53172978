// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package policy decides which actions an identity may attempt.

[Evaluate] is a pure, total function of (identity, action, target). It does no
I/O and never panics; unknown roles and unknown actions are denied. The remote
service stays authoritative: a client-side decision only gates affordances
and stops requests that are certain to be refused.

# Precedence (first match wins)

 1. No identity: only public actions.
 2. ADMIN: every task and user action.
 3. MANAGER: every task action, user reads; no user management.
 4. MEMBER: task reads, and status updates on tasks assigned to them.
*/
package policy

import (
	"github.com/taibuivan/taskdeck/internal/model"
	"github.com/taibuivan/taskdeck/internal/platform/apperr"
	"github.com/taibuivan/taskdeck/internal/platform/sec"
)

// # Actions

// Action names an operation subject to the policy.
type Action string

const (
	ActionPublic Action = "public"

	ActionTaskRead         Action = "task:read"
	ActionTaskCreate       Action = "task:create"
	ActionTaskUpdate       Action = "task:update"
	ActionTaskUpdateStatus Action = "task:update_status"
	ActionTaskDelete       Action = "task:delete"
	ActionTaskAssign       Action = "task:assign"

	ActionUserRead   Action = "user:read"
	ActionUserCreate Action = "user:create"
	ActionUserUpdate Action = "user:update"
	ActionUserDelete Action = "user:delete"
)

// TaskActions lists the actions that take a task as target.
var TaskActions = []Action{
	ActionTaskRead,
	ActionTaskCreate,
	ActionTaskUpdate,
	ActionTaskUpdateStatus,
	ActionTaskDelete,
	ActionTaskAssign,
}

// UserActions lists the user management actions.
var UserActions = []Action{ActionUserRead, ActionUserCreate, ActionUserUpdate, ActionUserDelete}

func (a Action) isTask() bool { return contains(TaskActions, a) }
func (a Action) isUser() bool { return contains(UserActions, a) }

// # Decisions

// Decision is the outcome of an evaluation.
type Decision struct {
	Allowed bool
	Reason  string
}

func allow(reason string) Decision { return Decision{Allowed: true, Reason: reason} }
func deny(reason string) Decision  { return Decision{Allowed: false, Reason: reason} }

/*
Evaluate decides whether identity may perform action on target.

Parameters:
  - identity: *model.Identity (nil means anonymous)
  - action: Action
  - target: *model.Task (nil when the action has no task target)

Returns:
  - Decision: Allowed plus a human-readable reason
*/
func Evaluate(identity *model.Identity, action Action, target *model.Task) Decision {
	if action == ActionPublic {
		return allow("public action")
	}
	if !action.isTask() && !action.isUser() {
		return deny("unknown action")
	}

	if identity == nil {
		return deny("authentication required")
	}

	switch identity.Role {
	case sec.RoleAdmin:
		return allow("admins may perform every action")

	case sec.RoleManager:
		if action.isTask() || action == ActionUserRead {
			return allow("managers may manage tasks and view users")
		}
		return deny("only admins may manage users")

	case sec.RoleMember:
		return evaluateMember(identity, action, target)

	default:
		return deny("unknown role")
	}
}

// evaluateMember applies the MEMBER rules.
func evaluateMember(identity *model.Identity, action Action, target *model.Task) Decision {
	switch action {
	case ActionTaskRead:
		return allow("members may view tasks")

	case ActionTaskUpdateStatus:
		if target == nil || target.AssignedTo == nil {
			return deny("members may only change the status of tasks assigned to them")
		}
		if target.AssignedTo.ID != identity.ID {
			return deny("members may only change the status of tasks assigned to them")
		}
		return allow("assignee may change the status")

	case ActionTaskCreate:
		return deny("members cannot create tasks")
	case ActionTaskDelete:
		return deny("members cannot delete tasks")
	case ActionTaskAssign:
		return deny("members cannot assign tasks")
	case ActionTaskUpdate:
		return deny("members may only update the task status")
	}

	return deny("members cannot manage users")
}

// # Helpers

// Allowed is shorthand for Evaluate(...).Allowed.
func Allowed(identity *model.Identity, action Action, target *model.Task) bool {
	return Evaluate(identity, action, target).Allowed
}

// Check returns an [apperr.CodePolicyDenied] error when the action is denied.
func Check(identity *model.Identity, action Action, target *model.Task) error {
	decision := Evaluate(identity, action, target)
	if decision.Allowed {
		return nil
	}
	return apperr.PolicyDenied(decision.Reason)
}

// Affordances lists the task actions identity may take on target, in
// [TaskActions] order. It drives which commands a front end offers.
func Affordances(identity *model.Identity, target *model.Task) []Action {
	var permitted []Action
	for _, action := range TaskActions {
		if Allowed(identity, action, target) {
			permitted = append(permitted, action)
		}
	}
	return permitted
}

func contains(actions []Action, candidate Action) bool {
	for _, action := range actions {
		if action == candidate {
			return true
		}
	}
	return false
}
