// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package apitest

import (
	"cmp"
	"fmt"
	"maps"
	"net/http"
	"slices"
	"strconv"
	"strings"
	"time"

	"github.com/taibuivan/taskdeck/internal/model"
	"github.com/taibuivan/taskdeck/internal/platform/apperr"
	"github.com/taibuivan/taskdeck/internal/platform/respond"
	requestutil "github.com/taibuivan/taskdeck/internal/platform/request"
	"github.com/taibuivan/taskdeck/internal/platform/sec"
	"github.com/taibuivan/taskdeck/internal/platform/validate"
	"github.com/taibuivan/taskdeck/pkg/pointer"
	"github.com/taibuivan/taskdeck/pkg/slice"
)

// loginResponse mirrors the backend's token pair with the embedded user.
type loginResponse struct {
	model.TokenPair
	User model.Identity `json:"user"`
}

// # Authentication

func (server *Server) login(writer http.ResponseWriter, request *http.Request) {
	var credentials model.Credentials
	if err := requestutil.DecodeJSON(request, &credentials); err != nil {
		respond.Error(writer, request, err)
		return
	}

	var stored account
	server.mu.Lock()
	if found := server.findUsername(credentials.Username); found != nil {
		stored = *found
	}
	server.mu.Unlock()

	if stored.passwordHash == "" || !sec.CheckPasswordHash(credentials.Password, stored.passwordHash) {
		respond.Error(writer, request, apperr.ValidationError("Invalid username or password."))
		return
	}

	access, err := server.issuer.Issue(stored.identity.ID, sec.TokenTypeAccess, server.accessTTL)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	refresh, err := server.issuer.Issue(stored.identity.ID, sec.TokenTypeRefresh, defaultRefreshTTL)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	server.mu.Lock()
	server.live[access] = stored.identity.ID
	server.mu.Unlock()

	respond.OK(writer, loginResponse{TokenPair: model.TokenPair{Access: access, Refresh: refresh}, User: stored.identity})
}

// register always creates a MEMBER, whatever role the body asks for.
func (server *Server) register(writer http.ResponseWriter, request *http.Request) {
	var registration model.Registration
	if err := requestutil.DecodeJSON(request, &registration); err != nil {
		respond.Error(writer, request, err)
		return
	}

	v := &validate.Validator{}
	v.Required("username", registration.Username).
		MaxLen("username", registration.Username, 150).
		Required("email", registration.Email).
		Required("password", registration.Password)
	if registration.Email != "" {
		v.Email("email", registration.Email)
	}

	server.mu.Lock()
	defer server.mu.Unlock()

	v.Custom("username", server.findUsername(registration.Username) != nil, "A user with that username already exists.")
	v.Custom("email", registration.Email != "" && server.findEmail(registration.Email) != nil, "user with this email already exists.")
	if err := v.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	hash, err := sec.HashPassword(registration.Password)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	respond.Created(writer, server.insertUser(registration.Username, registration.Email, hash, sec.RoleMember))
}

func (server *Server) logout(writer http.ResponseWriter, request *http.Request) {
	var body struct {
		Refresh string `json:"refresh"`
	}
	if err := requestutil.DecodeJSON(request, &body); err != nil {
		respond.Error(writer, request, err)
		return
	}
	if body.Refresh == "" {
		respond.Error(writer, request, apperr.ValidationError("Refresh token is required."))
		return
	}

	if _, err := server.issuer.Verify(body.Refresh, sec.TokenTypeRefresh); err != nil {
		respond.Error(writer, request, apperr.ValidationError("Invalid or expired refresh token."))
		return
	}

	server.mu.Lock()
	revoked := server.blacklist[body.Refresh]
	server.blacklist[body.Refresh] = true
	server.mu.Unlock()

	if revoked {
		respond.Error(writer, request, apperr.ValidationError("Invalid or expired refresh token."))
		return
	}
	respond.OK(writer, map[string]string{"detail": "Logged out successfully."})
}

// # Users

func (server *Server) me(writer http.ResponseWriter, request *http.Request) {
	principal, err := requestutil.RequiredPrincipal(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	respond.OK(writer, principal)
}

func (server *Server) listUsers(writer http.ResponseWriter, request *http.Request) {
	server.mu.Lock()
	defer server.mu.Unlock()

	users := slice.Map(slices.Collect(maps.Values(server.users)), func(stored *account) model.Identity {
		return stored.identity
	})
	slices.SortFunc(users, func(a, b model.Identity) int { return cmp.Compare(a.ID, b.ID) })

	respond.OK(writer, users)
}

func (server *Server) getUser(writer http.ResponseWriter, request *http.Request) {
	id, err := requestutil.ID(request, "id")
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	server.mu.Lock()
	defer server.mu.Unlock()

	stored, ok := server.users[id]
	if !ok {
		respond.Error(writer, request, apperr.NotFound("User"))
		return
	}
	respond.OK(writer, stored.identity)
}

func (server *Server) createUser(writer http.ResponseWriter, request *http.Request) {
	var input model.UserInput
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	username, email := pointer.Val(input.Username), pointer.Val(input.Email)
	role := sec.RoleMember
	if input.Role != nil {
		role = *input.Role
	}

	v := &validate.Validator{}
	v.Required("username", username).Required("email", email)
	if email != "" {
		v.Email("email", email)
	}
	v.Custom("role", !role.Valid(), fmt.Sprintf("\"%s\" is not a valid choice.", role))

	server.mu.Lock()
	defer server.mu.Unlock()

	v.Custom("username", server.findUsername(username) != nil, "A user with that username already exists.")
	v.Custom("email", email != "" && server.findEmail(email) != nil, "user with this email already exists.")
	if err := v.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	hash := ""
	if password := pointer.Val(input.Password); password != "" {
		var err error
		if hash, err = sec.HashPassword(password); err != nil {
			respond.Error(writer, request, err)
			return
		}
	}

	respond.Created(writer, server.insertUser(username, email, hash, role))
}

func (server *Server) updateUser(writer http.ResponseWriter, request *http.Request) {
	id, err := requestutil.ID(request, "id")
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input model.UserInput
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	server.mu.Lock()
	defer server.mu.Unlock()

	stored, ok := server.users[id]
	if !ok {
		respond.Error(writer, request, apperr.NotFound("User"))
		return
	}

	v := &validate.Validator{}
	if input.Username != nil {
		other := server.findUsername(*input.Username)
		v.Required("username", *input.Username).Custom("username", other != nil && other != stored, "A user with that username already exists.")
	}
	if input.Email != nil {
		other := server.findEmail(*input.Email)
		v.Email("email", *input.Email).Custom("email", other != nil && other != stored, "user with this email already exists.")
	}
	if input.Role != nil {
		v.Custom("role", !input.Role.Valid(), fmt.Sprintf("\"%s\" is not a valid choice.", *input.Role))
	}
	if err := v.Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	if input.Username != nil {
		stored.identity.Username = *input.Username
	}
	if input.Email != nil {
		stored.identity.Email = *input.Email
	}
	if input.Role != nil {
		stored.identity.Role = *input.Role
	}
	if password := pointer.Val(input.Password); password != "" {
		hash, err := sec.HashPassword(password)
		if err != nil {
			respond.Error(writer, request, err)
			return
		}
		stored.passwordHash = hash
	}

	respond.OK(writer, stored.identity)
}

// deleteUser removes the account, unassigns its tasks and deletes the tasks it
// created.
func (server *Server) deleteUser(writer http.ResponseWriter, request *http.Request) {
	id, err := requestutil.ID(request, "id")
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	server.mu.Lock()
	defer server.mu.Unlock()

	if _, ok := server.users[id]; !ok {
		respond.Error(writer, request, apperr.NotFound("User"))
		return
	}

	delete(server.users, id)
	for taskID, stored := range server.tasks {
		switch {
		case stored.creatorID == id:
			delete(server.tasks, taskID)
		case stored.assigneeID == id:
			stored.assigneeID = 0
		}
	}

	respond.NoContent(writer)
}

// # Tasks

// listTasks applies the backend's filters, search and ordering.
func (server *Server) listTasks(writer http.ResponseWriter, request *http.Request) {
	principal, err := requestutil.RequiredPrincipal(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	params := request.URL.Query()
	filter, err := parseFilter(params)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	server.mu.Lock()
	defer server.mu.Unlock()

	selected := slice.Filter(slices.Collect(maps.Values(server.tasks)), func(stored *record) bool {
		return visible(principal, stored) && filter.matches(stored)
	})
	tasks := slice.Map(selected, server.render)
	sortTasks(tasks, params.Get("ordering"))

	respond.OK(writer, tasks)
}

func (server *Server) getTask(writer http.ResponseWriter, request *http.Request) {
	_, stored, err := server.lookupTask(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	defer server.mu.Unlock()

	respond.OK(writer, server.render(stored))
}

// createTask sets created_by to the caller. A member's task is always assigned
// to the member.
func (server *Server) createTask(writer http.ResponseWriter, request *http.Request) {
	principal, err := requestutil.RequiredPrincipal(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}

	var input model.TaskInput
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	server.mu.Lock()
	defer server.mu.Unlock()

	v := &validate.Validator{}
	v.Required("title", pointer.Val(input.Title))
	if err := server.validateTask(v, input).Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	task := model.Task{
		Title:       pointer.Val(input.Title),
		Description: pointer.Val(input.Description),
		Status:      model.StatusTodo,
		Priority:    model.PriorityDefault,
		DueDate:     input.DueDate,
	}
	if input.Status != nil {
		task.Status = *input.Status
	}
	if input.Priority != nil {
		task.Priority = *input.Priority
	}
	if task.DueDate != nil && *task.DueDate == "" {
		task.DueDate = nil
	}

	assigneeID := pointer.Val(input.AssignedToID)
	if principal.Role == sec.RoleMember {
		assigneeID = principal.ID
	}

	respond.Created(writer, server.render(server.insertTask(task, principal.ID, assigneeID)))
}

func (server *Server) updateTask(writer http.ResponseWriter, request *http.Request) {
	server.writeTask(writer, request, false)
}

func (server *Server) replaceTask(writer http.ResponseWriter, request *http.Request) {
	server.writeTask(writer, request, true)
}

// writeTask handles PATCH and PUT. Members may only change the status of a
// task assigned to them.
func (server *Server) writeTask(writer http.ResponseWriter, request *http.Request, replace bool) {
	var input model.TaskInput
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	principal, stored, err := server.lookupTask(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	defer server.mu.Unlock()

	if principal.Role == sec.RoleMember {
		if stored.assigneeID != principal.ID {
			respond.Error(writer, request, apperr.Forbidden("Members may only modify their own assigned tasks."))
			return
		}
		if !input.StatusOnly() {
			respond.Error(writer, request, apperr.ValidationError("Members may only update the task status."))
			return
		}
	}

	v := &validate.Validator{}
	if replace || input.Title != nil {
		v.Required("title", pointer.Val(input.Title))
	}
	if err := server.validateTask(v, input).Err(); err != nil {
		respond.Error(writer, request, err)
		return
	}

	task := &stored.task
	if input.Title != nil {
		task.Title = *input.Title
	}
	if input.Description != nil {
		task.Description = *input.Description
	}
	if input.Status != nil {
		task.Status = *input.Status
	}
	if input.Priority != nil {
		task.Priority = *input.Priority
	}
	if input.DueDate != nil {
		task.DueDate = input.DueDate
		if *input.DueDate == "" {
			task.DueDate = nil
		}
	}
	if _, present := raw["assigned_to_id"]; present {
		stored.assigneeID = pointer.Val(input.AssignedToID)
	}
	task.UpdatedAt = server.now().UTC()

	respond.OK(writer, server.render(stored))
}

func (server *Server) deleteTask(writer http.ResponseWriter, request *http.Request) {
	principal, stored, err := server.lookupTask(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	defer server.mu.Unlock()

	if principal.Role == sec.RoleMember {
		respond.Error(writer, request, apperr.Forbidden("Members cannot delete tasks."))
		return
	}

	delete(server.tasks, stored.task.ID)
	respond.NoContent(writer)
}

// assignTask sets or clears the assignee. A null or zero user_id unassigns.
func (server *Server) assignTask(writer http.ResponseWriter, request *http.Request) {
	var input model.AssignInput
	if err := requestutil.DecodeJSON(request, &input); err != nil {
		respond.Error(writer, request, err)
		return
	}

	_, stored, err := server.lookupTask(request)
	if err != nil {
		respond.Error(writer, request, err)
		return
	}
	defer server.mu.Unlock()

	userID := pointer.Val(input.UserID)
	if userID != 0 {
		if _, ok := server.users[userID]; !ok {
			respond.Error(writer, request, &apperr.AppError{Code: apperr.CodeNotFound, Message: "User not found.", HTTPStatus: http.StatusNotFound})
			return
		}
	}

	stored.assigneeID = userID
	stored.task.UpdatedAt = server.now().UTC()
	respond.OK(writer, server.render(stored))
}

// # Task Helpers

/*
lookupTask resolves the {id} parameter to a task the caller can see.

On success the server lock is HELD and the caller must release it.
*/
func (server *Server) lookupTask(request *http.Request) (*model.Identity, *record, error) {
	principal, err := requestutil.RequiredPrincipal(request)
	if err != nil {
		return nil, nil, err
	}
	id, err := requestutil.ID(request, "id")
	if err != nil {
		return nil, nil, err
	}

	server.mu.Lock()
	stored, ok := server.tasks[id]
	if !ok || !visible(principal, stored) {
		server.mu.Unlock()
		return nil, nil, &apperr.AppError{Code: apperr.CodeNotFound, Message: "No Task matches the given query.", HTTPStatus: http.StatusNotFound}
	}
	return principal, stored, nil
}

// validateTask checks the fields present in input. Callers hold mu.
func (server *Server) validateTask(v *validate.Validator, input model.TaskInput) *validate.Validator {
	if input.Title != nil {
		v.MaxLen("title", *input.Title, model.TitleMaxLength)
	}
	if input.Status != nil {
		v.Custom("status", !input.Status.Valid(), fmt.Sprintf("\"%s\" is not a valid choice.", *input.Status))
	}
	if input.Priority != nil {
		v.Custom("priority", *input.Priority < model.PriorityMin || *input.Priority > model.PriorityMax, "Priority must be between 1 and 5.")
	}
	if input.DueDate != nil && *input.DueDate != "" {
		_, err := time.Parse(time.DateOnly, *input.DueDate)
		v.Custom("due_date", err != nil, "Date has wrong format. Use one of these formats instead: YYYY-MM-DD.")
	}
	if input.AssignedToID != nil {
		_, ok := server.users[*input.AssignedToID]
		v.Custom("assigned_to_id", !ok, fmt.Sprintf("Invalid pk \"%d\" - object does not exist.", *input.AssignedToID))
	}
	return v
}

// visible reports whether principal may see the task. Members only see tasks
// assigned to them.
func visible(principal *model.Identity, stored *record) bool {
	return principal.Role != sec.RoleMember || stored.assigneeID == principal.ID
}

// taskFilter is the parsed form of the tasks/ query string.
type taskFilter struct {
	status     model.Status
	assignedTo int64
	dueBefore  string
	dueAfter   string
	search     string
}

func parseFilter(params map[string][]string) (taskFilter, error) {
	get := func(key string) string {
		if values := params[key]; len(values) > 0 {
			return values[0]
		}
		return ""
	}

	filter := taskFilter{
		status:    model.Status(get("status")),
		dueBefore: get("due_date__lt"),
		dueAfter:  get("due_date__gt"),
		search:    strings.ToLower(get("search")),
	}

	v := &validate.Validator{}
	if filter.status != "" {
		v.Custom("status", !filter.status.Valid(), fmt.Sprintf("Select a valid choice. %s is not one of the available choices.", filter.status))
	}
	if raw := get("assigned_to"); raw != "" {
		id, err := strconv.ParseInt(raw, 10, 64)
		v.Custom("assigned_to", err != nil, "Select a valid choice. That choice is not one of the available choices.")
		filter.assignedTo = id
	}
	if filter.dueBefore != "" {
		_, err := time.Parse(time.DateOnly, filter.dueBefore)
		v.Custom("due_date__lt", err != nil, "Enter a valid date.")
	}
	if filter.dueAfter != "" {
		_, err := time.Parse(time.DateOnly, filter.dueAfter)
		v.Custom("due_date__gt", err != nil, "Enter a valid date.")
	}

	return filter, v.Err()
}

func (filter taskFilter) matches(stored *record) bool {
	task := stored.task

	if filter.status != "" && task.Status != filter.status {
		return false
	}
	if filter.assignedTo != 0 && stored.assigneeID != filter.assignedTo {
		return false
	}
	if filter.dueBefore != "" && (task.DueDate == nil || *task.DueDate >= filter.dueBefore) {
		return false
	}
	if filter.dueAfter != "" && (task.DueDate == nil || *task.DueDate <= filter.dueAfter) {
		return false
	}
	if filter.search != "" &&
		!strings.Contains(strings.ToLower(task.Title), filter.search) &&
		!strings.Contains(strings.ToLower(task.Description), filter.search) {
		return false
	}
	return true
}

/*
sortTasks orders tasks by the comma-separated ordering fields. Unknown fields
are ignored. The default is newest first; ties fall back to the id.
*/
func sortTasks(tasks []model.Task, ordering string) {
	type rule struct {
		field string
		desc  bool
	}

	var rules []rule
	for _, field := range strings.Split(ordering, ",") {
		field = strings.TrimSpace(field)
		name := strings.TrimPrefix(field, "-")
		if name == "created_at" || name == "due_date" || name == "priority" {
			rules = append(rules, rule{field: name, desc: strings.HasPrefix(field, "-")})
		}
	}
	if len(rules) == 0 {
		rules = []rule{{field: "created_at", desc: true}}
	}

	slices.SortStableFunc(tasks, func(a, b model.Task) int {
		for _, r := range rules {
			var result int
			switch r.field {
			case "created_at":
				result = a.CreatedAt.Compare(b.CreatedAt)
				if result == 0 {
					result = cmp.Compare(a.ID, b.ID)
				}
			case "due_date":
				result = compareDue(a.DueDate, b.DueDate)
			case "priority":
				result = cmp.Compare(a.Priority, b.Priority)
			}
			if r.desc {
				result = -result
			}
			if result != 0 {
				return result
			}
		}
		return cmp.Compare(a.ID, b.ID)
	})
}

// compareDue sorts missing due dates last in ascending order.
func compareDue(a, b *string) int {
	switch {
	case a == nil && b == nil:
		return 0
	case a == nil:
		return 1
	case b == nil:
		return -1
	}
	return strings.Compare(*a, *b)
}

