// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package tasks_test

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/taskdeck/internal/apitest"
	"github.com/taibuivan/taskdeck/internal/auth"
	"github.com/taibuivan/taskdeck/internal/cache"
	"github.com/taibuivan/taskdeck/internal/model"
	"github.com/taibuivan/taskdeck/internal/platform/apperr"
	"github.com/taibuivan/taskdeck/internal/platform/sec"
	"github.com/taibuivan/taskdeck/internal/session"
	"github.com/taibuivan/taskdeck/internal/tasks"
	"github.com/taibuivan/taskdeck/internal/transport"
	"github.com/taibuivan/taskdeck/pkg/pointer"
)

var discard = slog.New(slog.DiscardHandler)

// fixture wires the client stack against an in-memory service.
type fixture struct {
	server *apitest.Server
	store  *session.Store
	auth   *auth.Service
	tasks  *tasks.Service

	manager model.Identity
	member  model.Identity
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	server := apitest.New()
	base := server.Start(t)

	store := session.NewStore(session.NewMemoryBackend(), discard)
	client, err := transport.New(transport.Config{BaseURL: base, Logger: discard}, store)
	require.NoError(t, err)

	entities := cache.New(cache.Options{Logger: discard})

	return &fixture{
		server:  server,
		store:   store,
		auth:    auth.NewService(client, store, discard),
		tasks:   tasks.NewService(client, store, entities, discard),
		manager: server.AddUser("mia", "pw", sec.RoleManager),
		member:  server.AddUser("alice", "pw", sec.RoleMember),
	}
}

func (f *fixture) loginAs(t *testing.T, username string) {
	t.Helper()
	_, err := f.auth.Login(context.Background(), model.Credentials{Username: username, Password: "pw"})
	require.NoError(t, err)
	f.server.ResetHits()
}

/*
TestCreate_AppearsInNextList lists the new task with the manager as creator.
*/
func TestCreate_AppearsInNextList(t *testing.T) {
	f := newFixture(t)
	f.loginAs(t, "mia")
	ctx := context.Background()

	before, err := f.tasks.List(ctx, model.TaskFilter{})
	require.NoError(t, err)
	assert.Empty(t, before)

	created, err := f.tasks.Create(ctx, model.TaskInput{Title: pointer.To("Write report"), Status: pointer.To(model.StatusTodo)})
	require.NoError(t, err)
	assert.Equal(t, model.PriorityDefault, created.Priority)

	after, err := f.tasks.List(ctx, model.TaskFilter{})
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.Equal(t, "Write report", after[0].Title)
	assert.Equal(t, model.StatusTodo, after[0].Status)
	assert.Equal(t, f.manager.ID, after[0].CreatedBy.ID)
	assert.Equal(t, 2, f.server.Hits(http.MethodGet, "tasks/"))
}

/*
TestList_EquivalentFiltersShareEntry serves normalized filters from one fetch.
*/
func TestList_EquivalentFiltersShareEntry(t *testing.T) {
	f := newFixture(t)
	f.loginAs(t, "mia")
	ctx := context.Background()

	_, err := f.tasks.List(ctx, model.TaskFilter{Search: "report", Ordering: "-priority,due_date"})
	require.NoError(t, err)
	_, err = f.tasks.List(ctx, model.TaskFilter{Search: "  report ", Ordering: "-priority, due_date"})
	require.NoError(t, err)
	assert.Equal(t, 1, f.server.Hits(http.MethodGet, "tasks/"))

	_, err = f.tasks.List(ctx, model.TaskFilter{Status: model.StatusTodo})
	require.NoError(t, err)
	assert.Equal(t, 2, f.server.Hits(http.MethodGet, "tasks/"))
}

/*
TestMutation_InvalidatesCollectionAndItem refetches only what a write touched.
*/
func TestMutation_InvalidatesCollectionAndItem(t *testing.T) {
	f := newFixture(t)
	target := f.server.AddTask(f.manager, model.Task{Title: "target"})
	bystander := f.server.AddTask(f.manager, model.Task{Title: "bystander"})
	f.loginAs(t, "mia")
	ctx := context.Background()

	read := func() {
		_, err := f.tasks.List(ctx, model.TaskFilter{})
		require.NoError(t, err)
		_, err = f.tasks.Get(ctx, target.ID)
		require.NoError(t, err)
		_, err = f.tasks.Get(ctx, bystander.ID)
		require.NoError(t, err)
	}

	read()
	read()
	assert.Equal(t, 3, f.server.TotalHits())

	updated, err := f.tasks.Update(ctx, target.ID, model.TaskInput{Priority: pointer.To(4)})
	require.NoError(t, err)
	assert.Equal(t, 4, updated.Priority)

	f.server.ResetHits()
	read()
	assert.Equal(t, 1, f.server.Hits(http.MethodGet, "tasks/"))
	assert.Equal(t, 1, f.server.Hits(http.MethodGet, "tasks/"+itoa(target.ID)+"/"))
	assert.Equal(t, 0, f.server.Hits(http.MethodGet, "tasks/"+itoa(bystander.ID)+"/"))

	task, err := f.tasks.Get(ctx, target.ID)
	require.NoError(t, err)
	assert.Equal(t, 4, task.Priority)
}

/*
TestAssign_ThenRead shows the new assignee on the next read.
*/
func TestAssign_ThenRead(t *testing.T) {
	f := newFixture(t)
	task := f.server.AddTask(f.manager, model.Task{Title: "triage", Status: model.StatusInProgress})
	f.loginAs(t, "mia")
	ctx := context.Background()

	_, err := f.tasks.Get(ctx, task.ID)
	require.NoError(t, err)

	_, err = f.tasks.Assign(ctx, task.ID, pointer.To(f.member.ID))
	require.NoError(t, err)

	read, err := f.tasks.Get(ctx, task.ID)
	require.NoError(t, err)
	require.NotNil(t, read.AssignedTo)
	assert.Equal(t, f.member.ID, read.AssignedTo.ID)
	assert.Equal(t, model.StatusInProgress, read.Status, "assignment leaves the status alone")

	_, err = f.tasks.Assign(ctx, task.ID, nil)
	require.NoError(t, err)

	read, err = f.tasks.Get(ctx, task.ID)
	require.NoError(t, err)
	assert.Nil(t, read.AssignedTo)
}

/*
TestAssign_UnknownUser surfaces the service's NOT_FOUND.
*/
func TestAssign_UnknownUser(t *testing.T) {
	f := newFixture(t)
	task := f.server.AddTask(f.manager, model.Task{Title: "triage"})
	f.loginAs(t, "mia")

	_, err := f.tasks.Assign(context.Background(), task.ID, pointer.To(int64(999)))
	assert.True(t, apperr.IsCode(err, apperr.CodeNotFound))
}

/*
TestUpdateStatus_AssignedMember moves an assigned task freely, including back
out of COMPLETED.
*/
func TestUpdateStatus_AssignedMember(t *testing.T) {
	f := newFixture(t)
	seeded := f.server.AddTask(f.manager, model.Task{Title: "mine", AssignedTo: &f.member})
	f.loginAs(t, "alice")
	ctx := context.Background()

	task, err := f.tasks.Get(ctx, seeded.ID)
	require.NoError(t, err)

	for _, next := range []model.Status{model.StatusCompleted, model.StatusTodo, model.StatusInProgress} {
		task, err = f.tasks.UpdateStatus(ctx, task, next)
		require.NoError(t, err)
		assert.Equal(t, next, task.Status)
	}

	stored, ok := f.server.Task(seeded.ID)
	require.True(t, ok)
	assert.Equal(t, model.StatusInProgress, stored.Status)
}

/*
TestUpdateStatus_UnassignedMemberDeniedOffline never reaches the service.
*/
func TestUpdateStatus_UnassignedMemberDeniedOffline(t *testing.T) {
	f := newFixture(t)
	seeded := f.server.AddTask(f.manager, model.Task{Title: "not mine", Status: model.StatusCompleted})
	f.loginAs(t, "alice")

	_, err := f.tasks.UpdateStatus(context.Background(), &seeded, model.StatusTodo)

	assert.True(t, apperr.IsCode(err, apperr.CodePolicyDenied))
	assert.Equal(t, 0, f.server.TotalHits())
}

/*
TestMember_ManagementDeniedOffline denies create, update, delete and assign
without any request.
*/
func TestMember_ManagementDeniedOffline(t *testing.T) {
	f := newFixture(t)
	seeded := f.server.AddTask(f.manager, model.Task{Title: "mine", AssignedTo: &f.member})
	f.loginAs(t, "alice")
	ctx := context.Background()

	_, err := f.tasks.Create(ctx, model.TaskInput{Title: pointer.To("x")})
	assert.True(t, apperr.IsCode(err, apperr.CodePolicyDenied), "create")

	_, err = f.tasks.Update(ctx, seeded.ID, model.TaskInput{Title: pointer.To("x")})
	assert.True(t, apperr.IsCode(err, apperr.CodePolicyDenied), "update")

	err = f.tasks.Delete(ctx, seeded.ID)
	assert.True(t, apperr.IsCode(err, apperr.CodePolicyDenied), "delete")

	_, err = f.tasks.Assign(ctx, seeded.ID, pointer.To(f.member.ID))
	assert.True(t, apperr.IsCode(err, apperr.CodePolicyDenied), "assign")

	assert.Equal(t, 0, f.server.TotalHits())
}

/*
TestAnonymous_DeniedOffline rejects reads without a session.
*/
func TestAnonymous_DeniedOffline(t *testing.T) {
	f := newFixture(t)

	_, err := f.tasks.List(context.Background(), model.TaskFilter{})
	assert.True(t, apperr.IsCode(err, apperr.CodePolicyDenied))
	assert.Equal(t, 0, f.server.TotalHits())
}

/*
TestCreate_ValidatesBeforeDispatch rejects bad payloads locally.
*/
func TestCreate_ValidatesBeforeDispatch(t *testing.T) {
	f := newFixture(t)
	f.loginAs(t, "mia")

	tests := []struct {
		name  string
		input model.TaskInput
		field string
	}{
		{"missing title", model.TaskInput{}, "title"},
		{"blank title", model.TaskInput{Title: pointer.To("   ")}, "title"},
		{"long title", model.TaskInput{Title: pointer.To(strings.Repeat("x", model.TitleMaxLength+1))}, "title"},
		{"priority high", model.TaskInput{Title: pointer.To("t"), Priority: pointer.To(6)}, "priority"},
		{"priority low", model.TaskInput{Title: pointer.To("t"), Priority: pointer.To(0)}, "priority"},
		{"bad status", model.TaskInput{Title: pointer.To("t"), Status: pointer.To(model.Status("DONE"))}, "status"},
		{"bad due date", model.TaskInput{Title: pointer.To("t"), DueDate: pointer.To("03/01/2026")}, "due_date"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.tasks.Create(context.Background(), tt.input)

			ae := apperr.As(err)
			require.NotNil(t, ae)
			assert.Equal(t, apperr.CodeValidation, ae.Code)
			require.NotEmpty(t, ae.Details)
			assert.Equal(t, tt.field, ae.Details[0].Field)
		})
	}

	assert.Equal(t, 0, f.server.TotalHits())
}

/*
TestList_InvalidFilter rejects unknown ordering fields and malformed dates.
*/
func TestList_InvalidFilter(t *testing.T) {
	f := newFixture(t)
	f.loginAs(t, "mia")
	ctx := context.Background()

	_, err := f.tasks.List(ctx, model.TaskFilter{Ordering: "title"})
	assert.True(t, apperr.IsCode(err, apperr.CodeValidation))

	_, err = f.tasks.List(ctx, model.TaskFilter{DueBefore: "tomorrow"})
	assert.True(t, apperr.IsCode(err, apperr.CodeValidation))

	assert.Equal(t, 0, f.server.TotalHits())
}

/*
TestList_FiltersReachService forwards every filter parameter.
*/
func TestList_FiltersReachService(t *testing.T) {
	f := newFixture(t)
	f.server.AddTask(f.manager, model.Task{Title: "Write report", Priority: 1, DueDate: pointer.To("2026-03-01"), AssignedTo: &f.member})
	f.server.AddTask(f.manager, model.Task{Title: "Review report", Priority: 3, DueDate: pointer.To("2026-01-10"), AssignedTo: &f.member})
	f.server.AddTask(f.manager, model.Task{Title: "Deploy", Status: model.StatusCompleted})
	f.loginAs(t, "mia")

	listed, err := f.tasks.List(context.Background(), model.TaskFilter{
		Status:     model.StatusTodo,
		AssignedTo: f.member.ID,
		DueAfter:   "2026-01-01",
		Search:     "report",
		Ordering:   "-priority",
	})
	require.NoError(t, err)

	require.Len(t, listed, 2)
	assert.Equal(t, "Review report", listed[0].Title)
	assert.Equal(t, "Write report", listed[1].Title)
}

/*
TestReplace_RequiresTitle sends PUT only with a complete payload.
*/
func TestReplace_RequiresTitle(t *testing.T) {
	f := newFixture(t)
	seeded := f.server.AddTask(f.manager, model.Task{Title: "old", Description: "keep"})
	f.loginAs(t, "mia")
	ctx := context.Background()

	_, err := f.tasks.Replace(ctx, seeded.ID, model.TaskInput{Priority: pointer.To(3)})
	assert.True(t, apperr.IsCode(err, apperr.CodeValidation))
	assert.Equal(t, 0, f.server.TotalHits())

	replaced, err := f.tasks.Replace(ctx, seeded.ID, model.TaskInput{Title: pointer.To("new"), Priority: pointer.To(3)})
	require.NoError(t, err)
	assert.Equal(t, "new", replaced.Title)
	assert.Equal(t, 1, f.server.Hits(http.MethodPut, "tasks/"+itoa(seeded.ID)+"/"))
}

/*
TestDelete_NextReadIsNotFound drops the cached task.
*/
func TestDelete_NextReadIsNotFound(t *testing.T) {
	f := newFixture(t)
	seeded := f.server.AddTask(f.manager, model.Task{Title: "gone"})
	f.loginAs(t, "mia")
	ctx := context.Background()

	_, err := f.tasks.Get(ctx, seeded.ID)
	require.NoError(t, err)

	require.NoError(t, f.tasks.Delete(ctx, seeded.ID))

	_, err = f.tasks.Get(ctx, seeded.ID)
	assert.True(t, apperr.IsCode(err, apperr.CodeNotFound))
}

/*
TestList_ConcurrentReadersShareOneRequest collapses parallel reads.
*/
func TestList_ConcurrentReadersShareOneRequest(t *testing.T) {
	f := newFixture(t)
	f.server.AddTask(f.manager, model.Task{Title: "shared"})
	f.loginAs(t, "mia")

	release := f.server.Hold(http.MethodGet, "tasks/")
	defer release()

	const readers = 16
	var (
		wg      sync.WaitGroup
		started sync.WaitGroup
		results = make([][]model.Task, readers)
	)
	started.Add(readers)
	for i := range readers {
		wg.Add(1)
		go func() {
			defer wg.Done()
			started.Done()
			listed, err := f.tasks.List(context.Background(), model.TaskFilter{})
			assert.NoError(t, err)
			results[i] = listed
		}()
	}
	started.Wait()

	require.Eventually(t, func() bool {
		return f.server.Hits(http.MethodGet, "tasks/") == 1
	}, time.Second, time.Millisecond)

	// Let the remaining goroutines join the running fetch
	time.Sleep(20 * time.Millisecond)
	release()
	wg.Wait()

	assert.Equal(t, 1, f.server.Hits(http.MethodGet, "tasks/"))
	for _, listed := range results {
		require.Len(t, listed, 1)
		assert.Equal(t, "shared", listed[0].Title)
	}
}

/*
TestUnauthorized_ClearsSession turns a revoked token into an anonymous session.
*/
func TestUnauthorized_ClearsSession(t *testing.T) {
	f := newFixture(t)
	f.loginAs(t, "mia")
	require.True(t, f.store.Authenticated())

	f.server.RevokeSessions()

	_, err := f.tasks.List(context.Background(), model.TaskFilter{})
	assert.True(t, apperr.IsUnauthorized(err))
	assert.False(t, f.store.Authenticated())
	assert.Nil(t, f.store.Identity())
}

func itoa(id int64) string {
	return strconv.FormatInt(id, 10)
}
