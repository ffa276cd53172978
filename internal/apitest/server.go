// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package apitest implements an in-memory task service that speaks the same REST
contract as the real backend.

It is used by the service and end-to-end tests of the client. The server keeps
the backend's role rules so tests observe the same 401/403/404 answers the
client would see in production:

  - Members only see and modify tasks assigned to them, and only their status.
  - Managers and admins manage every task; only they can assign.
  - User management is admin-only; users/options/ is open to managers.

Tokens are HS256 JWTs minted by [sec.TokenIssuer]; passwords are bcrypt hashes.

# Usage

	server := apitest.New()
	alice := server.AddUser("alice", "pw", sec.RoleMember)
	base := server.Start(t) // e.g. "http://127.0.0.1:51234/api/"
*/
package apitest

import (
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/taibuivan/taskdeck/internal/model"
	"github.com/taibuivan/taskdeck/internal/platform/apperr"
	"github.com/taibuivan/taskdeck/internal/platform/middleware"
	"github.com/taibuivan/taskdeck/internal/platform/respond"
	"github.com/taibuivan/taskdeck/internal/platform/sec"
)

// BasePath is the prefix every endpoint is mounted under.
const BasePath = "/api/"

// Token lifetimes of the fake service.
const (
	defaultAccessTTL  = 5 * time.Minute
	defaultRefreshTTL = 24 * time.Hour
)

// account is a stored user.
type account struct {
	identity     model.Identity
	passwordHash string
}

// record is a stored task. Users are referenced by id and rendered on read.
type record struct {
	task       model.Task
	assigneeID int64
	creatorID  int64
}

// fault is a canned response served instead of the next request.
type fault struct {
	status int
	body   string
}

// Option configures a [Server].
type Option func(*Server)

// WithLogger sets the request logger. The default discards everything.
func WithLogger(logger *slog.Logger) Option {
	return func(server *Server) { server.logger = logger }
}

// WithClock overrides the time source used for timestamps and tokens.
func WithClock(now func() time.Time) Option {
	return func(server *Server) { server.now = now }
}

// WithAccessTTL sets the lifetime of issued access tokens.
func WithAccessTTL(ttl time.Duration) Option {
	return func(server *Server) { server.accessTTL = ttl }
}

// Server is the in-memory task service. It is safe for concurrent use.
type Server struct {
	issuer    *sec.TokenIssuer
	logger    *slog.Logger
	now       func() time.Time
	accessTTL time.Duration

	mu         sync.Mutex
	users      map[int64]*account
	tasks      map[int64]*record
	live       map[string]int64
	blacklist  map[string]bool
	nextUserID int64
	nextTaskID int64
	hits       map[string]int
	holds      map[string]chan struct{}
	faults     []fault
}

// New creates an empty server.
func New(options ...Option) *Server {
	server := &Server{
		logger:    slog.New(slog.DiscardHandler),
		now:       time.Now,
		accessTTL: defaultAccessTTL,
		users:     make(map[int64]*account),
		tasks:     make(map[int64]*record),
		live:      make(map[string]int64),
		blacklist: make(map[string]bool),
		hits:      make(map[string]int),
		holds:     make(map[string]chan struct{}),
	}
	for _, option := range options {
		option(server)
	}
	server.issuer = sec.NewTokenIssuer([]byte("apitest-signing-key"), "taskdeck-apitest").WithClock(server.now)
	return server
}

// # Lifecycle

// Start serves the API on a loopback listener until the test ends and returns
// the base URL the client should be configured with.
func (server *Server) Start(t testing.TB) string {
	t.Helper()
	listener := httptest.NewServer(server.Handler())
	t.Cleanup(listener.Close)
	return listener.URL + BasePath
}

// Handler returns the router of the service.
func (server *Server) Handler() http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.RequestID())
	router.Use(middleware.StructuredLogger(server.logger))
	router.Use(middleware.PanicRecovery())
	router.Use(server.instrument)
	router.Use(middleware.Authenticate(server, server))

	router.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.Post("/login/", server.login)
			r.Post("/register/", server.register)
			r.With(middleware.RequireAuth).Post("/logout/", server.logout)
		})

		r.Route("/users", func(r chi.Router) {
			r.With(middleware.RequireAuth).Get("/me/", server.me)
			r.With(middleware.RequireRole(sec.RoleManager)).Get("/options/", server.listUsers)

			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(sec.RoleAdmin))
				r.Get("/", server.listUsers)
				r.Post("/", server.createUser)
				r.Get("/{id}/", server.getUser)
				r.Patch("/{id}/", server.updateUser)
				r.Put("/{id}/", server.updateUser)
				r.Delete("/{id}/", server.deleteUser)
			})
		})

		r.Route("/tasks", func(r chi.Router) {
			r.Use(middleware.RequireAuth)
			r.Get("/", server.listTasks)
			r.Post("/", server.createTask)
			r.Get("/{id}/", server.getTask)
			r.Patch("/{id}/", server.updateTask)
			r.Put("/{id}/", server.replaceTask)
			r.Delete("/{id}/", server.deleteTask)
			r.With(middleware.RequireRole(sec.RoleManager)).Post("/{id}/assign/", server.assignTask)
		})
	})

	router.NotFound(func(writer http.ResponseWriter, request *http.Request) {
		respond.Error(writer, request, &apperr.AppError{Code: apperr.CodeNotFound, Message: "Not found.", HTTPStatus: http.StatusNotFound})
	})

	return router
}

// instrument counts the request, serves injected faults and honours holds.
func (server *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(writer http.ResponseWriter, request *http.Request) {
		key := hitKey(request.Method, strings.TrimPrefix(request.URL.Path, BasePath))

		server.mu.Lock()
		server.hits[key]++
		hold := server.holds[key]
		var injected *fault
		if len(server.faults) > 0 {
			injected = &server.faults[0]
			server.faults = server.faults[1:]
		}
		server.mu.Unlock()

		if hold != nil {
			select {
			case <-hold:
			case <-request.Context().Done():
				return
			}
		}

		if injected != nil {
			writer.Header().Set("Content-Type", "application/json")
			writer.WriteHeader(injected.status)
			_, _ = writer.Write([]byte(injected.body))
			return
		}

		next.ServeHTTP(writer, request)
	})
}

// # Fixtures

// AddUser stores an account with the e-mail "<username>@example.com".
func (server *Server) AddUser(username, password string, role sec.UserRole) model.Identity {
	hash, err := sec.HashPassword(password)
	if err != nil {
		panic(fmt.Sprintf("apitest: hash password: %v", err))
	}

	server.mu.Lock()
	defer server.mu.Unlock()
	return server.insertUser(username, username+"@example.com", hash, role)
}

// AddTask stores a task as created by creator. Zero fields take the service
// defaults; the id and timestamps are always assigned by the server.
func (server *Server) AddTask(creator model.Identity, task model.Task) model.Task {
	server.mu.Lock()
	defer server.mu.Unlock()

	if task.Status == "" {
		task.Status = model.StatusTodo
	}
	if task.Priority == 0 {
		task.Priority = model.PriorityDefault
	}
	stored := server.insertTask(task, creator.ID, task.AssigneeID())
	return server.render(stored)
}

// Task returns the current state of a stored task.
func (server *Server) Task(id int64) (model.Task, bool) {
	server.mu.Lock()
	defer server.mu.Unlock()

	stored, ok := server.tasks[id]
	if !ok {
		return model.Task{}, false
	}
	return server.render(stored), true
}

// # Instrumentation

// Hits returns how many requests reached method and path. The path is
// relative to the base URL, e.g. "tasks/" or "tasks/3/".
func (server *Server) Hits(method, path string) int {
	server.mu.Lock()
	defer server.mu.Unlock()
	return server.hits[hitKey(method, path)]
}

// TotalHits returns the number of requests served since the last reset.
func (server *Server) TotalHits() int {
	server.mu.Lock()
	defer server.mu.Unlock()

	total := 0
	for _, count := range server.hits {
		total += count
	}
	return total
}

// ResetHits zeroes every request counter.
func (server *Server) ResetHits() {
	server.mu.Lock()
	defer server.mu.Unlock()
	server.hits = make(map[string]int)
}

// Hold blocks requests to method and path until the returned function is
// called. Releasing twice is harmless.
func (server *Server) Hold(method, path string) (release func()) {
	gate := make(chan struct{})

	server.mu.Lock()
	server.holds[hitKey(method, path)] = gate
	server.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			server.mu.Lock()
			delete(server.holds, hitKey(method, path))
			server.mu.Unlock()
			close(gate)
		})
	}
}

// FailNext answers the next request with status and a raw body.
func (server *Server) FailNext(status int, body string) {
	server.mu.Lock()
	defer server.mu.Unlock()
	server.faults = append(server.faults, fault{status: status, body: body})
}

// RevokeSessions invalidates every access token issued so far, as if they
// expired on the server.
func (server *Server) RevokeSessions() {
	server.mu.Lock()
	defer server.mu.Unlock()
	server.live = make(map[string]int64)
}

// RefreshRevoked reports whether the refresh token was blacklisted by logout.
func (server *Server) RefreshRevoked(refresh string) bool {
	server.mu.Lock()
	defer server.mu.Unlock()
	return server.blacklist[refresh]
}

// # Authentication Hooks

// Verify implements [middleware.TokenVerifier]. Only access tokens minted by
// this server and not revoked are accepted.
func (server *Server) Verify(token, tokenType string) (*sec.AccessClaims, error) {
	claims, err := server.issuer.Verify(token, tokenType)
	if err != nil {
		return nil, err
	}

	if tokenType == sec.TokenTypeAccess {
		server.mu.Lock()
		_, live := server.live[token]
		server.mu.Unlock()
		if !live {
			return nil, fmt.Errorf("apitest: token revoked")
		}
	}
	return claims, nil
}

// Principal implements [middleware.Directory].
func (server *Server) Principal(userID int64) (*model.Identity, bool) {
	server.mu.Lock()
	defer server.mu.Unlock()

	stored, ok := server.users[userID]
	if !ok {
		return nil, false
	}
	identity := stored.identity
	return &identity, true
}

// # Storage Helpers (callers hold mu)

func (server *Server) insertUser(username, email, hash string, role sec.UserRole) model.Identity {
	server.nextUserID++
	identity := model.Identity{ID: server.nextUserID, Username: username, Email: email, Role: role}
	server.users[identity.ID] = &account{identity: identity, passwordHash: hash}
	return identity
}

func (server *Server) insertTask(task model.Task, creatorID, assigneeID int64) *record {
	server.nextTaskID++
	now := server.now().UTC()

	task.ID = server.nextTaskID
	task.CreatedAt = now
	task.UpdatedAt = now

	stored := &record{task: task, creatorID: creatorID, assigneeID: assigneeID}
	server.tasks[task.ID] = stored
	return stored
}

// render resolves the user references of a stored task.
func (server *Server) render(stored *record) model.Task {
	task := stored.task
	task.AssignedTo = nil
	if assignee, ok := server.users[stored.assigneeID]; ok {
		identity := assignee.identity
		task.AssignedTo = &identity
	}
	if creator, ok := server.users[stored.creatorID]; ok {
		task.CreatedBy = creator.identity
	}
	if task.DueDate != nil {
		due := *task.DueDate
		task.DueDate = &due
	}
	return task
}

func (server *Server) findUsername(username string) *account {
	for _, stored := range server.users {
		if stored.identity.Username == username {
			return stored
		}
	}
	return nil
}

func (server *Server) findEmail(email string) *account {
	for _, stored := range server.users {
		if strings.EqualFold(stored.identity.Email, email) {
			return stored
		}
	}
	return nil
}

func hitKey(method, path string) string {
	return method + " " + strings.TrimPrefix(path, "/")
}
