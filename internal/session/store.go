// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package session holds the client's current credentials and identity.

The [Store] is the single piece of mutable shared state in the client. It is
constructed explicitly, initialized from a persistence [Backend], and cleared
on logout or when the remote service rejects the access token.

# Invariants

  - A non-nil identity implies a non-empty access token.
  - After Clear returns, no read observes the previous identity, even when
    the backend failed to remove its records.
  - Subscribers are notified synchronously, in the mutating goroutine,
    before the mutating call returns.
*/
package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/taibuivan/taskdeck/internal/model"
	"github.com/taibuivan/taskdeck/internal/platform/constants"
	"github.com/taibuivan/taskdeck/internal/platform/metrics"
	"github.com/taibuivan/taskdeck/internal/platform/sec"
)

// Teardown reasons reported to metrics and logs.
const (
	ReasonCleared      = "cleared"
	ReasonLogout       = "logout"
	ReasonUnauthorized = "unauthorized"
)

var (
	// ErrNoAccessToken is returned when an identity is set on an anonymous session.
	ErrNoAccessToken = errors.New("session: identity requires an access token")

	// ErrEmptyToken is returned by SetTokens when either token is empty.
	ErrEmptyToken = errors.New("session: tokens must not be empty")

	// ErrAnonymous is returned by AccessExpiry when there is no access token.
	ErrAnonymous = errors.New("session: no access token")
)

// # State

// State is an immutable snapshot of the session.
type State struct {
	AccessToken  string
	RefreshToken string
	Identity     *model.Identity
}

// Authenticated reports whether all three records are present.
func (s State) Authenticated() bool {
	return s.AccessToken != "" && s.RefreshToken != "" && s.Identity != nil
}

// Anonymous reports whether there is no access token at all.
func (s State) Anonymous() bool {
	return s.AccessToken == ""
}

// Listener observes session changes.
type Listener func(State)

// # Store

// Store is the session store.
//
// Mutations are serialized by writeMu, which is held across persistence,
// the in-memory update and listener notification. Listeners may read the
// store but must not mutate it.
type Store struct {
	backend Backend
	logger  *slog.Logger
	metrics metrics.Recorder

	writeMu sync.Mutex

	mu        sync.RWMutex
	state     State
	listeners map[int]Listener
	nextID    int
}

// Option customizes a Store.
type Option func(*Store)

// WithMetrics attaches a metrics recorder.
func WithMetrics(recorder metrics.Recorder) Option {
	return func(store *Store) {
		store.metrics = recorder
	}
}

// NewStore creates an anonymous Store on top of backend.
// Call [Store.Initialize] to load the persisted session.
func NewStore(backend Backend, logger *slog.Logger, opts ...Option) *Store {
	store := &Store{
		backend:   backend,
		logger:    logger.With(slog.String("component", "session"), slog.String("backend", backend.Name())),
		metrics:   metrics.Nop{},
		listeners: make(map[int]Listener),
	}
	for _, opt := range opts {
		opt(store)
	}
	return store
}

/*
Initialize loads the persisted session.

The session is restored only when all three records are present and the
identity decodes. Any other combination is a partial session: it is discarded
and its leftover records are removed.

Parameters:
  - context: context.Context

Returns:
  - error: Backend failures other than missing records
*/
func (store *Store) Initialize(context context.Context) error {
	store.writeMu.Lock()
	defer store.writeMu.Unlock()

	access, err := store.load(context, constants.StorageKeyAccessToken)
	if err != nil {
		return err
	}
	refresh, err := store.load(context, constants.StorageKeyRefreshToken)
	if err != nil {
		return err
	}
	rawIdentity, err := store.load(context, constants.StorageKeyUser)
	if err != nil {
		return err
	}

	if access == "" && refresh == "" && rawIdentity == "" {
		store.publish(State{})
		store.logger.Debug("session initialized", slog.Bool("authenticated", false))
		return nil
	}

	var identity model.Identity
	var problem string
	switch {
	case access == "":
		problem = "access token missing"
	case refresh == "":
		problem = "refresh token missing"
	case rawIdentity == "":
		problem = "identity missing"
	default:
		if decodeErr := json.Unmarshal([]byte(rawIdentity), &identity); decodeErr != nil {
			problem = "identity unreadable"
		}
	}

	if problem != "" {
		store.logger.Warn("discarding partial persisted session", slog.String("problem", problem))
		store.publish(State{})
		if err := store.removeAll(context); err != nil {
			store.logger.Error("partial session records not removed", slog.Any("error", err))
		}
		return nil
	}

	next := State{AccessToken: access, RefreshToken: refresh, Identity: &identity}
	store.publish(next)
	store.logger.Debug("session initialized", slog.Bool("authenticated", true))
	return nil
}

/*
SetTokens persists both tokens and then updates memory.

A cached identity belongs to the access token it was fetched with: when the
access token changes, the identity record is removed first so a new token is
never persisted next to a previous user's identity. When the second token
write fails the first one is rolled back.

Parameters:
  - context: context.Context
  - access: string
  - refresh: string

Returns:
  - error: ErrEmptyToken or persistence failures
*/
func (store *Store) SetTokens(context context.Context, access, refresh string) error {
	if access == "" || refresh == "" {
		return ErrEmptyToken
	}

	store.writeMu.Lock()
	defer store.writeMu.Unlock()

	previous := store.Snapshot()
	next := previous

	if previous.Identity != nil && previous.AccessToken != access {
		if err := store.backend.Remove(context, constants.StorageKeyUser); err != nil {
			return fmt.Errorf("session_set_tokens_failed: %w", err)
		}
		next.Identity = nil
	}

	if err := store.backend.Save(context, constants.StorageKeyAccessToken, access); err != nil {
		store.publishIfChanged(previous, next)
		return fmt.Errorf("session_set_tokens_failed: %w", err)
	}
	if err := store.backend.Save(context, constants.StorageKeyRefreshToken, refresh); err != nil {
		store.restore(context, constants.StorageKeyAccessToken, previous.AccessToken)
		store.publishIfChanged(previous, next)
		return fmt.Errorf("session_set_tokens_failed: %w", err)
	}

	next.AccessToken = access
	next.RefreshToken = refresh
	store.publish(next)
	return nil
}

/*
SetIdentity persists or clears the cached identity.

Parameters:
  - context: context.Context
  - identity: *model.Identity (nil clears the record)

Returns:
  - error: ErrNoAccessToken when the session is anonymous, or persistence failures
*/
func (store *Store) SetIdentity(context context.Context, identity *model.Identity) error {
	store.writeMu.Lock()
	defer store.writeMu.Unlock()

	next := store.Snapshot()

	if identity == nil {
		if err := store.backend.Remove(context, constants.StorageKeyUser); err != nil {
			return fmt.Errorf("session_set_identity_failed: %w", err)
		}
		next.Identity = nil
		store.publish(next)
		return nil
	}

	if next.AccessToken == "" {
		return ErrNoAccessToken
	}

	encoded, err := json.Marshal(identity)
	if err != nil {
		return fmt.Errorf("session_set_identity_failed: %w", err)
	}
	if err := store.backend.Save(context, constants.StorageKeyUser, string(encoded)); err != nil {
		return fmt.Errorf("session_set_identity_failed: %w", err)
	}

	copied := *identity
	next.Identity = &copied
	store.publish(next)
	return nil
}

// Clear resets the session to anonymous. See [Store.ClearWithReason].
func (store *Store) Clear(context context.Context) error {
	_, err := store.ClearWithReason(context, ReasonCleared)
	return err
}

/*
ClearWithReason resets the session to anonymous and removes every record.

Memory is reset first and unconditionally. Each record removal is attempted
even if an earlier one failed; failures are logged and returned joined.
Calling it on an anonymous session is harmless and notifies nobody.

Parameters:
  - context: context.Context
  - reason: string (ReasonLogout, ReasonUnauthorized, ...)

Returns:
  - bool: true if the session was not already anonymous
  - error: Joined persistence failures
*/
func (store *Store) ClearWithReason(context context.Context, reason string) (bool, error) {
	store.writeMu.Lock()
	defer store.writeMu.Unlock()

	previous := store.Snapshot()
	changed := previous != (State{})

	if changed {
		store.publish(State{})
		store.metrics.RecordSessionTeardown(reason)
		store.logger.Info("session cleared", slog.String("reason", reason))
	}

	if err := store.removeAll(context); err != nil {
		return changed, fmt.Errorf("session_clear_failed: %w", err)
	}
	return changed, nil
}

// # Reads

// Snapshot returns the current state.
func (store *Store) Snapshot() State {
	store.mu.RLock()
	defer store.mu.RUnlock()
	return store.state
}

// AccessToken returns the current access token, or "" when anonymous.
func (store *Store) AccessToken() string {
	return store.Snapshot().AccessToken
}

// RefreshToken returns the current refresh token, or "".
func (store *Store) RefreshToken() string {
	return store.Snapshot().RefreshToken
}

// Identity returns a copy of the cached identity, or nil.
func (store *Store) Identity() *model.Identity {
	identity := store.Snapshot().Identity
	if identity == nil {
		return nil
	}
	copied := *identity
	return &copied
}

// Authenticated reports whether all three records are present.
func (store *Store) Authenticated() bool {
	return store.Snapshot().Authenticated()
}

// AccessExpiry decodes the exp claim of the access token without verifying it.
func (store *Store) AccessExpiry() (time.Time, error) {
	token := store.AccessToken()
	if token == "" {
		return time.Time{}, ErrAnonymous
	}
	return sec.ExpiresAt(token)
}

// # Subscription

// Subscribe registers fn to be called after every mutation and returns a
// function that removes it.
func (store *Store) Subscribe(fn Listener) (unsubscribe func()) {
	store.mu.Lock()
	id := store.nextID
	store.nextID++
	store.listeners[id] = fn
	store.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			store.mu.Lock()
			delete(store.listeners, id)
			store.mu.Unlock()
		})
	}
}

// # Internals

// publish swaps the in-memory state and notifies listeners. Callers hold writeMu.
func (store *Store) publish(next State) {
	store.mu.Lock()
	store.state = next
	listeners := make([]Listener, 0, len(store.listeners))
	for _, fn := range store.listeners {
		listeners = append(listeners, fn)
	}
	store.mu.Unlock()

	for _, fn := range listeners {
		fn(next)
	}
}

func (store *Store) load(context context.Context, key string) (string, error) {
	value, err := store.backend.Load(context, key)
	if err != nil {
		if errors.Is(err, ErrRecordNotFound) {
			return "", nil
		}
		return "", fmt.Errorf("session_initialize_failed: %w", err)
	}
	return value, nil
}

// removeAll attempts to remove every record and joins the failures.
func (store *Store) removeAll(context context.Context) error {
	var errs []error
	for _, key := range []string{
		constants.StorageKeyAccessToken,
		constants.StorageKeyRefreshToken,
		constants.StorageKeyUser,
	} {
		if err := store.backend.Remove(context, key); err != nil {
			store.logger.Error("failed to remove session record", slog.String("key", key), slog.Any("error", err))
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// publishIfChanged publishes next when a failed write already changed the records.
func (store *Store) publishIfChanged(previous, next State) {
	if previous != next {
		store.publish(next)
	}
}

// restore puts back a previous value after a partial write.
func (store *Store) restore(context context.Context, key, previous string) {
	var err error
	if previous == "" {
		err = store.backend.Remove(context, key)
	} else {
		err = store.backend.Save(context, key, previous)
	}
	if err != nil {
		store.logger.Error("failed to roll back session record", slog.String("key", key), slog.Any("error", err))
	}
}
