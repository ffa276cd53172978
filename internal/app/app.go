// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package app is the composition root of the Taskdeck client.

It builds the session backend selected by the configuration, the session
store, the authenticated transport, the entity cache and the three domain
services, and ties their lifecycles together.

Usage:

	application, err := app.New(ctx, cfg, logger)
	if err != nil {
	    return err
	}
	defer application.Close()

	if err := application.Start(ctx); err != nil {
	    return err
	}
*/
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	goredis "github.com/redis/go-redis/v9"

	"github.com/taibuivan/taskdeck/internal/auth"
	"github.com/taibuivan/taskdeck/internal/cache"
	"github.com/taibuivan/taskdeck/internal/platform/config"
	"github.com/taibuivan/taskdeck/internal/platform/metrics"
	"github.com/taibuivan/taskdeck/internal/platform/redis"
	"github.com/taibuivan/taskdeck/internal/session"
	"github.com/taibuivan/taskdeck/internal/tasks"
	"github.com/taibuivan/taskdeck/internal/transport"
	"github.com/taibuivan/taskdeck/internal/users"
)

// # Application

// App groups every long-lived component of the client.
type App struct {
	Config   *config.Config
	Logger   *slog.Logger
	Registry *prometheus.Registry

	Session *session.Store
	Cache   *cache.Cache
	API     *transport.Client

	Auth  *auth.Service
	Tasks *tasks.Service
	Users *users.Service

	backend     session.Backend
	httpClient  *http.Client
	redis       *goredis.Client
	unsubscribe func()
}

// Option customises [New].
type Option func(*options)

type options struct {
	httpClient *http.Client
	backend    session.Backend
}

// WithHTTPClient overrides the HTTP client used by the transport.
func WithHTTPClient(client *http.Client) Option {
	return func(o *options) { o.httpClient = client }
}

// WithBackend overrides the session backend selected by the configuration.
func WithBackend(backend session.Backend) Option {
	return func(o *options) { o.backend = backend }
}

/*
New wires the client together. Nothing is read from the session backend
until [App.Start] is called.

Parameters:
  - ctx: context.Context (bounds the Redis connection check)
  - cfg: *config.Config
  - logger: *slog.Logger

Returns:
  - *App: The assembled application
  - error: Backend or transport construction failures
*/
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger, opts ...Option) (*App, error) {
	o := options{}
	for _, opt := range opts {
		opt(&o)
	}

	if o.httpClient == nil {
		o.httpClient = &http.Client{}
	}

	application := &App{
		Config:     cfg,
		Logger:     logger,
		Registry:   prometheus.NewRegistry(),
		httpClient: o.httpClient,
	}

	// ── 1. Session Backend ─────────────────────────────────────────────
	application.backend = o.backend
	if application.backend == nil {
		backend, err := application.newBackend(ctx)
		if err != nil {
			return nil, err
		}
		application.backend = backend
	}

	// ── 2. Metrics ─────────────────────────────────────────────────────
	collector := metrics.NewCollector(application.Registry)

	// ── 3. Session Store ───────────────────────────────────────────────
	application.Session = session.NewStore(application.backend, logger, session.WithMetrics(collector))

	// ── 4. Transport ───────────────────────────────────────────────────
	client, err := transport.New(transport.Config{
		BaseURL:        cfg.BaseURL(),
		HTTPClient:     o.httpClient,
		Timeout:        cfg.RequestTimeout,
		RateLimitRPS:   cfg.RateLimitRPS,
		RateLimitBurst: cfg.RateLimitBurst,
		Logger:         logger,
		Metrics:        collector,
	}, application.Session)
	if err != nil {
		application.Close()
		return nil, fmt.Errorf("transport_init_failed: %w", err)
	}
	application.API = client

	// ── 5. Entity Cache ────────────────────────────────────────────────
	application.Cache = cache.New(cache.Options{
		FreshFor: cfg.CacheFreshFor,
		Logger:   logger,
		Metrics:  collector,
	})

	// Cached entities belong to the credentials that read them. Listeners run
	// serialized under the session's write lock.
	var lastAccess string
	application.unsubscribe = application.Session.Subscribe(func(state session.State) {
		if state.Anonymous() || state.AccessToken != lastAccess {
			application.Cache.Purge()
		}
		lastAccess = state.AccessToken
	})

	// ── 6. Domain Services ─────────────────────────────────────────────
	application.Auth = auth.NewService(client, application.Session, logger)
	application.Tasks = tasks.NewService(client, application.Session, application.Cache, logger)
	application.Users = users.NewService(client, application.Session, application.Cache, logger)

	logger.Debug("app_initialized",
		slog.String("session_backend", application.backend.Name()),
		slog.String("api_url", cfg.BaseURL()),
	)

	return application, nil
}

// Start restores the persisted session.
func (application *App) Start(ctx context.Context) error {
	if err := application.Session.Initialize(ctx); err != nil {
		return fmt.Errorf("session_restore_failed: %w", err)
	}
	return nil
}

// Close releases the Redis connection, if any. It is safe to call more than once.
func (application *App) Close() {
	if application.unsubscribe != nil {
		application.unsubscribe()
		application.unsubscribe = nil
	}
	if application.redis != nil {
		if err := application.redis.Close(); err != nil {
			application.Logger.Warn("redis_close_failed", slog.Any("error", err))
		}
		application.redis = nil
	}
}

// BackendName reports which session backend is in use.
func (application *App) BackendName() string {
	return application.backend.Name()
}

func (application *App) newBackend(ctx context.Context) (session.Backend, error) {
	switch application.Config.SessionBackend {
	case config.BackendMemory:
		return session.NewMemoryBackend(), nil

	case config.BackendRedis:
		client, err := redis.NewClient(ctx, application.Config.RedisURL, application.Logger)
		if err != nil {
			return nil, fmt.Errorf("session_backend_init_failed: %w", err)
		}
		application.redis = client
		return session.NewRedisBackend(client, ""), nil

	case config.BackendFile:
		return session.NewFileBackend(application.Config.SessionDir), nil

	default:
		return nil, fmt.Errorf("session_backend_init_failed: unknown backend %q", application.Config.SessionBackend)
	}
}
