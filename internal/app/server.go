// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package app

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/taibuivan/taskdeck/internal/platform/constants"
	"github.com/taibuivan/taskdeck/internal/platform/metrics"
	"github.com/taibuivan/taskdeck/internal/platform/middleware"
	"github.com/taibuivan/taskdeck/internal/platform/respond"
)

// # Status Server

// StatusServer exposes the health of a long-running client process.
//
// Routes:
//   - GET /health   liveness, always 200 while the process runs
//   - GET /ready    dependency checks, 503 when degraded
//   - GET /session  the current identity, without tokens
//   - GET /metrics  Prometheus exposition of the client metrics
type StatusServer struct {
	httpServer *http.Server
	router     *chi.Mux
	log        *slog.Logger
}

// NewStatusServer builds the router and binds it to addr.
func NewStatusServer(application *App, addr string) *StatusServer {
	r := chi.NewRouter()

	r.Use(middleware.RequestID())
	r.Use(middleware.StructuredLogger(application.Logger))
	r.Use(middleware.PanicRecovery())
	r.Use(chimw.CleanPath)

	r.Get("/health", func(writer http.ResponseWriter, request *http.Request) {
		respond.OK(writer, map[string]string{"status": "ok"})
	})

	r.Get("/ready", func(writer http.ResponseWriter, request *http.Request) {
		report := application.Check(request.Context())
		if !report.Ready() {
			respond.JSON(writer, http.StatusServiceUnavailable, report)
			return
		}
		respond.OK(writer, report)
	})

	r.Get("/session", func(writer http.ResponseWriter, request *http.Request) {
		respond.OK(writer, map[string]any{
			"authenticated": application.Session.Authenticated(),
			"identity":      application.Session.Identity(),
			"backend":       application.BackendName(),
		})
	})

	r.Method(http.MethodGet, "/metrics", metrics.Handler(application.Registry))

	return &StatusServer{
		router: r,
		log:    application.Logger,
		httpServer: &http.Server{
			Addr:              addr,
			Handler:           r,
			ReadHeaderTimeout: constants.StatusReadHeaderTimeout,
			WriteTimeout:      constants.StatusWriteTimeout,
		},
	}
}

// Handler returns the router, for tests and embedding.
func (s *StatusServer) Handler() http.Handler {
	return s.router
}

// ListenAndServe blocks until the server is closed or fails.
func (s *StatusServer) ListenAndServe() error {
	s.log.Info("status server starting", slog.String("addr", s.httpServer.Addr))
	return s.httpServer.ListenAndServe()
}

// Shutdown stops the server, waiting up to timeout for in-flight requests.
func (s *StatusServer) Shutdown(timeout time.Duration) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	return s.httpServer.Shutdown(ctx)
}
