// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/taibuivan/taskdeck/internal/platform/constants"
	"github.com/taibuivan/taskdeck/internal/platform/redis"
	"github.com/taibuivan/taskdeck/internal/session"
)

// checkTimeout bounds each individual dependency check.
const checkTimeout = 5 * time.Second

// CheckResult is the outcome of one dependency check.
type CheckResult struct {
	Name  string `json:"name"`
	IsOK  bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Report summarises all dependency checks.
type Report struct {
	Status string        `json:"status"`
	Checks []CheckResult `json:"checks"`
}

// Ready reports whether every check passed.
func (report Report) Ready() bool {
	return report.Status == "ready"
}

/*
Check verifies the dependencies of the client: the session backend, Redis
(when it backs the session) and the reachability of the task service.

The service check sends an unauthenticated GET to the base URL. Any HTTP
answer counts as reachable; only network failures fail the check.
*/
func (application *App) Check(ctx context.Context) Report {
	checks := []struct {
		name string
		run  func(context.Context) error
	}{
		{"session:" + application.backend.Name(), application.checkSession},
		{"api", application.checkAPI},
	}
	if application.redis != nil {
		checks = append(checks, struct {
			name string
			run  func(context.Context) error
		}{"redis", func(ctx context.Context) error { return redis.Ping(ctx, application.redis) }})
	}

	report := Report{Status: "ready", Checks: make([]CheckResult, 0, len(checks))}
	for _, check := range checks {
		checkCtx, cancel := context.WithTimeout(ctx, checkTimeout)
		err := check.run(checkCtx)
		cancel()

		result := CheckResult{Name: check.name, IsOK: err == nil}
		if err != nil {
			result.Error = err.Error()
			report.Status = "degraded"
			application.Logger.Error("readiness_check_failed", slog.String("dependency", check.name), slog.Any("error", err))
		}
		report.Checks = append(report.Checks, result)
	}

	return report
}

func (application *App) checkSession(ctx context.Context) error {
	_, err := application.backend.Load(ctx, constants.StorageKeyAccessToken)
	if err != nil && !errors.Is(err, session.ErrRecordNotFound) {
		return err
	}
	return nil
}

func (application *App) checkAPI(ctx context.Context) error {
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, application.Config.BaseURL(), nil)
	if err != nil {
		return fmt.Errorf("api_request_build_failed: %w", err)
	}

	response, err := application.httpClient.Do(request)
	if err != nil {
		return fmt.Errorf("api_unreachable: %w", err)
	}
	defer response.Body.Close()
	_, _ = io.Copy(io.Discard, response.Body)

	if response.StatusCode >= http.StatusInternalServerError {
		return fmt.Errorf("api_unhealthy: status %d", response.StatusCode)
	}
	return nil
}
