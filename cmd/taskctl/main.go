// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

// Command taskctl is the command-line client for the Taskdeck task service.
//
// # Startup Sequence
//
//  1. Initialize structured logger (JSON on stderr).
//  2. Load configuration from environment variables.
//  3. Build the command tree and run it until done or interrupted.
//
// Command results are printed as JSON on stdout. Failures are printed on
// stderr as the JSON form of the error and the process exits non-zero.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/taibuivan/taskdeck/internal/cli"
	"github.com/taibuivan/taskdeck/internal/platform/apperr"
	"github.com/taibuivan/taskdeck/internal/platform/config"
	"github.com/taibuivan/taskdeck/internal/platform/constants"
	"github.com/taibuivan/taskdeck/internal/transport"
)

// Exit codes.
const (
	exitOK          = 0
	exitFailure     = 1
	exitConfig      = 2
	exitTimeout     = 3
	exitInterrupted = 130
)

func main() {
	// ── 1. Logger ──────────────────────────────────────────────────────────
	// Warnings and errors only, so stdout stays clean for command output.
	log := newLogger(slog.LevelWarn)
	slog.SetDefault(log)

	// ── 2. Configuration ──────────────────────────────────────────────────
	cfg, err := config.Load()
	must(log, err, "load configuration")

	if cfg.Debug {
		log = newLogger(slog.LevelDebug)
		slog.SetDefault(log)
		log.Debug("debug_logging_enabled",
			slog.String("environment", cfg.Environment),
			slog.String("session_backend", cfg.SessionBackend),
		)
	}

	// ── 3. Command Tree ───────────────────────────────────────────────────
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	root := cli.NewRootCommand(cli.Options{Config: cfg, Logger: log})
	err = root.ExecuteContext(ctx)
	code := exitCode(ctx, err)
	switch code {
	case exitOK:
	case exitInterrupted:
		log.Warn("operation cancelled")
	default:
		report(os.Stderr, err)
	}
	stop()
	os.Exit(code)
}

// exitCode maps the outcome of a command to the process exit status.
// A request that ran out of time exits with exitTimeout.
func exitCode(ctx context.Context, err error) int {
	switch {
	case err == nil:
		return exitOK
	case errors.Is(ctx.Err(), context.Canceled):
		return exitInterrupted
	case transport.IsTimeout(err):
		return exitTimeout
	default:
		return exitFailure
	}
}

func newLogger(level slog.Level) *slog.Logger {
	handler := slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level})
	return slog.New(handler).With(slog.String("app", constants.AppName))
}

// report prints err as JSON. Application errors keep their code and field details.
func report(writer io.Writer, err error) {
	appError := apperr.As(err)
	if appError == nil {
		appError = &apperr.AppError{Code: apperr.CodeInternal, Message: err.Error()}
	}
	if transport.IsTimeout(err) {
		timedOut := *appError
		timedOut.Message = "The task service did not answer in time"
		appError = &timedOut
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	_ = encoder.Encode(appError)
}

// must logs and exits when a startup step fails.
func must(log *slog.Logger, err error, msg string) {
	if err != nil {
		log.Error("startup failed: "+msg, slog.Any("error", err))
		os.Exit(exitConfig)
	}
}
