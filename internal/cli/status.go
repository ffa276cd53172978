// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package cli

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/taibuivan/taskdeck/internal/app"
	"github.com/taibuivan/taskdeck/internal/platform/apperr"
	"github.com/taibuivan/taskdeck/internal/platform/constants"
)

// # Diagnostics Commands

func (r *runner) statusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Check the session backend and the task service",
		Long: `Check every dependency of the client and print a readiness report.
The command fails when any check fails.`,
		Args: cobra.NoArgs,
	}
	cmd.RunE = r.run(func(ctx context.Context, application *app.App, _ []string) (any, error) {
		report := application.Check(ctx)
		if !report.Ready() {
			_ = writeJSON(cmd.OutOrStdout(), report)
			return nil, &apperr.AppError{Code: apperr.CodeNetwork, Message: "One or more dependencies are unavailable"}
		}
		return report, nil
	})
	return cmd
}

func (r *runner) serveCommand() *cobra.Command {
	var listen string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve health, session and metrics endpoints until interrupted",
		Long: `Start a local status server exposing /health, /ready, /session and
/metrics. The session is restored once at startup.`,
		Args: cobra.NoArgs,
	}
	cmd.Flags().StringVar(&listen, "listen", constants.DefaultStatusAddr, "listen address")

	cmd.RunE = r.run(func(ctx context.Context, application *app.App, _ []string) (any, error) {
		server := app.NewStatusServer(application, listen)

		serverErr := make(chan error, 1)
		go func() {
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				serverErr <- err
			}
			close(serverErr)
		}()

		select {
		case <-ctx.Done():
			r.options.Logger.Info("shutdown signal received")
		case err, ok := <-serverErr:
			if ok {
				return nil, err
			}
			return nil, nil
		}

		r.options.Logger.Info("shutting down status server", slog.Duration("timeout", constants.StatusShutdownTimeout))
		return nil, server.Shutdown(constants.StatusShutdownTimeout)
	})
	return cmd
}
