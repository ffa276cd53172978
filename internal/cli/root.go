// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

/*
Package cli implements the taskctl command tree.

Every command builds a fresh [app.App], restores the persisted session, runs
one use case and prints its result as JSON on stdout. Logs go to the logger
passed in [Options], never to stdout.
*/
package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/taibuivan/taskdeck/internal/app"
	"github.com/taibuivan/taskdeck/internal/platform/config"
	"github.com/taibuivan/taskdeck/internal/platform/constants"
	"github.com/taibuivan/taskdeck/internal/platform/metrics"
	"github.com/taibuivan/taskdeck/internal/platform/validate"
)

// Options carries the process-wide dependencies of the command tree.
type Options struct {
	Config *config.Config
	Logger *slog.Logger

	// AppOptions are forwarded to [app.New].
	AppOptions []app.Option
}

// action is the body of a command. A nil result prints nothing.
type action func(ctx context.Context, application *app.App, args []string) (any, error)

type runner struct {
	options    Options
	metricsOut string
}

// NewRootCommand assembles the taskctl command tree.
func NewRootCommand(options Options) *cobra.Command {
	r := &runner{options: options}

	root := &cobra.Command{
		Use:     "taskctl",
		Short:   "Command-line client for the Taskdeck task service",
		Version: constants.AppVersion,
		Long: `taskctl talks to a Taskdeck task service on behalf of one user.

The session (access token, refresh token and identity) is persisted by the
configured backend, so a login survives across invocations.

Configuration is read from TASKDECK_* environment variables.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&r.metricsOut, "metrics-out", "", "write client metrics in Prometheus text format to this file after the command")

	root.AddCommand(
		r.loginCommand(),
		r.registerCommand(),
		r.logoutCommand(),
		r.whoamiCommand(),
		r.statusCommand(),
		r.serveCommand(),
		r.tasksCommand(),
		r.usersCommand(),
	)

	return root
}

// run adapts an action into a cobra RunE.
func (r *runner) run(body action) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		application, err := app.New(ctx, r.options.Config, r.options.Logger, r.options.AppOptions...)
		if err != nil {
			return err
		}
		defer application.Close()

		if err := application.Start(ctx); err != nil {
			return err
		}

		result, runErr := body(ctx, application, args)

		if err := r.writeMetrics(application); err != nil {
			r.options.Logger.Warn("metrics_write_failed", slog.Any("error", err))
		}

		if runErr != nil {
			return runErr
		}
		if result == nil {
			return nil
		}
		return writeJSON(cmd.OutOrStdout(), result)
	}
}

func (r *runner) writeMetrics(application *app.App) error {
	if r.metricsOut == "" {
		return nil
	}

	file, err := os.Create(r.metricsOut)
	if err != nil {
		return fmt.Errorf("metrics_file_create_failed: %w", err)
	}
	defer file.Close()

	return metrics.WriteText(file, application.Registry)
}

// # Helpers

func writeJSON(writer io.Writer, value any) error {
	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(value)
}

// parseID reads a positive numeric id argument.
func parseID(field, raw string) (int64, error) {
	id, parseErr := strconv.ParseInt(raw, 10, 64)
	if err := (&validate.Validator{}).Custom(field, parseErr != nil || id <= 0, "Must be a positive integer").Err(); err != nil {
		return 0, err
	}
	return id, nil
}
