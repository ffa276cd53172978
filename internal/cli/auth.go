// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package cli

import (
	"bufio"
	"context"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/taibuivan/taskdeck/internal/app"
	"github.com/taibuivan/taskdeck/internal/model"
)

// # Authentication Commands

type passwordFlags struct {
	password string
	stdin    bool
}

func (p *passwordFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&p.password, "password", "", "account password")
	cmd.Flags().BoolVar(&p.stdin, "password-stdin", false, "read the password from the first line of stdin")
}

// resolve returns the flag value, or the first stdin line with --password-stdin.
func (p *passwordFlags) resolve(cmd *cobra.Command) (string, error) {
	if !p.stdin {
		return p.password, nil
	}

	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}

func (r *runner) loginCommand() *cobra.Command {
	var username string
	var password passwordFlags

	cmd := &cobra.Command{
		Use:   "login",
		Short: "Log in and persist the session",
		Example: `  taskctl login --username alice --password secret
  echo secret | taskctl login --username alice --password-stdin`,
		Args: cobra.NoArgs,
	}
	cmd.Flags().StringVar(&username, "username", "", "account username")
	password.bind(cmd)

	cmd.RunE = r.run(func(ctx context.Context, application *app.App, _ []string) (any, error) {
		secret, err := password.resolve(cmd)
		if err != nil {
			return nil, err
		}
		return application.Auth.Login(ctx, model.Credentials{Username: username, Password: secret})
	})
	return cmd
}

func (r *runner) registerCommand() *cobra.Command {
	var registration model.Registration
	var password passwordFlags
	var andLogin bool

	cmd := &cobra.Command{
		Use:   "register",
		Short: "Create a member account",
		Long: `Create a member account. New accounts always receive the MEMBER role;
an admin can promote them later with "taskctl users update".`,
		Args: cobra.NoArgs,
	}
	cmd.Flags().StringVar(&registration.Username, "username", "", "account username")
	cmd.Flags().StringVar(&registration.Email, "email", "", "account email")
	cmd.Flags().BoolVar(&andLogin, "login", false, "log in with the new account afterwards")
	password.bind(cmd)

	cmd.RunE = r.run(func(ctx context.Context, application *app.App, _ []string) (any, error) {
		secret, err := password.resolve(cmd)
		if err != nil {
			return nil, err
		}
		registration.Password = secret

		if andLogin {
			return application.Auth.RegisterAndLogin(ctx, registration)
		}
		return application.Auth.Register(ctx, registration)
	})
	return cmd
}

func (r *runner) logoutCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "logout",
		Short: "Revoke the refresh token and clear the session",
		Args:  cobra.NoArgs,
	}
	cmd.RunE = r.run(func(ctx context.Context, application *app.App, _ []string) (any, error) {
		return nil, application.Auth.Logout(ctx)
	})
	return cmd
}

// whoami is the output of the whoami command.
type whoami struct {
	Authenticated bool            `json:"authenticated"`
	Identity      *model.Identity `json:"identity,omitempty"`
	ExpiresAt     *time.Time      `json:"access_expires_at,omitempty"`
	Backend       string          `json:"session_backend"`
}

func (r *runner) whoamiCommand() *cobra.Command {
	var refresh bool

	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Show the current identity",
		Args:  cobra.NoArgs,
	}
	cmd.Flags().BoolVar(&refresh, "refresh", false, "reload the profile from the service")

	cmd.RunE = r.run(func(ctx context.Context, application *app.App, _ []string) (any, error) {
		if refresh {
			if _, err := application.Auth.FetchProfile(ctx); err != nil {
				return nil, err
			}
		}

		out := whoami{
			Authenticated: application.Session.Authenticated(),
			Identity:      application.Session.Identity(),
			Backend:       application.BackendName(),
		}
		if expiry, err := application.Session.AccessExpiry(); err == nil {
			out.ExpiresAt = &expiry
		}
		return out, nil
	})
	return cmd
}
