// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/taibuivan/taskdeck/internal/app"
	"github.com/taibuivan/taskdeck/internal/model"
	"github.com/taibuivan/taskdeck/internal/platform/sec"
	"github.com/taibuivan/taskdeck/internal/platform/validate"
	"github.com/taibuivan/taskdeck/internal/users"
	"github.com/taibuivan/taskdeck/pkg/pointer"
)

// # User Commands

func (r *runner) usersCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "users",
		Aliases: []string{"user"},
		Short:   "List and manage user accounts",
	}

	cmd.AddCommand(
		r.usersListCommand(),
		r.usersCreateCommand(),
		r.usersUpdateCommand(),
		r.usersDeleteCommand(),
	)
	return cmd
}

func (r *runner) usersListCommand() *cobra.Command {
	var source string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List users",
		Long: `List users. --source all reads the full account list (admins),
--source options reads the assignable users (managers and admins).
By default the widest listing the current role may read is used.`,
		Args: cobra.NoArgs,
	}
	cmd.Flags().StringVar(&source, "source", "", "all or options")

	cmd.RunE = r.run(func(ctx context.Context, application *app.App, _ []string) (any, error) {
		switch source {
		case "":
			return application.Users.List(ctx, application.Users.DefaultSource())
		case "all":
			return application.Users.List(ctx, users.SourceAll)
		case "options":
			return application.Users.List(ctx, users.SourceOptions)
		default:
			return nil, validate.RequiredError("source", fmt.Sprintf("Unknown user listing %q", source))
		}
	})
	return cmd
}

// userFlags binds the editable account fields.
type userFlags struct {
	username string
	email    string
	role     string
	password passwordFlags
}

func (f *userFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.username, "username", "", "account username")
	cmd.Flags().StringVar(&f.email, "email", "", "account email")
	cmd.Flags().StringVar(&f.role, "role", "", "ADMIN, MANAGER or MEMBER")
	f.password.bind(cmd)
}

func (f *userFlags) input(cmd *cobra.Command) (model.UserInput, error) {
	var input model.UserInput
	changed := cmd.Flags().Changed

	if changed("username") {
		input.Username = pointer.To(f.username)
	}
	if changed("email") {
		input.Email = pointer.To(f.email)
	}
	if changed("role") {
		role, err := sec.ParseRole(strings.ToUpper(f.role))
		if err != nil {
			return input, err
		}
		input.Role = &role
	}
	if changed("password") || changed("password-stdin") {
		secret, err := f.password.resolve(cmd)
		if err != nil {
			return input, err
		}
		input.Password = &secret
	}
	return input, nil
}

func (r *runner) usersCreateCommand() *cobra.Command {
	var flags userFlags

	cmd := &cobra.Command{
		Use:     "create",
		Short:   "Create an account (admins only)",
		Example: `  taskctl users create --username bob --email bob@example.com --role MANAGER --password secret`,
		Args:    cobra.NoArgs,
	}
	flags.bind(cmd)

	cmd.RunE = r.run(func(ctx context.Context, application *app.App, _ []string) (any, error) {
		input, err := flags.input(cmd)
		if err != nil {
			return nil, err
		}
		return application.Users.Create(ctx, input)
	})
	return cmd
}

func (r *runner) usersUpdateCommand() *cobra.Command {
	var flags userFlags

	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Update an account (admins only)",
		Args:  cobra.ExactArgs(1),
	}
	flags.bind(cmd)

	cmd.RunE = r.run(func(ctx context.Context, application *app.App, args []string) (any, error) {
		id, err := parseID("id", args[0])
		if err != nil {
			return nil, err
		}
		input, err := flags.input(cmd)
		if err != nil {
			return nil, err
		}
		return application.Users.Update(ctx, id, input)
	})
	return cmd
}

func (r *runner) usersDeleteCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete an account (admins only)",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = r.run(func(ctx context.Context, application *app.App, args []string) (any, error) {
		id, err := parseID("id", args[0])
		if err != nil {
			return nil, err
		}
		return nil, application.Users.Delete(ctx, id)
	})
	return cmd
}
