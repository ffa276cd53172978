// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package cli

import (
	"context"
	"strings"

	"github.com/spf13/cobra"

	"github.com/taibuivan/taskdeck/internal/app"
	"github.com/taibuivan/taskdeck/internal/model"
	"github.com/taibuivan/taskdeck/internal/policy"
	"github.com/taibuivan/taskdeck/internal/tasks"
	"github.com/taibuivan/taskdeck/pkg/pointer"
)

// # Task Commands

func (r *runner) tasksCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "tasks",
		Aliases: []string{"task"},
		Short:   "List and manage tasks",
	}

	cmd.AddCommand(
		r.tasksListCommand(),
		r.tasksGetCommand(),
		r.tasksCreateCommand(),
		r.tasksUpdateCommand(),
		r.tasksStatusCommand(),
		r.tasksDeleteCommand(),
		r.tasksAssignCommand(),
	)
	return cmd
}

func (r *runner) tasksListCommand() *cobra.Command {
	var filter model.TaskFilter
	var status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the tasks visible to the current user",
		Example: `  taskctl tasks list --status in-progress --ordering -priority,due_date
  taskctl tasks list --search report --due-before 2026-12-31`,
		Args: cobra.NoArgs,
	}
	cmd.Flags().StringVar(&status, "status", "", "TODO, IN_PROGRESS or COMPLETED")
	cmd.Flags().Int64Var(&filter.AssignedTo, "assigned-to", 0, "assignee user id")
	cmd.Flags().StringVar(&filter.DueBefore, "due-before", "", "due strictly before this date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&filter.DueAfter, "due-after", "", "due strictly after this date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&filter.Search, "search", "", "search title and description")
	cmd.Flags().StringVar(&filter.Ordering, "ordering", "", "comma-separated fields, prefix with - for descending")

	cmd.RunE = r.run(func(ctx context.Context, application *app.App, _ []string) (any, error) {
		if status != "" {
			parsed, err := tasks.ParseStatus(status)
			if err != nil {
				return nil, err
			}
			filter.Status = parsed
		}
		return application.Tasks.List(ctx, filter)
	})
	return cmd
}

func (r *runner) tasksGetCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "get ID",
		Short: "Show one task",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = r.run(func(ctx context.Context, application *app.App, args []string) (any, error) {
		id, err := parseID("id", args[0])
		if err != nil {
			return nil, err
		}
		task, err := application.Tasks.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return taskView{
			Task:    task,
			Actions: policy.Affordances(application.Session.Identity(), task),
		}, nil
	})
	return cmd
}

// taskView is the output of tasks get: the task plus the actions the
// current user may take on it.
type taskView struct {
	*model.Task
	Actions []policy.Action `json:"actions"`
}

// taskFlags binds the editable task fields. Only flags set on the command
// line end up in the payload.
type taskFlags struct {
	title       string
	description string
	status      string
	dueDate     string
	priority    int
	assignee    int64
}

func (f *taskFlags) bind(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.title, "title", "", "task title")
	cmd.Flags().StringVar(&f.description, "description", "", "task description")
	cmd.Flags().StringVar(&f.status, "status", "", "TODO, IN_PROGRESS or COMPLETED")
	cmd.Flags().StringVar(&f.dueDate, "due-date", "", "due date (YYYY-MM-DD)")
	cmd.Flags().IntVar(&f.priority, "priority", model.PriorityDefault, "priority from 1 to 5")
	cmd.Flags().Int64Var(&f.assignee, "assign-to", 0, "assignee user id")
}

func (f *taskFlags) input(cmd *cobra.Command) (model.TaskInput, error) {
	var input model.TaskInput
	changed := cmd.Flags().Changed

	if changed("title") {
		input.Title = pointer.To(f.title)
	}
	if changed("description") {
		input.Description = pointer.To(f.description)
	}
	if changed("status") {
		status, err := tasks.ParseStatus(f.status)
		if err != nil {
			return input, err
		}
		input.Status = &status
	}
	if changed("due-date") {
		input.DueDate = pointer.To(f.dueDate)
	}
	if changed("priority") {
		input.Priority = pointer.To(f.priority)
	}
	if changed("assign-to") {
		input.AssignedToID = pointer.To(f.assignee)
	}
	return input, nil
}

func (r *runner) tasksCreateCommand() *cobra.Command {
	var flags taskFlags

	cmd := &cobra.Command{
		Use:     "create",
		Short:   "Create a task",
		Example: `  taskctl tasks create --title "Write report" --priority 1 --due-date 2026-11-01`,
		Args:    cobra.NoArgs,
	}
	flags.bind(cmd)

	cmd.RunE = r.run(func(ctx context.Context, application *app.App, _ []string) (any, error) {
		input, err := flags.input(cmd)
		if err != nil {
			return nil, err
		}
		return application.Tasks.Create(ctx, input)
	})
	return cmd
}

func (r *runner) tasksUpdateCommand() *cobra.Command {
	var flags taskFlags
	var replace bool

	cmd := &cobra.Command{
		Use:   "update ID",
		Short: "Update the fields given on the command line",
		Long: `Update a task. Without --replace only the given fields are sent (PATCH).
With --replace the task is replaced (PUT) and --title is required.

Members change the status with "taskctl tasks status" instead.`,
		Args: cobra.ExactArgs(1),
	}
	flags.bind(cmd)
	cmd.Flags().BoolVar(&replace, "replace", false, "replace the whole task")

	cmd.RunE = r.run(func(ctx context.Context, application *app.App, args []string) (any, error) {
		id, err := parseID("id", args[0])
		if err != nil {
			return nil, err
		}
		input, err := flags.input(cmd)
		if err != nil {
			return nil, err
		}
		if replace {
			return application.Tasks.Replace(ctx, id, input)
		}
		return application.Tasks.Update(ctx, id, input)
	})
	return cmd
}

func (r *runner) tasksStatusCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "status ID STATUS",
		Short:   "Move a task to another status",
		Example: `  taskctl tasks status 12 in-progress`,
		Args:    cobra.ExactArgs(2),
	}
	cmd.RunE = r.run(func(ctx context.Context, application *app.App, args []string) (any, error) {
		id, err := parseID("id", args[0])
		if err != nil {
			return nil, err
		}
		to, err := tasks.ParseStatus(args[1])
		if err != nil {
			return nil, err
		}

		task, err := application.Tasks.Get(ctx, id)
		if err != nil {
			return nil, err
		}
		return application.Tasks.UpdateStatus(ctx, task, to)
	})
	return cmd
}

func (r *runner) tasksDeleteCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
	}
	cmd.RunE = r.run(func(ctx context.Context, application *app.App, args []string) (any, error) {
		id, err := parseID("id", args[0])
		if err != nil {
			return nil, err
		}
		return nil, application.Tasks.Delete(ctx, id)
	})
	return cmd
}

func (r *runner) tasksAssignCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "assign ID USER_ID|none",
		Short: "Assign a task to a user, or unassign it with none",
		Args:  cobra.ExactArgs(2),
	}
	cmd.RunE = r.run(func(ctx context.Context, application *app.App, args []string) (any, error) {
		id, err := parseID("id", args[0])
		if err != nil {
			return nil, err
		}

		var userID *int64
		if !strings.EqualFold(args[1], "none") {
			parsed, err := parseID("user_id", args[1])
			if err != nil {
				return nil, err
			}
			userID = &parsed
		}
		return application.Tasks.Assign(ctx, id, userID)
	})
	return cmd
}
