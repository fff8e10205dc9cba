package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ersonp/bookspace/internal/application/handlers"
	"github.com/ersonp/bookspace/internal/domain/entities"
	"github.com/ersonp/bookspace/internal/infrastructure/logging"
	"github.com/ersonp/bookspace/internal/infrastructure/parsers"
)

// errTasksNeedRemote replaces ErrNotConfigured for task commands.
var errTasksNeedRemote = errors.New("tasks need a remote store (set remote.provider in .bookspace/config.yaml)")

func newTasksCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "Manage tasks shared with other users",
		Long: "Tasks live on the remote store only. A task is visible to its creator, its assignees " +
			"and the users it is shared with.",
	}

	cmd.AddCommand(
		newTasksListCmd(),
		newTasksSaveCmd(),
		newTasksDeleteCmd(),
		newTasksWatchCmd(),
	)

	return cmd
}

func newTasksListCmd() *cobra.Command {
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List the tasks shared with you",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd.Context(), func(d *Deps) error {
				tasks, err := d.Tasks.List(cmd.Context(), d.UserID)
				if err != nil {
					return taskError(err)
				}
				if asJSON {
					return writeJSON(os.Stdout, tasks)
				}
				displayTasks(os.Stdout, tasks)
				return nil
			})
		},
	}

	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the tasks as a JSON array")

	return cmd
}

type taskSaveFlags struct {
	id         string
	title      string
	data       string
	assignees  []string
	sharedWith []string
}

func newTasksSaveCmd() *cobra.Command {
	var flags taskSaveFlags

	cmd := &cobra.Command{
		Use:   "save",
		Short: "Create or edit a task",
		Long: "Creates a task, or edits the task given by --id. Content comes from --title and --data; " +
			"when editing it is merged into the stored task. --assign and --share replace the stored lists.",
		RunE: func(cmd *cobra.Command, args []string) error {
			in, err := taskInput(flags, cmd.Flags().Changed("assign"), cmd.Flags().Changed("share"))
			if err != nil {
				return err
			}
			return withDeps(cmd.Context(), func(d *Deps) error {
				id, err := d.Tasks.Save(cmd.Context(), d.UserID, in)
				if err != nil {
					return taskError(err)
				}
				verb := "Created"
				if flags.id != "" {
					verb = "Updated"
				}
				fmt.Printf("%s task %s\n", verb, id)
				return nil
			})
		},
	}

	cmd.Flags().StringVar(&flags.id, "id", "", "Id of the task to edit")
	cmd.Flags().StringVarP(&flags.title, "title", "t", "", "Task title")
	cmd.Flags().StringVarP(&flags.data, "data", "d", "", "Task content as a JSON object")
	cmd.Flags().StringSliceVar(&flags.assignees, "assign", nil, "User ids the task is assigned to")
	cmd.Flags().StringSliceVar(&flags.sharedWith, "share", nil, "User ids the task is shared with")

	return cmd
}

// taskInput builds the handler input. Lists are only set when their flag
// was given, so an edit without them keeps the stored ones.
func taskInput(flags taskSaveFlags, assign, share bool) (handlers.TaskInput, error) {
	in := handlers.TaskInput{ID: flags.id, Fields: map[string]any{}}
	if flags.data != "" {
		obj, err := parsers.ParseObject(strings.NewReader(flags.data))
		if err != nil {
			return in, err
		}
		for k, v := range obj {
			in.Fields[k] = v
		}
	}
	if flags.title != "" {
		in.Fields[entities.TaskFieldTitle] = flags.title
	}
	if flags.id == "" && len(in.Fields) == 0 {
		return in, fmt.Errorf("a new task needs --title or --data")
	}
	if assign {
		in.Assignees = append([]string{}, flags.assignees...)
	}
	if share {
		in.SharedWith = append([]string{}, flags.sharedWith...)
	}
	return in, nil
}

func newTasksDeleteCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "delete ID",
		Short: "Delete a task",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force && !confirmAction(fmt.Sprintf("Delete task %s for everyone it is shared with?", args[0])) {
				fmt.Println("Cancelled.")
				return nil
			}
			return withDeps(cmd.Context(), func(d *Deps) error {
				if err := d.Tasks.Delete(cmd.Context(), d.UserID, args[0]); err != nil {
					return taskError(err)
				}
				fmt.Printf("Deleted task %s\n", args[0])
				return nil
			})
		},
	}

	cmd.Flags().BoolVarP(&force, "force", "f", false, "Skip confirmation prompt")

	return cmd
}

func newTasksWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Follow shared tasks in real time",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withDeps(cmd.Context(), func(d *Deps) error {
				fmt.Printf("Watching tasks of user %s. Press Ctrl+C to stop.\n", d.UserID)
				ctx := logging.WithLogger(cmd.Context(), d.Logger)
				err := d.Tasks.Watch(ctx, d.UserID, func(tasks []entities.Task) {
					fmt.Println("[tasks]")
					displayTasks(os.Stdout, tasks)
				})
				return taskError(err)
			})
		},
	}
}

func taskError(err error) error {
	if errors.Is(err, entities.ErrNotConfigured) {
		return errTasksNeedRemote
	}
	return err
}

func displayTasks(w io.Writer, tasks []entities.Task) {
	if len(tasks) == 0 {
		fmt.Fprintln(w, "No tasks.")
		return
	}
	for _, t := range tasks {
		fmt.Fprintln(w, formatTask(t))
	}
}

// formatTask renders one task as a single line.
func formatTask(t entities.Task) string {
	title := t.Title()
	if title == "" {
		title = "(untitled)"
	}
	line := fmt.Sprintf("%s  %s  by %s", t.ID, title, t.CreatedBy)
	if len(t.Assignees) > 0 {
		line += "  assigned to " + strings.Join(t.Assignees, ", ")
	}
	return line
}
