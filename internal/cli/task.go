package cli

import (
	"fmt"
	"io"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"tasky/internal/service"
)

func newTaskCommand(opts *options) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "task",
		Short: "Inspect and delete tasks",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List tasks, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			views, err := a.tasks.ListTasks(cmd.Context())
			if err != nil {
				return err
			}
			w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tTITLE\tSTATUS\tASSIGNEES")
			for _, v := range views {
				fmt.Fprintf(w, "%d\t%s\t%s\t%d\n", v.Task.ID, v.Task.Title, v.Status(), len(v.Assignees))
			}
			return w.Flush()
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "show <id>",
		Short: "Show a task with its assignees",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := openApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			view, err := a.tasks.GetTask(cmd.Context(), id)
			if err != nil {
				return err
			}
			printTask(cmd.OutOrStdout(), *view)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a task together with its assignments",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			a, err := openApp(opts)
			if err != nil {
				return err
			}
			defer a.Close()

			res, err := a.cascade.DeleteTask(cmd.Context(), id)
			printCascade(cmd.OutOrStdout(), res)
			if err != nil {
				return operatorError{err}
			}
			return nil
		},
	})

	return cmd
}

func printTask(out io.Writer, view service.TaskView) {
	fmt.Fprintf(out, "#%d %s\n", view.Task.ID, view.Task.Title)
	if view.Task.Description != "" {
		fmt.Fprintf(out, "  %s\n", view.Task.Description)
	}
	fmt.Fprintf(out, "  status: %s\n", view.Status())
	for _, a := range view.Assignees {
		name := fmt.Sprintf("missing user #%d", a.Assignment.UserID)
		if a.User != nil {
			name = a.User.DisplayName
		}
		fmt.Fprintf(out, "  - %s (%s)\n", name, a.Assignment.Status)
	}
}

func printCascade(out io.Writer, res *service.CascadeResult) {
	if res == nil {
		return
	}
	path := make([]string, len(res.Path))
	for i, s := range res.Path {
		path[i] = string(s)
	}
	fmt.Fprintf(out, "operation %s: %s #%d %s, %d assignment(s) removed\n",
		res.OperationID, res.Relation, res.ParentID, strings.Join(path, " -> "), res.ChildrenDeleted)
	for _, attempt := range res.Attempts {
		result := "ok"
		if attempt.Err != nil {
			result = attempt.Err.Error()
		}
		fmt.Fprintf(out, "  %s delete: %s\n", attempt.Deleter, result)
	}
}

func parseID(raw string) (uint, error) {
	value, err := strconv.ParseUint(strings.TrimSpace(raw), 10, 64)
	if err != nil || value == 0 {
		return 0, fmt.Errorf("invalid id %q", raw)
	}
	return uint(value), nil
}

// operatorError prints the operator message of a service error while keeping
// it matchable with errors.Is.
type operatorError struct{ err error }

func (e operatorError) Error() string { return service.UserMessage(e.err) }

func (e operatorError) Unwrap() error { return e.err }
