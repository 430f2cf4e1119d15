package cli

import (
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/randalmurphal/plannr/internal/storage"
	"github.com/randalmurphal/plannr/internal/task"
)

// newTasksCmd creates the tasks command
func newTasksCmd() *cobra.Command {
	var (
		projectName string
		inbox       bool
	)

	cmd := &cobra.Command{
		Use:   "tasks",
		Short: "List tasks",
		Long: `List tasks in creation order.

Examples:
  plannr tasks                     # All tasks
  plannr tasks --project Launch    # Tasks of the latest project named Launch
  plannr tasks --inbox             # Tasks without a project`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, _, err := getBackend(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = backend.Close() }()

			ctx := cmd.Context()
			var filter storage.TaskFilter
			switch {
			case projectName != "":
				p, err := backend.ProjectByName(ctx, projectName)
				if err != nil {
					return err
				}
				filter.ProjectID = &p.ID
			case inbox:
				filter.Unassigned = true
			}

			tasks, err := backend.ListTasks(ctx, filter)
			if err != nil {
				return fmt.Errorf("list tasks: %w", err)
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				if tasks == nil {
					tasks = []*task.Task{}
				}
				return printJSON(out, tasks)
			}

			if len(tasks) == 0 {
				_, _ = fmt.Fprintln(out, "No tasks.")
				return nil
			}

			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "\tTITLE\tPRIORITY\tDUE")
			for _, t := range tasks {
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", checkbox(t), t.Title, t.Priority, formatDate(t.DueAt))
			}
			return w.Flush()
		},
	}

	cmd.Flags().StringVarP(&projectName, "project", "p", "", "only tasks of this project")
	cmd.Flags().BoolVar(&inbox, "inbox", false, "only tasks without a project")
	cmd.MarkFlagsMutuallyExclusive("project", "inbox")

	return cmd
}

func checkbox(t *task.Task) string {
	if t.IsTerminal() {
		return "[x]"
	}
	return "[ ]"
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format("2006-01-02")
}
