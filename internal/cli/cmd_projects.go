package cli

import (
	"fmt"
	"io"
	"os"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/randalmurphal/plannr/internal/storage"
	"github.com/randalmurphal/plannr/internal/task"
)

// useColor is replaced in tests.
var useColor = func(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && isatty.IsTerminal(f.Fd())
}

// newProjectsCmd creates the projects command
func newProjectsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "projects",
		Short: "List projects",
		Long: `List all projects in creation order with their task counts.

Projects imported more than once appear once per import.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			backend, _, err := getBackend(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = backend.Close() }()

			ctx := cmd.Context()
			projects, err := backend.ListProjects(ctx)
			if err != nil {
				return fmt.Errorf("list projects: %w", err)
			}
			tasks, err := backend.ListTasks(ctx, storage.TaskFilter{})
			if err != nil {
				return fmt.Errorf("list tasks: %w", err)
			}
			counts := make(map[string][2]int) // project ID -> open, done
			for _, t := range tasks {
				if t.ProjectID == nil {
					continue
				}
				c := counts[*t.ProjectID]
				if t.IsTerminal() {
					c[1]++
				} else {
					c[0]++
				}
				counts[*t.ProjectID] = c
			}

			out := cmd.OutOrStdout()
			if jsonOut {
				type projectRow struct {
					*task.Project
					OpenTasks int `json:"open_tasks"`
					DoneTasks int `json:"done_tasks"`
				}
				rows := make([]projectRow, 0, len(projects))
				for _, p := range projects {
					c := counts[p.ID]
					rows = append(rows, projectRow{Project: p, OpenTasks: c[0], DoneTasks: c[1]})
				}
				return printJSON(out, rows)
			}

			if len(projects) == 0 {
				_, _ = fmt.Fprintln(out, "No projects. Run 'plannr import <archive>' to bring some in.")
				return nil
			}

			color := useColor(out)
			w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
			_, _ = fmt.Fprintln(w, "\tNAME\tSTATUS\tOPEN\tDONE\tDUE")
			for _, p := range projects {
				c := counts[p.ID]
				_, _ = fmt.Fprintf(w, "%s\t%s\t%s\t%d\t%d\t%s\n",
					swatch(p.Color, color), p.Name, p.Status, c[0], c[1], formatDate(p.DueAt))
			}
			return w.Flush()
		},
	}
}

// swatch renders a project's color as a filled dot, or the hex code when
// color output is off.
func swatch(hex string, color bool) string {
	if !color {
		return hex
	}
	return lipgloss.NewStyle().Foreground(lipgloss.Color(hex)).Render("●")
}
