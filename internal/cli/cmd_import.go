package cli

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/spf13/cobra"

	"github.com/randalmurphal/plannr/internal/config"
	plannrerrors "github.com/randalmurphal/plannr/internal/errors"
	"github.com/randalmurphal/plannr/internal/importer"
	"github.com/randalmurphal/plannr/internal/lock"
	"github.com/randalmurphal/plannr/internal/omnifocus"
)

// Import source formats.
const (
	formatArchive = "archive"
	formatXML     = "xml"
)

// payloadName is the primary document inside an OmniFocus export.
const payloadName = "contents.xml"

// newImportCmd creates the import command
func newImportCmd() *cobra.Command {
	var dryRun bool

	cmd := &cobra.Command{
		Use:   "import <path>",
		Short: "Import projects and tasks from an OmniFocus export",
		Long: `Import projects and tasks from an OmniFocus export.

Supports (auto-detected):
  - Zip archives (.zip, zipped .ofocus packages, sharded exports)
  - .ofocus package directories
  - A bare contents.xml document

Imported records are added alongside existing ones; nothing is merged
or overwritten. The import is all-or-nothing: on any failure the store
is left exactly as it was.

Examples:
  plannr import OmniFocus.zip            # Import an archive
  plannr import OmniFocus.ofocus         # Import a package directory
  plannr import contents.xml --dry-run   # Preview without writing`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := args[0]

			format, source, err := detectImportFormat(path)
			if err != nil {
				return fmt.Errorf("detect format: %w", err)
			}
			data, err := os.ReadFile(source)
			if err != nil {
				return fmt.Errorf("read %s: %w", source, err)
			}

			if dryRun {
				tc, err := loadConfig(cmd)
				if err != nil {
					return err
				}
				return importDryRun(cmd, newReader(tc.Config), format, data)
			}

			backend, cfg, err := getBackend(cmd)
			if err != nil {
				return err
			}
			defer func() { _ = backend.Close() }()

			guard := lock.NewPIDGuard(cfg.StateDir())
			if err := guard.Acquire(); err != nil {
				var running *lock.AlreadyRunningError
				if errors.As(err, &running) {
					return plannrerrors.ErrImportInProgress().WithCause(err)
				}
				return err
			}
			defer guard.Release()

			svc := importer.NewService(newReader(cfg), backend, slog.Default())
			var report *importer.Report
			if format == formatXML {
				report, err = svc.ImportPayload(cmd.Context(), data)
			} else {
				report, err = svc.ImportArchive(cmd.Context(), data)
			}
			if err != nil {
				return err
			}
			return printImportReport(cmd.OutOrStdout(), path, report)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show what would be imported without making changes")

	return cmd
}

func newReader(cfg *config.Config) *omnifocus.Reader {
	return omnifocus.NewReader(omnifocus.ReaderConfig{
		MaxDepth:     cfg.Import.MaxDepth,
		MaxEntrySize: cfg.Import.MaxEntrySize,
		Logger:       slog.Default(),
	})
}

// detectImportFormat classifies path by extension, falling back to content
// sniffing. It returns the format and the file to read, which differs from
// path for package directories.
func detectImportFormat(path string) (string, string, error) {
	info, err := os.Stat(path)
	if err != nil {
		return "", "", fmt.Errorf("stat %s: %w", path, err)
	}

	if info.IsDir() {
		payload := filepath.Join(path, payloadName)
		if _, err := os.Stat(payload); err != nil {
			return "", "", fmt.Errorf("%s is a directory without %s", path, payloadName)
		}
		return formatXML, payload, nil
	}

	// Check extension first
	lower := strings.ToLower(path)
	switch {
	case strings.HasSuffix(lower, ".zip"), strings.HasSuffix(lower, ".ofocus"):
		return formatArchive, path, nil
	case strings.HasSuffix(lower, ".xml"):
		return formatXML, path, nil
	}

	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return "", "", fmt.Errorf("sniff %s: %w", path, err)
	}
	switch {
	case mt.Is("application/zip"):
		return formatArchive, path, nil
	case mt.Is("text/xml"), mt.Is("application/xml"):
		return formatXML, path, nil
	default:
		return "", "", fmt.Errorf("unsupported import format: %s", mt.String())
	}
}

// importDryRun reads and normalizes the source without touching storage.
func importDryRun(cmd *cobra.Command, reader *omnifocus.Reader, format string, data []byte) error {
	var (
		result *omnifocus.Result
		err    error
	)
	if format == formatXML {
		result, err = reader.ReadPayload(cmd.Context(), data)
	} else {
		result, err = reader.Read(cmd.Context(), data)
	}
	if err != nil {
		return err
	}

	perProject := make(map[string]int)
	inbox := 0
	for _, t := range result.Tasks {
		if t.ProjectName == "" {
			inbox++
			continue
		}
		perProject[t.ProjectName]++
	}
	// Same-named projects resolve last-wins on import, so only the last of
	// each name receives that name's tasks.
	lastByName := make(map[string]int, len(result.Projects))
	for i, p := range result.Projects {
		lastByName[p.Name] = i
	}
	type projectPreview struct {
		Name      string `json:"name"`
		Status    string `json:"status"`
		Tasks     int    `json:"tasks"`
		Duplicate bool   `json:"duplicate_name,omitempty"`
	}
	previews := make([]projectPreview, 0, len(result.Projects))
	for i, p := range result.Projects {
		pv := projectPreview{Name: p.Name, Status: string(p.Status)}
		if lastByName[p.Name] == i {
			pv.Tasks = perProject[p.Name]
		} else {
			pv.Duplicate = true
		}
		previews = append(previews, pv)
	}

	out := cmd.OutOrStdout()
	if jsonOut {
		return printJSON(out, struct {
			DryRun    bool             `json:"dry_run"`
			EntryPath string           `json:"entry_path,omitempty"`
			Layout    string           `json:"layout,omitempty"`
			Projects  []projectPreview `json:"projects"`
			Tasks     int              `json:"tasks"`
			Inbox     int              `json:"inbox"`
		}{
			DryRun:    true,
			EntryPath: result.EntryPath,
			Layout:    string(result.Layout),
			Projects:  previews,
			Tasks:     len(result.Tasks),
			Inbox:     inbox,
		})
	}

	_, _ = fmt.Fprintf(out, "Would import %s and %s\n",
		plural(len(result.Projects), "project", "projects"),
		plural(len(result.Tasks), "task", "tasks"))
	for _, pv := range previews {
		note := ""
		if pv.Duplicate {
			note = fmt.Sprintf(", duplicate name: its tasks go to the last %q", pv.Name)
		}
		_, _ = fmt.Fprintf(out, "  %s (%s%s)\n", pv.Name, plural(pv.Tasks, "task", "tasks"), note)
	}
	if inbox > 0 {
		_, _ = fmt.Fprintf(out, "  Inbox (%s)\n", plural(inbox, "task", "tasks"))
	}
	return nil
}

func printImportReport(w io.Writer, path string, report *importer.Report) error {
	if jsonOut {
		return printJSON(w, report)
	}
	if quiet {
		return nil
	}
	from := filepath.Base(path)
	if report.EntryPath != "" {
		from = fmt.Sprintf("%s (%s, %s layout)", from, report.EntryPath, report.Layout)
	}
	_, err := fmt.Fprintf(w, "Imported %s and %s from %s\n",
		plural(report.ProjectsImported, "project", "projects"),
		plural(report.TasksImported, "task", "tasks"),
		from)
	return err
}
