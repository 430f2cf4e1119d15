package omnifocus

import (
	"math/rand/v2"
	"strings"
	"time"

	"github.com/randalmurphal/plannr/internal/task"
)

// NormalizedTask is a task in plannr's field shapes. ProjectName holds the
// owning project's name until the importer maps it to an ID; empty means
// the task has no project.
type NormalizedTask struct {
	Title       string
	Notes       string
	Status      task.Status
	Priority    task.Priority
	Due         *time.Time
	Start       *time.Time
	Completed   *time.Time
	Added       *time.Time
	Modified    *time.Time
	ProjectName string
}

// NormalizedProject is a project in plannr's field shapes.
type NormalizedProject struct {
	Name      string
	Notes     string
	Color     string
	Status    task.ProjectStatus
	Due       *time.Time
	Start     *time.Time
	Completed *time.Time
	Added     *time.Time
	Modified  *time.Time
	Folder    string
}

// dateLayouts are tried in order. Exports write RFC 3339 with milliseconds;
// the rest cover hand-edited and older files.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05 -0700",
	"2006-01-02 15:04:05Z07:00",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
	"2006/01/02 15:04:05",
	"2006/01/02",
	time.RFC1123Z,
	time.RFC1123,
	time.RFC850,
	time.RFC822Z,
	time.RFC822,
	time.RubyDate,
	time.UnixDate,
	time.ANSIC,
	"January 2, 2006 15:04",
	"January 2, 2006",
	"Jan 2, 2006",
	"2 January 2006",
	"2 Jan 2006",
}

// NormalizerOption configures a Normalizer.
type NormalizerOption func(*Normalizer)

// WithColorSource makes project color draws come from src.
func WithColorSource(src rand.Source) NormalizerOption {
	return func(n *Normalizer) {
		if src != nil {
			n.intn = rand.New(src).IntN
		}
	}
}

// WithLocation sets the zone for dates written without one. Default UTC.
func WithLocation(loc *time.Location) NormalizerOption {
	return func(n *Normalizer) {
		if loc != nil {
			n.loc = loc
		}
	}
}

// Normalizer maps raw export nodes to plannr field shapes. Task mapping is
// deterministic; each project gets an independent random palette color.
// A Normalizer built with WithColorSource is not safe for concurrent use.
type Normalizer struct {
	intn func(int) int
	loc  *time.Location
}

// NewNormalizer creates a Normalizer.
func NewNormalizer(opts ...NormalizerOption) *Normalizer {
	n := &Normalizer{intn: rand.IntN, loc: time.UTC}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// NormalizeTask maps a raw task.
func (n *Normalizer) NormalizeTask(raw *RawTaskNode) NormalizedTask {
	out := NormalizedTask{
		Title:     fallback(raw.Name, UntitledTask),
		Notes:     fallback(raw.Note, ""),
		Status:    task.StatusTodo,
		Priority:  task.PriorityMedium,
		Due:       n.ParseDate(raw.Due),
		Start:     n.ParseDate(raw.Start),
		Completed: n.ParseDate(raw.Completed),
		Added:     n.ParseDate(raw.Added),
		Modified:  n.ParseDate(raw.Modified),
	}
	// Dropped tasks are not distinguished from open ones.
	if raw.Completed != nil {
		out.Status = task.StatusCompleted
	}
	if raw.Flagged != nil && *raw.Flagged == "true" {
		out.Priority = task.PriorityHigh
	}
	if raw.OwnerProjectName != nil {
		out.ProjectName = *raw.OwnerProjectName
	}
	return out
}

// NormalizeProject maps a raw project and draws its color.
func (n *Normalizer) NormalizeProject(raw *RawProjectNode) NormalizedProject {
	out := NormalizedProject{
		Name:      fallback(raw.Name, UntitledProject),
		Notes:     fallback(raw.Note, ""),
		Color:     task.ProjectPalette[n.intn(len(task.ProjectPalette))],
		Status:    task.ProjectStatusActive,
		Due:       n.ParseDate(raw.Due),
		Start:     n.ParseDate(raw.Start),
		Completed: n.ParseDate(raw.Completed),
		Added:     n.ParseDate(raw.Added),
		Modified:  n.ParseDate(raw.Modified),
		Folder:    fallback(raw.Folder, ""),
	}
	if raw.Completed != nil {
		out.Status = task.ProjectStatusCompleted
	}
	return out
}

// NormalizeHierarchy maps every project and task of h, preserving order.
func (n *Normalizer) NormalizeHierarchy(h *Hierarchy) ([]NormalizedProject, []NormalizedTask) {
	projects := make([]NormalizedProject, 0, len(h.Projects))
	for _, p := range h.Projects {
		projects = append(projects, n.NormalizeProject(p))
	}
	tasks := make([]NormalizedTask, 0, len(h.Tasks))
	for _, t := range h.Tasks {
		tasks = append(tasks, n.NormalizeTask(t))
	}
	return projects, tasks
}

// ParseDate reads a date in any accepted layout. Absent or unparsable
// values give nil; there is no default.
func (n *Normalizer) ParseDate(s *string) *time.Time {
	if s == nil {
		return nil
	}
	v := strings.TrimSpace(*s)
	if v == "" {
		return nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.ParseInLocation(layout, v, n.loc); err == nil {
			return &t
		}
	}
	return nil
}

func fallback(s *string, def string) string {
	if s == nil {
		return def
	}
	return *s
}
