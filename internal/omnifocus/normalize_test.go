package omnifocus

import (
	"math/rand/v2"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/randalmurphal/plannr/internal/task"
)

func str(s string) *string { return &s }

func TestNormalizeTaskStatus(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		raw  RawTaskNode
		want task.Status
	}{
		{"no fields", RawTaskNode{}, task.StatusTodo},
		{"completed date", RawTaskNode{Completed: str("2024-01-01T00:00:00Z")}, task.StatusCompleted},
		{"completed unparsable", RawTaskNode{Completed: str("yesterday")}, task.StatusCompleted},
		{"completed and flagged", RawTaskNode{Completed: str("x"), Flagged: str("true")}, task.StatusCompleted},
		{"completed with owner and dates", RawTaskNode{
			Completed:        str("2024-01-01"),
			Due:              str("2024-02-01"),
			OwnerProjectName: str("Launch"),
		}, task.StatusCompleted},
		{"flagged only", RawTaskNode{Flagged: str("true")}, task.StatusTodo},
		{"due only", RawTaskNode{Due: str("2024-02-01")}, task.StatusTodo},
		{"named with note", RawTaskNode{Name: str("Ship"), Note: str("done soon")}, task.StatusTodo},
	}

	n := NewNormalizer()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, n.NormalizeTask(&tt.raw).Status)
		})
	}
}

func TestNormalizeTaskPriority(t *testing.T) {
	t.Parallel()

	tests := []struct {
		flagged *string
		want    task.Priority
	}{
		{nil, task.PriorityMedium},
		{str("true"), task.PriorityHigh},
		{str("True"), task.PriorityMedium},
		{str("1"), task.PriorityMedium},
		{str("false"), task.PriorityMedium},
		{str("true "), task.PriorityMedium},
	}

	n := NewNormalizer()
	for _, tt := range tests {
		got := n.NormalizeTask(&RawTaskNode{Flagged: tt.flagged}).Priority
		assert.Equal(t, tt.want, got, "flagged=%v", tt.flagged)
	}
}

func TestNormalizeTaskFallbacks(t *testing.T) {
	t.Parallel()

	n := NewNormalizer()

	got := n.NormalizeTask(&RawTaskNode{})
	assert.Equal(t, UntitledTask, got.Title)
	assert.Equal(t, "", got.Notes)
	assert.Equal(t, "", got.ProjectName)
	assert.Nil(t, got.Due)
	assert.Nil(t, got.Start)
	assert.Nil(t, got.Completed)
	assert.Nil(t, got.Added)
	assert.Nil(t, got.Modified)

	got = n.NormalizeTask(&RawTaskNode{
		Name:             str("Ship"),
		Note:             str("line one\nline two"),
		OwnerProjectName: str("Launch"),
	})
	assert.Equal(t, "Ship", got.Title)
	assert.Equal(t, "line one\nline two", got.Notes)
	assert.Equal(t, "Launch", got.ProjectName)
}

func TestNormalizeTaskIsIdempotent(t *testing.T) {
	t.Parallel()

	raw := &RawTaskNode{
		Name:             str("Design"),
		Note:             str("wireframes"),
		Added:            str("2024-01-01T08:00:00.000Z"),
		Modified:         str("2024-01-02T08:00:00Z"),
		Due:              str("2024-01-10"),
		Start:            str("not a date"),
		Flagged:          str("true"),
		OwnerProjectName: str("Launch"),
	}

	first := NewNormalizer().NormalizeTask(raw)
	for i := 0; i < 10; i++ {
		assert.Equal(t, first, NewNormalizer().NormalizeTask(raw))
	}
}

func TestNormalizeProject(t *testing.T) {
	t.Parallel()

	n := NewNormalizer()

	got := n.NormalizeProject(&RawProjectNode{})
	assert.Equal(t, UntitledProject, got.Name)
	assert.Equal(t, "", got.Notes)
	assert.Equal(t, task.ProjectStatusActive, got.Status)
	assert.True(t, task.IsPaletteColor(got.Color), "color %s not in palette", got.Color)

	got = n.NormalizeProject(&RawProjectNode{
		Name:      str("Launch"),
		Completed: str("2024-05-01T12:00:00Z"),
		Folder:    str("Work"),
	})
	assert.Equal(t, "Launch", got.Name)
	assert.Equal(t, task.ProjectStatusCompleted, got.Status)
	require.NotNil(t, got.Completed)
	assert.Equal(t, 2024, got.Completed.Year())
	assert.Equal(t, "Work", got.Folder)
}

func TestNormalizeProjectColorSource(t *testing.T) {
	t.Parallel()

	draw := func() []string {
		n := NewNormalizer(WithColorSource(rand.NewPCG(7, 11)))
		var colors []string
		for i := 0; i < 20; i++ {
			colors = append(colors, n.NormalizeProject(&RawProjectNode{Name: str("Same")}).Color)
		}
		return colors
	}

	a, b := draw(), draw()
	assert.Equal(t, a, b, "same seed gives same draws")

	distinct := make(map[string]bool)
	for _, c := range a {
		assert.True(t, task.IsPaletteColor(c))
		distinct[c] = true
	}
	assert.Greater(t, len(distinct), 1, "each project draws independently of its name")
}

func TestParseDate(t *testing.T) {
	t.Parallel()

	utc := func(y int, m time.Month, d, h, min, s int) time.Time {
		return time.Date(y, m, d, h, min, s, 0, time.UTC)
	}

	tests := []struct {
		in   string
		want time.Time
	}{
		{"2024-01-15T17:00:00Z", utc(2024, 1, 15, 17, 0, 0)},
		{"2024-01-15T17:00:00.000Z", utc(2024, 1, 15, 17, 0, 0)},
		{"2024-01-15T19:00:00+02:00", utc(2024, 1, 15, 17, 0, 0)},
		{"2024-01-15T17:00:00", utc(2024, 1, 15, 17, 0, 0)},
		{"2024-01-15 17:00:00", utc(2024, 1, 15, 17, 0, 0)},
		{"2024-01-15 17:00:00 +0000", utc(2024, 1, 15, 17, 0, 0)},
		{"2024-01-15", utc(2024, 1, 15, 0, 0, 0)},
		{"2024/01/15", utc(2024, 1, 15, 0, 0, 0)},
		{"Mon, 15 Jan 2024 17:00:00 +0000", utc(2024, 1, 15, 17, 0, 0)},
		{"Mon Jan 15 17:00:00 2024", utc(2024, 1, 15, 17, 0, 0)},
		{"January 15, 2024", utc(2024, 1, 15, 0, 0, 0)},
		{"  2024-01-15  ", utc(2024, 1, 15, 0, 0, 0)},
	}

	n := NewNormalizer()
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got := n.ParseDate(str(tt.in))
			require.NotNil(t, got)
			assert.True(t, tt.want.Equal(*got), "got %v want %v", got, tt.want)
		})
	}

	for _, bad := range []string{"", "   ", "soon", "2024-13-45", "15/01/2024"} {
		assert.Nil(t, n.ParseDate(str(bad)), "input %q", bad)
	}
	assert.Nil(t, n.ParseDate(nil))
}

func TestParseDateLocation(t *testing.T) {
	t.Parallel()

	loc := time.FixedZone("UTC+2", 2*60*60)
	n := NewNormalizer(WithLocation(loc))

	got := n.ParseDate(str("2024-01-15T17:00:00"))
	require.NotNil(t, got)
	assert.Equal(t, 15, got.UTC().Hour())

	got = n.ParseDate(str("2024-01-15T17:00:00Z"))
	require.NotNil(t, got)
	assert.Equal(t, 17, got.UTC().Hour(), "explicit zone wins")
}
