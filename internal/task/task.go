package task

import (
	"fmt"
	"strings"
	"time"
)

// Project is a persisted project record.
type Project struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Notes       string        `json:"notes,omitempty"`
	Color       string        `json:"color"`
	Status      ProjectStatus `json:"status"`
	DueAt       *time.Time    `json:"due_at,omitempty"`
	StartAt     *time.Time    `json:"start_at,omitempty"`
	CompletedAt *time.Time    `json:"completed_at,omitempty"`

	// Source timestamps carried over from an import. The record's own
	// CreatedAt/UpdatedAt are always assigned by the store.
	SourceAddedAt    *time.Time `json:"source_added_at,omitempty"`
	SourceModifiedAt *time.Time `json:"source_modified_at,omitempty"`

	SortOrder int       `json:"sort_order"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Task is a persisted task record.
type Task struct {
	ID          string     `json:"id"`
	ProjectID   *string    `json:"project_id,omitempty"`
	Title       string     `json:"title"`
	Notes       string     `json:"notes,omitempty"`
	Status      Status     `json:"status"`
	Priority    Priority   `json:"priority"`
	DueAt       *time.Time `json:"due_at,omitempty"`
	StartAt     *time.Time `json:"start_at,omitempty"`
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	SourceAddedAt    *time.Time `json:"source_added_at,omitempty"`
	SourceModifiedAt *time.Time `json:"source_modified_at,omitempty"`

	SortOrder int       `json:"sort_order"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsTerminal returns true if the task is in a terminal state.
func (t *Task) IsTerminal() bool {
	return IsDone(t.Status)
}

// InProject reports whether the task belongs to the project with the given ID.
func (t *Task) InProject(id string) bool {
	return t.ProjectID != nil && *t.ProjectID == id
}

// Validate checks the fields a store requires before insert.
func (t *Task) Validate() error {
	if strings.TrimSpace(t.Title) == "" {
		return fmt.Errorf("task title is required")
	}
	if !IsValidStatus(t.Status) {
		return fmt.Errorf("invalid task status %q", t.Status)
	}
	if !IsValidPriority(t.Priority) {
		return fmt.Errorf("invalid task priority %q", t.Priority)
	}
	return nil
}

// Validate checks the fields a store requires before insert.
func (p *Project) Validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("project name is required")
	}
	if !IsValidProjectStatus(p.Status) {
		return fmt.Errorf("invalid project status %q", p.Status)
	}
	return nil
}

// Stamp assigns the store-owned fields of a new record.
func (p *Project) Stamp(id string, order int, now time.Time) {
	p.ID = id
	p.SortOrder = order
	p.CreatedAt = now
	p.UpdatedAt = now
}

// Stamp assigns the store-owned fields of a new record.
func (t *Task) Stamp(id string, order int, now time.Time) {
	t.ID = id
	t.SortOrder = order
	t.CreatedAt = now
	t.UpdatedAt = now
}
