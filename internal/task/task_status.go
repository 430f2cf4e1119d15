// Package task provides the task and project records owned by the plannr store.
package task

// Status represents the current state of a task.
type Status string

const (
	StatusTodo       Status = "todo"
	StatusInProgress Status = "in_progress"
	StatusCompleted  Status = "completed"
)

// ValidStatuses returns all valid status values.
func ValidStatuses() []Status {
	return []Status{StatusTodo, StatusInProgress, StatusCompleted}
}

// IsValidStatus returns true if the status is a valid status value.
func IsValidStatus(s Status) bool {
	switch s {
	case StatusTodo, StatusInProgress, StatusCompleted:
		return true
	default:
		return false
	}
}

// IsDone returns true if the status indicates the task is finished.
func IsDone(s Status) bool {
	return s == StatusCompleted
}

// ProjectStatus represents the state of a project.
type ProjectStatus string

const (
	ProjectStatusActive    ProjectStatus = "active"
	ProjectStatusCompleted ProjectStatus = "completed"
)

// IsValidProjectStatus returns true if the project status is a valid value.
func IsValidProjectStatus(s ProjectStatus) bool {
	return s == ProjectStatusActive || s == ProjectStatusCompleted
}
