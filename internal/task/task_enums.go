package task

// Priority represents the urgency/importance of a task.
type Priority string

const (
	// PriorityHigh indicates important tasks that should be done soon.
	PriorityHigh Priority = "high"
	// PriorityMedium indicates regular tasks (default).
	PriorityMedium Priority = "medium"
	// PriorityLow indicates tasks that can wait.
	PriorityLow Priority = "low"
)

// ValidPriorities returns all valid priority values.
func ValidPriorities() []Priority {
	return []Priority{PriorityHigh, PriorityMedium, PriorityLow}
}

// IsValidPriority returns true if the priority is a valid priority value.
func IsValidPriority(p Priority) bool {
	switch p {
	case PriorityHigh, PriorityMedium, PriorityLow:
		return true
	default:
		return false
	}
}

// PriorityOrder returns a numeric value for sorting (lower = higher priority).
func PriorityOrder(p Priority) int {
	switch p {
	case PriorityHigh:
		return 0
	case PriorityMedium:
		return 1
	case PriorityLow:
		return 2
	default:
		return 1
	}
}

// ProjectPalette is the fixed set of colors a project may be drawn in.
var ProjectPalette = []string{
	"#EF4444", // red
	"#F97316", // orange
	"#F59E0B", // amber
	"#10B981", // emerald
	"#14B8A6", // teal
	"#3B82F6", // blue
	"#6366F1", // indigo
	"#8B5CF6", // violet
	"#EC4899", // pink
	"#64748B", // slate
}

// IsPaletteColor reports whether c is one of the ProjectPalette colors.
func IsPaletteColor(c string) bool {
	for _, p := range ProjectPalette {
		if p == c {
			return true
		}
	}
	return false
}
