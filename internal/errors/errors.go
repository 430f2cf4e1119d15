// Package errors provides structured error types for plannr.
package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Code represents a unique error code.
type Code string

// Error codes for plannr.
const (
	// Import pipeline errors
	CodeArchiveLayoutUnrecognized Code = "ARCHIVE_LAYOUT_UNRECOGNIZED"
	CodeMarkupCorrupt             Code = "MARKUP_CORRUPT"
	CodeHierarchyTooDeep          Code = "HIERARCHY_TOO_DEEP"
	CodePersistenceFailed         Code = "PERSISTENCE_FAILED"
	CodeImportInProgress          Code = "IMPORT_IN_PROGRESS"

	// Store errors
	CodeProjectNotFound Code = "PROJECT_NOT_FOUND"

	// Config errors
	CodeConfigInvalid Code = "CONFIG_INVALID"
)

// Category groups error codes for exit status mapping.
type Category int

const (
	CategoryUnknown Category = iota
	CategoryNotFound
	CategoryBadRequest
	CategoryConflict
	CategoryInternal
)

var codeCategories = map[Code]Category{
	CodeArchiveLayoutUnrecognized: CategoryBadRequest,
	CodeMarkupCorrupt:             CategoryBadRequest,
	CodeHierarchyTooDeep:          CategoryBadRequest,
	CodePersistenceFailed:         CategoryInternal,
	CodeImportInProgress:          CategoryConflict,
	CodeProjectNotFound:           CategoryNotFound,
	CodeConfigInvalid:             CategoryBadRequest,
}

// ExitCode returns the process exit code for a category.
func (c Category) ExitCode() int {
	switch c {
	case CategoryBadRequest, CategoryNotFound:
		return 2
	case CategoryConflict:
		return 3
	default:
		return 1
	}
}

// PlannrError is the structured error type for plannr.
type PlannrError struct {
	Code  Code   `json:"code"`
	What  string `json:"what"`
	Why   string `json:"why,omitempty"`
	Fix   string `json:"fix,omitempty"`
	Cause error  `json:"-"`

	// Details carries diagnostic lines, e.g. the entry listing of an
	// archive whose layout was not recognized.
	Details []string `json:"details,omitempty"`
}

// Error implements the error interface.
func (e *PlannrError) Error() string {
	var b strings.Builder
	b.WriteString(e.What)
	if e.Why != "" {
		b.WriteString(": ")
		b.WriteString(e.Why)
	}
	if e.Cause != nil {
		b.WriteString(": ")
		b.WriteString(e.Cause.Error())
	}
	return b.String()
}

// Unwrap returns the underlying cause.
func (e *PlannrError) Unwrap() error {
	return e.Cause
}

// UserMessage returns a user-friendly message for CLI output.
func (e *PlannrError) UserMessage() string {
	var b strings.Builder
	b.WriteString("Error: ")
	b.WriteString(e.What)
	if e.Why != "" {
		b.WriteString("\n\nWhy: ")
		b.WriteString(e.Why)
	}
	if len(e.Details) > 0 {
		b.WriteString("\n\nDetails:")
		for _, d := range e.Details {
			b.WriteString("\n  ")
			b.WriteString(d)
		}
	}
	if e.Fix != "" {
		b.WriteString("\n\nFix: ")
		b.WriteString(e.Fix)
	}
	return b.String()
}

// Category returns the error category.
func (e *PlannrError) Category() Category {
	if cat, ok := codeCategories[e.Code]; ok {
		return cat
	}
	return CategoryUnknown
}

// MarshalJSON implements json.Marshaler. The cause is flattened to its
// message.
func (e *PlannrError) MarshalJSON() ([]byte, error) {
	type alias PlannrError
	aux := struct {
		*alias
		CauseMsg string `json:"cause,omitempty"`
	}{
		alias: (*alias)(e),
	}
	if e.Cause != nil {
		aux.CauseMsg = e.Cause.Error()
	}
	return json.Marshal(aux)
}

// Is reports whether target is a PlannrError with the same code.
func (e *PlannrError) Is(target error) bool {
	t, ok := target.(*PlannrError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithCause returns a copy of the error with the given cause.
func (e *PlannrError) WithCause(err error) *PlannrError {
	return &PlannrError{
		Code:    e.Code,
		What:    e.What,
		Why:     e.Why,
		Fix:     e.Fix,
		Details: e.Details,
		Cause:   err,
	}
}

// --- Error constructors ---

// ErrArchiveLayoutUnrecognized returns an error for an archive whose container
// layout matched none of the known shapes. entries is the full entry listing.
func ErrArchiveLayoutUnrecognized(entries []string) *PlannrError {
	listing := make([]string, len(entries))
	copy(listing, entries)
	return &PlannrError{
		Code:    CodeArchiveLayoutUnrecognized,
		What:    "archive layout not recognized",
		Why:     fmt.Sprintf("None of %d entries matched a known export layout", len(entries)),
		Fix:     "Export again from the source application and import the resulting archive unchanged",
		Details: listing,
	}
}

// ErrMarkupCorrupt returns an error for a payload that could not be decoded.
func ErrMarkupCorrupt(reason string) *PlannrError {
	return &PlannrError{
		Code: CodeMarkupCorrupt,
		What: "export document is corrupt",
		Why:  reason,
		Fix:  "Re-export the archive; the payload could not be decoded",
	}
}

// ErrHierarchyTooDeep returns an error when task nesting exceeds the limit.
func ErrHierarchyTooDeep(limit int) *PlannrError {
	return &PlannrError{
		Code: CodeHierarchyTooDeep,
		What: "task hierarchy is too deep",
		Why:  fmt.Sprintf("Nesting exceeds %d levels", limit),
		Fix:  "The export is likely corrupt; re-export it or raise import.max_depth",
	}
}

// ErrPersistenceFailed returns an error when the final store write failed.
// The store is left exactly as it was before the import.
func ErrPersistenceFailed() *PlannrError {
	return &PlannrError{
		Code: CodePersistenceFailed,
		What: "could not save imported data",
		Why:  "The final write to the store failed; nothing was imported",
		Fix:  "Check disk space and permissions, then run the import again",
	}
}

// ErrImportInProgress returns an error when another import is running.
func ErrImportInProgress() *PlannrError {
	return &PlannrError{
		Code: CodeImportInProgress,
		What: "an import is already running",
		Why:  "Imports are processed one at a time",
		Fix:  "Wait for the running import to finish",
	}
}

// ErrProjectNotFound returns an error when a project doesn't exist.
func ErrProjectNotFound(name string) *PlannrError {
	return &PlannrError{
		Code: CodeProjectNotFound,
		What: fmt.Sprintf("project %q not found", name),
		Fix:  "Run 'plannr projects' to list available projects",
	}
}

// ErrConfigInvalid returns an error for invalid configuration.
func ErrConfigInvalid(field, reason string) *PlannrError {
	return &PlannrError{
		Code: CodeConfigInvalid,
		What: fmt.Sprintf("invalid configuration: %s", field),
		Why:  reason,
		Fix:  "Check .plannr/config.yaml and fix the invalid field",
	}
}

// AsPlannrError returns the first PlannrError in err's chain, or nil.
func AsPlannrError(err error) *PlannrError {
	var pErr *PlannrError
	if errors.As(err, &pErr) {
		return pErr
	}
	return nil
}

// HasCode reports whether err (or anything it wraps) is a PlannrError with code.
func HasCode(err error, code Code) bool {
	pErr := AsPlannrError(err)
	return pErr != nil && pErr.Code == code
}
