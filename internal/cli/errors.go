package cli

import (
	"fmt"
	"io"

	plannrerrors "github.com/randalmurphal/plannr/internal/errors"
)

// PrintError prints an error with appropriate formatting.
// If the error is a PlannrError, it uses the user-friendly format.
// Otherwise, it prints a simple error message. With --json the error is
// written as {"error": {...}} instead.
func PrintError(w io.Writer, err error) {
	if jsonOut {
		printErrorJSON(w, err)
		return
	}
	if pErr := plannrerrors.AsPlannrError(err); pErr != nil {
		_, _ = fmt.Fprintln(w, pErr.UserMessage())
		if verbose {
			_, _ = fmt.Fprintf(w, "\nCode: %s\n", pErr.Code)
			if pErr.Cause != nil {
				_, _ = fmt.Fprintf(w, "Cause: %v\n", pErr.Cause)
			}
		}
		return
	}
	_, _ = fmt.Fprintf(w, "Error: %v\n", err)
}

// ExitCode maps an error to the process exit status.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	if pErr := plannrerrors.AsPlannrError(err); pErr != nil {
		return pErr.Category().ExitCode()
	}
	return 1
}

func printErrorJSON(w io.Writer, err error) {
	var body any = map[string]string{"what": err.Error()}
	if pErr := plannrerrors.AsPlannrError(err); pErr != nil {
		body = pErr
	}
	if perr := printJSON(w, map[string]any{"error": body}); perr != nil {
		_, _ = fmt.Fprintf(w, "Error: %v\n", err)
	}
}
