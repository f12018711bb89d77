package cli

import "fmt"

// CancelledError indicates the user declined a confirmation prompt. Commands
// bubble it up so Execute can exit without printing a stack of wrapping.
type CancelledError struct {
	// Action names what was abandoned, e.g. "filing bugs".
	Action string
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("%s aborted", e.Action)
}

// UsageError indicates bad command-line input rather than a runtime failure,
// and maps to its own exit code.
type UsageError struct {
	Message string
}

func (e *UsageError) Error() string {
	return e.Message
}

// QAError indicates the pre-push quality scan reported findings.
type QAError struct {
	Findings int
}

func (e *QAError) Error() string {
	return fmt.Sprintf("QA scan reported %d finding(s)", e.Findings)
}
