package task

import "fmt"

// ValidationError covers malformed configuration, unknown persona ids,
// dependency cycles, invalid status/plan-action transitions requested by a
// provider, and bad persona policy. Fatal at compile time; at run time, a
// decision-level ValidationError is logged and the offending update is
// skipped rather than aborting the round.
type ValidationError struct {
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error: %s", e.Reason)
}

// NewValidationError constructs a ValidationError.
func NewValidationError(format string, args ...any) *ValidationError {
	return &ValidationError{Reason: fmt.Sprintf(format, args...)}
}

// StateConflictError covers owner/planner/status mismatches raised by a
// StateStore operation — claiming a task with the wrong teammate id,
// completing a task that isn't in_progress, reviewing a plan that isn't
// submitted, and similar. The scheduler catches these, logs, and skips.
type StateConflictError struct {
	Op     string
	TaskID string
	Reason string
}

func (e *StateConflictError) Error() string {
	return fmt.Sprintf("state conflict in %s(task=%s): %s", e.Op, e.TaskID, e.Reason)
}

// NewStateConflictError constructs a StateConflictError.
func NewStateConflictError(op, taskID, reason string) *StateConflictError {
	return &StateConflictError{Op: op, TaskID: taskID, Reason: reason}
}

// AdapterTimeoutError is returned when a subprocess teammate invocation
// exceeds its configured timeout. The scheduler marks the task blocked.
type AdapterTimeoutError struct {
	TeammateID string
	Timeout    string
}

func (e *AdapterTimeoutError) Error() string {
	return fmt.Sprintf("adapter timeout: teammate=%s after %s", e.TeammateID, e.Timeout)
}

// AdapterFailureError is returned when a subprocess teammate invocation
// exits non-zero or produces empty stdout. The scheduler marks the task
// blocked with Reason as the block reason.
type AdapterFailureError struct {
	TeammateID string
	Reason     string
}

func (e *AdapterFailureError) Error() string {
	return fmt.Sprintf("adapter failure: teammate=%s reason=%s", e.TeammateID, e.Reason)
}

// ProviderError covers an unreachable, malformed, or schema-violating
// decision provider response. Terminates the round loop with stop reason
// provider_error — unlike the other error kinds it is not skip-and-continue.
type ProviderError struct {
	Reason string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("provider error: %s", e.Reason)
}

// NewProviderError constructs a ProviderError.
func NewProviderError(format string, args ...any) *ProviderError {
	return &ProviderError{Reason: fmt.Sprintf(format, args...)}
}

// PersonaPolicyError is raised by the input compiler when a persona or
// persona policy block fails canonicalization — an unknown or duplicate
// persona id, an unknown key, or a value of the wrong type. Phase names are
// not checked against a known phase set, and a phased-mode task without a
// phase override is not rejected. Fatal at compile time.
type PersonaPolicyError struct {
	Reason string
}

func (e *PersonaPolicyError) Error() string {
	return fmt.Sprintf("persona policy error: %s", e.Reason)
}

// NewPersonaPolicyError constructs a PersonaPolicyError.
func NewPersonaPolicyError(format string, args ...any) *PersonaPolicyError {
	return &PersonaPolicyError{Reason: fmt.Sprintf(format, args...)}
}
