package orchestrator

import "fmt"

// PlanningFailed is returned when the Architect's session ends without ever
// signalling plan completion (spec.md §4.6/§4.7 phase 1).
type PlanningFailed struct {
	Reason string
}

func (e *PlanningFailed) Error() string {
	if e.Reason == "" {
		return "orchestrator: planning failed: architect produced no plan"
	}
	return fmt.Sprintf("orchestrator: planning failed: %s", e.Reason)
}

// NavigatorSessionError wraps a failure in the Navigator's own conversation
// (distinct from a permission-specific failure, which surfaces through
// internal/permission's typed errors instead) so the orchestrator can log it
// and shut down cleanly rather than panic.
type NavigatorSessionError struct {
	Err error
}

func (e *NavigatorSessionError) Error() string {
	return fmt.Sprintf("orchestrator: navigator session: %v", e.Err)
}

func (e *NavigatorSessionError) Unwrap() error { return e.Err }

// CancelledError marks a run ended by caller/context cancellation rather
// than by a role or permission failure (spec.md §5 "Cancellation").
type CancelledError struct {
	Op string
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("orchestrator: %s: cancelled", e.Op)
}
