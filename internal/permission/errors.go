package permission

import "fmt"

// PermissionTimeout is returned when a PermissionRequest outlives the
// PERMISSION_REQUEST deadline without a Navigator decision (spec.md §7).
type PermissionTimeout struct {
	RequestID string
}

func (e *PermissionTimeout) Error() string {
	return fmt.Sprintf("permission request %s timed out", e.RequestID)
}

// PermissionMalformed is raised when the Navigator completes a batch with
// zero admitted decisions while requests are outstanding (spec.md §4.3
// handleMalformed).
type PermissionMalformed struct {
	RequestID string
}

func (e *PermissionMalformed) Error() string {
	return fmt.Sprintf("permission request %s: navigator batch had no decision", e.RequestID)
}

// PermissionDenied wraps a Navigator deny decision or a coordinator-level
// failure (timeout, malformed batch, cancellation) into the single
// {allowed=false, reason} shape spec.md §7 requires be returned to the
// Driver's provider.
type PermissionDenied struct {
	RequestID string
	Reason    string
}

func (e *PermissionDenied) Error() string {
	return fmt.Sprintf("permission request %s denied: %s", e.RequestID, e.Reason)
}

// CancelledError marks an operation aborted by caller cancellation rather
// than by the operation's own failure, distinguishable from PermissionTimeout
// per spec.md §5 "Cancellation."
type CancelledError struct {
	Op string
}

func (e *CancelledError) Error() string {
	return fmt.Sprintf("%s: cancelled", e.Op)
}

// IsDenied reports whether err represents any terminal permission failure
// (deny, timeout, malformed, cancellation) that the caller should treat as a
// plain denial rather than retry.
func IsDenied(err error) bool {
	switch err.(type) {
	case *PermissionDenied, *PermissionTimeout, *PermissionMalformed, *CancelledError:
		return true
	default:
		return false
	}
}
