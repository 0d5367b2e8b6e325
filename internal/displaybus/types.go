package displaybus

import "github.com/trioagent/trio/pkg/types"

// PlanReadyData accompanies PlanReady once the architect has produced the
// plan the driver and navigator will work from.
type PlanReadyData struct {
	Plan types.Plan `json:"plan"`
}

// DriverBatchData accompanies DriverBatchReceived, one per drained batch of
// driver text/tool output (spec.md §4.4).
type DriverBatchData struct {
	Batch types.DriverBatch `json:"batch"`
}

// DriverTurnStartedData accompanies DriverTurnStarted.
type DriverTurnStartedData struct {
	Turn int `json:"turn"`
}

// NavigatorVerdictData accompanies NavigatorVerdict, emitted when the
// navigator issues a code_review command (spec.md §4.5); approve/deny
// decisions surface as PermissionResolved instead.
type NavigatorVerdictData struct {
	Command types.NavigatorCommand `json:"command"`
}

// PermissionRequestedData accompanies PermissionRequested.
type PermissionRequestedData struct {
	Request types.PermissionRequest `json:"request"`
}

// PermissionResolvedData accompanies PermissionResolved.
type PermissionResolvedData struct {
	RequestID string                  `json:"requestID"`
	Decision  types.PermissionDecision `json:"decision"`
}

// SessionEndedData accompanies SessionEnded, the terminal event for a run.
type SessionEndedData struct {
	Reason string `json:"reason"`
	Err    string `json:"error,omitempty"`
}
