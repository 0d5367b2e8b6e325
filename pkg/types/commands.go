package types

// DriverCommandKind distinguishes the Driver's two control operations.
type DriverCommandKind string

const (
	DriverRequestReview   DriverCommandKind = "request_review"
	DriverRequestGuidance DriverCommandKind = "request_guidance"
)

// DriverCommand is produced when the Driver calls one of its two control
// tools via the MCP bridge (spec §3).
type DriverCommand struct {
	Kind    DriverCommandKind
	Context string
}

// NavigatorCommandKind distinguishes the Navigator's three decision tools.
type NavigatorCommandKind string

const (
	NavigatorCodeReview NavigatorCommandKind = "code_review"
	NavigatorApprove    NavigatorCommandKind = "approve"
	NavigatorDeny       NavigatorCommandKind = "deny"
)

// NavigatorCommand is a tagged variant produced by the Navigator's decision
// tool calls (spec §3). Only the fields relevant to Kind are populated.
type NavigatorCommand struct {
	Kind NavigatorCommandKind

	// code_review fields.
	Pass    bool
	Comment string

	// approve/deny fields. RequestID may be empty, in which case the
	// PermissionCoordinator resolves the oldest pending request instead.
	RequestID string
}
