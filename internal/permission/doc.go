// Package permission brokers file-modification permission requests from the
// Driver to the Navigator and matches asynchronous Navigator decisions back
// to the originating request by request-id (spec.md §4.3).
//
// # Core Components
//
// ## PermissionCoordinator
//
// The PermissionCoordinator holds one pending entry per outstanding
// PermissionRequest, submitted by the orchestrator and resolved by the
// Navigator's approve/deny decision tool calls, a timeout, or cancellation.
//
//	coord := NewCoordinator(sendToNavigator)
//	decision, err := coord.Request(ctx, req, DefaultRequestTimeout)
//
// ## Bash Command Parsing
//
// ParseBashCommand extracts structured command/subcommand/argument info from
// a shell command string, used to enforce the Navigator's restricted
// git diff|status|show allow-list (internal/roles) and to flag
// file-modifying bash invocations for the same permission gate Edit/Write go
// through.
//
//	commands, err := ParseBashCommand("git commit -m 'fix bug'")
//	// Returns: BashCommand{Name: "git", Subcommand: "commit", Args: ["commit", "-m", "fix bug"]}
//
// ## Doom Loop Detection
//
// DoomLoopDetector flags a Driver that calls the same tool with the same
// input DoomLoopThreshold times in a row, the ambient safety net described
// in SPEC_FULL.md §5.
//
// ## Diff rendering
//
// RenderDiff produces a unified diff for Edit/Write-class permission
// requests so the Navigator's prompt shows the proposed change inline.
//
// # Thread Safety
//
// All components in this package are safe for concurrent use.
package permission
