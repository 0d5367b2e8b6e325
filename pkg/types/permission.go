package types

// PermissionRequest is created by the Driver's provider when a
// file-modifying tool is about to run (spec §3). Exclusive ownership by the
// PermissionCoordinator while outstanding.
type PermissionRequest struct {
	ID               string // UUID, spec §3's explicit "request-id (UUID)" invariant.
	DriverTranscript string
	ToolName         string
	Input            map[string]any
	ToolID           string

	// Diff is populated for Edit/Write-class tools when a before/after
	// rendering is available, per SPEC_FULL.md §4.3's diff-enriched prompt.
	Diff *FileDiff
}

// FileDiff carries a unified-diff rendering of a proposed file modification,
// adapted from the teacher's session.FileDiff for inclusion in permission prompts.
type FileDiff struct {
	Path      string
	Additions int
	Deletions int
	Unified   string
}

// PermissionDecision is the verdict the PermissionCoordinator hands back to
// the caller of ProviderPort's canUseTool gate.
type PermissionDecision struct {
	Allow       bool
	UpdatedInput map[string]any
	Reason      string
}
