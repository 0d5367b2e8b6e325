package types

// PendingTool is a tool-use id observed in an assistant message without a
// corresponding tool-result yet (spec §3). Owned by a ToolTracker.
type PendingTool struct {
	ID         string
	ToolName   string
	Input      map[string]any
	EmittedAt  int64
}

// ToolSummary annotates a completed tool call for inclusion in a DriverBatch,
// the generalization of the teacher's ToolPart once persistence/SSE delivery
// is dropped: only the fields the orchestrator and Navigator prompts need survive.
type ToolSummary struct {
	ID       string
	ToolName string
	Input    map[string]any
	Output   string
	IsError  bool
	// Modification is set for file-modification tools (Write/Edit) so the
	// Driver's forwarded-text buffer can append a modification annotation
	// per spec §4.4 rule 2.
	Modification bool
}

// DriverBatch is the list of text fragments plus annotated tool-call
// summaries accumulated by the Driver between the moment the orchestrator
// last asked it to continue and the moment all its pending tools drain, or a
// Result arrives (spec §3).
type DriverBatch struct {
	Text  []string
	Tools []ToolSummary
	// Final is true when this batch was delivered because of a Result
	// message rather than an intermediate pendingCount-reaches-zero drain.
	Final bool
}

// Joined concatenates the batch's text fragments.
func (b DriverBatch) Joined() string {
	out := ""
	for _, t := range b.Text {
		out += t
	}
	return out
}
