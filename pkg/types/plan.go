package types

// Plan is an opaque string produced by the Architect, consumed verbatim by
// the Driver as its initial prompt (spec §3). No internal structure; length
// and non-emptiness are the only invariants the orchestrator checks.
type Plan string

// Empty reports whether the Architect failed to produce a plan.
func (p Plan) Empty() bool { return len(p) == 0 }
