// Package roles builds the per-agent tool surfaces and system prompts for
// the three cooperating roles (spec.md §4.4/§4.5/§4.6), generalizing the
// teacher's session.Agent presets (DefaultAgent/CodeAgent/PlanAgent) into the
// Architect/Navigator/Driver split this orchestrator requires.
package roles

import (
	"encoding/json"

	"github.com/trioagent/trio/internal/permission"
	"github.com/trioagent/trio/internal/provider"
	"github.com/trioagent/trio/internal/tool"
)

// Preset bundles the system prompt, tool surface, and step budget for one
// agent role, the generalization of the teacher's Agent struct (prompt,
// temperature/topP, MaxSteps, Tools/DisabledTools, Permission) to this
// repo's three fixed roles.
type Preset struct {
	SystemPrompt string
	Registry     *tool.Registry
	MaxTurns     int
}

// ArchitectSystemPrompt is the planner's system prompt, grounded on the
// teacher's PlanAgent prompt but extended with the exit-plan-mode signal
// spec.md §4.6 requires.
const ArchitectSystemPrompt = `You are the Architect in a three-agent pair-programming session.
Your only job is to read the user's task and produce a concrete, ordered
implementation plan for the Driver to follow. Do not write or edit any
files yourself — you have no file-modification tools.

Break the task into a short ordered list of concrete steps. When your plan
is complete, call the exit_plan_mode tool with the finished plan text, or
end your final message with the exact phrase "PLAN COMPLETE" if no such
tool is available to you.`

// NavigatorSystemPrompt is the reviewer's fixed system prompt. The task and
// plan text reach the Navigator through the first-turn prompt that
// internal/navigator builds, not through this constant.
const NavigatorSystemPrompt = `You are the Navigator in a three-agent pair-programming session. You
review the Driver's work and decide whether to approve its file
modifications and whether a batch of work passes review.

You have read-only access to the repository (Read, Glob, Grep, List) plus
a Bash tool restricted to "git diff", "git status", and "git show" — no
other shell commands are available to you, and no tool of yours can modify
any file.

You make every decision by calling exactly one of your decision tools:
  - navigator.approve / navigator.deny — for a pending file-modification
    permission request. Always carry the requestId you were given.
  - navigator.codeReview — exactly once per review request, with pass=true
    or pass=false and a comment explaining your verdict.

Never describe your decision in free-form text instead of calling a tool;
only the tool call is observed by the orchestrator.`

// DriverSystemPrompt is the implementer's system prompt, grounded on the
// teacher's CodeAgent prompt and extended with the two control tools.
const DriverSystemPrompt = `You are the Driver in a three-agent pair-programming session. You
implement the Architect's plan using your file and shell tools. Every file
modification you attempt is subject to the Navigator's approval before it
runs.

When you believe your current batch of work is ready for review, call
driver.requestReview with a short summary of what you changed. If you are
stuck and want a hint without a full review, call driver.requestGuidance
instead. Do not claim the task is done in free-form text — always use
driver.requestReview to signal completion.`

// ArchitectPreset returns the planner's preset. The Architect has no
// domain-tool registry of its own: its session is one-shot and its only
// special tool is the provider-specific exit-plan-mode signal handled by
// internal/architect directly.
func ArchitectPreset(maxTurns int) Preset {
	return Preset{SystemPrompt: ArchitectSystemPrompt, MaxTurns: maxTurns}
}

// NavigatorPreset returns the reviewer's preset: read-only tools plus a
// Bash tool restricted to the git diff|status|show allow-list (SPEC_FULL.md
// §4.4/§4.5), defense-in-depth alongside canUseTool denying every
// file-modifying tool for the Navigator role outright.
func NavigatorPreset(workDir string, maxTurns int) Preset {
	reg := tool.NavigatorRegistry(workDir, tool.WithAllowList(navigatorBashAllowList))
	return Preset{SystemPrompt: NavigatorSystemPrompt, Registry: reg, MaxTurns: maxTurns}
}

// DriverPreset returns the implementer's preset: the full file-mutation +
// shell + web surface (SPEC_FULL.md §4.4).
func DriverPreset(workDir string, maxTurns int) Preset {
	return Preset{SystemPrompt: DriverSystemPrompt, Registry: tool.DriverRegistry(workDir), MaxTurns: maxTurns}
}

// navigatorAllowedPatterns is the Navigator's entire Bash allow-list,
// expressed in the "command subcommand *" pattern grammar
// permission.MatchBashPermission resolves.
var navigatorAllowedPatterns = map[string]permission.PermissionAction{
	"git diff *":   permission.ActionAllow,
	"git status *": permission.ActionAllow,
	"git show *":   permission.ActionAllow,
}

// navigatorBashAllowList restricts the Navigator's Bash tool to
// "git diff|status|show", per spec.md §4.5's "very restricted shell
// surface," using the teacher's wildcard pattern matcher
// (internal/permission/wildcard.go) rather than a hand-rolled switch.
func navigatorBashAllowList(cmd permission.BashCommand) bool {
	return permission.MatchBashPermission(cmd, navigatorAllowedPatterns) == permission.ActionAllow
}

// ToolDefinitions converts every tool in reg into the provider-agnostic
// schema ProviderPort.StreamingConfig.DomainTools expects, reusing the
// registry's own JSON Schema rather than re-declaring parameters.
func ToolDefinitions(reg *tool.Registry) []*provider.ToolDefinition {
	if reg == nil {
		return nil
	}
	defs := make([]*provider.ToolDefinition, 0, len(reg.List()))
	for _, t := range reg.List() {
		defs = append(defs, &provider.ToolDefinition{
			Name:        t.ID(),
			Description: t.Description(),
			Parameters:  schemaToParams(t.Parameters()),
		})
	}
	return defs
}

// schemaToParams decodes a tool's JSON Schema into the generic
// map[string]any shape ToolDefinition.Parameters carries.
func schemaToParams(raw json.RawMessage) map[string]any {
	var params map[string]any
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil
	}
	return params
}
