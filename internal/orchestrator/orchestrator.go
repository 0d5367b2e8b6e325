// Package orchestrator drives the three-phase session loop — Planning,
// Execution, Shutdown — that wires the Architect, Navigator, and Driver
// roles together through the MCP bridge and the permission coordinator
// (spec.md §4.7), the orchestrator-level equivalent of the teacher's
// session/loop.go run loop.
package orchestrator

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/trioagent/trio/internal/architect"
	"github.com/trioagent/trio/internal/config"
	"github.com/trioagent/trio/internal/displaybus"
	"github.com/trioagent/trio/internal/driver"
	"github.com/trioagent/trio/internal/logging"
	"github.com/trioagent/trio/internal/mcpbridge"
	"github.com/trioagent/trio/internal/navigator"
	"github.com/trioagent/trio/internal/permission"
	"github.com/trioagent/trio/internal/provider"
	"github.com/trioagent/trio/internal/roles"
	"github.com/trioagent/trio/internal/tool"
	"github.com/trioagent/trio/pkg/types"
)

// maxReviewAttempts bounds the Navigator retry loop when a review was
// requested but the Navigator's batch admits no code_review decision
// (spec.md §4.7 "bounded retry").
const maxReviewAttempts = 5

// modificationTools mirrors internal/driver's set: the file-writing tool
// names that always require a permission round-trip (a Bash call needs one
// only when bashModifiesFiles reports that it modifies files).
var modificationTools = map[string]bool{
	"write": true, "Write": true, "edit": true, "Edit": true,
}

// Orchestrator owns one end-to-end pair-programming run: one Architect
// planning call, one Driver/Navigator pair, one MCP bridge, one permission
// coordinator.
type Orchestrator struct {
	cfg     *config.Config
	workDir string

	providers *provider.Registry
	bridge    *mcpbridge.Bridge

	coordinator *permission.Coordinator
	doomGuard   *permission.DoomLoopDetector

	architect *architect.Architect
	navigator *navigator.Navigator
	driver    *driver.Driver

	driverClient *mcpbridge.Client
	navClient    *mcpbridge.Client

	driverPreset roles.Preset
	navPreset    roles.Preset

	turn int
}

// New builds an Orchestrator ready to Run one task: it constructs the
// provider registry, the MCP bridge, both tool registries, and wires the
// Driver/Navigator/Architect roles and the permission coordinator together,
// leaving every agent session unconstructed until its first turn.
func New(ctx context.Context, cfg *config.Config, workDir string) (*Orchestrator, error) {
	providers, err := provider.BuildFromConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: build providers: %w", err)
	}

	bridge := mcpbridge.New()
	driverClient, err := mcpbridge.NewClient(ctx, bridge)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: driver mcp client: %w", err)
	}
	navClient, err := mcpbridge.NewClient(ctx, bridge)
	if err != nil {
		return nil, fmt.Errorf("orchestrator: navigator mcp client: %w", err)
	}

	o := &Orchestrator{
		cfg:          cfg,
		workDir:      workDir,
		providers:    providers,
		bridge:       bridge,
		doomGuard:    permission.NewDoomLoopDetector(),
		driverClient: driverClient,
		navClient:    navClient,
		driverPreset: roles.DriverPreset(workDir, cfg.DriverMaxTurns),
		navPreset:    roles.NavigatorPreset(workDir, cfg.NavigatorMaxTurns),
	}

	var nav *navigator.Navigator
	o.coordinator = permission.NewCoordinator(func(ctx context.Context, req types.PermissionRequest) error {
		return nav.SendPermissionPrompt(ctx, req)
	})

	navProvider, err := providers.Get("navigator")
	if err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}
	nav = navigator.New("navigator", o.navigatorSessionFactory(navProvider), o.coordinator,
		navigator.WithToolTimeout(cfg.ToolCompletionTimeout))
	o.navigator = nav
	o.bridge.BindNavigator(nav.EnqueueCommand)

	driverProvider, err := providers.Get("driver")
	if err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}
	o.driver = driver.New("driver", o.driverSessionFactory(driverProvider),
		driver.WithToolTimeout(cfg.ToolCompletionTimeout))
	o.bridge.BindDriver(o.driver.EnqueueCommand)

	architectProvider, err := providers.Get("architect")
	if err != nil {
		return nil, fmt.Errorf("orchestrator: %w", err)
	}
	archPreset := roles.ArchitectPreset(cfg.NavigatorMaxTurns)
	o.architect = architect.New(architectProvider, provider.OneShotConfig{
		SystemPrompt: archPreset.SystemPrompt,
		MaxTurns:     archPreset.MaxTurns,
		ProjectPath:  workDir,
		PlanningMode: true,
	})

	return o, nil
}

func (o *Orchestrator) driverSessionFactory(p provider.Provider) driver.SessionFactory {
	return func(ctx context.Context) (provider.StreamingSession, error) {
		return p.CreateStreamingSession(ctx, provider.StreamingConfig{
			SystemPrompt:       o.driverPreset.SystemPrompt,
			MaxTurns:           o.driverPreset.MaxTurns,
			ProjectPath:        o.workDir,
			Role:               provider.RoleDriver,
			CanUseTool:         o.driverCanUseTool,
			AdditionalMCPTools: mcpbridge.DriverToolDefinitions(),
			DomainTools:        roles.ToolDefinitions(o.driverPreset.Registry),
			Execute:            o.executor(o.driverPreset.Registry, o.driverClient),
		})
	}
}

func (o *Orchestrator) navigatorSessionFactory(p provider.Provider) navigator.SessionFactory {
	return func(ctx context.Context) (provider.StreamingSession, error) {
		return p.CreateStreamingSession(ctx, provider.StreamingConfig{
			SystemPrompt:       o.navPreset.SystemPrompt,
			MaxTurns:           o.navPreset.MaxTurns,
			ProjectPath:        o.workDir,
			Role:               provider.RoleNavigator,
			CanUseTool:         o.navigatorCanUseTool,
			AdditionalMCPTools: mcpbridge.NavigatorToolDefinitions(),
			DomainTools:        roles.ToolDefinitions(o.navPreset.Registry),
			Execute:            o.executor(o.navPreset.Registry, o.navClient),
		})
	}
}

// executor dispatches a tool call to the MCP bridge client when the name
// falls in its namespace, or to the domain tool registry otherwise, the
// single ToolExecutor every StreamingConfig binds (spec.md §9).
func (o *Orchestrator) executor(reg *tool.Registry, client *mcpbridge.Client) provider.ToolExecutor {
	return func(ctx context.Context, name string, input map[string]any) (string, bool) {
		if mcpbridge.Owns(name) {
			return client.Execute(ctx, name, input)
		}
		t, ok := reg.Get(name)
		if !ok {
			return fmt.Sprintf("unknown tool %q", name), true
		}
		raw, err := json.Marshal(input)
		if err != nil {
			return fmt.Sprintf("invalid tool input: %v", err), true
		}
		res, err := t.Execute(ctx, raw, &tool.Context{WorkDir: o.workDir})
		if err != nil {
			return err.Error(), true
		}
		return res.Output, res.Error != nil
	}
}

// driverCanUseTool is the Driver's permission gate (spec.md §4.3): MCP
// bridge tools and non-modifying domain tools pass straight through, a
// detected doom loop is refused outright, and every file-modifying call —
// Write/Edit, or a Bash command that touches files inside the project — is
// routed through the PermissionCoordinator to the Navigator.
func (o *Orchestrator) driverCanUseTool(ctx context.Context, toolName string, input map[string]any) (types.PermissionDecision, error) {
	if mcpbridge.Owns(toolName) {
		return types.PermissionDecision{Allow: true}, nil
	}
	if !modificationTools[toolName] && !o.bashModifiesFiles(toolName, input) {
		return types.PermissionDecision{Allow: true}, nil
	}
	if o.doomGuard.Check("driver", toolName, input) {
		return types.PermissionDecision{
			Allow:  false,
			Reason: "repeated identical call detected; stop and try a different approach",
		}, nil
	}

	req := types.PermissionRequest{ID: uuid.NewString(), ToolName: toolName, Input: input}
	if path, ok := input["filePath"].(string); ok && path != "" {
		before, _ := os.ReadFile(path)
		after := afterContentFor(toolName, string(before), input)
		diff := permission.RenderDiff(path, string(before), after)
		req.Diff = &diff
	}

	displaybus.PublishSync(displaybus.Event{Type: displaybus.PermissionRequested, Data: displaybus.PermissionRequestedData{Request: req}})
	decision, err := o.navigator.ReviewPermission(ctx, req, o.cfg.PermissionRequestTimeout)
	if err != nil && decision.Reason == "" {
		decision.Reason = err.Error()
	}
	displaybus.PublishSync(displaybus.Event{Type: displaybus.PermissionResolved, Data: displaybus.PermissionResolvedData{RequestID: req.ID, Decision: decision}})
	return decision, nil
}

// bashModifiesFiles reports whether a Bash call would modify files inside
// the project directory, extending the Write/Edit permission gate to shell
// mutations (rm, mv, chmod, ...). Paths outside the project and unparsable
// commands fall through to the Bash tool's own execution — the gate only
// claims the cases it can attribute to the project tree.
func (o *Orchestrator) bashModifiesFiles(toolName string, input map[string]any) bool {
	if toolName != "bash" && toolName != "Bash" {
		return false
	}
	command, _ := input["command"].(string)
	if command == "" {
		return false
	}
	cmds, err := permission.ParseBashCommand(command)
	if err != nil {
		return false
	}
	for _, cmd := range cmds {
		if cmd.Name == "cd" || !permission.IsDangerousCommand(cmd.Name) {
			continue
		}
		for _, p := range permission.ExtractPaths(cmd) {
			if !filepath.IsAbs(p) {
				p = filepath.Join(o.workDir, p)
			}
			if permission.IsWithinDir(p, o.workDir) {
				logging.Debug().
					Str("pattern", permission.BuildPattern(cmd)).
					Str("path", p).
					Msg("orchestrator: bash command requires permission")
				return true
			}
		}
	}
	return false
}

// navigatorCanUseTool denies every file-modifying tool outright: the
// Navigator's role is read-only review (spec.md §4.5), and this is
// defense-in-depth alongside its registry never including Write/Edit.
func (o *Orchestrator) navigatorCanUseTool(ctx context.Context, toolName string, input map[string]any) (types.PermissionDecision, error) {
	if mcpbridge.Owns(toolName) {
		return types.PermissionDecision{Allow: true}, nil
	}
	if modificationTools[toolName] {
		return types.PermissionDecision{Allow: false, Reason: "navigator has no file-modification access"}, nil
	}
	return types.PermissionDecision{Allow: true}, nil
}

func afterContentFor(toolName, before string, input map[string]any) string {
	switch toolName {
	case "write", "Write":
		if c, ok := input["content"].(string); ok {
			return c
		}
		return before
	case "edit", "Edit":
		oldS, _ := input["oldString"].(string)
		newS, _ := input["newString"].(string)
		if replaceAll, _ := input["replaceAll"].(bool); replaceAll {
			return strings.ReplaceAll(before, oldS, newS)
		}
		return strings.Replace(before, oldS, newS, 1)
	default:
		return before
	}
}

// Run executes the full Planning -> Execution -> Shutdown session (spec.md
// §4.7), bounded by the configured session hard limit.
func (o *Orchestrator) Run(ctx context.Context, task string) error {
	ctx, cancel := context.WithTimeout(ctx, o.cfg.SessionHardLimit)
	defer cancel()

	plan, err := o.architect.CreatePlan(ctx, task)
	if err != nil {
		return o.shutdown(fmt.Errorf("orchestrator: planning: %w", err))
	}
	if plan.Empty() {
		return o.shutdown(&PlanningFailed{})
	}
	displaybus.PublishSync(displaybus.Event{Type: displaybus.PlanReady, Data: displaybus.PlanReadyData{Plan: plan}})

	o.navigator.Initialize(task, plan)

	batch, err := o.driver.StartImplementation(ctx, plan)
	if err != nil {
		return o.shutdown(fmt.Errorf("orchestrator: start implementation: %w", err))
	}

	for {
		select {
		case <-ctx.Done():
			return o.shutdown(ctx.Err())
		default:
		}

		o.turn++
		displaybus.PublishSync(displaybus.Event{Type: displaybus.DriverTurnStarted, Data: displaybus.DriverTurnStartedData{Turn: o.turn}})
		displaybus.PublishSync(displaybus.Event{Type: displaybus.DriverBatchReceived, Data: displaybus.DriverBatchData{Batch: batch}})

		cmds := o.driver.DrainCommands()
		reviewRequested := containsDriverKind(cmds, types.DriverRequestReview)
		guidanceRequested := !reviewRequested && containsDriverKind(cmds, types.DriverRequestGuidance)

		// Only request_review / request_guidance ever engage the Navigator
		// (spec.md §4.7's pseudocode); the completion-heuristic and
		// plain-continue branches talk to the Driver only.
		var feedback string
		switch {
		case reviewRequested:
			navText := batch.Joined()
			if c := driverContext(cmds, types.DriverRequestReview); c != "" {
				navText += "\n\n" + c
			}

			navCmds, err := o.reviewWithRetry(ctx, navText)
			if err != nil {
				return o.shutdown(&NavigatorSessionError{Err: err})
			}

			if verdict, ok := findCodeReview(navCmds); ok {
				displaybus.PublishSync(displaybus.Event{Type: displaybus.NavigatorVerdict, Data: displaybus.NavigatorVerdictData{Command: verdict}})
				if verdict.Pass {
					return o.shutdown(nil, verdict.Comment)
				}
				feedback = fmt.Sprintf("Review failed: %s\nAddress this feedback and continue.", verdict.Comment)
			} else {
				feedback = "Please continue."
			}

		case guidanceRequested:
			navText := batch.Joined()
			if c := driverContext(cmds, types.DriverRequestGuidance); c != "" {
				navText += "\n\n" + c
			}

			navCmds, err := o.navigator.ProcessDriverMessage(ctx, navText, false)
			if err != nil {
				return o.shutdown(&NavigatorSessionError{Err: err})
			}
			if verdict, ok := findCodeReview(navCmds); ok {
				displaybus.PublishSync(displaybus.Event{Type: displaybus.NavigatorVerdict, Data: displaybus.NavigatorVerdictData{Command: verdict}})
			}
			feedback = guidanceFeedback(navCmds)

		case driverSuggestsCompletion(batch):
			feedback = "It looks like you may be done. If the implementation is complete, please request a review now via the review tool."

		default:
			feedback = "Please continue."
		}

		batch, err = o.driver.ContinueWithFeedback(ctx, feedback)
		if err != nil {
			return o.shutdown(fmt.Errorf("orchestrator: driver turn: %w", err))
		}
	}
}

// reviewWithRetry pushes Navigator turns for a requested review, retrying up
// to maxReviewAttempts times, pausing one second between attempts and using
// a stricter prompt after the first, until a code_review verdict is admitted,
// falling back to an empty result (the caller then nudges the Driver to
// continue) once exhausted (spec.md §4.7).
func (o *Orchestrator) reviewWithRetry(ctx context.Context, text string) ([]types.NavigatorCommand, error) {
	prompt := text
	for attempt := 0; attempt < maxReviewAttempts; attempt++ {
		cmds, err := o.navigator.ProcessDriverMessage(ctx, prompt, true)
		if err != nil {
			return nil, err
		}
		if _, ok := findCodeReview(cmds); ok {
			return cmds, nil
		}
		prompt = "STRICT: " + text + "\n\nYou must call navigator.codeReview exactly once with your verdict."
		if attempt+1 < maxReviewAttempts {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Second):
			}
		}
	}

	logging.Warn().Msg("orchestrator: navigator gave no review verdict after retries, continuing driver")
	return nil, nil
}

// completionKeywords are the substrings checked, case-insensitively, against
// the Driver's last text fragment to decide whether to nudge it toward
// calling driver.requestReview. A hint only: it never substitutes for the
// tool call itself as the authoritative completion signal (spec.md §9).
var completionKeywords = []string{"done", "finished", "ready for review"}

func driverSuggestsCompletion(batch types.DriverBatch) bool {
	if len(batch.Text) == 0 {
		return false
	}
	last := strings.ToLower(batch.Text[len(batch.Text)-1])
	for _, kw := range completionKeywords {
		if strings.Contains(last, kw) {
			return true
		}
	}
	return false
}

// guidanceFeedback turns a Navigator response to a guidance request into
// Driver-facing feedback. A code_review verdict occasionally rides along
// with guidance; otherwise the Driver is simply told to continue (Navigator
// free text is not relayed).
func guidanceFeedback(cmds []types.NavigatorCommand) string {
	if verdict, ok := findCodeReview(cmds); ok {
		if verdict.Pass {
			return "Review passed. Continue with the plan."
		}
		return fmt.Sprintf("Guidance: %s", verdict.Comment)
	}
	return "Please continue."
}

// shutdown runs Phase 3 (spec.md §4.7): interrupt both agents, end their
// sessions, close the MCP bridge's clients, and release the permission
// coordinator's outstanding requests. Always returns cause unchanged so
// callers can propagate it. An optional summary (the Navigator's passing
// code_review comment, per §4.7's terminate(summary=cmd.comment)) is carried
// on the SessionEnded event's Reason.
func (o *Orchestrator) shutdown(cause error, summary ...string) error {
	_ = o.driver.Interrupt()
	_ = o.navigator.Interrupt()
	_ = o.driver.End()
	_ = o.navigator.End()
	o.coordinator.Cleanup()

	if err := o.driverClient.Close(); err != nil {
		logging.Warn().Err(err).Msg("orchestrator: close driver mcp client")
	}
	if err := o.navClient.Close(); err != nil {
		logging.Warn().Err(err).Msg("orchestrator: close navigator mcp client")
	}

	data := displaybus.SessionEndedData{Reason: "completed"}
	if len(summary) > 0 && summary[0] != "" {
		data.Reason = summary[0]
	}
	if cause != nil {
		data.Reason = "error"
		data.Err = cause.Error()
	}
	displaybus.PublishSync(displaybus.Event{Type: displaybus.SessionEnded, Data: data})

	return cause
}

func containsDriverKind(cmds []types.DriverCommand, kind types.DriverCommandKind) bool {
	for _, c := range cmds {
		if c.Kind == kind {
			return true
		}
	}
	return false
}

func driverContext(cmds []types.DriverCommand, kind types.DriverCommandKind) string {
	for _, c := range cmds {
		if c.Kind == kind {
			return c.Context
		}
	}
	return ""
}

// findCodeReview picks the batch's governing verdict: a pass anywhere wins
// (spec.md §4.7 "code_review with pass=true terminates immediately"),
// otherwise the first fail-comment drives the next Driver turn.
func findCodeReview(cmds []types.NavigatorCommand) (types.NavigatorCommand, bool) {
	var first types.NavigatorCommand
	var found bool
	for _, c := range cmds {
		if c.Kind != types.NavigatorCodeReview {
			continue
		}
		if c.Pass {
			return c, true
		}
		if !found {
			first = c
			found = true
		}
	}
	return first, found
}
