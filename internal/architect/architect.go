// Package architect implements the Architect role (spec.md §4.6): a
// single-shot planner that reads the task, produces an ordered
// implementation plan, and signals completion either through a reserved
// exit-plan-mode tool call or the "PLAN COMPLETE" sentinel phrase.
package architect

import (
	"context"
	"fmt"
	"strings"

	"github.com/trioagent/trio/internal/provider"
	"github.com/trioagent/trio/pkg/types"
)

// exitPlanModeTool is the reserved tool name a provider may expose for
// plan-mode completion (spec.md §4.6). Not every backend offers it, so the
// sentinel phrase below is the universal fallback.
const exitPlanModeTool = "exit_plan_mode"

// planCompleteSentinel marks the end of the plan when no exit-plan-mode tool
// is available. Everything before it is the plan text.
const planCompleteSentinel = "PLAN COMPLETE"

// EventKind distinguishes the text the Architect forwards for display.
type EventKind string

const EventMessage EventKind = "message"

// Event is delivered to every subscriber registered with OnEvent.
type Event struct {
	Kind EventKind
	Text string
}

// Architect is a thin wrapper over one OneShotConfig: it has no state beyond
// its subscribers, since spec.md's Non-goals exclude any persistence across
// a single planning call.
type Architect struct {
	port provider.ProviderPort
	cfg  provider.OneShotConfig

	subs []func(Event)
}

// New creates an Architect that issues one-shot sessions through port using
// cfg (the roles.ArchitectPreset-derived configuration).
func New(port provider.ProviderPort, cfg provider.OneShotConfig) *Architect {
	return &Architect{port: port, cfg: cfg}
}

// OnEvent registers a subscriber for the Architect's forwarded text.
func (a *Architect) OnEvent(fn func(Event)) {
	a.subs = append(a.subs, fn)
}

func (a *Architect) emit(e Event) {
	for _, fn := range a.subs {
		fn(e)
	}
}

// CreatePlan runs the planning conversation to completion and returns the
// finished plan. An empty Plan with a nil error means the session ended
// (turn limit or conversation end) without ever signalling completion; the
// orchestrator treats that as a planning failure (spec.md §4.6, §4.7 phase
// 1).
func (a *Architect) CreatePlan(ctx context.Context, task string) (types.Plan, error) {
	sess, err := a.port.CreateOneShotSession(ctx, a.cfg)
	if err != nil {
		return "", fmt.Errorf("architect: create session: %w", err)
	}
	defer sess.End()

	if err := sess.SendMessage(ctx, task); err != nil {
		return "", fmt.Errorf("architect: send task: %w", err)
	}

	var textParts []string
	var toolPlan string
	var gotToolSignal bool

	for msg := range sess.Messages() {
		switch msg.Role {
		case types.RoleAssistant:
			for _, item := range msg.Assistant {
				if item.IsText() {
					if item.Text == "" {
						continue
					}
					textParts = append(textParts, item.Text)
					a.emit(Event{Kind: EventMessage, Text: item.Text})
					continue
				}
				if item.ToolUse.Name == exitPlanModeTool {
					gotToolSignal = true
					if p, ok := item.ToolUse.Input["plan"].(string); ok {
						toolPlan = p
					}
				}
			}
		case types.RoleSystem:
			if msg.System == types.SystemAssistantError {
				return "", fmt.Errorf("architect: %s", msg.Error)
			}
		case types.RoleResult:
			// A one-shot session ends its only turn here; loop exits when the
			// channel closes.
		}
	}

	if gotToolSignal {
		if toolPlan != "" {
			return types.Plan(toolPlan), nil
		}
		return types.Plan(strings.Join(textParts, "")), nil
	}

	joined := strings.Join(textParts, "")
	if idx := strings.Index(joined, planCompleteSentinel); idx >= 0 {
		return types.Plan(strings.TrimSpace(joined[:idx])), nil
	}

	return types.Plan(""), nil
}
