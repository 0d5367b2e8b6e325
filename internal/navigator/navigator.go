// Package navigator implements the Navigator role (spec.md §4.5): the agent
// that owns the review conversation, filters assistant output to decision
// tool-calls only, enforces one-decision-per-request, and adjudicates
// permission requests.
package navigator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/trioagent/trio/internal/logging"
	"github.com/trioagent/trio/internal/permission"
	"github.com/trioagent/trio/internal/provider"
	"github.com/trioagent/trio/internal/tooltracker"
	"github.com/trioagent/trio/pkg/types"
)

// EventKind distinguishes what the Navigator surfaces to the UI. Per
// spec.md §4.5 "the Navigator emits to the UI only tool-lines, never text
// content," there is no text event kind.
type EventKind string

const EventToolLine EventKind = "tool_line"

// Event is delivered to every subscriber registered with OnEvent.
type Event struct {
	Kind EventKind
	Tool *types.ToolUse
}

// SessionFactory creates a fresh StreamingSession for the Navigator.
type SessionFactory func(ctx context.Context) (provider.StreamingSession, error)

// Option configures a Navigator.
type Option func(*Navigator)

// WithToolTimeout bounds how long a turn waits for the previous turn's
// pending tools to drain before interrupting the session (spec.md §5
// TOOL_COMPLETION).
func WithToolTimeout(d time.Duration) Option {
	return func(n *Navigator) { n.toolTimeout = d }
}

// Navigator composes a StreamingSession, a ToolTracker, a shared
// PermissionCoordinator, a command queue, and the permission-mode state
// (active request ids plus per-id decision-shown flags) per spec.md §4.5.
type Navigator struct {
	id          string
	factory     SessionFactory
	coordinator *permission.Coordinator
	toolTimeout time.Duration

	mu      sync.Mutex
	session provider.StreamingSession
	tracker *tooltracker.Tracker

	task    string
	plan    types.Plan
	started bool

	active map[string]bool // request-id -> awaiting decision
	order  []string         // insertion order, oldest-first fallback
	shown  map[string]bool  // request-id -> decision already emitted once

	reviewPending      bool
	admittedThisBatch  int
	pendingCommands    []types.NavigatorCommand
	waiter             chan []types.NavigatorCommand

	subs []func(Event)
}

// New creates a Navigator bound to coordinator for permission adjudication.
func New(id string, factory SessionFactory, coordinator *permission.Coordinator, opts ...Option) *Navigator {
	n := &Navigator{
		id:          id,
		factory:     factory,
		coordinator: coordinator,
		toolTimeout: 120 * time.Second,
		active:      make(map[string]bool),
		shown:       make(map[string]bool),
	}
	for _, opt := range opts {
		opt(n)
	}
	return n
}

// Initialize stores the task and plan text for the first-call "initial"
// prompt template (spec.md §4.5).
func (n *Navigator) Initialize(task string, plan types.Plan) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.task = task
	n.plan = plan
}

// OnEvent registers a subscriber for tool-line events.
func (n *Navigator) OnEvent(fn func(Event)) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.subs = append(n.subs, fn)
}

func (n *Navigator) emit(e Event) {
	n.mu.Lock()
	subs := append([]func(Event){}, n.subs...)
	n.mu.Unlock()
	for _, fn := range subs {
		fn(e)
	}
}

// EnqueueCommand is bound to the MCP bridge's NavigatorSink; every completed
// approve/deny/code_review tool call arrives here.
func (n *Navigator) EnqueueCommand(cmd types.NavigatorCommand) {
	switch cmd.Kind {
	case types.NavigatorApprove, types.NavigatorDeny:
		n.handlePermissionDecision(cmd)
	case types.NavigatorCodeReview:
		n.handleCodeReview(cmd)
	}
}

func (n *Navigator) handlePermissionDecision(cmd types.NavigatorCommand) {
	n.mu.Lock()
	id := cmd.RequestID
	if id != "" && !n.active[id] {
		id = "" // named id not active; fall through to oldest-pending
	}
	if id == "" {
		if len(n.order) == 0 {
			n.mu.Unlock()
			logging.Warn().Str("kind", string(cmd.Kind)).Msg("navigator: decision outside active permission window, dropped")
			return
		}
		id = n.order[0]
	}
	if n.shown[id] {
		n.mu.Unlock()
		return // duplicate decision for an id already resolved, suppressed
	}
	n.shown[id] = true
	delete(n.active, id)
	n.removeFromOrder(id)
	n.admittedThisBatch++
	n.mu.Unlock()

	n.coordinator.SubmitDecision(cmd)
}

func (n *Navigator) handleCodeReview(cmd types.NavigatorCommand) {
	n.mu.Lock()
	admissible := n.reviewPending || len(n.active) > 0
	if !admissible {
		n.mu.Unlock()
		logging.Warn().Msg("navigator: code_review outside a review turn, dropped")
		return
	}
	n.admittedThisBatch++
	n.pendingCommands = append(n.pendingCommands, cmd)
	n.mu.Unlock()
}

func (n *Navigator) removeFromOrder(id string) {
	for i, v := range n.order {
		if v == id {
			n.order = append(n.order[:i], n.order[i+1:]...)
			return
		}
	}
}

// SendPermissionPrompt implements permission.SendFunc: it marks req.ID
// active and pushes a formatted permission prompt into the Navigator's
// session, without itself awaiting the decision — the PermissionCoordinator
// that called it is already blocked on the matching result channel
// (spec.md §4.5 reviewPermission).
func (n *Navigator) SendPermissionPrompt(ctx context.Context, req types.PermissionRequest) error {
	n.mu.Lock()
	n.active[req.ID] = true
	n.order = append(n.order, req.ID)
	n.mu.Unlock()

	sess, err := n.ensureSession(ctx)
	if err != nil {
		return err
	}
	return sess.PushText(ctx, permissionPrompt(req))
}

// ReviewPermission routes req through the shared coordinator and blocks
// until a decision, the timeout, or cancellation (spec.md §4.5). The
// coordinator's injected send callback is this Navigator's
// SendPermissionPrompt, which marks the request active and pushes the
// prompt into the session.
func (n *Navigator) ReviewPermission(ctx context.Context, req types.PermissionRequest, timeout time.Duration) (types.PermissionDecision, error) {
	return n.coordinator.Request(ctx, req, timeout)
}

// ProcessDriverMessage selects a prompt template (initial/review/continue),
// pushes it, and awaits the Navigator's next batch of commands (spec.md
// §4.5).
func (n *Navigator) ProcessDriverMessage(ctx context.Context, text string, reviewRequested bool) ([]types.NavigatorCommand, error) {
	n.mu.Lock()
	if n.waiter != nil {
		n.mu.Unlock()
		return nil, fmt.Errorf("navigator: turn already in flight")
	}
	ch := make(chan []types.NavigatorCommand, 1)
	n.waiter = ch
	n.mu.Unlock()

	sess, err := n.ensureSession(ctx)
	if err != nil {
		n.mu.Lock()
		n.waiter = nil
		n.mu.Unlock()
		return nil, err
	}

	// Same TOOL_COMPLETION discipline as the Driver (spec.md §5): the
	// previous turn's tools must drain before new input goes in.
	n.mu.Lock()
	tr := n.tracker
	n.mu.Unlock()
	if tr != nil && tr.PendingCount() > 0 {
		if err := tr.WaitForDrain(ctx, n.toolTimeout); err != nil {
			n.mu.Lock()
			n.waiter = nil
			n.mu.Unlock()
			var timeout *tooltracker.ToolTimeout
			if errors.As(err, &timeout) {
				_ = n.Interrupt()
			}
			return nil, err
		}
	}

	if err := sess.PushText(ctx, n.buildPrompt(text, reviewRequested)); err != nil {
		n.mu.Lock()
		n.waiter = nil
		n.mu.Unlock()
		return nil, fmt.Errorf("navigator: push text: %w", err)
	}

	select {
	case cmds := <-ch:
		return cmds, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (n *Navigator) buildPrompt(text string, reviewRequested bool) string {
	n.mu.Lock()
	first := !n.started
	n.started = true
	task, plan := n.task, n.plan
	if reviewRequested {
		n.reviewPending = true
	}
	n.mu.Unlock()

	switch {
	case first:
		prompt := fmt.Sprintf(
			"Task: %s\n\nPlan:\n%s\n\nDriver's first message:\n%s\n\nReview the above.",
			task, string(plan), text)
		if reviewRequested {
			prompt += "\n\nCall navigator.codeReview exactly once with your verdict."
		}
		return prompt
	case reviewRequested:
		return fmt.Sprintf(
			"The Driver requests a review.\n\n%s\n\nCall navigator.codeReview exactly once with your verdict.",
			text)
	default:
		return fmt.Sprintf(
			"Driver update:\n\n%s\n\nNo decision is required unless you see a problem worth flagging.",
			text)
	}
}

// ensureSession returns the live session, constructing a new one if the
// prior one was cleared by a turn-limit/conversation-ended system message.
func (n *Navigator) ensureSession(ctx context.Context) (provider.StreamingSession, error) {
	n.mu.Lock()
	sess := n.session
	n.mu.Unlock()
	if sess != nil {
		return sess, nil
	}

	sess, err := n.factory(ctx)
	if err != nil {
		return nil, fmt.Errorf("navigator: create session: %w", err)
	}

	n.mu.Lock()
	n.session = sess
	n.tracker = tooltracker.New(n.id)
	n.mu.Unlock()

	go n.processMessages(sess)
	return sess, nil
}

func (n *Navigator) processMessages(sess provider.StreamingSession) {
	for msg := range sess.Messages() {
		switch msg.Role {
		case types.RoleAssistant:
			n.handleAssistant(msg.Assistant)
		case types.RoleUser:
			n.handleToolResults(msg.User)
		case types.RoleResult:
			n.finishBatch()
		case types.RoleSystem:
			n.handleSystem(msg)
		}
	}
}

// handleAssistant filters free-form text per spec.md §4.5 rule 1: tool
// lines are surfaced, assistant prose never is.
func (n *Navigator) handleAssistant(items []types.ContentItem) {
	for _, item := range items {
		if item.IsText() {
			continue
		}
		use := item.ToolUse
		n.mu.Lock()
		tr := n.tracker
		n.mu.Unlock()
		if tr != nil {
			tr.MarkPending(use.ID, use.Name, use.Input)
		}
		n.emit(Event{Kind: EventToolLine, Tool: use})
	}
}

func (n *Navigator) handleToolResults(results []types.ToolResult) {
	n.mu.Lock()
	tr := n.tracker
	n.mu.Unlock()
	for _, res := range results {
		if tr != nil {
			tr.MarkResolved(res.ToolUseID)
		}
	}
}

func (n *Navigator) handleSystem(msg types.AgentMessage) {
	switch msg.System {
	case types.SystemTurnLimitReached, types.SystemConversationEnded:
		n.mu.Lock()
		n.session = nil
		n.mu.Unlock()
		n.finishBatch()
	case types.SystemAssistantError:
		logging.Warn().Str("navigator", n.id).Str("error", msg.Error).Msg("navigator: assistant error")
		n.finishBatch()
	}
}

// finishBatch delivers the commands accumulated this turn to whichever
// ProcessDriverMessage call is waiting, and raises handleMalformed when zero
// decisions were admitted while permission requests remain outstanding
// (spec.md §4.3/§4.5).
func (n *Navigator) finishBatch() {
	n.mu.Lock()
	cmds := n.pendingCommands
	n.pendingCommands = nil
	admitted := n.admittedThisBatch
	n.admittedThisBatch = 0
	n.reviewPending = false
	activeCount := len(n.active)
	waiter := n.waiter
	n.waiter = nil
	n.mu.Unlock()

	if admitted == 0 && activeCount > 0 {
		n.coordinator.HandleMalformed()
	}
	if waiter != nil {
		waiter <- cmds
	}
}

// Interrupt aborts the live session's in-flight generation, if any.
func (n *Navigator) Interrupt() error {
	n.mu.Lock()
	sess := n.session
	tr := n.tracker
	n.mu.Unlock()
	if tr != nil {
		tr.Clear()
	}
	if sess == nil {
		return nil
	}
	return sess.Interrupt()
}

// End releases the session's resources. Idempotent.
func (n *Navigator) End() error {
	n.mu.Lock()
	sess := n.session
	n.session = nil
	n.mu.Unlock()
	if sess == nil {
		return nil
	}
	return sess.End()
}

func permissionPrompt(req types.PermissionRequest) string {
	base := fmt.Sprintf(
		"Permission request %s: the Driver wants to call %s with input %v.",
		req.ID, req.ToolName, req.Input)
	if req.Diff != nil {
		base += fmt.Sprintf("\n\nProposed diff for %s (+%d/-%d):\n%s",
			req.Diff.Path, req.Diff.Additions, req.Diff.Deletions, req.Diff.Unified)
	}
	base += "\n\nCall navigator.approve or navigator.deny with requestId=\"" + req.ID + "\"."
	return base
}
