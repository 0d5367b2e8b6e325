// Package driver implements the Driver role (spec.md §4.4): the agent that
// owns the implementation conversation, batches tool/text output for
// delivery to the orchestrator, and surfaces in-conversation control
// commands (request-review, request-guidance).
package driver

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/trioagent/trio/internal/logging"
	"github.com/trioagent/trio/internal/provider"
	"github.com/trioagent/trio/internal/tooltracker"
	"github.com/trioagent/trio/pkg/types"
)

// modificationTools are the tool names that trigger both a permission
// request (in the provider's canUseTool gate) and the forwarded-text
// "modification annotation" rule 2 requires.
var modificationTools = map[string]bool{
	"write": true,
	"Write": true,
	"edit":  true,
	"Edit":  true,
}

// EventKind distinguishes the two UI/permission-transcript events the
// Driver emits per message (spec.md §4.4 "events").
type EventKind string

const (
	EventMessage EventKind = "message"
	EventToolUse EventKind = "tool_use"
)

// Event is delivered to every subscriber registered with OnEvent.
type Event struct {
	Kind EventKind
	Text string        // populated for EventMessage
	Tool *types.ToolUse // populated for EventToolUse
}

// SessionFactory creates a fresh StreamingSession for the Driver, used on
// construction and again whenever the session clears itself after a
// turn-limit or conversation-ended system message (spec.md §4.4 rule 6).
type SessionFactory func(ctx context.Context) (provider.StreamingSession, error)

// Option configures a Driver.
type Option func(*Driver)

// WithToolTimeout bounds how long a turn waits for the previous turn's
// pending tools to drain before interrupting the session (spec.md §5
// TOOL_COMPLETION).
func WithToolTimeout(d time.Duration) Option {
	return func(drv *Driver) { drv.toolTimeout = d }
}

// Driver composes a StreamingSession, a ToolTracker, an output accumulator,
// and a command queue per spec.md §4.4.
type Driver struct {
	id          string
	factory     SessionFactory
	toolTimeout time.Duration

	mu      sync.Mutex
	session provider.StreamingSession
	tracker *tooltracker.Tracker

	text     []string
	tools    []types.ToolSummary
	commands []types.DriverCommand

	batchCh   chan types.DriverBatch
	inFlight  bool
	delivered bool

	subs []func(Event)
}

// New creates a Driver that lazily constructs its session via factory on
// the first startImplementation call.
func New(id string, factory SessionFactory, opts ...Option) *Driver {
	d := &Driver{
		id:          id,
		factory:     factory,
		toolTimeout: 120 * time.Second,
		batchCh:     make(chan types.DriverBatch),
	}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// OnEvent registers a subscriber for message/tool_use events.
func (d *Driver) OnEvent(fn func(Event)) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.subs = append(d.subs, fn)
}

func (d *Driver) emit(e Event) {
	d.mu.Lock()
	subs := append([]func(Event){}, d.subs...)
	d.mu.Unlock()
	for _, fn := range subs {
		fn(e)
	}
}

// EnqueueCommand is bound to the MCP bridge's DriverSink so a completed
// driver.requestReview/requestGuidance tool call lands directly in the
// command queue, per spec.md §4.4 rule 3.
func (d *Driver) EnqueueCommand(cmd types.DriverCommand) {
	d.mu.Lock()
	d.commands = append(d.commands, cmd)
	d.mu.Unlock()
}

// DrainCommands atomically returns and clears commands accumulated since
// the last call (spec.md §4.4).
func (d *Driver) DrainCommands() []types.DriverCommand {
	d.mu.Lock()
	defer d.mu.Unlock()
	cmds := d.commands
	d.commands = nil
	return cmds
}

// HasPendingTools reports whether the live session has unresolved tool
// calls.
func (d *Driver) HasPendingTools() bool {
	d.mu.Lock()
	tr := d.tracker
	d.mu.Unlock()
	if tr == nil {
		return false
	}
	return tr.PendingCount() > 0
}

// Interrupt aborts the live session's in-flight generation, if any.
func (d *Driver) Interrupt() error {
	d.mu.Lock()
	sess := d.session
	tr := d.tracker
	d.mu.Unlock()
	if tr != nil {
		tr.Clear()
	}
	if sess == nil {
		return nil
	}
	return sess.Interrupt()
}

// End releases the session's resources. Idempotent.
func (d *Driver) End() error {
	d.mu.Lock()
	sess := d.session
	d.session = nil
	d.mu.Unlock()
	if sess == nil {
		return nil
	}
	return sess.End()
}

// StartImplementation pushes the plan (wrapped in an implement-instruction)
// into the session and awaits the first batch (spec.md §4.4).
func (d *Driver) StartImplementation(ctx context.Context, plan types.Plan) (types.DriverBatch, error) {
	prompt := fmt.Sprintf("Implement the following plan:\n\n%s", string(plan))
	return d.turn(ctx, prompt)
}

// ContinueWithFeedback pushes text and awaits the next batch.
func (d *Driver) ContinueWithFeedback(ctx context.Context, text string) (types.DriverBatch, error) {
	return d.turn(ctx, text)
}

// turn enforces the "at most one in-flight call" invariant, ensures a live
// session, pushes text, and blocks for exactly one batch.
func (d *Driver) turn(ctx context.Context, text string) (types.DriverBatch, error) {
	d.mu.Lock()
	if d.inFlight {
		d.mu.Unlock()
		return types.DriverBatch{}, fmt.Errorf("driver: turn already in flight")
	}
	d.inFlight = true
	d.delivered = false
	d.mu.Unlock()
	defer func() {
		d.mu.Lock()
		d.inFlight = false
		d.mu.Unlock()
	}()

	sess, err := d.ensureSession(ctx)
	if err != nil {
		return types.DriverBatch{}, err
	}

	// A turn never starts while the previous one's tools are still in
	// flight (spec.md §5 TOOL_COMPLETION); a session that cannot drain is
	// interrupted, not waited on forever.
	d.mu.Lock()
	tr := d.tracker
	d.mu.Unlock()
	if tr != nil && tr.PendingCount() > 0 {
		if err := tr.WaitForDrain(ctx, d.toolTimeout); err != nil {
			var timeout *tooltracker.ToolTimeout
			if errors.As(err, &timeout) {
				_ = d.Interrupt()
			}
			return types.DriverBatch{}, err
		}
	}

	if err := sess.PushText(ctx, text); err != nil {
		return types.DriverBatch{}, fmt.Errorf("driver: push text: %w", err)
	}

	select {
	case batch := <-d.batchCh:
		return batch, nil
	case <-ctx.Done():
		return types.DriverBatch{}, ctx.Err()
	}
}

// ensureSession returns the live session, constructing a new one (and
// spawning its processing goroutine) if the prior one was cleared.
func (d *Driver) ensureSession(ctx context.Context) (provider.StreamingSession, error) {
	d.mu.Lock()
	sess := d.session
	d.mu.Unlock()
	if sess != nil {
		return sess, nil
	}

	sess, err := d.factory(ctx)
	if err != nil {
		return nil, fmt.Errorf("driver: create session: %w", err)
	}

	d.mu.Lock()
	d.session = sess
	d.tracker = tooltracker.New(d.id)
	d.mu.Unlock()

	go d.processMessages(sess)
	return sess, nil
}

// processMessages runs the Driver's message-processing loop for one session
// generation (spec.md §4.4 numbered rules).
func (d *Driver) processMessages(sess provider.StreamingSession) {
	for msg := range sess.Messages() {
		switch msg.Role {
		case types.RoleAssistant:
			d.handleAssistant(msg.Assistant)
		case types.RoleUser:
			d.handleToolResults(msg.User)
		case types.RoleResult:
			d.deliver(true)
		case types.RoleSystem:
			d.handleSystem(msg)
		}
	}
}

func (d *Driver) handleAssistant(items []types.ContentItem) {
	for _, item := range items {
		if item.IsText() {
			if item.Text == "" {
				continue
			}
			d.mu.Lock()
			d.text = append(d.text, item.Text)
			d.mu.Unlock()
			d.emit(Event{Kind: EventMessage, Text: item.Text})
			continue
		}

		use := item.ToolUse
		d.mu.Lock()
		tr := d.tracker
		d.mu.Unlock()
		if tr != nil {
			tr.MarkPending(use.ID, use.Name, use.Input)
		}
		d.emit(Event{Kind: EventToolUse, Tool: use})

		d.mu.Lock()
		if modificationTools[use.Name] {
			d.text = append(d.text, modificationAnnotation(use))
		}
		d.tools = append(d.tools, types.ToolSummary{
			ID: use.ID, ToolName: use.Name, Input: use.Input,
			Modification: modificationTools[use.Name],
		})
		d.mu.Unlock()
	}
}

func (d *Driver) handleToolResults(results []types.ToolResult) {
	d.mu.Lock()
	tr := d.tracker
	d.mu.Unlock()

	for _, res := range results {
		if tr != nil {
			tr.MarkResolved(res.ToolUseID)
		}
		d.mu.Lock()
		for i := range d.tools {
			if d.tools[i].ID == res.ToolUseID {
				d.tools[i].Output = res.Text
				d.tools[i].IsError = res.IsError
				break
			}
		}
		d.mu.Unlock()
	}

	if tr != nil && tr.PendingCount() == 0 {
		d.deliver(false)
	}
}

func (d *Driver) handleSystem(msg types.AgentMessage) {
	switch msg.System {
	case types.SystemTurnLimitReached, types.SystemConversationEnded:
		d.mu.Lock()
		d.session = nil
		d.mu.Unlock()
		d.deliver(true)
	case types.SystemAssistantError:
		logging.Warn().Str("driver", d.id).Str("error", msg.Error).Msg("driver: assistant error")
		d.deliver(true)
	case types.SystemPermissionDenied:
		d.mu.Lock()
		d.text = append(d.text, fmt.Sprintf("[permission denied: %s]", msg.Error))
		d.mu.Unlock()
	}
}

// deliver sends the accumulated batch on batchCh when there is something to
// send, or when final with nothing yet delivered this turn (a Result/
// system-clear must end the turn even with an empty accumulator, but after
// an intermediate delivery already woke the waiter an empty trailing Result
// is just the turn's tail and carries nothing).
func (d *Driver) deliver(final bool) {
	d.mu.Lock()
	if len(d.text) == 0 && len(d.tools) == 0 && (!final || d.delivered) {
		d.mu.Unlock()
		return
	}
	batch := types.DriverBatch{Text: d.text, Tools: d.tools, Final: final}
	d.text = nil
	d.tools = nil
	d.delivered = true
	d.mu.Unlock()

	d.batchCh <- batch
}

func modificationAnnotation(use *types.ToolUse) string {
	path, _ := use.Input["filePath"].(string)
	return fmt.Sprintf("\n[%s modified %s]\n", use.Name, path)
}
