// Package tooltracker keeps per-agent bookkeeping of in-flight tool calls
// so the Driver and Navigator can tell when an agent has gone quiet and a
// batch is ready to deliver (spec.md §4.2).
package tooltracker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/trioagent/trio/pkg/types"
)

// ToolTimeout is raised by WaitForDrain when pendingCount does not reach
// zero before the deadline; the caller must interrupt the session.
type ToolTimeout struct {
	SessionID string
}

func (e *ToolTimeout) Error() string {
	return fmt.Sprintf("tooltracker: session %s: tools did not drain in time", e.SessionID)
}

// Tracker maps tool-use ids to their pending metadata for a single agent
// session. Safe for concurrent use.
type Tracker struct {
	mu        sync.Mutex
	sessionID string
	pending   map[string]types.PendingTool
	waiters   []chan struct{}
}

// New creates a Tracker scoped to sessionID, used only in error messages.
func New(sessionID string) *Tracker {
	return &Tracker{
		sessionID: sessionID,
		pending:   make(map[string]types.PendingTool),
	}
}

// MarkPending records a tool-use id observed in an assistant message.
func (t *Tracker) MarkPending(id, name string, input map[string]any) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending[id] = types.PendingTool{ID: id, ToolName: name, Input: input, EmittedAt: time.Now().UnixMilli()}
}

// MarkResolved removes id from the pending set on a matching tool-result.
// Resolving an id that was never pending (duplicate result, interrupted
// session) is a no-op. When the pending set transitions to empty, every
// registered waiter is released atomically.
func (t *Tracker) MarkResolved(id string) {
	t.mu.Lock()
	delete(t.pending, id)
	empty := len(t.pending) == 0
	var waiters []chan struct{}
	if empty && len(t.waiters) > 0 {
		waiters = t.waiters
		t.waiters = nil
	}
	t.mu.Unlock()

	for _, w := range waiters {
		close(w)
	}
}

// PendingCount reports the number of tool calls awaiting a result.
func (t *Tracker) PendingCount() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// Pending returns a snapshot of the currently pending tool calls.
func (t *Tracker) Pending() []types.PendingTool {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]types.PendingTool, 0, len(t.pending))
	for _, p := range t.pending {
		out = append(out, p)
	}
	return out
}

// WaitForDrain blocks until PendingCount reaches zero, the context is
// cancelled, or timeout elapses. Concurrent callers are all released
// together the moment the count reaches zero (spec.md §4.2).
func (t *Tracker) WaitForDrain(ctx context.Context, timeout time.Duration) error {
	t.mu.Lock()
	if len(t.pending) == 0 {
		t.mu.Unlock()
		return nil
	}
	ch := make(chan struct{})
	t.waiters = append(t.waiters, ch)
	t.mu.Unlock()

	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	select {
	case <-ch:
		return nil
	case <-deadline:
		return &ToolTimeout{SessionID: t.sessionID}
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Clear drops all pending tools and releases any waiters without error,
// used when a session is interrupted (spec.md §3 "Session lifecycle").
func (t *Tracker) Clear() {
	t.mu.Lock()
	t.pending = make(map[string]types.PendingTool)
	waiters := t.waiters
	t.waiters = nil
	t.mu.Unlock()

	for _, w := range waiters {
		close(w)
	}
}
