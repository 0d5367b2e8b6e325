package permission

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/trioagent/trio/internal/logging"
	"github.com/trioagent/trio/pkg/types"
)

// DefaultRequestTimeout is PERMISSION_REQUEST's default (spec.md §5: 15-45s).
const DefaultRequestTimeout = 30 * time.Second

// SendFunc delivers a permission prompt into the Navigator's input stream.
// The coordinator never talks to the Navigator's session directly; the
// orchestrator injects this callback (spec.md §9 "agents hold only callbacks
// the orchestrator injects").
type SendFunc func(ctx context.Context, req types.PermissionRequest) error

type pendingEntry struct {
	request  types.PermissionRequest
	resultCh chan types.PermissionDecision
	errCh    chan error
	done     bool
}

// Coordinator routes permission requests from the Driver to the Navigator
// and matches asynchronous Navigator decisions back to the originating
// request by request-id (spec.md §4.3).
type Coordinator struct {
	mu      sync.Mutex
	pending map[string]*pendingEntry
	order   []string // insertion order, for oldest-pending fallback
	send    SendFunc
}

// NewCoordinator creates a Coordinator that delivers prompts via send.
func NewCoordinator(send SendFunc) *Coordinator {
	return &Coordinator{
		pending: make(map[string]*pendingEntry),
		send:    send,
	}
}

// Request inserts req as pending, asks the Navigator to decide on it, and
// blocks until a decision arrives, the deadline expires, or ctx is
// cancelled. Distinct requests resolve independently even when concurrent
// (spec.md §5 "Multiple concurrent requests are allowed").
func (c *Coordinator) Request(ctx context.Context, req types.PermissionRequest, timeout time.Duration) (types.PermissionDecision, error) {
	if timeout <= 0 {
		timeout = DefaultRequestTimeout
	}

	entry := &pendingEntry{
		request:  req,
		resultCh: make(chan types.PermissionDecision, 1),
		errCh:    make(chan error, 1),
	}

	c.mu.Lock()
	c.pending[req.ID] = entry
	c.order = append(c.order, req.ID)
	c.mu.Unlock()

	cleanup := func() {
		c.mu.Lock()
		defer c.mu.Unlock()
		if e, ok := c.pending[req.ID]; ok && e == entry {
			delete(c.pending, req.ID)
			c.removeFromOrder(req.ID)
		}
	}

	if err := c.send(ctx, req); err != nil {
		cleanup()
		return types.PermissionDecision{}, fmt.Errorf("permission: send request %s: %w", req.ID, err)
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()

	select {
	case decision := <-entry.resultCh:
		cleanup()
		return decision, nil
	case err := <-entry.errCh:
		cleanup()
		return types.PermissionDecision{}, err
	case <-deadline.C:
		cleanup()
		logging.Warn().Str("request_id", req.ID).Msg("permission: request timed out")
		return types.PermissionDecision{Allow: false, Reason: "Permission request timed out"}, &PermissionTimeout{RequestID: req.ID}
	case <-ctx.Done():
		cleanup()
		return types.PermissionDecision{}, &CancelledError{Op: "permission.Request"}
	}
}

// SubmitDecision resolves a pending request from a Navigator approve/deny
// command. If cmd.RequestID names a pending entry, that entry resolves;
// otherwise the oldest pending entry resolves (backwards-compat for
// navigators that omit the id, spec.md §4.3). An orphaned decision (no
// pending entries at all) is logged and discarded.
func (c *Coordinator) SubmitDecision(cmd types.NavigatorCommand) {
	c.mu.Lock()

	var id string
	if cmd.RequestID != "" {
		if _, ok := c.pending[cmd.RequestID]; ok {
			id = cmd.RequestID
		}
	}
	if id == "" {
		if len(c.order) == 0 {
			c.mu.Unlock()
			logging.Warn().Str("kind", string(cmd.Kind)).Msg("permission: orphaned decision, no pending requests")
			return
		}
		id = c.order[0]
	}

	entry := c.pending[id]
	delete(c.pending, id)
	c.removeFromOrder(id)
	c.mu.Unlock()

	if entry == nil {
		logging.Warn().Str("request_id", cmd.RequestID).Msg("permission: orphaned decision")
		return
	}

	decision := types.PermissionDecision{Allow: cmd.Kind == types.NavigatorApprove}
	if !decision.Allow {
		reason := cmd.Comment
		if reason == "" {
			reason = "denied by navigator"
		}
		decision.Reason = reason
	}
	entry.resultCh <- decision
}

// HandleMalformed rejects every pending request with PermissionMalformed,
// called when the Navigator completes a batch with zero admitted decisions
// while requests are active (spec.md §4.3).
func (c *Coordinator) HandleMalformed() {
	c.mu.Lock()
	entries := c.snapshotLocked()
	c.mu.Unlock()

	for id, entry := range entries {
		entry.errCh <- &PermissionMalformed{RequestID: id}
	}
}

// Cleanup rejects every pending request with a cancellation error. Safe to
// call more than once (spec.md testable property 8).
func (c *Coordinator) Cleanup() {
	c.mu.Lock()
	entries := c.snapshotLocked()
	c.mu.Unlock()

	for _, entry := range entries {
		entry.errCh <- &CancelledError{Op: "permission.Cleanup"}
	}
}

func (c *Coordinator) snapshotLocked() map[string]*pendingEntry {
	out := make(map[string]*pendingEntry, len(c.pending))
	for id, entry := range c.pending {
		out[id] = entry
	}
	c.pending = make(map[string]*pendingEntry)
	c.order = nil
	return out
}

func (c *Coordinator) removeFromOrder(id string) {
	for i, v := range c.order {
		if v == id {
			c.order = append(c.order[:i], c.order[i+1:]...)
			return
		}
	}
}

// PendingCount reports the number of outstanding permission requests. The
// Navigator's admissibility check does not call it; it tracks its own set of
// active request ids.
func (c *Coordinator) PendingCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}
