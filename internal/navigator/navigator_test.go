package navigator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/trioagent/trio/internal/permission"
	"github.com/trioagent/trio/internal/provider"
	"github.com/trioagent/trio/pkg/types"
)

// fakeSession mirrors internal/driver's test double: PushText runs an
// optional hook (simulating the MCP bridge's NavigatorSink firing on a tool
// call) before delivering the scripted turn's messages.
type fakeSession struct {
	msgCh  chan types.AgentMessage
	turns  [][]types.AgentMessage
	hooks  []func()
	pushed []string

	interrupted bool
	ended       bool
}

func newFakeSession() *fakeSession {
	return &fakeSession{msgCh: make(chan types.AgentMessage, 16)}
}

func (s *fakeSession) SendMessage(ctx context.Context, text string) error {
	return s.PushText(ctx, text)
}

func (s *fakeSession) Messages() <-chan types.AgentMessage { return s.msgCh }

func (s *fakeSession) PushText(ctx context.Context, text string) error {
	i := len(s.pushed)
	s.pushed = append(s.pushed, text)
	if i < len(s.hooks) && s.hooks[i] != nil {
		s.hooks[i]()
	}
	if i < len(s.turns) {
		for _, m := range s.turns[i] {
			s.msgCh <- m
		}
	}
	return nil
}

func (s *fakeSession) Interrupt() error { s.interrupted = true; return nil }
func (s *fakeSession) End() error      { s.ended = true; return nil }

func factoryFor(sess provider.StreamingSession) SessionFactory {
	return func(ctx context.Context) (provider.StreamingSession, error) { return sess, nil }
}

func noopSend(ctx context.Context, req types.PermissionRequest) error { return nil }

func TestNavigator_ProcessDriverMessage_ReviewPassVerdict(t *testing.T) {
	sess := newFakeSession()
	n := New("navigator", factoryFor(sess), permission.NewCoordinator(noopSend))
	n.Initialize("build a thing", types.Plan("step 1\nstep 2"))

	sess.hooks = []func(){
		func() {
			n.EnqueueCommand(types.NavigatorCommand{Kind: types.NavigatorCodeReview, Pass: true, Comment: "looks good"})
		},
	}
	sess.turns = [][]types.AgentMessage{{{Role: types.RoleResult}}}

	cmds, err := n.ProcessDriverMessage(context.Background(), "implemented step 1", true)
	require.NoError(t, err)
	require.Len(t, cmds, 1)
	require.Equal(t, types.NavigatorCodeReview, cmds[0].Kind)
	require.True(t, cmds[0].Pass)
	require.Contains(t, sess.pushed[0], "Call navigator.codeReview exactly once")
}

func TestNavigator_HandleAssistant_NeverSurfacesFreeText(t *testing.T) {
	sess := newFakeSession()
	n := New("navigator", factoryFor(sess), permission.NewCoordinator(noopSend))

	var lines []*types.ToolUse
	n.OnEvent(func(e Event) {
		if e.Kind == EventToolLine {
			lines = append(lines, e.Tool)
		}
	})

	sess.turns = [][]types.AgentMessage{{
		{Role: types.RoleAssistant, Assistant: []types.ContentItem{
			{Text: "I think this code is fine, let me explain why at length..."},
			{ToolUse: &types.ToolUse{ID: "g1", Name: "grep", Input: map[string]any{"pattern": "TODO"}}},
		}},
		{Role: types.RoleUser, User: []types.ToolResult{{ToolUseID: "g1", Text: "no matches"}}},
		{Role: types.RoleResult},
	}}

	_, err := n.ProcessDriverMessage(context.Background(), "update", false)
	require.NoError(t, err)
	require.Len(t, lines, 1)
	require.Equal(t, "grep", lines[0].Name)
}

func TestNavigator_HandlePermissionDecision_RequestIDMatching(t *testing.T) {
	sess := newFakeSession()
	coord := permission.NewCoordinator(func(ctx context.Context, req types.PermissionRequest) error { return nil })
	n := New("navigator", factoryFor(sess), coord)

	n.EnqueueCommand(types.NavigatorCommand{Kind: types.NavigatorApprove, RequestID: "unknown-id"})

	n.mu.Lock()
	active := len(n.active)
	n.mu.Unlock()
	require.Equal(t, 0, active, "with no active permission request, a decision naming an unknown id must be dropped")
}

func TestNavigator_HandlePermissionDecision_OldestPendingFallback(t *testing.T) {
	sess := newFakeSession()
	n := New("navigator", factoryFor(sess), permission.NewCoordinator(noopSend))

	n.mu.Lock()
	n.active["req-1"] = true
	n.order = append(n.order, "req-1")
	n.active["req-2"] = true
	n.order = append(n.order, "req-2")
	n.mu.Unlock()

	n.EnqueueCommand(types.NavigatorCommand{Kind: types.NavigatorApprove}) // no RequestID

	n.mu.Lock()
	defer n.mu.Unlock()
	require.False(t, n.active["req-1"], "oldest pending request should have been resolved")
	require.True(t, n.active["req-2"])
	require.True(t, n.shown["req-1"])
}

func TestNavigator_HandlePermissionDecision_DuplicateSuppressed(t *testing.T) {
	sess := newFakeSession()
	coord := permission.NewCoordinator(func(ctx context.Context, req types.PermissionRequest) error { return nil })
	n := New("navigator", factoryFor(sess), coord)

	n.mu.Lock()
	n.active["req-1"] = true
	n.order = append(n.order, "req-1")
	n.mu.Unlock()

	// The coordinator holds no pending entry for req-1, so SubmitDecision only
	// logs the decision as orphaned; this test checks the Navigator's own
	// bookkeeping (n.shown and the per-batch admitted count).
	origShown := func() bool { n.mu.Lock(); defer n.mu.Unlock(); return n.shown["req-1"] }
	require.False(t, origShown())

	n.EnqueueCommand(types.NavigatorCommand{Kind: types.NavigatorApprove, RequestID: "req-1"})
	require.True(t, origShown())

	// A second decision for the same id must be dropped: req-1 is no longer
	// active, so it is not admitted a second time.
	n.EnqueueCommand(types.NavigatorCommand{Kind: types.NavigatorApprove, RequestID: "req-1"})
	n.mu.Lock()
	admitted := n.admittedThisBatch
	n.mu.Unlock()
	require.Equal(t, 1, admitted)
}

func TestNavigator_CodeReview_DroppedOutsideReviewTurn(t *testing.T) {
	sess := newFakeSession()
	n := New("navigator", factoryFor(sess), permission.NewCoordinator(noopSend))

	n.EnqueueCommand(types.NavigatorCommand{Kind: types.NavigatorCodeReview, Pass: true})

	n.mu.Lock()
	defer n.mu.Unlock()
	require.Empty(t, n.pendingCommands, "a code_review with no active permission window and no review pending must be dropped")
}

func TestNavigator_SendPermissionPrompt_MarksActiveAndPushesPrompt(t *testing.T) {
	sess := newFakeSession()
	n := New("navigator", factoryFor(sess), permission.NewCoordinator(noopSend))

	req := types.PermissionRequest{ID: "req-9", ToolName: "write", Input: map[string]any{"filePath": "a.go"}}
	require.NoError(t, n.SendPermissionPrompt(context.Background(), req))

	n.mu.Lock()
	active := n.active["req-9"]
	n.mu.Unlock()
	require.True(t, active)
	require.Contains(t, sess.pushed[0], "req-9")
	require.Contains(t, sess.pushed[0], "navigator.approve or navigator.deny")
}

func TestNavigator_TurnAlreadyInFlight_Rejected(t *testing.T) {
	sess := newFakeSession()
	n := New("navigator", factoryFor(sess), permission.NewCoordinator(noopSend))

	doneCh := make(chan error, 1)
	go func() {
		_, err := n.ProcessDriverMessage(context.Background(), "first", false)
		doneCh <- err
	}()

	require.Eventually(t, func() bool {
		n.mu.Lock()
		started := n.waiter != nil
		n.mu.Unlock()
		if !started {
			return false
		}
		_, err := n.ProcessDriverMessage(context.Background(), "second", false)
		return err != nil
	}, time.Second, 5*time.Millisecond)

	sess.msgCh <- types.AgentMessage{Role: types.RoleResult}
	require.NoError(t, <-doneCh)
}

func TestNavigator_InterruptAndEnd_DelegateToSession(t *testing.T) {
	sess := newFakeSession()
	sess.turns = [][]types.AgentMessage{{{Role: types.RoleResult}}}
	n := New("navigator", factoryFor(sess), permission.NewCoordinator(noopSend))

	_, err := n.ProcessDriverMessage(context.Background(), "hi", false)
	require.NoError(t, err)

	require.NoError(t, n.Interrupt())
	require.True(t, sess.interrupted)
	require.NoError(t, n.End())
	require.True(t, sess.ended)
	require.NoError(t, n.End()) // idempotent
}
