package permission

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trioagent/trio/pkg/types"
)

func TestCoordinator_ApproveByRequestID(t *testing.T) {
	coord := NewCoordinator(func(ctx context.Context, req types.PermissionRequest) error {
		return nil
	})

	req := types.PermissionRequest{ID: "req-1", ToolName: "Edit"}

	done := make(chan types.PermissionDecision, 1)
	go func() {
		decision, err := coord.Request(context.Background(), req, time.Second)
		require.NoError(t, err)
		done <- decision
	}()

	require.Eventually(t, func() bool { return coord.PendingCount() == 1 }, time.Second, time.Millisecond)
	coord.SubmitDecision(types.NavigatorCommand{Kind: types.NavigatorApprove, RequestID: "req-1"})

	decision := <-done
	assert.True(t, decision.Allow)
	assert.Equal(t, 0, coord.PendingCount())
}

func TestCoordinator_DenyCarriesReason(t *testing.T) {
	coord := NewCoordinator(func(ctx context.Context, req types.PermissionRequest) error {
		return nil
	})

	req := types.PermissionRequest{ID: "req-2", ToolName: "Write"}

	done := make(chan types.PermissionDecision, 1)
	go func() {
		decision, _ := coord.Request(context.Background(), req, time.Second)
		done <- decision
	}()

	require.Eventually(t, func() bool { return coord.PendingCount() == 1 }, time.Second, time.Millisecond)
	coord.SubmitDecision(types.NavigatorCommand{Kind: types.NavigatorDeny, RequestID: "req-2", Comment: "unsafe"})

	decision := <-done
	assert.False(t, decision.Allow)
	assert.Equal(t, "unsafe", decision.Reason)
}

func TestCoordinator_OldestPendingFallback(t *testing.T) {
	coord := NewCoordinator(func(ctx context.Context, req types.PermissionRequest) error {
		return nil
	})

	first := make(chan types.PermissionDecision, 1)
	second := make(chan types.PermissionDecision, 1)

	go func() {
		d, _ := coord.Request(context.Background(), types.PermissionRequest{ID: "first"}, time.Second)
		first <- d
	}()
	require.Eventually(t, func() bool { return coord.PendingCount() == 1 }, time.Second, time.Millisecond)

	go func() {
		d, _ := coord.Request(context.Background(), types.PermissionRequest{ID: "second"}, time.Second)
		second <- d
	}()
	require.Eventually(t, func() bool { return coord.PendingCount() == 2 }, time.Second, time.Millisecond)

	// No RequestID: resolves the oldest (first) pending request.
	coord.SubmitDecision(types.NavigatorCommand{Kind: types.NavigatorApprove})

	select {
	case d := <-first:
		assert.True(t, d.Allow)
	case <-time.After(time.Second):
		t.Fatal("first request never resolved")
	}

	assert.Equal(t, 1, coord.PendingCount())
	coord.SubmitDecision(types.NavigatorCommand{Kind: types.NavigatorApprove})
	<-second
}

func TestCoordinator_Timeout(t *testing.T) {
	coord := NewCoordinator(func(ctx context.Context, req types.PermissionRequest) error {
		return nil
	})

	decision, err := coord.Request(context.Background(), types.PermissionRequest{ID: "slow"}, 10*time.Millisecond)
	require.Error(t, err)
	var timeoutErr *PermissionTimeout
	require.True(t, errors.As(err, &timeoutErr))
	assert.False(t, decision.Allow)
	assert.Equal(t, 0, coord.PendingCount())
}

func TestCoordinator_HandleMalformedRejectsAllPending(t *testing.T) {
	coord := NewCoordinator(func(ctx context.Context, req types.PermissionRequest) error {
		return nil
	})

	errCh := make(chan error, 1)
	go func() {
		_, err := coord.Request(context.Background(), types.PermissionRequest{ID: "req-3"}, time.Second)
		errCh <- err
	}()
	require.Eventually(t, func() bool { return coord.PendingCount() == 1 }, time.Second, time.Millisecond)

	coord.HandleMalformed()

	err := <-errCh
	var malformed *PermissionMalformed
	require.True(t, errors.As(err, &malformed))
	assert.True(t, IsDenied(err))
}

func TestCoordinator_CleanupIsIdempotent(t *testing.T) {
	coord := NewCoordinator(func(ctx context.Context, req types.PermissionRequest) error {
		return nil
	})

	errCh := make(chan error, 1)
	go func() {
		_, err := coord.Request(context.Background(), types.PermissionRequest{ID: "req-4"}, time.Second)
		errCh <- err
	}()
	require.Eventually(t, func() bool { return coord.PendingCount() == 1 }, time.Second, time.Millisecond)

	coord.Cleanup()
	coord.Cleanup() // must not panic on an already-empty coordinator

	err := <-errCh
	var cancelled *CancelledError
	require.True(t, errors.As(err, &cancelled))
}

func TestCoordinator_SendFailurePropagates(t *testing.T) {
	boom := errors.New("navigator unreachable")
	coord := NewCoordinator(func(ctx context.Context, req types.PermissionRequest) error {
		return boom
	})

	_, err := coord.Request(context.Background(), types.PermissionRequest{ID: "req-5"}, time.Second)
	require.Error(t, err)
	assert.ErrorIs(t, err, boom)
	assert.Equal(t, 0, coord.PendingCount())
}

func TestCoordinator_OrphanedDecisionIsDiscarded(t *testing.T) {
	coord := NewCoordinator(func(ctx context.Context, req types.PermissionRequest) error {
		return nil
	})

	// No pending requests: must not panic.
	coord.SubmitDecision(types.NavigatorCommand{Kind: types.NavigatorApprove, RequestID: "ghost"})
	assert.Equal(t, 0, coord.PendingCount())
}
