package tooltracker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTracker_MarkPendingAndResolve(t *testing.T) {
	tr := New("sess-1")
	tr.MarkPending("tool-1", "Read", map[string]any{"path": "a.go"})
	assert.Equal(t, 1, tr.PendingCount())

	tr.MarkResolved("tool-1")
	assert.Equal(t, 0, tr.PendingCount())
}

func TestTracker_ResolveUnknownIDIsNoop(t *testing.T) {
	tr := New("sess-2")
	tr.MarkResolved("never-pending")
	assert.Equal(t, 0, tr.PendingCount())
}

func TestTracker_WaitForDrainReturnsImmediatelyWhenEmpty(t *testing.T) {
	tr := New("sess-3")
	err := tr.WaitForDrain(context.Background(), time.Second)
	require.NoError(t, err)
}

func TestTracker_WaitForDrainReleasesOnResolve(t *testing.T) {
	tr := New("sess-4")
	tr.MarkPending("tool-1", "Bash", nil)

	done := make(chan error, 1)
	go func() {
		done <- tr.WaitForDrain(context.Background(), time.Second)
	}()

	time.Sleep(10 * time.Millisecond)
	tr.MarkResolved("tool-1")

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("WaitForDrain never released")
	}
}

func TestTracker_ConcurrentWaitersReleasedTogether(t *testing.T) {
	tr := New("sess-5")
	tr.MarkPending("tool-1", "Edit", nil)

	const waiters = 5
	results := make(chan error, waiters)
	for i := 0; i < waiters; i++ {
		go func() {
			results <- tr.WaitForDrain(context.Background(), time.Second)
		}()
	}

	time.Sleep(10 * time.Millisecond)
	tr.MarkResolved("tool-1")

	for i := 0; i < waiters; i++ {
		select {
		case err := <-results:
			require.NoError(t, err)
		case <-time.After(time.Second):
			t.Fatal("not all waiters released")
		}
	}
}

func TestTracker_WaitForDrainTimesOut(t *testing.T) {
	tr := New("sess-6")
	tr.MarkPending("tool-1", "Bash", nil)

	err := tr.WaitForDrain(context.Background(), 10*time.Millisecond)
	require.Error(t, err)
	var timeout *ToolTimeout
	require.True(t, errors.As(err, &timeout))
}

func TestTracker_ClearReleasesWaitersWithoutError(t *testing.T) {
	tr := New("sess-7")
	tr.MarkPending("tool-1", "Bash", nil)

	done := make(chan error, 1)
	go func() {
		done <- tr.WaitForDrain(context.Background(), time.Second)
	}()

	time.Sleep(10 * time.Millisecond)
	tr.Clear()

	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Clear did not release waiter")
	}
	assert.Equal(t, 0, tr.PendingCount())
}

func TestTracker_PendingSnapshot(t *testing.T) {
	tr := New("sess-8")
	tr.MarkPending("tool-1", "Read", map[string]any{"path": "x"})
	tr.MarkPending("tool-2", "Write", map[string]any{"path": "y"})

	pending := tr.Pending()
	assert.Len(t, pending, 2)
}
