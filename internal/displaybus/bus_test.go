package displaybus

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/trioagent/trio/pkg/types"
)

func TestBus_Subscribe(t *testing.T) {
	bus := NewBus()

	var received Event
	var wg sync.WaitGroup
	wg.Add(1)

	unsub := bus.Subscribe(PlanReady, func(e Event) {
		received = e
		wg.Done()
	})
	defer unsub()

	bus.Publish(Event{Type: PlanReady, Data: PlanReadyData{Plan: types.Plan("do the thing")}})

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		if received.Type != PlanReady {
			t.Errorf("expected PlanReady, got %v", received.Type)
		}
		data := received.Data.(PlanReadyData)
		if data.Plan != "do the thing" {
			t.Errorf("unexpected plan %q", data.Plan)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for event")
	}
}

func TestBus_SubscribeAll(t *testing.T) {
	bus := NewBus()

	var count int32
	var wg sync.WaitGroup
	wg.Add(3)

	unsub := bus.SubscribeAll(func(e Event) {
		atomic.AddInt32(&count, 1)
		wg.Done()
	})
	defer unsub()

	bus.Publish(Event{Type: PlanReady, Data: nil})
	bus.Publish(Event{Type: DriverBatchReceived, Data: nil})
	bus.Publish(Event{Type: SessionEnded, Data: nil})

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		if atomic.LoadInt32(&count) != 3 {
			t.Errorf("expected 3 events, got %d", count)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for events")
	}
}

func TestBus_Unsubscribe(t *testing.T) {
	bus := NewBus()

	var count int32
	unsub := bus.Subscribe(PlanReady, func(e Event) {
		atomic.AddInt32(&count, 1)
	})

	bus.PublishSync(Event{Type: PlanReady, Data: nil})
	if atomic.LoadInt32(&count) != 1 {
		t.Fatalf("expected 1 event before unsub, got %d", count)
	}

	unsub()

	bus.PublishSync(Event{Type: PlanReady, Data: nil})
	if atomic.LoadInt32(&count) != 1 {
		t.Errorf("expected still 1 event after unsub, got %d", count)
	}
}

func TestBus_PublishSyncOrdering(t *testing.T) {
	bus := NewBus()

	var received []EventType
	var mu sync.Mutex

	bus.Subscribe(PermissionRequested, func(e Event) {
		mu.Lock()
		received = append(received, e.Type)
		mu.Unlock()
	})
	bus.Subscribe(PermissionResolved, func(e Event) {
		mu.Lock()
		received = append(received, e.Type)
		mu.Unlock()
	})

	bus.PublishSync(Event{Type: PermissionRequested, Data: nil})
	bus.PublishSync(Event{Type: PermissionResolved, Data: nil})

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 2 || received[0] != PermissionRequested || received[1] != PermissionResolved {
		t.Errorf("expected requested-then-resolved ordering, got %v", received)
	}
}

func TestBus_EventTypeFiltering(t *testing.T) {
	bus := NewBus()

	var planCount, sessionCount int32

	bus.Subscribe(PlanReady, func(e Event) { atomic.AddInt32(&planCount, 1) })
	bus.Subscribe(SessionEnded, func(e Event) { atomic.AddInt32(&sessionCount, 1) })

	bus.PublishSync(Event{Type: PlanReady, Data: nil})
	bus.PublishSync(Event{Type: PlanReady, Data: nil})
	bus.PublishSync(Event{Type: SessionEnded, Data: nil})

	if atomic.LoadInt32(&planCount) != 2 {
		t.Errorf("expected 2 plan events, got %d", planCount)
	}
	if atomic.LoadInt32(&sessionCount) != 1 {
		t.Errorf("expected 1 session event, got %d", sessionCount)
	}
}

func TestBus_NoSubscribers(t *testing.T) {
	bus := NewBus()

	bus.Publish(Event{Type: PlanReady, Data: nil})
	bus.PublishSync(Event{Type: PlanReady, Data: nil})
}

func TestBus_Close(t *testing.T) {
	bus := NewBus()

	var count int32
	bus.Subscribe(PlanReady, func(e Event) { atomic.AddInt32(&count, 1) })

	if err := bus.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	bus.PublishSync(Event{Type: PlanReady, Data: nil})
	if atomic.LoadInt32(&count) != 0 {
		t.Errorf("expected no events after close, got %d", count)
	}
}

func TestGlobalBus_Reset(t *testing.T) {
	var count int32
	Subscribe(PlanReady, func(e Event) { atomic.AddInt32(&count, 1) })

	PublishSync(Event{Type: PlanReady, Data: nil})
	if atomic.LoadInt32(&count) != 1 {
		t.Fatalf("expected 1 event before reset, got %d", count)
	}

	Reset()

	PublishSync(Event{Type: PlanReady, Data: nil})
	if atomic.LoadInt32(&count) != 1 {
		t.Errorf("expected still 1 event after reset, got %d", count)
	}
}
