// Package displaybus provides a pub/sub event bus carrying orchestrator
// progress events (driver output, permission prompts, navigator verdicts) out
// to whatever is rendering the session, built on watermill's gochannel.
package displaybus

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill"
	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
)

// EventType identifies the kind of orchestrator event carried on the bus.
type EventType string

const (
	PlanReady           EventType = "plan.ready"
	DriverBatchReceived EventType = "driver.batch"
	DriverTurnStarted   EventType = "driver.turn_started"
	NavigatorVerdict    EventType = "navigator.verdict"
	PermissionRequested EventType = "permission.requested"
	PermissionResolved  EventType = "permission.resolved"
	SessionEnded        EventType = "session.ended"
)

// Event is one message published on the bus.
type Event struct {
	Type EventType `json:"type"`
	Data any       `json:"data"`
}

// Subscriber receives published events.
type Subscriber func(event Event)

type subscriberEntry struct {
	id uint64
	fn Subscriber
}

// Bus fans orchestrator events out to subscribers. Watermill's gochannel
// backs it for infrastructure; direct subscriber dispatch preserves Go type
// information instead of round-tripping through watermill's byte-payload
// Message type, the same split the teacher's event.Bus uses.
type Bus struct {
	mu sync.RWMutex

	pubsub *gochannel.GoChannel

	subscribers map[EventType][]subscriberEntry
	global      []subscriberEntry

	nextID       uint64
	closed       bool
	closedCancel context.CancelFunc
	closedCtx    context.Context
}

var globalBus = newBus()

func newBus() *Bus {
	ctx, cancel := context.WithCancel(context.Background())
	return &Bus{
		pubsub: gochannel.NewGoChannel(
			gochannel.Config{
				OutputChannelBuffer: 100,
				Persistent:          false,
			},
			watermill.NopLogger{},
		),
		subscribers:  make(map[EventType][]subscriberEntry),
		closedCtx:    ctx,
		closedCancel: cancel,
	}
}

func (b *Bus) newID() uint64 {
	return atomic.AddUint64(&b.nextID, 1)
}

// Subscribe registers fn for events of the given type. The returned func
// unsubscribes it.
func Subscribe(eventType EventType, fn Subscriber) func() {
	return globalBus.Subscribe(eventType, fn)
}

func (b *Bus) Subscribe(eventType EventType, fn Subscriber) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return func() {}
	}

	id := b.newID()
	b.subscribers[eventType] = append(b.subscribers[eventType], subscriberEntry{id: id, fn: fn})

	return func() { b.unsubscribe(eventType, id) }
}

// SubscribeAll registers fn for every event type.
func SubscribeAll(fn Subscriber) func() {
	return globalBus.SubscribeAll(fn)
}

func (b *Bus) SubscribeAll(fn Subscriber) func() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return func() {}
	}

	id := b.newID()
	b.global = append(b.global, subscriberEntry{id: id, fn: fn})

	return func() { b.unsubscribeGlobal(id) }
}

func (b *Bus) unsubscribe(eventType EventType, id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subscribers[eventType]
	for i, entry := range subs {
		if entry.id == id {
			b.subscribers[eventType] = append(subs[:i], subs[i+1:]...)
			break
		}
	}
}

func (b *Bus) unsubscribeGlobal(id uint64) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for i, entry := range b.global {
		if entry.id == id {
			b.global = append(b.global[:i], b.global[i+1:]...)
			break
		}
	}
}

// Publish delivers event to every matching subscriber asynchronously, one
// goroutine per subscriber.
func Publish(event Event) {
	globalBus.Publish(event)
}

func (b *Bus) Publish(event Event) {
	subs := b.collect(event.Type)
	for _, sub := range subs {
		go sub(event)
	}
}

// PublishSync delivers event to every matching subscriber in the caller's
// goroutine, returning once all have run. The orchestrator uses this for the
// permission-requested/resolved pair so a UI cannot miss the request before
// observing its resolution.
func PublishSync(event Event) {
	globalBus.PublishSync(event)
}

func (b *Bus) PublishSync(event Event) {
	subs := b.collect(event.Type)
	for _, sub := range subs {
		sub(event)
	}
}

func (b *Bus) collect(t EventType) []Subscriber {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil
	}

	subs := make([]Subscriber, 0, len(b.subscribers[t])+len(b.global))
	for _, entry := range b.subscribers[t] {
		subs = append(subs, entry.fn)
	}
	for _, entry := range b.global {
		subs = append(subs, entry.fn)
	}
	return subs
}

// NewBus creates an isolated bus, primarily for tests.
func NewBus() *Bus {
	return newBus()
}

// Reset replaces the global bus with a fresh one. Test-only.
func Reset() {
	globalBus.mu.Lock()
	globalBus.closed = true
	globalBus.closedCancel()
	globalBus.mu.Unlock()

	_ = globalBus.pubsub.Close()
	time.Sleep(10 * time.Millisecond)

	globalBus = newBus()
}

// Close shuts the bus down, dropping all subscribers.
func (b *Bus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.closedCancel()

	b.subscribers = make(map[EventType][]subscriberEntry)
	b.global = nil
	b.mu.Unlock()

	return b.pubsub.Close()
}

// PubSub exposes the underlying watermill GoChannel for callers that want to
// wire in middleware or a distributed backend later.
func (b *Bus) PubSub() *gochannel.GoChannel {
	return b.pubsub
}

// PubSub exposes the global bus's underlying watermill GoChannel.
func PubSub() *gochannel.GoChannel {
	return globalBus.PubSub()
}
