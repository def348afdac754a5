package bus

import (
	"sync"
	"time"

	"roost/pkg/logging"
)

// EventType identifies a class of events on the bus.
type EventType string

const (
	// DeviceConnected is published by the device detector when a device
	// becomes usable.
	DeviceConnected EventType = "device-connected"
	// DeviceDisconnected is published when a device goes away.
	DeviceDisconnected EventType = "device-disconnected"
)

// Event is a single published occurrence. Payload carries event-specific
// data; for device events it is a devices.Device value.
type Event struct {
	Type      EventType
	Timestamp time.Time
	Payload   interface{}
}

// Handler is a callback invoked when a matching event is published.
// A returned error is logged by the bus and does not affect other handlers.
type Handler func(Event) error

// Subscription identifies one registered handler so it can be removed
// later. Handler funcs are not comparable in Go, so Unsubscribe takes the
// handle returned by Subscribe instead of the handler itself.
type Subscription struct {
	eventType EventType
	id        uint64
}

type subscriber struct {
	id      uint64
	handler Handler
}

// Bus is a thread-safe, in-process publish/subscribe dispatcher. Handlers
// for one event type run synchronously, in subscription order, in the
// publisher's goroutine.
type Bus struct {
	mu          sync.Mutex
	nextID      uint64
	subscribers map[EventType][]subscriber
}

// New creates a ready-to-use event bus.
func New() *Bus {
	return &Bus{
		subscribers: make(map[EventType][]subscriber),
	}
}

// Subscribe registers a handler for the given event type and returns the
// subscription handle used for Unsubscribe.
func (b *Bus) Subscribe(eventType EventType, handler Handler) Subscription {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextID++
	b.subscribers[eventType] = append(b.subscribers[eventType], subscriber{
		id:      b.nextID,
		handler: handler,
	})
	return Subscription{eventType: eventType, id: b.nextID}
}

// Unsubscribe removes a previously registered handler. Unsubscribing an
// unknown or already-removed subscription is a no-op.
func (b *Bus) Unsubscribe(sub Subscription) {
	b.mu.Lock()
	defer b.mu.Unlock()

	subs := b.subscribers[sub.eventType]
	for i, s := range subs {
		if s.id == sub.id {
			b.subscribers[sub.eventType] = append(subs[:i:i], subs[i+1:]...)
			return
		}
	}
}

// Publish sends an event to all subscribers of its type. The handler list
// is snapshotted under the lock and invoked outside it, so handlers may
// subscribe or unsubscribe without deadlocking. A handler error or panic
// is logged and the remaining handlers still run; nothing propagates back
// to the publisher.
func (b *Bus) Publish(event Event) {
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	b.mu.Lock()
	subs := make([]subscriber, len(b.subscribers[event.Type]))
	copy(subs, b.subscribers[event.Type])
	b.mu.Unlock()

	for _, s := range subs {
		b.dispatch(s, event)
	}
}

func (b *Bus) dispatch(s subscriber, event Event) {
	defer func() {
		if r := recover(); r != nil {
			logging.Error("EventBus", nil, "Handler panic on %s: %v", event.Type, r)
		}
	}()

	if err := s.handler(event); err != nil {
		logging.Error("EventBus", err, "Handler failed on %s", event.Type)
	}
}
