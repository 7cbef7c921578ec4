// ABOUTME: In-process notification bus with per-type subscriptions
// ABOUTME: Delivers events sequentially in publish order to registered listeners

package events

import (
	"log/slog"
	"sync"
)

// Bus fans events out to listeners registered per event type. Delivery is
// synchronous on the publishing goroutine, so events published sequentially
// by one caller arrive in that order. Handlers may call back into the
// publisher, including publishing further events.
type Bus struct {
	mu     sync.RWMutex
	nextID int
	subs   map[string][]subscription
}

type subscription struct {
	id int
	fn func(Event)
}

// NewBus creates an empty notification bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[string][]subscription)}
}

// Subscribe registers a handler for events of type T and returns a function
// that removes the subscription. Multiple handlers per type are allowed and
// are invoked in registration order.
func Subscribe[T Event](b *Bus, handler func(T)) (unsubscribe func()) {
	var zero T
	eventType := zero.Type()

	b.mu.Lock()
	b.nextID++
	id := b.nextID
	b.subs[eventType] = append(b.subs[eventType], subscription{
		id: id,
		fn: func(e Event) {
			if typed, ok := e.(T); ok {
				handler(typed)
			}
		},
	})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		list := b.subs[eventType]
		for i, sub := range list {
			if sub.id == id {
				b.subs[eventType] = append(list[:i:i], list[i+1:]...)
				break
			}
		}
	}
}

// Publish delivers the event to all handlers registered for its type.
// A panicking handler is logged and does not prevent delivery to the rest.
func (b *Bus) Publish(event Event) {
	b.mu.RLock()
	list := make([]subscription, len(b.subs[event.Type()]))
	copy(list, b.subs[event.Type()])
	b.mu.RUnlock()

	for _, sub := range list {
		b.invoke(sub, event)
	}
}

func (b *Bus) invoke(sub subscription, event Event) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Event handler panicked", "type", event.Type(), "panic", r)
		}
	}()
	sub.fn(event)
}

// HandlerCount returns the number of handlers registered for an event type.
func (b *Bus) HandlerCount(eventType string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.subs[eventType])
}
