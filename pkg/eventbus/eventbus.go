// Package eventbus implements the typed publish/subscribe primitive shared by
// the pipeline, segmenter, recorder, and controller: handlers are invoked
// synchronously, in subscription order, against a snapshot of the
// subscriber list so a handler may unsubscribe (itself or another) mid-fan-out
// without corrupting iteration.
package eventbus

import "sync"

// Unsubscribe detaches a previously registered handler. Safe to call more
// than once; the second call is a no-op.
type Unsubscribe func()

// Handler receives an event payload. Handlers must not block — the bus
// dispatches synchronously and a slow handler stalls every other subscriber.
type Handler func(payload any)

type subscription struct {
	id      uint64
	handler Handler
}

// Bus is a typed-by-convention event bus: event names are caller-defined
// strings, payload shape is a contract between emitter and subscriber.
type Bus struct {
	mu      sync.Mutex
	subs    map[string][]subscription
	nextID  uint64
}

// New returns an empty Bus.
func New() *Bus {
	return &Bus{subs: make(map[string][]subscription)}
}

// On subscribes handler to event. The returned Unsubscribe removes exactly
// this registration.
func (b *Bus) On(event string, handler Handler) Unsubscribe {
	b.mu.Lock()
	id := b.nextID
	b.nextID++
	b.subs[event] = append(b.subs[event], subscription{id: id, handler: handler})
	b.mu.Unlock()

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		list := b.subs[event]
		for i, s := range list {
			if s.id == id {
				b.subs[event] = append(list[:i:i], list[i+1:]...)
				return
			}
		}
	}
}

// Emit runs every handler currently subscribed to event, in subscription
// order, to completion before returning. Dispatch operates on a snapshot
// taken under lock so a handler may subscribe/unsubscribe during emission
// without racing or re-entering the lock.
func (b *Bus) Emit(event string, payload any) {
	b.mu.Lock()
	list := b.subs[event]
	snapshot := make([]subscription, len(list))
	copy(snapshot, list)
	b.mu.Unlock()

	for _, s := range snapshot {
		s.handler(payload)
	}
}

// Clear removes every subscription for every event. Used by teardown paths
// that must guarantee no handler fires after disposal.
func (b *Bus) Clear() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs = make(map[string][]subscription)
}
