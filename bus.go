package statekit

import (
	"sort"
	"sync"
)

// ListenerFunc handles an emitted event payload.
type ListenerFunc func(payload any)

// ListenerOption configures a listener at registration time.
type ListenerOption func(*listenerEntry)

// Once marks the listener for removal immediately after its first invocation.
func Once() ListenerOption {
	return func(e *listenerEntry) { e.once = true }
}

// Priority sets the listener's emit priority. Lower values fire first;
// listeners with equal priority fire in registration order. Default is 0.
func Priority(p int) ListenerOption {
	return func(e *listenerEntry) { e.priority = p }
}

// Subscription identifies a registered listener so it can be removed.
// Callback functions are not comparable in Go, so removal is handle-based.
type Subscription struct {
	entry *listenerEntry
}

// listenerEntry is a single registered listener.
//
// removed is guarded by the owning bus's mutex. Emit snapshots the listener
// list and re-checks removed per entry before invoking, so removal mid-emit
// (including a once listener removing itself) never skips or duplicates the
// remaining listeners of that emit.
type listenerEntry struct {
	eventType string
	fn        ListenerFunc
	once      bool
	priority  int
	seq       int64
	removed   bool
}

// Bus is a typed publish/subscribe primitive.
//
// Listeners for an event type are invoked synchronously, in ascending
// priority order, stable by registration order for equal priorities.
//
// Thread-safety model:
//   - AddListener / RemoveListener: safe from any goroutine
//   - Emit: safe from any goroutine; listeners run outside the bus lock
//   - Reentrant emits (a listener that itself emits) are permitted; a
//     nested emit operates on the current listener set without corrupting
//     the outer iteration
type Bus struct {
	mu        sync.Mutex
	listeners map[string][]*listenerEntry
	seq       int64
}

// NewBus creates an empty event bus.
func NewBus() *Bus {
	return &Bus{listeners: make(map[string][]*listenerEntry)}
}

// AddListener registers fn under eventType and returns a removal handle.
// Returns an invalid-argument error if eventType is empty or fn is nil.
func (b *Bus) AddListener(eventType string, fn ListenerFunc, opts ...ListenerOption) (*Subscription, error) {
	if eventType == "" {
		return nil, invalidArgf("event type must be a non-empty string")
	}
	if fn == nil {
		return nil, invalidArgf("listener callback must not be nil")
	}

	entry := &listenerEntry{eventType: eventType, fn: fn}
	for _, opt := range opts {
		opt(entry)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	b.seq++
	entry.seq = b.seq
	b.listeners[eventType] = append(b.listeners[eventType], entry)

	return &Subscription{entry: entry}, nil
}

// RemoveListener unregisters the listener identified by sub.
// A nil or already-removed subscription is a no-op.
func (b *Bus) RemoveListener(sub *Subscription) {
	if sub == nil || sub.entry == nil {
		return
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	b.removeLocked(sub.entry)
}

// RemoveAllListeners unregisters every listener under eventType.
// Unknown event types are a no-op.
func (b *Bus) RemoveAllListeners(eventType string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	for _, entry := range b.listeners[eventType] {
		entry.removed = true
	}
	delete(b.listeners, eventType)
}

// removeLocked marks the entry removed and compacts its listener list.
// Caller must hold b.mu.
func (b *Bus) removeLocked(entry *listenerEntry) {
	if entry.removed {
		return
	}
	entry.removed = true

	list := b.listeners[entry.eventType]
	for i, e := range list {
		if e == entry {
			b.listeners[entry.eventType] = append(list[:i], list[i+1:]...)
			break
		}
	}
	if len(b.listeners[entry.eventType]) == 0 {
		delete(b.listeners, entry.eventType)
	}
}

// Emit invokes every listener registered under eventType with payload.
// No listeners is a no-op.
//
// Listeners are sorted by ascending priority (stable for equal priority)
// and invoked synchronously. A listener flagged once is removed immediately
// after its invocation, before the next listener runs.
func (b *Bus) Emit(eventType string, payload any) {
	b.mu.Lock()
	list := b.listeners[eventType]
	if len(list) == 0 {
		b.mu.Unlock()
		return
	}

	// Snapshot so listeners can mutate the registry (remove themselves,
	// add new listeners, emit again) without breaking this iteration.
	snapshot := make([]*listenerEntry, len(list))
	copy(snapshot, list)
	b.mu.Unlock()

	sort.SliceStable(snapshot, func(i, j int) bool {
		return snapshot[i].priority < snapshot[j].priority
	})

	for _, entry := range snapshot {
		b.mu.Lock()
		if entry.removed {
			b.mu.Unlock()
			continue
		}
		if entry.once {
			// Remove before invoking so a reentrant emit from inside the
			// callback cannot fire it a second time.
			b.removeLocked(entry)
		}
		b.mu.Unlock()

		entry.fn(payload)
	}
}

// ListenerCount returns the number of listeners registered under eventType.
// Useful for tests and diagnostics.
func (b *Bus) ListenerCount(eventType string) int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.listeners[eventType])
}
