// Package events is the notification bus the use-case layer publishes on.
// The event set is closed: one kind per mutating use-case, each carrying only
// the affected task id. Subscribers re-query the repository for fresh state.
package events

import (
	"sync"

	"github.com/google/uuid"
)

// Kind identifies the event variant.
type Kind int

const (
	TaskAdded Kind = iota
	TaskUpdated
	TaskDeleted
	TaskMoved
)

// String returns the wire name of the kind.
func (k Kind) String() string {
	switch k {
	case TaskAdded:
		return "task_added"
	case TaskUpdated:
		return "task_updated"
	case TaskDeleted:
		return "task_deleted"
	case TaskMoved:
		return "task_moved"
	default:
		return "unknown"
	}
}

// Event is a notification about a single task.
type Event struct {
	Kind   Kind
	TaskID uuid.UUID
}

// Handler consumes events of one kind.
type Handler func(Event)

// Bus dispatches events synchronously to handlers registered per kind.
// Safe for concurrent use.
type Bus struct {
	mu   sync.RWMutex
	subs map[Kind][]Handler
}

// NewBus creates an empty bus.
func NewBus() *Bus {
	return &Bus{subs: make(map[Kind][]Handler)}
}

// Subscribe registers a handler for one event kind.
func (b *Bus) Subscribe(kind Kind, h Handler) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subs[kind] = append(b.subs[kind], h)
}

// Publish delivers the event to every handler registered for its kind, in
// registration order, on the caller's goroutine.
func (b *Bus) Publish(e Event) {
	b.mu.RLock()
	handlers := b.subs[e.Kind]
	b.mu.RUnlock()
	for _, h := range handlers {
		h(e)
	}
}
