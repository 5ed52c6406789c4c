package adapter

import (
	"sync"
)

// EventKind tags the notifications emitted by the adapter.
type EventKind string

const (
	// EventConnect fires once after a successful connect.
	EventConnect EventKind = "connect"
	// EventDisconnect fires at the end of every disconnect, local or
	// remote initiated.
	EventDisconnect EventKind = "disconnect"
	// EventError carries a failure value.
	EventError EventKind = "error"
)

// Event is the tagged value delivered to subscribed handlers. Err is set
// for EventError only.
type Event struct {
	Kind EventKind
	Err  error
}

// EventHandler observes adapter events. Handlers run synchronously on the
// emitting goroutine and must not block.
type EventHandler func(Event)

type eventEmitter struct {
	mu       sync.Mutex
	seq      int
	handlers map[EventKind]map[int]EventHandler
}

func (e *eventEmitter) subscribe(kind EventKind, handler EventHandler) (cancel func()) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.handlers == nil {
		e.handlers = map[EventKind]map[int]EventHandler{}
	}
	if e.handlers[kind] == nil {
		e.handlers[kind] = map[int]EventHandler{}
	}
	e.seq++
	id := e.seq
	e.handlers[kind][id] = handler
	return func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		delete(e.handlers[kind], id)
	}
}

func (e *eventEmitter) emit(event Event) {
	e.mu.Lock()
	registered := e.handlers[event.Kind]
	snapshot := make([]EventHandler, 0, len(registered))
	for _, handler := range registered {
		snapshot = append(snapshot, handler)
	}
	e.mu.Unlock()
	for _, handler := range snapshot {
		handler(event)
	}
}
