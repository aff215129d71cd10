package paypresto

import "sync"

// EventType identifies a payment lifecycle event. The set is closed: these
// four events are the only asynchronous signals surfaced to callers.
type EventType string

const (
	// EventInvoice fires when an invoice has been created or loaded. The
	// Event carries the resolved Invoice.
	EventInvoice EventType = "invoice"

	// EventFunded fires exactly once when the cumulative input value
	// crosses from below to at or above the required amount.
	EventFunded EventType = "funded"

	// EventSuccess fires when the payment surface confirms the broadcast.
	// The Event carries the transaction id.
	EventSuccess EventType = "success"

	// EventError fires when an invoice request, mount or broadcast fails.
	// The Event carries the error.
	EventError EventType = "error"
)

// Event is a payment lifecycle notification. Which fields are set depends
// on Type: EventInvoice sets Invoice, EventSuccess sets TxID, EventError
// sets Err, EventFunded sets none.
type Event struct {
	// Type is the event type.
	Type EventType

	// Invoice is the resolved invoice resource (EventInvoice only).
	Invoice *Invoice

	// TxID is the broadcast transaction id (EventSuccess only).
	TxID string

	// Err is the failure that occurred (EventError only).
	Err error
}

// Callback is a function that handles payment events. Callbacks are invoked
// synchronously in registration order; a panicking callback propagates to
// the emitter, so isolation is the caller's responsibility.
type Callback func(Event)

type eventListener struct {
	cb   Callback
	once bool
}

// Emitter is a minimal publish/subscribe mechanism for payment events.
// Each Payment owns exactly one Emitter.
type Emitter struct {
	mu        sync.Mutex
	listeners map[EventType][]eventListener
}

// NewEmitter creates an empty Emitter.
func NewEmitter() *Emitter {
	return &Emitter{listeners: make(map[EventType][]eventListener)}
}

// On registers a persistent listener for the given event type.
func (e *Emitter) On(t EventType, cb Callback) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners[t] = append(e.listeners[t], eventListener{cb: cb})
}

// Once registers a listener that is removed after its first invocation.
func (e *Emitter) Once(t EventType, cb Callback) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners[t] = append(e.listeners[t], eventListener{cb: cb, once: true})
}

// Emit synchronously invokes all currently registered listeners for the
// event's type, in registration order. Once-listeners are deregistered
// before invocation.
func (e *Emitter) Emit(ev Event) {
	e.mu.Lock()
	current := e.listeners[ev.Type]
	kept := current[:0]
	callbacks := make([]Callback, 0, len(current))
	for _, l := range current {
		callbacks = append(callbacks, l.cb)
		if !l.once {
			kept = append(kept, l)
		}
	}
	e.listeners[ev.Type] = kept
	e.mu.Unlock()

	for _, cb := range callbacks {
		cb(ev)
	}
}
