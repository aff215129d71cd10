// Package channel implements the narrow asynchronous message protocol
// between a payment orchestrator and an embedded, separately-trusted
// execution surface.
//
// A Channel is bound to exactly one trusted origin and one Surface handle.
// Inbound messages are accepted only when both the declared origin and the
// source handle match; everything else is dropped silently. This defends
// against other parties on the same host spoofing protocol messages.
package channel

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
)

// Protocol vocabulary. Orchestrator to surface:
const (
	// EventHandshake announces readiness after mount. No payload.
	EventHandshake = "handshake"

	// EventConfigure carries the initial surface configuration.
	EventConfigure = "configure"

	// EventTxPush hands off a fully signed transaction for broadcast.
	EventTxPush = "tx.push"
)

// Surface to orchestrator:
const (
	// EventInvoiceStatus reports UTXOs paid towards the invoice.
	EventInvoiceStatus = "invoice.status"

	// EventTxSuccess reports a successful broadcast.
	EventTxSuccess = "tx.success"

	// EventTxFailure reports a rejected broadcast.
	EventTxFailure = "tx.failure"

	// EventTxError reports a broadcast error.
	EventTxError = "tx.error"

	// EventResize adjusts the surface presentation height. Cosmetic; no
	// protocol effect.
	EventResize = "resize"
)

// ErrClosed is returned when sending on a closed channel.
var ErrClosed = errors.New("channel: closed")

// Message is the envelope carried across the boundary in both directions.
type Message struct {
	// Event names the protocol event.
	Event string `json:"event"`

	// Payload is the event-specific payload, if any.
	Payload json.RawMessage `json:"payload,omitempty"`
}

// NewMessage builds a Message, marshalling the payload. A nil payload
// produces an envelope with no payload.
func NewMessage(event string, payload interface{}) (Message, error) {
	msg := Message{Event: event}
	if payload != nil {
		data, err := json.Marshal(payload)
		if err != nil {
			return Message{}, err
		}
		msg.Payload = data
	}
	return msg, nil
}

// Surface is the host-side handle to a ready embedded execution surface.
// The same handle value must be presented with every inbound delivery; it
// identifies the source the Channel is bound to.
type Surface interface {
	// Origin is the origin the surface is served from.
	Origin() string

	// Send delivers a message to the surface.
	Send(Message) error
}

// MountPoint asynchronously produces a ready Surface. Implementations embed
// the remote execution surface in whatever host environment is available
// and resolve once it is ready to exchange messages.
type MountPoint interface {
	Mount(ctx context.Context) (Surface, error)
}

// Handler consumes inbound protocol messages that passed the origin and
// source checks.
type Handler func(Message)

// Channel is a bidirectional, origin-checked message channel bound to a
// single Surface. Inbound messages are dispatched one at a time, in
// delivery order.
type Channel struct {
	mu         sync.Mutex // guards handler, closed
	dispatchMu sync.Mutex // serializes inbound dispatch
	origin     string
	surface    Surface
	handler    Handler
	closed     bool
}

// New binds a channel to a trusted origin and a mounted surface.
func New(trustedOrigin string, surface Surface) *Channel {
	return &Channel{
		origin:  trustedOrigin,
		surface: surface,
	}
}

// Subscribe registers the inbound message handler and returns a cancel
// function that releases the subscription. Only one handler is active at a
// time; subscribing again replaces the previous handler.
func (c *Channel) Subscribe(h Handler) (cancel func()) {
	c.mu.Lock()
	c.handler = h
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		c.handler = nil
		c.mu.Unlock()
	}
}

// Send marshals the payload and delivers the message to the surface.
func (c *Channel) Send(event string, payload interface{}) error {
	msg, err := NewMessage(event, payload)
	if err != nil {
		return err
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return ErrClosed
	}
	return c.surface.Send(msg)
}

// Deliver presents an inbound message to the channel. The message is
// dispatched to the subscribed handler only when the declared origin
// matches the trusted origin and the source handle matches the bound
// surface; any other message is dropped silently. Dispatch is serialized:
// two messages are never handled concurrently, and the handler may send on
// the channel without deadlocking.
func (c *Channel) Deliver(origin string, source Surface, msg Message) {
	c.dispatchMu.Lock()
	defer c.dispatchMu.Unlock()

	c.mu.Lock()
	handler := c.handler
	ok := !c.closed && origin == c.origin && source == c.surface && handler != nil
	c.mu.Unlock()
	if !ok {
		return
	}

	handler(msg)
}

// Close releases the channel. Subsequent sends fail with ErrClosed and
// inbound messages are dropped.
func (c *Channel) Close() {
	c.mu.Lock()
	c.closed = true
	c.handler = nil
	c.mu.Unlock()
}
