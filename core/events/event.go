package events

import "nftmarket/core/types"

// Event represents a structured state change emitted by the marketplace.
type Event interface {
	EventType() string
}

// Emitter broadcasts events to downstream subscribers (e.g. RPC, indexers).
type Emitter interface {
	Emit(Event)
}

// NoopEmitter is a helper that satisfies the Emitter interface while discarding
// all events. It is useful when a component wants to optionally expose events.
type NoopEmitter struct{}

// Emit implements the Emitter interface.
func (NoopEmitter) Emit(Event) {}

// Payload is implemented by events that carry a flattened attribute map.
type Payload interface {
	EventType() string
	Event() *types.Event
}

// Collector buffers events emitted during a unit of work so they can be
// published only once the work commits. Collector is not safe for concurrent
// use.
type Collector struct {
	events []types.Event
}

// Emit records the event. Events without a payload are kept by type only.
func (c *Collector) Emit(evt Event) {
	if c == nil || evt == nil {
		return
	}
	if p, ok := evt.(Payload); ok && p.Event() != nil {
		c.events = append(c.events, p.Event().Clone())
		return
	}
	c.events = append(c.events, types.Event{Type: evt.EventType(), Attributes: map[string]string{}})
}

// Events returns a copy of the buffered events in emission order.
func (c *Collector) Events() []types.Event {
	if c == nil {
		return nil
	}
	out := make([]types.Event, len(c.events))
	for i := range c.events {
		out[i] = c.events[i].Clone()
	}
	return out
}

// Reset drops all buffered events.
func (c *Collector) Reset() {
	if c == nil {
		return
	}
	c.events = c.events[:0]
}

// Fanout forwards every event to each configured emitter in order.
type Fanout []Emitter

// Emit implements the Emitter interface.
func (f Fanout) Emit(evt Event) {
	for _, emitter := range f {
		if emitter != nil {
			emitter.Emit(evt)
		}
	}
}

// Committed wraps a buffered event after its unit of work has committed,
// tagging it with the receipt height it belongs to.
type Committed struct {
	Height  uint64
	Payload types.Event
}

// EventType implements Event.
func (c Committed) EventType() string { return c.Payload.Type }

// Event implements Payload.
func (c Committed) Event() *types.Event {
	evt := c.Payload.Clone()
	return &evt
}
