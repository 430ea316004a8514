package broker

import (
	"context"
	"encoding/json"
	"fmt"
)

// Envelope is the minimal shape every message on the fabric must satisfy: a
// JSON object with a "type" discriminator. Parsing is permissive; all other
// fields are left raw for the matched handler to decode.
type Envelope struct {
	Type string `json:"type"`
}

// ParseEnvelope decodes just the discriminator from a message body.
func ParseEnvelope(body []byte) (Envelope, error) {
	var e Envelope
	if err := json.Unmarshal(body, &e); err != nil {
		return Envelope{}, fmt.Errorf("malformed envelope: %w", err)
	}
	if e.Type == "" {
		return Envelope{}, fmt.Errorf("envelope has no type field")
	}
	return e, nil
}

// Outcome is the terminal state of a consumed message. There is no retry
// state: a message is either acknowledged and removed, or rejected without
// requeue and permanently dropped.
type Outcome int

const (
	Acked Outcome = iota
	Rejected
)

// HandlerFunc applies one event to local state. The raw body is the full
// message, not just the envelope remainder.
type HandlerFunc func(ctx context.Context, body []byte) error

// Dispatcher selects a handler by the envelope's type. The unmatched case is
// structural: any type without a registered handler is rejected, which is the
// fabric's documented drop-don't-retry policy.
type Dispatcher struct {
	handlers map[string]HandlerFunc
}

// NewDispatcher creates an empty Dispatcher.
func NewDispatcher() *Dispatcher {
	return &Dispatcher{handlers: make(map[string]HandlerFunc)}
}

// Handle registers fn for the given event type and returns the Dispatcher for
// chaining.
func (d *Dispatcher) Handle(eventType string, fn HandlerFunc) *Dispatcher {
	d.handlers[eventType] = fn
	return d
}

// Dispatch parses the envelope and invokes the matching handler. The returned
// Outcome tells the consumer loop whether to ack or reject; err carries the
// reason for a rejection and is nil on success.
//
// State machine per message:
//
//	received -> matched, handler ok  -> Acked
//	received -> matched, handler err -> Rejected
//	received -> unmatched / malformed -> Rejected
func (d *Dispatcher) Dispatch(ctx context.Context, body []byte) (Outcome, error) {
	env, err := ParseEnvelope(body)
	if err != nil {
		return Rejected, err
	}

	fn, ok := d.handlers[env.Type]
	if !ok {
		return Rejected, fmt.Errorf("no handler for type %q", env.Type)
	}

	if err := fn(ctx, body); err != nil {
		return Rejected, fmt.Errorf("handle %q: %w", env.Type, err)
	}
	return Acked, nil
}
