package broker

import (
	"context"
	"fmt"
	"log"
)

// Consumer binds a durable queue to its exchange and dispatches deliveries by
// the embedded type discriminator. Matched events are acknowledged after the
// handler succeeds; everything else — malformed bodies, unknown types, handler
// errors — is rejected without requeue and permanently lost. There is no
// retry queue and no dead-letter exchange; the loss is deliberate and the
// reject log line is the only record of it.
type Consumer struct {
	src  ChannelSource
	name string // consumer tag and log prefix
}

// NewConsumer creates a Consumer. name identifies the consumer role in logs
// and as the AMQP consumer tag.
func NewConsumer(src ChannelSource, name string) *Consumer {
	return &Consumer{src: src, name: name}
}

// Run declares the binding's topology and consumes from its queue until ctx
// is cancelled or the delivery channel closes. Run blocks; start it in a
// goroutine per binding.
func (c *Consumer) Run(ctx context.Context, b Binding, d *Dispatcher) error {
	ch, err := c.src.GetChannel()
	if err != nil {
		return fmt.Errorf("%s: %w", c.name, err)
	}

	if err := Declare(ch, b); err != nil {
		return fmt.Errorf("%s: %w", c.name, err)
	}

	deliveries, err := ch.Consume(
		b.Queue,
		c.name, // consumer tag
		false,  // auto-ack off: we ack after the handler succeeds
		false,  // exclusive
		false,  // no-local
		false,  // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("%s: consume %s: %w", c.name, b.Queue, err)
	}

	log.Printf("%s: consuming from %s", c.name, b.Queue)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg, ok := <-deliveries:
			if !ok {
				return fmt.Errorf("%s: delivery channel closed", c.name)
			}

			outcome, derr := d.Dispatch(ctx, msg.Body)
			switch outcome {
			case Acked:
				if err := msg.Ack(false); err != nil {
					log.Printf("%s: ack failed: %v", c.name, err)
				}
			case Rejected:
				log.Printf("%s: message dropped: %v", c.name, derr)
				if err := msg.Reject(false); err != nil {
					log.Printf("%s: reject failed: %v", c.name, err)
				}
			}
		}
	}
}
