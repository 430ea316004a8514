package broker

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	amqp "github.com/rabbitmq/amqp091-go"
)

// Publisher writes events to the broker. Publishing is fire-and-forget: there
// is no publisher confirm, and failures are logged and swallowed so the
// calling business flow proceeds regardless. Downstream projections must
// tolerate silent loss.
type Publisher struct {
	src ChannelSource
}

// NewPublisher creates a Publisher over the given channel source.
func NewPublisher(src ChannelSource) *Publisher {
	return &Publisher{src: src}
}

// Publish JSON-encodes payload and sends it to the binding's exchange and
// routing key, declaring the exchange first if missing. logMsg describes the
// publish for the operational log; it is the only visible trace of the
// outcome either way.
func (p *Publisher) Publish(ctx context.Context, b Binding, payload interface{}, logMsg string) {
	body, err := json.Marshal(payload)
	if err != nil {
		log.Printf("publisher: marshal for %s failed: %v", b.Exchange, err)
		return
	}
	p.PublishRaw(ctx, b, body, logMsg)
}

// PublishRaw sends an already-serialized body. Same fire-and-forget contract
// as Publish.
func (p *Publisher) PublishRaw(ctx context.Context, b Binding, body []byte, logMsg string) {
	if err := p.publish(ctx, b, body); err != nil {
		log.Printf("publisher: publish to %s (%s) failed, message dropped: %v", b.Exchange, b.RoutingKey, err)
		return
	}
	if logMsg != "" {
		log.Printf("publisher: %s", logMsg)
	}
}

func (p *Publisher) publish(ctx context.Context, b Binding, body []byte) error {
	ch, err := p.src.GetChannel()
	if err != nil {
		return err
	}

	if err := DeclareExchange(ch, b); err != nil {
		return err
	}

	return ch.PublishWithContext(
		ctx,
		b.Exchange,
		b.RoutingKey,
		false, // mandatory
		false, // immediate
		amqp.Publishing{
			ContentType:  "application/json",
			DeliveryMode: amqp.Persistent,
			MessageId:    uuid.New().String(),
			Timestamp:    time.Now(),
			Body:         body,
		},
	)
}
