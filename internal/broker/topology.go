package broker

import (
	"context"
	"fmt"

	amqp "github.com/rabbitmq/amqp091-go"
)

// ExchangeKind is the AMQP exchange type. Direct exchanges route by exact
// routing-key match; fanout exchanges broadcast to every bound queue.
type ExchangeKind string

const (
	Direct ExchangeKind = "direct"
	Fanout ExchangeKind = "fanout"
)

// Binding is the canonical (exchange, kind, queue, routing key) tuple for one
// event family. Publishers and consumers share the same Binding value so the
// topology can never drift between services. The broker enforces that an
// exchange name is always declared with the same kind.
type Binding struct {
	Exchange   string
	Kind       ExchangeKind
	Queue      string
	RoutingKey string // empty only for fanout exchanges
}

// Canonical bindings for every event family. A fanout exchange appears once
// per consumer role, each role with its own durable queue.
var (
	// Seller projection updates consumed by the users service.
	SellerUpdate = Binding{
		Exchange:   "gigmarket-seller-update",
		Kind:       Direct,
		Queue:      "user-seller-queue",
		RoutingKey: "user-seller",
	}

	// Buyer purchase-history updates consumed by the users service.
	BuyerUpdate = Binding{
		Exchange:   "gigmarket-buyer-update",
		Kind:       Direct,
		Queue:      "user-buyer-queue",
		RoutingKey: "user-buyer",
	}

	// Gig rating updates applied to the search index by the gig service.
	GigUpdate = Binding{
		Exchange:   "gigmarket-update-gig",
		Kind:       Direct,
		Queue:      "gig-update-queue",
		RoutingKey: "update-gig",
	}

	// Bulk sample-gig creation requests consumed by the gig service.
	GigSeed = Binding{
		Exchange:   "gigmarket-seed-gig",
		Kind:       Direct,
		Queue:      "gig-seed-queue",
		RoutingKey: "seed-gig",
	}

	// Authentication emails (verification, password reset) consumed by the
	// notifier service.
	AuthEmail = Binding{
		Exchange:   "gigmarket-email-notification",
		Kind:       Direct,
		Queue:      "auth-email-queue",
		RoutingKey: "auth-email",
	}

	// Order lifecycle emails consumed by the notifier service.
	OrderEmail = Binding{
		Exchange:   "gigmarket-order-notification",
		Kind:       Direct,
		Queue:      "order-email-queue",
		RoutingKey: "order-email",
	}

	// Review fanout. One published review event reaches three independent
	// projections: seller rating buckets, gig rating buckets in the search
	// index, and the order's embedded review.
	ReviewSeller = Binding{Exchange: "gigmarket-review", Kind: Fanout, Queue: "seller-review-queue"}
	ReviewGig    = Binding{Exchange: "gigmarket-review", Kind: Fanout, Queue: "gig-review-queue"}
	ReviewOrder  = Binding{Exchange: "gigmarket-review", Kind: Fanout, Queue: "order-review-queue"}

	// Real-time streams relayed by the gateway socket hub.
	ChatStream  = Binding{Exchange: "gigmarket-chat", Kind: Fanout, Queue: "gateway-chat-queue"}
	OrderStream = Binding{Exchange: "gigmarket-order-stream", Kind: Fanout, Queue: "gateway-order-queue"}
)

// Channel is the subset of *amqp.Channel used by the fabric. The in-memory
// bus implements the same surface for tests and single-node development.
type Channel interface {
	ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error
	QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error)
	QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error
	PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error
	Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error)
}

// DeclareExchange idempotently declares the binding's exchange.
func DeclareExchange(ch Channel, b Binding) error {
	err := ch.ExchangeDeclare(
		b.Exchange,
		string(b.Kind),
		true,  // durable
		false, // auto-delete
		false, // internal
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare exchange %s: %w", b.Exchange, err)
	}
	return nil
}

// Declare idempotently declares the binding's exchange, its durable queue,
// and the queue binding. Re-declaring an existing triple is a no-op on the
// broker side.
func Declare(ch Channel, b Binding) error {
	if err := DeclareExchange(ch, b); err != nil {
		return err
	}

	_, err := ch.QueueDeclare(
		b.Queue,
		true,  // durable
		false, // auto-delete
		false, // exclusive
		false, // no-wait
		nil,
	)
	if err != nil {
		return fmt.Errorf("declare queue %s: %w", b.Queue, err)
	}

	if err := ch.QueueBind(b.Queue, b.RoutingKey, b.Exchange, false, nil); err != nil {
		return fmt.Errorf("bind %s to %s: %w", b.Queue, b.Exchange, err)
	}
	return nil
}
