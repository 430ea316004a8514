package broker

import (
	"context"
	"fmt"
	"sync"

	amqp "github.com/rabbitmq/amqp091-go"
)

const memQueueDepth = 1024

// MemoryBus is a single-process implementation of the Channel surface backed
// by Go channels. It preserves the broker's observable semantics — idempotent
// declaration, kind-mismatch rejection, per-queue FIFO, direct routing by
// exact key, fanout broadcast, drop on reject — and is used by tests and
// single-node development setups.
type MemoryBus struct {
	mu        sync.RWMutex
	exchanges map[string]ExchangeKind
	queues    map[string]chan amqp.Delivery
	bindings  []memBinding
	closed    bool
	tag       uint64

	ackMu    sync.Mutex
	acked    int
	rejected int
}

type memBinding struct {
	exchange string
	queue    string
	key      string
}

// NewMemoryBus creates an empty bus.
func NewMemoryBus() *MemoryBus {
	return &MemoryBus{
		exchanges: make(map[string]ExchangeKind),
		queues:    make(map[string]chan amqp.Delivery),
	}
}

// GetChannel implements ChannelSource; the bus is its own channel.
func (b *MemoryBus) GetChannel() (Channel, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return nil, fmt.Errorf("memory bus is closed")
	}
	return b, nil
}

// ExchangeDeclare registers the exchange. Redeclaring an existing name with
// the same kind is a no-op; a different kind is an error, matching the real
// broker's precondition failure.
func (b *MemoryBus) ExchangeDeclare(name, kind string, durable, autoDelete, internal, noWait bool, args amqp.Table) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if existing, ok := b.exchanges[name]; ok {
		if existing != ExchangeKind(kind) {
			return fmt.Errorf("exchange %s already declared as %s, not %s", name, existing, kind)
		}
		return nil
	}
	b.exchanges[name] = ExchangeKind(kind)
	return nil
}

// QueueDeclare registers the queue, idempotently.
func (b *MemoryBus) QueueDeclare(name string, durable, autoDelete, exclusive, noWait bool, args amqp.Table) (amqp.Queue, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.queues[name]; !ok {
		b.queues[name] = make(chan amqp.Delivery, memQueueDepth)
	}
	return amqp.Queue{Name: name}, nil
}

// QueueBind records the (exchange, queue, key) triple. Rebinding an existing
// triple is a no-op.
func (b *MemoryBus) QueueBind(name, key, exchange string, noWait bool, args amqp.Table) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if _, ok := b.exchanges[exchange]; !ok {
		return fmt.Errorf("bind to undeclared exchange %s", exchange)
	}
	if _, ok := b.queues[name]; !ok {
		return fmt.Errorf("bind undeclared queue %s", name)
	}

	for _, mb := range b.bindings {
		if mb.exchange == exchange && mb.queue == name && mb.key == key {
			return nil
		}
	}
	b.bindings = append(b.bindings, memBinding{exchange: exchange, queue: name, key: key})
	return nil
}

// PublishWithContext routes the message to bound queues: exact key match for
// direct exchanges, every bound queue for fanout. A direct publish with no
// matching binding is silently dropped, as on the real broker.
func (b *MemoryBus) PublishWithContext(ctx context.Context, exchange, key string, mandatory, immediate bool, msg amqp.Publishing) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("memory bus is closed")
	}
	kind, ok := b.exchanges[exchange]
	if !ok {
		return fmt.Errorf("publish to undeclared exchange %s", exchange)
	}

	for _, mb := range b.bindings {
		if mb.exchange != exchange {
			continue
		}
		if kind == Direct && mb.key != key {
			continue
		}

		b.tag++
		d := amqp.Delivery{
			Acknowledger: (*memAcker)(b),
			DeliveryTag:  b.tag,
			Exchange:     exchange,
			RoutingKey:   key,
			ContentType:  msg.ContentType,
			MessageId:    msg.MessageId,
			Timestamp:    msg.Timestamp,
			Body:         msg.Body,
		}

		select {
		case b.queues[mb.queue] <- d:
		default:
			return fmt.Errorf("queue %s is full", mb.queue)
		}
	}
	return nil
}

// Consume returns the queue's delivery channel. Multiple consumers on the
// same queue compete for deliveries.
func (b *MemoryBus) Consume(queue, consumer string, autoAck, exclusive, noLocal, noWait bool, args amqp.Table) (<-chan amqp.Delivery, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	q, ok := b.queues[queue]
	if !ok {
		return nil, fmt.Errorf("consume from undeclared queue %s", queue)
	}
	return q, nil
}

// QueueDepth reports the number of undelivered messages in a queue.
func (b *MemoryBus) QueueDepth(name string) int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.queues[name])
}

// QueueCount reports how many queues exist on the bus.
func (b *MemoryBus) QueueCount() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.queues)
}

// Acked and Rejected report terminal message counts, for tests.
func (b *MemoryBus) Acked() int {
	b.ackMu.Lock()
	defer b.ackMu.Unlock()
	return b.acked
}

func (b *MemoryBus) Rejected() int {
	b.ackMu.Lock()
	defer b.ackMu.Unlock()
	return b.rejected
}

// Close marks the bus closed and closes every queue channel.
func (b *MemoryBus) Close() {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return
	}
	b.closed = true
	for _, q := range b.queues {
		close(q)
	}
}

// memAcker implements amqp.Acknowledger over the bus's counters. Ack removes
// the message permanently; Nack and Reject drop it — there is no requeue in
// this fabric regardless of the flag.
type memAcker MemoryBus

func (a *memAcker) Ack(tag uint64, multiple bool) error {
	a.ackMu.Lock()
	defer a.ackMu.Unlock()
	a.acked++
	return nil
}

func (a *memAcker) Nack(tag uint64, multiple, requeue bool) error {
	return a.Reject(tag, requeue)
}

func (a *memAcker) Reject(tag uint64, requeue bool) error {
	a.ackMu.Lock()
	defer a.ackMu.Unlock()
	a.rejected++
	return nil
}
