package broker

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"
)

// collector records every body a handler receives, in arrival order.
type collector struct {
	mu     sync.Mutex
	bodies []string
}

func (c *collector) add(body []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.bodies = append(c.bodies, string(body))
}

func (c *collector) snapshot() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.bodies))
	copy(out, c.bodies)
	return out
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within deadline")
}

func TestConsumerAcksMatchedEvents(t *testing.T) {
	bus := NewMemoryBus()
	defer bus.Close()

	b := Binding{Exchange: "seller-x", Kind: Direct, Queue: "seller-q", RoutingKey: "user-seller"}
	col := &collector{}
	d := NewDispatcher().Handle("create-order", func(ctx context.Context, body []byte) error {
		col.add(body)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go NewConsumer(bus, "users").Run(ctx, b, d) //nolint:errcheck

	waitFor(t, func() bool { return bus.QueueCount() == 1 })

	NewPublisher(bus).Publish(ctx, b, map[string]interface{}{"type": "create-order", "sellerId": "s1"}, "")

	waitFor(t, func() bool { return bus.Acked() == 1 })
	if got := len(col.snapshot()); got != 1 {
		t.Errorf("handler invoked %d times, want 1", got)
	}
	if bus.Rejected() != 0 {
		t.Errorf("rejected = %d, want 0", bus.Rejected())
	}
}

func TestUnknownTypeIsDroppedAndConsumerContinues(t *testing.T) {
	bus := NewMemoryBus()
	defer bus.Close()

	b := Binding{Exchange: "seller-x", Kind: Direct, Queue: "seller-q", RoutingKey: "user-seller"}
	col := &collector{}
	d := NewDispatcher().Handle("approve-order", func(ctx context.Context, body []byte) error {
		col.add(body)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go NewConsumer(bus, "users").Run(ctx, b, d) //nolint:errcheck

	waitFor(t, func() bool { return bus.QueueCount() == 1 })

	pub := NewPublisher(bus)
	pub.Publish(ctx, b, map[string]string{"type": "bogus"}, "")
	pub.Publish(ctx, b, map[string]string{"type": "approve-order"}, "")

	waitFor(t, func() bool { return bus.Acked() == 1 && bus.Rejected() == 1 })
	got := col.snapshot()
	if len(got) != 1 {
		t.Fatalf("handler invoked %d times, want 1", len(got))
	}
}

func TestHandlerErrorRejectsWithoutRequeue(t *testing.T) {
	bus := NewMemoryBus()
	defer bus.Close()

	b := Binding{Exchange: "buyer-x", Kind: Direct, Queue: "buyer-q", RoutingKey: "user-buyer"}
	d := NewDispatcher().Handle("purchase-gig", func(ctx context.Context, body []byte) error {
		return errors.New("buyer not found")
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go NewConsumer(bus, "users").Run(ctx, b, d) //nolint:errcheck

	waitFor(t, func() bool { return bus.QueueCount() == 1 })

	NewPublisher(bus).Publish(ctx, b, map[string]string{"type": "purchase-gig"}, "")

	waitFor(t, func() bool { return bus.Rejected() == 1 })
	// The failed message is gone for good: nothing left to redeliver.
	if depth := bus.QueueDepth("buyer-q"); depth != 0 {
		t.Errorf("queue depth after reject = %d, want 0", depth)
	}
}

func TestMalformedBodyIsRejected(t *testing.T) {
	bus := NewMemoryBus()
	defer bus.Close()

	b := Binding{Exchange: "seller-x", Kind: Direct, Queue: "seller-q", RoutingKey: "user-seller"}
	d := NewDispatcher().Handle("create-order", func(ctx context.Context, body []byte) error { return nil })

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go NewConsumer(bus, "users").Run(ctx, b, d) //nolint:errcheck

	waitFor(t, func() bool { return bus.QueueCount() == 1 })

	NewPublisher(bus).PublishRaw(ctx, b, []byte("not json"), "")

	waitFor(t, func() bool { return bus.Rejected() == 1 })
}

func TestConsumerObservesPublishOrder(t *testing.T) {
	bus := NewMemoryBus()
	defer bus.Close()

	b := Binding{Exchange: "fifo-x", Kind: Direct, Queue: "fifo-q", RoutingKey: "k"}
	col := &collector{}
	d := NewDispatcher().Handle("seq", func(ctx context.Context, body []byte) error {
		col.add(body)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go NewConsumer(bus, "seq").Run(ctx, b, d) //nolint:errcheck

	waitFor(t, func() bool { return bus.QueueCount() == 1 })

	pub := NewPublisher(bus)
	pub.Publish(ctx, b, map[string]string{"type": "seq", "n": "1"}, "")
	pub.Publish(ctx, b, map[string]string{"type": "seq", "n": "2"}, "")

	waitFor(t, func() bool { return bus.Acked() == 2 })
	got := col.snapshot()
	if len(got) != 2 {
		t.Fatalf("received %d messages, want 2", len(got))
	}
	first, second := got[0], got[1]
	if !strings.Contains(first, `"n":"1"`) || !strings.Contains(second, `"n":"2"`) {
		t.Errorf("out of order delivery: first=%s second=%s", first, second)
	}
}

func TestFanoutReachesThreeConsumers(t *testing.T) {
	bus := NewMemoryBus()
	defer bus.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	cols := make([]*collector, 3)
	queues := []string{"seller-review-q", "gig-review-q", "order-review-q"}
	for i, q := range queues {
		cols[i] = &collector{}
		col := cols[i]
		d := NewDispatcher().Handle("buyer-review", func(ctx context.Context, body []byte) error {
			col.add(body)
			return nil
		})
		go NewConsumer(bus, q).Run(ctx, Binding{Exchange: "review-x", Kind: Fanout, Queue: q}, d) //nolint:errcheck
	}

	waitFor(t, func() bool { return bus.QueueCount() == 3 })

	NewPublisher(bus).Publish(ctx, Binding{Exchange: "review-x", Kind: Fanout},
		map[string]interface{}{"type": "buyer-review", "rating": 5}, "review broadcast")

	waitFor(t, func() bool { return bus.Acked() == 3 })
	for i, col := range cols {
		if got := len(col.snapshot()); got != 1 {
			t.Errorf("consumer %d received %d copies, want 1", i, got)
		}
	}
}
