package ws

import (
	"context"
	"encoding/json"
	"sync"
	"testing"
	"time"

	"github.com/gigmarket/backend/internal/broker"
	"github.com/gigmarket/backend/internal/event"
)

// fakePresence is an in-memory Presence implementation.
type fakePresence struct {
	mu      sync.Mutex
	list    []string
	scalars map[string]string
}

func newFakePresence() *fakePresence {
	return &fakePresence{scalars: make(map[string]string)}
}

func (f *fakePresence) AddToList(ctx context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, v := range f.list {
		if v == value {
			return nil
		}
	}
	f.list = append(f.list, value)
	return nil
}

func (f *fakePresence) RemoveFromList(ctx context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, v := range f.list {
		if v == value {
			f.list = append(f.list[:i], f.list[i+1:]...)
			return nil
		}
	}
	return nil
}

func (f *fakePresence) ReadList(ctx context.Context, key string) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.list...)
}

func (f *fakePresence) SetScalar(ctx context.Context, key, value string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.scalars[key] = value
	return nil
}

func (f *fakePresence) online() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.list...)
}

func newTestClient(h *Hub, username string) *Client {
	return &Client{
		ID:       "test-" + username,
		Username: username,
		send:     make(chan []byte, 16),
		hub:      h,
	}
}

// nextOfType reads from the client's send queue until a message with the
// given type arrives.
func nextOfType(t *testing.T, c *Client, typ string) []byte {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		select {
		case msg := <-c.send:
			var head struct {
				Type string `json:"type"`
			}
			if err := json.Unmarshal(msg, &head); err != nil {
				t.Fatalf("unparseable push: %v", err)
			}
			if head.Type == typ {
				return msg
			}
		case <-deadline:
			t.Fatalf("timed out waiting for %q push", typ)
		}
	}
}

func waitForPresence(t *testing.T, p *fakePresence, want int) {
	t.Helper()
	for i := 0; i < 100; i++ {
		if len(p.online()) == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("presence list = %v, want %d entries", p.online(), want)
}

func TestRegisterBroadcastsOnlineList(t *testing.T) {
	p := newFakePresence()
	h := NewHub(p)
	go h.Run()

	alice := newTestClient(h, "alice")
	bob := newTestClient(h, "bob")
	h.Register(alice)
	h.Register(bob)
	waitForPresence(t, p, 2)

	msg := nextOfType(t, bob, "online")
	var online onlineMsg
	if err := json.Unmarshal(msg, &online); err != nil {
		t.Fatal(err)
	}
	found := false
	for _, u := range online.Users {
		if u == "alice" {
			found = true
		}
	}
	if !found {
		t.Errorf("online list %v missing alice", online.Users)
	}
}

func TestPresenceSurvivesOtherOpenTab(t *testing.T) {
	p := newFakePresence()
	h := NewHub(p)
	go h.Run()

	tab1 := newTestClient(h, "alice")
	tab2 := newTestClient(h, "alice")
	h.Register(tab1)
	h.Register(tab2)
	waitForPresence(t, p, 1)

	h.Unregister(tab1)
	time.Sleep(50 * time.Millisecond)
	if len(p.online()) != 1 {
		t.Fatal("alice must stay online while another tab is open")
	}

	h.Unregister(tab2)
	waitForPresence(t, p, 0)
}

func TestSendToUserTargetsOnlyThatUser(t *testing.T) {
	p := newFakePresence()
	h := NewHub(p)
	go h.Run()

	alice := newTestClient(h, "alice")
	bob := newTestClient(h, "bob")
	h.Register(alice)
	h.Register(bob)
	waitForPresence(t, p, 2)

	h.SendToUser("alice", []byte(`{"type":"ping"}`))

	nextOfType(t, alice, "ping")
	time.Sleep(50 * time.Millisecond)
	for len(bob.send) > 0 {
		var head struct {
			Type string `json:"type"`
		}
		json.Unmarshal(<-bob.send, &head)
		if head.Type == "ping" {
			t.Fatal("bob must not receive alice's message")
		}
	}
}

func TestChatDispatcherReachesBothParticipants(t *testing.T) {
	p := newFakePresence()
	h := NewHub(p)
	go h.Run()

	alice := newTestClient(h, "alice")
	bob := newTestClient(h, "bob")
	h.Register(alice)
	h.Register(bob)
	waitForPresence(t, p, 2)

	body, _ := json.Marshal(event.Chat{Type: event.TypeChat, Sender: "alice", Receiver: "bob", Body: "hi"})
	d := ChatDispatcher(h)
	if outcome, err := d.Dispatch(context.Background(), body); outcome != broker.Acked {
		t.Fatalf("chat rejected: %v", err)
	}

	for _, c := range []*Client{alice, bob} {
		msg := nextOfType(t, c, event.TypeChat)
		var ev event.Chat
		if err := json.Unmarshal(msg, &ev); err != nil {
			t.Fatal(err)
		}
		if ev.Body != "hi" {
			t.Errorf("client %s got body %q", c.Username, ev.Body)
		}
	}
}

func TestOrderAlertDispatcherTargetsAddressee(t *testing.T) {
	p := newFakePresence()
	h := NewHub(p)
	go h.Run()

	seller := newTestClient(h, "sam")
	h.Register(seller)
	waitForPresence(t, p, 1)

	body, _ := json.Marshal(event.OrderAlert{Type: event.TypeOrderAlert, UserTo: "sam", OrderID: "o1", Message: "order delivered"})
	d := OrderAlertDispatcher(h)
	if outcome, err := d.Dispatch(context.Background(), body); outcome != broker.Acked {
		t.Fatalf("alert rejected: %v", err)
	}

	msg := nextOfType(t, seller, event.TypeOrderAlert)
	var ev event.OrderAlert
	if err := json.Unmarshal(msg, &ev); err != nil {
		t.Fatal(err)
	}
	if ev.OrderID != "o1" {
		t.Errorf("alert orderId = %s", ev.OrderID)
	}
}

func TestAlertWithoutAddresseeIsRejected(t *testing.T) {
	h := NewHub(newFakePresence())
	d := OrderAlertDispatcher(h)
	body, _ := json.Marshal(event.OrderAlert{Type: event.TypeOrderAlert})
	if outcome, _ := d.Dispatch(context.Background(), body); outcome != broker.Rejected {
		t.Error("alert without userTo must be rejected")
	}
}

func TestCategoryControlMessagePersistsMemo(t *testing.T) {
	p := newFakePresence()
	h := NewHub(p)
	c := newTestClient(h, "alice")

	c.handleCategory("Programming & Tech")

	p.mu.Lock()
	got := p.scalars["selectedCategories:alice"]
	p.mu.Unlock()
	if got != "Programming & Tech" {
		t.Errorf("memo = %q", got)
	}
}

// gatedPresence blocks AddToList until released so the event loop can be
// held inside the register case.
type gatedPresence struct {
	*fakePresence
	entered chan struct{}
	release chan struct{}
}

func (g *gatedPresence) AddToList(ctx context.Context, key, value string) error {
	g.entered <- struct{}{}
	<-g.release
	return g.fakePresence.AddToList(ctx, key, value)
}

func TestOnlineBroadcastSurvivesFullDirectQueue(t *testing.T) {
	gp := &gatedPresence{
		fakePresence: newFakePresence(),
		entered:      make(chan struct{}),
		release:      make(chan struct{}),
	}
	h := NewHub(gp)
	go h.Run()

	alice := &Client{
		ID:       "test-alice",
		Username: "alice",
		send:     make(chan []byte, 512),
		hub:      h,
	}
	h.Register(alice)
	<-gp.entered

	// With the loop parked in the register case, saturate its input queue.
	for i := 0; i < cap(h.direct); i++ {
		h.direct <- directMsg{data: []byte(`{"type":"noise"}`)}
	}
	close(gp.release)

	done := make(chan struct{})
	go func() {
		h.Broadcast([]byte(`{"type":"ping"}`))
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("broadcast never completed: event loop stalled")
	}
	nextOfType(t, alice, "ping")
}
