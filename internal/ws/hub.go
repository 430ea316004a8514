package ws

import (
	"context"
	"encoding/json"
	"log"
	"sync"

	"github.com/gigmarket/backend/internal/cache"
)

// Presence is the slice of the cache the hub uses for the logged-in user
// list and per-user category memos.
type Presence interface {
	AddToList(ctx context.Context, key, value string) error
	RemoveFromList(ctx context.Context, key, value string) error
	ReadList(ctx context.Context, key string) []string
	SetScalar(ctx context.Context, key, value string) error
}

// onlineMsg is pushed to every client whenever the presence list changes.
type onlineMsg struct {
	Type  string   `json:"type"`
	Users []string `json:"users"`
}

// Hub manages the lifecycle of socket clients and fans real-time messages
// out to them. A user may hold several connections at once (multiple tabs);
// user-addressed messages go to all of them. It is safe for concurrent use.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	direct     chan directMsg
	presence   Presence
	mu         sync.RWMutex
}

type directMsg struct {
	// username empty means broadcast to everyone.
	username string
	data     []byte
}

// NewHub allocates a Hub. Call Run() in a goroutine to start the event loop.
func NewHub(presence Presence) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client, 16),
		unregister: make(chan *Client, 16),
		direct:     make(chan directMsg, 256),
		presence:   presence,
	}
}

// Run is the hub's main event loop. It must be executed in a dedicated
// goroutine and stops when the process exits.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			if err := h.presence.AddToList(context.Background(), cache.PresenceKey, client.Username); err != nil {
				log.Printf("ws: presence add for %s: %v", client.Username, err)
			}
			log.Printf("ws: client %s connected (user=%s)", client.ID, client.Username)
			h.broadcastOnline()

		case client := <-h.unregister:
			h.mu.Lock()
			connected := false
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			for c := range h.clients {
				if c.Username == client.Username {
					connected = true
					break
				}
			}
			h.mu.Unlock()
			if !connected {
				if err := h.presence.RemoveFromList(context.Background(), cache.PresenceKey, client.Username); err != nil {
					log.Printf("ws: presence remove for %s: %v", client.Username, err)
				}
			}
			log.Printf("ws: client %s disconnected (user=%s)", client.ID, client.Username)
			h.broadcastOnline()

		case msg := <-h.direct:
			h.deliver(msg.username, msg.data)
		}
	}
}

// deliver writes data to every matching client's send channel. Empty
// username means everyone. Called from the event loop; must never block
// on the hub's own input channels.
func (h *Hub) deliver(username string, data []byte) {
	h.mu.RLock()
	for client := range h.clients {
		if username != "" && client.Username != username {
			continue
		}
		select {
		case client.send <- data:
		default:
			// Slow consumer: drop the message to avoid blocking.
		}
	}
	h.mu.RUnlock()
}

// SendToUser enqueues data for every connection the user currently holds.
// A user with no open connection simply misses the message.
func (h *Hub) SendToUser(username string, data []byte) {
	h.direct <- directMsg{username: username, data: data}
}

// Broadcast enqueues data for every connected client.
func (h *Hub) Broadcast(data []byte) {
	h.direct <- directMsg{data: data}
}

// broadcastOnline reads the presence list and pushes it to every client.
// It writes the send channels directly rather than going through direct,
// which the event loop itself drains.
func (h *Hub) broadcastOnline() {
	users := h.presence.ReadList(context.Background(), cache.PresenceKey)
	data, err := json.Marshal(onlineMsg{Type: "online", Users: users})
	if err != nil {
		log.Printf("ws: marshal online list: %v", err)
		return
	}
	h.deliver("", data)
}

// Register enqueues a new client for addition to the hub.
func (h *Hub) Register(c *Client) {
	h.register <- c
}

// Unregister enqueues a client for removal from the hub.
func (h *Hub) Unregister(c *Client) {
	h.unregister <- c
}
