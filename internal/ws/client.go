package ws

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	// writeWait is the maximum time allowed to write a message to the peer.
	writeWait = 10 * time.Second
	// pongWait is the maximum time to wait for a pong reply from the peer.
	pongWait = 60 * time.Second
	// pingPeriod must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10
	// maxMessageSize is the maximum inbound message size in bytes.
	maxMessageSize = 4096
)

// controlMessage is the JSON envelope sent by the frontend over the socket.
// The only inbound action is the browse-category memo; everything else the
// gateway pushes is server-originated.
type controlMessage struct {
	Action   string `json:"action"`   // "category"
	Category string `json:"category"` // selected browse category
}

// Client represents a single socket connection for one authenticated user.
type Client struct {
	ID       string
	Username string
	conn     *websocket.Conn
	send     chan []byte
	hub      *Hub
}

// NewClient creates a Client for a freshly upgraded connection.
func NewClient(hub *Hub, conn *websocket.Conn, username string) *Client {
	return &Client{
		ID:       uuid.New().String(),
		Username: username,
		conn:     conn,
		send:     make(chan []byte, 256),
		hub:      hub,
	}
}

// ReadPump pumps messages from the socket to the hub. It runs in its own
// goroutine per client and handles the category control message.
func (c *Client) ReadPump() {
	defer func() {
		c.hub.Unregister(c)
		c.conn.Close()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		_, msg, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("ws: client %s read error: %v", c.ID, err)
			}
			break
		}

		var cm controlMessage
		if err := json.Unmarshal(msg, &cm); err != nil {
			log.Printf("ws: client %s sent invalid control message: %v", c.ID, err)
			continue
		}

		switch cm.Action {
		case "category":
			c.handleCategory(cm.Category)
		default:
			log.Printf("ws: client %s unknown action %q", c.ID, cm.Action)
		}
	}
}

// handleCategory memoizes the user's selected browse category so the gig
// service can serve "more like this" listings.
func (c *Client) handleCategory(category string) {
	if category == "" {
		return
	}
	key := "selectedCategories:" + c.Username
	if err := c.hub.presence.SetScalar(context.Background(), key, category); err != nil {
		log.Printf("ws: client %s category memo: %v", c.ID, err)
		return
	}
	log.Printf("ws: client %s selected category %q", c.ID, category)
}

// WritePump pumps messages from the hub's send channel to the socket.
// It runs in its own goroutine per client.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// Hub closed the channel.
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
