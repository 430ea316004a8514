package ws

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gigmarket/backend/internal/broker"
	"github.com/gigmarket/backend/internal/event"
)

// ChatDispatcher relays chat messages from the chat stream to both
// participants. The raw body is forwarded unchanged so clients see the exact
// payload the chat service published.
func ChatDispatcher(h *Hub) *broker.Dispatcher {
	return broker.NewDispatcher().
		Handle(event.TypeChat, func(ctx context.Context, body []byte) error {
			var ev event.Chat
			if err := json.Unmarshal(body, &ev); err != nil {
				return fmt.Errorf("decode chat message: %w", err)
			}
			if ev.Receiver == "" {
				return fmt.Errorf("chat message without receiver")
			}
			h.SendToUser(ev.Receiver, body)
			if ev.Sender != "" && ev.Sender != ev.Receiver {
				h.SendToUser(ev.Sender, body)
			}
			return nil
		})
}

// OrderAlertDispatcher relays order state changes to the addressed user's
// open sockets.
func OrderAlertDispatcher(h *Hub) *broker.Dispatcher {
	return broker.NewDispatcher().
		Handle(event.TypeOrderAlert, func(ctx context.Context, body []byte) error {
			var ev event.OrderAlert
			if err := json.Unmarshal(body, &ev); err != nil {
				return fmt.Errorf("decode order alert: %w", err)
			}
			if ev.UserTo == "" {
				return fmt.Errorf("order alert without userTo")
			}
			h.SendToUser(ev.UserTo, body)
			return nil
		})
}
