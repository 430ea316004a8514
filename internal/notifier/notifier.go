// Package notifier bridges the email queues to the mailer. It is a pure
// consumer: it owns no state beyond the SMTP session and never publishes.
package notifier

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gigmarket/backend/internal/broker"
	"github.com/gigmarket/backend/internal/event"
)

// Sender is the slice of the mailer the notifier depends on.
type Sender interface {
	Send(ev event.Email) error
}

// Dispatcher routes both email families to the mailer. Auth email and order
// email arrive on separate queues but carry the same payload shape, so a
// single handler serves both types.
func Dispatcher(mailer Sender) *broker.Dispatcher {
	deliver := func(ctx context.Context, body []byte) error {
		var ev event.Email
		if err := json.Unmarshal(body, &ev); err != nil {
			return fmt.Errorf("decode email event: %w", err)
		}
		return mailer.Send(ev)
	}

	return broker.NewDispatcher().
		Handle(event.TypeAuthEmail, deliver).
		Handle(event.TypeOrderEmail, deliver)
}
