package order

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gigmarket/backend/internal/broker"
	"github.com/gigmarket/backend/internal/event"
)

// ReviewDispatcher is the order-side consumer of the review fanout: each
// review lands in the order's embedded sub-document, independent of the
// seller and gig projections fed by the same event.
func ReviewDispatcher(store Store) *broker.Dispatcher {
	apply := func(side string) broker.HandlerFunc {
		return func(ctx context.Context, body []byte) error {
			var ev event.Review
			if err := json.Unmarshal(body, &ev); err != nil {
				return fmt.Errorf("decode review: %w", err)
			}
			if ev.OrderID == "" {
				return fmt.Errorf("review without orderId")
			}
			return store.SetReview(ctx, ev.OrderID, side, Review{
				Rating:    ev.Rating,
				Review:    ev.Review,
				CreatedAt: ev.CreatedAt,
			})
		}
	}

	return broker.NewDispatcher().
		Handle(event.TypeBuyerReview, apply("buyer")).
		Handle(event.TypeSellerReview, apply("seller"))
}
