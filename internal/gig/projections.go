package gig

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gigmarket/backend/internal/broker"
	"github.com/gigmarket/backend/internal/event"
)

// ReviewDispatcher is the gig-side consumer of the review fanout: a buyer
// review moves the owning gig document's rating buckets in the search index.
// Seller reviews rate the buyer and leave the gig untouched, but are still a
// known, acknowledged type.
func ReviewDispatcher(index Index) *broker.Dispatcher {
	return broker.NewDispatcher().
		Handle(event.TypeBuyerReview, func(ctx context.Context, body []byte) error {
			var ev event.Review
			if err := json.Unmarshal(body, &ev); err != nil {
				return fmt.Errorf("decode review: %w", err)
			}
			if ev.GigID == "" {
				return fmt.Errorf("review without gigId")
			}
			return index.ApplyReview(ctx, ev.GigID, ev.Rating)
		}).
		Handle(event.TypeSellerReview, func(ctx context.Context, body []byte) error {
			return nil
		})
}

// UpdateDispatcher consumes the gig-update family: partial document updates
// requested by other services (for example the order service marking a gig
// inactive) applied to the search index.
func UpdateDispatcher(index Index) *broker.Dispatcher {
	return broker.NewDispatcher().
		Handle(event.TypeUpdateGig, func(ctx context.Context, body []byte) error {
			var ev struct {
				Type  string          `json:"type"`
				GigID string          `json:"gigId"`
				Doc   json.RawMessage `json:"doc"`
			}
			if err := json.Unmarshal(body, &ev); err != nil {
				return fmt.Errorf("decode gig update: %w", err)
			}
			if ev.GigID == "" || len(ev.Doc) == 0 {
				return fmt.Errorf("gig update missing gigId or doc")
			}
			return index.UpdateDocument(ctx, ev.GigID, ev.Doc)
		})
}
