package users

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/gigmarket/backend/internal/broker"
	"github.com/gigmarket/backend/internal/event"
)

// SellerDispatcher wires the seller-update event family to the seller store.
// Order lifecycle and gig-count events all carry signed counter deltas and
// share one handler.
func SellerDispatcher(store SellerStore) *broker.Dispatcher {
	applyUpdate := func(ctx context.Context, body []byte) error {
		var ev event.SellerUpdate
		if err := json.Unmarshal(body, &ev); err != nil {
			return fmt.Errorf("decode seller update: %w", err)
		}
		return store.ApplyUpdate(ctx, ev)
	}

	return broker.NewDispatcher().
		Handle(event.TypeCreateOrder, applyUpdate).
		Handle(event.TypeApproveOrder, applyUpdate).
		Handle(event.TypeCancelOrder, applyUpdate).
		Handle(event.TypeUpdateGigCount, applyUpdate)
}

// ReviewSellerDispatcher is the dispatcher for the seller's copy of the
// review fanout. Seller reviews are a known type that must be acknowledged
// and ignored, not dropped as unknown: the fanout delivers both kinds to
// every bound queue.
func ReviewSellerDispatcher(store SellerStore) *broker.Dispatcher {
	return broker.NewDispatcher().
		Handle(event.TypeBuyerReview, func(ctx context.Context, body []byte) error {
			var ev event.Review
			if err := json.Unmarshal(body, &ev); err != nil {
				return fmt.Errorf("decode review: %w", err)
			}
			return store.ApplyReview(ctx, ev.SellerID, ev.Rating)
		}).
		Handle(event.TypeSellerReview, func(ctx context.Context, body []byte) error {
			return nil // acknowledged, no seller-side projection
		})
}

// BuyerDispatcher wires purchase-history events to the buyer store.
func BuyerDispatcher(store BuyerStore) *broker.Dispatcher {
	decode := func(body []byte) (event.BuyerUpdate, error) {
		var ev event.BuyerUpdate
		if err := json.Unmarshal(body, &ev); err != nil {
			return ev, fmt.Errorf("decode buyer update: %w", err)
		}
		return ev, nil
	}

	return broker.NewDispatcher().
		Handle(event.TypePurchaseGig, func(ctx context.Context, body []byte) error {
			ev, err := decode(body)
			if err != nil {
				return err
			}
			return store.AddPurchasedGig(ctx, ev.BuyerID, ev.GigID)
		}).
		Handle(event.TypeCancelPurchase, func(ctx context.Context, body []byte) error {
			ev, err := decode(body)
			if err != nil {
				return err
			}
			return store.RemovePurchasedGig(ctx, ev.BuyerID, ev.GigID)
		})
}
