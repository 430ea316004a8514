package order

import (
	"context"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/gigmarket/backend/internal/broker"
	"github.com/gigmarket/backend/internal/event"
)

// Service commits order mutations locally, then publishes the projection and
// notification events describing them. Publishing is fire-and-forget: a
// failed publish leaves downstream counters stale, which surfaces only in
// operational logs, never to the caller.
type Service struct {
	store     Store
	pub       *broker.Publisher
	clientURL string
}

// NewService creates a Service. clientURL is the public frontend base URL
// used to build the order links embedded in notification emails.
func NewService(store Store, pub *broker.Publisher, clientURL string) *Service {
	return &Service{store: store, pub: pub, clientURL: strings.TrimRight(clientURL, "/")}
}

func (s *Service) orderURL(id string) string {
	return s.clientURL + "/orders/" + id
}

// Place creates the order, bumps the seller's ongoing jobs, records the
// buyer's purchase, and emails both parties: the seller gets the new-order
// notice, the buyer gets the receipt.
func (s *Service) Place(ctx context.Context, o *Order) error {
	if err := s.store.Create(ctx, o); err != nil {
		return err
	}

	s.pub.Publish(ctx, broker.SellerUpdate, event.SellerUpdate{
		Type:        event.TypeCreateOrder,
		SellerID:    o.SellerID,
		OngoingJobs: 1,
	}, fmt.Sprintf("order %s placed, seller %s ongoing jobs incremented", o.ID, o.SellerID))

	s.pub.Publish(ctx, broker.BuyerUpdate, event.BuyerUpdate{
		Type:    event.TypePurchaseGig,
		BuyerID: o.BuyerID,
		GigID:   o.GigID,
	}, "")

	s.pub.Publish(ctx, broker.OrderEmail, event.Email{
		Type:       event.TypeOrderEmail,
		Receiver:   o.SellerEmail,
		Template:   "orderPlaced",
		OrderID:    o.ID,
		OrderURL:   s.orderURL(o.ID),
		Title:      o.Title,
		Amount:     o.Price,
		BuyerName:  o.BuyerUsername,
		SellerName: o.SellerUsername,
	}, "")

	s.pub.Publish(ctx, broker.OrderEmail, event.Email{
		Type:       event.TypeOrderEmail,
		Receiver:   o.BuyerEmail,
		Template:   "orderReceipt",
		OrderID:    o.ID,
		OrderURL:   s.orderURL(o.ID),
		Title:      o.Title,
		Amount:     o.Price,
		BuyerName:  o.BuyerUsername,
		SellerName: o.SellerUsername,
	}, "")

	s.alert(ctx, o.SellerUsername, o.ID, "placed an order for your gig")
	return nil
}

// Approve marks the order approved and settles the seller's counters: one
// job moves from ongoing to completed and the net price lands in earnings.
func (s *Service) Approve(ctx context.Context, id string) error {
	o, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.SetStatus(ctx, id, StatusApproved); err != nil {
		return err
	}

	now := time.Now().UTC()
	s.pub.Publish(ctx, broker.SellerUpdate, event.SellerUpdate{
		Type:           event.TypeApproveOrder,
		SellerID:       o.SellerID,
		OngoingJobs:    -1,
		CompletedJobs:  1,
		TotalEarnings:  o.NetPrice(),
		RecentDelivery: &now,
	}, fmt.Sprintf("order %s approved, seller %s earnings updated", o.ID, o.SellerID))

	s.alert(ctx, o.SellerUsername, o.ID, "approved your delivery")
	return nil
}

// Cancel cancels the order and unwinds the projections the placement made.
func (s *Service) Cancel(ctx context.Context, id string) error {
	o, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.SetStatus(ctx, id, StatusCancelled); err != nil {
		return err
	}

	s.pub.Publish(ctx, broker.SellerUpdate, event.SellerUpdate{
		Type:          event.TypeCancelOrder,
		SellerID:      o.SellerID,
		OngoingJobs:   -1,
		CancelledJobs: 1,
	}, fmt.Sprintf("order %s cancelled, seller %s ongoing jobs decremented", o.ID, o.SellerID))

	s.pub.Publish(ctx, broker.BuyerUpdate, event.BuyerUpdate{
		Type:    event.TypeCancelPurchase,
		BuyerID: o.BuyerID,
		GigID:   o.GigID,
	}, "")

	s.alert(ctx, o.SellerUsername, o.ID, "cancelled the order")
	return nil
}

// Deliver marks the order delivered and notifies the buyer by email and
// socket push.
func (s *Service) Deliver(ctx context.Context, id string) error {
	o, err := s.store.Get(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.SetStatus(ctx, id, StatusDelivered); err != nil {
		return err
	}

	s.pub.Publish(ctx, broker.OrderEmail, event.Email{
		Type:       event.TypeOrderEmail,
		Receiver:   o.BuyerEmail,
		Template:   "orderDelivered",
		OrderID:    o.ID,
		OrderURL:   s.orderURL(o.ID),
		Title:      o.Title,
		BuyerName:  o.BuyerUsername,
		SellerName: o.SellerUsername,
	}, fmt.Sprintf("order %s delivered, buyer %s emailed", o.ID, o.BuyerUsername))

	s.alert(ctx, o.BuyerUsername, o.ID, "delivered your order")
	return nil
}

// Get loads one order.
func (s *Service) Get(ctx context.Context, id string) (*Order, error) {
	return s.store.Get(ctx, id)
}

// Delete removes the order together with its notification rows.
func (s *Service) Delete(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}

// Alerts lists the user's persisted notifications, newest first.
func (s *Service) Alerts(ctx context.Context, username string) ([]Alert, error) {
	return s.store.Alerts(ctx, username)
}

// MarkAlertsRead marks all of the user's notifications as read.
func (s *Service) MarkAlertsRead(ctx context.Context, username string) error {
	return s.store.MarkAlertsRead(ctx, username)
}

// alert persists the notification row, then pushes it through the gateway
// stream. The row is the durable copy; the push is best-effort.
func (s *Service) alert(ctx context.Context, userTo, orderID, message string) {
	if err := s.store.RecordAlert(ctx, orderID, userTo, message); err != nil {
		log.Printf("order: record alert for %s: %v", orderID, err)
	}
	s.pub.Publish(ctx, broker.OrderStream, event.OrderAlert{
		Type:    event.TypeOrderAlert,
		UserTo:  userTo,
		OrderID: orderID,
		Message: message,
	}, "")
}
