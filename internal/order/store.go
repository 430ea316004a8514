// Package order owns order state and the order-side projections. Each order
// mutation commits locally first, then publishes the events other services
// project from; the embedded review sub-document is itself a projection fed
// by the review fanout.
package order

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Status values an order moves through.
const (
	StatusInProgress = "in progress"
	StatusDelivered  = "delivered"
	StatusApproved   = "approved"
	StatusCancelled  = "cancelled"
)

// Review is the review sub-document embedded in an order. Both sides of the
// order may leave one.
type Review struct {
	Rating    int       `json:"rating"`
	Review    string    `json:"review"`
	CreatedAt time.Time `json:"createdAt"`
}

// Order is one gig purchase.
type Order struct {
	ID             string    `json:"id"`
	GigID          string    `json:"gigId"`
	SellerID       string    `json:"sellerId"`
	SellerUsername string    `json:"sellerUsername"`
	SellerEmail    string    `json:"sellerEmail"`
	BuyerID        string    `json:"buyerId"`
	BuyerUsername  string    `json:"buyerUsername"`
	BuyerEmail     string    `json:"buyerEmail"`
	Title          string    `json:"title"`
	Price          float64   `json:"price"`
	ServiceFee     float64   `json:"serviceFee"`
	Status         string    `json:"status"`
	BuyerReview    *Review   `json:"buyerReview,omitempty"`
	SellerReview   *Review   `json:"sellerReview,omitempty"`
	CreatedAt      time.Time `json:"createdAt"`
}

// NetPrice is what the seller earns: the price less the service fee.
func (o *Order) NetPrice() float64 {
	return o.Price - o.ServiceFee
}

// Alert is a persisted order notification. The socket push is best-effort;
// the row is what the user sees when they come back online.
type Alert struct {
	ID        int64     `json:"id"`
	OrderID   string    `json:"orderId"`
	UserTo    string    `json:"userTo"`
	Message   string    `json:"message"`
	Read      bool      `json:"read"`
	CreatedAt time.Time `json:"createdAt"`
}

// Store persists orders and their notification rows.
type Store interface {
	Create(ctx context.Context, o *Order) error
	Get(ctx context.Context, id string) (*Order, error)
	SetStatus(ctx context.Context, id, status string) error
	SetReview(ctx context.Context, id, side string, r Review) error
	RecordAlert(ctx context.Context, orderID, userTo, message string) error
	Alerts(ctx context.Context, userTo string) ([]Alert, error)
	MarkAlertsRead(ctx context.Context, userTo string) error
	Delete(ctx context.Context, id string) error
}

// PgStore is the Postgres-backed Store.
type PgStore struct {
	pool *pgxpool.Pool
}

// NewPgStore creates a PgStore.
func NewPgStore(pool *pgxpool.Pool) *PgStore {
	return &PgStore{pool: pool}
}

func (s *PgStore) Create(ctx context.Context, o *Order) error {
	if o.Status == "" {
		o.Status = StatusInProgress
	}
	if o.CreatedAt.IsZero() {
		o.CreatedAt = time.Now().UTC()
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO orders (id, gig_id, seller_id, seller_username, seller_email, buyer_id,
		                     buyer_username, buyer_email, title, price, service_fee, status, created_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`,
		o.ID, o.GigID, o.SellerID, o.SellerUsername, o.SellerEmail, o.BuyerID, o.BuyerUsername,
		o.BuyerEmail, o.Title, o.Price, o.ServiceFee, o.Status, o.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("create order %s: %w", o.ID, err)
	}
	return nil
}

func (s *PgStore) Get(ctx context.Context, id string) (*Order, error) {
	var o Order
	var buyerRating, sellerRating *int
	var buyerText, sellerText *string
	var buyerAt, sellerAt *time.Time

	err := s.pool.QueryRow(ctx,
		`SELECT id, gig_id, seller_id, seller_username, seller_email, buyer_id, buyer_username,
		        buyer_email, title, price, service_fee, status, created_at,
		        buyer_review_rating, buyer_review_text, buyer_review_at,
		        seller_review_rating, seller_review_text, seller_review_at
		 FROM orders WHERE id = $1`, id,
	).Scan(&o.ID, &o.GigID, &o.SellerID, &o.SellerUsername, &o.SellerEmail, &o.BuyerID,
		&o.BuyerUsername, &o.BuyerEmail, &o.Title, &o.Price, &o.ServiceFee, &o.Status, &o.CreatedAt,
		&buyerRating, &buyerText, &buyerAt, &sellerRating, &sellerText, &sellerAt)
	if err != nil {
		return nil, fmt.Errorf("get order %s: %w", id, err)
	}

	if buyerRating != nil {
		o.BuyerReview = &Review{Rating: *buyerRating, Review: *buyerText, CreatedAt: *buyerAt}
	}
	if sellerRating != nil {
		o.SellerReview = &Review{Rating: *sellerRating, Review: *sellerText, CreatedAt: *sellerAt}
	}
	return &o, nil
}

func (s *PgStore) SetStatus(ctx context.Context, id, status string) error {
	tag, err := s.pool.Exec(ctx, `UPDATE orders SET status = $2 WHERE id = $1`, id, status)
	if err != nil {
		return fmt.Errorf("set order %s status: %w", id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("order %s not found", id)
	}
	return nil
}

// SetReview writes one side's review sub-document. side is "buyer" or
// "seller".
func (s *PgStore) SetReview(ctx context.Context, id, side string, r Review) error {
	var query string
	switch side {
	case "buyer":
		query = `UPDATE orders SET buyer_review_rating = $2, buyer_review_text = $3, buyer_review_at = $4 WHERE id = $1`
	case "seller":
		query = `UPDATE orders SET seller_review_rating = $2, seller_review_text = $3, seller_review_at = $4 WHERE id = $1`
	default:
		return fmt.Errorf("unknown review side %q", side)
	}

	tag, err := s.pool.Exec(ctx, query, id, r.Rating, r.Review, r.CreatedAt)
	if err != nil {
		return fmt.Errorf("set %s review on order %s: %w", side, id, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("order %s not found", id)
	}
	return nil
}

// RecordAlert inserts a notification row for the addressed user.
func (s *PgStore) RecordAlert(ctx context.Context, orderID, userTo, message string) error {
	_, err := s.pool.Exec(ctx,
		`INSERT INTO order_notifications (order_id, user_to, message) VALUES ($1, $2, $3)`,
		orderID, userTo, message,
	)
	if err != nil {
		return fmt.Errorf("record alert for order %s: %w", orderID, err)
	}
	return nil
}

// Alerts lists the user's notifications, newest first.
func (s *PgStore) Alerts(ctx context.Context, userTo string) ([]Alert, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT id, order_id, user_to, message, is_read, created_at
		 FROM order_notifications WHERE user_to = $1 ORDER BY created_at DESC`, userTo,
	)
	if err != nil {
		return nil, fmt.Errorf("list alerts for %s: %w", userTo, err)
	}
	defer rows.Close()

	var alerts []Alert
	for rows.Next() {
		var a Alert
		if err := rows.Scan(&a.ID, &a.OrderID, &a.UserTo, &a.Message, &a.Read, &a.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan alert: %w", err)
		}
		alerts = append(alerts, a)
	}
	return alerts, rows.Err()
}

// MarkAlertsRead marks every unread notification for the user as read.
func (s *PgStore) MarkAlertsRead(ctx context.Context, userTo string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE order_notifications SET is_read = TRUE WHERE user_to = $1 AND NOT is_read`, userTo,
	)
	if err != nil {
		return fmt.Errorf("mark alerts read for %s: %w", userTo, err)
	}
	return nil
}

// Delete removes the order and, via ON DELETE CASCADE, its notification rows.
func (s *PgStore) Delete(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM orders WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("delete order %s: %w", id, err)
	}
	return nil
}
