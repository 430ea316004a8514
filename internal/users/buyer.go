package users

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Buyer is the projection of a buyer's cross-service state: the list of gigs
// they currently hold an order against.
type Buyer struct {
	ID            string   `json:"id"`
	Username      string   `json:"username"`
	PurchasedGigs []string `json:"purchasedGigs"`
}

// BuyerStore applies purchase-history events to buyer projection state.
type BuyerStore interface {
	AddPurchasedGig(ctx context.Context, buyerID, gigID string) error
	RemovePurchasedGig(ctx context.Context, buyerID, gigID string) error
}

// PgBuyerStore is the Postgres-backed BuyerStore.
type PgBuyerStore struct {
	pool *pgxpool.Pool
}

// NewPgBuyerStore creates a PgBuyerStore.
func NewPgBuyerStore(pool *pgxpool.Pool) *PgBuyerStore {
	return &PgBuyerStore{pool: pool}
}

// AddPurchasedGig appends gigID to the buyer's purchase history if absent.
// The membership check happens inside the UPDATE, so redelivery of the same
// event does not duplicate the entry.
func (s *PgBuyerStore) AddPurchasedGig(ctx context.Context, buyerID, gigID string) error {
	if buyerID == "" || gigID == "" {
		return fmt.Errorf("buyer update missing buyerId or gigId")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE buyers
		 SET purchased_gigs = array_append(purchased_gigs, $2)
		 WHERE id = $1 AND NOT ($2 = ANY(purchased_gigs))`,
		buyerID, gigID,
	)
	if err != nil {
		return fmt.Errorf("add purchased gig for buyer %s: %w", buyerID, err)
	}
	if tag.RowsAffected() == 0 {
		// Either the buyer does not exist or the gig is already present.
		// Distinguish so a missing buyer still rejects the message.
		var exists bool
		if err := s.pool.QueryRow(ctx, `SELECT EXISTS(SELECT 1 FROM buyers WHERE id = $1)`, buyerID).Scan(&exists); err != nil {
			return fmt.Errorf("check buyer %s: %w", buyerID, err)
		}
		if !exists {
			return fmt.Errorf("buyer %s not found", buyerID)
		}
	}
	return nil
}

// RemovePurchasedGig removes gigID from the buyer's purchase history.
func (s *PgBuyerStore) RemovePurchasedGig(ctx context.Context, buyerID, gigID string) error {
	if buyerID == "" || gigID == "" {
		return fmt.Errorf("buyer update missing buyerId or gigId")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE buyers SET purchased_gigs = array_remove(purchased_gigs, $2) WHERE id = $1`,
		buyerID, gigID,
	)
	if err != nil {
		return fmt.Errorf("remove purchased gig for buyer %s: %w", buyerID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("buyer %s not found", buyerID)
	}
	return nil
}

// Get loads a buyer projection.
func (s *PgBuyerStore) Get(ctx context.Context, id string) (*Buyer, error) {
	var b Buyer
	err := s.pool.QueryRow(ctx,
		`SELECT id, username, purchased_gigs FROM buyers WHERE id = $1`, id,
	).Scan(&b.ID, &b.Username, &b.PurchasedGigs)
	if err != nil {
		return nil, fmt.Errorf("get buyer %s: %w", id, err)
	}
	if b.PurchasedGigs == nil {
		b.PurchasedGigs = []string{}
	}
	return &b, nil
}
