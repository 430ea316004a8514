// Package users owns the seller and buyer projections: denormalized counters
// and purchase history mutated only by consumer handlers reacting to events
// from the order, gig and review services. The owning business logic never
// writes these fields directly.
package users

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/gigmarket/backend/internal/event"
)

// RatingBucket is one per-star slice of a seller's or gig's aggregate rating.
type RatingBucket struct {
	Count int `json:"count"`
	Value int `json:"value"`
}

// Seller is the projection of a seller's cross-service state.
type Seller struct {
	ID             string               `json:"id"`
	Username       string               `json:"username"`
	OngoingJobs    int                  `json:"ongoingJobs"`
	CompletedJobs  int                  `json:"completedJobs"`
	CancelledJobs  int                  `json:"cancelledJobs"`
	TotalGigs      int                  `json:"totalGigs"`
	TotalEarnings  float64              `json:"totalEarnings"`
	RecentDelivery *time.Time           `json:"recentDelivery,omitempty"`
	RatingsCount   int                  `json:"ratingsCount"`
	RatingSum      int                  `json:"ratingSum"`
	Ratings        map[int]RatingBucket `json:"ratingCategories"`
}

// SellerStore applies events to seller projection state. All counter moves
// are atomic at the data store so concurrent service replicas cannot lose
// increments.
type SellerStore interface {
	ApplyUpdate(ctx context.Context, ev event.SellerUpdate) error
	ApplyReview(ctx context.Context, sellerID string, rating int) error
}

// PgSellerStore is the Postgres-backed SellerStore.
type PgSellerStore struct {
	pool *pgxpool.Pool
}

// NewPgSellerStore creates a PgSellerStore.
func NewPgSellerStore(pool *pgxpool.Pool) *PgSellerStore {
	return &PgSellerStore{pool: pool}
}

// ApplyUpdate adds the event's signed deltas to the seller's counters in a
// single UPDATE. An unknown seller id is an error, which the consumer turns
// into a reject.
func (s *PgSellerStore) ApplyUpdate(ctx context.Context, ev event.SellerUpdate) error {
	if ev.SellerID == "" {
		return fmt.Errorf("seller update without sellerId")
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE sellers
		 SET ongoing_jobs    = ongoing_jobs + $2,
		     completed_jobs  = completed_jobs + $3,
		     cancelled_jobs  = cancelled_jobs + $4,
		     total_earnings  = total_earnings + $5,
		     total_gigs      = total_gigs + $6,
		     recent_delivery = COALESCE($7, recent_delivery)
		 WHERE id = $1`,
		ev.SellerID, ev.OngoingJobs, ev.CompletedJobs, ev.CancelledJobs,
		ev.TotalEarnings, ev.TotalGigs, ev.RecentDelivery,
	)
	if err != nil {
		return fmt.Errorf("update seller %s: %w", ev.SellerID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("seller %s not found", ev.SellerID)
	}
	return nil
}

// reviewColumns maps a star rating to its bucket columns. Baked strings keep
// the column names out of parameter position.
var reviewColumns = map[int]string{
	1: `UPDATE sellers SET ratings_count = ratings_count + 1, rating_sum = rating_sum + $2,
	    rating1_count = rating1_count + 1, rating1_value = rating1_value + $2 WHERE id = $1`,
	2: `UPDATE sellers SET ratings_count = ratings_count + 1, rating_sum = rating_sum + $2,
	    rating2_count = rating2_count + 1, rating2_value = rating2_value + $2 WHERE id = $1`,
	3: `UPDATE sellers SET ratings_count = ratings_count + 1, rating_sum = rating_sum + $2,
	    rating3_count = rating3_count + 1, rating3_value = rating3_value + $2 WHERE id = $1`,
	4: `UPDATE sellers SET ratings_count = ratings_count + 1, rating_sum = rating_sum + $2,
	    rating4_count = rating4_count + 1, rating4_value = rating4_value + $2 WHERE id = $1`,
	5: `UPDATE sellers SET ratings_count = ratings_count + 1, rating_sum = rating_sum + $2,
	    rating5_count = rating5_count + 1, rating5_value = rating5_value + $2 WHERE id = $1`,
}

// ApplyReview moves the seller's aggregate rating buckets for one new review.
func (s *PgSellerStore) ApplyReview(ctx context.Context, sellerID string, rating int) error {
	query, ok := reviewColumns[rating]
	if !ok {
		return fmt.Errorf("rating %d out of range", rating)
	}

	tag, err := s.pool.Exec(ctx, query, sellerID, rating)
	if err != nil {
		return fmt.Errorf("apply review for seller %s: %w", sellerID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("seller %s not found", sellerID)
	}
	return nil
}

// Get loads a seller projection, mainly for the users service HTTP surface.
func (s *PgSellerStore) Get(ctx context.Context, id string) (*Seller, error) {
	var sl Seller
	var buckets [5]RatingBucket

	err := s.pool.QueryRow(ctx,
		`SELECT id, username, ongoing_jobs, completed_jobs, cancelled_jobs, total_gigs,
		        total_earnings, recent_delivery, ratings_count, rating_sum,
		        rating1_count, rating1_value, rating2_count, rating2_value,
		        rating3_count, rating3_value, rating4_count, rating4_value,
		        rating5_count, rating5_value
		 FROM sellers WHERE id = $1`, id,
	).Scan(&sl.ID, &sl.Username, &sl.OngoingJobs, &sl.CompletedJobs, &sl.CancelledJobs,
		&sl.TotalGigs, &sl.TotalEarnings, &sl.RecentDelivery, &sl.RatingsCount, &sl.RatingSum,
		&buckets[0].Count, &buckets[0].Value, &buckets[1].Count, &buckets[1].Value,
		&buckets[2].Count, &buckets[2].Value, &buckets[3].Count, &buckets[3].Value,
		&buckets[4].Count, &buckets[4].Value)
	if err != nil {
		return nil, fmt.Errorf("get seller %s: %w", id, err)
	}

	sl.Ratings = make(map[int]RatingBucket, 5)
	for i, b := range buckets {
		sl.Ratings[i+1] = b
	}
	return &sl, nil
}

// Usernames samples up to limit seller usernames, used to spread seeded
// gigs across existing sellers.
func (s *PgSellerStore) Usernames(ctx context.Context, limit int) ([]string, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT username FROM sellers ORDER BY random() LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("sample sellers: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, fmt.Errorf("scan seller username: %w", err)
		}
		names = append(names, name)
	}
	return names, rows.Err()
}
