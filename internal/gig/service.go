// Package gig owns gig listings. Each mutation is a dual write: the search
// index is updated synchronously, then the seller's gig count event is
// published asynchronously. The two targets are independently consistent;
// reconciliation is an out-of-band concern.
package gig

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/gigmarket/backend/internal/broker"
	"github.com/gigmarket/backend/internal/event"
	"github.com/gigmarket/backend/internal/search"
)

// RatingBucket mirrors the per-star rating slice stored on the document.
type RatingBucket struct {
	Count int `json:"count"`
	Value int `json:"value"`
}

// Document is the gig as stored in the search index.
type Document struct {
	ID                   string                  `json:"id"`
	SellerID             string                  `json:"sellerId"`
	Username             string                  `json:"username"`
	Title                string                  `json:"title"`
	Description          string                  `json:"description"`
	Categories           string                  `json:"categories"`
	SubCategories        []string                `json:"subCategories"`
	Tags                 []string                `json:"tags"`
	Price                float64                 `json:"price"`
	ExpectedDeliveryDays int                     `json:"expectedDeliveryDays"`
	RatingsCount         int                     `json:"ratingsCount"`
	RatingSum            int                     `json:"ratingSum"`
	RatingCategories     map[string]RatingBucket `json:"ratingCategories"`
	Active               bool                    `json:"active"`
	CreatedAt            time.Time               `json:"createdAt"`
}

// Index is the slice of the search client the gig service depends on.
type Index interface {
	AddDocument(ctx context.Context, id string, doc interface{}) error
	UpdateDocument(ctx context.Context, id string, partial interface{}) error
	DeleteDocument(ctx context.Context, id string) error
	ApplyReview(ctx context.Context, id string, rating int) error
	Search(ctx context.Context, q search.Query) ([]search.Hit, error)
}

// CategoryReader reads a user's memoized browse category.
type CategoryReader interface {
	GetScalar(ctx context.Context, key string) string
}

// Service updates the index and publishes seller gig-count events.
type Service struct {
	index Index
	cache CategoryReader
	pub   *broker.Publisher
}

// NewService creates a Service.
func NewService(index Index, cache CategoryReader, pub *broker.Publisher) *Service {
	return &Service{index: index, cache: cache, pub: pub}
}

// Create indexes the gig and bumps the seller's total gig count.
func (s *Service) Create(ctx context.Context, doc *Document) error {
	if doc.ID == "" {
		doc.ID = uuid.New().String()
	}
	if doc.SellerID == "" {
		return fmt.Errorf("gig without sellerId")
	}
	if doc.CreatedAt.IsZero() {
		doc.CreatedAt = time.Now().UTC()
	}
	if doc.RatingCategories == nil {
		doc.RatingCategories = emptyBuckets()
	}
	doc.Active = true

	if err := s.index.AddDocument(ctx, doc.ID, doc); err != nil {
		return err
	}

	s.pub.Publish(ctx, broker.SellerUpdate, event.SellerUpdate{
		Type:      event.TypeUpdateGigCount,
		SellerID:  doc.SellerID,
		TotalGigs: 1,
	}, fmt.Sprintf("gig %s created, seller %s gig count incremented", doc.ID, doc.SellerID))
	return nil
}

// Update applies a partial document to the index. No projection event: edits
// do not change the seller's gig count.
func (s *Service) Update(ctx context.Context, id string, partial interface{}) error {
	return s.index.UpdateDocument(ctx, id, partial)
}

// Delete removes the gig from the index and decrements the seller's count.
func (s *Service) Delete(ctx context.Context, id, sellerID string) error {
	if err := s.index.DeleteDocument(ctx, id); err != nil {
		return err
	}

	s.pub.Publish(ctx, broker.SellerUpdate, event.SellerUpdate{
		Type:      event.TypeUpdateGigCount,
		SellerID:  sellerID,
		TotalGigs: -1,
	}, fmt.Sprintf("gig %s deleted, seller %s gig count decremented", id, sellerID))
	return nil
}

// Search runs a direct query against the index.
func (s *Service) Search(ctx context.Context, q search.Query) ([]search.Hit, error) {
	return s.index.Search(ctx, q)
}

// SimilarForUser serves the "more like this" listing driven by the user's
// last-selected browse category from the cache. An empty memo degrades to an
// unfiltered query.
func (s *Service) SimilarForUser(ctx context.Context, username string) ([]search.Hit, error) {
	category := s.cache.GetScalar(ctx, "selectedCategories:"+username)
	return s.index.Search(ctx, search.Query{Category: category, Size: 5})
}

func emptyBuckets() map[string]RatingBucket {
	return map[string]RatingBucket{
		"1": {}, "2": {}, "3": {}, "4": {}, "5": {},
	}
}
