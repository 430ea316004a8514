package gig

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand"

	"github.com/gigmarket/backend/internal/broker"
	"github.com/gigmarket/backend/internal/event"
)

// sampleTitles and sampleCategories feed the seeder with plausible listings.
var (
	sampleTitles = []string{
		"I will design a minimalist logo",
		"I will write SEO friendly blog posts",
		"I will build a responsive landing page",
		"I will edit your podcast audio",
		"I will translate English to Spanish",
	}
	sampleCategories = []string{
		"Graphics & Design",
		"Writing & Translation",
		"Programming & Tech",
		"Music & Audio",
	}
)

// SeedDispatcher consumes seed requests: bulk-create sample gigs for the
// given sellers so a fresh environment has data to browse. Each created gig
// goes through the normal create path, so the index and the seller gig
// counts stay consistent with real listings.
func SeedDispatcher(svc *Service) *broker.Dispatcher {
	return broker.NewDispatcher().
		Handle(event.TypeSeedGigs, func(ctx context.Context, body []byte) error {
			var req event.SeedRequest
			if err := json.Unmarshal(body, &req); err != nil {
				return fmt.Errorf("decode seed request: %w", err)
			}
			if req.Count <= 0 || len(req.Sellers) == 0 {
				return fmt.Errorf("seed request needs a positive count and at least one seller")
			}

			for i := 0; i < req.Count; i++ {
				seller := req.Sellers[i%len(req.Sellers)]
				doc := &Document{
					SellerID:             seller,
					Username:             seller,
					Title:                sampleTitles[rand.Intn(len(sampleTitles))],
					Description:          "Professionally delivered within the stated time.",
					Categories:           sampleCategories[rand.Intn(len(sampleCategories))],
					Price:                float64(5 * (1 + rand.Intn(20))),
					ExpectedDeliveryDays: 1 + rand.Intn(7),
				}
				if err := svc.Create(ctx, doc); err != nil {
					return fmt.Errorf("seed gig %d: %w", i, err)
				}
			}
			return nil
		})
}
