package users

import (
	"context"
	"fmt"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/gigmarket/backend/internal/broker"
	"github.com/gigmarket/backend/internal/event"
	"github.com/gigmarket/backend/internal/httputil"
)

// SellerReader and BuyerReader are the read sides the HTTP surface needs.
type SellerReader interface {
	Get(ctx context.Context, id string) (*Seller, error)
	Usernames(ctx context.Context, limit int) ([]string, error)
}

type BuyerReader interface {
	Get(ctx context.Context, id string) (*Buyer, error)
}

// maxSeedSellers caps how many sellers a single seed request is spread over.
const maxSeedSellers = 10

// Handlers serves the projected seller and buyer documents and accepts
// seed requests, which it forwards to the gig service over the broker.
type Handlers struct {
	sellers SellerReader
	buyers  BuyerReader
	pub     *broker.Publisher
}

func NewHandlers(sellers SellerReader, buyers BuyerReader, pub *broker.Publisher) *Handlers {
	return &Handlers{sellers: sellers, buyers: buyers, pub: pub}
}

// RegisterRoutes wires the read endpoints and the seed trigger.
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/sellers/{id}", h.getSeller).Methods(http.MethodGet)
	r.HandleFunc("/api/buyers/{id}", h.getBuyer).Methods(http.MethodGet)
	r.HandleFunc("/api/seed/{count}", h.seedGigs).Methods(http.MethodPost)
}

func (h *Handlers) getSeller(w http.ResponseWriter, r *http.Request) {
	seller, err := h.sellers.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		httputil.WriteError(w, http.StatusNotFound, "seller not found")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, seller)
}

func (h *Handlers) getBuyer(w http.ResponseWriter, r *http.Request) {
	buyer, err := h.buyers.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		httputil.WriteError(w, http.StatusNotFound, "buyer not found")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, buyer)
}

// seedGigs publishes a request for the gig service to bulk-create sample
// listings, spread over a sample of existing sellers.
func (h *Handlers) seedGigs(w http.ResponseWriter, r *http.Request) {
	count, err := strconv.Atoi(mux.Vars(r)["count"])
	if err != nil || count <= 0 {
		httputil.WriteError(w, http.StatusBadRequest, "count must be a positive integer")
		return
	}

	sellers, err := h.sellers.Usernames(r.Context(), maxSeedSellers)
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, "could not sample sellers")
		return
	}
	if len(sellers) == 0 {
		httputil.WriteError(w, http.StatusConflict, "no sellers to assign gigs to")
		return
	}

	h.pub.Publish(r.Context(), broker.GigSeed, event.SeedRequest{
		Type:    event.TypeSeedGigs,
		Count:   count,
		Sellers: sellers,
	}, fmt.Sprintf("requested %d seeded gigs", count))

	httputil.WriteJSON(w, http.StatusAccepted, map[string]interface{}{
		"message": "seed request sent",
		"count":   count,
	})
}
