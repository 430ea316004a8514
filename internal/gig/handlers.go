package gig

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/gigmarket/backend/internal/httputil"
	"github.com/gigmarket/backend/internal/search"
)

// Handlers serves the gig CRUD and search surface.
type Handlers struct {
	svc *Service
}

func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

// RegisterRoutes wires the gig endpoints.
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/gigs", h.create).Methods(http.MethodPost)
	r.HandleFunc("/api/gigs/search", h.search).Methods(http.MethodGet)
	r.HandleFunc("/api/gigs/similar/{username}", h.similar).Methods(http.MethodGet)
	r.HandleFunc("/api/gigs/{id}", h.update).Methods(http.MethodPut)
	r.HandleFunc("/api/gigs/{id}", h.delete).Methods(http.MethodDelete)
}

func (h *Handlers) create(w http.ResponseWriter, r *http.Request) {
	var doc Document
	if err := json.NewDecoder(r.Body).Decode(&doc); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid gig payload")
		return
	}
	if err := h.svc.Create(r.Context(), &doc); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, doc)
}

func (h *Handlers) update(w http.ResponseWriter, r *http.Request) {
	var partial json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&partial); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid gig payload")
		return
	}
	if err := h.svc.Update(r.Context(), mux.Vars(r)["id"], partial); err != nil {
		httputil.WriteError(w, http.StatusNotFound, err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "updated"})
}

func (h *Handlers) delete(w http.ResponseWriter, r *http.Request) {
	sellerID := r.URL.Query().Get("sellerId")
	if sellerID == "" {
		httputil.WriteError(w, http.StatusBadRequest, "sellerId is required")
		return
	}
	if err := h.svc.Delete(r.Context(), mux.Vars(r)["id"], sellerID); err != nil {
		httputil.WriteError(w, http.StatusNotFound, err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

// search translates query parameters into a structured index query.
func (h *Handlers) search(w http.ResponseWriter, r *http.Request) {
	params := r.URL.Query()
	q := search.Query{
		Text:     params.Get("query"),
		Category: params.Get("category"),
	}
	q.MinPrice, _ = strconv.ParseFloat(params.Get("minPrice"), 64)
	q.MaxPrice, _ = strconv.ParseFloat(params.Get("maxPrice"), 64)
	q.MaxDelivery, _ = strconv.Atoi(params.Get("deliveryTime"))
	q.From, _ = strconv.Atoi(params.Get("from"))
	q.Size, _ = strconv.Atoi(params.Get("size"))

	hits, err := h.svc.Search(r.Context(), q)
	if err != nil {
		httputil.WriteError(w, http.StatusBadGateway, "search unavailable")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"total": len(hits), "hits": hits})
}

func (h *Handlers) similar(w http.ResponseWriter, r *http.Request) {
	hits, err := h.svc.SimilarForUser(r.Context(), mux.Vars(r)["username"])
	if err != nil {
		httputil.WriteError(w, http.StatusBadGateway, "search unavailable")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]interface{}{"total": len(hits), "hits": hits})
}
