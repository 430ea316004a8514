package order

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"github.com/gigmarket/backend/internal/httputil"
)

// Handlers serves the order lifecycle and notification endpoints.
type Handlers struct {
	svc *Service
}

func NewHandlers(svc *Service) *Handlers {
	return &Handlers{svc: svc}
}

// RegisterRoutes wires the order endpoints.
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/orders", h.place).Methods(http.MethodPost)
	r.HandleFunc("/api/orders/{id}", h.get).Methods(http.MethodGet)
	r.HandleFunc("/api/orders/{id}/approve", h.approve).Methods(http.MethodPut)
	r.HandleFunc("/api/orders/{id}/cancel", h.cancel).Methods(http.MethodPut)
	r.HandleFunc("/api/orders/{id}/deliver", h.deliver).Methods(http.MethodPut)
	r.HandleFunc("/api/orders/{id}", h.delete).Methods(http.MethodDelete)
	r.HandleFunc("/api/notifications/{username}", h.alerts).Methods(http.MethodGet)
	r.HandleFunc("/api/notifications/{username}/read", h.markRead).Methods(http.MethodPut)
}

func (h *Handlers) place(w http.ResponseWriter, r *http.Request) {
	var o Order
	if err := json.NewDecoder(r.Body).Decode(&o); err != nil {
		httputil.WriteError(w, http.StatusBadRequest, "invalid order payload")
		return
	}
	if o.GigID == "" || o.SellerID == "" || o.BuyerID == "" {
		httputil.WriteError(w, http.StatusBadRequest, "gigId, sellerId and buyerId are required")
		return
	}
	if o.ID == "" {
		o.ID = uuid.New().String()
	}
	if err := h.svc.Place(r.Context(), &o); err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusCreated, o)
}

func (h *Handlers) get(w http.ResponseWriter, r *http.Request) {
	o, err := h.svc.Get(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		httputil.WriteError(w, http.StatusNotFound, "order not found")
		return
	}
	httputil.WriteJSON(w, http.StatusOK, o)
}

func (h *Handlers) approve(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.Approve)
}

func (h *Handlers) cancel(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.Cancel)
}

func (h *Handlers) deliver(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, h.svc.Deliver)
}

func (h *Handlers) transition(w http.ResponseWriter, r *http.Request, fn func(ctx context.Context, id string) error) {
	if err := fn(r.Context(), mux.Vars(r)["id"]); err != nil {
		httputil.WriteError(w, http.StatusNotFound, err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handlers) delete(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Delete(r.Context(), mux.Vars(r)["id"]); err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "deleted"})
}

func (h *Handlers) alerts(w http.ResponseWriter, r *http.Request) {
	alerts, err := h.svc.Alerts(r.Context(), mux.Vars(r)["username"])
	if err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if alerts == nil {
		alerts = []Alert{}
	}
	httputil.WriteJSON(w, http.StatusOK, alerts)
}

func (h *Handlers) markRead(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.MarkAlertsRead(r.Context(), mux.Vars(r)["username"]); err != nil {
		httputil.WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	httputil.WriteJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}
