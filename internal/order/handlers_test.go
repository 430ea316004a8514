package order

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/mux"
)

func handlersRouter(t *testing.T) (*mux.Router, *memStore) {
	t.Helper()
	svc, store, _ := setup(t)
	r := mux.NewRouter()
	NewHandlers(svc).RegisterRoutes(r)
	return r, store
}

func TestPlaceOrderEndpoint(t *testing.T) {
	r, store := handlersRouter(t)

	body := `{"gigId":"g1","sellerId":"S","sellerUsername":"sam","buyerId":"B","buyerUsername":"bea","price":50,"serviceFee":5}`
	req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(body))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rr.Code, rr.Body.String())
	}
	var o Order
	if err := json.NewDecoder(rr.Body).Decode(&o); err != nil {
		t.Fatal(err)
	}
	if o.ID == "" {
		t.Error("response missing generated id")
	}
	if store.orders[o.ID].Status != StatusInProgress {
		t.Errorf("stored status = %q", store.orders[o.ID].Status)
	}
}

func TestPlaceOrderEndpointValidates(t *testing.T) {
	r, _ := handlersRouter(t)

	req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(`{"price":50}`))
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rr.Code)
	}
}

func TestOrderLifecycleEndpoints(t *testing.T) {
	r, store := handlersRouter(t)

	body := `{"id":"o1","gigId":"g1","sellerId":"S","buyerId":"B"}`
	req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(body))
	r.ServeHTTP(httptest.NewRecorder(), req)

	for path, want := range map[string]string{
		"/api/orders/o1/deliver": StatusDelivered,
		"/api/orders/o1/approve": StatusApproved,
	} {
		req := httptest.NewRequest(http.MethodPut, path, nil)
		rr := httptest.NewRecorder()
		r.ServeHTTP(rr, req)
		if rr.Code != http.StatusOK {
			t.Fatalf("%s: status = %d, want 200", path, rr.Code)
		}
		if store.orders["o1"].Status != want {
			t.Errorf("%s: status = %q, want %q", path, store.orders["o1"].Status, want)
		}
	}
}

func TestTransitionMissingOrderIs404(t *testing.T) {
	r, _ := handlersRouter(t)

	req := httptest.NewRequest(http.MethodPut, "/api/orders/ghost/approve", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rr.Code)
	}
}

func TestAlertsEndpoint(t *testing.T) {
	r, _ := handlersRouter(t)

	body := `{"id":"o1","gigId":"g1","sellerId":"S","sellerUsername":"sam","buyerId":"B"}`
	req := httptest.NewRequest(http.MethodPost, "/api/orders", strings.NewReader(body))
	r.ServeHTTP(httptest.NewRecorder(), req)

	req = httptest.NewRequest(http.MethodGet, "/api/notifications/sam", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	var alerts []Alert
	if err := json.NewDecoder(rr.Body).Decode(&alerts); err != nil {
		t.Fatal(err)
	}
	if len(alerts) != 1 || alerts[0].OrderID != "o1" {
		t.Errorf("alerts = %+v, want one alert for o1", alerts)
	}

	req = httptest.NewRequest(http.MethodPut, "/api/notifications/sam/read", nil)
	rr = httptest.NewRecorder()
	r.ServeHTTP(rr, req)
	if rr.Code != http.StatusOK {
		t.Fatalf("mark read status = %d", rr.Code)
	}
}

func TestAlertsEndpointEmptyListIsJSON(t *testing.T) {
	r, _ := handlersRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/api/notifications/nobody", nil)
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rr.Code)
	}
	if strings.TrimSpace(rr.Body.String()) != "[]" {
		t.Errorf("body = %q, want empty JSON array", rr.Body.String())
	}
}
