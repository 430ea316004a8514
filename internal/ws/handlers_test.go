package ws

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/gigmarket/backend/internal/auth"
)

func testServer(t *testing.T) (*httptest.Server, *auth.JWTService, *fakePresence) {
	t.Helper()
	p := newFakePresence()
	h := NewHub(p)
	go h.Run()

	jwtService := auth.NewJWTService("test-secret")
	r := mux.NewRouter()
	NewWSHandler(h, jwtService).RegisterRoutes(r)

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, jwtService, p
}

func TestServeWSRejectsMissingToken(t *testing.T) {
	srv, _, _ := testServer(t)

	resp, err := http.Get(srv.URL + "/ws")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestServeWSRejectsInvalidToken(t *testing.T) {
	srv, _, _ := testServer(t)

	resp, err := http.Get(srv.URL + "/ws?token=garbage")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", resp.StatusCode)
	}
}

func TestServeWSUpgradesWithValidToken(t *testing.T) {
	srv, jwtService, p := testServer(t)

	token, err := jwtService.GenerateToken("alice", "alice@example.com")
	if err != nil {
		t.Fatal(err)
	}

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial failed: %v", err)
	}
	defer conn.Close()

	waitForPresence(t, p, 1)
	if p.online()[0] != "alice" {
		t.Errorf("presence = %v, want [alice]", p.online())
	}

	// The freshly connected client receives the online broadcast.
	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if !strings.Contains(string(msg), `"online"`) {
		t.Errorf("first push = %s, want online list", msg)
	}
}
