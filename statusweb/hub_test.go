package statusweb

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestBroadcastDeliversSnapshotToConnectedClient(t *testing.T) {
	h := NewHub()
	stop := make(chan struct{})
	defer close(stop)
	go h.Run(stop)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWs(h, w, r)
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("unexpected dial error: %v", err)
	}
	defer conn.Close()

	// Give the server goroutine time to register the client before
	// broadcasting, since registration is asynchronous over a channel.
	time.Sleep(50 * time.Millisecond)

	if err := h.Broadcast(Snapshot{Time: 1.5, Pos: [3]float64{1, 2, 3}}); err != nil {
		t.Fatalf("unexpected broadcast error: %v", err)
	}

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("unexpected error reading broadcast message: %v", err)
	}
	if !strings.Contains(string(msg), `"time":1.5`) {
		t.Fatalf("expected the broadcast message to carry the snapshot time, got %s", msg)
	}
}

func TestUnregisterOnClientDisconnect(t *testing.T) {
	h := NewHub()
	stop := make(chan struct{})
	defer close(stop)
	go h.Run(stop)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ServeWs(h, w, r)
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("unexpected dial error: %v", err)
	}
	time.Sleep(50 * time.Millisecond)
	conn.Close()
	time.Sleep(50 * time.Millisecond)

	if len(h.clients) != 0 {
		t.Fatalf("expected the hub to unregister the client after disconnect, got %d remaining", len(h.clients))
	}
}
