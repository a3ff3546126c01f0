package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func newTestClient(hub *Hub, sessionID string) *Client {
	return &Client{
		id:        "client-" + sessionID,
		hub:       hub,
		sessionID: sessionID,
		send:      make(chan []byte, 256),
	}
}

func startHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go hub.Run(ctx)
	t.Cleanup(cancel)
	return hub
}

func waitForClients(t *testing.T, hub *Hub, sessionID string, want int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if hub.ClientCount(sessionID) == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("Expected %d clients for %s, got %d", want, sessionID, hub.ClientCount(sessionID))
}

func TestHubRegisterAndUnregister(t *testing.T) {
	hub := NewHub()
	client1 := newTestClient(hub, "alice")
	client2 := newTestClient(hub, "alice")

	hub.registerClient(client1)
	hub.registerClient(client2)
	if len(hub.sessions["alice"]) != 2 {
		t.Errorf("Expected 2 clients in session, got %d", len(hub.sessions["alice"]))
	}

	hub.unregisterClient(client1)
	if !hub.sessions["alice"][client2] {
		t.Error("client2 should still be registered")
	}
	if _, ok := <-client1.send; ok {
		t.Error("Expected client1 send channel to be closed")
	}

	hub.unregisterClient(client2)
	if _, exists := hub.sessions["alice"]; exists {
		t.Error("Session should have been cleaned up after last client unregistered")
	}

	// Unregistering twice must not panic on a closed channel.
	hub.unregisterClient(client2)
}

func TestHubBroadcastOnlyToSession(t *testing.T) {
	hub := NewHub()
	alice := newTestClient(hub, "alice")
	bob := newTestClient(hub, "bob")
	hub.registerClient(alice)
	hub.registerClient(bob)

	hub.broadcastMessage(&Message{SessionID: "alice", Event: EventAnswered, Data: map[string]int{"progress": 50}})

	select {
	case data := <-alice.send:
		var message Message
		if err := json.Unmarshal(data, &message); err != nil {
			t.Fatalf("Failed to unmarshal message: %v", err)
		}
		if message.Event != EventAnswered {
			t.Errorf("Expected event %s, got %s", EventAnswered, message.Event)
		}
		if message.SessionID != "alice" {
			t.Errorf("Expected session 'alice', got %s", message.SessionID)
		}
	default:
		t.Error("Expected a message for alice")
	}

	select {
	case <-bob.send:
		t.Error("bob must not receive alice's events")
	default:
	}
}

func TestHubDropsSlowClient(t *testing.T) {
	hub := NewHub()
	slow := &Client{id: "slow", hub: hub, sessionID: "carol", send: make(chan []byte)}
	hub.registerClient(slow)

	hub.broadcastMessage(&Message{SessionID: "carol", Event: EventGameStarted})

	if _, exists := hub.sessions["carol"]; exists {
		t.Error("Expected slow client to be unregistered")
	}
}

func TestHubBroadcastEventDoesNotBlockWhenStopped(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	done := make(chan struct{})
	go func() {
		for i := 0; i < broadcastBuffer*2; i++ {
			hub.BroadcastEvent("dave", EventAnswered, nil)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("BroadcastEvent blocked on a stopped hub")
	}
	if n := hub.ClientCount("dave"); n != 0 {
		t.Errorf("Expected 0 clients on a stopped hub, got %d", n)
	}
}

func TestWebSocketReceivesEvents(t *testing.T) {
	hub := startHub(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWS(w, r, r.URL.Query().Get("session"))
	}))
	defer server.Close()

	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + "?session=erin"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("Failed to connect to WebSocket: %v", err)
	}
	defer conn.Close()

	waitForClients(t, hub, "erin", 1)

	hub.BroadcastEvent("erin", EventGameWon, map[string]string{"suggestion_name": "Pikachu"})

	conn.SetReadDeadline(time.Now().Add(time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("Failed to read WebSocket message: %v", err)
	}

	var message struct {
		SessionID string            `json:"session_id"`
		Event     string            `json:"event"`
		Data      map[string]string `json:"data"`
	}
	if err := json.Unmarshal(data, &message); err != nil {
		t.Fatalf("Failed to unmarshal message: %v", err)
	}
	if message.Event != EventGameWon {
		t.Errorf("Expected event %s, got %s", EventGameWon, message.Event)
	}
	if message.Data["suggestion_name"] != "Pikachu" {
		t.Errorf("Expected suggestion 'Pikachu', got %v", message.Data)
	}

	conn.Close()
	waitForClients(t, hub, "erin", 0)
}
