package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/Strob0t/foodshare/internal/middleware"
)

func TestNewHub(t *testing.T) {
	hub := NewHub("")
	if hub.ConnectionCount() != 0 {
		t.Fatalf("expected 0 connections, got %d", hub.ConnectionCount())
	}
}

func TestHubSendWithoutConnections(t *testing.T) {
	hub := NewHub("")
	ctx := context.Background()

	// None of these should panic with no clients connected.
	hub.Broadcast(ctx, Message{Type: "test", Payload: []byte(`{}`)})
	hub.BroadcastEvent(ctx, EventDonationCreated, map[string]string{"id": "d1"})
	hub.SendEvent(ctx, "u1", EventDeliveryDuty, DutyEvent{OnDuty: true})
}

func TestHubEventMarshalError(t *testing.T) {
	hub := NewHub("")
	// A channel cannot be marshaled; the event is dropped and logged.
	hub.BroadcastEvent(context.Background(), "bad", make(chan int))
	hub.SendEvent(context.Background(), "u1", "bad", make(chan int))
}

func TestHubRemoveNonexistent(t *testing.T) {
	hub := NewHub("")
	_, cancel := context.WithCancel(context.Background())
	defer cancel()
	hub.remove(&conn{cancel: cancel, userID: "u1"})
}

func newHubServer(t *testing.T, hub *Hub) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(middleware.UserIdentity(http.HandlerFunc(hub.HandleWS)))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server, query string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
}

func dial(t *testing.T, srv *httptest.Server, userID string) *websocket.Conn {
	t.Helper()
	return dialURL(t, wsURL(srv, ""), userID)
}

func dialURL(t *testing.T, url, userID string) *websocket.Conn {
	t.Helper()
	opts := &websocket.DialOptions{HTTPHeader: http.Header{"X-User-ID": []string{userID}}}
	c, _, err := websocket.Dial(context.Background(), url, opts)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { _ = c.Close(websocket.StatusNormalClosure, "") })
	return c
}

func waitForConns(t *testing.T, hub *Hub, n int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ConnectionCount() != n {
		if time.Now().After(deadline) {
			t.Fatalf("expected %d connections, got %d", n, hub.ConnectionCount())
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHubSendEventTargetsUser(t *testing.T) {
	hub := NewHub("")
	srv := newHubServer(t, hub)

	alice := dial(t, srv, "alice")
	bob := dial(t, srv, "bob")
	waitForConns(t, hub, 2)

	hub.SendEvent(context.Background(), "alice", EventDeliveryDuty, DutyEvent{OnDuty: false})
	hub.BroadcastEvent(context.Background(), EventDonationCreated, map[string]string{"id": "d1"})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	// Alice sees her private event first, then the broadcast.
	for _, want := range []string{EventDeliveryDuty, EventDonationCreated} {
		_, data, err := alice.Read(ctx)
		if err != nil {
			t.Fatalf("alice read: %v", err)
		}
		var msg Message
		if err := json.Unmarshal(data, &msg); err != nil {
			t.Fatal(err)
		}
		if msg.Type != want {
			t.Fatalf("alice expected %s, got %s", want, msg.Type)
		}
	}

	// Bob only receives the broadcast.
	_, data, err := bob.Read(ctx)
	if err != nil {
		t.Fatalf("bob read: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatal(err)
	}
	if msg.Type != EventDonationCreated {
		t.Fatalf("bob expected only the broadcast, got %s", msg.Type)
	}
}

func TestHubIdentityFromHeaderNotQuery(t *testing.T) {
	hub := NewHub("")
	srv := newHubServer(t, hub)

	mallory := dialURL(t, wsURL(srv, "?user_id=alice"), "mallory")
	waitForConns(t, hub, 1)

	hub.SendEvent(context.Background(), "alice", EventCoinsChanged, CoinsEvent{Balance: 999})
	hub.SendEvent(context.Background(), "mallory", EventDeliveryDuty, DutyEvent{OnDuty: true})

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	_, data, err := mallory.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var msg Message
	if err := json.Unmarshal(data, &msg); err != nil {
		t.Fatal(err)
	}
	if msg.Type != EventDeliveryDuty {
		t.Fatalf("connection must be bound to the header identity, got %s: %s", msg.Type, data)
	}
}

func TestHubRejectsAnonymousUpgrade(t *testing.T) {
	hub := NewHub("")
	srv := newHubServer(t, hub)

	_, resp, err := websocket.Dial(context.Background(), wsURL(srv, "?user_id=alice"), nil)
	if err == nil {
		t.Fatal("expected anonymous dial to fail")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %+v", resp)
	}
	if hub.ConnectionCount() != 0 {
		t.Fatalf("expected no connections, got %d", hub.ConnectionCount())
	}
}
