package hub

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func wsURL(server *httptest.Server, token string) string {
	return "ws" + strings.TrimPrefix(server.URL, "http") + "?token=" + token
}

func verifyStub(token string) (string, error) {
	if token == "good" {
		return "user-1", nil
	}
	return "", errors.New("bad token")
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var event Event
	if err := conn.ReadJSON(&event); err != nil {
		t.Fatalf("read event: %v", err)
	}
	return event
}

func TestWebSocket_RejectsBadToken(t *testing.T) {
	h := New(nil)
	server := httptest.NewServer(h.Handler(verifyStub))
	defer server.Close()

	resp, err := http.Get(server.URL + "?token=bad")
	if err != nil {
		t.Fatalf("request: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", resp.StatusCode)
	}
}

func TestWebSocket_ConnectAckAndDelivery(t *testing.T) {
	h := New(nil)
	server := httptest.NewServer(h.Handler(verifyStub))
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(server, "good"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if event := readEvent(t, conn); event.Type() != "connected" {
		t.Fatalf("expected connected ack, got %v", event)
	}

	// Wait for registration to settle, then deliver a server event.
	deadline := time.Now().Add(time.Second)
	for h.ConnectionCount("user-1") == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	h.SendToUser("user-1", QuestStateChanged("inst-1", "completed", 100))

	event := readEvent(t, conn)
	if event.Type() != "quest_state_changed" || event["quest_instance_id"] != "inst-1" {
		t.Fatalf("unexpected event: %v", event)
	}
}

func TestWebSocket_PingPong(t *testing.T) {
	h := New(nil)
	server := httptest.NewServer(h.Handler(verifyStub))
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(server, "good"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	readEvent(t, conn) // connected ack

	if err := conn.WriteJSON(map[string]interface{}{"type": "ping", "timestamp": "123"}); err != nil {
		t.Fatalf("write ping: %v", err)
	}

	event := readEvent(t, conn)
	if event.Type() != "pong" || event["timestamp"] != "123" {
		t.Fatalf("expected pong echoing timestamp, got %v", event)
	}
	if event["server_time"] == nil {
		t.Fatalf("pong missing server time: %v", event)
	}
}

func TestWebSocket_DisconnectCleansUp(t *testing.T) {
	h := New(nil)
	server := httptest.NewServer(h.Handler(verifyStub))
	defer server.Close()

	conn, _, err := websocket.DefaultDialer.Dial(wsURL(server, "good"), nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	readEvent(t, conn)
	conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for h.ConnectionCount("user-1") != 0 {
		if time.Now().After(deadline) {
			t.Fatal("connection not cleaned up after close")
		}
		time.Sleep(10 * time.Millisecond)
	}
}
