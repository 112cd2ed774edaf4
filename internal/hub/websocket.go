package hub

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// TokenVerifier resolves a bearer token to a user identity. The hub never
// parses credentials itself.
type TokenVerifier func(token string) (userID string, err error)

const writeTimeout = 10 * time.Second

var upgrader = websocket.Upgrader{
	HandshakeTimeout: 10 * time.Second,
	CheckOrigin:      func(r *http.Request) bool { return true },
}

// wsChannel adapts a websocket connection to the Channel interface. Writes
// are serialized; Push after Close fails cleanly.
type wsChannel struct {
	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

// NewWSChannel wraps an established websocket connection.
func NewWSChannel(conn *websocket.Conn) Channel {
	return &wsChannel{conn: conn}
}

func (c *wsChannel) Push(event Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return websocket.ErrCloseSent
	}
	if err := c.conn.SetWriteDeadline(time.Now().Add(writeTimeout)); err != nil {
		return err
	}
	return c.conn.WriteJSON(event)
}

func (c *wsChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	_ = c.conn.WriteControl(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second),
	)
	return c.conn.Close()
}

// Handler returns the websocket endpoint. Clients authenticate with a
// ?token= query parameter and receive a connection acknowledgement; client
// ping messages are answered with a pong echoing the client timestamp.
func (h *Hub) Handler(verify TokenVerifier) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, err := verify(r.URL.Query().Get("token"))
		if err != nil || userID == "" {
			http.Error(w, "invalid token", http.StatusUnauthorized)
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			h.log.WithError(err).Warn("websocket upgrade failed")
			return
		}

		ch := NewWSChannel(conn)
		h.Connect(userID, ch)
		defer h.Disconnect(userID, ch)

		for {
			_, data, err := conn.ReadMessage()
			if err != nil {
				return
			}
			var msg map[string]interface{}
			if err := json.Unmarshal(data, &msg); err != nil {
				continue
			}
			if t, _ := msg["type"].(string); t == "ping" {
				if err := ch.Push(Pong(msg["timestamp"])); err != nil {
					return
				}
			}
		}
	})
}
