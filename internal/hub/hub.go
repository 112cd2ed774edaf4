// Package hub fans out real-time events to connected clients. Membership is
// ephemeral and self-healing: a channel that fails a push is dropped rather
// than surfacing the error to the producer.
package hub

import (
	"sync"

	"github.com/defidojo/dojo-backend/pkg/logger"
)

// Channel is one live delivery endpoint for a user. Push after Close must
// fail cleanly; the hub treats any push error as a dead channel.
type Channel interface {
	Push(event Event) error
	Close() error
}

// ConnectionObserver is told when channels come and go. Used to keep a
// connection gauge without the hub depending on a metrics package.
type ConnectionObserver interface {
	WSConnected()
	WSDisconnected()
}

// Hub maintains the mapping from user identity to live channels.
type Hub struct {
	mu       sync.RWMutex
	channels map[string]map[Channel]struct{}
	observer ConnectionObserver
	log      *logger.Logger
}

// New creates an empty hub.
func New(log *logger.Logger) *Hub {
	if log == nil {
		log = logger.NewDefault("hub")
	}
	return &Hub{
		channels: make(map[string]map[Channel]struct{}),
		log:      log,
	}
}

// SetObserver installs a connection observer. Call before serving traffic.
func (h *Hub) SetObserver(o ConnectionObserver) {
	h.observer = o
}

// Connect registers a channel for a user and immediately acknowledges it.
func (h *Hub) Connect(userID string, ch Channel) {
	h.mu.Lock()
	set, ok := h.channels[userID]
	if !ok {
		set = make(map[Channel]struct{})
		h.channels[userID] = set
	}
	set[ch] = struct{}{}
	h.mu.Unlock()

	if h.observer != nil {
		h.observer.WSConnected()
	}

	if err := ch.Push(Connected()); err != nil {
		h.drop(userID, ch)
		return
	}
	h.log.WithField("user_id", userID).Debug("channel connected")
}

// Disconnect removes a channel, garbage-collecting the user entry when empty.
func (h *Hub) Disconnect(userID string, ch Channel) {
	h.drop(userID, ch)
	h.log.WithField("user_id", userID).Debug("channel disconnected")
}

// SendToUser delivers an event to every channel registered for the user.
// Broken channels are removed; delivery failures never propagate.
func (h *Hub) SendToUser(userID string, event Event) {
	h.mu.RLock()
	targets := make([]Channel, 0, len(h.channels[userID]))
	for ch := range h.channels[userID] {
		targets = append(targets, ch)
	}
	h.mu.RUnlock()

	for _, ch := range targets {
		if err := ch.Push(event); err != nil {
			h.log.WithError(err).
				WithField("user_id", userID).
				WithField("event", event.Type()).
				Debug("dropping dead channel")
			h.drop(userID, ch)
		}
	}
}

// Broadcast delivers an event to every known channel with the same
// self-healing removal policy as SendToUser.
func (h *Hub) Broadcast(event Event) {
	h.mu.RLock()
	targets := make(map[string][]Channel, len(h.channels))
	for userID, set := range h.channels {
		for ch := range set {
			targets[userID] = append(targets[userID], ch)
		}
	}
	h.mu.RUnlock()

	for userID, chans := range targets {
		for _, ch := range chans {
			if err := ch.Push(event); err != nil {
				h.drop(userID, ch)
			}
		}
	}
}

// ConnectionCount reports the number of live channels for a user.
func (h *Hub) ConnectionCount(userID string) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.channels[userID])
}

func (h *Hub) drop(userID string, ch Channel) {
	removed := false
	h.mu.Lock()
	if set, ok := h.channels[userID]; ok {
		if _, present := set[ch]; present {
			delete(set, ch)
			removed = true
		}
		if len(set) == 0 {
			delete(h.channels, userID)
		}
	}
	h.mu.Unlock()
	if removed && h.observer != nil {
		h.observer.WSDisconnected()
	}
	_ = ch.Close()
}
