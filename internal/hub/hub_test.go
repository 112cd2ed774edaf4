package hub

import (
	"errors"
	"sync"
	"testing"
)

// fakeChannel records pushes and can be told to start failing.
type fakeChannel struct {
	mu     sync.Mutex
	events []Event
	fail   bool
	closed bool
}

func (c *fakeChannel) Push(event Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail || c.closed {
		return errors.New("broken pipe")
	}
	c.events = append(c.events, event)
	return nil
}

func (c *fakeChannel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.closed = true
	return nil
}

func (c *fakeChannel) received() []Event {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Event, len(c.events))
	copy(out, c.events)
	return out
}

func TestHub_ConnectAcknowledges(t *testing.T) {
	h := New(nil)
	ch := &fakeChannel{}

	h.Connect("user-1", ch)

	events := ch.received()
	if len(events) != 1 || events[0].Type() != "connected" {
		t.Fatalf("expected connected ack, got %v", events)
	}
	if h.ConnectionCount("user-1") != 1 {
		t.Fatalf("channel not registered")
	}
}

func TestHub_SendToUserTargetsOnlyOwner(t *testing.T) {
	h := New(nil)
	mine := &fakeChannel{}
	other := &fakeChannel{}
	h.Connect("user-1", mine)
	h.Connect("user-2", other)

	h.SendToUser("user-1", QuestStateChanged("inst-1", "completed", 100))

	if got := mine.received(); len(got) != 2 || got[1].Type() != "quest_state_changed" {
		t.Fatalf("owner should receive the event, got %v", got)
	}
	if got := other.received(); len(got) != 1 {
		t.Fatalf("other user must not receive the event, got %v", got)
	}
}

func TestHub_DeadChannelsAreDropped(t *testing.T) {
	h := New(nil)
	healthy := &fakeChannel{}
	dead := &fakeChannel{}
	h.Connect("user-1", healthy)
	h.Connect("user-1", dead)
	dead.mu.Lock()
	dead.fail = true
	dead.mu.Unlock()

	// Failed delivery must not panic, must not affect the healthy channel,
	// and must evict the dead one.
	h.SendToUser("user-1", RewardStatusChanged("tx-1", "confirmed"))

	if h.ConnectionCount("user-1") != 1 {
		t.Fatalf("dead channel not evicted: %d connections", h.ConnectionCount("user-1"))
	}
	if !dead.closed {
		t.Fatal("dead channel not closed")
	}
	if got := healthy.received(); len(got) != 2 {
		t.Fatalf("healthy channel missed the event: %v", got)
	}

	// A later send works normally on the surviving channel.
	h.SendToUser("user-1", RewardStatusChanged("tx-2", "failed"))
	if got := healthy.received(); len(got) != 3 {
		t.Fatalf("subsequent delivery failed: %v", got)
	}
}

func TestHub_DisconnectGarbageCollectsUser(t *testing.T) {
	h := New(nil)
	ch := &fakeChannel{}
	h.Connect("user-1", ch)
	h.Disconnect("user-1", ch)

	if h.ConnectionCount("user-1") != 0 {
		t.Fatal("channel still registered after disconnect")
	}
	if !ch.closed {
		t.Fatal("disconnect should close the channel")
	}

	// Sending to a user with no channels is a no-op.
	h.SendToUser("user-1", Connected())
}

func TestHub_Broadcast(t *testing.T) {
	h := New(nil)
	a := &fakeChannel{}
	b := &fakeChannel{}
	h.Connect("user-1", a)
	h.Connect("user-2", b)

	h.Broadcast(Event{"type": "maintenance"})

	for _, ch := range []*fakeChannel{a, b} {
		got := ch.received()
		if len(got) != 2 || got[1].Type() != "maintenance" {
			t.Fatalf("broadcast missed a channel: %v", got)
		}
	}
}
