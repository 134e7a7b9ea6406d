package handlers

import (
	"errors"
	"sync"
	"testing"
	"time"
)

// fakeConn records writes. Delivery happens on the subscriber's writer
// goroutine, so access is guarded and tests wait for the expected count.
type fakeConn struct {
	mu       sync.Mutex
	messages []interface{}
	fail     bool
	block    chan struct{}
}

func (c *fakeConn) WriteJSON(v interface{}) error {
	if c.block != nil {
		<-c.block
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("write on closed connection")
	}
	c.messages = append(c.messages, v)
	return nil
}

func (c *fakeConn) snapshot() []interface{} {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]interface{}(nil), c.messages...)
}

func waitForMessages(t *testing.T, c *fakeConn, want int) []interface{} {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for {
		got := c.snapshot()
		if len(got) >= want {
			return got
		}
		if time.Now().After(deadline) {
			t.Fatalf("expected %d messages, got %d", want, len(got))
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestRegistry_PublishReachesSubscribers(t *testing.T) {
	r := NewRegistry()
	a, b := &fakeConn{}, &fakeConn{}
	other := &fakeConn{}

	r.Subscribe("event-1", "conn-a", a)
	r.Subscribe("event-1", "conn-b", b)
	r.Subscribe("event-2", "conn-c", other)

	r.Publish("event-1", "hello")

	waitForMessages(t, a, 1)
	waitForMessages(t, b, 1)
	if got := other.snapshot(); len(got) != 0 {
		t.Errorf("expected event-2 viewer untouched, got %d messages", len(got))
	}
}

func TestRegistry_PublishOrder(t *testing.T) {
	r := NewRegistry()
	c := &fakeConn{}
	r.Subscribe("event-1", "conn", c)

	r.Publish("event-1", "first")
	r.Publish("event-1", "second")

	got := waitForMessages(t, c, 2)
	if got[0] != "first" || got[1] != "second" {
		t.Errorf("messages out of order: %v", got)
	}
}

func TestRegistry_FailedWriteSkipped(t *testing.T) {
	r := NewRegistry()
	broken := &fakeConn{fail: true}
	healthy := &fakeConn{}
	r.Subscribe("event-1", "broken", broken)
	r.Subscribe("event-1", "healthy", healthy)

	r.Publish("event-1", "update")

	waitForMessages(t, healthy, 1)
}

func TestRegistry_SlowViewerDoesNotStallPublish(t *testing.T) {
	r := NewRegistry()
	release := make(chan struct{})
	slow := &fakeConn{block: release}
	fast := &fakeConn{}
	r.Subscribe("event-1", "slow", slow)
	r.Subscribe("event-1", "fast", fast)

	// The slow viewer's writer is stuck on its first write; publishes must
	// still return promptly and reach the healthy viewer.
	done := make(chan struct{})
	go func() {
		for i := 0; i < sendBuffer+2; i++ {
			r.Publish("event-1", i)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("publish blocked on a slow viewer")
	}
	waitForMessages(t, fast, 1)

	close(release)
	r.Unsubscribe("event-1", "slow")
	r.Unsubscribe("event-1", "fast")
}

func TestRegistry_UnsubscribeRemovesEmptyEntries(t *testing.T) {
	r := NewRegistry()
	c := &fakeConn{}

	r.Subscribe("event-1", "conn", c)
	if n := r.ViewerCount("event-1"); n != 1 {
		t.Fatalf("expected 1 viewer, got %d", n)
	}

	r.Unsubscribe("event-1", "conn")
	if n := r.ViewerCount("event-1"); n != 0 {
		t.Errorf("expected 0 viewers, got %d", n)
	}
	if _, ok := r.targets["event-1"]; ok {
		t.Error("expected empty target entry to be removed")
	}

	// Unsubscribing twice is harmless.
	r.Unsubscribe("event-1", "conn")

	r.Publish("event-1", "nobody home")
	time.Sleep(20 * time.Millisecond)
	if got := c.snapshot(); len(got) != 0 {
		t.Errorf("expected no delivery after unsubscribe, got %d", len(got))
	}
}
