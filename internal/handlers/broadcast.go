package handlers

import (
	"sync"

	"github.com/sirupsen/logrus"
)

// Conn is the subset of a websocket connection the registry needs. Satisfied
// by *websocket.Conn.
type Conn interface {
	WriteJSON(v interface{}) error
}

// sendBuffer is how many pending updates a viewer may fall behind before
// further updates are dropped for that viewer.
const sendBuffer = 32

// subscriber pairs a connection with its outbound queue. A single writer
// goroutine drains the queue, so WriteJSON is never called concurrently for
// one connection and updates reach it in the order they were published.
type subscriber struct {
	targetID string
	connID   string
	conn     Conn
	send     chan interface{}
}

func (s *subscriber) writeLoop() {
	for msg := range s.send {
		if err := s.conn.WriteJSON(msg); err != nil {
			logrus.WithError(err).WithFields(logrus.Fields{
				"target_id": s.targetID,
				"conn_id":   s.connID,
			}).Warn("broadcast write failed")
		}
	}
}

// Registry tracks which viewer connections are watching which gallery
// (event id or quick-share id) and fans published updates out to them. It is
// constructed once in app.Run and passed by reference to everything that
// publishes or subscribes.
type Registry struct {
	mu sync.Mutex
	// targetID -> connID -> subscriber
	targets map[string]map[string]*subscriber
}

func NewRegistry() *Registry {
	return &Registry{targets: make(map[string]map[string]*subscriber)}
}

// Subscribe registers a viewer connection for a target and starts its writer.
func (r *Registry) Subscribe(targetID, connID string, c Conn) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.targets[targetID]; !ok {
		r.targets[targetID] = make(map[string]*subscriber)
	}
	if prev, ok := r.targets[targetID][connID]; ok {
		close(prev.send)
	}
	sub := &subscriber{
		targetID: targetID,
		connID:   connID,
		conn:     c,
		send:     make(chan interface{}, sendBuffer),
	}
	r.targets[targetID][connID] = sub
	go sub.writeLoop()
}

// Unsubscribe removes a viewer connection and stops its writer. The target
// entry itself is removed once its viewer set is empty.
func (r *Registry) Unsubscribe(targetID, connID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if conns, ok := r.targets[targetID]; ok {
		if sub, ok := conns[connID]; ok {
			close(sub.send)
			delete(conns, connID)
		}
		if len(conns) == 0 {
			delete(r.targets, targetID)
		}
	}
}

// Publish queues message for every connection watching targetID. Enqueueing
// under the lock keeps updates in publish order per connection; the network
// writes happen on each subscriber's writer goroutine, so one slow viewer
// never stalls the registry. A viewer whose queue is full loses the update,
// logged and skipped.
func (r *Registry) Publish(targetID string, message interface{}) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for connID, sub := range r.targets[targetID] {
		select {
		case sub.send <- message:
		default:
			logrus.WithFields(logrus.Fields{
				"target_id": targetID,
				"conn_id":   connID,
			}).Warn("viewer too far behind, dropping update")
		}
	}
}

// ViewerCount reports how many connections are watching a target.
func (r *Registry) ViewerCount(targetID string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.targets[targetID])
}
