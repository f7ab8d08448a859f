// Package reply correlates an outbound exchange this node initiated with
// the reply that eventually arrives back at this node's own listener.
//
// The wire protocol never reuses one connection for both halves of an
// exchange: a peer client dials out, delivers its request, and gets back
// only the immediate {ack:true} on that connection. The real response is
// delivered later, on a fresh connection the answering node's worker dials
// back to this node's listener (see internal/server's "outbound REQ socket
// to the request's originator address"). Registry is how the listener
// hands that inbound delivery to whichever goroutine is still waiting on
// it, matched by the exchange's uuid.
package reply

import (
	"encoding/json"
	"sync"
)

// Registry tracks exchanges this node has sent and is still waiting on.
type Registry struct {
	mu      sync.Mutex
	waiters map[string]chan map[string]json.RawMessage
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{waiters: make(map[string]chan map[string]json.RawMessage)}
}

// Register reserves uuid for an in-flight exchange awaiting its reply. The
// returned cancel must be called exactly once, whether or not a reply
// arrived, to release the reservation.
func (r *Registry) Register(uuid string) (replyCh <-chan map[string]json.RawMessage, cancel func()) {
	ch := make(chan map[string]json.RawMessage, 1)
	r.mu.Lock()
	r.waiters[uuid] = ch
	r.mu.Unlock()
	return ch, func() {
		r.mu.Lock()
		delete(r.waiters, uuid)
		r.mu.Unlock()
	}
}

// Deliver hands raw to whoever is waiting on uuid, reporting whether
// anyone was. A reply with no matching waiter — arrived too late, or for
// an exchange this node never initiated — is simply dropped.
func (r *Registry) Deliver(uuid string, raw map[string]json.RawMessage) bool {
	r.mu.Lock()
	ch, ok := r.waiters[uuid]
	r.mu.Unlock()
	if !ok {
		return false
	}
	select {
	case ch <- raw:
	default:
	}
	return true
}
