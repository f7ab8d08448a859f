package server

import (
	"sync"

	"github.com/tenzoki/meshd/internal/request"
)

// queue is the one mutable structure shared across the listener and worker
// scheduler tasks; every operation is atomic under mu. It is unbounded and
// in-memory only — restart loses whatever is pending, by design.
type queue struct {
	mu    sync.Mutex
	items []*request.Request
}

func newQueue() *queue {
	return &queue{}
}

// push enqueues r. Called by the listener, never by a worker.
func (q *queue) push(r *request.Request) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, r)
}

// pop removes and returns the oldest request, or (nil, false) if empty.
// Called by the worker scheduler.
func (q *queue) pop() (*request.Request, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return nil, false
	}
	r := q.items[0]
	q.items = q.items[1:]
	return r, true
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}
