package api

import (
	"context"
	"sync"
	"sync/atomic"
)

type pendingRequest struct {
	cancel    context.CancelFunc
	cancelled atomic.Bool
}

// pendingRegistry maps caller-supplied request ids to cancellation handles
type pendingRegistry struct {
	mu       sync.Mutex
	requests map[string]*pendingRequest
}

func newPendingRegistry() *pendingRegistry {
	return &pendingRegistry{requests: make(map[string]*pendingRequest)}
}

// register installs a handle for id. A call already pending under the same
// id is superseded: it is cancelled and settles with a CancellationError.
func (r *pendingRegistry) register(id string, cancel context.CancelFunc) *pendingRequest {
	p := &pendingRequest{cancel: cancel}
	r.mu.Lock()
	prev := r.requests[id]
	r.requests[id] = p
	r.mu.Unlock()

	if prev != nil {
		prev.cancelled.Store(true)
		prev.cancel()
	}
	return p
}

// release removes id only if it still refers to p
func (r *pendingRegistry) release(id string, p *pendingRequest) {
	r.mu.Lock()
	if r.requests[id] == p {
		delete(r.requests, id)
	}
	r.mu.Unlock()
}

func (r *pendingRegistry) cancel(id string) bool {
	r.mu.Lock()
	p, ok := r.requests[id]
	if ok {
		delete(r.requests, id)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}
	p.cancelled.Store(true)
	p.cancel()
	return true
}

func (r *pendingRegistry) cancelAll() int {
	r.mu.Lock()
	all := r.requests
	r.requests = make(map[string]*pendingRequest)
	r.mu.Unlock()

	for _, p := range all {
		p.cancelled.Store(true)
		p.cancel()
	}
	return len(all)
}

func (r *pendingRegistry) has(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, ok := r.requests[id]
	return ok
}

func (r *pendingRegistry) len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.requests)
}
