package peerpump

import (
	"sort"
	"sync"

	"github.com/pkg/errors"
)

// ErrDuplicatePeer is returned when an address is registered twice.
var ErrDuplicatePeer = errors.New("peer already registered")

// Registry maps peer addresses to their outbound queues.
//
// Entries are written when a connection is set up and removed when it is torn
// down. Steady-state sending goes through the queue handle directly, so the
// single mutex only guards setup and teardown.
type Registry struct {
	mu     sync.Mutex
	queues map[string]*Queue
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{queues: make(map[string]*Queue)}
}

// Register stores q under addr.
func (r *Registry) Register(addr string, q *Queue) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.queues[addr]; ok {
		return errors.Wrap(ErrDuplicatePeer, addr)
	}
	r.queues[addr] = q
	return nil
}

// Remove deletes addr if it is still mapped to q. A queue registered later
// under the same address is left alone.
func (r *Registry) Remove(addr string, q *Queue) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cur, ok := r.queues[addr]; ok && cur == q {
		delete(r.queues, addr)
	}
}

// Lookup returns the queue registered for addr.
func (r *Registry) Lookup(addr string) (*Queue, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	q, ok := r.queues[addr]
	return q, ok
}

// Addrs returns the registered addresses in sorted order.
func (r *Registry) Addrs() []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	addrs := make([]string, 0, len(r.queues))
	for addr := range r.queues {
		addrs = append(addrs, addr)
	}
	sort.Strings(addrs)
	return addrs
}

// Len returns the number of registered peers.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()

	return len(r.queues)
}
