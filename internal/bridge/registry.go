// Package bridge implements the request/response correlation core: the
// pending batch registry and the protocol-level transport that routes
// asynchronously produced responses back to the HTTP call that is waiting
// for them.
package bridge

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/jsonrpc"

	"github.com/rpcbridge/rpcbridge/pkg/rpc"
)

// Pending tracks the outstanding responses for one in-flight request-bearing
// HTTP call. It is created by Registry.Register and owned by the call that
// registered it, but is mutated by concurrent deliveries under the registry
// lock.
type Pending struct {
	token string

	// remaining holds the identifier keys still awaiting a response.
	// Duplicate identifiers in one call collapse to a single slot.
	remaining map[string]struct{}

	// collected accumulates responses in arrival order.
	collected []*jsonrpc.Response

	// done fires exactly once, when the last expected response arrives
	// or when the registry is cleared. The timeout path never closes it.
	done     chan struct{}
	resolved bool
}

// Token returns the process-unique batch token.
func (p *Pending) Token() string { return p.token }

// Done returns a channel that is closed when every expected response has
// been collected, or when the registry is torn down.
func (p *Pending) Done() <-chan struct{} { return p.done }

// Registry is the shared table of pending batches. All mutation is
// serialized by a single mutex; register, deliver and remove are each
// atomic end-to-end.
type Registry struct {
	mu      sync.Mutex
	batches map[string]*Pending

	drops atomic.Uint64
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		batches: make(map[string]*Pending),
	}
}

// Register creates and stores a pending batch expecting the given identifier
// keys. The batch is visible to Deliver only once fully initialized. With an
// empty id set the batch completes immediately; callers are expected to
// classify notification-only calls before reaching the registry.
func (r *Registry) Register(ids []string) *Pending {
	p := &Pending{
		token:     uuid.New().String(),
		remaining: make(map[string]struct{}, len(ids)),
		done:      make(chan struct{}),
	}
	for _, id := range ids {
		p.remaining[id] = struct{}{}
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if len(p.remaining) == 0 {
		p.resolved = true
		close(p.done)
	}
	r.batches[p.token] = p
	return p
}

// Deliver routes a response to the batch awaiting its identifier and fires
// the batch's completion when the last expected slot fills. Responses whose
// identifier matches no open slot are dropped: the originating call may
// already have timed out and disconnected, so a silent drop is the intended
// best-effort behavior. Returns whether the response was claimed.
func (r *Registry) Deliver(resp *jsonrpc.Response) bool {
	key := rpc.IDKey(resp.ID)

	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.batches {
		if _, ok := p.remaining[key]; !ok {
			continue
		}
		delete(p.remaining, key)
		p.collected = append(p.collected, resp)
		if len(p.remaining) == 0 && !p.resolved {
			p.resolved = true
			close(p.done)
		}
		return true
	}

	r.drops.Add(1)
	return false
}

// Remove deletes the batch and returns the responses collected so far, in
// arrival order. Removing an unknown or already-removed token is a no-op
// returning nil: late timeout paths and completion paths may both reach
// here, and only the first wins.
func (r *Registry) Remove(token string) []*jsonrpc.Response {
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.batches[token]
	if !ok {
		return nil
	}
	delete(r.batches, token)
	return p.collected
}

// Clear drops every pending batch and resolves each waiter with whatever it
// has collected, so callers blocked in Await wake immediately instead of
// waiting out their timeout against a dead registry.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, p := range r.batches {
		if !p.resolved {
			p.resolved = true
			close(p.done)
		}
	}
	r.batches = make(map[string]*Pending)
}

// Len returns the number of pending batches.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.batches)
}

// Drops returns the number of responses dropped because no batch claimed
// their identifier.
func (r *Registry) Drops() uint64 {
	return r.drops.Load()
}
