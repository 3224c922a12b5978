package bridge

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"

	"github.com/rpcbridge/rpcbridge/pkg/rpc"
)

// ErrAlreadyStarted is returned when Start is called on a transport whose
// logical handshake has already been started. This guard is independent of
// the HTTP listener's own running guard.
var ErrAlreadyStarted = errors.New("bridge: transport already started")

// DefaultCallTimeout bounds how long a request-bearing HTTP call waits for
// its batch to complete before responding with whatever was collected.
const DefaultCallTimeout = 30 * time.Second

// Transport is the protocol-level bridge between synchronous HTTP calls and
// the asynchronous downstream message handler. Inbound messages flow out
// through the OnMessage sink; the handler pushes produced messages back in
// through Send, where responses are correlated to waiting calls.
type Transport struct {
	registry    *Registry
	callTimeout time.Duration
	logger      *slog.Logger

	mu        sync.Mutex
	started   bool
	closed    bool
	onMessage func(jsonrpc.Message)
	onError   func(error)
}

// TransportOption is a functional option for configuring a Transport.
type TransportOption func(*Transport)

// WithCallTimeout sets the per-call wait bound for request-bearing calls.
func WithCallTimeout(d time.Duration) TransportOption {
	return func(t *Transport) {
		if d > 0 {
			t.callTimeout = d
		}
	}
}

// WithLogger sets the logger for the transport.
func WithLogger(logger *slog.Logger) TransportOption {
	return func(t *Transport) {
		t.logger = logger
	}
}

// NewTransport creates a transport with an empty pending batch registry.
func NewTransport(opts ...TransportOption) *Transport {
	t := &Transport{
		registry:    NewRegistry(),
		callTimeout: DefaultCallTimeout,
		logger:      slog.Default(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Start begins the logical transport handshake. Starting twice fails with
// ErrAlreadyStarted even if the transport was closed in between; a closed
// transport is not reusable.
func (t *Transport) Start(ctx context.Context) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.started {
		return ErrAlreadyStarted
	}
	t.started = true
	return nil
}

// OnMessage sets the downstream handler invoked once per inbound message.
func (t *Transport) OnMessage(fn func(jsonrpc.Message)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onMessage = fn
}

// OnError sets the sink for internal faults. Faults never crash the process.
func (t *Transport) OnError(fn func(error)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.onError = fn
}

// ReportError forwards an internal fault to the OnError sink, if any.
func (t *Transport) ReportError(err error) {
	t.mu.Lock()
	fn := t.onError
	t.mu.Unlock()
	if fn != nil {
		fn(err)
	}
}

// Send is the delivery path for messages produced by the downstream handler.
// Only responses participate in correlation; requests or notifications
// originated downstream are ignored — the transport direction is
// server-to-client response only. Unmatched responses are dropped silently.
func (t *Transport) Send(msg jsonrpc.Message) error {
	resp, ok := msg.(*jsonrpc.Response)
	if !ok || !resp.ID.IsValid() {
		return nil
	}
	if !t.registry.Deliver(resp) {
		t.logger.Debug("dropped response with no awaiting batch", "id", rpc.IDKey(resp.ID))
	}
	return nil
}

// Forward delivers inbound messages to the downstream handler without
// blocking the caller. Messages within one call are handed over in order;
// the HTTP call's timeline never waits on the handler returning.
func (t *Transport) Forward(msgs []jsonrpc.Message) {
	t.mu.Lock()
	fn := t.onMessage
	t.mu.Unlock()
	if fn == nil {
		return
	}
	go func() {
		for _, msg := range msgs {
			fn(msg)
		}
	}()
}

// Dispatch runs the request-bearing call lifecycle: register the pending
// batch keyed to the call's distinct request identifiers, forward every
// message (requests and co-batched notifications), then race completion
// against the call timeout. The registry entry is removed exactly once in
// every outcome, and the collected responses — possibly none — are returned
// in arrival order.
func (t *Transport) Dispatch(ctx context.Context, msgs []jsonrpc.Message) []*jsonrpc.Response {
	pending := t.registry.Register(rpc.RequestIDs(msgs))
	t.Forward(msgs)
	return t.await(ctx, pending)
}

// await blocks until the batch completes, the call timeout elapses, or the
// caller's context is cancelled — whichever settles first drives the
// response. The loser's side effect is suppressed by the idempotent Remove.
func (t *Transport) await(ctx context.Context, pending *Pending) []*jsonrpc.Response {
	timer := time.NewTimer(t.callTimeout)
	defer timer.Stop()

	select {
	case <-pending.Done():
	case <-timer.C:
		t.logger.Debug("call timed out awaiting responses", "token", pending.Token())
	case <-ctx.Done():
	}
	return t.registry.Remove(pending.Token())
}

// PendingCalls returns the number of request-bearing calls currently
// awaiting responses.
func (t *Transport) PendingCalls() int {
	return t.registry.Len()
}

// DroppedResponses returns the number of responses dropped because no
// pending batch claimed their identifier.
func (t *Transport) DroppedResponses() uint64 {
	return t.registry.Drops()
}

// Close tears the transport down: every pending batch is cleared and its
// waiter resolved with what it has, so no call is left blocked. Close is
// idempotent.
func (t *Transport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	t.registry.Clear()
	return nil
}
