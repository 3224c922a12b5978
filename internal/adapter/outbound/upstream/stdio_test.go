//go:build unix

package upstream

import (
	"context"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
	"go.uber.org/goleak"

	"github.com/rpcbridge/rpcbridge/pkg/rpc"
)

func TestStdioHandlerRoundTrip(t *testing.T) {
	defer goleak.VerifyNone(t)

	// cat echoes each stdin line back on stdout, so the request we write
	// comes back through the read loop and the send function.
	c := newCollector()
	h := NewStdioHandler("cat", nil, c.send, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := h.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := h.Start(ctx); err == nil {
		t.Error("second Start() = nil, want error")
	}

	h.Handle(&jsonrpc.Request{ID: mustID("5"), Method: "ping"})

	msg := c.next(t)
	req, ok := msg.(*jsonrpc.Request)
	if !ok {
		t.Fatalf("emitted %T, want *jsonrpc.Request", msg)
	}
	if req.Method != "ping" || rpc.IDKey(req.ID) != rpc.IDKey(mustID("5")) {
		t.Errorf("round trip mismatch: method=%q id=%s", req.Method, rpc.IDKey(req.ID))
	}

	if err := h.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}
	// After Close, writes are dropped, not panics.
	h.Handle(&jsonrpc.Request{Method: "notify"})
}

func TestStdioHandlerSkipsGarbageLines(t *testing.T) {
	// The child emits one garbage line and one valid response.
	c := newCollector()
	h := NewStdioHandler("sh", []string{"-c",
		`echo 'not json'; echo '{"jsonrpc":"2.0","id":"1","result":"ok"}'`,
	}, c.send, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if err := h.Start(ctx); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	defer func() { _ = h.Close() }()

	msg := c.next(t)
	resp, ok := msg.(*jsonrpc.Response)
	if !ok {
		t.Fatalf("emitted %T, want *jsonrpc.Response", msg)
	}
	if rpc.IDKey(resp.ID) != rpc.IDKey(mustID("1")) {
		t.Errorf("response id = %s, want s:1", rpc.IDKey(resp.ID))
	}
}

func TestStdioHandlerCloseBeforeStart(t *testing.T) {
	h := NewStdioHandler("cat", nil, newCollector().send, nil)
	if err := h.Close(); err != nil {
		t.Errorf("Close() before Start = %v, want nil", err)
	}
	if err := h.Wait(); err == nil {
		t.Error("Wait() before Start = nil, want error")
	}
}
