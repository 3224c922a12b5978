package bridge

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"

	"github.com/rpcbridge/rpcbridge/pkg/rpc"
)

// mustID builds an identifier from a statically known value.
func mustID(v any) jsonrpc.ID {
	id, err := jsonrpc.MakeID(v)
	if err != nil {
		panic(err)
	}
	return id
}

func response(id string) *jsonrpc.Response {
	return &jsonrpc.Response{ID: mustID(id), Result: json.RawMessage(`{}`)}
}

func keys(ids ...string) []string {
	out := make([]string, len(ids))
	for i, id := range ids {
		out[i] = rpc.IDKey(mustID(id))
	}
	return out
}

func assertDone(t *testing.T, p *Pending) {
	t.Helper()
	select {
	case <-p.Done():
	case <-time.After(time.Second):
		t.Fatal("batch did not complete")
	}
}

func assertNotDone(t *testing.T, p *Pending) {
	t.Helper()
	select {
	case <-p.Done():
		t.Fatal("batch completed early")
	default:
	}
}

func TestRegistryCompleteBatch(t *testing.T) {
	r := NewRegistry()
	p := r.Register(keys("1", "2"))

	if !r.Deliver(response("1")) {
		t.Error("Deliver(1) = false, want claimed")
	}
	assertNotDone(t, p)

	if !r.Deliver(response("2")) {
		t.Error("Deliver(2) = false, want claimed")
	}
	assertDone(t, p)

	collected := r.Remove(p.Token())
	if len(collected) != 2 {
		t.Fatalf("Remove() returned %d responses, want 2", len(collected))
	}
	// Arrival order, not registration order.
	if rpc.IDKey(collected[0].ID) != keys("1")[0] || rpc.IDKey(collected[1].ID) != keys("2")[0] {
		t.Errorf("collected order = [%s %s], want [1 2]",
			rpc.IDKey(collected[0].ID), rpc.IDKey(collected[1].ID))
	}
}

func TestRegistryArrivalOrderPreserved(t *testing.T) {
	r := NewRegistry()
	p := r.Register(keys("a", "b", "c"))

	r.Deliver(response("c"))
	r.Deliver(response("a"))
	r.Deliver(response("b"))
	assertDone(t, p)

	collected := r.Remove(p.Token())
	got := []string{
		rpc.IDKey(collected[0].ID),
		rpc.IDKey(collected[1].ID),
		rpc.IDKey(collected[2].ID),
	}
	want := keys("c", "a", "b")
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("arrival order = %v, want %v", got, want)
		}
	}
}

func TestRegistryUnmatchedResponseDropped(t *testing.T) {
	r := NewRegistry()
	p := r.Register(keys("1"))

	if r.Deliver(response("99")) {
		t.Error("Deliver(99) = true, want dropped")
	}
	if r.Drops() != 1 {
		t.Errorf("Drops() = %d, want 1", r.Drops())
	}
	assertNotDone(t, p)

	// String and numeric identifiers never cross-match.
	numeric := &jsonrpc.Response{ID: mustID(float64(1)), Result: json.RawMessage(`{}`)}
	if r.Deliver(numeric) {
		t.Error("numeric id 1 claimed batch keyed on string id \"1\"")
	}
}

func TestRegistryDuplicateIDsCollapse(t *testing.T) {
	r := NewRegistry()
	// Register collapses duplicates via map semantics; the caller passes
	// deduplicated keys, but a raw duplicate is harmless too.
	p := r.Register([]string{keys("1")[0], keys("1")[0]})

	r.Deliver(response("1"))
	assertDone(t, p)

	// A second response for the same slot is unmatched now.
	if r.Deliver(response("1")) {
		t.Error("second delivery for an already-filled slot was claimed")
	}

	collected := r.Remove(p.Token())
	if len(collected) != 1 {
		t.Errorf("collected %d responses, want 1", len(collected))
	}
}

func TestRegistryEmptyIDSetResolvesImmediately(t *testing.T) {
	r := NewRegistry()
	p := r.Register(nil)
	assertDone(t, p)
	if got := r.Remove(p.Token()); len(got) != 0 {
		t.Errorf("Remove() = %d responses, want 0", len(got))
	}
}

func TestRegistryRemoveIdempotent(t *testing.T) {
	r := NewRegistry()
	p := r.Register(keys("1"))
	r.Deliver(response("1"))

	first := r.Remove(p.Token())
	if len(first) != 1 {
		t.Fatalf("first Remove() = %d responses, want 1", len(first))
	}
	if second := r.Remove(p.Token()); second != nil {
		t.Errorf("second Remove() = %v, want nil", second)
	}
	if unknown := r.Remove("no-such-token"); unknown != nil {
		t.Errorf("Remove(unknown) = %v, want nil", unknown)
	}
}

func TestRegistryClearResolvesWaiters(t *testing.T) {
	r := NewRegistry()
	p1 := r.Register(keys("1"))
	p2 := r.Register(keys("2", "3"))
	r.Deliver(response("2"))

	r.Clear()
	assertDone(t, p1)
	assertDone(t, p2)
	if r.Len() != 0 {
		t.Errorf("Len() = %d after Clear, want 0", r.Len())
	}

	// Clearing an already-resolved batch must not re-close its channel.
	p3 := r.Register(keys("x"))
	r.Deliver(&jsonrpc.Response{ID: mustID("x"), Result: json.RawMessage(`{}`)})
	assertDone(t, p3)
	r.Clear()
}

func TestRegistryLen(t *testing.T) {
	r := NewRegistry()
	if r.Len() != 0 {
		t.Fatalf("Len() = %d, want 0", r.Len())
	}
	p := r.Register(keys("1"))
	if r.Len() != 1 {
		t.Errorf("Len() = %d, want 1", r.Len())
	}
	r.Remove(p.Token())
	if r.Len() != 0 {
		t.Errorf("Len() = %d after Remove, want 0", r.Len())
	}
}
