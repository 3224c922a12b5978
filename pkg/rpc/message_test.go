package rpc

import (
	"encoding/json"
	"testing"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
)

// mustID builds an identifier from a statically known value.
func mustID(v any) jsonrpc.ID {
	id, err := jsonrpc.MakeID(v)
	if err != nil {
		panic(err)
	}
	return id
}

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		msg  jsonrpc.Message
		want Kind
	}{
		{
			name: "request with string id",
			msg:  &jsonrpc.Request{ID: mustID("1"), Method: "ping"},
			want: KindRequest,
		},
		{
			name: "request with numeric id",
			msg:  &jsonrpc.Request{ID: mustID(float64(7)), Method: "ping"},
			want: KindRequest,
		},
		{
			name: "notification has no id",
			msg:  &jsonrpc.Request{Method: "notify/progress"},
			want: KindNotification,
		},
		{
			name: "response",
			msg:  &jsonrpc.Response{ID: mustID("1"), Result: json.RawMessage(`"pong"`)},
			want: KindResponse,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.msg); got != tt.want {
				t.Errorf("Classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNotificationOnly(t *testing.T) {
	notif := &jsonrpc.Request{Method: "notify/progress"}
	req := &jsonrpc.Request{ID: mustID("1"), Method: "ping"}

	if NotificationOnly(nil) {
		t.Error("empty set should not be notification-only")
	}
	if !NotificationOnly([]jsonrpc.Message{notif, notif}) {
		t.Error("all-notification set should be notification-only")
	}
	if NotificationOnly([]jsonrpc.Message{notif, req}) {
		t.Error("mixed set should not be notification-only")
	}
}

func TestIDKeyDistinguishesStringFromNumber(t *testing.T) {
	stringKey := IDKey(mustID("1"))
	numberKey := IDKey(mustID(float64(1)))

	if stringKey == numberKey {
		t.Errorf("string id %q and numeric id %q must produce distinct keys", stringKey, numberKey)
	}
	if IDKey(mustID("a")) != IDKey(mustID("a")) {
		t.Error("equal string ids must produce equal keys")
	}
	if IDKey(jsonrpc.ID{}) != "" {
		t.Error("invalid id must produce the empty key")
	}
}

func TestRequestIDs(t *testing.T) {
	msgs := []jsonrpc.Message{
		&jsonrpc.Request{ID: mustID("2"), Method: "a"},
		&jsonrpc.Request{Method: "notify"},
		&jsonrpc.Request{ID: mustID("1"), Method: "b"},
		&jsonrpc.Request{ID: mustID("2"), Method: "c"}, // duplicate
		&jsonrpc.Response{ID: mustID("3"), Result: json.RawMessage(`{}`)},
	}

	ids := RequestIDs(msgs)
	if len(ids) != 2 {
		t.Fatalf("RequestIDs() returned %d ids, want 2: %v", len(ids), ids)
	}
	// First-occurrence order.
	if ids[0] != IDKey(mustID("2")) || ids[1] != IDKey(mustID("1")) {
		t.Errorf("RequestIDs() = %v, want [s:2 s:1]", ids)
	}
}

func TestKindString(t *testing.T) {
	if KindRequest.String() != "request" {
		t.Errorf("KindRequest.String() = %q", KindRequest.String())
	}
	if Kind(99).String() != "unknown" {
		t.Errorf("Kind(99).String() = %q", Kind(99).String())
	}
}
