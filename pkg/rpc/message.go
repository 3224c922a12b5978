// Package rpc provides JSON-RPC 2.0 message classification and codec
// utilities for the bridge.
package rpc

import (
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
)

// Kind classifies a protocol message into exactly one variant.
type Kind int

const (
	// KindRequest is a message with a method and an identifier.
	// The sender expects a correlated response.
	KindRequest Kind = iota
	// KindNotification is a message with a method and no identifier.
	// No response is ever expected for it.
	KindNotification
	// KindResponse is a message with an identifier and a result or error.
	KindResponse
)

// String returns the string representation of the Kind.
func (k Kind) String() string {
	switch k {
	case KindRequest:
		return "request"
	case KindNotification:
		return "notification"
	case KindResponse:
		return "response"
	default:
		return "unknown"
	}
}

// Classify reports which variant the decoded message is.
// A *jsonrpc.Request without a valid ID is a notification.
func Classify(msg jsonrpc.Message) Kind {
	switch m := msg.(type) {
	case *jsonrpc.Request:
		if m.ID.IsValid() {
			return KindRequest
		}
		return KindNotification
	default:
		return KindResponse
	}
}

// IsRequest returns true if the message is a request (has an identifier).
func IsRequest(msg jsonrpc.Message) bool {
	return Classify(msg) == KindRequest
}

// IsNotification returns true if the message is a notification.
func IsNotification(msg jsonrpc.Message) bool {
	return Classify(msg) == KindNotification
}

// IsResponse returns true if the message is a response.
func IsResponse(msg jsonrpc.Message) bool {
	_, ok := msg.(*jsonrpc.Response)
	return ok
}

// NotificationOnly reports whether every message in the set is a notification.
// An empty set is not notification-only.
func NotificationOnly(msgs []jsonrpc.Message) bool {
	if len(msgs) == 0 {
		return false
	}
	for _, msg := range msgs {
		if !IsNotification(msg) {
			return false
		}
	}
	return true
}

// IDKey returns the opaque string form of a correlation identifier.
// Identifiers are never interpreted numerically: "1" (string) and 1 (number)
// produce distinct keys, matching wire-level identity.
func IDKey(id jsonrpc.ID) string {
	raw := id.Raw()
	switch v := raw.(type) {
	case string:
		return "s:" + v
	case nil:
		return ""
	default:
		// Numbers keep their JSON textual form.
		return fmt.Sprintf("n:%v", v)
	}
}

// RequestIDs returns the distinct identifier keys of the requests in the set,
// in first-occurrence order. Duplicate identifiers collapse to one slot.
func RequestIDs(msgs []jsonrpc.Message) []string {
	seen := make(map[string]struct{})
	var ids []string
	for _, msg := range msgs {
		req, ok := msg.(*jsonrpc.Request)
		if !ok || !req.ID.IsValid() {
			continue
		}
		key := IDKey(req.ID)
		if _, dup := seen[key]; dup {
			continue
		}
		seen[key] = struct{}{}
		ids = append(ids, key)
	}
	return ids
}
