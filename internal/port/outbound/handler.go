// Package outbound defines the outbound port interfaces for the downstream
// message handlers the bridge forwards to.
package outbound

import (
	"context"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
)

// MessageHandler is the outbound port for the downstream collaborator that
// consumes inbound messages and eventually produces outbound ones. Adapters
// implement this to support different upstreams (stdio subprocess, HTTP).
//
// Produced messages are emitted through the send function supplied at
// construction time — for the bridge, that is Transport.Send, the sole
// channel by which the response correlator receives data.
type MessageHandler interface {
	// Start establishes the upstream connection or process.
	Start(ctx context.Context) error

	// Handle consumes one inbound message. It is invoked once per message,
	// after the originating call's batch is registered, and may block; the
	// bridge calls it from a delivery goroutine, never from the HTTP call's
	// timeline.
	Handle(msg jsonrpc.Message)

	// Close terminates the upstream connection and cleans up resources.
	Close() error
}
