// Package http provides the inbound HTTP transport for the bridge.
//
// This package carries JSON-RPC 2.0 calls over plain synchronous HTTP: each
// POST delivers one message or a batch, and the response body aggregates
// every downstream response correlated to that call — or whatever arrived
// before the call timeout.
//
// # Usage
//
// Create and start a server around a bridge transport:
//
//	transport := bridge.NewTransport(bridge.WithCallTimeout(30 * time.Second))
//	server := http.NewServer(transport,
//	    http.WithAddr(":8080"),
//	    http.WithPath("/rpc"),
//	    http.WithAllowedOrigins([]string{"https://example.com"}),
//	    http.WithLogger(logger),
//	)
//	err := server.Start(ctx)
//
// # Endpoints
//
//	POST <path> - Send a JSON-RPC message or batch, receive correlated responses
//	GET /healthz - Health check
//	GET /metrics - Prometheus metrics
//
// Any other method on the RPC path yields 405 with a protocol-shaped error
// body (id null).
//
// # Request headers
//
//	Content-Type: application/json   - required (else 415)
//	Accept: absent, */*, or including application/json (else 406)
//
// Request bodies are capped at 4 MiB by default.
//
// # Responses
//
//	202, empty body    - notification-only calls, acknowledged before delivery
//	200, single object - request-bearing call that collected exactly one response
//	200, array         - zero or multiple responses, in collection order
//
// A call whose batch never completes returns 200 with the responses
// collected before the timeout (possibly an empty array); there is no
// explicit timeout error.
//
// # Security features
//
//   - DNS rebinding protection: Origin header validation via WithAllowedOrigins
//   - Real IP extraction: from X-Forwarded-For/X-Real-IP
//   - Payload size cap: rejected before full buffering
//
// # Middleware chain
//
// Requests pass through middleware in this order:
//
//  1. MetricsMiddleware - records duration and status
//  2. RequestIDMiddleware - extracts/generates request ID, enriches logger
//  3. RealIPMiddleware - extracts client IP from proxy headers
//  4. DNSRebindingProtection - validates Origin header
//  5. Handler - call lifecycle (classify, acknowledge or await, respond)
package http
