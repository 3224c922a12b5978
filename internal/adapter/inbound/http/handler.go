package http

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"mime"
	"net/http"
	"strings"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"

	"github.com/rpcbridge/rpcbridge/internal/bridge"
	"github.com/rpcbridge/rpcbridge/pkg/rpc"
)

// maxRequestBodySize is the default maximum allowed request body size (4 MiB).
const maxRequestBodySize = 4 << 20

// JSON-RPC error codes surfaced by the HTTP envelope.
const (
	codeParseError  = -32700
	codeServerError = -32000
)

// callHandler creates the POST handler that drives one call through the
// lifecycle: classify, acknowledge or register-and-await, respond.
func callHandler(transport *bridge.Transport, maxBodyBytes int64) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		// Envelope violations terminate the call before classification.
		if r.Method != http.MethodPost {
			writeProtocolError(w, http.StatusMethodNotAllowed, codeServerError, "Method not allowed", nil)
			return
		}
		if !acceptable(r.Header.Get("Accept")) {
			writeProtocolError(w, http.StatusNotAcceptable, codeServerError, "Not acceptable: client must accept application/json", nil)
			return
		}
		if !isJSONContentType(r.Header.Get("Content-Type")) {
			writeProtocolError(w, http.StatusUnsupportedMediaType, codeServerError, "Unsupported media type: Content-Type must be application/json", nil)
			return
		}

		// Cap the payload before buffering it.
		r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
		defer func() { _ = r.Body.Close() }()

		body, err := io.ReadAll(r.Body)
		if err != nil {
			var maxBytesErr *http.MaxBytesError
			if errors.As(err, &maxBytesErr) {
				writeProtocolError(w, http.StatusBadRequest, codeParseError, "Parse error", "request body too large")
				return
			}
			writeProtocolError(w, http.StatusBadRequest, codeParseError, "Parse error", "failed to read request body")
			return
		}

		logger := LoggerFromContext(r.Context())

		msgs, isBatch, err := rpc.DecodeBatch(body)
		if err != nil {
			logger.Debug("rejecting malformed payload", "error", err)
			writeProtocolError(w, http.StatusBadRequest, codeParseError, "Parse error", err.Error())
			return
		}

		// Notification-only calls are acknowledged before delivery; the
		// handler runs after the envelope commitment, fire-and-forget.
		if rpc.NotificationOnly(msgs) {
			logger.Debug("acknowledging notification-only call", "messages", len(msgs))
			w.WriteHeader(http.StatusAccepted)
			transport.Forward(msgs)
			return
		}

		// Request-bearing: register, forward, await, respond.
		responses := transport.Dispatch(r.Context(), msgs)
		logger.Debug("call resolved",
			"batch", isBatch,
			"messages", len(msgs),
			"responses", len(responses),
		)
		writeResponses(w, responses)
	})
}

// acceptable reports whether the Accept header permits application/json.
// Absent, */*, or any value including application/json is acceptable.
func acceptable(accept string) bool {
	if accept == "" {
		return true
	}
	for _, part := range strings.Split(accept, ",") {
		mediaType, _, err := mime.ParseMediaType(strings.TrimSpace(part))
		if err != nil {
			continue
		}
		switch mediaType {
		case "*/*", "application/json":
			return true
		}
	}
	return false
}

// isJSONContentType reports whether the Content-Type includes application/json.
func isJSONContentType(contentType string) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json"
}

// writeResponses writes the aggregated HTTP response body: a single message
// object when exactly one response was collected, otherwise an array in
// collection order. A timed-out call with nothing collected yields an empty
// array with 200 and no error envelope; that best-effort contract is
// deliberate.
//
// Messages are encoded individually and the array assembled by hand because
// the SDK's ID type doesn't marshal correctly through interface{};
// EncodeMessage is the reliable serialization path.
func writeResponses(w http.ResponseWriter, responses []*jsonrpc.Response) {
	encoded := make([][]byte, 0, len(responses))
	for _, resp := range responses {
		raw, err := rpc.EncodeMessage(resp)
		if err != nil {
			writeProtocolError(w, http.StatusInternalServerError, codeServerError, "Internal error", nil)
			return
		}
		encoded = append(encoded, raw)
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if len(encoded) == 1 {
		_, _ = w.Write(encoded[0])
		return
	}
	_, _ = w.Write([]byte("["))
	_, _ = w.Write(bytes.Join(encoded, []byte(",")))
	_, _ = w.Write([]byte("]"))
}

// protocolError is the JSON-RPC error envelope carried by HTTP error bodies.
type protocolError struct {
	JSONRPC string             `json:"jsonrpc"`
	Error   protocolErrorField `json:"error"`
	ID      interface{}        `json:"id"`
}

type protocolErrorField struct {
	Code    int         `json:"code"`
	Message string      `json:"message"`
	Data    interface{} `json:"data,omitempty"`
}

// writeProtocolError writes a protocol-shaped error body with the given HTTP
// status. The id is null: these errors never correlate to a single request.
func writeProtocolError(w http.ResponseWriter, status, code int, message string, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	errResp := protocolError{
		JSONRPC: "2.0",
		Error: protocolErrorField{
			Code:    code,
			Message: message,
			Data:    data,
		},
	}

	_ = json.NewEncoder(w).Encode(errResp)
}

// healthHandler returns an HTTP handler that responds with 200 OK for health checks.
func healthHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
}
