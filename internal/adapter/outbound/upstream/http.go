package upstream

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"

	"github.com/rpcbridge/rpcbridge/internal/port/outbound"
	"github.com/rpcbridge/rpcbridge/pkg/rpc"
)

// maxResponseBodySize is the maximum response body size from upstream.
// Prevents OOM from a malicious upstream sending unbounded responses.
const maxResponseBodySize = 10 * 1024 * 1024 // 10MB

// HTTPHandler forwards each inbound message to an upstream JSON-RPC server
// over HTTP POST and feeds the upstream's response messages back through the
// send function. It implements the outbound.MessageHandler interface.
type HTTPHandler struct {
	endpoint   string
	bearer     string
	httpClient *http.Client
	send       func(jsonrpc.Message) error
	logger     *slog.Logger

	mu      sync.Mutex
	started bool
	ctx     context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// HTTPOption is a functional option for configuring HTTPHandler.
type HTTPOption func(*HTTPHandler)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) HTTPOption {
	return func(h *HTTPHandler) {
		h.httpClient = client
	}
}

// WithTimeout sets the request timeout for the HTTP client.
func WithTimeout(d time.Duration) HTTPOption {
	return func(h *HTTPHandler) {
		if h.httpClient != nil {
			h.httpClient.Timeout = d
		}
	}
}

// WithBearerToken sets a bearer credential attached to every upstream
// request. Resolved by the caller via the lookup helpers.
func WithBearerToken(token string) HTTPOption {
	return func(h *HTTPHandler) {
		h.bearer = token
	}
}

// NewHTTPHandler creates a handler for the given upstream HTTP endpoint.
// Produced messages are emitted through send.
func NewHTTPHandler(endpoint string, send func(jsonrpc.Message) error, logger *slog.Logger, opts ...HTTPOption) *HTTPHandler {
	if logger == nil {
		logger = slog.Default()
	}
	h := &HTTPHandler{
		endpoint: endpoint,
		send:     send,
		logger:   logger,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &http.Transport{
				TLSClientConfig: &tls.Config{
					MinVersion: tls.VersionTLS12,
				},
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 5,
				IdleConnTimeout:     90 * time.Second,
			},
		},
	}

	for _, opt := range opts {
		opt(h)
	}

	return h
}

// Start marks the handler ready. HTTP upstreams have no process to spawn;
// the context bounds all in-flight forwards.
func (h *HTTPHandler) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.started {
		return errors.New("handler already started")
	}
	h.started = true
	h.ctx, h.cancel = context.WithCancel(ctx)
	return nil
}

// Handle forwards one inbound message to the upstream endpoint. Responses in
// the upstream's body (single object or array) are fed to send; an empty or
// 202 body means the upstream acknowledged a notification.
func (h *HTTPHandler) Handle(msg jsonrpc.Message) {
	h.mu.Lock()
	if !h.started {
		h.mu.Unlock()
		h.logger.Warn("dropping message: upstream not started")
		return
	}
	ctx := h.ctx
	h.wg.Add(1)
	h.mu.Unlock()
	defer h.wg.Done()

	raw, err := rpc.EncodeMessage(msg)
	if err != nil {
		h.logger.Warn("failed to encode message for upstream", "error", err)
		return
	}

	body, err := h.post(ctx, raw)
	if err != nil {
		h.logger.Warn("upstream request failed", "error", err)
		h.sendErrorResponse(msg, err)
		return
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return
	}

	msgs, _, err := rpc.DecodeBatch(body)
	if err != nil {
		h.logger.Warn("discarding undecodable upstream response", "error", err)
		return
	}
	for _, m := range msgs {
		if err := h.send(m); err != nil {
			h.logger.Warn("failed to deliver upstream message", "error", err)
		}
	}
}

// post sends one HTTP POST carrying the JSON-RPC message.
func (h *HTTPHandler) post(ctx context.Context, body []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, h.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if h.bearer != "" {
		req.Header.Set("Authorization", "Bearer "+h.bearer)
	}

	resp, err := h.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	// Read response body (limited to prevent OOM from malicious upstream)
	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBodySize))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("http status %d: %s", resp.StatusCode, string(respBody))
	}

	return respBody, nil
}

// sendErrorResponse synthesizes a JSON-RPC error response for a failed
// forward so the originating call resolves instead of waiting out its
// timeout. Error details are sanitized; internal causes stay in the logs.
func (h *HTTPHandler) sendErrorResponse(msg jsonrpc.Message, cause error) {
	req, ok := msg.(*jsonrpc.Request)
	if !ok || !req.ID.IsValid() {
		return // Notifications expect nothing back
	}

	message := "Internal error"
	if errors.Is(cause, context.Canceled) || errors.Is(cause, context.DeadlineExceeded) {
		message = "Request timeout"
	}

	resp := &jsonrpc.Response{
		ID:    req.ID,
		Error: &jsonrpc.Error{Code: -32603, Message: message},
	}
	if err := h.send(resp); err != nil {
		h.logger.Warn("failed to deliver synthesized error response", "error", err)
	}
}

// Close cancels in-flight forwards and waits for them to finish.
// Close is idempotent.
func (h *HTTPHandler) Close() error {
	h.mu.Lock()
	if !h.started {
		h.mu.Unlock()
		return nil
	}
	h.started = false
	cancel := h.cancel
	h.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	h.wg.Wait()
	return nil
}

// Compile-time check that HTTPHandler implements MessageHandler interface.
var _ outbound.MessageHandler = (*HTTPHandler)(nil)
