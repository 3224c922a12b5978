// Package upstream provides downstream message handler adapters that forward
// inbound messages to an upstream JSON-RPC server and feed the messages it
// produces back into the bridge transport.
package upstream

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/exec"
	"sync"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"

	"github.com/rpcbridge/rpcbridge/internal/port/outbound"
	"github.com/rpcbridge/rpcbridge/pkg/rpc"
)

const (
	// scannerInitialBufSize is the initial buffer size for the message scanner.
	scannerInitialBufSize = 256 * 1024 // 256KB

	// scannerMaxBufSize is the maximum buffer size for the message scanner.
	// Lines exceeding this size cause bufio.ErrTooLong and end the read loop.
	scannerMaxBufSize = 4 * 1024 * 1024 // 4MB
)

// StdioHandler runs a JSON-RPC server as a subprocess speaking
// newline-delimited JSON over stdio. Each inbound message becomes one line
// on the child's stdin; each line the child writes to stdout is decoded and
// handed to the send function (the bridge transport's Send).
// It implements the outbound.MessageHandler interface.
type StdioHandler struct {
	serverPath string
	serverArgs []string
	send       func(jsonrpc.Message) error
	logger     *slog.Logger

	mu     sync.Mutex
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stdout io.ReadCloser
	wg     sync.WaitGroup
}

// NewStdioHandler creates a handler for the given server command.
// Produced messages are emitted through send.
func NewStdioHandler(serverPath string, serverArgs []string, send func(jsonrpc.Message) error, logger *slog.Logger) *StdioHandler {
	if logger == nil {
		logger = slog.Default()
	}
	return &StdioHandler{
		serverPath: serverPath,
		serverArgs: serverArgs,
		send:       send,
		logger:     logger,
	}
}

// Start launches the upstream server subprocess and begins reading the
// messages it produces. The server's stderr is forwarded to os.Stderr.
func (h *StdioHandler) Start(ctx context.Context) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.cmd != nil {
		return errors.New("handler already started")
	}

	// Use CommandContext for cancellation support
	cmd := exec.CommandContext(ctx, h.serverPath, h.serverArgs...)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return fmt.Errorf("failed to get stdin pipe: %w", err)
	}

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		_ = stdin.Close()
		return fmt.Errorf("failed to get stdout pipe: %w", err)
	}

	cmd.Stderr = os.Stderr

	if err := cmd.Start(); err != nil {
		_ = stdin.Close()
		_ = stdout.Close()
		return fmt.Errorf("failed to start server: %w", err)
	}

	h.cmd = cmd
	h.stdin = stdin
	h.stdout = stdout

	h.wg.Add(1)
	go h.readLoop(stdout)

	return nil
}

// readLoop decodes newline-delimited messages from the child's stdout and
// forwards each to the send function. Undecodable lines are logged and
// skipped; the upstream owns its own wire discipline.
func (h *StdioHandler) readLoop(stdout io.Reader) {
	defer h.wg.Done()

	scanner := bufio.NewScanner(stdout)
	buf := make([]byte, 0, scannerInitialBufSize)
	scanner.Buffer(buf, scannerMaxBufSize)

	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		msg, err := rpc.DecodeMessage(line)
		if err != nil {
			h.logger.Warn("discarding undecodable upstream message", "error", err)
			continue
		}
		if err := h.send(msg); err != nil {
			h.logger.Warn("failed to deliver upstream message", "error", err)
		}
	}
	if err := scanner.Err(); err != nil {
		h.logger.Debug("upstream read loop ended", "error", err)
	}
}

// Handle writes one inbound message as a line of JSON to the child's stdin.
func (h *StdioHandler) Handle(msg jsonrpc.Message) {
	raw, err := rpc.EncodeMessage(msg)
	if err != nil {
		h.logger.Warn("failed to encode message for upstream", "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.stdin == nil {
		h.logger.Warn("dropping message: upstream not started")
		return
	}
	if _, err := h.stdin.Write(append(raw, '\n')); err != nil {
		h.logger.Warn("failed to write message to upstream", "error", err)
	}
}

// Wait blocks until the upstream server process terminates.
func (h *StdioHandler) Wait() error {
	h.mu.Lock()
	cmd := h.cmd
	h.mu.Unlock()

	if cmd == nil {
		return errors.New("handler not started")
	}

	return cmd.Wait()
}

// Close terminates the upstream subprocess and cleans up resources.
// It kills the process if still running and closes all pipes.
func (h *StdioHandler) Close() error {
	h.mu.Lock()

	var errs []error

	// Close stdin first to signal EOF to server
	if h.stdin != nil {
		if err := h.stdin.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close stdin: %w", err))
		}
		h.stdin = nil
	}

	cmd := h.cmd
	if cmd != nil && cmd.Process != nil {
		if err := cmd.Process.Kill(); err != nil {
			// Ignore "process already finished" errors
			if !errors.Is(err, os.ErrProcessDone) {
				errs = append(errs, fmt.Errorf("kill process: %w", err))
			}
		}
	}
	h.cmd = nil

	if h.stdout != nil {
		if err := h.stdout.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close stdout: %w", err))
		}
		h.stdout = nil
	}
	h.mu.Unlock()

	// Read loop exits on pipe close
	h.wg.Wait()

	// Reap the killed child so the watchCtx goroutine spawned by
	// exec.CommandContext can exit; the "signal: killed" error is expected.
	if cmd != nil {
		_ = cmd.Wait()
	}

	if len(errs) > 0 {
		return errors.Join(errs...)
	}
	return nil
}

// Compile-time check that StdioHandler implements MessageHandler interface.
var _ outbound.MessageHandler = (*StdioHandler)(nil)
