package rpc

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/jsonrpc"
)

// ErrMalformed indicates a payload that failed JSON parsing or JSON-RPC
// schema validation. Callers map it to a protocol parse-error response.
var ErrMalformed = errors.New("malformed message")

// EncodeMessage serializes a JSON-RPC message to its wire format.
// This delegates to the MCP SDK's jsonrpc package.
func EncodeMessage(msg jsonrpc.Message) ([]byte, error) {
	return jsonrpc.EncodeMessage(msg)
}

// DecodeMessage deserializes a single JSON-RPC message and validates it
// against the message schema.
func DecodeMessage(data []byte) (jsonrpc.Message, error) {
	msg, err := jsonrpc.DecodeMessage(data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	if err := validateMessage(msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// DecodeBatch parses an HTTP payload into one or more protocol messages.
// The payload is either a single message object or a JSON array of message
// objects. It returns the decoded messages and whether the payload was an
// array. If any element fails schema validation, or the payload cannot be
// parsed at all, the whole call fails with ErrMalformed — never a partial
// result.
func DecodeBatch(data []byte) ([]jsonrpc.Message, bool, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, false, fmt.Errorf("%w: empty payload", ErrMalformed)
	}

	if trimmed[0] != '[' {
		msg, err := DecodeMessage(trimmed)
		if err != nil {
			return nil, false, err
		}
		return []jsonrpc.Message{msg}, false, nil
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(trimmed, &elems); err != nil {
		return nil, true, fmt.Errorf("%w: invalid JSON array: %v", ErrMalformed, err)
	}
	if len(elems) == 0 {
		return nil, true, fmt.Errorf("%w: empty batch", ErrMalformed)
	}

	msgs := make([]jsonrpc.Message, 0, len(elems))
	for i, elem := range elems {
		msg, err := DecodeMessage(elem)
		if err != nil {
			return nil, true, fmt.Errorf("batch element %d: %w", i, err)
		}
		msgs = append(msgs, msg)
	}
	return msgs, true, nil
}

// validateMessage checks a decoded message against the JSON-RPC 2.0 schema.
// Requests and notifications must carry a method; responses must carry an
// identifier and exactly one of result or error.
func validateMessage(msg jsonrpc.Message) error {
	switch m := msg.(type) {
	case *jsonrpc.Request:
		if m.Method == "" {
			return fmt.Errorf("%w: missing method", ErrMalformed)
		}
		return nil
	case *jsonrpc.Response:
		if !m.ID.IsValid() {
			return fmt.Errorf("%w: response missing id", ErrMalformed)
		}
		hasResult := m.Result != nil
		hasError := m.Error != nil
		if hasResult && hasError {
			return fmt.Errorf("%w: response has both result and error", ErrMalformed)
		}
		if !hasResult && !hasError {
			return fmt.Errorf("%w: response has neither result nor error", ErrMalformed)
		}
		return nil
	default:
		return fmt.Errorf("%w: unknown message type %T", ErrMalformed, msg)
	}
}
