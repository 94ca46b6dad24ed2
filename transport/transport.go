// Package transport provides the JSON-RPC transport used by the chain client.
package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"
)

// Transport sends JSON-RPC requests and returns raw result payloads.
type Transport interface {
	// Call sends a JSON-RPC request and returns the result bytes.
	Call(ctx context.Context, method string, params ...interface{}) (json.RawMessage, error)

	// Close terminates the transport connection.
	Close() error
}

// DefaultTimeout bounds a single request when the caller's context has no deadline.
const DefaultTimeout = 30 * time.Second

// New picks a transport from the URL scheme: ws:// and wss:// use a
// WebSocket connection, anything else uses HTTP.
func New(url string) Transport {
	if strings.HasPrefix(url, "ws://") || strings.HasPrefix(url, "wss://") {
		return NewWebSocket(url)
	}
	return NewHTTP(url)
}

type jsonRPCRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type jsonRPCResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *Error          `json:"error,omitempty"`
}

// Error is a JSON-RPC error object returned by the node.
type Error struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *Error) Error() string {
	return fmt.Sprintf("rpc error: code=%d message=%s", e.Code, e.Message)
}
