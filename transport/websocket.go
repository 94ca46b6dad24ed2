package transport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
)

// ErrClosed is returned by Call after Close.
var ErrClosed = errors.New("transport/ws: closed")

// WebSocket implements Transport over a WebSocket connection.
// Responses are matched to requests by JSON-RPC id. A dropped connection is
// redialled by the next Call.
type WebSocket struct {
	url    string
	dialer websocket.Dialer
	nextID atomic.Uint64

	mu     sync.Mutex
	conn   *wsConn
	closed bool

	pendingMu sync.Mutex
	pending   map[uint64]chan []byte
}

// wsConn is one dialled connection. done is closed when its read loop exits.
type wsConn struct {
	*websocket.Conn
	writeMu sync.Mutex
	done    chan struct{}
}

// NewWebSocket creates a WebSocket transport.
// The connection is established lazily on the first Call.
func NewWebSocket(url string) *WebSocket {
	return &WebSocket{
		url:     url,
		dialer:  websocket.Dialer{HandshakeTimeout: 10 * time.Second},
		pending: make(map[uint64]chan []byte),
	}
}

// connect returns the live connection, dialling a new one if there is none.
// Dial failures are not remembered.
func (ws *WebSocket) connect(ctx context.Context) (*wsConn, error) {
	ws.mu.Lock()
	defer ws.mu.Unlock()
	if ws.closed {
		return nil, ErrClosed
	}
	if ws.conn != nil {
		return ws.conn, nil
	}

	conn, _, err := ws.dialer.DialContext(ctx, ws.url, nil)
	if err != nil {
		return nil, fmt.Errorf("transport/ws: dial: %w", err)
	}
	c := &wsConn{Conn: conn, done: make(chan struct{})}
	ws.conn = c
	go ws.readLoop(c)
	return c, nil
}

// drop forgets c so the next Call dials again.
func (ws *WebSocket) drop(c *wsConn) {
	ws.mu.Lock()
	if ws.conn == c {
		ws.conn = nil
	}
	ws.mu.Unlock()
	_ = c.Close()
}

// Call sends a JSON-RPC request over WebSocket and waits for the response.
func (ws *WebSocket) Call(ctx context.Context, method string, params ...interface{}) (json.RawMessage, error) {
	c, err := ws.connect(ctx)
	if err != nil {
		return nil, err
	}
	if params == nil {
		params = []interface{}{}
	}

	id := ws.nextID.Add(1)
	ch := make(chan []byte, 1)
	ws.pendingMu.Lock()
	ws.pending[id] = ch
	ws.pendingMu.Unlock()
	defer func() {
		ws.pendingMu.Lock()
		delete(ws.pending, id)
		ws.pendingMu.Unlock()
	}()

	c.writeMu.Lock()
	if deadline, ok := ctx.Deadline(); ok {
		_ = c.SetWriteDeadline(deadline)
	} else {
		_ = c.SetWriteDeadline(time.Time{})
	}
	err = c.WriteJSON(jsonRPCRequest{JSONRPC: "2.0", ID: id, Method: method, Params: params})
	c.writeMu.Unlock()
	if err != nil {
		ws.drop(c)
		return nil, fmt.Errorf("transport/ws: write: %w", err)
	}

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		return nil, fmt.Errorf("transport/ws: connection closed")
	case data := <-ch:
		var rpcResp jsonRPCResponse
		if err := json.Unmarshal(data, &rpcResp); err != nil {
			return nil, fmt.Errorf("transport/ws: unmarshal: %w", err)
		}
		if rpcResp.Error != nil {
			return nil, rpcResp.Error
		}
		return rpcResp.Result, nil
	}
}

// Close terminates the WebSocket connection. Later calls return ErrClosed.
func (ws *WebSocket) Close() error {
	ws.mu.Lock()
	ws.closed = true
	c := ws.conn
	ws.conn = nil
	ws.mu.Unlock()
	if c != nil {
		return c.Close()
	}
	return nil
}

// readLoop routes responses on c to waiting callers until c fails.
// On exit c is dropped and every caller waiting on it is released.
func (ws *WebSocket) readLoop(c *wsConn) {
	defer close(c.done)
	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			ws.drop(c)
			return
		}

		var envelope struct {
			ID uint64 `json:"id"`
		}
		if err := json.Unmarshal(message, &envelope); err != nil || envelope.ID == 0 {
			continue
		}

		ws.pendingMu.Lock()
		if ch, ok := ws.pending[envelope.ID]; ok {
			select {
			case ch <- message:
			default:
			}
		}
		ws.pendingMu.Unlock()
	}
}
