// Package ledger is the JSON-RPC client for the ledger node that hosts the
// pixel_war contract. It reads objects and dynamic fields, submits signed
// transactions, and subscribes to contract events over a websocket. Object
// payloads are decoded strictly at this boundary so nothing untyped flows
// further into the application.
package ledger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

const defaultRPCURL = "https://fullnode.testnet.sui.io:443"

var (
	// ErrObjectNotFound means the requested object does not exist on the
	// network the client is connected to.
	ErrObjectNotFound = errors.New("object not found")
	// ErrMalformedObject means an object was returned but its fields did
	// not match the expected shape.
	ErrMalformedObject = errors.New("malformed object")
	// ErrTimeout means the read did not complete before its deadline.
	ErrTimeout = errors.New("request timeout")
)

// RPCError is an error object returned by the node.
type RPCError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

func (e *RPCError) Error() string {
	return fmt.Sprintf("RPC error %d: %s", e.Code, e.Message)
}

// Client talks to a single ledger node.
type Client struct {
	rpcURL string
	wsURL  string
	client *http.Client
	dialer *websocket.Dialer
	logger *zap.Logger
	nextID atomic.Uint64
}

// NewClient creates a ledger client. An empty rpcURL selects the public
// testnet node; an empty wsURL disables event subscriptions.
func NewClient(rpcURL, wsURL string, logger *zap.Logger) *Client {
	if rpcURL == "" {
		rpcURL = defaultRPCURL
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Client{
		rpcURL: rpcURL,
		wsURL:  wsURL,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
		dialer: &websocket.Dialer{
			HandshakeTimeout: 10 * time.Second,
		},
		logger: logger.Named("ledger"),
	}
}

type rpcRequest struct {
	JSONRPC string        `json:"jsonrpc"`
	ID      uint64        `json:"id"`
	Method  string        `json:"method"`
	Params  []interface{} `json:"params"`
}

type rpcResponse struct {
	JSONRPC string          `json:"jsonrpc"`
	ID      uint64          `json:"id"`
	Result  json.RawMessage `json:"result"`
	Error   *RPCError       `json:"error"`
}

// call performs one JSON-RPC request and decodes result into out.
func (c *Client) call(ctx context.Context, method string, params []interface{}, out interface{}) error {
	reqBytes, err := json.Marshal(rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  method,
		Params:  params,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal RPC request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.rpcURL, bytes.NewReader(reqBytes))
	if err != nil {
		return fmt.Errorf("failed to build RPC request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return fmt.Errorf("%s: %w", method, ErrTimeout)
		}
		return fmt.Errorf("failed to send RPC request: %w", err)
	}
	defer resp.Body.Close()

	respBytes, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read RPC response: %w", err)
	}

	var rpcResp rpcResponse
	if err := json.Unmarshal(respBytes, &rpcResp); err != nil {
		return fmt.Errorf("failed to parse RPC response: %w (status %d)", err, resp.StatusCode)
	}

	if rpcResp.Error != nil {
		c.logger.Debug("rpc error", zap.String("method", method), zap.Int("code", rpcResp.Error.Code), zap.String("message", rpcResp.Error.Message))
		return rpcResp.Error
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(rpcResp.Result, out); err != nil {
		return fmt.Errorf("failed to decode %s result: %w", method, err)
	}
	return nil
}
