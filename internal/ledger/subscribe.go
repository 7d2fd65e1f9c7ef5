package ledger

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"go.uber.org/zap"
)

// EventFilter selects events emitted by one module of a package.
type EventFilter struct {
	MoveEventModule struct {
		Package string `json:"package"`
		Module  string `json:"module"`
	} `json:"MoveEventModule"`
}

// ModuleFilter builds an EventFilter for package::module.
func ModuleFilter(pkg, module string) EventFilter {
	var f EventFilter
	f.MoveEventModule.Package = pkg
	f.MoveEventModule.Module = module
	return f
}

// Event is a contract event delivered by a subscription.
type Event struct {
	ID struct {
		TxDigest string `json:"txDigest"`
		EventSeq string `json:"eventSeq"`
	} `json:"id"`
	PackageID         string          `json:"packageId"`
	TransactionModule string          `json:"transactionModule"`
	Sender            string          `json:"sender"`
	Type              string          `json:"type"`
	ParsedJSON        json.RawMessage `json:"parsedJson"`
	TimestampMs       string          `json:"timestampMs"`
}

// Reconnect backoff for a subscription whose socket fails.
var (
	reconnectDelay    = 500 * time.Millisecond
	maxReconnectDelay = 30 * time.Second
)

// Subscription is a live event stream. A dropped socket is redialed and
// resubscribed until Close is called or the context ends. Close must be
// called to release it.
type Subscription struct {
	client *Client
	filter EventFilter
	ctx    context.Context
	cancel context.CancelFunc
	logger *zap.Logger

	mu   sync.Mutex
	conn *websocket.Conn
	id   json.RawMessage

	done      chan struct{}
	closeOnce sync.Once
}

type subscribeNotification struct {
	Method string `json:"method"`
	Params struct {
		Subscription json.RawMessage `json:"subscription"`
		Result       Event           `json:"result"`
	} `json:"params"`
}

// SubscribeEvents opens a websocket, subscribes with filter and calls
// handler for every event on a dedicated reader goroutine. The first
// subscription must succeed; later socket failures are retried with
// backoff.
func (c *Client) SubscribeEvents(ctx context.Context, filter EventFilter, handler func(Event)) (*Subscription, error) {
	if c.wsURL == "" {
		return nil, errors.New("event subscriptions disabled: no websocket URL configured")
	}

	conn, id, err := c.openSubscription(ctx, filter)
	if err != nil {
		return nil, err
	}

	subCtx, cancel := context.WithCancel(ctx)
	sub := &Subscription{
		client: c,
		filter: filter,
		ctx:    subCtx,
		cancel: cancel,
		logger: c.logger,
		conn:   conn,
		id:     id,
		done:   make(chan struct{}),
	}
	c.logger.Info("event subscription opened", zap.String("subscription", string(id)))

	go sub.run(conn, handler)
	go func() {
		select {
		case <-subCtx.Done():
			sub.Close()
		case <-sub.done:
		}
	}()

	return sub, nil
}

// openSubscription dials the websocket and waits for the subscribe ack.
func (c *Client) openSubscription(ctx context.Context, filter EventFilter) (*websocket.Conn, json.RawMessage, error) {
	conn, _, err := c.dialer.DialContext(ctx, c.wsURL, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("dial %s: %w", c.wsURL, err)
	}

	req := rpcRequest{
		JSONRPC: "2.0",
		ID:      c.nextID.Add(1),
		Method:  "suix_subscribeEvent",
		Params:  []interface{}{filter},
	}
	if err := conn.WriteJSON(req); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("send subscribe: %w", err)
	}

	deadline, ok := ctx.Deadline()
	if !ok {
		deadline = time.Now().Add(c.dialer.HandshakeTimeout)
	}
	conn.SetReadDeadline(deadline)

	var ack rpcResponse
	if err := conn.ReadJSON(&ack); err != nil {
		conn.Close()
		return nil, nil, fmt.Errorf("read subscribe ack: %w", err)
	}
	conn.SetReadDeadline(time.Time{})
	if ack.Error != nil {
		conn.Close()
		return nil, nil, ack.Error
	}
	return conn, ack.Result, nil
}

func (s *Subscription) run(conn *websocket.Conn, handler func(Event)) {
	defer close(s.done)
	for {
		err := read(conn, handler)
		if s.ctx.Err() != nil {
			return
		}
		s.logger.Warn("event subscription lost, reconnecting", zap.Error(err))

		if conn = s.reconnect(); conn == nil {
			return
		}
	}
}

func read(conn *websocket.Conn, handler func(Event)) error {
	for {
		var msg subscribeNotification
		if err := conn.ReadJSON(&msg); err != nil {
			return err
		}
		if msg.Method != "suix_subscribeEvent" {
			continue
		}
		handler(msg.Params.Result)
	}
}

// reconnect redials until it succeeds or the subscription is closed, in
// which case it returns nil.
func (s *Subscription) reconnect() *websocket.Conn {
	delay := reconnectDelay
	timer := time.NewTimer(delay)
	defer timer.Stop()

	for {
		select {
		case <-s.ctx.Done():
			return nil
		case <-timer.C:
		}

		conn, id, err := s.client.openSubscription(s.ctx, s.filter)
		if err == nil {
			s.mu.Lock()
			if s.ctx.Err() != nil {
				s.mu.Unlock()
				conn.Close()
				return nil
			}
			s.conn, s.id = conn, id
			s.mu.Unlock()
			s.logger.Info("event subscription restored", zap.String("subscription", string(id)))
			return conn
		}

		delay *= 2
		if delay > maxReconnectDelay {
			delay = maxReconnectDelay
		}
		s.logger.Warn("event subscription reconnect failed", zap.Duration("retry_in", delay), zap.Error(err))
		timer.Reset(delay)
	}
}

// Done is closed once the reader goroutine has exited.
func (s *Subscription) Done() <-chan struct{} {
	return s.done
}

// Close unsubscribes and closes the socket. It is safe to call more than
// once and from any goroutine.
func (s *Subscription) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		s.cancel()
		conn, id := s.conn, s.id
		s.mu.Unlock()

		deadline := time.Now().Add(2 * time.Second)
		conn.SetWriteDeadline(deadline)
		_ = conn.WriteJSON(rpcRequest{
			JSONRPC: "2.0",
			ID:      0,
			Method:  "suix_unsubscribeEvent",
			Params:  []interface{}{id},
		})
		_ = conn.WriteControl(websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
		conn.Close()
		<-s.done
		s.logger.Info("event subscription closed", zap.String("subscription", string(id)))
	})
}
