package transport

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/gorilla/websocket"
	logger "github.com/sirupsen/logrus"

	"github.com/chronicleprotocol/scalerpc/core/clienterrors"
	"github.com/chronicleprotocol/scalerpc/core/rpc"
)

const (
	defaultHandshakeTimeout = 10 * time.Second
	defaultPingInterval     = 20 * time.Second
	defaultRedialDelay      = 500 * time.Millisecond
	defaultRedialMaxDelay   = 30 * time.Second
	subscriptionBuffer      = 512
	orphanLimit             = 16
	orphanIDLimit           = 64
)

type WSOptions struct {
	URL           string
	AllowInsecure bool
	Header        http.Header
	// HandshakeTimeout defaults to 10s.
	HandshakeTimeout time.Duration
	// PingInterval defaults to 20s. The connection is considered lost when
	// nothing is read for two intervals.
	PingInterval time.Duration
	// RedialAttempts limits reconnection attempts after the connection is
	// lost. Zero retries until the client is closed.
	RedialAttempts uint
	RedialDelay    time.Duration
}

type jsonError struct {
	Code    int             `json:"code"`
	Message string          `json:"message"`
	Data    json.RawMessage `json:"data,omitempty"`
}

type message struct {
	ID     *uint64         `json:"id,omitempty"`
	Method string          `json:"method,omitempty"`
	Params json.RawMessage `json:"params,omitempty"`
	Result json.RawMessage `json:"result,omitempty"`
	Error  *jsonError      `json:"error,omitempty"`
}

type request struct {
	JSONRPC string `json:"jsonrpc"`
	ID      uint64 `json:"id"`
	Method  string `json:"method"`
	Params  []any  `json:"params"`
}

type notification struct {
	Subscription json.RawMessage `json:"subscription"`
	Result       json.RawMessage `json:"result"`
}

type response struct {
	result json.RawMessage
	err    error
}

// WS is a JSON-RPC client over a single websocket. Responses are routed by
// request id and notifications by subscription id. When the connection drops
// it is redialed in the background; requests and subscriptions that were in
// flight fail with DisconnectedWillReconnect.
type WS struct {
	opts   WSOptions
	ctx    context.Context
	cancel context.CancelFunc
	nextID atomic.Uint64

	mu        sync.Mutex
	conn      *websocket.Conn
	closedErr error
	pending   map[uint64]chan response
	subs      map[string]*wsSubscription
	orphans   map[string][]json.RawMessage

	writeMu sync.Mutex
	wg      sync.WaitGroup
}

var _ rpc.Transport = (*WS)(nil)

// DialWS connects to opts.URL. ctx bounds the initial dial only; the returned
// client keeps reconnecting until Close is called.
func DialWS(ctx context.Context, opts WSOptions) (*WS, error) {
	if err := checkURL(opts.URL, opts.AllowInsecure, "wss", "ws"); err != nil {
		return nil, err
	}
	if opts.HandshakeTimeout == 0 {
		opts.HandshakeTimeout = defaultHandshakeTimeout
	}
	if opts.PingInterval == 0 {
		opts.PingInterval = defaultPingInterval
	}
	if opts.RedialDelay == 0 {
		opts.RedialDelay = defaultRedialDelay
	}
	c := &WS{
		opts:    opts,
		pending: make(map[uint64]chan response),
		subs:    make(map[string]*wsSubscription),
		orphans: make(map[string][]json.RawMessage),
	}
	c.ctx, c.cancel = context.WithCancel(context.Background())
	if err := c.connect(ctx); err != nil {
		c.cancel()
		return nil, clienterrors.ClientError(err)
	}
	return c, nil
}

// Close stops reconnecting and closes the connection. Pending requests and
// subscriptions fail with a client error.
func (c *WS) Close() error {
	c.cancel()
	c.mu.Lock()
	conn := c.conn
	c.conn = nil
	if c.closedErr == nil {
		c.closedErr = clienterrors.ClientError(errors.New("client closed"))
	}
	c.failAll(c.closedErr)
	c.mu.Unlock()
	var err error
	if conn != nil {
		err = conn.Close()
	}
	c.wg.Wait()
	return err
}

func (c *WS) connect(ctx context.Context) error {
	dialer := websocket.Dialer{HandshakeTimeout: c.opts.HandshakeTimeout}
	conn, _, err := dialer.DialContext(ctx, c.opts.URL, c.opts.Header)
	if err != nil {
		return fmt.Errorf("failed to dial %s: %w", c.opts.URL, err)
	}
	deadline := 2 * c.opts.PingInterval
	_ = conn.SetReadDeadline(time.Now().Add(deadline))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(deadline))
	})

	c.mu.Lock()
	if c.ctx.Err() != nil {
		c.mu.Unlock()
		_ = conn.Close()
		return c.ctx.Err()
	}
	c.conn = conn
	c.mu.Unlock()

	connCtx, connCancel := context.WithCancel(c.ctx)
	c.wg.Add(2)
	go c.readLoop(connCancel, conn)
	go c.pingLoop(connCtx, conn)
	logger.WithField("url", c.opts.URL).Info("Websocket connected")
	return nil
}

func (c *WS) readLoop(cancel context.CancelFunc, conn *websocket.Conn) {
	defer c.wg.Done()
	defer cancel()
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			c.connectionLost(conn, err)
			return
		}
		_ = conn.SetReadDeadline(time.Now().Add(2 * c.opts.PingInterval))
		c.dispatch(data)
	}
}

func (c *WS) pingLoop(ctx context.Context, conn *websocket.Conn) {
	defer c.wg.Done()
	ticker := time.NewTicker(c.opts.PingInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.writeMu.Lock()
			err := conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(c.opts.PingInterval))
			c.writeMu.Unlock()
			if err != nil {
				logger.WithField("url", c.opts.URL).Debugf("Failed to send ping: %v", err)
				return
			}
		}
	}
}

func (c *WS) dispatch(data []byte) {
	var msg message
	if err := json.Unmarshal(data, &msg); err != nil {
		logger.WithField("url", c.opts.URL).Warnf("Malformed message: %v", err)
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if msg.ID != nil {
		ch, ok := c.pending[*msg.ID]
		if !ok {
			logger.WithField("id", *msg.ID).Debug("Response for unknown request")
			return
		}
		delete(c.pending, *msg.ID)
		if msg.Error != nil {
			ch <- response{err: clienterrors.RequestRejected(fmt.Sprintf("%d: %s", msg.Error.Code, msg.Error.Message))}
			return
		}
		ch <- response{result: msg.Result}
		return
	}

	var n notification
	if msg.Method == "" || json.Unmarshal(msg.Params, &n) != nil || len(n.Subscription) == 0 {
		logger.WithField("method", msg.Method).Debug("Ignoring unexpected message")
		return
	}
	id := subscriptionKey(n.Subscription)
	sub, ok := c.subs[id]
	if !ok {
		// Notifications may arrive before the subscription id is known.
		queued, known := c.orphans[id]
		if !known && len(c.orphans) >= orphanIDLimit {
			logger.WithField("subscription", id).Debug("Dropping notification for unknown subscription")
			return
		}
		if len(queued) < orphanLimit {
			c.orphans[id] = append(queued, n.Result)
		}
		return
	}
	if !sub.push(n.Result) {
		delete(c.subs, id)
		sub.finish(clienterrors.ClientError(errors.New("subscription buffer full")))
	}
}

// connectionLost fails everything that was in flight and starts redialing.
func (c *WS) connectionLost(conn *websocket.Conn, cause error) {
	c.mu.Lock()
	if c.conn != conn {
		c.mu.Unlock()
		return
	}
	c.conn = nil
	c.failAll(clienterrors.DisconnectedWillReconnect(cause.Error()))
	c.mu.Unlock()
	_ = conn.Close()

	logger.WithField("url", c.opts.URL).Warnf("Websocket connection lost, reconnecting: %v", cause)
	c.wg.Add(1)
	go c.redial()
}

// failAll must be called with c.mu held.
func (c *WS) failAll(err error) {
	for id, ch := range c.pending {
		ch <- response{err: err}
		delete(c.pending, id)
	}
	for id, sub := range c.subs {
		sub.finish(err)
		delete(c.subs, id)
	}
	c.orphans = make(map[string][]json.RawMessage)
}

func (c *WS) redial() {
	defer c.wg.Done()
	err := retry.Do(
		func() error {
			return c.connect(c.ctx)
		},
		retry.Context(c.ctx),
		retry.Attempts(c.opts.RedialAttempts),
		retry.Delay(c.opts.RedialDelay),
		retry.MaxDelay(defaultRedialMaxDelay),
		retry.DelayType(retry.BackOffDelay),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logger.WithField("url", c.opts.URL).WithField("attempt", n+1).Debugf("Redial failed: %v", err)
		}),
	)
	if err == nil {
		return
	}
	if c.ctx.Err() != nil {
		return
	}
	logger.WithField("url", c.opts.URL).Errorf("Giving up reconnecting: %v", err)
	c.mu.Lock()
	c.closedErr = clienterrors.ClientError(fmt.Errorf("connection lost and could not be re-established: %w", err))
	c.mu.Unlock()
}

// currentConn returns the live connection or the error a new request fails
// with.
func (c *WS) currentConn() (*websocket.Conn, error) {
	if c.closedErr != nil {
		return nil, c.closedErr
	}
	if c.conn == nil {
		return nil, clienterrors.DisconnectedWillReconnect("connection is being re-established")
	}
	return c.conn, nil
}

func (c *WS) Request(ctx context.Context, method string, params ...any) (json.RawMessage, error) {
	res, _, err := c.call(ctx, method, params)
	return res, err
}

// call also returns the connection the request was answered on.
func (c *WS) call(ctx context.Context, method string, params []any) (json.RawMessage, *websocket.Conn, error) {
	if params == nil {
		params = []any{}
	}
	id := c.nextID.Add(1)
	data, err := json.Marshal(request{JSONRPC: "2.0", ID: id, Method: method, Params: params})
	if err != nil {
		return nil, nil, clienterrors.Serialization(fmt.Errorf("failed to encode %s request: %w", method, err))
	}

	ch := make(chan response, 1)
	c.mu.Lock()
	conn, err := c.currentConn()
	if err != nil {
		c.mu.Unlock()
		return nil, nil, err
	}
	c.pending[id] = ch
	c.mu.Unlock()

	c.writeMu.Lock()
	err = conn.WriteMessage(websocket.TextMessage, data)
	c.writeMu.Unlock()
	if err != nil {
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		c.connectionLost(conn, err)
		return nil, nil, clienterrors.DisconnectedWillReconnect(err.Error())
	}

	select {
	case res := <-ch:
		return res.result, conn, res.err
	case <-ctx.Done():
		c.mu.Lock()
		delete(c.pending, id)
		c.mu.Unlock()
		return nil, nil, ctx.Err()
	}
}

func (c *WS) Subscribe(ctx context.Context, method, unsubscribe string, params ...any) (rpc.Subscription, error) {
	raw, used, err := c.call(ctx, method, params)
	if err != nil {
		return nil, err
	}
	id := subscriptionKey(raw)
	sub := &wsSubscription{
		c:           c,
		id:          id,
		rawID:       raw,
		unsubscribe: unsubscribe,
		ch:          make(chan json.RawMessage, subscriptionBuffer),
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	conn, err := c.currentConn()
	if err != nil {
		return nil, err
	}
	if conn != used {
		// The subscription id belongs to a connection that is gone.
		return nil, clienterrors.DisconnectedWillReconnect("connection changed while subscribing")
	}
	for _, item := range c.orphans[id] {
		sub.push(item)
	}
	delete(c.orphans, id)
	c.subs[id] = sub
	logger.WithField("method", method).WithField("subscription", id).Debug("Subscribed")
	return sub, nil
}

func subscriptionKey(raw json.RawMessage) string {
	return string(bytes.TrimSpace(raw))
}

type wsSubscription struct {
	c           *WS
	id          string
	rawID       json.RawMessage
	unsubscribe string
	ch          chan json.RawMessage

	// closed and err are guarded by c.mu.
	closed bool
	err    error
}

// push must be called with c.mu held. It reports false if the buffer is full.
func (s *wsSubscription) push(item json.RawMessage) bool {
	if s.closed {
		return true
	}
	select {
	case s.ch <- item:
		return true
	default:
		return false
	}
}

// finish must be called with c.mu held.
func (s *wsSubscription) finish(err error) {
	if s.closed {
		return
	}
	s.closed = true
	s.err = err
	close(s.ch)
}

// Next returns buffered notifications first, then the error that ended the
// subscription. A subscription ended by Unsubscribe returns io.EOF.
func (s *wsSubscription) Next(ctx context.Context) (json.RawMessage, error) {
	select {
	case item, ok := <-s.ch:
		if ok {
			return item, nil
		}
		s.c.mu.Lock()
		err := s.err
		s.c.mu.Unlock()
		return nil, err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

func (s *wsSubscription) Unsubscribe(ctx context.Context) error {
	s.c.mu.Lock()
	if s.closed {
		s.c.mu.Unlock()
		return nil
	}
	delete(s.c.subs, s.id)
	s.finish(io.EOF)
	s.c.mu.Unlock()

	if _, err := s.c.Request(ctx, s.unsubscribe, s.rawID); err != nil && !rpc.IsReconnecting(err) {
		return err
	}
	return nil
}
