package transport

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronicleprotocol/scalerpc/core/clienterrors"
	"github.com/chronicleprotocol/scalerpc/core/rpc"
)

func rpcKind(t *testing.T, err error) clienterrors.RpcErrorKind {
	t.Helper()
	var rpcErr *clienterrors.RpcError
	require.ErrorAs(t, err, &rpcErr)
	return rpcErr.Kind
}

func TestCheckURL(t *testing.T) {
	assert.NoError(t, checkURL("wss://rpc.example.org", false, "wss", "ws"))
	assert.NoError(t, checkURL("ws://127.0.0.1:9944", true, "wss", "ws"))
	assert.Equal(t, clienterrors.RpcInsecureURL, rpcKind(t, checkURL("ws://127.0.0.1:9944", false, "wss", "ws")))
	assert.Equal(t, clienterrors.RpcClientError, rpcKind(t, checkURL("ftp://example.org", true, "wss", "ws")))
	assert.Equal(t, clienterrors.RpcClientError, rpcKind(t, checkURL("://", true, "https", "http")))
}

func TestNewHTTPRejectsInsecure(t *testing.T) {
	_, err := NewHTTP(HTTPOptions{URL: "http://127.0.0.1:9933"})
	assert.Equal(t, clienterrors.RpcInsecureURL, rpcKind(t, err))

	h, err := NewHTTP(HTTPOptions{URL: "http://127.0.0.1:9933", AllowInsecure: true})
	require.NoError(t, err)
	_, err = h.Subscribe(context.Background(), "chain_subscribeFinalizedHeads", "chain_unsubscribeFinalizedHeads")
	assert.Equal(t, clienterrors.RpcClientError, rpcKind(t, err))
}

func TestHTTPRequest(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ID     json.RawMessage `json:"id"`
			Method string          `json:"method"`
		}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		res := map[string]any{"jsonrpc": "2.0", "id": req.ID}
		if req.Method == "system_chain" {
			res["result"] = "Development"
		} else {
			res["error"] = map[string]any{"code": -32601, "message": "Method not found"}
		}
		w.Header().Set("Content-Type", "application/json")
		require.NoError(t, json.NewEncoder(w).Encode(res))
	}))
	t.Cleanup(srv.Close)

	h, err := NewHTTP(HTTPOptions{URL: srv.URL, AllowInsecure: true})
	require.NoError(t, err)
	ctx := context.Background()

	chain, err := rpc.NewLegacy(h).SystemChain(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Development", chain)

	_, err = h.Request(ctx, "nope_nothing")
	assert.Equal(t, clienterrors.RpcRequestRejected, rpcKind(t, err))
	assert.Equal(t, "RPC error: request rejected: -32601: Method not found", err.Error())
}

// fakeNode is a minimal websocket JSON-RPC node.
type fakeNode struct {
	mu     sync.Mutex
	conns  []*websocket.Conn
	unsubs []string
}

func (n *fakeNode) handler(t *testing.T) http.HandlerFunc {
	upgrader := websocket.Upgrader{}
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Logf("upgrade failed: %v", err)
			return
		}
		n.mu.Lock()
		n.conns = append(n.conns, conn)
		n.mu.Unlock()
		var writeMu sync.Mutex
		write := func(v any) {
			writeMu.Lock()
			defer writeMu.Unlock()
			_ = conn.WriteJSON(v)
		}
		for {
			var req struct {
				ID     uint64            `json:"id"`
				Method string            `json:"method"`
				Params []json.RawMessage `json:"params"`
			}
			if err := conn.ReadJSON(&req); err != nil {
				return
			}
			switch req.Method {
			case "system_chain":
				write(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": "Development"})
			case "author_submitExtrinsic":
				write(map[string]any{"jsonrpc": "2.0", "id": req.ID, "error": map[string]any{"code": 1010, "message": "Invalid Transaction"}})
			case "chain_subscribeFinalizedHeads":
				// The first notification races the subscription id.
				write(map[string]any{"jsonrpc": "2.0", "method": "chain_finalizedHead", "params": map[string]any{"subscription": "abc", "result": map[string]any{"number": "0x1"}}})
				write(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": "abc"})
				write(map[string]any{"jsonrpc": "2.0", "method": "chain_finalizedHead", "params": map[string]any{"subscription": "abc", "result": map[string]any{"number": "0x2"}}})
			case "state_subscribeRuntimeVersion":
				// Answers and then goes away before any notification.
				write(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": "xyz"})
				_ = conn.Close()
				return
			case "chain_unsubscribeFinalizedHeads":
				n.mu.Lock()
				n.unsubs = append(n.unsubs, string(req.Params[0]))
				n.mu.Unlock()
				write(map[string]any{"jsonrpc": "2.0", "id": req.ID, "result": true})
			}
		}
	}
}

func (n *fakeNode) dropAll() {
	n.mu.Lock()
	defer n.mu.Unlock()
	for _, c := range n.conns {
		_ = c.Close()
	}
	n.conns = nil
}

func (n *fakeNode) connections() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.conns)
}

func startNode(t *testing.T) (*fakeNode, string) {
	n := &fakeNode{}
	srv := httptest.NewServer(n.handler(t))
	t.Cleanup(srv.Close)
	return n, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func dial(t *testing.T, url string) *WS {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	c, err := DialWS(ctx, WSOptions{URL: url, AllowInsecure: true, RedialDelay: 10 * time.Millisecond})
	require.NoError(t, err)
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func TestDialWSRejectsInsecure(t *testing.T) {
	_, url := startNode(t)
	_, err := DialWS(context.Background(), WSOptions{URL: url})
	assert.Equal(t, clienterrors.RpcInsecureURL, rpcKind(t, err))
}

func TestWSRequest(t *testing.T) {
	_, url := startNode(t)
	c := dial(t, url)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	chain, err := rpc.NewLegacy(c).SystemChain(ctx)
	require.NoError(t, err)
	assert.Equal(t, "Development", chain)

	_, err = c.Request(ctx, "author_submitExtrinsic", "0x00")
	assert.Equal(t, clienterrors.RpcRequestRejected, rpcKind(t, err))
	assert.Contains(t, err.Error(), "Invalid Transaction")
}

func TestWSConcurrentRequests(t *testing.T) {
	_, url := startNode(t)
	c := dial(t, url)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var wg sync.WaitGroup
	errs := make(chan error, 20)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			raw, err := c.Request(ctx, "system_chain")
			if err == nil && string(raw) != `"Development"` {
				err = io.ErrUnexpectedEOF
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		assert.NoError(t, err)
	}
}

func TestWSSubscription(t *testing.T) {
	node, url := startNode(t)
	c := dial(t, url)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sub, err := c.Subscribe(ctx, "chain_subscribeFinalizedHeads", "chain_unsubscribeFinalizedHeads")
	require.NoError(t, err)

	first, err := sub.Next(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"number":"0x1"}`, string(first))
	second, err := sub.Next(ctx)
	require.NoError(t, err)
	assert.JSONEq(t, `{"number":"0x2"}`, string(second))

	require.NoError(t, sub.Unsubscribe(ctx))
	_, err = sub.Next(ctx)
	assert.ErrorIs(t, err, io.EOF)
	assert.NoError(t, sub.Unsubscribe(ctx))

	node.mu.Lock()
	assert.Equal(t, []string{`"abc"`}, node.unsubs)
	node.mu.Unlock()
}

func TestWSReconnect(t *testing.T) {
	node, url := startNode(t)
	c := dial(t, url)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	sub, err := c.Subscribe(ctx, "chain_subscribeFinalizedHeads", "chain_unsubscribeFinalizedHeads")
	require.NoError(t, err)
	_, err = sub.Next(ctx)
	require.NoError(t, err)
	_, err = sub.Next(ctx)
	require.NoError(t, err)

	node.dropAll()

	_, err = sub.Next(ctx)
	require.Error(t, err)
	assert.True(t, clienterrors.IsDisconnectedWillReconnect(err))

	require.Eventually(t, func() bool {
		return node.connections() == 1
	}, 5*time.Second, 10*time.Millisecond)

	chain, err := rpc.RetryReconnecting(ctx, 50, 20*time.Millisecond, func(ctx context.Context) (string, error) {
		return rpc.NewLegacy(c).SystemChain(ctx)
	})
	require.NoError(t, err)
	assert.Equal(t, "Development", chain)
}

func TestWSSubscribeAcrossRedial(t *testing.T) {
	_, url := startNode(t)
	c := dial(t, url)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	// Whether the drop is seen before or after registration, the
	// subscription must not survive on the next connection.
	sub, err := c.Subscribe(ctx, "state_subscribeRuntimeVersion", "state_unsubscribeRuntimeVersion")
	if err == nil {
		_, err = sub.Next(ctx)
	}
	require.Error(t, err)
	assert.True(t, clienterrors.IsDisconnectedWillReconnect(err))

	c.mu.Lock()
	defer c.mu.Unlock()
	assert.NotContains(t, c.subs, `"xyz"`)
}

func TestWSOrphanLimits(t *testing.T) {
	_, url := startNode(t)
	c := dial(t, url)

	notify := func(id string) {
		c.dispatch([]byte(fmt.Sprintf(`{"jsonrpc":"2.0","method":"chain_newHead","params":{"subscription":%q,"result":1}}`, id)))
	}
	for i := 0; i < orphanLimit*2; i++ {
		notify("same")
	}
	for i := 0; i < orphanIDLimit*4; i++ {
		notify(fmt.Sprintf("id-%d", i))
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	assert.Len(t, c.orphans, orphanIDLimit)
	assert.Len(t, c.orphans[`"same"`], orphanLimit)
}

func TestWSClose(t *testing.T) {
	_, url := startNode(t)
	c := dial(t, url)
	require.NoError(t, c.Close())

	_, err := c.Request(context.Background(), "system_chain")
	assert.Equal(t, clienterrors.RpcClientError, rpcKind(t, err))
}
