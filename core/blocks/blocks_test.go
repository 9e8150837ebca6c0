package blocks_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/defiweb/go-eth/hexutil"
	"github.com/defiweb/go-eth/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/chronicleprotocol/scalerpc/core/blocks"
	"github.com/chronicleprotocol/scalerpc/core/clienterrors"
	"github.com/chronicleprotocol/scalerpc/core/config"
	"github.com/chronicleprotocol/scalerpc/core/dynamic"
	"github.com/chronicleprotocol/scalerpc/core/extrinsic"
	"github.com/chronicleprotocol/scalerpc/core/metadata/metadatatest"
	"github.com/chronicleprotocol/scalerpc/core/numeric"
	"github.com/chronicleprotocol/scalerpc/core/rpc"
	"github.com/chronicleprotocol/scalerpc/core/rpc/rpctest"
)

type client = blocks.Client[uint32, types.Hash, config.BlakeTwo256]

func newClient(m *rpctest.MockTransport) *client {
	return blocks.NewClient[uint32, types.Hash, config.BlakeTwo256](rpc.NewLegacy(m))
}

func blockHash(n int) string {
	return "0x" + strings.Repeat(fmt.Sprintf("%02x", n), 32)
}

func headerJSON(n int) json.RawMessage {
	return json.RawMessage(fmt.Sprintf(
		`{"parentHash":%q,"number":"0x%x","stateRoot":%q,"extrinsicsRoot":%q,"digest":{"logs":[]}}`,
		blockHash(n-1), n, blockHash(0), blockHash(0),
	))
}

func TestHeader(t *testing.T) {
	m := new(rpctest.MockTransport)
	m.On("Request", mock.Anything, "chain_getHeader", []any{blockHash(5)}).Return(headerJSON(5), nil)
	m.On("Request", mock.Anything, "chain_getHeader", []any{blockHash(9)}).Return(json.RawMessage(`null`), nil)
	c := newClient(m)

	h, err := c.Header(context.Background(), types.MustHashFromHex(blockHash(5), types.PadNone))
	require.NoError(t, err)
	assert.Equal(t, uint32(5), h.Number)
	assert.Equal(t, blockHash(4), h.ParentHash.String())

	_, err = c.Header(context.Background(), types.MustHashFromHex(blockHash(9), types.PadNone))
	var blockErr *clienterrors.BlockError
	require.ErrorAs(t, err, &blockErr)
	assert.Equal(t, clienterrors.BlockNotFound, blockErr.Kind)
	assert.Equal(t, blockHash(9), blockErr.Hash)
}

func TestBestHeader(t *testing.T) {
	m := new(rpctest.MockTransport)
	m.On("Request", mock.Anything, "chain_getHeader", mock.Anything).Return(headerJSON(7), nil).Once()
	m.On("Request", mock.Anything, "chain_getHeader", mock.Anything).Return(json.RawMessage(`null`), nil).Once()
	c := newClient(m)

	h, err := c.BestHeader(context.Background())
	require.NoError(t, err)
	assert.Equal(t, uint32(7), h.Number)

	_, err = c.BestHeader(context.Background())
	assert.Equal(t, clienterrors.KindBlock, clienterrors.KindOf(err))
	var blockErr *clienterrors.BlockError
	require.ErrorAs(t, err, &blockErr)
	assert.Equal(t, clienterrors.BlockNotFound, blockErr.Kind)
}

func TestBlockHash(t *testing.T) {
	m := new(rpctest.MockTransport)
	m.On("Request", mock.Anything, "chain_getBlockHash", []any{numeric.Number(3)}).Return(json.RawMessage(`"`+blockHash(3)+`"`), nil)
	m.On("Request", mock.Anything, "chain_getBlockHash", []any{numeric.Number(1000)}).Return(json.RawMessage(`null`), nil)
	m.On("Request", mock.Anything, "chain_getFinalizedHead", mock.Anything).Return(json.RawMessage(`"`+blockHash(2)+`"`), nil)
	c := newClient(m)

	h, found, err := c.BlockHash(context.Background(), 3)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, blockHash(3), h.String())

	_, found, err = c.BlockHash(context.Background(), 1000)
	require.NoError(t, err)
	assert.False(t, found)

	fin, err := c.FinalizedHead(context.Background())
	require.NoError(t, err)
	assert.Equal(t, blockHash(2), fin.String())
}

func withLength(body []byte) []byte {
	return append([]byte{byte(len(body) << 2)}, body...)
}

func TestDecodeUnsignedExtrinsic(t *testing.T) {
	md := metadatatest.Metadata()

	ext, err := blocks.DecodeExtrinsic(md, withLength([]byte{0x04, 0x00, 0x00, 0x08, 0x01, 0x02}))
	require.NoError(t, err)
	assert.False(t, ext.Signed)
	assert.Equal(t, "System", ext.Pallet)
	assert.Equal(t, "remark", ext.CallName)
	inner, ok := ext.Call.At(0)
	require.True(t, ok)
	remark, ok := inner.Get("remark")
	require.True(t, ok)
	assert.Equal(t, []byte{1, 2}, remark.Bytes)
}

type signer struct{}

func (signer) Address() config.MultiAddress {
	return config.AddressID(config.AccountID32(bytes.Repeat([]byte{0xd4}, 32)))
}

func (signer) Sign([]byte) (config.MultiSignature, error) {
	return config.MultiSignature{Kind: config.SignatureSr25519, Bytes: bytes.Repeat([]byte{0xee}, 64)}, nil
}

func TestDecodeSignedExtrinsic(t *testing.T) {
	md := metadatatest.Metadata()
	call := extrinsic.NewCall("Balances", "transfer_keep_alive", dynamic.Named(
		dynamic.Field("dest", dynamic.Variant("Id", dynamic.Bytes(bytes.Repeat([]byte{1}, 32)))),
		dynamic.Field("value", dynamic.U64(1000)),
	))
	params := &extrinsic.Params[types.Hash, config.U32AssetID]{
		GenesisHash: types.MustHashFromHex(blockHash(0x91), types.PadNone),
		Nonce:       3,
	}
	raw, err := extrinsic.Sign[config.MultiAddress, config.MultiSignature](md, call, params, signer{})
	require.NoError(t, err)

	ext, err := blocks.DecodeExtrinsic(md, raw)
	require.NoError(t, err)
	assert.True(t, ext.Signed)
	assert.Equal(t, "Balances", ext.Pallet)
	assert.Equal(t, "transfer_keep_alive", ext.CallName)
	assert.Equal(t, "Id", ext.Address.Name)
	assert.Equal(t, "Sr25519", ext.Signature.Name)
	nonce, ok := ext.Extra.At(5)
	require.True(t, ok)
	n, ok := nonce.Unwrap().AsUint64()
	require.True(t, ok)
	assert.Equal(t, uint64(3), n)
}

func TestDecodeExtrinsicErrors(t *testing.T) {
	assertBlockErr := func(t *testing.T, err error, kind clienterrors.BlockErrorKind) *clienterrors.BlockError {
		t.Helper()
		var blockErr *clienterrors.BlockError
		require.ErrorAs(t, err, &blockErr)
		assert.Equal(t, kind, blockErr.Kind)
		return blockErr
	}
	md := metadatatest.Metadata()

	_, err := blocks.DecodeExtrinsic(md, withLength([]byte{0x05, 0x00, 0x00, 0x00}))
	assert.Equal(t, uint8(5), assertBlockErr(t, err, clienterrors.BlockUnsupportedVersion).Version)

	_, err = blocks.DecodeExtrinsic(md, withLength([]byte{0x85, 0x00}))
	assert.Equal(t, uint8(5), assertBlockErr(t, err, clienterrors.BlockUnsupportedVersion).Version)

	_, err = blocks.DecodeExtrinsic(md, []byte{0x18, 0x04})
	assertBlockErr(t, err, clienterrors.BlockDecodingError)

	_, err = blocks.DecodeExtrinsic(md, withLength([]byte{0x04, 0x00, 0x00, 0x08, 0x01, 0x02, 0xff}))
	assertBlockErr(t, err, clienterrors.BlockDecodingError)

	_, err = blocks.DecodeExtrinsic(md, withLength([]byte{0x04, 0x07, 0x00}))
	assertBlockErr(t, err, clienterrors.BlockDecodingError)

	broken := metadatatest.Metadata()
	broken.Extrinsic.CallType = 9999
	_, err = blocks.DecodeExtrinsic(broken, withLength([]byte{0x04, 0x00, 0x00, 0x00}))
	assertBlockErr(t, err, clienterrors.BlockMissingType)
}

func TestExtrinsics(t *testing.T) {
	m := new(rpctest.MockTransport)
	m.OnRequest("chain_getBlock", map[string]any{
		"block": map[string]any{
			"header": headerJSON(1),
			"extrinsics": []string{
				hexutil.BytesToHex(withLength([]byte{0x04, 0x00, 0x00, 0x00})),
				hexutil.BytesToHex(withLength([]byte{0x04, 0x00, 0x00, 0x04, 0x09})),
			},
		},
	})

	exts, err := newClient(m).Extrinsics(context.Background(), types.MustHashFromHex(blockHash(1), types.PadNone), metadatatest.Metadata())
	require.NoError(t, err)
	require.Len(t, exts, 2)
	assert.Equal(t, 1, exts[1].Index)
	assert.Equal(t, "remark", exts[1].CallName)
}

// chain is a fake node whose finalized head can be moved by the test.
type chain struct {
	mu        sync.Mutex
	finalized int
	// pruned blocks below this number.
	pruned int
}

func (c *chain) setFinalized(n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.finalized = n
}

type fakeTransport struct {
	chain *chain
	sub   *rpctest.Subscription
	fail  error
}

func (f *fakeTransport) Request(_ context.Context, method string, params ...any) (json.RawMessage, error) {
	f.chain.mu.Lock()
	defer f.chain.mu.Unlock()
	if f.fail != nil {
		return nil, f.fail
	}
	switch method {
	case "chain_getFinalizedHead":
		return json.RawMessage(`"` + blockHash(f.chain.finalized) + `"`), nil
	case "chain_getBlockHash":
		n := params[0].(numeric.NumberOrHex).IntoU256().Uint64()
		if int(n) < f.chain.pruned {
			return json.RawMessage(`null`), nil
		}
		return json.RawMessage(`"` + blockHash(int(n)) + `"`), nil
	case "chain_getHeader":
		h := types.MustHashFromHex(params[0].(string), types.PadNone)
		return headerJSON(int(h[0])), nil
	}
	return nil, fmt.Errorf("unexpected method %s", method)
}

func (f *fakeTransport) Subscribe(context.Context, string, string, ...any) (rpc.Subscription, error) {
	return f.sub, nil
}

type follower = blocks.Follower[uint32, types.Hash, config.BlakeTwo256]

func receive(t *testing.T, f *follower, n int) []uint32 {
	t.Helper()
	out := make([]uint32, 0, n)
	for len(out) < n {
		select {
		case h, ok := <-f.Headers():
			require.True(t, ok, "headers closed early")
			out = append(out, h.Number)
		case <-time.After(5 * time.Second):
			t.Fatalf("timed out after %d headers", len(out))
		}
	}
	return out
}

func startFollower(t *testing.T, tr *fakeTransport, opts blocks.FollowerOptions) (*follower, func()) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	c := blocks.NewClient[uint32, types.Hash, config.BlakeTwo256](rpc.NewLegacy(tr))
	wg := &sync.WaitGroup{}
	wg.Add(1)
	f := blocks.NewFollower(ctx, c, opts, wg)
	go func() {
		_ = f.Run()
	}()
	return f, func() {
		cancel()
		for range f.Headers() {
		}
		wg.Wait()
	}
}

func TestFollowerFillsGaps(t *testing.T) {
	ch := &chain{finalized: 5}
	f, stop := startFollower(t, &fakeTransport{chain: ch}, blocks.FollowerOptions{Chain: "test", Interval: 10 * time.Millisecond})
	defer stop()

	assert.Equal(t, []uint32{5}, receive(t, f, 1))
	ch.setFinalized(8)
	assert.Equal(t, []uint32{6, 7, 8}, receive(t, f, 3))
}

func TestFollowerFromBlock(t *testing.T) {
	from := uint64(2)
	ch := &chain{finalized: 4}
	f, stop := startFollower(t, &fakeTransport{chain: ch}, blocks.FollowerOptions{Interval: 10 * time.Millisecond, FromBlock: &from})
	defer stop()

	assert.Equal(t, []uint32{2, 3, 4}, receive(t, f, 3))
}

func TestFollowerErrors(t *testing.T) {
	errs := make(chan error, 16)
	tr := &fakeTransport{chain: &chain{finalized: 1}, fail: clienterrors.DisconnectedWillReconnect("reset")}
	_, stop := startFollower(t, tr, blocks.FollowerOptions{
		Interval: 5 * time.Millisecond,
		OnError: func(err error) {
			select {
			case errs <- err:
			default:
			}
		},
	})
	time.Sleep(30 * time.Millisecond)
	assert.Empty(t, errs, "reconnects are not reported")

	tr.chain.mu.Lock()
	tr.fail = clienterrors.RequestRejected("nope")
	tr.chain.mu.Unlock()
	select {
	case err := <-errs:
		var rpcErr *clienterrors.RpcError
		require.ErrorAs(t, err, &rpcErr)
		assert.Equal(t, clienterrors.RpcRequestRejected, rpcErr.Kind)
	case <-time.After(5 * time.Second):
		t.Fatal("no error reported")
	}
	stop()
}

func TestFollowerPrunedBlock(t *testing.T) {
	from := uint64(1)
	errs := make(chan error, 16)
	tr := &fakeTransport{chain: &chain{finalized: 4, pruned: 2}}
	_, stop := startFollower(t, tr, blocks.FollowerOptions{
		Interval:  5 * time.Millisecond,
		FromBlock: &from,
		OnError: func(err error) {
			select {
			case errs <- err:
			default:
			}
		},
	})
	defer stop()

	select {
	case err := <-errs:
		var blockErr *clienterrors.BlockError
		require.ErrorAs(t, err, &blockErr)
		assert.Equal(t, clienterrors.BlockNotFound, blockErr.Kind)
		assert.Equal(t, "Block error: Could not find block 1 below finalized block 4", err.Error())
	case <-time.After(5 * time.Second):
		t.Fatal("no error reported")
	}
}

func TestFollowerSubscription(t *testing.T) {
	ch := &chain{finalized: 4}
	sub := rpctest.NewSubscription(string(headerJSON(2)), string(headerJSON(4)))
	f, stop := startFollower(t, &fakeTransport{chain: ch, sub: sub}, blocks.FollowerOptions{Subscribe: true, Interval: 10 * time.Millisecond})
	defer stop()

	assert.Equal(t, []uint32{2, 3, 4}, receive(t, f, 3))
}
