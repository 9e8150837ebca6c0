package runtimeapi_test

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/defiweb/go-eth/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/chronicleprotocol/scalerpc/core/clienterrors"
	"github.com/chronicleprotocol/scalerpc/core/dynamic"
	"github.com/chronicleprotocol/scalerpc/core/metadata/metadatatest"
	"github.com/chronicleprotocol/scalerpc/core/rpc"
	"github.com/chronicleprotocol/scalerpc/core/rpc/rpctest"
	"github.com/chronicleprotocol/scalerpc/core/runtimeapi"
)

var alice = func() []byte {
	b := make([]byte, 32)
	for i := range b {
		b[i] = byte(i + 1)
	}
	return b
}()

func assertMetadataKind(t *testing.T, err error, kind clienterrors.MetadataErrorKind) {
	t.Helper()
	var mdErr *clienterrors.MetadataError
	require.ErrorAs(t, err, &mdErr)
	assert.Equal(t, kind, mdErr.Kind)
}

func TestPayloadConstructors(t *testing.T) {
	args := dynamic.Named(dynamic.Field("account", dynamic.Bytes(alice)))

	p := runtimeapi.Dynamic("AccountNonceApi_account_nonce", args)
	assert.Equal(t, "AccountNonceApi_account_nonce", p.FunctionName())
	assert.Equal(t, args, p.Args())
	_, ok := p.ValidationHash()
	assert.False(t, ok)

	s := runtimeapi.NewStatic("AccountNonceApi_account_nonce", args, [32]byte{1})
	h, ok := s.ValidationHash()
	require.True(t, ok)
	assert.Equal(t, [32]byte{1}, h)

	_, ok = s.Unvalidated().ValidationHash()
	assert.False(t, ok)
	_, ok = s.ValidationHash()
	assert.True(t, ok, "Unvalidated must not modify the receiver")
}

func TestEncodeArgs(t *testing.T) {
	md := metadatatest.Metadata()

	named := runtimeapi.Dynamic("TransactionPaymentApi_query_info", dynamic.Named(
		dynamic.Field("len", dynamic.U64(3)),
		dynamic.Field("uxt", dynamic.Bytes([]byte{0xaa, 0xbb, 0xcc})),
	))
	positional := runtimeapi.Dynamic("TransactionPaymentApi_query_info", dynamic.Unnamed(
		dynamic.Bytes([]byte{0xaa, 0xbb, 0xcc}),
		dynamic.U64(3),
	))
	want := []byte{0x0c, 0xaa, 0xbb, 0xcc, 3, 0, 0, 0}

	out, err := named.EncodeArgs(md)
	require.NoError(t, err)
	assert.Equal(t, want, out)

	out, err = positional.EncodeArgs(md)
	require.NoError(t, err)
	assert.Equal(t, want, out)

	out, err = runtimeapi.Dynamic("Metadata_metadata_versions", dynamic.Unnamed()).EncodeArgs(md)
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestEncodeArgsErrors(t *testing.T) {
	md := metadatatest.Metadata()

	_, err := runtimeapi.Dynamic("Nope_nothing", dynamic.Unnamed()).EncodeArgs(md)
	assertMetadataKind(t, err, clienterrors.RuntimeFnNotFound)

	_, err = runtimeapi.Dynamic("AccountNonceApi_account_nonce", dynamic.Unnamed()).EncodeArgs(md)
	assert.Equal(t, clienterrors.KindEncode, clienterrors.KindOf(err))

	_, err = runtimeapi.Dynamic("AccountNonceApi_account_nonce", dynamic.Named(
		dynamic.Field("who", dynamic.Bytes(alice)),
	)).EncodeArgs(md)
	assert.Equal(t, clienterrors.KindEncode, clienterrors.KindOf(err))

	_, err = runtimeapi.Dynamic("AccountNonceApi_account_nonce", dynamic.Unnamed(dynamic.Bool(true))).EncodeArgs(md)
	assert.Equal(t, clienterrors.KindEncode, clienterrors.KindOf(err))
}

func TestValidate(t *testing.T) {
	md := metadatatest.Metadata()
	hash, err := md.RuntimeFnHash("AccountNonceApi_account_nonce")
	require.NoError(t, err)

	args := dynamic.Unnamed(dynamic.Bytes(alice))
	p := runtimeapi.NewStatic("AccountNonceApi_account_nonce", args, hash)
	require.NoError(t, p.Validate(md))
	require.NoError(t, runtimeapi.Dynamic("AccountNonceApi_account_nonce", args).Validate(md))

	altered := metadatatest.Metadata()
	typ, err := altered.Types.Resolve(metadatatest.AccountID32)
	require.NoError(t, err)
	typ.Def.Fields[0].Type = metadatatest.Bytes20

	assertMetadataKind(t, p.Validate(altered), clienterrors.IncompatibleShape)
	assert.NoError(t, p.Unvalidated().Validate(altered))
}

func TestClientCall(t *testing.T) {
	md := metadatatest.Metadata()
	m := new(rpctest.MockTransport)
	m.On("Request", mock.Anything, "state_call", []any{
		"AccountNonceApi_account_nonce",
		"0x0102030405060708090a0b0c0d0e0f101112131415161718191a1b1c1d1e1f20",
		nil,
	}).Return(json.RawMessage(`"0x2a000000"`), nil)

	c := runtimeapi.NewClient(rpc.NewLegacy(m), md)
	v, err := c.Call(context.Background(), runtimeapi.Dynamic("AccountNonceApi_account_nonce", dynamic.Unnamed(dynamic.Bytes(alice))), nil)
	require.NoError(t, err)
	n, ok := v.AsUint64()
	require.True(t, ok)
	assert.Equal(t, uint64(42), n)
	m.AssertExpectations(t)
}

func TestClientCallTrailingBytes(t *testing.T) {
	md := metadatatest.Metadata()
	m := new(rpctest.MockTransport)
	m.OnRequest("state_call", "0x2a00000000")

	c := runtimeapi.NewClient(rpc.NewLegacy(m), md)
	_, err := c.Call(context.Background(), runtimeapi.Dynamic("AccountNonceApi_account_nonce", dynamic.Unnamed(dynamic.Bytes(alice))), nil)
	require.Error(t, err)
}

func TestFetchMetadataFallback(t *testing.T) {
	blob, err := metadatatest.Metadata().Encode(15)
	require.NoError(t, err)

	m := new(rpctest.MockTransport)
	m.OnRequest("state_call", "0x00")
	m.OnRequest("state_getMetadata", hexutil.BytesToHex(blob))

	md, err := runtimeapi.FetchMetadata(context.Background(), rpc.NewLegacy(m), 15, nil)
	require.NoError(t, err)
	_, err = md.Pallet("Balances")
	require.NoError(t, err)
}
