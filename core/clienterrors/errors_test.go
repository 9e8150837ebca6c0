package clienterrors

import (
	"errors"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsDisconnectedWillReconnect(t *testing.T) {
	reconnecting := DisconnectedWillReconnect("connection reset by peer")
	assert.True(t, IsDisconnectedWillReconnect(reconnecting))
	assert.True(t, reconnecting.IsDisconnectedWillReconnect())

	// Still visible through further wrapping.
	assert.True(t, IsDisconnectedWillReconnect(fmt.Errorf("failed to fetch header: %w", reconnecting)))

	others := []*Error{
		ClientError(io.EOF),
		RequestRejected("bad params"),
		SubscriptionDropped(),
		InsecureURL("ws://localhost:9944"),
		Io(io.ErrUnexpectedEOF),
		Codec(errors.New("bad byte")),
		Serialization(errors.New("bad json")),
		MetadataErr(RuntimeFnNotFound, "Core_version"),
		MetadataDecoding(errors.New("bad magic")),
		Runtime(&DispatchError{Kind: DispatchBadOrigin}),
		Decode(errors.New("decode")),
		Encode(errors.New("encode")),
		TxDroppedError("usurped"),
		ExtrinsicParams(&ExtrinsicParamsError{Kind: UnknownSignedExtension, Name: "Foo"}),
		BlockNotFoundError([]byte{1, 2}),
		StorageAddress(&StorageAddressError{Kind: WrongNumberOfKeys, Expected: 1}),
		Unknown([]byte{0xde, 0xad}),
		Other("boom"),
		LightClient(errors.New("light")),
	}
	for _, err := range others {
		assert.False(t, IsDisconnectedWillReconnect(err), err.Error())
		assert.False(t, err.IsDisconnectedWillReconnect(), err.Error())
	}
	assert.False(t, IsDisconnectedWillReconnect(nil))
	assert.False(t, IsDisconnectedWillReconnect(errors.New("plain")))
}

func TestErrorKeepsCause(t *testing.T) {
	err := fmt.Errorf("state_call: %w", Io(io.ErrUnexpectedEOF))
	assert.ErrorIs(t, err, io.ErrUnexpectedEOF)
	assert.Equal(t, KindIo, KindOf(err))

	var rpcErr *RpcError
	require.ErrorAs(t, ClientError(io.EOF), &rpcErr)
	assert.Equal(t, RpcClientError, rpcErr.Kind)
	assert.ErrorIs(t, rpcErr, io.EOF)

	assert.Equal(t, KindOther, KindOf(errors.New("plain")))
}

func TestErrorMessages(t *testing.T) {
	assert.Equal(t,
		"Block error: Could not find a block with hash 0x0102 (perhaps it was on a non-finalized fork?)",
		BlockNotFoundError([]byte{1, 2}).Error(),
	)
	assert.Equal(t,
		"Block error: Unsupported extrinsic version 5, only version 4 is supported currently",
		BlockUnsupportedVersionError(5).Error(),
	)
	assert.Equal(t, "An error occurred but it could not be decoded: 0xdead", Unknown([]byte{0xde, 0xad}).Error())
	assert.Equal(t, "RPC error: subscription dropped.", SubscriptionDropped().Error())
	assert.Equal(t, "RPC error: request rejected: -32601: Method not found", RequestRejected("-32601: Method not found").Error())
	assert.Equal(t, "RPC error: connection refused", ClientError(errors.New("connection refused")).Error())
	assert.Equal(t,
		"Runtime error: Module error: Balances.InsufficientBalance",
		Runtime(&DispatchError{
			Kind:   DispatchModule,
			Module: &ModuleError{PalletIndex: 5, Pallet: "Balances", Name: "InsufficientBalance"},
		}).Error(),
	)
	assert.Equal(t, "Runtime error: Dispatch error: BadOrigin", Runtime(&DispatchError{Kind: DispatchBadOrigin}).Error())
	assert.Equal(t, "Block error: Could not find the best block", BlockNotFoundAt("the best block").Error())
	assert.Equal(t,
		"Metadata error: Constant with name Balances.Nope not found",
		MetadataErr(ConstantNameNotFound, "Balances.Nope").Error(),
	)
}

func TestDispatchKindByName(t *testing.T) {
	k, ok := DispatchKindByName("Arithmetic")
	assert.True(t, ok)
	assert.Equal(t, DispatchArithmetic, k)

	_, ok = DispatchKindByName("Nope")
	assert.False(t, ok)
}
