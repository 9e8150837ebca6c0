package config

import (
	"strings"
	"testing"

	"github.com/defiweb/go-eth/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronicleprotocol/scalerpc/core/codec"
)

const (
	aliceSS58 = "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY"
	aliceHex  = "0xd43593c715fdd31c61141abd04a99fd6822c8558854ccde39a5684e7a56da27d"
)

func TestParseAccountID(t *testing.T) {
	acc, err := SubstrateConfig{}.ParseAccountID(aliceSS58)
	require.NoError(t, err)
	assert.Equal(t, aliceHex, hexutil.BytesToHex(acc[:]))
	assert.Equal(t, aliceSS58, acc.String())

	_, err = PolkadotConfig{}.ParseAccountID(aliceSS58)
	assert.Error(t, err)

	_, err = SubstrateConfig{}.ParseAccountID("not an account")
	assert.Error(t, err)

	eth, err := EthereumConfig{}.ParseAccountID("0x891E368fE81cBa2aC6F6cc4b98e684c106e2EF4f")
	require.NoError(t, err)
	assert.True(t, strings.EqualFold("0x891E368fE81cBa2aC6F6cc4b98e684c106e2EF4f", eth.String()))
	assert.Equal(t, eth, EthereumConfig{}.AddressOf(eth))

	_, err = EthereumConfig{}.ParseAccountID("0x1234")
	assert.Error(t, err)
}

func TestHashers(t *testing.T) {
	assert.Equal(t,
		"0x0e5751c026e543b2e8ab2eb06099daa1d1e5df47778f7787faab45cdf12fe3a8",
		SubstrateConfig{}.Hasher().Hash(nil).String())
	assert.Equal(t,
		"0xc5d2460186f7233c927e7db2dcc703c0e500b653ca82273b7bfad8045d85a470",
		EthereumConfig{}.Hasher().Hash(nil).String())
}

func TestMultiAddress(t *testing.T) {
	var acc AccountID32
	acc[0], acc[31] = 0xaa, 0xbb

	tests := []struct {
		name string
		addr MultiAddress
		want []byte
	}{
		{"id", SubstrateConfig{}.AddressOf(acc), append([]byte{0}, acc[:]...)},
		{"index", MultiAddress{Kind: MultiAddressIndex, Index: 1}, []byte{1, 0x04}},
		{"raw", MultiAddress{Kind: MultiAddressRaw, Raw: []byte{1, 2}}, []byte{2, 0x08, 1, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := codec.NewWriter()
			require.NoError(t, tt.addr.EncodeTo(w))
			assert.Equal(t, tt.want, w.Bytes())

			got, err := DecodeMultiAddress(codec.NewReader(tt.want))
			require.NoError(t, err)
			assert.Equal(t, tt.addr, got)
		})
	}

	assert.Error(t, MultiAddress{Kind: 9}.EncodeTo(codec.NewWriter()))
	_, err := DecodeMultiAddress(codec.NewReader([]byte{9}))
	assert.Error(t, err)
}

func TestMultiSignature(t *testing.T) {
	w := codec.NewWriter()
	require.NoError(t, MultiSignature{Kind: SignatureSr25519, Bytes: make([]byte, 64)}.EncodeTo(w))
	assert.Len(t, w.Bytes(), 65)
	assert.Equal(t, byte(1), w.Bytes()[0])

	assert.Error(t, MultiSignature{Kind: SignatureEcdsa, Bytes: make([]byte, 64)}.EncodeTo(codec.NewWriter()))
	assert.Error(t, MultiSignature{Kind: 7, Bytes: make([]byte, 64)}.EncodeTo(codec.NewWriter()))
}
