package ss58

import (
	"testing"

	"github.com/defiweb/go-eth/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var alice = hexutil.MustHexToBytes("0xd43593c715fdd31c61141abd04a99fd6822c8558854ccde39a5684e7a56da27d")

func TestEncodeAlice(t *testing.T) {
	s, err := Encode(alice, SubstratePrefix)
	require.NoError(t, err)
	assert.Equal(t, "5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY", s)
}

func TestDecodeAlice(t *testing.T) {
	account, prefix, err := Decode("5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQY")
	require.NoError(t, err)
	assert.Equal(t, SubstratePrefix, prefix)
	assert.Equal(t, alice, account)
}

func TestRoundTripPrefixes(t *testing.T) {
	for _, prefix := range []uint16{0, 2, 42, 63, 64, 255, 1000, 16383} {
		s, err := Encode(alice, prefix)
		require.NoError(t, err)

		account, got, err := Decode(s)
		require.NoError(t, err, "prefix %d", prefix)
		assert.Equal(t, prefix, got)
		assert.Equal(t, alice, account)
	}
}

func TestDecodeErrors(t *testing.T) {
	// Flip the last character so the checksum no longer matches.
	_, _, err := Decode("5GrwvaEF5zXb26Fz9rcQpDWS57CtERHpNehXCPcNoHGKutQZ")
	assert.Error(t, err)

	_, _, err = Decode("0OIl")
	assert.Error(t, err)

	_, err = Encode(alice, 16384)
	assert.Error(t, err)
}
