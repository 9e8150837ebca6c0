package codec

import (
	"math/big"
	"testing"

	"github.com/defiweb/go-eth/hexutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCompactEncoding(t *testing.T) {
	tests := []struct {
		value   uint64
		encoded string
	}{
		{0, "0x00"},
		{1, "0x04"},
		{4, "0x10"},
		{63, "0xfc"},
		{64, "0x0101"},
		{16383, "0xfdff"},
		{16384, "0x02000100"},
		{1<<30 - 1, "0xfeffffff"},
		{1 << 30, "0x0300000040"},
		{1<<64 - 1, "0x13ffffffffffffffff"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.encoded, hexutil.BytesToHex(EncodeCompact(tt.value)), "value %d", tt.value)

		r := NewReader(hexutil.MustHexToBytes(tt.encoded))
		v, err := r.ReadCompact()
		require.NoError(t, err)
		assert.Equal(t, tt.value, v)
		require.NoError(t, r.Finish())
	}
}

func TestCompactBig(t *testing.T) {
	v, ok := new(big.Int).SetString("340282366920938463463374607431768211455", 10) // 2^128-1
	require.True(t, ok)

	w := NewWriter()
	require.NoError(t, w.WriteCompactBig(v))
	assert.Len(t, w.Bytes(), 17)

	got, err := NewReader(w.Bytes()).ReadCompactBig()
	require.NoError(t, err)
	assert.Equal(t, 0, v.Cmp(got))

	assert.Error(t, w.WriteCompactBig(big.NewInt(-1)))
}

func TestReaderFraming(t *testing.T) {
	w := NewWriter()
	require.NoError(t, w.WriteVec([]byte("abc")))
	require.NoError(t, w.WriteU32(7))
	require.NoError(t, w.WriteOption(true))
	require.NoError(t, w.WriteBool(false))

	r := NewReader(append(w.Bytes(), 0xff))
	b, err := r.ReadVec()
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), b)

	n, err := r.ReadU32()
	require.NoError(t, err)
	assert.Equal(t, uint32(7), n)

	some, err := r.ReadOption()
	require.NoError(t, err)
	assert.True(t, some)

	flag, err := r.ReadBool()
	require.NoError(t, err)
	assert.False(t, flag)

	assert.ErrorIs(t, r.Finish(), ErrTrailingBytes)
}

func TestReaderShortInput(t *testing.T) {
	_, err := NewReader([]byte{0x01, 0x02}).ReadU32()
	assert.ErrorIs(t, err, ErrNotEnoughData)

	// Length prefix of 3 with only two bytes behind it.
	_, err = NewReader([]byte{0x0c, 0x01, 0x02}).ReadVec()
	assert.ErrorIs(t, err, ErrNotEnoughData)

	_, err = NewReader(nil).ReadU8()
	assert.ErrorIs(t, err, ErrNotEnoughData)

	b, err := NewReader([]byte{0x00}).ReadVec()
	require.NoError(t, err)
	assert.Empty(t, b)
}
