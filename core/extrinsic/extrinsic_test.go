package extrinsic_test

import (
	"bytes"
	"testing"

	"github.com/defiweb/go-eth/types"
	"github.com/holiman/uint256"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/chronicleprotocol/scalerpc/core/clienterrors"
	"github.com/chronicleprotocol/scalerpc/core/codec"
	"github.com/chronicleprotocol/scalerpc/core/config"
	"github.com/chronicleprotocol/scalerpc/core/dynamic"
	"github.com/chronicleprotocol/scalerpc/core/extrinsic"
	"github.com/chronicleprotocol/scalerpc/core/metadata"
	"github.com/chronicleprotocol/scalerpc/core/metadata/metadatatest"
)

var (
	alice   = config.AccountID32(bytes.Repeat([]byte{0xd4}, 32))
	genesis = types.Hash(bytes.Repeat([]byte{0x91}, 32))
	recent  = types.Hash(bytes.Repeat([]byte{0x42}, 32))
)

type params = extrinsic.Params[types.Hash, config.U32AssetID]

func TestEraEncoding(t *testing.T) {
	tests := []struct {
		name string
		era  extrinsic.Era
		want []byte
	}{
		{"immortal", extrinsic.ImmortalEra(), []byte{0x00}},
		{"mortal 64", extrinsic.MortalEra(64, 42), []byte{0xa5, 0x02}},
		{"quantized", extrinsic.MortalEra(32768, 20000), []byte{0x4e, 0x9c}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			enc := tt.era.Encode()
			assert.Equal(t, tt.want, enc)
			r := codec.NewReader(enc)
			got, err := extrinsic.DecodeEra(r)
			require.NoError(t, err)
			require.NoError(t, r.Finish())
			assert.Equal(t, tt.era, got)
		})
	}
}

func TestMortalEraPeriod(t *testing.T) {
	assert.Equal(t, extrinsic.Era{Period: 4, Phase: 2}, extrinsic.MortalEra(1, 10))
	assert.Equal(t, uint64(128), extrinsic.MortalEra(100, 0).Period)
	assert.Equal(t, uint64(65536), extrinsic.MortalEra(1<<20, 0).Period)

	era := extrinsic.MortalEra(64, 42)
	assert.Equal(t, uint64(42), era.Birth(100))
	assert.Equal(t, uint64(106), era.Death(100))
	assert.Equal(t, uint64(106), era.Birth(120))

	_, err := extrinsic.DecodeEra(codec.NewReader([]byte{0x41, 0x00}))
	assert.Error(t, err)
	_, err = extrinsic.DecodeEra(codec.NewReader([]byte{0x41}))
	assert.Error(t, err)
}

func TestParamsEncodeImmortal(t *testing.T) {
	md := metadatatest.Metadata()
	p := &params{SpecVersion: 100, TxVersion: 2, GenesisHash: genesis, Nonce: 5}

	enc, err := p.Encode(md)
	require.NoError(t, err)
	assert.Equal(t, []byte{0x00, 0x14, 0x00, 0x00}, enc.Extra)

	want := []byte{100, 0, 0, 0, 2, 0, 0, 0}
	want = append(want, genesis[:]...)
	want = append(want, genesis[:]...)
	assert.Equal(t, want, enc.Additional)
}

func TestParamsEncodeMortalWithAssetTip(t *testing.T) {
	md := metadatatest.Metadata()
	asset := config.U32AssetID(7)
	p := &params{
		SpecVersion: 100,
		TxVersion:   2,
		GenesisHash: genesis,
		Mortality:   &extrinsic.Mortality[types.Hash]{Period: 64, CurrentNumber: 42, Checkpoint: recent},
		Tip:         uint256.NewInt(1000),
		TipAsset:    &asset,
	}

	enc, err := p.Encode(md)
	require.NoError(t, err)
	assert.Equal(t, []byte{0xa5, 0x02, 0x00, 0xa1, 0x0f, 0x01, 7, 0, 0, 0}, enc.Extra)
	assert.Equal(t, recent[:], enc.Additional[len(enc.Additional)-32:])
	assert.Equal(t, genesis[:], enc.Additional[8:40])
}

func TestParamsEncodeErrors(t *testing.T) {
	assertKind := func(err error, kind clienterrors.ExtrinsicParamsErrorKind, name string) {
		t.Helper()
		var extErr *clienterrors.ExtrinsicParamsError
		require.ErrorAs(t, err, &extErr)
		assert.Equal(t, kind, extErr.Kind)
		assert.Equal(t, name, extErr.Name)
	}

	md := metadatatest.Metadata()
	_, err := (&params{}).Encode(md)
	assertKind(err, clienterrors.MissingExtensionValue, "CheckGenesis")

	md.Extrinsic.SignedExtensions = append(md.Extrinsic.SignedExtensions, metadata.SignedExtension{
		Identifier: "CheckSomething", Type: metadatatest.U32, AdditionalSigned: metadatatest.Unit,
	})
	_, err = (&params{GenesisHash: genesis}).Encode(md)
	assertKind(err, clienterrors.UnknownSignedExtension, "CheckSomething")
}

func TestParamsSkipsEmptyUnknownExtensions(t *testing.T) {
	md := metadatatest.Metadata()
	p := &params{GenesisHash: genesis}
	before, err := p.Encode(md)
	require.NoError(t, err)

	md.Extrinsic.SignedExtensions = append(md.Extrinsic.SignedExtensions, metadata.SignedExtension{
		Identifier: "CheckNothing", Type: metadatatest.CheckWeight, AdditionalSigned: metadatatest.Unit,
	})
	after, err := p.Encode(md)
	require.NoError(t, err)
	assert.Equal(t, before, after)
}

func TestParamsMetadataHash(t *testing.T) {
	md := metadatatest.Metadata()
	md.Extrinsic.SignedExtensions = append(md.Extrinsic.SignedExtensions, metadata.SignedExtension{
		Identifier: "CheckMetadataHash", Type: metadatatest.U8, AdditionalSigned: metadatatest.OptionU32,
	})

	disabled, err := (&params{GenesisHash: genesis}).Encode(md)
	require.NoError(t, err)
	assert.Equal(t, byte(0), disabled.Extra[len(disabled.Extra)-1])
	assert.Equal(t, byte(0), disabled.Additional[len(disabled.Additional)-1])

	hash := [32]byte{1, 2, 3}
	enabled, err := (&params{GenesisHash: genesis, MetadataHash: &hash}).Encode(md)
	require.NoError(t, err)
	assert.Equal(t, byte(1), enabled.Extra[len(enabled.Extra)-1])
	assert.Equal(t, append([]byte{1}, hash[:]...), enabled.Additional[len(enabled.Additional)-33:])
}

func transferCall() extrinsic.Call {
	return extrinsic.NewCall("Balances", "transfer_keep_alive", dynamic.Named(
		dynamic.Field("dest", dynamic.Variant("Id", alice.AsValue())),
		dynamic.Field("value", dynamic.U64(12345)),
	))
}

func TestCallEncode(t *testing.T) {
	md := metadatatest.Metadata()

	out, err := transferCall().Encode(md)
	require.NoError(t, err)
	want := append([]byte{5, 3, 0}, alice[:]...)
	want = append(want, 0xe5, 0xc0)
	assert.Equal(t, want, out)

	_, err = extrinsic.NewCall("Staking", "bond", dynamic.Unnamed()).Encode(md)
	assert.Equal(t, clienterrors.KindMetadata, clienterrors.KindOf(err))

	_, err = extrinsic.NewCall("Balances", "transfer_all", dynamic.Unnamed()).Encode(md)
	assert.Equal(t, clienterrors.KindEncode, clienterrors.KindOf(err))
}

func TestSignerPayload(t *testing.T) {
	enc := &extrinsic.Encoded{Extra: []byte{1}, Additional: []byte{2}}
	assert.Equal(t, []byte{0, 1, 2}, extrinsic.SignerPayload([]byte{0}, enc))

	long := extrinsic.SignerPayload(make([]byte, 300), enc)
	assert.Len(t, long, 32)
}

type fakeSigner struct {
	acc      config.AccountID32
	payloads [][]byte
}

func (s *fakeSigner) Address() config.MultiAddress {
	return config.AddressID(s.acc)
}

func (s *fakeSigner) Sign(payload []byte) (config.MultiSignature, error) {
	s.payloads = append(s.payloads, payload)
	return config.MultiSignature{Kind: config.SignatureSr25519, Bytes: bytes.Repeat([]byte{0xee}, 64)}, nil
}

func TestSign(t *testing.T) {
	md := metadatatest.Metadata()
	signer := &fakeSigner{acc: alice}
	p := &params{SpecVersion: 100, TxVersion: 2, GenesisHash: genesis, Nonce: 5}

	ext, err := extrinsic.Sign[config.MultiAddress, config.MultiSignature](md, transferCall(), p, signer)
	require.NoError(t, err)
	require.Len(t, signer.payloads, 1)

	callData, err := transferCall().Encode(md)
	require.NoError(t, err)
	enc, err := p.Encode(md)
	require.NoError(t, err)
	assert.Equal(t, extrinsic.SignerPayload(callData, enc), signer.payloads[0])

	r := codec.NewReader(ext)
	body, err := r.ReadVec()
	require.NoError(t, err)
	require.NoError(t, r.Finish())

	assert.Equal(t, byte(0x84), body[0])
	assert.Equal(t, byte(0x00), body[1])
	assert.Equal(t, alice[:], body[2:34])
	assert.Equal(t, byte(0x01), body[34])
	rest := body[35+64:]
	assert.Equal(t, append(append([]byte{}, enc.Extra...), callData...), rest)
}

func TestSignedRejectsBadSignature(t *testing.T) {
	_, err := extrinsic.Signed(config.AddressID(alice), config.MultiSignature{Kind: config.SignatureEcdsa, Bytes: make([]byte, 64)}, nil, []byte{0})
	assert.Equal(t, clienterrors.KindEncode, clienterrors.KindOf(err))
}

func TestUnsigned(t *testing.T) {
	assert.Equal(t, []byte{0x0c, 0x04, 0x00, 0x01}, extrinsic.Unsigned([]byte{0x00, 0x01}))
}
