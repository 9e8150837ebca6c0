package config

import (
	"fmt"

	"github.com/defiweb/go-eth/hexutil"
	"github.com/ethereum/go-ethereum/common"

	"github.com/chronicleprotocol/scalerpc/core/codec"
	"github.com/chronicleprotocol/scalerpc/core/dynamic"
	"github.com/chronicleprotocol/scalerpc/pkg/ss58"
)

// AccountID32 is a 32 byte public key based account.
type AccountID32 [32]byte

// AccountID32FromSS58 parses SS58 text and returns the account and its network prefix.
func AccountID32FromSS58(text string) (AccountID32, uint16, error) {
	raw, prefix, err := ss58.Decode(text)
	if err != nil {
		return AccountID32{}, 0, fmt.Errorf("failed to parse account %q: %w", text, err)
	}
	if len(raw) != 32 {
		return AccountID32{}, 0, fmt.Errorf("account %q has %d bytes, expected 32", text, len(raw))
	}
	return AccountID32(raw), prefix, nil
}

// SS58 renders the account with the given network prefix.
func (a AccountID32) SS58(prefix uint16) string {
	s, err := ss58.Encode(a[:], prefix)
	if err != nil {
		// Only reachable with an out of range prefix.
		return hexutil.BytesToHex(a[:])
	}
	return s
}

// String renders the account with the generic substrate prefix.
func (a AccountID32) String() string {
	return a.SS58(ss58.SubstratePrefix)
}

func (a AccountID32) EncodeTo(w *codec.Writer) error {
	return w.WriteBytes(a[:])
}

func (a AccountID32) AsValue() dynamic.Value {
	return dynamic.Unnamed(dynamic.Bytes(a[:]))
}

type MultiAddressKind uint8

const (
	MultiAddressID MultiAddressKind = iota
	MultiAddressIndex
	MultiAddressRaw
	MultiAddress32
	MultiAddress20
)

// MultiAddress is the address wrapper used by most substrate runtimes.
type MultiAddress struct {
	Kind      MultiAddressKind
	ID        AccountID32
	Index     uint32
	Raw       []byte
	Address32 [32]byte
	Address20 [20]byte
}

func AddressID(acc AccountID32) MultiAddress {
	return MultiAddress{Kind: MultiAddressID, ID: acc}
}

func (m MultiAddress) EncodeTo(w *codec.Writer) error {
	if err := w.WriteU8(uint8(m.Kind)); err != nil {
		return err
	}
	switch m.Kind {
	case MultiAddressID:
		return w.WriteBytes(m.ID[:])
	case MultiAddressIndex:
		return w.WriteCompact(uint64(m.Index))
	case MultiAddressRaw:
		return w.WriteVec(m.Raw)
	case MultiAddress32:
		return w.WriteBytes(m.Address32[:])
	case MultiAddress20:
		return w.WriteBytes(m.Address20[:])
	default:
		return fmt.Errorf("unknown multi address variant %d", m.Kind)
	}
}

func DecodeMultiAddress(r *codec.Reader) (MultiAddress, error) {
	var m MultiAddress
	kind, err := r.ReadU8()
	if err != nil {
		return m, err
	}
	m.Kind = MultiAddressKind(kind)
	switch m.Kind {
	case MultiAddressID:
		err = r.ReadFixed(m.ID[:])
	case MultiAddressIndex:
		m.Index, err = r.ReadCompactU32()
	case MultiAddressRaw:
		m.Raw, err = r.ReadVec()
	case MultiAddress32:
		err = r.ReadFixed(m.Address32[:])
	case MultiAddress20:
		err = r.ReadFixed(m.Address20[:])
	default:
		return m, fmt.Errorf("unknown multi address variant %d", kind)
	}
	return m, err
}

type MultiSignatureKind uint8

const (
	SignatureEd25519 MultiSignatureKind = iota
	SignatureSr25519
	SignatureEcdsa
)

type MultiSignature struct {
	Kind MultiSignatureKind
	// Bytes is 64 bytes long for Ed25519 and Sr25519 and 65 for Ecdsa.
	Bytes []byte
}

func (s MultiSignature) EncodeTo(w *codec.Writer) error {
	want := 64
	if s.Kind == SignatureEcdsa {
		want = 65
	}
	if s.Kind > SignatureEcdsa {
		return fmt.Errorf("unknown signature variant %d", s.Kind)
	}
	if len(s.Bytes) != want {
		return fmt.Errorf("signature has %d bytes, expected %d", len(s.Bytes), want)
	}
	if err := w.WriteU8(uint8(s.Kind)); err != nil {
		return err
	}
	return w.WriteBytes(s.Bytes)
}

// AccountID20 is an ethereum style account.
type AccountID20 common.Address

func (a AccountID20) String() string {
	return common.Address(a).Hex()
}

func (a AccountID20) EncodeTo(w *codec.Writer) error {
	return w.WriteBytes(a[:])
}

// EcdsaSignature is a 65 byte recoverable signature.
type EcdsaSignature [65]byte

func (s EcdsaSignature) EncodeTo(w *codec.Writer) error {
	return w.WriteBytes(s[:])
}

// U32AssetID identifies an asset on chains with numeric asset ids.
type U32AssetID uint32

func (a U32AssetID) AsValue() dynamic.Value {
	return dynamic.U64(uint64(a))
}

func (a AccountID20) AsValue() dynamic.Value {
	return dynamic.Bytes(a[:])
}
