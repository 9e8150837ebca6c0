package extrinsic

import (
	"fmt"

	"golang.org/x/crypto/blake2b"

	"github.com/chronicleprotocol/scalerpc/core/clienterrors"
	"github.com/chronicleprotocol/scalerpc/core/codec"
	"github.com/chronicleprotocol/scalerpc/core/config"
	"github.com/chronicleprotocol/scalerpc/core/dynamic"
	"github.com/chronicleprotocol/scalerpc/core/metadata"
)

// Version is the extrinsic format version produced by this package.
const Version = 4

const signedBit = 0b1000_0000

// Encoder is implemented by addresses and signatures.
type Encoder interface {
	EncodeTo(w *codec.Writer) error
}

// Signer signs payloads on behalf of an address.
type Signer[Addr, Sig Encoder] interface {
	Address() Addr
	Sign(payload []byte) (Sig, error)
}

// Call is a pallet call addressed by name.
type Call struct {
	Pallet string
	Name   string
	// Args holds the call fields, all named or all positional.
	Args dynamic.Value
}

func NewCall(pallet, name string, args dynamic.Value) Call {
	return Call{Pallet: pallet, Name: name, Args: args}
}

// Encode encodes the call through the outer call type of the runtime.
func (c Call) Encode(md *metadata.Metadata) ([]byte, error) {
	if _, err := md.Pallet(c.Pallet); err != nil {
		return nil, err
	}
	inner := dynamic.Value{Kind: dynamic.KindVariant, Name: c.Name, Fields: c.Args.Fields}
	return dynamic.Encode(md.Types, md.Extrinsic.CallType, dynamic.Variant(c.Pallet, inner))
}

// SignerPayload returns the bytes to sign: call ‖ extra ‖ additional, replaced
// by its blake2-256 hash when longer than 256 bytes.
func SignerPayload(call []byte, enc *Encoded) []byte {
	payload := make([]byte, 0, len(call)+len(enc.Extra)+len(enc.Additional))
	payload = append(payload, call...)
	payload = append(payload, enc.Extra...)
	payload = append(payload, enc.Additional...)
	if len(payload) > 256 {
		h := blake2b.Sum256(payload)
		return h[:]
	}
	return payload
}

// Unsigned wraps a call into a length prefixed unsigned extrinsic.
func Unsigned(call []byte) []byte {
	body := make([]byte, 0, len(call)+1)
	body = append(body, Version)
	body = append(body, call...)
	return lengthPrefixed(body)
}

// Signed wraps a call, its sender, signature and extra into a length prefixed
// signed extrinsic.
func Signed(address, signature Encoder, extra, call []byte) ([]byte, error) {
	w := codec.NewWriter()
	if err := w.WriteU8(Version | signedBit); err != nil {
		return nil, err
	}
	if err := address.EncodeTo(w); err != nil {
		return nil, clienterrors.Encode(fmt.Errorf("failed to encode address: %w", err))
	}
	if err := signature.EncodeTo(w); err != nil {
		return nil, clienterrors.Encode(fmt.Errorf("failed to encode signature: %w", err))
	}
	if err := w.WriteBytes(extra); err != nil {
		return nil, err
	}
	if err := w.WriteBytes(call); err != nil {
		return nil, err
	}
	return lengthPrefixed(w.Bytes()), nil
}

// Sign encodes params and call against the metadata, signs the payload and
// returns the signed extrinsic.
func Sign[Addr, Sig Encoder, H config.Hash, A AssetID](
	md *metadata.Metadata,
	call Call,
	params *Params[H, A],
	signer Signer[Addr, Sig],
) ([]byte, error) {
	callData, err := call.Encode(md)
	if err != nil {
		return nil, err
	}
	enc, err := params.Encode(md)
	if err != nil {
		return nil, err
	}
	sig, err := signer.Sign(SignerPayload(callData, enc))
	if err != nil {
		return nil, fmt.Errorf("failed to sign extrinsic: %w", err)
	}
	return Signed(signer.Address(), sig, enc.Extra, callData)
}

func lengthPrefixed(body []byte) []byte {
	out := codec.EncodeCompact(uint64(len(body)))
	return append(out, body...)
}
