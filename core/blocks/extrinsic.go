package blocks

import (
	"fmt"

	"github.com/chronicleprotocol/scalerpc/core/clienterrors"
	"github.com/chronicleprotocol/scalerpc/core/codec"
	"github.com/chronicleprotocol/scalerpc/core/dynamic"
	"github.com/chronicleprotocol/scalerpc/core/metadata"
)

const (
	signedBit   = 0b1000_0000
	versionMask = 0b0111_1111
)

// Extrinsic is a decoded block extrinsic. Address, Signature and Extra are
// only set for signed extrinsics.
type Extrinsic struct {
	Index     int
	Bytes     []byte
	Signed    bool
	Address   dynamic.Value
	Signature dynamic.Value
	Extra     dynamic.Value
	// Call is the outer call value: a variant named after the pallet whose
	// single field is the call variant.
	Call     dynamic.Value
	Pallet   string
	CallName string
}

// DecodeExtrinsic decodes one length prefixed extrinsic with the types the
// metadata declares for the extrinsic envelope.
func DecodeExtrinsic(md *metadata.Metadata, raw []byte) (*Extrinsic, error) {
	r := codec.NewReader(raw)
	body, err := r.ReadVec()
	if err == nil {
		err = r.Finish()
	}
	if err != nil {
		return nil, clienterrors.BlockDecodingErr(fmt.Errorf("invalid extrinsic length prefix: %w", err))
	}
	if len(body) == 0 {
		return nil, clienterrors.BlockDecodingErr(fmt.Errorf("empty extrinsic"))
	}
	ext := &Extrinsic{Bytes: raw, Signed: body[0]&signedBit != 0}
	if version := body[0] & versionMask; version != clienterrors.SupportedExtrinsicVersion {
		return nil, clienterrors.BlockUnsupportedVersionError(version)
	}

	br := codec.NewReader(body[1:])
	if ext.Signed {
		x := &md.Extrinsic
		if !hasTypes(md.Types, x.AddressType, x.SignatureType, x.ExtraType) {
			return nil, clienterrors.BlockMissingTypeError()
		}
		if ext.Address, err = decodePart(br, md.Types, x.AddressType, "address"); err != nil {
			return nil, err
		}
		if ext.Signature, err = decodePart(br, md.Types, x.SignatureType, "signature"); err != nil {
			return nil, err
		}
		if ext.Extra, err = decodePart(br, md.Types, x.ExtraType, "signed extensions"); err != nil {
			return nil, err
		}
	}
	if !hasTypes(md.Types, md.Extrinsic.CallType) {
		return nil, clienterrors.BlockMissingTypeError()
	}
	if ext.Call, err = decodePart(br, md.Types, md.Extrinsic.CallType, "call"); err != nil {
		return nil, err
	}
	if err := br.Finish(); err != nil {
		return nil, clienterrors.BlockDecodingErr(err)
	}
	ext.Pallet = ext.Call.Name
	if inner, ok := ext.Call.At(0); ok {
		ext.CallName = inner.Name
	}
	return ext, nil
}

func hasTypes(reg *metadata.Registry, ids ...uint32) bool {
	for _, id := range ids {
		if _, err := reg.Resolve(id); err != nil {
			return false
		}
	}
	return true
}

func decodePart(r *codec.Reader, reg *metadata.Registry, id uint32, what string) (dynamic.Value, error) {
	v, err := dynamic.DecodeFrom(r, reg, id)
	if err != nil {
		return dynamic.Value{}, clienterrors.BlockDecodingErr(fmt.Errorf("failed to decode %s: %w", what, err))
	}
	return v, nil
}
