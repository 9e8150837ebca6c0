package tx

import (
	"fmt"

	"github.com/chronicleprotocol/scalerpc/core/clienterrors"
	"github.com/chronicleprotocol/scalerpc/core/dynamic"
	"github.com/chronicleprotocol/scalerpc/core/metadata"
)

// DecodeDispatchError turns the encoded DispatchError of a failed extrinsic
// into a Runtime error. Module errors are resolved to the pallet error
// variant. Bytes that cannot be decoded are returned as an Unknown error.
func DecodeDispatchError(md *metadata.Metadata, raw []byte) error {
	typeID, ok := md.DispatchErrorType()
	if !ok {
		return clienterrors.Unknown(raw)
	}
	v, err := dynamic.Decode(md.Types, typeID, raw)
	if err != nil {
		return clienterrors.Unknown(raw)
	}
	de, err := DispatchErrorFromValue(md, v)
	if err != nil {
		return clienterrors.Unknown(raw)
	}
	return clienterrors.Runtime(de)
}

// DispatchErrorFromValue converts a decoded DispatchError value, as found in
// the ExtrinsicFailed event.
func DispatchErrorFromValue(md *metadata.Metadata, v dynamic.Value) (*clienterrors.DispatchError, error) {
	if v.Kind != dynamic.KindVariant {
		return nil, fmt.Errorf("dispatch error is a %s, expected a variant", v.Kind)
	}
	kind, ok := clienterrors.DispatchKindByName(v.Name)
	if !ok {
		return nil, fmt.Errorf("unknown dispatch error %s", v.Name)
	}
	de := &clienterrors.DispatchError{Kind: kind}
	inner, _ := v.At(0)
	switch kind {
	case clienterrors.DispatchModule:
		m, err := moduleError(md, inner)
		if err != nil {
			return nil, err
		}
		de.Module = m
	case clienterrors.DispatchToken, clienterrors.DispatchArithmetic, clienterrors.DispatchTransactional:
		de.Detail = inner.Name
	}
	return de, nil
}

func moduleError(md *metadata.Metadata, v dynamic.Value) (*clienterrors.ModuleError, error) {
	idx, ok := v.Get("index")
	if !ok {
		return nil, fmt.Errorf("module error without pallet index")
	}
	palletIndex, ok := idx.AsUint64()
	if !ok || palletIndex > 0xff {
		return nil, fmt.Errorf("invalid pallet index in module error")
	}
	m := &clienterrors.ModuleError{PalletIndex: uint8(palletIndex)}

	errVal, ok := v.Get("error")
	if !ok {
		return nil, fmt.Errorf("module error without error index")
	}
	switch errVal.Kind {
	case dynamic.KindBytes:
		copy(m.Raw[:], errVal.Bytes)
	default:
		// Older runtimes encode the error as a single byte.
		n, ok := errVal.AsUint64()
		if !ok || n > 0xff {
			return nil, fmt.Errorf("invalid error index in module error")
		}
		m.Raw[0] = uint8(n)
	}

	pallet, err := md.PalletByIndex(m.PalletIndex)
	if err != nil || pallet.Errors == nil {
		return m, nil
	}
	m.Pallet = pallet.Name
	t, err := md.Types.Resolve(*pallet.Errors)
	if err != nil {
		return m, nil
	}
	if variant, ok := t.VariantByIndex(m.Raw[0]); ok {
		m.Name = variant.Name
		m.Docs = variant.Docs
	} else {
		m.Pallet = ""
	}
	return m, nil
}
