package metadata

import (
	"encoding/binary"

	"golang.org/x/crypto/blake2b"
)

// Shape fingerprints identify the structure of types independently of their ids,
// paths and docs. Two runtimes that lay out a type the same way produce the same
// fingerprint, so a caller built against one can detect that the other changed.

const (
	tagComposite byte = iota
	tagVariant
	tagSequence
	tagArray
	tagTuple
	tagPrimitive
	tagCompact
	tagBitSequence
	tagRecursive
	tagField
	tagRuntimeFn
)

func concatHash(parts ...[]byte) [32]byte {
	h, _ := blake2b.New256(nil)
	for _, p := range parts {
		h.Write(p)
	}
	var out [32]byte
	copy(out[:], h.Sum(nil))
	return out
}

// TypeHash returns the shape fingerprint of a type.
func (r *Registry) TypeHash(id uint32) ([32]byte, error) {
	return r.typeHash(id, map[uint32]bool{})
}

func (r *Registry) typeHash(id uint32, visiting map[uint32]bool) ([32]byte, error) {
	if visiting[id] {
		return concatHash([]byte{tagRecursive}), nil
	}
	t, err := r.Resolve(id)
	if err != nil {
		return [32]byte{}, err
	}
	visiting[id] = true
	defer delete(visiting, id)

	def := &t.Def
	switch def.Kind {
	case DefComposite:
		parts := [][]byte{{tagComposite}}
		for _, f := range def.Fields {
			fh, err := r.fieldHash(f.Name, f.Type, visiting)
			if err != nil {
				return [32]byte{}, err
			}
			parts = append(parts, fh[:])
		}
		return concatHash(parts...), nil
	case DefVariant:
		parts := [][]byte{{tagVariant}}
		for _, v := range def.Variants {
			fields := [][]byte{{v.Index}, []byte(v.Name)}
			for _, f := range v.Fields {
				fh, err := r.fieldHash(f.Name, f.Type, visiting)
				if err != nil {
					return [32]byte{}, err
				}
				fields = append(fields, fh[:])
			}
			vh := concatHash(fields...)
			parts = append(parts, vh[:])
		}
		return concatHash(parts...), nil
	case DefSequence, DefCompact:
		eh, err := r.typeHash(def.Elem, visiting)
		if err != nil {
			return [32]byte{}, err
		}
		tag := tagSequence
		if def.Kind == DefCompact {
			tag = tagCompact
		}
		return concatHash([]byte{tag}, eh[:]), nil
	case DefArray:
		eh, err := r.typeHash(def.Elem, visiting)
		if err != nil {
			return [32]byte{}, err
		}
		return concatHash([]byte{tagArray}, binary.LittleEndian.AppendUint32(nil, def.Len), eh[:]), nil
	case DefTuple:
		parts := [][]byte{{tagTuple}}
		for _, e := range def.Tuple {
			eh, err := r.typeHash(e, visiting)
			if err != nil {
				return [32]byte{}, err
			}
			parts = append(parts, eh[:])
		}
		return concatHash(parts...), nil
	case DefPrimitive:
		return concatHash([]byte{tagPrimitive, byte(def.Primitive)}), nil
	default:
		sh, err := r.typeHash(def.BitStore, visiting)
		if err != nil {
			return [32]byte{}, err
		}
		oh, err := r.typeHash(def.BitOrder, visiting)
		if err != nil {
			return [32]byte{}, err
		}
		return concatHash([]byte{tagBitSequence}, sh[:], oh[:]), nil
	}
}

func (r *Registry) fieldHash(name string, id uint32, visiting map[uint32]bool) ([32]byte, error) {
	th, err := r.typeHash(id, visiting)
	if err != nil {
		return [32]byte{}, err
	}
	return concatHash([]byte{tagField}, []byte(name), th[:]), nil
}

// RuntimeFnHash fingerprints a runtime function: its name, the names and shapes
// of its inputs and the shape of its output.
func (m *Metadata) RuntimeFnHash(name string) ([32]byte, error) {
	api, method, err := m.RuntimeFn(name)
	if err != nil {
		return [32]byte{}, err
	}
	parts := [][]byte{{tagRuntimeFn}, []byte(api.Name), []byte(method.Name)}
	for _, in := range method.Inputs {
		fh, err := m.Types.fieldHash(in.Name, in.Type, map[uint32]bool{})
		if err != nil {
			return [32]byte{}, err
		}
		parts = append(parts, fh[:])
	}
	oh, err := m.Types.TypeHash(method.Output)
	if err != nil {
		return [32]byte{}, err
	}
	parts = append(parts, oh[:])
	return concatHash(parts...), nil
}
