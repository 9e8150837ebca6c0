package dynamic

import (
	"fmt"

	"github.com/chronicleprotocol/scalerpc/core/metadata"
)

// bitLayout is the storage of a bit sequence: the width of a store word and the
// order of bits inside it.
type bitLayout struct {
	width int
	msb0  bool
}

func bitLayoutOf(reg *metadata.Registry, def *metadata.TypeDef) (bitLayout, error) {
	store, err := reg.Resolve(def.BitStore)
	if err != nil {
		return bitLayout{}, err
	}
	if store.Def.Kind != metadata.DefPrimitive {
		return bitLayout{}, fmt.Errorf("bit store must be a primitive")
	}
	var l bitLayout
	switch store.Def.Primitive {
	case metadata.PrimU8, metadata.PrimU16, metadata.PrimU32, metadata.PrimU64:
		l.width = store.Def.Primitive.Width()
	default:
		return bitLayout{}, fmt.Errorf("unsupported bit store %s", store.Def.Primitive)
	}
	order, err := reg.Resolve(def.BitOrder)
	if err != nil {
		return bitLayout{}, err
	}
	switch name := order.PathString(); {
	case len(order.Path) > 0 && order.Path[len(order.Path)-1] == "Lsb0":
	case len(order.Path) > 0 && order.Path[len(order.Path)-1] == "Msb0":
		l.msb0 = true
	default:
		return bitLayout{}, fmt.Errorf("unsupported bit order %q", name)
	}
	return l, nil
}

func (l bitLayout) words(n int) int {
	per := l.width * 8
	return (n + per - 1) / per
}

func (l bitLayout) pack(bits []bool) []byte {
	per := l.width * 8
	out := make([]byte, l.words(len(bits))*l.width)
	for i, set := range bits {
		if !set {
			continue
		}
		word, pos := i/per, i%per
		if l.msb0 {
			pos = per - 1 - pos
		}
		// Store words are little endian.
		out[word*l.width+pos/8] |= 1 << (pos % 8)
	}
	return out
}

func (l bitLayout) unpack(data []byte, n int) []bool {
	per := l.width * 8
	bits := make([]bool, n)
	for i := range bits {
		word, pos := i/per, i%per
		if l.msb0 {
			pos = per - 1 - pos
		}
		bits[i] = data[word*l.width+pos/8]&(1<<(pos%8)) != 0
	}
	return bits
}
