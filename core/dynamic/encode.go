//  Copyright (C) 2021-2023 Chronicle Labs, Inc.
//
//  This program is free software: you can redistribute it and/or modify
//  it under the terms of the GNU Affero General Public License as
//  published by the Free Software Foundation, either version 3 of the
//  License, or (at your option) any later version.
//
//  This program is distributed in the hope that it will be useful,
//  but WITHOUT ANY WARRANTY; without even the implied warranty of
//  MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
//  GNU Affero General Public License for more details.
//
//  You should have received a copy of the GNU Affero General Public License
//  along with this program.  If not, see <http://www.gnu.org/licenses/>.

package dynamic

import (
	"errors"
	"fmt"
	"math/big"
	"strings"

	"github.com/holiman/uint256"

	"github.com/chronicleprotocol/scalerpc/core/clienterrors"
	"github.com/chronicleprotocol/scalerpc/core/codec"
	"github.com/chronicleprotocol/scalerpc/core/metadata"
)

// EncodeError describes a value that does not fit the type it is encoded as.
type EncodeError struct {
	Path []string
	Msg  string
}

func (e *EncodeError) Error() string {
	if len(e.Path) == 0 {
		return e.Msg
	}
	return fmt.Sprintf("%s: %s", strings.Join(e.Path, "."), e.Msg)
}

// Encode encodes v as the registry type typeID.
func Encode(reg *metadata.Registry, typeID uint32, v Value) ([]byte, error) {
	w := codec.NewWriter()
	if err := EncodeTo(w, reg, typeID, v); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

// EncodeTo appends the encoding of v to w. Structural mismatches are returned
// as Encode errors, unknown type ids as Metadata errors.
func EncodeTo(w *codec.Writer, reg *metadata.Registry, typeID uint32, v Value) error {
	e := &encoder{reg: reg, w: w}
	err := e.encode(typeID, v, nil)
	var encErr *EncodeError
	if errors.As(err, &encErr) {
		return clienterrors.Encode(err)
	}
	return err
}

type encoder struct {
	reg *metadata.Registry
	w   *codec.Writer
}

func encodeErr(path []string, format string, args ...any) error {
	return &EncodeError{Path: append([]string(nil), path...), Msg: fmt.Sprintf(format, args...)}
}

func (e *encoder) encode(id uint32, v Value, path []string) error {
	t, err := e.reg.Resolve(id)
	if err != nil {
		return err
	}
	def := &t.Def
	switch def.Kind {
	case metadata.DefComposite:
		return e.fields(def.Fields, v, path)
	case metadata.DefVariant:
		if v.Kind != KindVariant {
			return encodeErr(path, "expected a variant of %s, got %s", t.PathString(), v.Kind)
		}
		variant, ok := t.VariantByName(v.Name)
		if !ok {
			return encodeErr(path, "%s has no variant %s", t.PathString(), v.Name)
		}
		_ = e.w.WriteU8(variant.Index)
		return e.fields(variant.Fields, Value{Kind: KindComposite, Fields: v.Fields}, append(path, v.Name))
	case metadata.DefSequence:
		return e.sequence(def.Elem, -1, v, path)
	case metadata.DefArray:
		return e.sequence(def.Elem, int(def.Len), v, path)
	case metadata.DefTuple:
		return e.tuple(def.Tuple, v, path)
	case metadata.DefPrimitive:
		return e.primitive(def.Primitive, v.Unwrap(), path)
	case metadata.DefCompact:
		return e.compact(def.Elem, v.Unwrap(), path)
	case metadata.DefBitSequence:
		return e.bits(def, v.Unwrap(), path)
	default:
		return encodeErr(path, "unsupported type definition %s", def.Kind)
	}
}

func (e *encoder) fields(fields []metadata.Field, v Value, path []string) error {
	if (v.Kind == KindComposite || v.Kind == KindVariant) && len(v.Fields) == len(fields) {
		byName := v.IsNamed() && namedFields(fields)
		for i, f := range fields {
			fv := v.Fields[i].Value
			if byName {
				var ok bool
				if fv, ok = v.Get(f.Name); !ok {
					return encodeErr(path, "missing field %s", f.Name)
				}
			}
			if err := e.encode(f.Type, fv, append(path, fieldLabel(f.Name, i))); err != nil {
				return err
			}
		}
		return nil
	}
	// Newtype wrappers accept their inner value directly.
	if len(fields) == 1 {
		return e.encode(fields[0].Type, v, path)
	}
	return encodeErr(path, "expected %d fields, got %s with %d", len(fields), v.Kind, len(v.Fields))
}

func (e *encoder) sequence(elem uint32, length int, v Value, path []string) error {
	if e.isU8(elem) && (v.Kind == KindBytes || v.Kind == KindString) {
		b := v.Bytes
		if v.Kind == KindString {
			b = []byte(v.Str)
		}
		if length >= 0 {
			if len(b) != length {
				return encodeErr(path, "expected %d bytes, got %d", length, len(b))
			}
			return e.w.WriteBytes(b)
		}
		return e.w.WriteVec(b)
	}
	if v.Kind != KindComposite {
		return encodeErr(path, "expected a sequence, got %s", v.Kind)
	}
	if length >= 0 && len(v.Fields) != length {
		return encodeErr(path, "expected %d elements, got %d", length, len(v.Fields))
	}
	if length < 0 {
		_ = e.w.WriteCompact(uint64(len(v.Fields)))
	}
	for i, f := range v.Fields {
		if err := e.encode(elem, f.Value, append(path, fmt.Sprint(i))); err != nil {
			return err
		}
	}
	return nil
}

func (e *encoder) tuple(elems []uint32, v Value, path []string) error {
	if v.Kind == KindComposite && len(v.Fields) == len(elems) {
		for i, id := range elems {
			if err := e.encode(id, v.Fields[i].Value, append(path, fmt.Sprint(i))); err != nil {
				return err
			}
		}
		return nil
	}
	if len(elems) == 1 {
		return e.encode(elems[0], v, path)
	}
	return encodeErr(path, "expected a tuple of %d, got %s with %d fields", len(elems), v.Kind, len(v.Fields))
}

func (e *encoder) primitive(p metadata.Primitive, v Value, path []string) error {
	switch p {
	case metadata.PrimBool:
		if v.Kind != KindBool {
			return encodeErr(path, "expected bool, got %s", v.Kind)
		}
		return e.w.WriteBool(v.Bool)
	case metadata.PrimChar:
		if v.Kind != KindChar {
			return encodeErr(path, "expected char, got %s", v.Kind)
		}
		return e.w.WriteU32(uint32(v.Char))
	case metadata.PrimStr:
		if v.Kind != KindString {
			return encodeErr(path, "expected string, got %s", v.Kind)
		}
		return e.w.WriteString(v.Str)
	}
	width := p.Width()
	if p.Signed() {
		x, ok := asBig(v)
		if !ok {
			return encodeErr(path, "expected an integer, got %s", v.Kind)
		}
		bits := uint(width * 8)
		limit := new(big.Int).Lsh(big.NewInt(1), bits-1)
		if x.Cmp(limit) >= 0 || x.Cmp(new(big.Int).Neg(limit)) < 0 {
			return encodeErr(path, "%s does not fit in %s", x, p)
		}
		if x.Sign() < 0 {
			x = new(big.Int).Add(x, new(big.Int).Lsh(big.NewInt(1), bits))
		}
		buf := make([]byte, width)
		x.FillBytes(buf)
		return e.w.WriteBytes(reverse(buf))
	}
	x, ok := asUint256(v)
	if !ok {
		return encodeErr(path, "expected an unsigned integer, got %s", v.Kind)
	}
	if x.BitLen() > width*8 {
		return encodeErr(path, "%s does not fit in %s", x.ToBig(), p)
	}
	return e.w.WriteBytes(littleEndian(x, width))
}

func (e *encoder) compact(elem uint32, v Value, path []string) error {
	p, ok := e.compactPrimitive(elem)
	if !ok {
		return encodeErr(path, "compact of a non integer type")
	}
	x, ok := asUint256(v)
	if !ok {
		return encodeErr(path, "expected an unsigned integer, got %s", v.Kind)
	}
	if x.BitLen() > p.Width()*8 {
		return encodeErr(path, "%s does not fit in %s", x.ToBig(), p)
	}
	return e.w.WriteCompactBig(x.ToBig())
}

func (e *encoder) bits(def *metadata.TypeDef, v Value, path []string) error {
	if v.Kind != KindBits {
		return encodeErr(path, "expected bits, got %s", v.Kind)
	}
	layout, err := bitLayoutOf(e.reg, def)
	if err != nil {
		return encodeErr(path, "%v", err)
	}
	_ = e.w.WriteCompact(uint64(len(v.Bits)))
	return e.w.WriteBytes(layout.pack(v.Bits))
}

// compactPrimitive finds the unsigned primitive behind a compact, looking through
// single field wrappers.
func (e *encoder) compactPrimitive(id uint32) (metadata.Primitive, bool) {
	return compactPrimitive(e.reg, id)
}

func compactPrimitive(reg *metadata.Registry, id uint32) (metadata.Primitive, bool) {
	for depth := 0; depth < 16; depth++ {
		t, err := reg.Resolve(id)
		if err != nil {
			return 0, false
		}
		switch {
		case t.Def.Kind == metadata.DefPrimitive:
			p := t.Def.Primitive
			return p, p >= metadata.PrimU8 && p <= metadata.PrimU256
		case t.Def.Kind == metadata.DefComposite && len(t.Def.Fields) == 1:
			id = t.Def.Fields[0].Type
		case t.Def.Kind == metadata.DefTuple && len(t.Def.Tuple) == 0:
			// Compact<()> encodes as zero.
			return metadata.PrimU8, true
		default:
			return 0, false
		}
	}
	return 0, false
}

func (e *encoder) isU8(id uint32) bool {
	return isU8(e.reg, id)
}

func isU8(reg *metadata.Registry, id uint32) bool {
	t, err := reg.Resolve(id)
	return err == nil && t.Def.Kind == metadata.DefPrimitive && t.Def.Primitive == metadata.PrimU8
}

func namedFields(fields []metadata.Field) bool {
	for _, f := range fields {
		if f.Name == "" {
			return false
		}
	}
	return len(fields) > 0
}

func fieldLabel(name string, i int) string {
	if name != "" {
		return name
	}
	return fmt.Sprint(i)
}

func asUint256(v Value) (*uint256.Int, bool) {
	switch v.Kind {
	case KindUint:
		if v.Uint == nil {
			return new(uint256.Int), true
		}
		return v.Uint, true
	case KindInt:
		if v.Int == nil {
			return new(uint256.Int), true
		}
		if v.Int.Sign() < 0 {
			return nil, false
		}
		x, overflow := uint256.FromBig(v.Int)
		return x, !overflow
	}
	return nil, false
}

func asBig(v Value) (*big.Int, bool) {
	switch v.Kind {
	case KindInt:
		if v.Int == nil {
			return new(big.Int), true
		}
		return v.Int, true
	case KindUint:
		if v.Uint == nil {
			return new(big.Int), true
		}
		return v.Uint.ToBig(), true
	}
	return nil, false
}

func littleEndian(x *uint256.Int, width int) []byte {
	be := x.Bytes32()
	return reverse(append([]byte(nil), be[32-width:]...))
}

func reverse(b []byte) []byte {
	for i, j := 0, len(b)-1; i < j; i, j = i+1, j-1 {
		b[i], b[j] = b[j], b[i]
	}
	return b
}
