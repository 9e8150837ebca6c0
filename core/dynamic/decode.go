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
	"unicode/utf8"

	"github.com/holiman/uint256"

	"github.com/chronicleprotocol/scalerpc/core/clienterrors"
	"github.com/chronicleprotocol/scalerpc/core/codec"
	"github.com/chronicleprotocol/scalerpc/core/metadata"
)

// maxDepth bounds type nesting so that a self referential type cannot recurse
// without consuming input.
const maxDepth = 256

// maxZeroSizedElems bounds sequences whose elements take no input bytes, as
// their length cannot be checked against the remaining input.
const maxZeroSizedElems = 1 << 16

// DecodeError describes bytes that do not match the type they are decoded as.
type DecodeError struct {
	Path []string
	Err  error
}

func (e *DecodeError) Error() string {
	if len(e.Path) == 0 {
		return e.Err.Error()
	}
	return fmt.Sprintf("%s: %v", strings.Join(e.Path, "."), e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}

// Decode decodes data as the registry type typeID. All of data must be consumed.
func Decode(reg *metadata.Registry, typeID uint32, data []byte) (Value, error) {
	r := codec.NewReader(data)
	v, err := DecodeFrom(r, reg, typeID)
	if err != nil {
		return Value{}, err
	}
	if err := r.Finish(); err != nil {
		return Value{}, clienterrors.Decode(&DecodeError{Err: err})
	}
	return v, nil
}

// DecodeFrom decodes one value of type typeID from r, leaving the rest unread.
func DecodeFrom(r *codec.Reader, reg *metadata.Registry, typeID uint32) (Value, error) {
	d := &decoder{reg: reg, r: r}
	v, err := d.decode(typeID, nil)
	var decErr *DecodeError
	if errors.As(err, &decErr) {
		return Value{}, clienterrors.Decode(err)
	}
	return v, err
}

type decoder struct {
	reg *metadata.Registry
	r   *codec.Reader
}

func decodeErr(path []string, err error) error {
	return &DecodeError{Path: append([]string(nil), path...), Err: err}
}

func (d *decoder) decode(id uint32, path []string) (Value, error) {
	if len(path) > maxDepth {
		return Value{}, decodeErr(path, fmt.Errorf("type nesting exceeds %d levels", maxDepth))
	}
	t, err := d.reg.Resolve(id)
	if err != nil {
		return Value{}, err
	}
	def := &t.Def
	switch def.Kind {
	case metadata.DefComposite:
		return d.fields(def.Fields, path)
	case metadata.DefVariant:
		index, err := d.r.ReadU8()
		if err != nil {
			return Value{}, decodeErr(path, err)
		}
		variant, ok := t.VariantByIndex(index)
		if !ok {
			return Value{}, decodeErr(path, fmt.Errorf("%s has no variant with index %d", t.PathString(), index))
		}
		v, err := d.fields(variant.Fields, append(path, variant.Name))
		if err != nil {
			return Value{}, err
		}
		v.Kind = KindVariant
		v.Name = variant.Name
		return v, nil
	case metadata.DefSequence:
		n, err := d.r.ReadCompact()
		if err != nil {
			return Value{}, decodeErr(path, err)
		}
		if d.reg.IsZeroSized(def.Elem) {
			if n > maxZeroSizedElems {
				return Value{}, decodeErr(path, fmt.Errorf("sequence of %d zero sized elements exceeds %d", n, maxZeroSizedElems))
			}
		} else if n > uint64(d.r.Remaining()) {
			return Value{}, decodeErr(path, fmt.Errorf("sequence of %d elements exceeds input: %w", n, codec.ErrNotEnoughData))
		}
		return d.elements(def.Elem, int(n), path)
	case metadata.DefArray:
		return d.elements(def.Elem, int(def.Len), path)
	case metadata.DefTuple:
		fields := make([]NamedValue, 0, len(def.Tuple))
		for i, elem := range def.Tuple {
			v, err := d.decode(elem, append(path, fmt.Sprint(i)))
			if err != nil {
				return Value{}, err
			}
			fields = append(fields, NamedValue{Value: v})
		}
		return Value{Kind: KindComposite, Fields: fields}, nil
	case metadata.DefPrimitive:
		return d.primitive(def.Primitive, path)
	case metadata.DefCompact:
		return d.compact(def.Elem, path)
	case metadata.DefBitSequence:
		layout, err := bitLayoutOf(d.reg, def)
		if err != nil {
			return Value{}, decodeErr(path, err)
		}
		n, err := d.r.ReadCompact()
		if err != nil {
			return Value{}, decodeErr(path, err)
		}
		if n > uint64(d.r.Remaining())*8 {
			return Value{}, decodeErr(path, codec.ErrNotEnoughData)
		}
		data, err := d.r.ReadBytes(layout.words(int(n)) * layout.width)
		if err != nil {
			return Value{}, decodeErr(path, err)
		}
		return Bits(layout.unpack(data, int(n))), nil
	default:
		return Value{}, decodeErr(path, fmt.Errorf("unsupported type definition %s", def.Kind))
	}
}

func (d *decoder) fields(fields []metadata.Field, path []string) (Value, error) {
	out := make([]NamedValue, 0, len(fields))
	for i, f := range fields {
		v, err := d.decode(f.Type, append(path, fieldLabel(f.Name, i)))
		if err != nil {
			return Value{}, err
		}
		out = append(out, NamedValue{Name: f.Name, Value: v})
	}
	return Value{Kind: KindComposite, Fields: out}, nil
}

func (d *decoder) elements(elem uint32, n int, path []string) (Value, error) {
	if isU8(d.reg, elem) {
		b, err := d.r.ReadBytes(n)
		if err != nil {
			return Value{}, decodeErr(path, err)
		}
		return Bytes(b), nil
	}
	fields := make([]NamedValue, 0, min(n, 1024))
	for i := 0; i < n; i++ {
		v, err := d.decode(elem, append(path, fmt.Sprint(i)))
		if err != nil {
			return Value{}, err
		}
		fields = append(fields, NamedValue{Value: v})
	}
	return Value{Kind: KindComposite, Fields: fields}, nil
}

func (d *decoder) primitive(p metadata.Primitive, path []string) (Value, error) {
	switch p {
	case metadata.PrimBool:
		b, err := d.r.ReadBool()
		if err != nil {
			return Value{}, decodeErr(path, err)
		}
		return Bool(b), nil
	case metadata.PrimChar:
		c, err := d.r.ReadU32()
		if err != nil {
			return Value{}, decodeErr(path, err)
		}
		if !utf8.ValidRune(rune(c)) {
			return Value{}, decodeErr(path, fmt.Errorf("invalid char 0x%x", c))
		}
		return Char(rune(c)), nil
	case metadata.PrimStr:
		s, err := d.r.ReadString()
		if err != nil {
			return Value{}, decodeErr(path, err)
		}
		return String(s), nil
	}
	width := p.Width()
	if width == 0 {
		return Value{}, decodeErr(path, fmt.Errorf("unknown primitive %d", p))
	}
	le, err := d.r.ReadBytes(width)
	if err != nil {
		return Value{}, decodeErr(path, err)
	}
	be := reverse(append([]byte(nil), le...))
	if !p.Signed() {
		return Value{Kind: KindUint, Uint: new(uint256.Int).SetBytes(be)}, nil
	}
	x := new(big.Int).SetBytes(be)
	bits := uint(width * 8)
	if x.Bit(int(bits-1)) == 1 {
		x.Sub(x, new(big.Int).Lsh(big.NewInt(1), bits))
	}
	return Value{Kind: KindInt, Int: x}, nil
}

func (d *decoder) compact(elem uint32, path []string) (Value, error) {
	p, ok := compactPrimitive(d.reg, elem)
	if !ok {
		return Value{}, decodeErr(path, fmt.Errorf("compact of a non integer type"))
	}
	b, err := d.r.ReadCompactBig()
	if err != nil {
		return Value{}, decodeErr(path, err)
	}
	if b.BitLen() > p.Width()*8 {
		return Value{}, decodeErr(path, fmt.Errorf("compact value %s does not fit in %s", b, p))
	}
	x, _ := uint256.FromBig(b)
	return Value{Kind: KindUint, Uint: x}, nil
}
