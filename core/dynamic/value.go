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

// Package dynamic encodes and decodes values whose shape is only known from a
// metadata type registry at runtime.
package dynamic

import (
	"fmt"
	"math/big"
	"strings"

	"github.com/defiweb/go-eth/hexutil"
	"github.com/holiman/uint256"
)

type Kind uint8

const (
	KindComposite Kind = iota
	KindVariant
	KindBool
	KindChar
	KindString
	KindBytes
	KindUint
	KindInt
	KindBits
)

func (k Kind) String() string {
	switch k {
	case KindComposite:
		return "composite"
	case KindVariant:
		return "variant"
	case KindBool:
		return "bool"
	case KindChar:
		return "char"
	case KindString:
		return "string"
	case KindBytes:
		return "bytes"
	case KindUint:
		return "uint"
	case KindInt:
		return "int"
	case KindBits:
		return "bits"
	default:
		return "unknown"
	}
}

// Value is a self describing value. Only the fields relevant to Kind are set.
type Value struct {
	Kind Kind
	// Name is the variant name.
	Name   string
	Fields []NamedValue
	Bool   bool
	Char   rune
	Str    string
	Bytes  []byte
	Uint   *uint256.Int
	Int    *big.Int
	Bits   []bool
}

// NamedValue is a field of a composite or variant. Name is empty for unnamed fields.
type NamedValue struct {
	Name  string
	Value Value
}

func Field(name string, v Value) NamedValue {
	return NamedValue{Name: name, Value: v}
}

// Named builds a composite with named fields.
func Named(fields ...NamedValue) Value {
	return Value{Kind: KindComposite, Fields: fields}
}

// Unnamed builds a composite with positional fields.
func Unnamed(values ...Value) Value {
	fields := make([]NamedValue, len(values))
	for i, v := range values {
		fields[i] = NamedValue{Value: v}
	}
	return Value{Kind: KindComposite, Fields: fields}
}

// Variant builds an enum value with positional fields.
func Variant(name string, values ...Value) Value {
	v := Unnamed(values...)
	v.Kind = KindVariant
	v.Name = name
	return v
}

// NamedVariant builds an enum value with named fields.
func NamedVariant(name string, fields ...NamedValue) Value {
	return Value{Kind: KindVariant, Name: name, Fields: fields}
}

func Bool(b bool) Value     { return Value{Kind: KindBool, Bool: b} }
func Char(c rune) Value     { return Value{Kind: KindChar, Char: c} }
func String(s string) Value { return Value{Kind: KindString, Str: s} }
func Bits(b []bool) Value   { return Value{Kind: KindBits, Bits: b} }

func Bytes(b []byte) Value {
	return Value{Kind: KindBytes, Bytes: b}
}

func U64(v uint64) Value {
	return Value{Kind: KindUint, Uint: uint256.NewInt(v)}
}

func U256(v *uint256.Int) Value {
	return Value{Kind: KindUint, Uint: new(uint256.Int).Set(v)}
}

func I64(v int64) Value {
	return Value{Kind: KindInt, Int: big.NewInt(v)}
}

func BigInt(v *big.Int) Value {
	return Value{Kind: KindInt, Int: new(big.Int).Set(v)}
}

// IsNamed reports whether the value has fields and all of them are named.
func (v Value) IsNamed() bool {
	if len(v.Fields) == 0 {
		return false
	}
	for _, f := range v.Fields {
		if f.Name == "" {
			return false
		}
	}
	return true
}

// At returns the positional field i.
func (v Value) At(i int) (Value, bool) {
	if i < 0 || i >= len(v.Fields) {
		return Value{}, false
	}
	return v.Fields[i].Value, true
}

// Get returns the field with the given name.
func (v Value) Get(name string) (Value, bool) {
	for _, f := range v.Fields {
		if f.Name == name {
			return f.Value, true
		}
	}
	return Value{}, false
}

// AsUint64 returns an unsigned value as uint64.
func (v Value) AsUint64() (uint64, bool) {
	switch v.Kind {
	case KindUint:
		if v.Uint != nil && v.Uint.IsUint64() {
			return v.Uint.Uint64(), true
		}
	case KindInt:
		if v.Int != nil && v.Int.IsUint64() {
			return v.Int.Uint64(), true
		}
	}
	return 0, false
}

// Unwrap returns the innermost value of a chain of single field composites.
func (v Value) Unwrap() Value {
	for v.Kind == KindComposite && len(v.Fields) == 1 {
		v = v.Fields[0].Value
	}
	return v
}

func (v Value) String() string {
	var sb strings.Builder
	v.write(&sb)
	return sb.String()
}

func (v Value) write(sb *strings.Builder) {
	switch v.Kind {
	case KindComposite, KindVariant:
		if v.Kind == KindVariant {
			sb.WriteString(v.Name)
			if len(v.Fields) == 0 {
				return
			}
			sb.WriteByte(' ')
		}
		open, closing := "(", ")"
		if v.IsNamed() {
			open, closing = "{", "}"
		}
		sb.WriteString(open)
		for i, f := range v.Fields {
			if i > 0 {
				sb.WriteString(", ")
			}
			if f.Name != "" {
				sb.WriteString(f.Name)
				sb.WriteString(": ")
			}
			f.Value.write(sb)
		}
		sb.WriteString(closing)
	case KindBool:
		fmt.Fprintf(sb, "%t", v.Bool)
	case KindChar:
		fmt.Fprintf(sb, "%q", v.Char)
	case KindString:
		fmt.Fprintf(sb, "%q", v.Str)
	case KindBytes:
		sb.WriteString(hexutil.BytesToHex(v.Bytes))
	case KindUint:
		if v.Uint == nil {
			sb.WriteString("0")
		} else {
			sb.WriteString(v.Uint.ToBig().String())
		}
	case KindInt:
		if v.Int == nil {
			sb.WriteString("0")
		} else {
			sb.WriteString(v.Int.String())
		}
	case KindBits:
		sb.WriteString("<")
		for _, b := range v.Bits {
			if b {
				sb.WriteByte('1')
			} else {
				sb.WriteByte('0')
			}
		}
		sb.WriteString(">")
	}
}
