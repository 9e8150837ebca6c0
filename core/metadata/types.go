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

package metadata

import (
	"strings"

	"github.com/chronicleprotocol/scalerpc/core/clienterrors"
)

type DefKind uint8

const (
	DefComposite DefKind = iota
	DefVariant
	DefSequence
	DefArray
	DefTuple
	DefPrimitive
	DefCompact
	DefBitSequence
)

func (k DefKind) String() string {
	switch k {
	case DefComposite:
		return "composite"
	case DefVariant:
		return "variant"
	case DefSequence:
		return "sequence"
	case DefArray:
		return "array"
	case DefTuple:
		return "tuple"
	case DefPrimitive:
		return "primitive"
	case DefCompact:
		return "compact"
	case DefBitSequence:
		return "bit sequence"
	default:
		return "unknown"
	}
}

type Primitive uint8

const (
	PrimBool Primitive = iota
	PrimChar
	PrimStr
	PrimU8
	PrimU16
	PrimU32
	PrimU64
	PrimU128
	PrimU256
	PrimI8
	PrimI16
	PrimI32
	PrimI64
	PrimI128
	PrimI256
)

// Width returns the encoded size in bytes of a fixed width primitive, or 0 for
// bool, char and str.
func (p Primitive) Width() int {
	switch p {
	case PrimU8, PrimI8:
		return 1
	case PrimU16, PrimI16:
		return 2
	case PrimU32, PrimI32:
		return 4
	case PrimU64, PrimI64:
		return 8
	case PrimU128, PrimI128:
		return 16
	case PrimU256, PrimI256:
		return 32
	default:
		return 0
	}
}

func (p Primitive) Signed() bool {
	return p >= PrimI8 && p <= PrimI256
}

func (p Primitive) String() string {
	names := [...]string{"bool", "char", "str", "u8", "u16", "u32", "u64", "u128", "u256", "i8", "i16", "i32", "i64", "i128", "i256"}
	if int(p) < len(names) {
		return names[p]
	}
	return "unknown"
}

type Field struct {
	Name     string
	Type     uint32
	TypeName string
	Docs     []string
}

type Variant struct {
	Name   string
	Fields []Field
	Index  uint8
	Docs   []string
}

type TypeParam struct {
	Name string
	// Type is nil when the parameter is unused.
	Type *uint32
}

// TypeDef is the shape of a type. Only the fields relevant to Kind are set.
type TypeDef struct {
	Kind      DefKind
	Fields    []Field   // composite
	Variants  []Variant // variant
	Elem      uint32    // sequence, array, compact
	Len       uint32    // array
	Tuple     []uint32
	Primitive Primitive
	BitStore  uint32
	BitOrder  uint32
}

type Type struct {
	ID     uint32
	Path   []string
	Params []TypeParam
	Def    TypeDef
	Docs   []string
}

// PathString joins the path with "::".
func (t *Type) PathString() string {
	return strings.Join(t.Path, "::")
}

// Param returns the type id bound to the named type parameter.
func (t *Type) Param(name string) (uint32, bool) {
	for _, p := range t.Params {
		if p.Name == name && p.Type != nil {
			return *p.Type, true
		}
	}
	return 0, false
}

// VariantByName returns the variant of a variant type.
func (t *Type) VariantByName(name string) (*Variant, bool) {
	for i := range t.Def.Variants {
		if t.Def.Variants[i].Name == name {
			return &t.Def.Variants[i], true
		}
	}
	return nil, false
}

func (t *Type) VariantByIndex(index uint8) (*Variant, bool) {
	for i := range t.Def.Variants {
		if t.Def.Variants[i].Index == index {
			return &t.Def.Variants[i], true
		}
	}
	return nil, false
}

// Registry is the portable type registry. Type ids are indexes into it.
type Registry struct {
	types []Type
}

// NewRegistry builds a registry from types ordered by id. The ID field of each
// type is overwritten with its position.
func NewRegistry(types []Type) *Registry {
	r := &Registry{types: make([]Type, len(types))}
	copy(r.types, types)
	for i := range r.types {
		r.types[i].ID = uint32(i)
	}
	return r
}

func (r *Registry) Len() int {
	return len(r.types)
}

// Resolve returns the type with the given id.
func (r *Registry) Resolve(id uint32) (*Type, error) {
	if int(id) >= len(r.types) {
		return nil, clienterrors.TypeNotFoundError(id)
	}
	return &r.types[id], nil
}

// Types returns all registered types.
func (r *Registry) Types() []Type {
	return r.types
}

// FindByPath returns the first type whose path equals path.
func (r *Registry) FindByPath(path ...string) (*Type, bool) {
	for i := range r.types {
		if equalPath(r.types[i].Path, path) {
			return &r.types[i], true
		}
	}
	return nil, false
}

// FindByPathSuffix returns the first type whose last path segment is name.
func (r *Registry) FindByPathSuffix(name string) (*Type, bool) {
	for i := range r.types {
		p := r.types[i].Path
		if len(p) > 0 && p[len(p)-1] == name {
			return &r.types[i], true
		}
	}
	return nil, false
}

// IsZeroSized reports whether values of the type encode to no bytes at all.
func (r *Registry) IsZeroSized(id uint32) bool {
	return r.zeroSized(id, map[uint32]bool{})
}

func (r *Registry) zeroSized(id uint32, seen map[uint32]bool) bool {
	if seen[id] {
		return false
	}
	seen[id] = true
	defer delete(seen, id)
	t, err := r.Resolve(id)
	if err != nil {
		return false
	}
	switch t.Def.Kind {
	case DefComposite:
		for _, f := range t.Def.Fields {
			if !r.zeroSized(f.Type, seen) {
				return false
			}
		}
		return true
	case DefTuple:
		for _, e := range t.Def.Tuple {
			if !r.zeroSized(e, seen) {
				return false
			}
		}
		return true
	case DefArray:
		return t.Def.Len == 0 || r.zeroSized(t.Def.Elem, seen)
	default:
		return false
	}
}

func equalPath(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}
