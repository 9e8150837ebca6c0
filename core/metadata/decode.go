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
	"bytes"
	"fmt"

	"github.com/chronicleprotocol/scalerpc/core/clienterrors"
	"github.com/chronicleprotocol/scalerpc/core/codec"
)

// Magic prefixes every metadata blob.
var Magic = []byte("meta")

const (
	V14 uint8 = 14
	V15 uint8 = 15
)

// Decode parses a metadata blob of version 14 or 15. Failures are reported as
// MetadataDecoding errors.
func Decode(blob []byte) (*Metadata, error) {
	if len(blob) < len(Magic)+1 || !bytes.Equal(blob[:len(Magic)], Magic) {
		return nil, clienterrors.MetadataDecoding(fmt.Errorf("missing metadata magic prefix"))
	}
	version := blob[len(Magic)]
	if version != V14 && version != V15 {
		return nil, clienterrors.MetadataDecoding(fmt.Errorf("unsupported metadata version %d", version))
	}
	d := &decoder{r: codec.NewReader(blob[len(Magic)+1:])}
	md := d.metadata(version)
	if d.err == nil {
		d.err = d.r.Finish()
	}
	if d.err != nil {
		return nil, clienterrors.MetadataDecoding(d.err)
	}
	return md, nil
}

// decoder keeps the first error and turns every later read into a no-op, so the
// structural code below reads like the format it parses.
type decoder struct {
	r   *codec.Reader
	err error
}

func (d *decoder) fail(err error) {
	if d.err == nil {
		d.err = err
	}
}

func (d *decoder) u8() uint8 {
	if d.err != nil {
		return 0
	}
	v, err := d.r.ReadU8()
	d.fail(err)
	return v
}

func (d *decoder) u32() uint32 {
	if d.err != nil {
		return 0
	}
	v, err := d.r.ReadU32()
	d.fail(err)
	return v
}

func (d *decoder) compact() uint32 {
	if d.err != nil {
		return 0
	}
	v, err := d.r.ReadCompactU32()
	d.fail(err)
	return v
}

func (d *decoder) length() int {
	if d.err != nil {
		return 0
	}
	n, err := d.r.ReadLen()
	d.fail(err)
	return n
}

func (d *decoder) str() string {
	if d.err != nil {
		return ""
	}
	s, err := d.r.ReadString()
	d.fail(err)
	return s
}

func (d *decoder) bytes() []byte {
	if d.err != nil {
		return nil
	}
	b, err := d.r.ReadVec()
	d.fail(err)
	return b
}

func (d *decoder) some() bool {
	if d.err != nil {
		return false
	}
	v, err := d.r.ReadOption()
	d.fail(err)
	return v
}

func (d *decoder) strs() []string {
	n := d.length()
	if n == 0 {
		return nil
	}
	out := make([]string, 0, n)
	for i := 0; i < n && d.err == nil; i++ {
		out = append(out, d.str())
	}
	return out
}

func (d *decoder) optStr() string {
	if d.some() {
		return d.str()
	}
	return ""
}

func (d *decoder) optType() *uint32 {
	if d.some() {
		id := d.compact()
		return &id
	}
	return nil
}

func (d *decoder) metadata(version uint8) *Metadata {
	md := &Metadata{Version: version}
	md.Types = d.registry()
	n := d.length()
	for i := 0; i < n && d.err == nil; i++ {
		md.Pallets = append(md.Pallets, d.pallet(version))
	}
	if version == V14 {
		extType := d.compact()
		md.Extrinsic.Version = d.u8()
		md.Extrinsic.SignedExtensions = d.signedExtensions()
		md.RuntimeType = d.compact()
		if d.err == nil {
			d.fail(md.resolveV14(extType))
		}
		return md
	}
	md.Extrinsic.Version = d.u8()
	md.Extrinsic.AddressType = d.compact()
	md.Extrinsic.CallType = d.compact()
	md.Extrinsic.SignatureType = d.compact()
	md.Extrinsic.ExtraType = d.compact()
	md.Extrinsic.SignedExtensions = d.signedExtensions()
	md.RuntimeType = d.compact()
	n = d.length()
	for i := 0; i < n && d.err == nil; i++ {
		md.APIs = append(md.APIs, d.runtimeAPI())
	}
	md.OuterEnums.Call = d.compact()
	md.OuterEnums.Event = d.compact()
	md.OuterEnums.Error = d.compact()
	n = d.length()
	if n > 0 {
		md.Custom = make(map[string]CustomValue, n)
	}
	for i := 0; i < n && d.err == nil; i++ {
		name := d.str()
		md.Custom[name] = CustomValue{Type: d.compact(), Value: d.bytes()}
	}
	return md
}

// resolveV14 fills in what V15 states explicitly: V14 only points at the
// UncheckedExtrinsic type, whose type parameters name the envelope types.
func (m *Metadata) resolveV14(extType uint32) error {
	t, err := m.Types.Resolve(extType)
	if err != nil {
		return err
	}
	for name, dst := range map[string]*uint32{
		"Address":   &m.Extrinsic.AddressType,
		"Call":      &m.Extrinsic.CallType,
		"Signature": &m.Extrinsic.SignatureType,
		"Extra":     &m.Extrinsic.ExtraType,
	} {
		id, ok := t.Param(name)
		if !ok {
			return fmt.Errorf("extrinsic type %s has no %s parameter", t.PathString(), name)
		}
		*dst = id
	}
	m.OuterEnums.Call = m.Extrinsic.CallType
	if ev, ok := m.Types.FindByPathSuffix("RuntimeEvent"); ok {
		m.OuterEnums.Event = ev.ID
	}
	if er, ok := m.Types.FindByPathSuffix("RuntimeError"); ok {
		m.OuterEnums.Error = er.ID
	}
	return nil
}

func (d *decoder) registry() *Registry {
	n := d.length()
	types := make([]Type, 0, n)
	for i := 0; i < n && d.err == nil; i++ {
		id := d.compact()
		if d.err == nil && id != uint32(i) {
			d.fail(fmt.Errorf("type ids are not sequential: found %d at position %d", id, i))
		}
		types = append(types, d.typ())
	}
	return NewRegistry(types)
}

func (d *decoder) typ() Type {
	var t Type
	t.Path = d.strs()
	n := d.length()
	for i := 0; i < n && d.err == nil; i++ {
		t.Params = append(t.Params, TypeParam{Name: d.str(), Type: d.optType()})
	}
	t.Def = d.typeDef()
	t.Docs = d.strs()
	return t
}

func (d *decoder) typeDef() TypeDef {
	var def TypeDef
	def.Kind = DefKind(d.u8())
	if d.err != nil {
		return def
	}
	switch def.Kind {
	case DefComposite:
		def.Fields = d.fields()
	case DefVariant:
		n := d.length()
		for i := 0; i < n && d.err == nil; i++ {
			def.Variants = append(def.Variants, Variant{
				Name:   d.str(),
				Fields: d.fields(),
				Index:  d.u8(),
				Docs:   d.strs(),
			})
		}
	case DefSequence, DefCompact:
		def.Elem = d.compact()
	case DefArray:
		def.Len = d.u32()
		def.Elem = d.compact()
	case DefTuple:
		n := d.length()
		for i := 0; i < n && d.err == nil; i++ {
			def.Tuple = append(def.Tuple, d.compact())
		}
	case DefPrimitive:
		def.Primitive = Primitive(d.u8())
		if def.Primitive > PrimI256 {
			d.fail(fmt.Errorf("unknown primitive %d", def.Primitive))
		}
	case DefBitSequence:
		def.BitStore = d.compact()
		def.BitOrder = d.compact()
	default:
		d.fail(fmt.Errorf("unknown type definition %d", def.Kind))
	}
	return def
}

func (d *decoder) fields() []Field {
	n := d.length()
	if n == 0 {
		return nil
	}
	out := make([]Field, 0, n)
	for i := 0; i < n && d.err == nil; i++ {
		out = append(out, Field{
			Name:     d.optStr(),
			Type:     d.compact(),
			TypeName: d.optStr(),
			Docs:     d.strs(),
		})
	}
	return out
}

func (d *decoder) pallet(version uint8) Pallet {
	var p Pallet
	p.Name = d.str()
	if d.some() {
		p.StoragePrefix = d.str()
		n := d.length()
		for i := 0; i < n && d.err == nil; i++ {
			p.Storage = append(p.Storage, d.storageEntry())
		}
	}
	p.Calls = d.optType()
	p.Events = d.optType()
	n := d.length()
	for i := 0; i < n && d.err == nil; i++ {
		p.Constants = append(p.Constants, Constant{
			Name:  d.str(),
			Type:  d.compact(),
			Value: d.bytes(),
			Docs:  d.strs(),
		})
	}
	p.Errors = d.optType()
	p.Index = d.u8()
	if version >= V15 {
		p.Docs = d.strs()
	}
	return p
}

func (d *decoder) storageEntry() StorageEntry {
	var e StorageEntry
	e.Name = d.str()
	e.Modifier = StorageModifier(d.u8())
	switch kind := d.u8(); kind {
	case 0:
		e.Plain = true
		e.ValueType = d.compact()
	case 1:
		n := d.length()
		for i := 0; i < n && d.err == nil; i++ {
			h := StorageHasher(d.u8())
			if h > Identity {
				d.fail(fmt.Errorf("unknown storage hasher %d", h))
			}
			e.Hashers = append(e.Hashers, h)
		}
		e.KeyType = d.compact()
		e.ValueType = d.compact()
	default:
		d.fail(fmt.Errorf("unknown storage entry type %d", kind))
	}
	e.Default = d.bytes()
	e.Docs = d.strs()
	return e
}

func (d *decoder) signedExtensions() []SignedExtension {
	n := d.length()
	out := make([]SignedExtension, 0, n)
	for i := 0; i < n && d.err == nil; i++ {
		out = append(out, SignedExtension{
			Identifier:       d.str(),
			Type:             d.compact(),
			AdditionalSigned: d.compact(),
		})
	}
	return out
}

func (d *decoder) runtimeAPI() RuntimeAPI {
	var api RuntimeAPI
	api.Name = d.str()
	n := d.length()
	for i := 0; i < n && d.err == nil; i++ {
		var m RuntimeAPIMethod
		m.Name = d.str()
		inputs := d.length()
		for j := 0; j < inputs && d.err == nil; j++ {
			m.Inputs = append(m.Inputs, RuntimeAPIParam{Name: d.str(), Type: d.compact()})
		}
		m.Output = d.compact()
		m.Docs = d.strs()
		api.Methods = append(api.Methods, m)
	}
	api.Docs = d.strs()
	return api
}
