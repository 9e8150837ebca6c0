package metadata

import (
	"fmt"
	"sort"

	"github.com/chronicleprotocol/scalerpc/core/codec"
)

// Encode serializes the metadata as a blob of the given version, including the
// magic prefix. V14 carries no explicit envelope types, so the registry must
// hold an extrinsic type whose Call and Extra parameters match m.Extrinsic.
func (m *Metadata) Encode(version uint8) ([]byte, error) {
	w := codec.NewWriter()
	_ = w.WriteBytes(Magic)
	_ = w.WriteU8(version)
	e := encoder{w: w}
	e.registry(m.Types)
	_ = w.WriteCompact(uint64(len(m.Pallets)))
	for i := range m.Pallets {
		e.pallet(&m.Pallets[i], version)
	}
	switch version {
	case V14:
		ext, ok := m.uncheckedExtrinsicType()
		if !ok {
			return nil, fmt.Errorf("no extrinsic type with the declared address, call, signature and extra types")
		}
		_ = w.WriteCompact(uint64(ext))
		_ = w.WriteU8(m.Extrinsic.Version)
		e.signedExtensions(m.Extrinsic.SignedExtensions)
		_ = w.WriteCompact(uint64(m.RuntimeType))
	case V15:
		_ = w.WriteU8(m.Extrinsic.Version)
		e.compact(m.Extrinsic.AddressType)
		e.compact(m.Extrinsic.CallType)
		e.compact(m.Extrinsic.SignatureType)
		e.compact(m.Extrinsic.ExtraType)
		e.signedExtensions(m.Extrinsic.SignedExtensions)
		e.compact(m.RuntimeType)
		_ = w.WriteCompact(uint64(len(m.APIs)))
		for _, api := range m.APIs {
			_ = w.WriteString(api.Name)
			_ = w.WriteCompact(uint64(len(api.Methods)))
			for _, method := range api.Methods {
				_ = w.WriteString(method.Name)
				_ = w.WriteCompact(uint64(len(method.Inputs)))
				for _, in := range method.Inputs {
					_ = w.WriteString(in.Name)
					e.compact(in.Type)
				}
				e.compact(method.Output)
				e.strs(method.Docs)
			}
			e.strs(api.Docs)
		}
		e.compact(m.OuterEnums.Call)
		e.compact(m.OuterEnums.Event)
		e.compact(m.OuterEnums.Error)
		names := make([]string, 0, len(m.Custom))
		for name := range m.Custom {
			names = append(names, name)
		}
		sort.Strings(names)
		_ = w.WriteCompact(uint64(len(names)))
		for _, name := range names {
			_ = w.WriteString(name)
			e.compact(m.Custom[name].Type)
			_ = w.WriteVec(m.Custom[name].Value)
		}
	default:
		return nil, fmt.Errorf("unsupported metadata version %d", version)
	}
	return w.Bytes(), nil
}

func (m *Metadata) uncheckedExtrinsicType() (uint32, bool) {
	for _, t := range m.Types.Types() {
		call, ok := t.Param("Call")
		if !ok || call != m.Extrinsic.CallType {
			continue
		}
		extra, ok := t.Param("Extra")
		if ok && extra == m.Extrinsic.ExtraType {
			return t.ID, true
		}
	}
	return 0, false
}

type encoder struct {
	w *codec.Writer
}

func (e encoder) compact(v uint32) {
	_ = e.w.WriteCompact(uint64(v))
}

func (e encoder) strs(s []string) {
	_ = e.w.WriteCompact(uint64(len(s)))
	for _, v := range s {
		_ = e.w.WriteString(v)
	}
}

func (e encoder) optStr(s string) {
	_ = e.w.WriteOption(s != "")
	if s != "" {
		_ = e.w.WriteString(s)
	}
}

func (e encoder) optType(id *uint32) {
	_ = e.w.WriteOption(id != nil)
	if id != nil {
		e.compact(*id)
	}
}

func (e encoder) registry(r *Registry) {
	types := r.Types()
	_ = e.w.WriteCompact(uint64(len(types)))
	for _, t := range types {
		e.compact(t.ID)
		e.strs(t.Path)
		_ = e.w.WriteCompact(uint64(len(t.Params)))
		for _, p := range t.Params {
			_ = e.w.WriteString(p.Name)
			e.optType(p.Type)
		}
		e.typeDef(&t.Def)
		e.strs(t.Docs)
	}
}

func (e encoder) typeDef(def *TypeDef) {
	_ = e.w.WriteU8(uint8(def.Kind))
	switch def.Kind {
	case DefComposite:
		e.fields(def.Fields)
	case DefVariant:
		_ = e.w.WriteCompact(uint64(len(def.Variants)))
		for _, v := range def.Variants {
			_ = e.w.WriteString(v.Name)
			e.fields(v.Fields)
			_ = e.w.WriteU8(v.Index)
			e.strs(v.Docs)
		}
	case DefSequence, DefCompact:
		e.compact(def.Elem)
	case DefArray:
		_ = e.w.WriteU32(def.Len)
		e.compact(def.Elem)
	case DefTuple:
		_ = e.w.WriteCompact(uint64(len(def.Tuple)))
		for _, id := range def.Tuple {
			e.compact(id)
		}
	case DefPrimitive:
		_ = e.w.WriteU8(uint8(def.Primitive))
	case DefBitSequence:
		e.compact(def.BitStore)
		e.compact(def.BitOrder)
	}
}

func (e encoder) fields(fields []Field) {
	_ = e.w.WriteCompact(uint64(len(fields)))
	for _, f := range fields {
		e.optStr(f.Name)
		e.compact(f.Type)
		e.optStr(f.TypeName)
		e.strs(f.Docs)
	}
}

func (e encoder) pallet(p *Pallet, version uint8) {
	_ = e.w.WriteString(p.Name)
	_ = e.w.WriteOption(p.StoragePrefix != "")
	if p.StoragePrefix != "" {
		_ = e.w.WriteString(p.StoragePrefix)
		_ = e.w.WriteCompact(uint64(len(p.Storage)))
		for _, s := range p.Storage {
			_ = e.w.WriteString(s.Name)
			_ = e.w.WriteU8(uint8(s.Modifier))
			if s.Plain {
				_ = e.w.WriteU8(0)
				e.compact(s.ValueType)
			} else {
				_ = e.w.WriteU8(1)
				_ = e.w.WriteCompact(uint64(len(s.Hashers)))
				for _, h := range s.Hashers {
					_ = e.w.WriteU8(uint8(h))
				}
				e.compact(s.KeyType)
				e.compact(s.ValueType)
			}
			_ = e.w.WriteVec(s.Default)
			e.strs(s.Docs)
		}
	}
	e.optType(p.Calls)
	e.optType(p.Events)
	_ = e.w.WriteCompact(uint64(len(p.Constants)))
	for _, c := range p.Constants {
		_ = e.w.WriteString(c.Name)
		e.compact(c.Type)
		_ = e.w.WriteVec(c.Value)
		e.strs(c.Docs)
	}
	e.optType(p.Errors)
	_ = e.w.WriteU8(p.Index)
	if version >= V15 {
		e.strs(p.Docs)
	}
}

func (e encoder) signedExtensions(exts []SignedExtension) {
	_ = e.w.WriteCompact(uint64(len(exts)))
	for _, s := range exts {
		_ = e.w.WriteString(s.Identifier)
		e.compact(s.Type)
		e.compact(s.AdditionalSigned)
	}
}
