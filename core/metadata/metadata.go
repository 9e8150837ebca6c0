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

// Package metadata models the self description a node publishes about its
// runtime: the portable type registry, pallets with their storage, calls,
// events and errors, the extrinsic format and the runtime API surface.
//
// Metadata is read only once decoded and safe for concurrent use.
package metadata

import (
	"strings"

	"github.com/chronicleprotocol/scalerpc/core/clienterrors"
)

type StorageHasher uint8

const (
	Blake2_128 StorageHasher = iota
	Blake2_256
	Blake2_128Concat
	Twox128
	Twox256
	Twox64Concat
	Identity
)

func (h StorageHasher) String() string {
	names := [...]string{"Blake2_128", "Blake2_256", "Blake2_128Concat", "Twox128", "Twox256", "Twox64Concat", "Identity"}
	if int(h) < len(names) {
		return names[h]
	}
	return "unknown"
}

type StorageModifier uint8

const (
	Optional StorageModifier = iota
	Default
)

type StorageEntry struct {
	Name     string
	Modifier StorageModifier
	// Plain entries have no keys and no hashers.
	Plain     bool
	Hashers   []StorageHasher
	KeyType   uint32
	ValueType uint32
	Default   []byte
	Docs      []string
}

type Constant struct {
	Name  string
	Type  uint32
	Value []byte
	Docs  []string
}

type Pallet struct {
	Name          string
	Index         uint8
	StoragePrefix string
	Storage       []StorageEntry
	Calls         *uint32
	Events        *uint32
	Errors        *uint32
	Constants     []Constant
	Docs          []string
}

// StorageEntry returns the storage entry with the given name.
func (p *Pallet) StorageEntry(name string) (*StorageEntry, error) {
	for i := range p.Storage {
		if p.Storage[i].Name == name {
			return &p.Storage[i], nil
		}
	}
	return nil, clienterrors.MetadataErr(clienterrors.StorageEntryNotFound, p.Name+"."+name)
}

func (p *Pallet) Constant(name string) (*Constant, bool) {
	for i := range p.Constants {
		if p.Constants[i].Name == name {
			return &p.Constants[i], true
		}
	}
	return nil, false
}

type SignedExtension struct {
	Identifier string
	// Type describes the bytes carried in the extrinsic.
	Type uint32
	// AdditionalSigned describes the bytes only included in the signer payload.
	AdditionalSigned uint32
}

type Extrinsic struct {
	Version          uint8
	AddressType      uint32
	CallType         uint32
	SignatureType    uint32
	ExtraType        uint32
	SignedExtensions []SignedExtension
}

type RuntimeAPIParam struct {
	Name string
	Type uint32
}

type RuntimeAPIMethod struct {
	Name   string
	Inputs []RuntimeAPIParam
	Output uint32
	Docs   []string
}

type RuntimeAPI struct {
	Name    string
	Methods []RuntimeAPIMethod
	Docs    []string
}

type OuterEnums struct {
	Call  uint32
	Event uint32
	Error uint32
}

type CustomValue struct {
	Type  uint32
	Value []byte
}

// Metadata is a decoded metadata blob.
type Metadata struct {
	Version     uint8
	Types       *Registry
	Pallets     []Pallet
	Extrinsic   Extrinsic
	RuntimeType uint32
	APIs        []RuntimeAPI
	OuterEnums  OuterEnums
	Custom      map[string]CustomValue
}

// Pallet returns the pallet with the given name.
func (m *Metadata) Pallet(name string) (*Pallet, error) {
	for i := range m.Pallets {
		if m.Pallets[i].Name == name {
			return &m.Pallets[i], nil
		}
	}
	return nil, clienterrors.MetadataErr(clienterrors.PalletNameNotFound, name)
}

func (m *Metadata) PalletByIndex(index uint8) (*Pallet, error) {
	for i := range m.Pallets {
		if m.Pallets[i].Index == index {
			return &m.Pallets[i], nil
		}
	}
	return nil, clienterrors.Metadata(&clienterrors.MetadataError{Kind: clienterrors.PalletIndexNotFound, Index: uint32(index)})
}

// RuntimeFn resolves a runtime function by its "Trait_method" name.
func (m *Metadata) RuntimeFn(name string) (*RuntimeAPI, *RuntimeAPIMethod, error) {
	for i := range m.APIs {
		api := &m.APIs[i]
		method, ok := strings.CutPrefix(name, api.Name+"_")
		if !ok {
			continue
		}
		for j := range api.Methods {
			if api.Methods[j].Name == method {
				return api, &api.Methods[j], nil
			}
		}
	}
	return nil, nil, clienterrors.MetadataErr(clienterrors.RuntimeFnNotFound, name)
}

// DispatchErrorType returns the id of the runtime's DispatchError type.
func (m *Metadata) DispatchErrorType() (uint32, bool) {
	t, ok := m.Types.FindByPath("sp_runtime", "DispatchError")
	if !ok {
		return 0, false
	}
	return t.ID, true
}
