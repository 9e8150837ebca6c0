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

// Package storage builds storage keys from metadata and reads storage values
// through the legacy RPC method set.
package storage

import (
	"fmt"

	"github.com/chronicleprotocol/scalerpc/core/clienterrors"
	"github.com/chronicleprotocol/scalerpc/core/dynamic"
	"github.com/chronicleprotocol/scalerpc/core/metadata"
)

// Address points at a storage entry. Keys are the map keys in declaration
// order; plain entries take none.
type Address struct {
	Pallet string
	Entry  string
	Keys   []dynamic.Value
}

func NewAddress(pallet, entry string, keys ...dynamic.Value) Address {
	return Address{Pallet: pallet, Entry: entry, Keys: keys}
}

func (a Address) String() string {
	return fmt.Sprintf("%s.%s", a.Pallet, a.Entry)
}

// Lookup resolves the pallet and entry the address points at.
func (a Address) Lookup(md *metadata.Metadata) (*metadata.Pallet, *metadata.StorageEntry, error) {
	p, err := md.Pallet(a.Pallet)
	if err != nil {
		return nil, nil, err
	}
	e, err := p.StorageEntry(a.Entry)
	if err != nil {
		return nil, nil, err
	}
	return p, e, nil
}

// RootKey returns twox128(pallet prefix) ‖ twox128(entry name).
func RootKey(pallet *metadata.Pallet, entry *metadata.StorageEntry) []byte {
	prefix := pallet.StoragePrefix
	if prefix == "" {
		prefix = pallet.Name
	}
	key := Twox(16, []byte(prefix))
	return append(key, Twox(16, []byte(entry.Name))...)
}

// Key builds the full storage key. The number of keys must match the number
// of hashers the entry declares.
func (a Address) Key(md *metadata.Metadata) ([]byte, error) {
	p, e, err := a.Lookup(md)
	if err != nil {
		return nil, err
	}
	key := RootKey(p, e)
	if e.Plain {
		if len(a.Keys) != 0 {
			return nil, clienterrors.StorageAddress(&clienterrors.StorageAddressError{Kind: clienterrors.StorageNotMap})
		}
		return key, nil
	}
	keyTypes, err := mapKeyTypes(md.Types, e)
	if err != nil {
		return nil, err
	}
	if len(a.Keys) != len(keyTypes) {
		return nil, clienterrors.StorageAddress(&clienterrors.StorageAddressError{
			Kind:     clienterrors.WrongNumberOfKeys,
			Expected: len(keyTypes),
			Actual:   len(a.Keys),
		})
	}
	for i, k := range a.Keys {
		enc, err := dynamic.Encode(md.Types, keyTypes[i], k)
		if err != nil {
			return nil, fmt.Errorf("failed to encode key %d of %s: %w", i, a, err)
		}
		hashed, err := Hash(e.Hashers[i], enc)
		if err != nil {
			return nil, clienterrors.Encode(err)
		}
		key = append(key, hashed...)
	}
	return key, nil
}

// mapKeyTypes splits the key type of a map entry into one type per hasher.
// With more than one hasher the key type is a tuple of the individual keys.
func mapKeyTypes(reg *metadata.Registry, e *metadata.StorageEntry) ([]uint32, error) {
	if len(e.Hashers) == 1 {
		return []uint32{e.KeyType}, nil
	}
	t, err := reg.Resolve(e.KeyType)
	if err != nil {
		return nil, err
	}
	if t.Def.Kind != metadata.DefTuple || len(t.Def.Tuple) != len(e.Hashers) {
		n := 1
		if t.Def.Kind == metadata.DefTuple {
			n = len(t.Def.Tuple)
		}
		return nil, clienterrors.StorageAddress(&clienterrors.StorageAddressError{
			Kind:     clienterrors.WrongNumberOfHashers,
			Expected: n,
			Actual:   len(e.Hashers),
		})
	}
	return t.Def.Tuple, nil
}
