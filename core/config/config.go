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

// Package config describes the set of concrete types a chain uses.
//
// A bundle is a zero-size struct satisfying Config. Client components are
// instantiated with the type parameters of a bundle, so supporting a new chain
// only needs a new bundle.
package config

import (
	"fmt"

	"github.com/defiweb/go-eth/types"
	"github.com/ethereum/go-ethereum/common"

	"github.com/chronicleprotocol/scalerpc/pkg/ss58"
)

// Number is a block number type.
type Number interface {
	~uint32 | ~uint64
}

// Hash is a fixed width 32 byte hash with a canonical 0x hex text form.
type Hash interface {
	~[32]byte
	String() string
}

// Hasher hashes bytes into H.
type Hasher[H Hash] interface {
	Hash(data []byte) H
}

// Config is the compile time bundle of chain types.
type Config[N Number, H Hash, Hr Hasher[H], Acc any, Addr any, Sig any, Asset any] interface {
	Name() string
	Hasher() Hr
	ParseAccountID(text string) (Acc, error)
	AddressOf(acc Acc) Addr
}

type SubstrateConfig struct{}

var _ Config[uint32, types.Hash, BlakeTwo256, AccountID32, MultiAddress, MultiSignature, U32AssetID] = SubstrateConfig{}

func (SubstrateConfig) Name() string { return "substrate" }

func (SubstrateConfig) Hasher() BlakeTwo256 { return BlakeTwo256{} }

func (SubstrateConfig) ParseAccountID(text string) (AccountID32, error) {
	return parseAccountID32(text, ss58.SubstratePrefix)
}

func (SubstrateConfig) AddressOf(acc AccountID32) MultiAddress { return AddressID(acc) }

// PolkadotConfig is SubstrateConfig with the Polkadot network prefix.
type PolkadotConfig struct{}

var _ Config[uint32, types.Hash, BlakeTwo256, AccountID32, MultiAddress, MultiSignature, U32AssetID] = PolkadotConfig{}

func (PolkadotConfig) Name() string { return "polkadot" }

func (PolkadotConfig) Hasher() BlakeTwo256 { return BlakeTwo256{} }

func (PolkadotConfig) ParseAccountID(text string) (AccountID32, error) {
	return parseAccountID32(text, ss58.PolkadotPrefix)
}

func (PolkadotConfig) AddressOf(acc AccountID32) MultiAddress { return AddressID(acc) }

// EthereumConfig describes chains with 20 byte accounts, keccak hashing and
// recoverable ECDSA signatures.
type EthereumConfig struct{}

var _ Config[uint64, common.Hash, Keccak256, AccountID20, AccountID20, EcdsaSignature, U32AssetID] = EthereumConfig{}

func (EthereumConfig) Name() string { return "ethereum" }

func (EthereumConfig) Hasher() Keccak256 { return Keccak256{} }

func (EthereumConfig) ParseAccountID(text string) (AccountID20, error) {
	if !common.IsHexAddress(text) {
		return AccountID20{}, fmt.Errorf("invalid account id %q", text)
	}
	return AccountID20(common.HexToAddress(text)), nil
}

func (EthereumConfig) AddressOf(acc AccountID20) AccountID20 { return acc }

func parseAccountID32(text string, prefix uint16) (AccountID32, error) {
	acc, got, err := AccountID32FromSS58(text)
	if err != nil {
		return AccountID32{}, err
	}
	if got != prefix {
		return AccountID32{}, fmt.Errorf("account %s uses network prefix %d, expected %d", text, got, prefix)
	}
	return acc, nil
}
