package config

import (
	"github.com/defiweb/go-eth/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"golang.org/x/crypto/blake2b"
)

// BlakeTwo256 is the 256 bit blake2b hasher.
type BlakeTwo256 struct{}

func (BlakeTwo256) Hash(data []byte) types.Hash {
	return types.Hash(blake2b.Sum256(data))
}

type Keccak256 struct{}

func (Keccak256) Hash(data []byte) common.Hash {
	return crypto.Keccak256Hash(data)
}

var (
	_ Hasher[types.Hash]  = BlakeTwo256{}
	_ Hasher[common.Hash] = Keccak256{}
)
