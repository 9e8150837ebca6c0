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

// Package header implements the block header and its digest in both the binary
// form used for hashing and the JSON form returned by nodes.
package header

import (
	"encoding/json"
	"fmt"

	"github.com/defiweb/go-eth/hexutil"
	"github.com/defiweb/go-eth/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"

	"github.com/chronicleprotocol/scalerpc/core/clienterrors"
	"github.com/chronicleprotocol/scalerpc/core/codec"
	"github.com/chronicleprotocol/scalerpc/core/config"
	"github.com/chronicleprotocol/scalerpc/core/numeric"
)

// Header is a block header hashed with Hr. Since Hr is a type parameter, a
// header can only be named together with the hasher of its chain bundle.
type Header[N config.Number, H config.Hash, Hr config.Hasher[H]] struct {
	ParentHash     H
	Number         N
	StateRoot      H
	ExtrinsicsRoot H
	Digest         Digest
}

type (
	SubstrateHeader = Header[uint32, types.Hash, config.BlakeTwo256]
	EthereumHeader  = Header[uint64, common.Hash, config.Keccak256]
)

// BlockNumber returns the block number widened to uint64.
func (h *Header[N, H, Hr]) BlockNumber() uint64 {
	return uint64(h.Number)
}

// NumberU256 returns the block number in its canonical 256-bit form.
func (h *Header[N, H, Hr]) NumberU256() *uint256.Int {
	return numeric.FromUnsigned(h.Number)
}

// Hash returns the hash of the binary encoding of the header.
func (h *Header[N, H, Hr]) Hash() (H, error) {
	b, err := h.Encode()
	if err != nil {
		var zero H
		return zero, err
	}
	var hasher Hr
	return hasher.Hash(b), nil
}

// Encode returns the binary form: parent hash, compact number, state root,
// extrinsics root and digest.
func (h *Header[N, H, Hr]) Encode() ([]byte, error) {
	w := codec.NewWriter()
	parent, state, extrinsics := [32]byte(h.ParentHash), [32]byte(h.StateRoot), [32]byte(h.ExtrinsicsRoot)
	_ = w.WriteBytes(parent[:])
	_ = w.WriteCompact(uint64(h.Number))
	_ = w.WriteBytes(state[:])
	_ = w.WriteBytes(extrinsics[:])
	if err := h.Digest.EncodeTo(w); err != nil {
		return nil, clienterrors.Codec(err)
	}
	return w.Bytes(), nil
}

// Decode parses the binary form. The input must contain exactly one header.
func Decode[N config.Number, H config.Hash, Hr config.Hasher[H]](data []byte) (*Header[N, H, Hr], error) {
	r := codec.NewReader(data)
	h, err := decode[N, H, Hr](r)
	if err == nil {
		err = r.Finish()
	}
	if err != nil {
		return nil, clienterrors.Codec(err)
	}
	return h, nil
}

func decode[N config.Number, H config.Hash, Hr config.Hasher[H]](r *codec.Reader) (*Header[N, H, Hr], error) {
	var (
		h                         Header[N, H, Hr]
		parent, state, extrinsics [32]byte
	)
	if err := r.ReadFixed(parent[:]); err != nil {
		return nil, err
	}
	number, err := r.ReadCompactBig()
	if err != nil {
		return nil, err
	}
	x, overflow := uint256.FromBig(number)
	if overflow {
		return nil, fmt.Errorf("block number %s does not fit into 256 bits", number)
	}
	if h.Number, err = numeric.Narrow[N](x); err != nil {
		return nil, err
	}
	if err := r.ReadFixed(state[:]); err != nil {
		return nil, err
	}
	if err := r.ReadFixed(extrinsics[:]); err != nil {
		return nil, err
	}
	if h.Digest, err = decodeDigest(r); err != nil {
		return nil, err
	}
	h.ParentHash, h.StateRoot, h.ExtrinsicsRoot = H(parent), H(state), H(extrinsics)
	return &h, nil
}

type headerJSON struct {
	ParentHash     string              `json:"parentHash"`
	Number         numeric.NumberOrHex `json:"number"`
	StateRoot      string              `json:"stateRoot"`
	ExtrinsicsRoot string              `json:"extrinsicsRoot"`
	Digest         Digest              `json:"digest"`
}

// MarshalJSON writes the header in the node's camelCase form. The number is
// written as 256-bit hex text.
func (h Header[N, H, Hr]) MarshalJSON() ([]byte, error) {
	return json.Marshal(headerJSON{
		ParentHash:     hashHex(h.ParentHash),
		Number:         numeric.Hex(h.NumberU256()),
		StateRoot:      hashHex(h.StateRoot),
		ExtrinsicsRoot: hashHex(h.ExtrinsicsRoot),
		Digest:         h.Digest,
	})
}

// UnmarshalJSON accepts the number either as a JSON number or as hex text.
func (h *Header[N, H, Hr]) UnmarshalJSON(data []byte) error {
	var raw headerJSON
	if err := json.Unmarshal(data, &raw); err != nil {
		return clienterrors.Serialization(err)
	}
	number, err := numeric.Narrow[N](numeric.Normalize(raw.Number))
	if err != nil {
		return clienterrors.Serialization(fmt.Errorf("invalid block number: %w", err))
	}
	var out Header[N, H, Hr]
	out.Number = number
	out.Digest = raw.Digest
	for _, f := range []struct {
		name string
		text string
		dst  *H
	}{
		{"parentHash", raw.ParentHash, &out.ParentHash},
		{"stateRoot", raw.StateRoot, &out.StateRoot},
		{"extrinsicsRoot", raw.ExtrinsicsRoot, &out.ExtrinsicsRoot},
	} {
		if *f.dst, err = ParseHash[H](f.text); err != nil {
			return clienterrors.Serialization(fmt.Errorf("invalid %s: %w", f.name, err))
		}
	}
	*h = out
	return nil
}

// ParseHash parses 0x prefixed hex text of exactly 32 bytes.
func ParseHash[H config.Hash](s string) (H, error) {
	var zero H
	b, err := hexutil.HexToBytes(s)
	if err != nil {
		return zero, err
	}
	if len(b) != 32 {
		return zero, fmt.Errorf("hash %q has %d bytes, expected 32", s, len(b))
	}
	return H([32]byte(b)), nil
}

func hashHex[H config.Hash](h H) string {
	b := [32]byte(h)
	return hexutil.BytesToHex(b[:])
}
