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

// Package blocks fetches headers and block bodies and follows the finalized
// chain.
package blocks

import (
	"context"
	"encoding/json"
	"fmt"

	logger "github.com/sirupsen/logrus"

	"github.com/chronicleprotocol/scalerpc/core/clienterrors"
	"github.com/chronicleprotocol/scalerpc/core/config"
	"github.com/chronicleprotocol/scalerpc/core/header"
	"github.com/chronicleprotocol/scalerpc/core/metadata"
	"github.com/chronicleprotocol/scalerpc/core/rpc"
)

// Client reads blocks of a chain described by N, H and Hr.
type Client[N config.Number, H config.Hash, Hr config.Hasher[H]] struct {
	rpc *rpc.Legacy
}

func NewClient[N config.Number, H config.Hash, Hr config.Hasher[H]](legacy *rpc.Legacy) *Client[N, H, Hr] {
	return &Client[N, H, Hr]{rpc: legacy}
}

func hashBytes[H config.Hash](h H) []byte {
	b := [32]byte(h)
	return b[:]
}

// Header returns the header of the block with the given hash. It fails with
// BlockNotFound when the node does not know the block.
func (c *Client[N, H, Hr]) Header(ctx context.Context, hash H) (*header.Header[N, H, Hr], error) {
	raw, err := c.rpc.ChainGetHeader(ctx, hashBytes(hash))
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, clienterrors.BlockNotFoundError(hashBytes(hash))
	}
	return parseHeader[N, H, Hr](raw)
}

// BestHeader returns the header of the best block.
func (c *Client[N, H, Hr]) BestHeader(ctx context.Context) (*header.Header[N, H, Hr], error) {
	raw, err := c.rpc.ChainGetHeader(ctx, nil)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return nil, clienterrors.BlockNotFoundAt("the best block")
	}
	return parseHeader[N, H, Hr](raw)
}

func parseHeader[N config.Number, H config.Hash, Hr config.Hasher[H]](raw json.RawMessage) (*header.Header[N, H, Hr], error) {
	var h header.Header[N, H, Hr]
	if err := json.Unmarshal(raw, &h); err != nil {
		return nil, err
	}
	return &h, nil
}

func (c *Client[N, H, Hr]) FinalizedHead(ctx context.Context) (H, error) {
	var zero H
	b, err := c.rpc.ChainGetFinalizedHead(ctx)
	if err != nil {
		return zero, err
	}
	return toHash[H]("chain_getFinalizedHead", b)
}

// BlockHash returns the hash of the block with the given number. found is
// false when the node has no such block yet.
func (c *Client[N, H, Hr]) BlockHash(ctx context.Context, number uint64) (hash H, found bool, err error) {
	b, err := c.rpc.ChainGetBlockHash(ctx, &number)
	if err != nil || b == nil {
		return hash, false, err
	}
	hash, err = toHash[H]("chain_getBlockHash", b)
	return hash, err == nil, err
}

func toHash[H config.Hash](method string, b []byte) (H, error) {
	var zero H
	if len(b) != 32 {
		return zero, clienterrors.Serialization(fmt.Errorf("%s returned %d bytes, expected 32", method, len(b)))
	}
	return H([32]byte(b)), nil
}

// Extrinsics fetches the block body and decodes every extrinsic in it.
func (c *Client[N, H, Hr]) Extrinsics(ctx context.Context, hash H, md *metadata.Metadata) ([]*Extrinsic, error) {
	block, err := c.rpc.ChainGetBlock(ctx, hashBytes(hash))
	if err != nil {
		return nil, err
	}
	if block == nil {
		return nil, clienterrors.BlockNotFoundError(hashBytes(hash))
	}
	out := make([]*Extrinsic, 0, len(block.Extrinsics))
	for i, raw := range block.Extrinsics {
		ext, err := DecodeExtrinsic(md, raw)
		if err != nil {
			logger.
				WithField("block", hash.String()).
				WithField("index", i).
				Debugf("Failed to decode extrinsic: %v", err)
			return nil, err
		}
		ext.Index = i
		out = append(out, ext)
	}
	return out, nil
}
