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

package rpc

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"github.com/defiweb/go-eth/hexutil"
	logger "github.com/sirupsen/logrus"

	"github.com/chronicleprotocol/scalerpc/core/clienterrors"
	"github.com/chronicleprotocol/scalerpc/core/numeric"
)

// Legacy exposes the legacy JSON-RPC method set. Block hashes are passed as raw
// 32 byte slices; a nil hash selects the best block.
type Legacy struct {
	t Transport
}

func NewLegacy(t Transport) *Legacy {
	return &Legacy{t: t}
}

// RuntimeVersion is the result of state_getRuntimeVersion.
type RuntimeVersion struct {
	SpecName           string `json:"specName"`
	ImplName           string `json:"implName"`
	SpecVersion        uint32 `json:"specVersion"`
	TransactionVersion uint32 `json:"transactionVersion"`
}

// Block is the result of chain_getBlock. Extrinsics are the opaque encoded
// extrinsics, each including its compact length prefix.
type Block struct {
	Header     json.RawMessage
	Extrinsics [][]byte
}

type blockJSON struct {
	Block struct {
		Header     json.RawMessage `json:"header"`
		Extrinsics []string        `json:"extrinsics"`
	} `json:"block"`
}

func (l *Legacy) call(ctx context.Context, result any, method string, params ...any) error {
	raw, err := l.t.Request(ctx, method, params...)
	err = Classify(err)
	observe(method, err)
	if err != nil {
		logger.WithField("method", method).Debugf("RPC request failed: %v", err)
		return err
	}
	if result == nil {
		return nil
	}
	if err := json.Unmarshal(raw, result); err != nil {
		return clienterrors.Serialization(fmt.Errorf("failed to decode %s result: %w", method, err))
	}
	return nil
}

func isNull(raw json.RawMessage) bool {
	return len(raw) == 0 || bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}

func hashParam(hash []byte) any {
	if hash == nil {
		return nil
	}
	return hexutil.BytesToHex(hash)
}

func decodeHex(method, s string) ([]byte, error) {
	b, err := hexutil.HexToBytes(s)
	if err != nil {
		return nil, clienterrors.Serialization(fmt.Errorf("invalid hex in %s result: %w", method, err))
	}
	return b, nil
}

// ChainGetHeader returns the header JSON, or nil if the node does not know the block.
func (l *Legacy) ChainGetHeader(ctx context.Context, hash []byte) (json.RawMessage, error) {
	var raw json.RawMessage
	if err := l.call(ctx, &raw, "chain_getHeader", hashParam(hash)); err != nil {
		return nil, err
	}
	if isNull(raw) {
		return nil, nil
	}
	return raw, nil
}

// ChainGetBlock returns the block, or nil if the node does not know it.
func (l *Legacy) ChainGetBlock(ctx context.Context, hash []byte) (*Block, error) {
	var raw json.RawMessage
	if err := l.call(ctx, &raw, "chain_getBlock", hashParam(hash)); err != nil {
		return nil, err
	}
	if isNull(raw) {
		return nil, nil
	}
	var b blockJSON
	if err := json.Unmarshal(raw, &b); err != nil {
		return nil, clienterrors.Serialization(fmt.Errorf("failed to decode chain_getBlock result: %w", err))
	}
	block := &Block{Header: b.Block.Header, Extrinsics: make([][]byte, 0, len(b.Block.Extrinsics))}
	for _, ext := range b.Block.Extrinsics {
		bin, err := decodeHex("chain_getBlock", ext)
		if err != nil {
			return nil, err
		}
		block.Extrinsics = append(block.Extrinsics, bin)
	}
	return block, nil
}

// ChainGetBlockHash returns the hash of the block with the given number, or of
// the best block if number is nil. It returns nil if there is no such block.
func (l *Legacy) ChainGetBlockHash(ctx context.Context, number *uint64) ([]byte, error) {
	var param any
	if number != nil {
		param = numeric.Number(*number)
	}
	var s *string
	if err := l.call(ctx, &s, "chain_getBlockHash", param); err != nil {
		return nil, err
	}
	if s == nil {
		return nil, nil
	}
	return decodeHex("chain_getBlockHash", *s)
}

func (l *Legacy) ChainGetFinalizedHead(ctx context.Context) ([]byte, error) {
	var s string
	if err := l.call(ctx, &s, "chain_getFinalizedHead"); err != nil {
		return nil, err
	}
	return decodeHex("chain_getFinalizedHead", s)
}

// StateCall executes a runtime API function and returns its encoded output.
func (l *Legacy) StateCall(ctx context.Context, function string, data []byte, at []byte) ([]byte, error) {
	var s string
	if err := l.call(ctx, &s, "state_call", function, hexutil.BytesToHex(data), hashParam(at)); err != nil {
		return nil, err
	}
	return decodeHex("state_call", s)
}

// StateGetStorage returns the raw value under key, or nil if there is none.
func (l *Legacy) StateGetStorage(ctx context.Context, key []byte, at []byte) ([]byte, error) {
	var s *string
	if err := l.call(ctx, &s, "state_getStorage", hexutil.BytesToHex(key), hashParam(at)); err != nil {
		return nil, err
	}
	if s == nil {
		return nil, nil
	}
	return decodeHex("state_getStorage", *s)
}

// StateGetMetadata returns the raw metadata blob.
func (l *Legacy) StateGetMetadata(ctx context.Context, at []byte) ([]byte, error) {
	var s string
	if err := l.call(ctx, &s, "state_getMetadata", hashParam(at)); err != nil {
		return nil, err
	}
	return decodeHex("state_getMetadata", s)
}

func (l *Legacy) StateGetRuntimeVersion(ctx context.Context, at []byte) (*RuntimeVersion, error) {
	var v RuntimeVersion
	if err := l.call(ctx, &v, "state_getRuntimeVersion", hashParam(at)); err != nil {
		return nil, err
	}
	return &v, nil
}

func (l *Legacy) SystemChain(ctx context.Context) (string, error) {
	var s string
	return s, l.call(ctx, &s, "system_chain")
}

// AuthorSubmitExtrinsic submits an encoded extrinsic and returns its hash.
func (l *Legacy) AuthorSubmitExtrinsic(ctx context.Context, ext []byte) ([]byte, error) {
	var s string
	if err := l.call(ctx, &s, "author_submitExtrinsic", hexutil.BytesToHex(ext)); err != nil {
		return nil, err
	}
	return decodeHex("author_submitExtrinsic", s)
}

// AuthorSubmitAndWatchExtrinsic submits an encoded extrinsic and subscribes to
// its status updates.
func (l *Legacy) AuthorSubmitAndWatchExtrinsic(ctx context.Context, ext []byte) (Subscription, error) {
	return l.subscribe(ctx, "author_submitAndWatchExtrinsic", "author_unwatchExtrinsic", hexutil.BytesToHex(ext))
}

// ChainSubscribeFinalizedHeads streams finalized header JSON.
func (l *Legacy) ChainSubscribeFinalizedHeads(ctx context.Context) (Subscription, error) {
	return l.subscribe(ctx, "chain_subscribeFinalizedHeads", "chain_unsubscribeFinalizedHeads")
}

func (l *Legacy) subscribe(ctx context.Context, method, unsubscribe string, params ...any) (Subscription, error) {
	sub, err := l.t.Subscribe(ctx, method, unsubscribe, params...)
	err = Classify(err)
	observe(method, err)
	if err != nil {
		logger.WithField("method", method).Debugf("RPC subscription failed: %v", err)
		return nil, err
	}
	return sub, nil
}
