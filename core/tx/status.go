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

// Package tx submits extrinsics and follows their progress through the
// transaction pool and into finalized blocks.
package tx

import (
	"encoding/json"
	"fmt"

	"github.com/chronicleprotocol/scalerpc/core/clienterrors"
	"github.com/chronicleprotocol/scalerpc/core/config"
	"github.com/chronicleprotocol/scalerpc/core/header"
)

type StatusKind int

const (
	// Validated: the transaction is in the pool, either ready or waiting for
	// an earlier nonce.
	Validated StatusKind = iota
	Broadcasted
	// NoLongerInBestBlock: the block the transaction was in was retracted.
	NoLongerInBestBlock
	InBestBlock
	InFinalizedBlock
	Error
	Invalid
	Dropped
)

func (k StatusKind) String() string {
	switch k {
	case Validated:
		return "validated"
	case Broadcasted:
		return "broadcasted"
	case NoLongerInBestBlock:
		return "no longer in best block"
	case InBestBlock:
		return "in best block"
	case InFinalizedBlock:
		return "in finalized block"
	case Error:
		return "error"
	case Invalid:
		return "invalid"
	case Dropped:
		return "dropped"
	default:
		return "unknown"
	}
}

// Status is one step in the life of a submitted transaction. Block is set for
// InBestBlock and InFinalizedBlock, Message for Error, Invalid and Dropped.
type Status[H config.Hash] struct {
	Kind    StatusKind
	Block   H
	Message string
}

// IsFinal reports whether no further status will follow.
func (s Status[H]) IsFinal() bool {
	switch s.Kind {
	case InFinalizedBlock, Error, Invalid, Dropped:
		return true
	}
	return false
}

// Err converts the failing final statuses into a transaction error.
func (s Status[H]) Err() error {
	switch s.Kind {
	case Error:
		return clienterrors.TxErrorf("%s", s.Message)
	case Invalid:
		return clienterrors.TxInvalidError(s.Message)
	case Dropped:
		return clienterrors.TxDroppedError(s.Message)
	}
	return nil
}

const (
	msgInvalid         = "Transaction is invalid (eg because of a bad nonce, signature etc)"
	msgUsurped         = "Transaction was usurped by another with the same nonce"
	msgDropped         = "Transaction was dropped"
	msgFinalityTimeout = "Finality timeout"
)

// ParseStatus parses an author_extrinsicUpdate notification. It is either
// one of the strings "future", "ready", "dropped" and "invalid", or an object
// with a single key holding the block hash or the list of peers.
func ParseStatus[H config.Hash](raw json.RawMessage) (Status[H], error) {
	var s Status[H]
	var name string
	if err := json.Unmarshal(raw, &name); err == nil {
		switch name {
		case "future", "ready":
			s.Kind = Validated
		case "dropped":
			s.Kind, s.Message = Dropped, msgDropped
		case "invalid":
			s.Kind, s.Message = Invalid, msgInvalid
		default:
			return s, clienterrors.Serialization(fmt.Errorf("unknown transaction status %q", name))
		}
		return s, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(raw, &obj); err != nil {
		return s, clienterrors.Serialization(fmt.Errorf("invalid transaction status: %w", err))
	}
	if len(obj) != 1 {
		return s, clienterrors.Serialization(fmt.Errorf("transaction status has %d keys, expected 1", len(obj)))
	}
	for key, val := range obj {
		switch key {
		case "broadcast":
			s.Kind = Broadcasted
			return s, nil
		case "retracted":
			s.Kind = NoLongerInBestBlock
			return s, nil
		case "usurped":
			s.Kind, s.Message = Invalid, msgUsurped
			return s, nil
		case "finalityTimeout":
			s.Kind, s.Message = Error, msgFinalityTimeout
			return s, nil
		case "inBlock":
			s.Kind = InBestBlock
		case "finalized":
			s.Kind = InFinalizedBlock
		default:
			return s, clienterrors.Serialization(fmt.Errorf("unknown transaction status %q", key))
		}
		var text string
		if err := json.Unmarshal(val, &text); err != nil {
			return s, clienterrors.Serialization(fmt.Errorf("invalid %s block hash: %w", key, err))
		}
		h, err := header.ParseHash[H](text)
		if err != nil {
			return s, clienterrors.Serialization(fmt.Errorf("invalid %s block hash: %w", key, err))
		}
		s.Block = h
	}
	return s, nil
}
