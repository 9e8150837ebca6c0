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

// Package rpc is the client side of the node's JSON-RPC interface: the abstract
// transport, the legacy method set and the classification of transport errors.
package rpc

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"github.com/chronicleprotocol/scalerpc/core/clienterrors"
)

// Transport sends JSON-RPC requests to a node. Implementations must be safe for
// concurrent use. Errors should already be *clienterrors.Error values of kind Rpc;
// anything else is classified as a client error.
type Transport interface {
	Request(ctx context.Context, method string, params ...any) (json.RawMessage, error)

	// Subscribe starts a subscription. unsubscribe is the method used to end it.
	Subscribe(ctx context.Context, method, unsubscribe string, params ...any) (Subscription, error)
}

// Subscription is a stream of notifications.
type Subscription interface {
	// Next blocks until the next notification. It returns io.EOF once the
	// subscription was closed by Unsubscribe and an Rpc error if the stream broke.
	Next(ctx context.Context) (json.RawMessage, error)

	Unsubscribe(ctx context.Context) error
}

// Classify maps an arbitrary transport failure onto the error taxonomy. Errors
// that already are *clienterrors.Error, and io.EOF, pass through unchanged.
func Classify(err error) error {
	if err == nil || errors.Is(err, io.EOF) {
		return err
	}
	var e *clienterrors.Error
	if errors.As(err, &e) {
		return err
	}
	return clienterrors.ClientError(err)
}
