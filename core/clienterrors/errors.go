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

// Package clienterrors defines the error taxonomy shared by every package of the client.
//
// All failures surface as *Error, which carries a Kind and the underlying cause.
// New kinds may be added in the future; callers must not assume the set is exhaustive.
package clienterrors

import (
	"errors"
	"fmt"

	"github.com/defiweb/go-eth/hexutil"
)

type Kind int

const (
	// KindOther is a catch-all for unstructured boundary failures.
	KindOther Kind = iota
	KindIo
	// KindCodec is a malformed binary payload.
	KindCodec
	KindRpc
	// KindSerialization is a malformed JSON payload.
	KindSerialization
	// KindMetadata means a requested item is absent from the metadata.
	KindMetadata
	// KindMetadataDecoding means the metadata blob itself is malformed.
	KindMetadataDecoding
	// KindRuntime is a structured dispatch failure reported by the chain.
	KindRuntime
	KindDecode
	KindEncode
	KindTransaction
	KindExtrinsicParams
	KindBlock
	KindStorageAddress
	// KindUnknown carries error bytes that could not be interpreted.
	KindUnknown
	// KindLightClient is only produced by embedded light client transports.
	KindLightClient
)

func (k Kind) String() string {
	switch k {
	case KindIo:
		return "Io error"
	case KindCodec:
		return "Scale codec error"
	case KindRpc:
		return "Rpc error"
	case KindSerialization:
		return "Serialization error"
	case KindMetadata:
		return "Metadata error"
	case KindMetadataDecoding:
		return "Metadata decoding error"
	case KindRuntime:
		return "Runtime error"
	case KindDecode:
		return "Error decoding into dynamic value"
	case KindEncode:
		return "Error encoding from dynamic value"
	case KindTransaction:
		return "Transaction error"
	case KindExtrinsicParams:
		return "Extrinsic params error"
	case KindBlock:
		return "Block error"
	case KindStorageAddress:
		return "Error encoding storage address"
	case KindUnknown:
		return "An error occurred but it could not be decoded"
	case KindLightClient:
		return "Light client error"
	default:
		return "Other error"
	}
}

// Error is the top level error returned by the client.
type Error struct {
	Kind Kind
	Err  error
	// Raw holds the undecodable bytes for KindUnknown.
	Raw []byte
}

func (e *Error) Error() string {
	switch {
	case e.Kind == KindUnknown:
		return fmt.Sprintf("%s: %s", e.Kind, hexutil.BytesToHex(e.Raw))
	case e.Err == nil:
		return e.Kind.String()
	case e.Kind == KindRpc:
		// RpcError already names its kind.
		return e.Err.Error()
	default:
		return fmt.Sprintf("%s: %v", e.Kind, e.Err)
	}
}

func (e *Error) Unwrap() error {
	return e.Err
}

// IsDisconnectedWillReconnect reports whether the error was caused by a lost
// connection the transport is already re-establishing.
func (e *Error) IsDisconnectedWillReconnect() bool {
	if e.Kind != KindRpc {
		return false
	}
	var rpcErr *RpcError
	return errors.As(e.Err, &rpcErr) && rpcErr.Kind == RpcDisconnectedWillReconnect
}

// IsDisconnectedWillReconnect reports whether err, or any error it wraps, is an
// Rpc error of kind DisconnectedWillReconnect. Such a request may be retried as is.
func IsDisconnectedWillReconnect(err error) bool {
	var rpcErr *RpcError
	return errors.As(err, &rpcErr) && rpcErr.Kind == RpcDisconnectedWillReconnect
}

// KindOf returns the kind of the first *Error in the chain of err, or KindOther.
func KindOf(err error) Kind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindOther
}

func wrap(kind Kind, err error) *Error {
	return &Error{Kind: kind, Err: err}
}

func Io(err error) *Error { return wrap(KindIo, err) }
func Codec(err error) *Error { return wrap(KindCodec, err) }
func Serialization(err error) *Error { return wrap(KindSerialization, err) }
func Decode(err error) *Error { return wrap(KindDecode, err) }
func Encode(err error) *Error { return wrap(KindEncode, err) }
func LightClient(err error) *Error { return wrap(KindLightClient, err) }

// MetadataDecoding wraps a failure to parse a metadata blob.
func MetadataDecoding(err error) *Error { return wrap(KindMetadataDecoding, err) }

func Rpc(err *RpcError) *Error { return wrap(KindRpc, err) }
func Metadata(err *MetadataError) *Error { return wrap(KindMetadata, err) }
func Runtime(err *DispatchError) *Error { return wrap(KindRuntime, err) }
func Transaction(err *TransactionError) *Error { return wrap(KindTransaction, err) }
func ExtrinsicParams(err *ExtrinsicParamsError) *Error {
	return wrap(KindExtrinsicParams, err)
}
func Block(err *BlockError) *Error { return wrap(KindBlock, err) }
func StorageAddress(err *StorageAddressError) *Error {
	return wrap(KindStorageAddress, err)
}

// Unknown wraps error bytes that could not be decoded.
func Unknown(raw []byte) *Error {
	return &Error{Kind: KindUnknown, Raw: append([]byte(nil), raw...)}
}

// Other wraps an unstructured failure message.
func Other(format string, args ...any) *Error {
	return wrap(KindOther, fmt.Errorf(format, args...))
}
