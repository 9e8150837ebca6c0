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

package clienterrors

import (
	"fmt"

	"github.com/defiweb/go-eth/hexutil"
)

type RpcErrorKind int

const (
	// RpcClientError is a failure inside the RPC client; Err holds the cause.
	RpcClientError RpcErrorKind = iota
	// RpcRequestRejected means the node rejected the request; Reason says why.
	RpcRequestRejected
	RpcSubscriptionDropped
	RpcInsecureURL
	// RpcDisconnectedWillReconnect means the connection was lost and the transport
	// already started reconnecting. The outstanding request may be retried.
	RpcDisconnectedWillReconnect
)

// RpcError is a transport level failure.
type RpcError struct {
	Kind   RpcErrorKind
	Reason string
	Err    error
}

func (e *RpcError) Error() string {
	switch e.Kind {
	case RpcRequestRejected:
		return fmt.Sprintf("RPC error: request rejected: %s", e.Reason)
	case RpcSubscriptionDropped:
		return "RPC error: subscription dropped."
	case RpcInsecureURL:
		return fmt.Sprintf("RPC error: insecure URL: %s", e.Reason)
	case RpcDisconnectedWillReconnect:
		return fmt.Sprintf("RPC error: the connection was lost `%s`; reconnect automatically initiated", e.Reason)
	default:
		return fmt.Sprintf("RPC error: %v", e.Err)
	}
}

func (e *RpcError) Unwrap() error {
	return e.Err
}

func ClientError(err error) *Error {
	return Rpc(&RpcError{Kind: RpcClientError, Err: err})
}

func RequestRejected(reason string) *Error {
	return Rpc(&RpcError{Kind: RpcRequestRejected, Reason: reason})
}

func SubscriptionDropped() *Error {
	return Rpc(&RpcError{Kind: RpcSubscriptionDropped})
}

func InsecureURL(url string) *Error {
	return Rpc(&RpcError{Kind: RpcInsecureURL, Reason: url})
}

func DisconnectedWillReconnect(reason string) *Error {
	return Rpc(&RpcError{Kind: RpcDisconnectedWillReconnect, Reason: reason})
}

type BlockErrorKind int

const (
	// BlockNotFound: the block is absent, often because it was on a pruned fork.
	BlockNotFound BlockErrorKind = iota
	// BlockMissingType: metadata lacks the types to decode the block's extrinsics.
	BlockMissingType
	BlockUnsupportedVersion
	BlockDecodingError
)

// SupportedExtrinsicVersion is the only extrinsic envelope version understood.
const SupportedExtrinsicVersion = 4

type BlockError struct {
	Kind BlockErrorKind
	Hash string
	// Where describes a missing block that has no known hash.
	Where   string
	Version uint8
	Err     error
}

func (e *BlockError) Error() string {
	switch e.Kind {
	case BlockNotFound:
		if e.Hash == "" {
			return fmt.Sprintf("Could not find %s", e.Where)
		}
		return fmt.Sprintf("Could not find a block with hash %s (perhaps it was on a non-finalized fork?)", e.Hash)
	case BlockMissingType:
		return "Extrinsic type ID cannot be resolved with the provided metadata. Make sure this is a valid metadata"
	case BlockUnsupportedVersion:
		return fmt.Sprintf("Unsupported extrinsic version %d, only version %d is supported currently", e.Version, SupportedExtrinsicVersion)
	default:
		return fmt.Sprintf("Cannot decode extrinsic: %v", e.Err)
	}
}

func (e *BlockError) Unwrap() error {
	return e.Err
}

// BlockNotFoundError reports a block that the node does not know.
func BlockNotFoundError(hash []byte) *Error {
	return Block(&BlockError{Kind: BlockNotFound, Hash: hexutil.BytesToHex(hash)})
}

// BlockNotFoundAt reports a missing block identified other than by hash.
func BlockNotFoundAt(where string) *Error {
	return Block(&BlockError{Kind: BlockNotFound, Where: where})
}

func BlockMissingTypeError() *Error {
	return Block(&BlockError{Kind: BlockMissingType})
}

func BlockUnsupportedVersionError(version uint8) *Error {
	return Block(&BlockError{Kind: BlockUnsupportedVersion, Version: version})
}

func BlockDecodingErr(err error) *Error {
	return Block(&BlockError{Kind: BlockDecodingError, Err: err})
}

type TransactionErrorKind int

const (
	// TxBlockNotFound: the block the transaction was reported in can no longer be
	// found, most likely because it was retracted before finalization.
	TxBlockNotFound TransactionErrorKind = iota
	TxError
	TxInvalid
	TxDropped
)

type TransactionError struct {
	Kind    TransactionErrorKind
	Message string
}

func (e *TransactionError) Error() string {
	switch e.Kind {
	case TxBlockNotFound:
		return "The block containing the transaction can no longer be found (perhaps it was on a non-finalized fork?)"
	case TxInvalid:
		return fmt.Sprintf("The transaction is not valid: %s", e.Message)
	case TxDropped:
		return fmt.Sprintf("The transaction was dropped: %s", e.Message)
	default:
		return fmt.Sprintf("Error handling transaction: %s", e.Message)
	}
}

func TxBlockNotFoundError() *Error {
	return Transaction(&TransactionError{Kind: TxBlockNotFound})
}

func TxErrorf(format string, args ...any) *Error {
	return Transaction(&TransactionError{Kind: TxError, Message: fmt.Sprintf(format, args...)})
}

func TxInvalidError(msg string) *Error {
	return Transaction(&TransactionError{Kind: TxInvalid, Message: msg})
}

func TxDroppedError(msg string) *Error {
	return Transaction(&TransactionError{Kind: TxDropped, Message: msg})
}

type MetadataErrorKind int

const (
	PalletNameNotFound MetadataErrorKind = iota
	PalletIndexNotFound
	RuntimeFnNotFound
	StorageEntryNotFound
	TypeNotFound
	VariantIndexNotFound
	ConstantNameNotFound
	// StorageDefaultNotFound: the entry is optional and declares no default.
	StorageDefaultNotFound
	// IncompatibleShape: a precomputed shape fingerprint no longer matches the
	// metadata, so the caller was built against a different runtime.
	IncompatibleShape
)

type MetadataError struct {
	Kind  MetadataErrorKind
	Name  string
	Index uint32
}

func (e *MetadataError) Error() string {
	switch e.Kind {
	case PalletNameNotFound:
		return fmt.Sprintf("Pallet with name %s not found", e.Name)
	case PalletIndexNotFound:
		return fmt.Sprintf("Pallet with index %d not found", e.Index)
	case RuntimeFnNotFound:
		return fmt.Sprintf("Runtime function with name %s not found", e.Name)
	case StorageEntryNotFound:
		return fmt.Sprintf("Storage entry %s not found", e.Name)
	case TypeNotFound:
		return fmt.Sprintf("Type with id %d not found", e.Index)
	case VariantIndexNotFound:
		return fmt.Sprintf("Variant with index %d not found in %s", e.Index, e.Name)
	case ConstantNameNotFound:
		return fmt.Sprintf("Constant with name %s not found", e.Name)
	case StorageDefaultNotFound:
		return fmt.Sprintf("Storage entry %s has no default value", e.Name)
	default:
		return fmt.Sprintf("The shape of %s is incompatible with the current metadata", e.Name)
	}
}

func MetadataErr(kind MetadataErrorKind, name string) *Error {
	return Metadata(&MetadataError{Kind: kind, Name: name})
}

func TypeNotFoundError(id uint32) *Error {
	return Metadata(&MetadataError{Kind: TypeNotFound, Index: id})
}

type StorageAddressErrorKind int

const (
	WrongNumberOfKeys StorageAddressErrorKind = iota
	WrongNumberOfHashers
	StorageNotMap
)

type StorageAddressError struct {
	Kind     StorageAddressErrorKind
	Expected int
	Actual   int
}

func (e *StorageAddressError) Error() string {
	switch e.Kind {
	case WrongNumberOfKeys:
		return fmt.Sprintf("Storage lookup requires %d keys but %d were provided", e.Expected, e.Actual)
	case WrongNumberOfHashers:
		return fmt.Sprintf("Storage entry declares %d hashers for %d keys", e.Actual, e.Expected)
	default:
		return "Storage entry is a plain value and takes no keys"
	}
}

type ExtrinsicParamsErrorKind int

const (
	UnknownSignedExtension ExtrinsicParamsErrorKind = iota
	MissingExtensionValue
)

type ExtrinsicParamsError struct {
	Kind ExtrinsicParamsErrorKind
	Name string
	Err  error
}

func (e *ExtrinsicParamsError) Error() string {
	if e.Kind == UnknownSignedExtension {
		return fmt.Sprintf("Unknown signed extension %s", e.Name)
	}
	if e.Err != nil {
		return fmt.Sprintf("Cannot encode signed extension %s: %v", e.Name, e.Err)
	}
	return fmt.Sprintf("No value provided for signed extension %s", e.Name)
}

func (e *ExtrinsicParamsError) Unwrap() error {
	return e.Err
}
