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

// Package extrinsic builds the signed extension data, signer payloads and
// version 4 envelopes of transactions.
package extrinsic

import (
	"fmt"

	"github.com/holiman/uint256"
	logger "github.com/sirupsen/logrus"

	"github.com/chronicleprotocol/scalerpc/core/clienterrors"
	"github.com/chronicleprotocol/scalerpc/core/codec"
	"github.com/chronicleprotocol/scalerpc/core/config"
	"github.com/chronicleprotocol/scalerpc/core/dynamic"
	"github.com/chronicleprotocol/scalerpc/core/metadata"
)

// AssetID is an asset identifier that can be encoded against the metadata.
type AssetID interface {
	AsValue() dynamic.Value
}

// Mortality makes a transaction valid for Period blocks after the block
// CurrentNumber with hash Checkpoint.
type Mortality[H config.Hash] struct {
	Period        uint64
	CurrentNumber uint64
	Checkpoint    H
}

// Params are the values the signed extensions of a transaction are built
// from.
type Params[H config.Hash, A AssetID] struct {
	SpecVersion uint32
	TxVersion   uint32
	GenesisHash H
	// Mortality is nil for immortal transactions.
	Mortality *Mortality[H]
	Nonce     uint64
	Tip       *uint256.Int
	// TipAsset selects the asset the tip is paid in. Nil pays in the native
	// currency.
	TipAsset *A
	// MetadataHash enables CheckMetadataHash with the given hash. Nil disables
	// it.
	MetadataHash *[32]byte
}

// Era returns the era the parameters describe.
func (p *Params[H, A]) Era() Era {
	if p.Mortality == nil {
		return ImmortalEra()
	}
	return MortalEra(p.Mortality.Period, p.Mortality.CurrentNumber)
}

// Encoded is the output of Params.Encode. Extra goes into the extrinsic,
// Additional is only part of the signer payload.
type Encoded struct {
	Extra      []byte
	Additional []byte
}

func extErr(kind clienterrors.ExtrinsicParamsErrorKind, name string, err error) error {
	return clienterrors.ExtrinsicParams(&clienterrors.ExtrinsicParamsError{Kind: kind, Name: name, Err: err})
}

// Encode walks the signed extensions declared by the metadata in order and
// encodes the extra and additional data of each one. Unknown extensions are
// skipped when they carry no data; otherwise they fail the encoding.
func (p *Params[H, A]) Encode(md *metadata.Metadata) (*Encoded, error) {
	var zero H
	extra := codec.NewWriter()
	add := codec.NewWriter()
	for _, ext := range md.Extrinsic.SignedExtensions {
		var err error
		switch ext.Identifier {
		case "CheckNonZeroSender", "CheckWeight", "PrevalidateAttests":
		case "CheckSpecVersion":
			err = add.WriteU32(p.SpecVersion)
		case "CheckTxVersion":
			err = add.WriteU32(p.TxVersion)
		case "CheckGenesis":
			if p.GenesisHash == zero {
				return nil, extErr(clienterrors.MissingExtensionValue, ext.Identifier, nil)
			}
			err = writeHash(add, p.GenesisHash)
		case "CheckMortality", "CheckEra":
			if err = p.Era().EncodeTo(extra); err != nil {
				break
			}
			checkpoint := p.GenesisHash
			if p.Mortality != nil {
				checkpoint = p.Mortality.Checkpoint
			}
			if checkpoint == zero {
				return nil, extErr(clienterrors.MissingExtensionValue, ext.Identifier, nil)
			}
			err = writeHash(add, checkpoint)
		case "CheckNonce":
			err = extra.WriteCompact(p.Nonce)
		case "ChargeTransactionPayment":
			err = extra.WriteCompactBig(p.tip().ToBig())
		case "ChargeAssetTxPayment":
			err = p.encodeAssetTip(md, ext.Type, extra)
		case "CheckMetadataHash":
			err = p.encodeMetadataHash(extra, add)
		default:
			if md.Types.IsZeroSized(ext.Type) && md.Types.IsZeroSized(ext.AdditionalSigned) {
				logger.WithField("extension", ext.Identifier).Debug("Skipping unknown signed extension without data")
				continue
			}
			return nil, extErr(clienterrors.UnknownSignedExtension, ext.Identifier, nil)
		}
		if err != nil {
			return nil, extErr(clienterrors.MissingExtensionValue, ext.Identifier, err)
		}
	}
	return &Encoded{Extra: extra.Bytes(), Additional: add.Bytes()}, nil
}

func (p *Params[H, A]) tip() *uint256.Int {
	if p.Tip == nil {
		return new(uint256.Int)
	}
	return p.Tip
}

// encodeAssetTip encodes {tip, asset_id} through the extension's own type so
// the asset id layout follows the runtime.
func (p *Params[H, A]) encodeAssetTip(md *metadata.Metadata, typeID uint32, w *codec.Writer) error {
	asset := dynamic.Variant("None")
	if p.TipAsset != nil {
		asset = dynamic.Variant("Some", (*p.TipAsset).AsValue())
	}
	v := dynamic.Named(
		dynamic.Field("tip", dynamic.U256(p.tip())),
		dynamic.Field("asset_id", asset),
	)
	return dynamic.EncodeTo(w, md.Types, typeID, v)
}

func (p *Params[H, A]) encodeMetadataHash(extra, add *codec.Writer) error {
	if p.MetadataHash == nil {
		if err := extra.WriteU8(0); err != nil {
			return err
		}
		return add.WriteOption(false)
	}
	if err := extra.WriteU8(1); err != nil {
		return err
	}
	if err := add.WriteOption(true); err != nil {
		return err
	}
	return add.WriteBytes(p.MetadataHash[:])
}

func writeHash[H config.Hash](w *codec.Writer, h H) error {
	b := [32]byte(h)
	if err := w.WriteBytes(b[:]); err != nil {
		return fmt.Errorf("failed to write hash: %w", err)
	}
	return nil
}
