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

package header

import (
	"encoding/json"
	"fmt"

	"github.com/defiweb/go-eth/hexutil"

	"github.com/chronicleprotocol/scalerpc/core/clienterrors"
	"github.com/chronicleprotocol/scalerpc/core/codec"
)

// DigestItemKind is the discriminant of a digest item. It is a 32 bit constant
// but goes over the wire as a single enum index byte.
type DigestItemKind uint32

const (
	DigestOther                     DigestItemKind = 0
	DigestConsensus                 DigestItemKind = 4
	DigestSeal                      DigestItemKind = 5
	DigestPreRuntime                DigestItemKind = 6
	DigestRuntimeEnvironmentUpdated DigestItemKind = 8
)

func (k DigestItemKind) String() string {
	switch k {
	case DigestOther:
		return "Other"
	case DigestConsensus:
		return "Consensus"
	case DigestSeal:
		return "Seal"
	case DigestPreRuntime:
		return "PreRuntime"
	case DigestRuntimeEnvironmentUpdated:
		return "RuntimeEnvironmentUpdated"
	default:
		return fmt.Sprintf("DigestItemKind(%d)", uint32(k))
	}
}

// ConsensusEngineID tags the consensus engine a digest item belongs to, e.g. "BABE".
type ConsensusEngineID [4]byte

func (id ConsensusEngineID) String() string {
	return string(id[:])
}

// DigestItem is a single header log entry. Engine is only meaningful for
// PreRuntime, Consensus and Seal; Data is empty for RuntimeEnvironmentUpdated.
type DigestItem struct {
	Kind   DigestItemKind
	Engine ConsensusEngineID
	Data   []byte
}

func PreRuntime(engine ConsensusEngineID, data []byte) DigestItem {
	return DigestItem{Kind: DigestPreRuntime, Engine: engine, Data: data}
}

func Consensus(engine ConsensusEngineID, data []byte) DigestItem {
	return DigestItem{Kind: DigestConsensus, Engine: engine, Data: data}
}

func Seal(engine ConsensusEngineID, signature []byte) DigestItem {
	return DigestItem{Kind: DigestSeal, Engine: engine, Data: signature}
}

func Other(data []byte) DigestItem {
	return DigestItem{Kind: DigestOther, Data: data}
}

func RuntimeEnvironmentUpdated() DigestItem {
	return DigestItem{Kind: DigestRuntimeEnvironmentUpdated}
}

func (d DigestItem) EncodeTo(w *codec.Writer) error {
	switch d.Kind {
	case DigestPreRuntime, DigestConsensus, DigestSeal:
		_ = w.WriteU8(uint8(d.Kind))
		_ = w.WriteBytes(d.Engine[:])
		return w.WriteVec(d.Data)
	case DigestOther:
		_ = w.WriteU8(uint8(d.Kind))
		return w.WriteVec(d.Data)
	case DigestRuntimeEnvironmentUpdated:
		return w.WriteU8(uint8(d.Kind))
	default:
		return fmt.Errorf("unknown digest item kind %d", uint32(d.Kind))
	}
}

// Encode returns the binary form of the item.
func (d DigestItem) Encode() ([]byte, error) {
	w := codec.NewWriter()
	if err := d.EncodeTo(w); err != nil {
		return nil, err
	}
	return w.Bytes(), nil
}

func decodeDigestItem(r *codec.Reader) (DigestItem, error) {
	tag, err := r.ReadU8()
	if err != nil {
		return DigestItem{}, err
	}
	item := DigestItem{Kind: DigestItemKind(tag)}
	switch item.Kind {
	case DigestPreRuntime, DigestConsensus, DigestSeal:
		if err := r.ReadFixed(item.Engine[:]); err != nil {
			return DigestItem{}, err
		}
		item.Data, err = r.ReadVec()
	case DigestOther:
		item.Data, err = r.ReadVec()
	case DigestRuntimeEnvironmentUpdated:
	default:
		return DigestItem{}, fmt.Errorf("unknown digest item kind %d", tag)
	}
	if err != nil {
		return DigestItem{}, err
	}
	return item, nil
}

// DecodeDigestItem decodes exactly one digest item from data.
func DecodeDigestItem(data []byte) (DigestItem, error) {
	r := codec.NewReader(data)
	item, err := decodeDigestItem(r)
	if err == nil {
		err = r.Finish()
	}
	if err != nil {
		return DigestItem{}, clienterrors.Codec(err)
	}
	return item, nil
}

// MarshalJSON writes the hex text of the binary encoding.
func (d DigestItem) MarshalJSON() ([]byte, error) {
	b, err := d.Encode()
	if err != nil {
		return nil, err
	}
	return json.Marshal(hexutil.BytesToHex(b))
}

func (d *DigestItem) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return clienterrors.Serialization(err)
	}
	b, err := hexutil.HexToBytes(s)
	if err != nil {
		return clienterrors.Serialization(fmt.Errorf("invalid digest item hex: %w", err))
	}
	item, err := DecodeDigestItem(b)
	if err != nil {
		return clienterrors.Serialization(fmt.Errorf("decode error: %w", err))
	}
	*d = item
	return nil
}

// Digest is the ordered list of header logs.
type Digest struct {
	Logs []DigestItem `json:"logs"`
}

func (d Digest) EncodeTo(w *codec.Writer) error {
	_ = w.WriteCompact(uint64(len(d.Logs)))
	for _, item := range d.Logs {
		if err := item.EncodeTo(w); err != nil {
			return err
		}
	}
	return nil
}

func decodeDigest(r *codec.Reader) (Digest, error) {
	n, err := r.ReadLen()
	if err != nil {
		return Digest{}, err
	}
	d := Digest{Logs: make([]DigestItem, 0, n)}
	for i := 0; i < n; i++ {
		item, err := decodeDigestItem(r)
		if err != nil {
			return Digest{}, fmt.Errorf("digest item %d: %w", i, err)
		}
		d.Logs = append(d.Logs, item)
	}
	return d, nil
}

// MarshalJSON always emits a logs array, never null.
func (d Digest) MarshalJSON() ([]byte, error) {
	logs := d.Logs
	if logs == nil {
		logs = []DigestItem{}
	}
	return json.Marshal(struct {
		Logs []DigestItem `json:"logs"`
	}{Logs: logs})
}
