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

// Package codec provides the SCALE primitives every other package builds on:
// compact integers, length prefixed vectors, little endian fixed width integers
// and options, plus strict framing on decode.
package codec

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"math/big"

	"github.com/centrifuge/go-substrate-rpc-client/v4/scale"
)

// ErrTrailingBytes is returned by Reader.Finish when input is left unconsumed.
var ErrTrailingBytes = errors.New("trailing bytes after decoding")

// ErrNotEnoughData is returned when the input ends before a value is complete.
var ErrNotEnoughData = errors.New("not enough data to decode")

// Writer accumulates SCALE encoded data.
type Writer struct {
	buf bytes.Buffer
	enc *scale.Encoder
}

// NewWriter creates an empty Writer.
func NewWriter() *Writer {
	w := &Writer{}
	w.enc = scale.NewEncoder(&w.buf)
	return w
}

// Bytes returns the encoded data.
func (w *Writer) Bytes() []byte {
	return w.buf.Bytes()
}

// Len returns the number of bytes written so far.
func (w *Writer) Len() int {
	return w.buf.Len()
}

// WriteBytes writes b as is, without a length prefix.
func (w *Writer) WriteBytes(b []byte) error {
	if len(b) == 0 {
		return nil
	}
	return w.enc.Write(b)
}

// WriteU8 writes a single byte.
func (w *Writer) WriteU8(v uint8) error {
	return w.enc.PushByte(v)
}

// WriteBool writes 0x01 for true and 0x00 for false.
func (w *Writer) WriteBool(v bool) error {
	return w.enc.Encode(v)
}

func (w *Writer) WriteU16(v uint16) error {
	return w.enc.Encode(v)
}

func (w *Writer) WriteU32(v uint32) error {
	return w.enc.Encode(v)
}

func (w *Writer) WriteU64(v uint64) error {
	return w.enc.Encode(v)
}

// WriteCompact writes v using the compact integer encoding.
func (w *Writer) WriteCompact(v uint64) error {
	return w.enc.EncodeUintCompact(*new(big.Int).SetUint64(v))
}

// WriteCompactBig writes an arbitrary non-negative integer using the compact encoding.
func (w *Writer) WriteCompactBig(v *big.Int) error {
	if v == nil || v.Sign() < 0 {
		return fmt.Errorf("compact encoding requires a non-negative integer")
	}
	return w.enc.EncodeUintCompact(*v)
}

// WriteVec writes a compact length prefix followed by b.
func (w *Writer) WriteVec(b []byte) error {
	if err := w.WriteCompact(uint64(len(b))); err != nil {
		return err
	}
	return w.WriteBytes(b)
}

// WriteString writes s as a length prefixed UTF-8 byte vector.
func (w *Writer) WriteString(s string) error {
	return w.WriteVec([]byte(s))
}

// WriteOption writes the option discriminant.
func (w *Writer) WriteOption(some bool) error {
	if some {
		return w.WriteU8(1)
	}
	return w.WriteU8(0)
}

// Reader consumes SCALE encoded data from an in-memory buffer.
type Reader struct {
	r   *bytes.Reader
	dec *scale.Decoder
}

// NewReader creates a Reader over b.
func NewReader(b []byte) *Reader {
	r := bytes.NewReader(b)
	return &Reader{r: r, dec: scale.NewDecoder(r)}
}

// Remaining returns the number of unread bytes.
func (r *Reader) Remaining() int {
	return r.r.Len()
}

// Finish fails if any input is left.
func (r *Reader) Finish() error {
	if n := r.r.Len(); n > 0 {
		return fmt.Errorf("%w: %d bytes left", ErrTrailingBytes, n)
	}
	return nil
}

// ReadBytes reads exactly n bytes.
func (r *Reader) ReadBytes(n int) ([]byte, error) {
	if n < 0 || n > r.r.Len() {
		return nil, fmt.Errorf("%w: want %d bytes, have %d", ErrNotEnoughData, n, r.r.Len())
	}
	b := make([]byte, n)
	if n == 0 {
		return b, nil
	}
	if err := r.dec.Read(b); err != nil {
		return nil, err
	}
	return b, nil
}

// ReadFixed fills b entirely.
func (r *Reader) ReadFixed(b []byte) error {
	v, err := r.ReadBytes(len(b))
	if err != nil {
		return err
	}
	copy(b, v)
	return nil
}

func (r *Reader) ReadU8() (uint8, error) {
	if r.r.Len() < 1 {
		return 0, ErrNotEnoughData
	}
	return r.dec.ReadOneByte()
}

func (r *Reader) ReadBool() (bool, error) {
	b, err := r.ReadU8()
	if err != nil {
		return false, err
	}
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("invalid boolean byte 0x%02x", b)
	}
}

func (r *Reader) ReadU16() (uint16, error) {
	var v uint16
	return v, r.decodeFixed(&v, 2)
}

func (r *Reader) ReadU32() (uint32, error) {
	var v uint32
	return v, r.decodeFixed(&v, 4)
}

func (r *Reader) ReadU64() (uint64, error) {
	var v uint64
	return v, r.decodeFixed(&v, 8)
}

func (r *Reader) decodeFixed(target any, size int) error {
	if r.r.Len() < size {
		return fmt.Errorf("%w: want %d bytes, have %d", ErrNotEnoughData, size, r.r.Len())
	}
	return r.dec.Decode(target)
}

// ReadCompactBig reads a compact encoded integer of any width.
func (r *Reader) ReadCompactBig() (*big.Int, error) {
	if r.r.Len() < 1 {
		return nil, ErrNotEnoughData
	}
	v, err := r.dec.DecodeUintCompact()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotEnoughData, err)
	}
	return v, nil
}

// ReadCompact reads a compact encoded integer that must fit into 64 bits.
func (r *Reader) ReadCompact() (uint64, error) {
	v, err := r.ReadCompactBig()
	if err != nil {
		return 0, err
	}
	if !v.IsUint64() {
		return 0, fmt.Errorf("compact value %s does not fit into 64 bits", v)
	}
	return v.Uint64(), nil
}

// ReadCompactU32 reads a compact integer that must fit into 32 bits, as used for
// type ids and lengths.
func (r *Reader) ReadCompactU32() (uint32, error) {
	v, err := r.ReadCompact()
	if err != nil {
		return 0, err
	}
	if v > math.MaxUint32 {
		return 0, fmt.Errorf("compact value %d does not fit into 32 bits", v)
	}
	return uint32(v), nil
}

// ReadLen reads a compact length prefix and checks it against the remaining input,
// assuming each element takes at least one byte.
func (r *Reader) ReadLen() (int, error) {
	n, err := r.ReadCompact()
	if err != nil {
		return 0, err
	}
	if n > uint64(r.r.Len()) {
		return 0, fmt.Errorf("%w: length %d exceeds remaining %d bytes", ErrNotEnoughData, n, r.r.Len())
	}
	return int(n), nil
}

// ReadVec reads a length prefixed byte vector.
func (r *Reader) ReadVec() ([]byte, error) {
	n, err := r.ReadLen()
	if err != nil {
		return nil, err
	}
	return r.ReadBytes(n)
}

func (r *Reader) ReadString() (string, error) {
	b, err := r.ReadVec()
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// ReadOption reads an option discriminant.
func (r *Reader) ReadOption() (bool, error) {
	b, err := r.ReadU8()
	if err != nil {
		return false, err
	}
	switch b {
	case 0:
		return false, nil
	case 1:
		return true, nil
	default:
		return false, fmt.Errorf("invalid option byte 0x%02x", b)
	}
}

// EncodeCompact returns the compact encoding of v.
func EncodeCompact(v uint64) []byte {
	w := NewWriter()
	// Writing to a bytes.Buffer never fails.
	_ = w.WriteCompact(v)
	return w.Bytes()
}
