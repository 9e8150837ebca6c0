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

// Package numeric normalizes numbers that nodes return either as plain JSON
// numbers or as 0x prefixed hex strings.
//
// Some producers emit block numbers as JSON numbers, which are unsafe above 2^53
// in several consumer runtimes, while others emit hex text. NumberOrHex accepts
// both and keeps track of which one was observed.
package numeric

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/defiweb/go-eth/hexutil"
	"github.com/holiman/uint256"
)

// RangeError is returned when a value does not fit into the requested width.
type RangeError struct {
	Value *uint256.Int
	Bits  int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("value %s does not fit into %d bits", e.Value.Hex(), e.Bits)
}

// NumberOrHex is a number that was received either as a JSON number or as hex text.
type NumberOrHex struct {
	hex    bool
	number uint64
	wide   uint256.Int
}

// Number creates a NumberOrHex holding a plain number.
func Number(n uint64) NumberOrHex {
	return NumberOrHex{number: n}
}

// Hex creates a NumberOrHex holding a 256-bit value.
func Hex(x *uint256.Int) NumberOrHex {
	n := NumberOrHex{hex: true}
	if x != nil {
		n.wide.Set(x)
	}
	return n
}

// IsHex reports whether the value was represented as hex text.
func (n NumberOrHex) IsHex() bool {
	return n.hex
}

// IntoU256 converts the value into its canonical 256-bit form.
func (n NumberOrHex) IntoU256() *uint256.Int {
	if n.hex {
		return new(uint256.Int).Set(&n.wide)
	}
	return uint256.NewInt(n.number)
}

func (n NumberOrHex) String() string {
	if n.hex {
		return n.wide.Hex()
	}
	return strconv.FormatUint(n.number, 10)
}

// MarshalJSON writes a Number as a JSON number and a Hex as minimal hex text.
func (n NumberOrHex) MarshalJSON() ([]byte, error) {
	if n.hex {
		return json.Marshal(n.wide.Hex())
	}
	return []byte(strconv.FormatUint(n.number, 10)), nil
}

// UnmarshalJSON accepts either a JSON number or a 0x prefixed hex string.
func (n *NumberOrHex) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		x, err := ParseHex(s)
		if err != nil {
			return err
		}
		*n = Hex(x)
		return nil
	}
	v, err := strconv.ParseUint(string(data), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid number %s: %w", data, err)
	}
	*n = Number(v)
	return nil
}

// ParseHex parses 0x prefixed hex text of at most 256 bits. Leading zeros are allowed.
func ParseHex(s string) (*uint256.Int, error) {
	if !strings.HasPrefix(s, "0x") && !strings.HasPrefix(s, "0X") {
		return nil, fmt.Errorf("hex number %q is missing the 0x prefix", s)
	}
	if len(s) == 2 {
		return nil, fmt.Errorf("empty hex number")
	}
	b, err := hexutil.HexToBigInt(s)
	if err != nil {
		return nil, fmt.Errorf("invalid hex number %q: %w", s, err)
	}
	x, overflow := uint256.FromBig(b)
	if overflow || b.Sign() < 0 {
		return nil, fmt.Errorf("hex number %q does not fit into 256 bits", s)
	}
	return x, nil
}

// Normalize returns the canonical 256-bit value of n. Normalizing the Hex form of
// the result yields the same value again.
func Normalize(n NumberOrHex) *uint256.Int {
	return n.IntoU256()
}

// Unsigned is the set of fixed width unsigned integers a value can be narrowed to.
type Unsigned interface {
	~uint8 | ~uint16 | ~uint32 | ~uint64
}

// Narrow converts x into T. It fails with a RangeError instead of truncating.
func Narrow[T Unsigned](x *uint256.Int) (T, error) {
	max := ^T(0)
	if !x.IsUint64() || x.Uint64() > uint64(max) {
		return 0, &RangeError{Value: new(uint256.Int).Set(x), Bits: bitsOf(uint64(max))}
	}
	return T(x.Uint64()), nil
}

// FromUnsigned widens an unsigned integer into the canonical 256-bit form.
func FromUnsigned[T Unsigned](v T) *uint256.Int {
	return uint256.NewInt(uint64(v))
}

func bitsOf(max uint64) int {
	n := 0
	for max != 0 {
		n++
		max >>= 1
	}
	return n
}
