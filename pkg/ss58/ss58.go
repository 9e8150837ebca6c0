// Package ss58 implements the SS58 address text format: a network prefix, the
// account bytes and a blake2b-512 checksum, base58 encoded.
package ss58

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
	"golang.org/x/crypto/blake2b"
)

const (
	// SubstratePrefix is the generic prefix used by development chains.
	SubstratePrefix uint16 = 42
	PolkadotPrefix  uint16 = 0
	KusamaPrefix    uint16 = 2

	maxPrefix = 16383
)

var checksumPrefix = []byte("SS58PRE")

var ErrInvalidChecksum = errors.New("invalid ss58 checksum")

// Encode renders an account with the given network prefix.
func Encode(account []byte, prefix uint16) (string, error) {
	if prefix > maxPrefix {
		return "", fmt.Errorf("ss58 prefix %d is out of range", prefix)
	}
	data := encodePrefix(prefix)
	data = append(data, account...)
	sum, err := checksum(data, checksumLen(len(account)))
	if err != nil {
		return "", err
	}
	return base58.Encode(append(data, sum...)), nil
}

// Decode parses SS58 text and returns the account bytes and network prefix.
func Decode(s string) ([]byte, uint16, error) {
	raw, err := base58.Decode(s)
	if err != nil {
		return nil, 0, fmt.Errorf("invalid base58: %w", err)
	}
	if len(raw) < 2 {
		return nil, 0, fmt.Errorf("ss58 data is too short")
	}
	prefix, prefixLen, err := decodePrefix(raw)
	if err != nil {
		return nil, 0, err
	}
	body := raw[prefixLen:]
	var accountLen int
	switch len(body) {
	case 2, 3, 5, 9:
		accountLen = len(body) - 1
	case 22, 34, 35:
		accountLen = len(body) - 2
	default:
		return nil, 0, fmt.Errorf("unsupported ss58 payload length %d", len(body))
	}
	account := body[:accountLen]
	want, err := checksum(raw[:prefixLen+accountLen], len(body)-accountLen)
	if err != nil {
		return nil, 0, err
	}
	if !bytes.Equal(want, body[accountLen:]) {
		return nil, 0, ErrInvalidChecksum
	}
	return append([]byte(nil), account...), prefix, nil
}

func encodePrefix(prefix uint16) []byte {
	if prefix < 64 {
		return []byte{byte(prefix)}
	}
	first := byte((prefix&0x00fc)>>2) | 0x40
	second := byte(prefix>>8) | byte((prefix&0x0003)<<6)
	return []byte{first, second}
}

func decodePrefix(raw []byte) (uint16, int, error) {
	switch {
	case raw[0] < 64:
		return uint16(raw[0]), 1, nil
	case raw[0] < 128:
		lower := uint16(raw[0]<<2) | uint16(raw[1]>>6)
		upper := uint16(raw[1] & 0x3f)
		return lower | upper<<8, 2, nil
	default:
		return 0, 0, fmt.Errorf("invalid ss58 prefix byte 0x%02x", raw[0])
	}
}

func checksumLen(accountLen int) int {
	switch accountLen {
	case 1, 2, 4, 8:
		return 1
	default:
		return 2
	}
}

func checksum(data []byte, n int) ([]byte, error) {
	h, err := blake2b.New512(nil)
	if err != nil {
		return nil, err
	}
	h.Write(checksumPrefix)
	h.Write(data)
	return h.Sum(nil)[:n], nil
}
