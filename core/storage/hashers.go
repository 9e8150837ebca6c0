package storage

import (
	"encoding/binary"
	"fmt"

	"github.com/cespare/xxhash/v2"
	"golang.org/x/crypto/blake2b"

	"github.com/chronicleprotocol/scalerpc/core/metadata"
)

// Hash applies a storage hasher to data. Concat hashers append data to the
// digest so the key can be recovered from the storage key.
func Hash(h metadata.StorageHasher, data []byte) ([]byte, error) {
	switch h {
	case metadata.Blake2_128:
		return blake2(16, data), nil
	case metadata.Blake2_256:
		return blake2(32, data), nil
	case metadata.Blake2_128Concat:
		return append(blake2(16, data), data...), nil
	case metadata.Twox128:
		return Twox(16, data), nil
	case metadata.Twox256:
		return Twox(32, data), nil
	case metadata.Twox64Concat:
		return append(Twox(8, data), data...), nil
	case metadata.Identity:
		return append([]byte(nil), data...), nil
	default:
		return nil, fmt.Errorf("unknown storage hasher %d", h)
	}
}

// HashLen is the length of the digest a hasher prepends. For Identity it is
// zero.
func HashLen(h metadata.StorageHasher) int {
	switch h {
	case metadata.Blake2_128, metadata.Blake2_128Concat, metadata.Twox128:
		return 16
	case metadata.Blake2_256, metadata.Twox256:
		return 32
	case metadata.Twox64Concat:
		return 8
	default:
		return 0
	}
}

// IsConcat reports whether the hasher keeps the original key after the digest.
func IsConcat(h metadata.StorageHasher) bool {
	return h == metadata.Blake2_128Concat || h == metadata.Twox64Concat || h == metadata.Identity
}

func blake2(size int, data []byte) []byte {
	d, err := blake2b.New(size, nil)
	if err != nil {
		panic(err) // size is always 16 or 32
	}
	d.Write(data)
	return d.Sum(nil)
}

// Twox returns the concatenated little endian xxhash64 digests of data with
// seeds 0, 1, ... until size bytes are produced. size must be a multiple of 8.
func Twox(size int, data []byte) []byte {
	out := make([]byte, 0, size)
	for seed := uint64(0); len(out) < size; seed++ {
		d := xxhash.NewWithSeed(seed)
		_, _ = d.Write(data)
		out = binary.LittleEndian.AppendUint64(out, d.Sum64())
	}
	return out
}
