package extrinsic

import (
	"fmt"
	"math/bits"

	"github.com/chronicleprotocol/scalerpc/core/codec"
)

const (
	minPeriod = 4
	maxPeriod = 1 << 16
)

// Era is the validity window of a transaction. A mortal era is valid for
// Period blocks starting at the first block whose number modulo Period equals
// Phase.
type Era struct {
	Immortal bool
	Period   uint64
	Phase    uint64
}

func ImmortalEra() Era {
	return Era{Immortal: true}
}

// MortalEra builds an era that starts around current and lasts roughly
// period blocks. The period is rounded up to a power of two in [4, 65536] and
// the phase is quantized so that the era fits into two bytes.
func MortalEra(period, current uint64) Era {
	if period < minPeriod {
		period = minPeriod
	}
	if period > maxPeriod {
		period = maxPeriod
	}
	if period&(period-1) != 0 {
		period = 1 << bits.Len64(period)
	}
	phase := current % period
	q := quantizeFactor(period)
	return Era{Period: period, Phase: phase / q * q}
}

func quantizeFactor(period uint64) uint64 {
	return max(period>>12, 1)
}

// Birth is the first block of the era that contains current.
func (e Era) Birth(current uint64) uint64 {
	if e.Immortal {
		return 0
	}
	return (max(current, e.Phase)-e.Phase)/e.Period*e.Period + e.Phase
}

// Death is the first block after the era that contains current.
func (e Era) Death(current uint64) uint64 {
	if e.Immortal {
		return ^uint64(0)
	}
	return e.Birth(current) + e.Period
}

func (e Era) EncodeTo(w *codec.Writer) error {
	if e.Immortal {
		return w.WriteU8(0)
	}
	low := uint64(min(15, max(1, bits.TrailingZeros64(e.Period)-1)))
	encoded := low | (e.Phase/quantizeFactor(e.Period))<<4
	return w.WriteU16(uint16(encoded))
}

func (e Era) Encode() []byte {
	w := codec.NewWriter()
	_ = e.EncodeTo(w)
	return w.Bytes()
}

// DecodeEra reads an era in its one byte immortal or two byte mortal form.
func DecodeEra(r *codec.Reader) (Era, error) {
	first, err := r.ReadU8()
	if err != nil {
		return Era{}, err
	}
	if first == 0 {
		return ImmortalEra(), nil
	}
	second, err := r.ReadU8()
	if err != nil {
		return Era{}, err
	}
	encoded := uint64(first) | uint64(second)<<8
	period := uint64(2) << (encoded % 16)
	phase := (encoded >> 4) * quantizeFactor(period)
	if period < minPeriod || phase >= period {
		return Era{}, fmt.Errorf("invalid mortal era 0x%04x", encoded)
	}
	return Era{Period: period, Phase: phase}, nil
}
