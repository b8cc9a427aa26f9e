package base

import (
	"cmp"
	"math/bits"
)

// unsigned is satisfied by every unsigned integer type.
type unsigned interface {
	~uint | ~uint8 | ~uint16 | ~uint32 | ~uint64 | ~uintptr
}

// SaturatingAdd adds a and b, clamping to the maximum representable value of
// T on overflow instead of wrapping. Used throughout the decoders wherever a
// running total (bytes consumed, history fill level) must never wrap around
// and silently look like a short read.
func SaturatingAdd[T unsigned](a, b T) T {
	sum := a + b
	if sum < a {
		return ^T(0)
	}
	return sum
}

// SaturatingSub subtracts b from a, clamping to zero instead of wrapping.
func SaturatingSub[T unsigned](a, b T) T {
	if b > a {
		return 0
	}
	return a - b
}

// LoadLE loads an n-byte (1..8) little-endian unsigned integer from b. The
// caller must ensure len(b) >= n; callers in this repo always check buffer
// bounds before calling, per spec.md §8 invariant 1.
func LoadLE(b []byte, n int) uint64 {
	var v uint64
	for i := n - 1; i >= 0; i-- {
		v = v<<8 | uint64(b[i])
	}
	return v
}

// LoadBE loads an n-byte (1..8) big-endian unsigned integer from b.
func LoadBE(b []byte, n int) uint64 {
	var v uint64
	for i := 0; i < n; i++ {
		v = v<<8 | uint64(b[i])
	}
	return v
}

// StoreLE stores the low n bytes (1..8) of v into b in little-endian order.
func StoreLE(b []byte, v uint64, n int) {
	for i := 0; i < n; i++ {
		b[i] = byte(v)
		v >>= 8
	}
}

// StoreBE stores the low n bytes (1..8) of v into b in big-endian order.
func StoreBE(b []byte, v uint64, n int) {
	for i := n - 1; i >= 0; i-- {
		b[i] = byte(v)
		v >>= 8
	}
}

// LeadingZeros64 counts leading zero bits in v, 64 for v == 0.
func LeadingZeros64(v uint64) int { return bits.LeadingZeros64(v) }

// Mul64To128 multiplies a and b and returns the 128-bit result as (hi, lo).
// No package in this repository calls it at present.
func Mul64To128(a, b uint64) (hi, lo uint64) {
	hi, lo = bits.Mul64(a, b)
	return hi, lo
}

// ReverseBits16 reverses the low n bits (1..16) of v, used by DEFLATE's
// canonical Huffman code construction (codes are assigned MSB-first but
// consumed LSB-first from the bit buffer).
func ReverseBits16(v uint16, n uint) uint16 {
	return bits.Reverse16(v) >> (16 - n)
}

// Min returns the lesser of a and b.
func Min[T cmp.Ordered](a, b T) T {
	if a < b {
		return a
	}
	return b
}

// Max returns the greater of a and b.
func Max[T cmp.Ordered](a, b T) T {
	if a > b {
		return a
	}
	return b
}
