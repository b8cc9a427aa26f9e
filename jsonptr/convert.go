package jsonptr

import (
	"unicode/utf8"

	"github.com/wuffsgo/puffs/decimal"
)

// This file holds the "downstream code" conversions spec.md §4.5 leaves out
// of the tokenizer itself: DecodeTokens only classifies a number's grammar
// (NumberKind) and leaves its digits in the source buffer, so turning those
// digits into a Go value is a separate, optional step a caller takes once it
// has copied the relevant byte range out of its own IoBuffer (the tokenizer
// does not retain source bytes past the point it has marked them read).

// ParseUint64 parses a NumberUnsignedInteger token's source bytes (an
// unsigned decimal integer, no sign, no leading zero except a lone "0").
// The second return is false on overflow or a malformed literal.
func ParseUint64(literal []byte) (uint64, bool) {
	if len(literal) == 0 {
		return 0, false
	}
	var v uint64
	for _, b := range literal {
		if !isDigit(b) {
			return 0, false
		}
		d := uint64(b - '0')
		if v > (1<<64-1-d)/10 {
			return 0, false
		}
		v = v*10 + d
	}
	return v, true
}

// ParseInt64 parses a NumberSignedInteger token's source bytes (an optional
// leading '-' followed by an unsigned decimal integer).
func ParseInt64(literal []byte) (int64, bool) {
	if len(literal) == 0 {
		return 0, false
	}
	neg := literal[0] == '-'
	digits := literal
	if neg {
		digits = literal[1:]
	}
	u, ok := ParseUint64(digits)
	if !ok {
		return 0, false
	}
	if neg {
		if u > 1<<63 {
			return 0, false
		}
		return -int64(u), true
	}
	if u > 1<<63-1 {
		return 0, false
	}
	return int64(u), true
}

// ParseFloat64 parses a NumberFloatingPoint token's source bytes. A thin
// naming-consistent wrapper: the real work is decimal.ParseFloat64's
// Clinger fast path and arbitrary-precision fallback.
func ParseFloat64(literal []byte) (float64, bool) {
	return decimal.ParseFloat64(literal)
}

// AppendCodePoint appends the UTF-8 encoding of a decoded
// CategoryUnicodeCodePoint token's value (read via Token.UnsignedDetail) to
// dst, for callers reassembling a logical string from its CategoryString
// and CategoryUnicodeCodePoint fragments.
func AppendCodePoint(dst []byte, cp rune) []byte {
	var buf [utf8.UTFMax]byte
	n := utf8.EncodeRune(buf[:], cp)
	return append(dst, buf[:n]...)
}
