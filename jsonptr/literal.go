package jsonptr

import "github.com/wuffsgo/puffs/base"

// beginLiteral sets up resumable matching of a fixed keyword (up to 8
// bytes; "Infinity" is the longest this package recognizes). prefixLen
// counts bytes already consumed before the keyword itself (1 for
// "-Infinity"'s sign, 0 otherwise) so the emitted token's length covers the
// whole source span.
func (d *Decoder) beginLiteral(word string, detail int32, isNumber bool, prefixLen int) {
	d.litTotalLen = len(word)
	copy(d.litBuf[:], word)
	d.litLen = 0
	d.litDetail = detail
	d.litIsNumber = isNumber
	d.litPrefixLen = prefixLen
}

// stepLiteral matches the remaining bytes of the pending keyword one at a
// time (resumable via litLen, the same persisted-progress-counter idiom
// zlib.Decoder uses for its header/trailer byte accumulation) and, once
// matched in full, emits the literal or quirk-number token.
func (d *Decoder) stepLiteral(dst *base.TokenBuffer, src *base.IoBuffer) base.Status {
	for d.litLen < d.litTotalLen {
		b, s := d.readByte(src)
		if !s.IsOK() {
			return s
		}
		if b != d.litBuf[d.litLen] {
			return ErrBadLiteral
		}
		d.litLen++
	}
	length := uint16(d.litPrefixLen + d.litTotalLen)
	if d.litIsNumber {
		tok := base.NewDetailToken(base.CategoryNumber, int32(NumberFloatingPoint), false, length)
		return d.emit(dst, tok)
	}
	tok := base.NewDetailToken(base.CategoryLiteral, d.litDetail, false, length)
	return d.emit(dst, tok)
}
