package jsonptr

import "github.com/wuffsgo/puffs/base"

func isControlByte(b byte) bool { return b < 0x20 }

func hexVal(b byte) (int, bool) {
	switch {
	case b >= '0' && b <= '9':
		return int(b - '0'), true
	case b >= 'a' && b <= 'f':
		return int(b-'a') + 10, true
	case b >= 'A' && b <= 'F':
		return int(b-'A') + 10, true
	}
	return 0, false
}

// stepStringBody scans the body of a string already past its opening quote.
// Runs of plain bytes accumulate into strFragLen and surface as one
// CategoryString token each time a backslash, the closing quote, or (with
// replace_invalid_unicode) an orphaned surrogate interrupts the run; decoded
// escapes surface as CategoryUnicodeCodePoint tokens. Every such token but
// the last carries Continued()==true, chaining them into one logical
// string; the closing quote always emits one final Continued()==false
// fragment, even if empty, so a string with no plain bytes and no escapes
// ("" or a single escape) still has an unambiguous terminator.
func (d *Decoder) stepStringBody(dst *base.TokenBuffer, src *base.IoBuffer) base.Status {
	for {
		if d.inEscape {
			if s := d.stepEscape(dst, src); !s.IsOK() {
				return s
			}
			continue
		}
		if handled, s := d.resolveOrphanedHighSurrogate(dst, src); handled {
			if !s.IsOK() {
				return s
			}
			continue
		}

		b, s := d.peekByte(src)
		if !s.IsOK() {
			return s
		}
		switch {
		case b == '"':
			src.MarkRead(1)
			tok := base.NewDetailToken(base.CategoryString, 0, false, uint16(d.strFragLen))
			d.strFragLen = 0
			return d.emit(dst, tok)

		case b == '\\':
			if s := d.flushStringFragment(dst, true); !s.IsOK() {
				return s
			}
			src.MarkRead(1)
			d.inEscape = true
			d.escKind = escNone
			d.escLen = 0

		case isControlByte(b):
			if !d.quirkEnabled(QuirkAllowAsciiControlCodes) {
				return ErrBadControlCode
			}
			src.MarkRead(1)
			d.strFragLen++

		default:
			src.MarkRead(1)
			d.strFragLen++
		}
	}
}

// flushStringFragment emits the bytes accumulated in strFragLen so far as a
// CategoryString token, if any; a zero-length fragment between two escapes
// (or between the opening quote and an immediate escape) is simply skipped
// rather than emitted, since the Continued chain carries no information an
// empty token would add.
func (d *Decoder) flushStringFragment(dst *base.TokenBuffer, continued bool) base.Status {
	if d.strFragLen == 0 {
		return base.OK
	}
	tok := base.NewDetailToken(base.CategoryString, 0, continued, uint16(d.strFragLen))
	if s := d.emit(dst, tok); !s.IsOK() {
		return s
	}
	d.strFragLen = 0
	return base.OK
}

// emitCodepoint emits a decoded escape as a CategoryUnicodeCodePoint token
// and returns stepStringBody to plain-byte scanning. Detail uses
// UnsignedDetail's full 21-bit range (Token.Detail's sign extension would
// corrupt code points at or above U+100000).
func (d *Decoder) emitCodepoint(dst *base.TokenBuffer, cp rune, byteLen int) base.Status {
	// Always Continued()==true: a terminal (possibly empty) CategoryString
	// fragment is guaranteed to follow once the closing quote is reached,
	// so no codepoint token emitted here is ever the string's last token.
	tok := base.NewDetailToken(base.CategoryUnicodeCodePoint, int32(uint32(cp)), true, uint16(byteLen))
	if s := d.emit(dst, tok); !s.IsOK() {
		return s
	}
	d.inEscape = false
	d.escKind = escNone
	d.escLen = 0
	return base.OK
}

// stepEscape runs once the leading backslash has already been consumed. Its
// first call for a given escape reads the introducer byte; escUnicode,
// escUnicodeCapital, and escHex then need further calls (possibly across
// suspensions) to gather their fixed run of hex digits into escBuf.
func (d *Decoder) stepEscape(dst *base.TokenBuffer, src *base.IoBuffer) base.Status {
	if d.escKind == escNone {
		b, s := d.readByte(src)
		if !s.IsOK() {
			return s
		}
		switch b {
		case '"', '\\', '/':
			return d.emitCodepoint(dst, rune(b), 2)
		case 'b':
			return d.emitCodepoint(dst, '\b', 2)
		case 'f':
			return d.emitCodepoint(dst, '\f', 2)
		case 'n':
			return d.emitCodepoint(dst, '\n', 2)
		case 'r':
			return d.emitCodepoint(dst, '\r', 2)
		case 't':
			return d.emitCodepoint(dst, '\t', 2)
		case 'u':
			d.escKind = escUnicode
			d.escLen, d.escNeed = 0, 4
			return base.OK
		case 'a':
			if !d.quirkEnabled(QuirkAllowBackslashA) {
				return ErrBadEscape
			}
			return d.emitCodepoint(dst, 0x07, 2)
		case 'e':
			if !d.quirkEnabled(QuirkAllowBackslashE) {
				return ErrBadEscape
			}
			return d.emitCodepoint(dst, 0x1b, 2)
		case 'v':
			if !d.quirkEnabled(QuirkAllowBackslashV) {
				return ErrBadEscape
			}
			return d.emitCodepoint(dst, 0x0b, 2)
		case '0':
			if !d.quirkEnabled(QuirkAllowBackslashZero) {
				return ErrBadEscape
			}
			return d.emitCodepoint(dst, 0x00, 2)
		case '\'':
			if !d.quirkEnabled(QuirkAllowBackslashSingleQuote) {
				return ErrBadEscape
			}
			return d.emitCodepoint(dst, '\'', 2)
		case '?':
			if !d.quirkEnabled(QuirkAllowBackslashQuestionMark) {
				return ErrBadEscape
			}
			return d.emitCodepoint(dst, '?', 2)
		case '\n':
			if !d.quirkEnabled(QuirkAllowBackslashNewline) {
				return ErrBadEscape
			}
			d.inEscape = false // line continuation: consumes backslash+newline, emits nothing
			return base.OK
		case 'x':
			if !d.quirkEnabled(QuirkAllowBackslashX) {
				return ErrBadEscape
			}
			d.escKind = escHex
			d.escLen, d.escNeed = 0, 2
			return base.OK
		case 'U':
			if !d.quirkEnabled(QuirkAllowBackslashCapitalU) {
				return ErrBadEscape
			}
			d.escKind = escUnicodeCapital
			d.escLen, d.escNeed = 0, 8
			return base.OK
		default:
			return ErrBadEscape
		}
	}

	for d.escLen < d.escNeed {
		b, s := d.readByte(src)
		if !s.IsOK() {
			return s
		}
		v, ok := hexVal(b)
		if !ok {
			return ErrBadUnicodeEscape
		}
		d.escBuf[d.escLen] = byte(v)
		d.escLen++
	}

	switch d.escKind {
	case escHex:
		cp := rune(d.escBuf[0])<<4 | rune(d.escBuf[1])
		return d.emitCodepoint(dst, cp, 4) // \xHH: backslash+x+2 hex

	case escUnicodeCapital:
		var cp rune
		for i := 0; i < 8; i++ {
			cp = cp<<4 | rune(d.escBuf[i])
		}
		return d.emitCodepoint(dst, cp, 10) // \U00hhhhhh: backslash+U+8 hex

	case escUnicode:
		var cp rune
		for i := 0; i < 4; i++ {
			cp = cp<<4 | rune(d.escBuf[i])
		}
		return d.finishUnicodeEscape(dst, cp)

	default:
		return base.ErrBadReceiver
	}
}

// finishUnicodeEscape applies surrogate-pair combination to a \uXXXX escape
// just decoded into cp. A high surrogate (U+D800..U+DBFF) is held rather
// than emitted, waiting for an immediately following \u low surrogate to
// combine with; everything else (an unpaired high surrogate, a low
// surrogate with no preceding high half, or an ordinary code point) emits
// right away.
func (d *Decoder) finishUnicodeEscape(dst *base.TokenBuffer, cp rune) base.Status {
	if d.haveHighSurrogate {
		d.haveHighSurrogate = false
		if cp >= 0xdc00 && cp <= 0xdfff {
			combined := 0x10000 + (rune(d.highSurrogate)-0xd800)*0x400 + (cp - 0xdc00)
			return d.emitCodepoint(dst, combined, 12)
		}
		if !d.quirkEnabled(QuirkReplaceInvalidUnicode) {
			return ErrBadUnicodeEscape
		}
		if s := d.emitCodepoint(dst, 0xfffd, 6); !s.IsOK() {
			return s
		}
		return d.finishUnicodeEscape(dst, cp) // re-evaluate cp fresh, high surrogate now cleared
	}

	switch {
	case cp >= 0xd800 && cp <= 0xdbff:
		d.highSurrogate = uint16(cp)
		d.haveHighSurrogate = true
		d.inEscape = false
		d.escKind = escNone
		return base.OK
	case cp >= 0xdc00 && cp <= 0xdfff:
		if !d.quirkEnabled(QuirkReplaceInvalidUnicode) {
			return ErrBadUnicodeEscape
		}
		return d.emitCodepoint(dst, 0xfffd, 6)
	default:
		return d.emitCodepoint(dst, cp, 6)
	}
}

// resolveOrphanedHighSurrogate runs, with priority over ordinary byte
// dispatch, whenever a \uXXXX high surrogate is pending combination. It
// requires the very next bytes to be "\u" (tentatively consumed, then
// un-read if the second byte turns out not to be 'u', since that backslash
// still needs ordinary dispatch); anything else resolves the pending
// surrogate as orphaned before normal scanning resumes, so a suspension
// while probing never discards input.
func (d *Decoder) resolveOrphanedHighSurrogate(dst *base.TokenBuffer, src *base.IoBuffer) (handled bool, status base.Status) {
	if !d.haveHighSurrogate {
		return false, base.OK
	}
	b, s := d.peekByte(src)
	if !s.IsOK() {
		return true, s
	}
	if b != '\\' {
		return true, d.emitOrphanedHighSurrogate(dst)
	}
	src.MarkRead(1)
	b2, s2 := d.peekByte(src)
	if !s2.IsOK() {
		src.RI--
		return true, s2
	}
	if b2 != 'u' {
		src.RI--
		return true, d.emitOrphanedHighSurrogate(dst)
	}
	d.inEscape = true
	d.escKind = escNone
	return true, base.OK
}

func (d *Decoder) emitOrphanedHighSurrogate(dst *base.TokenBuffer) base.Status {
	d.haveHighSurrogate = false
	if !d.quirkEnabled(QuirkReplaceInvalidUnicode) {
		return ErrBadUnicodeEscape
	}
	return d.emitCodepoint(dst, 0xfffd, 6)
}
