package jsonptr

import "github.com/wuffsgo/puffs/base"

// stepLeadingBOM consumes a leading UTF-8 byte-order mark (EF BB BF) when
// QuirkAllowLeadingUnicodeByteOrderMark is set. It never suspends on a
// partial match against a stream shorter than 3 bytes unless the quirk is
// enabled and the stream is still open (more bytes might complete the BOM).
func (d *Decoder) stepLeadingBOM(src *base.IoBuffer) base.Status {
	if !d.quirkEnabled(QuirkAllowLeadingUnicodeByteOrderMark) {
		return base.OK
	}
	const bom = "\xef\xbb\xbf"
	ok, s := base.Match7(src, base.PackMatch7(bom), len(bom))
	if !s.IsOK() {
		return s
	}
	if ok {
		src.MarkRead(len(bom))
	}
	return base.OK
}

// stepLeadingRecordSeparator consumes a single leading ASCII record
// separator (0x1E) when QuirkAllowLeadingAsciiRecordSeparator is set.
func (d *Decoder) stepLeadingRecordSeparator(src *base.IoBuffer) base.Status {
	if !d.quirkEnabled(QuirkAllowLeadingAsciiRecordSeparator) {
		return base.OK
	}
	b, s := d.peekByte(src)
	if s == base.SuspensionShortRead {
		return base.OK // stream may be empty; nothing to skip
	}
	if !s.IsOK() {
		return base.OK
	}
	if b == 0x1e {
		src.MarkRead(1)
	}
	return base.OK
}

func (d *Decoder) emitFillerIfAny(dst *base.TokenBuffer) base.Status {
	if d.fillerLen == 0 {
		return base.OK
	}
	tok := base.NewDetailToken(base.CategoryFiller, 0, false, uint16(d.fillerLen))
	if s := d.emit(dst, tok); !s.IsOK() {
		return s
	}
	d.fillerLen = 0
	return base.OK
}

// stepFiller consumes whitespace, commas, colons, and (if enabled)
// comments, coalescing them into CategoryFiller tokens. Commas and colons
// are validated elsewhere (stepExpectColon, stepExpectCommaOrClose,
// dispatchValueOrKey) before control ever reaches this state for them; by
// the time this state runs past one, it has already been determined legal.
// This state itself only ever sees whitespace and comment bytes.
func (d *Decoder) stepFiller(dst *base.TokenBuffer, src *base.IoBuffer) base.Status {
	for {
		switch d.pc {
		case pcLineComment:
			for {
				b, s := d.readByte(src)
				if s == base.ErrNotEnoughData {
					d.pc = pcFiller
					break
				}
				if !s.IsOK() {
					return s
				}
				d.fillerLen++
				if b == '\n' {
					d.pc = pcFiller
					break
				}
			}

		case pcBlockComment:
			for {
				b, s := d.readByte(src)
				if !s.IsOK() {
					return s
				}
				d.fillerLen++
				if b == '*' {
					d.pc = pcBlockCommentStar
					break
				}
			}

		case pcBlockCommentStar:
			for {
				b, s := d.readByte(src)
				if !s.IsOK() {
					return s
				}
				d.fillerLen++
				if b == '/' {
					d.pc = pcFiller
					break
				} else if b != '*' {
					d.pc = pcBlockComment
					break
				}
			}

		default: // pcFiller
			b, s := d.peekByte(src)
			if !s.IsOK() {
				if s == base.ErrNotEnoughData {
					return d.emitFillerIfAny(dst)
				}
				return s
			}
			switch {
			case b == '\n' && d.afterFiller == pcTopLevelTrailer && d.quirkEnabled(QuirkAllowTrailingNewline):
				// Leave the newline for stepTrailingNewline to consume.
				return d.emitFillerIfAny(dst)
			case isWhitespace(b):
				src.MarkRead(1)
				d.fillerLen++
			case b == '/' && d.quirkEnabled(QuirkAllowLineComments) && d.peekAhead(src) == '/':
				src.MarkRead(2)
				d.fillerLen += 2
				d.pc = pcLineComment
			case b == '/' && d.quirkEnabled(QuirkAllowBlockComments) && d.peekAhead(src) == '*':
				src.MarkRead(2)
				d.fillerLen += 2
				d.pc = pcBlockComment
			default:
				return d.emitFillerIfAny(dst)
			}
		}
	}
}

// peekAhead returns the second buffered byte (src.RI+1), or 0 if it is not
// yet available. Used only to distinguish "//" / "/*" from a bare '/',
// which is never otherwise a legal JSON byte at this position, so a false
// negative here (not enough bytes buffered yet) is resolved by the caller's
// own suspension the next time stepFiller re-peeks at src.RI.
func (d *Decoder) peekAhead(src *base.IoBuffer) byte {
	if src.RI+1 >= src.WI {
		return 0
	}
	return src.Data[src.RI+1]
}

// dispatchValueOrKey peeks one significant byte (filler has already been
// skipped) and decides what kind of token begins there: a key string (if
// expectKey), a value of any JSON type, or -- when allowClose is true --
// the nesting level's closing bracket.
func (d *Decoder) dispatchValueOrKey(dst *base.TokenBuffer, src *base.IoBuffer, allowClose bool) base.Status {
	b, s := d.peekByte(src)
	if !s.IsOK() {
		return s
	}

	if allowClose && d.depth > 0 {
		if (d.topIsObject() && b == '}') || (!d.topIsObject() && b == ']') {
			src.MarkRead(1)
			major := majPopArray
			if d.topIsObject() {
				major = majPopObject
			}
			d.popLevel()
			if s := d.emit(dst, base.NewStructureToken(int32(major), 0, false, 1)); !s.IsOK() {
				return s
			}
			if d.depth == 0 {
				d.goToFiller(pcTopLevelTrailer)
			} else {
				d.goToFiller(pcExpectCommaOrClose)
			}
			return base.OK
		}
	}

	if d.depth > 0 && d.topIsObject() && d.expectKey {
		if b != '"' {
			return ErrBadStructure
		}
		d.strIsKey = true
		d.strFragLen = 0
		d.expectKey = false // cleared here; markElementProduced sets it again once the value completes
		src.MarkRead(1)
		d.pc = pcStringBody
		return base.OK
	}

	switch {
	case b == '"':
		d.strIsKey = false
		d.strFragLen = 0
		src.MarkRead(1)
		d.pc = pcStringBody

	case b == '{':
		src.MarkRead(1)
		if s := d.emit(dst, base.NewStructureToken(majPushObject, 0, false, 1)); !s.IsOK() {
			return s
		}
		if s := d.pushLevel(true); !s.IsOK() {
			return s
		}
		d.goToFiller(pcDispatchFresh)

	case b == '[':
		src.MarkRead(1)
		if s := d.emit(dst, base.NewStructureToken(majPushArray, 0, false, 1)); !s.IsOK() {
			return s
		}
		if s := d.pushLevel(false); !s.IsOK() {
			return s
		}
		d.goToFiller(pcDispatchFresh)

	case b == 't':
		d.beginLiteral("true", literalTrue, false, 0)
		d.pc = pcLiteral

	case b == 'f':
		d.beginLiteral("false", literalFalse, false, 0)
		d.pc = pcLiteral

	case b == 'n':
		d.beginLiteral("null", literalNull, false, 0)
		d.pc = pcLiteral

	case b == 'I' && d.quirkEnabled(QuirkAllowInfNanNumbers):
		d.beginLiteral("Infinity", 0, true, 0)
		d.pc = pcLiteral

	case b == 'N' && d.quirkEnabled(QuirkAllowInfNanNumbers):
		d.beginLiteral("NaN", 0, true, 0)
		d.pc = pcLiteral

	case b == '-' || isDigit(b):
		d.numLen, d.numNegative, d.numHasFraction, d.numHasExponent = 0, false, false, false
		d.numState = numStart
		d.pc = pcNumber

	default:
		return ErrBadInput
	}
	return base.OK
}

// stepExpectColon consumes the ':' that must follow an object key, which
// has already been validated and tokenized by dispatchValueOrKey/
// stepStringBody by the time control reaches here.
func (d *Decoder) stepExpectColon(dst *base.TokenBuffer, src *base.IoBuffer) base.Status {
	b, s := d.readByte(src)
	if !s.IsOK() {
		return s
	}
	if b != ':' {
		return ErrBadStructure
	}
	d.fillerLen++ // the colon itself is filler: structurally required, semantically inert
	if s := d.emitFillerIfAny(dst); !s.IsOK() {
		return s
	}
	d.goToFiller(pcDispatchFresh)
	return base.OK
}

// stepExpectCommaOrClose runs after a value completes inside a container:
// the next significant byte must be a comma (more elements follow) or the
// matching close bracket.
func (d *Decoder) stepExpectCommaOrClose(dst *base.TokenBuffer, src *base.IoBuffer) base.Status {
	b, s := d.peekByte(src)
	if !s.IsOK() {
		return s
	}
	closeByte := byte(']')
	if d.topIsObject() {
		closeByte = '}'
	}
	switch b {
	case closeByte:
		src.MarkRead(1)
		major := majPopArray
		if d.topIsObject() {
			major = majPopObject
		}
		d.popLevel()
		if s := d.emit(dst, base.NewStructureToken(int32(major), 0, false, 1)); !s.IsOK() {
			return s
		}
		if d.depth == 0 {
			d.goToFiller(pcTopLevelTrailer)
		} else {
			d.goToFiller(pcExpectCommaOrClose)
		}
		return base.OK

	case ',':
		src.MarkRead(1)
		d.fillerLen++
		if s := d.emitFillerIfAny(dst); !s.IsOK() {
			return s
		}
		if d.topIsObject() {
			d.expectKey = true
		}
		d.goToFiller(pcDispatchAfterComma)
		return base.OK

	default:
		return ErrBadStructure
	}
}

// stepTrailingNewline runs once the single top-level value has been fully
// read and filler (whitespace, and comments if quirked) after it has
// already been skipped: it requires the stream either end here, or (if
// QuirkAllowTrailingNewline is set) contain exactly one more '\n' before
// ending. Anything else left over -- a second value, stray punctuation, or
// digits that would have extended a number that already terminated (a
// leading-zero number like "01" stops after the "0", leaving the "1" as
// this kind of leftover) -- is trailing garbage and an error.
func (d *Decoder) stepTrailingNewline(src *base.IoBuffer) base.Status {
	if d.quirkEnabled(QuirkAllowTrailingNewline) {
		b, s := d.readByte(src)
		if s == base.ErrNotEnoughData {
			return ErrTrailingNewlineMissing
		}
		if !s.IsOK() {
			return s
		}
		if b != '\n' {
			return ErrTrailingNewlineMissing
		}
	}
	if _, s := d.peekByte(src); s != base.ErrNotEnoughData {
		if !s.IsOK() {
			return s
		}
		return ErrBadInput
	}
	return base.OK
}
