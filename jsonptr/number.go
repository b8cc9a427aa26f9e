package jsonptr

import "github.com/wuffsgo/puffs/base"

// consumeNumberByte advances src past one byte belonging to the number and
// counts it against the 99-byte cap.
func (d *Decoder) consumeNumberByte(src *base.IoBuffer) base.Status {
	d.numLen++
	if d.numLen > maxNumberLen {
		return ErrUnsupportedNumberLength
	}
	src.MarkRead(1)
	return base.OK
}

// finishNumber emits the completed number token. The terminating byte (if
// any) has not been consumed; only the number's own bytes count toward
// Length().
func (d *Decoder) finishNumber(dst *base.TokenBuffer) base.Status {
	kind := NumberUnsignedInteger
	switch {
	case d.numHasFraction || d.numHasExponent:
		kind = NumberFloatingPoint
	case d.numNegative:
		kind = NumberSignedInteger
	}
	tok := base.NewDetailToken(base.CategoryNumber, int32(kind), false, uint16(d.numLen))
	return d.emit(dst, tok)
}

// stepNumber drives the number grammar: optional '-', then '0' or
// [1-9][0-9]*, optional '.' [0-9]+, optional [eE] [+-]? [0-9]+. Each
// transition peeks the next byte before deciding whether it extends the
// number (consumed) or terminates it (left unconsumed for the caller).
func (d *Decoder) stepNumber(dst *base.TokenBuffer, src *base.IoBuffer) base.Status {
	for {
		b, s := d.peekByte(src)
		atEOF := s == base.ErrNotEnoughData
		if !s.IsOK() && !atEOF {
			return s
		}

		switch d.numState {
		case numStart:
			if !atEOF && b == '-' {
				d.numNegative = true
				if s := d.consumeNumberByte(src); !s.IsOK() {
					return s
				}
				if d.quirkEnabled(QuirkAllowInfNanNumbers) {
					d.numState = numAfterNegSign
				} else {
					d.numState = numIntZero // reuse: "need first digit, no leading-zero-group yet"
				}
				continue
			}
			if atEOF || !isDigit(b) {
				return ErrBadInput
			}
			if b == '0' {
				if s := d.consumeNumberByte(src); !s.IsOK() {
					return s
				}
				d.numState = numIntZero
			} else {
				if s := d.consumeNumberByte(src); !s.IsOK() {
					return s
				}
				d.numState = numIntDigits
			}

		case numAfterNegSign:
			// A fresh peek every time this state is (re-)entered, so a
			// suspension here never commits to "not Infinity" before a
			// real decision is possible.
			if atEOF {
				d.numState = numIntZero
				continue
			}
			if b == 'I' {
				d.numLen = 0 // the '-' is re-counted into the literal's own length
				d.beginLiteral("Infinity", 0, true, 1)
				d.pc = pcLiteral
				return base.OK
			}
			d.numState = numIntZero

		case numIntZero:
			// Entered either fresh (needs its one required digit) or after
			// a leading '0' (no further int digits permitted, but '.'/e/
			// terminator are).
			if d.numLen == 0 || (d.numLen == 1 && d.numNegative) {
				if atEOF || !isDigit(b) {
					return ErrBadInput
				}
				if s := d.consumeNumberByte(src); !s.IsOK() {
					return s
				}
				if b != '0' {
					d.numState = numIntDigits
				}
				continue
			}
			switch {
			case !atEOF && b == '.':
				if s := d.consumeNumberByte(src); !s.IsOK() {
					return s
				}
				d.numHasFraction = true
				d.numState = numFracStart
			case !atEOF && (b == 'e' || b == 'E'):
				if s := d.consumeNumberByte(src); !s.IsOK() {
					return s
				}
				d.numHasExponent = true
				d.numState = numExpSign
			default:
				return d.finishNumber(dst)
			}

		case numIntDigits:
			switch {
			case !atEOF && isDigit(b):
				if s := d.consumeNumberByte(src); !s.IsOK() {
					return s
				}
			case !atEOF && b == '.':
				if s := d.consumeNumberByte(src); !s.IsOK() {
					return s
				}
				d.numHasFraction = true
				d.numState = numFracStart
			case !atEOF && (b == 'e' || b == 'E'):
				if s := d.consumeNumberByte(src); !s.IsOK() {
					return s
				}
				d.numHasExponent = true
				d.numState = numExpSign
			default:
				return d.finishNumber(dst)
			}

		case numFracStart:
			if atEOF || !isDigit(b) {
				return ErrBadInput
			}
			if s := d.consumeNumberByte(src); !s.IsOK() {
				return s
			}
			d.numState = numFracDigits

		case numFracDigits:
			switch {
			case !atEOF && isDigit(b):
				if s := d.consumeNumberByte(src); !s.IsOK() {
					return s
				}
			case !atEOF && (b == 'e' || b == 'E'):
				if s := d.consumeNumberByte(src); !s.IsOK() {
					return s
				}
				d.numHasExponent = true
				d.numState = numExpSign
			default:
				return d.finishNumber(dst)
			}

		case numExpSign:
			if !atEOF && (b == '+' || b == '-') {
				if s := d.consumeNumberByte(src); !s.IsOK() {
					return s
				}
			}
			d.numState = numExpStart

		case numExpStart:
			if atEOF || !isDigit(b) {
				return ErrBadInput
			}
			if s := d.consumeNumberByte(src); !s.IsOK() {
				return s
			}
			d.numState = numExpDigits

		case numExpDigits:
			if !atEOF && isDigit(b) {
				if s := d.consumeNumberByte(src); !s.IsOK() {
					return s
				}
				continue
			}
			return d.finishNumber(dst)

		default:
			return base.ErrBadReceiver
		}
	}
}
