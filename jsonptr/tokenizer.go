// Package jsonptr implements a suspendable, allocation-free RFC 8259 JSON
// tokenizer, the base.TokenDecoder described by spec.md §4.5. It emits
// base.Token values rather than decoded Go values: callers read the
// corresponding source bytes out of the same IoBuffer they handed to
// DecodeTokens, sliced by each token's stream position and length, and
// convert strings/numbers themselves (this package's convert.go provides
// the leaf conversions spec.md §4.5 calls "downstream code").
//
// Grounded on zlib.Decoder and gif.Decoder's programCounter/switch
// coroutine shape, generalized from byte-to-byte and byte-to-pixel
// transforms to byte-to-token. The nesting bit stack and character-class
// dispatch are new to this package -- nothing in the example pack
// tokenizes text -- and are built from spec.md §4.5's description
// directly.
package jsonptr

import (
	"github.com/wuffsgo/puffs/base"
)

const (
	maxDepth      = 1024
	maxDepthWords = maxDepth / 32

	// maxNumberLen is spec.md §4.5's cap on a number literal's byte
	// length; longer literals yield ErrUnsupportedNumberLength.
	maxNumberLen = 99

	// MinDestinationTokens/MinSourceBufferBytes document spec.md §4.5's
	// minimum buffer sizes. DecodeTokens does not itself enforce them (a
	// caller violating them sees more suspensions than necessary, never
	// incorrect output); they are exposed for cmd/puffscat and docs.
	MinDestinationTokens = 1
	MinSourceBufferBytes = 100
)

var (
	ErrBadStructure              = base.NewError("#jsonptr: bad structure (unexpected token)")
	ErrBadLiteral                = base.NewError("#jsonptr: bad literal")
	ErrBadEscape                 = base.NewError("#jsonptr: bad backslash escape")
	ErrBadUnicodeEscape          = base.NewError("#jsonptr: bad \\u escape")
	ErrUnsupportedNumberLength   = base.NewError("#jsonptr: unsupported number length")
	ErrUnsupportedRecursionDepth = base.NewError("#jsonptr: unsupported recursion depth")
	ErrBadControlCode            = base.NewError("#jsonptr: ASCII control code in string")
	ErrBadComment                = base.NewError("#jsonptr: bad comment")
	ErrBadInput                  = base.NewError("#jsonptr: bad input (not JSON)")
	ErrTrailingNewlineMissing    = base.NewError("#jsonptr: missing required trailing newline")
)

// Structure-token majors, spec.md §6's (major, minor) split reused here for
// the four bracket operations.
const (
	majPushArray int32 = iota
	majPopArray
	majPushObject
	majPopObject
)

// Literal-token details.
const (
	literalFalse int32 = iota
	literalNull
	literalTrue
)

// NumberKind is a CategoryNumber token's Detail(): which converter in
// convert.go (or decimal.ParseFloat64 directly) applies to the token's
// source bytes.
type NumberKind int32

const (
	NumberUnsignedInteger NumberKind = iota
	NumberSignedInteger
	NumberFloatingPoint
)

// programCounter is jsonptr's resumption point, the same role as every
// other decoder's pc field in this repo.
type programCounter uint8

const (
	pcLeadingBOM programCounter = iota
	pcLeadingRecordSeparator
	pcFiller
	pcLineComment
	pcBlockComment
	pcBlockCommentStar
	pcDispatchFresh
	pcDispatchAfterComma
	pcExpectColon
	pcExpectCommaOrClose
	pcLiteral
	pcStringBody
	pcNumber
	pcTopLevelTrailer
	pcDone
)

const coroDecodeTokens uint32 = 1

// Decoder implements base.TokenDecoder for a JSON byte stream.
type Decoder struct {
	receiver base.Receiver

	quirks uint32
	pc     programCounter

	// afterFiller names which pc to resume at once pcFiller (and its
	// comment sub-states) finish consuming whitespace/comments.
	afterFiller programCounter

	// Nesting bit stacks: depth levels, one bit each, packed 32 to a
	// word. Bit i of stack[i/32] (word) at offset i%32 describes nesting
	// level i, for i in [0, depth). isObjectStack records whether level i
	// is an object (1) or array (0); hasElementStack records whether
	// level i has already produced at least one element.
	isObjectStack   [maxDepthWords]uint32
	hasElementStack [maxDepthWords]uint32
	depth           int

	// expectKey is true when the next value slot at the current
	// (innermost) level must be a string key rather than any value; only
	// meaningful while depth>0 and the current level is an object.
	expectKey bool

	sawTopLevelValue bool

	// filler scanning (whitespace and, if enabled, comments)
	fillerLen int

	// literal ("true"/"false"/"null", and the quirk "Infinity"/"NaN")
	// matching. A plain byte-by-byte compare against litBuf[:litTotalLen]
	// rather than base.Match7, since "Infinity" is 8 bytes and Match7 caps
	// at 7.
	litBuf       [8]byte
	litLen       int
	litTotalLen  int
	litPrefixLen int // bytes already consumed before litBuf (1 for "-Infinity"'s sign, else 0)
	litDetail    int32
	litIsNumber  bool

	// string body scanning
	strFragLen        int // bytes of the current fragment accumulated so far
	strIsKey          bool
	inEscape          bool
	escBuf            [8]byte
	escLen            int
	escNeed           int
	escKind           escapeKind
	highSurrogate     uint16
	haveHighSurrogate bool

	// number scanning
	numLen         int
	numNegative    bool
	numHasFraction bool
	numHasExponent bool
	numState       numberSubState
}

type escapeKind uint8

const (
	escNone escapeKind = iota
	escUnicode        // \uXXXX
	escUnicodeCapital // \U00hhhhhh (quirk)
	escHex            // \xHH (quirk)
)

type numberSubState uint8

const (
	numStart numberSubState = iota
	numAfterNegSign
	numIntZero
	numIntDigits
	numFracStart
	numFracDigits
	numExpSign
	numExpStart
	numExpDigits
)

// Initialize prepares d for use.
func (d *Decoder) Initialize(callerVersion, libraryVersion base.Version, flags uint32) base.Status {
	if s := d.receiver.Initialize(callerVersion, libraryVersion, flags); !s.IsOK() {
		return s
	}
	d.pc = pcLeadingBOM
	return base.OK
}

// WorkbufLen reports that this decoder needs no caller-supplied scratch.
func (d *Decoder) WorkbufLen() (min, max uint64) { return 0, 0 }

// SetQuirkEnabled enables or disables one of the Quirk* bits.
func (d *Decoder) SetQuirkEnabled(quirk uint32, on bool) base.Status {
	if s := d.receiver.CheckCall(); !s.IsOK() {
		return s
	}
	if d.pc != pcLeadingBOM {
		return base.ErrBadCallSequence
	}
	if on {
		d.quirks |= quirk
	} else {
		d.quirks &^= quirk
	}
	return base.OK
}

// DecodeTokens reads JSON text from src and writes base.Tokens to dst.
func (d *Decoder) DecodeTokens(dst *base.TokenBuffer, src *base.IoBuffer, workbuf []byte) base.Status {
	if s := d.receiver.EnterCoroutine(coroDecodeTokens); !s.IsOK() {
		return s
	}
	status := d.step(dst, src)
	if status.IsSuspension() {
		d.receiver.Suspend(coroDecodeTokens)
	} else {
		d.receiver.Complete()
		if status.IsError() {
			d.receiver.Disable()
		}
	}
	return status
}

func (d *Decoder) emit(dst *base.TokenBuffer, tok base.Token) base.Status {
	if s := dst.NeedWrite(); !s.IsOK() {
		return s
	}
	dst.Data[dst.WI] = tok
	dst.WI++
	return base.OK
}

func (d *Decoder) peekByte(src *base.IoBuffer) (byte, base.Status) {
	if s := src.NeedRead(); !s.IsOK() {
		return 0, s
	}
	return src.Data[src.RI], base.OK
}

func (d *Decoder) readByte(src *base.IoBuffer) (byte, base.Status) {
	if s := src.NeedRead(); !s.IsOK() {
		return 0, s
	}
	b := src.Data[src.RI]
	src.RI++
	return b, base.OK
}

// pushLevel descends into a new array/object nesting level.
func (d *Decoder) pushLevel(isObject bool) base.Status {
	if d.depth >= maxDepth {
		return ErrUnsupportedRecursionDepth
	}
	word, bit := d.depth/32, uint(d.depth%32)
	if isObject {
		d.isObjectStack[word] |= 1 << bit
	} else {
		d.isObjectStack[word] &^= 1 << bit
	}
	d.hasElementStack[word] &^= 1 << bit
	d.depth++
	d.expectKey = isObject
	return base.OK
}

// popLevel ascends out of the current nesting level, then records that
// (from the new current level's point of view) a value was just produced.
func (d *Decoder) popLevel() {
	d.depth--
	d.markElementProduced()
}

func (d *Decoder) topIsObject() bool {
	if d.depth == 0 {
		return false
	}
	word, bit := (d.depth-1)/32, uint((d.depth-1)%32)
	return d.isObjectStack[word]&(1<<bit) != 0
}

func (d *Decoder) topHasElement() bool {
	if d.depth == 0 {
		return false
	}
	word, bit := (d.depth-1)/32, uint((d.depth-1)%32)
	return d.hasElementStack[word]&(1<<bit) != 0
}

func (d *Decoder) setTopHasElement() {
	if d.depth == 0 {
		return
	}
	word, bit := (d.depth-1)/32, uint((d.depth-1)%32)
	d.hasElementStack[word] |= 1 << bit
}

// markElementProduced updates state after a complete value (scalar or a
// just-closed container) at the current level: the level now has an
// element, and if it is an object, the next slot expects a key again.
func (d *Decoder) markElementProduced() {
	if d.depth == 0 {
		d.sawTopLevelValue = true
		return
	}
	d.setTopHasElement()
	d.expectKey = d.topIsObject()
}

func isWhitespace(b byte) bool {
	return b == ' ' || b == '\t' || b == '\n' || b == '\r'
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

// goToFiller transitions to the filler-skipping state, recording where to
// resume once it completes.
func (d *Decoder) goToFiller(resumeAt programCounter) {
	d.afterFiller = resumeAt
	d.pc = pcFiller
}

func (d *Decoder) step(dst *base.TokenBuffer, src *base.IoBuffer) base.Status {
	for {
		switch d.pc {
		case pcLeadingBOM:
			if s := d.stepLeadingBOM(src); !s.IsOK() {
				return s
			}
			d.pc = pcLeadingRecordSeparator

		case pcLeadingRecordSeparator:
			if s := d.stepLeadingRecordSeparator(src); !s.IsOK() {
				return s
			}
			d.goToFiller(pcDispatchFresh)

		case pcFiller, pcLineComment, pcBlockComment, pcBlockCommentStar:
			if s := d.stepFiller(dst, src); !s.IsOK() {
				return s
			}
			d.pc = d.afterFiller

		case pcDispatchFresh:
			if s := d.dispatchValueOrKey(dst, src, true); !s.IsOK() {
				return s
			}

		case pcDispatchAfterComma:
			if s := d.dispatchValueOrKey(dst, src, d.quirkEnabled(QuirkAllowTrailingCommas)); !s.IsOK() {
				return s
			}

		case pcExpectColon:
			if s := d.stepExpectColon(dst, src); !s.IsOK() {
				return s
			}

		case pcExpectCommaOrClose:
			if s := d.stepExpectCommaOrClose(dst, src); !s.IsOK() {
				return s
			}

		case pcLiteral:
			if s := d.stepLiteral(dst, src); !s.IsOK() {
				return s
			}
			d.afterValueProduced()

		case pcStringBody:
			if s := d.stepStringBody(dst, src); !s.IsOK() {
				return s
			}
			if d.strIsKey {
				d.goToFiller(pcExpectColon)
			} else {
				d.afterValueProduced()
			}

		case pcNumber:
			if s := d.stepNumber(dst, src); !s.IsOK() {
				return s
			}
			if d.pc == pcLiteral {
				// "-Infinity": stepNumber handed the rest to stepLiteral.
				continue
			}
			d.afterValueProduced()

		case pcTopLevelTrailer:
			if s := d.stepTrailingNewline(src); !s.IsOK() {
				return s
			}
			d.pc = pcDone

		case pcDone:
			return base.NoteEndOfData

		default:
			return base.ErrBadReceiver
		}
	}
}

// afterValueProduced transitions after any scalar value (string-as-value,
// number, literal) completes: at depth 0 that is the whole document (only
// trailing filler/newline remains); otherwise mark the element and go look
// for a comma or the closing bracket.
func (d *Decoder) afterValueProduced() {
	if d.depth == 0 {
		d.markElementProduced()
		d.goToFiller(pcTopLevelTrailer)
		return
	}
	d.markElementProduced()
	d.goToFiller(pcExpectCommaOrClose)
}
