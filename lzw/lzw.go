// Package lzw decodes GIF-style LZW streams (LSB-first bit packing,
// variable-width codes, clear/end control codes) as a suspendable
// coroutine over caller-owned buffers.
//
// The dictionary-reconstruction algorithm (prefix/suffix chains, the
// "code == the code about to be assigned" KwKwK special case, width growth
// on dictionary overflow) is grounded on
// other_examples/b367ab19_seehuhn-go-pdf__lzw-reader.go.go, itself derived
// from the Go standard library's compress/lzw. That reference decodes
// MSB-first PDF-style streams blocking on an io.ByteReader; this package
// instead packs bits LSB-first (GIF's convention, RFC-less but documented
// in the GIF89a spec) and is restructured, like the deflate package, from
// a blocking Read loop into an explicit resumable program counter over
// base.IoBuffer.
package lzw

import "github.com/wuffsgo/puffs/base"

const (
	minLiteralWidth = 2
	maxLiteralWidth = 8
	maxCodeWidth    = 12
	maxTableEntries = 1 << maxCodeWidth // 4096

	invalidCode = -1
)

var (
	ErrBadLiteralWidth = base.NewError("#lzw: literal width out of range")
	ErrBadCode         = base.NewError("#lzw: code references a dictionary entry that doesn't exist yet")
	ErrCodeAfterEnd    = base.NewError("#lzw: code follows the end-of-data code")
)

type programCounter uint8

const (
	pcReadCode programCounter = iota
	pcEmit
	pcDone
)

// Decoder implements base.IoTransformer for a raw LZW bitstream. All
// dictionary and bit-accumulator state lives in the struct; TransformIO
// never allocates.
type Decoder struct {
	receiver base.Receiver

	literalWidth int
	clearCode    int
	endCode      int

	b  uint32
	nb uint

	width    uint
	nextCode int
	prevCode int

	// Dictionary: a graph of prefix pointers, never real pointers, so the
	// whole structure is plain data and bounds-checkable by construction
	// (new entries only ever point to strictly older ones, so it can't
	// cycle). prefixOf[c] is the code for all but the last byte of code
	// c's expansion; suffixOf[c] is that last byte.
	prefixOf [maxTableEntries]int32
	suffixOf [maxTableEntries]byte

	// pending holds the most recently decoded code's expansion, built by
	// walking the prefix chain back to front into the tail of the array
	// and then read forward from pendingStart. pendingPos tracks how much
	// of it has already been copied to the caller's destination, so a
	// short write can resume mid-expansion without redoing the chain
	// walk.
	pending      [maxTableEntries + 1]byte
	pendingStart int
	pendingPos   int

	pc programCounter
}

const coroTransformIO uint32 = 1

// Initialize prepares d to decode a stream whose literal codes are
// literalWidth bits wide (2..8, per the GIF convention).
func (d *Decoder) Initialize(callerVersion, libraryVersion base.Version, flags uint32, literalWidth int) base.Status {
	if s := d.receiver.Initialize(callerVersion, libraryVersion, flags); !s.IsOK() {
		return s
	}
	if literalWidth < minLiteralWidth || literalWidth > maxLiteralWidth {
		return ErrBadLiteralWidth
	}
	d.literalWidth = literalWidth
	d.clearCode = 1 << literalWidth
	d.endCode = d.clearCode + 1
	d.resetTable()
	d.pc = pcReadCode
	return base.OK
}

func (d *Decoder) resetTable() {
	d.width = uint(d.literalWidth + 1)
	d.nextCode = d.endCode + 1
	d.prevCode = invalidCode
}

// WorkbufLen reports that this decoder needs no caller-supplied scratch
// buffer.
func (d *Decoder) WorkbufLen() (min, max uint64) { return 0, 0 }

// SetQuirkEnabled always fails: this package defines no quirks of its own.
func (d *Decoder) SetQuirkEnabled(quirk uint32, on bool) base.Status {
	if s := d.receiver.CheckCall(); !s.IsOK() {
		return s
	}
	return base.ErrUnsupportedOption
}

// TransformIO decodes as much of src's readable LZW-coded bytes as dst has
// room for, suspending and resuming exactly like deflate.Decoder.
func (d *Decoder) TransformIO(dst, src *base.IoBuffer, workbuf []byte) base.Status {
	if s := d.receiver.EnterCoroutine(coroTransformIO); !s.IsOK() {
		return s
	}
	status := d.step(dst, src)
	if status.IsSuspension() {
		d.receiver.Suspend(coroTransformIO)
	} else {
		d.receiver.Complete()
		if status.IsError() {
			d.receiver.Disable()
		}
	}
	return status
}

func (d *Decoder) fillBits(src *base.IoBuffer, n uint) base.Status {
	for d.nb < n {
		if s := src.NeedRead(); !s.IsOK() {
			return s
		}
		c := src.Data[src.RI]
		src.RI++
		d.b |= uint32(c) << d.nb
		d.nb += 8
	}
	return base.OK
}

func (d *Decoder) takeBits(n uint) uint32 {
	v := d.b & (1<<n - 1)
	d.b >>= n
	d.nb -= n
	return v
}

func (d *Decoder) step(dst, src *base.IoBuffer) base.Status {
	for {
		switch d.pc {
		case pcReadCode:
			if s := d.fillBits(src, d.width); !s.IsOK() {
				return s
			}
			code := int(d.takeBits(d.width))

			switch {
			case code == d.clearCode:
				d.resetTable()
				continue
			case code == d.endCode:
				d.pc = pcDone
				continue
			}

			if status := d.expand(code); !status.IsOK() {
				return status
			}
			d.pendingPos = 0
			d.pc = pcEmit

		case pcEmit:
			for d.pendingPos < len(d.pending)-d.pendingStart {
				if s := dst.NeedWrite(); !s.IsOK() {
					return s
				}
				dst.Data[dst.WI] = d.pending[d.pendingStart+d.pendingPos]
				dst.WI++
				d.pendingPos++
			}
			d.pc = pcReadCode

		case pcDone:
			return base.NoteEndOfData

		default:
			return base.ErrBadReceiver
		}
	}
}

// expand decodes code into d.pending[d.pendingStart:], adds a new
// dictionary entry derived from (prevCode, firstByteOfExpansion), and
// advances prevCode/nextCode/width, mirroring the reference decoder's
// "case code <= r.hi" branch including its code == hi (KwKwK) special
// case.
func (d *Decoder) expand(code int) base.Status {
	switch {
	case code < d.clearCode:
		// Literal code: a one-byte expansion.
		d.pendingStart = len(d.pending) - 1
		d.pending[d.pendingStart] = byte(code)

	case code == d.nextCode && d.prevCode != invalidCode:
		// KwKwK: the code about to be assigned refers to prevCode's
		// expansion followed by its own first byte.
		i := len(d.pending) - 1
		i = d.writeChain(d.prevCode, i)
		first := d.firstByte(d.prevCode)
		d.pending[i] = first
		d.pendingStart = i

	case code < d.nextCode:
		i := len(d.pending) - 1
		d.pendingStart = d.writeChain(code, i)

	default:
		return ErrBadCode
	}

	if d.prevCode != invalidCode && d.nextCode < maxTableEntries {
		d.prefixOf[d.nextCode] = int32(d.prevCode)
		d.suffixOf[d.nextCode] = d.pending[d.pendingStart]
		d.nextCode++
		if d.nextCode == 1<<d.width && d.width < maxCodeWidth {
			d.width++
		}
	}
	d.prevCode = code
	return base.OK
}

// writeChain walks code's prefix chain back to a literal, writing suffix
// bytes right-to-left starting at index i (inclusive, working downward),
// and returns the index of the first byte written (the new start of the
// in-progress expansion).
func (d *Decoder) writeChain(code, i int) int {
	for code >= d.clearCode+2 {
		d.pending[i] = d.suffixOf[code]
		i--
		code = int(d.prefixOf[code])
	}
	d.pending[i] = byte(code)
	return i
}

// firstByte returns the first byte of code's expansion without writing
// anything, by walking the same chain writeChain would.
func (d *Decoder) firstByte(code int) byte {
	for code >= d.clearCode+2 {
		code = int(d.prefixOf[code])
	}
	return byte(code)
}
