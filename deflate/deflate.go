// Package deflate decodes RFC 1951 DEFLATE streams as a suspendable
// coroutine over caller-owned buffers. The canonical-Huffman table
// construction and the block/symbol decoding structure are grounded on
// sgzip/internal/flate's inflate.go (itself a fork of the Go standard
// library's compress/flate), restructured from that package's blocking
// io.Reader and indirect step-function dispatch into an explicit,
// resumable program counter driven by base.IoBuffer.
package deflate

import "github.com/wuffsgo/puffs/base"

// RFC 1951 constants.
const (
	maxCodeLen  = 15
	maxNumLit   = 286
	maxNumDist  = 30
	numCodeGens = 19

	endOfBlockSymbol = 256

	huffmanChunkBits  = 9
	huffmanNumChunks  = 1 << huffmanChunkBits
	huffmanValueShift = 4
	huffmanLinkWidth  = 1 << (maxCodeLen - huffmanChunkBits) // 64

	historySize = 1 << 15 // 32768, the largest legal DEFLATE distance.
)

var codeLengthOrder = [numCodeGens]int{16, 17, 18, 0, 8, 7, 9, 6, 10, 5, 11, 4, 12, 3, 13, 2, 14, 1, 15}

// Fatal statuses specific to this package, registered alongside base's
// well-known ones.
var (
	ErrBadBlockType        = base.NewError("#deflate: bad block type")
	ErrBadHuffmanTree      = base.NewError("#deflate: incomplete or over-subscribed Huffman tree")
	ErrBadHuffmanSymbol    = base.NewError("#deflate: no Huffman code matches the bit pattern")
	ErrBadStoredBlockLength = base.NewError("#deflate: stored block length/complement mismatch")
	ErrBadDistance         = base.NewError("#deflate: distance reaches before the start of history")
	ErrBadCodeLengthRepeat = base.NewError("#deflate: code length repeat overruns its table")
)

// huffmanDecoder is a canonical Huffman decode table shaped like zlib's
// (and the Go standard library's) two-level lookup: a fixed-width chunk
// table for codes up to huffmanChunkBits long, with a fixed-size overflow
// table for longer codes in place of a separately allocated one, so that
// rebuilding the table for each dynamic block never touches the heap.
//
// chunk&15 is the code's bit length; chunk>>4 is its value (or, for an
// indirect chunk, the link-table index).
type huffmanDecoder struct {
	min      int
	chunks   [huffmanNumChunks]uint32
	links    [huffmanNumChunks][huffmanLinkWidth]uint32
	linkMask uint32
}

func (h *huffmanDecoder) init(lengths []int) base.Status {
	*h = huffmanDecoder{}

	var count [maxCodeLen + 1]int
	min, max := 0, 0
	for _, n := range lengths {
		if n == 0 {
			continue
		}
		if min == 0 || n < min {
			min = n
		}
		if n > max {
			max = n
		}
		count[n]++
	}
	if max == 0 {
		return base.OK
	}

	code := 0
	var nextCode [maxCodeLen + 1]int
	for i := min; i <= max; i++ {
		code <<= 1
		nextCode[i] = code
		code += count[i]
	}
	// A distance table with exactly one length-1 code is legal (RFC 1951
	// §3.2.7's "one distance code" case) even though it leaves the tree
	// incomplete by the usual code==1<<max test.
	singleCode := code == 1 && max == 1
	if code != 1<<uint(max) && !singleCode {
		return ErrBadHuffmanTree
	}

	h.min = min
	if max > huffmanChunkBits {
		numLinks := 1 << (uint(max) - huffmanChunkBits)
		h.linkMask = uint32(numLinks - 1)

		link := nextCode[huffmanChunkBits+1] >> 1
		for j := uint(link); j < huffmanNumChunks; j++ {
			reverse := int(base.ReverseBits16(uint16(j), huffmanChunkBits))
			off := j - uint(link)
			h.chunks[reverse] = uint32(off<<huffmanValueShift | (huffmanChunkBits + 1))
		}
	}

	for i, n := range lengths {
		if n == 0 {
			continue
		}
		code := nextCode[n]
		nextCode[n]++
		chunk := uint32(i<<huffmanValueShift | n)
		reverse := int(base.ReverseBits16(uint16(code), uint(n)))
		if n <= huffmanChunkBits {
			if singleCode {
				// The only code present is ambiguous between its one real
				// bit pattern and the complementary one a sender could emit
				// instead; both entries must resolve to this symbol.
				for off := 0; off < huffmanNumChunks; off++ {
					h.chunks[off] = chunk
				}
			} else {
				for off := reverse; off < huffmanNumChunks; off += 1 << uint(n) {
					h.chunks[off] = chunk
				}
			}
		} else {
			j := reverse & (huffmanNumChunks - 1)
			value := h.chunks[j] >> huffmanValueShift
			shifted := reverse >> huffmanChunkBits
			for off := shifted; off < huffmanLinkWidth; off += 1 << uint(n-huffmanChunkBits) {
				h.links[value][off] = chunk
			}
		}
	}
	return base.OK
}

// fixedLiteralLengths are the RFC 1951 §3.2.6 fixed Huffman code lengths
// for the literal/length alphabet.
func fixedLiteralLengths() [288]int {
	var lengths [288]int
	for i := 0; i < 144; i++ {
		lengths[i] = 8
	}
	for i := 144; i < 256; i++ {
		lengths[i] = 9
	}
	for i := 256; i < 280; i++ {
		lengths[i] = 7
	}
	for i := 280; i < 288; i++ {
		lengths[i] = 8
	}
	return lengths
}

// programCounter names every point a Decoder's coroutine can be suspended
// and later resumed at. Each case in Decoder.step corresponds to exactly
// one of these; any persistent state a case needs across a suspension
// (a partially filled header, a symbol already decoded but not yet
// followed by its extra bits) lives in a Decoder field rather than a Go
// local variable, since Go locals do not survive a returned suspension.
type programCounter uint8

const (
	pcBlockHeader programCounter = iota
	pcStoredHeader
	pcStoredCopy
	pcDynHeaderCounts
	pcDynHeaderCodeLengths
	pcDynHeaderLengths
	pcDynHeaderLengthsExtra
	pcHuffDecodeSym
	pcHuffWriteLiteral
	pcHuffLength
	pcHuffDistCode
	pcHuffDistExtra
	pcHuffCopy
	pcDone
)

// history is a 32768-byte ring buffer of already-decoded output, used to
// resolve LZ77 back-references. It is separate from the caller's
// destination IoBuffer: output is written directly into the caller's
// buffer as it's produced, and mirrored into history for later back-refs,
// rather than buffered internally and drained by the caller afterward.
type history struct {
	buf  [historySize]byte
	pos  int
	full bool
}

func (h *history) writeByte(c byte) {
	h.buf[h.pos] = c
	h.pos++
	if h.pos == historySize {
		h.pos = 0
		h.full = true
	}
}

func (h *history) size() int {
	if h.full {
		return historySize
	}
	return h.pos
}

// copyByte returns the byte dist positions behind the current write
// position (dist in [1, historySize]).
func (h *history) copyByte(dist int) byte {
	idx := h.pos - dist
	if idx < 0 {
		idx += historySize
	}
	return h.buf[idx]
}

// Decoder implements base.IoTransformer for a raw RFC 1951 DEFLATE stream.
// All decode-time state (bit accumulator, Huffman tables, history window,
// resumption locals) lives in this struct; TransformIO never allocates.
type Decoder struct {
	receiver base.Receiver

	b  uint32 // bit accumulator, low bits first
	nb uint   // number of valid bits in b

	hist history

	fixedLit  huffmanDecoder
	litTable  huffmanDecoder
	distTable huffmanDecoder
	hl, hd    *huffmanDecoder // active tables for the current block; hd == nil means fixed 5-bit distance codes

	pc    programCounter
	final bool

	// Stored-block locals.
	storedHeader    [4]byte
	storedHeaderLen int

	// Dynamic-header locals.
	numLit, numDist, numCodeLens int
	codeLenIdx                   int
	codeLens                     [numCodeGens]int
	litLens                      [maxNumLit + maxNumDist]int
	litLenIdx                    int
	repeatSymbol                 int

	// Huffman-block locals.
	pendingLiteral  byte
	pendingSymbol   int
	pendingDistCode int
	copyLen         int
	copyDist        int
}

const coroTransformIO uint32 = 1

// Initialize prepares d for use, per the version handshake in
// base.Receiver.Initialize.
func (d *Decoder) Initialize(callerVersion, libraryVersion base.Version, flags uint32) base.Status {
	if s := d.receiver.Initialize(callerVersion, libraryVersion, flags); !s.IsOK() {
		return s
	}
	lengths := fixedLiteralLengths()
	d.fixedLit.init(lengths[:])
	d.pc = pcBlockHeader
	return base.OK
}

// WorkbufLen reports that this decoder needs no caller-supplied scratch
// buffer; all scratch state is resident in the Decoder itself.
func (d *Decoder) WorkbufLen() (min, max uint64) { return 0, 0 }

// SetQuirkEnabled always fails: this package defines no quirks of its own.
func (d *Decoder) SetQuirkEnabled(quirk uint32, on bool) base.Status {
	if s := d.receiver.CheckCall(); !s.IsOK() {
		return s
	}
	return base.ErrUnsupportedOption
}

// TransformIO decodes as much of src's readable DEFLATE bytes as dst has
// room for, suspending with SuspensionShortRead or SuspensionShortWrite
// when either buffer runs out, and resuming exactly where it left off on
// the next call with the same Decoder.
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

// fillBits ensures at least n bits are buffered in d.b/d.nb, pulling one
// byte at a time from src. Idempotent and safe to re-invoke across a
// suspension: whatever was accumulated last time is still in d.b/d.nb.
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

// huffSym decodes one symbol from the active table h. Safe to re-invoke
// after a suspension: it commits (advances d.b/d.nb) only once enough
// bits are available to resolve the full code, so a retry after more
// bits have been accumulated can't decode a partial or wrong symbol.
func (d *Decoder) huffSym(src *base.IoBuffer, h *huffmanDecoder) (int, base.Status) {
	n := uint(h.min)
	for {
		if s := d.fillBits(src, n); !s.IsOK() {
			return 0, s
		}
		chunk := h.chunks[d.b&(huffmanNumChunks-1)]
		n = uint(chunk & 15)
		if n > huffmanChunkBits {
			chunk = h.links[chunk>>huffmanValueShift][(d.b>>huffmanChunkBits)&h.linkMask]
			n = uint(chunk & 15)
		}
		if n <= d.nb {
			if n == 0 {
				return 0, ErrBadHuffmanSymbol
			}
			d.takeBits(n)
			return int(chunk >> huffmanValueShift), base.OK
		}
		// The lookup says the code needs n bits but fewer than that are
		// buffered; loop around and let fillBits top up to n, then redo
		// the lookup (chunks/links only grow more precise with more
		// bits, never contradict what a prefix already implied).
	}
}

// step is the coroutine body: a switch over the saved program counter,
// looping until it returns OK, a note, a suspension, or an error.
func (d *Decoder) step(dst, src *base.IoBuffer) base.Status {
	for {
		switch d.pc {
		case pcBlockHeader:
			if s := d.fillBits(src, 3); !s.IsOK() {
				return s
			}
			d.final = d.takeBits(1) == 1
			typ := d.takeBits(2)
			switch typ {
			case 0:
				d.b, d.nb = 0, 0
				d.storedHeaderLen = 0
				d.pc = pcStoredHeader
			case 1:
				d.hl, d.hd = &d.fixedLit, nil
				d.pc = pcHuffDecodeSym
			case 2:
				d.pc = pcDynHeaderCounts
			default:
				return ErrBadBlockType
			}

		case pcStoredHeader:
			for d.storedHeaderLen < 4 {
				if s := src.NeedRead(); !s.IsOK() {
					return s
				}
				d.storedHeader[d.storedHeaderLen] = src.Data[src.RI]
				src.RI++
				d.storedHeaderLen++
			}
			n := int(d.storedHeader[0]) | int(d.storedHeader[1])<<8
			nn := int(d.storedHeader[2]) | int(d.storedHeader[3])<<8
			if uint16(nn) != uint16(^n) {
				return ErrBadStoredBlockLength
			}
			d.copyLen = n
			d.pc = pcStoredCopy

		case pcStoredCopy:
			for d.copyLen > 0 {
				if s := src.NeedRead(); !s.IsOK() {
					return s
				}
				if s := dst.NeedWrite(); !s.IsOK() {
					return s
				}
				c := src.Data[src.RI]
				src.RI++
				dst.Data[dst.WI] = c
				dst.WI++
				d.hist.writeByte(c)
				d.copyLen--
			}
			d.pc = pcBlockHeader
			if status := d.maybeFinish(); !status.IsOK() {
				return status
			}

		case pcDynHeaderCounts:
			if s := d.fillBits(src, 5+5+4); !s.IsOK() {
				return s
			}
			d.numLit = int(d.takeBits(5)) + 257
			d.numDist = int(d.takeBits(5)) + 1
			d.numCodeLens = int(d.takeBits(4)) + 4
			if d.numLit > maxNumLit || d.numDist > maxNumDist {
				return ErrBadHuffmanTree
			}
			d.codeLenIdx = 0
			for i := range d.codeLens {
				d.codeLens[i] = 0
			}
			d.pc = pcDynHeaderCodeLengths

		case pcDynHeaderCodeLengths:
			for d.codeLenIdx < d.numCodeLens {
				if s := d.fillBits(src, 3); !s.IsOK() {
					return s
				}
				d.codeLens[codeLengthOrder[d.codeLenIdx]] = int(d.takeBits(3))
				d.codeLenIdx++
			}
			if s := d.litTable.init(d.codeLens[:]); !s.IsOK() {
				return s
			}
			d.litLenIdx = 0
			d.pc = pcDynHeaderLengths

		case pcDynHeaderLengths:
			total := d.numLit + d.numDist
			if d.litLenIdx >= total {
				if s := d.litTable.init(d.litLens[:d.numLit]); !s.IsOK() {
					return s
				}
				if s := d.distTable.init(d.litLens[d.numLit : d.numLit+d.numDist]); !s.IsOK() {
					return s
				}
				if d.litTable.min < d.litLens[endOfBlockSymbol] {
					d.litTable.min = d.litLens[endOfBlockSymbol]
				}
				d.hl, d.hd = &d.litTable, &d.distTable
				d.pc = pcHuffDecodeSym
				continue
			}
			x, s := d.huffSym(src, &d.litTable)
			if !s.IsOK() {
				return s
			}
			if x < 16 {
				d.litLens[d.litLenIdx] = x
				d.litLenIdx++
				continue
			}
			d.repeatSymbol = x
			d.pc = pcDynHeaderLengthsExtra

		case pcDynHeaderLengthsExtra:
			var rep int
			var nb uint
			var fill int
			switch d.repeatSymbol {
			case 16:
				rep, nb = 3, 2
				if d.litLenIdx == 0 {
					return ErrBadCodeLengthRepeat
				}
				fill = d.litLens[d.litLenIdx-1]
			case 17:
				rep, nb = 3, 3
			case 18:
				rep, nb = 11, 7
			default:
				return ErrBadCodeLengthRepeat
			}
			if s := d.fillBits(src, nb); !s.IsOK() {
				return s
			}
			rep += int(d.takeBits(nb))
			if d.litLenIdx+rep > d.numLit+d.numDist {
				return ErrBadCodeLengthRepeat
			}
			for i := 0; i < rep; i++ {
				d.litLens[d.litLenIdx] = fill
				d.litLenIdx++
			}
			d.pc = pcDynHeaderLengths

		case pcHuffDecodeSym:
			v, s := d.huffSym(src, d.hl)
			if !s.IsOK() {
				return s
			}
			switch {
			case v < 256:
				d.pendingLiteral = byte(v)
				d.pc = pcHuffWriteLiteral
			case v == endOfBlockSymbol:
				d.pc = pcBlockHeader
				if status := d.maybeFinish(); !status.IsOK() {
					return status
				}
			default:
				d.pendingSymbol = v
				d.pc = pcHuffLength
			}

		case pcHuffWriteLiteral:
			if s := dst.NeedWrite(); !s.IsOK() {
				return s
			}
			dst.Data[dst.WI] = d.pendingLiteral
			dst.WI++
			d.hist.writeByte(d.pendingLiteral)
			d.pc = pcHuffDecodeSym

		case pcHuffLength:
			length, n, ok := lengthExtra(d.pendingSymbol)
			if !ok {
				return ErrBadHuffmanSymbol
			}
			if n > 0 {
				if s := d.fillBits(src, n); !s.IsOK() {
					return s
				}
				length += int(d.takeBits(n))
			}
			d.copyLen = length
			d.pc = pcHuffDistCode

		case pcHuffDistCode:
			if d.hd == nil {
				if s := d.fillBits(src, 5); !s.IsOK() {
					return s
				}
				d.pendingDistCode = int(base.ReverseBits16(uint16(d.takeBits(5)), 5))
			} else {
				code, s := d.huffSym(src, d.hd)
				if !s.IsOK() {
					return s
				}
				d.pendingDistCode = code
			}
			d.pc = pcHuffDistExtra

		case pcHuffDistExtra:
			dist, n, ok := distExtra(d.pendingDistCode)
			if !ok {
				return ErrBadDistance
			}
			if n > 0 {
				if s := d.fillBits(src, n); !s.IsOK() {
					return s
				}
				dist += int(d.takeBits(n))
			}
			if dist > d.hist.size() {
				return ErrBadDistance
			}
			d.copyDist = dist
			d.pc = pcHuffCopy

		case pcHuffCopy:
			for d.copyLen > 0 {
				if s := dst.NeedWrite(); !s.IsOK() {
					return s
				}
				c := d.hist.copyByte(d.copyDist)
				dst.Data[dst.WI] = c
				dst.WI++
				d.hist.writeByte(c)
				d.copyLen--
			}
			d.pc = pcHuffDecodeSym

		case pcDone:
			return base.NoteEndOfData

		default:
			return base.ErrBadReceiver
		}
	}
}

// maybeFinish transitions to pcDone and returns the completion note once
// the final block's end-of-block marker has been processed; otherwise it
// leaves pc at pcBlockHeader (already set by the caller) and returns OK to
// keep the loop in step running.
func (d *Decoder) maybeFinish() base.Status {
	if d.final {
		d.pc = pcDone
		return base.NoteEndOfData
	}
	return base.OK
}

// lengthExtra maps a literal/length symbol (257..285) to its base length
// and number of extra bits, per RFC 1951 §3.2.5's table.
func lengthExtra(sym int) (length int, extraBits uint, ok bool) {
	switch {
	case sym < 257:
		return 0, 0, false
	case sym < 265:
		return sym - (257 - 3), 0, true
	case sym < 269:
		return sym*2 - (265*2 - 11), 1, true
	case sym < 273:
		return sym*4 - (269*4 - 19), 2, true
	case sym < 277:
		return sym*8 - (273*8 - 35), 3, true
	case sym < 281:
		return sym*16 - (277*16 - 67), 4, true
	case sym < 285:
		return sym*32 - (281*32 - 131), 5, true
	case sym == 285:
		return 258, 0, true
	default:
		return 0, 0, false
	}
}

// distExtra maps a distance code (0..29) to its base distance and number
// of extra bits, per RFC 1951 §3.2.5's table.
func distExtra(code int) (dist int, extraBits uint, ok bool) {
	switch {
	case code < 0:
		return 0, 0, false
	case code < 4:
		return code + 1, 0, true
	case code < maxNumDist:
		nb := uint(code-2) >> 1
		distBase := 1<<(nb+1) + 1
		extra := (code & 1) << nb
		return distBase + extra, nb, true
	default:
		return 0, 0, false
	}
}
