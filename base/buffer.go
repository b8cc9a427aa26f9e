package base

// IoBuffer is a byte slice plus cursor metadata, shared by every
// IoTransformer/ImageDecoder/TokenDecoder in this repository as both the
// source and destination of a step call. Per spec.md §3: ri <= wi <= len.
// The readable region is [ri, wi); the writable region is [wi, len). Pos is
// the stream position of Data[0], so Pos+RI is the absolute offset of the
// next unread byte.
//
// IoBuffer is caller-owned: decoders never allocate or retain it beyond a
// single step call, and the caller may compact, grow, or swap the backing
// Data between calls as long as the not-yet-read bytes and Pos stay
// consistent (spec.md §5).
type IoBuffer struct {
	Data   []byte
	RI, WI int
	Pos    uint64
	Closed bool
}

// Readable returns the currently unread bytes, [ri, wi).
func (b *IoBuffer) Readable() []byte { return b.Data[b.RI:b.WI] }

// Writable returns the currently unwritten capacity, [wi, len(Data)).
func (b *IoBuffer) Writable() []byte { return b.Data[b.WI:] }

// MarkRead advances ri by n, the mirror of a coroutine's "iop" local
// advancing past consumed bytes.
func (b *IoBuffer) MarkRead(n int) { b.RI += n }

// MarkWritten advances wi by n.
func (b *IoBuffer) MarkWritten(n int) { b.WI += n }

// Position returns the absolute stream offset of the next byte to be read.
func (b *IoBuffer) Position() uint64 { return b.Pos + uint64(b.RI) }

// WritePosition returns the absolute stream offset of the next byte to be
// written.
func (b *IoBuffer) WritePosition() uint64 { return b.Pos + uint64(b.WI) }

// Compact moves [ri, wi) to the start of Data, adjusts Pos by the old ri,
// and resets ri to 0. Callers do this between suspended calls to reclaim
// room for more input/output.
func (b *IoBuffer) Compact() {
	n := copy(b.Data, b.Data[b.RI:b.WI])
	b.Pos += uint64(b.RI)
	b.RI = 0
	b.WI = n
}

// Reset clears the buffer to empty, preserving the backing array.
func (b *IoBuffer) Reset() {
	b.RI, b.WI, b.Pos, b.Closed = 0, 0, 0, false
}

// NeedRead reports whether the reader side can make progress: OK if there is
// at least one readable byte, the fatal ErrNotEnoughData if the stream is
// closed and empty, or SuspensionShortRead if the caller should refill and
// retry.
func (b *IoBuffer) NeedRead() Status {
	if b.RI < b.WI {
		return OK
	}
	if b.Closed {
		return ErrNotEnoughData
	}
	return SuspensionShortRead
}

// NeedWrite reports whether the writer side can make progress: OK if there
// is at least one byte of free capacity, else SuspensionShortWrite. If the
// buffer is closed (no more bytes will ever be appended by the caller, which
// only makes sense for a reader-role buffer, but writer-role buffers built
// atop a closed destination behave the same way per spec.md §4.2) the
// writable region collapses to empty so every further write suspends too.
func (b *IoBuffer) NeedWrite() Status {
	hi := len(b.Data)
	if b.Closed {
		hi = b.WI
	}
	if b.WI < hi {
		return OK
	}
	return SuspensionShortWrite
}

// LimitedCopy copies up to n bytes from src's readable region into dst's
// writable region, returning the actual count copied (bounded by whichever
// side runs out first). Used by DEFLATE stored blocks and LZW passthrough.
func LimitedCopy(dst, src *IoBuffer, n int) int {
	avail := Min(n, Min(src.WI-src.RI, len(dst.Data)-dst.WI))
	if avail <= 0 {
		return 0
	}
	copy(dst.Data[dst.WI:dst.WI+avail], src.Data[src.RI:src.RI+avail])
	src.RI += avail
	dst.WI += avail
	return avail
}

// LimitedCopyFromHistory implements the LZ77 back-reference primitive: copy
// n bytes located dist bytes behind the writer's current position forward to
// the current position, replicating on overlap ("ab" with dist=1, n=3
// yields "abbbb") — i.e. it behaves as if done one byte at a time. startBound is the lowest index this call may ever
// read from (the "io1" of spec.md §4.2: never read before it). Returns the
// actual number of bytes copied, bounded by the writer's free capacity.
func LimitedCopyFromHistory(dst *IoBuffer, startBound, dist, n int) (int, Status) {
	if dist <= 0 || dst.WI-dist < startBound {
		return 0, ErrOutOfBounds
	}
	avail := Min(n, len(dst.Data)-dst.WI)
	for i := 0; i < avail; i++ {
		dst.Data[dst.WI+i] = dst.Data[dst.WI+i-dist]
	}
	dst.WI += avail
	return avail, OK
}

// Match7 tests the first length (0..7) bytes of src's readable region
// against the low length bytes of the little-endian packed word in encoded
// (one byte per 8 bits, low byte first; see PackMatch7). It consumes
// nothing. Returns (true, OK) on a match; (false, OK) on a mismatch, or when
// src is closed with fewer than length bytes left; (false,
// SuspensionShortRead) when src is open with fewer than length bytes
// buffered; and (false, ErrBadArgument) when length is outside 0..7.
func Match7(src *IoBuffer, encoded uint64, length int) (ok bool, status Status) {
	if length < 0 || length > 7 {
		return false, ErrBadArgument
	}
	readable := src.Readable()
	if len(readable) < length {
		if src.Closed {
			return false, OK // not enough bytes ever coming: definite mismatch
		}
		return false, SuspensionShortRead
	}
	for i := 0; i < length; i++ {
		want := byte(encoded >> (8 * uint(i)))
		if readable[i] != want {
			return false, OK
		}
	}
	return true, OK
}

// PackMatch7 packs up to 7 ASCII bytes of s into the little-endian word
// Match7 expects.
func PackMatch7(s string) uint64 {
	var v uint64
	for i := 0; i < len(s) && i < 7; i++ {
		v |= uint64(s[i]) << (8 * uint(i))
	}
	return v
}
