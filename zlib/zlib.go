// Package zlib decodes the ZLIB wire format (RFC 1950): a two-byte header,
// a raw DEFLATE stream, and an Adler-32 trailer, implemented as a thin
// base.IoTransformer wrapping deflate.Decoder, the same "header, raw
// deflate stream, trailer checksum" shape as the standard library's
// compress/zlib package.
package zlib

import (
	"encoding/binary"

	"github.com/wuffsgo/puffs/base"
	"github.com/wuffsgo/puffs/deflate"
)

const (
	methodDeflate = 8
	flagDict      = 0x20
)

var (
	ErrBadCompressionMethod    = base.NewError("#zlib: bad compression method")
	ErrBadHeaderCheck          = base.NewError("#zlib: header checksum failed")
	ErrUnsupportedPresetDict   = base.NewError("#zlib: preset dictionaries are not supported")
	ErrChecksumMismatch        = base.NewError("#zlib: Adler-32 checksum mismatch")
)

// QuirkIgnoreChecksum, when enabled via SetQuirkEnabled, makes TransformIO
// skip the Adler-32 trailer comparison (it is still parsed and consumed, so
// the stream's end position remains correct).
const QuirkIgnoreChecksum uint32 = 1

type programCounter uint8

const (
	pcHeader programCounter = iota
	pcBody
	pcTrailer
	pcDone
)

const coroTransformIO uint32 = 1

// Decoder implements base.IoTransformer for a ZLIB stream.
type Decoder struct {
	receiver base.Receiver

	inflator deflate.Decoder
	adler    base.Adler32

	ignoreChecksum bool

	pc programCounter

	headerBuf [2]byte
	headerLen int

	trailerBuf [4]byte
	trailerLen int
}

// Initialize prepares d and the embedded DEFLATE coroutine for use.
func (d *Decoder) Initialize(callerVersion, libraryVersion base.Version, flags uint32) base.Status {
	if s := d.receiver.Initialize(callerVersion, libraryVersion, flags); !s.IsOK() {
		return s
	}
	if s := d.inflator.Initialize(callerVersion, libraryVersion, flags); !s.IsOK() {
		return s
	}
	d.adler = *base.NewAdler32()
	d.pc = pcHeader
	return base.OK
}

// WorkbufLen delegates to the embedded DEFLATE decoder, which needs no
// caller-supplied scratch buffer.
func (d *Decoder) WorkbufLen() (min, max uint64) { return d.inflator.WorkbufLen() }

// SetQuirkEnabled supports QuirkIgnoreChecksum; anything else is rejected.
// It reports base.ErrBadCallSequence once TransformIO has consumed input.
func (d *Decoder) SetQuirkEnabled(quirk uint32, on bool) base.Status {
	if s := d.receiver.CheckCall(); !s.IsOK() {
		return s
	}
	if d.pc != pcHeader || d.headerLen != 0 {
		return base.ErrBadCallSequence
	}
	if quirk != QuirkIgnoreChecksum {
		return base.ErrUnsupportedOption
	}
	d.ignoreChecksum = on
	return base.OK
}

// TransformIO decodes ZLIB-wrapped DEFLATE data from src into dst.
func (d *Decoder) TransformIO(dst, src *base.IoBuffer, workbuf []byte) base.Status {
	if s := d.receiver.EnterCoroutine(coroTransformIO); !s.IsOK() {
		return s
	}
	status := d.step(dst, src, workbuf)
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

func (d *Decoder) readByte(src *base.IoBuffer) (byte, base.Status) {
	if s := src.NeedRead(); !s.IsOK() {
		return 0, s
	}
	c := src.Data[src.RI]
	src.RI++
	return c, base.OK
}

func (d *Decoder) step(dst, src *base.IoBuffer, workbuf []byte) base.Status {
	for {
		switch d.pc {
		case pcHeader:
			for d.headerLen < len(d.headerBuf) {
				b, s := d.readByte(src)
				if !s.IsOK() {
					return s
				}
				d.headerBuf[d.headerLen] = b
				d.headerLen++
			}
			cmf, flg := d.headerBuf[0], d.headerBuf[1]
			if cmf&0x0F != methodDeflate {
				return ErrBadCompressionMethod
			}
			if (uint16(cmf)<<8|uint16(flg))%31 != 0 {
				return ErrBadHeaderCheck
			}
			if flg&flagDict != 0 {
				return ErrUnsupportedPresetDict
			}
			d.pc = pcBody

		case pcBody:
			before := dst.WI
			status := d.inflator.TransformIO(dst, src, workbuf)
			if n := dst.WI - before; n > 0 {
				d.adler.UpdateU32(dst.Data[before:dst.WI])
			}
			if status.IsSuspension() {
				return status
			}
			if status != base.NoteEndOfData {
				return status
			}
			d.pc = pcTrailer

		case pcTrailer:
			for d.trailerLen < len(d.trailerBuf) {
				b, s := d.readByte(src)
				if !s.IsOK() {
					return s
				}
				d.trailerBuf[d.trailerLen] = b
				d.trailerLen++
			}
			want := binary.BigEndian.Uint32(d.trailerBuf[:])
			if !d.ignoreChecksum && want != d.adler.Sum32() {
				return ErrChecksumMismatch
			}
			d.pc = pcDone

		case pcDone:
			return base.NoteEndOfData

		default:
			return base.ErrBadReceiver
		}
	}
}
