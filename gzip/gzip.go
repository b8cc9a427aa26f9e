// Package gzip decodes the GZIP wire format (RFC 1952): a variable-length
// header (optional extra field, name, comment, and header CRC16), a raw
// DEFLATE stream, and an 8-byte trailer (CRC-32 then ISIZE), implemented as
// a thin base.IoTransformer wrapping deflate.Decoder. The exposed Header
// fields (ModTime, XFL, OS, Name, Comment) follow the standard library's
// compress/gzip Header, except that the extra field is read and discarded
// rather than kept, and the "embed a flate decompressor, track a
// checksum, check it against the trailer" shape matches compress/gzip.Reader
// wrapping flate.Reader.
package gzip

import (
	"encoding/binary"

	"github.com/wuffsgo/puffs/base"
	"github.com/wuffsgo/puffs/deflate"
)

const (
	id1, id2      = 0x1f, 0x8b
	methodDeflate = 8

	flagText    = 0x01
	flagHCRC    = 0x02
	flagExtra   = 0x04
	flagName    = 0x08
	flagComment = 0x10
	flagReserved = 0xE0
)

var (
	ErrBadMagic               = base.NewError("#gzip: bad magic number")
	ErrBadCompressionMethod   = base.NewError("#gzip: bad compression method")
	ErrReservedFlagBits       = base.NewError("#gzip: reserved header flag bits set")
	ErrHeaderChecksumMismatch = base.NewError("#gzip: header CRC-16 mismatch")
	ErrChecksumMismatch       = base.NewError("#gzip: CRC-32 checksum mismatch")
	ErrSizeMismatch           = base.NewError("#gzip: ISIZE mismatch")
)

// QuirkIgnoreChecksum, when enabled via SetQuirkEnabled, makes TransformIO
// skip the header CRC-16 and body CRC-32/ISIZE comparisons. The fields are
// still parsed and consumed so the stream's end position stays correct.
const QuirkIgnoreChecksum uint32 = 1

// Header carries the metadata fields GZIP stores alongside the compressed
// payload. It is populated once the fixed header and all optional fields
// have been read, before the first byte of decompressed output exists.
type Header struct {
	ModTime uint32 // seconds since the Unix epoch, per RFC 1952 §2.3.1
	XFL     byte
	OS      byte
	Name    string
	Comment string
}

type programCounter uint8

const (
	pcFixedHeader programCounter = iota
	pcExtraLen
	pcExtraData
	pcName
	pcComment
	pcHCRC
	pcBody
	pcTrailer
	pcDone
)

const coroTransformIO uint32 = 1

// Decoder implements base.IoTransformer for a single GZIP member. Trailing
// bytes after the first member's trailer (as RFC 1952 allows for
// concatenated streams) are left unread in src.
type Decoder struct {
	receiver base.Receiver

	inflator  deflate.Decoder
	crc       base.CRC32 // over decompressed bytes, checked against the trailer
	headerCRC base.CRC32 // over header bytes, checked against FHCRC

	ignoreChecksum bool

	Header Header
	size   uint32 // decompressed byte count mod 2^32, i.e. ISIZE

	pc programCounter
	flg byte

	fixedBuf [10]byte
	fixedLen int

	extraLenBuf [2]byte
	extraLenLen int
	extraRemaining int

	nameBuf    []byte
	commentBuf []byte

	hcrcBuf [2]byte
	hcrcLen int

	trailerBuf [8]byte
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
	d.pc = pcFixedHeader
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
	if d.pc != pcFixedHeader || d.fixedLen != 0 {
		return base.ErrBadCallSequence
	}
	if quirk != QuirkIgnoreChecksum {
		return base.ErrUnsupportedOption
	}
	d.ignoreChecksum = on
	return base.OK
}

// TransformIO decodes a GZIP member from src into dst.
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
		case pcFixedHeader:
			for d.fixedLen < len(d.fixedBuf) {
				b, s := d.readByte(src)
				if !s.IsOK() {
					return s
				}
				d.fixedBuf[d.fixedLen] = b
				d.fixedLen++
			}
			if d.fixedBuf[0] != id1 || d.fixedBuf[1] != id2 {
				return ErrBadMagic
			}
			if d.fixedBuf[2] != methodDeflate {
				return ErrBadCompressionMethod
			}
			d.flg = d.fixedBuf[3]
			if d.flg&flagReserved != 0 {
				return ErrReservedFlagBits
			}
			d.Header.ModTime = binary.LittleEndian.Uint32(d.fixedBuf[4:8])
			d.Header.XFL = d.fixedBuf[8]
			d.Header.OS = d.fixedBuf[9]
			d.headerCRC.UpdateU32(d.fixedBuf[:])

			switch {
			case d.flg&flagExtra != 0:
				d.pc = pcExtraLen
			case d.flg&flagName != 0:
				d.pc = pcName
			case d.flg&flagComment != 0:
				d.pc = pcComment
			case d.flg&flagHCRC != 0:
				d.pc = pcHCRC
			default:
				d.pc = pcBody
			}

		case pcExtraLen:
			for d.extraLenLen < len(d.extraLenBuf) {
				b, s := d.readByte(src)
				if !s.IsOK() {
					return s
				}
				d.extraLenBuf[d.extraLenLen] = b
				d.extraLenLen++
			}
			d.headerCRC.UpdateU32(d.extraLenBuf[:])
			d.extraRemaining = int(binary.LittleEndian.Uint16(d.extraLenBuf[:]))
			d.pc = pcExtraData

		case pcExtraData:
			// The extra field's contents aren't exposed (nothing in this
			// module consumes per-subfield FEXTRA data), but every byte
			// still has to be read, past, and folded into the header CRC.
			for d.extraRemaining > 0 {
				b, s := d.readByte(src)
				if !s.IsOK() {
					return s
				}
				d.headerCRC.UpdateU32([]byte{b})
				d.extraRemaining--
			}
			switch {
			case d.flg&flagName != 0:
				d.pc = pcName
			case d.flg&flagComment != 0:
				d.pc = pcComment
			case d.flg&flagHCRC != 0:
				d.pc = pcHCRC
			default:
				d.pc = pcBody
			}

		case pcName:
			for {
				b, s := d.readByte(src)
				if !s.IsOK() {
					return s
				}
				d.headerCRC.UpdateU32([]byte{b})
				if b == 0 {
					break
				}
				d.nameBuf = append(d.nameBuf, b)
			}
			d.Header.Name = string(d.nameBuf)
			switch {
			case d.flg&flagComment != 0:
				d.pc = pcComment
			case d.flg&flagHCRC != 0:
				d.pc = pcHCRC
			default:
				d.pc = pcBody
			}

		case pcComment:
			for {
				b, s := d.readByte(src)
				if !s.IsOK() {
					return s
				}
				d.headerCRC.UpdateU32([]byte{b})
				if b == 0 {
					break
				}
				d.commentBuf = append(d.commentBuf, b)
			}
			d.Header.Comment = string(d.commentBuf)
			if d.flg&flagHCRC != 0 {
				d.pc = pcHCRC
			} else {
				d.pc = pcBody
			}

		case pcHCRC:
			for d.hcrcLen < len(d.hcrcBuf) {
				b, s := d.readByte(src)
				if !s.IsOK() {
					return s
				}
				d.hcrcBuf[d.hcrcLen] = b
				d.hcrcLen++
			}
			want := binary.LittleEndian.Uint16(d.hcrcBuf[:])
			got := uint16(d.headerCRC.Sum32())
			if !d.ignoreChecksum && want != got {
				return ErrHeaderChecksumMismatch
			}
			d.pc = pcBody

		case pcBody:
			before := dst.WI
			status := d.inflator.TransformIO(dst, src, workbuf)
			if n := dst.WI - before; n > 0 {
				d.crc.UpdateU32(dst.Data[before:dst.WI])
				d.size += uint32(n)
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
			wantCRC := binary.LittleEndian.Uint32(d.trailerBuf[0:4])
			wantSize := binary.LittleEndian.Uint32(d.trailerBuf[4:8])
			if !d.ignoreChecksum {
				if wantCRC != d.crc.Sum32() {
					return ErrChecksumMismatch
				}
				if wantSize != d.size {
					return ErrSizeMismatch
				}
			}
			d.pc = pcDone

		case pcDone:
			return base.NoteEndOfData

		default:
			return base.ErrBadReceiver
		}
	}
}
