// Package wbmp decodes Wireless Bitmap (WBMP) streams, implementing
// pixel.ImageDecoder. It is grounded on bmp.go's header-then-rows shape,
// trimmed down to WBMP's much smaller format: a type byte, a fixed header
// byte, two continuation-encoded length fields, and uncompressed 1-bit rows.
// There is no palette, no color masks, and no embedded-payload redirect to
// track.
package wbmp

import (
	"github.com/wuffsgo/puffs/base"
	"github.com/wuffsgo/puffs/pixel"
)

const (
	// typeFieldBasic is the only WBMP type this package understands: an
	// uncompressed, single-bit-per-pixel bitmap with no extended header
	// fields. Every WBMP file actually seen in the wild uses this type.
	typeFieldBasic = 0

	maxSideLen = 1 << 16 // same practical cap bmp.go uses for its row scratch

	maxLengthFieldBytes = 5 // 5*7 = 35 bits is already enough to exceed the 32-bit cap
)

var (
	ErrUnsupportedType = base.NewError("#wbmp: unsupported type field")
	ErrBadFixHeader    = base.NewError("#wbmp: unsupported fix header field")
	ErrBadDimensions   = base.NewError("#wbmp: width or height is zero")
	ErrTooWide         = base.NewError("#wbmp: width or height exceeds the maximum supported")
	ErrLengthOverflow  = base.NewError("#wbmp: length field exceeds 32 bits")
	ErrBadRestart      = base.NewError("#wbmp: restart_frame index out of range")
	ErrNoMetadata      = base.NewError("#wbmp: tell_me_more called with nothing pending")
)

type programCounter uint8

const (
	pcTypeField programCounter = iota
	pcFixHeader
	pcWidth
	pcHeight
	pcFrameReady // decode_frame_config returns here; decode_frame resumes from it
	pcRowBytes
	pcAfterFrame
	pcDone
)

const coroDecodeImageConfig uint32 = 1
const coroDecodeFrameConfig uint32 = 2
const coroDecodeFrame uint32 = 3

// Decoder implements pixel.ImageDecoder for a single WBMP stream. Like BMP,
// WBMP has exactly one image and no animation, disposal, or interlacing.
type Decoder struct {
	receiver base.Receiver

	pc programCounter

	typeField byte
	fixHeader byte

	// lenAccum holds the continuation-encoded value currently being
	// assembled for whichever of width/height is being read; it lives on
	// the decoder so a suspension mid-field resumes exactly where it left
	// off, the same way bmp.go's bufLen does for its fixed-size reads.
	lenAccum uint64

	width, height uint32

	rowStride   int // bytes per row: ceil(width/8)
	rowBuf      [(maxSideLen + 7) / 8]byte
	rowFilled   int
	grayBuf     [maxSideLen]byte // unpacked one-byte-per-pixel samples, 0x00 or 0xff
	rowsDecoded uint32

	rowSwizzler *pixel.Swizzler

	dirtyRect              base.Rect
	numDecodedFrameConfigs uint64
	numDecodedFrames       uint64
}

// Initialize prepares d for use.
func (d *Decoder) Initialize(callerVersion, libraryVersion base.Version, flags uint32) base.Status {
	if s := d.receiver.Initialize(callerVersion, libraryVersion, flags); !s.IsOK() {
		return s
	}
	d.pc = pcTypeField
	return base.OK
}

// WorkbufLen reports that decode_frame needs no scratch space: WBMP has no
// disposal or interlacing to stage through a caller-provided buffer.
func (d *Decoder) WorkbufLen() (min, max uint64) { return 0, 0 }

// SetQuirkEnabled accepts no quirks: spec.md's quirk set is specific to GIF.
func (d *Decoder) SetQuirkEnabled(quirk uint32, on bool) base.Status {
	if s := d.receiver.CheckCall(); !s.IsOK() {
		return s
	}
	if quirk != 0 {
		return base.ErrUnsupportedOption
	}
	return base.OK
}

// SetReportMetadata is a no-op: a WBMP stream carries no metadata chunks and
// no embedded-payload redirect for TellMeMore to ever stream out.
func (d *Decoder) SetReportMetadata(fourcc base.FourCC, on bool) base.Status {
	if s := d.receiver.CheckCall(); !s.IsOK() {
		return s
	}
	return base.OK
}

func (d *Decoder) readByte(src *base.IoBuffer) (byte, base.Status) {
	if s := src.NeedRead(); !s.IsOK() {
		return 0, s
	}
	c := src.Data[src.RI]
	src.RI++
	return c, base.OK
}

func (d *Decoder) readFixed(src *base.IoBuffer, buf []byte, filled *int) base.Status {
	for *filled < len(buf) {
		b, s := d.readByte(src)
		if !s.IsOK() {
			return s
		}
		buf[*filled] = b
		*filled++
	}
	return base.OK
}

// readLengthField accumulates a 7-bit continuation-encoded integer into
// d.lenAccum, one byte per call into this loop, resumable across
// suspensions since the accumulator is a decoder field rather than a local.
// Each byte contributes its low 7 bits to the value; the high bit set means
// another byte follows. The spec caps the result at 32 bits, so this rejects
// a field before the accumulator itself could ever overflow.
func (d *Decoder) readLengthField(src *base.IoBuffer) (uint32, base.Status) {
	for {
		b, s := d.readByte(src)
		if !s.IsOK() {
			return 0, s
		}
		d.lenAccum = d.lenAccum<<7 | uint64(b&0x7f)
		if d.lenAccum > 0xffffffff {
			return 0, ErrLengthOverflow
		}
		if b&0x80 == 0 {
			break
		}
	}
	v := uint32(d.lenAccum)
	d.lenAccum = 0
	return v, base.OK
}

// DecodeImageConfig parses the type field, fix header, and width/height
// fields, reporting the bitmap's dimensions and its native one-bit-unpacked
// gray pixel format.
func (d *Decoder) DecodeImageConfig(dstCfg *pixel.Config, src *base.IoBuffer) base.Status {
	if s := d.receiver.EnterCoroutine(coroDecodeImageConfig); !s.IsOK() {
		return s
	}
	status := d.stepImageConfig(src)
	if status.IsSuspension() {
		d.receiver.Suspend(coroDecodeImageConfig)
	} else {
		d.receiver.Complete()
		if status.IsError() {
			d.receiver.Disable()
		} else if status.IsOK() && dstCfg != nil {
			dstCfg.Width = d.width
			dstCfg.Height = d.height
			dstCfg.Format = pixel.FormatGray8
		}
	}
	return status
}

func (d *Decoder) stepImageConfig(src *base.IoBuffer) base.Status {
	for {
		switch d.pc {
		case pcTypeField:
			b, s := d.readByte(src)
			if !s.IsOK() {
				return s
			}
			d.typeField = b
			if d.typeField != typeFieldBasic {
				return ErrUnsupportedType
			}
			d.pc = pcFixHeader

		case pcFixHeader:
			b, s := d.readByte(src)
			if !s.IsOK() {
				return s
			}
			d.fixHeader = b
			if d.fixHeader != 0 {
				return ErrBadFixHeader
			}
			d.pc = pcWidth

		case pcWidth:
			v, s := d.readLengthField(src)
			if !s.IsOK() {
				return s
			}
			if v == 0 {
				return ErrBadDimensions
			}
			if v > maxSideLen {
				return ErrTooWide
			}
			d.width = v
			d.pc = pcHeight

		case pcHeight:
			v, s := d.readLengthField(src)
			if !s.IsOK() {
				return s
			}
			if v == 0 {
				return ErrBadDimensions
			}
			if v > maxSideLen {
				return ErrTooWide
			}
			d.height = v
			d.rowStride = (int(d.width) + 7) / 8
			d.pc = pcFrameReady

		case pcFrameReady:
			return base.OK

		default:
			return base.ErrBadReceiver
		}
	}
}

// DecodeFrameConfig reports WBMP's single implicit frame: the whole bitmap,
// with no timing, no disposal, and SRC blending since there is never a
// previous frame to composite over. Calls made before DecodeFrame has
// finished the frame report the same config again; calls after that report
// NoteEndOfData.
func (d *Decoder) DecodeFrameConfig(dstCfg *pixel.FrameConfig, src *base.IoBuffer) base.Status {
	if s := d.receiver.CheckCall(); !s.IsOK() {
		return s
	}
	switch d.pc {
	case pcFrameReady:
		d.numDecodedFrameConfigs++
		if dstCfg != nil {
			*dstCfg = pixel.FrameConfig{
				Bounds:     base.NewRect(0, 0, int32(d.width), int32(d.height)),
				Index:      0,
				IOPosition: src.Position(),
				Disposal:   pixel.DisposalNone,
				Blend:      pixel.BlendSrc,
			}
		}
		return base.OK
	case pcAfterFrame, pcDone:
		return base.NoteEndOfData
	default:
		return base.ErrBadCallSequence
	}
}

// DecodeFrame decodes the bitmap's pixel data, one row at a time, into dst.
// Rows are stored top-to-bottom, MSB-first within each byte, each row padded
// to a whole byte; there is no bottom-up/top-down ambiguity like BMP's.
func (d *Decoder) DecodeFrame(dst *pixel.Buffer, src *base.IoBuffer, blend pixel.Blend, workbuf []byte, opts *pixel.DecodeOptions) base.Status {
	if s := d.receiver.EnterCoroutine(coroDecodeFrame); !s.IsOK() {
		return s
	}
	status := d.stepFrame(dst, src, blend)
	if status.IsSuspension() {
		d.receiver.Suspend(coroDecodeFrame)
	} else {
		d.receiver.Complete()
		if status.IsError() {
			d.receiver.Disable()
		}
	}
	return status
}

func (d *Decoder) stepFrame(dst *pixel.Buffer, src *base.IoBuffer, blend pixel.Blend) base.Status {
	for {
		switch d.pc {
		case pcFrameReady:
			sw, s := pixel.Prepare(dst.Config.Format, nil, pixel.FormatGray8, nil, blend)
			if !s.IsOK() {
				return s
			}
			d.rowSwizzler = sw
			d.rowFilled = 0
			d.rowsDecoded = 0
			d.dirtyRect = base.Rect{}
			d.pc = pcRowBytes

		case pcRowBytes:
			if s := d.readFixed(src, d.rowBuf[:d.rowStride], &d.rowFilled); !s.IsOK() {
				return s
			}
			if s := d.decodeRow(dst, d.rowBuf[:d.rowStride], d.rowsDecoded); !s.IsOK() {
				return s
			}
			d.rowFilled = 0
			d.rowsDecoded++
			if d.rowsDecoded == d.height {
				d.numDecodedFrames++
				d.pc = pcAfterFrame
				return base.OK
			}

		default:
			return base.ErrBadReceiver
		}
	}
}

// decodeRow unpacks one packed 1-bit-per-pixel row (MSB-first within each
// byte, per WBMP's bit order) into one gray byte per pixel -- 0xff for a set
// bit (white), 0x00 for a clear bit (black) -- then swizzles it into dst.
func (d *Decoder) decodeRow(dst *pixel.Buffer, raw []byte, destY uint32) base.Status {
	row, ok := dst.Planes[0].Row(int(destY))
	if !ok {
		return base.ErrOutOfBounds
	}
	width := int(d.width)
	for x := 0; x < width; x++ {
		b := raw[x/8]
		shift := 7 - uint(x%8)
		if (b>>shift)&0x01 != 0 {
			d.grayBuf[x] = 0xff
		} else {
			d.grayBuf[x] = 0x00
		}
	}
	d.rowSwizzler.Swizzle(row, d.grayBuf[:width])
	lineDirty := base.NewRect(0, int32(destY), int32(d.width), int32(destY)+1)
	d.dirtyRect = d.dirtyRect.Union(lineDirty)
	return base.OK
}

func (d *Decoder) NumAnimationLoops() uint32      { return 0 }
func (d *Decoder) NumDecodedFrameConfigs() uint64 { return d.numDecodedFrameConfigs }
func (d *Decoder) NumDecodedFrames() uint64       { return d.numDecodedFrames }
func (d *Decoder) FrameDirtyRect() base.Rect      { return d.dirtyRect }

// RestartFrame only ever accepts index 0: WBMP has exactly one frame.
func (d *Decoder) RestartFrame(index uint32, ioPosition uint64) base.Status {
	if s := d.receiver.CheckCall(); !s.IsOK() {
		return s
	}
	if index != 0 {
		return ErrBadRestart
	}
	if d.pc != pcAfterFrame && d.pc != pcFrameReady {
		return ErrBadRestart
	}
	d.pc = pcFrameReady
	return base.OK
}

// TellMeMore always fails: WBMP never reports a note that would have
// something pending to stream out.
func (d *Decoder) TellMeMore(dstIO *base.IoBuffer, minfo *base.MetadataInfo, src *base.IoBuffer) base.Status {
	if s := d.receiver.CheckCall(); !s.IsOK() {
		return s
	}
	return ErrNoMetadata
}
