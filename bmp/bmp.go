// Package bmp decodes Windows BMP streams, implementing pixel.ImageDecoder.
// The header-then-offset parse shape (read a fixed-size record, act on it,
// advance to the next one) is grounded on tarfs.Entry's sequential header
// walk, generalized from tar's single record shape to BMP's file header plus
// one of three DIB header sizes. Embedded-JPEG/PNG detection and the
// two-pass byte-range handoff it reports through are grounded on gif.go's
// metadata-redirection protocol, adapted from "here is some metadata, come
// get it" to "this whole stream is actually a different format, come get
// it".
package bmp

import (
	"math/bits"

	"github.com/wuffsgo/puffs/base"
	"github.com/wuffsgo/puffs/pixel"
)

const (
	fileHeaderLen = 14

	sizeInfoHeader = 40  // BITMAPINFOHEADER
	sizeV4Header   = 108 // BITMAPV4HEADER
	sizeV5Header   = 124 // BITMAPV5HEADER

	compressionRGB       = 0
	compressionRLE8      = 1
	compressionRLE4      = 2
	compressionBitfields = 3
	compressionJPEG      = 4
	compressionPNG       = 5

	maxSideLen = 1 << 16 // same practical cap gif.go uses for its fixed-size row scratch
)

var (
	ErrBadMagic               = base.NewError("#bmp: bad magic number")
	ErrBadHeaderSize          = base.NewError("#bmp: unsupported DIB header size")
	ErrBadDimensions          = base.NewError("#bmp: width or height is not positive")
	ErrBadPixelDataOffset     = base.NewError("#bmp: pixel data offset before end of headers")
	ErrUnsupportedCompression = base.NewError("#bmp: unsupported compression")
	ErrUnsupportedBitCount    = base.NewError("#bmp: unsupported bit count")
	ErrTooWide                = base.NewError("#bmp: width exceeds the maximum supported")
	ErrBadRestart             = base.NewError("#bmp: restart_frame index out of range")
	ErrNoPendingRedirect      = base.NewError("#bmp: tell_me_more called with no pending redirect")
)

// FourCCs this package can report via the i_o_redirect note.
var (
	fourCCJPEG = base.NewFourCC("JPEG")
	fourCCPNG  = base.NewFourCC("PNG ")
)

type programCounter uint8

const (
	pcFileHeader programCounter = iota
	pcDIBHeaderSize
	pcDIBHeaderBody
	pcBitfieldMasks
	pcColorTable
	pcFrameReady // decode_frame_config returns here; decode_frame resumes from it
	pcRowBytes
	pcAfterFrame
	pcDone
)

// pendingRedirect is the one outstanding i_o_redirect byte range this
// decoder can have queued, mirroring gif.go's pendingMetadata but for a
// whole-stream redirect rather than an embedded metadata chunk.
type pendingRedirect struct {
	info   base.MetadataInfo
	cursor uint64
}

const coroDecodeImageConfig uint32 = 1
const coroDecodeFrameConfig uint32 = 2
const coroDecodeFrame uint32 = 3

// Decoder implements pixel.ImageDecoder for a single BMP stream. BMP has
// exactly one image, so "frame 0" is the whole bitmap; there is no
// animation, disposal, or interlacing to track.
type Decoder struct {
	receiver base.Receiver

	pc programCounter

	// Generic fixed-size accumulator for whichever fixed-width record is
	// currently being read (file header, DIB header body), reused the same
	// way gif.go's buf field is.
	buf    [sizeV5Header]byte
	bufLen int

	fileSize        uint32
	pixelDataOffset uint32

	dibHeaderSize uint32
	width         int32
	height        int32
	topDown       bool
	bitCount      uint16
	compression   uint32

	redMask, greenMask, blueMask, alphaMask     uint32
	redShift, greenShift, blueShift, alphaShift uint8
	redBits, greenBits, blueBits, alphaBits     uint8
	hasAlphaMask                                bool

	// maskBuf holds the three (never four -- classic BI_BITFIELDS never
	// carries an alpha mask) DWORD color masks that follow a plain
	// BITMAPINFOHEADER when its compression is BI_BITFIELDS, a field this
	// package's supplied dibHeaderSize of 40 does not otherwise account for.
	maskBuf    [12]byte
	maskBufLen int

	colorsUsed uint32
	palette    [1024]byte

	pending *pendingRedirect

	rowStride   int // bytes per row, including the pad to a 4-byte multiple
	rowBuf      [maxSideLen * 4]byte
	rowFilled   int
	indexBuf    [maxSideLen]byte // unpacked one-byte-per-pixel indices, for 1/4/8bpp
	expandBuf   [maxSideLen * 4]byte // unpacked BGRA8888 scratch, for 16/32bpp
	rowsDecoded int32

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
	d.pc = pcFileHeader
	return base.OK
}

// WorkbufLen reports that decode_frame needs no scratch space: BMP has no
// disposal or interlacing to stage through a caller-provided buffer, unlike
// gif.Decoder.
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

// SetReportMetadata is a no-op: a BMP stream carries no embedded metadata
// chunks, only the whole-stream embedded-JPEG/PNG redirect decode_image_config
// always reports regardless of this setting.
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

// DecodeImageConfig parses the file header and DIB header (stopping short of
// the color table). If the bitmap's compression field names an embedded
// JPEG or PNG payload, it returns NoteIORedirect instead of OK, queuing the
// byte range for TellMeMore; otherwise it reports the bitmap's dimensions
// and pixel format.
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
			dstCfg.Width = uint32(d.width)
			dstCfg.Height = uint32(d.height)
			if d.bitCount <= 8 {
				dstCfg.Format = pixel.FormatBGRIndexed
			} else if d.hasAlphaMask {
				dstCfg.Format = pixel.FormatBGRA8888
			} else {
				dstCfg.Format = pixel.FormatBGRX8888
			}
		}
	}
	return status
}

func (d *Decoder) stepImageConfig(src *base.IoBuffer) base.Status {
	for {
		switch d.pc {
		case pcFileHeader:
			if s := d.readFixed(src, d.buf[:fileHeaderLen], &d.bufLen); !s.IsOK() {
				return s
			}
			if d.buf[0] != 'B' || d.buf[1] != 'M' {
				return ErrBadMagic
			}
			d.fileSize = uint32(base.LoadLE(d.buf[2:6], 4))
			d.pixelDataOffset = uint32(base.LoadLE(d.buf[10:14], 4))
			d.bufLen = 0
			d.pc = pcDIBHeaderSize

		case pcDIBHeaderSize:
			if s := d.readFixed(src, d.buf[:4], &d.bufLen); !s.IsOK() {
				return s
			}
			d.dibHeaderSize = uint32(base.LoadLE(d.buf[:4], 4))
			switch d.dibHeaderSize {
			case sizeInfoHeader, sizeV4Header, sizeV5Header:
			default:
				return ErrBadHeaderSize
			}
			if d.pixelDataOffset < fileHeaderLen+d.dibHeaderSize {
				return ErrBadPixelDataOffset
			}
			d.bufLen = 4 // the size field itself is part of the header body below
			d.pc = pcDIBHeaderBody

		case pcDIBHeaderBody:
			body := d.buf[:d.dibHeaderSize]
			if s := d.readFixed(src, body, &d.bufLen); !s.IsOK() {
				return s
			}
			if s := d.parseDIBHeaderBody(body); !s.IsOK() {
				return s
			}
			if d.compression == compressionJPEG || d.compression == compressionPNG {
				tag := fourCCJPEG
				if d.compression == compressionPNG {
					tag = fourCCPNG
				}
				end := d.fileSize
				if end < d.pixelDataOffset {
					end = d.pixelDataOffset
				}
				d.pending = &pendingRedirect{
					info: base.MetadataInfo{
						Tag: tag,
						Min: uint64(d.pixelDataOffset),
						Max: uint64(end),
					},
					cursor: src.Position(),
				}
				return base.NoteIORedirect
			}
			if d.compression == compressionBitfields && d.dibHeaderSize == sizeInfoHeader {
				d.maskBufLen = 0
				d.pc = pcBitfieldMasks
				continue
			}
			d.setMasksForBitCount(body)
			d.pc = d.afterHeaderPC()

		case pcBitfieldMasks:
			// A plain BITMAPINFOHEADER (biSize == 40) with BI_BITFIELDS
			// compression packs its three color masks immediately after the
			// fixed 40-byte body, before the color table or pixel data --
			// bytes this decoder's dibHeaderSize (always 40 here) does not
			// already account for.
			if s := d.readFixed(src, d.maskBuf[:], &d.maskBufLen); !s.IsOK() {
				return s
			}
			d.redMask = uint32(base.LoadLE(d.maskBuf[0:4], 4))
			d.greenMask = uint32(base.LoadLE(d.maskBuf[4:8], 4))
			d.blueMask = uint32(base.LoadLE(d.maskBuf[8:12], 4))
			d.alphaMask = 0
			d.redShift, d.redBits = maskShiftWidth(d.redMask)
			d.greenShift, d.greenBits = maskShiftWidth(d.greenMask)
			d.blueShift, d.blueBits = maskShiftWidth(d.blueMask)
			d.alphaShift, d.alphaBits = 0, 0
			d.hasAlphaMask = false
			d.pc = d.afterHeaderPC()

		case pcColorTable:
			total := int(d.colorsUsed) * 4
			for d.bufLen < total {
				b, s := d.readByte(src)
				if !s.IsOK() {
					return s
				}
				entry, channel := d.bufLen/4, d.bufLen%4
				switch channel {
				case 0:
					d.palette[entry*4+0] = b // blue
				case 1:
					d.palette[entry*4+1] = b // green
				case 2:
					d.palette[entry*4+2] = b // red
				case 3:
					d.palette[entry*4+3] = 0xff // reserved byte; palette is always opaque
				}
				d.bufLen++
			}
			d.pc = pcFrameReady

		case pcFrameReady:
			return base.OK

		default:
			return base.ErrBadReceiver
		}
	}
}

// parseDIBHeaderBody extracts the fields this package needs from whichever
// of the three supported DIB header sizes body holds. All three share the
// same layout for their first 40 bytes (BITMAPINFOHEADER); V4 and V5 only
// append fields (color masks, colorspace, gamma, ICC profile pointer) that a
// BITMAPINFOHEADER reader is free to ignore.
func (d *Decoder) parseDIBHeaderBody(body []byte) base.Status {
	d.width = int32(base.LoadLE(body[4:8], 4))
	rawHeight := int32(base.LoadLE(body[8:12], 4))
	d.topDown = rawHeight < 0
	if d.topDown {
		d.height = -rawHeight
	} else {
		d.height = rawHeight
	}
	if d.width <= 0 || d.height <= 0 {
		return ErrBadDimensions
	}
	if d.width > maxSideLen || d.height > maxSideLen {
		return ErrTooWide
	}
	d.bitCount = uint16(base.LoadLE(body[14:16], 2))
	d.compression = uint32(base.LoadLE(body[16:20], 4))
	d.colorsUsed = uint32(base.LoadLE(body[32:36], 4))

	switch d.bitCount {
	case 1, 4, 8, 16, 24, 32:
	default:
		return ErrUnsupportedBitCount
	}

	switch d.compression {
	case compressionRGB, compressionBitfields, compressionJPEG, compressionPNG:
	default:
		return ErrUnsupportedCompression
	}
	if d.compression == compressionBitfields && d.bitCount != 16 && d.bitCount != 32 {
		return ErrUnsupportedCompression
	}

	// A BITMAPINFOHEADER (size 40) with BI_BITFIELDS compression carries its
	// masks in a separate trailing record handled by pcBitfieldMasks, not in
	// body itself; every other combination (BI_RGB defaults, or a V4/V5
	// header whose masks are always part of body) is resolved here.
	if !(d.compression == compressionBitfields && d.dibHeaderSize == sizeInfoHeader) {
		d.setMasksForBitCount(body)
	}

	d.rowStride = ((int(d.width)*int(d.bitCount) + 31) / 32) * 4
	return base.OK
}

// afterHeaderPC is where header parsing continues once dimensions,
// compression, and (if applicable) color masks are all known: a color table
// for indexed bit counts, or straight to decode_frame_config for direct
// ones.
func (d *Decoder) afterHeaderPC() programCounter {
	if d.bitCount <= 8 {
		n := int(d.colorsUsed)
		if n == 0 {
			n = 1 << d.bitCount
		}
		d.colorsUsed = uint32(n)
		d.bufLen = 0
		return pcColorTable
	}
	return pcFrameReady
}

// setMasksForBitCount fills in the red/green/blue/alpha bit masks (and their
// shift/width decompositions) for every case except a plain 40-byte
// BITMAPINFOHEADER with BI_BITFIELDS compression, which pcBitfieldMasks
// handles on its own since that combination's masks live outside body
// entirely. Remaining cases: BI_RGB always uses BMP's well-known defaults
// for 16bpp (X1R5G5B5) and 32bpp (X8R8G8B8); BI_BITFIELDS under a V4/V5
// header reads its explicit masks from body's fixed offset 40, a field
// every header that size always carries regardless of compression.
func (d *Decoder) setMasksForBitCount(body []byte) {
	if d.compression == compressionBitfields {
		d.redMask = uint32(base.LoadLE(body[40:44], 4))
		d.greenMask = uint32(base.LoadLE(body[44:48], 4))
		d.blueMask = uint32(base.LoadLE(body[48:52], 4))
		d.alphaMask = uint32(base.LoadLE(body[52:56], 4))
	} else if d.bitCount == 16 {
		d.redMask, d.greenMask, d.blueMask, d.alphaMask = 0x7c00, 0x03e0, 0x001f, 0
	} else if d.bitCount == 32 {
		d.redMask, d.greenMask, d.blueMask, d.alphaMask = 0x00ff0000, 0x0000ff00, 0x000000ff, 0
	} else {
		d.redMask, d.greenMask, d.blueMask, d.alphaMask = 0, 0, 0, 0
	}
	d.redShift, d.redBits = maskShiftWidth(d.redMask)
	d.greenShift, d.greenBits = maskShiftWidth(d.greenMask)
	d.blueShift, d.blueBits = maskShiftWidth(d.blueMask)
	d.alphaShift, d.alphaBits = maskShiftWidth(d.alphaMask)
	d.hasAlphaMask = d.alphaMask != 0
}

func maskShiftWidth(mask uint32) (shift, width uint8) {
	if mask == 0 {
		return 0, 0
	}
	return uint8(bits.TrailingZeros32(mask)), uint8(bits.OnesCount32(mask))
}

// expandChannel widens a width-bit field extracted from a pixel word to a
// full 8-bit channel by replicating its high bits into the low bits it
// doesn't have, the same bit-expansion trick used to widen 5-bit RGB555
// channels in many fixed-point texture unpackers.
func expandChannel(v uint32, width uint8) byte {
	if width == 0 {
		return 0
	}
	if width >= 8 {
		return byte(v >> (width - 8))
	}
	out := v << (8 - width)
	out |= out >> width
	return byte(out)
}

func extractChannel(word uint32, shift, width uint8) byte {
	if width == 0 {
		return 0
	}
	v := (word >> shift) & ((uint32(1) << width) - 1)
	return expandChannel(v, width)
}

// DecodeFrameConfig reports BMP's single implicit frame: the whole bitmap,
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
				Bounds:     base.NewRect(0, 0, d.width, d.height),
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
// Rows are stored bottom-up in the file unless the DIB header's height field
// was negative (top-down); either way this walks the file in storage order
// and places each row at its correct destination row via rowIndexForStorage.
func (d *Decoder) DecodeFrame(dst *pixel.Buffer, src *base.IoBuffer, blend pixel.Blend, workbuf []byte, opts *pixel.DecodeOptions) base.Status {
	if s := d.receiver.EnterCoroutine(coroDecodeFrame); !s.IsOK() {
		return s
	}
	status := d.stepFrame(dst, src, blend, opts)
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

func (d *Decoder) stepFrame(dst *pixel.Buffer, src *base.IoBuffer, blend pixel.Blend, opts *pixel.DecodeOptions) base.Status {
	for {
		switch d.pc {
		case pcFrameReady:
			var srcFmt pixel.Format
			var palette *[1024]byte
			switch {
			case d.bitCount <= 8:
				srcFmt = pixel.FormatBGRIndexed
				palette = &d.palette
				if opts != nil && opts.Palette != nil {
					palette = opts.Palette
				}
			case d.bitCount == 24:
				srcFmt = pixel.FormatBGRX8888 // 3 bytes/pixel, B,G,R in storage order
			default: // 16, 32
				if d.hasAlphaMask {
					srcFmt = pixel.FormatBGRA8888
				} else {
					srcFmt = pixel.FormatBGRX8888
				}
			}
			sw, s := pixel.Prepare(dst.Config.Format, nil, srcFmt, palette, blend)
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
			if d.rowsDecoded == int32(d.height) {
				d.numDecodedFrames++
				d.pc = pcAfterFrame
				return base.OK
			}

		default:
			return base.ErrBadReceiver
		}
	}
}

// decodeRow unpacks one file-order row of raw bytes into the destination
// plane's row storageRow (0 is the first row read from src, regardless of
// top-down/bottom-up), translating storage order to image row order.
func (d *Decoder) decodeRow(dst *pixel.Buffer, raw []byte, storageRow int32) base.Status {
	destY := storageRow
	if !d.topDown {
		destY = int32(d.height) - 1 - storageRow
	}
	row, ok := dst.Planes[0].Row(int(destY))
	if !ok {
		return base.ErrOutOfBounds
	}

	var srcBytes []byte
	switch {
	case d.bitCount <= 8:
		unpackIndices(raw, int(d.bitCount), int(d.width), d.indexBuf[:d.width])
		srcBytes = d.indexBuf[:d.width]
	case d.bitCount == 24:
		srcBytes = raw[:int(d.width)*3]
	default: // 16, 32
		bpp := 3
		if d.hasAlphaMask {
			bpp = 4
		}
		d.expandRow(raw, int(d.width), bpp)
		srcBytes = d.expandBuf[:int(d.width)*bpp]
	}

	d.rowSwizzler.Swizzle(row, srcBytes)
	lineDirty := base.NewRect(0, destY, d.width, destY+1)
	d.dirtyRect = d.dirtyRect.Union(lineDirty)
	return base.OK
}

// unpackIndices expands a packed 1/4/8-bit-per-pixel row (MSB-first within
// each byte, per BMP's bit order) into one palette-index byte per pixel.
func unpackIndices(raw []byte, bitCount, width int, out []byte) {
	switch bitCount {
	case 8:
		copy(out, raw[:width])
	case 4:
		for x := 0; x < width; x++ {
			b := raw[x/2]
			if x%2 == 0 {
				out[x] = b >> 4
			} else {
				out[x] = b & 0x0f
			}
		}
	case 1:
		for x := 0; x < width; x++ {
			b := raw[x/8]
			shift := 7 - uint(x%8)
			out[x] = (b >> shift) & 0x01
		}
	}
}

// expandRow unpacks a 16- or 32-bit-per-pixel row into tightly packed BGR or
// BGRA scratch (bpp 3 or 4, matching FormatBGRX8888/FormatBGRA8888's own
// BytesPerPixel so the swizzler's srcBPP-strided read lines up), using this
// bitmap's color masks. The alpha byte is only written, and only present in
// the output stride, when the bitmap actually declares an alpha mask.
func (d *Decoder) expandRow(raw []byte, width, bpp int) {
	wordLen := d.bitCount / 8
	for x := 0; x < width; x++ {
		word := uint32(base.LoadLE(raw[x*int(wordLen):x*int(wordLen)+int(wordLen)], int(wordLen)))
		o := x * bpp
		d.expandBuf[o+0] = extractChannel(word, d.blueShift, d.blueBits)
		d.expandBuf[o+1] = extractChannel(word, d.greenShift, d.greenBits)
		d.expandBuf[o+2] = extractChannel(word, d.redShift, d.redBits)
		if d.hasAlphaMask {
			d.expandBuf[o+3] = extractChannel(word, d.alphaShift, d.alphaBits)
		}
	}
}

func (d *Decoder) NumAnimationLoops() uint32       { return 0 }
func (d *Decoder) NumDecodedFrameConfigs() uint64 { return d.numDecodedFrameConfigs }
func (d *Decoder) NumDecodedFrames() uint64       { return d.numDecodedFrames }
func (d *Decoder) FrameDirtyRect() base.Rect       { return d.dirtyRect }

// RestartFrame only ever accepts index 0: BMP has exactly one frame. Once
// DecodeFrameConfig has reported that frame (whether or not DecodeFrame has
// finished it), this readies pixel decode again trusting the caller's
// repositioned src; before that it is rejected, since this decoder
// does not track any offset besides the pixel data's own start (already
// reported once via DecodeFrameConfig's IOPosition).
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

// TellMeMore streams out the pending i_o_redirect range (the embedded
// JPEG/PNG payload's bytes), the same byte-at-a-time two-pass protocol
// gif.Decoder.TellMeMore uses for metadata.
func (d *Decoder) TellMeMore(dstIO *base.IoBuffer, minfo *base.MetadataInfo, src *base.IoBuffer) base.Status {
	if s := d.receiver.CheckCall(); !s.IsOK() {
		return s
	}
	if d.pending == nil {
		return ErrNoPendingRedirect
	}
	if src.Position() != d.pending.cursor {
		return base.SuspensionMispositionedRead
	}
	if minfo != nil {
		*minfo = d.pending.info
	}
	for d.pending.cursor < d.pending.info.Max {
		if s := src.NeedRead(); !s.IsOK() {
			if s.IsError() {
				return s
			}
			return base.SuspensionEvenMoreInformation
		}
		if s := dstIO.NeedWrite(); !s.IsOK() {
			return base.SuspensionEvenMoreInformation
		}
		dstIO.Data[dstIO.WI] = src.Data[src.RI]
		dstIO.WI++
		src.RI++
		d.pending.cursor++
	}
	d.pending = nil
	d.pc = pcDone
	return base.OK
}
