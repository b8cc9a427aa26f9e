// Package gif decodes GIF87a/GIF89a streams, implementing
// pixel.ImageDecoder. The frame/disposal/blend model is grounded on
// deepteams-webp/animation/frame.go's Frame.Dispose/Blend pair (the corpus's
// only container-level animation-semantics code), generalized from WebP's
// two disposal/blend methods to GIF's three disposal methods, and adapted
// from that package's image.Image-at-a-time model to this repository's
// caller-owned pixel.Buffer and suspendable-coroutine model. The block and
// sub-block walk (extensions, image descriptor, sub-block-framed data) is
// grounded on tarfs.FS's offset-indexed sequential-entry parse in New: read
// one header, act on it, advance, repeat until a terminator is reached.
package gif

import (
	"github.com/wuffsgo/puffs/base"
	"github.com/wuffsgo/puffs/lzw"
	"github.com/wuffsgo/puffs/pixel"
)

const (
	blockTerminator  = 0x00
	extIntroducer    = 0x21
	imageSeparator   = 0x2c
	trailer          = 0x3b
	extGraphicControl = 0xf9
	extComment        = 0xfe
	extPlainText      = 0x01
	extApplication    = 0xff

	appBlockSize = 11 // 8-byte identifier + 3-byte authentication code

	maxSideLen = 1 << 16 // GIF's width/height fields are each 16 bits
)

var (
	ErrBadMagic             = base.NewError("#gif: bad magic number")
	ErrBadBlockIntroducer   = base.NewError("#gif: bad block introducer")
	ErrBadColorTableSize    = base.NewError("#gif: bad color table size")
	ErrEmptyFrame           = base.NewError("#gif: empty frame rejected by quirk")
	ErrEmptyPalette         = base.NewError("#gif: empty palette rejected by quirk")
	ErrFrameOutOfBounds     = base.NewError("#gif: frame rectangle exceeds the logical screen")
	ErrTooMuchPixelData     = base.NewError("#gif: image data encodes more pixels than the frame holds")
	ErrTooLittlePixelData   = base.NewError("#gif: image data ended before the frame was fully decoded")
	ErrBadRestart           = base.NewError("#gif: restart_frame index out of range")
	ErrNoPendingMetadata    = base.NewError("#gif: tell_me_more called with no pending metadata")
)

// Quirk bits, per spec.md §4.4's "seven boolean quirks". May only be set
// before the first decode call (or after RestartFrame(0)); SetQuirkEnabled
// reports base.ErrBadCallSequence otherwise, like jsonptr, gzip and zlib.
const (
	QuirkDelayNumDecodedFrames                    uint32 = 1 << 0
	QuirkFirstFrameLocalPaletteMeansBlackBackground uint32 = 1 << 1
	QuirkHonorBackgroundColor                     uint32 = 1 << 2
	QuirkIgnoreTooMuchPixelData                   uint32 = 1 << 3
	QuirkImageBoundsAreStrict                     uint32 = 1 << 4
	QuirkRejectEmptyFrame                         uint32 = 1 << 5
	QuirkRejectEmptyPalette                       uint32 = 1 << 6
)

// FourCCs this package recognizes for the metadata-redirection protocol.
var (
	fourCCICCP = base.NewFourCC("ICCP")
	fourCCXMP  = base.NewFourCC("XMP ")
)

// Application-extension identifier+authentication-code strings (11 bytes
// each) this package recognizes.
const (
	appIDNetscape = "NETSCAPE2.0"
	appIDXMP      = "XMP DataXMP"
	appIDICCP     = "ICCRGBG1012"
)

type programCounter uint8

const (
	pcMagic programCounter = iota
	pcLogicalScreenDescriptor
	pcGlobalColorTable
	pcBlockIntroducer
	pcExtensionLabel
	pcGraphicControlSize
	pcGraphicControlBody
	pcGraphicControlTerminator
	pcApplicationSize
	pcApplicationID
	pcApplicationSubBlocks
	pcSkippedSubBlocks
	pcImageDescriptor
	pcLocalColorTable
	pcLZWMinCodeSize
	pcFrameReady // decode_frame_config returns here; decode_frame resumes from it
	pcPixelSubBlockHeader
	pcPixelSubBlockData
	pcPixelDecodeRow
	pcPixelCheckSurplus
	pcPixelTerminator
	pcAfterFrame
	pcTrailer
	pcDone
)

// subBlockAction says what a generic sub-block walk does with each data
// sub-block's bytes, so the comment extension, plain text extension, and
// the tail of an application extension can share one pc path instead of
// three near-identical ones.
type subBlockAction uint8

const (
	subBlockSkip subBlockAction = iota
	subBlockNetscapeLoopCount
	subBlockMetadata
)

// pendingMetadata is the one outstanding metadata-redirection item this
// decoder can have queued at a time, per spec.md §4.4.
type pendingMetadata struct {
	info   base.MetadataInfo
	cursor uint64 // next unread absolute stream offset within [info.Min, info.Max)
}

const coroDecodeImageConfig uint32 = 1
const coroDecodeFrameConfig uint32 = 2
const coroDecodeFrame uint32 = 3

// Decoder implements pixel.ImageDecoder for a single GIF stream. All
// dictionary, palette, and frame scratch state lives in the struct; nothing
// here allocates on the decode path.
type Decoder struct {
	receiver base.Receiver

	quirks uint32

	pc programCounter

	// Generic small fixed-size accumulators, reused across the several
	// fixed-width fields this format has (the header, the logical screen
	// descriptor, the image descriptor, ...). Only one is "live" at a time,
	// selected by pc, so they don't need per-field names.
	buf    [appBlockSize]byte
	bufLen int

	screenWidth, screenHeight uint32
	backgroundColorIndex      byte

	globalPalette    [1024]byte
	hasGlobalPalette bool
	globalPaletteLen int // number of valid entries, for QuirkRejectEmptyPalette

	subBlockRemaining int // bytes left in the sub-block currently being read
	subBlockAction    subBlockAction
	subBlockByteIndex int // position within the first Netscape/metadata sub-block

	netscapeLoopBuf [2]byte
	numLoops        uint32

	metaFlavor uint32
	metaTag    base.FourCC
	metaStart  uint64

	reportICCP bool
	reportXMP  bool
	pending    *pendingMetadata

	// Graphic control state, latched by the most recently parsed GCE and
	// consumed by the next image descriptor.
	haveGCE           bool
	gceDisposal       pixel.Disposal
	gceTransparentOn  bool
	gceTransparentIdx byte
	gceDelayTicks     uint32
	priorDelayTicks   uint32 // for QuirkDelayNumDecodedFrames

	// Current frame's own fields, latched at the image descriptor and
	// reported by DecodeFrameConfig.
	frameIndex           uint32
	frameBounds          base.Rect
	frameInterlaced      bool
	frameLocalPalette    [1024]byte
	frameHasLocalPalette bool
	frameLocalPaletteLen int
	frameActivePalette   [1024]byte // local if present, else a per-frame copy of global
	frameLZWMinCodeSize  int

	// callerVersion/libraryVersion are stashed from Initialize so the
	// embedded lzw.Decoder can be re-initialized once per frame (GIF resets
	// the LZW dictionary at every image descriptor, unlike zlib/gzip's
	// single embedded deflate.Decoder that lives for the whole stream).
	callerVersion, libraryVersion base.Version

	lzw lzw.Decoder

	// Per-row pixel-decode progress, resumable mid-row and mid-sub-block.
	rowBuf      [maxSideLen]byte // palette-index bytes for the row currently being assembled
	rowIO       base.IoBuffer    // view over rowBuf[:frameWidth], the lzw decoder's dst
	decodedRows int32            // rows handed to the swizzler so far, in decode order

	// lzwSrc is the lzw decoder's src: a view over the sub-block currently
	// being fed to it. afterSubBlockRefillPC says which pixel-decode state
	// to resume once a fresh sub-block has been read into subBlockData.
	lzwSrc               base.IoBuffer
	subBlockData         [255]byte
	subBlockSize         int
	subBlockFilled       int
	afterSubBlockRefillPC programCounter

	rowSwizzler *pixel.Swizzler

	// Disposal bookkeeping: disposal of frame N is applied at the start of
	// decoding frame N+1, per the GIF89a spec and the DisposeMethod model
	// this package generalizes from WebP's two-method version.
	prevDisposal pixel.Disposal
	prevBounds   base.Rect
	prevApplied  bool

	dirtyRect              base.Rect
	numDecodedFrameConfigs uint64
	numDecodedFrames       uint64
}

// Initialize prepares d for use.
func (d *Decoder) Initialize(callerVersion, libraryVersion base.Version, flags uint32) base.Status {
	if s := d.receiver.Initialize(callerVersion, libraryVersion, flags); !s.IsOK() {
		return s
	}
	d.callerVersion, d.libraryVersion = callerVersion, libraryVersion
	d.pc = pcMagic
	return base.OK
}

// WorkbufLen reports the scratch space decode_frame needs to snapshot a
// frame's bounds before applying DisposalPrevious to it: up to one full
// logical-screen worth of BGRA8888 pixels, the largest a single frame's
// rectangle can be.
func (d *Decoder) WorkbufLen() (min, max uint64) {
	return 0, uint64(d.screenWidth) * uint64(d.screenHeight) * 4
}

// SetQuirkEnabled supports the seven quirks defined above.
func (d *Decoder) SetQuirkEnabled(quirk uint32, on bool) base.Status {
	if s := d.receiver.CheckCall(); !s.IsOK() {
		return s
	}
	if d.pc != pcMagic || d.bufLen != 0 {
		return base.ErrBadCallSequence
	}
	const allQuirks = QuirkDelayNumDecodedFrames | QuirkFirstFrameLocalPaletteMeansBlackBackground |
		QuirkHonorBackgroundColor | QuirkIgnoreTooMuchPixelData | QuirkImageBoundsAreStrict |
		QuirkRejectEmptyFrame | QuirkRejectEmptyPalette
	if quirk&^allQuirks != 0 {
		return base.ErrUnsupportedOption
	}
	if on {
		d.quirks |= quirk
	} else {
		d.quirks &^= quirk
	}
	return base.OK
}

// SetReportMetadata enables or disables metadata-redirection reporting for
// one recognized FourCC (ICCP or XMP ). Unrecognized FourCCs are accepted as
// a no-op: nothing in a GIF stream could ever produce them.
func (d *Decoder) SetReportMetadata(fourcc base.FourCC, on bool) base.Status {
	if s := d.receiver.CheckCall(); !s.IsOK() {
		return s
	}
	switch fourcc {
	case fourCCICCP:
		d.reportICCP = on
	case fourCCXMP:
		d.reportXMP = on
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

// readFixed accumulates exactly len(buf) bytes from src into buf, resuming
// across suspensions via *filled.
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

// DecodeImageConfig parses the GIF header, logical screen descriptor, and
// optional global color table, reporting the logical screen's dimensions
// and its pixel format (always indexed BGRA8888-premul via a palette).
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
		} else if dstCfg != nil {
			dstCfg.Format = pixel.FormatBGRIndexed
			dstCfg.Width = d.screenWidth
			dstCfg.Height = d.screenHeight
		}
	}
	return status
}

func (d *Decoder) stepImageConfig(src *base.IoBuffer) base.Status {
	for {
		switch d.pc {
		case pcMagic:
			if s := d.readFixed(src, d.buf[:6], &d.bufLen); !s.IsOK() {
				return s
			}
			magic := string(d.buf[:6])
			if magic != "GIF87a" && magic != "GIF89a" {
				return ErrBadMagic
			}
			d.bufLen = 0
			d.pc = pcLogicalScreenDescriptor

		case pcLogicalScreenDescriptor:
			if s := d.readFixed(src, d.buf[:7], &d.bufLen); !s.IsOK() {
				return s
			}
			d.screenWidth = uint32(base.LoadLE(d.buf[0:2], 2))
			d.screenHeight = uint32(base.LoadLE(d.buf[2:4], 2))
			packed := d.buf[4]
			d.backgroundColorIndex = d.buf[5]
			d.bufLen = 0
			if packed&0x80 != 0 {
				size := 2 << (packed & 0x07)
				d.globalPaletteLen = size
				d.hasGlobalPalette = true
				d.subBlockRemaining = size * 3
				d.pc = pcGlobalColorTable
			} else {
				d.pc = pcBlockIntroducer
			}

		case pcGlobalColorTable:
			if s := d.readColorTable(src, &d.globalPalette, d.globalPaletteLen); !s.IsOK() {
				return s
			}
			d.pc = pcBlockIntroducer

		case pcBlockIntroducer:
			// decode_image_config only needs the header; it stops as soon
			// as the stream reaches its first block, leaving the cursor
			// there for decode_frame_config to pick up.
			return base.OK

		default:
			return base.ErrBadReceiver
		}
	}
}

// readColorTable reads n palette entries (3 bytes each: R, G, B) from src
// and stores them into table as BGRA8888-premul (opaque, alpha 0xff),
// consuming subBlockRemaining one byte at a time so it resumes cleanly.
func (d *Decoder) readColorTable(src *base.IoBuffer, table *[1024]byte, n int) base.Status {
	total := n * 3
	for d.subBlockRemaining > 0 {
		consumed := total - d.subBlockRemaining
		entry, channel := consumed/3, consumed%3
		b, s := d.readByte(src)
		if !s.IsOK() {
			return s
		}
		d.subBlockRemaining--
		switch channel {
		case 0: // red
			table[entry*4+2] = b
		case 1: // green
			table[entry*4+1] = b
		case 2: // blue
			table[entry*4+0] = b
			table[entry*4+3] = 0xff
		}
	}
	return base.OK
}

// DecodeFrameConfig advances past extensions until it reaches either the
// next image descriptor (reporting its FrameConfig) or the trailer
// (reporting base.NoteEndOfData). It may also return NoteMetadataReported,
// in which case the caller should drive TellMeMore before calling
// DecodeFrameConfig again.
func (d *Decoder) DecodeFrameConfig(dstCfg *pixel.FrameConfig, src *base.IoBuffer) base.Status {
	if s := d.receiver.EnterCoroutine(coroDecodeFrameConfig); !s.IsOK() {
		return s
	}
	status := d.stepFrameConfig(src)
	if status.IsSuspension() {
		d.receiver.Suspend(coroDecodeFrameConfig)
	} else {
		d.receiver.Complete()
		if status.IsError() {
			d.receiver.Disable()
		} else if status.IsOK() && dstCfg != nil {
			d.numDecodedFrameConfigs++
			disposal := d.gceDisposal
			delay := d.gceDelayTicks
			if d.quirks&QuirkDelayNumDecodedFrames != 0 {
				delay, d.priorDelayTicks = d.priorDelayTicks, delay
			}
			*dstCfg = pixel.FrameConfig{
				Bounds:          d.frameBounds,
				Index:           d.frameIndex,
				IOPosition:      src.Position(),
				DurationInTicks: delay,
				Disposal:        disposal,
				Blend:           pixel.BlendSrcOver,
			}
			if d.quirks&QuirkHonorBackgroundColor != 0 {
				b, g, r, a := d.globalPalette[d.backgroundColorIndex*4],
					d.globalPalette[d.backgroundColorIndex*4+1],
					d.globalPalette[d.backgroundColorIndex*4+2],
					d.globalPalette[d.backgroundColorIndex*4+3]
				dstCfg.BackgroundBGRA = [4]uint8{b, g, r, a}
			}
		}
	}
	return status
}

func (d *Decoder) stepFrameConfig(src *base.IoBuffer) base.Status {
	for {
		switch d.pc {
		case pcAfterFrame:
			// The previous frame's pixels were fully decoded by DecodeFrame;
			// resume the generic block walk to find the next image
			// descriptor, extension, or trailer.
			d.pc = pcBlockIntroducer

		case pcBlockIntroducer:
			b, s := d.readByte(src)
			if !s.IsOK() {
				return s
			}
			switch b {
			case extIntroducer:
				d.pc = pcExtensionLabel
			case imageSeparator:
				d.bufLen = 0
				d.pc = pcImageDescriptor
			case trailer:
				d.pc = pcDone
			default:
				return ErrBadBlockIntroducer
			}

		case pcExtensionLabel:
			label, s := d.readByte(src)
			if !s.IsOK() {
				return s
			}
			switch label {
			case extGraphicControl:
				d.bufLen = 0
				d.pc = pcGraphicControlSize
			case extApplication:
				d.bufLen = 0
				d.pc = pcApplicationSize
			case extComment:
				d.subBlockAction = subBlockSkip
				d.pc = pcSkippedSubBlocks
			case extPlainText:
				// The block-size byte (always 12) and the 12 fixed
				// text-grid bytes that follow it aren't reported anywhere
				// in this package's scope; skip all 13 the same way a
				// sub-block's bytes are skipped, then fall through to the
				// real (size-prefixed) sub-blocks via the shared reader.
				d.subBlockRemaining = 13
				d.subBlockAction = subBlockSkip
				d.pc = pcSkippedSubBlocks
			default:
				// Unknown extension label: skip its sub-blocks the same
				// way a comment extension is skipped.
				d.subBlockAction = subBlockSkip
				d.pc = pcSkippedSubBlocks
			}

		case pcGraphicControlSize:
			if s := d.readFixed(src, d.buf[:1], &d.bufLen); !s.IsOK() {
				return s
			}
			d.bufLen = 0
			d.pc = pcGraphicControlBody

		case pcGraphicControlBody:
			if s := d.readFixed(src, d.buf[:4], &d.bufLen); !s.IsOK() {
				return s
			}
			packed := d.buf[0]
			d.haveGCE = true
			d.gceDisposal = disposalFromPacked(packed)
			d.gceTransparentOn = packed&0x01 != 0
			d.gceDelayTicks = uint32(base.LoadLE(d.buf[1:3], 2))
			d.gceTransparentIdx = d.buf[3]
			d.bufLen = 0
			d.pc = pcGraphicControlTerminator

		case pcGraphicControlTerminator:
			b, s := d.readByte(src)
			if !s.IsOK() {
				return s
			}
			if b != blockTerminator {
				return ErrBadBlockIntroducer
			}
			d.pc = pcBlockIntroducer

		case pcApplicationSize:
			if s := d.readFixed(src, d.buf[:1], &d.bufLen); !s.IsOK() {
				return s
			}
			d.bufLen = 0
			d.pc = pcApplicationID

		case pcApplicationID:
			if s := d.readFixed(src, d.buf[:appBlockSize], &d.bufLen); !s.IsOK() {
				return s
			}
			id := string(d.buf[:appBlockSize])
			d.bufLen = 0
			d.subBlockByteIndex = 0
			switch id {
			case appIDNetscape:
				d.subBlockAction = subBlockNetscapeLoopCount
			case appIDXMP:
				d.subBlockAction = subBlockSkip
				if d.reportXMP {
					d.subBlockAction = subBlockMetadata
					d.metaFlavor = 0
					d.metaTag = fourCCXMP
					d.metaStart = src.Position()
				}
			case appIDICCP:
				d.subBlockAction = subBlockSkip
				if d.reportICCP {
					d.subBlockAction = subBlockMetadata
					d.metaFlavor = 0
					d.metaTag = fourCCICCP
					d.metaStart = src.Position()
				}
			default:
				d.subBlockAction = subBlockSkip
			}
			d.subBlockRemaining = 0
			d.pc = pcApplicationSubBlocks

		case pcApplicationSubBlocks, pcSkippedSubBlocks:
			status := d.stepSubBlocks(src)
			if !status.IsOK() {
				return status
			}
			if d.subBlockAction == subBlockMetadata {
				d.pending = &pendingMetadata{
					info: base.MetadataInfo{
						Flavor: d.metaFlavor,
						Tag:    d.metaTag,
						Min:    d.metaStart,
						Max:    src.Position(),
					},
					cursor: d.metaStart,
				}
				d.pc = pcBlockIntroducer
				return base.NoteMetadataReported
			}
			d.pc = pcBlockIntroducer

		case pcImageDescriptor:
			if s := d.readFixed(src, d.buf[:9], &d.bufLen); !s.IsOK() {
				return s
			}
			left := int32(base.LoadLE(d.buf[0:2], 2))
			top := int32(base.LoadLE(d.buf[2:4], 2))
			w := int32(base.LoadLE(d.buf[4:6], 2))
			h := int32(base.LoadLE(d.buf[6:8], 2))
			packed := d.buf[8]
			d.bufLen = 0
			d.frameIndex = uint32(d.numDecodedFrameConfigs)
			d.frameBounds = base.NewRect(left, top, left+w, top+h)
			d.frameInterlaced = packed&0x40 != 0
			if d.quirks&QuirkRejectEmptyFrame != 0 && d.frameBounds.Empty() {
				return ErrEmptyFrame
			}
			if d.quirks&QuirkImageBoundsAreStrict != 0 {
				screen := base.NewRect(0, 0, int32(d.screenWidth), int32(d.screenHeight))
				if d.frameBounds.Intersect(screen) != d.frameBounds {
					return ErrFrameOutOfBounds
				}
			}
			if packed&0x80 != 0 {
				size := 2 << (packed & 0x07)
				d.frameHasLocalPalette = true
				d.frameLocalPaletteLen = size
				d.subBlockRemaining = size * 3
				d.pc = pcLocalColorTable
			} else {
				d.frameHasLocalPalette = false
				d.pc = pcLZWMinCodeSize
			}

		case pcLocalColorTable:
			if s := d.readColorTable(src, &d.frameLocalPalette, d.frameLocalPaletteLen); !s.IsOK() {
				return s
			}
			d.pc = pcLZWMinCodeSize

		case pcLZWMinCodeSize:
			b, s := d.readByte(src)
			if !s.IsOK() {
				return s
			}
			d.frameLZWMinCodeSize = int(b)
			// A color table's declared size is always at least 2 entries
			// (the wire field is "2 << n"), so no table can ever be
			// declared-but-empty: the only way a frame's indices resolve
			// against nothing is if it has neither a local table nor the
			// stream has a global one.
			if d.quirks&QuirkRejectEmptyPalette != 0 && !d.frameHasLocalPalette && !d.hasGlobalPalette {
				return ErrEmptyPalette
			}
			d.buildFramePalette()
			d.pc = pcFrameReady
			return base.OK

		case pcDone:
			return base.NoteEndOfData

		default:
			return base.ErrBadReceiver
		}
	}
}

// disposalFromPacked maps the Graphic Control Extension's 3-bit disposal
// field to pixel.Disposal. Method 4 (reserved/undefined) is folded into
// DisposalPrevious, matching method 3's "restore to previous" behavior, per
// this module's Open Question decision (see DESIGN.md).
func disposalFromPacked(packed byte) pixel.Disposal {
	switch (packed >> 2) & 0x07 {
	case 2:
		return pixel.DisposalBackground
	case 3, 4:
		return pixel.DisposalPrevious
	default:
		return pixel.DisposalNone
	}
}

// stepSubBlocks walks a size-prefixed sub-block sequence (the shape every
// extension's payload and an image's LZW data share) until the zero-size
// terminator, acting on each sub-block's bytes per d.subBlockAction.
func (d *Decoder) stepSubBlocks(src *base.IoBuffer) base.Status {
	for {
		if d.subBlockRemaining == 0 {
			size, s := d.readByte(src)
			if !s.IsOK() {
				return s
			}
			if size == blockTerminator {
				return base.OK
			}
			d.subBlockRemaining = int(size)
			continue
		}
		b, s := d.readByte(src)
		if !s.IsOK() {
			return s
		}
		switch d.subBlockAction {
		case subBlockNetscapeLoopCount:
			if d.subBlockByteIndex >= 1 && d.subBlockByteIndex <= 2 {
				d.netscapeLoopBuf[d.subBlockByteIndex-1] = b
			}
			d.subBlockByteIndex++
			if d.subBlockByteIndex == 3 {
				d.numLoops = uint32(base.LoadLE(d.netscapeLoopBuf[:], 2))
			}
		case subBlockMetadata, subBlockSkip:
			// Metadata bytes are re-read later via TellMeMore against the
			// original stream range; nothing to store here.
		}
		d.subBlockRemaining--
	}
}

// buildFramePalette assembles the palette this frame's pixel data indexes
// into: the local color table if present, else a copy of the global one,
// with the Graphic Control Extension's transparent index (if any) zeroed to
// premultiplied-transparent black.
func (d *Decoder) buildFramePalette() {
	if d.frameHasLocalPalette {
		d.frameActivePalette = d.frameLocalPalette
	} else {
		d.frameActivePalette = d.globalPalette
	}
	if d.haveGCE && d.gceTransparentOn {
		i := int(d.gceTransparentIdx) * 4
		d.frameActivePalette[i], d.frameActivePalette[i+1] = 0, 0
		d.frameActivePalette[i+2], d.frameActivePalette[i+3] = 0, 0
	}
}

// NumAnimationLoops reports the loop count from a NETSCAPE2.0 application
// extension, 0 meaning "loop forever" per the de facto convention, or 1
// (play once) if no such extension has been seen yet.
func (d *Decoder) NumAnimationLoops() uint32 {
	if d.numLoops == 0 {
		return 1
	}
	return d.numLoops
}

func (d *Decoder) NumDecodedFrameConfigs() uint64 { return d.numDecodedFrameConfigs }
func (d *Decoder) NumDecodedFrames() uint64       { return d.numDecodedFrames }
func (d *Decoder) FrameDirtyRect() base.Rect       { return d.dirtyRect }

// RestartFrame repositions the decoder to decode frame index again, trusting
// the caller to have also repositioned src to ioPosition. Per spec.md §9,
// this decoder does not itself remember each frame's starting offset; it
// only accepts a restart back to frame 0 (reparsing from the header side)
// or to the frame whose pixels DecodeFrame has just finished decoding,
// since those are the only positions it can resume cleanly without having
// kept an index of every frame boundary.
func (d *Decoder) RestartFrame(index uint32, ioPosition uint64) base.Status {
	if s := d.receiver.CheckCall(); !s.IsOK() {
		return s
	}
	if index == d.frameIndex && d.pc == pcAfterFrame {
		d.pc = pcFrameReady
		return base.OK
	}
	if index == 0 {
		d.pc = pcMagic
		d.bufLen = 0
		d.hasGlobalPalette = false
		d.haveGCE = false
		d.frameIndex = 0
		d.numDecodedFrameConfigs = 0
		d.numDecodedFrames = 0
		d.prevDisposal = pixel.DisposalNone
		d.prevBounds = base.Rect{}
		d.prevApplied = true
		return base.OK
	}
	return ErrBadRestart
}

// backgroundColor returns the logical screen's background color in
// BGRA8888-premul, or transparent black if QuirkHonorBackgroundColor is
// off (the common modern-viewer default for disposal-to-background).
//
// If QuirkFirstFrameLocalPaletteMeansBlackBackground is on and the stream
// has no global color table (so the background color index has nothing to
// index into), an opaque black is reported instead of transparent -- some
// encoders omit the global color table entirely when every frame carries
// its own local palette, and never meant "background" to mean "see
// through" in that case.
func (d *Decoder) backgroundColor() [4]byte {
	if d.quirks&QuirkFirstFrameLocalPaletteMeansBlackBackground != 0 && !d.hasGlobalPalette {
		return [4]byte{0, 0, 0, 0xff}
	}
	if d.quirks&QuirkHonorBackgroundColor == 0 {
		return [4]byte{}
	}
	i := int(d.backgroundColorIndex) * 4
	return [4]byte{d.globalPalette[i], d.globalPalette[i+1], d.globalPalette[i+2], d.globalPalette[i+3]}
}

// snapshotBounds copies dst's pixels within bounds into workbuf, row by
// row, so applyDisposal can later restore them for a DisposalPrevious
// frame. Per spec.md §4.6, a dynamically sized canvas snapshot can't be a
// fixed struct field, so it lives in the caller-supplied workbuf instead
// (sized via WorkbufLen to the full logical screen).
func (d *Decoder) snapshotBounds(dst *pixel.Buffer, bounds base.Rect, workbuf []byte) base.Status {
	if bounds.Empty() {
		return base.OK
	}
	bpp := dst.Config.Format.BytesPerPixel()
	view, ok := base.Sub(dst.Planes[0], bounds, bpp)
	if !ok {
		return ErrFrameOutOfBounds
	}
	off := 0
	for y := 0; y < int(bounds.Height()); y++ {
		row, ok := view.Row(y)
		if !ok {
			return ErrFrameOutOfBounds
		}
		if off+len(row) > len(workbuf) {
			return base.ErrBadWorkbufLength
		}
		copy(workbuf[off:off+len(row)], row)
		off += len(row)
	}
	return base.OK
}

// applyDisposal carries out bounds' disposal against dst: a no-op for
// DisposalNone, a fill to the background color for DisposalBackground, or
// a restore from workbuf (populated by an earlier snapshotBounds call, for
// this same bounds) for DisposalPrevious.
func (d *Decoder) applyDisposal(dst *pixel.Buffer, disposal pixel.Disposal, bounds base.Rect, workbuf []byte) base.Status {
	if disposal == pixel.DisposalNone || bounds.Empty() {
		return base.OK
	}
	bpp := dst.Config.Format.BytesPerPixel()
	view, ok := base.Sub(dst.Planes[0], bounds, bpp)
	if !ok {
		return ErrFrameOutOfBounds
	}
	switch disposal {
	case pixel.DisposalBackground:
		fill := d.backgroundColor()
		for y := 0; y < int(bounds.Height()); y++ {
			row, ok := view.Row(y)
			if !ok {
				return ErrFrameOutOfBounds
			}
			for x := 0; x+bpp <= len(row); x += bpp {
				copy(row[x:x+bpp], fill[:bpp])
			}
		}

	case pixel.DisposalPrevious:
		off := 0
		for y := 0; y < int(bounds.Height()); y++ {
			row, ok := view.Row(y)
			if !ok {
				return ErrFrameOutOfBounds
			}
			if off+len(row) > len(workbuf) {
				return base.ErrBadWorkbufLength
			}
			copy(row, workbuf[off:off+len(row)])
			off += len(row)
		}
	}
	return base.OK
}

// rowsInInterlacePass reports how many of height rows a GIF interlace pass
// starting at start and stepping by delta visits.
func rowsInInterlacePass(height, start, delta int32) int32 {
	if start >= height {
		return 0
	}
	return (height-start-1)/delta + 1
}

// interlacedRow maps seq, the sequential order LZW emits rows in, to the
// actual row index within the frame, per GIF's four-pass interlacing
// (starts 0,4,2,1; deltas 8,8,4,2). Non-interlaced frames never call this;
// seq is already the row index.
func interlacedRow(seq, height int32) int32 {
	starts := [4]int32{0, 4, 2, 1}
	deltas := [4]int32{8, 8, 4, 2}
	for pass := 0; pass < 4; pass++ {
		n := rowsInInterlacePass(height, starts[pass], deltas[pass])
		if seq < n {
			return starts[pass] + seq*deltas[pass]
		}
		seq -= n
	}
	return height
}

// swizzleRow converts the n palette-index bytes in d.rowBuf[:n] (one
// fully-decoded row, in decode order seq) and writes them into dst at the
// frame's bounds, remapping seq to the real row index when the frame is
// interlaced.
func (d *Decoder) swizzleRow(dst *pixel.Buffer, n int, seq int32) base.Status {
	y := seq
	if d.frameInterlaced {
		y = interlacedRow(seq, d.frameBounds.Height())
	}
	bpp := dst.Config.Format.BytesPerPixel()
	view, ok := base.Sub(dst.Planes[0], d.frameBounds, bpp)
	if !ok {
		return ErrFrameOutOfBounds
	}
	row, ok := view.Row(int(y))
	if !ok {
		return ErrFrameOutOfBounds
	}
	d.rowSwizzler.Swizzle(row, d.rowBuf[:n])
	lineDirty := base.NewRect(d.frameBounds.MinX, d.frameBounds.MinY+y, d.frameBounds.MinX+int32(n), d.frameBounds.MinY+y+1)
	d.dirtyRect = d.dirtyRect.Union(lineDirty)
	return base.OK
}

// DecodeFrame decodes one frame's pixel data: applies the previous frame's
// disposal (if not already applied), then drives the embedded LZW decoder
// over the sub-block-framed image data one row at a time, swizzling each
// completed row into dst.
func (d *Decoder) DecodeFrame(dst *pixel.Buffer, src *base.IoBuffer, blend pixel.Blend, workbuf []byte, opts *pixel.DecodeOptions) base.Status {
	if s := d.receiver.EnterCoroutine(coroDecodeFrame); !s.IsOK() {
		return s
	}
	status := d.stepFrame(dst, src, blend, workbuf, opts)
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

func (d *Decoder) stepFrame(dst *pixel.Buffer, src *base.IoBuffer, blend pixel.Blend, workbuf []byte, opts *pixel.DecodeOptions) base.Status {
	totalRows := int32(d.frameBounds.Height())
	for {
		switch d.pc {
		case pcFrameReady:
			if !d.prevApplied {
				if s := d.applyDisposal(dst, d.prevDisposal, d.prevBounds, workbuf); !s.IsOK() {
					return s
				}
				d.prevApplied = true
			}
			if d.gceDisposal == pixel.DisposalPrevious {
				if s := d.snapshotBounds(dst, d.frameBounds, workbuf); !s.IsOK() {
					return s
				}
			}
			// QuirkRejectEmptyFrame, if enabled, already rejected an empty
			// frame back in DecodeFrameConfig, before a frame with no rows
			// could ever reach here.

			palette := &d.frameActivePalette
			if opts != nil && opts.Palette != nil {
				palette = opts.Palette
			}
			sw, s := pixel.Prepare(dst.Config.Format, nil, pixel.FormatBGRIndexed, palette, blend)
			if !s.IsOK() {
				return s
			}
			d.rowSwizzler = sw

			d.lzw.Initialize(d.callerVersion, d.libraryVersion, 0, d.frameLZWMinCodeSize)
			d.rowIO = base.IoBuffer{Data: d.rowBuf[:d.frameBounds.Width()]}
			d.lzwSrc = base.IoBuffer{}
			d.decodedRows = 0

			if totalRows == 0 {
				// QuirkRejectEmptyFrame is off: an empty frame decodes
				// trivially, skipping straight to its own sub-block
				// stream (which the encoder still writes, just with no
				// rows) so the cursor ends up in the right place.
				d.pc = pcPixelCheckSurplus
				d.afterSubBlockRefillPC = pcPixelCheckSurplus
				continue
			}
			d.afterSubBlockRefillPC = pcPixelDecodeRow
			d.pc = pcPixelSubBlockHeader

		case pcPixelSubBlockHeader:
			size, s := d.readByte(src)
			if !s.IsOK() {
				return s
			}
			if size == blockTerminator {
				d.lzwSrc = base.IoBuffer{Closed: true}
				d.pc = d.afterSubBlockRefillPC
				continue
			}
			d.subBlockSize = int(size)
			d.subBlockFilled = 0
			d.pc = pcPixelSubBlockData

		case pcPixelSubBlockData:
			if s := d.readFixed(src, d.subBlockData[:d.subBlockSize], &d.subBlockFilled); !s.IsOK() {
				return s
			}
			d.lzwSrc = base.IoBuffer{Data: d.subBlockData[:d.subBlockSize], WI: d.subBlockSize}
			d.pc = d.afterSubBlockRefillPC

		case pcPixelDecodeRow:
			if d.lzwSrc.RI >= d.lzwSrc.WI && !d.lzwSrc.Closed {
				d.afterSubBlockRefillPC = pcPixelDecodeRow
				d.pc = pcPixelSubBlockHeader
				continue
			}
			status := d.lzw.TransformIO(&d.rowIO, &d.lzwSrc, nil)
			switch status {
			case base.SuspensionShortWrite:
				if s := d.swizzleRow(dst, d.rowIO.WI, d.decodedRows); !s.IsOK() {
					return s
				}
				d.decodedRows++
				if d.decodedRows == totalRows {
					d.pc = pcPixelCheckSurplus
					continue
				}
				d.rowIO.RI, d.rowIO.WI = 0, 0

			case base.SuspensionShortRead:
				d.afterSubBlockRefillPC = pcPixelDecodeRow
				d.pc = pcPixelSubBlockHeader

			case base.NoteEndOfData:
				if d.rowIO.WI > 0 {
					if s := d.swizzleRow(dst, d.rowIO.WI, d.decodedRows); !s.IsOK() {
						return s
					}
					d.decodedRows++
				}
				if d.decodedRows < totalRows {
					return ErrTooLittlePixelData
				}
				d.pc = pcPixelTerminator

			default:
				return status
			}

		case pcPixelCheckSurplus:
			if d.lzwSrc.RI >= d.lzwSrc.WI && !d.lzwSrc.Closed {
				d.afterSubBlockRefillPC = pcPixelCheckSurplus
				d.pc = pcPixelSubBlockHeader
				continue
			}
			ignoreSurplus := d.quirks&QuirkIgnoreTooMuchPixelData != 0
			var probe base.IoBuffer
			if ignoreSurplus {
				probe = base.IoBuffer{Data: d.rowBuf[:]}
			}
			status := d.lzw.TransformIO(&probe, &d.lzwSrc, nil)
			switch status {
			case base.NoteEndOfData:
				d.pc = pcPixelTerminator

			case base.SuspensionShortWrite:
				if !ignoreSurplus {
					return ErrTooMuchPixelData
				}
				// Discard and keep draining until lzw itself ends.

			case base.SuspensionShortRead:
				d.afterSubBlockRefillPC = pcPixelCheckSurplus
				d.pc = pcPixelSubBlockHeader

			default:
				return status
			}

		case pcPixelTerminator:
			b, s := d.readByte(src)
			if !s.IsOK() {
				return s
			}
			if b != blockTerminator {
				return ErrBadBlockIntroducer
			}
			d.prevDisposal = d.gceDisposal
			d.prevBounds = d.frameBounds
			d.prevApplied = false
			d.numDecodedFrames++
			d.pc = pcAfterFrame
			return base.OK

		default:
			return base.ErrBadReceiver
		}
	}
}

// TellMeMore copies the pending metadata item's bytes, which the caller
// must have repositioned src to (info.Min, reported via
// NoteMetadataReported's resulting MetadataInfo), into dst. It returns
// SuspensionMispositionedRead if src isn't positioned where expected,
// SuspensionEvenMoreInformation if more of the item remains after this
// call's worth of dst/src room is exhausted, base.OK once the item is
// fully copied, or ErrNoPendingMetadata if there is no outstanding item.
func (d *Decoder) TellMeMore(dstIO *base.IoBuffer, minfo *base.MetadataInfo, src *base.IoBuffer) base.Status {
	if s := d.receiver.CheckCall(); !s.IsOK() {
		return s
	}
	if d.pending == nil {
		return ErrNoPendingMetadata
	}
	if minfo != nil {
		*minfo = d.pending.info
	}
	if src.Position() != d.pending.cursor {
		return base.SuspensionMispositionedRead
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
	return base.OK
}
