package pixel

import "github.com/wuffsgo/puffs/base"

// Blend selects whether a swizzler kernel overwrites the destination (SRC)
// or alpha-composites over it (SRC_OVER), per spec.md §4.6.
type Blend uint8

const (
	BlendSrc Blend = iota
	BlendSrcOver
)

// DecodeOptions carries per-call overrides to ImageDecoder.DecodeFrame.
// Palette, if non-nil, replaces whatever palette the decoder would
// otherwise use (its own embedded one, or none for non-indexed formats) --
// the caller-supplied-palette override every format in this repository
// that has a palette (GIF, BMP) can honor without re-decoding.
type DecodeOptions struct {
	Palette *[1024]byte
}

// ImageDecoder is the capability interface gif.Decoder, bmp.Decoder, and
// wbmp.Decoder all implement, per spec.md §6.
type ImageDecoder interface {
	DecodeImageConfig(dstCfg *Config, src *base.IoBuffer) base.Status
	DecodeFrameConfig(dstCfg *FrameConfig, src *base.IoBuffer) base.Status
	DecodeFrame(dst *Buffer, src *base.IoBuffer, blend Blend, workbuf []byte, opts *DecodeOptions) base.Status
	RestartFrame(index uint32, ioPosition uint64) base.Status
	FrameDirtyRect() base.Rect
	NumAnimationLoops() uint32
	NumDecodedFrameConfigs() uint64
	NumDecodedFrames() uint64
	TellMeMore(dst *base.IoBuffer, minfo *base.MetadataInfo, src *base.IoBuffer) base.Status
	SetReportMetadata(fourcc base.FourCC, on bool) base.Status
	WorkbufLen() (min, max uint64)
	SetQuirkEnabled(quirk uint32, on bool) base.Status
}

// Disposal is how a frame's pixels should be treated before the next frame
// is composited, per the GIF Graphic Control Extension's disposal method.
type Disposal uint8

const (
	DisposalNone       Disposal = iota // leave the frame's pixels in place
	DisposalBackground                 // clear the frame's bounds to the background color
	DisposalPrevious                   // restore whatever was there before this frame
)

// FrameConfig is what decode_frame_config reports: a single frame's bounds
// within the logical image, its disposal and blend behavior, and its
// timing, per spec.md §4.6/§6.
type FrameConfig struct {
	Bounds          base.Rect
	Index           uint32
	IOPosition      uint64
	DurationInTicks uint32 // GIF's native unit: hundredths of a second
	Disposal        Disposal
	Blend           Blend
	BackgroundBGRA  [4]uint8
}

// Swizzler is a prepared (dst_fmt, src_fmt, blend) conversion, built once by
// Prepare and then reused to copy as many whole pixels as dst and src have
// room for.
type Swizzler struct {
	dstFormat Format
	srcFormat Format
	dstBPP    int
	srcBPP    int
	blend     Blend
	kernel    kernelFunc

	// srcPalette is retained (not copied into a dst-space table) when
	// srcFormat is indexed: since every format this package defines shares
	// the same B,G,R,A channel order, there is no per-entry reformatting
	// to precompute, only the composite math every other kernel already
	// does per pixel. See ClosestElement/DESIGN.md for why the optional
	// dst-space-palette precompute spec.md §4.6 allows is skipped here.
	srcPalette *[1024]byte
}

type kernelFunc func(sw *Swizzler, dst, src []byte) (numPixels int)

// Prepare selects a specialized kernel for the (srcFmt, dstFmt, blend)
// triple. Returns ErrUnsupportedPixelSwizzlerOption for any combination
// this package doesn't implement a kernel for.
func Prepare(dstFmt Format, dstPalette *[1024]byte, srcFmt Format, srcPalette *[1024]byte, blend Blend) (*Swizzler, base.Status) {
	sw := &Swizzler{
		dstFormat: dstFmt,
		srcFormat: srcFmt,
		dstBPP:    dstFmt.BytesPerPixel(),
		srcBPP:    srcFmt.BytesPerPixel(),
		blend:     blend,
	}
	if sw.dstBPP == 0 || sw.srcBPP == 0 || sw.dstBPP > 4 || sw.srcBPP > 4 {
		return nil, base.ErrUnsupportedPixelSwizzlerOption
	}

	if srcFmt.Indexed() {
		if srcPalette == nil {
			return nil, base.ErrBadArgument
		}
		sw.srcPalette = srcPalette
		sw.kernel = kernelIndexed
		return sw, base.OK
	}

	if sw.srcBPP == 1 && srcFmt.ChannelWidth(0) <= 8 && srcFmt.NumPlanes() == 1 && !srcFmt.Indexed() {
		sw.kernel = kernelGray
		return sw, base.OK
	}

	if sw.srcBPP >= 3 && sw.dstBPP >= 3 {
		sw.kernel = kernelDirect
		return sw, base.OK
	}

	return nil, base.ErrUnsupportedPixelSwizzlerOption
}

// Swizzle copies as many whole pixels as min(len(dst)/dstBPP,
// len(src)/srcBPP) allows, returning the number of pixels converted.
func (sw *Swizzler) Swizzle(dst, src []byte) int {
	return sw.kernel(sw, dst, src)
}

func (sw *Swizzler) numPixels(dst, src []byte) int {
	n := len(dst) / sw.dstBPP
	if m := len(src) / sw.srcBPP; m < n {
		n = m
	}
	return n
}

// kernelIndexed handles an indexed source: each source byte is a palette
// index, resolved against sw.srcPalette (always BGRA8888-premul, per
// spec.md §3) and then composited exactly like kernelDirect.
func kernelIndexed(sw *Swizzler, dst, src []byte) int {
	n := sw.numPixels(dst, src)
	for i := 0; i < n; i++ {
		idx := int(src[i])
		b, g, r, a := sw.srcPalette[idx*4], sw.srcPalette[idx*4+1], sw.srcPalette[idx*4+2], sw.srcPalette[idx*4+3]
		do := i * sw.dstBPP
		var existing [4]byte
		copy(existing[:sw.dstBPP], dst[do:do+sw.dstBPP])
		narrowInto(dst[do:do+sw.dstBPP], sw.dstFormat, b, g, r, a, AlphaPremul, sw.blend, existing)
	}
	return n
}

// kernelGray handles a single 8-bit (or narrower, caller-unpacked to one
// byte per pixel) luma channel source, treated as opaque gray.
func kernelGray(sw *Swizzler, dst, src []byte) int {
	n := sw.numPixels(dst, src)
	for i := 0; i < n; i++ {
		v := src[i]
		narrowInto(dst[i*sw.dstBPP:(i+1)*sw.dstBPP], sw.dstFormat, v, v, v, 0xff, AlphaOpaque, BlendSrc, [4]byte{})
	}
	return n
}

// kernelDirect handles a 3- or 4-byte BGR(A)-ordered source composited (SRC
// or SRC_OVER) into a 3- or 4-byte BGR(A)-ordered destination (a source
// without an alpha channel is opaque), covering the eight
// kernels spec.md §4.6 describes: {premul, nonpremul} source alpha x {SRC,
// SRC_OVER} blend x {dst has alpha, dst opaque}.
func kernelDirect(sw *Swizzler, dst, src []byte) int {
	n := sw.numPixels(dst, src)
	srcAlpha := sw.srcFormat.AlphaTransparency()
	blend := sw.blend
	for i := 0; i < n; i++ {
		so := i * sw.srcBPP
		do := i * sw.dstBPP
		b, g, r := src[so], src[so+1], src[so+2]
		a := byte(0xff)
		if sw.srcFormat.ChannelWidth(3) > 0 {
			a = src[so+3]
		}
		var existing [4]byte
		copy(existing[:sw.dstBPP], dst[do:do+sw.dstBPP])
		narrowInto(dst[do:do+sw.dstBPP], sw.dstFormat, b, g, r, a, srcAlpha, blend, existing)
	}
	return n
}

// SetBlend replaces the blend mode that Prepare stored. The kernels read it
// on every Swizzle call, so one prepared Swizzler can serve both SRC and
// SRC_OVER draws into the same destination format.
func (sw *Swizzler) SetBlend(b Blend) { sw.blend = b }

// expand16 widens an 8-bit channel to 16-bit by the standard 0x101
// multiply (spec.md §4.6), so 0xff maps to 0xffff rather than 0xff00.
func expand16(c byte) uint32 { return uint32(c) * 0x101 }

func narrow8(c uint32) byte { return byte(c >> 8) }

// narrowInto composites one source pixel (b, g, r, a, in srcAlpha's
// convention) against existing (the current destination pixel; read only
// when blend is BlendSrcOver) and writes the result into out in dstFmt's
// channel layout and alpha convention.
func narrowInto(out []byte, dstFmt Format, b, g, r, a byte, srcAlpha AlphaTransparency, blend Blend, existing [4]byte) {
	sb, sg, sr, sa := expand16(b), expand16(g), expand16(r), expand16(a)
	if srcAlpha == AlphaNonpremul && sa < 0xffff {
		sb = sb * sa / 0xffff
		sg = sg * sa / 0xffff
		sr = sr * sa / 0xffff
	}

	dstHasAlpha := dstFmt.AlphaTransparency().HasAlpha()
	outB, outG, outR, outA := sb, sg, sr, sa

	// SRC_OVER always reads back the existing destination pixel, even when
	// dstFmt carries no alpha channel: an opaque destination is a fully
	// opaque background (da = 0xffff) to composite the source over, not a
	// reason to skip compositing and assume black.
	if blend == BlendSrcOver {
		db, dg, dr := expand16(existing[0]), expand16(existing[1]), expand16(existing[2])
		da := uint32(0xffff)
		if dstHasAlpha {
			da = expand16(existing[3])
			if dstFmt.AlphaTransparency() == AlphaNonpremul && da < 0xffff {
				db = db * da / 0xffff
				dg = dg * da / 0xffff
				dr = dr * da / 0xffff
			}
		}
		invA := 0xffff - sa
		outB = sb + db*invA/0xffff
		outG = sg + dg*invA/0xffff
		outR = sr + dr*invA/0xffff
		outA = sa + da*invA/0xffff
	}

	if !dstHasAlpha {
		outA = 0xffff
	} else if dstFmt.AlphaTransparency() == AlphaNonpremul && outA > 0 && outA < 0xffff {
		outB = outB * 0xffff / outA
		outG = outG * 0xffff / outA
		outR = outR * 0xffff / outA
	}

	n := dstFmt.BytesPerPixel()
	if n > 0 {
		out[0] = narrow8(outB)
	}
	if n > 1 {
		out[1] = narrow8(outG)
	}
	if n > 2 {
		out[2] = narrow8(outR)
	}
	if n > 3 {
		out[3] = narrow8(outA)
	}
}

// ClosestElement quantizes color (b, g, r, a), already in 16-bit
// premultiplied channels, to the index of the nearest entry in palette
// (256 x BGRA8888-premul), by squared distance. Ties favor the smaller
// index, per spec.md §4.6.
func ClosestElement(palette *[1024]byte, b, g, r, a uint16) int {
	best, bestDist := 0, uint64(1)<<63
	for i := 0; i < 256; i++ {
		pb := expand16(palette[i*4])
		pg := expand16(palette[i*4+1])
		pr := expand16(palette[i*4+2])
		pa := expand16(palette[i*4+3])
		db := int64(pb) - int64(b)
		dg := int64(pg) - int64(g)
		dr := int64(pr) - int64(r)
		da := int64(pa) - int64(a)
		dist := uint64(db*db + dg*dg + dr*dr + da*da)
		if dist < bestDist {
			best, bestDist = i, dist
		}
	}
	return best
}
