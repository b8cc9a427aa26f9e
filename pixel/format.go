// Package pixel models pixel formats and pixel buffers (spec.md §3, §4.6)
// and the prepared-conversion-kernel swizzler every image decoder in this
// repository (gif, bmp, wbmp) drives to write decoded pixels into a
// caller-owned destination buffer. It also defines the ImageDecoder
// capability interface: it has to live here rather than in base, since an
// ImageDecoder's methods are expressed in terms of pixel.Buffer and
// pixel.Config, and base must not import the packages built on top of it.
package pixel

import "github.com/wuffsgo/puffs/base"

// channelWidths is the closed set of bit widths a pixel format's channels
// may use, per spec.md §3: "four channel widths (one nibble each drawn
// from the set {0,1,2,3,4,5,6,7,8,10,12,16,24,32,48,64})". Exactly 16
// members, so each channel's width is stored as a 4-bit index into this
// table rather than as a literal bit count.
var channelWidths = [16]uint8{0, 1, 2, 3, 4, 5, 6, 7, 8, 10, 12, 16, 24, 32, 48, 64}

var channelWidthIndex = func() map[uint8]uint8 {
	m := make(map[uint8]uint8, len(channelWidths))
	for i, w := range channelWidths {
		m[w] = uint8(i)
	}
	return m
}()

// AlphaTransparency is the 2-bit alpha-handling mode a Format carries.
type AlphaTransparency uint8

const (
	AlphaOpaque    AlphaTransparency = 0
	AlphaNonpremul AlphaTransparency = 1
	AlphaPremul    AlphaTransparency = 2
	AlphaBinary    AlphaTransparency = 3
)

func (a AlphaTransparency) HasAlpha() bool { return a != AlphaOpaque }

// Format is a packed 32-bit pixel-format descriptor: plane count, indexed
// flag, four nibble-encoded channel widths, and an alpha-transparency mode.
// The zero Format is invalid (zero planes); use one of the predefined
// formats below or NewFormat.
//
// Every multi-channel format this package defines uses Blue, Green, Red,
// Alpha channel order (channels 0..3 respectively) — the order GIF and BMP
// pixel data and palettes already use on the wire. This repository never
// needs to decode directly into an RGBA-ordered destination (an RGBA PNG
// export, if wanted, goes through image/color.NRGBA in cmd/puffscat, a
// separate concern from this package), so unlike wuffs' own pixel format
// encoding, channel order isn't a separate field here.
type Format uint32

const (
	formatPlanesShift = 0
	formatPlanesBits  = 2 // numPlanes-1, so 1..4 planes

	formatIndexedShift = formatPlanesShift + formatPlanesBits // 2
	formatIndexedBits  = 1

	formatAlphaShift = formatIndexedShift + formatIndexedBits // 3
	formatAlphaBits  = 2

	formatChannel0Shift = formatAlphaShift + formatAlphaBits // 5
	formatChannelBits   = 4
	formatChannel1Shift = formatChannel0Shift + formatChannelBits  // 9
	formatChannel2Shift = formatChannel1Shift + formatChannelBits  // 13
	formatChannel3Shift = formatChannel2Shift + formatChannelBits  // 17
)

// NewFormat packs a pixel format descriptor. numPlanes must be in [1,4];
// each of channelWidths[0:4] must be a member of the channelWidths table
// above (use 0 for channels the format doesn't use). ok is false if either
// constraint is violated.
func NewFormat(numPlanes int, indexed bool, alpha AlphaTransparency, widths [4]uint8) (f Format, ok bool) {
	if numPlanes < 1 || numPlanes > 4 {
		return 0, false
	}
	if alpha > AlphaBinary {
		return 0, false
	}
	var idx [4]uint8
	for i, w := range widths {
		bits, found := channelWidthIndex[w]
		if !found {
			return 0, false
		}
		idx[i] = bits
	}
	v := uint32(numPlanes-1) << formatPlanesShift
	if indexed {
		v |= 1 << formatIndexedShift
	}
	v |= uint32(alpha) << formatAlphaShift
	v |= uint32(idx[0]) << formatChannel0Shift
	v |= uint32(idx[1]) << formatChannel1Shift
	v |= uint32(idx[2]) << formatChannel2Shift
	v |= uint32(idx[3]) << formatChannel3Shift
	return Format(v), true
}

func (f Format) NumPlanes() int {
	return int((uint32(f)>>formatPlanesShift)&(1<<formatPlanesBits-1)) + 1
}

func (f Format) Indexed() bool {
	return (uint32(f)>>formatIndexedShift)&(1<<formatIndexedBits-1) != 0
}

func (f Format) AlphaTransparency() AlphaTransparency {
	return AlphaTransparency((uint32(f) >> formatAlphaShift) & (1<<formatAlphaBits - 1))
}

// ChannelWidth returns the bit width of channel i (0..3), 0 if unused.
func (f Format) ChannelWidth(i int) uint8 {
	var shift uint32
	switch i {
	case 0:
		shift = formatChannel0Shift
	case 1:
		shift = formatChannel1Shift
	case 2:
		shift = formatChannel2Shift
	case 3:
		shift = formatChannel3Shift
	default:
		return 0
	}
	return channelWidths[(uint32(f)>>shift)&(1<<formatChannelBits-1)]
}

// BitsPerPixel sums the active channel widths across all four channel
// slots (indexed formats report the index width, typically 8 or less; the
// palette entries themselves are always BGRA8888-premul and aren't
// counted here).
func (f Format) BitsPerPixel() int {
	n := 0
	for i := 0; i < 4; i++ {
		n += int(f.ChannelWidth(i))
	}
	return n
}

// BytesPerPixel rounds BitsPerPixel up to a whole byte count; pixel data is
// always byte-aligned per pixel even when BitsPerPixel() isn't a multiple
// of 8 (e.g. 1-bit WBMP samples are unpacked to one byte per pixel before
// reaching the swizzler).
func (f Format) BytesPerPixel() int {
	return (f.BitsPerPixel() + 7) / 8
}

// Predefined formats covering every wire format this repository decodes.
var (
	// FormatBGRA8888 is four 8-bit channels, order B,G,R,A, non-premultiplied
	// alpha: the canonical "fully general" destination format.
	FormatBGRA8888 = mustFormat(1, false, AlphaNonpremul, [4]uint8{8, 8, 8, 8})

	// FormatBGRA8888Premul is the same channel layout with premultiplied
	// alpha, the format GIF/BMP palettes are always stored in.
	FormatBGRA8888Premul = mustFormat(1, false, AlphaPremul, [4]uint8{8, 8, 8, 8})

	// FormatBGRX8888 is three 8-bit channels (B, G, R) with no stored
	// alpha, 3 bytes per pixel, always opaque: typical of a flattened
	// BMP/GIF frame with no transparency.
	FormatBGRX8888 = mustFormat(1, false, AlphaOpaque, [4]uint8{8, 8, 8, 0})

	// FormatGray8 is a single 8-bit luma channel, used for WBMP's unpacked
	// one-byte-per-pixel intermediate form.
	FormatGray8 = mustFormat(1, false, AlphaOpaque, [4]uint8{8, 0, 0, 0})

	// FormatBGRIndexed is an 8-bit palette index into a BGRA8888-premul
	// 256-entry palette, GIF's and BMP's native indexed pixel format.
	// AlphaBinary describes the image's transparency character (any given
	// palette entry is either fully opaque or fully transparent, GIF's
	// only transparency model) -- the palette bytes themselves are always
	// stored premultiplied regardless of this mode, per spec.md §3.
	FormatBGRIndexed = mustFormat(1, true, AlphaBinary, [4]uint8{8, 0, 0, 0})

	// FormatBinary1 is a single 1-bit channel, WBMP's packed wire format
	// before row unpacking.
	FormatBinary1 = mustFormat(1, false, AlphaOpaque, [4]uint8{1, 0, 0, 0})
)

func mustFormat(numPlanes int, indexed bool, alpha AlphaTransparency, widths [4]uint8) Format {
	f, ok := NewFormat(numPlanes, indexed, alpha, widths)
	if !ok {
		panic("pixel: invalid predefined format")
	}
	return f
}

// Config is the image-level configuration decode_image_config reports:
// overall pixel dimensions and the format the decoder will produce.
type Config struct {
	Format        Format
	Width, Height uint32
}

// Buffer is a decode destination: a Config plus up to four caller-owned
// planes and, for indexed formats, a 1024-byte (256 x BGRA8888-premul)
// palette, per spec.md §3 "Pixel buffer".
type Buffer struct {
	Config  Config
	Planes  [4]base.Table2D
	Palette [1024]byte
}

// PaletteColor returns the (b, g, r, a) premultiplied bytes of palette
// entry i (0..255).
func (b *Buffer) PaletteColor(i int) (blue, green, red, alpha byte) {
	o := i * 4
	return b.Palette[o], b.Palette[o+1], b.Palette[o+2], b.Palette[o+3]
}

// SetPaletteColor writes palette entry i.
func (b *Buffer) SetPaletteColor(i int, blue, green, red, alpha byte) {
	o := i * 4
	b.Palette[o], b.Palette[o+1], b.Palette[o+2], b.Palette[o+3] = blue, green, red, alpha
}
