package gif

import (
	"bytes"
	stdlzw "compress/lzw"
	"image"
	"image/color"
	"image/draw"
	stdgif "image/gif"
	"testing"

	"github.com/wuffsgo/puffs/base"
	"github.com/wuffsgo/puffs/pixel"
)

func newInitializedDecoder(t *testing.T, quirks ...uint32) *Decoder {
	t.Helper()
	d := &Decoder{}
	v := base.Version{Major: 1, Minor: 0}
	if s := d.Initialize(v, v, 0); !s.IsOK() {
		t.Fatalf("Initialize() = %v, want OK", s)
	}
	for _, q := range quirks {
		if s := d.SetQuirkEnabled(q, true); !s.IsOK() {
			t.Fatalf("SetQuirkEnabled(%d) = %v, want OK", q, s)
		}
	}
	return d
}

// decodeAll drives a Decoder across every frame of data, compositing each
// frame into one caller-owned canvas, mirroring how an animated-GIF viewer
// would call this package.
func decodeAll(t *testing.T, d *Decoder, data []byte, dstFmt pixel.Format, blend pixel.Blend) (pixel.Config, []byte, []pixel.FrameConfig) {
	t.Helper()
	src := &base.IoBuffer{Data: data, WI: len(data), Closed: true}

	var cfg pixel.Config
	if s := d.DecodeImageConfig(&cfg, src); !s.IsOK() {
		t.Fatalf("DecodeImageConfig() = %v, want OK", s)
	}

	bpp := dstFmt.BytesPerPixel()
	canvas := make([]byte, int(cfg.Width)*int(cfg.Height)*bpp)
	plane, ok := base.NewTable2D(canvas, int(cfg.Width)*bpp, int(cfg.Height), int(cfg.Width)*bpp)
	if !ok {
		t.Fatalf("NewTable2D() ok = false")
	}
	buf := &pixel.Buffer{Config: pixel.Config{Format: dstFmt, Width: cfg.Width, Height: cfg.Height}}
	buf.Planes[0] = plane

	_, workMax := d.WorkbufLen()
	workbuf := make([]byte, workMax)

	var frames []pixel.FrameConfig
	for {
		var fc pixel.FrameConfig
		status := d.DecodeFrameConfig(&fc, src)
		if status == base.NoteEndOfData {
			break
		}
		if !status.IsOK() {
			t.Fatalf("DecodeFrameConfig() = %v, want OK or end_of_data", status)
		}
		frames = append(frames, fc)
		if s := d.DecodeFrame(buf, src, blend, workbuf, nil); !s.IsOK() {
			t.Fatalf("DecodeFrame() = %v, want OK", s)
		}
	}
	return cfg, canvas, frames
}

// --- Manual GIF byte construction, for tests that need exact control over
// the wire bytes (interlacing, quirks, metadata extensions) that the
// standard library's encoder won't produce. ---

type gceSpec struct {
	disposal         byte
	transparent      bool
	transparentIndex byte
	delay            uint16
}

type appExtSpec struct {
	id   string
	data []byte
}

type frameSpec struct {
	gce                      *gceSpec
	left, top, width, height int
	interlaced               bool
	localPalette             [][3]byte
	minCodeSize              int
	pixels                   []byte // palette indices, in the order LZW must emit them
}

type gifSpec struct {
	version         string
	width, height   int
	globalPalette   [][3]byte
	backgroundIndex byte
	appExts         []appExtSpec
	frames          []frameSpec
}

func paletteSizeExp(n int) byte {
	var exp byte
	for (2 << exp) < n {
		exp++
	}
	return exp
}

func writePalette(buf *bytes.Buffer, palette [][3]byte) {
	n := int(2 << paletteSizeExp(len(palette)))
	for i := 0; i < n; i++ {
		if i < len(palette) {
			buf.Write(palette[i][:])
		} else {
			buf.Write([]byte{0, 0, 0})
		}
	}
}

func writeSubBlocks(buf *bytes.Buffer, data []byte) {
	for len(data) > 0 {
		n := len(data)
		if n > 255 {
			n = 255
		}
		buf.WriteByte(byte(n))
		buf.Write(data[:n])
		data = data[n:]
	}
	buf.WriteByte(0)
}

func lzwEncode(t *testing.T, data []byte, minCodeSize int) []byte {
	t.Helper()
	var buf bytes.Buffer
	w := stdlzw.NewWriter(&buf, stdlzw.LSB, minCodeSize)
	if _, err := w.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func buildGIF(t *testing.T, spec gifSpec) []byte {
	t.Helper()
	var buf bytes.Buffer
	version := spec.version
	if version == "" {
		version = "GIF89a"
	}
	buf.WriteString(version)
	w16 := func(v uint16) { buf.WriteByte(byte(v)); buf.WriteByte(byte(v >> 8)) }
	w16(uint16(spec.width))
	w16(uint16(spec.height))

	packed := byte(0)
	if len(spec.globalPalette) > 0 {
		packed |= 0x80
		packed |= paletteSizeExp(len(spec.globalPalette))
	}
	buf.WriteByte(packed)
	buf.WriteByte(spec.backgroundIndex)
	buf.WriteByte(0) // pixel aspect ratio

	if len(spec.globalPalette) > 0 {
		writePalette(&buf, spec.globalPalette)
	}

	for _, ext := range spec.appExts {
		buf.WriteByte(extIntroducer)
		buf.WriteByte(extApplication)
		buf.WriteByte(appBlockSize)
		buf.WriteString(ext.id)
		writeSubBlocks(&buf, ext.data)
	}

	for _, f := range spec.frames {
		if f.gce != nil {
			buf.WriteByte(extIntroducer)
			buf.WriteByte(extGraphicControl)
			buf.WriteByte(4)
			p := f.gce.disposal << 2
			if f.gce.transparent {
				p |= 0x01
			}
			buf.WriteByte(p)
			w16(f.gce.delay)
			buf.WriteByte(f.gce.transparentIndex)
			buf.WriteByte(0)
		}

		buf.WriteByte(imageSeparator)
		w16(uint16(f.left))
		w16(uint16(f.top))
		w16(uint16(f.width))
		w16(uint16(f.height))
		ipacked := byte(0)
		if f.interlaced {
			ipacked |= 0x40
		}
		if len(f.localPalette) > 0 {
			ipacked |= 0x80
			ipacked |= paletteSizeExp(len(f.localPalette))
		}
		buf.WriteByte(ipacked)
		if len(f.localPalette) > 0 {
			writePalette(&buf, f.localPalette)
		}
		buf.WriteByte(byte(f.minCodeSize))
		writeSubBlocks(&buf, lzwEncode(t, f.pixels, f.minCodeSize))
	}

	buf.WriteByte(trailer)
	return buf.Bytes()
}

func TestDecodeImageConfig(t *testing.T) {
	data := buildGIF(t, gifSpec{
		width: 3, height: 2,
		globalPalette: [][3]byte{{255, 0, 0}, {0, 255, 0}},
		frames: []frameSpec{{
			left: 0, top: 0, width: 3, height: 2,
			minCodeSize: 2,
			pixels:      []byte{0, 1, 0, 1, 0, 1},
		}},
	})
	d := newInitializedDecoder(t)
	cfg, _, _ := decodeAll(t, d, data, pixel.FormatBGRX8888, pixel.BlendSrc)
	if cfg.Width != 3 || cfg.Height != 2 {
		t.Errorf("config = %dx%d, want 3x2", cfg.Width, cfg.Height)
	}
	if cfg.Format != pixel.FormatBGRIndexed {
		t.Errorf("config.Format = %v, want FormatBGRIndexed", cfg.Format)
	}
}

func TestDecodeSingleOpaqueFrame(t *testing.T) {
	palette := [][3]byte{{10, 20, 30}, {40, 50, 60}}
	data := buildGIF(t, gifSpec{
		width: 2, height: 2,
		globalPalette: palette,
		frames: []frameSpec{{
			left: 0, top: 0, width: 2, height: 2,
			minCodeSize: 2,
			pixels:      []byte{0, 1, 1, 0},
		}},
	})
	d := newInitializedDecoder(t)
	_, canvas, frames := decodeAll(t, d, data, pixel.FormatBGRX8888, pixel.BlendSrc)
	if len(frames) != 1 {
		t.Fatalf("len(frames) = %d, want 1", len(frames))
	}
	want := []byte{
		30, 20, 10, 60, 50, 40,
		60, 50, 40, 30, 20, 10,
	}
	if !bytes.Equal(canvas, want) {
		t.Fatalf("canvas = %v, want %v", canvas, want)
	}
}

func TestDecodeFrameConfigFields(t *testing.T) {
	palette := [][3]byte{{0, 0, 0}, {255, 255, 255}}
	data := buildGIF(t, gifSpec{
		width: 4, height: 4,
		globalPalette: palette,
		frames: []frameSpec{
			{
				gce:         &gceSpec{disposal: 2, delay: 50},
				left:        1, top: 1, width: 2, height: 2,
				minCodeSize: 2,
				pixels:      []byte{0, 0, 0, 0},
			},
		},
	})
	d := newInitializedDecoder(t)
	_, _, frames := decodeAll(t, d, data, pixel.FormatBGRX8888, pixel.BlendSrc)
	if len(frames) != 1 {
		t.Fatalf("len(frames) = %d, want 1", len(frames))
	}
	fc := frames[0]
	wantBounds := base.NewRect(1, 1, 3, 3)
	if fc.Bounds != wantBounds {
		t.Errorf("Bounds = %+v, want %+v", fc.Bounds, wantBounds)
	}
	if fc.Index != 0 {
		t.Errorf("Index = %d, want 0", fc.Index)
	}
	if fc.DurationInTicks != 50 {
		t.Errorf("DurationInTicks = %d, want 50", fc.DurationInTicks)
	}
	if fc.Disposal != pixel.DisposalBackground {
		t.Errorf("Disposal = %v, want DisposalBackground", fc.Disposal)
	}
	if d.NumDecodedFrameConfigs() != 1 {
		t.Errorf("NumDecodedFrameConfigs() = %d, want 1", d.NumDecodedFrameConfigs())
	}
	if d.NumDecodedFrames() != 1 {
		t.Errorf("NumDecodedFrames() = %d, want 1", d.NumDecodedFrames())
	}
}

// referenceComposite builds the expected fully-composited canvas for a
// decoded stdgif.GIF by hand, applying the same lazy-disposal timing
// gif.Decoder implements: frame i's disposal is applied to the canvas right
// before frame i+1 is drawn, never before frame i itself is drawn.
func referenceComposite(g *stdgif.GIF) *image.NRGBA {
	b := image.Rect(0, 0, g.Config.Width, g.Config.Height)
	canvas := image.NewNRGBA(b)

	var prevSnapshot *image.NRGBA
	var prevBounds image.Rectangle
	var prevDisposal byte

	for i, frame := range g.Image {
		if i > 0 {
			switch prevDisposal {
			case stdgif.DisposalBackground:
				draw.Draw(canvas, prevBounds, image.Transparent, image.Point{}, draw.Src)
			case stdgif.DisposalPrevious:
				draw.Draw(canvas, prevBounds, prevSnapshot, prevBounds.Min, draw.Src)
			}
		}

		fb := frame.Bounds()
		disposal := byte(0)
		if i < len(g.Disposal) {
			disposal = g.Disposal[i]
		}
		if disposal == stdgif.DisposalPrevious {
			snap := image.NewNRGBA(fb)
			draw.Draw(snap, fb, canvas, fb.Min, draw.Src)
			prevSnapshot = snap
		}
		draw.Draw(canvas, fb, frame, fb.Min, draw.Over)

		prevBounds, prevDisposal = fb, disposal
	}
	return canvas
}

func comparePixels(t *testing.T, want *image.NRGBA, gotBGRA []byte, width, height int) {
	t.Helper()
	for y := 0; y < height; y++ {
		for x := 0; x < width; x++ {
			wo := want.PixOffset(x, y)
			wr, wg, wb, wa := want.Pix[wo], want.Pix[wo+1], want.Pix[wo+2], want.Pix[wo+3]
			go_ := (y*width + x) * 4
			gb, gg, gr, ga := gotBGRA[go_], gotBGRA[go_+1], gotBGRA[go_+2], gotBGRA[go_+3]
			if wr != gr || wg != gg || wb != gb || wa != ga {
				t.Fatalf("pixel (%d,%d) = BGRA(%d,%d,%d,%d), want BGRA(%d,%d,%d,%d)",
					x, y, gb, gg, gr, ga, wb, wg, wr, wa)
			}
		}
	}
}

// TestAnimationCompositing cross-checks gif.Decoder's disposal/blend
// handling against an independent reference built from the standard
// library's own GIF decoder plus image/draw compositing, across all three
// disposal methods in one animation.
func TestAnimationCompositing(t *testing.T) {
	red := color.RGBA{R: 255, A: 255}
	green := color.RGBA{G: 255, A: 255}
	blue := color.RGBA{B: 255, A: 255}
	transparent := color.RGBA{}
	palette := color.Palette{red, green, blue, transparent}

	full := image.Rect(0, 0, 4, 4)
	frame0 := image.NewPaletted(full, palette)
	for i := range frame0.Pix {
		frame0.Pix[i] = 0 // red
	}

	r1 := image.Rect(1, 1, 3, 3)
	frame1 := image.NewPaletted(r1, palette)
	for i := range frame1.Pix {
		frame1.Pix[i] = 1 // green
	}

	r2 := image.Rect(0, 0, 2, 2)
	frame2 := image.NewPaletted(r2, palette)
	for i := range frame2.Pix {
		frame2.Pix[i] = 2 // blue
	}

	r3 := image.Rect(2, 2, 4, 4)
	frame3 := image.NewPaletted(r3, palette)
	for i := range frame3.Pix {
		frame3.Pix[i] = 3 // transparent: reveals whatever disposal left behind
	}

	g := &stdgif.GIF{
		Image:    []*image.Paletted{frame0, frame1, frame2, frame3},
		Delay:    []int{5, 5, 5, 5},
		Disposal: []byte{stdgif.DisposalNone, stdgif.DisposalBackground, stdgif.DisposalPrevious, stdgif.DisposalNone},
		Config:   image.Config{ColorModel: palette, Width: 4, Height: 4},
	}

	var buf bytes.Buffer
	if err := stdgif.EncodeAll(&buf, g); err != nil {
		t.Fatalf("EncodeAll() error = %v", err)
	}
	data := buf.Bytes()

	// Re-decode with the standard library to get ground truth for the
	// disposal/delay values actually round-tripped through the wire bytes,
	// rather than trusting our own encode-time assumptions.
	decoded, err := stdgif.DecodeAll(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("stdlib DecodeAll() error = %v", err)
	}
	want := referenceComposite(decoded)

	d := newInitializedDecoder(t)
	_, canvas, frames := decodeAll(t, d, data, pixel.FormatBGRA8888, pixel.BlendSrcOver)
	if len(frames) != 4 {
		t.Fatalf("len(frames) = %d, want 4", len(frames))
	}
	comparePixels(t, want, canvas, 4, 4)
}

// newCanvas builds a fresh pixel.Buffer and workbuf sized for cfg, for tests
// that drive decode_frame_config/decode_frame directly instead of through
// decodeAll.
func newCanvas(d *Decoder, cfg pixel.Config, fmt pixel.Format) (*pixel.Buffer, []byte) {
	bpp := fmt.BytesPerPixel()
	canvas := make([]byte, int(cfg.Width)*int(cfg.Height)*bpp)
	plane, _ := base.NewTable2D(canvas, int(cfg.Width)*bpp, int(cfg.Height), int(cfg.Width)*bpp)
	buf := &pixel.Buffer{Config: pixel.Config{Format: fmt, Width: cfg.Width, Height: cfg.Height}}
	buf.Planes[0] = plane
	_, workMax := d.WorkbufLen()
	return buf, make([]byte, workMax)
}

// TestRestartFrameSameFrame exercises the shortcut path: immediately after
// decode_frame finishes frame N, restart_frame(N, ...) re-enters decode_frame
// for that same frame without re-parsing its config, trusting the caller to
// have repositioned src to the frame's own pixel data.
func TestRestartFrameSameFrame(t *testing.T) {
	palette := [][3]byte{{100, 110, 120}, {10, 20, 30}}
	data := buildGIF(t, gifSpec{
		width: 2, height: 2,
		globalPalette: palette,
		frames: []frameSpec{
			{left: 0, top: 0, width: 2, height: 2, minCodeSize: 2, pixels: []byte{0, 1, 1, 0}},
		},
	})

	d := newInitializedDecoder(t)
	src := &base.IoBuffer{Data: data, WI: len(data), Closed: true}
	var cfg pixel.Config
	if s := d.DecodeImageConfig(&cfg, src); !s.IsOK() {
		t.Fatalf("DecodeImageConfig() = %v, want OK", s)
	}
	buf, workbuf := newCanvas(d, cfg, pixel.FormatBGRX8888)

	var fc pixel.FrameConfig
	if s := d.DecodeFrameConfig(&fc, src); !s.IsOK() {
		t.Fatalf("DecodeFrameConfig() = %v, want OK", s)
	}
	if s := d.DecodeFrame(buf, src, pixel.BlendSrc, workbuf, nil); !s.IsOK() {
		t.Fatalf("DecodeFrame() = %v, want OK", s)
	}
	firstRun := append([]byte(nil), buf.Planes[0].Data...)

	if s := d.RestartFrame(fc.Index, fc.IOPosition); !s.IsOK() {
		t.Fatalf("RestartFrame() = %v, want OK", s)
	}
	src.RI = int(fc.IOPosition)
	for i := range buf.Planes[0].Data {
		buf.Planes[0].Data[i] = 0
	}
	if s := d.DecodeFrame(buf, src, pixel.BlendSrc, workbuf, nil); !s.IsOK() {
		t.Fatalf("DecodeFrame() after restart = %v, want OK", s)
	}

	if !bytes.Equal(firstRun, buf.Planes[0].Data) {
		t.Fatalf("canvas after restart = %v, want %v (same frame replayed identically)", buf.Planes[0].Data, firstRun)
	}
}

// TestRestartFrameBackToZero exercises the other accepted restart target:
// looping an animation by restarting at frame 0 from a later frame, which
// reparses the stream from its header.
func TestRestartFrameBackToZero(t *testing.T) {
	palette := [][3]byte{{100, 110, 120}, {10, 20, 30}}
	data := buildGIF(t, gifSpec{
		width: 2, height: 2,
		globalPalette: palette,
		frames: []frameSpec{
			{left: 0, top: 0, width: 2, height: 2, minCodeSize: 2, pixels: []byte{0, 1, 1, 0}},
			{left: 0, top: 0, width: 2, height: 2, minCodeSize: 2, pixels: []byte{1, 0, 0, 1}},
		},
	})

	d := newInitializedDecoder(t)
	_, _, frames := decodeAll(t, d, data, pixel.FormatBGRX8888, pixel.BlendSrc)
	if len(frames) != 2 {
		t.Fatalf("len(frames) = %d, want 2", len(frames))
	}

	if s := d.RestartFrame(0, 0); !s.IsOK() {
		t.Fatalf("RestartFrame(0, 0) = %v, want OK", s)
	}

	src := &base.IoBuffer{Data: data, WI: len(data), Closed: true}
	var cfg pixel.Config
	if s := d.DecodeImageConfig(&cfg, src); !s.IsOK() {
		t.Fatalf("DecodeImageConfig() after restart = %v, want OK", s)
	}
	buf, workbuf := newCanvas(d, cfg, pixel.FormatBGRX8888)

	var fc pixel.FrameConfig
	if s := d.DecodeFrameConfig(&fc, src); !s.IsOK() {
		t.Fatalf("DecodeFrameConfig() after restart = %v, want OK", s)
	}
	if fc.Index != 0 {
		t.Fatalf("Index after restart = %d, want 0", fc.Index)
	}
	if s := d.DecodeFrame(buf, src, pixel.BlendSrc, workbuf, nil); !s.IsOK() {
		t.Fatalf("DecodeFrame() after restart = %v, want OK", s)
	}

	want := []byte{
		120, 110, 100, 30, 20, 10,
		30, 20, 10, 120, 110, 100,
	}
	if !bytes.Equal(buf.Planes[0].Data, want) {
		t.Fatalf("canvas after restart to frame 0 = %v, want %v", buf.Planes[0].Data, want)
	}
}

// TestInterlacedFrame checks that LZW's row-emission order is correctly
// unscrambled by GIF's four-pass interlacing before rows land in the
// destination buffer.
func TestInterlacedFrame(t *testing.T) {
	const width, height = 2, 8
	rows := make([][]byte, height)
	for y := 0; y < height; y++ {
		row := make([]byte, width)
		for x := range row {
			row[x] = byte(y)
		}
		rows[y] = row
	}
	// GIF's four interlace passes (starts 0,4,2,1; deltas 8,8,4,2) visit an
	// 8-row image in this sequential order.
	seqOrder := []int{0, 4, 2, 6, 1, 3, 5, 7}
	pixelData := make([]byte, 0, width*height)
	for _, y := range seqOrder {
		pixelData = append(pixelData, rows[y]...)
	}

	var palette [8][3]byte
	for i := range palette {
		palette[i] = [3]byte{byte(i * 10), byte(i * 10), byte(i * 10)}
	}

	data := buildGIF(t, gifSpec{
		width: width, height: height,
		globalPalette: palette[:],
		frames: []frameSpec{{
			left: 0, top: 0, width: width, height: height,
			interlaced:  true,
			minCodeSize: 3,
			pixels:      pixelData,
		}},
	})

	d := newInitializedDecoder(t)
	cfg, canvas, _ := decodeAll(t, d, data, pixel.FormatBGRX8888, pixel.BlendSrc)
	if cfg.Width != width || cfg.Height != height {
		t.Fatalf("config = %dx%d, want %dx%d", cfg.Width, cfg.Height, width, height)
	}
	bpp := pixel.FormatBGRX8888.BytesPerPixel()
	for y := 0; y < height; y++ {
		want := byte(y * 10)
		for x := 0; x < width; x++ {
			off := (y*width + x) * bpp
			if canvas[off] != want || canvas[off+1] != want || canvas[off+2] != want {
				t.Fatalf("pixel (%d,%d) = %v, want gray %d", x, y, canvas[off:off+bpp], want)
			}
		}
	}
}

func TestMetadataRedirectionXMP(t *testing.T) {
	payload := []byte("this is some xmp metadata payload bytes")
	data := buildGIF(t, gifSpec{
		width: 1, height: 1,
		globalPalette: [][3]byte{{1, 2, 3}},
		appExts:       []appExtSpec{{id: appIDXMP, data: payload}},
		frames: []frameSpec{{
			left: 0, top: 0, width: 1, height: 1,
			minCodeSize: 2,
			pixels:      []byte{0},
		}},
	})

	d := newInitializedDecoder(t)
	if s := d.SetReportMetadata(base.NewFourCC("XMP "), true); !s.IsOK() {
		t.Fatalf("SetReportMetadata() = %v, want OK", s)
	}

	src := &base.IoBuffer{Data: data, WI: len(data), Closed: true}
	var cfg pixel.Config
	if s := d.DecodeImageConfig(&cfg, src); !s.IsOK() {
		t.Fatalf("DecodeImageConfig() = %v, want OK", s)
	}

	var fc pixel.FrameConfig
	status := d.DecodeFrameConfig(&fc, src)
	if status != base.NoteMetadataReported {
		t.Fatalf("DecodeFrameConfig() = %v, want NoteMetadataReported", status)
	}

	var minfo base.MetadataInfo
	var got []byte
	dstBuf := &base.IoBuffer{Data: make([]byte, 7)}
	for {
		dstBuf.RI, dstBuf.WI = 0, 0
		status = d.TellMeMore(dstBuf, &minfo, src)
		if status == base.SuspensionMispositionedRead {
			src.RI = int(minfo.Min)
			continue
		}
		got = append(got, dstBuf.Data[:dstBuf.WI]...)
		if status == base.OK {
			break
		}
		if status != base.SuspensionEvenMoreInformation {
			t.Fatalf("TellMeMore() = %v, want OK or a suspension", status)
		}
	}
	if !bytes.Equal(got, payload) {
		t.Fatalf("TellMeMore() payload = %q, want %q", got, payload)
	}

	if s := d.DecodeFrameConfig(&fc, src); !s.IsOK() {
		t.Fatalf("DecodeFrameConfig() after metadata = %v, want OK", s)
	}
	if fc.Bounds != base.NewRect(0, 0, 1, 1) {
		t.Errorf("Bounds = %+v, want the 1x1 frame", fc.Bounds)
	}
}

func TestQuirkRejectEmptyPaletteNeedsNoPaletteAtAll(t *testing.T) {
	// No global color table and no local color table: indices in this
	// frame's pixel data resolve against nothing.
	data := buildGIF(t, gifSpec{
		width: 1, height: 1,
		frames: []frameSpec{{
			left: 0, top: 0, width: 1, height: 1,
			minCodeSize: 2,
			pixels:      []byte{0},
		}},
	})

	d := newInitializedDecoder(t, QuirkRejectEmptyPalette)
	src := &base.IoBuffer{Data: data, WI: len(data), Closed: true}
	var cfg pixel.Config
	if s := d.DecodeImageConfig(&cfg, src); !s.IsOK() {
		t.Fatalf("DecodeImageConfig() = %v, want OK", s)
	}
	var fc pixel.FrameConfig
	if s := d.DecodeFrameConfig(&fc, src); s != ErrEmptyPalette {
		t.Fatalf("DecodeFrameConfig() = %v, want %v", s, ErrEmptyPalette)
	}
}

func TestQuirkRejectEmptyPaletteOffAcceptsNoPalette(t *testing.T) {
	data := buildGIF(t, gifSpec{
		width: 1, height: 1,
		frames: []frameSpec{{
			left: 0, top: 0, width: 1, height: 1,
			minCodeSize: 2,
			pixels:      []byte{0},
		}},
	})
	d := newInitializedDecoder(t)
	_, _, frames := decodeAll(t, d, data, pixel.FormatBGRX8888, pixel.BlendSrc)
	if len(frames) != 1 {
		t.Fatalf("len(frames) = %d, want 1", len(frames))
	}
}

func TestQuirkRejectEmptyFrame(t *testing.T) {
	// A frame whose image descriptor declares zero width is empty.
	data := buildGIF(t, gifSpec{
		width: 2, height: 2,
		globalPalette: [][3]byte{{0, 0, 0}, {255, 255, 255}},
		frames: []frameSpec{{
			left: 0, top: 0, width: 0, height: 2,
			minCodeSize: 2,
			pixels:      []byte{},
		}},
	})
	d := newInitializedDecoder(t, QuirkRejectEmptyFrame)
	src := &base.IoBuffer{Data: data, WI: len(data), Closed: true}
	var cfg pixel.Config
	if s := d.DecodeImageConfig(&cfg, src); !s.IsOK() {
		t.Fatalf("DecodeImageConfig() = %v, want OK", s)
	}
	var fc pixel.FrameConfig
	if s := d.DecodeFrameConfig(&fc, src); s != ErrEmptyFrame {
		t.Fatalf("DecodeFrameConfig() = %v, want %v", s, ErrEmptyFrame)
	}
}

func TestQuirkImageBoundsAreStrict(t *testing.T) {
	data := buildGIF(t, gifSpec{
		width: 2, height: 2,
		globalPalette: [][3]byte{{0, 0, 0}, {255, 255, 255}},
		frames: []frameSpec{{
			left: 1, top: 1, width: 4, height: 4, // extends past the 2x2 screen
			minCodeSize: 2,
			pixels:      make([]byte, 16),
		}},
	})
	d := newInitializedDecoder(t, QuirkImageBoundsAreStrict)
	src := &base.IoBuffer{Data: data, WI: len(data), Closed: true}
	var cfg pixel.Config
	if s := d.DecodeImageConfig(&cfg, src); !s.IsOK() {
		t.Fatalf("DecodeImageConfig() = %v, want OK", s)
	}
	var fc pixel.FrameConfig
	if s := d.DecodeFrameConfig(&fc, src); s != ErrFrameOutOfBounds {
		t.Fatalf("DecodeFrameConfig() = %v, want %v", s, ErrFrameOutOfBounds)
	}
}

// TestTooMuchPixelData checks that surplus LZW-encoded pixels past a frame's
// own bounds are rejected by default and tolerated under the ignore quirk.
func TestTooMuchPixelData(t *testing.T) {
	// Encode one extra row's worth of pixels beyond the declared 2x2 frame;
	// GIF's LZW stream has no length prefix, so a decoder can only notice
	// this by continuing to decode after the frame's own rows are full.
	palette := [][3]byte{{0, 0, 0}, {255, 255, 255}}
	surplus := buildGIF(t, gifSpec{
		width: 2, height: 2,
		globalPalette: palette,
		frames: []frameSpec{{
			left: 0, top: 0, width: 2, height: 2,
			minCodeSize: 2,
			pixels:      []byte{0, 1, 1, 0, 0, 1}, // 6 indices for a 4-pixel frame
		}},
	})

	t.Run("rejected by default", func(t *testing.T) {
		d := newInitializedDecoder(t)
		src := &base.IoBuffer{Data: surplus, WI: len(surplus), Closed: true}
		var cfg pixel.Config
		if s := d.DecodeImageConfig(&cfg, src); !s.IsOK() {
			t.Fatalf("DecodeImageConfig() = %v, want OK", s)
		}
		var fc pixel.FrameConfig
		if s := d.DecodeFrameConfig(&fc, src); !s.IsOK() {
			t.Fatalf("DecodeFrameConfig() = %v, want OK", s)
		}
		bpp := pixel.FormatBGRX8888.BytesPerPixel()
		canvas := make([]byte, int(cfg.Width)*int(cfg.Height)*bpp)
		plane, _ := base.NewTable2D(canvas, int(cfg.Width)*bpp, int(cfg.Height), int(cfg.Width)*bpp)
		buf := &pixel.Buffer{Config: pixel.Config{Format: pixel.FormatBGRX8888, Width: cfg.Width, Height: cfg.Height}}
		buf.Planes[0] = plane
		_, workMax := d.WorkbufLen()
		workbuf := make([]byte, workMax)
		if s := d.DecodeFrame(buf, src, pixel.BlendSrc, workbuf, nil); s != ErrTooMuchPixelData {
			t.Fatalf("DecodeFrame() = %v, want %v", s, ErrTooMuchPixelData)
		}
	})

	t.Run("ignored with quirk", func(t *testing.T) {
		d := newInitializedDecoder(t, QuirkIgnoreTooMuchPixelData)
		_, canvas, frames := decodeAll(t, d, surplus, pixel.FormatBGRX8888, pixel.BlendSrc)
		if len(frames) != 1 {
			t.Fatalf("len(frames) = %d, want 1", len(frames))
		}
		want := []byte{
			0, 0, 0, 255, 255, 255,
			255, 255, 255, 0, 0, 0,
		}
		if !bytes.Equal(canvas, want) {
			t.Fatalf("canvas = %v, want %v", canvas, want)
		}
	})
}

func TestBadMagicIsFatal(t *testing.T) {
	d := newInitializedDecoder(t)
	data := []byte("GIF88a\x01\x00\x01\x00\x00\x00\x00")
	src := &base.IoBuffer{Data: data, WI: len(data), Closed: true}
	var cfg pixel.Config
	if s := d.DecodeImageConfig(&cfg, src); s != ErrBadMagic {
		t.Fatalf("DecodeImageConfig() = %v, want %v", s, ErrBadMagic)
	}
	if s := d.DecodeImageConfig(&cfg, src); s != base.ErrDisabledByPreviousError {
		t.Fatalf("DecodeImageConfig() after error = %v, want %v", s, base.ErrDisabledByPreviousError)
	}
}
