package wbmp

import (
	"bytes"
	"testing"

	"github.com/wuffsgo/puffs/base"
	"github.com/wuffsgo/puffs/pixel"
)

func newInitializedDecoder(t *testing.T) *Decoder {
	t.Helper()
	d := &Decoder{}
	v := base.Version{Major: 1, Minor: 0}
	if s := d.Initialize(v, v, 0); !s.IsOK() {
		t.Fatalf("Initialize() = %v, want OK", s)
	}
	return d
}

// --- Manual WBMP byte construction, the same hand-rolled-builder approach
// bmp_test.go and gif_test.go use; no third-party WBMP encoder exists in the
// example pack to cross-check against. ---

// putLengthField appends v as a 7-bit continuation-encoded big-endian
// integer: every byte but the last has its high bit set.
func putLengthField(buf *bytes.Buffer, v uint32) {
	var chunks []byte
	chunks = append(chunks, byte(v&0x7f))
	v >>= 7
	for v > 0 {
		chunks = append(chunks, byte(v&0x7f)|0x80)
		v >>= 7
	}
	for i := len(chunks) - 1; i >= 0; i-- {
		buf.WriteByte(chunks[i])
	}
}

type wbmpSpec struct {
	typeFieldOverride *byte // defaults to typeFieldBasic (0)
	fixHeaderOverride *byte // defaults to 0

	width, height uint32
	rows          [][]byte // raw row bytes (already byte-padded), top-to-bottom
}

func buildWBMP(spec wbmpSpec) []byte {
	var out bytes.Buffer
	if spec.typeFieldOverride != nil {
		out.WriteByte(*spec.typeFieldOverride)
	} else {
		out.WriteByte(typeFieldBasic)
	}
	if spec.fixHeaderOverride != nil {
		out.WriteByte(*spec.fixHeaderOverride)
	} else {
		out.WriteByte(0)
	}
	putLengthField(&out, spec.width)
	putLengthField(&out, spec.height)
	for _, row := range spec.rows {
		out.Write(row)
	}
	return out.Bytes()
}

func decodeConfig(t *testing.T, d *Decoder, data []byte) (pixel.Config, base.Status) {
	t.Helper()
	src := &base.IoBuffer{Data: data, WI: len(data), Closed: true}
	var cfg pixel.Config
	status := d.DecodeImageConfig(&cfg, src)
	return cfg, status
}

// decodeFrame drives a Decoder fully through one WBMP stream, returning the
// decoded canvas in dstFmt.
func decodeFrame(t *testing.T, d *Decoder, data []byte, dstFmt pixel.Format) (pixel.Config, []byte) {
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

	var fc pixel.FrameConfig
	if s := d.DecodeFrameConfig(&fc, src); !s.IsOK() {
		t.Fatalf("DecodeFrameConfig() = %v, want OK", s)
	}
	if s := d.DecodeFrame(buf, src, pixel.BlendSrc, nil, nil); !s.IsOK() {
		t.Fatalf("DecodeFrame() = %v, want OK", s)
	}
	return cfg, canvas
}

func TestDecodeImageConfig(t *testing.T) {
	data := buildWBMP(wbmpSpec{
		width: 8, height: 2,
		rows: [][]byte{{0xaa}, {0x55}},
	})
	d := newInitializedDecoder(t)
	cfg, status := decodeConfig(t, d, data)
	if !status.IsOK() {
		t.Fatalf("DecodeImageConfig() = %v, want OK", status)
	}
	if cfg.Width != 8 || cfg.Height != 2 {
		t.Fatalf("cfg = %+v, want 8x2", cfg)
	}
	if cfg.Format != pixel.FormatGray8 {
		t.Fatalf("cfg.Format = %v, want FormatGray8", cfg.Format)
	}
}

func TestDecodeOneByteRow(t *testing.T) {
	// width=8: one data byte holds all 8 pixels, MSB first: 1,0,1,0,1,0,1,0.
	data := buildWBMP(wbmpSpec{
		width: 8, height: 1,
		rows: [][]byte{{0xaa}},
	})
	d := newInitializedDecoder(t)
	_, canvas := decodeFrame(t, d, data, pixel.FormatGray8)
	want := []byte{0xff, 0x00, 0xff, 0x00, 0xff, 0x00, 0xff, 0x00}
	if !bytes.Equal(canvas, want) {
		t.Fatalf("canvas = %v, want %v", canvas, want)
	}
}

func TestDecodePartialByteRowPadding(t *testing.T) {
	// width=3: only the top 3 bits of the single stored byte matter; the
	// remaining 5 padding bits must be ignored. Bits: 1,0,1 (the rest, x).
	data := buildWBMP(wbmpSpec{
		width: 3, height: 1,
		rows: [][]byte{{0b10111111}},
	})
	d := newInitializedDecoder(t)
	_, canvas := decodeFrame(t, d, data, pixel.FormatGray8)
	want := []byte{0xff, 0x00, 0xff}
	if !bytes.Equal(canvas, want) {
		t.Fatalf("canvas = %v, want %v", canvas, want)
	}
}

func TestDecodeTwoRowsTopToBottom(t *testing.T) {
	data := buildWBMP(wbmpSpec{
		width: 1, height: 2,
		rows: [][]byte{{0x80}, {0x00}}, // row 0: white, row 1: black
	})
	d := newInitializedDecoder(t)
	_, canvas := decodeFrame(t, d, data, pixel.FormatGray8)
	want := []byte{0xff, 0x00}
	if !bytes.Equal(canvas, want) {
		t.Fatalf("canvas = %v, want %v (row 0 first, no bottom-up flip)", canvas, want)
	}
}

func TestDecodeMultiByteLengthField(t *testing.T) {
	// 200 needs two continuation bytes: 200 = 0b1_1001000 -> bytes
	// {0x81, 0x48} (high bit set on the first, clear on the last).
	data := buildWBMP(wbmpSpec{
		width: 200, height: 1,
		rows: [][]byte{make([]byte, 25)}, // ceil(200/8) = 25 bytes
	})
	d := newInitializedDecoder(t)
	cfg, status := decodeConfig(t, d, data)
	if !status.IsOK() {
		t.Fatalf("DecodeImageConfig() = %v, want OK", status)
	}
	if cfg.Width != 200 {
		t.Fatalf("cfg.Width = %v, want 200", cfg.Width)
	}
}

func TestLengthFieldOverflowIsFatal(t *testing.T) {
	var out bytes.Buffer
	out.WriteByte(typeFieldBasic)
	out.WriteByte(0)
	// 5 continuation bytes, all with every data bit set: 5*7 = 35 bits,
	// comfortably over the 32-bit cap.
	for i := 0; i < 4; i++ {
		out.WriteByte(0xff)
	}
	out.WriteByte(0x7f)
	d := newInitializedDecoder(t)
	_, status := decodeConfig(t, d, out.Bytes())
	if status != ErrLengthOverflow {
		t.Fatalf("DecodeImageConfig() = %v, want ErrLengthOverflow", status)
	}
}

func TestUnsupportedTypeIsFatal(t *testing.T) {
	bad := byte(1)
	data := buildWBMP(wbmpSpec{
		typeFieldOverride: &bad,
		width:             1, height: 1,
		rows: [][]byte{{0}},
	})
	d := newInitializedDecoder(t)
	_, status := decodeConfig(t, d, data)
	if status != ErrUnsupportedType {
		t.Fatalf("DecodeImageConfig() = %v, want ErrUnsupportedType", status)
	}
}

func TestBadFixHeaderIsFatal(t *testing.T) {
	bad := byte(1)
	data := buildWBMP(wbmpSpec{
		fixHeaderOverride: &bad,
		width:             1, height: 1,
		rows: [][]byte{{0}},
	})
	d := newInitializedDecoder(t)
	_, status := decodeConfig(t, d, data)
	if status != ErrBadFixHeader {
		t.Fatalf("DecodeImageConfig() = %v, want ErrBadFixHeader", status)
	}
}

func TestBadDimensionsIsFatal(t *testing.T) {
	data := buildWBMP(wbmpSpec{width: 0, height: 1})
	d := newInitializedDecoder(t)
	_, status := decodeConfig(t, d, data)
	if status != ErrBadDimensions {
		t.Fatalf("DecodeImageConfig() = %v, want ErrBadDimensions", status)
	}
}

func TestTooWideIsFatal(t *testing.T) {
	data := buildWBMP(wbmpSpec{width: maxSideLen + 1, height: 1})
	d := newInitializedDecoder(t)
	_, status := decodeConfig(t, d, data)
	if status != ErrTooWide {
		t.Fatalf("DecodeImageConfig() = %v, want ErrTooWide", status)
	}
}

func TestRestartFrame(t *testing.T) {
	data := buildWBMP(wbmpSpec{
		width: 8, height: 1,
		rows: [][]byte{{0xaa}},
	})
	d := newInitializedDecoder(t)
	_, canvas1 := decodeFrame(t, d, data, pixel.FormatGray8)

	if s := d.RestartFrame(0, 0); !s.IsOK() {
		t.Fatalf("RestartFrame() = %v, want OK", s)
	}
	// type(1) + fix header(1) + width(1) + height(1) = 4 bytes of header
	// before the pixel data, for this test's single-byte length fields.
	src := &base.IoBuffer{Data: data, WI: len(data), RI: 4, Closed: true}
	canvas2 := make([]byte, len(canvas1))
	plane, _ := base.NewTable2D(canvas2, 8, 1, 8)
	buf := &pixel.Buffer{Config: pixel.Config{Format: pixel.FormatGray8, Width: 8, Height: 1}}
	buf.Planes[0] = plane
	if s := d.DecodeFrame(buf, src, pixel.BlendSrc, nil, nil); !s.IsOK() {
		t.Fatalf("DecodeFrame() after RestartFrame = %v, want OK", s)
	}
	if !bytes.Equal(canvas1, canvas2) {
		t.Fatalf("canvas2 = %v, want %v (same as first decode)", canvas2, canvas1)
	}

	if s := d.RestartFrame(1, 0); s != ErrBadRestart {
		t.Fatalf("RestartFrame(1, ...) = %v, want ErrBadRestart", s)
	}
}

func TestTellMeMoreAlwaysFails(t *testing.T) {
	d := newInitializedDecoder(t)
	src := &base.IoBuffer{Closed: true}
	dst := &base.IoBuffer{Data: make([]byte, 8)}
	if s := d.TellMeMore(dst, nil, src); s != ErrNoMetadata {
		t.Fatalf("TellMeMore() = %v, want ErrNoMetadata", s)
	}
}
