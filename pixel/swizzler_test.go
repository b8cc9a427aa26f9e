package pixel

import (
	"testing"

	"github.com/wuffsgo/puffs/base"
)

func TestPrepareDispatchesKernels(t *testing.T) {
	t.Run("indexed source", func(t *testing.T) {
		var pal [1024]byte
		sw, s := Prepare(FormatBGRA8888, nil, FormatBGRIndexed, &pal, BlendSrc)
		if !s.IsOK() {
			t.Fatalf("Prepare() = %v, want OK", s)
		}
		src := []byte{0}
		dst := make([]byte, 4)
		if n := sw.Swizzle(dst, src); n != 1 {
			t.Fatalf("Swizzle() = %d, want 1", n)
		}
	})

	t.Run("gray source", func(t *testing.T) {
		sw, s := Prepare(FormatBGRA8888, nil, FormatGray8, nil, BlendSrc)
		if !s.IsOK() {
			t.Fatalf("Prepare() = %v, want OK", s)
		}
		src := []byte{0x80}
		dst := make([]byte, 4)
		if n := sw.Swizzle(dst, src); n != 1 {
			t.Fatalf("Swizzle() = %d, want 1", n)
		}
		if dst[0] != 0x80 || dst[1] != 0x80 || dst[2] != 0x80 || dst[3] != 0xff {
			t.Errorf("dst = %v, want [0x80 0x80 0x80 0xff]", dst)
		}
	})

	t.Run("direct source", func(t *testing.T) {
		sw, s := Prepare(FormatBGRA8888, nil, FormatBGRA8888, nil, BlendSrc)
		if !s.IsOK() {
			t.Fatalf("Prepare() = %v, want OK", s)
		}
		src := []byte{1, 2, 3, 255}
		dst := make([]byte, 4)
		if n := sw.Swizzle(dst, src); n != 1 {
			t.Fatalf("Swizzle() = %d, want 1", n)
		}
		if dst[0] != 1 || dst[1] != 2 || dst[2] != 3 || dst[3] != 255 {
			t.Errorf("dst = %v, want [1 2 3 255]", dst)
		}
	})

	t.Run("unsupported combination", func(t *testing.T) {
		oddFmt, ok := NewFormat(1, false, AlphaOpaque, [4]uint8{8, 8, 0, 0})
		if !ok {
			t.Fatalf("NewFormat() ok = false")
		}
		if _, s := Prepare(FormatBGRA8888, nil, oddFmt, nil, BlendSrc); s != base.ErrUnsupportedPixelSwizzlerOption {
			t.Fatalf("Prepare() = %v, want %v", s, base.ErrUnsupportedPixelSwizzlerOption)
		}
	})

	t.Run("indexed source without palette", func(t *testing.T) {
		if _, s := Prepare(FormatBGRA8888, nil, FormatBGRIndexed, nil, BlendSrc); s != base.ErrBadArgument {
			t.Fatalf("Prepare() = %v, want %v", s, base.ErrBadArgument)
		}
	})
}

// TestNarrowIntoSrcRoundTripsNonpremul checks that a BlendSrc
// write with no existing content round-trips a nonpremul source color
// through the premul-internal math back to the same nonpremul bytes.
func TestNarrowIntoSrcRoundTripsNonpremul(t *testing.T) {
	out := make([]byte, 4)
	narrowInto(out, FormatBGRA8888, 0xff, 0xff, 0xff, 0x80, AlphaNonpremul, BlendSrc, [4]byte{})
	want := []byte{0xff, 0xff, 0xff, 0x80}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("out = %v, want %v", out, want)
		}
	}
}

// TestNarrowIntoSrcKeepsPremulDestinationPremultiplied checks that writing
// into a premultiplied destination format leaves the stored bytes
// premultiplied rather than unpremultiplying them.
func TestNarrowIntoSrcKeepsPremulDestinationPremultiplied(t *testing.T) {
	out := make([]byte, 4)
	narrowInto(out, FormatBGRA8888Premul, 0xff, 0xff, 0xff, 0x80, AlphaNonpremul, BlendSrc, [4]byte{})
	want := []byte{0x80, 0x80, 0x80, 0x80}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("out = %v, want %v", out, want)
		}
	}
}

// TestNarrowIntoSrcOverOpaqueDestinationReadsExistingColor is the regression
// test for the fix where SRC_OVER onto a destination format with no alpha
// channel must still read and blend against the existing pixel, not assume
// a black background. Half-alpha white composited over opaque red should
// land on a light pink, not on plain white.
func TestNarrowIntoSrcOverOpaqueDestinationReadsExistingColor(t *testing.T) {
	out := make([]byte, 3)
	existing := [4]byte{0x00, 0x00, 0xff, 0x00} // B=0, G=0, R=0xff
	narrowInto(out, FormatBGRX8888, 0xff, 0xff, 0xff, 0x80, AlphaNonpremul, BlendSrcOver, existing)
	want := []byte{0x80, 0x80, 0xff}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("out = %v, want %v (blended with existing background)", out, want)
		}
	}
}

// TestNarrowIntoSrcOverFullyOpaqueSourceIgnoresExisting checks that a fully
// opaque source overwrites the destination regardless of blend mode.
func TestNarrowIntoSrcOverFullyOpaqueSourceIgnoresExisting(t *testing.T) {
	out := make([]byte, 3)
	existing := [4]byte{0x11, 0x22, 0x33, 0x00}
	narrowInto(out, FormatBGRX8888, 0xaa, 0xbb, 0xcc, 0xff, AlphaNonpremul, BlendSrcOver, existing)
	want := []byte{0xaa, 0xbb, 0xcc}
	for i := range want {
		if out[i] != want[i] {
			t.Fatalf("out = %v, want %v", out, want)
		}
	}
}

func TestClosestElementPrefersSmallerIndexOnTie(t *testing.T) {
	var palette [1024]byte
	set := func(i int, b, g, r, a byte) {
		o := i * 4
		palette[o], palette[o+1], palette[o+2], palette[o+3] = b, g, r, a
	}
	set(3, 50, 60, 70, 255)
	set(7, 50, 60, 70, 255)

	b := uint16(expand16(50))
	g := uint16(expand16(60))
	r := uint16(expand16(70))
	a := uint16(expand16(255))

	if got := ClosestElement(&palette, b, g, r, a); got != 3 {
		t.Fatalf("ClosestElement() = %d, want 3 (smaller of two tied indices)", got)
	}
}

func TestClosestElementFindsExactMatch(t *testing.T) {
	var palette [1024]byte
	set := func(i int, b, g, r, a byte) {
		o := i * 4
		palette[o], palette[o+1], palette[o+2], palette[o+3] = b, g, r, a
	}
	set(0, 10, 20, 30, 255)
	set(200, 1, 2, 3, 4)

	b := uint16(expand16(1))
	g := uint16(expand16(2))
	r := uint16(expand16(3))
	a := uint16(expand16(4))

	if got := ClosestElement(&palette, b, g, r, a); got != 200 {
		t.Fatalf("ClosestElement() = %d, want 200", got)
	}
}
