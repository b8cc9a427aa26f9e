package pixel

import "testing"

func TestNewFormatValid(t *testing.T) {
	f, ok := NewFormat(1, false, AlphaNonpremul, [4]uint8{8, 8, 8, 8})
	if !ok {
		t.Fatalf("NewFormat() ok = false, want true")
	}
	if got := f.NumPlanes(); got != 1 {
		t.Errorf("NumPlanes() = %d, want 1", got)
	}
	if f.Indexed() {
		t.Errorf("Indexed() = true, want false")
	}
	if got := f.AlphaTransparency(); got != AlphaNonpremul {
		t.Errorf("AlphaTransparency() = %v, want %v", got, AlphaNonpremul)
	}
	for i, want := range [4]uint8{8, 8, 8, 8} {
		if got := f.ChannelWidth(i); got != want {
			t.Errorf("ChannelWidth(%d) = %d, want %d", i, got, want)
		}
	}
	if got := f.BitsPerPixel(); got != 32 {
		t.Errorf("BitsPerPixel() = %d, want 32", got)
	}
	if got := f.BytesPerPixel(); got != 4 {
		t.Errorf("BytesPerPixel() = %d, want 4", got)
	}
}

func TestNewFormatRejectsBadPlanes(t *testing.T) {
	if _, ok := NewFormat(0, false, AlphaOpaque, [4]uint8{8, 0, 0, 0}); ok {
		t.Errorf("NewFormat(numPlanes=0) ok = true, want false")
	}
	if _, ok := NewFormat(5, false, AlphaOpaque, [4]uint8{8, 0, 0, 0}); ok {
		t.Errorf("NewFormat(numPlanes=5) ok = true, want false")
	}
}

func TestNewFormatRejectsBadChannelWidth(t *testing.T) {
	if _, ok := NewFormat(1, false, AlphaOpaque, [4]uint8{9, 0, 0, 0}); ok {
		t.Errorf("NewFormat(width=9) ok = true, want false")
	}
	if _, ok := NewFormat(1, false, AlphaOpaque, [4]uint8{11, 0, 0, 0}); ok {
		t.Errorf("NewFormat(width=11) ok = true, want false")
	}
}

func TestNewFormatRejectsBadAlpha(t *testing.T) {
	if _, ok := NewFormat(1, false, AlphaTransparency(4), [4]uint8{8, 0, 0, 0}); ok {
		t.Errorf("NewFormat(alpha=4) ok = true, want false")
	}
}

func TestPredefinedFormats(t *testing.T) {
	tests := []struct {
		name    string
		f       Format
		planes  int
		indexed bool
		alpha   AlphaTransparency
		bpp     int
	}{
		{"FormatBGRA8888", FormatBGRA8888, 1, false, AlphaNonpremul, 4},
		{"FormatBGRA8888Premul", FormatBGRA8888Premul, 1, false, AlphaPremul, 4},
		{"FormatBGRX8888", FormatBGRX8888, 1, false, AlphaOpaque, 3},
		{"FormatGray8", FormatGray8, 1, false, AlphaOpaque, 1},
		{"FormatBGRIndexed", FormatBGRIndexed, 1, true, AlphaBinary, 1},
		{"FormatBinary1", FormatBinary1, 1, false, AlphaOpaque, 1},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			if got := tc.f.NumPlanes(); got != tc.planes {
				t.Errorf("NumPlanes() = %d, want %d", got, tc.planes)
			}
			if got := tc.f.Indexed(); got != tc.indexed {
				t.Errorf("Indexed() = %v, want %v", got, tc.indexed)
			}
			if got := tc.f.AlphaTransparency(); got != tc.alpha {
				t.Errorf("AlphaTransparency() = %v, want %v", got, tc.alpha)
			}
			if got := tc.f.BytesPerPixel(); got != tc.bpp {
				t.Errorf("BytesPerPixel() = %d, want %d", got, tc.bpp)
			}
		})
	}
}

func TestBufferPaletteColorRoundTrip(t *testing.T) {
	var buf Buffer
	buf.SetPaletteColor(10, 1, 2, 3, 4)
	b, g, r, a := buf.PaletteColor(10)
	if b != 1 || g != 2 || r != 3 || a != 4 {
		t.Errorf("PaletteColor(10) = (%d,%d,%d,%d), want (1,2,3,4)", b, g, r, a)
	}
	// Untouched entries stay zero.
	b, g, r, a = buf.PaletteColor(11)
	if b != 0 || g != 0 || r != 0 || a != 0 {
		t.Errorf("PaletteColor(11) = (%d,%d,%d,%d), want (0,0,0,0)", b, g, r, a)
	}
}
