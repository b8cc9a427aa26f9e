package base

import "testing"

func TestCRC32Empty(t *testing.T) {
	h := NewCRC32()
	if got := h.UpdateU32(nil); got != 0 {
		t.Fatalf("UpdateU32(nil) = %#08x, want 0", got)
	}
}

func TestCRC32KnownVector(t *testing.T) {
	h := NewCRC32()
	got := h.UpdateU32([]byte("The quick brown fox jumps over the lazy dog"))
	const want = 0x414FA339
	if got != want {
		t.Fatalf("UpdateU32 = %#08x, want %#08x", got, want)
	}
}

func TestCRC32LongInputExercisesSlicingPath(t *testing.T) {
	data := make([]byte, 1024)
	for i := range data {
		data[i] = byte(i * 7)
	}

	whole := NewCRC32()
	want := whole.UpdateU32(data)

	h := NewCRC32()
	var got uint32
	for i := 0; i < len(data); i += 3 {
		end := i + 3
		if end > len(data) {
			end = len(data)
		}
		got = h.UpdateU32(data[i:end])
	}
	if got != want {
		t.Fatalf("chunked digest %#08x != whole-buffer digest %#08x", got, want)
	}
}
