package deflate

import (
	"bytes"
	"compress/flate"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/wuffsgo/puffs/base"
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

// decodeAllAtOnce feeds the whole compressed payload to the decoder in a
// single TransformIO call, with dst sized generously.
func decodeAllAtOnce(t *testing.T, compressed []byte, wantLen int) []byte {
	t.Helper()
	d := newInitializedDecoder(t)

	src := &base.IoBuffer{Data: compressed, WI: len(compressed), Closed: true}
	dst := &base.IoBuffer{Data: make([]byte, wantLen+64)}

	status := d.TransformIO(dst, src, nil)
	if status != base.NoteEndOfData {
		t.Fatalf("TransformIO = %v, want %v", status, base.NoteEndOfData)
	}
	return dst.Data[:dst.WI]
}

func deflateCompress(t *testing.T, data []byte) []byte {
	t.Helper()
	var buf bytes.Buffer
	w, err := flate.NewWriter(&buf, flate.DefaultCompression)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := w.Write(data); err != nil {
		t.Fatal(err)
	}
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	return buf.Bytes()
}

func TestStoredBlockRoundTrip(t *testing.T) {
	// A single final stored block: BFINAL=1, BTYPE=00, byte-aligned,
	// LEN/NLEN, then the literal payload, per RFC 1951 §3.2.4.
	payload := []byte("hello, stored block")
	var raw bytes.Buffer
	raw.WriteByte(0x01) // final bit set, type 00
	n := len(payload)
	raw.WriteByte(byte(n))
	raw.WriteByte(byte(n >> 8))
	raw.WriteByte(byte(^uint16(n)))
	raw.WriteByte(byte(^uint16(n) >> 8))
	raw.Write(payload)

	got := decodeAllAtOnce(t, raw.Bytes(), len(payload))
	if !bytes.Equal(got, payload) {
		t.Fatalf("decoded = %q, want %q", got, payload)
	}
}

func TestFixedAndDynamicHuffmanRoundTrip(t *testing.T) {
	binary := make([]byte, 4096)
	for i := range binary {
		binary[i] = byte(i * 37)
	}

	cases := map[string][]byte{
		"short":      []byte("abcabcabcabcabc"),
		"empty":      {},
		"repetitive": bytes.Repeat([]byte("the quick brown fox jumps over the lazy dog. "), 200),
		"binary":     binary,
	}
	for name, want := range cases {
		t.Run(name, func(t *testing.T) {
			compressed := deflateCompress(t, want)
			got := decodeAllAtOnce(t, compressed, len(want))
			if diff := cmp.Diff(want, got); diff != "" {
				t.Fatalf("decoded mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

// TestSuspendResumeByteAtATime forces a short read or short write suspension
// on nearly every call by feeding the compressed stream one byte at a time
// and giving the destination a tiny buffer, then checks that resuming from
// wherever the coroutine suspended reproduces the exact output.
func TestSuspendResumeByteAtATime(t *testing.T) {
	want := bytes.Repeat([]byte("resumable streaming decode "), 500)
	compressed := deflateCompress(t, want)

	d := newInitializedDecoder(t)
	src := &base.IoBuffer{Data: make([]byte, 1)} // a one-byte sliding window
	dst := &base.IoBuffer{Data: make([]byte, 3)}
	var out []byte

	fed := 0
	for {
		// Drain whatever the decoder already produced.
		if dst.WI > dst.RI {
			out = append(out, dst.Data[dst.RI:dst.WI]...)
			dst.RI, dst.WI = 0, 0
		}

		status := d.TransformIO(dst, src, nil)

		if dst.WI > dst.RI {
			out = append(out, dst.Data[dst.RI:dst.WI]...)
			dst.RI, dst.WI = 0, 0
		}

		switch {
		case status == base.NoteEndOfData:
			if diff := cmp.Diff(want, out); diff != "" {
				t.Fatalf("decoded mismatch (-want +got):\n%s", diff)
			}
			return
		case status == base.SuspensionShortWrite:
			continue
		case status == base.SuspensionShortRead:
			if fed >= len(compressed) {
				t.Fatalf("ran out of compressed input before decoder finished")
			}
			src.Data[0] = compressed[fed]
			src.RI, src.WI = 0, 1
			fed++
		default:
			t.Fatalf("TransformIO = %v, unexpected", status)
		}
	}
}

// TestSingleLengthOneCodeFillsWholeTable exercises the degenerate distance
// table RFC 1951 §3.2.7 allows: exactly one code, of length 1. Both possible
// one-bit patterns must resolve to that code, not just the canonical one, so
// every entry of the chunk table has to come out filled the same way.
func TestSingleLengthOneCodeFillsWholeTable(t *testing.T) {
	lengths := make([]int, 30)
	lengths[0] = 1 // symbol 0 is the table's only code, length 1

	var h huffmanDecoder
	if s := h.init(lengths); !s.IsOK() {
		t.Fatalf("init() = %v, want OK", s)
	}

	for off := 0; off < huffmanNumChunks; off++ {
		value := h.chunks[off] >> huffmanValueShift
		n := h.chunks[off] & (1<<huffmanValueShift - 1)
		if value != 0 || n != 1 {
			t.Fatalf("chunks[%d] decodes to (value=%d, len=%d), want (0, 1)", off, value, n)
		}
	}
}

func TestBadBlockTypeIsFatal(t *testing.T) {
	d := newInitializedDecoder(t)
	// BFINAL=1, BTYPE=11 (reserved).
	src := &base.IoBuffer{Data: []byte{0x07}, WI: 1, Closed: true}
	dst := &base.IoBuffer{Data: make([]byte, 16)}

	status := d.TransformIO(dst, src, nil)
	if status != ErrBadBlockType {
		t.Fatalf("TransformIO = %v, want %v", status, ErrBadBlockType)
	}

	// The receiver is now disabled; any further call must fail closed.
	if status := d.TransformIO(dst, src, nil); status != base.ErrDisabledByPreviousError {
		t.Fatalf("TransformIO after error = %v, want %v", status, base.ErrDisabledByPreviousError)
	}
}
