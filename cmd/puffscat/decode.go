package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"

	"github.com/wuffsgo/puffs/base"
	"github.com/wuffsgo/puffs/bmp"
	"github.com/wuffsgo/puffs/gif"
	"github.com/wuffsgo/puffs/gzip"
	"github.com/wuffsgo/puffs/jsonptr"
	"github.com/wuffsgo/puffs/pixel"
	"github.com/wuffsgo/puffs/wbmp"
	"github.com/wuffsgo/puffs/zlib"
)

var version = base.Version{Major: 1, Minor: 0}

// decodeFile reads the whole file into memory -- this is a corpus-driving
// harness, not a streaming server, so there is no reason to trickle bytes
// in -- then hands it to the decoder its extension selects, filling a
// single IoBuffer and running each receiver's coroutine to completion in a
// loop the same shape as every *_test.go file in this repository uses.
func decodeFile(path string, opts options, cache *metadataCache, hits, misses *int64) (string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return "", err
	}
	return decodeBytes(data, path, opts, cache, hits, misses)
}

// decodeBytes is decodeFile's body split out so runHTTP (which never has a
// file on disk, only a URL to sniff an extension from) can share the same
// per-format dispatch.
func decodeBytes(data []byte, path string, opts options, cache *metadataCache, hits, misses *int64) (string, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".gif":
		return decodeImage(gifImageDecoder(), data, path, opts, cache, hits, misses)
	case ".bmp":
		return decodeImage(&bmp.Decoder{}, data, path, opts, cache, hits, misses)
	case ".wbmp":
		return decodeImage(&wbmp.Decoder{}, data, path, opts, cache, hits, misses)
	case ".zlib", ".zz":
		return decodeTransform(&zlib.Decoder{}, data, opts)
	case ".gz", ".gzip":
		return decodeTransform(&gzip.Decoder{}, data, opts)
	case ".json":
		return decodeJSON(data)
	default:
		return "skipped (no decoder registered for this extension)", nil
	}
}

// gifImageDecoder exists only because &gif.Decoder{} can't be taken as an
// interface value and simultaneously have SetReportMetadata called on it
// inline the way the other two formats can; no functional difference.
func gifImageDecoder() *gif.Decoder { return &gif.Decoder{} }

// imageDecoder is satisfied by gif.Decoder, bmp.Decoder, and wbmp.Decoder;
// it is a narrowed-down view of pixel.ImageDecoder covering only what this
// harness drives (it never exercises RestartFrame or quirks).
type imageDecoder interface {
	Initialize(callerVersion, libraryVersion base.Version, flags uint32) base.Status
	SetReportMetadata(fourcc base.FourCC, on bool) base.Status
	DecodeImageConfig(dstCfg *pixel.Config, src *base.IoBuffer) base.Status
	DecodeFrameConfig(dstCfg *pixel.FrameConfig, src *base.IoBuffer) base.Status
	DecodeFrame(dst *pixel.Buffer, src *base.IoBuffer, blend pixel.Blend, workbuf []byte, opts *pixel.DecodeOptions) base.Status
	TellMeMore(dstIO *base.IoBuffer, minfo *base.MetadataInfo, src *base.IoBuffer) base.Status
	NumDecodedFrames() uint64
	NumAnimationLoops() uint32
	WorkbufLen() (min, max uint64)
}

func decodeImage(d imageDecoder, data []byte, path string, opts options, cache *metadataCache, hits, misses *int64) (string, error) {
	if s := d.Initialize(version, version, 0); !s.IsOK() {
		return "", fmt.Errorf("initialize: %s", s)
	}
	d.SetReportMetadata(metaICCP, true)
	d.SetReportMetadata(metaXMP, true)

	src := &base.IoBuffer{Data: data, WI: len(data), Closed: true}

	var cfg pixel.Config
	for {
		s := d.DecodeImageConfig(&cfg, src)
		if s.IsOK() {
			break
		}
		if s == base.NoteMetadataReported {
			if err := drainMetadata(d, src, cache, hits, misses); err != nil {
				return "", err
			}
			continue
		}
		return "", fmt.Errorf("decode image config: %s", s)
	}

	planeLen := int(cfg.Width) * int(cfg.Height) * cfg.Format.BytesPerPixel()
	plane := make([]byte, planeLen)
	table, ok := base.NewTable2D(plane, int(cfg.Width)*cfg.Format.BytesPerPixel(), int(cfg.Height), int(cfg.Width)*cfg.Format.BytesPerPixel())
	if !ok {
		return "", fmt.Errorf("%s: pixel buffer dimensions overflow a Table2D", path)
	}

	_, workMax := d.WorkbufLen()
	workbuf := make([]byte, workMax)

	var frames int
	for {
		var fcfg pixel.FrameConfig
		s := d.DecodeFrameConfig(&fcfg, src)
		if s == base.NoteEndOfData {
			break
		}
		if s == base.NoteMetadataReported {
			if err := drainMetadata(d, src, cache, hits, misses); err != nil {
				return "", err
			}
			continue
		}
		if !s.IsOK() {
			return "", fmt.Errorf("decode frame config: %s", s)
		}

		buf := pixel.Buffer{Config: cfg}
		buf.Planes[0] = table
		s = d.DecodeFrame(&buf, src, fcfg.Blend, workbuf, nil)
		if !s.IsOK() {
			return "", fmt.Errorf("decode frame: %s", s)
		}
		frames++

		if opts.pngDir != "" {
			if err := writePNG(opts.pngDir, path, frames, &buf); err != nil {
				return "", err
			}
		}
	}

	return fmt.Sprintf("%dx%d, %d plane(s), %d frame(s), %d animation loop(s)",
		cfg.Width, cfg.Height, cfg.Format.NumPlanes(), frames, d.NumAnimationLoops()), nil
}

var (
	metaICCP = base.NewFourCC("ICCP")
	metaXMP  = base.NewFourCC("XMP ")
)

// drainMetadata pulls the reported chunk through TellMeMore into a scratch
// IoBuffer, reading from src where it stands (src is not repositioned), and
// then records a hit or a miss in the tinylfu-backed cache, keyed by the
// chunk's tag and a hash of its bytes, since corpora frequently repeat the
// same ICCP profile across many otherwise-unrelated images (see cache.go).
// The cache only counts repeats; TellMeMore runs for every chunk.
func drainMetadata(d imageDecoder, src *base.IoBuffer, cache *metadataCache, hits, misses *int64) error {
	var minfo base.MetadataInfo
	// minfo starts empty; TellMeMore fills it (and dstIO) for this chunk,
	// so no format-specific accessor is needed here.
	dstIO := &base.IoBuffer{Data: make([]byte, 4096)}
	for {
		s := d.TellMeMore(dstIO, &minfo, src)
		if s == base.SuspensionEvenMoreInformation {
			continue
		}
		if !s.IsOK() {
			return fmt.Errorf("tell me more: %s", s)
		}
		break
	}
	key := cacheKey(minfo.Tag, dstIO.Data[:dstIO.WI])
	if _, ok := cache.get(key); ok {
		atomic.AddInt64(hits, 1)
	} else {
		atomic.AddInt64(misses, 1)
		cache.add(key, len(dstIO.Data[:dstIO.WI]))
	}
	return nil
}

// byteTransformer is satisfied by zlib.Decoder and gzip.Decoder (and, via
// their embedded inflator, deflate.Decoder/lzw.Decoder).
type byteTransformer interface {
	Initialize(callerVersion, libraryVersion base.Version, flags uint32) base.Status
	SetQuirkEnabled(quirk uint32, on bool) base.Status
	TransformIO(dst, src *base.IoBuffer, workbuf []byte) base.Status
	WorkbufLen() (min, max uint64)
}

// quirkIgnoreChecksum is zlib.QuirkIgnoreChecksum and gzip.QuirkIgnoreChecksum,
// which happen to share the same numeric value; byteTransformer is generic
// over both so it names the value once rather than importing either
// concrete package here.
const quirkIgnoreChecksum uint32 = 1

func decodeTransform(d byteTransformer, data []byte, opts options) (string, error) {
	if s := d.Initialize(version, version, 0); !s.IsOK() {
		return "", fmt.Errorf("initialize: %s", s)
	}
	if opts.ignoreSums {
		if s := d.SetQuirkEnabled(quirkIgnoreChecksum, true); !s.IsOK() {
			return "", fmt.Errorf("set quirk: %s", s)
		}
	}

	src := &base.IoBuffer{Data: data, WI: len(data), Closed: true}
	dst := &base.IoBuffer{Data: make([]byte, 64*1024)}
	_, workMax := d.WorkbufLen()
	workbuf := make([]byte, workMax)

	var total int
	for {
		s := d.TransformIO(dst, src, workbuf)
		total += dst.WI - dst.RI
		dst.MarkRead(dst.WI - dst.RI)
		dst.Compact()
		if s == base.NoteEndOfData {
			break
		}
		if s == base.SuspensionShortWrite {
			continue
		}
		if !s.IsOK() {
			return "", fmt.Errorf("transform io: %s", s)
		}
	}
	return fmt.Sprintf("decompressed to %d bytes", total), nil
}

func decodeJSON(data []byte) (string, error) {
	var d jsonptr.Decoder
	if s := d.Initialize(version, version, 0); !s.IsOK() {
		return "", fmt.Errorf("initialize: %s", s)
	}
	src := &base.IoBuffer{Data: data, WI: len(data), Closed: true}
	dst := &base.TokenBuffer{Data: make([]base.Token, 4096)}

	var count int
	for {
		s := d.DecodeTokens(dst, src, nil)
		count += dst.WI - dst.RI
		dst.MarkRead(dst.WI - dst.RI)
		dst.Compact()
		if s == base.NoteEndOfData {
			break
		}
		if s == base.SuspensionShortWrite {
			continue
		}
		if !s.IsOK() {
			return "", fmt.Errorf("decode tokens: %s", s)
		}
	}
	return fmt.Sprintf("%d tokens", count), nil
}
