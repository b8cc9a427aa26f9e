// Package ranger fetches byte ranges of a remote object over HTTP, for
// callers that want an io.ReaderAt without holding the whole object in
// memory or on disk first. cmd/puffscat's -http mode uses it to pull one
// corpus object in fixed-size chunks before handing the assembled bytes to
// whichever decoder its extension selects.
package ranger

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
)

// TODO: Consider probing with single byte size ranges for redirects (and a way to disable it).

type Reader struct {
	ctx context.Context
	rt  http.RoundTripper
	uri string
}

func New(ctx context.Context, uri string, rt http.RoundTripper) *Reader {
	return &Reader{
		ctx: ctx,
		rt:  rt,
		uri: uri,
	}
}

func (r *Reader) ReadAt(p []byte, off int64) (int, error) {
	req, err := http.NewRequestWithContext(r.ctx, "GET", r.uri, nil)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", off, off+int64(len(p))-1))

	res, err := r.rt.RoundTrip(req)
	if err != nil {
		return 0, err
	}

	// TODO: Consider just keeping this open if the response doesn't support range.
	// It can still be faster to discard the compressed parts and only decompress the portion we need.
	defer res.Body.Close()

	if res.StatusCode == http.StatusPartialContent {
		return io.ReadFull(res.Body, p)
	}

	redir := res.Header.Get("Location")
	if redir == "" || res.StatusCode/100 != 3 {
		return 0, fmt.Errorf("%q does not support range requests, saw status: %d", r.uri, res.StatusCode)
	}

	res.Body.Close()

	u, err := url.Parse(redir)
	if err != nil {
		return 0, err
	}

	r.uri = req.URL.ResolveReference(u).String()
	return r.ReadAt(p, off)
}

// FetchAll reads the whole remote object into memory, issuing successive
// ReadAt calls of at most chunkSize bytes until one comes back short (the
// object end was reached) or empty. It returns what cmd/puffscat's -http
// mode needs: one decoder-ready []byte rather than an io.Reader,
// since every decoder in this repository takes a fully-buffered IoBuffer
// rather than streaming from an io.Reader directly.
func (r *Reader) FetchAll(chunkSize int64) ([]byte, error) {
	if chunkSize <= 0 {
		return nil, fmt.Errorf("ranger: chunk size must be positive, got %d", chunkSize)
	}
	var data []byte
	chunk := make([]byte, chunkSize)
	for off := int64(0); ; off += int64(len(chunk)) {
		n, err := r.ReadAt(chunk, off)
		data = append(data, chunk[:n]...)
		if err != nil {
			if err == io.EOF || err == io.ErrUnexpectedEOF {
				return data, nil
			}
			return nil, fmt.Errorf("ranger: reading at offset %d: %w", off, err)
		}
		if n == 0 {
			return data, nil
		}
	}
}
