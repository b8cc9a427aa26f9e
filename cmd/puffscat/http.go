package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/wuffsgo/puffs/ranger"
)

const httpChunkSize = 1 << 20

// runHTTP fetches opts.httpURL entirely via HTTP range requests (never a
// plain GET) using ranger.Reader, then drives it through the same
// per-format dispatch decodeFile uses for a local path.
func runHTTP(ctx context.Context, opts options) error {
	rr := ranger.New(ctx, opts.httpURL, http.DefaultTransport)

	data, err := rr.FetchAll(httpChunkSize)
	if err != nil {
		return err
	}

	cache := newMetadataCache(opts.cacheSize)
	var hits, misses int64
	rep, err := decodeBytes(data, opts.httpURL, opts, cache, &hits, &misses)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %s\n", opts.httpURL, rep)
	return nil
}
