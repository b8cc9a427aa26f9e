package main

import (
	"github.com/cespare/xxhash/v2"
	"github.com/dgryski/go-tinylfu"
	"github.com/wuffsgo/puffs/base"
)

// metadataKey identifies one reported metadata chunk by its FourCC tag plus
// an xxhash digest of its bytes, so two images that embed byte-identical
// ICCP profiles (extremely common across a corpus produced by one export
// pipeline) collapse to a single cache entry.
type metadataKey struct {
	tag  base.FourCC
	hash uint64
}

func cacheKey(tag base.FourCC, chunk []byte) metadataKey {
	return metadataKey{tag: tag, hash: xxhash.Sum64(chunk)}
}

// metadataCache tracks which metadata chunks this run has already seen, so
// runCorpus's -repeat passes can report an admission rate instead of
// re-deriving identical XMP/ICCP payloads from scratch every time. Modeled
// on the block cache in _examples' BeHierarchic spinner package: a W-TinyLFU
// admission cache keyed by a cheap scalar hash rather than the payload
// itself.
type metadataCache struct {
	t *tinylfu.T[metadataKey, int]
}

func newMetadataCache(capacity int) *metadataCache {
	if capacity <= 0 {
		capacity = 1
	}
	return &metadataCache{
		t: tinylfu.New[metadataKey, int](capacity, capacity*10, metadataKeyHash),
	}
}

func metadataKeyHash(k metadataKey) uint64 { return k.hash ^ uint64(k.tag[0])<<32 }

func (c *metadataCache) get(k metadataKey) (int, bool) { return c.t.Get(k) }

func (c *metadataCache) add(k metadataKey, byteLen int) { c.t.Add(k, byteLen) }
