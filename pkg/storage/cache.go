// ABOUTME: Bounded in-process cache of hot pages
// ABOUTME: Backed by ristretto, storing pages compressed to save memory

package storage

import (
	"github.com/dgraph-io/ristretto/v2"
)

// PageCache fronts the page file with a bounded, concurrent-safe cache.
// Entries are stored snappy-compressed (see compress.go) so the cache's
// cost accounting reflects real memory pressure rather than a flat
// per-page count.
type PageCache struct {
	c *ristretto.Cache[uint64, []byte]
}

// NewPageCache creates a page cache with the given byte budget for
// compressed page contents.
func NewPageCache(maxCostBytes int64) *PageCache {
	c, err := ristretto.NewCache(&ristretto.Config[uint64, []byte]{
		NumCounters: maxCostBytes / BTREE_PAGE_SIZE * 10,
		MaxCost:     maxCostBytes,
		BufferItems: 64,
	})
	if err != nil {
		// Config above is static and always valid; a cache that can't be
		// constructed is a programming error, not a runtime condition.
		panic(err)
	}
	return &PageCache{c: c}
}

// Get returns the decompressed page for ptr, if cached.
func (pc *PageCache) Get(ptr uint64) ([]byte, bool) {
	compressed, ok := pc.c.Get(ptr)
	if !ok {
		return nil, false
	}
	page, err := decompressPage(compressed)
	if err != nil {
		// A corrupted cache entry is treated as a miss; the caller falls
		// back to reading the page from disk.
		pc.c.Del(ptr)
		return nil, false
	}
	return page, true
}

// Set stores page, compressed, under ptr.
func (pc *PageCache) Set(ptr uint64, page []byte) {
	compressed := compressPage(page)
	pc.c.Set(ptr, compressed, int64(len(compressed)))
}

// Del evicts ptr, used whenever a page is overwritten so stale bytes never
// survive in cache past a page's on-disk update.
func (pc *PageCache) Del(ptr uint64) {
	pc.c.Del(ptr)
}
