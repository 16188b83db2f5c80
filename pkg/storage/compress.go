// ABOUTME: Page (de)compression for the in-process page cache
// ABOUTME: Trades CPU for cache memory headroom on hot pages

package storage

import "github.com/golang/snappy"

// compressPage returns the snappy-compressed form of a full BTREE_PAGE_SIZE
// page. Compression happens only at the cache boundary: pages on disk stay
// raw and fixed-width so pageRead's ptr*BTREE_PAGE_SIZE offset arithmetic
// never has to account for variable-length records.
func compressPage(page []byte) []byte {
	return snappy.Encode(nil, page)
}

// decompressPage reverses compressPage, restoring the original
// BTREE_PAGE_SIZE page bytes handed to the B+Tree.
func decompressPage(compressed []byte) ([]byte, error) {
	return snappy.Decode(nil, compressed)
}
