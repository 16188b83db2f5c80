// ABOUTME: Index descriptor data model
// ABOUTME: Describes one ART secondary index registered against the heap

package catalog

import "time"

// IndexDescriptor describes one ART index built over the row heap: which
// columns it covers, whether it uses gate subtrees to fan a single key out
// to many row ids, and bookkeeping about its last build.
type IndexDescriptor struct {
	Name        string    // Unique index name
	Columns     []string  // Indexed columns, in key order
	GateEnabled bool      // Whether matching rows are stored behind a gate
	RowCount    int64     // Row ids covered by the last build
	BuiltAt     time.Time // When the tree was last (re)built
	CreatedAt   time.Time
	UpdatedAt   time.Time
}
