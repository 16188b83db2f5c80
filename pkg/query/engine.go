// ABOUTME: Query engine binding the catalog, ART trees, and row heap together
// ABOUTME: RangeScan is the sole entry point, replacing the teacher's per-store Execute switch

package query

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/nainya/artindex/pkg/art"
	"github.com/nainya/artindex/pkg/catalog"
	"github.com/nainya/artindex/pkg/heap"
)

// Engine ties an index catalog, a set of in-memory ART trees, and the
// row heap into one query surface. Where the teacher's Engine fanned a
// Query out across four separate stores by QueryType, this Engine has
// exactly one path: look an index up by name, position an Iterator over
// its tree, and hand back the row ids (or full rows) it names.
type Engine struct {
	mu    sync.Mutex
	cat   *catalog.Store
	heap  *heap.Store
	trees map[string]art.Node
}

// NewEngine creates a query engine over cat and h. Trees are built
// on-demand via BuildIndex; the engine holds no tree until asked to.
func NewEngine(cat *catalog.Store, h *heap.Store) *Engine {
	return &Engine{
		cat:   cat,
		heap:  h,
		trees: make(map[string]art.Node),
	}
}

// BuildIndex scans every row in the heap, extracts an index key from
// each via keyFunc, and bulk-loads a fresh ART tree from the result —
// the ART equivalent of the teacher's "rebuild secondary index" step,
// done all at once via pkg/art.Builder rather than incrementally
// through pkg/storage.IndexManager, since the tree pkg/art builds is a
// read-only structure recomputed from the heap rather than one that
// takes live inserts/deletes.
func (e *Engine) BuildIndex(name string, columns []string, keyFunc KeyFunc) error {
	grouped := make(map[string][]int64)
	var order []string
	rowCount := 0

	if err := e.heap.Scan(0, func(row *heap.Row) bool {
		key, ok := keyFunc(row.ID, row.Data)
		if !ok {
			return true
		}
		k := string(key)
		if _, seen := grouped[k]; !seen {
			order = append(order, k)
		}
		grouped[k] = append(grouped[k], row.ID)
		rowCount++
		return true
	}); err != nil {
		return fmt.Errorf("query: scanning heap for index %s: %w", name, err)
	}

	sort.Strings(order)

	b := art.NewBuilder()
	gateDepth := 0
	for _, k := range order {
		ids := grouped[k]
		if len(ids) == 1 {
			b.Insert([]byte(k), art.RowID(ids[0]))
			continue
		}
		sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
		b.InsertGate([]byte(k), toRowIDs(ids))
		gateDepth = len(k)
	}
	tree := b.Build()

	now := time.Now()
	desc, err := e.cat.Get(name)
	created := now
	if err == nil {
		created = desc.CreatedAt
	}

	if err := e.cat.Register(&catalog.IndexDescriptor{
		Name:        name,
		Columns:     columns,
		GateEnabled: gateDepth > 0,
		RowCount:    int64(rowCount),
		BuiltAt:     now,
		CreatedAt:   created,
		UpdatedAt:   now,
	}); err != nil {
		return fmt.Errorf("query: registering index %s: %w", name, err)
	}

	e.mu.Lock()
	e.trees[name] = tree
	e.mu.Unlock()

	return nil
}

// Position resolves indexName's built tree and returns an Iterator
// placed at lower (or the tree's minimum if lower is nil), ready for a
// first call to Advance. The second return is false if the position
// has no matching rows at all (lower is past every key in the tree),
// in which case the Iterator must not be used.
//
// Callers that need to resume a scan across multiple requests — e.g.
// internal/server.Server's cursor-based Scan RPC — must hold onto the
// returned Iterator and call Advance on that same instance again,
// rather than re-deriving a position from a previously-returned key.
// The Iterator's position inside an open gate has no corresponding key
// bytes (spec.md §4.6, CurrentKey excludes them), so a fresh
// Position/LowerBound call can only land on a gate's outer key, never
// partway through it; a scan that stopped mid-gate could never be
// resumed correctly that way, and would silently drop the rest of that
// gate's row ids instead.
func (e *Engine) Position(indexName string, lower []byte, lowerEqual bool) (it *art.Iterator, positioned bool, err error) {
	e.mu.Lock()
	tree, ok := e.trees[indexName]
	e.mu.Unlock()
	if !ok {
		if _, err := e.cat.Get(indexName); err != nil {
			return nil, false, fmt.Errorf("query: unknown index %s", indexName)
		}
		return nil, false, fmt.Errorf("query: index %s has no built tree", indexName)
	}

	it = art.NewIterator()
	if lower != nil {
		if !it.LowerBound(tree, art.NewARTKey(lower), lowerEqual, 0) {
			return nil, false, nil
		}
		return it, true, nil
	}

	if !tree.HasMetadata() {
		return nil, false, nil
	}
	it.FindMinimum(tree)
	return it, true, nil
}

// Advance collects up to maxCount more row ids from it, stopping at
// upper (or when the tree is exhausted, if upper is nil). Call
// repeatedly on the same Iterator to resume a scan exactly where the
// previous call left off, including partway through a gate.
func (e *Engine) Advance(it *art.Iterator, upper []byte, upperEqual bool, maxCount int) *ScanResult {
	if maxCount <= 0 {
		maxCount = 1 << 30
	}

	var upperKey art.ARTKey
	if upper != nil {
		upperKey = art.NewARTKey(upper)
	}

	var rowIDs []art.RowID
	done := it.Scan(upperKey, maxCount, &rowIDs, upperEqual)

	out := make([]int64, len(rowIDs))
	for i, id := range rowIDs {
		out[i] = int64(id)
	}

	return &ScanResult{RowIDs: out, Done: done}
}

// RangeScan runs one bounded scan from req.Lower to req.Upper in a
// single call. It has no cursor-resumption story of its own: callers
// that need to pause and resume a scan across separate requests should
// use Position/Advance directly and hold the Iterator themselves (see
// internal/server.Server.Scan).
func (e *Engine) RangeScan(req ScanRequest) (*ScanResult, error) {
	it, positioned, err := e.Position(req.IndexName, req.Lower, req.LowerEqual)
	if err != nil {
		return nil, err
	}
	if !positioned {
		return &ScanResult{Done: true}, nil
	}
	return e.Advance(it, req.Upper, req.UpperEqual, req.MaxCount), nil
}

// MaterializingScan runs RangeScan and resolves every row id it returns
// through the row heap, so a caller need not make a second round trip.
func (e *Engine) MaterializingScan(req ScanRequest) ([]Row, bool, error) {
	result, err := e.RangeScan(req)
	if err != nil {
		return nil, false, err
	}

	rows := make([]Row, 0, len(result.RowIDs))
	for _, id := range result.RowIDs {
		r, err := e.heap.Get(id)
		if err != nil {
			return nil, false, fmt.Errorf("query: materializing row %d: %w", id, err)
		}
		rows = append(rows, Row{ID: r.ID, Data: r.Data})
	}

	return rows, result.Done, nil
}

func toRowIDs(ids []int64) []art.RowID {
	out := make([]art.RowID, len(ids))
	for i, id := range ids {
		out[i] = art.RowID(id)
	}
	return out
}
