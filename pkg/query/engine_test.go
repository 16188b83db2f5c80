// ABOUTME: Tests for the query engine
// ABOUTME: Verifies index building and bounded range scans over the built tree

package query

import (
	"encoding/binary"
	"os"
	"testing"

	"github.com/nainya/artindex/pkg/catalog"
	"github.com/nainya/artindex/pkg/heap"
	"github.com/nainya/artindex/pkg/storage"
)

func setupTestEngine(t *testing.T) (*Engine, *storage.Pager, string) {
	path := "/tmp/test_queryengine_" + t.Name() + ".db"
	p := &storage.Pager{Path: path}
	if err := p.Open(); err != nil {
		t.Fatalf("failed to open: %v", err)
	}

	h, err := heap.Open(p)
	if err != nil {
		t.Fatalf("failed to open heap: %v", err)
	}

	engine := NewEngine(catalog.NewStore(p), h)
	return engine, p, path
}

func amountKey(rowID int64, data []byte) ([]byte, bool) {
	if len(data) < 8 {
		return nil, false
	}
	return append([]byte(nil), data[:8]...), true
}

func amountBytes(v uint64) []byte {
	buf := make([]byte, 8)
	binary.BigEndian.PutUint64(buf, v)
	return buf
}

func TestBuildIndexAndRangeScan(t *testing.T) {
	engine, p, path := setupTestEngine(t)
	defer os.Remove(path)
	defer p.Close()

	for _, amount := range []uint64{10, 20, 30, 40, 50} {
		if _, err := engine.heap.Append(amountBytes(amount)); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}

	if err := engine.BuildIndex("by_amount", []string{"amount"}, amountKey); err != nil {
		t.Fatalf("BuildIndex failed: %v", err)
	}

	result, err := engine.RangeScan(ScanRequest{
		IndexName:  "by_amount",
		Lower:      amountBytes(20),
		LowerEqual: true,
		Upper:      amountBytes(40),
		UpperEqual: true,
		MaxCount:   100,
	})
	if err != nil {
		t.Fatalf("RangeScan failed: %v", err)
	}
	if !result.Done {
		t.Fatalf("expected scan to be done, maxCount was not the limiting factor")
	}
	if len(result.RowIDs) != 3 {
		t.Fatalf("got %d row ids, want 3: %v", len(result.RowIDs), result.RowIDs)
	}
}

func TestRangeScanRespectsMaxCount(t *testing.T) {
	engine, p, path := setupTestEngine(t)
	defer os.Remove(path)
	defer p.Close()

	for i := uint64(0); i < 5; i++ {
		if _, err := engine.heap.Append(amountBytes(i)); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}
	if err := engine.BuildIndex("by_amount", []string{"amount"}, amountKey); err != nil {
		t.Fatalf("BuildIndex failed: %v", err)
	}

	result, err := engine.RangeScan(ScanRequest{IndexName: "by_amount", MaxCount: 2})
	if err != nil {
		t.Fatalf("RangeScan failed: %v", err)
	}
	if result.Done {
		t.Fatalf("expected scan to stop before exhausting the tree")
	}
	if len(result.RowIDs) != 2 {
		t.Fatalf("got %d row ids, want 2", len(result.RowIDs))
	}
}

func TestMaterializingScanResolvesRows(t *testing.T) {
	engine, p, path := setupTestEngine(t)
	defer os.Remove(path)
	defer p.Close()

	if _, err := engine.heap.Append(amountBytes(7)); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
	if err := engine.BuildIndex("by_amount", []string{"amount"}, amountKey); err != nil {
		t.Fatalf("BuildIndex failed: %v", err)
	}

	rows, done, err := engine.MaterializingScan(ScanRequest{IndexName: "by_amount", MaxCount: 10})
	if err != nil {
		t.Fatalf("MaterializingScan failed: %v", err)
	}
	if !done {
		t.Fatalf("expected scan to be done")
	}
	if len(rows) != 1 || binary.BigEndian.Uint64(rows[0].Data) != 7 {
		t.Fatalf("got %+v, want one row with amount 7", rows)
	}
}

func TestAdvanceResumesAcrossGateBoundary(t *testing.T) {
	engine, p, path := setupTestEngine(t)
	defer os.Remove(path)
	defer p.Close()

	// amount=5 is shared by three rows, so BuildIndex gates them under
	// one key; a MaxCount of 2 stops the first Advance call one row
	// into that gate.
	for _, amount := range []uint64{1, 5, 5, 5, 9} {
		if _, err := engine.heap.Append(amountBytes(amount)); err != nil {
			t.Fatalf("Append failed: %v", err)
		}
	}
	if err := engine.BuildIndex("by_amount", []string{"amount"}, amountKey); err != nil {
		t.Fatalf("BuildIndex failed: %v", err)
	}

	it, positioned, err := engine.Position("by_amount", nil, false)
	if err != nil {
		t.Fatalf("Position failed: %v", err)
	}
	if !positioned {
		t.Fatalf("expected a valid position over a non-empty index")
	}

	var all []int64
	result := engine.Advance(it, nil, false, 2)
	all = append(all, result.RowIDs...)
	for !result.Done {
		result = engine.Advance(it, nil, false, 2)
		all = append(all, result.RowIDs...)
	}

	if len(all) != 5 {
		t.Fatalf("expected all 5 row ids across resumed Advance calls, got %d: %v", len(all), all)
	}
}

func TestRangeScanUnknownIndex(t *testing.T) {
	engine, p, path := setupTestEngine(t)
	defer os.Remove(path)
	defer p.Close()

	if _, err := engine.RangeScan(ScanRequest{IndexName: "missing"}); err == nil {
		t.Fatalf("expected an error for an unbuilt index")
	}
}
