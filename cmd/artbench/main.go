// artbench measures Scan latency against built-index size and plots the
// result, and records per-run memory stats to a CSV alongside the plot.
package main

import (
	"encoding/binary"
	"encoding/csv"
	"flag"
	"fmt"
	"os"
	"runtime"
	"sort"
	"strconv"
	"time"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/nainya/artindex/pkg/catalog"
	"github.com/nainya/artindex/pkg/heap"
	"github.com/nainya/artindex/pkg/query"
	"github.com/nainya/artindex/pkg/storage"
)

var (
	dbPath  = flag.String("db", "artbench.db", "Scratch page store file path")
	csvPath = flag.String("csv", "artbench_results.csv", "Output CSV path")
	pngPath = flag.String("png", "artbench_latency.png", "Output plot path")
	maxCnt  = flag.Int("max-count", 1000, "MaxCount passed to each scan")
)

// BenchResult is one row of measured scan behavior at a given tree size.
type BenchResult struct {
	RowCount    int
	ScanLatency time.Duration
	AllocMB     uint64
	HeapObjects uint64
}

// MemoryStats snapshots runtime.MemStats after forcing a GC, so readings
// reflect live data rather than not-yet-collected garbage.
type MemoryStats struct {
	AllocMB     uint64
	HeapObjects uint64
}

func getDetailedMem() MemoryStats {
	var m runtime.MemStats
	runtime.GC()
	runtime.ReadMemStats(&m)
	return MemoryStats{AllocMB: m.Alloc / 1024 / 1024, HeapObjects: m.HeapObjects}
}

func record(w *csv.Writer, res BenchResult) {
	w.Write([]string{
		strconv.Itoa(res.RowCount),
		strconv.FormatInt(res.ScanLatency.Nanoseconds(), 10),
		strconv.FormatUint(res.AllocMB, 10),
		strconv.FormatUint(res.HeapObjects, 10),
	})
}

func amountKey(_ int64, data []byte) ([]byte, bool) {
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

func main() {
	flag.Parse()

	os.Remove(*dbPath)
	p := &storage.Pager{Path: *dbPath}
	if err := p.Open(); err != nil {
		fmt.Fprintf(os.Stderr, "open store: %v\n", err)
		os.Exit(1)
	}
	defer func() {
		p.Close()
		os.Remove(*dbPath)
	}()

	h, err := heap.Open(p)
	if err != nil {
		fmt.Fprintf(os.Stderr, "open heap: %v\n", err)
		os.Exit(1)
	}
	cat := catalog.NewStore(p)
	engine := query.NewEngine(cat, h)

	f, err := os.Create(*csvPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create csv: %v\n", err)
		os.Exit(1)
	}
	defer f.Close()
	w := csv.NewWriter(f)
	w.Write([]string{"RowCount", "ScanLatencyNs", "AllocMB", "HeapObjects"})

	sizes := []int{1_000, 10_000, 100_000, 500_000}
	results := make([]BenchResult, 0, len(sizes))
	appended := 0

	for _, size := range sizes {
		for ; appended < size; appended++ {
			if _, err := h.Append(amountBytes(uint64(appended))); err != nil {
				fmt.Fprintf(os.Stderr, "append row %d: %v\n", appended, err)
				os.Exit(1)
			}
		}

		if err := engine.BuildIndex("by_amount", []string{"amount"}, amountKey); err != nil {
			fmt.Fprintf(os.Stderr, "build index at %d rows: %v\n", size, err)
			os.Exit(1)
		}

		start := time.Now()
		if _, err := engine.RangeScan(query.ScanRequest{
			IndexName: "by_amount",
			MaxCount:  *maxCnt,
		}); err != nil {
			fmt.Fprintf(os.Stderr, "scan at %d rows: %v\n", size, err)
			os.Exit(1)
		}
		latency := time.Since(start)

		mem := getDetailedMem()
		res := BenchResult{RowCount: size, ScanLatency: latency, AllocMB: mem.AllocMB, HeapObjects: mem.HeapObjects}
		results = append(results, res)
		record(w, res)
		fmt.Printf("rows=%d scan_latency=%s alloc_mb=%d\n", size, latency, mem.AllocMB)
	}
	w.Flush()

	if err := plotLatency(results); err != nil {
		fmt.Fprintf(os.Stderr, "plot: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("wrote %s and %s\n", *csvPath, *pngPath)
}

// plotLatency renders RowCount vs. ScanLatency as a line-and-point chart.
func plotLatency(results []BenchResult) error {
	sort.Slice(results, func(i, j int) bool { return results[i].RowCount < results[j].RowCount })

	pts := make(plotter.XYs, len(results))
	for i, r := range results {
		pts[i].X = float64(r.RowCount)
		pts[i].Y = float64(r.ScanLatency.Microseconds())
	}

	p := plot.New()
	p.Title.Text = "ART index scan latency vs. tree size"
	p.X.Label.Text = "rows indexed"
	p.Y.Label.Text = "scan latency (microseconds)"

	line, points, err := plotter.NewLinePoints(pts)
	if err != nil {
		return fmt.Errorf("building line/points: %w", err)
	}
	p.Add(line, points)
	p.Add(plotter.NewGrid())

	return p.Save(8*vg.Inch, 5*vg.Inch, *pngPath)
}
