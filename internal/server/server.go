// Package server implements the gRPC Index service
package server

import (
	"context"
	"fmt"
	"os"
	"sync"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/nainya/artindex/internal/rpc"
	"github.com/nainya/artindex/pkg/art"
	"github.com/nainya/artindex/pkg/catalog"
	"github.com/nainya/artindex/pkg/heap"
	"github.com/nainya/artindex/pkg/query"
	"github.com/nainya/artindex/pkg/storage"
)

// Server implements rpc.ScanServer, backed by a page store, a row
// heap, an index catalog, and the query engine that ties them together.
type Server struct {
	p      *storage.Pager
	cat    *catalog.Store
	heap   *heap.Store
	engine *query.Engine

	startTime time.Time

	cursorMu sync.Mutex
	cursors  map[string]*cursorState
}

// cursorState holds a scan's live position. The Iterator itself is
// kept in memory and is never serialized into the cursor id — resuming
// a scan means calling Advance again on this same Iterator, which is
// the only way to correctly continue a scan that stopped partway
// through a gate (see query.Engine.Position).
type cursorState struct {
	it         *art.Iterator
	upper      []byte
	upperEqual bool
}

// NewServer opens the page store at dbPath and wires the catalog, row
// heap, and query engine on top of it.
func NewServer(dbPath string) (*Server, error) {
	p := &storage.Pager{Path: dbPath}
	if err := p.Open(); err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	h, err := heap.Open(p)
	if err != nil {
		return nil, fmt.Errorf("failed to open row heap: %w", err)
	}

	cat := catalog.NewStore(p)

	return &Server{
		p:         p,
		cat:       cat,
		heap:      h,
		engine:    query.NewEngine(cat, h),
		startTime: time.Now(),
		cursors:   make(map[string]*cursorState),
	}, nil
}

// Close closes the database connection.
func (s *Server) Close() error {
	return s.p.Close()
}

// Engine returns the query engine, for callers that need to build
// indexes before serving scan requests.
func (s *Server) Engine() *query.Engine {
	return s.engine
}

// Scan answers one bounded range-scan request against a named index. A
// non-empty CursorID resumes a prior scan by advancing the same live
// Iterator that scan left parked, rather than repositioning from a key —
// the only way to resume correctly when the prior call stopped partway
// through a gate (see query.Engine.Position).
func (s *Server) Scan(ctx context.Context, req *rpc.ScanRequest) (*rpc.ScanResponse, error) {
	maxCount := int(req.MaxCount)
	if maxCount <= 0 {
		maxCount = 1000
	}

	if req.CursorID != "" {
		s.cursorMu.Lock()
		cur, ok := s.cursors[req.CursorID]
		s.cursorMu.Unlock()
		if !ok {
			return nil, status.Errorf(codes.NotFound, "unknown cursor: %s", req.CursorID)
		}

		result := s.engine.Advance(cur.it, cur.upper, cur.upperEqual, maxCount)
		resp := &rpc.ScanResponse{RowIDs: result.RowIDs, Done: result.Done}

		s.cursorMu.Lock()
		if result.Done {
			delete(s.cursors, req.CursorID)
		} else {
			resp.CursorID = req.CursorID
		}
		s.cursorMu.Unlock()
		return resp, nil
	}

	if req.IndexName == "" {
		return nil, status.Error(codes.InvalidArgument, "index_name is required")
	}

	it, positioned, err := s.engine.Position(req.IndexName, req.LowerBound, req.LowerEqual)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "scan failed: %v", err)
	}
	if !positioned {
		return &rpc.ScanResponse{Done: true}, nil
	}

	result := s.engine.Advance(it, req.UpperBound, req.UpperEqual, maxCount)
	resp := &rpc.ScanResponse{RowIDs: result.RowIDs, Done: result.Done}

	if !result.Done {
		cursorID := fmt.Sprintf("cursor-%d", time.Now().UnixNano())
		s.cursorMu.Lock()
		s.cursors[cursorID] = &cursorState{it: it, upper: req.UpperBound, upperEqual: req.UpperEqual}
		s.cursorMu.Unlock()
		resp.CursorID = cursorID
	}

	return resp, nil
}

// Stats reports basic database-level statistics, used by the
// observability HTTP surface rather than the gRPC surface.
func (s *Server) Stats() (dbSizeBytes int64, uptimeSeconds int64, freePages int) {
	if fileInfo, err := os.Stat(s.p.Path); err == nil {
		dbSizeBytes = fileInfo.Size()
	}
	return dbSizeBytes, int64(time.Since(s.startTime).Seconds()), s.p.FreeListSize()
}
