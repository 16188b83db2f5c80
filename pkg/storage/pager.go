// ABOUTME: Disk-based page store with B+Tree persistence
// ABOUTME: Implements copy-on-write with meta page and two-phase fsync updates

package storage

import (
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/nainya/artindex/pkg/btree"
	"github.com/nainya/artindex/pkg/wal"
)

const (
	DB_SIG          = "ArtIndex01\x00\x00\x00\x00\x00\x00" // Database signature (16 bytes)
	BTREE_PAGE_SIZE = 4096                                  // Must match btree package
	META_PAGE_SIZE  = 80                                    // Meta page size (expanded for free list)
)

// Pager is a persistent, page-oriented key-value store. Catalog entries and
// row bytes are both stored as B+Tree records on top of it; the ART itself
// is a read-side, in-memory structure built over what this store holds
// durably (see pkg/art.Builder), not something Pager serializes directly.
//
// Unlike the mmap-backed design this package is grounded on, Pager reads and
// writes pages with os.File.ReadAt/WriteAt. A page cache (cache.go) sits in
// front of the file to absorb repeated reads of hot pages.
type Pager struct {
	Path string

	file *os.File

	// B+Tree
	tree btree.BTree

	// Free list for page recycling
	free FreeList

	// Page cache (compressed, bounded)
	cache *PageCache

	// Page management
	page struct {
		flushed uint64            // Number of pages flushed to disk
		temp    [][]byte          // Temporary pages pending flush
		updates map[uint64][]byte // In-place updates
	}

	// Error recovery
	failed bool // Did last update fail?

	// Write-ahead log. Every Tx.Commit logs its operations here and
	// fsyncs before the copy-on-write page/meta flush; a checkpoint
	// entry follows a successful flush so a clean reopen has nothing to
	// replay. Only a crash between the WAL fsync and the checkpoint
	// leaves entries for Open to replay.
	wal *wal.WAL

	// checkpoint marks committed WAL entries as reflected in the page
	// store and prunes log segments before the last checkpoint. Run
	// synchronously after every commit rather than on Checkpointer's own
	// interval timer, since updateOrRevert's flush is already
	// per-transaction; Start/Stop are unused.
	checkpoint *wal.Checkpointer
}

// walOp is one operation queued on a Tx, logged to the WAL as part of
// that transaction's commit.
type walOp struct {
	op  wal.OpType
	key []byte
	val []byte
}

// Open opens or creates a database file.
func (p *Pager) Open() error {
	file, err := createFileSync(p.Path)
	if err != nil {
		return err
	}
	p.file = file

	stat, err := file.Stat()
	if err != nil {
		return fmt.Errorf("stat: %w", err)
	}

	if stat.Size() == 0 {
		// Empty file - reserve meta page.
		p.page.flushed = 1
	} else if err := p.readMeta(); err != nil {
		return err
	}

	p.page.updates = make(map[uint64][]byte)
	p.cache = NewPageCache(64 << 20) // 64MB of compressed page bytes

	p.free.get = func(ptr uint64) []byte { return p.pageRead(ptr) }
	p.free.new = func(node []byte) uint64 { return p.pageAppend(node) }
	p.free.set = func(ptr uint64, node []byte) { p.pageWrite(ptr, node) }

	// After loading from disk, all freed pages are available for reuse;
	// maxSeq is re-frozen at the start of each transaction.
	if p.free.tailSeq > 0 {
		p.free.maxSeq = p.free.tailSeq
	}

	p.tree.SetCallbacks(
		func(ptr uint64) []byte { return p.pageRead(ptr) },
		func(node []byte) uint64 { return p.pageAlloc(node) },
		func(ptr uint64) { p.pageFree(ptr) },
	)

	p.wal = &wal.WAL{Path: p.Path + ".wal"}
	if err := p.wal.Open(); err != nil {
		return fmt.Errorf("open wal: %w", err)
	}
	p.checkpoint = wal.NewCheckpointer(p.wal, func() error { return nil })

	return p.recoverWAL()
}

// recoverWAL replays any WAL transaction committed but not yet
// checkpointed against the page store, then flushes and checkpoints the
// result so a clean reopen finds nothing left to replay.
func (p *Pager) recoverWAL() error {
	meta := p.saveMeta()
	replayed := 0

	rec := wal.NewRecovery(p.wal)
	if err := rec.Recover(func(op wal.OpType, key, val []byte) error {
		switch op {
		case wal.OpInsert:
			p.tree.Insert(key, val)
		case wal.OpDelete:
			p.tree.Delete(key)
		}
		replayed++
		return nil
	}); err != nil {
		return fmt.Errorf("wal recovery: %w", err)
	}

	if replayed == 0 {
		return nil
	}

	if err := p.updateOrRevert(meta); err != nil {
		return fmt.Errorf("flush replayed wal entries: %w", err)
	}
	return p.checkpoint.Checkpoint()
}

// walLogCommit logs ops as a single WAL transaction and fsyncs before
// returning, so a crash cannot lose a commit that Fsync reported as
// durable. A transaction with no ops is a no-op.
func (p *Pager) walLogCommit(ops []walOp) error {
	if len(ops) == 0 {
		return nil
	}

	txnID := p.wal.NextLSN()
	for _, o := range ops {
		entry := wal.Entry{LSN: p.wal.NextLSN(), TxnID: txnID, OpType: o.op, Key: o.key, Value: o.val, Timestamp: time.Now()}
		if err := p.wal.Write(entry); err != nil {
			return fmt.Errorf("wal: write entry: %w", err)
		}
	}
	commit := wal.Entry{LSN: p.wal.NextLSN(), TxnID: txnID, OpType: wal.OpCommit, Timestamp: time.Now()}
	if err := p.wal.Write(commit); err != nil {
		return fmt.Errorf("wal: write commit: %w", err)
	}
	return p.wal.Fsync()
}

// Close closes the database.
func (p *Pager) Close() error {
	if p.wal != nil {
		p.wal.Close()
	}
	return p.file.Close()
}

// Get retrieves a value by key.
func (p *Pager) Get(key []byte) ([]byte, bool) {
	return p.tree.Get(key)
}

// Set inserts or updates a key-value pair, as a single-operation
// transaction (see Tx.Commit for the WAL-then-page-store commit order).
func (p *Pager) Set(key []byte, val []byte) error {
	tx := p.Begin()
	tx.Set(key, val)
	return tx.Commit()
}

// Del deletes a key, as a single-operation transaction.
func (p *Pager) Del(key []byte) (bool, error) {
	tx := p.Begin()
	if !tx.Del(key) {
		return false, nil
	}
	return true, tx.Commit()
}

// Scan performs a range scan starting from the given key.
func (p *Pager) Scan(start []byte, callback func(key, val []byte) bool) {
	p.tree.Scan(start, callback)
}

// Begin starts a new transaction.
func (p *Pager) Begin() *Tx {
	return &Tx{p: p, meta: p.saveMeta()}
}

// FreeListSize reports how many pages are currently parked on the free
// list, available for reuse before the file grows. Exposed for the
// observability surface (internal/metrics, internal/server.Server.Stats)
// to track page reuse alongside file size.
func (p *Pager) FreeListSize() int {
	return p.free.Total()
}

func (p *Pager) pageRead(ptr uint64) []byte {
	if page, ok := p.page.updates[ptr]; ok {
		return page
	}

	if ptr >= p.page.flushed {
		idx := ptr - p.page.flushed
		if idx < uint64(len(p.page.temp)) {
			return p.page.temp[idx]
		}
	}

	if page, ok := p.cache.Get(ptr); ok {
		return page
	}

	buf := make([]byte, BTREE_PAGE_SIZE)
	offset := int64(ptr * BTREE_PAGE_SIZE)
	if _, err := p.file.ReadAt(buf, offset); err != nil {
		panic(fmt.Sprintf("bad page pointer: %d: %v", ptr, err))
	}
	p.cache.Set(ptr, buf)
	return buf
}

func (p *Pager) pageAlloc(node []byte) uint64 {
	if len(node) != BTREE_PAGE_SIZE {
		panic("page size mismatch")
	}

	if ptr := p.free.PopHead(); ptr != 0 {
		p.page.updates[ptr] = node
		return ptr
	}

	return p.pageAppend(node)
}

func (p *Pager) pageAppend(node []byte) uint64 {
	if len(node) != BTREE_PAGE_SIZE {
		panic("page size mismatch")
	}
	ptr := p.page.flushed + uint64(len(p.page.temp))
	p.page.temp = append(p.page.temp, node)
	return ptr
}

func (p *Pager) pageWrite(ptr uint64, node []byte) {
	if len(node) != BTREE_PAGE_SIZE {
		panic("page size mismatch")
	}
	p.page.updates[ptr] = node
	p.cache.Del(ptr)
}

func (p *Pager) pageFree(ptr uint64) {
	// Only free pages that were already flushed to disk; temp pages can't
	// be reused until they're committed.
	if ptr < p.page.flushed {
		p.free.PushTail(ptr)
	}
}

func (p *Pager) saveMeta() []byte {
	var data [META_PAGE_SIZE]byte
	copy(data[:16], []byte(DB_SIG))
	binary.LittleEndian.PutUint64(data[16:], p.tree.GetRoot())
	binary.LittleEndian.PutUint64(data[24:], p.page.flushed)
	copy(data[32:], p.free.Serialize())
	return data[:]
}

func (p *Pager) loadMeta(data []byte) {
	p.tree.SetRoot(binary.LittleEndian.Uint64(data[16:]))
	p.page.flushed = binary.LittleEndian.Uint64(data[24:])
	p.free.Deserialize(data[32:72])
}

func (p *Pager) readMeta() error {
	data := make([]byte, META_PAGE_SIZE)
	if _, err := p.file.ReadAt(data, 0); err != nil {
		return fmt.Errorf("read meta page: %w", err)
	}
	if sig := string(data[:16]); sig != DB_SIG {
		return fmt.Errorf("invalid database signature: %q", sig)
	}
	p.loadMeta(data)
	return nil
}

func (p *Pager) updateOrRevert(meta []byte) error {
	if p.failed {
		if err := p.writeMeta(meta); err != nil {
			return err
		}
		if err := p.file.Sync(); err != nil {
			return err
		}
		p.failed = false
	}

	savedMaxSeq := p.free.maxSeq
	p.free.SetMaxSeq()

	err := p.updateFile()
	if err != nil {
		p.loadMeta(meta)
		p.page.temp = p.page.temp[:0]
		p.page.updates = make(map[uint64][]byte)
		p.free.maxSeq = savedMaxSeq
		p.failed = true
	} else {
		p.free.maxSeq = p.free.tailSeq
	}
	return err
}

func (p *Pager) updateFile() error {
	if err := p.writePages(); err != nil {
		return err
	}
	if err := p.file.Sync(); err != nil {
		return err
	}
	if err := p.writeMeta(p.saveMeta()); err != nil {
		return err
	}
	return p.file.Sync()
}

func (p *Pager) writePages() error {
	for ptr, page := range p.page.updates {
		offset := int64(ptr * BTREE_PAGE_SIZE)
		if _, err := p.file.WriteAt(page, offset); err != nil {
			return err
		}
		p.cache.Del(ptr)
	}
	p.page.updates = make(map[uint64][]byte)

	if len(p.page.temp) == 0 {
		return nil
	}

	offset := int64(p.page.flushed * BTREE_PAGE_SIZE)
	for _, page := range p.page.temp {
		if _, err := p.file.WriteAt(page, offset); err != nil {
			return err
		}
		offset += BTREE_PAGE_SIZE
	}

	p.page.flushed += uint64(len(p.page.temp))
	p.page.temp = p.page.temp[:0]
	return nil
}

func (p *Pager) writeMeta(data []byte) error {
	if _, err := p.file.WriteAt(data, 0); err != nil {
		return fmt.Errorf("write meta page: %w", err)
	}
	return nil
}

// createFileSync creates/opens file with directory fsync, so the directory
// entry for a newly created database file survives a crash.
func createFileSync(file string) (*os.File, error) {
	fd, err := os.OpenFile(file, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}

	dir, err := os.Open(filepath.Dir(file))
	if err != nil {
		fd.Close()
		return nil, fmt.Errorf("open directory: %w", err)
	}
	defer dir.Close()

	if err := dir.Sync(); err != nil {
		fd.Close()
		return nil, fmt.Errorf("fsync directory: %w", err)
	}

	return fd, nil
}
