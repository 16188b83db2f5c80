// ABOUTME: Transaction support for atomic multi-key operations
// ABOUTME: Implements Begin/Commit/Abort with copy-on-write atomicity

package storage

import (
	"fmt"

	"github.com/nainya/artindex/pkg/btree"
	"github.com/nainya/artindex/pkg/wal"
)

// Tx is a key-value transaction over a Pager. Writes made through Set/Del
// are staged against the in-memory tree immediately (for Get/Scan within
// the same Tx to observe) but are only durable once Commit has logged
// them to the WAL and flushed the page store.
type Tx struct {
	p    *Pager
	meta []byte // saved meta for rollback
	ops  []walOp
}

// Commit logs the transaction's operations to the WAL (fsynced) before
// flushing pages and the meta page, then checkpoints the WAL so a clean
// reopen has nothing left to replay. A crash between the WAL fsync and
// the checkpoint is exactly what Pager.Open's recovery pass repairs.
func (tx *Tx) Commit() error {
	if err := tx.p.walLogCommit(tx.ops); err != nil {
		return fmt.Errorf("wal: log commit: %w", err)
	}
	if err := tx.p.updateOrRevert(tx.meta); err != nil {
		return err
	}
	return tx.p.checkpoint.Checkpoint()
}

// Abort rolls back the transaction. Nothing was ever written to the WAL,
// so there is nothing to undo there.
func (tx *Tx) Abort() {
	tx.p.loadMeta(tx.meta)
	tx.p.page.temp = tx.p.page.temp[:0]
	tx.p.page.updates = make(map[uint64][]byte)
	tx.ops = nil
}

// Get retrieves a value within the transaction.
func (tx *Tx) Get(key []byte) ([]byte, bool) {
	return tx.p.tree.Get(key)
}

// Set inserts or updates a key-value pair within the transaction.
func (tx *Tx) Set(key []byte, val []byte) {
	tx.p.tree.Insert(key, val)
	tx.ops = append(tx.ops, walOp{op: wal.OpInsert, key: key, val: val})
}

// Del deletes a key within the transaction.
func (tx *Tx) Del(key []byte) bool {
	deleted := tx.p.tree.Delete(key)
	if deleted {
		tx.ops = append(tx.ops, walOp{op: wal.OpDelete, key: key})
	}
	return deleted
}

// Scan performs a range scan within the transaction.
func (tx *Tx) Scan(start []byte, callback func(key, val []byte) bool) {
	tx.p.tree.Scan(start, callback)
}

// NewIterator creates a B+Tree iterator within the transaction.
func (tx *Tx) NewIterator() *btree.BIter {
	return tx.p.tree.NewIterator()
}
