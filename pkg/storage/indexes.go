// ABOUTME: Secondary index management for multi-access patterns
// ABOUTME: Maintains multiple B+Trees with automatic consistency

package storage

import (
	"fmt"

	"github.com/nainya/artindex/pkg/btree"
)

// IndexDef defines a secondary index over records stored through an
// IndexManager.
type IndexDef struct {
	Name    string   // Index name
	Columns []string // Columns to index (in order)
	Prefix  uint32   // Unique prefix for this index
}

// IndexManager manages a primary B+Tree plus any number of secondary
// B+Trees sharing the same Pager. pkg/catalog uses one of these to keep its
// name/kind/column lookups consistent without duplicating the page store.
type IndexManager struct {
	p       *Pager
	primary *btree.BTree
	indexes map[string]*IndexInfo
}

// IndexInfo holds index metadata.
type IndexInfo struct {
	Def  IndexDef
	Tree *btree.BTree
}

// NewIndexManager creates a new index manager over p's primary tree.
func NewIndexManager(p *Pager) *IndexManager {
	return &IndexManager{
		p:       p,
		primary: &p.tree,
		indexes: make(map[string]*IndexInfo),
	}
}

// AddIndex registers a new secondary index. The index's tree shares the
// same page storage as the primary tree.
func (im *IndexManager) AddIndex(def IndexDef) error {
	if _, exists := im.indexes[def.Name]; exists {
		return fmt.Errorf("index %s already exists", def.Name)
	}

	tree := &btree.BTree{}
	tree.SetCallbacks(
		func(ptr uint64) []byte { return im.p.pageRead(ptr) },
		func(node []byte) uint64 { return im.p.pageAlloc(node) },
		func(ptr uint64) { im.p.pageFree(ptr) },
	)

	im.indexes[def.Name] = &IndexInfo{Def: def, Tree: tree}
	return nil
}

// IndexedTx is a transaction with automatic secondary index maintenance.
type IndexedTx struct {
	im      *IndexManager
	tx      *Tx
	updates map[string]IndexUpdate
}

// IndexUpdate tracks changes for index maintenance.
type IndexUpdate struct {
	OldKey []byte
	OldVal []byte
	NewKey []byte
	NewVal []byte
	IsNew  bool
}

// Begin starts a new indexed transaction.
func (im *IndexManager) Begin() *IndexedTx {
	return &IndexedTx{im: im, tx: im.p.Begin(), updates: make(map[string]IndexUpdate)}
}

// Set inserts/updates a record and maintains all secondary indexes.
func (itx *IndexedTx) Set(primaryKey []Field, record map[string]Field) error {
	pkBytes := EncodeFields(primaryKey)

	oldVal, exists := itx.tx.Get(pkBytes)

	recBytes := encodeRecord(record)
	itx.tx.Set(pkBytes, recBytes)

	for name, info := range itx.im.indexes {
		indexKey := extractIndexKey(record, info.Def.Columns, primaryKey)

		if exists {
			oldRecord, err := decodeRecord(oldVal)
			if err != nil {
				return err
			}
			oldIndexKey := extractIndexKey(oldRecord, info.Def.Columns, primaryKey)
			info.Tree.Delete(EncodeKey(info.Def.Prefix, oldIndexKey))
		}

		info.Tree.Insert(EncodeKey(info.Def.Prefix, indexKey), []byte{})

		itx.updates[name] = IndexUpdate{
			OldKey: pkBytes,
			OldVal: oldVal,
			NewKey: pkBytes,
			NewVal: recBytes,
			IsNew:  !exists,
		}
	}

	return nil
}

// Get retrieves a record by primary key.
func (itx *IndexedTx) Get(primaryKey []Field) (map[string]Field, bool, error) {
	pkBytes := EncodeFields(primaryKey)
	val, ok := itx.tx.Get(pkBytes)
	if !ok {
		return nil, false, nil
	}

	record, err := decodeRecord(val)
	if err != nil {
		return nil, false, err
	}
	return record, true, nil
}

// Del deletes a record and maintains all secondary indexes.
func (itx *IndexedTx) Del(primaryKey []Field) (bool, error) {
	pkBytes := EncodeFields(primaryKey)

	oldVal, exists := itx.tx.Get(pkBytes)
	if !exists {
		return false, nil
	}

	itx.tx.Del(pkBytes)

	oldRecord, err := decodeRecord(oldVal)
	if err != nil {
		return false, err
	}

	for _, info := range itx.im.indexes {
		indexKey := extractIndexKey(oldRecord, info.Def.Columns, primaryKey)
		info.Tree.Delete(EncodeKey(info.Def.Prefix, indexKey))
	}

	return true, nil
}

// ScanIndex performs a range scan on a secondary index, resolving each
// match back to its full record via the primary tree.
func (itx *IndexedTx) ScanIndex(indexName string, start []Field, callback func(primaryKey []Field, record map[string]Field) bool) error {
	info, ok := itx.im.indexes[indexName]
	if !ok {
		return fmt.Errorf("index %s not found", indexName)
	}

	startKey := EncodeKey(info.Def.Prefix, start)

	info.Tree.Scan(startKey, func(indexKey, _ []byte) bool {
		vals, err := ExtractFields(indexKey)
		if err != nil {
			return false
		}

		numIndexCols := len(info.Def.Columns)
		if len(vals) < numIndexCols {
			return false
		}
		primaryKey := vals[numIndexCols:]

		pkBytes := EncodeFields(primaryKey)
		recVal, ok := itx.tx.Get(pkBytes)
		if !ok {
			return true
		}

		record, err := decodeRecord(recVal)
		if err != nil {
			return false
		}
		return callback(primaryKey, record)
	})

	return nil
}

// Commit commits the transaction.
func (itx *IndexedTx) Commit() error {
	return itx.tx.Commit()
}

// Abort aborts the transaction.
func (itx *IndexedTx) Abort() {
	itx.tx.Abort()
}

func extractIndexKey(record map[string]Field, columns []string, primaryKey []Field) []Field {
	indexVals := make([]Field, 0, len(columns)+len(primaryKey))
	for _, col := range columns {
		if val, ok := record[col]; ok {
			indexVals = append(indexVals, val)
		}
	}
	indexVals = append(indexVals, primaryKey...)
	return indexVals
}

func encodeRecord(record map[string]Field) []byte {
	out := make([]byte, 0, 256)
	out = append(out, byte(len(record)))
	for name, val := range record {
		out = append(out, byte(len(name)))
		out = append(out, []byte(name)...)
		out = append(out, EncodeFields([]Field{val})...)
	}
	return out
}

func decodeRecord(data []byte) (map[string]Field, error) {
	if len(data) == 0 {
		return make(map[string]Field), nil
	}

	record := make(map[string]Field)
	pos := 0

	numFields := int(data[pos])
	pos++

	for i := 0; i < numFields; i++ {
		if pos >= len(data) {
			return nil, fmt.Errorf("incomplete record at field %d", i)
		}

		nameLen := int(data[pos])
		pos++
		if pos+nameLen > len(data) {
			return nil, fmt.Errorf("incomplete field name at pos %d", pos)
		}
		name := string(data[pos : pos+nameLen])
		pos += nameLen

		vals, err := DecodeFields(data[pos:])
		if err != nil {
			return nil, err
		}
		if len(vals) == 0 {
			return nil, fmt.Errorf("no value for field %s", name)
		}
		record[name] = vals[0]
		pos += len(EncodeFields([]Field{vals[0]}))
	}

	return record, nil
}
